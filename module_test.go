package alfred

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfredmq/alfred-go/config"
	"github.com/alfredmq/alfred-go/contracts"
	"github.com/alfredmq/alfred-go/interceptors"
	"github.com/alfredmq/alfred-go/messaging"
	"github.com/alfredmq/alfred-go/serialization"
	"github.com/alfredmq/alfred-go/transports/memory"
)

func testConfig() *config.Config {
	return config.New(config.AlfredConfig{URL: "tcp://localhost", PubPort: 5556, SubPort: 5555}, nil)
}

func newTestModule(t *testing.T, broker *memory.Broker, name string, opts ...ModuleOption) *Module {
	t.Helper()
	opts = append([]ModuleOption{
		WithTransport(broker.Transport()),
		WithConfig(testConfig()),
		WithSettleDelay(0),
	}, opts...)
	m, err := NewModule(context.Background(), name, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

// observe subscribes a raw transport to topic before anything is published
func observe(t *testing.T, broker *memory.Broker, topic string) messaging.TransportSubscriber {
	t.Helper()
	tr := broker.Transport()
	t.Cleanup(func() { tr.Close() })
	require.NoError(t, tr.Subscriber().Subscribe(context.Background(), topic))
	return tr.Subscriber()
}

func receiveDecoded(t *testing.T, sub messaging.TransportSubscriber) (string, contracts.Message) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	frames, err := sub.Receive(ctx)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	msg, err := serialization.Decode(frames[1])
	require.NoError(t, err)
	return string(frames[0]), msg
}

func TestNewModule(t *testing.T) {
	t.Run("announces itself on join", func(t *testing.T) {
		broker := memory.NewBroker()
		responses := observe(t, broker, contracts.ModuleInfoResponseTopic)

		newTestModule(t, broker, "weather", WithCapabilities(map[string]string{"unit": "celsius"}))

		topic, msg := receiveDecoded(t, responses)
		assert.Equal(t, contracts.ModuleInfoResponseTopic, topic)
		assert.Equal(t, contracts.ModuleInfo, msg.Type)
		assert.Equal(t, "weather", msg.Text)
		assert.Equal(t, map[string]string{"unit": "celsius"}, msg.Params)
	})

	t.Run("exposes name, version and config", func(t *testing.T) {
		cfg := testConfig()
		m := newTestModule(t, memory.NewBroker(), "cron", WithConfig(cfg), WithVersion("1.2.3"))
		assert.Equal(t, "cron", m.Name())
		assert.Equal(t, "1.2.3", m.Version())
		assert.Same(t, cfg, m.Config())
	})

	t.Run("announce failure closes the connection", func(t *testing.T) {
		tr := memory.NewBroker().Transport()
		tr.FailPublish(errors.New("broker down"))

		_, err := NewModule(context.Background(), "x",
			WithTransport(tr), WithConfig(testConfig()), WithSettleDelay(0))

		var pubErr *messaging.PublishError
		require.True(t, errors.As(err, &pubErr))
		assert.Equal(t, contracts.ModuleInfoResponseTopic, pubErr.Topic)
	})

	t.Run("unknown transport in config", func(t *testing.T) {
		cfg := config.New(config.AlfredConfig{URL: "tcp://localhost", Transport: "pigeon"}, nil)
		_, err := NewModule(context.Background(), "x", WithConfig(cfg))
		assert.ErrorIs(t, err, config.ErrUnknownTransport)
	})
}

func TestModuleCapabilities(t *testing.T) {
	ctx := context.Background()
	m := newTestModule(t, memory.NewBroker(), "telegram")

	t.Run("listen accumulates topics", func(t *testing.T) {
		require.NoError(t, m.Listen(ctx, "telegram.send"))
		require.NoError(t, m.Listen(ctx, "event.weather"))
		require.NoError(t, m.Listen(ctx, "telegram.send"))

		assert.Equal(t, "telegram.send,event.weather", m.Capabilities()[ListenCapability])
	})

	t.Run("capabilities are copied", func(t *testing.T) {
		caps := m.Capabilities()
		caps["injected"] = "yes"
		_, ok := m.Capabilities()["injected"]
		assert.False(t, ok)
	})

	t.Run("set capability", func(t *testing.T) {
		require.NoError(t, m.SetCapability("chat", "42"))
		info := m.InfoMessage()
		assert.Equal(t, "telegram", info.Text)
		assert.Equal(t, "42", info.Params["chat"])
	})

	t.Run("listen capability is reserved", func(t *testing.T) {
		assert.Error(t, m.SetCapability(ListenCapability, "x"))
	})

	t.Run("failed listen is not recorded", func(t *testing.T) {
		tr := memory.NewBroker().Transport()
		other, err := NewModule(ctx, "other", WithTransport(tr), WithConfig(testConfig()), WithSettleDelay(0))
		require.NoError(t, err)
		defer other.Close()

		tr.FailSubscribe(errors.New("refused"))
		var subErr *messaging.SubscribeError
		require.True(t, errors.As(other.Listen(ctx, "topic"), &subErr))
		assert.NotContains(t, other.Capabilities(), ListenCapability)
	})
}

func TestModuleDiscoveryIsTransparent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	broker := memory.NewBroker()
	m := newTestModule(t, broker, "weather")
	require.NoError(t, m.Listen(ctx, "weather.request"))

	responses := observe(t, broker, contracts.ModuleInfoResponseTopic)
	peer := newTestModule(t, broker, "peer")

	// the peer's own announcement
	_, announced := receiveDecoded(t, responses)
	assert.Equal(t, "peer", announced.Text)

	require.NoError(t, peer.Send(ctx, contracts.ModuleInfoRequestTopic, contracts.Message{}))
	require.NoError(t, peer.Send(ctx, "weather.request", contracts.NewTextMessage("today?", "peer", "peer.reply")))

	topic, msg, err := m.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "weather.request", topic)
	assert.Equal(t, "today?", msg.Text)

	_, info := receiveDecoded(t, responses)
	assert.Equal(t, contracts.ModuleInfo, info.Type)
	assert.Equal(t, "weather", info.Text)
	assert.Equal(t, "weather.request", info.Params[ListenCapability])

	require.NoError(t, m.Reply(ctx, msg, "sunny", contracts.Text))
}

func TestModuleReceiveAll(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	broker := memory.NewBroker()
	m := newTestModule(t, broker, "logs")
	peer := newTestModule(t, broker, "peer")

	require.NoError(t, peer.Send(ctx, contracts.ModuleInfoRequestTopic, contracts.Message{}))

	topic, _, err := m.ReceiveAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, contracts.ModuleInfoRequestTopic, topic)
}

func TestModuleSend(t *testing.T) {
	ctx := context.Background()
	broker := memory.NewBroker()
	events := observe(t, broker, "event.")
	replies := observe(t, broker, "user.reply")
	m := newTestModule(t, broker, "weather")

	t.Run("send event", func(t *testing.T) {
		require.NoError(t, m.SendEvent(ctx, "weather", "rain", contracts.NewTextMessage("rain at 5", "weather")))
		topic, msg := receiveDecoded(t, events)
		assert.Equal(t, "event.weather.rain", topic)
		assert.Equal(t, "rain at 5", msg.Text)
	})

	t.Run("reply pops the chain", func(t *testing.T) {
		req := contracts.NewTextMessage("hi", "42", "user.reply", "next")
		require.NoError(t, m.Reply(ctx, req, "hello", contracts.Text))

		topic, msg := receiveDecoded(t, replies)
		assert.Equal(t, "user.reply", topic)
		assert.Equal(t, "hello", msg.Text)
		assert.Equal(t, "42", msg.Sender)
		assert.Equal(t, []string{"next"}, msg.ResponseTopics.Topics())
	})

	t.Run("reply without chain fails", func(t *testing.T) {
		err := m.Reply(ctx, contracts.NewTextMessage("hi", "42"), "x", contracts.Text)
		assert.ErrorIs(t, err, contracts.ErrReplyChainExhausted)
	})
}

func TestModuleInterceptors(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	broker := memory.NewBroker()
	drop := interceptors.NewFilteringInterceptor(
		interceptors.NewNotFilter(interceptors.NewTopicPrefixFilter("noise")),
		interceptors.SkipSilently,
	)
	m := newTestModule(t, broker, "filtered", WithInterceptors(drop))
	require.NoError(t, m.Listen(ctx, ""))
	peer := newTestModule(t, broker, "peer")

	require.NoError(t, peer.Send(ctx, "noise.loud", contracts.NewTextMessage("ignored", "peer")))
	require.NoError(t, peer.Send(ctx, "signal", contracts.NewTextMessage("kept", "peer")))

	// the peer's announcement arrives first because m listens to everything
	for {
		topic, msg, err := m.Receive(ctx)
		require.NoError(t, err)
		if topic == contracts.ModuleInfoResponseTopic {
			continue
		}
		assert.Equal(t, "signal", topic)
		assert.Equal(t, "kept", msg.Text)
		break
	}
}
