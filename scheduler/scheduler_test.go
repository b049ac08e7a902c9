package scheduler

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/alfredmq/alfred-go/contracts"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, topic string, msg contracts.Message) error {
	args := m.Called(ctx, topic, msg)
	return args.Error(0)
}

const sampleCron = `
[[cron]]
periodicity = "0 30 7 * * *"
topic = "weather.request"
message = { text = "today", response_topics = ["telegram.send"], message_type = "Text" }

[[cron]]
periodicity = "@hourly"
topic = "heartbeat"
`

func TestParse(t *testing.T) {
	jobs, err := Parse([]byte(sampleCron))
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, "weather.request", jobs[0].Topic)
	msg := jobs[0].Build()
	assert.Equal(t, "today", msg.Text)
	assert.Equal(t, contracts.Text, msg.Type)
	assert.Equal(t, []string{"telegram.send"}, msg.ResponseTopics.Topics())
	assert.Empty(t, msg.Sender)

	empty := jobs[1].Build()
	assert.Equal(t, contracts.Unknown, empty.Type)
	assert.Empty(t, empty.Text)

	_, err = LoadFile(filepath.Join(t.TempDir(), DefaultFilename))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		expr  string
		valid bool
	}{
		{"*/5 * * * *", true},
		{"0 30 7 * * *", true},
		{"@daily", true},
		{"not a schedule", false},
		{"* * *", false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := ParseSchedule(tt.expr)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}

	t.Run("seconds field", func(t *testing.T) {
		schedule, err := ParseSchedule("15 * * * * *")
		require.NoError(t, err)
		start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
		assert.Equal(t, start.Add(15*time.Second), schedule.Next(start))
	})
}

func TestNew(t *testing.T) {
	t.Run("no jobs", func(t *testing.T) {
		_, err := New(&mockSender{}, nil)
		assert.ErrorIs(t, err, ErrNoJobs)
	})

	t.Run("invalid periodicity", func(t *testing.T) {
		_, err := New(&mockSender{}, []Job{
			{Periodicity: "@daily", Topic: "a"},
			{Periodicity: "whenever", Topic: "b"},
		})
		var jobErr *JobError
		require.True(t, errors.As(err, &jobErr))
		assert.Equal(t, 1, jobErr.Index)
		assert.Equal(t, "whenever", jobErr.Periodicity)
	})
}

func TestFire(t *testing.T) {
	ctx := context.Background()
	text := "ping"
	job := Job{Periodicity: "@hourly", Topic: "heartbeat", Message: contracts.MessageTemplate{Text: &text}}

	sender := &mockSender{}
	sender.On("Send", ctx, "heartbeat", mock.MatchedBy(func(msg contracts.Message) bool {
		return msg.Text == "ping" && msg.Type == contracts.Unknown && len(msg.Params) == 0
	})).Return(nil)

	s, err := New(sender, []Job{job})
	require.NoError(t, err)
	require.NoError(t, s.Fire(ctx, job))
	sender.AssertExpectations(t)
}

func TestRun(t *testing.T) {
	t.Run("fires every second until cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		fired := make(chan struct{}, 10)

		sender := &mockSender{}
		sender.On("Send", mock.Anything, "tick", mock.Anything).
			Run(func(mock.Arguments) { fired <- struct{}{} }).
			Return(nil)

		s, err := New(sender, []Job{{Periodicity: "* * * * * *", Topic: "tick"}})
		require.NoError(t, err)

		done := make(chan error, 1)
		go func() { done <- s.Run(ctx) }()

		select {
		case <-fired:
		case <-time.After(3 * time.Second):
			t.Fatal("job did not fire")
		}
		cancel()
		assert.ErrorIs(t, <-done, context.Canceled)
	})

	t.Run("send failure stops the scheduler", func(t *testing.T) {
		sender := &mockSender{}
		sender.On("Send", mock.Anything, "tick", mock.Anything).Return(errors.New("broker down"))

		s, err := New(sender, []Job{{Periodicity: "* * * * * *", Topic: "tick"}})
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		assert.EqualError(t, s.Run(ctx), "broker down")
	})
}
