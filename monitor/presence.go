package monitor

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/alfredmq/alfred-go/contracts"
)

// Peer is a module that announced itself
type Peer struct {
	Name         string
	Capabilities map[string]string
	LastSeen     time.Time
}

// Topics returns the topics the peer listens to
func (p Peer) Topics() []string {
	listened := p.Capabilities[contracts.ListenCapability]
	if listened == "" {
		return nil
	}
	return strings.Split(listened, ",")
}

// Directory records the latest ModuleInfo of every peer
type Directory struct {
	mu    sync.RWMutex
	peers map[string]Peer
	now   func() time.Time
}

// NewDirectory creates an empty directory
func NewDirectory() *Directory {
	return &Directory{
		peers: make(map[string]Peer),
		now:   time.Now,
	}
}

// Observe records msg when it is a module announcement and reports whether it was
func (d *Directory) Observe(topic string, msg contracts.Message) bool {
	if topic != contracts.ModuleInfoResponseTopic || msg.Type != contracts.ModuleInfo || msg.Text == "" {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.peers[msg.Text] = Peer{
		Name:         msg.Text,
		Capabilities: maps.Clone(msg.Params),
		LastSeen:     d.now(),
	}
	return true
}

// Get returns the peer called name
func (d *Directory) Get(name string) (Peer, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.peers[name]
	return p, ok
}

// Peers returns every known peer sorted by name
func (d *Directory) Peers() []Peer {
	d.mu.RLock()
	peers := slices.Collect(maps.Values(d.peers))
	d.mu.RUnlock()

	slices.SortFunc(peers, func(a, b Peer) int {
		return strings.Compare(a.Name, b.Name)
	})
	return peers
}

// Len returns the number of known peers
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.peers)
}

// Expire forgets peers not seen for longer than maxAge and returns their names
func (d *Directory) Expire(maxAge time.Duration) []string {
	cutoff := d.now().Add(-maxAge)

	d.mu.Lock()
	defer d.mu.Unlock()
	var expired []string
	for name, p := range d.peers {
		if p.LastSeen.Before(cutoff) {
			delete(d.peers, name)
			expired = append(expired, name)
		}
	}
	slices.Sort(expired)
	return expired
}

// Endpoint is the part of a module discovery needs
type Endpoint interface {
	Name() string
	Listen(ctx context.Context, topic string) error
	Send(ctx context.Context, topic string, msg contracts.Message) error
	Receive(ctx context.Context) (string, contracts.Message, error)
}

// Discover broadcasts a module.info.request and collects every announcement
// received within wait. The endpoint's own announcement is ignored.
func (d *Directory) Discover(ctx context.Context, endpoint Endpoint, wait time.Duration) ([]Peer, error) {
	if err := endpoint.Listen(ctx, contracts.ModuleInfoResponseTopic); err != nil {
		return nil, err
	}
	if err := endpoint.Send(ctx, contracts.ModuleInfoRequestTopic, contracts.Message{}); err != nil {
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	seen := make(map[string]bool)
	var found []Peer
	for {
		topic, msg, err := endpoint.Receive(waitCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return found, nil
			}
			return found, err
		}
		if msg.Text == endpoint.Name() || !d.Observe(topic, msg) || seen[msg.Text] {
			continue
		}
		seen[msg.Text] = true
		p, _ := d.Get(msg.Text)
		found = append(found, p)
	}
}
