package core

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-channel/internal/metrics"
	"github.com/vovakirdan/wirechat-channel/internal/store"
)

// ErrHubStopped is returned when a channel is requested after the hub stopped.
var ErrHubStopped = errors.New("hub stopped")

// SnapshotFactory returns the snapshot store scoped to one channel.
type SnapshotFactory func(channelKey string) store.SnapshotStore

// HubDeps are shared by every channel the hub creates.
type HubDeps struct {
	Messages  store.MessageStore
	Users     store.UserDirectory
	Snapshots SnapshotFactory
	Metrics   *metrics.Metrics
	Logger    *zerolog.Logger
}

// Hub maps channel keys to running actors. Actors are created on first use
// and run until the hub is stopped.
type Hub struct {
	opts   Options
	deps   HubDeps
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	channels map[string]*Channel
	stopped  bool
}

// NewHub creates a hub. Call Run to tie its lifetime to a context.
func NewHub(opts Options, deps HubDeps) *Hub {
	logger := zerolog.Nop()
	if deps.Logger != nil {
		logger = *deps.Logger
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		opts:     opts,
		deps:     deps,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		channels: make(map[string]*Channel),
	}
}

// Run blocks until ctx is done, then stops every channel and waits for them.
func (h *Hub) Run(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-h.ctx.Done():
	}
	h.Stop()
}

// Stop cancels every channel actor and waits for them to return.
func (h *Hub) Stop() {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()

	h.cancel()
	h.wg.Wait()
}

// Channel returns the actor for key, starting it on first use. A new actor
// gets key as its identity before any other work is queued.
func (h *Hub) Channel(key string) (*Channel, error) {
	if key == "" {
		return nil, coreError(ErrCodeBadRequest, "channel key is required")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return nil, ErrHubStopped
	}
	if ch, ok := h.channels[key]; ok {
		return ch, nil
	}

	deps := Deps{
		Messages: h.deps.Messages,
		Users:    h.deps.Users,
		Metrics:  h.deps.Metrics,
		Logger:   &h.logger,
	}
	if h.deps.Snapshots != nil {
		deps.Snapshots = h.deps.Snapshots(key)
	}
	ch := NewChannel(key, h.opts, deps)

	// The inbox is empty, so this does not block.
	err := ch.enqueue(h.ctx, func(ctx context.Context) {
		if err := ch.initIdentity(ctx, key); err != nil {
			ch.logger.Error().Err(err).Msg("failed to assign channel identity")
		}
	})
	if err != nil {
		return nil, err
	}

	h.channels[key] = ch
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ch.Run(h.ctx)
	}()

	h.logger.Info().Str("channel", key).Msg("channel started")
	return ch, nil
}

// Len returns the number of running channels.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.channels)
}
