package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-channel/internal/metrics"
	"github.com/vovakirdan/wirechat-channel/internal/store"
	"github.com/vovakirdan/wirechat-channel/internal/utils"
)

// Options tune a channel actor.
type Options struct {
	MaxContentLength    int
	WindowSoftCap       int
	WindowTrimTo        int
	HydrateLimit        int
	HistoryDefaultLimit int
	HistoryMaxLimit     int
	TypingTimeout       time.Duration
	HeartbeatInterval   time.Duration
	InboxSize           int
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		MaxContentLength:    2000,
		WindowSoftCap:       100,
		WindowTrimTo:        50,
		HydrateLimit:        50,
		HistoryDefaultLimit: 50,
		HistoryMaxLimit:     200,
		TypingTimeout:       5 * time.Second,
		HeartbeatInterval:   30 * time.Second,
		InboxSize:           64,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MaxContentLength <= 0 {
		o.MaxContentLength = def.MaxContentLength
	}
	if o.WindowSoftCap <= 0 {
		o.WindowSoftCap = def.WindowSoftCap
	}
	if o.WindowTrimTo <= 0 {
		o.WindowTrimTo = def.WindowTrimTo
	}
	if o.HydrateLimit <= 0 {
		o.HydrateLimit = def.HydrateLimit
	}
	if o.HistoryDefaultLimit <= 0 {
		o.HistoryDefaultLimit = def.HistoryDefaultLimit
	}
	if o.HistoryMaxLimit <= 0 {
		o.HistoryMaxLimit = def.HistoryMaxLimit
	}
	if o.TypingTimeout <= 0 {
		o.TypingTimeout = def.TypingTimeout
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = def.HeartbeatInterval
	}
	if o.InboxSize <= 0 {
		o.InboxSize = def.InboxSize
	}
	return o
}

// Deps are the collaborators of a channel actor. Messages is required;
// the others may be nil.
type Deps struct {
	Messages  store.MessageStore
	Users     store.UserDirectory
	Snapshots store.SnapshotStore
	Metrics   *metrics.Metrics
	Logger    *zerolog.Logger
	Now       func() time.Time
	NewID     func() string
}

// lifecycle is the phase of a running actor. Before Run an actor is
// uninitialized; work queued then waits in the inbox.
type lifecycle int

const (
	stateHydrating lifecycle = iota
	stateActive
	stateStopped
)

func (s lifecycle) String() string {
	switch s {
	case stateHydrating:
		return "hydrating"
	case stateActive:
		return "active"
	default:
		return "stopped"
	}
}

// op is a unit of work executed by the actor goroutine.
type op func(ctx context.Context)

// Channel is the single-writer actor owning the live state of one channel.
// All state below inbox is touched only from the Run goroutine.
type Channel struct {
	key     string
	opts    Options
	deps    Deps
	logger  zerolog.Logger
	metrics *metrics.Metrics

	inbox chan op
	done  chan struct{}

	channelID string
	window    *Window
	sessions  *SessionRegistry
	members   map[string]*Member
	typing    *TypingTracker
	lastStamp time.Time
}

// NewChannel creates an actor for the channel identified by key.
// Commands submitted before Run starts are queued until hydration completes.
func NewChannel(key string, opts Options, deps Deps) *Channel {
	opts = opts.withDefaults()
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = utils.NewID
	}
	logger := zerolog.Nop()
	if deps.Logger != nil {
		logger = deps.Logger.With().Str("channel", key).Logger()
	}

	c := &Channel{
		key:      key,
		opts:     opts,
		deps:     deps,
		logger:   logger,
		metrics:  deps.Metrics,
		inbox:    make(chan op, opts.InboxSize),
		done:     make(chan struct{}),
		window:   NewWindow(opts.WindowSoftCap, opts.WindowTrimTo),
		sessions: NewSessionRegistry(),
		members:  make(map[string]*Member),
	}
	c.typing = NewTypingTracker(opts.TypingTimeout, c.typingExpired)
	return c
}

// Key returns the key the actor was created for.
func (c *Channel) Key() string {
	return c.key
}

// Done is closed once Run has returned.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Run hydrates the channel and then processes queued work until ctx is cancelled.
func (c *Channel) Run(ctx context.Context) {
	defer close(c.done)

	c.metrics.ChannelStarted()
	defer c.metrics.ChannelStopped()

	c.transition(stateHydrating)
	c.hydrate(ctx)
	c.transition(stateActive)

	ticker := time.NewTicker(c.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return
		case fn := <-c.inbox:
			fn(ctx)
		case <-ticker.C:
			c.heartbeat(ctx)
		}
	}
}

func (c *Channel) transition(s lifecycle) {
	c.logger.Info().Str("state", s.String()).Msg("channel state changed")
}

func (c *Channel) shutdown() {
	c.typing.StopAll()
	for _, s := range c.sessions.AllExcept("") {
		c.sessions.Unregister(s.UserID)
		_ = s.Conn.Close()
		c.metrics.SessionClosed()
	}
	c.transition(stateStopped)
}

// enqueue hands fn to the actor without waiting for it to run.
func (c *Channel) enqueue(ctx context.Context, fn op) error {
	select {
	case <-c.done:
		return ErrChannelStopped
	default:
	}
	select {
	case c.inbox <- fn:
		return nil
	case <-c.done:
		return ErrChannelStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call hands fn to the actor and waits until it has run.
func (c *Channel) call(ctx context.Context, fn op) error {
	finished := make(chan struct{})
	err := c.enqueue(ctx, func(runCtx context.Context) {
		defer close(finished)
		fn(runCtx)
	})
	if err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-c.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrChannelStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Init assigns the channel identity. The identity can be set once; repeating
// the same identity is a no-op.
func (c *Channel) Init(ctx context.Context, channelID string) error {
	var err error
	callErr := c.call(ctx, func(runCtx context.Context) {
		err = c.initIdentity(runCtx, channelID)
	})
	if callErr != nil {
		return callErr
	}
	return err
}

// Connect registers conn as the session of member.UserID and returns the
// connection it replaced, if any. The replaced connection is left open.
// A connect whose ctx ends before the actor reaches it is skipped. When
// Connect returns an error the caller should still Disconnect conn: the
// registration may have started just before ctx ended.
func (c *Channel) Connect(ctx context.Context, member Member, conn Conn) (Conn, error) {
	var previous Conn
	err := c.call(ctx, func(runCtx context.Context) {
		if ctx.Err() != nil {
			c.logger.Debug().Str("user_id", member.UserID).Msg("skipping abandoned connect")
			return
		}
		previous = c.connect(runCtx, member, conn)
	})
	return previous, err
}

// Disconnect removes the session of userID if it is still bound to conn.
func (c *Channel) Disconnect(ctx context.Context, userID string, conn Conn) error {
	return c.enqueue(ctx, func(runCtx context.Context) {
		c.disconnect(runCtx, userID, conn)
	})
}

// Submit queues a client command for processing.
func (c *Channel) Submit(ctx context.Context, cmd Command) error {
	return c.enqueue(ctx, func(runCtx context.Context) {
		c.dispatch(runCtx, cmd)
	})
}

// History returns persisted, non-deleted messages ordered by ascending
// timestamp. A nil before returns the newest messages.
func (c *Channel) History(ctx context.Context, limit int, before *time.Time) ([]Message, error) {
	var (
		msgs []Message
		err  error
	)
	callErr := c.call(ctx, func(runCtx context.Context) {
		msgs, err = c.history(runCtx, limit, before)
	})
	if callErr != nil {
		return nil, callErr
	}
	return msgs, err
}

// Messages returns a copy of the cached window.
func (c *Channel) Messages(ctx context.Context) ([]Message, error) {
	var msgs []Message
	err := c.call(ctx, func(context.Context) {
		msgs = c.window.Snapshot()
	})
	return msgs, err
}

// Online returns the members with a live session, ordered by user ID.
func (c *Channel) Online(ctx context.Context) ([]Member, error) {
	var members []Member
	err := c.call(ctx, func(context.Context) {
		members = c.onlineMembers()
	})
	return members, err
}

func (c *Channel) typingExpired(userID string, token uint64) {
	_ = c.enqueue(context.Background(), func(ctx context.Context) {
		if c.typing.Expire(userID, token) {
			c.broadcast(ctx, Event{Kind: EventTypingStop, UserID: userID}, userID)
		}
	})
}

func (c *Channel) heartbeat(ctx context.Context) {
	if c.sessions.Len() == 0 {
		return
	}
	c.broadcast(ctx, Event{Kind: EventPing}, "")
}

// nextTimestamp returns a server timestamp strictly after the previous one.
func (c *Channel) nextTimestamp() time.Time {
	now := c.deps.Now().UTC()
	if !now.After(c.lastStamp) {
		now = c.lastStamp.Add(time.Nanosecond)
	}
	c.lastStamp = now
	return now
}
