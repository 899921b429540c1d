package core

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-channel/internal/proto"
	"github.com/vovakirdan/wirechat-channel/internal/store"
	"github.com/vovakirdan/wirechat-channel/internal/store/pebblekv"
	"github.com/vovakirdan/wirechat-channel/internal/store/sqlite"
)

var errInjected = errors.New("injected failure")

// fakeConn records decoded frames. Send fails once failing is set or after Close.
type fakeConn struct {
	frames  chan proto.Outbound
	failing atomic.Bool

	mu     sync.Mutex
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan proto.Outbound, 1024)}
}

func (f *fakeConn) Send(payload []byte) error {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed || f.failing.Load() {
		return errors.New("connection closed")
	}
	var out proto.Outbound
	if err := json.Unmarshal(payload, &out); err != nil {
		return err
	}
	f.frames <- out
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// mustEvent waits for the next frame of the given type, skipping others.
func mustEvent(t *testing.T, conn *fakeConn, typ string) proto.Outbound {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case out := <-conn.frames:
			if out.Type == typ {
				return out
			}
		case <-deadline:
			t.Fatalf("expected event %q not received", typ)
			return proto.Outbound{}
		}
	}
}

// expectNoEvent fails if a frame of the given type arrives within wait.
func expectNoEvent(t *testing.T, conn *fakeConn, typ string, wait time.Duration) {
	t.Helper()

	deadline := time.After(wait)
	for {
		select {
		case out := <-conn.frames:
			if out.Type == typ {
				t.Fatalf("unexpected event %q: %+v", typ, out)
			}
		case <-deadline:
			return
		}
	}
}

func messageIDs(msgs []Message) []string {
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	return ids
}

// faultyMessages fails writes while failing is set and reports rows as
// missing while missing is set.
type faultyMessages struct {
	store.MessageStore
	failing atomic.Bool
	missing atomic.Bool
}

func (f *faultyMessages) InsertMessage(ctx context.Context, msg *store.Message) error {
	if f.failing.Load() {
		return errInjected
	}
	return f.MessageStore.InsertMessage(ctx, msg)
}

func (f *faultyMessages) UpdateMessageContent(ctx context.Context, id, content string, editedAt time.Time) error {
	if f.failing.Load() {
		return errInjected
	}
	if f.missing.Load() {
		return store.ErrNotFound
	}
	return f.MessageStore.UpdateMessageContent(ctx, id, content, editedAt)
}

func (f *faultyMessages) MarkMessageDeleted(ctx context.Context, id string) error {
	if f.failing.Load() {
		return errInjected
	}
	if f.missing.Load() {
		return store.ErrNotFound
	}
	return f.MessageStore.MarkMessageDeleted(ctx, id)
}

// faultySnapshots fails puts while failing is set.
type faultySnapshots struct {
	store.SnapshotStore
	failing atomic.Bool
}

func (f *faultySnapshots) Put(ctx context.Context, key string, value []byte) error {
	if f.failing.Load() {
		return errInjected
	}
	return f.SnapshotStore.Put(ctx, key, value)
}

type testEnv struct {
	db        *sqlite.SQLiteStore
	kv        *pebblekv.KV
	messages  *faultyMessages
	snapshots *faultySnapshots
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.NewWithSetup(":memory:", sqlite.ApplySchema)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	kv, err := pebblekv.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	return &testEnv{
		db:        db,
		kv:        kv,
		messages:  &faultyMessages{MessageStore: db},
		snapshots: &faultySnapshots{SnapshotStore: kv.Bucket("general")},
	}
}

func (e *testEnv) deps() Deps {
	return Deps{
		Messages:  e.messages,
		Users:     e.db,
		Snapshots: e.snapshots,
	}
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.TypingTimeout = 50 * time.Millisecond
	opts.HeartbeatInterval = time.Hour
	return opts
}

// startChannel runs an initialized channel until the test ends.
func startChannel(t *testing.T, opts Options, deps Deps) *Channel {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	ch := NewChannel("general", opts, deps)
	go ch.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-ch.Done()
	})
	require.NoError(t, ch.Init(ctx, "general"))
	return ch
}

// join connects userID and drains its init and user_list frames.
func join(t *testing.T, ch *Channel, userID string) *fakeConn {
	t.Helper()

	conn := newFakeConn()
	_, err := ch.Connect(context.Background(), Member{UserID: userID, DisplayName: userID}, conn)
	require.NoError(t, err)
	mustEvent(t, conn, proto.OutboundTypeInit)
	mustEvent(t, conn, proto.OutboundTypeUserList)
	return conn
}

func submit(t *testing.T, ch *Channel, cmd Command) {
	t.Helper()
	require.NoError(t, ch.Submit(context.Background(), cmd))
}

func sendText(t *testing.T, ch *Channel, userID, content string) {
	t.Helper()
	submit(t, ch, Command{Kind: CommandSendMessage, UserID: userID, Content: content})
}

// flush waits until everything queued before it has been processed.
func flush(t *testing.T, ch *Channel) {
	t.Helper()
	_, err := ch.Messages(context.Background())
	require.NoError(t, err)
}
