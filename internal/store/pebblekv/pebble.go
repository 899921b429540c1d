// Package pebblekv provides the durable key-value snapshot store backed by cockroachdb/pebble.
package pebblekv

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/vovakirdan/wirechat-channel/internal/store"
)

// KV is a pebble database shared by all channels. Each channel reads and writes
// through its own Bucket, which prefixes keys with the channel key.
type KV struct {
	db *pebble.DB
}

// Open opens (or creates) a pebble database in dir.
func Open(dir string) (*KV, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}
	return &KV{db: db}, nil
}

// OpenInMemory opens a pebble database that lives only in memory.
func OpenInMemory() (*KV, error) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, fmt.Errorf("open in-memory pebble: %w", err)
	}
	return &KV{db: db}, nil
}

// Close closes the database.
func (k *KV) Close() error {
	return k.db.Close()
}

// Bucket returns the snapshot store of one channel.
func (k *KV) Bucket(channelKey string) *Bucket {
	return &Bucket{db: k.db, prefix: "channel/" + channelKey + "/"}
}

// Bucket is a store.SnapshotStore over a key prefix.
type Bucket struct {
	db     *pebble.DB
	prefix string
}

// Get returns a copy of the value stored under key.
func (b *Bucket) Get(_ context.Context, key string) ([]byte, error) {
	v, closer, err := b.db.Get([]byte(b.prefix + key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("snapshot %s: %w", key, store.ErrNotFound)
		}
		return nil, fmt.Errorf("get snapshot %s: %w", key, err)
	}
	defer closer.Close()

	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Put stores value under key with a synced write.
func (b *Bucket) Put(_ context.Context, key string, value []byte) error {
	if err := b.db.Set([]byte(b.prefix+key), value, pebble.Sync); err != nil {
		return fmt.Errorf("put snapshot %s: %w", key, err)
	}
	return nil
}

var _ store.SnapshotStore = (*Bucket)(nil)
