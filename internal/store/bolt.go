package store

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bolt is the durable KV backed by a single bbolt bucket.
// It is safe for concurrent use by multiple goroutines.
type Bolt struct {
	db      *bolt.DB
	bucket  []byte
	hub     *Hub
	created bool
	mu      sync.Mutex
}

type BoltOptions struct {
	// Bucket is the name of the Bolt bucket to use.
	Bucket string
	// Timeout bounds how long Open waits for the file lock.
	Timeout time.Duration
}

// OpenBolt initializes or opens a Bolt store at the given path.
func OpenBolt(path string, opts BoltOptions) (*Bolt, error) {
	_, statErr := os.Stat(path)
	created := errors.Is(statErr, os.ErrNotExist)

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 1 * time.Second
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, err
	}
	bucket := []byte("imoney")
	if opts.Bucket != "" {
		bucket = []byte(opts.Bucket)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Bolt{db: db, bucket: bucket, hub: NewHub(), created: created}, nil
}

// Created reports whether OpenBolt created the database file.
func (s *Bolt) Created() bool { return s.created }

// Close closes the underlying database.
func (s *Bolt) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the stored value or ErrNotFound.
func (s *Bolt) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []byte
	if err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(s.bucket).Get([]byte(key))
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, ErrNotFound
	}
	return out, nil
}

// Set replaces the value under key in one transaction and notifies watchers.
func (s *Bolt) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Held across commit and publish so watchers see changes in commit order.
	s.mu.Lock()
	defer s.mu.Unlock()
	var old []byte
	if err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if v := b.Get([]byte(key)); v != nil {
			old = append([]byte(nil), v...)
		}
		return b.Put([]byte(key), value)
	}); err != nil {
		return err
	}
	s.hub.Publish(Change{Key: key, OldValue: old, NewValue: append([]byte{}, value...)})
	return nil
}

// Delete removes a key. Deleting a missing key is not an error and emits no change.
func (s *Bolt) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var old []byte
	if err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		v := b.Get([]byte(key))
		if v == nil {
			return nil
		}
		old = append([]byte(nil), v...)
		return b.Delete([]byte(key))
	}); err != nil {
		return err
	}
	if old != nil {
		s.hub.Publish(Change{Key: key, OldValue: old})
	}
	return nil
}

// Watch subscribes to changes made through this store.
func (s *Bolt) Watch(ctx context.Context) (<-chan Change, error) {
	return s.hub.Subscribe(ctx), nil
}
