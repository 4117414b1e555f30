// Package boltstore implements checkpoint.Store on an embedded bbolt file.
package boltstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/hupe1980/threadmesh/checkpoint"
)

var bucketName = []byte("checkpoints")

type record struct {
	State     json.RawMessage `json:"state"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store keeps one record per thread id in a single bucket.
type Store struct {
	db   *bolt.DB
	opts checkpoint.Options
}

// Open opens (or creates) the database file at path.
func Open(path string, optFns ...func(o *checkpoint.Options)) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	opts := checkpoint.DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{db: db, opts: opts}, nil
}

// Close releases the database file.
func (s *Store) Close() error { return s.db.Close() }

// Save replaces the record of threadID.
func (s *Store) Save(ctx context.Context, threadID string, state json.RawMessage) error {
	if err := checkpoint.CheckThreadID(threadID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return checkpoint.Wrap("save", threadID, err)
	}
	enc, err := json.Marshal(record{State: state, CreatedAt: s.opts.Now().UTC()})
	if err != nil {
		return checkpoint.Wrap("save", threadID, err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(threadID), enc)
	})
	return checkpoint.Wrap("save", threadID, err)
}

// Get loads the record of threadID.
func (s *Store) Get(ctx context.Context, threadID string) (*checkpoint.Checkpoint, bool, error) {
	if err := checkpoint.CheckThreadID(threadID); err != nil {
		return nil, false, err
	}
	if err := ctx.Err(); err != nil {
		return nil, false, checkpoint.Wrap("get", threadID, err)
	}
	var rec *record
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get([]byte(threadID))
		if v == nil {
			return nil
		}
		rec = &record{}
		// v is only valid inside the transaction; Unmarshal copies it.
		return json.Unmarshal(v, rec)
	})
	if err != nil {
		return nil, false, checkpoint.Wrap("get", threadID, err)
	}
	if rec == nil {
		return nil, false, nil
	}
	return &checkpoint.Checkpoint{ThreadID: threadID, State: rec.State, CreatedAt: rec.CreatedAt}, true, nil
}

// Delete removes the record of threadID.
func (s *Store) Delete(ctx context.Context, threadID string) (bool, error) {
	if err := checkpoint.CheckThreadID(threadID); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, checkpoint.Wrap("delete", threadID, err)
	}
	existed := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b.Get([]byte(threadID)) == nil {
			return nil
		}
		existed = true
		return b.Delete([]byte(threadID))
	})
	if err != nil {
		return false, checkpoint.Wrap("delete", threadID, err)
	}
	return existed, nil
}
