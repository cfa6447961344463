package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketSession = []byte("session")
	currentKey    = []byte("current")
)

// BoltCache keeps the session in a bbolt file so it survives restarts.
type BoltCache struct {
	db *bbolt.DB
}

func OpenBoltCache(path string) (*BoltCache, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSession)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create session bucket: %w", err)
	}

	return &BoltCache{db: db}, nil
}

func (c *BoltCache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *BoltCache) Load(_ context.Context) (Session, error) {
	var s Session

	err := c.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSession)
		if bucket == nil {
			return errors.New("session bucket not found")
		}

		data := bucket.Get(currentKey)
		if data == nil {
			return ErrNoSession
		}
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("unmarshal session: %w", err)
		}
		return nil
	})
	if err != nil {
		return Session{}, err
	}

	return s, nil
}

func (c *BoltCache) Save(_ context.Context, s Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	return c.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSession)
		if bucket == nil {
			return errors.New("session bucket not found")
		}
		return bucket.Put(currentKey, data)
	})
}

func (c *BoltCache) Clear(_ context.Context) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSession)
		if bucket == nil {
			return nil
		}
		return bucket.Delete(currentKey)
	})
}
