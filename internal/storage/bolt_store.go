package storage

import (
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// Bucket names for bbolt storage
var (
	localBucket   = []byte("local")
	cookiesBucket = []byte("cookies")
)

// Error types
var (
	ErrKeyNotFound = errors.New("key not found")
	ErrEmptyKey    = errors.New("key cannot be empty")
)

// BoltStore persists extension state in a single bbolt file.
type BoltStore struct {
	db   *bbolt.DB
	path string
}

// Open opens or creates the database at path and initializes the buckets.
func Open(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(localBucket); err != nil {
			return fmt.Errorf("failed to create local bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists(cookiesBucket); err != nil {
			return fmt.Errorf("failed to create cookies bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (b *BoltStore) Path() string {
	return b.path
}

// Close releases all database resources.
func (b *BoltStore) Close() error {
	return b.db.Close()
}

// Set stores value under key in the local area, overwriting any previous value.
func (b *BoltStore) Set(key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(localBucket).Put([]byte(key), []byte(value))
	})
}

// Get returns the value stored under key, or ErrKeyNotFound.
func (b *BoltStore) Get(key string) (string, error) {
	var value string
	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(localBucket).Get([]byte(key))
		if v == nil {
			return ErrKeyNotFound
		}
		// bbolt memory is only valid inside the transaction
		value = string(v)
		return nil
	})
	return value, err
}

// GetMany returns the values of the keys that exist.
func (b *BoltStore) GetMany(keys ...string) (map[string]string, error) {
	values := make(map[string]string, len(keys))
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(localBucket)
		for _, key := range keys {
			if v := bucket.Get([]byte(key)); v != nil {
				values[key] = string(v)
			}
		}
		return nil
	})
	return values, err
}

// Delete removes key from the local area. Missing keys are not an error.
func (b *BoltStore) Delete(key string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(localBucket).Delete([]byte(key))
	})
}
