// Package keystore implements the key storage served by the keywarden
// daemon. Keys are named records holding opaque cryptographic material,
// persisted in a BadgerDB database under the service lib directory.
package keystore

import (
	"context"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// Key is a stored key record. Material is opaque to the store.
type Key struct {
	// ID is the stable identifier assigned at creation.
	ID string `json:"id"`

	// Name is the user-facing name. Names are unique within a store;
	// putting an existing name replaces the material.
	Name string `json:"name"`

	// Algorithm labels the key material (e.g. "ed25519", "slh-dsa-sha2-256f").
	Algorithm string `json:"algorithm"`

	// Material is the raw key bytes.
	Material []byte `json:"material"`

	// CreatedAt is the creation timestamp of the current record.
	CreatedAt time.Time `json:"created_at"`
}

// Store is a BadgerDB-backed key store. It is safe for concurrent use.
type Store struct {
	db *badger.DB
}

// Open opens (creating if necessary) the store rooted at dir.
//
// With inMemory set the database lives entirely in memory and dir is
// ignored; ephemeral service contexts use this so throwaway environments
// leave nothing behind.
func Open(dir string, inMemory bool) (*Store, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithInMemory(inMemory)
	if inMemory {
		opts.Dir = ""
		opts.ValueDir = ""
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening keystore at %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores material under name, replacing any existing record. A fresh ID
// is assigned on every put.
func (s *Store) Put(ctx context.Context, name, algorithm string, material []byte) (*Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, &StoreError{Code: ErrInvalidName, Message: "key name must not be empty"}
	}

	key := &Key{
		ID:        uuid.NewString(),
		Name:      name,
		Algorithm: algorithm,
		Material:  material,
		CreatedAt: time.Now().UTC(),
	}

	value, err := encodeKey(key)
	if err != nil {
		return nil, err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyRecord(name), value)
	})
	if err != nil {
		return nil, fmt.Errorf("storing key %q: %w", name, err)
	}
	return key, nil
}

// Get retrieves the key stored under name.
// Returns ErrNotFound if the name is unknown.
func (s *Store) Get(ctx context.Context, name string) (*Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var key *Key
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyRecord(name))
		if err == badger.ErrKeyNotFound {
			return &StoreError{Code: ErrNotFound, Message: fmt.Sprintf("key %q not found", name)}
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var decErr error
			key, decErr = decodeKey(val)
			return decErr
		})
	})
	if err != nil {
		return nil, err
	}
	return key, nil
}

// List returns all stored keys ordered by name. Material is included; the
// RPC layer decides what to expose.
func (s *Store) List(ctx context.Context) ([]*Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var keys []*Key
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(prefixKey)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				key, err := decodeKey(val)
				if err != nil {
					return err
				}
				keys = append(keys, key)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	return keys, nil
}

// Delete removes the key stored under name.
// Returns ErrNotFound if the name is unknown.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(keyRecord(name)); err == badger.ErrKeyNotFound {
			return &StoreError{Code: ErrNotFound, Message: fmt.Sprintf("key %q not found", name)}
		} else if err != nil {
			return err
		}
		return txn.Delete(keyRecord(name))
	})
}
