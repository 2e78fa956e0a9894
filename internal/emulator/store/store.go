// Package store persists emulator data in a bbolt database.
package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")

	// ErrInvalid is returned for records that fail validation.
	ErrInvalid = errors.New("invalid record")
)

// Bucket names.
const (
	BucketSessions  = "sessions"
	BucketMutations = "mutations"
	BucketLedgers   = "ledgers"
	BucketRelations = "relations"
)

var buckets = []string{BucketSessions, BucketMutations, BucketLedgers, BucketRelations}

// Store wraps the bbolt database.
type Store struct {
	db *bolt.DB
}

// New opens the database at dbPath and creates the buckets.
func New(dbPath string) (*Store, error) {
	db, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func bucket(tx *bolt.Tx, name string) (*bolt.Bucket, error) {
	b := tx.Bucket([]byte(name))
	if b == nil {
		return nil, fmt.Errorf("bucket %s not found", name)
	}
	return b, nil
}

// insert stores value under a new sequence ID. assign receives the ID
// before the value is encoded.
func (s *Store) insert(name string, assign func(id int64), value interface{}) (int64, error) {
	var id int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, name)
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		id = int64(seq)
		assign(id)
		return putJSON(b, id, value)
	})
	return id, err
}

// put stores value under an explicit ID and moves the sequence past it.
func (s *Store) put(name string, id int64, value interface{}) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, name)
		if err != nil {
			return err
		}
		if uint64(id) > b.Sequence() {
			if err := b.SetSequence(uint64(id)); err != nil {
				return err
			}
		}
		return putJSON(b, id, value)
	})
}

func putJSON(b *bolt.Bucket, id int64, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return b.Put(itob(id), data)
}

// get decodes the record with the given ID into value.
func (s *Store) get(name string, id int64, value interface{}) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b, err := bucket(tx, name)
		if err != nil {
			return err
		}
		data := b.Get(itob(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, value)
	})
}

// each calls fn for every record in ID order. The data is only valid
// during the call.
func (s *Store) each(name string, fn func(data []byte) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b, err := bucket(tx, name)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			return fn(v)
		})
	})
}

// putString stores a string value with a string key.
func (s *Store) putString(name, key, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, name)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), []byte(value))
	})
}

// getString retrieves a string value with a string key.
func (s *Store) getString(name, key string) (string, error) {
	var value string
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := bucket(tx, name)
		if err != nil {
			return err
		}
		data := b.Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		value = string(data)
		return nil
	})
	return value, err
}

func (s *Store) deleteString(name, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, name)
		if err != nil {
			return err
		}
		return b.Delete([]byte(key))
	})
}

// itob converts an int64 to a big-endian key so ForEach iterates in ID order.
func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}
