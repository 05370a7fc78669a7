package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// errEmptyKey guards against zero-length keys, which badger would
// otherwise reject with a less helpful error from inside the
// transaction.
var errEmptyKey = errors.New("empty key")

// BadgerDB implements DB using Badger.
type BadgerDB struct {
	db *badger.DB
}

// NewBadger opens a Badger database at the given path. Badger's own
// logger is silenced; store operations surface errors to the caller
// instead.
func NewBadger(path string) (*BadgerDB, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		if lockedDir(err) {
			return nil, fmt.Errorf("database at %s is locked by another process (is another hornetd instance running?): %w", path, err)
		}
		return nil, fmt.Errorf("open database at %s: %w", path, err)
	}
	return &BadgerDB{db: db}, nil
}

// lockedDir reports whether an open failure means another process
// holds the directory lock.
func lockedDir(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Cannot acquire directory lock") ||
		strings.Contains(msg, "resource temporarily unavailable")
}

// view runs one read transaction over key, handing the resolved item to
// fn. A nil fn probes for bare existence.
func (b *BadgerDB) view(key []byte, fn func(*badger.Item) error) error {
	if len(key) == 0 {
		return errEmptyKey
	}
	return b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		if fn == nil {
			return nil
		}
		return fn(item)
	})
}

// Get retrieves a copy of the value stored at key. The copy outlives
// the transaction, as the DB contract requires.
func (b *BadgerDB) Get(key []byte) ([]byte, error) {
	var val []byte
	err := b.view(key, func(item *badger.Item) error {
		var cerr error
		val, cerr = item.ValueCopy(nil)
		return cerr
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return val, nil
}

// Has checks whether key exists without reading its value.
func (b *BadgerDB) Has(key []byte) (bool, error) {
	err := b.view(key, nil)
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("badger has: %w", err)
	}
	return true, nil
}

// Put stores a key-value pair.
func (b *BadgerDB) Put(key, value []byte) error {
	if len(key) == 0 {
		return errEmptyKey
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("badger put: %w", err)
	}
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (b *BadgerDB) Delete(key []byte) error {
	if len(key) == 0 {
		return errEmptyKey
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("badger delete: %w", err)
	}
	return nil
}

// ForEach iterates over all keys with the given prefix in key order.
// Keys and values are copied out of the transaction before fn sees
// them; badger's zero-copy Value callback hands out memory that is only
// valid inside the transaction, which the DB contract forbids leaking.
func (b *BadgerDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(item.KeyCopy(nil), val); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the database, flushing pending writes.
func (b *BadgerDB) Close() error {
	return b.db.Close()
}
