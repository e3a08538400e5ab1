// Package sidecar stores small auxiliary metadata next to a dataset as a
// key/value database keyed by basename. The store backs onto BadgerDB; the
// sidecar path is a directory holding the database files.
//
// The contract is deliberately narrow — existence check, key listing, bulk
// read, bulk write — and every call opens and closes the database, so a
// sidecar is never held open between operations and cannot leak into the
// dataset's own resource lifecycle.
package sidecar

import (
	"errors"
	"fmt"
	"os"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/voxstream/pkg/voxel"
)

func open(path string, readOnly bool) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithReadOnly(readOnly)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("sidecar %q: %w", path, err)
	}
	return db, nil
}

// Exists reports whether a sidecar database is present at path.
func Exists(path string) bool {
	fi, err := os.Stat(path)
	if err != nil || !fi.IsDir() {
		return false
	}
	entries, err := os.ReadDir(path)
	return err == nil && len(entries) > 0
}

// ListKeys returns every key in the sidecar, or nil when the sidecar does
// not exist.
func ListKeys(path string) ([]string, error) {
	if !Exists(path) {
		return nil, nil
	}
	db, err := open(path, true)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var keys []string
	err = db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Read returns the values for the requested keys. With no keys, every
// entry is returned. Missing keys are omitted from the result rather than
// failing, matching the optional-recall semantics of sidecar metadata.
func Read(path string, keys ...string) (map[string][]byte, error) {
	if !Exists(path) {
		return nil, fmt.Errorf("%w: sidecar %q", voxel.ErrNotFound, path)
	}
	db, err := open(path, true)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	out := make(map[string][]byte)
	err = db.View(func(txn *badger.Txn) error {
		if len(keys) == 0 {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Rewind(); it.Valid(); it.Next() {
				item := it.Item()
				v, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				out[string(item.KeyCopy(nil))] = v
			}
			return nil
		}
		for _, k := range keys {
			item, err := txn.Get([]byte(k))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out[k] = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Write stores the given entries. With cleanRewrite set, every existing
// key is dropped first so the sidecar ends up holding exactly kv.
func Write(path string, kv map[string][]byte, cleanRewrite bool) error {
	db, err := open(path, false)
	if err != nil {
		return err
	}
	defer db.Close()

	if cleanRewrite {
		if err := db.DropAll(); err != nil {
			return err
		}
	}
	return db.Update(func(txn *badger.Txn) error {
		for k, v := range kv {
			if err := txn.Set([]byte(k), v); err != nil {
				return err
			}
		}
		return nil
	})
}
