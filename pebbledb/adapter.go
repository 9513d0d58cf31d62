// Package pebbledb wraps a Pebble database behind the benchmark's store
// interface, for comparison runs against the kv engine.
package pebbledb

import (
	"errors"

	"github.com/cockroachdb/pebble"
)

// Database is a handle to a Pebble instance.
type Database struct {
	db *pebble.DB
}

// New opens a Pebble database at path, creating it if absent.
func New(path string) *Database {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		panic(err)
	}
	return &Database{db}
}

// Get retrieves a key from the database.
func (d *Database) Get(key []byte) ([]byte, bool) {
	value, closer, err := d.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false
	}
	if err != nil {
		panic(err)
	}
	out := append([]byte{}, value...)
	if err := closer.Close(); err != nil {
		panic(err)
	}
	return out, true
}

// Put inserts a key into the database.
func (d *Database) Put(key, value []byte) {
	if err := d.db.Set(key, value, pebble.NoSync); err != nil {
		panic(err)
	}
}

// Delete deletes a key from the database.
func (d *Database) Delete(key []byte) {
	if err := d.db.Delete(key, pebble.NoSync); err != nil {
		panic(err)
	}
}

// Compact compacts the whole key space.
func (d *Database) Compact() {
	if err := d.db.Compact([]byte{0}, []byte{0xff, 0xff, 0xff, 0xff}, true); err != nil {
		panic(err)
	}
}

// Close shuts down the database.
func (d *Database) Close() {
	if err := d.db.Close(); err != nil {
		panic(err)
	}
}
