// Package leveldb wraps a LevelDB database behind the benchmark's store
// interface, for comparison runs against the kv engine.
package leveldb

import (
	"github.com/jmhodges/levigo"
)

// Database is a handle to a LevelDB instance.
type Database struct {
	db *levigo.DB
	wo *levigo.WriteOptions
	ro *levigo.ReadOptions
}

func levelDbOpts() *levigo.Options {
	opts := levigo.NewOptions()
	opts.SetCreateIfMissing(true)
	opts.SetCompression(levigo.NoCompression)

	// performance-related configuration
	cache := levigo.NewLRUCache(0)
	opts.SetCache(cache)
	// 4MB is the default
	opts.SetWriteBufferSize(4 * 1024 * 1024)

	return opts
}

// New creates a LevelDB instance at path, creating the directory if it does
// not exist.
func New(path string) *Database {
	db, err := levigo.Open(path, levelDbOpts())
	if err != nil {
		panic(err)
	}
	return &Database{db, levigo.NewWriteOptions(), levigo.NewReadOptions()}
}

// Get retrieves a key from the database.
func (d *Database) Get(key []byte) ([]byte, bool) {
	data, err := d.db.Get(d.ro, key)
	if err != nil {
		panic(err)
	}
	if data == nil {
		return nil, false
	}
	return data, true
}

// Put inserts a key into the database.
func (d *Database) Put(key, value []byte) {
	if err := d.db.Put(d.wo, key, value); err != nil {
		panic(err)
	}
}

// Delete deletes a key from the database.
func (d *Database) Delete(key []byte) {
	if err := d.db.Delete(d.wo, key); err != nil {
		panic(err)
	}
}

// Compact runs log and sstable compaction over the whole key space.
func (d *Database) Compact() {
	d.db.CompactRange(levigo.Range{})
}

// Close shuts down the database.
func (d *Database) Close() {
	d.wo.Close()
	d.ro.Close()
	d.db.Close()
}
