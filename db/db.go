// Package db implements the storage engine: a write-ahead log feeding an
// in-memory memtable, sealed and flushed to immutable sstables when it
// reaches the write buffer size. Reads merge the live memtable, the sealed
// memtable, and the sstable catalog newest-first.
package db

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/niuchangsheng/kv/fs"
	"github.com/niuchangsheng/kv/sstable"
	"github.com/niuchangsheng/kv/status"
	"github.com/niuchangsheng/kv/wal"
)

const (
	walFileName  = "LOG"
	tablePattern = "0/*.sst"
)

func tableFileName(num uint64) string {
	return fmt.Sprintf("0/%d.sst", num)
}

// DB is a persistent ordered map from byte-string keys to byte-string
// values. A DB is safe for concurrent use; one mutex serializes all
// operations.
type DB struct {
	mu sync.Mutex

	opts    *Options
	name    string
	filesys fs.Filesys
	log     *zap.Logger

	mem *MemTable
	// imm is the sealed memtable, set between a seal and the completion of
	// the flush that consumes it
	imm *MemTable

	wal *wal.Writer

	nextFileNum uint64
	// catalog of open tables in creation order; reads scan newest-first
	tables    []*sstable.Reader
	tableNums []uint64
	closed    bool
}

// Open opens the database directory name, replaying the write-ahead log and
// registering existing sstables.
func Open(opts *Options, name string) (*DB, error) {
	opts = opts.withDefaults()

	exists, err := afero.DirExists(opts.FS, name)
	if err != nil {
		return nil, status.IOError("stat database directory", err)
	}
	if exists && opts.ErrorIfExists {
		return nil, status.InvalidArgument("database already exists: " + name)
	}
	if !exists {
		if !opts.CreateIfMissing {
			return nil, status.NotFound("database does not exist: " + name)
		}
		if err := opts.FS.MkdirAll(name, 0755); err != nil {
			return nil, status.IOError("create database directory", err)
		}
	}

	db := &DB{
		opts:        opts,
		name:        name,
		filesys:     fs.FromAfero(afero.NewBasePathFs(opts.FS, name)),
		log:         opts.InfoLog,
		mem:         NewMemTable(),
		nextFileNum: 1,
	}

	db.wal, err = wal.NewWriter(db.filesys, walFileName)
	if err != nil {
		return nil, err
	}

	replayed, err := db.recoverWAL()
	if err != nil {
		db.wal.Close()
		return nil, err
	}
	if err := db.openTables(); err != nil {
		db.wal.Close()
		return nil, err
	}

	db.log.Info("database opened",
		zap.String("name", name),
		zap.Int("wal_records", replayed),
		zap.Int("sstables", len(db.tables)))
	db.opts.Metrics.SetSSTableCount(len(db.tables))
	db.opts.Metrics.SetMemtableSize(db.mem.ApproximateSize())
	return db, nil
}

// memTableHandler replays WAL records into a memtable.
type memTableHandler struct {
	mem   *MemTable
	count int
}

func (h *memTableHandler) Put(key, value []byte) error {
	h.mem.Put(key, value)
	h.count++
	return nil
}

func (h *memTableHandler) Delete(key []byte) error {
	h.mem.Delete(key)
	h.count++
	return nil
}

// recoverWAL replays the log file into the live memtable. Corruption or an
// I/O error fails the open; a damaged log must not be silently truncated.
func (db *DB) recoverWAL() (int, error) {
	exists, err := db.filesys.Exists(walFileName)
	if err != nil {
		return 0, status.IOError("stat wal", err)
	}
	if !exists {
		return 0, nil
	}
	r, err := wal.NewReader(db.filesys, walFileName)
	if err != nil {
		return 0, err
	}
	defer r.Close()
	h := &memTableHandler{mem: db.mem}
	if err := r.Replay(h); err != nil {
		return 0, err
	}
	return h.count, nil
}

// openTables registers the sstables already in the directory, in creation
// order, and resumes the file number counter above them.
func (db *DB) openTables() error {
	names, err := db.filesys.Glob(tablePattern)
	if err != nil {
		return status.IOError("list sstables", err)
	}
	nums := make([]uint64, 0, len(names))
	for _, name := range names {
		var n uint64
		if _, err := fmt.Sscanf(name, "0/%d.sst", &n); err != nil {
			db.log.Warn("ignoring unrecognized table file", zap.String("file", name))
			continue
		}
		nums = append(nums, n)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	for _, n := range nums {
		r, err := sstable.Open(db.filesys, tableFileName(n))
		if err != nil {
			db.closeTables()
			return err
		}
		db.tables = append(db.tables, r)
		db.tableNums = append(db.tableNums, n)
		if n >= db.nextFileNum {
			db.nextFileNum = n + 1
		}
	}
	return nil
}

func (db *DB) closeTables() {
	for _, t := range db.tables {
		t.Close()
	}
	db.tables = nil
	db.tableNums = nil
}

func (db *DB) checkOpen() error {
	if db.closed {
		return status.InvalidArgument("database is closed")
	}
	return nil
}

// Put sets the value for key. With opts.Sync the log is forced to stable
// storage before the memtable changes.
func (db *DB) Put(opts *WriteOptions, key, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	err := db.applyOne(opts, wal.RecordPut, key, value)
	db.opts.Metrics.RecordOperation("put", err)
	return err
}

// Delete removes the entry for key. Deleting an absent key is not an error.
func (db *DB) Delete(opts *WriteOptions, key []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	err := db.applyOne(opts, wal.RecordDelete, key, nil)
	db.opts.Metrics.RecordOperation("delete", err)
	return err
}

func (db *DB) applyOne(opts *WriteOptions, t wal.RecordType, key, value []byte) error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	if err := db.wal.AddRecord(t, key, value); err != nil {
		return err
	}
	db.opts.Metrics.RecordWALAppend(13 + len(key) + len(value))
	if opts != nil && opts.Sync {
		if err := db.wal.Sync(); err != nil {
			return err
		}
	}
	if t == wal.RecordPut {
		db.mem.Put(key, value)
	} else {
		db.mem.Delete(key)
	}
	db.opts.Metrics.SetMemtableSize(db.mem.ApproximateSize())
	return db.maybeSealAndFlush()
}

// walApplier appends a batch's operations to the log.
type walApplier struct {
	db *DB
}

func (a walApplier) Put(key, value []byte) error {
	if err := a.db.wal.AddRecord(wal.RecordPut, key, value); err != nil {
		return err
	}
	a.db.opts.Metrics.RecordWALAppend(13 + len(key) + len(value))
	return nil
}

func (a walApplier) Delete(key []byte) error {
	if err := a.db.wal.AddRecord(wal.RecordDelete, key, nil); err != nil {
		return err
	}
	a.db.opts.Metrics.RecordWALAppend(13 + len(key))
	return nil
}

// memApplier applies a batch's operations to the live memtable.
type memApplier struct {
	mem *MemTable
}

func (a memApplier) Put(key, value []byte) error {
	a.mem.Put(key, value)
	return nil
}

func (a memApplier) Delete(key []byte) error {
	a.mem.Delete(key)
	return nil
}

// Write applies a batch atomically: the whole batch is appended to the log
// first, and the memtable is only touched once every append (and the
// optional sync) has succeeded. A reader observes either none or all of the
// batch.
func (db *DB) Write(opts *WriteOptions, batch *WriteBatch) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	err := db.writeLocked(opts, batch)
	db.opts.Metrics.RecordOperation("write", err)
	return err
}

func (db *DB) writeLocked(opts *WriteOptions, batch *WriteBatch) error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	if err := batch.Iterate(walApplier{db}); err != nil {
		return err
	}
	if opts != nil && opts.Sync {
		if err := db.wal.Sync(); err != nil {
			return err
		}
	}
	// the memtable pass cannot fail
	batch.Iterate(memApplier{db.mem})
	db.opts.Metrics.SetMemtableSize(db.mem.ApproximateSize())
	return db.maybeSealAndFlush()
}

// Get returns the value for key, consulting the live memtable, the sealed
// memtable, and the sstable catalog newest-first. A tombstone anywhere
// along that chain shadows older tables and reads as NotFound. Per-table
// corruption is surfaced, not skipped.
func (db *DB) Get(opts *ReadOptions, key []byte) ([]byte, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	v, err := db.getLocked(key)
	db.opts.Metrics.RecordOperation("get", err)
	return v, err
}

func (db *DB) getLocked(key []byte) ([]byte, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	for _, mem := range []*MemTable{db.mem, db.imm} {
		if mem == nil {
			continue
		}
		if v, ok := mem.getEntry(key); ok {
			if isTombstone(v) {
				return nil, status.NotFound("key deleted")
			}
			return clone(v), nil
		}
	}
	for i := len(db.tables) - 1; i >= 0; i-- {
		v, deleted, err := db.tables[i].Get(key)
		if err == nil {
			return v, nil
		}
		if status.IsNotFound(err) {
			if deleted {
				return nil, err
			}
			continue
		}
		db.log.Error("sstable read failed",
			zap.Uint64("table", db.tableNums[i]), zap.Error(err))
		return nil, err
	}
	return nil, status.NotFound("key not found")
}

// maybeSealAndFlush seals the live memtable once it reaches the write
// buffer size and flushes it to a new sstable. The flush runs inline; if a
// sealed memtable already exists the new write is accepted without
// relieving the pressure.
func (db *DB) maybeSealAndFlush() error {
	if db.mem.ApproximateSize() < db.opts.WriteBufferSize || db.imm != nil {
		return nil
	}
	db.imm = db.mem
	db.mem = NewMemTable()
	db.log.Info("memtable sealed",
		zap.Int("size", db.imm.ApproximateSize()),
		zap.Int("entries", db.imm.Size()))
	return db.flushSealed()
}

// flushSealed writes the sealed memtable to a new sstable, registers it in
// the catalog, drops the sealed table, and rotates the log. The sealed
// table is only dropped after the file is registered, so concurrent reads
// never lose sight of the data.
func (db *DB) flushSealed() error {
	start := time.Now()
	num := db.nextFileNum
	db.nextFileNum++
	fname := tableFileName(num)

	builder, err := sstable.NewBuilder(db.filesys, fname, 0)
	if err != nil {
		return err
	}
	it := db.imm.NewIterator()
	for it.SeekToFirst(); it.Valid(); it.Next() {
		// tombstones are written too, so the deletion shadows older tables
		if err := builder.Add(it.Key(), it.Value()); err != nil {
			return err
		}
	}
	if err := builder.Finish(); err != nil {
		return err
	}

	reader, err := sstable.Open(db.filesys, fname)
	if err != nil {
		return err
	}
	db.tables = append(db.tables, reader)
	db.tableNums = append(db.tableNums, num)
	db.imm = nil

	// every logged record is now in the table, so the log can restart
	if err := db.rotateWAL(); err != nil {
		return err
	}

	db.log.Info("memtable flushed",
		zap.String("file", fname),
		zap.Int("entries", builder.NumEntries()),
		zap.Duration("elapsed", time.Since(start)))
	db.opts.Metrics.RecordFlush(time.Since(start))
	db.opts.Metrics.SetSSTableCount(len(db.tables))
	return nil
}

// rotateWAL truncates the log after a successful flush and reopens it for
// appending.
func (db *DB) rotateWAL() error {
	if err := db.wal.Close(); err != nil {
		return err
	}
	if err := db.filesys.Truncate(walFileName); err != nil {
		return status.IOError("truncate wal", err)
	}
	w, err := wal.NewWriter(db.filesys, walFileName)
	if err != nil {
		return err
	}
	db.wal = w
	return nil
}

// NewIterator returns a cursor over the database contents: the live
// memtable, the sealed memtable, and all sstables merged in key order with
// deletions suppressed. The iterator starts invalid; position it with a
// Seek method. It must be released before the database is closed.
func (db *DB) NewIterator(opts *ReadOptions) Iterator {
	db.mu.Lock()
	defer db.mu.Unlock()
	children := []Iterator{db.mem.NewIterator()}
	if db.imm != nil {
		children = append(children, db.imm.NewIterator())
	}
	for i := len(db.tables) - 1; i >= 0; i-- {
		children = append(children, db.tables[i].NewIterator())
	}
	return &dbIterator{merge: newMergeIterator(children)}
}

// Close flushes and closes the write-ahead log and releases table handles.
// The database must not be used afterward.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	err := db.wal.Sync()
	if cerr := db.wal.Close(); err == nil {
		err = cerr
	}
	db.closeTables()
	db.log.Info("database closed", zap.String("name", db.name))
	return err
}

// DestroyDB removes the database directory and everything under it.
func DestroyDB(opts *Options, name string) error {
	opts = opts.withDefaults()
	if err := opts.FS.RemoveAll(name); err != nil {
		return status.IOError("destroy database "+name, err)
	}
	opts.InfoLog.Info("database destroyed", zap.String("name", name))
	return nil
}
