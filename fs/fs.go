// Package fs is the engine's byte-oriented file abstraction: append, random
// read, flush, rename, and atomic create over a single database directory.
package fs

import "io"

// File is an open file being written.
type File interface {
	io.WriteCloser
	// Sync flushes buffered writes to the backing store.
	Sync() error
}

// ReadFile is an open file being read.
type ReadFile interface {
	io.Closer
	// Size reports the file's length in bytes.
	Size() int64
	// ReadAt reads exactly length bytes starting at offset.
	ReadAt(offset int64, length int) ([]byte, error)
}

// Stats counts operations and bytes through a Filesys.
type Stats struct {
	ReadOps    int
	ReadBytes  int
	WriteOps   int
	WriteBytes int
}

func (s *Stats) readOp(bytes int) {
	s.ReadOps++
	s.ReadBytes += bytes
}

func (s *Stats) writeOp(bytes int) {
	s.WriteOps++
	s.WriteBytes += bytes
}

// Filesys exposes one database directory. Filenames may contain
// subdirectories ("0/1.sst"); parents are created as needed.
type Filesys interface {
	// Open opens fname for random-access reads.
	Open(fname string) (ReadFile, error)
	// Create creates or truncates fname for writing.
	Create(fname string) (File, error)
	// Append opens fname for appending, creating it if absent.
	Append(fname string) (File, error)
	// Exists reports whether fname exists.
	Exists(fname string) (bool, error)
	// Glob lists files matching pattern, in lexical order.
	Glob(pattern string) ([]string, error)
	// Delete removes fname.
	Delete(fname string) error
	// Truncate empties fname.
	Truncate(fname string) error
	// Rename moves src over dst.
	Rename(src, dst string) error
	// AtomicCreateWith creates fname with data, atomically with respect to
	// crashes (write to a temp file, sync, rename).
	AtomicCreateWith(fname string, data []byte) error
	// GetStats returns a snapshot of the op counters.
	GetStats() Stats
}
