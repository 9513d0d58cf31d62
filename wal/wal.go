// Package wal implements the write-ahead log: an append-only file of typed
// records, each protected by a CRC32 over its type, key, and value.
//
// Record wire format, repeated to end of file:
//
//	type     1 byte  (1 Put, 2 Delete, 3 Sync, 4 Eof)
//	key_len  4 bytes LE
//	val_len  4 bytes LE
//	key      key_len bytes
//	value    val_len bytes
//	crc32    4 bytes LE, over type || key || value
package wal

import (
	"github.com/niuchangsheng/kv/bin"
	"github.com/niuchangsheng/kv/fs"
	"github.com/niuchangsheng/kv/status"
)

// RecordType tags each WAL record.
type RecordType uint8

const (
	RecordPut    RecordType = 1
	RecordDelete RecordType = 2
	RecordSync   RecordType = 3
	RecordEof    RecordType = 4
)

func validType(t RecordType) bool {
	return t >= RecordPut && t <= RecordEof
}

// checksum covers the record type and payload but not the length fields.
func checksum(t RecordType, key, value []byte) uint32 {
	crc := bin.ChecksumUpdate(0, []byte{byte(t)})
	crc = bin.ChecksumUpdate(crc, key)
	return bin.ChecksumUpdate(crc, value)
}

// Writer appends records to the log file. Callers serialize access; the
// engine's mutex is the single writer lock.
type Writer struct {
	f     fs.File
	fname string
	open  bool
}

// NewWriter opens fname for appending, creating it if absent.
func NewWriter(filesys fs.Filesys, fname string) (*Writer, error) {
	f, err := filesys.Append(fname)
	if err != nil {
		return nil, status.IOError("open wal "+fname, err)
	}
	return &Writer{f: f, fname: fname, open: true}, nil
}

// AddRecord appends one record. The record is buffered; call Sync to force
// it to the backing store.
func (w *Writer) AddRecord(t RecordType, key, value []byte) error {
	if !w.open {
		return status.IOError("wal file is not open", nil)
	}
	rec := make([]byte, 0, 1+4+4+len(key)+len(value)+4)
	rec = append(rec, byte(t))
	rec = bin.AppendFixed32(rec, uint32(len(key)))
	rec = bin.AppendFixed32(rec, uint32(len(value)))
	rec = append(rec, key...)
	rec = append(rec, value...)
	rec = bin.AppendFixed32(rec, checksum(t, key, value))
	n, err := w.f.Write(rec)
	if err != nil {
		return status.IOError("wal append", err)
	}
	if n != len(rec) {
		return status.IOError("wal short write", nil)
	}
	return nil
}

// Sync flushes buffered records to the backing store.
func (w *Writer) Sync() error {
	if !w.open {
		return status.IOError("wal file is not open", nil)
	}
	if err := w.f.Sync(); err != nil {
		return status.IOError("wal sync", err)
	}
	return nil
}

// Close closes the log file. Further AddRecord calls fail with IOError.
func (w *Writer) Close() error {
	if !w.open {
		return nil
	}
	w.open = false
	if err := w.f.Close(); err != nil {
		return status.IOError("wal close", err)
	}
	return nil
}
