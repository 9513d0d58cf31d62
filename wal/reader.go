package wal

import (
	"fmt"
	"io"

	"github.com/niuchangsheng/kv/bin"
	"github.com/niuchangsheng/kv/fs"
	"github.com/niuchangsheng/kv/status"
)

// Record is one decoded WAL record.
type Record struct {
	Type  RecordType
	Key   []byte
	Value []byte
}

// Handler receives replayed operations.
type Handler interface {
	Put(key, value []byte) error
	Delete(key []byte) error
}

// Reader decodes records sequentially from a log file.
type Reader struct {
	f      fs.ReadFile
	offset int64
	size   int64
}

// NewReader opens fname for replay.
func NewReader(filesys fs.Filesys, fname string) (*Reader, error) {
	f, err := filesys.Open(fname)
	if err != nil {
		return nil, status.IOError("open wal "+fname, err)
	}
	return &Reader{f: f, size: f.Size()}, nil
}

func (r *Reader) remaining() int64 {
	return r.size - r.offset
}

func (r *Reader) read(length int, what string) ([]byte, error) {
	if int64(length) > r.remaining() {
		return nil, status.IOError(fmt.Sprintf("wal truncated reading %s", what), nil)
	}
	data, err := r.f.ReadAt(r.offset, length)
	if err != nil {
		return nil, status.IOError(fmt.Sprintf("wal read %s", what), err)
	}
	r.offset += int64(length)
	return data, nil
}

// ReadRecord decodes the next record. Returns io.EOF on a clean end of file
// (including an explicit Eof record). A record cut off by the end of the
// file is an IOError; a checksum mismatch or unknown record type is a
// Corruption.
func (r *Reader) ReadRecord() (Record, error) {
	if r.remaining() == 0 {
		return Record{}, io.EOF
	}
	hdr, err := r.read(1, "record type")
	if err != nil {
		return Record{}, err
	}
	t := RecordType(hdr[0])
	if !validType(t) {
		return Record{}, status.Corruption(fmt.Sprintf("unknown wal record type %d", t))
	}
	if t == RecordEof {
		return Record{}, io.EOF
	}
	lens, err := r.read(8, "record header")
	if err != nil {
		return Record{}, err
	}
	keyLen := bin.Fixed32(lens[:4])
	valueLen := bin.Fixed32(lens[4:])
	if int64(keyLen)+int64(valueLen)+4 > r.remaining() {
		return Record{}, status.IOError("wal truncated reading record payload", nil)
	}
	key, err := r.read(int(keyLen), "key")
	if err != nil {
		return Record{}, err
	}
	value, err := r.read(int(valueLen), "value")
	if err != nil {
		return Record{}, err
	}
	crcData, err := r.read(4, "checksum")
	if err != nil {
		return Record{}, err
	}
	if bin.Fixed32(crcData) != checksum(t, key, value) {
		return Record{}, status.Corruption("checksum mismatch in wal record")
	}
	return Record{Type: t, Key: key, Value: value}, nil
}

// Replay reads records to the end of the log, dispatching Put and Delete to
// handler. Sync records are skipped; an Eof record terminates replay. The
// first decode or handler error aborts replay and is returned.
func (r *Reader) Replay(handler Handler) error {
	for {
		rec, err := r.ReadRecord()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch rec.Type {
		case RecordPut:
			err = handler.Put(rec.Key, rec.Value)
		case RecordDelete:
			err = handler.Delete(rec.Key)
		case RecordSync:
			// sync point, no action on replay
		}
		if err != nil {
			return err
		}
	}
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.f.Close()
}
