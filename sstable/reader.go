package sstable

import (
	"bytes"
	"fmt"

	"github.com/niuchangsheng/kv/bin"
	"github.com/niuchangsheng/kv/fs"
	"github.com/niuchangsheng/kv/status"
)

// deletion markers are stored as a single 0x00 byte in the value slot
func isDeletionMarker(v []byte) bool {
	return len(v) == 1 && v[0] == 0
}

// Reader serves point lookups and scans from one sstable file. The index
// block is held in memory; data blocks are read and checksum-verified on
// demand. A Reader is safe for sequential use under the engine's lock;
// independent Readers may serve the same file concurrently.
type Reader struct {
	f         fs.ReadFile
	fname     string
	indexData []byte
}

// Open reads and verifies the footer and index block of fname.
func Open(filesys fs.Filesys, fname string) (*Reader, error) {
	f, err := filesys.Open(fname)
	if err != nil {
		return nil, status.IOError("open sstable "+fname, err)
	}
	r := &Reader{f: f, fname: fname}
	if err := r.init(); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) init() error {
	size := r.f.Size()
	if size < FooterLen {
		return status.Corruption("sstable file too small: " + r.fname)
	}
	footerData, err := r.f.ReadAt(size-FooterLen, FooterLen)
	if err != nil {
		return status.IOError("read footer", err)
	}
	ftr, err := decodeFooter(footerData)
	if err != nil {
		return err
	}
	r.indexData, err = r.readBlock(ftr.indexHandle)
	return err
}

// readBlock reads a block body and verifies its trailer: the compression
// tag must be 0 and the CRC32 must match the body.
func (r *Reader) readBlock(handle BlockHandle) ([]byte, error) {
	end := handle.Offset + handle.Size + blockTrailerLen
	if end > uint64(r.f.Size()) || end < handle.Offset {
		return nil, status.Corruption("block handle out of file bounds")
	}
	data, err := r.f.ReadAt(int64(handle.Offset), int(handle.Size)+blockTrailerLen)
	if err != nil {
		return nil, status.IOError("read block", err)
	}
	body := data[:handle.Size]
	tag := data[handle.Size]
	if tag != compressionNone {
		return nil, status.NotSupported(fmt.Sprintf("block compression %d", tag))
	}
	if bin.Fixed32(data[handle.Size+1:]) != bin.Checksum(body) {
		return nil, status.Corruption("block checksum mismatch")
	}
	return body, nil
}

// findDataBlock locates the handle of the block that may contain key: the
// first index entry whose key (the block's last key) is >= key, or the last
// block when no such entry exists.
func (r *Reader) findDataBlock(key []byte) (BlockHandle, bool, error) {
	index, err := NewBlockReader(r.indexData)
	if err != nil {
		return BlockHandle{}, false, err
	}
	index.Seek(key)
	if !index.Valid() {
		if index.Err() != nil {
			return BlockHandle{}, false, index.Err()
		}
		index.SeekToLast()
		if !index.Valid() {
			// empty table
			return BlockHandle{}, false, index.Err()
		}
	}
	handle, err := decodeHandle(index.Value())
	if err != nil {
		return BlockHandle{}, false, err
	}
	return handle, true, nil
}

// Get looks up key. deleted reports that the table holds a deletion marker
// for the key, which shadows any older table. Both a missing key and a
// deleted key return a NotFound status.
func (r *Reader) Get(key []byte) (value []byte, deleted bool, err error) {
	handle, found, err := r.findDataBlock(key)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, status.NotFound("key not found")
	}
	body, err := r.readBlock(handle)
	if err != nil {
		return nil, false, err
	}
	block, err := NewBlockReader(body)
	if err != nil {
		return nil, false, err
	}
	block.Seek(key)
	if block.Err() != nil {
		return nil, false, block.Err()
	}
	if !block.Valid() || !bytes.Equal(block.Key(), key) {
		return nil, false, status.NotFound("key not found")
	}
	if isDeletionMarker(block.Value()) {
		return nil, true, status.NotFound("key deleted")
	}
	return append([]byte{}, block.Value()...), false, nil
}

// Close releases the table's file handle.
func (r *Reader) Close() error {
	return r.f.Close()
}
