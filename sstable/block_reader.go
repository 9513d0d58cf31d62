package sstable

import (
	"bytes"
	"sort"

	"github.com/niuchangsheng/kv/bin"
	"github.com/niuchangsheng/kv/status"
)

// BlockReader is a cursor over one parsed block body (the bytes excluding
// the on-disk compression tag and CRC suffix).
//
// Every decode is bounds-checked against the entry region; any overflow or
// malformed varint surfaces as a Corruption through Err, which also
// invalidates the cursor.
type BlockReader struct {
	data     []byte
	dataSize int // end of the entry region (start of the restart array)
	restarts []uint32

	// offset of the next entry to decode; the current entry ends here
	nextOffset int
	key        []byte
	value      []byte
	valid      bool
	err        error
}

// NewBlockReader parses the restart trailer of data. Fails with Corruption
// when the trailer is malformed.
func NewBlockReader(data []byte) (*BlockReader, error) {
	if len(data) < 4 {
		return nil, status.Corruption("block too small")
	}
	numRestarts := int(bin.Fixed32(data[len(data)-4:]))
	if numRestarts == 0 || len(data) < 4+numRestarts*4 {
		return nil, status.Corruption("invalid restart point count")
	}
	dataSize := len(data) - 4 - numRestarts*4
	restarts := make([]uint32, numRestarts)
	for i := 0; i < numRestarts; i++ {
		offset := bin.Fixed32(data[dataSize+i*4:])
		if int(offset) > dataSize {
			return nil, status.Corruption("invalid restart point offset")
		}
		restarts[i] = offset
	}
	return &BlockReader{data: data, dataSize: dataSize, restarts: restarts}, nil
}

// Valid reports whether the cursor is positioned at an entry.
func (r *BlockReader) Valid() bool { return r.valid }

// Err returns the first decode error encountered, if any.
func (r *BlockReader) Err() error { return r.err }

// Key returns the current key, or an empty slice when not Valid.
func (r *BlockReader) Key() []byte {
	if !r.valid {
		return nil
	}
	return r.key
}

// Value returns the current value verbatim, or an empty slice when not Valid.
func (r *BlockReader) Value() []byte {
	if !r.valid {
		return nil
	}
	return r.value
}

func (r *BlockReader) fail(err error) {
	r.valid = false
	r.err = err
}

// entryLengths decodes the three length varints of the entry at offset p,
// returning shared, nonShared, valueLen and the offset just past them.
func (r *BlockReader) entryLengths(p int) (shared, nonShared, valueLen, next int, err error) {
	var lens [3]int
	for i := range lens {
		v, n, verr := bin.Varint32(r.data[p:r.dataSize])
		if verr != nil {
			return 0, 0, 0, 0, status.Corruption("bad entry length in block")
		}
		lens[i] = int(v)
		p += n
	}
	return lens[0], lens[1], lens[2], p, nil
}

// decodeNext decodes the entry at nextOffset, extending the current key by
// the shared prefix. Requires nextOffset < dataSize.
func (r *BlockReader) decodeNext() bool {
	shared, nonShared, valueLen, p, err := r.entryLengths(r.nextOffset)
	if err != nil {
		r.fail(err)
		return false
	}
	if shared > len(r.key) {
		r.fail(status.Corruption("entry shared length exceeds previous key"))
		return false
	}
	if nonShared > r.dataSize-p || valueLen > r.dataSize-p-nonShared {
		r.fail(status.Corruption("entry exceeds block bounds"))
		return false
	}
	r.key = append(r.key[:shared], r.data[p:p+nonShared]...)
	r.value = r.data[p+nonShared : p+nonShared+valueLen]
	r.nextOffset = p + nonShared + valueLen
	r.valid = true
	return true
}

// seekToRestart positions the cursor at the restart point's entry.
func (r *BlockReader) seekToRestart(i int) bool {
	r.nextOffset = int(r.restarts[i])
	r.key = r.key[:0]
	if r.nextOffset >= r.dataSize {
		r.valid = false
		return false
	}
	return r.decodeNext()
}

// restartKey decodes the full key stored at restart point i.
func (r *BlockReader) restartKey(i int) ([]byte, error) {
	shared, nonShared, _, p, err := r.entryLengths(int(r.restarts[i]))
	if err != nil {
		return nil, err
	}
	if shared != 0 {
		return nil, status.Corruption("restart point entry has shared prefix")
	}
	if nonShared > r.dataSize-p {
		return nil, status.Corruption("restart key exceeds block bounds")
	}
	return r.data[p : p+nonShared], nil
}

// searchRestarts returns the index of the first restart point whose key
// satisfies pred, or len(restarts) if none does. Sets r.err on decode
// failure.
func (r *BlockReader) searchRestarts(pred func(k []byte) bool) int {
	return sort.Search(len(r.restarts), func(i int) bool {
		k, err := r.restartKey(i)
		if err != nil {
			r.err = err
			return true
		}
		return pred(k)
	})
}

// SeekToFirst positions at the first entry, or invalidates on an empty block.
func (r *BlockReader) SeekToFirst() {
	r.err = nil
	r.seekToRestart(0)
}

// SeekToLast positions at the last entry.
func (r *BlockReader) SeekToLast() {
	r.err = nil
	if !r.seekToRestart(len(r.restarts) - 1) {
		return
	}
	for r.nextOffset < r.dataSize {
		if !r.decodeNext() {
			return
		}
	}
}

// Seek positions at the first entry with key >= target, or invalidates when
// no such entry exists.
func (r *BlockReader) Seek(target []byte) {
	r.err = nil
	if r.dataSize == 0 {
		r.valid = false
		return
	}
	// Start the linear scan from the last restart point whose key is
	// <= target; all entries before it are < target.
	i := r.searchRestarts(func(k []byte) bool { return bytes.Compare(k, target) > 0 })
	if r.err != nil {
		r.valid = false
		return
	}
	if i > 0 {
		i--
	}
	if !r.seekToRestart(i) {
		return
	}
	for bytes.Compare(r.key, target) < 0 {
		if r.nextOffset >= r.dataSize {
			r.valid = false
			return
		}
		if !r.decodeNext() {
			return
		}
	}
}

// Next advances to the next entry, or invalidates past the end.
func (r *BlockReader) Next() {
	if !r.valid {
		return
	}
	if r.nextOffset >= r.dataSize {
		r.valid = false
		return
	}
	r.decodeNext()
}

// Prev moves to the last entry with key < the current key, or invalidates
// when positioned at the first entry.
func (r *BlockReader) Prev() {
	if !r.valid {
		return
	}
	target := append([]byte{}, r.key...)
	i := r.searchRestarts(func(k []byte) bool { return bytes.Compare(k, target) >= 0 })
	if r.err != nil {
		r.valid = false
		return
	}
	if i == 0 {
		// even the first restart key is >= target, so no entry precedes it
		r.valid = false
		return
	}
	if !r.seekToRestart(i - 1) {
		return
	}
	// walk forward until the entry just before target
	for r.nextOffset < r.dataSize {
		savedKey := append([]byte{}, r.key...)
		savedValue := r.value
		savedNext := r.nextOffset
		if !r.decodeNext() {
			return
		}
		if bytes.Compare(r.key, target) >= 0 {
			r.key = append(r.key[:0], savedKey...)
			r.value = savedValue
			r.nextOffset = savedNext
			break
		}
	}
}
