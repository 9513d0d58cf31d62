// Package sstable implements the immutable on-disk table format: data blocks
// with shared-prefix compression and restart points, an index block mapping
// each data block's last key to its handle, and a fixed footer.
//
// Block body layout:
//
//	entry*                 (varint shared, varint non_shared, varint val_len,
//	                        key suffix, value)
//	restart_offset LE32 * n
//	restart_count  LE32
//
// On disk every block body is followed by a 1-byte compression tag and a
// 4-byte CRC32 of the body (the tag is not covered by the CRC).
package sstable

import "github.com/niuchangsheng/kv/bin"

// DefaultRestartInterval is the restart interval for data blocks. Index
// blocks use an interval of 1 so every entry is directly seekable.
const DefaultRestartInterval = 16

// BlockBuilder accumulates one block. Keys must be added in strictly
// ascending order; the caller is responsible for ordering.
type BlockBuilder struct {
	buffer          []byte
	restarts        []uint32
	lastKey         []byte
	restartInterval int
	counter         int
	finished        bool
}

// NewBlockBuilder creates a builder emitting a restart point every
// restartInterval entries.
func NewBlockBuilder(restartInterval int) *BlockBuilder {
	return &BlockBuilder{
		restarts:        []uint32{0},
		restartInterval: restartInterval,
	}
}

func sharedPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// Add appends a key/value pair. Calls after Finish are ignored.
func (b *BlockBuilder) Add(key, value []byte) {
	if b.finished {
		return
	}
	shared := 0
	if b.counter >= b.restartInterval {
		// restart point: store the full key
		b.restarts = append(b.restarts, uint32(len(b.buffer)))
		b.counter = 0
	} else if len(b.lastKey) > 0 {
		shared = sharedPrefixLen(b.lastKey, key)
	}

	b.buffer = bin.AppendVarint32(b.buffer, uint32(shared))
	b.buffer = bin.AppendVarint32(b.buffer, uint32(len(key)-shared))
	b.buffer = bin.AppendVarint32(b.buffer, uint32(len(value)))
	b.buffer = append(b.buffer, key[shared:]...)
	b.buffer = append(b.buffer, value...)

	b.lastKey = append(b.lastKey[:0], key...)
	b.counter++
}

// LastKey returns the last key added.
func (b *BlockBuilder) LastKey() []byte { return b.lastKey }

// Empty reports whether no entries have been added.
func (b *BlockBuilder) Empty() bool { return len(b.buffer) == 0 }

// CurrentSizeEstimate upper-bounds the serialized block length.
func (b *BlockBuilder) CurrentSizeEstimate() int {
	return len(b.buffer) + len(b.restarts)*4 + 4
}

// Finish appends the restart array and count and returns the block body.
// Further Add calls are no-ops; calling Finish again returns the same bytes.
func (b *BlockBuilder) Finish() []byte {
	if b.finished {
		return b.buffer
	}
	for _, offset := range b.restarts {
		b.buffer = bin.AppendFixed32(b.buffer, offset)
	}
	b.buffer = bin.AppendFixed32(b.buffer, uint32(len(b.restarts)))
	b.finished = true
	return b.buffer
}

// Reset clears all state for reuse.
func (b *BlockBuilder) Reset() {
	b.buffer = b.buffer[:0]
	b.restarts = append(b.restarts[:0], 0)
	b.lastKey = b.lastKey[:0]
	b.counter = 0
	b.finished = false
}
