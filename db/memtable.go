package db

import "bytes"

// tombstone is the deletion marker stored in the value slot: a single 0x00
// byte. The same encoding flows into sstables so deletions shadow older
// tables.
var tombstone = []byte{0x00}

func isTombstone(v []byte) bool { return len(v) == 1 && v[0] == 0 }

const maxHeight = 16

type skipNode struct {
	key   []byte
	value []byte
	next  []*skipNode
}

// MemTable is the ordered in-memory write buffer: a skiplist from key to
// value-or-tombstone, with at most one entry per key. Mutations and lookups
// are O(log n); iteration is ascending by key bytes.
//
// A MemTable is not internally synchronized; the engine's mutex serializes
// access.
type MemTable struct {
	head       *skipNode
	height     int
	approxSize int
	count      int
	rng        uint64
}

// NewMemTable creates an empty table.
func NewMemTable() *MemTable {
	return &MemTable{
		head:   &skipNode{next: make([]*skipNode, maxHeight)},
		height: 1,
		rng:    1,
	}
}

// randomHeight draws from a geometric distribution with p = 1/4 using an
// xorshift PRNG.
func (m *MemTable) randomHeight() int {
	h := 1
	for h < maxHeight {
		m.rng ^= m.rng << 13
		m.rng ^= m.rng >> 7
		m.rng ^= m.rng << 17
		if m.rng&3 != 0 {
			break
		}
		h++
	}
	return h
}

// findGreaterOrEqual returns the first node with key >= target. When prev is
// non-nil it receives, per level, the rightmost node before the result.
func (m *MemTable) findGreaterOrEqual(target []byte, prev []*skipNode) *skipNode {
	x := m.head
	for level := m.height - 1; level >= 0; level-- {
		for x.next[level] != nil && bytes.Compare(x.next[level].key, target) < 0 {
			x = x.next[level]
		}
		if prev != nil {
			prev[level] = x
		}
	}
	return x.next[0]
}

// findLessThan returns the rightmost node with key < target, or nil if no
// such node exists.
func (m *MemTable) findLessThan(target []byte) *skipNode {
	x := m.head
	for level := m.height - 1; level >= 0; level-- {
		for x.next[level] != nil && bytes.Compare(x.next[level].key, target) < 0 {
			x = x.next[level]
		}
	}
	if x == m.head {
		return nil
	}
	return x
}

// last returns the final node, or nil when empty.
func (m *MemTable) last() *skipNode {
	x := m.head
	for level := m.height - 1; level >= 0; level-- {
		for x.next[level] != nil {
			x = x.next[level]
		}
	}
	if x == m.head {
		return nil
	}
	return x
}

// put inserts or overwrites, keeping approxSize equal to the sum of key and
// value lengths over all entries.
func (m *MemTable) put(key, value []byte) {
	prev := make([]*skipNode, maxHeight)
	for i := range prev {
		prev[i] = m.head
	}
	n := m.findGreaterOrEqual(key, prev)
	if n != nil && bytes.Equal(n.key, key) {
		m.approxSize += len(value) - len(n.value)
		n.value = value
		return
	}
	h := m.randomHeight()
	if h > m.height {
		m.height = h
	}
	node := &skipNode{key: key, value: value, next: make([]*skipNode, h)}
	for level := 0; level < h; level++ {
		node.next[level] = prev[level].next[level]
		prev[level].next[level] = node
	}
	m.approxSize += len(key) + len(value)
	m.count++
}

func clone(b []byte) []byte {
	return append([]byte{}, b...)
}

// Put inserts or overwrites key with value. The inputs are copied.
func (m *MemTable) Put(key, value []byte) {
	m.put(clone(key), clone(value))
}

// Delete records a tombstone for key, shadowing any older value during
// reads. Deleting an absent key is not an error.
func (m *MemTable) Delete(key []byte) {
	m.put(clone(key), clone(tombstone))
}

// Get returns the value for key. A miss and a tombstone both report false;
// use getEntry to distinguish them.
func (m *MemTable) Get(key []byte) ([]byte, bool) {
	v, ok := m.getEntry(key)
	if !ok || isTombstone(v) {
		return nil, false
	}
	return v, true
}

// getEntry returns the stored bytes for key verbatim, tombstones included.
func (m *MemTable) getEntry(key []byte) ([]byte, bool) {
	n := m.findGreaterOrEqual(key, nil)
	if n != nil && bytes.Equal(n.key, key) {
		return n.value, true
	}
	return nil, false
}

// ApproximateSize is the sum of key and value byte counts over all entries
// (a tombstone counts as a 1-byte value).
func (m *MemTable) ApproximateSize() int { return m.approxSize }

// Empty reports whether the table holds no entries.
func (m *MemTable) Empty() bool { return m.count == 0 }

// Size reports the number of entries, tombstones included.
func (m *MemTable) Size() int { return m.count }

// NewIterator returns an unpositioned cursor over all entries, tombstones
// included; values are exposed verbatim. The iterator must not outlive the
// table.
func (m *MemTable) NewIterator() *MemTableIterator {
	return &MemTableIterator{m: m}
}

// MemTableIterator is an ordered cursor over a MemTable. It is either
// positioned at an entry or invalid.
type MemTableIterator struct {
	m    *MemTable
	node *skipNode
}

// Valid reports whether the iterator is positioned at an entry.
func (it *MemTableIterator) Valid() bool { return it.node != nil }

// SeekToFirst positions at the first entry, or invalidates when empty.
func (it *MemTableIterator) SeekToFirst() { it.node = it.m.head.next[0] }

// SeekToLast positions at the last entry, or invalidates when empty.
func (it *MemTableIterator) SeekToLast() { it.node = it.m.last() }

// Seek positions at the first entry with key >= target. Seek("") is
// undefined; empty keys are not supported.
func (it *MemTableIterator) Seek(target []byte) {
	it.node = it.m.findGreaterOrEqual(target, nil)
}

// Next advances, invalidating past the last entry.
func (it *MemTableIterator) Next() {
	if it.node != nil {
		it.node = it.node.next[0]
	}
}

// Prev moves to the previous entry. At the first entry the iterator stays
// put rather than invalidating.
func (it *MemTableIterator) Prev() {
	if it.node == nil {
		return
	}
	if p := it.m.findLessThan(it.node.key); p != nil {
		it.node = p
	}
}

// Key returns the current key, or an empty slice when not Valid.
func (it *MemTableIterator) Key() []byte {
	if it.node == nil {
		return nil
	}
	return it.node.key
}

// Value returns the stored bytes verbatim (a tombstone reads as the 0x00
// marker), or an empty slice when not Valid.
func (it *MemTableIterator) Value() []byte {
	if it.node == nil {
		return nil
	}
	return it.node.value
}

// Status reports iterator errors; memtable iteration cannot fail.
func (it *MemTableIterator) Status() error { return nil }
