package db

import "bytes"

// Iterator yields a sequence of key/value pairs in ascending key order. An
// iterator is either positioned at an entry or invalid; it starts invalid
// and must be positioned with one of the Seek methods. Key and Value on an
// invalid iterator return empty slices. An iterator must be released before
// the database it came from.
type Iterator interface {
	Valid() bool
	// SeekToFirst positions at the first entry; Valid iff the source is
	// non-empty.
	SeekToFirst()
	// SeekToLast positions at the last entry; Valid iff the source is
	// non-empty.
	SeekToLast()
	// Seek positions at the first entry with key >= target. Seek("") is
	// undefined.
	Seek(target []byte)
	// Next advances; invalid past the last entry.
	Next()
	// Prev moves back; at the first entry the iterator saturates and stays
	// positioned there.
	Prev()
	Key() []byte
	Value() []byte
	// Status reports the first error the iterator encountered.
	Status() error
}

// mergeIterator merges children already ordered newest-first: on duplicate
// keys the lowest-index child wins, so newer writes shadow older ones.
// Values are exposed verbatim, tombstones included; suppression happens in
// dbIterator above.
//
// Unlike the public contract, Prev here invalidates before the first entry,
// which the wrapper needs to detect exhaustion.
type mergeIterator struct {
	children []Iterator
	cur      int // index of the current child, -1 when invalid
	curKey   []byte
}

func newMergeIterator(children []Iterator) *mergeIterator {
	return &mergeIterator{children: children, cur: -1}
}

func (m *mergeIterator) Valid() bool { return m.cur >= 0 }

func (m *mergeIterator) Key() []byte {
	if m.cur < 0 {
		return nil
	}
	return m.curKey
}

func (m *mergeIterator) Value() []byte {
	if m.cur < 0 {
		return nil
	}
	return m.children[m.cur].Value()
}

func (m *mergeIterator) Status() error {
	for _, c := range m.children {
		if err := c.Status(); err != nil {
			return err
		}
	}
	return nil
}

// selectMin picks the smallest current key; ties go to the newest child.
func (m *mergeIterator) selectMin() {
	m.cur = -1
	for i, c := range m.children {
		if !c.Valid() {
			continue
		}
		if m.cur < 0 || bytes.Compare(c.Key(), m.curKey) < 0 {
			m.cur = i
			m.curKey = append(m.curKey[:0], c.Key()...)
		}
	}
}

// selectMaxBelow picks the largest current key strictly below bound (nil
// bound means no limit); ties go to the newest child.
func (m *mergeIterator) selectMaxBelow(bound []byte) {
	m.cur = -1
	for i, c := range m.children {
		if !c.Valid() {
			continue
		}
		if bound != nil && bytes.Compare(c.Key(), bound) >= 0 {
			continue
		}
		if m.cur < 0 || bytes.Compare(c.Key(), m.curKey) > 0 {
			m.cur = i
			m.curKey = append(m.curKey[:0], c.Key()...)
		}
	}
}

func (m *mergeIterator) SeekToFirst() {
	for _, c := range m.children {
		c.SeekToFirst()
	}
	m.selectMin()
}

func (m *mergeIterator) SeekToLast() {
	for _, c := range m.children {
		c.SeekToLast()
	}
	m.selectMaxBelow(nil)
}

func (m *mergeIterator) Seek(target []byte) {
	for _, c := range m.children {
		c.Seek(target)
	}
	m.selectMin()
}

// Next normalizes every child to its first key strictly beyond the current
// key, then re-selects. This also re-enters children parked by a previous
// backward step.
func (m *mergeIterator) Next() {
	if m.cur < 0 {
		return
	}
	bound := append([]byte{}, m.curKey...)
	for _, c := range m.children {
		if !c.Valid() {
			c.Seek(bound)
		}
		for c.Valid() && bytes.Compare(c.Key(), bound) <= 0 {
			c.Next()
		}
	}
	m.selectMin()
}

// stepBack moves c to a strictly smaller key, reporting false when c is
// exhausted: either it invalidated, or it saturated at its first entry.
func stepBack(c Iterator) bool {
	before := append([]byte{}, c.Key()...)
	c.Prev()
	if !c.Valid() {
		return false
	}
	return bytes.Compare(c.Key(), before) < 0
}

// Prev normalizes every child to its last key strictly before the current
// key, then re-selects. Children that cannot go lower are left parked at a
// key >= the bound and excluded by the selection.
func (m *mergeIterator) Prev() {
	if m.cur < 0 {
		return
	}
	bound := append([]byte{}, m.curKey...)
	for _, c := range m.children {
		if !c.Valid() {
			// re-enter just below the bound
			c.Seek(bound)
			if !c.Valid() {
				c.SeekToLast()
			}
		}
		for c.Valid() && bytes.Compare(c.Key(), bound) >= 0 {
			if !stepBack(c) {
				break
			}
		}
	}
	m.selectMaxBelow(bound)
}

// dbIterator is the public cursor over the whole database: a merge across
// the live memtable, the sealed memtable, and every sstable, with deletion
// markers suppressed. Prev at the first live entry saturates.
type dbIterator struct {
	merge *mergeIterator
}

func (it *dbIterator) Valid() bool { return it.merge.Valid() }

func (it *dbIterator) Key() []byte { return it.merge.Key() }

func (it *dbIterator) Value() []byte { return it.merge.Value() }

func (it *dbIterator) Status() error { return it.merge.Status() }

// skipForward moves past deletion markers in ascending direction.
func (it *dbIterator) skipForward() {
	for it.merge.Valid() && isTombstone(it.merge.Value()) {
		it.merge.Next()
	}
}

// skipBackward moves past deletion markers in descending direction.
func (it *dbIterator) skipBackward() {
	for it.merge.Valid() && isTombstone(it.merge.Value()) {
		it.merge.Prev()
	}
}

func (it *dbIterator) SeekToFirst() {
	it.merge.SeekToFirst()
	it.skipForward()
}

func (it *dbIterator) SeekToLast() {
	it.merge.SeekToLast()
	it.skipBackward()
}

func (it *dbIterator) Seek(target []byte) {
	it.merge.Seek(target)
	it.skipForward()
}

func (it *dbIterator) Next() {
	if !it.merge.Valid() {
		return
	}
	it.merge.Next()
	it.skipForward()
}

func (it *dbIterator) Prev() {
	if !it.merge.Valid() {
		return
	}
	saved := append([]byte{}, it.merge.Key()...)
	it.merge.Prev()
	it.skipBackward()
	if !it.merge.Valid() {
		// nothing live before the saved position: saturate there
		it.merge.Seek(saved)
		it.skipForward()
	}
}
