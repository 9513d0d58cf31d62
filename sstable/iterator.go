package sstable

// Iterator walks all entries of a table in key order, including deletion
// markers (values are exposed verbatim). It layers a data-block cursor over
// an index-block cursor: the index positions select which data block is
// loaded.
type Iterator struct {
	r     *Reader
	index *BlockReader
	block *BlockReader
	err   error
}

// NewIterator returns an unpositioned iterator; call one of the Seek
// methods before use.
func (r *Reader) NewIterator() *Iterator {
	index, err := NewBlockReader(r.indexData)
	return &Iterator{r: r, index: index, err: err}
}

// Valid reports whether the iterator is positioned at an entry.
func (it *Iterator) Valid() bool {
	return it.err == nil && it.block != nil && it.block.Valid()
}

// Status returns the first error encountered, if any.
func (it *Iterator) Status() error { return it.err }

// Key returns the current key, or an empty slice when not Valid.
func (it *Iterator) Key() []byte {
	if !it.Valid() {
		return nil
	}
	return it.block.Key()
}

// Value returns the current value verbatim, or an empty slice when not Valid.
func (it *Iterator) Value() []byte {
	if !it.Valid() {
		return nil
	}
	return it.block.Value()
}

// loadBlock replaces the data-block cursor with the block at the index
// cursor's current entry.
func (it *Iterator) loadBlock() bool {
	handle, err := decodeHandle(it.index.Value())
	if err != nil {
		it.err = err
		return false
	}
	body, err := it.r.readBlock(handle)
	if err != nil {
		it.err = err
		return false
	}
	it.block, err = NewBlockReader(body)
	if err != nil {
		it.err = err
		return false
	}
	return true
}

func (it *Iterator) checkBlockErr() {
	if it.block != nil && it.block.Err() != nil {
		it.err = it.block.Err()
	}
}

// SeekToFirst positions at the first entry of the table.
func (it *Iterator) SeekToFirst() {
	if it.err != nil {
		return
	}
	it.block = nil
	it.index.SeekToFirst()
	if !it.index.Valid() {
		it.err = it.index.Err()
		return
	}
	if it.loadBlock() {
		it.block.SeekToFirst()
		it.checkBlockErr()
	}
}

// SeekToLast positions at the last entry of the table.
func (it *Iterator) SeekToLast() {
	if it.err != nil {
		return
	}
	it.block = nil
	it.index.SeekToLast()
	if !it.index.Valid() {
		it.err = it.index.Err()
		return
	}
	if it.loadBlock() {
		it.block.SeekToLast()
		it.checkBlockErr()
	}
}

// Seek positions at the first entry with key >= target.
func (it *Iterator) Seek(target []byte) {
	if it.err != nil {
		return
	}
	it.block = nil
	// index keys are each block's last key, so the first index entry
	// >= target names the only block that can contain target
	it.index.Seek(target)
	if !it.index.Valid() {
		it.err = it.index.Err()
		return
	}
	if it.loadBlock() {
		it.block.Seek(target)
		it.checkBlockErr()
	}
}

// Next advances to the next entry, crossing into the next data block when
// the current one is exhausted.
func (it *Iterator) Next() {
	if !it.Valid() {
		return
	}
	it.block.Next()
	it.checkBlockErr()
	if it.err != nil || it.block.Valid() {
		return
	}
	it.index.Next()
	if !it.index.Valid() {
		it.err = it.index.Err()
		it.block = nil
		return
	}
	if it.loadBlock() {
		it.block.SeekToFirst()
		it.checkBlockErr()
	}
}

// Prev moves to the previous entry, crossing into the preceding data block
// when positioned at the first entry of the current one. Becomes invalid
// before the first entry of the table.
func (it *Iterator) Prev() {
	if !it.Valid() {
		return
	}
	it.block.Prev()
	it.checkBlockErr()
	if it.err != nil || it.block.Valid() {
		return
	}
	it.index.Prev()
	if !it.index.Valid() {
		it.err = it.index.Err()
		it.block = nil
		return
	}
	if it.loadBlock() {
		it.block.SeekToLast()
		it.checkBlockErr()
	}
}
