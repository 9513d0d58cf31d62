package db

// WriteBatch holds a collection of updates to apply atomically.
//
// The updates are applied in the order in which they are added. For
// example, the value of "key" will be "v3" after the following batch is
// written:
//
//	batch.Put([]byte("key"), []byte("v1"))
//	batch.Delete([]byte("key"))
//	batch.Put([]byte("key"), []byte("v2"))
//	batch.Put([]byte("key"), []byte("v3"))
type WriteBatch struct {
	ops []batchOp
}

type batchOp struct {
	del   bool
	key   []byte
	value []byte
}

// BatchHandler receives a batch's operations in order. A non-nil return
// aborts iteration.
type BatchHandler interface {
	Put(key, value []byte) error
	Delete(key []byte) error
}

// Put stores the mapping key -> value in the batch. The inputs are copied.
func (b *WriteBatch) Put(key, value []byte) {
	b.ops = append(b.ops, batchOp{key: clone(key), value: clone(value)})
}

// Delete records the removal of key.
func (b *WriteBatch) Delete(key []byte) {
	b.ops = append(b.ops, batchOp{del: true, key: clone(key)})
}

// Clear drops all buffered updates.
func (b *WriteBatch) Clear() {
	b.ops = b.ops[:0]
}

// Count reports the number of buffered updates.
func (b *WriteBatch) Count() int {
	return len(b.ops)
}

// Iterate replays the batch into handler in append order, stopping at the
// first error.
func (b *WriteBatch) Iterate(handler BatchHandler) error {
	for _, op := range b.ops {
		var err error
		if op.del {
			err = handler.Delete(op.key)
		} else {
			err = handler.Put(op.key, op.value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
