// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package storage

// BatchOp is a single operation of a Batch.
type BatchOp struct {
	Key    Key
	Value  Value
	Delete bool
}

// Batch is an ordered list of puts and deletes applied atomically.
type Batch struct {
	ops []BatchOp
}

// Put queues a put.
func (batch *Batch) Put(key Key, value Value) {
	batch.ops = append(batch.ops, BatchOp{Key: CloneKey(key), Value: CloneValue(value)})
}

// Delete queues a delete.
func (batch *Batch) Delete(key Key) {
	batch.ops = append(batch.ops, BatchOp{Key: CloneKey(key), Delete: true})
}

// Len returns the number of queued operations.
func (batch *Batch) Len() int { return len(batch.ops) }

// Reset drops all queued operations.
func (batch *Batch) Reset() { batch.ops = batch.ops[:0] }

// Ops returns the queued operations in order.
func (batch *Batch) Ops() []BatchOp { return batch.ops }

// Validate checks that no operation uses an empty key.
func (batch *Batch) Validate() error {
	for _, op := range batch.ops {
		if op.Key.IsZero() {
			return ErrEmptyKey.New("")
		}
	}
	return nil
}
