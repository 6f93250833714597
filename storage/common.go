// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

package storage

import (
	"bytes"
	"context"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
)

var mon = monkit.Package()

var (
	// Error is the default storage error class.
	Error = errs.Class("storage")
	// ErrKeyNotFound is returned when a key is not in the store.
	ErrKeyNotFound = errs.Class("key not found")
	// ErrEmptyKey is returned when an empty key is used.
	ErrEmptyKey = errs.Class("empty key")
	// ErrClosed is returned when a store or snapshot is used after close.
	ErrClosed = errs.Class("closed")
)

// Key is the type for the keys in a `KeyValueStore`.
type Key []byte

// Value is the type for the values in a `KeyValueStore`.
type Value []byte

// Keys is the type for a slice of keys in a `KeyValueStore`.
type Keys []Key

// ListItem returns Key, Value.
type ListItem struct {
	Key   Key
	Value Value
}

// Items keeps all ListItem.
type Items []ListItem

// Comparator orders keys, returning -1, 0 or +1. A nil Comparator orders
// keys bytewise.
type Comparator func(a, b Key) int

// Compare compares a and b with the comparator, falling back to bytewise
// ordering when it is nil.
func (cmp Comparator) Compare(a, b Key) int {
	if cmp == nil {
		return bytes.Compare(a, b)
	}
	return cmp(a, b)
}

// Iterator iterates over a sequence of ListItems.
type Iterator interface {
	// Next prepares the next list item.
	// It returns true on success, or false if there is no next result row or an error happened while preparing it.
	Next(ctx context.Context, item *ListItem) bool
}

// IteratorFunc implements basic iterator.
type IteratorFunc func(ctx context.Context, item *ListItem) bool

// Next returns the next item.
func (next IteratorFunc) Next(ctx context.Context, item *ListItem) bool { return next(ctx, item) }

// IterateOptions contains options for iterator.
type IterateOptions struct {
	// Prefix stops the iteration at the first key without this prefix.
	Prefix Key
	// First will be the first item iterator returns or the next item (previous when reverse).
	First Key
	// Limit is the exclusive upper bound of the iteration in store order.
	Limit Key
}

// Reader is the read side shared by stores and snapshots.
type Reader interface {
	// Get returns the value for key, or ErrKeyNotFound.
	Get(ctx context.Context, key Key) (Value, error)
	// Iterate iterates over items in store order based on opts.
	Iterate(ctx context.Context, opts IterateOptions, fn func(context.Context, Iterator) error) error
}

// KeyValueStore describes key/value stores like leveldb and boltdb.
type KeyValueStore interface {
	Reader
	// Put adds a value to the provided key in the KeyValueStore, returning an error on failure.
	Put(ctx context.Context, key Key, value Value) error
	// Delete deletes key and the value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key Key) error
	// Apply atomically applies all operations of the batch.
	Apply(ctx context.Context, batch *Batch) error
	// Close closes the store.
	Close() error
}

// Snapshot is a point-in-time read-only view of a store.
type Snapshot interface {
	Reader
	// Release frees the snapshot. Releasing twice is a no-op.
	Release()
}

// Snapshotter is implemented by stores that can take consistent snapshots.
type Snapshotter interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// IsZero returns true if the value struct is it's zero value.
func (value Value) IsZero() bool {
	return len(value) == 0
}

// IsZero returns true if the key struct is it's zero value.
func (key Key) IsZero() bool {
	return len(key) == 0
}

// Equal returns whether key and b are equal.
func (key Key) Equal(b Key) bool {
	return bytes.Equal([]byte(key), []byte(b))
}

// Less returns whether key should be sorted before b.
func (key Key) Less(b Key) bool {
	return bytes.Compare([]byte(key), []byte(b)) < 0
}

// String implements the Stringer interface.
func (key Key) String() string { return string(key) }

// Len is the number of elements in the collection.
func (items Items) Len() int { return len(items) }

// Swap swaps the elements with indexes i and j.
func (items Items) Swap(i, k int) { items[i], items[k] = items[k], items[i] }

// GetKeys gets all the Keys in []ListItem and converts them to Keys.
func (items Items) GetKeys() Keys {
	if len(items) == 0 {
		return nil
	}
	keys := make(Keys, 0, len(items))
	for _, item := range items {
		keys = append(keys, item.Key)
	}
	return keys
}

// CollectItems collects every item of the iteration into a slice.
func CollectItems(ctx context.Context, reader Reader, opts IterateOptions) (items Items, err error) {
	defer mon.Task()(&ctx)(&err)
	err = reader.Iterate(ctx, opts, func(ctx context.Context, it Iterator) error {
		var item ListItem
		for it.Next(ctx, &item) {
			items = append(items, CloneItem(item))
		}
		return nil
	})
	return items, err
}
