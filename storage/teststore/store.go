// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

package teststore

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/btree"

	"github.com/vinaypunrao68/fds-src-sub016/storage"
)

const btreeDegree = 16

// Client implements in-memory key value store ordered by a comparator.
type Client struct {
	mu     sync.Mutex
	cmp    storage.Comparator
	items  *btree.BTreeG[storage.ListItem]
	closed bool

	CallCount struct {
		Get      int
		Put      int
		Delete   int
		Apply    int
		Iterate  int
		Snapshot int
		Close    int
	}
}

// New creates a new in-memory key-value store ordered bytewise.
func New() *Client { return NewWithComparator(nil) }

// NewWithComparator creates a new in-memory key-value store ordered by cmp.
func NewWithComparator(cmp storage.Comparator) *Client {
	return &Client{
		cmp: cmp,
		items: btree.NewG(btreeDegree, func(a, b storage.ListItem) bool {
			return cmp.Compare(a.Key, b.Key) < 0
		}),
	}
}

// Put adds a value to store.
func (store *Client) Put(ctx context.Context, key storage.Key, value storage.Value) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.CallCount.Put++
	if store.closed {
		return storage.ErrClosed.New("")
	}
	if key.IsZero() {
		return storage.ErrEmptyKey.New("")
	}
	store.items.ReplaceOrInsert(storage.ListItem{
		Key:   storage.CloneKey(key),
		Value: storage.CloneValue(value),
	})
	return nil
}

// Get gets a value to store.
func (store *Client) Get(ctx context.Context, key storage.Key) (storage.Value, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.CallCount.Get++
	if store.closed {
		return nil, storage.ErrClosed.New("")
	}
	return get(store.items, key)
}

// Delete deletes key and the value.
func (store *Client) Delete(ctx context.Context, key storage.Key) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.CallCount.Delete++
	if store.closed {
		return storage.ErrClosed.New("")
	}
	if key.IsZero() {
		return storage.ErrEmptyKey.New("")
	}
	store.items.Delete(storage.ListItem{Key: key})
	return nil
}

// Apply applies the batch atomically.
func (store *Client) Apply(ctx context.Context, batch *storage.Batch) error {
	if err := batch.Validate(); err != nil {
		return err
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	store.CallCount.Apply++
	if store.closed {
		return storage.ErrClosed.New("")
	}
	for _, op := range batch.Ops() {
		if op.Delete {
			store.items.Delete(storage.ListItem{Key: op.Key})
			continue
		}
		store.items.ReplaceOrInsert(storage.ListItem{
			Key:   storage.CloneKey(op.Key),
			Value: storage.CloneValue(op.Value),
		})
	}
	return nil
}

// Iterate iterates over items based on opts. The iteration sees the store as
// it was when Iterate was called.
func (store *Client) Iterate(ctx context.Context, opts storage.IterateOptions, fn func(context.Context, storage.Iterator) error) error {
	store.mu.Lock()
	store.CallCount.Iterate++
	if store.closed {
		store.mu.Unlock()
		return storage.ErrClosed.New("")
	}
	items := store.items.Clone()
	store.mu.Unlock()

	return iterate(ctx, items, store.cmp, opts, fn)
}

// Snapshot returns a point-in-time view of the store.
func (store *Client) Snapshot(ctx context.Context) (storage.Snapshot, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.CallCount.Snapshot++
	if store.closed {
		return nil, storage.ErrClosed.New("")
	}
	return &snapshot{cmp: store.cmp, items: store.items.Clone()}, nil
}

// Len returns the number of items in the store.
func (store *Client) Len() int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.items.Len()
}

// Close closes the store.
func (store *Client) Close() error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.CallCount.Close++
	store.closed = true
	return nil
}

type snapshot struct {
	mu       sync.Mutex
	cmp      storage.Comparator
	items    *btree.BTreeG[storage.ListItem]
	released bool
}

func (snap *snapshot) Get(ctx context.Context, key storage.Key) (storage.Value, error) {
	snap.mu.Lock()
	defer snap.mu.Unlock()
	if snap.released {
		return nil, storage.ErrClosed.New("snapshot released")
	}
	return get(snap.items, key)
}

func (snap *snapshot) Iterate(ctx context.Context, opts storage.IterateOptions, fn func(context.Context, storage.Iterator) error) error {
	snap.mu.Lock()
	if snap.released {
		snap.mu.Unlock()
		return storage.ErrClosed.New("snapshot released")
	}
	items := snap.items
	snap.mu.Unlock()
	return iterate(ctx, items, snap.cmp, opts, fn)
}

func (snap *snapshot) Release() {
	snap.mu.Lock()
	defer snap.mu.Unlock()
	snap.released = true
}

func get(items *btree.BTreeG[storage.ListItem], key storage.Key) (storage.Value, error) {
	item, ok := items.Get(storage.ListItem{Key: key})
	if !ok {
		return nil, storage.ErrKeyNotFound.New("%q", key)
	}
	return storage.CloneValue(item.Value), nil
}

// iterate collects the items in range first and then hands them out; the
// tree passed in must not be mutated afterwards.
func iterate(ctx context.Context, items *btree.BTreeG[storage.ListItem], cmp storage.Comparator, opts storage.IterateOptions, fn func(context.Context, storage.Iterator) error) error {
	start := opts.First
	if start == nil || (opts.Prefix != nil && cmp.Compare(start, opts.Prefix) < 0) {
		start = opts.Prefix
	}

	var collected storage.Items
	visit := func(item storage.ListItem) bool {
		if opts.Limit != nil && cmp.Compare(item.Key, opts.Limit) >= 0 {
			return false
		}
		if opts.Prefix != nil && !bytes.HasPrefix(item.Key, opts.Prefix) {
			return false
		}
		collected = append(collected, item)
		return true
	}
	if start == nil {
		items.Ascend(visit)
	} else {
		items.AscendGreaterOrEqual(storage.ListItem{Key: start}, visit)
	}

	var pos int
	return fn(ctx, storage.IteratorFunc(func(ctx context.Context, item *storage.ListItem) bool {
		if pos >= len(collected) {
			return false
		}
		next := collected[pos]
		pos++
		item.Key = append(item.Key[:0], next.Key...)
		item.Value = append(item.Value[:0], next.Value...)
		return true
	}))
}
