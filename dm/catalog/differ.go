// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package catalog

import (
	"bytes"
	"context"

	"github.com/vinaypunrao68/fds-src-sub016/storage"
)

// DiffKind classifies one key of a diff.
type DiffKind int

const (
	// DiffMatch is a key present on both sides with equal values.
	DiffMatch DiffKind = iota
	// DiffValueMismatch is a key present on both sides with different values.
	DiffValueMismatch
	// DiffAdditionalKey is a key only present in the source.
	DiffAdditionalKey
	// DiffDeletedKey is a key only present in the destination.
	DiffDeletedKey
)

// String implements fmt.Stringer.
func (kind DiffKind) String() string {
	switch kind {
	case DiffMatch:
		return "MATCH"
	case DiffValueMismatch:
		return "VALUE_MISMATCH"
	case DiffAdditionalKey:
		return "ADDITIONAL_KEY"
	case DiffDeletedKey:
		return "DELETED_KEY"
	default:
		return "UNKNOWN"
	}
}

// DiffEntry is one step of a diff.
type DiffEntry struct {
	Kind     DiffKind
	Key      storage.Key
	SrcValue storage.Value
	DstValue storage.Value
}

// DiffStats counts the entries of a diff by kind.
type DiffStats struct {
	Match         int
	ValueMismatch int
	AdditionalKey int
	DeletedKey    int
}

// Add counts entry.
func (stats *DiffStats) Add(entry DiffEntry) {
	switch entry.Kind {
	case DiffMatch:
		stats.Match++
	case DiffValueMismatch:
		stats.ValueMismatch++
	case DiffAdditionalKey:
		stats.AdditionalKey++
	case DiffDeletedKey:
		stats.DeletedKey++
	}
}

// Differences returns the number of entries that are not matches.
func (stats DiffStats) Differences() int {
	return stats.ValueMismatch + stats.AdditionalKey + stats.DeletedKey
}

// ValueEqual decides whether two values of the same key match.
type ValueEqual func(key storage.Key, src, dst storage.Value) bool

// BytesEqual compares values bytewise.
func BytesEqual(_ storage.Key, src, dst storage.Value) bool { return bytes.Equal(src, dst) }

// Differ walks two iterators ordered by the same comparator in lockstep.
type Differ struct {
	src, dst storage.Iterator
	cmp      storage.Comparator
	equal    ValueEqual

	srcItem, dstItem storage.ListItem
	srcOK, dstOK     bool
	started          bool
}

// NewDiffer returns a differ of src against dst. A nil equal compares values
// bytewise.
func NewDiffer(src, dst storage.Iterator, cmp storage.Comparator, equal ValueEqual) *Differ {
	if equal == nil {
		equal = BytesEqual
	}
	return &Differ{src: src, dst: dst, cmp: cmp, equal: equal}
}

// Next returns the next diff entry. It returns false exactly when both
// iterators are exhausted.
func (differ *Differ) Next(ctx context.Context) (DiffEntry, bool) {
	if !differ.started {
		differ.started = true
		differ.advanceSrc(ctx)
		differ.advanceDst(ctx)
	}

	switch {
	case !differ.srcOK && !differ.dstOK:
		return DiffEntry{}, false
	case !differ.dstOK:
		return differ.additional(ctx), true
	case !differ.srcOK:
		return differ.deleted(ctx), true
	}

	c := differ.cmp.Compare(differ.srcItem.Key, differ.dstItem.Key)
	switch {
	case c < 0:
		return differ.additional(ctx), true
	case c > 0:
		return differ.deleted(ctx), true
	}

	entry := DiffEntry{
		Kind:     DiffMatch,
		Key:      differ.srcItem.Key,
		SrcValue: differ.srcItem.Value,
		DstValue: differ.dstItem.Value,
	}
	if !differ.equal(entry.Key, entry.SrcValue, entry.DstValue) {
		entry.Kind = DiffValueMismatch
	}
	differ.advanceSrc(ctx)
	differ.advanceDst(ctx)
	return entry, true
}

func (differ *Differ) additional(ctx context.Context) DiffEntry {
	entry := DiffEntry{Kind: DiffAdditionalKey, Key: differ.srcItem.Key, SrcValue: differ.srcItem.Value}
	differ.advanceSrc(ctx)
	return entry
}

func (differ *Differ) deleted(ctx context.Context) DiffEntry {
	entry := DiffEntry{Kind: DiffDeletedKey, Key: differ.dstItem.Key, DstValue: differ.dstItem.Value}
	differ.advanceDst(ctx)
	return entry
}

// iterators may reuse their buffers, so every item is copied before moving on.
func (differ *Differ) advanceSrc(ctx context.Context) {
	var item storage.ListItem
	differ.srcOK = differ.src.Next(ctx, &item)
	differ.srcItem = storage.CloneItem(item)
}

func (differ *Differ) advanceDst(ctx context.Context) {
	var item storage.ListItem
	differ.dstOK = differ.dst.Next(ctx, &item)
	differ.dstItem = storage.CloneItem(item)
}

// DiffAll runs differ to completion, calling fn for every entry.
func DiffAll(ctx context.Context, differ *Differ, fn func(DiffEntry) error) (stats DiffStats, err error) {
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		entry, ok := differ.Next(ctx)
		if !ok {
			return stats, nil
		}
		stats.Add(entry)
		if fn != nil {
			if err := fn(entry); err != nil {
				return stats, err
			}
		}
	}
}

// DiffReaders diffs the opts range of src against the same range of dst.
func DiffReaders(ctx context.Context, src, dst storage.Reader, opts storage.IterateOptions, cmp storage.Comparator, equal ValueEqual, fn func(DiffEntry) error) (stats DiffStats, err error) {
	defer mon.Task()(&ctx)(&err)
	err = src.Iterate(ctx, opts, func(ctx context.Context, srcIt storage.Iterator) error {
		return dst.Iterate(ctx, opts, func(ctx context.Context, dstIt storage.Iterator) error {
			var err error
			stats, err = DiffAll(ctx, NewDiffer(srcIt, dstIt, cmp, equal), fn)
			return err
		})
	})
	return stats, err
}

// SliceIterator iterates over items in order.
func SliceIterator(items storage.Items) storage.Iterator {
	return storage.IteratorFunc(func(ctx context.Context, item *storage.ListItem) bool {
		if len(items) == 0 {
			return false
		}
		*item = items[0]
		items = items[1:]
		return true
	})
}
