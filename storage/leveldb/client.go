// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package leveldb

import (
	"bytes"
	"context"
	"sync"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/comparer"
	leveldb_errors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/vinaypunrao68/fds-src-sub016/storage"
)

var (
	mon = monkit.Package()

	// Error is the leveldb client error class.
	Error = errs.Class("leveldb")
)

// Options configures how the database is opened.
type Options struct {
	// Comparer orders keys; nil means bytewise ordering.
	Comparer comparer.Comparer
	// ReadOnly opens the database without write access.
	ReadOnly bool
	// ErrorIfMissing fails the open if the database does not exist.
	ErrorIfMissing bool
	// BlockCacheCapacity is the block cache size in bytes; zero uses the default.
	BlockCacheCapacity int
}

// Client is the storage interface for a leveldb database.
type Client struct {
	log  *zap.Logger
	db   *leveldb.DB
	cmp  storage.Comparator
	Path string
}

// New opens or creates a leveldb database at path.
func New(log *zap.Logger, path string, options Options) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}

	opts := &opt.Options{
		Comparer:           options.Comparer,
		ReadOnly:           options.ReadOnly,
		ErrorIfMissing:     options.ErrorIfMissing,
		BlockCacheCapacity: options.BlockCacheCapacity,
		Filter:             filter.NewBloomFilter(10),
	}

	db, err := leveldb.OpenFile(path, opts)
	if err != nil && !options.ReadOnly && leveldb_errors.IsCorrupted(err) {
		log.Warn("recovering corrupted database", zap.String("path", path), zap.Error(err))
		db, err = leveldb.RecoverFile(path, opts)
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}

	var cmp storage.Comparator
	if options.Comparer != nil {
		cmp = func(a, b storage.Key) int { return options.Comparer.Compare(a, b) }
	}

	return &Client{
		log:  log,
		db:   db,
		cmp:  cmp,
		Path: path,
	}, nil
}

// Put adds a value to the provided key.
func (client *Client) Put(ctx context.Context, key storage.Key, value storage.Value) (err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return storage.ErrEmptyKey.New("")
	}
	return Error.Wrap(client.db.Put(key, value, nil))
}

// Get returns the value for key.
func (client *Client) Get(ctx context.Context, key storage.Key) (_ storage.Value, err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return nil, storage.ErrEmptyKey.New("")
	}
	value, err := client.db.Get(key, nil)
	if err != nil {
		if errs.Is(err, leveldb.ErrNotFound) {
			return nil, storage.ErrKeyNotFound.New("%q", key)
		}
		return nil, Error.Wrap(err)
	}
	return value, nil
}

// Delete deletes key and the value.
func (client *Client) Delete(ctx context.Context, key storage.Key) (err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return storage.ErrEmptyKey.New("")
	}
	return Error.Wrap(client.db.Delete(key, nil))
}

// Apply writes the batch atomically.
func (client *Client) Apply(ctx context.Context, batch *storage.Batch) (err error) {
	defer mon.Task()(&ctx)(&err)
	if err := batch.Validate(); err != nil {
		return err
	}

	wb := new(leveldb.Batch)
	for _, op := range batch.Ops() {
		if op.Delete {
			wb.Delete(op.Key)
		} else {
			wb.Put(op.Key, op.Value)
		}
	}
	return Error.Wrap(client.db.Write(wb, &opt.WriteOptions{Sync: true}))
}

// Iterate iterates over items based on opts.
func (client *Client) Iterate(ctx context.Context, opts storage.IterateOptions, fn func(context.Context, storage.Iterator) error) (err error) {
	defer mon.Task()(&ctx)(&err)
	it := client.db.NewIterator(iterateRange(client.cmp, opts), nil)
	return iterate(ctx, it, opts, fn)
}

// Snapshot returns a point-in-time view of the database.
func (client *Client) Snapshot(ctx context.Context) (_ storage.Snapshot, err error) {
	defer mon.Task()(&ctx)(&err)
	snap, err := client.db.GetSnapshot()
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return &snapshot{snap: snap, cmp: client.cmp}, nil
}

// Compact compacts the whole key range.
func (client *Client) Compact(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)
	return Error.Wrap(client.db.CompactRange(util.Range{}))
}

// Close closes the database.
func (client *Client) Close() error {
	return Error.Wrap(client.db.Close())
}

type snapshot struct {
	mu       sync.Mutex
	snap     *leveldb.Snapshot
	cmp      storage.Comparator
	released bool
}

func (s *snapshot) Get(ctx context.Context, key storage.Key) (_ storage.Value, err error) {
	defer mon.Task()(&ctx)(&err)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil, storage.ErrClosed.New("snapshot released")
	}
	value, err := s.snap.Get(key, nil)
	if err != nil {
		if errs.Is(err, leveldb.ErrNotFound) {
			return nil, storage.ErrKeyNotFound.New("%q", key)
		}
		return nil, Error.Wrap(err)
	}
	return value, nil
}

func (s *snapshot) Iterate(ctx context.Context, opts storage.IterateOptions, fn func(context.Context, storage.Iterator) error) (err error) {
	defer mon.Task()(&ctx)(&err)
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return storage.ErrClosed.New("snapshot released")
	}
	it := s.snap.NewIterator(iterateRange(s.cmp, opts), nil)
	s.mu.Unlock()
	return iterate(ctx, it, opts, fn)
}

func (s *snapshot) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.released = true
	s.snap.Release()
}

func iterateRange(cmp storage.Comparator, opts storage.IterateOptions) *util.Range {
	start := opts.First
	if start == nil || (opts.Prefix != nil && cmp.Compare(start, opts.Prefix) < 0) {
		start = opts.Prefix
	}
	if start == nil && opts.Limit == nil {
		return nil
	}
	return &util.Range{Start: start, Limit: opts.Limit}
}

func iterate(ctx context.Context, it iterator.Iterator, opts storage.IterateOptions, fn func(context.Context, storage.Iterator) error) error {
	defer it.Release()

	done := false
	err := fn(ctx, storage.IteratorFunc(func(ctx context.Context, item *storage.ListItem) bool {
		if done || !it.Next() {
			done = true
			return false
		}
		if opts.Prefix != nil && !bytes.HasPrefix(it.Key(), opts.Prefix) {
			done = true
			return false
		}
		item.Key = append(item.Key[:0], it.Key()...)
		item.Value = append(item.Value[:0], it.Value()...)
		return true
	}))
	return errs.Combine(err, Error.Wrap(it.Error()))
}
