// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package storelogger traces the operations of a key value store.
package storelogger

import (
	"context"
	"encoding/hex"

	"github.com/spacemonkeygo/monkit/v3"
	"go.uber.org/zap"

	"github.com/vinaypunrao68/fds-src-sub016/storage"
)

var mon = monkit.Package()

// maxValuePreview bounds the value bytes written to the log.
const maxValuePreview = 16

// KeyFormat renders a key for the log.
type KeyFormat func(storage.Key) string

// Logger logs every operation of a storage.KeyValueStore at debug level.
type Logger struct {
	log    *zap.Logger
	store  storage.KeyValueStore
	format KeyFormat
}

// New wraps store. Keys are logged with format, or hex encoded when format
// is nil.
func New(log *zap.Logger, store storage.KeyValueStore, format KeyFormat) *Logger {
	if format == nil {
		format = func(key storage.Key) string { return hex.EncodeToString(key) }
	}
	return &Logger{log: log, store: store, format: format}
}

func (store *Logger) key(name string, key storage.Key) zap.Field {
	if key == nil {
		return zap.Skip()
	}
	return zap.String(name, store.format(key))
}

func preview(value storage.Value) zap.Field {
	if len(value) > maxValuePreview {
		value = value[:maxValuePreview]
	}
	return zap.Binary("value", value)
}

// Put stores value under key.
func (store *Logger) Put(ctx context.Context, key storage.Key, value storage.Value) (err error) {
	defer mon.Task()(&ctx)(&err)
	store.log.Debug("put", store.key("key", key), zap.Int("size", len(value)), preview(value))
	return store.store.Put(ctx, key, value)
}

// Get returns the value of key.
func (store *Logger) Get(ctx context.Context, key storage.Key) (_ storage.Value, err error) {
	defer mon.Task()(&ctx)(&err)
	store.log.Debug("get", store.key("key", key))
	return store.store.Get(ctx, key)
}

// Delete removes key.
func (store *Logger) Delete(ctx context.Context, key storage.Key) (err error) {
	defer mon.Task()(&ctx)(&err)
	store.log.Debug("delete", store.key("key", key))
	return store.store.Delete(ctx, key)
}

// Apply applies batch, logging each of its operations.
func (store *Logger) Apply(ctx context.Context, batch *storage.Batch) (err error) {
	defer mon.Task()(&ctx)(&err)
	store.log.Debug("apply", zap.Int("ops", batch.Len()))
	return store.store.Apply(ctx, batch)
}

// Iterate iterates the store, logging every visited key.
func (store *Logger) Iterate(ctx context.Context, opts storage.IterateOptions, fn func(context.Context, storage.Iterator) error) (err error) {
	defer mon.Task()(&ctx)(&err)
	store.log.Debug("iterate",
		store.key("prefix", opts.Prefix),
		store.key("first", opts.First),
		store.key("limit", opts.Limit),
	)
	return store.store.Iterate(ctx, opts, store.trace(store.log, fn))
}

// Snapshot takes a traced snapshot when the store supports snapshots.
func (store *Logger) Snapshot(ctx context.Context) (_ storage.Snapshot, err error) {
	defer mon.Task()(&ctx)(&err)
	snapshotter, ok := store.store.(storage.Snapshotter)
	if !ok {
		return nil, storage.Error.New("store does not support snapshots")
	}
	snap, err := snapshotter.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	store.log.Debug("snapshot")
	return &snapshot{store: store, log: store.log.Named("snapshot"), snap: snap}, nil
}

// Close closes the store.
func (store *Logger) Close() error {
	store.log.Debug("close")
	return store.store.Close()
}

func (store *Logger) trace(log *zap.Logger, fn func(context.Context, storage.Iterator) error) func(context.Context, storage.Iterator) error {
	return func(ctx context.Context, it storage.Iterator) error {
		return fn(ctx, storage.IteratorFunc(func(ctx context.Context, item *storage.ListItem) bool {
			if !it.Next(ctx, item) {
				return false
			}
			log.Debug("next", store.key("key", item.Key), zap.Int("size", len(item.Value)))
			return true
		}))
	}
}

type snapshot struct {
	store *Logger
	log   *zap.Logger
	snap  storage.Snapshot
}

func (s *snapshot) Get(ctx context.Context, key storage.Key) (_ storage.Value, err error) {
	defer mon.Task()(&ctx)(&err)
	s.log.Debug("get", s.store.key("key", key))
	return s.snap.Get(ctx, key)
}

func (s *snapshot) Iterate(ctx context.Context, opts storage.IterateOptions, fn func(context.Context, storage.Iterator) error) (err error) {
	defer mon.Task()(&ctx)(&err)
	s.log.Debug("iterate", s.store.key("first", opts.First), s.store.key("limit", opts.Limit))
	return s.snap.Iterate(ctx, opts, s.store.trace(s.log, fn))
}

func (s *snapshot) Release() {
	s.log.Debug("release")
	s.snap.Release()
}
