// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package objstore stores the objects of one SM disk.
//
// Objects are appended to one data file per token and indexed in leveldb.
// Deleting an object only drops a reference; the bytes stay in the data file
// as garbage until the token is compacted.
package objstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
	"github.com/vinaypunrao68/fds-src-sub016/storage"
	"github.com/vinaypunrao68/fds-src-sub016/storage/leveldb"
)

var (
	mon = monkit.Package()

	// Error is the object store error class.
	Error = errs.Class("objstore")
)

const (
	prefixObject = 'o'
	prefixFile   = 'f'
)

// Config configures a store.
type Config struct {
	BitsPerToken uint `help:"leading object id bits selecting the token" default:"8"`
	Sync         bool `help:"fsync data files after every write" default:"false"`
}

// ObjMeta is the index entry of an object.
type ObjMeta struct {
	ObjectID fds.ObjectID `msgpack:"id"`
	Token    fds.SmToken  `msgpack:"tok"`
	FileID   uint32       `msgpack:"file"`
	Offset   int64        `msgpack:"off"`
	Size     uint32       `msgpack:"size"`
	RefCount uint32       `msgpack:"refs"`
}

// Garbage reports whether nothing references the object anymore.
func (meta *ObjMeta) Garbage() bool { return meta.RefCount == 0 }

type tokenState struct {
	mu         sync.Mutex
	compacting atomic.Bool
}

// Store is the object store of one disk.
type Store struct {
	log     *zap.Logger
	config  Config
	dataDir string
	index   storage.KeyValueStore

	mu     sync.Mutex
	tokens map[fds.SmToken]*tokenState
}

// Open opens or creates the store under dir.
func Open(log *zap.Logger, dir string, config Config) (*Store, error) {
	if config.BitsPerToken == 0 {
		config.BitsPerToken = fds.DefaultBitsPerToken
	}
	dataDir := filepath.Join(dir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, Error.Wrap(err)
	}
	index, err := leveldb.New(log.Named("index"), filepath.Join(dir, "index"), leveldb.Options{})
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return New(log, dataDir, index, config), nil
}

// New returns a store keeping data files in dataDir and its index in index.
func New(log *zap.Logger, dataDir string, index storage.KeyValueStore, config Config) *Store {
	if config.BitsPerToken == 0 {
		config.BitsPerToken = fds.DefaultBitsPerToken
	}
	return &Store{
		log:     log,
		config:  config,
		dataDir: dataDir,
		index:   index,
		tokens:  make(map[fds.SmToken]*tokenState),
	}
}

// BitsPerToken returns the token width of the store.
func (store *Store) BitsPerToken() uint { return store.config.BitsPerToken }

func (store *Store) token(token fds.SmToken) *tokenState {
	store.mu.Lock()
	defer store.mu.Unlock()
	state, ok := store.tokens[token]
	if !ok {
		state = &tokenState{}
		store.tokens[token] = state
	}
	return state
}

func tokenBytes(prefix byte, token fds.SmToken) storage.Key {
	return binary.BigEndian.AppendUint32(storage.Key{prefix}, uint32(token))
}

func objectKey(token fds.SmToken, id fds.ObjectID) storage.Key {
	return append(tokenBytes(prefixObject, token), id[:]...)
}

func (store *Store) dataPath(token fds.SmToken, file uint32) string {
	return filepath.Join(store.dataDir, fmt.Sprintf("token-%08x-%08x.data", uint32(token), file))
}

func (store *Store) getMeta(ctx context.Context, token fds.SmToken, id fds.ObjectID) (*ObjMeta, error) {
	data, err := store.index.Get(ctx, objectKey(token, id))
	if storage.ErrKeyNotFound.Has(err) {
		return nil, fds.ErrNotFound.New("object %v", id)
	}
	if err != nil {
		return nil, fds.ErrIO.Wrap(err)
	}
	var meta ObjMeta
	if err := msgpack.Unmarshal(data, &meta); err != nil {
		return nil, Error.Wrap(err)
	}
	return &meta, nil
}

func putMeta(batch *storage.Batch, meta *ObjMeta) error {
	data, err := msgpack.Marshal(meta)
	if err != nil {
		return Error.Wrap(err)
	}
	batch.Put(objectKey(meta.Token, meta.ObjectID), data)
	return nil
}

func (store *Store) currentFile(ctx context.Context, token fds.SmToken) (uint32, error) {
	data, err := store.index.Get(ctx, tokenBytes(prefixFile, token))
	if storage.ErrKeyNotFound.Has(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fds.ErrIO.Wrap(err)
	}
	if len(data) != 4 {
		return 0, Error.New("corrupted file id of token %d", token)
	}
	return binary.BigEndian.Uint32(data), nil
}

// Put stores an object. Storing an object that exists only adds a reference.
func (store *Store) Put(ctx context.Context, id fds.ObjectID, data []byte) (err error) {
	defer mon.Task()(&ctx)(&err)

	token := fds.TokenOf(id, store.config.BitsPerToken)
	state := store.token(token)
	state.mu.Lock()
	defer state.mu.Unlock()

	var batch storage.Batch
	meta, err := store.getMeta(ctx, token, id)
	switch {
	case err == nil:
		meta.RefCount++
	case fds.ErrNotFound.Has(err):
		meta, err = store.appendData(ctx, token, id, data)
		if err != nil {
			return err
		}
		batch.Put(tokenBytes(prefixFile, token), binary.BigEndian.AppendUint32(nil, meta.FileID))
	default:
		return err
	}
	if err := putMeta(&batch, meta); err != nil {
		return err
	}
	return fds.ErrIO.Wrap(store.index.Apply(ctx, &batch))
}

func (store *Store) appendData(ctx context.Context, token fds.SmToken, id fds.ObjectID, data []byte) (_ *ObjMeta, err error) {
	file, err := store.currentFile(ctx, token)
	if err != nil {
		return nil, err
	}
	fh, err := os.OpenFile(store.dataPath(token, file), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fds.ErrIO.Wrap(err)
	}
	defer func() { err = errs.Combine(err, fds.ErrIO.Wrap(fh.Close())) }()

	info, err := fh.Stat()
	if err != nil {
		return nil, fds.ErrIO.Wrap(err)
	}
	if _, err := fh.Write(data); err != nil {
		return nil, fds.ErrIO.Wrap(err)
	}
	if store.config.Sync {
		if err := fh.Sync(); err != nil {
			return nil, fds.ErrIO.Wrap(err)
		}
	}
	return &ObjMeta{
		ObjectID: id,
		Token:    token,
		FileID:   file,
		Offset:   info.Size(),
		Size:     uint32(len(data)),
		RefCount: 1,
	}, nil
}

// Get returns the data of a referenced object.
func (store *Store) Get(ctx context.Context, id fds.ObjectID) (_ []byte, err error) {
	defer mon.Task()(&ctx)(&err)

	token := fds.TokenOf(id, store.config.BitsPerToken)
	state := store.token(token)
	state.mu.Lock()
	defer state.mu.Unlock()

	meta, err := store.getMeta(ctx, token, id)
	if err != nil {
		return nil, err
	}
	if meta.Garbage() {
		return nil, fds.ErrNotFound.New("object %v", id)
	}
	return store.readData(meta)
}

func (store *Store) readData(meta *ObjMeta) (_ []byte, err error) {
	fh, err := os.Open(store.dataPath(meta.Token, meta.FileID))
	if err != nil {
		return nil, fds.ErrIO.Wrap(err)
	}
	defer func() { err = errs.Combine(err, fds.ErrIO.Wrap(fh.Close())) }()

	data := make([]byte, meta.Size)
	if _, err := fh.ReadAt(data, meta.Offset); err != nil && !errors.Is(err, io.EOF) {
		return nil, fds.ErrIO.Wrap(err)
	}
	return data, nil
}

// Delete drops one reference to an object. The last reference turns the
// object into garbage.
func (store *Store) Delete(ctx context.Context, id fds.ObjectID) (err error) {
	defer mon.Task()(&ctx)(&err)

	token := fds.TokenOf(id, store.config.BitsPerToken)
	state := store.token(token)
	state.mu.Lock()
	defer state.mu.Unlock()

	meta, err := store.getMeta(ctx, token, id)
	if err != nil {
		return err
	}
	if meta.Garbage() {
		return fds.ErrNotFound.New("object %v", id)
	}
	meta.RefCount--

	var batch storage.Batch
	if err := putMeta(&batch, meta); err != nil {
		return err
	}
	return fds.ErrIO.Wrap(store.index.Apply(ctx, &batch))
}

// TokenStats describes the objects of a token.
type TokenStats struct {
	Token          fds.SmToken
	Objects        int
	LiveBytes      int64
	GarbageObjects int
	GarbageBytes   int64
}

// GarbageRatio is the share of garbage bytes in the token's data.
func (stats TokenStats) GarbageRatio() float64 {
	total := stats.LiveBytes + stats.GarbageBytes
	if total == 0 {
		return 0
	}
	return float64(stats.GarbageBytes) / float64(total)
}

func (store *Store) forEachMeta(ctx context.Context, token fds.SmToken, fn func(meta *ObjMeta) error) error {
	return store.index.Iterate(ctx, storage.IterateOptions{Prefix: tokenBytes(prefixObject, token), First: tokenBytes(prefixObject, token)},
		func(ctx context.Context, it storage.Iterator) error {
			var item storage.ListItem
			for it.Next(ctx, &item) {
				var meta ObjMeta
				if err := msgpack.Unmarshal(item.Value, &meta); err != nil {
					return Error.Wrap(err)
				}
				if err := fn(&meta); err != nil {
					return err
				}
			}
			return nil
		})
}

// TokenStats returns the statistics of token.
func (store *Store) TokenStats(ctx context.Context, token fds.SmToken) (stats TokenStats, err error) {
	defer mon.Task()(&ctx)(&err)
	stats.Token = token
	err = store.forEachMeta(ctx, token, func(meta *ObjMeta) error {
		if meta.Garbage() {
			stats.GarbageObjects++
			stats.GarbageBytes += int64(meta.Size)
		} else {
			stats.Objects++
			stats.LiveBytes += int64(meta.Size)
		}
		return nil
	})
	return stats, err
}

// Tokens returns the tokens that have data files.
func (store *Store) Tokens(ctx context.Context) (tokens []fds.SmToken, err error) {
	defer mon.Task()(&ctx)(&err)
	err = store.index.Iterate(ctx, storage.IterateOptions{Prefix: storage.Key{prefixFile}, First: storage.Key{prefixFile}},
		func(ctx context.Context, it storage.Iterator) error {
			var item storage.ListItem
			for it.Next(ctx, &item) {
				if len(item.Key) != 5 {
					return Error.New("corrupted file key %x", []byte(item.Key))
				}
				tokens = append(tokens, fds.SmToken(binary.BigEndian.Uint32(item.Key[1:])))
			}
			return nil
		})
	return tokens, err
}

// Close closes the index.
func (store *Store) Close() error {
	return Error.Wrap(store.index.Close())
}
