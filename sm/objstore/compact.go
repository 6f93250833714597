// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package objstore

import (
	"context"
	"encoding/binary"
	"errors"
	"io/fs"
	"os"

	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
	"github.com/vinaypunrao68/fds-src-sub016/storage"
)

// CompactResult describes one token compaction.
type CompactResult struct {
	Token     fds.SmToken
	Copied    int
	Removed   int
	Reclaimed int64
}

// CompactToken copies the live objects of token into a new data file and
// drops its garbage. Writes to the token wait for the compaction. A token
// compacts at most once at a time; a concurrent call fails with
// fds.ErrInProgress. A cancelled compaction leaves the token untouched.
func (store *Store) CompactToken(ctx context.Context, token fds.SmToken) (result CompactResult, err error) {
	defer mon.Task()(&ctx)(&err)
	result.Token = token

	state := store.token(token)
	if !state.compacting.CompareAndSwap(false, true) {
		return result, fds.ErrInProgress.New("token %d is compacting", token)
	}
	defer state.compacting.Store(false)

	state.mu.Lock()
	defer state.mu.Unlock()

	var live, garbage []*ObjMeta
	err = store.forEachMeta(ctx, token, func(meta *ObjMeta) error {
		if meta.Garbage() {
			garbage = append(garbage, meta)
		} else {
			live = append(live, meta)
		}
		return nil
	})
	if err != nil {
		return result, err
	}
	if len(garbage) == 0 {
		return result, nil
	}

	current, err := store.currentFile(ctx, token)
	if err != nil {
		return result, err
	}
	next := current + 1
	files := map[uint32]struct{}{current: {}}

	var batch storage.Batch
	if err := store.copyLive(ctx, token, next, live, &batch, files); err != nil {
		return result, errs.Combine(err, removeFile(store.dataPath(token, next)))
	}
	for _, meta := range garbage {
		files[meta.FileID] = struct{}{}
		batch.Delete(objectKey(token, meta.ObjectID))
		result.Removed++
		result.Reclaimed += int64(meta.Size)
	}
	batch.Put(tokenBytes(prefixFile, token), binary.BigEndian.AppendUint32(nil, next))
	if err := store.index.Apply(ctx, &batch); err != nil {
		return result, errs.Combine(fds.ErrIO.Wrap(err), removeFile(store.dataPath(token, next)))
	}
	result.Copied = len(live)

	var group errs.Group
	for file := range files {
		group.Add(removeFile(store.dataPath(token, file)))
	}
	if err := group.Err(); err != nil {
		store.log.Warn("removing compacted data files", zap.Uint32("token", uint32(token)), zap.Error(err))
	}

	mon.Counter("bytes_reclaimed").Inc(result.Reclaimed)
	store.log.Debug("token compacted",
		zap.Uint32("token", uint32(token)),
		zap.Int("copied", result.Copied),
		zap.Int("removed", result.Removed),
		zap.Int64("reclaimed", result.Reclaimed),
	)
	return result, nil
}

// copyLive writes the live objects into data file next and records their
// new locations in batch.
func (store *Store) copyLive(ctx context.Context, token fds.SmToken, next uint32, live []*ObjMeta, batch *storage.Batch, files map[uint32]struct{}) (err error) {
	fh, err := os.OpenFile(store.dataPath(token, next), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fds.ErrIO.Wrap(err)
	}
	defer func() { err = errs.Combine(err, fds.ErrIO.Wrap(fh.Close())) }()

	var offset int64
	for _, meta := range live {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := store.readData(meta)
		if err != nil {
			return err
		}
		if _, err := fh.Write(data); err != nil {
			return fds.ErrIO.Wrap(err)
		}
		files[meta.FileID] = struct{}{}
		moved := *meta
		moved.FileID, moved.Offset = next, offset
		if err := putMeta(batch, &moved); err != nil {
			return err
		}
		offset += int64(len(data))
	}
	return fds.ErrIO.Wrap(fh.Sync())
}

func removeFile(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fds.ErrIO.Wrap(err)
	}
	return nil
}
