// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package objstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"storj.io/common/testcontext"
	"storj.io/common/testrand"

	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
	"github.com/vinaypunrao68/fds-src-sub016/sm/objstore"
)

func objectID(token, n byte) fds.ObjectID {
	id := fds.ObjectID(testrand.BytesInt(fds.ObjectIDSize))
	id[0], id[1] = token, n
	return id
}

func openStore(ctx *testcontext.Context, t *testing.T) (*objstore.Store, string) {
	dir := ctx.Dir("disk")
	store, err := objstore.Open(zaptest.NewLogger(t), dir, objstore.Config{})
	require.NoError(t, err)
	return store, dir
}

func dataFiles(t *testing.T, dir string) []string {
	matches, err := filepath.Glob(filepath.Join(dir, "data", "token-*.data"))
	require.NoError(t, err)
	return matches
}

func TestPutGetDelete(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	store, _ := openStore(ctx, t)
	defer ctx.Check(store.Close)

	a, b := objectID(1, 1), objectID(1, 2)
	dataA, dataB := testrand.BytesInt(100), testrand.BytesInt(300)
	require.NoError(t, store.Put(ctx, a, dataA))
	require.NoError(t, store.Put(ctx, b, dataB))
	require.NoError(t, store.Put(ctx, a, dataA))

	got, err := store.Get(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, dataB, got)

	stats, err := store.TokenStats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, objstore.TokenStats{Token: 1, Objects: 2, LiveBytes: 400}, stats, "duplicates are stored once")

	require.NoError(t, store.Delete(ctx, a))
	got, err = store.Get(ctx, a)
	require.NoError(t, err, "one reference left")
	assert.Equal(t, dataA, got)

	require.NoError(t, store.Delete(ctx, a))
	_, err = store.Get(ctx, a)
	assert.True(t, fds.ErrNotFound.Has(err))
	assert.True(t, fds.ErrNotFound.Has(store.Delete(ctx, a)))
	assert.True(t, fds.ErrNotFound.Has(store.Delete(ctx, objectID(2, 0))))

	stats, err = store.TokenStats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 100, int(stats.GarbageBytes))
	assert.InDelta(t, 0.25, stats.GarbageRatio(), 1e-9)

	tokens, err := store.Tokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, []fds.SmToken{1}, tokens)

	// storing garbage again revives it
	require.NoError(t, store.Put(ctx, a, dataA))
	got, err = store.Get(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, dataA, got)
}

func TestCompactToken(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	store, dir := openStore(ctx, t)
	defer ctx.Check(store.Close)

	data := make(map[fds.ObjectID][]byte)
	var ids []fds.ObjectID
	for i := 0; i < 10; i++ {
		id := objectID(7, byte(i))
		data[id] = testrand.BytesInt(64 + i)
		ids = append(ids, id)
		require.NoError(t, store.Put(ctx, id, data[id]))
	}
	other := objectID(8, 0)
	require.NoError(t, store.Put(ctx, other, []byte("other")))

	result, err := store.CompactToken(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, objstore.CompactResult{Token: 7}, result, "nothing to reclaim")

	var reclaimed int64
	for _, id := range ids[:4] {
		require.NoError(t, store.Delete(ctx, id))
		reclaimed += int64(len(data[id]))
	}

	result, err = store.CompactToken(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 6, result.Copied)
	assert.Equal(t, 4, result.Removed)
	assert.Equal(t, reclaimed, result.Reclaimed)

	stats, err := store.TokenStats(ctx, 7)
	require.NoError(t, err)
	assert.Zero(t, stats.GarbageObjects)
	assert.Equal(t, 6, stats.Objects)

	for _, id := range ids[4:] {
		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, data[id], got)
	}
	_, err = store.Get(ctx, ids[0])
	assert.True(t, fds.ErrNotFound.Has(err))

	assert.Len(t, dataFiles(t, dir), 2, "one file for each token")
	got, err := store.Get(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, []byte("other"), got)

	// writes after a compaction go to the new file
	fresh := objectID(7, 99)
	require.NoError(t, store.Put(ctx, fresh, []byte("fresh")))
	got, err = store.Get(ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh"), got)
	assert.Len(t, dataFiles(t, dir), 2)
}

func TestCompactCancelled(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	store, dir := openStore(ctx, t)
	defer ctx.Check(store.Close)

	keep, drop := objectID(3, 0), objectID(3, 1)
	require.NoError(t, store.Put(ctx, keep, []byte("keep")))
	require.NoError(t, store.Put(ctx, drop, []byte("drop")))
	require.NoError(t, store.Delete(ctx, drop))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err := store.CompactToken(cancelled, 3)
	require.Error(t, err)

	stats, err := store.TokenStats(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.GarbageObjects)
	got, err := store.Get(ctx, keep)
	require.NoError(t, err)
	assert.Equal(t, []byte("keep"), got)

	files := dataFiles(t, dir)
	require.Len(t, files, 1)
	_, err = os.Stat(files[0])
	require.NoError(t, err)
}
