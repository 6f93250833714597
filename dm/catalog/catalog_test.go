// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"storj.io/common/testcontext"

	"github.com/vinaypunrao68/fds-src-sub016/dm/catalog"
	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
	"github.com/vinaypunrao68/fds-src-sub016/storage/teststore"
)

func newCatalog(ctx context.Context, t *testing.T, id fds.VolumeID) *catalog.VolumeCatalog {
	vc := catalog.NewVolumeCatalog(zaptest.NewLogger(t), id, teststore.NewWithComparator(catalog.KeyComparator))
	require.NoError(t, vc.SetVolumeMeta(ctx, &catalog.VolumeMetaDesc{ID: id, Name: "vol", MaxObjectSize: 4096}))
	return vc
}

func TestPutGetBlob(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	vc := newCatalog(ctx, t, 7)
	defer ctx.Check(vc.Close)

	objs := catalog.BlobObjList{
		{Offset: 0, ObjectID: oid(1), Size: 4096},
		{Offset: 4096, ObjectID: oid(2), Size: 100},
	}
	require.NoError(t, vc.PutBlob(ctx, &catalog.BlobMetaDesc{Name: "A", Version: 1}, objs))

	meta, err := vc.GetBlobMeta(ctx, "A")
	require.NoError(t, err)
	assert.EqualValues(t, 4196, meta.Size)
	assert.EqualValues(t, 1, meta.SequenceID)

	got, err := vc.GetBlobObjects(ctx, "A")
	require.NoError(t, err)
	assert.True(t, objs.Equal(got))

	vol, err := vc.VolumeMeta(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, vol.BlobCount)
	assert.EqualValues(t, 1, vol.SequenceID)
	assert.EqualValues(t, 4196, vol.Size)

	_, err = vc.GetBlobMeta(ctx, "missing")
	assert.True(t, fds.ErrNotFound.Has(err))

	// a blob whose name extends another keeps its own objects
	require.NoError(t, vc.PutBlob(ctx, &catalog.BlobMetaDesc{Name: "AB"}, catalog.BlobObjList{{Offset: 0, ObjectID: oid(9), Size: 1}}))
	got, err = vc.GetBlobObjects(ctx, "A")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestPutBlobRejectsBadObjectList(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	vc := newCatalog(ctx, t, 1)
	err := vc.PutBlob(ctx, &catalog.BlobMetaDesc{Name: "A"}, catalog.BlobObjList{{Offset: 10, ObjectID: oid(1), Size: 1}})
	assert.True(t, fds.ErrInvalidArg.Has(err))

	err = vc.PutBlob(ctx, &catalog.BlobMetaDesc{Name: "A"}, catalog.BlobObjList{
		{Offset: 4096, ObjectID: oid(1), Size: 1},
		{Offset: 0, ObjectID: oid(2), Size: 1},
	})
	assert.True(t, fds.ErrInvalidArg.Has(err))
}

func TestExpungeTracking(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	vc := newCatalog(ctx, t, 3)
	require.NoError(t, vc.PutBlob(ctx, &catalog.BlobMetaDesc{Name: "A"}, catalog.BlobObjList{
		{Offset: 0, ObjectID: oid(1), Size: 4096},
		{Offset: 4096, ObjectID: oid(2), Size: 4096},
	}))
	require.NoError(t, vc.PutBlob(ctx, &catalog.BlobMetaDesc{Name: "A"}, catalog.BlobObjList{
		{Offset: 0, ObjectID: oid(1), Size: 4096},
	}))

	expunged, err := vc.ListExpunged(ctx)
	require.NoError(t, err)
	assert.Equal(t, []fds.ObjectID{oid(2)}, expunged)

	vol, err := vc.VolumeMeta(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, vol.BlobCount)
	assert.EqualValues(t, 4096, vol.Size)

	require.NoError(t, vc.DeleteBlob(ctx, "A"))
	expunged, err = vc.ListExpunged(ctx)
	require.NoError(t, err)
	assert.Equal(t, []fds.ObjectID{oid(1), oid(2)}, expunged)

	require.NoError(t, vc.ClearExpunged(ctx, expunged))
	expunged, err = vc.ListExpunged(ctx)
	require.NoError(t, err)
	assert.Empty(t, expunged)

	vol, err = vc.VolumeMeta(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, vol.BlobCount)
	assert.EqualValues(t, 0, vol.Size)

	assert.True(t, fds.ErrNotFound.Has(vc.DeleteBlob(ctx, "A")))
}

func TestApplyUpdate(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	vc := newCatalog(ctx, t, 3)
	require.NoError(t, vc.ApplyUpdate(ctx, &catalog.CatalogUpdate{
		Op:      catalog.UpdatePutBlob,
		Blob:    catalog.BlobMetaDesc{Name: "x", Version: 2},
		Objects: catalog.BlobObjList{{Offset: 0, ObjectID: oid(4), Size: 10}},
	}))
	meta, err := vc.GetBlobMeta(ctx, "x")
	require.NoError(t, err)
	assert.EqualValues(t, 2, meta.Version)

	require.NoError(t, vc.ApplyUpdate(ctx, &catalog.CatalogUpdate{Op: catalog.UpdateDeleteBlob, Blob: catalog.BlobMetaDesc{Name: "x"}}))
	// deleting again is not an error for replayed updates
	require.NoError(t, vc.ApplyUpdate(ctx, &catalog.CatalogUpdate{Op: catalog.UpdateDeleteBlob, Blob: catalog.BlobMetaDesc{Name: "x"}}))

	err = vc.ApplyUpdate(ctx, &catalog.CatalogUpdate{Op: 99})
	assert.True(t, fds.ErrInvalidArg.Has(err))
}

func TestSnapshotIsStable(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	vc := newCatalog(ctx, t, 3)
	require.NoError(t, vc.PutBlob(ctx, &catalog.BlobMetaDesc{Name: "A"}, catalog.BlobObjList{{Offset: 0, ObjectID: oid(1), Size: 1}}))

	snap, err := vc.Snapshot(ctx)
	require.NoError(t, err)
	defer snap.Release()

	require.NoError(t, vc.PutBlob(ctx, &catalog.BlobMetaDesc{Name: "B"}, nil))
	require.NoError(t, vc.DeleteBlob(ctx, "A"))

	var names []string
	require.NoError(t, snap.ForEachBlob(ctx, func(ctx context.Context, meta *catalog.BlobMetaDesc) error {
		names = append(names, meta.Name)
		return nil
	}))
	assert.Equal(t, []string{"A"}, names)

	snap.Release()
	snap.Release()
}

func TestStatsAndBlobsWithObject(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	vc := newCatalog(ctx, t, 3)
	require.NoError(t, vc.PutBlob(ctx, &catalog.BlobMetaDesc{Name: "A"}, catalog.BlobObjList{
		{Offset: 0, ObjectID: oid(1), Size: 4096},
		{Offset: 4096, ObjectID: oid(1), Size: 4096},
	}))
	require.NoError(t, vc.PutBlob(ctx, &catalog.BlobMetaDesc{Name: "B"}, catalog.BlobObjList{
		{Offset: 0, ObjectID: oid(1), Size: 10},
		{Offset: 4096, ObjectID: oid(2), Size: 10},
	}))

	names, err := vc.BlobsWithObject(ctx, oid(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, names)

	names, err = vc.BlobsWithObject(ctx, oid(3))
	require.NoError(t, err)
	assert.Empty(t, names)

	stats, err := vc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, catalog.Stats{Blobs: 2, Objects: 4, UniqueObjects: 2, Size: 8192 + 4106}, stats)
}
