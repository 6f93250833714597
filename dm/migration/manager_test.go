// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package migration_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"storj.io/common/testcontext"

	"github.com/vinaypunrao68/fds-src-sub016/dm/catalog"
	"github.com/vinaypunrao68/fds-src-sub016/dm/migration"
	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
)

func TestMigrateSingleBlob(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	c := newCluster(t, nil, testConfig())
	src := c.source.catalogs.create(ctx, t, 5, 0)
	dst := c.dest.catalogs.create(ctx, t, 5, 0)

	objs := catalog.BlobObjList{
		{Offset: 0, ObjectID: objectID(1), Size: 4096},
		{Offset: 4096, ObjectID: objectID(2), Size: 4096},
	}
	require.NoError(t, src.PutBlob(ctx, &catalog.BlobMetaDesc{Name: "A", Version: 1}, objs))

	result, err := c.start(ctx, 1, 5)
	require.NoError(t, err)
	require.NoError(t, wait(t, result))

	got, err := dst.GetBlobObjects(ctx, "A")
	require.NoError(t, err)
	assert.True(t, objs.Equal(got))

	report, err := catalog.CompareVolumes(ctx, src, dst)
	require.NoError(t, err)
	assert.True(t, report.Consistent(), report.Differences)

	srcVol, err := src.VolumeMeta(ctx)
	require.NoError(t, err)
	dstVol, err := dst.VolumeMeta(ctx)
	require.NoError(t, err)
	assert.Equal(t, srcVol.SequenceID, dstVol.SequenceID)
	assert.EqualValues(t, 1, dstVol.Version)
	assert.EqualValues(t, 1, dstVol.BlobCount)

	assert.Empty(t, c.dest.manager.Executors())
	assert.Equal(t, migration.MigrIdle, c.dest.manager.State())
	require.Eventually(t, func() bool {
		return len(c.source.manager.Executors()) == 0
	}, 5*time.Second, 5*time.Millisecond)
	assert.True(t, c.source.manager.ShouldForwardIO(5))
}

func TestMigrateDiff(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	c := newCluster(t, nil, testConfig())
	src := c.source.catalogs.create(ctx, t, 9, 3)
	dst := c.dest.catalogs.create(ctx, t, 9, 3)

	for i := 0; i < 10; i++ {
		name := fmt.Sprintf("blob-%02d", i)
		require.NoError(t, src.PutBlob(ctx, &catalog.BlobMetaDesc{Name: name, Version: 2}, objects(byte(i), byte(i+100))))
	}
	// unchanged, stale and extra blobs on the destination
	require.NoError(t, dst.PutBlob(ctx, &catalog.BlobMetaDesc{Name: "blob-00", Version: 2}, objects(0, 100)))
	require.NoError(t, dst.PutBlob(ctx, &catalog.BlobMetaDesc{Name: "blob-01", Version: 1}, objects(50)))
	require.NoError(t, dst.PutBlob(ctx, &catalog.BlobMetaDesc{Name: "extra", Version: 1}, objects(60)))

	result, err := c.start(ctx, 2, 9)
	require.NoError(t, err)
	require.NoError(t, wait(t, result))

	report, err := catalog.CompareVolumes(ctx, src, dst)
	require.NoError(t, err)
	assert.True(t, report.Consistent(), report.Differences)

	_, err = dst.GetBlobMeta(ctx, "extra")
	assert.True(t, fds.ErrNotFound.Has(err))

	dstVol, err := dst.VolumeMeta(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, dstVol.Version)
	assert.EqualValues(t, 10, dstVol.BlobCount)
}

func TestMigrateEmptyVolume(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	c := newCluster(t, nil, testConfig())
	c.source.catalogs.create(ctx, t, 1, 0)
	dst := c.dest.catalogs.create(ctx, t, 1, 0)

	var deltas int32
	c.network.SetInterceptor(func(ctx context.Context, from, to fds.NodeUUID, msg migration.Message) (bool, error) {
		switch msg := msg.(type) {
		case *migration.DeltaBlobs:
			atomic.AddInt32(&deltas, 1)
			assert.True(t, msg.Last)
			assert.Empty(t, msg.Blobs)
		case *migration.DeltaBlobDescs:
			atomic.AddInt32(&deltas, 1)
			assert.True(t, msg.Last)
			assert.NotNil(t, msg.VolumeMeta)
		}
		return true, nil
	})

	result, err := c.start(ctx, 3, 1)
	require.NoError(t, err)
	require.NoError(t, wait(t, result))
	assert.EqualValues(t, 2, atomic.LoadInt32(&deltas))

	vol, err := dst.VolumeMeta(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, vol.BlobCount)
}

func TestForwardingDuringMigration(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	c := newCluster(t, nil, testConfig())
	src := c.source.catalogs.create(ctx, t, 4, 0)
	dst := c.dest.catalogs.create(ctx, t, 4, 0)
	require.NoError(t, src.PutBlob(ctx, &catalog.BlobMetaDesc{Name: "A", Version: 1}, objects(1)))

	reached := make(chan struct{})
	release := make(chan struct{})
	var once int32
	c.network.SetInterceptor(func(ctx context.Context, from, to fds.NodeUUID, msg migration.Message) (bool, error) {
		if _, ok := msg.(*migration.DeltaBlobDescs); ok && atomic.CompareAndSwapInt32(&once, 0, 1) {
			close(reached)
			<-release
		}
		return true, nil
	})

	result, err := c.start(ctx, 4, 4)
	require.NoError(t, err)
	<-reached

	// committed after the snapshot, so it reaches the destination by forwarding
	require.True(t, c.source.manager.ShouldForwardIO(4))
	require.NoError(t, c.source.manager.CommitUpdate(ctx, 4, &catalog.CatalogUpdate{
		Op:      catalog.UpdatePutBlob,
		Blob:    catalog.BlobMetaDesc{Name: "B", Version: 1},
		Objects: objects(2),
	}))
	_, err = dst.GetBlobMeta(ctx, "B")
	assert.True(t, fds.ErrNotFound.Has(err), "forwards are buffered until static migration completes")

	close(release)
	require.NoError(t, wait(t, result))

	meta, err := dst.GetBlobMeta(ctx, "B")
	require.NoError(t, err)
	assert.EqualValues(t, 1, meta.Version)

	// writes keep flowing until forwarding is stopped
	require.NoError(t, c.source.manager.CommitUpdate(ctx, 4, &catalog.CatalogUpdate{
		Op:   catalog.UpdateDeleteBlob,
		Blob: catalog.BlobMetaDesc{Name: "A"},
	}))
	_, err = dst.GetBlobMeta(ctx, "A")
	assert.True(t, fds.ErrNotFound.Has(err))

	require.NoError(t, c.source.manager.StopForwarding(ctx, 4))
	assert.False(t, c.source.manager.ShouldForwardIO(4))
	assert.True(t, fds.ErrNotFound.Has(c.source.manager.StopForwarding(ctx, 4)))

	report, err := catalog.CompareVolumes(ctx, src, dst)
	require.NoError(t, err)
	assert.True(t, report.Consistent(), report.Differences)

	err = c.dest.manager.OnForwardCatalogUpdate(ctx, &migration.ForwardCatalogUpdate{MigrationID: 4, Volume: 4, SeqNum: 9})
	assert.True(t, fds.ErrNotFound.Has(err))
}

func TestSecondExecutorForVolumeFails(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	c := newCluster(t, nil, testConfig())
	c.source.catalogs.create(ctx, t, 6, 0)
	c.dest.catalogs.create(ctx, t, 6, 0)

	// the source never hears about the migration
	c.network.SetInterceptor(func(ctx context.Context, from, to fds.NodeUUID, msg migration.Message) (bool, error) {
		_, filter := msg.(*migration.InitialBlobFilterSet)
		return !filter, nil
	})

	result, err := c.start(ctx, 1, 6)
	require.NoError(t, err)
	assert.Equal(t, migration.MigrInProgress, c.dest.manager.State())

	_, err = c.start(ctx, 2, 6)
	assert.True(t, fds.ErrInProgress.Has(err))

	statuses := c.dest.manager.Executors()
	require.Len(t, statuses, 1)
	assert.Equal(t, migration.ExecutorStatus{
		Volume:      6,
		Role:        migration.RoleDest,
		MigrationID: 1,
		Peer:        sourceNode,
		Progress:    migration.StaticMigrationInProgress,
	}, statuses[0])

	c.dest.manager.AbortMigration()
	err = wait(t, result)
	assert.True(t, fds.ErrMigrationAborted.Has(err))
	assert.Equal(t, fds.CodeMigrationAborted, fds.CodeOf(err))
	require.Eventually(t, func() bool {
		return c.dest.manager.State() == migration.MigrIdle
	}, 5*time.Second, 5*time.Millisecond)
}

func TestStartMigrationAllOrNothing(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	c := newCluster(t, nil, testConfig())
	for _, volume := range []fds.VolumeID{1, 2} {
		c.source.catalogs.create(ctx, t, volume, 0)
		c.dest.catalogs.create(ctx, t, volume, 0)
	}

	called := make(chan error, 1)
	_, err := c.start(ctx, 1, 1, 3)
	assert.True(t, fds.ErrNotFound.Has(err))
	assert.Empty(t, c.dest.manager.Executors())

	_, err = c.start(ctx, 1, 1, 1)
	assert.True(t, fds.ErrInvalidArg.Has(err))

	// the source rejects the second volume
	c.network.SetInterceptor(func(ctx context.Context, from, to fds.NodeUUID, msg migration.Message) (bool, error) {
		if filter, ok := msg.(*migration.InitialBlobFilterSet); ok && filter.Volume == 2 {
			return false, fds.ErrIO.New("refused")
		}
		if _, ok := msg.(*migration.InitialBlobFilterSet); ok {
			return false, nil
		}
		return true, nil
	})
	err = c.dest.manager.StartMigration(ctx, &migration.StartMigration{
		MigrationID: 7,
		Volumes: []migration.MigrationVolume{
			{Volume: 1, Source: sourceNode},
			{Volume: 2, Source: sourceNode},
		},
	}, func(err error) { called <- err })
	assert.True(t, fds.ErrIO.Has(err))

	require.Eventually(t, func() bool {
		return len(c.dest.manager.Executors()) == 0
	}, 5*time.Second, 5*time.Millisecond)
	select {
	case err := <-called:
		t.Fatalf("callback of failed round called with %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestIdleTimeoutAbortsOnce(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	mock := clock.NewMock()
	c := newCluster(t, mock, testConfig())
	c.source.catalogs.create(ctx, t, 8, 0)
	c.dest.catalogs.create(ctx, t, 8, 0)

	c.network.SetInterceptor(func(ctx context.Context, from, to fds.NodeUUID, msg migration.Message) (bool, error) {
		_, filter := msg.(*migration.InitialBlobFilterSet)
		return !filter, nil
	})

	var calls int32
	var result atomic.Value
	err := c.dest.manager.StartMigration(ctx, &migration.StartMigration{
		MigrationID: 1,
		Volumes:     []migration.MigrationVolume{{Volume: 8, Source: sourceNode}},
	}, func(err error) {
		atomic.AddInt32(&calls, 1)
		result.Store(err)
	})
	require.NoError(t, err)

	mock.Add(time.Minute)
	assert.Len(t, c.dest.manager.Executors(), 1, "not idle for long enough")

	require.Eventually(t, func() bool {
		mock.Add(30 * time.Second)
		return atomic.LoadInt32(&calls) == 1
	}, 10*time.Second, 10*time.Millisecond)

	for i := 0; i < 5; i++ {
		mock.Add(30 * time.Second)
	}
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	err = result.Load().(error)
	assert.True(t, fds.ErrMigrationAborted.Has(err))
	assert.True(t, fds.ErrTimeout.Has(err))
}

func putBlob(name string, id byte) *catalog.CatalogUpdate {
	return &catalog.CatalogUpdate{
		Op:      catalog.UpdatePutBlob,
		Blob:    catalog.BlobMetaDesc{Name: name, Version: 1},
		Objects: objects(id),
	}
}

func TestFailedForwardIsResent(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	c := newCluster(t, nil, testConfig())
	src := c.source.catalogs.create(ctx, t, 4, 0)
	dst := c.dest.catalogs.create(ctx, t, 4, 0)
	require.NoError(t, src.PutBlob(ctx, &catalog.BlobMetaDesc{Name: "A", Version: 1}, objects(1)))

	result, err := c.start(ctx, 4, 4)
	require.NoError(t, err)
	require.NoError(t, wait(t, result))

	var failed int32
	c.network.SetInterceptor(func(ctx context.Context, from, to fds.NodeUUID, msg migration.Message) (bool, error) {
		if _, ok := msg.(*migration.ForwardCatalogUpdate); ok && atomic.CompareAndSwapInt32(&failed, 0, 1) {
			return false, fds.ErrTimeout.New("transient")
		}
		return true, nil
	})

	err = c.source.manager.CommitUpdate(ctx, 4, putBlob("B", 2))
	assert.True(t, fds.ErrTimeout.Has(err))
	_, err = src.GetBlobMeta(ctx, "B")
	require.NoError(t, err, "the write is committed locally")
	_, err = dst.GetBlobMeta(ctx, "B")
	assert.True(t, fds.ErrNotFound.Has(err))

	require.NoError(t, c.source.manager.CommitUpdate(ctx, 4, putBlob("C", 3)))
	for _, name := range []string{"B", "C"} {
		_, err = dst.GetBlobMeta(ctx, name)
		require.NoError(t, err, name)
	}

	require.NoError(t, c.source.manager.StopForwarding(ctx, 4))
	report, err := catalog.CompareVolumes(ctx, src, dst)
	require.NoError(t, err)
	assert.True(t, report.Consistent(), report.Differences)

	require.Eventually(t, func() bool {
		return len(c.source.manager.Executors()) == 0
	}, 5*time.Second, 5*time.Millisecond)

	result, err = c.start(ctx, 5, 4)
	require.NoError(t, err, "the volume is free once forwarding ended")
	require.NoError(t, wait(t, result))
}

func TestStalledForwardingFreesVolume(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	mock := clock.NewMock()
	c := newCluster(t, mock, testConfig())
	src := c.source.catalogs.create(ctx, t, 4, 0)
	dst := c.dest.catalogs.create(ctx, t, 4, 0)

	result, err := c.start(ctx, 4, 4)
	require.NoError(t, err)
	require.NoError(t, wait(t, result))

	// the first forward is lost without the source noticing
	var dropped int32
	c.network.SetInterceptor(func(ctx context.Context, from, to fds.NodeUUID, msg migration.Message) (bool, error) {
		if _, ok := msg.(*migration.ForwardCatalogUpdate); ok && atomic.CompareAndSwapInt32(&dropped, 0, 1) {
			return false, nil
		}
		return true, nil
	})

	require.NoError(t, c.source.manager.CommitUpdate(ctx, 4, putBlob("B", 2)))
	require.NoError(t, c.source.manager.CommitUpdate(ctx, 4, putBlob("C", 3)))
	require.NoError(t, c.source.manager.StopForwarding(ctx, 4))
	_, err = dst.GetBlobMeta(ctx, "C")
	assert.True(t, fds.ErrNotFound.Has(err), "C waits behind the missing B")

	require.Eventually(t, func() bool {
		return len(c.source.manager.Executors()) == 0
	}, 5*time.Second, 5*time.Millisecond)

	_, err = c.start(ctx, 5, 4)
	assert.True(t, fds.ErrInProgress.Has(err))

	require.Eventually(t, func() bool {
		mock.Add(30 * time.Second)
		result, err = c.start(ctx, 5, 4)
		return err == nil
	}, 10*time.Second, 10*time.Millisecond)
	require.NoError(t, wait(t, result))

	// a new round repairs what forwarding lost
	report, err := catalog.CompareVolumes(ctx, src, dst)
	require.NoError(t, err)
	assert.True(t, report.Consistent(), report.Differences)
}
