// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package migration

import (
	"context"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"storj.io/common/testcontext"

	"github.com/vinaypunrao68/fds-src-sub016/dm/catalog"
	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
	"github.com/vinaypunrao68/fds-src-sub016/storage/teststore"
)

func newTestCatalog(ctx context.Context, t *testing.T) *catalog.VolumeCatalog {
	vc := catalog.NewVolumeCatalog(zaptest.NewLogger(t), 1, teststore.NewWithComparator(catalog.KeyComparator))
	require.NoError(t, vc.SetVolumeMeta(ctx, &catalog.VolumeMetaDesc{ID: 1, MaxObjectSize: 4096}))
	return vc
}

func putUpdate(seq uint64, name string) *ForwardCatalogUpdate {
	var id fds.ObjectID
	id[0] = byte(seq + 1)
	return &ForwardCatalogUpdate{
		MigrationID: 1,
		Volume:      1,
		SeqNum:      seq,
		Update: catalog.CatalogUpdate{
			Op:      catalog.UpdatePutBlob,
			Blob:    catalog.BlobMetaDesc{Name: name, Version: seq + 1},
			Objects: catalog.BlobObjList{{ObjectID: id, Size: 10}},
		},
	}
}

func TestCatSyncReceiverOrdering(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	vc := newTestCatalog(ctx, t)
	var closed []fds.VolumeID
	recv := newCatSyncReceiver(zaptest.NewLogger(t), 1, vc, nil, func(volume fds.VolumeID) { closed = append(closed, volume) })

	// buffered while the static phase runs
	require.NoError(t, recv.Receive(ctx, putUpdate(1, "x")))
	require.NoError(t, recv.Receive(ctx, putUpdate(0, "x")))
	_, err := vc.GetBlobMeta(ctx, "x")
	assert.True(t, fds.ErrNotFound.Has(err))
	assert.Equal(t, RsyncInProgress, recv.State())

	require.NoError(t, recv.SwitchToForwarding(ctx))
	assert.Equal(t, FwdInProgress, recv.State())
	meta, err := vc.GetBlobMeta(ctx, "x")
	require.NoError(t, err)
	assert.EqualValues(t, 2, meta.Version, "later update wins")

	// gap: 3 waits for 2
	require.NoError(t, recv.Receive(ctx, putUpdate(3, "y")))
	_, err = vc.GetBlobMeta(ctx, "y")
	assert.True(t, fds.ErrNotFound.Has(err))

	sentinel := &ForwardCatalogUpdate{MigrationID: 1, Volume: 1, SeqNum: 4, LastForward: true}
	require.NoError(t, recv.Receive(ctx, sentinel))
	assert.Equal(t, FwdFinishing, recv.State())
	assert.Empty(t, closed)

	err = recv.Receive(ctx, putUpdate(5, "z"))
	assert.True(t, fds.ErrProtocol.Has(err))

	require.NoError(t, recv.Receive(ctx, putUpdate(2, "y")))
	assert.Equal(t, SyncClosed, recv.State())
	assert.Equal(t, []fds.VolumeID{1}, closed)

	meta, err = vc.GetBlobMeta(ctx, "y")
	require.NoError(t, err)
	assert.EqualValues(t, 4, meta.Version)

	err = recv.Receive(ctx, putUpdate(6, "z"))
	assert.True(t, fds.ErrNotFound.Has(err))
}

func TestCatSyncReceiverSentinelFirst(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	vc := newTestCatalog(ctx, t)
	closed := 0
	recv := newCatSyncReceiver(zaptest.NewLogger(t), 1, vc, nil, func(fds.VolumeID) { closed++ })

	require.NoError(t, recv.Receive(ctx, &ForwardCatalogUpdate{MigrationID: 1, SeqNum: 0, LastForward: true}))
	err := recv.Receive(ctx, &ForwardCatalogUpdate{MigrationID: 1, SeqNum: 1, LastForward: true})
	assert.True(t, fds.ErrProtocol.Has(err))

	require.NoError(t, recv.SwitchToForwarding(ctx))
	assert.Equal(t, SyncClosed, recv.State())
	assert.Equal(t, 1, closed)
}

func TestCatSyncReceiverClose(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	vc := newTestCatalog(ctx, t)
	recv := newCatSyncReceiver(zaptest.NewLogger(t), 1, vc, nil, nil)
	require.NoError(t, recv.Receive(ctx, putUpdate(0, "x")))
	recv.Close()
	require.NoError(t, recv.SwitchToForwarding(ctx))

	_, err := vc.GetBlobMeta(ctx, "x")
	assert.True(t, fds.ErrNotFound.Has(err), "closing drops buffered forwards")
}

func TestCatSyncReceiverRejectsOtherMigration(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	vc := newTestCatalog(ctx, t)
	recv := newCatSyncReceiver(zaptest.NewLogger(t), 1, vc, nil, nil)
	require.NoError(t, recv.SwitchToForwarding(ctx))

	stale := putUpdate(0, "x")
	stale.MigrationID = 7
	err := recv.Receive(ctx, stale)
	assert.True(t, fds.ErrProtocol.Has(err))
	_, err = vc.GetBlobMeta(ctx, "x")
	assert.True(t, fds.ErrNotFound.Has(err))

	require.NoError(t, recv.Receive(ctx, putUpdate(0, "x")))
	_, err = vc.GetBlobMeta(ctx, "x")
	require.NoError(t, err)
}

func TestCatSyncReceiverStall(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	mock := clock.NewMock()
	vc := newTestCatalog(ctx, t)
	closed := 0
	recv := newCatSyncReceiver(zaptest.NewLogger(t), 1, vc, mock, func(fds.VolumeID) { closed++ })

	// buffering during the static phase is not a stall
	require.NoError(t, recv.Receive(ctx, putUpdate(1, "x")))
	mock.Add(time.Hour)
	assert.False(t, recv.expire(time.Minute))

	require.NoError(t, recv.SwitchToForwarding(ctx))
	mock.Add(30 * time.Second)
	assert.False(t, recv.expire(time.Minute))

	// an idle stream without a hole never expires
	require.NoError(t, recv.Receive(ctx, putUpdate(0, "x")))
	mock.Add(time.Hour)
	assert.False(t, recv.expire(time.Minute))

	require.NoError(t, recv.Receive(ctx, putUpdate(3, "y")))
	mock.Add(2 * time.Minute)
	assert.True(t, recv.expire(time.Minute))
	assert.Equal(t, SyncClosed, recv.State())
	assert.False(t, recv.expire(time.Minute))
	assert.Zero(t, closed, "onClosed is left to the timer")

	err := recv.Receive(ctx, putUpdate(2, "y"))
	assert.True(t, fds.ErrNotFound.Has(err))
}

func TestForwarderResendsFailed(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	var sent []uint64
	fail := 1
	fwd := newForwarder(zaptest.NewLogger(t), 3, 1, 0x20, func(ctx context.Context, to fds.NodeUUID, msg Message) error {
		if fail > 0 {
			fail--
			return fds.ErrTimeout.New("transient")
		}
		sent = append(sent, msg.(*ForwardCatalogUpdate).SeqNum)
		return nil
	})
	fwd.TurnOnForwarding()

	update := &catalog.CatalogUpdate{Op: catalog.UpdateDeleteBlob, Blob: catalog.BlobMetaDesc{Name: "a"}}
	err := fwd.Forward(ctx, update)
	assert.True(t, fds.ErrTimeout.Has(err))
	assert.Equal(t, 1, fwd.Queued())

	require.NoError(t, fwd.Forward(ctx, update))
	assert.Equal(t, []uint64{0, 1}, sent, "failed update keeps its sequence number")

	fail = 1
	assert.Error(t, fwd.Finish(ctx))
	assert.Equal(t, 1, fwd.Queued())
	require.NoError(t, fwd.Finish(ctx))
	assert.Equal(t, []uint64{0, 1, 2}, sent)
	assert.Zero(t, fwd.Queued())
}

func TestForwarderDestinationGone(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	calls := 0
	fwd := newForwarder(zaptest.NewLogger(t), 3, 1, 0x20, func(ctx context.Context, to fds.NodeUUID, msg Message) error {
		calls++
		return fds.ErrNotFound.New("volume 1 is not syncing")
	})
	fwd.TurnOnForwarding()

	update := &catalog.CatalogUpdate{Op: catalog.UpdateDeleteBlob, Blob: catalog.BlobMetaDesc{Name: "a"}}
	err := fwd.Forward(ctx, update)
	assert.True(t, fds.ErrNotFound.Has(err))
	assert.False(t, fwd.ShouldForwardIO())
	assert.Zero(t, fwd.Queued())

	require.NoError(t, fwd.Finish(ctx))
	assert.Equal(t, 1, calls)
}

func TestForwarder(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	var sent []*ForwardCatalogUpdate
	fwd := newForwarder(zaptest.NewLogger(t), 3, 1, 0x20, func(ctx context.Context, to fds.NodeUUID, msg Message) error {
		assert.Equal(t, fds.NodeUUID(0x20), to)
		sent = append(sent, msg.(*ForwardCatalogUpdate))
		return nil
	})

	update := &catalog.CatalogUpdate{Op: catalog.UpdateDeleteBlob, Blob: catalog.BlobMetaDesc{Name: "a"}}
	require.NoError(t, fwd.Forward(ctx, update))
	assert.Empty(t, sent, "forwarding is off")

	fwd.TurnOnForwarding()
	require.NoError(t, fwd.Forward(ctx, update))
	require.NoError(t, fwd.Forward(ctx, update))
	require.NoError(t, fwd.Finish(ctx))
	require.NoError(t, fwd.Finish(ctx))
	require.NoError(t, fwd.Forward(ctx, update))

	require.Len(t, sent, 3)
	for i, msg := range sent {
		assert.EqualValues(t, i, msg.SeqNum)
		assert.EqualValues(t, 3, msg.MigrationID)
	}
	assert.False(t, sent[1].IsSentinel())
	assert.True(t, sent[2].IsSentinel())
	assert.False(t, fwd.ShouldForwardIO())
	assert.EqualValues(t, 2, fwd.Sent())
}
