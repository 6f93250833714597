// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"storj.io/common/testcontext"

	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
	"github.com/vinaypunrao68/fds-src-sub016/sm/disk"
	"github.com/vinaypunrao68/fds-src-sub016/sm/objstore"
	"github.com/vinaypunrao68/fds-src-sub016/sm/placement"
	"github.com/vinaypunrao68/fds-src-sub016/sm/scavenger"
	"github.com/vinaypunrao68/fds-src-sub016/storage/teststore"
)

func testDisks(ctx *testcontext.Context, n int) []disk.Disk {
	var disks []disk.Disk
	for i := 0; i < n; i++ {
		id := fds.DiskID(i)
		disks = append(disks, disk.Disk{ID: id, Tier: fds.TierHDD, Path: ctx.Dir("hdd-" + id.String())})
	}
	return disks
}

func TestPlanPlacement(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()
	log := zaptest.NewLogger(t)

	db := placement.NewDB(teststore.New())
	defer ctx.Check(db.Close)

	disks := testDisks(ctx, 3)
	plan, err := planPlacement(ctx, log, db, disks)
	require.NoError(t, err)
	assert.True(t, plan.Created)
	assert.EqualValues(t, 1, plan.Version)
	assert.Empty(t, plan.Moves)

	plan, err = planPlacement(ctx, log, db, disks[:2])
	require.NoError(t, err)
	assert.False(t, plan.Created)
	assert.EqualValues(t, 2, plan.Version)
	assert.NotEmpty(t, plan.Moves)
	for _, move := range plan.Moves {
		assert.Equal(t, fds.DiskID(2), move.From)
	}

	stored, err := db.Load(ctx)
	require.NoError(t, err)
	assert.True(t, stored.Equal(plan.Table))

	var out bytes.Buffer
	require.NoError(t, printPlan(&out, disks[:2], plan))
	assert.Contains(t, out.String(), "placement version 2")
	assert.Contains(t, out.String(), "tokens 128")
}

func TestOpenScavenger(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()
	log := zaptest.NewLogger(t)

	disks := testDisks(ctx, 2)
	olt, err := loadPlacement(ctx, log, filepath.Join(ctx.Dir("conf"), "placement.db"), disks)
	require.NoError(t, err)
	require.Len(t, olt.Tokens(0), 128)

	control, stores, err := openScavenger(log, disks, olt, scavenger.Config{}, objstore.Config{})
	require.NoError(t, err)
	require.Len(t, stores, 2)
	defer func() {
		for _, store := range stores {
			ctx.Check(store.Close)
		}
	}()
	defer ctx.Check(control.Close)

	id := fds.ObjectID{byte(olt.Tokens(1)[0])}
	require.NoError(t, stores[1].Put(ctx, id, []byte("garbage")))
	require.NoError(t, stores[1].Delete(ctx, id))

	reports, err := control.ScavengeOnce(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, 1, reports[1].Compacted)
	assert.EqualValues(t, 7, reports[1].Reclaimed)

	var out bytes.Buffer
	require.NoError(t, printReports(&out, reports))
	assert.Contains(t, out.String(), "reclaimed  7 B")
}
