// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package disk_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"storj.io/common/testcontext"

	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
	"github.com/vinaypunrao68/fds-src-sub016/sm/disk"
)

func TestDiscoverRoot(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	root := ctx.Dir("sm")
	for _, name := range []string{"hdd-10", "ssd-0", "hdd-2", "hdd-x", "other"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, name), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "hdd-3"), nil, 0o644))

	disks, err := disk.Discover(ctx, zaptest.NewLogger(t), disk.Config{Root: root})
	require.NoError(t, err)
	require.Len(t, disks, 3)

	assert.Equal(t, filepath.Join(root, "hdd-2"), disks[0].Path)
	assert.Equal(t, filepath.Join(root, "hdd-10"), disks[1].Path)
	assert.Equal(t, filepath.Join(root, "ssd-0"), disks[2].Path)
	for i, d := range disks {
		assert.Equal(t, fds.DiskID(i), d.ID)
		assert.NotZero(t, d.Capacity)
	}

	hdds, ssds := disk.Split(disks)
	assert.Equal(t, []fds.DiskID{0, 1}, hdds)
	assert.Equal(t, []fds.DiskID{2}, ssds)
}

func TestDiscoverExplicit(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	a, b := ctx.Dir("a"), ctx.Dir("b")
	disks, err := disk.Discover(ctx, nil, disk.Config{Root: "/nonexistent", SSDs: []string{a, " "}, HDDs: []string{b}})
	require.NoError(t, err)
	require.Len(t, disks, 2)
	assert.Equal(t, disk.Disk{ID: 0, Tier: fds.TierHDD, Path: b, Capacity: disks[0].Capacity, Free: disks[0].Free}, disks[0])
	assert.Equal(t, fds.TierSSD, disks[1].Tier)
	assert.Equal(t, a, disks[1].Path)
}

func TestDiscoverErrors(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	_, err := disk.Discover(ctx, nil, disk.Config{})
	assert.True(t, fds.ErrInvalidArg.Has(err))

	_, err = disk.Discover(ctx, nil, disk.Config{Root: ctx.Dir("empty")})
	assert.True(t, fds.ErrNotFound.Has(err))

	_, err = disk.Discover(ctx, nil, disk.Config{HDDs: []string{filepath.Join(ctx.Dir("x"), "missing")}})
	assert.Error(t, err)
}
