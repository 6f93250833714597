// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package testsuite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vinaypunrao68/fds-src-sub016/storage"
)

func testSnapshot(t *testing.T, store storage.KeyValueStore, snapshotter storage.Snapshotter) {
	ctx := context.Background()
	items := storage.Items{
		newItem("snap/a", "1"),
		newItem("snap/b", "2"),
	}
	for _, item := range items {
		require.NoError(t, store.Put(ctx, item.Key, item.Value))
	}
	defer cleanupItems(t, store, storage.Items{
		newItem("snap/a", ""),
		newItem("snap/b", ""),
		newItem("snap/c", ""),
	})

	snap, err := snapshotter.Snapshot(ctx)
	require.NoError(t, err)

	// writes after the snapshot must not be visible through it
	require.NoError(t, store.Put(ctx, storage.Key("snap/a"), storage.Value("changed")))
	require.NoError(t, store.Put(ctx, storage.Key("snap/c"), storage.Value("3")))
	require.NoError(t, store.Delete(ctx, storage.Key("snap/b")))

	value, err := snap.Get(ctx, storage.Key("snap/a"))
	require.NoError(t, err)
	require.Equal(t, storage.Value("1"), value)

	_, err = snap.Get(ctx, storage.Key("snap/c"))
	require.True(t, storage.ErrKeyNotFound.Has(err))

	got, err := storage.CollectItems(ctx, snap, storage.IterateOptions{Prefix: storage.Key("snap/")})
	require.NoError(t, err)
	require.Equal(t, items, got)

	// the live store sees the new state
	got, err = storage.CollectItems(ctx, store, storage.IterateOptions{Prefix: storage.Key("snap/")})
	require.NoError(t, err)
	require.Equal(t, storage.Items{
		newItem("snap/a", "changed"),
		newItem("snap/c", "3"),
	}, got)

	snap.Release()
	snap.Release()

	_, err = snap.Get(ctx, storage.Key("snap/a"))
	require.Error(t, err)
}
