// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

package testsuite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vinaypunrao68/fds-src-sub016/storage"
)

// RunTests runs common storage.KeyValueStore tests. The store must order keys
// bytewise.
func RunTests(t *testing.T, store storage.KeyValueStore) {
	t.Run("CRUD", func(t *testing.T) { testCRUD(t, store) })
	t.Run("Constraints", func(t *testing.T) { testConstraints(t, store) })
	t.Run("Apply", func(t *testing.T) { testApply(t, store) })
	t.Run("Iterate", func(t *testing.T) { testIterate(t, store) })
	t.Run("Parallel", func(t *testing.T) { testParallel(t, store) })

	if snapshotter, ok := store.(storage.Snapshotter); ok {
		t.Run("Snapshot", func(t *testing.T) { testSnapshot(t, store, snapshotter) })
	}
}

func testCRUD(t *testing.T, store storage.KeyValueStore) {
	ctx := context.Background()
	items := storage.Items{
		newItem("\x00", "\x00"),
		newItem("a/b", "\x01\x00"),
		newItem("a\\b", "\xff"),
		newItem("full/path/1", "\x00\xff\xff\x00"),
		newItem("full/path/2", "\x00\xff\xff\x01"),
		newItem("full/path/3", "\x00\xff\xff\x02"),
		newItem("öö", "üü"),
	}
	shuffle(items)
	defer cleanupItems(t, store, items)

	for _, item := range items {
		require.NoError(t, store.Put(ctx, item.Key, item.Value), "put %q", item.Key)
	}

	for _, item := range items {
		value, err := store.Get(ctx, item.Key)
		require.NoError(t, err, "get %q", item.Key)
		require.Equal(t, item.Value, value)
	}

	// updating changes the value
	for i, item := range items {
		next := storage.Value(string(item.Value) + "X")
		items[i].Value = next
		require.NoError(t, store.Put(ctx, item.Key, next))

		value, err := store.Get(ctx, item.Key)
		require.NoError(t, err)
		require.Equal(t, next, value)
	}

	for _, item := range items {
		require.NoError(t, store.Delete(ctx, item.Key))
		_, err := store.Get(ctx, item.Key)
		require.True(t, storage.ErrKeyNotFound.Has(err), "got %v", err)
	}

	// deleting a missing key is fine
	require.NoError(t, store.Delete(ctx, storage.Key("missing")))
}

func testConstraints(t *testing.T, store storage.KeyValueStore) {
	ctx := context.Background()

	err := store.Put(ctx, nil, storage.Value("x"))
	require.Error(t, err, "putting empty key should fail")

	_, err = store.Get(ctx, storage.Key("does-not-exist"))
	require.True(t, storage.ErrKeyNotFound.Has(err))

	var batch storage.Batch
	batch.Put(nil, storage.Value("x"))
	require.Error(t, store.Apply(ctx, &batch), "applying empty key should fail")
}

func testApply(t *testing.T, store storage.KeyValueStore) {
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, storage.Key("apply/old"), storage.Value("old")))

	var batch storage.Batch
	batch.Put(storage.Key("apply/a"), storage.Value("1"))
	batch.Put(storage.Key("apply/b"), storage.Value("2"))
	batch.Delete(storage.Key("apply/old"))
	batch.Put(storage.Key("apply/a"), storage.Value("3"))
	require.NoError(t, store.Apply(ctx, &batch))

	items, err := storage.CollectItems(ctx, store, storage.IterateOptions{Prefix: storage.Key("apply/")})
	require.NoError(t, err)
	require.Equal(t, storage.Items{
		newItem("apply/a", "3"),
		newItem("apply/b", "2"),
	}, items)

	cleanupItems(t, store, items)
}
