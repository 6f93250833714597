// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package testsuite

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vinaypunrao68/fds-src-sub016/storage"
)

func testParallel(t *testing.T, store storage.KeyValueStore) {
	items := storage.Items{
		newItem("a", "1"),
		newItem("b", "2"),
		newItem("c", "3"),
	}
	shuffle(items)
	defer cleanupItems(t, store, items)

	for i := range items {
		item := items[i]
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			require.NoError(t, store.Put(ctx, item.Key, item.Value))

			value, err := store.Get(ctx, item.Key)
			require.NoError(t, err)
			require.Equal(t, item.Value, value)

			next := storage.Value(string(item.Value) + "X")
			require.NoError(t, store.Put(ctx, item.Key, next))

			value, err = store.Get(ctx, item.Key)
			require.NoError(t, err)
			require.Equal(t, next, value)

			require.NoError(t, store.Delete(ctx, item.Key))
		})
	}
}
