// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

package testsuite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vinaypunrao68/fds-src-sub016/storage"
)

func testIterate(t *testing.T, store storage.KeyValueStore) {
	ctx := context.Background()
	items := storage.Items{
		newItem("a", "a"),
		newItem("b/1", "b/1"),
		newItem("b/2", "b/2"),
		newItem("b/3", "b/3"),
		newItem("c", "c"),
		newItem("c/", "c/"),
		newItem("c//", "c//"),
		newItem("c/1", "c/1"),
		newItem("g", "g"),
		newItem("h", "h"),
	}
	shuffle(items)
	defer cleanupItems(t, store, items)

	for _, item := range items {
		require.NoError(t, store.Put(ctx, item.Key, item.Value))
	}

	tests := []struct {
		Name     string
		Options  storage.IterateOptions
		Expected storage.Items
	}{
		{"no limits", storage.IterateOptions{},
			storage.Items{
				newItem("a", "a"),
				newItem("b/1", "b/1"),
				newItem("b/2", "b/2"),
				newItem("b/3", "b/3"),
				newItem("c", "c"),
				newItem("c/", "c/"),
				newItem("c//", "c//"),
				newItem("c/1", "c/1"),
				newItem("g", "g"),
				newItem("h", "h"),
			}},
		{"at a", storage.IterateOptions{First: storage.Key("a")},
			storage.Items{
				newItem("a", "a"),
				newItem("b/1", "b/1"),
				newItem("b/2", "b/2"),
				newItem("b/3", "b/3"),
				newItem("c", "c"),
				newItem("c/", "c/"),
				newItem("c//", "c//"),
				newItem("c/1", "c/1"),
				newItem("g", "g"),
				newItem("h", "h"),
			}},
		{"after c/1", storage.IterateOptions{First: storage.Key("c/1\x00")},
			storage.Items{
				newItem("g", "g"),
				newItem("h", "h"),
			}},
		{"prefix b/", storage.IterateOptions{Prefix: storage.Key("b/")},
			storage.Items{
				newItem("b/1", "b/1"),
				newItem("b/2", "b/2"),
				newItem("b/3", "b/3"),
			}},
		{"prefix b/ at b/2", storage.IterateOptions{Prefix: storage.Key("b/"), First: storage.Key("b/2")},
			storage.Items{
				newItem("b/2", "b/2"),
				newItem("b/3", "b/3"),
			}},
		{"prefix b/ before prefix", storage.IterateOptions{Prefix: storage.Key("b/"), First: storage.Key("a")},
			storage.Items{
				newItem("b/1", "b/1"),
				newItem("b/2", "b/2"),
				newItem("b/3", "b/3"),
			}},
		{"limit c", storage.IterateOptions{First: storage.Key("b/2"), Limit: storage.Key("c")},
			storage.Items{
				newItem("b/2", "b/2"),
				newItem("b/3", "b/3"),
			}},
		{"limit before first", storage.IterateOptions{First: storage.Key("g"), Limit: storage.Key("c")},
			nil},
		{"prefix missing", storage.IterateOptions{Prefix: storage.Key("x")},
			nil},
	}

	for _, test := range tests {
		test := test
		t.Run(test.Name, func(t *testing.T) {
			got, err := storage.CollectItems(ctx, store, test.Options)
			require.NoError(t, err)
			require.Equal(t, test.Expected, got)
		})
	}

	t.Run("stop early", func(t *testing.T) {
		var seen int
		err := store.Iterate(ctx, storage.IterateOptions{}, func(ctx context.Context, it storage.Iterator) error {
			var item storage.ListItem
			for it.Next(ctx, &item) {
				seen++
				if seen == 3 {
					break
				}
			}
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 3, seen)
	})
}
