// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

package testsuite

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vinaypunrao68/fds-src-sub016/storage"
)

func newItem(key, value string) storage.ListItem {
	return storage.ListItem{
		Key:   storage.Key(key),
		Value: storage.Value(value),
	}
}

func shuffle(items storage.Items) {
	rand.Shuffle(len(items), items.Swap)
}

func cleanupItems(t *testing.T, store storage.KeyValueStore, items storage.Items) {
	for _, item := range items {
		require.NoError(t, store.Delete(context.Background(), item.Key))
	}
}
