// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information

package sync2_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"storj.io/common/testcontext"

	"github.com/vinaypunrao68/fds-src-sub016/internal/sync2"
)

func TestSerializerOrder(t *testing.T) {
	serializer := sync2.NewSerializer[int]()

	var mu sync.Mutex
	var order []int
	var running int32
	for i := 0; i < 100; i++ {
		i := i
		require.True(t, serializer.Go(1, func() {
			assert.EqualValues(t, 1, atomic.AddInt32(&running, 1))
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			atomic.AddInt32(&running, -1)
		}))
	}
	serializer.Close()

	require.Len(t, order, 100)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
	assert.False(t, serializer.Go(1, func() {}))
}

func TestSerializerKeysRunConcurrently(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	serializer := sync2.NewSerializer[string]()
	defer serializer.Close()

	release := make(chan struct{})
	serializer.Go("blocked", func() { <-release })

	err := serializer.Do(ctx, "other", func(ctx context.Context) error { return nil })
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	err = serializer.Do(waitCtx, "blocked", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
}
