// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

package storelogger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"storj.io/common/testcontext"

	"github.com/vinaypunrao68/fds-src-sub016/storage"
	"github.com/vinaypunrao68/fds-src-sub016/storage/teststore"
	"github.com/vinaypunrao68/fds-src-sub016/storage/testsuite"
)

func TestSuite(t *testing.T) {
	testsuite.RunTests(t, New(zaptest.NewLogger(t), teststore.New(), nil))
}

func TestKeyFormat(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	core, logs := observer.New(zapcore.DebugLevel)
	store := New(zap.New(core), teststore.New(), func(key storage.Key) string { return "key:" + string(key) })
	defer ctx.Check(store.Close)

	require.NoError(t, store.Put(ctx, storage.Key("a"), storage.Value("value")))
	_, err := store.Get(ctx, storage.Key("a"))
	require.NoError(t, err)

	entries := logs.FilterField(zap.String("key", "key:a")).All()
	require.Len(t, entries, 2)
	assert.Equal(t, "put", entries[0].Message)
	assert.Equal(t, "get", entries[1].Message)
}
