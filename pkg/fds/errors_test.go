// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package fds_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeebo/errs"

	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
)

func TestCodeRoundTrip(t *testing.T) {
	for _, code := range []fds.Code{
		fds.CodeInvalidArg,
		fds.CodeNotFound,
		fds.CodeInvalidVersion,
		fds.CodeProtocol,
		fds.CodeTimeout,
		fds.CodeIO,
		fds.CodeInProgress,
		fds.CodeMigrationAborted,
	} {
		err := code.Err("volume %d", 7)
		require.Error(t, err)
		require.Equal(t, code, fds.CodeOf(err), code.String())
	}

	require.NoError(t, fds.CodeOK.Err("ignored"))
	require.Equal(t, fds.CodeOK, fds.CodeOf(nil))
	require.Equal(t, fds.CodeUnknown, fds.CodeOf(errs.New("plain")))
	require.Equal(t, fds.CodeTimeout, fds.CodeOf(context.DeadlineExceeded))
}

func TestCodeOfPrefersAbort(t *testing.T) {
	err := fds.ErrMigrationAborted.Wrap(fds.ErrTimeout.New("idle"))
	require.Equal(t, fds.CodeMigrationAborted, fds.CodeOf(err))
}

func TestTokenOf(t *testing.T) {
	var id fds.ObjectID
	id[0] = 0xab
	id[1] = 0xcd
	require.Equal(t, fds.SmToken(0xab), fds.TokenOf(id, 8))
	require.Equal(t, fds.SmToken(0xa), fds.TokenOf(id, 4))
	require.Equal(t, fds.SmToken(0xabc), fds.TokenOf(id, 12))
	require.Equal(t, fds.SmToken(0xab), fds.TokenOf(id, 0))
}

func TestObjectIDParse(t *testing.T) {
	var id fds.ObjectID
	for i := range id {
		id[i] = byte(i)
	}
	parsed, err := fds.ObjectIDFromString(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)

	parsed, err = fds.ObjectIDFromString("0x" + id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)

	_, err = fds.ObjectIDFromString("abc")
	require.True(t, fds.ErrInvalidArg.Has(err))
}
