// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package migration_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinaypunrao68/fds-src-sub016/dm/migration"
	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
)

func TestSeqNumInOrder(t *testing.T) {
	r := migration.NewSeqNumReceiver()
	for i := uint64(0); i < 10; i++ {
		done, err := r.Set(i, false)
		require.NoError(t, err)
		assert.False(t, done)
	}
	done, err := r.Set(10, true)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestSeqNumOddsThenEvens(t *testing.T) {
	r := migration.NewSeqNumReceiver()
	for i := uint64(1); i <= 11; i += 2 {
		done, err := r.Set(i, false)
		require.NoError(t, err)
		assert.False(t, done)
	}
	done, err := r.Set(13, true)
	require.NoError(t, err)
	assert.False(t, done)

	for i := uint64(0); i <= 12; i += 2 {
		done, err := r.Set(i, false)
		require.NoError(t, err)
		assert.Equal(t, i == 12, done, "seq %d", i)
	}
}

func TestSeqNumPermutations(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for n := 0; n < 20; n++ {
		for trial := 0; trial < 20; trial++ {
			r := migration.NewSeqNumReceiver()
			order := rng.Perm(n + 1)
			for i, seq := range order {
				done, err := r.Set(uint64(seq), seq == n)
				require.NoError(t, err)
				assert.Equal(t, i == n, done)
			}
		}
	}
}

func TestSeqNumDuplicates(t *testing.T) {
	r := migration.NewSeqNumReceiver()
	_, err := r.Set(0, false)
	require.NoError(t, err)
	_, err = r.Set(0, false)
	require.NoError(t, err)
	done, err := r.Set(1, true)
	require.NoError(t, err)
	assert.True(t, done)
	done, err = r.Set(1, true)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, 2, r.Received())
}

func TestSeqNumSingleEmptyStream(t *testing.T) {
	r := migration.NewSeqNumReceiver()
	done, err := r.Set(0, true)
	require.NoError(t, err)
	assert.True(t, done)
	assert.True(t, r.Complete())
}

func TestSeqNumProtocolViolations(t *testing.T) {
	r := migration.NewSeqNumReceiver()
	_, err := r.Set(3, true)
	require.NoError(t, err)

	_, err = r.Set(4, false)
	assert.True(t, fds.ErrProtocol.Has(err))

	_, err = r.Set(5, true)
	assert.True(t, fds.ErrProtocol.Has(err))

	r = migration.NewSeqNumReceiver()
	_, err = r.Set(7, false)
	require.NoError(t, err)
	_, err = r.Set(2, true)
	assert.True(t, fds.ErrProtocol.Has(err))
}
