// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package scavenger

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
	"github.com/vinaypunrao68/fds-src-sub016/sm/objstore"
)

// TokenStore is the object store of one disk as seen by the scavenger.
type TokenStore interface {
	BitsPerToken() uint
	TokenStats(ctx context.Context, token fds.SmToken) (objstore.TokenStats, error)
	CompactToken(ctx context.Context, token fds.SmToken) (objstore.CompactResult, error)
}

// CompactionDone is called once when a compaction finished or failed.
type CompactionDone func(token fds.SmToken, result objstore.CompactResult, err error)

// TokenCompactor compacts one token of a disk.
type TokenCompactor struct {
	log     *zap.Logger
	token   fds.SmToken
	store   TokenStore
	running atomic.Bool
}

// NewTokenCompactor returns the compactor of token.
func NewTokenCompactor(log *zap.Logger, token fds.SmToken, store TokenStore) *TokenCompactor {
	return &TokenCompactor{log: log, token: token, store: store}
}

// Token returns the compacted token.
func (compactor *TokenCompactor) Token() fds.SmToken { return compactor.token }

// InProgress reports whether a compaction is running.
func (compactor *TokenCompactor) InProgress() bool { return compactor.running.Load() }

// StartCompaction compacts the token in the background and calls done when
// it is over. Only one compaction runs at a time; starting another fails
// with fds.ErrInProgress and done is not called.
func (compactor *TokenCompactor) StartCompaction(ctx context.Context, bitsPerToken uint, done CompactionDone) error {
	if bitsPerToken != compactor.store.BitsPerToken() {
		return fds.ErrInvalidArg.New("token width %d, store uses %d", bitsPerToken, compactor.store.BitsPerToken())
	}
	if bitsPerToken < 32 && uint64(compactor.token) >= 1<<bitsPerToken {
		return fds.ErrInvalidArg.New("token %d out of range for %d bits", compactor.token, bitsPerToken)
	}
	if !compactor.running.CompareAndSwap(false, true) {
		return fds.ErrInProgress.New("token %d", compactor.token)
	}

	compactor.log.Debug("compaction started", zap.Uint32("token", uint32(compactor.token)))
	go func() {
		result, err := compactor.store.CompactToken(ctx, compactor.token)
		compactor.running.Store(false)
		if err != nil {
			compactor.log.Warn("compaction failed", zap.Uint32("token", uint32(compactor.token)), zap.Error(err))
		}
		if done != nil {
			done(compactor.token, result, err)
		}
	}()
	return nil
}
