// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package migration

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"storj.io/common/sync2"

	fdssync "github.com/vinaypunrao68/fds-src-sub016/internal/sync2"
	"github.com/vinaypunrao68/fds-src-sub016/pkg/fds"
)

// services is what executors share with their manager.
type services struct {
	log       *zap.Logger
	config    Config
	self      fds.NodeUUID
	transport Transport

	// ctx outlives single requests; it is cancelled when the manager closes.
	ctx context.Context

	serial    *fdssync.Serializer[fds.VolumeID]
	workers   *sync2.Limiter
	timers    *fdssync.TimerService
	callbacks errgroup.Group
}

// send delivers msg with the request timeout applied.
func (svc *services) send(ctx context.Context, to fds.NodeUUID, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, svc.config.RequestTimeout)
	defer cancel()
	err := svc.transport.Send(ctx, to, msg)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return fds.ErrTimeout.Wrap(err)
	}
	return err
}

// async runs fn off the calling goroutine.
func (svc *services) async(fn func()) {
	svc.callbacks.Go(func() error {
		fn()
		return nil
	})
}

// firstError keeps the first error reported by concurrent senders.
type firstError struct {
	mu  sync.Mutex
	err error
}

func (first *firstError) set(err error) {
	if err == nil {
		return
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	if first.err == nil {
		first.err = err
	}
}

func (first *firstError) get() error {
	first.mu.Lock()
	defer first.mu.Unlock()
	return first.err
}
