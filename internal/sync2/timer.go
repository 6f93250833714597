// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information

package sync2

import (
	"context"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// TimerService fires repeating timers and runs their callbacks on a bounded
// pool. The dispatch loop never waits for a callback: a tick that finds the
// pool saturated is skipped.
type TimerService struct {
	log   *zap.Logger
	clock clock.Clock
	pool  *semaphore.Weighted

	mu     sync.Mutex
	timers map[*Timer]struct{}
	wg     sync.WaitGroup
}

// Timer is a repeating timer registered with a TimerService.
type Timer struct {
	service *TimerService
	quit    chan struct{}
	once    sync.Once
}

// NewTimerService returns a timer service running at most workers callbacks
// at once. A nil clock uses the wall clock.
func NewTimerService(log *zap.Logger, clk clock.Clock, workers int) *TimerService {
	if log == nil {
		log = zap.NewNop()
	}
	if clk == nil {
		clk = clock.New()
	}
	if workers <= 0 {
		workers = 1
	}
	return &TimerService{
		log:    log,
		clock:  clk,
		pool:   semaphore.NewWeighted(int64(workers)),
		timers: make(map[*Timer]struct{}),
	}
}

// Clock returns the clock of the service.
func (service *TimerService) Clock() clock.Clock { return service.clock }

// Every calls fn every interval until the timer is cancelled or ctx is done.
func (service *TimerService) Every(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) *Timer {
	timer := &Timer{service: service, quit: make(chan struct{})}

	service.mu.Lock()
	service.timers[timer] = struct{}{}
	service.mu.Unlock()

	ticker := service.clock.Ticker(interval)
	service.wg.Add(1)
	go func() {
		defer service.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				service.post(ctx, timer, fn)
			case <-timer.quit:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return timer
}

func (service *TimerService) post(ctx context.Context, timer *Timer, fn func(ctx context.Context)) {
	if !service.pool.TryAcquire(1) {
		service.log.Debug("timer pool saturated, skipping tick")
		return
	}
	service.wg.Add(1)
	go func() {
		defer service.wg.Done()
		defer service.pool.Release(1)
		select {
		case <-timer.quit:
			return
		default:
		}
		fn(ctx)
	}()
}

// Cancel stops further firings. A callback already running is not
// interrupted. Cancelling twice is a no-op.
func (timer *Timer) Cancel() {
	timer.once.Do(func() {
		close(timer.quit)
		timer.service.mu.Lock()
		delete(timer.service.timers, timer)
		timer.service.mu.Unlock()
	})
}

// Close cancels every timer and waits for running callbacks.
func (service *TimerService) Close() {
	service.mu.Lock()
	timers := make([]*Timer, 0, len(service.timers))
	for timer := range service.timers {
		timers = append(timers, timer)
	}
	service.mu.Unlock()

	for _, timer := range timers {
		timer.Cancel()
	}
	service.wg.Wait()
}
