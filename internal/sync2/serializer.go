// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information

package sync2

import (
	"context"
	"sync"
)

// Serializer runs tasks submitted for the same key one at a time in
// submission order. Tasks of different keys run concurrently.
type Serializer[K comparable] struct {
	mu     sync.Mutex
	queues map[K][]func()
	closed bool
	wg     sync.WaitGroup
}

// NewSerializer returns an empty serializer.
func NewSerializer[K comparable]() *Serializer[K] {
	return &Serializer[K]{queues: make(map[K][]func())}
}

// Go queues fn on key. It returns false when the serializer is closed.
func (s *Serializer[K]) Go(key K, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}

	queue, running := s.queues[key]
	s.queues[key] = append(queue, fn)
	if !running {
		s.wg.Add(1)
		go s.drain(key)
	}
	return true
}

// Do runs fn on key and waits for it to finish.
func (s *Serializer[K]) Do(ctx context.Context, key K, fn func(ctx context.Context) error) error {
	done := make(chan error, 1)
	if !s.Go(key, func() { done <- fn(ctx) }) {
		return context.Canceled
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Serializer[K]) drain(key K) {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		queue := s.queues[key]
		if len(queue) == 0 {
			delete(s.queues, key)
			s.mu.Unlock()
			return
		}
		fn := queue[0]
		queue[0] = nil
		s.queues[key] = queue[1:]
		s.mu.Unlock()

		fn()
	}
}

// Close stops accepting tasks and waits for the queued ones to finish.
func (s *Serializer[K]) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}
