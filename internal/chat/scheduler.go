package chat

import (
	"context"
	"sync"
	"time"
)

// Scheduler runs delayed work on its own goroutines and can be stopped as a unit.
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewScheduler returns a running Scheduler. Close cancels pending work and waits for it.
func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{ctx: ctx, cancel: cancel}
}

// After runs fn once delay has passed, unless the scheduler is closed first.
func (s *Scheduler) After(delay time.Duration, fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if delay > 0 {
			t := time.NewTimer(delay)
			defer t.Stop()
			select {
			case <-t.C:
			case <-s.ctx.Done():
				return
			}
		}
		fn(s.ctx)
	}()
}

// Wait blocks until every scheduled func has run or been dropped.
func (s *Scheduler) Wait() { s.wg.Wait() }

// Close drops pending work and waits for running work to return.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}
