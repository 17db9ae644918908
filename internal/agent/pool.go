package agent

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

// commandPool hands out *Command records up to a fixed capacity, the concrete
// acquire_command/release_command half of a MessagingInterface. Bounded
// by a weighted semaphore rather than a free-list: a Command is a small, fixed-shape
// struct, so "acquiring" one is really just reserving a slot and allocating fresh -
// the semaphore is what gives acquire_command its block-with-timeout behavior.
type commandPool struct {
	sem *semaphore.Weighted
}

func newCommandPool(capacity int) *commandPool {
	return &commandPool{sem: semaphore.NewWeighted(int64(capacity))}
}

// acquire reserves one slot, blocking up to blockMs milliseconds if the pool is
// exhausted. Returns (nil, false) if no slot became available in time.
func (p *commandPool) acquire(blockMs int) (*Command, bool) {
	if blockMs <= 0 {
		if !p.sem.TryAcquire(1) {
			return nil, false
		}
		return &Command{}, true
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(blockMs)*time.Millisecond)
	defer cancel()
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, false
	}
	return &Command{}, true
}

// release returns a Command's slot to the pool.
func (p *commandPool) release(*Command) bool {
	p.sem.Release(1)
	return true
}
