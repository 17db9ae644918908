package agent

import (
	"sync"
	"time"

	"github.com/eapache/queue"
)

// commandQueue is a bounded, FIFO queue of *Command backed by eapache/queue's ring
// buffer. It is the concrete send/recv half of a MessagingInterface,
// chosen over a bare buffered channel so the queue's depth and draining can be
// inspected directly (Terminate's non-blocking drain, §4.8) instead of relying on
// repeated non-blocking channel receives.
//
// Blocking with a timeout is implemented with signal channels: notEmpty is closed and
// replaced on every push, notFull on every pop - waiters select on time.After
// alongside them rather than polling.
type commandQueue struct {
	mutex    sync.Mutex
	buf      *queue.Queue
	capacity int
	closed   bool
	notEmpty chan struct{}
	notFull  chan struct{}
}

func newCommandQueue(capacity int) *commandQueue {
	return &commandQueue{
		buf:      queue.New(),
		capacity: capacity,
		notEmpty: make(chan struct{}),
		notFull:  make(chan struct{}),
	}
}

// push enqueues cmd, blocking up to blockMs milliseconds if the queue is full.
// Returns false if the queue stayed full for the whole wait, or is closed.
func (q *commandQueue) push(cmd *Command, blockMs int) bool {
	deadline := time.Now().Add(time.Duration(blockMs) * time.Millisecond)
	for {
		q.mutex.Lock()
		if q.closed {
			q.mutex.Unlock()
			return false
		}
		if q.buf.Length() < q.capacity {
			q.buf.Add(cmd)
			wake := q.notEmpty
			q.notEmpty = make(chan struct{})
			q.mutex.Unlock()
			close(wake)
			return true
		}
		wait := q.notFull
		q.mutex.Unlock()

		if blockMs <= 0 {
			return false
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		select {
		case <-wait:
		case <-time.After(remaining):
			return false
		}
	}
}

// pop dequeues the oldest Command, blocking up to blockMs milliseconds if the queue is
// empty. Returns (nil, true) on timeout - the agent loop treats this as "no command,
// but still woke up" and keeps running. (nil, false) is reserved for a closed queue,
// which is the only case that should end the agent loop.
func (q *commandQueue) pop(blockMs int) (*Command, bool) {
	deadline := time.Now().Add(time.Duration(blockMs) * time.Millisecond)
	for {
		q.mutex.Lock()
		if q.buf.Length() > 0 {
			cmd := q.buf.Remove().(*Command)
			wake := q.notFull
			q.notFull = make(chan struct{})
			q.mutex.Unlock()
			close(wake)
			return cmd, true
		}
		if q.closed {
			q.mutex.Unlock()
			return nil, false
		}
		wait := q.notEmpty
		q.mutex.Unlock()

		if blockMs <= 0 {
			return nil, true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, true
		}
		select {
		case <-wait:
		case <-time.After(remaining):
			return nil, true
		}
	}
}

// drain non-blockingly removes and returns every command currently queued - used by
// Terminate.
func (q *commandQueue) drain() []*Command {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	out := make([]*Command, 0, q.buf.Length())
	for q.buf.Length() > 0 {
		out = append(out, q.buf.Remove().(*Command))
	}
	return out
}

func (q *commandQueue) close() {
	q.mutex.Lock()
	q.closed = true
	wakeEmpty, wakeFull := q.notEmpty, q.notFull
	q.notEmpty, q.notFull = make(chan struct{}), make(chan struct{})
	q.mutex.Unlock()
	close(wakeEmpty)
	close(wakeFull)
}
