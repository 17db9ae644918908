package agent

import "github.com/google/uuid"

// MessagingInterface is the abstraction hiding the concrete queue/pool implementation
// behind send/recv/acquire_command/release_command. All four methods
// must be safe to call concurrently with the agent; Recv is only ever called by the
// agent thread.
type MessagingInterface interface {
	// Send enqueues exactly one command, blocking up to blockMs milliseconds on a full
	// queue. Returns false on timeout.
	Send(cmd *Command, blockMs int) bool

	// Recv dequeues one command, blocking up to blockMs milliseconds. Returning
	// (nil, true) is permitted and treated as a wake-up with no command.
	Recv(blockMs int) (*Command, bool)

	// AcquireCommand hands out one free Command record, blocking up to blockMs
	// milliseconds if the pool is exhausted.
	AcquireCommand(blockMs int) (*Command, bool)

	// ReleaseCommand returns ownership of a previously acquired Command.
	ReleaseCommand(cmd *Command) bool

	// Drain non-blockingly removes and returns every command currently queued - used
	// by Terminate.
	Drain() []*Command

	// Close signals the queue is shutting down; blocked Recv/Send calls return.
	Close()
}

// boundedMessaging is the default MessagingInterface: a ring-buffer-backed queue
// (commandQueue, github.com/eapache/queue) plus a semaphore-bounded command pool
// (commandPool, golang.org/x/sync/semaphore) - a bounded ring buffer with semaphores,
// left as the application's own choice to make.
type boundedMessaging struct {
	queue *commandQueue
	pool  *commandPool
}

// NewBoundedMessaging constructs the default MessagingInterface with the given queue
// depth and command pool capacity.
func NewBoundedMessaging(queueCapacity, poolCapacity int) MessagingInterface {
	return &boundedMessaging{
		queue: newCommandQueue(queueCapacity),
		pool:  newCommandPool(poolCapacity),
	}
}

func (m *boundedMessaging) Send(cmd *Command, blockMs int) bool {
	return m.queue.push(cmd, blockMs)
}

func (m *boundedMessaging) Recv(blockMs int) (*Command, bool) {
	return m.queue.pop(blockMs)
}

func (m *boundedMessaging) AcquireCommand(blockMs int) (*Command, bool) {
	cmd, ok := m.pool.acquire(blockMs)
	if !ok {
		return nil, false
	}
	cmd.ID = uuid.New()
	return cmd, true
}

func (m *boundedMessaging) ReleaseCommand(cmd *Command) bool {
	return m.pool.release(cmd)
}

func (m *boundedMessaging) Drain() []*Command {
	return m.queue.drain()
}

func (m *boundedMessaging) Close() {
	m.queue.close()
}
