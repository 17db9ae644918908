package agent

import (
	"testing"

	"github.com/hlindberg/agentmq/internal/testutils"
)

func newUninitializedProducer() *Producer {
	messaging := NewBoundedMessaging(4, 4)
	initialized := false
	flag := false
	return &Producer{
		messaging:         messaging,
		onAgentThread:     &flag,
		initialized:       func() bool { return initialized },
		pendingAcksFree:   func() bool { return true },
		networkBufferSize: defaultNetworkBufferSize,
	}
}

// TestProducerRefusesBeforeInitialized covers testable property 4: every
// entry point except Terminate refuses to enqueue until the MqttClient is initialized.
func TestProducerRefusesBeforeInitialized(t *testing.T) {
	p := newUninitializedProducer()

	_, err := p.Publish(PublishInfo{Topic: "a", QoS: 0}, 0, nil, nil)
	testutils.CheckError(err, t)

	_, err = p.Subscribe([]TopicFilter{{Topic: "a"}}, 0, nil, nil)
	testutils.CheckError(err, t)

	_, err = p.Connect(ConnectArgs{}, 0, nil, nil)
	testutils.CheckError(err, t)

	ok, err := p.Terminate(0)
	testutils.CheckTrue(ok, t)
	testutils.CheckNotError(err, t)
}

func TestProducerPublishRejectsEmptyTopic(t *testing.T) {
	p := NewProducer(NewBoundedMessaging(4, 4))
	_, err := p.Publish(PublishInfo{Topic: "", QoS: 0}, 0, nil, nil)
	testutils.CheckError(err, t)
}

// TestProducerPublishRejectsOversizedTopic covers the case where a topic would not
// fit in the network buffer alongside its fixed header is rejected before enqueuing.
func TestProducerPublishRejectsOversizedTopic(t *testing.T) {
	p := NewProducer(NewBoundedMessaging(4, 4))
	p.SetNetworkBufferSize(16)

	longTopic := make([]byte, 32)
	for i := range longTopic {
		longTopic[i] = 'x'
	}
	_, err := p.Publish(PublishInfo{Topic: string(longTopic), QoS: 0}, 0, nil, nil)
	testutils.CheckError(err, t)
	statusErr, ok := err.(*StatusError)
	testutils.CheckTrue(ok, t)
	testutils.CheckEqual(StatusBadParameter, statusErr.Status, t)
}

// TestProducerPublishRefusesWhenPendingAcksFull covers the best-effort
// pre-check: a QoS>=1 publish is refused up front when the pending-ack table has no room,
// without ever reaching the queue.
func TestProducerPublishRefusesWhenPendingAcksFull(t *testing.T) {
	messaging := NewBoundedMessaging(4, 4)
	flag := false
	p := &Producer{
		messaging:         messaging,
		onAgentThread:     &flag,
		initialized:       func() bool { return true },
		pendingAcksFree:   func() bool { return false },
		networkBufferSize: defaultNetworkBufferSize,
	}
	_, err := p.Publish(PublishInfo{Topic: "a", QoS: 1}, 0, nil, nil)
	testutils.CheckError(err, t)
	statusErr, ok := err.(*StatusError)
	testutils.CheckTrue(ok, t)
	testutils.CheckEqual(StatusNoMemory, statusErr.Status, t)
}

// TestProducerRejectsBlockingEnqueueFromAgentThread covers the case where a completion
// callback running on the agent thread must use block_ms = 0 if it enqueues further
// commands, or it would deadlock the loop against itself.
func TestProducerRejectsBlockingEnqueueFromAgentThread(t *testing.T) {
	messaging := NewBoundedMessaging(4, 4)
	flag := true // simulate being invoked from inside a completion callback
	p := &Producer{
		messaging:         messaging,
		onAgentThread:     &flag,
		initialized:       func() bool { return true },
		pendingAcksFree:   func() bool { return true },
		networkBufferSize: defaultNetworkBufferSize,
	}
	_, err := p.Ping(100, nil, nil)
	testutils.CheckError(err, t)

	ok, err := p.Ping(0, nil, nil)
	testutils.CheckTrue(ok, t)
	testutils.CheckNotError(err, t)
}
