package agent

import (
	"testing"

	"github.com/hlindberg/agentmq/internal/testutils"
)

// TestResumeSessionSkipsPacketsWithNoPendingAckEntry covers a session-resume ambiguity:
// the resend cursor can return a packet id this process never registered (for example,
// a fresh process resuming a persisted session) and that must not be treated as an
// error - ResumeSession only needs the retained PublishInfo, not a pending-ack entry.
func TestResumeSessionSkipsPacketsWithNoPendingAckEntry(t *testing.T) {
	client := &fakeMqttClient{
		sessionPresent: true,
		resend: []fakeResendEntry{
			{packetID: 7, info: PublishInfo{Topic: "orphan", QoS: 1, PacketID: 7}},
		},
	}
	client.Init("c")
	messaging := NewBoundedMessaging(4, 4)
	ctx := NewAgent(client, messaging, 4)

	// Nothing was ever inserted into ctx's pending-ack table for packet id 7 - this
	// process never sent it, it is only known via the client's own resend cursor.
	err := ctx.ResumeSession(true)
	testutils.CheckNotError(err, t)

	testutils.CheckEqual(1, len(client.publishes), t)
	testutils.CheckEqual("orphan", client.publishes[0].Topic, t)
	testutils.CheckTrue(client.publishes[0].IsDuplicate, t)
}

func TestResumeSessionFalseDrainsWithRecvFailed(t *testing.T) {
	client := &fakeMqttClient{}
	client.Init("c")
	messaging := NewBoundedMessaging(4, 4)
	ctx := NewAgent(client, messaging, 4)

	cmd, ok := messaging.AcquireCommand(0)
	testutils.CheckTrue(ok, t)
	var gotStatus Status
	cmd.Completion = func(_ interface{}, result CompletionResult) { gotStatus = result.Status }
	ctx.pendingAcks.insert(1, cmd)

	err := ctx.ResumeSession(false)
	testutils.CheckNotError(err, t)
	testutils.CheckEqual(StatusRecvFailed, gotStatus, t)
	testutils.CheckTrue(ctx.pendingAcks.hasFreeSlot(), t)
}
