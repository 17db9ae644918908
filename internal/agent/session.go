package agent

import log "github.com/sirupsen/logrus"

// ResumeSession implements the two branches of session resumption, driven by the
// Connect handler once CONNACK's session-present bit is known. It runs synchronously
// on the agent thread - never concurrently with Run's dispatch loop.
//
// sessionPresent == true: replay every QoS>=1 PUBLISH the MqttClient still considers
// outstanding, marked DUP, in their original send order. A packet id the cursor returns
// with no corresponding pending-ack entry is not an error (§9's session-resume
// ambiguity) - the agent does not need the pending-ack entry to resend, it only reads
// the retained PublishInfo off the MqttClient's own cursor.
//
// sessionPresent == false: the broker discarded any prior session, so every command
// still waiting on an acknowledgment can never be satisfied - drain the table with
// RecvFailed and let producers re-subscribe/re-publish at the application level.
func (a *AgentContext) ResumeSession(sessionPresent bool) error {
	if !sessionPresent {
		a.pendingAcks.drain(a.messaging, StatusRecvFailed)
		return nil
	}

	cursor := a.client.PublishToResend()
	count := 0
	for {
		packetID, info, ok := cursor.Advance()
		if !ok {
			break
		}
		dup := *info
		dup.IsDuplicate = true
		dup.PacketID = packetID
		if err := a.client.Publish(&dup); err != nil {
			log.WithFields(a.logFields()).WithError(err).Warnf("resume session: resend of packet %d failed", packetID)
			return err
		}
		count++
	}
	log.WithFields(a.logFields()).Debugf("resume session: resent %d in-flight publish(es)", count)
	return nil
}

// Terminate ends the agent immediately: it drains every command still waiting in the
// queue and every command still in the pending-ack table, completing each with
// StatusProtocolError, then closes the messaging layer so Run returns.
// Unlike Disconnect, it never touches the transport. A Disconnect's EndLoop only ends
// Run; it does not perform this drain.
func (a *AgentContext) Terminate() {
	queued := a.messaging.Drain()
	for _, cmd := range queued {
		completeCommand(cmd, CompletionResult{Status: StatusProtocolError})
		a.messaging.ReleaseCommand(cmd)
	}
	a.pendingAcks.drain(a.messaging, StatusProtocolError)
	a.messaging.Close()
}
