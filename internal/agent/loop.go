package agent

import log "github.com/sirupsen/logrus"

// recvBlockMs is how long Run's Recv call waits for a command before looping back to
// check for a spurious wake-up. It is not a protocol timeout - just a bound on how
// long the agent thread can go without reconsidering its state.
const recvBlockMs = 1000

// Run is the agent thread: the single goroutine that owns the MqttClient and drives
// it to completion, one command at a time. It returns when a Disconnect
// or Terminate command ends the loop, when any handler reports a non-success status
// (see runOne), or when recv reports the messaging layer closed.
func (a *AgentContext) Run() {
	for {
		cmd, ok := a.messaging.Recv(recvBlockMs)
		if !ok {
			log.WithFields(a.logFields()).Debug("agent loop: messaging closed, exiting")
			return
		}
		if cmd == nil {
			// A normal recv timeout, not a close - service anything already waiting on
			// the wire before going back to blocking on Recv, the same as a dispatched
			// command's RunProcessLoop flag would.
			if a.client.Connected() {
				a.drainProcessLoop()
			}
			continue
		}
		if a.runOne(cmd) {
			return
		}
	}
}

// runOne dispatches a single command and drives whatever follow-up ProcessLoop calls
// its ReturnFlags ask for. Its most surprising rule: any non-success status from a
// handler ends the loop, not just the handful of handlers that set EndLoop themselves.
// Returns true if the loop should end.
func (a *AgentContext) runOne(cmd *Command) bool {
	handler, known := a.dispatch[cmd.Type]
	if !known {
		a.completeOnAgentThread(cmd, CompletionResult{Status: StatusBadParameter})
		a.messaging.ReleaseCommand(cmd)
		return false
	}

	status, flags := handler(a, cmd)

	ackAdded := false
	if status == StatusSuccess && flags.AddToPendingAcks {
		if a.pendingAcks.insert(flags.PacketID, cmd) {
			ackAdded = true
		} else {
			status = StatusNoMemory
		}
	}

	if !ackAdded {
		a.completeOnAgentThread(cmd, CompletionResult{Status: status})
		a.messaging.ReleaseCommand(cmd)
	}

	if status == StatusSuccess && flags.RunProcessLoop {
		a.drainProcessLoop()
	}

	return flags.EndLoop || status != StatusSuccess
}

// drainProcessLoop calls ProcessLoop(0) repeatedly until a pass reads nothing, so a
// single dispatched command can pick up every packet already waiting on the wire
// before the agent goes back to blocking on Recv.
func (a *AgentContext) drainProcessLoop() {
	for {
		received, err := a.client.ProcessLoop(0)
		if err != nil {
			log.WithFields(a.logFields()).WithError(err).Debug("agent loop: ProcessLoop error")
			return
		}
		if !received {
			return
		}
	}
}
