package agent

// dispatchFunc is one entry of the CommandDispatchTable: a pure function from a
// command variant to a protocol-level Status plus instructions for the agent loop
//. Apart from dispatchTerminate (which drains the queue and the pending-ack table)
// and dispatchConnect (whose ResumeSession(false) drains the pending-ack table),
// handlers never touch MessagingInterface or the pending-ack table directly - the loop
// does that based on the returned ReturnFlags.
type dispatchFunc func(a *AgentContext, cmd *Command) (Status, ReturnFlags)

// CommandDispatchTable maps each CommandType to its handler.
type CommandDispatchTable map[CommandType]dispatchFunc

func defaultDispatchTable() CommandDispatchTable {
	return CommandDispatchTable{
		CommandProcessLoop: dispatchProcessLoop,
		CommandPublish:     dispatchPublish,
		CommandSubscribe:   dispatchSubscribe,
		CommandUnsubscribe: dispatchUnsubscribe,
		CommandPing:        dispatchPing,
		CommandConnect:     dispatchConnect,
		CommandDisconnect:  dispatchDisconnect,
		CommandTerminate:   dispatchTerminate,
	}
}

func dispatchProcessLoop(a *AgentContext, cmd *Command) (Status, ReturnFlags) {
	return StatusSuccess, ReturnFlags{RunProcessLoop: true}
}

// dispatchPublish sends the PUBLISH. QoS 0 completes immediately; QoS >= 1 asks the
// loop to register the command in the pending-ack table under the assigned packet ID
//.
func dispatchPublish(a *AgentContext, cmd *Command) (Status, ReturnFlags) {
	info := cmd.Publish
	if info == nil {
		return StatusBadParameter, ReturnFlags{}
	}
	if err := a.client.Publish(info); err != nil {
		return StatusSendFailed, ReturnFlags{}
	}
	if info.QoS == 0 {
		return StatusSuccess, ReturnFlags{RunProcessLoop: true}
	}
	return StatusSuccess, ReturnFlags{
		PacketID:         info.PacketID,
		AddToPendingAcks: true,
		RunProcessLoop:   true,
	}
}

func dispatchSubscribe(a *AgentContext, cmd *Command) (Status, ReturnFlags) {
	args := cmd.Subscribe
	if args == nil || len(args.Filters) == 0 {
		return StatusBadParameter, ReturnFlags{}
	}
	packetID, err := a.client.Subscribe(args)
	if err != nil {
		return StatusSendFailed, ReturnFlags{}
	}
	args.PacketID = packetID
	return StatusSuccess, ReturnFlags{
		PacketID:         packetID,
		AddToPendingAcks: true,
		RunProcessLoop:   true,
	}
}

func dispatchUnsubscribe(a *AgentContext, cmd *Command) (Status, ReturnFlags) {
	args := cmd.Subscribe
	if args == nil || len(args.Filters) == 0 {
		return StatusBadParameter, ReturnFlags{}
	}
	packetID, err := a.client.Unsubscribe(args)
	if err != nil {
		return StatusSendFailed, ReturnFlags{}
	}
	args.PacketID = packetID
	return StatusSuccess, ReturnFlags{
		PacketID:         packetID,
		AddToPendingAcks: true,
		RunProcessLoop:   true,
	}
}

func dispatchPing(a *AgentContext, cmd *Command) (Status, ReturnFlags) {
	if err := a.client.Ping(); err != nil {
		return StatusSendFailed, ReturnFlags{}
	}
	return StatusSuccess, ReturnFlags{RunProcessLoop: true}
}

// dispatchConnect blocks the agent thread for the duration of the handshake - this is
// acceptable because Connect is only ever issued once at startup, before any producer
// thread is depending on timely service of other commands. On success it invokes
// ResumeSession with CONNACK's session-present bit.
func dispatchConnect(a *AgentContext, cmd *Command) (Status, ReturnFlags) {
	args := cmd.Connect
	if args == nil {
		return StatusBadParameter, ReturnFlags{}
	}
	sessionPresent, err := a.client.Connect(args)
	if err != nil {
		return StatusSendFailed, ReturnFlags{}
	}
	args.SessionPresent = sessionPresent
	if err := a.ResumeSession(sessionPresent); err != nil {
		return StatusProtocolError, ReturnFlags{}
	}
	return StatusSuccess, ReturnFlags{}
}

// dispatchDisconnect ends the agent loop after sending DISCONNECT.
func dispatchDisconnect(a *AgentContext, cmd *Command) (Status, ReturnFlags) {
	err := a.client.Disconnect()
	if err != nil {
		return StatusSendFailed, ReturnFlags{EndLoop: true}
	}
	return StatusSuccess, ReturnFlags{EndLoop: true}
}

// dispatchTerminate ends the agent loop without touching the transport -
// the caller is expected to already have disconnected, or to be abandoning the
// connection outright. It drains every command still waiting in the queue and every
// command still in the pending-ack table first, completing each with BadResponse - the
// Terminate command itself is then completed with Success by the loop's generic path.
func dispatchTerminate(a *AgentContext, cmd *Command) (Status, ReturnFlags) {
	for _, queued := range a.messaging.Drain() {
		a.completeOnAgentThread(queued, CompletionResult{Status: StatusBadResponse})
		a.messaging.ReleaseCommand(queued)
	}
	a.pendingAcks.drain(a.messaging, StatusBadResponse)
	return StatusSuccess, ReturnFlags{EndLoop: true}
}
