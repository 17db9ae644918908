package agent

import log "github.com/sirupsen/logrus"

// AgentContext is the single-writer agent state: one MqttClient, one messaging
// channel, one pending-ack table, all touched only from the agent thread.
// Producers never reach into it directly - they go through MessagingInterface.
type AgentContext struct {
	client       MqttClient
	messaging    MessagingInterface
	pendingAcks  *pendingAckTable
	dispatch     CommandDispatchTable
	packetLoopMs int // not read: drainProcessLoop always calls ProcessLoop(0)
	onPublish    PublishCallback
	reentrant    *bool
}

// NewProducer returns a Producer that shares this agent's re-entrancy flag, so a
// completion callback invoked from the agent thread that tries a blocking enqueue is
// rejected rather than deadlocking the loop. It also wires the
// Initialized() check and the pending-ack best-effort free-slot check the producer API
// surface requires.
func (a *AgentContext) NewProducer() *Producer {
	return &Producer{
		messaging:         a.messaging,
		onAgentThread:     a.reentrant,
		initialized:       a.client.Initialized,
		pendingAcksFree:   a.pendingAcks.hasFreeSlot,
		networkBufferSize: defaultNetworkBufferSize,
	}
}

// completeOnAgentThread wraps completeCommand with the re-entrancy flag producers
// consult before honoring a blocking enqueue.
func (a *AgentContext) completeOnAgentThread(cmd *Command, result CompletionResult) {
	*a.reentrant = true
	completeCommand(cmd, result)
	*a.reentrant = false
}

// NewAgent wires a MqttClient and MessagingInterface into a ready-to-run AgentContext.
// pendingAckCapacity bounds the number of QoS>=1 operations that may be outstanding
// at once.
func NewAgent(client MqttClient, messaging MessagingInterface, pendingAckCapacity int) *AgentContext {
	flag := false
	ctx := &AgentContext{
		client:      client,
		messaging:   messaging,
		pendingAcks: newPendingAckTable(pendingAckCapacity),
		reentrant:   &flag,
	}
	ctx.dispatch = defaultDispatchTable()
	client.SetEventCallback(ctx.onInboundPacket)
	return ctx
}

func (a *AgentContext) logFields() log.Fields {
	return log.Fields{"component": "agent"}
}
