package agent

import "fmt"

// Producer is the handle application goroutines use to enqueue work onto an agent
//. It wraps MessagingInterface so callers never touch the queue or
// command pool directly. Every public method follows the same outline: validate,
// acquire, populate, enqueue, release-on-failure.
type Producer struct {
	messaging MessagingInterface
	// onAgentThread is set while the agent runs a completion from runOne, from an
	// inbound acknowledgment, or from dispatchTerminate's queue drain, so re-entrant
	// enqueue calls made from inside those CompletionFuncs are caught if they block.
	// Completions fired by pendingAckTable.drain and by AgentContext.Terminate run
	// without it set.
	onAgentThread *bool
	// initialized reports whether MQTT_Init has been called - every entry point
	// except Terminate refuses to enqueue until this is true.
	initialized func() bool
	// pendingAcksFree is the producer-side best-effort pre-check against the
	// pending-ack table; the agent thread's insert remains the
	// authoritative check.
	pendingAcksFree func() bool
	// networkBufferSize bounds the PUBLISH fixed-header-plus-topic validation
	//.
	networkBufferSize int
}

// defaultNetworkBufferSize is used when a Producer is not told otherwise.
const defaultNetworkBufferSize = 1024

// maxFixedHeaderBytes is the worst case size of a PUBLISH fixed header: one control
// byte plus up to four bytes of variable-length-encoded remaining length.
const maxFixedHeaderBytes = 5

// ErrBlockingFromAgentThread is returned when a completion callback tries to enqueue
// with a non-zero blockMs - on the agent thread that would deadlock the loop against
// itself.
var ErrBlockingFromAgentThread = fmt.Errorf("agent: blocking enqueue not allowed from a completion callback")

// ErrNotInitialized is returned when a producer entry point is called before the
// MqttClient has been initialized.
var ErrNotInitialized = fmt.Errorf("agent: MqttClient has not been initialized")

// NewProducer returns a Producer bound directly to a MessagingInterface, with no
// Initialized() check and no pending-ack free-slot check available (there is no
// AgentContext to ask). Prefer AgentContext.NewProducer, which wires both checks and
// shares the agent's re-entrancy flag.
func NewProducer(messaging MessagingInterface) *Producer {
	flag := false
	return &Producer{
		messaging:         messaging,
		onAgentThread:     &flag,
		initialized:       func() bool { return true },
		pendingAcksFree:   func() bool { return true },
		networkBufferSize: defaultNetworkBufferSize,
	}
}

// SetNetworkBufferSize overrides the buffer size Publish validates a topic name
// against. Intended to be called once, before any producer thread starts enqueuing.
func (p *Producer) SetNetworkBufferSize(size int) {
	p.networkBufferSize = size
}

func (p *Producer) checkBlockMs(blockMs int) error {
	if *p.onAgentThread && blockMs != 0 {
		return NewStatusError(StatusBadParameter, ErrBlockingFromAgentThread)
	}
	return nil
}

// validate runs the common pre-enqueue checks shared by every entry point except
// Terminate: Initialized() and the re-entrant block_ms=0 rule.
func (p *Producer) validate(blockMs int) error {
	if !p.initialized() {
		return NewStatusError(StatusBadParameter, ErrNotInitialized)
	}
	return p.checkBlockMs(blockMs)
}

// enqueue acquires a free Command, fills it in via fill, and sends it. Returns false
// and a StatusError if the pool or queue was exhausted within blockMs.
func (p *Producer) enqueue(blockMs int, fill func(*Command)) (bool, error) {
	cmd, ok := p.messaging.AcquireCommand(blockMs)
	if !ok {
		return false, NewStatusError(StatusNoMemory, nil)
	}
	fill(cmd)
	if !p.messaging.Send(cmd, blockMs) {
		p.messaging.ReleaseCommand(cmd)
		return false, NewStatusError(StatusSendFailed, nil)
	}
	return true, nil
}

// publishHeaderSize is the worst-case byte count of a PUBLISH fixed header plus the
// topic's own 16-bit length prefix and the topic name itself.
func publishHeaderSize(topic string) int {
	return maxFixedHeaderBytes + 2 + len(topic)
}

// Publish enqueues a PUBLISH. completion, if non-nil, fires once the command reaches
// a terminal state: immediately for QoS 0, on the matching PUBACK/PUBCOMP for QoS>=1.
func (p *Producer) Publish(info PublishInfo, blockMs int, completion CompletionFunc, completionCtx interface{}) (bool, error) {
	if err := p.validate(blockMs); err != nil {
		return false, err
	}
	if info.Topic == "" {
		return false, NewStatusError(StatusBadParameter, nil)
	}
	// Leave room for at least one byte of payload framing.
	if publishHeaderSize(info.Topic) >= p.networkBufferSize {
		return false, NewStatusError(StatusBadParameter, nil)
	}
	if info.QoS > 0 && !p.pendingAcksFree() {
		return false, NewStatusError(StatusNoMemory, nil)
	}
	return p.enqueue(blockMs, func(cmd *Command) {
		cmd.Type = CommandPublish
		infoCopy := info
		cmd.Publish = &infoCopy
		cmd.Completion = completion
		cmd.CompletionContext = completionCtx
	})
}

// Subscribe enqueues a SUBSCRIBE.
func (p *Producer) Subscribe(filters []TopicFilter, blockMs int, completion CompletionFunc, completionCtx interface{}) (bool, error) {
	if err := p.validate(blockMs); err != nil {
		return false, err
	}
	if len(filters) == 0 {
		return false, NewStatusError(StatusBadParameter, nil)
	}
	if !p.pendingAcksFree() {
		return false, NewStatusError(StatusNoMemory, nil)
	}
	return p.enqueue(blockMs, func(cmd *Command) {
		cmd.Type = CommandSubscribe
		cmd.Subscribe = &SubscribeArgs{Filters: filters}
		cmd.Completion = completion
		cmd.CompletionContext = completionCtx
	})
}

// Unsubscribe enqueues an UNSUBSCRIBE.
func (p *Producer) Unsubscribe(topics []string, blockMs int, completion CompletionFunc, completionCtx interface{}) (bool, error) {
	if err := p.validate(blockMs); err != nil {
		return false, err
	}
	if len(topics) == 0 {
		return false, NewStatusError(StatusBadParameter, nil)
	}
	if !p.pendingAcksFree() {
		return false, NewStatusError(StatusNoMemory, nil)
	}
	filters := make([]TopicFilter, len(topics))
	for i, t := range topics {
		filters[i] = TopicFilter{Topic: t}
	}
	return p.enqueue(blockMs, func(cmd *Command) {
		cmd.Type = CommandUnsubscribe
		cmd.Subscribe = &SubscribeArgs{Filters: filters}
		cmd.Completion = completion
		cmd.CompletionContext = completionCtx
	})
}

// Ping enqueues a PINGREQ.
func (p *Producer) Ping(blockMs int, completion CompletionFunc, completionCtx interface{}) (bool, error) {
	if err := p.validate(blockMs); err != nil {
		return false, err
	}
	return p.enqueue(blockMs, func(cmd *Command) {
		cmd.Type = CommandPing
		cmd.Completion = completion
		cmd.CompletionContext = completionCtx
	})
}

// Connect enqueues a CONNECT. Intended to be issued once, before any other command.
func (p *Producer) Connect(args ConnectArgs, blockMs int, completion CompletionFunc, completionCtx interface{}) (bool, error) {
	if err := p.validate(blockMs); err != nil {
		return false, err
	}
	return p.enqueue(blockMs, func(cmd *Command) {
		cmd.Type = CommandConnect
		argsCopy := args
		cmd.Connect = &argsCopy
		cmd.Completion = completion
		cmd.CompletionContext = completionCtx
	})
}

// Disconnect enqueues a DISCONNECT, which ends the agent loop once processed.
func (p *Producer) Disconnect(blockMs int, completion CompletionFunc, completionCtx interface{}) (bool, error) {
	if err := p.validate(blockMs); err != nil {
		return false, err
	}
	return p.enqueue(blockMs, func(cmd *Command) {
		cmd.Type = CommandDisconnect
		cmd.Completion = completion
		cmd.CompletionContext = completionCtx
	})
}

// Terminate enqueues a Terminate command, ending the agent loop without touching the
// transport. For an immediate, non-queued shutdown use AgentContext.Terminate instead.
// Unlike every other entry point, Terminate is exempt from the Initialized() check: an
// agent that never finished initializing still needs a way to be torn down.
func (p *Producer) Terminate(blockMs int) (bool, error) {
	if err := p.checkBlockMs(blockMs); err != nil {
		return false, err
	}
	return p.enqueue(blockMs, func(cmd *Command) {
		cmd.Type = CommandTerminate
	})
}
