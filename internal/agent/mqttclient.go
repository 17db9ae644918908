package agent

// MqttClient is the narrow interface the agent drives the underlying MQTT protocol
// library (codec + socket I/O) through. It is implemented outside this
// package - see internal/mqttproto - and is the only thing AgentContext needs of it.
type MqttClient interface {
	// Init prepares the client for use with the given client ID. Until this has been
	// called, GetPacketId must return 0 and every producer entry point must refuse to
	// enqueue.
	Init(clientID string) error

	// Initialized reports whether Init has been called.
	Initialized() bool

	// Connect blocks until CONNACK is received or args.TimeoutMs elapses, returning
	// CONNACK's session-present flag (dispatchConnect stores it in args.SessionPresent).
	Connect(args *ConnectArgs) (sessionPresent bool, err error)

	// Publish sends a PUBLISH. If info.QoS > 0 and info.PacketID is 0 it allocates a
	// fresh packet ID (the one GetPacketId reported) and stores it in info.PacketID.
	Publish(info *PublishInfo) error

	// Subscribe sends a SUBSCRIBE, assigning and returning a fresh packet ID.
	Subscribe(args *SubscribeArgs) (packetID int, err error)

	// Unsubscribe sends an UNSUBSCRIBE, assigning and returning a fresh packet ID.
	Unsubscribe(args *SubscribeArgs) (packetID int, err error)

	// Disconnect sends DISCONNECT.
	Disconnect() error

	// Ping sends PINGREQ.
	Ping() error

	// ProcessLoop drives one non-blocking pass of the protocol machine: it reads
	// whatever transport bytes are available (never blocking - timeoutMs is advisory
	// to the underlying read, the agent always calls this with 0), invokes the event
	// callback for each deserialized inbound packet, and reports whether at least one
	// packet was received so the caller knows whether to call again.
	ProcessLoop(timeoutMs int) (packetReceived bool, err error)

	// GetPacketId returns the next packet ID that a subsequent Publish/Subscribe/
	// Unsubscribe call would assign, without allocating it. Returns 0 if uninitialized.
	GetPacketId() int

	// PublishToResend returns a cursor over the QoS>=1 publishes this client still
	// considers in flight, in the order they were originally sent.
	PublishToResend() ResendCursor

	// Connected reports whether the client believes it currently holds an open
	// connection to a broker.
	Connected() bool

	// SetEventCallback installs the function the client invokes for every
	// deserialized inbound packet while inside ProcessLoop.
	SetEventCallback(cb EventCallback)
}

// InboundPacket is what the MqttClient hands to the agent's event callback for each
// deserialized inbound packet.
type InboundPacket struct {
	// Type is the control packet type (upper nibble of the fixed header).
	Type int
	// PacketID is 0 if the packet type carries none.
	PacketID int
	// Body is the packet's remaining data, for packet types that need further
	// decoding (PUBLISH payload, SUBACK return codes).
	Body []byte
	// Topic and Payload are populated for PUBLISH packets only.
	Topic   string
	Payload []byte
	QoS     int
	Retain  bool
	Dup     bool
}

// EventCallback is invoked by the MqttClient from inside ProcessLoop for every
// deserialized inbound packet - this is the InboundDispatcher.
type EventCallback func(pkt InboundPacket)

// ResendCursor walks a MqttClient's set of QoS>=1 publishes awaiting acknowledgment,
// oldest first, once per ResumeSession call.
type ResendCursor interface {
	// Advance returns the next (packetID, info) pair, or ok=false when exhausted.
	Advance() (packetID int, info *PublishInfo, ok bool)
}
