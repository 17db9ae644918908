// Package mqttproto is the MQTT protocol library consumed through the narrow
// agent.MqttClient interface: codec plus socket I/O, packet id
// allocation, and the DUP-pending set ResumeSession drives. None of the command
// queueing, pending-ack matching, or session-resume policy lives here - that is
// internal/agent's job; this package only turns agent.MqttClient calls into bytes on
// a net.Conn and deserialized packets back into agent.InboundPacket values.
package mqttproto

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/hlindberg/agentmq/internal/agent"
	"github.com/hlindberg/agentmq/internal/auth"
	"github.com/hlindberg/agentmq/internal/wire"
)

// connAckReadTimeout is the write and CONNACK read deadline Connect uses when
// ConnectArgs.TimeoutMs is not positive; otherwise TimeoutMs bounds both, covering the
// whole 4 byte CONNACK.
const connAckReadTimeout = 5 * time.Second

// packetReadTimeout bounds how long ProcessLoop waits to finish reading a packet's
// remaining-length and body once its fixed header byte has already arrived. The
// caller-supplied timeoutMs only governs waiting for that first byte.
const packetReadTimeout = 5 * time.Second

// Client adapts a net.Conn plus the wire package's message builders into an
// agent.MqttClient. It is driven entirely from the agent thread (per the
// agent.MqttClient contract) and keeps no locks of its own.
type Client struct {
	conn        net.Conn
	clientID    string
	initialized bool
	connected   bool
	packetIDs   *packetIDAllocator
	resend      *resendList
	eventCb     agent.EventCallback
}

// NewClient wraps an already-dialed net.Conn. The caller is responsible for dialing
// (and, for TLS, handshaking) - this package only speaks MQTT over whatever net.Conn
// it is given.
func NewClient(conn net.Conn) *Client {
	return &Client{
		conn:      conn,
		packetIDs: newPacketIDAllocator(),
		resend:    newResendList(),
	}
}

// Init prepares the client for use with the given client ID.
func (c *Client) Init(clientID string) error {
	c.clientID = clientID
	c.initialized = true
	return nil
}

// Initialized reports whether Init has been called.
func (c *Client) Initialized() bool {
	return c.initialized
}

// Connected reports whether the client believes it currently holds an open connection.
func (c *Client) Connected() bool {
	return c.connected
}

// SetEventCallback installs the function invoked for every deserialized inbound packet.
func (c *Client) SetEventCallback(cb agent.EventCallback) {
	c.eventCb = cb
}

// GetPacketId returns the next packet ID a subsequent Publish/Subscribe/Unsubscribe
// would assign, without allocating it. Returns 0 if uninitialized.
func (c *Client) GetPacketId() int {
	if !c.initialized {
		return 0
	}
	return c.packetIDs.peek()
}

// Connect blocks until CONNACK is received or args.TimeoutMs elapses.
func (c *Client) Connect(args *agent.ConnectArgs) (sessionPresent bool, err error) {
	if args.ClientID != "" {
		c.clientID = args.ClientID
	}
	userName, password, err := c.connectCredentials(args)
	if err != nil {
		return false, err
	}

	options := []wire.ConnectOption{
		wire.ClientName(c.clientID),
		wire.CleanSession(args.CleanSession),
		wire.KeepAliveSeconds(args.KeepAliveSeconds),
	}
	if args.WillTopic != "" {
		options = append(options,
			wire.WillTopic(args.WillTopic),
			wire.WillMessage(args.WillMessage),
			wire.WillQoS(args.WillQoS),
			wire.WillRetain(args.WillRetain),
		)
	}
	if userName != "" {
		options = append(options, wire.UserName(userName))
	}
	if password != nil {
		options = append(options, wire.Password(password))
	}

	request := wire.NewConnectRequest(options...)

	timeout := time.Duration(args.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = connAckReadTimeout
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return false, err
	}
	log.Debugf("Broker <- CONNECT(%s)", c.clientID)
	if _, err := request.WriteTo(c.conn); err != nil {
		return false, err
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return false, err
	}
	response := make([]byte, 4)
	if _, err := io.ReadFull(c.conn, response); err != nil {
		return false, err
	}
	if response[0] != wire.ConnAckType<<4 {
		return false, fmt.Errorf("mqttproto: expected CONNACK, got control type %d", response[0]>>4)
	}
	if response[1] != 2 {
		return false, fmt.Errorf("mqttproto: expected CONNACK remaining length 2, got %d", response[1])
	}
	if response[3] != wire.ConnectionAccepted {
		return false, fmt.Errorf("mqttproto: broker refused connection, return code %d", response[3])
	}

	sessionPresent = response[2]&1 == 1
	c.connected = true
	log.Debugf("Broker -> CONNACK(sp=%v) received ok", sessionPresent)
	return sessionPresent, nil
}

// connectCredentials resolves the username/password CONNECT should carry: a signed
// JWT when args.AuthClaims is set, the plain fields otherwise.
func (c *Client) connectCredentials(args *agent.ConnectArgs) (userName string, password []byte, err error) {
	if args.AuthClaims == nil {
		return args.UserName, args.Password, nil
	}
	token, err := auth.Sign(*args.AuthClaims)
	if err != nil {
		return "", nil, fmt.Errorf("mqttproto: signing auth claims: %w", err)
	}
	userName = args.UserName
	if userName == "" {
		userName = args.AuthClaims.Subject
	}
	return userName, []byte(token), nil
}

// Publish sends a PUBLISH. If info.QoS > 0 and no packet id has been assigned yet, one
// is allocated here and the request is registered in the resend list.
func (c *Client) Publish(info *agent.PublishInfo) error {
	if info.QoS > 0 && info.PacketID == 0 {
		id := c.packetIDs.next()
		if id == 0 {
			return fmt.Errorf("mqttproto: no packet ids available")
		}
		info.PacketID = id
	}
	request := wire.NewPublishRequest(
		wire.Topic(info.Topic),
		wire.Message(info.Message),
		wire.QoS(info.QoS),
		wire.Retain(info.Retain),
		wire.IsDuplicate(info.IsDuplicate),
		wire.PacketID(info.PacketID),
	)
	if info.QoS > 0 {
		c.resend.register(info.PacketID, request)
	}
	_, err := request.MakeMessage().WriteTo(c.conn)
	return err
}

// Subscribe sends a SUBSCRIBE, assigning and returning a fresh packet ID.
func (c *Client) Subscribe(args *agent.SubscribeArgs) (packetID int, err error) {
	id := c.packetIDs.next()
	if id == 0 {
		return 0, fmt.Errorf("mqttproto: no packet ids available")
	}
	filters := make([]wire.TopicFilter, len(args.Filters))
	for i, f := range args.Filters {
		filters[i] = wire.TopicFilter{Topic: f.Topic, QoS: f.QoS}
	}
	request := wire.NewSubscribeRequest(wire.Filters(filters...), wire.SubscribePacketID(id))
	if _, err := request.MakeMessage().WriteTo(c.conn); err != nil {
		c.packetIDs.release(id)
		return 0, err
	}
	return id, nil
}

// Unsubscribe sends an UNSUBSCRIBE, assigning and returning a fresh packet ID.
func (c *Client) Unsubscribe(args *agent.SubscribeArgs) (packetID int, err error) {
	id := c.packetIDs.next()
	if id == 0 {
		return 0, fmt.Errorf("mqttproto: no packet ids available")
	}
	topics := make([]string, len(args.Filters))
	for i, f := range args.Filters {
		topics[i] = f.Topic
	}
	request := wire.NewUnsubscribeRequest(wire.Topics(topics...), wire.UnsubscribePacketID(id))
	if _, err := request.MakeMessage().WriteTo(c.conn); err != nil {
		c.packetIDs.release(id)
		return 0, err
	}
	return id, nil
}

// Disconnect sends DISCONNECT.
func (c *Client) Disconnect() error {
	_, err := wire.NewDisconnectMessage().WriteTo(c.conn)
	c.connected = false
	return err
}

// Ping sends PINGREQ.
func (c *Client) Ping() error {
	_, err := wire.NewPingReqMessage().WriteTo(c.conn)
	return err
}

// PublishToResend returns a cursor over the QoS>=1 publishes this client still
// considers in flight, in the order they were originally sent.
func (c *Client) PublishToResend() agent.ResendCursor {
	return &resendCursorAdapter{cursor: c.resend.cursor()}
}

// ProcessLoop drives one non-blocking pass of the protocol machine.
// timeoutMs bounds only the wait for a packet's first byte; a timeoutMs of 0 waits at
// most one millisecond, because a net.Conn read whose deadline has already passed
// fails without returning bytes that are already buffered. Once a fixed header byte
// has arrived the rest of that packet is read with a short internal timeout, since a
// broker that starts a packet is expected to finish it promptly.
func (c *Client) ProcessLoop(timeoutMs int) (packetReceived bool, err error) {
	wait := time.Millisecond
	if timeoutMs > 0 {
		wait = time.Duration(timeoutMs) * time.Millisecond
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		return false, err
	}

	header := make([]byte, 1)
	_, err = io.ReadFull(c.conn, header)
	if err != nil {
		if isTimeout(err) {
			return false, nil
		}
		if err == io.EOF {
			c.connected = false
		}
		return false, err
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(packetReadTimeout)); err != nil {
		return false, err
	}
	remainingLength, err := wire.DecodeVariableInt(c.conn)
	if err != nil {
		return false, err
	}
	body := make([]byte, remainingLength)
	if remainingLength > 0 {
		if _, err := io.ReadFull(c.conn, body); err != nil {
			return false, err
		}
	}

	pkt, err := c.handleInbound(header[0], body)
	if err != nil {
		return false, err
	}
	if c.eventCb != nil {
		c.eventCb(pkt)
	}
	return true, nil
}

// handleInbound turns a fixed header byte plus body into an agent.InboundPacket,
// performing whatever client-internal bookkeeping the packet type requires (freeing
// packet ids, advancing the QoS 2 handshake) before handing it to the event callback
//.
func (c *Client) handleInbound(headerByte byte, body []byte) (agent.InboundPacket, error) {
	msgType := int(headerByte >> 4)
	pkt := agent.InboundPacket{Type: msgType, Body: body}

	switch msgType {
	case wire.PublishType:
		return c.decodeInboundPublish(headerByte, body)

	case wire.PublishAckType:
		packetID, err := wire.DecodePacketIDBody(body)
		if err != nil {
			return pkt, err
		}
		c.resend.release(packetID)
		c.packetIDs.release(packetID)
		pkt.PacketID = packetID

	case wire.PublishReceivedType:
		// QoS 2 step 1: reply with PUBREL here and keep waiting for PUBCOMP. The
		// event callback still sees the PUBREC, but the agent's InboundDispatcher
		// treats it as a no-op - only PUBCOMP completes
		// the waiting command.
		packetID, err := wire.DecodePacketIDBody(body)
		if err != nil {
			return pkt, err
		}
		if err := c.sendPubrel(packetID); err != nil {
			return pkt, err
		}

	case wire.PublishCompleteType:
		packetID, err := wire.DecodePacketIDBody(body)
		if err != nil {
			return pkt, err
		}
		c.resend.release(packetID)
		c.packetIDs.release(packetID)
		pkt.PacketID = packetID

	case wire.SubAckType:
		packetID, codes, err := wire.DecodeSubAck(body)
		if err != nil {
			return pkt, err
		}
		c.packetIDs.release(packetID)
		pkt.PacketID = packetID
		pkt.Body = codes

	case wire.UnsubAckType:
		packetID, err := wire.DecodeUnsubAck(body)
		if err != nil {
			return pkt, err
		}
		c.packetIDs.release(packetID)
		pkt.PacketID = packetID

	default:
		log.Debugf("mqttproto: inbound packet type %d not separately handled", msgType)
	}

	return pkt, nil
}

func (c *Client) sendPubrel(packetID int) error {
	var body bytes.Buffer
	wire.Encode16BitIntTo(packetID, &body)
	header := byte(wire.PublishReleaseType<<4 | wire.PublishReleaseReserved)
	_, err := c.writeRaw(header, body.Bytes())
	return err
}

func (c *Client) writeRaw(fixedHeader byte, body []byte) (int64, error) {
	var data bytes.Buffer
	data.WriteByte(fixedHeader)
	data.Write(wire.EncodeVariableInt(len(body)))
	data.Write(body)
	return data.WriteTo(c.conn)
}

func (c *Client) decodeInboundPublish(headerByte byte, body []byte) (agent.InboundPacket, error) {
	reader := bytes.NewReader(body)
	topicLen, err := readUint16(reader)
	if err != nil {
		return agent.InboundPacket{Type: wire.PublishType}, err
	}
	topicBytes := make([]byte, topicLen)
	if _, err := io.ReadFull(reader, topicBytes); err != nil {
		return agent.InboundPacket{Type: wire.PublishType}, err
	}

	qos := (int(headerByte) >> 1) & 0x3
	packetID := 0
	if qos > 0 {
		packetID, err = readUint16(reader)
		if err != nil {
			return agent.InboundPacket{Type: wire.PublishType}, err
		}
	}
	payload := make([]byte, reader.Len())
	_, _ = reader.Read(payload)

	return agent.InboundPacket{
		Type:     wire.PublishType,
		PacketID: packetID,
		Body:     body,
		Topic:    string(topicBytes),
		Payload:  payload,
		QoS:      qos,
		Retain:   headerByte&wire.RetainBit != 0,
		Dup:      headerByte&wire.DupBit != 0,
	}, nil
}

func readUint16(r *bytes.Reader) (int, error) {
	hi, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	lo, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	return int(hi)<<8 | int(lo), nil
}

func isTimeout(err error) bool {
	nerr, ok := err.(net.Error)
	return ok && nerr.Timeout()
}

// resendCursorAdapter adapts resendList's package-private cursor to agent.ResendCursor.
type resendCursorAdapter struct {
	cursor *resendCursor
}

func (a *resendCursorAdapter) Advance() (packetID int, info *agent.PublishInfo, ok bool) {
	id, request, ok := a.cursor.advance()
	if !ok {
		return 0, nil, false
	}
	opts := request.Options()
	return id, &agent.PublishInfo{
		Topic:       opts.Topic,
		Message:     opts.Message,
		QoS:         opts.QoS,
		Retain:      opts.Retain,
		IsDuplicate: opts.IsDuplicate,
		PacketID:    opts.PacketID,
	}, true
}
