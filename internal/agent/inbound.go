package agent

import log "github.com/sirupsen/logrus"

// control packet types the InboundDispatcher recognizes. Mirrors internal/wire's
// constants; duplicated here (as plain ints) so this package does not need to import
// wire just to switch on a packet type.
const (
	inboundPublish  = 3
	inboundPubAck   = 4
	inboundPubRec   = 5
	inboundPubRel   = 6
	inboundPubComp  = 7
	inboundSubAck   = 9
	inboundUnsubAck = 11
)

// PublishCallback is the application function invoked for every inbound PUBLISH
//. It runs on the agent thread and must not block.
type PublishCallback func(info PublishInfo)

// SetPublishCallback installs the function invoked for inbound PUBLISH packets.
func (a *AgentContext) SetPublishCallback(cb PublishCallback) {
	a.onPublish = cb
}

// onInboundPacket is the EventCallback the MqttClient invokes, from inside
// ProcessLoop, for every deserialized inbound packet. It is the InboundDispatcher:
// PUBLISH goes to the application callback; PUBACK, PUBCOMP, SUBACK and UNSUBACK are
// matched against the pending-ack table and complete the waiting command; PUBREC and
// PUBREL are ignored here.
func (a *AgentContext) onInboundPacket(pkt InboundPacket) {
	switch pkt.Type {
	case inboundPublish:
		a.dispatchInboundPublish(pkt)
	case inboundPubAck, inboundPubComp:
		a.completePending(pkt.PacketID, CompletionResult{Status: StatusSuccess})
	case inboundPubRec:
		// QoS 2 exactly-once handshake midpoint: PUBREC does not yet complete the
		// command, PUBCOMP does. The underlying MqttClient
		// owns sending PUBREL; the agent only waits for the terminal PUBCOMP.
	case inboundPubRel:
		// Broker-initiated QoS 2 inbound flow; handled inside the MqttClient, nothing
		// for the agent to complete here.
	case inboundSubAck:
		codes := append([]byte(nil), pkt.Body...)
		a.completePending(pkt.PacketID, CompletionResult{Status: StatusSuccess, SubAckCodes: codes})
	case inboundUnsubAck:
		a.completePending(pkt.PacketID, CompletionResult{Status: StatusSuccess})
	default:
		log.WithFields(a.logFields()).Debugf("inbound packet type %d ignored", pkt.Type)
	}
}

func (a *AgentContext) dispatchInboundPublish(pkt InboundPacket) {
	if a.onPublish == nil {
		return
	}
	a.onPublish(PublishInfo{
		Topic:       pkt.Topic,
		Message:     pkt.Payload,
		QoS:         pkt.QoS,
		Retain:      pkt.Retain,
		IsDuplicate: pkt.Dup,
		PacketID:    pkt.PacketID,
	})
}

// completePending looks up packetID in the pending-ack table and, on a hit, completes
// and releases its command. A miss is logged and otherwise ignored - it must never be treated as fatal.
func (a *AgentContext) completePending(packetID int, result CompletionResult) {
	index := a.pendingAcks.find(packetID)
	if index == -1 {
		log.WithFields(a.logFields()).Debugf("ack for unknown packet id %d ignored", packetID)
		return
	}
	cmd := a.pendingAcks.take(index)
	a.completeOnAgentThread(cmd, result)
	a.messaging.ReleaseCommand(cmd)
}
