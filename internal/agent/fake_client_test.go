package agent

import (
	"fmt"
	"sync"
)

// fakeMqttClient is a scriptable MqttClient test double standing in for
// internal/mqttproto.Client. Every method records what was asked of it so tests can
// assert on outbound traffic. Inbound traffic is queued with push and delivered the
// same way the real client would: only from inside ProcessLoop, so it is always the
// agent thread invoking the event callback, never the test goroutine directly.
type fakeMqttClient struct {
	initialized bool
	connected   bool
	nextPacket  int

	publishes    []PublishInfo
	subscribes   []SubscribeArgs
	unsubscribes []SubscribeArgs
	pings        int
	disconnects  int

	connectErr     error
	sessionPresent bool

	eventCb EventCallback

	resend []fakeResendEntry

	failPublish bool

	// autoAck, when set, makes Publish/Subscribe/Unsubscribe immediately queue the
	// matching acknowledgment, as if a broker answered right away - this is what lets
	// tests exercise the pending-ack round trip deterministically without a real
	// network.
	autoAck bool

	inboxMu sync.Mutex
	inbox   []InboundPacket
}

type fakeResendEntry struct {
	packetID int
	info     PublishInfo
}

func (f *fakeMqttClient) Init(clientID string) error {
	f.initialized = true
	return nil
}

func (f *fakeMqttClient) Initialized() bool { return f.initialized }

func (f *fakeMqttClient) Connect(args *ConnectArgs) (bool, error) {
	if f.connectErr != nil {
		return false, f.connectErr
	}
	f.connected = true
	return f.sessionPresent, nil
}

func (f *fakeMqttClient) Publish(info *PublishInfo) error {
	if f.failPublish {
		return fmt.Errorf("fake publish failure")
	}
	if info.QoS > 0 && info.PacketID == 0 {
		f.nextPacket++
		info.PacketID = f.nextPacket
	}
	f.publishes = append(f.publishes, *info)
	if f.autoAck && info.QoS == 1 {
		f.push(InboundPacket{Type: inboundPubAck, PacketID: info.PacketID})
	}
	if f.autoAck && info.QoS == 2 {
		f.push(InboundPacket{Type: inboundPubComp, PacketID: info.PacketID})
	}
	return nil
}

func (f *fakeMqttClient) Subscribe(args *SubscribeArgs) (int, error) {
	f.nextPacket++
	f.subscribes = append(f.subscribes, *args)
	id := f.nextPacket
	if f.autoAck {
		codes := make([]byte, len(args.Filters))
		for i, filter := range args.Filters {
			codes[i] = byte(filter.QoS)
		}
		f.push(InboundPacket{Type: inboundSubAck, PacketID: id, Body: codes})
	}
	return id, nil
}

func (f *fakeMqttClient) Unsubscribe(args *SubscribeArgs) (int, error) {
	f.nextPacket++
	f.unsubscribes = append(f.unsubscribes, *args)
	id := f.nextPacket
	if f.autoAck {
		f.push(InboundPacket{Type: inboundUnsubAck, PacketID: id})
	}
	return id, nil
}

func (f *fakeMqttClient) Disconnect() error {
	f.disconnects++
	f.connected = false
	return nil
}

func (f *fakeMqttClient) Ping() error {
	f.pings++
	return nil
}

// ProcessLoop pops and delivers one queued inbound packet per call, mirroring the real
// client's "at most one packet per call" contract.
func (f *fakeMqttClient) ProcessLoop(timeoutMs int) (bool, error) {
	f.inboxMu.Lock()
	if len(f.inbox) == 0 {
		f.inboxMu.Unlock()
		return false, nil
	}
	pkt := f.inbox[0]
	f.inbox = f.inbox[1:]
	f.inboxMu.Unlock()

	if f.eventCb != nil {
		f.eventCb(pkt)
	}
	return true, nil
}

// push queues an inbound packet for a future ProcessLoop call to deliver. Safe to call
// from any goroutine.
func (f *fakeMqttClient) push(pkt InboundPacket) {
	f.inboxMu.Lock()
	f.inbox = append(f.inbox, pkt)
	f.inboxMu.Unlock()
}

func (f *fakeMqttClient) GetPacketId() int {
	if !f.initialized {
		return 0
	}
	return f.nextPacket + 1
}

func (f *fakeMqttClient) PublishToResend() ResendCursor {
	return &fakeResendCursor{entries: f.resend}
}

func (f *fakeMqttClient) Connected() bool { return f.connected }

func (f *fakeMqttClient) SetEventCallback(cb EventCallback) {
	f.eventCb = cb
}

type fakeResendCursor struct {
	entries []fakeResendEntry
	pos     int
}

func (c *fakeResendCursor) Advance() (int, *PublishInfo, bool) {
	if c.pos >= len(c.entries) {
		return 0, nil, false
	}
	entry := c.entries[c.pos]
	c.pos++
	return entry.packetID, &entry.info, true
}
