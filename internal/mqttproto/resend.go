package mqttproto

import (
	"github.com/hlindberg/agentmq/internal/wire"
)

// resendEntry is one node in the ordered list of QoS>=1 publishes this client holds
// onto until the matching PUBACK/PUBCOMP releases it. Adapted from the teacher's
// waitingPacket / waitingPacketList (internal/mqtt/in_flight.go) - same doubly linked
// list shape, now holding a *wire.PublishRequest instead of a generic MessageWriter
// since this package only ever stores PUBLISH requests here.
type resendEntry struct {
	packetID int
	request  *wire.PublishRequest
	next     *resendEntry
	prev     *resendEntry
}

// resendList is an ordered (oldest first) collection of in-flight publishes, indexed by
// packet ID for O(1) replace/remove. Only touched from the agent thread.
type resendList struct {
	front *resendEntry
	back  *resendEntry
	byID  map[int]*resendEntry
}

func newResendList() *resendList {
	return &resendList{byID: make(map[int]*resendEntry)}
}

// register records a newly sent QoS>=1 publish as awaiting acknowledgment. If packetID
// is already registered - the resend path reissuing the same id after ResumeSession -
// the retained request is replaced in place rather than appended again, so the ordered
// list never grows a second node for one packet id.
func (l *resendList) register(packetID int, request *wire.PublishRequest) {
	if existing, ok := l.byID[packetID]; ok {
		existing.request = request
		return
	}
	entry := &resendEntry{packetID: packetID, request: request}
	if l.back == nil {
		l.front = entry
		l.back = entry
	} else {
		entry.prev = l.back
		l.back.next = entry
		l.back = entry
	}
	l.byID[packetID] = entry
}

// release drops the packetID from the resend list - used once a PUBACK (QoS 1) or
// PUBCOMP (QoS 2) finally closes it out.
func (l *resendList) release(packetID int) {
	entry, ok := l.byID[packetID]
	if !ok {
		return
	}
	if entry.next == nil {
		l.back = entry.prev
	} else {
		entry.next.prev = entry.prev
	}
	if entry.prev == nil {
		l.front = entry.next
	} else {
		entry.prev.next = entry.next
	}
	entry.next, entry.prev = nil, nil
	delete(l.byID, packetID)
}

// each yields every entry in the order it was registered - the order
// PublishToResend walks when a session is resumed.
func (l *resendList) each(fn func(packetID int, request *wire.PublishRequest)) {
	for e := l.front; e != nil; e = e.next {
		fn(e.packetID, e.request)
	}
}

// resendCursor walks a resendList exactly once, in registration order - this is what
// PublishToResend hands the agent during ResumeSession.
type resendCursor struct {
	next *resendEntry
}

func (l *resendList) cursor() *resendCursor {
	return &resendCursor{next: l.front}
}

// advance returns the next (packetID, request) pair and whether one was available.
func (c *resendCursor) advance() (int, *wire.PublishRequest, bool) {
	if c.next == nil {
		return 0, nil, false
	}
	packetID, request := c.next.packetID, c.next.request
	c.next = c.next.next
	return packetID, request, true
}
