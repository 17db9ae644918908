package agent

import log "github.com/sirupsen/logrus"

// pendingAckSlot is one entry of the fixed-size pending-ack table.
// packetID == 0 marks the slot free; it is never assigned as a real packet ID by the
// MqttClient, so it can double as the empty sentinel.
type pendingAckSlot struct {
	packetID int
	command  *Command
}

// pendingAckTable is the fixed-capacity {packet_id, command} table the agent matches
// inbound acknowledgments against. Only ever touched by the agent
// thread - no locking.
type pendingAckTable struct {
	slots []pendingAckSlot
}

func newPendingAckTable(capacity int) *pendingAckTable {
	return &pendingAckTable{slots: make([]pendingAckSlot, capacity)}
}

// insert places command under packetID in the first empty slot. Returns false if the
// table is full or packetID is already in use (the dispatch table must not call this
// with a duplicate non-zero packet ID - that would violate packet id uniqueness).
func (t *pendingAckTable) insert(packetID int, command *Command) bool {
	if packetID == 0 {
		return false
	}
	firstFree := -1
	for i := range t.slots {
		if t.slots[i].packetID == packetID {
			return false
		}
		if firstFree == -1 && t.slots[i].packetID == 0 {
			firstFree = i
		}
	}
	if firstFree == -1 {
		return false
	}
	t.slots[firstFree] = pendingAckSlot{packetID: packetID, command: command}
	return true
}

// find returns the slot index holding packetID, or -1 if there is no match. A lookup
// for packetID == 0 always misses.
func (t *pendingAckTable) find(packetID int) int {
	if packetID == 0 {
		return -1
	}
	for i := range t.slots {
		if t.slots[i].packetID == packetID {
			return i
		}
	}
	return -1
}

// take clears the slot at index and returns the command that was there.
func (t *pendingAckTable) take(index int) *Command {
	cmd := t.slots[index].command
	t.slots[index] = pendingAckSlot{}
	return cmd
}

// hasFreeSlot performs a best-effort, racy check for whether the table currently has
// room for one more entry. It is only ever used by the producer API's synchronous
// pre-check - the agent thread's insert is the authoritative check.
func (t *pendingAckTable) hasFreeSlot() bool {
	for i := range t.slots {
		if t.slots[i].packetID == 0 {
			return true
		}
	}
	return false
}

// each yields every occupied slot's (packetID, command) without clearing it.
func (t *pendingAckTable) each(fn func(packetID int, command *Command)) {
	for i := range t.slots {
		if t.slots[i].packetID != 0 {
			fn(t.slots[i].packetID, t.slots[i].command)
		}
	}
}

// drain iterates every occupied slot, invoking each command's completion with
// withStatus, clearing the slot, and releasing the command.
func (t *pendingAckTable) drain(messaging MessagingInterface, withStatus Status) {
	for i := range t.slots {
		if t.slots[i].packetID == 0 {
			continue
		}
		packetID, cmd := t.slots[i].packetID, t.slots[i].command
		t.slots[i] = pendingAckSlot{}
		log.Debugf("pendingAckTable.drain: releasing packet id %d (command %s) with status %s", packetID, cmd.ID, withStatus)
		completeCommand(cmd, CompletionResult{Status: withStatus})
		messaging.ReleaseCommand(cmd)
	}
}
