package agent

import (
	"testing"

	"github.com/hlindberg/agentmq/internal/testutils"
)

func TestPendingAckTableInsertRejectsDuplicatePacketID(t *testing.T) {
	table := newPendingAckTable(2)
	testutils.CheckTrue(table.insert(1, &Command{}), t)
	testutils.CheckFalse(table.insert(1, &Command{}), t)
}

func TestPendingAckTableInsertRejectsZeroPacketID(t *testing.T) {
	table := newPendingAckTable(2)
	testutils.CheckFalse(table.insert(0, &Command{}), t)
}

func TestPendingAckTableFullReturnsFalse(t *testing.T) {
	table := newPendingAckTable(1)
	testutils.CheckTrue(table.insert(1, &Command{}), t)
	testutils.CheckFalse(table.insert(2, &Command{}), t)
	testutils.CheckFalse(table.hasFreeSlot(), t)
}

func TestPendingAckTableFindAndTake(t *testing.T) {
	table := newPendingAckTable(2)
	cmd := &Command{}
	table.insert(42, cmd)

	index := table.find(42)
	testutils.CheckFalse(index == -1, t)
	testutils.CheckEqual(-1, table.find(0), t)
	testutils.CheckEqual(-1, table.find(99), t)

	taken := table.take(index)
	if taken != cmd {
		t.Fatalf("expected take to return the original command")
	}
	testutils.CheckTrue(table.hasFreeSlot(), t)
	testutils.CheckEqual(-1, table.find(42), t)
}

func TestPendingAckTableDrainCompletesEveryOccupiedSlot(t *testing.T) {
	table := newPendingAckTable(4)
	messaging := NewBoundedMessaging(4, 4)

	var results []Status
	for i := 1; i <= 3; i++ {
		cmd, ok := messaging.AcquireCommand(0)
		testutils.CheckTrue(ok, t)
		idx := i
		cmd.Completion = func(_ interface{}, result CompletionResult) {
			results = append(results, result.Status)
			_ = idx
		}
		table.insert(i, cmd)
	}

	table.drain(messaging, StatusBadResponse)

	testutils.CheckEqual(3, len(results), t)
	for _, status := range results {
		testutils.CheckEqual(StatusBadResponse, status, t)
	}
	testutils.CheckFalse(table.find(1) != -1, t)
}
