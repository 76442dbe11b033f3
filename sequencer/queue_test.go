package sequencer

import "testing"

func TestCommandQueuePushDrainFIFO(t *testing.T) {
	q := NewCommandQueue(4)
	q.Push(ControlCommand{Kind: CmdSetTempo, Value: 120})
	q.Push(ControlCommand{Kind: CmdSetTempo, Value: 130})

	var got []float64
	q.Drain(func(c ControlCommand) { got = append(got, c.Value) })
	if len(got) != 2 || got[0] != 120 || got[1] != 130 {
		t.Fatalf("expected FIFO order [120 130], got %v", got)
	}
}

func TestCommandQueueRoundsCapacityToPowerOfTwo(t *testing.T) {
	q := NewCommandQueue(3)
	if len(q.buf) != 4 {
		t.Fatalf("expected capacity 3 to round up to 4, got %d", len(q.buf))
	}
}

func TestCommandQueuePushFailsWhenFull(t *testing.T) {
	q := NewCommandQueue(2)
	if !q.Push(ControlCommand{}) {
		t.Fatal("first push into a 2-slot queue should succeed")
	}
	if !q.Push(ControlCommand{}) {
		t.Fatal("second push into a 2-slot queue should succeed")
	}
	if q.Push(ControlCommand{}) {
		t.Fatal("push into a full queue should fail rather than block or overwrite")
	}
}

func TestCommandQueueDrainEmptiesQueue(t *testing.T) {
	q := NewCommandQueue(4)
	q.Push(ControlCommand{Kind: CmdTransportStart})
	q.Drain(func(ControlCommand) {})

	calls := 0
	q.Drain(func(ControlCommand) { calls++ })
	if calls != 0 {
		t.Fatal("a second Drain with nothing pushed since should call fn zero times")
	}
}

func TestCommandQueuePushAfterDrainReusesSlots(t *testing.T) {
	q := NewCommandQueue(2)
	q.Push(ControlCommand{Kind: CmdTransportStart})
	q.Push(ControlCommand{Kind: CmdTransportStop})
	q.Drain(func(ControlCommand) {})

	if !q.Push(ControlCommand{Kind: CmdTransportStart}) {
		t.Fatal("push should succeed again after a drain frees slots")
	}
}
