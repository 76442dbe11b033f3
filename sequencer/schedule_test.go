package sequencer

import "testing"

func TestScheduleInsertKeepsFrameOrder(t *testing.T) {
	s := NewSchedule()
	s.Insert(10, StatusNoteOn, 60, 100)
	s.Insert(5, StatusNoteOn, 61, 100)
	s.Insert(10, StatusNoteOn, 62, 100)

	var got []ScheduledMessage
	s.DrainThrough(0, 100, func(frame uint64, status, v1, v2 byte) bool {
		got = append(got, ScheduledMessage{Frame: frame, Status: status, Value1: v1, Value2: v2})
		return true
	})
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0].Value1 != 61 {
		t.Fatalf("earliest frame should drain first, got value1=%d", got[0].Value1)
	}
	if got[1].Value1 != 60 || got[2].Value1 != 62 {
		t.Fatal("equal-frame entries should drain in insertion order")
	}
}

func TestScheduleDrainThroughStopsAtCycleEnd(t *testing.T) {
	s := NewSchedule()
	s.Insert(5, StatusNoteOn, 60, 100)
	s.Insert(50, StatusNoteOn, 61, 100)

	var got []byte
	s.DrainThrough(0, 10, func(frame uint64, status, v1, v2 byte) bool {
		got = append(got, v1)
		return true
	})
	if len(got) != 1 || got[0] != 60 {
		t.Fatalf("only the entry before cycleEnd should drain, got %v", got)
	}
	if s.Len() != 1 {
		t.Fatalf("the entry past cycleEnd should remain queued, got len=%d", s.Len())
	}
}

func TestScheduleDrainThroughLateEventGetsNearestFreeOffset(t *testing.T) {
	s := NewSchedule()
	s.Insert(5, StatusNoteOn, 60, 100)
	s.Insert(5, StatusNoteOn, 61, 100)

	var frames []uint64
	s.DrainThrough(10, 100, func(frame uint64, status, v1, v2 byte) bool {
		frames = append(frames, frame)
		return true
	})
	if len(frames) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(frames))
	}
	if frames[0] != 10 {
		t.Fatalf("a late event should emit at now, got %d", frames[0])
	}
	if frames[1] != 11 {
		t.Fatalf("a second late event at the same frame should get the next free offset, got %d", frames[1])
	}
}

func TestScheduleDrainThroughStopsOnBufferFull(t *testing.T) {
	s := NewSchedule()
	s.Insert(1, StatusNoteOn, 60, 100)
	s.Insert(2, StatusNoteOn, 61, 100)

	calls := 0
	s.DrainThrough(0, 100, func(frame uint64, status, v1, v2 byte) bool {
		calls++
		return false
	})
	if calls != 1 {
		t.Fatalf("expected exactly one sink call before halting, got %d", calls)
	}
	if s.Len() != 2 {
		t.Fatalf("a buffer-full halt must leave every remaining entry queued, got len=%d", s.Len())
	}
}

func TestScheduleFlushChannelTracksActiveNotes(t *testing.T) {
	s := NewSchedule()
	s.Insert(0, StatusNoteOn|3, 60, 100)
	s.Insert(0, StatusNoteOn|3, 61, 100)
	s.Insert(0, StatusNoteOff|3, 60, 0)

	s.DrainThrough(0, 10, func(frame uint64, status, v1, v2 byte) bool { return true })

	notes := s.FlushChannel(3)
	if len(notes) != 1 || notes[0] != 61 {
		t.Fatalf("expected only note 61 still sounding on channel 3, got %v", notes)
	}
	if more := s.FlushChannel(3); len(more) != 0 {
		t.Fatal("FlushChannel should clear its record")
	}
}
