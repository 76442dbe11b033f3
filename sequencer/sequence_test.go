package sequencer

import "testing"

func newTestPatternWithNote(clocksLong uint32, note uint8, durationSteps float64) (*Pattern, uint32) {
	stepsPerBeat := uint32(4)
	beats := clocksLong / ClocksPerBeat
	if beats == 0 {
		beats = 1
	}
	p := NewPattern(beats, stepsPerBeat)
	p.AddNote(0, note, 100, durationSteps)
	return p, clocksLong
}

func TestSequenceAddPatternRejectsOverlap(t *testing.T) {
	s := NewSequence()
	if !s.AddPattern(0, 1, 24, false) {
		t.Fatal("first placement should succeed")
	}
	if s.AddPattern(12, 2, 24, false) {
		t.Fatal("overlapping placement without force should be rejected")
	}
	if !s.AddPattern(24, 2, 24, false) {
		t.Fatal("adjacent, non-overlapping placement should succeed")
	}
}

func TestSequenceAddPatternForceEvicts(t *testing.T) {
	s := NewSequence()
	s.AddPattern(0, 1, 24, false)
	if !s.AddPattern(12, 2, 24, true) {
		t.Fatal("force should evict the conflicting placement")
	}
	if len(s.Placements()) != 1 {
		t.Fatalf("expected exactly 1 placement after forced eviction, got %d", len(s.Placements()))
	}
	if s.Placements()[0].Pattern != 2 {
		t.Fatal("the surviving placement should be the new one")
	}
}

func TestSequenceClockTickStoppedEmitsNothing(t *testing.T) {
	s := NewSequence()
	pattern, _ := newTestPatternWithNote(24, 60, 1)
	s.AddPattern(0, 1, pattern.Length(), false)
	getPattern := func(PatternHandle) *Pattern { return pattern }
	if events := s.ClockTick(0, false, getPattern); events != nil {
		t.Fatalf("a stopped sequence must emit nothing, got %v", events)
	}
}

func TestSequenceClockTickLoopModeStartsImmediately(t *testing.T) {
	s := NewSequence()
	s.PlayModeVal = ModeLoop
	s.State = StateStarting
	pattern, length := newTestPatternWithNote(24, 60, 1)
	s.AddPattern(0, 1, length, false)
	getPattern := func(PatternHandle) *Pattern { return pattern }

	events := s.ClockTick(0, false, getPattern)
	if s.State != StatePlaying {
		t.Fatalf("LOOP mode should start immediately off a sync pulse, state=%v", s.State)
	}
	if len(events) != 1 || !events[0].IsNoteOn {
		t.Fatalf("expected one note-on at step 0, got %v", events)
	}
}

func TestSequenceClockTickAllModeWaitsForSyncPulse(t *testing.T) {
	s := NewSequence()
	s.PlayModeVal = ModeLoopAll
	s.State = StateStarting
	pattern, length := newTestPatternWithNote(24, 60, 1)
	s.AddPattern(0, 1, length, false)
	getPattern := func(PatternHandle) *Pattern { return pattern }

	if events := s.ClockTick(0, false, getPattern); events != nil {
		t.Fatalf("ALL mode must not start off a non-sync pulse, got %v", events)
	}
	if s.State != StateStarting {
		t.Fatalf("state should remain Starting until a sync pulse, got %v", s.State)
	}

	events := s.ClockTick(0, true, getPattern)
	if s.State != StatePlaying {
		t.Fatal("ALL mode should start on the next sync pulse")
	}
	if len(events) != 1 {
		t.Fatalf("expected emission once started, got %v", events)
	}
}

func TestSequenceClockTickAllModeStartsAtStepZeroOffBarBoundary(t *testing.T) {
	s := NewSequence()
	s.PlayModeVal = ModeLoopAll
	s.State = StateStarting
	pattern, length := newTestPatternWithNote(24, 60, 1)
	s.AddPattern(0, 1, length, false)
	getPattern := func(PatternHandle) *Pattern { return pattern }

	// length is 24 clocks; starting the sync pulse at clock 50 does not
	// divide evenly by length, so a start position derived from the raw
	// song clock would land mid-pattern instead of at step 0.
	events := s.ClockTick(50, true, getPattern)
	if s.State != StatePlaying {
		t.Fatal("ALL mode should start on a sync pulse")
	}
	if len(events) != 1 || !events[0].IsNoteOn {
		t.Fatalf("expected the step-0 note-on regardless of the song clock at start, got %v", events)
	}
}

func TestSequenceClockTickOnlyFiresOnStepBoundary(t *testing.T) {
	s := NewSequence()
	s.PlayModeVal = ModeLoop
	s.State = StatePlaying
	pattern, length := newTestPatternWithNote(24, 60, 1)
	s.AddPattern(0, 1, length, false)
	getPattern := func(PatternHandle) *Pattern { return pattern }

	// clocksPerStep = 24/4 = 6; clock 3 is mid-step, must emit nothing.
	if events := s.ClockTick(3, false, getPattern); events != nil {
		t.Fatalf("a clock pulse inside a step boundary must not emit, got %v", events)
	}
	// clock 6 is the next step boundary (step 1, empty in this pattern).
	if events := s.ClockTick(6, false, getPattern); events != nil {
		t.Fatalf("an empty step boundary should emit nothing, got %v", events)
	}
}

func TestSequenceClockTickOneshotStopsAtEnd(t *testing.T) {
	s := NewSequence()
	s.PlayModeVal = ModeOneshot
	s.State = StatePlaying
	pattern, length := newTestPatternWithNote(24, 60, 1)
	s.AddPattern(0, 1, length, false)
	getPattern := func(PatternHandle) *Pattern { return pattern }

	s.ClockTick(length-1, false, getPattern)
	if s.State != StatePlaying {
		t.Fatal("oneshot should still be playing just before its end")
	}
	s.ClockTick(length, false, getPattern)
	if s.State != StateStopped {
		t.Fatal("oneshot should stop once its clock reaches the sequence length")
	}
}

func TestSequenceTriggerCycles(t *testing.T) {
	s := NewSequence()
	if st := s.Trigger(); st != StateStarting {
		t.Fatalf("trigger from Stopped should move to Starting, got %v", st)
	}
	if st := s.Trigger(); st != StateStopping {
		t.Fatalf("trigger while Starting should move to Stopping, got %v", st)
	}
	if st := s.Trigger(); st != StateStarting {
		t.Fatalf("trigger while Stopping should move to Starting, got %v", st)
	}
}

func TestSequenceSetChannelMaskRequiresSingleBit(t *testing.T) {
	s := NewSequence()
	if s.SetChannelMask(0) {
		t.Fatal("mask of 0 should be rejected")
	}
	if s.SetChannelMask(0b11) {
		t.Fatal("mask with more than one bit should be rejected")
	}
	if !s.SetChannelMask(1 << 5) {
		t.Fatal("mask with exactly one bit should be accepted")
	}
	if s.Channel != 5 {
		t.Fatalf("expected channel 5, got %d", s.Channel)
	}
}
