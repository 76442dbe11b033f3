package sequencer

import "testing"

func TestPatternAddNote(t *testing.T) {
	p := NewPattern(1, 4)
	if !p.AddNote(0, 60, 100, 1) {
		t.Fatal("AddNote should succeed for an in-range step")
	}
	if p.EventCount() != 1 {
		t.Fatalf("expected 1 event, got %d", p.EventCount())
	}
	if p.AddNote(p.Steps(), 60, 100, 1) {
		t.Fatal("AddNote should reject a step at or past Steps()")
	}
	if p.AddNote(0, 128, 100, 1) {
		t.Fatal("AddNote should reject an out-of-range note")
	}
}

func TestPatternAddNoteEvictsOverlap(t *testing.T) {
	p := NewPattern(1, 4)
	p.AddNote(0, 60, 100, 2) // covers steps [0,2)
	if !p.AddNote(1, 60, 80, 1) {
		t.Fatal("AddNote should succeed")
	}
	if p.EventCount() != 1 {
		t.Fatalf("overlapping note-on for the same pitch should evict the old one, got %d events", p.EventCount())
	}
	if v := p.NoteVelocity(1, 60); v != 80 {
		t.Fatalf("expected the new event to survive with velocity 80, got %d", v)
	}
}

func TestPatternAddNoteNoOverlapKeepsBoth(t *testing.T) {
	p := NewPattern(1, 4)
	p.AddNote(0, 60, 100, 1) // [0,1)
	p.AddNote(1, 60, 80, 1)  // [1,2), touches but does not overlap
	if p.EventCount() != 2 {
		t.Fatalf("adjacent non-overlapping notes should both survive, got %d", p.EventCount())
	}
}

func TestPatternNoteStartCoversSustain(t *testing.T) {
	p := NewPattern(1, 4)
	p.AddNote(0, 60, 100, 3)
	start, ok := p.NoteStart(2, 60)
	if !ok || start != 0 {
		t.Fatalf("expected NoteStart(2) to find the sustaining note starting at 0, got start=%d ok=%v", start, ok)
	}
	if _, ok := p.NoteStart(3, 60); ok {
		t.Fatal("NoteStart should not find a note past its sustain window")
	}
}

func TestPatternTransposeAllOrNothing(t *testing.T) {
	p := NewPattern(1, 4)
	p.AddNote(0, 1, 100, 1)
	p.AddNote(1, 125, 100, 1)
	if p.Transpose(5) {
		t.Fatal("Transpose should reject the whole call when any note would leave 0..127")
	}
	if v, ok := p.NoteStart(1, 125); !ok || v != 1 {
		t.Fatal("a rejected Transpose must leave every note untouched")
	}
	if !p.Transpose(2) {
		t.Fatal("Transpose within range should succeed")
	}
	if _, ok := p.NoteStart(0, 3); !ok {
		t.Fatal("Transpose(2) should have moved note 1 to note 3")
	}
}

func TestPatternSetStepsPerBeatRescales(t *testing.T) {
	p := NewPattern(1, 4)
	p.AddNote(2, 60, 100, 1)
	if !p.SetStepsPerBeat(8) {
		t.Fatal("SetStepsPerBeat(8) should be accepted")
	}
	ev, ok := p.EventAt(0)
	if !ok {
		t.Fatal("expected an event after rescale")
	}
	if ev.Position != 4 {
		t.Fatalf("doubling steps-per-beat should double position, got %v", ev.Position)
	}
	if p.SetStepsPerBeat(5) {
		t.Fatal("SetStepsPerBeat should reject a resolution not in the allowed set")
	}
}

func TestPatternChangeDurationAllAbortsOnZero(t *testing.T) {
	p := NewPattern(1, 4)
	p.AddNote(0, 60, 100, 0.2)
	p.AddNote(1, 61, 100, 5)
	p.ChangeDurationAll(-0.3)
	if d := p.NoteDuration(0, 60); d != 0.2 {
		t.Fatalf("a delta driving any duration to <= 0 should abort before mutating, got %v", d)
	}
	if d := p.NoteDuration(1, 61); d != 5 {
		t.Fatalf("event after the aborting one should also be untouched, got %v", d)
	}
}

func TestPatternSetBeatsTruncates(t *testing.T) {
	p := NewPattern(2, 4)
	p.AddNote(0, 60, 100, 1)
	p.AddNote(6, 61, 100, 1)
	p.SetBeats(1)
	if p.EventCount() != 1 {
		t.Fatalf("SetBeats should truncate events at or past the new end, got %d events", p.EventCount())
	}
}

func TestPatternAddControlSplitsValue1AndValue2(t *testing.T) {
	p := NewPattern(1, 4)
	if !p.AddControl(0, 7, 0, 127, 4) {
		t.Fatal("AddControl should succeed for in-range arguments")
	}
	ev, ok := p.EventAt(0)
	if !ok {
		t.Fatal("expected a control event")
	}
	if ev.Value1Start != 7 || ev.Value1End != 7 {
		t.Fatal("control number must not ramp")
	}
	if ev.Value2Start != 0 || ev.Value2End != 127 {
		t.Fatal("control value should ramp from start to end")
	}
}

func TestPatternAddControlRejectsStepAtSteps(t *testing.T) {
	p := NewPattern(1, 4)
	if p.AddControl(p.Steps(), 7, 0, 127, 4) {
		t.Fatal("AddControl should reject step == Steps(), one past the last valid cell")
	}
}
