package sequencer

import "sort"

// stepsPerBeatValues are the only grid resolutions a pattern may use.
var stepsPerBeatValues = map[uint32]bool{1: true, 2: true, 3: true, 4: true, 6: true, 8: true, 12: true, 24: true}

// StepEvent is a single musical event inside a Pattern, keyed by step
// position. Value1 identifies the event (note number, program number, CC
// number); Value2 carries the data that may ramp across the event's
// duration (velocity, or a controller's start/end value). Value1 never
// ramps: it starts and ends at the same value for every command this core
// emits.
type StepEvent struct {
	Position    float64 // step index, fractional after a steps-per-beat rescale
	Command     Command
	Value1Start uint8
	Value1End   uint8
	Value2Start uint8
	Value2End   uint8
	Duration    float64 // fractional steps, > 0
}

func (e *StepEvent) overlaps(position, duration float64) bool {
	return e.Position < position+duration && position < e.Position+e.Duration
}

// Pattern is an ordered container of StepEvents keyed by step position,
// covering beats*stepsPerBeat steps.
type Pattern struct {
	beats        uint32
	stepsPerBeat uint32
	scale        uint8
	tonic        uint8
	refNote      uint8
	events       []StepEvent // kept sorted by Position ascending
}

// NewPattern creates a pattern of the given length and grid resolution.
// Invalid stepsPerBeat falls back to 4, matching the grid the rest of the
// model assumes when a caller hasn't set one explicitly yet.
func NewPattern(beats uint32, stepsPerBeat uint32) *Pattern {
	p := &Pattern{beats: beats}
	if !stepsPerBeatValues[stepsPerBeat] {
		stepsPerBeat = 4
	}
	p.stepsPerBeat = stepsPerBeat
	return p
}

// Length returns the pattern's length in MIDI clocks.
func (p *Pattern) Length() uint32 {
	return p.beats * ClocksPerBeat
}

// ClocksPerStep returns how many MIDI clocks make up one step at the
// pattern's current grid resolution.
func (p *Pattern) ClocksPerStep() uint32 {
	if p.stepsPerBeat == 0 || p.stepsPerBeat > ClocksPerBeat {
		return 1
	}
	return ClocksPerBeat / p.stepsPerBeat
}

// Steps returns the number of step cells in the pattern (beats * stepsPerBeat).
func (p *Pattern) Steps() uint32 {
	return p.beats * p.stepsPerBeat
}

// Beats returns the pattern's length in beats.
func (p *Pattern) Beats() uint32 { return p.beats }

// StepsPerBeat returns the pattern's current grid resolution.
func (p *Pattern) StepsPerBeat() uint32 { return p.stepsPerBeat }

func (p *Pattern) Scale() uint8    { return p.scale }
func (p *Pattern) Tonic() uint8    { return p.tonic }
func (p *Pattern) RefNote() uint8  { return p.refNote }

func (p *Pattern) SetScale(v uint8)   { p.scale = v }
func (p *Pattern) SetTonic(v uint8)   { p.tonic = v }
func (p *Pattern) SetRefNote(v uint8) { p.refNote = v }

// EventCount returns the number of events currently in the pattern.
func (p *Pattern) EventCount() int { return len(p.events) }

// EventAt returns the event at the given index in position order, or false
// if the index is out of range.
func (p *Pattern) EventAt(index int) (StepEvent, bool) {
	if index < 0 || index >= len(p.events) {
		return StepEvent{}, false
	}
	return p.events[index], true
}

// addEvent inserts a new event at position, evicting any existing event
// with the same (command, value1Start) whose time range overlaps
// [position, position+duration). Overlap is inclusive on the left,
// exclusive on the right, per the half-open interval test s1<e2 && s2<e1.
func (p *Pattern) addEvent(position float64, command Command, value1, value2 uint8, duration float64) *StepEvent {
	kept := p.events[:0]
	for i := range p.events {
		ev := p.events[i]
		if ev.Command == command && ev.Value1Start == value1 && ev.overlaps(position, duration) {
			continue
		}
		kept = append(kept, ev)
	}
	p.events = kept

	ne := StepEvent{
		Position:    position,
		Command:     command,
		Value1Start: value1,
		Value1End:   value1,
		Value2Start: value2,
		Value2End:   value2,
		Duration:    duration,
	}
	idx := sort.Search(len(p.events), func(i int) bool { return p.events[i].Position > position })
	p.events = append(p.events, StepEvent{})
	copy(p.events[idx+1:], p.events[idx:])
	p.events[idx] = ne
	return &p.events[idx]
}

func (p *Pattern) deleteEvent(position float64, command Command, value1 uint8) {
	for i := range p.events {
		if p.events[i].Position == position && p.events[i].Command == command && p.events[i].Value1Start == value1 {
			p.events = append(p.events[:i], p.events[i+1:]...)
			return
		}
	}
}

// AddNote adds a note-on event at step with the given velocity and
// duration (in fractional steps). Returns false, making no change, if
// step is out of range or note/velocity exceed the MIDI data range.
func (p *Pattern) AddNote(step uint32, note, velocity uint8, duration float64) bool {
	if step >= p.Steps() || note > 127 || velocity > 127 {
		return false
	}
	p.addEvent(float64(step), CommandNoteOn, note, velocity, duration)
	return true
}

// RemoveNote deletes the note-on event at step for note, if any.
func (p *Pattern) RemoveNote(step uint32, note uint8) {
	p.deleteEvent(float64(step), CommandNoteOn, note)
}

// NoteStart returns the step at which the note sounding at step (if any)
// actually started, covering sustained notes. ok is false if no note
// covers step.
func (p *Pattern) NoteStart(step uint32, note uint8) (start uint32, ok bool) {
	for i := range p.events {
		ev := &p.events[i]
		if ev.Command != CommandNoteOn || ev.Value1Start != note {
			continue
		}
		end := ev.Position + ev.Duration
		if ev.Position <= float64(step) && end > float64(step) {
			return uint32(ev.Position), true
		}
	}
	return 0, false
}

// NoteVelocity returns the velocity of the note-on event exactly at step,
// or 0 if none.
func (p *Pattern) NoteVelocity(step uint32, note uint8) uint8 {
	for i := range p.events {
		ev := &p.events[i]
		if ev.Position == float64(step) && ev.Command == CommandNoteOn && ev.Value1Start == note {
			return ev.Value2Start
		}
	}
	return 0
}

// SetNoteVelocity updates the velocity of the note-on event exactly at
// step. No-op if velocity is out of range or no such event exists.
func (p *Pattern) SetNoteVelocity(step uint32, note, velocity uint8) {
	if velocity > 127 {
		return
	}
	for i := range p.events {
		ev := &p.events[i]
		if ev.Position == float64(step) && ev.Command == CommandNoteOn && ev.Value1Start == note {
			ev.Value2Start = velocity
			ev.Value2End = velocity
			return
		}
	}
}

// NoteDuration returns the duration, in fractional steps, of the note-on
// event exactly at step, or 0 if none.
func (p *Pattern) NoteDuration(step uint32, note uint8) float64 {
	if step >= p.Steps() {
		return 0
	}
	for i := range p.events {
		ev := &p.events[i]
		if ev.Position == float64(step) && ev.Command == CommandNoteOn && ev.Value1Start == note {
			return ev.Duration
		}
	}
	return 0
}

// AddProgramChange sets the program change event at step, replacing any
// existing one (at most one PC per step).
func (p *Pattern) AddProgramChange(step uint32, program uint8) bool {
	if step >= p.Steps() || program > 127 {
		return false
	}
	p.RemoveProgramChange(step)
	p.addEvent(float64(step), CommandProgram, program, program, 1)
	return true
}

// RemoveProgramChange removes the program change event at step, if any.
func (p *Pattern) RemoveProgramChange(step uint32) bool {
	if step >= p.Steps() {
		return false
	}
	program := p.ProgramChange(step)
	if program == NoPC {
		return false
	}
	p.deleteEvent(float64(step), CommandProgram, program)
	return true
}

// ProgramChange returns the program set at step, or NoPC if none.
func (p *Pattern) ProgramChange(step uint32) uint8 {
	if step >= p.Steps() {
		return NoPC
	}
	for i := range p.events {
		ev := &p.events[i]
		if ev.Position == float64(step) && ev.Command == CommandProgram {
			return ev.Value1Start
		}
	}
	return NoPC
}

// AddControl adds a (possibly ramped) controller event at step. control is
// the CC number and never ramps; valueStart/valueEnd is the controller's
// value at the start and end of duration.
func (p *Pattern) AddControl(step uint32, control, valueStart, valueEnd uint8, duration float64) bool {
	if step >= p.Steps() || control > 127 || valueStart > 127 || valueEnd > 127 {
		return false
	}
	ev := p.addEvent(float64(step), CommandControl, control, valueStart, duration)
	ev.Value2End = valueEnd
	return true
}

// RemoveControl removes the controller event for control at step, if any.
func (p *Pattern) RemoveControl(step uint32, control uint8) {
	p.deleteEvent(float64(step), CommandControl, control)
}

// Transpose shifts every note-on event by semitones. All-or-nothing: if
// any resulting note would leave 0..127, nothing is changed.
func (p *Pattern) Transpose(semitones int) bool {
	for i := range p.events {
		ev := &p.events[i]
		if ev.Command != CommandNoteOn {
			continue
		}
		note := int(ev.Value1Start) + semitones
		if note > 127 || note < 0 {
			return false
		}
	}
	for i := range p.events {
		ev := &p.events[i]
		if ev.Command != CommandNoteOn {
			continue
		}
		note := uint8(int(ev.Value1Start) + semitones)
		ev.Value1Start = note
		ev.Value1End = note
	}
	return true
}

// ChangeVelocityAll adjusts every note-on event's velocity by delta,
// clamped to 1..127.
func (p *Pattern) ChangeVelocityAll(delta int) {
	for i := range p.events {
		ev := &p.events[i]
		if ev.Command != CommandNoteOn {
			continue
		}
		vel := int(ev.Value2Start) + delta
		if vel > 127 {
			vel = 127
		}
		if vel < 1 {
			vel = 1
		}
		ev.Value2Start = uint8(vel)
		ev.Value2End = uint8(vel)
	}
}

// ChangeDurationAll adjusts every note-on event's duration by delta,
// floored at 0.1 steps. Aborts without modifying later events if delta
// would drive a duration to zero or below (mirrors the "don't allow a
// jump larger than the current value" guard on the original).
func (p *Pattern) ChangeDurationAll(delta float64) {
	for i := range p.events {
		ev := &p.events[i]
		if ev.Command != CommandNoteOn {
			continue
		}
		duration := ev.Duration + delta
		if duration <= 0 {
			return
		}
		if duration < 0.1 {
			duration = 0.1
		}
		ev.Duration = duration
	}
}

// Clear removes every event from the pattern.
func (p *Pattern) Clear() {
	p.events = nil
}

// SetStepsPerBeat rescales every event's position and duration by
// n/stepsPerBeat and adopts n as the new grid resolution. Returns false,
// making no change, if n isn't one of the allowed resolutions.
func (p *Pattern) SetStepsPerBeat(n uint32) bool {
	if !stepsPerBeatValues[n] {
		return false
	}
	scale := float64(n) / float64(p.stepsPerBeat)
	for i := range p.events {
		p.events[i].Position *= scale
		p.events[i].Duration *= scale
	}
	p.stepsPerBeat = n
	return true
}

// SetBeats changes the pattern's length in beats, truncating any event at
// or past the new end.
func (p *Pattern) SetBeats(beats uint32) {
	if beats == 0 {
		return
	}
	p.beats = beats
	limit := float64(p.beats * p.stepsPerBeat)
	cut := len(p.events)
	for i := range p.events {
		if p.events[i].Position >= limit {
			cut = i
			break
		}
	}
	p.events = p.events[:cut]
}

// LastStep returns the position of the last event in the pattern, or -1
// if the pattern is empty.
func (p *Pattern) LastStep() int {
	if len(p.events) == 0 {
		return -1
	}
	last := 0.0
	for i := range p.events {
		if p.events[i].Position > last {
			last = p.events[i].Position
		}
	}
	return int(last)
}
