package sequencer

import "sort"

// PlayState is a Sequence's position in the STOPPED -> STARTING -> PLAYING
// -> STOPPING -> STOPPED state machine.
type PlayState uint8

const (
	StateStopped PlayState = iota
	StateStarting
	StatePlaying
	StateStopping
)

// PlayMode determines how a Sequence's clock wraps and when it may start
// or stop relative to a bar boundary.
type PlayMode uint8

const (
	ModeOneshot    PlayMode = iota // stop at end, no wrap
	ModeLoop                       // wraps, starts/stops immediately
	ModeOneshotAll                 // no wrap, starts/stops only at bar boundary
	ModeLoopAll                    // wraps, starts/stops only at bar boundary
	ModeLoopSync                   // wraps, restarts on every sync pulse
)

// Placement binds a pattern (by handle) into a Sequence's clock timeline.
// Length is the pattern's length in clocks as of the last resync; it is
// cached here so Sequence can resolve overlap and emission without a
// PatternManager round trip on every clock pulse.
type Placement struct {
	ClockOffset uint32
	Pattern     PatternHandle
	Length      uint32
}

func (pl Placement) end() uint32 { return pl.ClockOffset + pl.Length }

// EmittedEvent is a MIDI event a Sequence produces for one clock pulse,
// ready for Schedule insertion once the caller resolves it to a frame.
type EmittedEvent struct {
	Status byte // full status byte including channel
	Value1 uint8
	Value2 uint8

	// IsNoteOn marks an event that needs a matching note-off scheduled.
	IsNoteOn  bool
	Note      uint8  // valid when IsNoteOn
	NoteOffAt uint32 // song clock at which the note-off should fire
}

// Sequence is one playable lane: an ordered list of pattern placements
// along a clock timeline, with play state, output channel and a trigger
// binding. Sequence resolves note emission itself given a Pattern lookup,
// but never mutates a Pattern.
type Sequence struct {
	Channel      uint8 // 0..15
	Output       uint8
	PlayModeVal  PlayMode
	State        PlayState
	Group        uint8
	TallyChannel uint8
	TriggerNote  uint8

	placements []Placement // kept sorted by ClockOffset

	step uint32 // manual scrub position, also used for MIDI pass-through recording

	// startClock is the song clock at which this sequence last began
	// playing (set on the STARTING -> PLAYING transition, and again on
	// every sync pulse for ModeLoopSync). wrappedClock measures position
	// relative to it so playback always begins at pattern step 0.
	startClock uint32
}

// NewSequence returns a Sequence on MIDI channel 0, in LOOP mode, stopped.
func NewSequence() *Sequence {
	return &Sequence{PlayModeVal: ModeLoop}
}

// SetChannelMask sets Channel from a 16-bit mask that must have exactly
// one bit set. A thin, stricter wrapper over the single-channel field: the
// original API exposed both a bitmask and a single-channel setter
// inconsistently; here the bitmask path is valid only when it actually
// names one channel.
func (s *Sequence) SetChannelMask(mask uint16) bool {
	if mask == 0 || mask&(mask-1) != 0 {
		return false
	}
	for ch := 0; ch < 16; ch++ {
		if mask == 1<<uint(ch) {
			s.Channel = uint8(ch)
			return true
		}
	}
	return false
}

// AddPattern inserts a placement of the given length at clockOffset.
// Fails unless force is true if it would overlap an existing placement;
// with force=true the conflicting placement is removed.
func (s *Sequence) AddPattern(clockOffset uint32, pattern PatternHandle, length uint32, force bool) bool {
	newEnd := clockOffset + length
	for i := range s.placements {
		pl := s.placements[i]
		if pl.ClockOffset < newEnd && clockOffset < pl.end() {
			if !force {
				return false
			}
			s.placements = append(s.placements[:i], s.placements[i+1:]...)
			break
		}
	}
	s.placements = append(s.placements, Placement{ClockOffset: clockOffset, Pattern: pattern, Length: length})
	sort.Slice(s.placements, func(i, j int) bool { return s.placements[i].ClockOffset < s.placements[j].ClockOffset })
	return true
}

// RemovePattern removes the placement at clockOffset, if any.
func (s *Sequence) RemovePattern(clockOffset uint32) {
	for i := range s.placements {
		if s.placements[i].ClockOffset == clockOffset {
			s.placements = append(s.placements[:i], s.placements[i+1:]...)
			return
		}
	}
}

// Placements returns the sequence's placements in clock order.
func (s *Sequence) Placements() []Placement {
	return s.placements
}

// ResyncLengths updates every placement's cached Length from newLength,
// called by the PatternManager after a pattern resize so overlap/emission
// math stays correct without a lookup per clock pulse.
func (s *Sequence) ResyncLengths(newLength func(PatternHandle) uint32) {
	for i := range s.placements {
		s.placements[i].Length = newLength(s.placements[i].Pattern)
	}
}

// Length is the sequence's length in clocks: the greatest placement end.
func (s *Sequence) Length() uint32 {
	var l uint32
	for _, pl := range s.placements {
		if pl.end() > l {
			l = pl.end()
		}
	}
	return l
}

// SetPlayState forces the play state directly, bypassing the sync-pulse
// gating ClockTick otherwise applies. Used by the Engine for queued
// play-state commands and transport stop.
func (s *Sequence) SetPlayState(state PlayState) {
	s.State = state
}

// SetStep sets the manual scrub/record position.
func (s *Sequence) SetStep(step uint32) { s.step = step }

// Step returns the manual scrub/record position.
func (s *Sequence) Step() uint32 { return s.step }

// Trigger requests a play-state transition as if a trigger-channel
// note-on had arrived, returning the resulting state. Stopped sequences
// move to Starting; playing or starting sequences are asked to stop.
func (s *Sequence) Trigger() PlayState {
	switch s.State {
	case StateStopped:
		s.State = StateStarting
	case StateStarting, StatePlaying:
		s.State = StateStopping
	case StateStopping:
		s.State = StateStarting
	}
	return s.State
}

// placementAt returns the placement covering song clock c, or false if
// none covers it.
func (s *Sequence) placementAt(c uint32) (Placement, bool) {
	for _, pl := range s.placements {
		if c >= pl.ClockOffset && c < pl.end() {
			return pl, true
		}
	}
	return Placement{}, false
}

// wrappedClock maps a raw song clock to the clock Sequence should use for
// placement lookup, per its play mode's wrap policy. Position is measured
// relative to startClock, the song clock at which this run began, so
// playback always starts at pattern step 0 regardless of where in the bar
// the sequence happened to start.
func (s *Sequence) wrappedClock(c uint32) (wrapped uint32, stop bool) {
	elapsed := c - s.startClock
	l := s.Length()
	if l == 0 {
		return elapsed, false
	}
	switch s.PlayModeVal {
	case ModeLoop, ModeLoopAll, ModeLoopSync:
		return elapsed % l, false
	default: // ModeOneshot, ModeOneshotAll
		if elapsed >= l {
			return elapsed, true
		}
		return elapsed, false
	}
}

// startGated reports whether this play mode only starts on a sync pulse
// (bar boundary) rather than immediately.
func (s *Sequence) startGated() bool {
	switch s.PlayModeVal {
	case ModeOneshotAll, ModeLoopAll:
		return true
	default:
		return false
	}
}

// ClockTick asks the sequence to emit events for song clock c. syncPulse
// is true when c falls on a bar boundary. getPattern resolves a
// placement's pattern handle to its data for event lookup; that pattern's
// ClocksPerStep decides where step boundaries fall.
//
// Per the emission rule: STOPPED/resolved-STOPPING emit nothing; the
// in-sequence clock is computed per play mode's wrap policy; events fire
// only on step boundaries; each note-on schedules a matching note-off at
// c + duration-in-clocks.
func (s *Sequence) ClockTick(c uint32, syncPulse bool, getPattern func(PatternHandle) *Pattern) []EmittedEvent {
	switch s.State {
	case StateStarting:
		if syncPulse || !s.startGated() {
			s.State = StatePlaying
			s.startClock = c
		} else {
			return nil
		}
	case StateStopping:
		if syncPulse || !s.startGated() {
			s.State = StateStopped
			return nil
		}
	case StateStopped:
		return nil
	}

	if s.PlayModeVal == ModeLoopSync && syncPulse {
		s.startClock = c
	}

	cPrime, stop := s.wrappedClock(c)
	if stop {
		s.State = StateStopped
		return nil
	}

	pl, ok := s.placementAt(cPrime)
	if !ok {
		return nil
	}
	pattern := getPattern(pl.Pattern)
	if pattern == nil {
		return nil
	}

	clocksPerStep := pattern.ClocksPerStep()
	rel := cPrime - pl.ClockOffset
	if rel%clocksPerStep != 0 {
		return nil
	}
	step := rel / clocksPerStep

	var out []EmittedEvent
	for i := 0; i < pattern.EventCount(); i++ {
		ev, _ := pattern.EventAt(i)
		if uint32(ev.Position) != step {
			continue
		}
		status := byte(ev.Command) | (s.Channel & 0x0F)
		switch ev.Command {
		case CommandNoteOn:
			durClocks := uint32(ev.Duration * float64(clocksPerStep))
			if durClocks == 0 {
				durClocks = 1
			}
			out = append(out, EmittedEvent{
				Status: status, Value1: ev.Value1Start, Value2: ev.Value2Start,
				IsNoteOn: true, Note: ev.Value1Start, NoteOffAt: c + durClocks,
			})
		default:
			out = append(out, EmittedEvent{Status: status, Value1: ev.Value1Start, Value2: ev.Value2Start})
		}
	}
	return out
}
