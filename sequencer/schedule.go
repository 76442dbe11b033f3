package sequencer

import "sort"

// ScheduledMessage is a MIDI message pending emission at an absolute
// sample frame.
type ScheduledMessage struct {
	Frame  uint64
	Status byte
	Value1 uint8
	Value2 uint8
}

// Sink receives drained messages in order, one per call. A Sink returning
// false signals "buffer full" (the host's MIDI output reservation
// failed); DrainThrough stops immediately and leaves the remaining entries
// queued for the next cycle, per the schedule-overflow error kind.
type Sink func(frame uint64, status, value1, value2 byte) (ok bool)

// Schedule is the time-ordered queue of pending MIDI messages keyed by
// absolute sample frame. It is intra-cycle state exclusively owned and
// mutated by the realtime thread: all insertion from control threads
// goes through the CommandQueue (queue.go) instead, so Schedule itself
// never needs a lock.
type Schedule struct {
	entries []ScheduledMessage // kept sorted by Frame; ties keep insertion order

	// activeNotes tracks which notes are currently sounding per output
	// channel, fed by every note-on/note-off actually drained, so a stop
	// can flush exactly the notes that are down instead of a blanket
	// all-128-notes-off.
	activeNotes [16]map[uint8]bool
}

// NewSchedule returns an empty schedule.
func NewSchedule() *Schedule {
	s := &Schedule{}
	for i := range s.activeNotes {
		s.activeNotes[i] = make(map[uint8]bool)
	}
	return s
}

// Insert adds msg to the schedule, preserving frame order and, among
// equal frames, insertion order.
func (s *Schedule) Insert(frame uint64, status, value1, value2 byte) {
	msg := ScheduledMessage{Frame: frame, Status: status, Value1: value1, Value2: value2}
	idx := sort.Search(len(s.entries), func(i int) bool { return s.entries[i].Frame > frame })
	s.entries = append(s.entries, ScheduledMessage{})
	copy(s.entries[idx+1:], s.entries[idx:])
	s.entries[idx] = msg
}

// Clear drops every pending entry and active-note record without
// emitting anything. Used on a hard transport relocate.
func (s *Schedule) Clear() {
	s.entries = nil
	for i := range s.activeNotes {
		s.activeNotes[i] = make(map[uint8]bool)
	}
}

// Len returns the number of entries currently pending, for diagnostics.
func (s *Schedule) Len() int { return len(s.entries) }

// DrainThrough emits every entry with Frame < cycleEnd into sink, in
// frame order. An entry that arrived late (Frame < now) is emitted at the
// earliest free intra-cycle offset, preserving relative order among late
// entries and enforcing a minimum one-frame spacing so two entries never
// collapse onto the same offset and reorder insertion order. If sink
// reports the output buffer full, the drain stops and every remaining
// entry (including the one that failed) stays scheduled for next cycle.
func (s *Schedule) DrainThrough(now, cycleEnd uint64, sink Sink) {
	var nextFree uint64 = now
	consumed := 0
	for _, e := range s.entries {
		if e.Frame >= cycleEnd {
			break
		}
		emitFrame := e.Frame
		if emitFrame < now {
			emitFrame = nextFree
		}
		if emitFrame < nextFree {
			emitFrame = nextFree
		}
		if !sink(emitFrame, e.Status, e.Value1, e.Value2) {
			break
		}
		s.recordActive(e.Status, e.Value1)
		nextFree = emitFrame + 1
		consumed++
	}
	s.entries = s.entries[consumed:]
}

func (s *Schedule) recordActive(status, value1 byte) {
	ch := status & 0x0F
	switch status & 0xF0 {
	case StatusNoteOn:
		s.activeNotes[ch][value1] = true
	case StatusNoteOff:
		delete(s.activeNotes[ch], value1)
	}
}

// FlushChannel returns the notes currently recorded as sounding on
// channel, clearing the record. Engine.Stop uses this to emit exactly
// the notes that are down instead of a blanket all-notes-off.
func (s *Schedule) FlushChannel(channel uint8) []uint8 {
	notes := s.activeNotes[channel&0x0F]
	out := make([]uint8, 0, len(notes))
	for n := range notes {
		out = append(out, n)
	}
	s.activeNotes[channel&0x0F] = make(map[uint8]bool)
	return out
}
