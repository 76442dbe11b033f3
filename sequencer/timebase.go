package sequencer

import "sort"

// TimebaseEventType distinguishes a tempo change from a time-signature
// change in a TimebaseMap.
type TimebaseEventType uint8

const (
	TimebaseTempo TimebaseEventType = iota
	TimebaseTimeSig
)

// TimebaseEvent is a single scheduled tempo or time-signature change,
// positioned at (bar, clock-within-bar).
//
// For TimebaseTempo, Value holds BPM*100 (fixed-point, avoids float
// equality concerns in the sparse map's ordering). For TimebaseTimeSig,
// Value packs beats-per-bar in the high byte and beat-type in the low
// byte.
type TimebaseEvent struct {
	Bar        uint16
	ClockInBar uint32
	Type       TimebaseEventType
	Value      uint32
}

func (e TimebaseEvent) less(other TimebaseEvent) bool {
	if e.Bar != other.Bar {
		return e.Bar < other.Bar
	}
	return e.ClockInBar < other.ClockInBar
}

func packTimeSig(beatsPerBar, beatType uint8) uint32 {
	return uint32(beatsPerBar)<<8 | uint32(beatType)
}

func unpackTimeSig(v uint32) (beatsPerBar, beatType uint8) {
	return uint8(v >> 8), uint8(v)
}

// TimebaseMap is a per-song sparse map from (bar, clock-within-bar) to
// tempo and time-signature changes, sorted by position. At most one event
// of each type may sit at a given position.
type TimebaseMap struct {
	events []TimebaseEvent

	defaultTempo       float64
	defaultBeatsPerBar uint8
	defaultBeatType    uint8
}

// NewTimebaseMap returns an empty map with the given song-level defaults,
// used when no event has fired yet.
func NewTimebaseMap(defaultTempo float64, defaultBeatsPerBar, defaultBeatType uint8) *TimebaseMap {
	return &TimebaseMap{
		defaultTempo:       defaultTempo,
		defaultBeatsPerBar: defaultBeatsPerBar,
		defaultBeatType:    defaultBeatType,
	}
}

// Insert adds or replaces the event of the given type at (bar, clockInBar).
func (m *TimebaseMap) Insert(bar uint16, clockInBar uint32, typ TimebaseEventType, value uint32) {
	for i := range m.events {
		if m.events[i].Bar == bar && m.events[i].ClockInBar == clockInBar && m.events[i].Type == typ {
			m.events[i].Value = value
			return
		}
	}
	ev := TimebaseEvent{Bar: bar, ClockInBar: clockInBar, Type: typ, Value: value}
	idx := sort.Search(len(m.events), func(i int) bool { return !m.events[i].less(ev) })
	m.events = append(m.events, TimebaseEvent{})
	copy(m.events[idx+1:], m.events[idx:])
	m.events[idx] = ev
}

// Remove deletes the event of the given type at (bar, clockInBar), if any.
func (m *TimebaseMap) Remove(bar uint16, clockInBar uint32, typ TimebaseEventType) {
	for i := range m.events {
		if m.events[i].Bar == bar && m.events[i].ClockInBar == clockInBar && m.events[i].Type == typ {
			m.events = append(m.events[:i], m.events[i+1:]...)
			return
		}
	}
}

// TempoAt returns the tempo (BPM) in effect at (bar, clockInBar): the
// greatest TEMPO event at or before that position, or the song default.
func (m *TimebaseMap) TempoAt(bar uint16, clockInBar uint32) float64 {
	cursor := TimebaseEvent{Bar: bar, ClockInBar: clockInBar}
	tempo := m.defaultTempo
	for i := range m.events {
		if m.events[i].Type != TimebaseTempo {
			continue
		}
		if m.events[i].less(cursor) || (m.events[i].Bar == bar && m.events[i].ClockInBar == clockInBar) {
			tempo = float64(m.events[i].Value) / 100
		}
	}
	return tempo
}

// TimeSigAt returns the (beatsPerBar, beatType) in effect at
// (bar, clockInBar): the greatest TIMESIG event at or before that
// position, or the song default.
func (m *TimebaseMap) TimeSigAt(bar uint16, clockInBar uint32) (beatsPerBar, beatType uint8) {
	cursor := TimebaseEvent{Bar: bar, ClockInBar: clockInBar}
	beatsPerBar, beatType = m.defaultBeatsPerBar, m.defaultBeatType
	for i := range m.events {
		if m.events[i].Type != TimebaseTimeSig {
			continue
		}
		if m.events[i].less(cursor) || (m.events[i].Bar == bar && m.events[i].ClockInBar == clockInBar) {
			beatsPerBar, beatType = unpackTimeSig(m.events[i].Value)
		}
	}
	return beatsPerBar, beatType
}

// NextAfter returns the first event strictly after cursor, or false if
// none remains.
func (m *TimebaseMap) NextAfter(cursor TimebaseEvent) (TimebaseEvent, bool) {
	for i := range m.events {
		if cursor.less(m.events[i]) {
			return m.events[i], true
		}
	}
	return TimebaseEvent{}, false
}

// First returns the earliest event in the map, or false if it's empty.
func (m *TimebaseMap) First() (TimebaseEvent, bool) {
	if len(m.events) == 0 {
		return TimebaseEvent{}, false
	}
	return m.events[0], true
}
