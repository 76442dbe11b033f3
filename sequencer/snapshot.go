package sequencer

// Snapshot is a serializable copy of everything the PatternManager owns,
// used by internal/project to persist and restore a full project without
// exposing the manager's arena internals directly to encoding/json.
type Snapshot struct {
	Patterns  map[PatternHandle]PatternSnapshot
	Sequences map[SequenceHandle]SequenceSnapshot
	Songs     map[SongHandle]SongSnapshot

	NextPattern  PatternHandle
	NextSequence SequenceHandle
	NextSong     SongHandle
}

// PatternSnapshot is a serializable copy of a Pattern.
type PatternSnapshot struct {
	Beats        uint32
	StepsPerBeat uint32
	Scale        uint8
	Tonic        uint8
	RefNote      uint8
	Events       []StepEvent
}

// PlacementSnapshot is a serializable copy of a Placement.
type PlacementSnapshot struct {
	ClockOffset uint32
	Pattern     PatternHandle
	Length      uint32
}

// SequenceSnapshot is a serializable copy of a Sequence.
type SequenceSnapshot struct {
	Channel      uint8
	Output       uint8
	PlayMode     PlayMode
	State        PlayState
	Group        uint8
	TallyChannel uint8
	TriggerNote  uint8
	Placements   []PlacementSnapshot
}

// TrackSnapshot is a serializable copy of a Track.
type TrackSnapshot struct {
	Sequence SequenceHandle
	Position int
}

// SongSnapshot is a serializable copy of a Song.
type SongSnapshot struct {
	Tracks             []TrackSnapshot
	TimebaseEvents     []TimebaseEvent
	DefaultTempo       float64
	DefaultBeatsPerBar uint8
	DefaultBeatType    uint8
}

// Snapshot captures the manager's entire data model into a value safe to
// marshal and to later hand to FromSnapshot, which builds a fresh manager.
// Engine holds its manager as a plain pointer field; no atomic swap of a
// restored manager into a running Engine is provided.
func (m *PatternManager) Snapshot() Snapshot {
	s := Snapshot{
		Patterns:     make(map[PatternHandle]PatternSnapshot, len(m.patterns)),
		Sequences:    make(map[SequenceHandle]SequenceSnapshot, len(m.sequences)),
		Songs:        make(map[SongHandle]SongSnapshot, len(m.songs)),
		NextPattern:  m.nextPattern,
		NextSequence: m.nextSequence,
		NextSong:     m.nextSong,
	}
	for h, p := range m.patterns {
		events := make([]StepEvent, p.EventCount())
		for i := range events {
			events[i], _ = p.EventAt(i)
		}
		s.Patterns[h] = PatternSnapshot{
			Beats: p.Beats(), StepsPerBeat: p.StepsPerBeat(),
			Scale: p.Scale(), Tonic: p.Tonic(), RefNote: p.RefNote(),
			Events: events,
		}
	}
	for h, seq := range m.sequences {
		var placements []PlacementSnapshot
		for _, pl := range seq.Placements() {
			placements = append(placements, PlacementSnapshot{ClockOffset: pl.ClockOffset, Pattern: pl.Pattern, Length: pl.Length})
		}
		s.Sequences[h] = SequenceSnapshot{
			Channel: seq.Channel, Output: seq.Output, PlayMode: seq.PlayModeVal,
			State: seq.State, Group: seq.Group, TallyChannel: seq.TallyChannel,
			TriggerNote: seq.TriggerNote, Placements: placements,
		}
	}
	for h, song := range m.songs {
		var tracks []TrackSnapshot
		for _, t := range song.Tracks {
			tracks = append(tracks, TrackSnapshot{Sequence: t.Sequence, Position: t.Position})
		}
		var events []TimebaseEvent
		if song.Timebase != nil {
			events = append(events, song.Timebase.events...)
		}
		s.Songs[h] = SongSnapshot{
			Tracks: tracks, TimebaseEvents: events,
			DefaultTempo: song.DefaultTempo, DefaultBeatsPerBar: song.DefaultBeatsPerBar,
			DefaultBeatType: song.DefaultBeatType,
		}
	}
	return s
}

// FromSnapshot rebuilds a PatternManager from a previously captured
// Snapshot. The result is a fresh value with no borrowed references to
// the manager it was taken from; it does not replace or touch any manager
// an Engine is already using.
func FromSnapshot(s Snapshot) *PatternManager {
	m := NewPatternManager()
	m.nextPattern = s.NextPattern
	m.nextSequence = s.NextSequence
	m.nextSong = s.NextSong

	for h, ps := range s.Patterns {
		p := NewPattern(ps.Beats, ps.StepsPerBeat)
		p.scale, p.tonic, p.refNote = ps.Scale, ps.Tonic, ps.RefNote
		p.events = append([]StepEvent(nil), ps.Events...)
		m.patterns[h] = p
	}
	for h, ss := range s.Sequences {
		seq := NewSequence()
		seq.Channel, seq.Output = ss.Channel, ss.Output
		seq.PlayModeVal, seq.State = ss.PlayMode, ss.State
		seq.Group, seq.TallyChannel, seq.TriggerNote = ss.Group, ss.TallyChannel, ss.TriggerNote
		for _, pl := range ss.Placements {
			seq.placements = append(seq.placements, Placement{ClockOffset: pl.ClockOffset, Pattern: pl.Pattern, Length: pl.Length})
		}
		m.sequences[h] = seq
	}
	for h, sgs := range s.Songs {
		song := NewSong(sgs.DefaultTempo, sgs.DefaultBeatsPerBar, sgs.DefaultBeatType)
		song.Timebase.events = append([]TimebaseEvent(nil), sgs.TimebaseEvents...)
		for _, t := range sgs.Tracks {
			song.Tracks = append(song.Tracks, Track{Sequence: t.Sequence, Position: t.Position})
			m.songOf[t.Sequence] = h
		}
		m.songs[h] = song
	}
	return m
}
