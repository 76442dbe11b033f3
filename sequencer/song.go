package sequencer

// Track is a thin binding of a sequence handle to a display position
// inside a Song.
type Track struct {
	Sequence SequenceHandle
	Position int
}

// Song is a collection of sequences grouped as tracks, bound to one
// timebase map. A sequence may appear in at most one song concurrently
// for playback accounting; the PatternManager enforces that.
type Song struct {
	Tracks             []Track
	Timebase           *TimebaseMap
	DefaultTempo       float64
	DefaultBeatsPerBar uint8
	DefaultBeatType    uint8
}

// NewSong returns a song with an empty track list and the given defaults.
func NewSong(defaultTempo float64, defaultBeatsPerBar, defaultBeatType uint8) *Song {
	return &Song{
		Timebase:           NewTimebaseMap(defaultTempo, defaultBeatsPerBar, defaultBeatType),
		DefaultTempo:       defaultTempo,
		DefaultBeatsPerBar: defaultBeatsPerBar,
		DefaultBeatType:    defaultBeatType,
	}
}

// AddTrack appends a track bound to seq at the given display position.
func (s *Song) AddTrack(seq SequenceHandle, position int) {
	s.Tracks = append(s.Tracks, Track{Sequence: seq, Position: position})
}

// RemoveTrack removes the track bound to seq, if present.
func (s *Song) RemoveTrack(seq SequenceHandle) {
	for i := range s.Tracks {
		if s.Tracks[i].Sequence == seq {
			s.Tracks = append(s.Tracks[:i], s.Tracks[i+1:]...)
			return
		}
	}
}

// Length returns the song's length in clocks: the greatest sequence
// length among its tracks.
func (s *Song) Length(sequenceLength func(SequenceHandle) uint32) uint32 {
	var l uint32
	for _, t := range s.Tracks {
		if sl := sequenceLength(t.Sequence); sl > l {
			l = sl
		}
	}
	return l
}
