package sequencer

import "sort"

// PatternHandle, SequenceHandle and SongHandle are dense integer handles
// into the PatternManager's arenas, replacing the cyclic pointer
// references a naive port of the data model would otherwise need between
// sequences and their patterns.
type PatternHandle uint32
type SequenceHandle uint32
type SongHandle uint32

// InvalidHandle is returned by lookups that fail; zero is never a valid
// handle because arena index 0 is reserved.
const InvalidHandle = 0

// PatternManager is the root of the mutable data model. It owns arenas of
// patterns, sequences and songs indexed by dense integer handles, and is
// the only thing that may create, mutate or destroy them. The realtime
// driver holds only handles it resolves through this type. PatternManager
// has no locking of its own; Snapshot/FromSnapshot copy it into a fresh
// value, but nothing in this package swaps such a copy into a running
// Engine.
type PatternManager struct {
	patterns  map[PatternHandle]*Pattern
	sequences map[SequenceHandle]*Sequence
	songs     map[SongHandle]*Song

	nextPattern  PatternHandle
	nextSequence SequenceHandle
	nextSong     SongHandle

	// songOf records which song a sequence currently belongs to, so a
	// sequence can be rejected from a second song while already bound to
	// one.
	songOf map[SequenceHandle]SongHandle
}

// NewPatternManager returns an empty manager.
func NewPatternManager() *PatternManager {
	return &PatternManager{
		patterns:     make(map[PatternHandle]*Pattern),
		sequences:    make(map[SequenceHandle]*Sequence),
		songs:        make(map[SongHandle]*Song),
		nextPattern:  1,
		nextSequence: 1,
		nextSong:     1,
		songOf:       make(map[SequenceHandle]SongHandle),
	}
}

// CreatePattern allocates a new pattern and returns its handle.
func (m *PatternManager) CreatePattern(beats, stepsPerBeat uint32) PatternHandle {
	h := m.nextPattern
	m.nextPattern++
	m.patterns[h] = NewPattern(beats, stepsPerBeat)
	return h
}

// Pattern resolves a handle to its Pattern, or nil if the handle is
// unknown. Callers must treat a nil result as "do nothing" per the
// lookup-miss error kind.
func (m *PatternManager) Pattern(h PatternHandle) *Pattern {
	return m.patterns[h]
}

// DestroyPattern frees a pattern. Any sequence placement referencing it
// becomes a dangling handle the next ClockTick will treat as a lookup
// miss; callers should remove placements first.
func (m *PatternManager) DestroyPattern(h PatternHandle) {
	delete(m.patterns, h)
}

// CreateSequence allocates a new sequence and returns its handle.
func (m *PatternManager) CreateSequence() SequenceHandle {
	h := m.nextSequence
	m.nextSequence++
	m.sequences[h] = NewSequence()
	return h
}

// Sequence resolves a handle to its Sequence, or nil if unknown.
func (m *PatternManager) Sequence(h SequenceHandle) *Sequence {
	return m.sequences[h]
}

// DestroySequence frees a sequence and its song membership record.
func (m *PatternManager) DestroySequence(h SequenceHandle) {
	delete(m.sequences, h)
	delete(m.songOf, h)
}

// CreateSong allocates a new song and returns its handle.
func (m *PatternManager) CreateSong(defaultTempo float64, defaultBeatsPerBar, defaultBeatType uint8) SongHandle {
	h := m.nextSong
	m.nextSong++
	m.songs[h] = NewSong(defaultTempo, defaultBeatsPerBar, defaultBeatType)
	return h
}

// Song resolves a handle to its Song, or nil if unknown.
func (m *PatternManager) Song(h SongHandle) *Song {
	return m.songs[h]
}

// DestroySong frees a song and releases its tracks' sequences for reuse
// in another song.
func (m *PatternManager) DestroySong(h SongHandle) {
	song := m.songs[h]
	if song != nil {
		for _, t := range song.Tracks {
			if m.songOf[t.Sequence] == h {
				delete(m.songOf, t.Sequence)
			}
		}
	}
	delete(m.songs, h)
}

// AddTrackToSong binds seq into song at position, failing if seq already
// belongs to a different song.
func (m *PatternManager) AddTrackToSong(song SongHandle, seq SequenceHandle, position int) bool {
	if existing, bound := m.songOf[seq]; bound && existing != song {
		return false
	}
	s := m.songs[song]
	if s == nil || m.sequences[seq] == nil {
		return false
	}
	s.AddTrack(seq, position)
	m.songOf[seq] = song
	return true
}

// AddPlacement adds a placement of pattern into sequence, resolving the
// pattern's current length and caching it on the sequence's Placement so
// overlap checks stay correct.
func (m *PatternManager) AddPlacement(seq SequenceHandle, clockOffset uint32, pattern PatternHandle, force bool) bool {
	s := m.sequences[seq]
	p := m.patterns[pattern]
	if s == nil || p == nil {
		return false
	}
	return s.AddPattern(clockOffset, pattern, p.Length(), force)
}

// SequenceLength resolves a sequence handle to its current length in
// clocks, for use by Song.Length and the transport.
func (m *PatternManager) SequenceLength(h SequenceHandle) uint32 {
	s := m.sequences[h]
	if s == nil {
		return 0
	}
	return s.Length()
}

// UpdateAllSequenceLengths resyncs every sequence's cached placement
// lengths from current pattern lengths. Called after any pattern resize
// (SetBeats, SetStepsPerBeat) so dependent sequence/song lengths stay
// correct without a lookup per clock pulse.
func (m *PatternManager) UpdateAllSequenceLengths() {
	lookup := func(h PatternHandle) uint32 {
		p := m.patterns[h]
		if p == nil {
			return 0
		}
		return p.Length()
	}
	for _, s := range m.sequences {
		s.ResyncLengths(lookup)
	}
}

// Trigger maps an incoming MIDI note on the trigger channel to the
// sequence whose TriggerNote matches, returning its handle and true, or
// false if no sequence claims that note.
func (m *PatternManager) Trigger(note uint8) (SequenceHandle, bool) {
	for h, s := range m.sequences {
		if s.TriggerNote == note {
			return h, true
		}
	}
	return 0, false
}

// Sequences returns every sequence handle currently allocated. Order is
// unspecified; callers that need determinism (group exclusion, playing
// enumeration) should sort it.
func (m *PatternManager) Sequences() []SequenceHandle {
	out := make([]SequenceHandle, 0, len(m.sequences))
	for h := range m.sequences {
		out = append(out, h)
	}
	return out
}

// StopGroupExcept transitions every PLAYING or STARTING sequence in group
// (other than except) to STOPPING. Used when a sequence starts, to
// enforce "at most one sequence per group may be PLAYING at a time".
func (m *PatternManager) StopGroupExcept(group uint8, except SequenceHandle) {
	for h, s := range m.sequences {
		if h == except || s.Group != group {
			continue
		}
		if s.State == StatePlaying || s.State == StateStarting {
			s.State = StateStopping
		}
	}
}

// sortedSongHandles returns every song handle in a stable, deterministic
// order (ascending handle value), used to resolve an incoming MIDI SONG
// SELECT's 0-based index onto a concrete song.
func (m *PatternManager) sortedSongHandles() []SongHandle {
	out := make([]SongHandle, 0, len(m.songs))
	for h := range m.songs {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AnyPlaying reports whether any sequence is PLAYING or STARTING, used by
// the transport to decide whether to auto-stop at a sync pulse when
// nothing remains active.
func (m *PatternManager) AnyPlaying() bool {
	for _, s := range m.sequences {
		if s.State == StatePlaying || s.State == StateStarting {
			return true
		}
	}
	return false
}
