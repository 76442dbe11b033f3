package sequencer

import "testing"

type fakeHost struct {
	state    TransportState
	located  []uint64
	started  int
	stopped  int
}

func (h *fakeHost) Locate(frame uint64) { h.located = append(h.located, frame) }
func (h *fakeHost) Start()              { h.started++; h.state = TransportRolling }
func (h *fakeHost) Stop()               { h.stopped++; h.state = TransportStopped }
func (h *fakeHost) Query() TransportState { return h.state }

func newTestEngine(t *testing.T) (*Engine, *PatternManager) {
	t.Helper()
	m := NewPatternManager()
	e := NewEngine(m, 48000, 120, 4, 4)
	return e, m
}

func TestEngineCycleStoppedEmitsNothing(t *testing.T) {
	e, m := newTestEngine(t)
	pat := m.CreatePattern(1, 4)
	m.Pattern(pat).AddNote(0, 60, 100, 1)
	seq := m.CreateSequence()
	seq2 := m.Sequence(seq)
	seq2.PlayModeVal = ModeLoop
	seq2.State = StatePlaying
	m.AddPlacement(seq, 0, pat, false)
	song := m.CreateSong(120, 4, 4)
	m.AddTrackToSong(song, seq, 0)
	e.ActiveSong = song

	e.Cycle(CycleInput{State: TransportStopped, FramesInPeriod: 4096, SampleRate: 48000})
	if e.ScheduleLen() != 0 {
		t.Fatalf("a stopped transport should never walk clocks or schedule anything, got %d entries", e.ScheduleLen())
	}
}

func TestEngineCycleRollingEmitsFirstStepImmediately(t *testing.T) {
	e, m := newTestEngine(t)
	pat := m.CreatePattern(1, 4)
	m.Pattern(pat).AddNote(0, 60, 100, 1)
	seq := m.CreateSequence()
	s := m.Sequence(seq)
	s.PlayModeVal = ModeLoop
	s.State = StatePlaying
	m.AddPlacement(seq, 0, pat, false)
	song := m.CreateSong(120, 4, 4)
	m.AddTrackToSong(song, seq, 0)
	e.ActiveSong = song

	e.Cycle(CycleInput{
		State:          TransportRolling,
		FramesInPeriod: 48000, // one full second, comfortably more than one clock pulse at 120bpm
		NextPosition:   HostPosition{Frame: 0},
		Update:         true,
		SampleRate:     48000,
	})

	if e.ScheduleLen() == 0 {
		t.Fatal("a rolling transport with a playing sequence should schedule at least the note-on and note-off at clock 0")
	}
}

func TestEngineDrainCommandsSetTempo(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Commands.Push(ControlCommand{Kind: CmdSetTempo, Value: 140})
	e.Cycle(CycleInput{State: TransportStopped, FramesInPeriod: 64, SampleRate: 48000})
	if e.tempo != 140 {
		t.Fatalf("expected tempo to update to 140 after draining the command, got %v", e.tempo)
	}
}

func TestEngineHandleSystemRealtimeStartPushesTransportStart(t *testing.T) {
	e, _ := newTestEngine(t)
	host := &fakeHost{}
	e.Host = host
	e.HandleSystemRealtime(StatusStart, nil)
	e.Cycle(CycleInput{State: TransportStopped, FramesInPeriod: 64, SampleRate: 48000})
	if host.started != 1 {
		t.Fatalf("a MIDI Start byte should ask the host to start, got %d calls", host.started)
	}
}

func TestEngineHandleSystemRealtimeSongPositionLocates(t *testing.T) {
	e, _ := newTestEngine(t)
	host := &fakeHost{}
	e.Host = host
	// SPP value of 2 sixteenth-notes = 12 MIDI clocks.
	lsb := byte(2)
	msb := byte(0)
	e.HandleSystemRealtime(StatusSongPosition, []byte{lsb, msb})
	e.Cycle(CycleInput{State: TransportStopped, FramesInPeriod: 64, SampleRate: 48000})
	if len(host.located) != 1 {
		t.Fatalf("expected exactly one Locate call, got %d", len(host.located))
	}
}

func TestEngineCurrentPositionReflectsLastPublishedCycle(t *testing.T) {
	e, m := newTestEngine(t)
	if e.Rolling() {
		t.Fatal("a freshly constructed engine should not report rolling before any Cycle runs")
	}

	// A playing sequence keeps the transport from auto-stopping at the
	// first sync pulse, so the published snapshot stays rolling.
	pat := m.CreatePattern(1, 4)
	seq := m.CreateSequence()
	m.Sequence(seq).State = StatePlaying
	m.AddPlacement(seq, 0, pat, false)
	song := m.CreateSong(120, 4, 4)
	m.AddTrackToSong(song, seq, 0)
	e.ActiveSong = song

	e.Cycle(CycleInput{
		State:          TransportRolling,
		FramesInPeriod: 48000,
		NextPosition:   HostPosition{Frame: 0},
		Update:         true,
		SampleRate:     48000,
	})

	if !e.Rolling() {
		t.Fatal("Rolling should report true once Cycle has published a rolling snapshot")
	}
	if e.ScheduleLen() != e.Schedule.Len() {
		t.Fatalf("ScheduleLen should match the schedule as of the last Cycle, got %d want %d", e.ScheduleLen(), e.Schedule.Len())
	}
}

func TestEngineStopFlushesActiveNotes(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Schedule.Insert(0, StatusNoteOn|5, 60, 100)
	e.Schedule.DrainThrough(0, 10, func(frame uint64, status, v1, v2 byte) bool { return true })

	e.Stop()

	found := false
	e.Schedule.DrainThrough(0, 10, func(frame uint64, status, v1, v2 byte) bool {
		if status == StatusNoteOff|5 && v1 == 60 {
			found = true
		}
		return true
	})
	if !found {
		t.Fatal("Stop should flush a note-off for every note recorded as sounding")
	}
}
