package sequencer

import (
	"math"
	"sync/atomic"
)

// Engine is the single owned value the host hands its realtime callback
// each cycle. It gathers the pattern manager, schedule and transport
// cursor that the original implementation kept as separate global state
// (§9) into one value with no package-level mutable state.
type Engine struct {
	Manager  *PatternManager
	Schedule *Schedule
	Commands *CommandQueue
	Host     HostControl

	ActiveSong SongHandle

	sampleRate float64
	rolling    bool

	tempo       float64
	beatsPerBar uint8
	beatType    uint8

	bar         uint32 // 1-indexed
	beat        uint32 // 1-indexed within bar
	tick        uint32 // 0..TicksPerBeat-1
	clockInBeat uint32 // 0..23

	barStartTick        float64
	framesToNextClock   float64
	framesPerClock      float64
	transportStartFrame uint64

	songClock uint64 // flat clock counter since song start, never wraps

	timebaseCursor      TimebaseEvent
	timebaseCursorValid bool

	// status is the realtime thread's last-published view of itself,
	// swapped in atomically at the end of every Cycle. statusapi and any
	// other cross-thread reader go through this instead of touching
	// bar/beat/tick/tempo/Schedule.entries directly, which the realtime
	// thread mutates without synchronization.
	status atomic.Pointer[engineStatus]
}

// engineStatus is the published snapshot a diagnostics reader sees.
// Immutable once stored: Cycle builds a fresh value and swaps the
// pointer rather than mutating one in place.
type engineStatus struct {
	position    BBT
	rolling     bool
	scheduleLen int
}

// NewEngine returns an Engine at bar 1, beat 1, stopped, with the given
// sample rate and song-level tempo/time-signature defaults.
func NewEngine(manager *PatternManager, sampleRate, tempo float64, beatsPerBar, beatType uint8) *Engine {
	e := &Engine{
		Manager:     manager,
		Schedule:    NewSchedule(),
		Commands:    NewCommandQueue(256),
		sampleRate:  sampleRate,
		tempo:       tempo,
		beatsPerBar: beatsPerBar,
		beatType:    beatType,
		bar:         1,
		beat:        1,
	}
	e.framesPerClock = framesPerClock(sampleRate, tempo)
	e.framesToNextClock = e.framesPerClock
	e.publishStatus()
	return e
}

func framesPerClock(sampleRate, tempo float64) float64 {
	return (60 * sampleRate) / (tempo * ClocksPerBeat)
}

func framesPerTick(sampleRate, tempo float64) float64 {
	return (60 * sampleRate) / (tempo * TicksPerBeat)
}

// syncFromFrame recomputes BBT from an absolute frame using the engine's
// current tempo and time signature, filling barStartTick on every path
// (the resolved Open Question: the original left this a hard-coded 0 on
// one branch).
func (e *Engine) syncFromFrame(frame uint64) {
	fpt := framesPerTick(e.sampleRate, e.tempo)
	if fpt <= 0 {
		return
	}
	totalTicks := uint64(float64(frame) / fpt)
	beatsElapsed := totalTicks / TicksPerBeat
	tickInBeat := totalTicks % TicksPerBeat

	beatsPerBar := uint64(e.beatsPerBar)
	if beatsPerBar == 0 {
		beatsPerBar = 1
	}
	bar := beatsElapsed/beatsPerBar + 1
	beatInBar := beatsElapsed%beatsPerBar + 1

	ticksInBar := (beatInBar-1)*TicksPerBeat + tickInBeat
	barStartTicks := totalTicks - ticksInBar

	e.bar = uint32(bar)
	e.beat = uint32(beatInBar)
	e.tick = uint32(tickInBeat)
	e.barStartTick = float64(barStartTicks)
	e.clockInBeat = (e.tick * ClocksPerBeat) / TicksPerBeat
	e.songClock = bar2Clock(bar-1, beatsPerBar) + (beatInBar-1)*ClocksPerBeat + uint64(e.clockInBeat)
}

func bar2Clock(barsElapsed, beatsPerBar uint64) uint64 {
	return barsElapsed * beatsPerBar * ClocksPerBeat
}

// adoptBBT takes a host-supplied BBT directly, snapping out-of-range
// fields via modulo arithmetic instead of trusting the host blindly.
func (e *Engine) adoptBBT(bbt *BBT) {
	beatsPerBar := uint32(e.beatsPerBar)
	if beatsPerBar == 0 {
		beatsPerBar = 1
	}
	beat := bbt.Beat
	if beat == 0 {
		beat = 1
	}
	beat = ((beat - 1) % beatsPerBar) + 1
	e.bar = bbt.Bar
	e.beat = beat
	e.tick = bbt.Tick % TicksPerBeat
	e.barStartTick = bbt.BarStartTick
	e.clockInBeat = (e.tick * ClocksPerBeat) / TicksPerBeat
}

// CurrentPosition returns the BBT the engine last published, for
// diagnostics callers outside the realtime path (statusapi). Safe to call
// from any thread: it reads the atomically-swapped status snapshot rather
// than the live bar/beat/tick fields Cycle mutates.
func (e *Engine) CurrentPosition() BBT { return e.loadStatus().position }

// Rolling reports whether the transport was rolling as of the last
// published snapshot. Safe to call from any thread.
func (e *Engine) Rolling() bool { return e.loadStatus().rolling }

// ScheduleLen reports how many messages were pending in the schedule as of
// the last published snapshot. Safe to call from any thread.
func (e *Engine) ScheduleLen() int { return e.loadStatus().scheduleLen }

// loadStatus returns the current snapshot, falling back to a zero value
// in the window before NewEngine's initial publish (never observable
// outside tests that construct an Engine by hand).
func (e *Engine) loadStatus() *engineStatus {
	if s := e.status.Load(); s != nil {
		return s
	}
	return &engineStatus{}
}

// publishStatus swaps in a fresh snapshot of the fields cross-thread
// readers care about. Called at the end of every Cycle and once from
// NewEngine so a reader never observes a nil snapshot.
func (e *Engine) publishStatus() {
	e.status.Store(&engineStatus{
		position:    e.position(),
		rolling:     e.rolling,
		scheduleLen: e.Schedule.Len(),
	})
}

// position returns the BBT the engine currently publishes to the host.
func (e *Engine) position() BBT {
	return BBT{
		Bar: e.bar, Beat: e.beat, Tick: e.tick, BarStartTick: e.barStartTick,
		Tempo: e.tempo, BeatsPerBar: e.beatsPerBar, BeatType: e.beatType,
	}
}

// consumeTimebaseEvents applies every timebase event at or before the
// current (bar, clockInBar), advancing the cursor, per step 1 of the
// per-cycle algorithm.
func (e *Engine) consumeTimebaseEvents() (changed bool) {
	song := e.Manager.Song(e.ActiveSong)
	if song == nil || song.Timebase == nil {
		return false
	}
	clockInBar := (e.beat-1)*ClocksPerBeat + e.clockInBeat
	if !e.timebaseCursorValid {
		if first, ok := song.Timebase.First(); ok {
			e.timebaseCursor = first
			e.timebaseCursorValid = true
		} else {
			return false
		}
	}
	for e.timebaseCursorValid &&
		e.timebaseCursor.Bar <= uint16(e.bar) &&
		(uint16(e.bar) != e.timebaseCursor.Bar || e.timebaseCursor.ClockInBar <= clockInBar) {
		switch e.timebaseCursor.Type {
		case TimebaseTempo:
			e.tempo = float64(e.timebaseCursor.Value) / 100
			e.framesPerClock = framesPerClock(e.sampleRate, e.tempo)
			changed = true
		case TimebaseTimeSig:
			e.beatsPerBar, e.beatType = unpackTimeSig(e.timebaseCursor.Value)
			changed = true
		}
		// Step to the cursor's successor in map order, so a second event
		// of the other type at the same position is not skipped.
		next, ok := song.Timebase.NextAfter(e.timebaseCursor)
		for i, ev := range song.Timebase.events {
			if ev.Bar == e.timebaseCursor.Bar && ev.ClockInBar == e.timebaseCursor.ClockInBar && ev.Type == e.timebaseCursor.Type {
				ok = i+1 < len(song.Timebase.events)
				if ok {
					next = song.Timebase.events[i+1]
				}
				break
			}
		}
		if !ok {
			e.timebaseCursorValid = false
			break
		}
		e.timebaseCursor = next
	}
	return changed
}

// Stop halts the transport, flushing all-notes-off for every channel
// with notes currently sounding, and asks the host to stop too.
func (e *Engine) Stop() {
	e.rolling = false
	for ch := uint8(0); ch < 16; ch++ {
		for _, note := range e.Schedule.FlushChannel(ch) {
			e.Schedule.Insert(0, StatusNoteOff|(ch&0x0F), note, 0)
		}
	}
	for _, h := range e.Manager.Sequences() {
		if s := e.Manager.Sequence(h); s != nil {
			s.SetPlayState(StateStopped)
		}
	}
	if e.Host != nil {
		e.Host.Stop()
	}
}

// drainCommands applies every queued control-thread command, per the
// SPSC drain discipline of §5: always the first thing a cycle does.
func (e *Engine) drainCommands() {
	e.Commands.Drain(func(cmd ControlCommand) {
		switch cmd.Kind {
		case CmdSetPlayState:
			if s := e.Manager.Sequence(cmd.Sequence); s != nil {
				if cmd.State == StatePlaying || cmd.State == StateStarting {
					e.Manager.StopGroupExcept(s.Group, cmd.Sequence)
				}
				s.SetPlayState(cmd.State)
			}
		case CmdTrigger:
			if h, ok := e.Manager.Trigger(cmd.Note); ok {
				if s := e.Manager.Sequence(h); s != nil {
					e.Manager.StopGroupExcept(s.Group, h)
					newState := s.Trigger()
					if newState != StateStopped && e.Host != nil && e.Host.Query() == TransportStopped {
						e.Host.Start()
					}
				}
			}
		case CmdSetTempo:
			e.tempo = cmd.Value
			e.framesPerClock = framesPerClock(e.sampleRate, e.tempo)
		case CmdLocate:
			if e.Host != nil {
				e.Host.Locate(cmd.Frame)
			}
		case CmdTransportStart:
			if e.Host != nil {
				e.Host.Start()
			}
		case CmdTransportStop:
			e.Stop()
		case CmdSongSelect:
			e.ActiveSong = cmd.Song
			e.timebaseCursorValid = false
		case CmdRecordNote:
			e.recordStep(cmd.Sequence, cmd.Note)
		}
	})
}

// recordStep implements MIDI pass-through step programming: toggles the
// note at the sequence's scrub step on whichever pattern is placed there,
// then advances the step.
func (e *Engine) recordStep(seq SequenceHandle, note uint8) {
	s := e.Manager.Sequence(seq)
	if s == nil {
		return
	}
	pl, ok := s.placementAt(s.Step())
	if !ok {
		return
	}
	pattern := e.Manager.Pattern(pl.Pattern)
	if pattern == nil {
		return
	}
	step := (s.Step() - pl.ClockOffset) / pattern.ClocksPerStep()
	if start, covering := pattern.NoteStart(step, note); covering && start == step {
		pattern.RemoveNote(step, note)
	} else {
		pattern.AddNote(step, note, 100, 1)
	}
	s.SetStep(s.Step() + pattern.ClocksPerStep())
}

// Cycle runs one realtime period. It must never block, allocate on a hot
// path beyond the pre-sized schedule/queue buffers, or call into
// logging: this is the realtime thread's entire body.
func (e *Engine) Cycle(in CycleInput) CycleOutput {
	e.drainCommands()
	e.sampleRate = in.SampleRate
	e.rolling = in.State == TransportRolling

	changed := e.consumeTimebaseEvents()

	if in.Update || changed {
		if in.NextPosition.BBT != nil {
			e.adoptBBT(in.NextPosition.BBT)
		} else {
			e.syncFromFrame(in.NextPosition.Frame)
		}
		e.transportStartFrame = in.NextPosition.Frame
	}

	if e.rolling {
		e.walkClocks(in.NextPosition.Frame, in.FramesInPeriod)
	}

	e.publishStatus()
	return CycleOutput{Position: e.position()}
}

// walkClocks advances clock pulses inside [cycleStart, cycleStart+N),
// asking every active sequence to emit events for each pulse and
// inserting the results into the schedule at the pulse's absolute
// frame, per step 3 of the per-cycle algorithm.
func (e *Engine) walkClocks(cycleStart uint64, framesInPeriod uint32) {
	remaining := float64(framesInPeriod)
	offset := 0.0
	song := e.Manager.Song(e.ActiveSong)

	for e.framesToNextClock < remaining {
		offset += e.framesToNextClock
		remaining -= e.framesToNextClock
		frame := cycleStart + uint64(math.Round(offset))

		syncPulse := e.clockInBeat == 0 && e.beat == 1

		if song != nil {
			e.emitForClock(song, e.songClock, frame, syncPulse)
		}

		e.songClock++
		e.clockInBeat++
		if e.clockInBeat >= ClocksPerBeat {
			e.clockInBeat = 0
			e.beat++
			if e.beat > uint32(e.beatsPerBar) {
				e.beat = 1
				e.bar++
			}
		}

		if syncPulse && !e.Manager.AnyPlaying() {
			e.rolling = false
			e.Stop()
			if e.Host != nil {
				e.Host.Locate(0)
			}
		}

		e.framesToNextClock = e.framesPerClock
	}
	e.framesToNextClock -= remaining
}

// emitForClock asks every sequence bound into song's tracks to emit
// events for song clock c, inserting note-on/control events at frame and
// the matching note-off at the frame its duration resolves to.
func (e *Engine) emitForClock(song *Song, c uint64, frame uint64, syncPulse bool) {
	getPattern := e.Manager.Pattern
	for _, t := range song.Tracks {
		seq := e.Manager.Sequence(t.Sequence)
		if seq == nil {
			continue
		}
		events := seq.ClockTick(uint32(c), syncPulse, getPattern)
		for _, ev := range events {
			e.Schedule.Insert(frame, ev.Status, ev.Value1, ev.Value2)
			if ev.IsNoteOn {
				offFrame := frame + uint64(math.Round(float64(ev.NoteOffAt-uint32(c))*e.framesPerClock))
				offStatus := (ev.Status &^ 0xF0) | StatusNoteOff
				e.Schedule.Insert(offFrame, offStatus, ev.Note, 0)
			}
		}
	}
}

// HandleSystemRealtime processes an incoming MIDI system-realtime byte
// (and, for SPP, its two data bytes), per §4.6 / §6's status code table.
func (e *Engine) HandleSystemRealtime(status byte, data []byte) {
	switch status {
	case StatusStart, StatusContinue:
		e.Commands.Push(ControlCommand{Kind: CmdTransportStart})
	case StatusStop:
		e.Commands.Push(ControlCommand{Kind: CmdTransportStop})
	case StatusClock:
		// Clock pulses are generated by this core, not consumed from an
		// external clock master; ignored on input.
	case StatusSongPosition:
		if len(data) >= 2 {
			clocks := (uint32(data[0]) | uint32(data[1])<<7) * 6
			e.Commands.Push(ControlCommand{Kind: CmdLocate, Frame: uint64(clocks) * uint64(math.Round(e.framesPerClock))})
		}
	case StatusSongSelect:
		if len(data) >= 1 {
			if songs := e.Manager.sortedSongHandles(); int(data[0]) < len(songs) {
				e.Commands.Push(ControlCommand{Kind: CmdSongSelect, Song: songs[data[0]]})
			}
		}
	}
}

// HandleNoteInput dispatches an incoming note-on per §4.6: on the trigger
// channel it triggers a sequence (and may start transport); on the input
// channel, while stopped, it records a step instead.
func (e *Engine) HandleNoteInput(channel uint8, note, velocity uint8, triggerChannel, inputChannel uint8, inputSequence SequenceHandle) {
	switch {
	case channel == triggerChannel:
		e.Commands.Push(ControlCommand{Kind: CmdTrigger, Note: note, Velocity: velocity})
	case channel == inputChannel && e.Host != nil && e.Host.Query() == TransportStopped:
		e.Commands.Push(ControlCommand{Kind: CmdRecordNote, Sequence: inputSequence, Note: note, Velocity: velocity})
	}
}
