package sequencer

// MIDI status bytes observed or emitted by the core. Channel voice messages
// are given here with channel nibble zeroed; callers OR in the channel.
const (
	StatusNoteOff       byte = 0x80
	StatusNoteOn        byte = 0x90
	StatusControlChange byte = 0xB0
	StatusProgramChange byte = 0xC0
	StatusSongPosition  byte = 0xF2
	StatusSongSelect    byte = 0xF3
	StatusClock         byte = 0xF8
	StatusStart         byte = 0xFA
	StatusContinue      byte = 0xFB
	StatusStop          byte = 0xFC
)

// Command identifies the MIDI status class a StepEvent encodes, independent
// of channel. Pattern data never carries a channel; that's Sequence's job.
type Command uint8

const (
	CommandNoteOn  Command = Command(StatusNoteOn)
	CommandProgram Command = Command(StatusProgramChange)
	CommandControl Command = Command(StatusControlChange)
)

// NoPC is the sentinel returned by Pattern.ProgramChange when no program
// change event sits at the queried step.
const NoPC uint8 = 0xFF

// TicksPerBeat is the design-time resolution of a beat, independent of the
// MIDI clock's coarser 24-per-beat resolution.
const TicksPerBeat = 1920

// ClocksPerBeat is the MIDI protocol's clock pulses per beat.
const ClocksPerBeat = 24
