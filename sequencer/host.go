package sequencer

// TransportState is the host transport's rolling/stopped state, as
// reported to and requested of the host.
type TransportState uint8

const (
	TransportStopped TransportState = iota
	TransportRolling
)

// BBT is a bar/beat/tick position with the tempo and time signature in
// effect there, as exchanged with the host transport API.
type BBT struct {
	Bar          uint32
	Beat         uint32
	Tick         uint32
	BarStartTick float64
	Tempo        float64
	BeatsPerBar  uint8
	BeatType     uint8
}

// HostPosition describes the next cycle's starting position as the host
// transport API presents it: a frame, and optionally a caller-supplied
// BBT (e.g. after a host-side relocate) the driver should adopt instead
// of deriving BBT from the frame.
type HostPosition struct {
	Frame uint64
	BBT   *BBT // nil unless the host is supplying an authoritative BBT
}

// CycleInput is what the host transport API hands the core once per
// realtime cycle.
type CycleInput struct {
	State          TransportState
	FramesInPeriod uint32
	NextPosition   HostPosition
	Update         bool // host requests a reposition/BBT recompute
	SampleRate     float64
}

// CycleOutput is what the core hands back: the populated position for
// the start of the next cycle.
type CycleOutput struct {
	Position BBT
}

// HostControl is the subset of the host transport API the core may call
// back into: requesting a relocate, or starting/stopping transport (used
// when the core auto-stops at a sync pulse with nothing left playing, or
// when a trigger note should also start playback).
type HostControl interface {
	Locate(frame uint64)
	Start()
	Stop()
	Query() TransportState
}
