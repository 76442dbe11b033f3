// Package midiio discovers and opens MIDI input/output ports, and
// hot-plug rescans for them so the control surface can reattach without
// restarting the process.
package midiio

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rbwalton/stepseq/internal/debug"
	"github.com/rbwalton/stepseq/sequencer"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // autoregisters the system MIDI driver
)

// PortEventType distinguishes a port appearing from a port disappearing.
type PortEventType int

const (
	PortConnected PortEventType = iota
	PortDisconnected
)

// PortEvent is emitted by Manager.Events when a port appears or
// disappears during a hot-plug rescan.
type PortEvent struct {
	Type PortEventType
	Name string
	IsInput bool
}

// Manager tracks which MIDI ports are currently visible to the system,
// polling for hot-plug changes the way CoreMIDI/ALSA surfaces them — no
// OS-level plug/unplug callback is portably available through gomidi/v2.
type Manager struct {
	mu       sync.RWMutex
	inNames  map[string]bool
	outNames map[string]bool
	events   chan PortEvent
	pollRate time.Duration
}

// New returns a Manager that rescans once per pollRate (1s if zero).
func New(pollRate time.Duration) *Manager {
	if pollRate <= 0 {
		pollRate = time.Second
	}
	return &Manager{
		inNames:  make(map[string]bool),
		outNames: make(map[string]bool),
		events:   make(chan PortEvent, 16),
		pollRate: pollRate,
	}
}

// Events returns the channel of port connect/disconnect events.
func (m *Manager) Events() <-chan PortEvent { return m.events }

// InputPorts returns the currently visible input port names.
func (m *Manager) InputPorts() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.inNames))
	for n := range m.inNames {
		out = append(out, n)
	}
	return out
}

// OutputPorts returns the currently visible output port names.
func (m *Manager) OutputPorts() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.outNames))
	for n := range m.outNames {
		out = append(out, n)
	}
	return out
}

// Run starts the rescan loop, blocking until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.pollRate)
	defer ticker.Stop()

	m.scan()
	for {
		select {
		case <-ctx.Done():
			close(m.events)
			return
		case <-ticker.C:
			m.scan()
		}
	}
}

func (m *Manager) scan() {
	// GetInPorts/GetOutPorts can hang against a stuck CoreMIDI server;
	// bound the wait so a hung host driver doesn't wedge the rescan loop.
	type result struct {
		ins  []drivers.In
		outs []drivers.Out
	}
	ch := make(chan result, 1)
	go func() {
		ch <- result{ins: gomidi.GetInPorts(), outs: gomidi.GetOutPorts()}
	}()

	var r result
	select {
	case r = <-ch:
	case <-time.After(3 * time.Second):
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Every rescan recomputes both port lists from scratch; on a quiet
	// system nearly all of them produce no events, so this is logged
	// every 20th poll rather than on every one.
	debug.LogEvery(20, "midiio", "scan: %d in, %d out", len(r.ins), len(r.outs))

	seen := make(map[string]bool, len(r.ins))
	for _, p := range r.ins {
		name := p.String()
		seen[name] = true
		if !m.inNames[name] {
			m.inNames[name] = true
			m.events <- PortEvent{Type: PortConnected, Name: name, IsInput: true}
		}
	}
	for name := range m.inNames {
		if !seen[name] {
			delete(m.inNames, name)
			m.events <- PortEvent{Type: PortDisconnected, Name: name, IsInput: true}
		}
	}

	seenOut := make(map[string]bool, len(r.outs))
	for _, p := range r.outs {
		name := p.String()
		seenOut[name] = true
		if !m.outNames[name] {
			m.outNames[name] = true
			m.events <- PortEvent{Type: PortConnected, Name: name, IsInput: false}
		}
	}
	for name := range m.outNames {
		if !seenOut[name] {
			delete(m.outNames, name)
			m.events <- PortEvent{Type: PortDisconnected, Name: name, IsInput: false}
		}
	}
}

// OpenInput opens the named input port and calls onMsg for every message
// received, passing each message's raw bytes through undecoded.
func OpenInput(name string, onMsg func(data []byte)) (stop func(), err error) {
	in, err := findIn(name)
	if err != nil {
		return nil, err
	}
	stopFn, err := gomidi.ListenTo(in, func(msg gomidi.Message, timestampms int32) {
		onMsg(msg.Bytes())
	})
	if err != nil {
		return nil, errors.Wrap(err, "listen on midi input")
	}
	return stopFn, nil
}

// OpenOutput opens the named output port and returns a sender usable from
// hostsim.Clock's onMIDI callback. status carries the channel nibble
// already OR'd in for channel voice messages.
func OpenOutput(name string) (send func(status, value1, value2 byte) bool, closeFn func(), err error) {
	out, err := findOut(name)
	if err != nil {
		return nil, nil, err
	}
	sender, err := gomidi.SendTo(out)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open midi output")
	}
	return func(status, value1, value2 byte) bool {
		return sender(toMessage(status, value1, value2)) == nil
	}, func() { out.Close() }, nil
}

// toMessage builds the gomidi v2 message matching a status byte, using
// the library's typed constructors for channel voice and system
// realtime/common statuses and falling back to a raw three-byte message
// for any other status byte.
func toMessage(status, value1, value2 byte) gomidi.Message {
	channel := status & 0x0F
	switch status & 0xF0 {
	case sequencer.StatusNoteOn:
		return gomidi.NoteOn(channel, value1, value2)
	case sequencer.StatusNoteOff:
		return gomidi.NoteOff(channel, value1)
	case sequencer.StatusControlChange:
		return gomidi.ControlChange(channel, value1, value2)
	case sequencer.StatusProgramChange:
		return gomidi.ProgramChange(channel, value1)
	}
	switch status {
	case sequencer.StatusStart:
		return gomidi.Start()
	case sequencer.StatusStop:
		return gomidi.Stop()
	case sequencer.StatusContinue:
		return gomidi.Continue()
	case sequencer.StatusClock:
		return gomidi.TimingClock()
	case sequencer.StatusSongSelect:
		return gomidi.SongSelect(value1)
	case sequencer.StatusSongPosition:
		return gomidi.SPP(uint16(value1) | uint16(value2)<<7)
	}
	return gomidi.Message([]byte{status, value1, value2})
}

func findIn(name string) (drivers.In, error) {
	for _, p := range gomidi.GetInPorts() {
		if strings.EqualFold(p.String(), name) {
			return p, nil
		}
	}
	return nil, errors.Errorf("midi input port %q not found", name)
}

func findOut(name string) (drivers.Out, error) {
	for _, p := range gomidi.GetOutPorts() {
		if strings.EqualFold(p.String(), name) {
			return p, nil
		}
	}
	return nil, errors.Errorf("midi output port %q not found", name)
}
