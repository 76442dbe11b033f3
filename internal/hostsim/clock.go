// Package hostsim drives sequencer.Engine.Cycle on a fixed-period ticker,
// standing in for the JACK/CoreMIDI timebase-master host this module has
// no access to. It synthesizes the {state, frames_in_period,
// next_position, update} host contract the engine expects every cycle.
package hostsim

import (
	"runtime"
	"sync"
	"time"

	"github.com/rbwalton/stepseq/sequencer"
)

// Clock free-runs sequencer.Engine.Cycle once per period, computing the
// period's wall-clock duration from sampleRate and periodFrames, and implements
// sequencer.HostControl so the engine can request relocate/start/stop.
type Clock struct {
	engine      *sequencer.Engine
	sampleRate  float64
	periodFrames uint32

	mu       sync.Mutex
	frame    uint64
	rolling  bool
	relocate *uint64

	onMIDI func(frame uint64, status, value1, value2 byte) bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New returns a Clock driving engine at the given sample rate, N frames
// per period. onMIDI receives every message the engine drains, in order;
// it should return false if the output port's buffer is momentarily full.
func New(engine *sequencer.Engine, sampleRate float64, periodFrames uint32, onMIDI func(frame uint64, status, value1, value2 byte) bool) *Clock {
	c := &Clock{
		engine:       engine,
		sampleRate:   sampleRate,
		periodFrames: periodFrames,
		onMIDI:       onMIDI,
		stopCh:       make(chan struct{}),
	}
	engine.Host = c
	return c
}

// Locate implements sequencer.HostControl.
func (c *Clock) Locate(frame uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := frame
	c.relocate = &f
}

// Start implements sequencer.HostControl.
func (c *Clock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rolling = true
}

// Stop implements sequencer.HostControl.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rolling = false
}

// Query implements sequencer.HostControl.
func (c *Clock) Query() sequencer.TransportState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rolling {
		return sequencer.TransportRolling
	}
	return sequencer.TransportStopped
}

// Run starts the ticker loop on its own OS thread, matching the
// realtime-callback discipline a real host would impose. It blocks until
// Close is called.
func (c *Clock) Run() {
	c.wg.Add(1)
	defer c.wg.Done()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	period := time.Duration(float64(c.periodFrames) / c.sampleRate * float64(time.Second))
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

// Close stops the ticker loop and waits for it to exit.
func (c *Clock) Close() {
	close(c.stopCh)
	c.wg.Wait()
}

func (c *Clock) tick() {
	c.mu.Lock()
	state := sequencer.TransportStopped
	if c.rolling {
		state = sequencer.TransportRolling
	}
	pos := sequencer.HostPosition{Frame: c.frame}
	update := false
	if c.relocate != nil {
		pos.Frame = *c.relocate
		c.frame = *c.relocate
		c.relocate = nil
		update = true
	}
	c.mu.Unlock()

	out := c.engine.Cycle(sequencer.CycleInput{
		State:          state,
		FramesInPeriod: c.periodFrames,
		NextPosition:   pos,
		Update:         update,
		SampleRate:     c.sampleRate,
	})
	_ = out

	c.engine.Schedule.DrainThrough(pos.Frame, pos.Frame+uint64(c.periodFrames), func(frame uint64, status, v1, v2 byte) bool {
		if c.onMIDI == nil {
			return true
		}
		return c.onMIDI(frame, status, v1, v2)
	})

	c.mu.Lock()
	c.frame += uint64(c.periodFrames)
	c.mu.Unlock()
}
