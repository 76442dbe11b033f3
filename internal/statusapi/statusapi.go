// Package statusapi exposes a read-only HTTP diagnostics endpoint over
// the running engine: current BBT, tempo, transport state and schedule
// depth. It never mutates the data model; edits remain the control
// surface's job, out of scope here.
package statusapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/rbwalton/stepseq/sequencer"
)

// Status is the JSON body served at GET /status.
type Status struct {
	Bar          uint32  `json:"bar"`
	Beat         uint32  `json:"beat"`
	Tick         uint32  `json:"tick"`
	Tempo        float64 `json:"tempo"`
	BeatsPerBar  uint8   `json:"beatsPerBar"`
	BeatType     uint8   `json:"beatType"`
	Rolling      bool    `json:"rolling"`
	ScheduleSize int     `json:"scheduleSize"`
}

// Source supplies the values a Status snapshot reports. sequencer.Engine
// satisfies it on its own, without statusapi needing to reach into its
// internals.
type Source interface {
	CurrentPosition() sequencer.BBT
	Rolling() bool
	ScheduleLen() int
}

// Router builds the status API's router, wrapped in permissive CORS so a
// browser-based control surface on a different origin can poll it.
func Router(src Source) http.Handler {
	r := mux.NewRouter().StrictSlash(true)
	r.HandleFunc("/status", func(w http.ResponseWriter, req *http.Request) {
		pos := src.CurrentPosition()
		json.NewEncoder(w).Encode(Status{
			Bar: pos.Bar, Beat: pos.Beat, Tick: pos.Tick,
			Tempo: pos.Tempo, BeatsPerBar: pos.BeatsPerBar, BeatType: pos.BeatType,
			Rolling: src.Rolling(), ScheduleSize: src.ScheduleLen(),
		})
	}).Methods(http.MethodGet)

	return cors.AllowAll().Handler(r)
}

// Serve starts the status API listening on addr. Blocks until the server
// stops or errors.
func Serve(addr string, src Source) error {
	return http.ListenAndServe(addr, Router(src))
}
