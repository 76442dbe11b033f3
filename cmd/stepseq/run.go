package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rbwalton/stepseq/internal/config"
	"github.com/rbwalton/stepseq/internal/debug"
	"github.com/rbwalton/stepseq/internal/hostsim"
	"github.com/rbwalton/stepseq/internal/midiio"
	"github.com/rbwalton/stepseq/internal/statusapi"
	"github.com/rbwalton/stepseq/sequencer"
)

var (
	runOutputPort string
	runStatusAddr string
	runSampleRate float64
	runPeriod     uint32
)

func init() {
	runCmd.Flags().StringVar(&runOutputPort, "output", "", "MIDI output port name (default: first autoconnect preference, else none)")
	runCmd.Flags().StringVar(&runStatusAddr, "status-addr", ":7890", "address to serve the status API on")
	runCmd.Flags().Float64Var(&runSampleRate, "sample-rate", 48000, "simulated host sample rate")
	runCmd.Flags().Uint32Var(&runPeriod, "period", 256, "simulated host period, in frames")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the realtime engine against a free-running host-clock simulator",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func run() error {
	if err := debug.Enable(); err != nil {
		return err
	}
	defer debug.Disable()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	manager := sequencer.NewPatternManager()
	engine := sequencer.NewEngine(manager, runSampleRate, cfg.Transport.Tempo, uint8(cfg.Transport.BeatsPerBar), uint8(cfg.Transport.BeatType))

	var send func(status, v1, v2 byte) bool
	outputName := runOutputPort
	if outputName == "" {
		if outs := cfg.AutoConnectOutputs(); len(outs) > 0 {
			outputName = outs[0].Name
		}
	}
	if outputName != "" {
		s, closeFn, err := midiio.OpenOutput(outputName)
		if err != nil {
			debug.Log("midi", "could not open output %q: %v", outputName, err)
		} else {
			send = s
			defer closeFn()
		}
	}

	clock := hostsim.New(engine, runSampleRate, runPeriod, func(frame uint64, status, v1, v2 byte) bool {
		if send == nil {
			return true
		}
		return send(status, v1, v2)
	})
	go clock.Run()
	defer clock.Close()

	go func() {
		if err := statusapi.Serve(runStatusAddr, engine); err != nil {
			debug.Log("statusapi", "serve error: %v", err)
		}
	}()

	fmt.Printf("stepseq running: %s sample rate, %d-frame period, status on %s\n", fmtHz(runSampleRate), runPeriod, runStatusAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	return nil
}

func fmtHz(sr float64) string {
	return fmt.Sprintf("%.0fHz", sr)
}
