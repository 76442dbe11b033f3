package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "stepseq",
	Short: "Realtime step sequencer transport and scheduler core",
	Long:  `stepseq drives a pattern/sequence/song data model against a sample-accurate transport and emits MIDI.`,
}

// Execute runs the root command, exiting the process on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
