package main

import (
	"github.com/spf13/cobra"

	"github.com/foxden/sourcewatch/internal/config"
)

const versionString = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "sourcewatch-worker",
	Short:   "Background worker that annotates chat-platform posts with their original sources.",
	Version: versionString,
}

func init() {
	rootCmd.AddCommand(runCmd)
	config.SetFlagsFromConfig(runCmd)
}
