package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/soniclabs/pitchline/logging"
)

func main() {
	ctx := context.Background()

	appl := &cli.Command{
		Name:  "pitchline",
		Usage: "Monophonic pitch detection for WAV files",
		Commands: []*cli.Command{
			roadmapCommand(),
			liveCommand(),
		},
	}

	if err := appl.Run(ctx, os.Args); err != nil {
		logging.Error(err, "command failed")
		os.Exit(1)
	}
}

func applyVerbosity(cmd *cli.Command) {
	if cmd.Bool("verbose") {
		logging.SetLevel(logging.DebugLevel)
	}
}

func verboseFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Enable debug logging",
	}
}
