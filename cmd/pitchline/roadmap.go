package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/soniclabs/pitchline/roadmap"
	"github.com/soniclabs/pitchline/transcode"
)

var errExpectedOneFile = errors.New("expected exactly one argument: path to a WAV file")

func roadmapCommand() *cli.Command {
	return &cli.Command{
		Name:      "roadmap",
		Usage:     "Analyze a WAV file into a per-segment note roadmap",
		ArgsUsage: "<file.wav>",
		Flags: []cli.Flag{
			&cli.FloatFlag{
				Name:    "segment-seconds",
				Aliases: []string{"s"},
				Usage:   "Duration of each voting segment in seconds",
				Value:   5.0,
			},
			&cli.FloatFlag{
				Name:  "max-seconds",
				Usage: "Maximum audio duration to process; longer input is truncated",
				Value: 300.0,
			},
			&cli.FloatFlag{
				Name:  "silence-threshold",
				Usage: "Silence gate in dBFS; windows below it cast no votes",
				Value: -40.0,
			},
			&cli.FloatFlag{
				Name:  "min-confidence",
				Usage: "Minimum estimate confidence for a window to vote",
				Value: 0.85,
			},
			&cli.FloatFlag{
				Name:  "a4",
				Usage: "Reference frequency for A4 in Hz",
				Value: 440.0,
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: console, json",
				Value:   "console",
			},
			verboseFlag(),
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return fmt.Errorf("%w: got %d", errExpectedOneFile, cmd.NArg())
			}
			applyVerbosity(cmd)

			audio, err := transcode.DecodeWAVFile(cmd.Args().First(), transcode.DefaultDecoderConfig())
			if err != nil {
				return fmt.Errorf("failed to decode %q: %w", cmd.Args().First(), err)
			}

			params := roadmap.DefaultParams(float64(audio.SampleRate))
			params.SegmentSeconds = cmd.Float("segment-seconds")
			params.MaxSeconds = cmd.Float("max-seconds")
			params.SilenceThresholdDB = cmd.Float("silence-threshold")
			params.MinConfidence = cmd.Float("min-confidence")
			params.A4ReferenceHz = cmd.Float("a4")

			analyzer, err := roadmap.NewAnalyzer(params)
			if err != nil {
				return err
			}
			result := analyzer.Analyze(audio.PCM)

			switch cmd.String("format") {
			case "json":
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			case "console":
				printRoadmap(result)
				return nil
			default:
				return fmt.Errorf("unknown output format %q", cmd.String("format"))
			}
		},
	}
}

func printRoadmap(result roadmap.Result) {
	fmt.Printf("Duration: %.1fs, segments: %d\n", result.TotalDurationSec, len(result.Segments))
	for _, seg := range result.Segments {
		label := "-"
		if seg.HasNote {
			label = fmt.Sprintf("%-4s (%.0f%%)", seg.FullName, seg.Confidence*100)
		}
		fmt.Printf("  %6.1fs - %6.1fs  %s\n", seg.StartSec, seg.EndSec, label)
	}
	if result.DominantNote != "" {
		fmt.Printf("Dominant note: %s\n", result.DominantNote)
	}
}
