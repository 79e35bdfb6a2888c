package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/soniclabs/pitchline/live"
	"github.com/soniclabs/pitchline/transcode"
)

func liveCommand() *cli.Command {
	return &cli.Command{
		Name:      "live",
		Usage:     "Replay a WAV file through the live detection pipeline, printing note transitions",
		ArgsUsage: "<file.wav>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "chunk-size",
				Aliases: []string{"c"},
				Usage:   "Samples fed per chunk, simulating an audio callback",
				Value:   256,
			},
			&cli.FloatFlag{
				Name:  "silence-threshold",
				Usage: "Silence gate in dBFS",
				Value: -40.0,
			},
			&cli.FloatFlag{
				Name:  "confidence-enter",
				Usage: "Confidence required to start showing a note",
				Value: 0.85,
			},
			&cli.FloatFlag{
				Name:  "confidence-exit",
				Usage: "Confidence below which a showing note is cleared",
				Value: 0.75,
			},
			&cli.FloatFlag{
				Name:  "a4",
				Usage: "Reference frequency for A4 in Hz",
				Value: 440.0,
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

			params := live.DefaultSessionParams(float64(audio.SampleRate))
			params.SilenceThresholdDB = cmd.Float("silence-threshold")
			params.ConfidenceEnter = cmd.Float("confidence-enter")
			params.ConfidenceExit = cmd.Float("confidence-exit")
			params.A4ReferenceHz = cmd.Float("a4")

			session, err := live.NewSession(params)
			if err != nil {
				return err
			}

			replay(session, audio.PCM, int(cmd.Int("chunk-size")), float64(audio.SampleRate))

			stats := session.Stats()
			fmt.Printf("Windows: %d, published: %d, rejected: %d\n",
				stats.WindowsProcessed, stats.Published, stats.Rejected)
			return nil
		},
	}
}

// replay feeds the decoded buffer through the session in callback-sized
// chunks and prints a line whenever the displayed note changes.
func replay(session *live.Session, pcm []float64, chunkSize int, sampleRate float64) {
	showing := ""
	for offset := 0; offset < len(pcm); offset += chunkSize {
		end := offset + chunkSize
		if end > len(pcm) {
			end = len(pcm)
		}
		session.OnChunk(pcm[offset:end])

		est, ok := session.Latest()
		current := ""
		if ok {
			current = est.FullName
		}
		if current == showing {
			continue
		}
		atSec := float64(end) / sampleRate
		if current == "" {
			fmt.Printf("  %6.2fs  (silence)\n", atSec)
		} else {
			fmt.Printf("  %6.2fs  %-4s %+d cents  %.1f Hz  conf %.2f\n",
				atSec, current, est.Cents, est.Frequency, est.Confidence)
		}
		showing = current
	}
}
