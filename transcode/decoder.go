// Package transcode decodes audio files into the mono float PCM buffers
// the analysis pipeline consumes.
package transcode

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/wav"

	"github.com/soniclabs/pitchline/logging"
)

// AudioData represents decoded audio data, down-mixed to mono and
// normalized to [-1, 1].
type AudioData struct {
	PCM        []float64     `json:"-"`
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"` // Channel count of the source, before down-mix
	Duration   time.Duration `json:"duration"`
}

// DecoderConfig holds decoder configuration.
type DecoderConfig struct {
	MaxDuration time.Duration `json:"max_duration"` // 0 means no limit
}

// DefaultDecoderConfig returns the default decoder configuration.
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{}
}

// DecodeWAVFile decodes a PCM WAV file from disk.
func DecodeWAVFile(path string, config *DecoderConfig) (*AudioData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	data, err := DecodeWAV(f, config)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return data, nil
}

// DecodeWAV decodes PCM WAV content from a reader. Multi-channel input is
// down-mixed by averaging the channels of each frame.
func DecodeWAV(r io.ReadSeeker, config *DecoderConfig) (*AudioData, error) {
	if config == nil {
		config = DefaultDecoderConfig()
	}

	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		if err := decoder.Err(); err != nil {
			return nil, fmt.Errorf("invalid WAV file: %w", err)
		}
		return nil, fmt.Errorf("invalid WAV file")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading PCM data: %w", err)
	}

	channels := buf.Format.NumChannels
	sampleRate := buf.Format.SampleRate
	if channels <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("malformed WAV format: %d channels at %d Hz", channels, sampleRate)
	}

	bitDepth := int(decoder.BitDepth)
	if bitDepth == 0 {
		bitDepth = 16
	}
	scale := float64(int64(1) << (bitDepth - 1))

	frames := len(buf.Data) / channels
	if config.MaxDuration > 0 {
		maxFrames := int(config.MaxDuration.Seconds() * float64(sampleRate))
		if frames > maxFrames {
			frames = maxFrames
		}
	}

	pcm := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for ch := 0; ch < channels; ch++ {
			sum += float64(buf.Data[i*channels+ch])
		}
		pcm[i] = sum / (float64(channels) * scale)
	}

	data := &AudioData{
		PCM:        pcm,
		SampleRate: sampleRate,
		Channels:   channels,
		Duration:   time.Duration(float64(frames) / float64(sampleRate) * float64(time.Second)),
	}

	logging.Debug("decoded WAV", logging.Fields{
		"sample_rate": sampleRate,
		"channels":    channels,
		"frames":      frames,
		"bit_depth":   bitDepth,
	})
	return data, nil
}
