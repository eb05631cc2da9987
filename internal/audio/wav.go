package audio

import (
	"fmt"
	"math"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	outputBitDepth = 16
	pcmFormat      = 1

	// Encoding targets for the "loudness" write strategy: normalize to a
	// fixed RMS level, then soft-limit the peaks.
	targetRMSDb = -14.0
	peakCeiling = 0.99
)

// Waveform is a decoded audio buffer: interleaved samples in [-1, 1].
type Waveform struct {
	Samples    []float64
	SampleRate int
	Channels   int
}

// DurationSeconds returns the clip length in seconds.
func (w *Waveform) DurationSeconds() float64 {
	if w.SampleRate == 0 || w.Channels == 0 {
		return 0
	}
	return float64(len(w.Samples)/w.Channels) / float64(w.SampleRate)
}

// Frames returns the number of sample frames (samples per channel).
func (w *Waveform) Frames() int {
	if w.Channels == 0 {
		return 0
	}
	return len(w.Samples) / w.Channels
}

// Slice returns the [start, end) time window of the clip in seconds. The
// window is clamped to the clip bounds.
func (w *Waveform) Slice(start, end float64) (*Waveform, error) {
	if start < 0 || end < 0 {
		return nil, fmt.Errorf("slice window must not be negative: [%g, %g)", start, end)
	}
	if start > end {
		return nil, fmt.Errorf("slice start %g is after end %g", start, end)
	}

	startFrame := int(float64(w.SampleRate) * start)
	endFrame := int(float64(w.SampleRate) * end)
	if frames := w.Frames(); endFrame > frames {
		endFrame = frames
	}
	if startFrame > endFrame {
		startFrame = endFrame
	}

	return &Waveform{
		Samples:    w.Samples[startFrame*w.Channels : endFrame*w.Channels],
		SampleRate: w.SampleRate,
		Channels:   w.Channels,
	}, nil
}

// DecodeWAV reads a WAV file into a Waveform. Zero-length or malformed clips
// are rejected rather than decoded into an empty buffer.
func DecodeWAV(path string) (*Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if buf.Format == nil || buf.Format.SampleRate == 0 || buf.Format.NumChannels == 0 {
		return nil, fmt.Errorf("audio file %s has no usable format", path)
	}
	if len(buf.Data) == 0 {
		return nil, fmt.Errorf("audio file %s contains no samples", path)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = outputBitDepth
	}
	scale := float64(int(1) << (bitDepth - 1))

	samples := make([]float64, len(buf.Data))
	for i, s := range buf.Data {
		samples[i] = float64(s) / scale
	}

	return &Waveform{
		Samples:    samples,
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
	}, nil
}

// EncodeWAV writes the waveform as 16-bit PCM without any level processing.
// Used for conditioning clips handed to the inference runner, which must see
// the reference audio untouched.
func EncodeWAV(path string, w *Waveform) error {
	return encodePCM(path, w, w.Samples)
}

// EncodeLoudnessWAV writes the waveform as 16-bit PCM, loudness-normalized
// with soft-knee peak compression (the audiocraft "loudness" write strategy).
func EncodeLoudnessWAV(path string, w *Waveform) error {
	if len(w.Samples) == 0 {
		return fmt.Errorf("refusing to encode empty waveform to %s", path)
	}
	return encodePCM(path, w, normalizeLoudness(w.Samples))
}

func encodePCM(path string, w *Waveform, samples []float64) error {
	if len(samples) == 0 {
		return fmt.Errorf("refusing to encode empty waveform to %s", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	encoder := wav.NewEncoder(f, w.SampleRate, outputBitDepth, w.Channels, pcmFormat)

	data := make([]int, len(samples))
	half := float64(int(1)<<(outputBitDepth-1)) - 1
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		data[i] = int(math.Round(s * half))
	}

	buf := &gaudio.IntBuffer{
		Format: &gaudio.Format{
			NumChannels: w.Channels,
			SampleRate:  w.SampleRate,
		},
		Data:           data,
		SourceBitDepth: outputBitDepth,
	}

	if err := encoder.Write(buf); err != nil {
		return fmt.Errorf("failed to write samples: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", path, err)
	}
	return nil
}

// normalizeLoudness gains the signal to the target RMS level and runs a tanh
// soft limiter so peaks stay under the ceiling.
func normalizeLoudness(samples []float64) []float64 {
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	rms := math.Sqrt(sum / float64(len(samples)))

	gain := 1.0
	if rms > 0 {
		gain = math.Pow(10, targetRMSDb/20) / rms
	}

	out := make([]float64, len(samples))
	for i, s := range samples {
		v := s * gain
		// Soft limiter keeps transients from hard-clipping after the gain.
		if v > peakCeiling || v < -peakCeiling {
			v = peakCeiling * math.Tanh(v/peakCeiling)
		}
		out[i] = v
	}
	return out
}
