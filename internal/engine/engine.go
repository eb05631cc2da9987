package engine

import (
	"context"

	"github.com/Conceptual-Machines/magnet-api/internal/audio"
)

// Span arrangement values understood by the MAGNeT decoder.
const (
	SpanStride1    = "stride1"
	SpanNonoverlap = "nonoverlap"
)

// Params carries the generation parameters applied to the model before a
// generation call. Values are passed through to the runner unmodified.
type Params struct {
	Duration        int
	Temperature     float64
	TopP            float64
	MinCFG          float64
	MaxCFG          float64
	DecodingSteps   [4]int
	SpanArrangement string // "stride1" or "nonoverlap"
}

// Job is a single generation invocation: one waveform is produced per
// description. At most one of ContinuationClip/MelodyClip is set.
type Job struct {
	Descriptions []string
	Params       Params

	// ContinuationClip is the conditioning prefix the output must extend.
	ContinuationClip *audio.Waveform

	// MelodyClip conditions generation on the clip's melodic content without
	// continuing it.
	MelodyClip *audio.Waveform
}

// Engine binds one loaded checkpoint of the external generative-audio model.
type Engine interface {
	// Checkpoint returns the name of the loaded weight set.
	Checkpoint() string

	// Generate produces one waveform per description in Job.Descriptions.
	Generate(ctx context.Context, job Job) ([]*audio.Waveform, error)

	// Close releases the loaded model.
	Close() error
}
