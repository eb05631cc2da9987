package models

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument marks request validation failures. Handlers map it to a
// 400 response; everything else becomes a 500.
var ErrInvalidArgument = errors.New("invalid argument")

// ContinuationEndFullClip is the sentinel meaning "use the rest of the clip".
const ContinuationEndFullClip = -1

// Span arrangement strategies understood by the decoder.
const (
	SpanScoreProdStride1   = "prod-stride1"
	SpanScoreMaxNonoverlap = "max-nonoverlap"
)

// Variation count bounds per request.
const (
	MinVariations = 1
	MaxVariations = 4
)

// Checkpoints lists the published MAGNeT checkpoints this API can serve,
// in the order they are advertised.
var Checkpoints = []string{
	"facebook/magnet-small-10secs",
	"facebook/magnet-medium-10secs",
	"facebook/magnet-small-30secs",
	"facebook/magnet-medium-30secs",
	"facebook/audio-magnet-small",
	"facebook/audio-magnet-medium",
}

// GenerationRequest contains all parameters for a single prediction.
// Fields are request-scoped and immutable once bound.
type GenerationRequest struct {
	Prompt string `json:"prompt"`

	// InputAudio is an optional reference clip path. With Continuation set the
	// generated music continues the clip; otherwise it mimics the clip's melody.
	InputAudio   string `json:"input_audio,omitempty"`
	Continuation bool   `json:"continuation"`

	// Continuation window in seconds. ContinuationEnd of 0 or -1 defaults to
	// the end of the clip.
	ContinuationStart float64 `json:"continuation_start"`
	ContinuationEnd   float64 `json:"continuation_end"`

	// Duration of the generated audio in seconds.
	Duration int `json:"duration"`

	// Checkpoint names the pretrained weight set to generate with.
	Checkpoint string `json:"checkpoint"`

	// Variations is the number of waveforms to generate, 1 to 4.
	Variations int `json:"variations"`

	// Sampling parameters.
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	MaxCFG      float64 `json:"max_cfg"`
	MinCFG      float64 `json:"min_cfg"`

	// DecodingSteps holds the per-stage decoding step counts.
	DecodingSteps [4]int `json:"decoding_steps"`

	// SpanScore selects the span arrangement strategy.
	SpanScore string `json:"span_score"`
}

// DefaultGenerationRequest returns a request populated with the serving
// defaults. Callers overwrite fields from the incoming JSON body.
func DefaultGenerationRequest() GenerationRequest {
	return GenerationRequest{
		Prompt:          "80s electronic track with melodic synthesizers, catchy beat and groovy bass",
		Duration:        8,
		ContinuationEnd: ContinuationEndFullClip,
		Checkpoint:      "facebook/magnet-small-10secs",
		Variations:      3,
		Temperature:     3.0,
		TopP:            0.9,
		MaxCFG:          10.0,
		MinCFG:          1.0,
		DecodingSteps:   [4]int{20, 10, 10, 10},
		SpanScore:       SpanScoreProdStride1,
	}
}

// Validate checks request bounds before any inference work is scheduled.
func (r *GenerationRequest) Validate() error {
	if r.Variations < MinVariations || r.Variations > MaxVariations {
		return fmt.Errorf("%w: variations must be between %d and %d, got %d",
			ErrInvalidArgument, MinVariations, MaxVariations, r.Variations)
	}
	if r.TopP < 0 || r.TopP > 1 {
		return fmt.Errorf("%w: top_p must be between 0 and 1, got %g", ErrInvalidArgument, r.TopP)
	}
	if r.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %d", ErrInvalidArgument, r.Duration)
	}
	if r.ContinuationStart < 0 {
		return fmt.Errorf("%w: continuation_start must not be negative, got %g",
			ErrInvalidArgument, r.ContinuationStart)
	}
	if r.ContinuationEnd < 0 && r.ContinuationEnd != ContinuationEndFullClip {
		return fmt.Errorf("%w: continuation_end must not be negative, got %g",
			ErrInvalidArgument, r.ContinuationEnd)
	}
	if r.ContinuationEndSpecified() && r.ContinuationStart > r.ContinuationEnd {
		return fmt.Errorf("%w: continuation_start must be less than or equal to continuation_end",
			ErrInvalidArgument)
	}
	if !validCheckpoints[r.Checkpoint] {
		return fmt.Errorf("%w: unknown checkpoint %q", ErrInvalidArgument, r.Checkpoint)
	}
	if r.SpanScore != SpanScoreProdStride1 && r.SpanScore != SpanScoreMaxNonoverlap {
		return fmt.Errorf("%w: span_score must be %q or %q",
			ErrInvalidArgument, SpanScoreProdStride1, SpanScoreMaxNonoverlap)
	}
	return nil
}

// ContinuationEndSpecified reports whether the request carries an explicit
// continuation end time. 0 and -1 both mean "to the end of the clip".
func (r *GenerationRequest) ContinuationEndSpecified() bool {
	return r.ContinuationEnd != ContinuationEndFullClip && r.ContinuationEnd != 0
}

var validCheckpoints = func() map[string]bool {
	m := make(map[string]bool, len(Checkpoints))
	for _, c := range Checkpoints {
		m[c] = true
	}
	return m
}()

// PredictionResponse is returned by the prediction endpoint: one output file
// per requested variation, in variation order.
type PredictionResponse struct {
	Checkpoint string   `json:"checkpoint"`
	Paths      []string `json:"paths"`
	DurationMs int64    `json:"duration_ms"`
}
