package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Conceptual-Machines/magnet-api/internal/audio"
	"github.com/Conceptual-Machines/magnet-api/internal/engine"
	"github.com/Conceptual-Machines/magnet-api/internal/logger"
	"github.com/Conceptual-Machines/magnet-api/internal/models"
)

// Predictor is the prediction shim: it validates a request, resolves the
// checkpoint, conditions generation on an optional reference clip, and writes
// loudness-normalized output files.
//
// Loaded-checkpoint and output-directory state live on this struct rather
// than in package globals. Calls are still one-at-a-time: the serving harness
// owns queuing and isolation.
type Predictor struct {
	loader    *engine.Loader
	outputDir string
}

func NewPredictor(loader *engine.Loader, outputDir string) *Predictor {
	return &Predictor{
		loader:    loader,
		outputDir: outputDir,
	}
}

// Predict runs one generation request and returns the output file paths in
// variation order. The fixed output directory is wiped and repopulated on
// every call, so paths from earlier requests stop being valid.
func (p *Predictor) Predict(ctx context.Context, req *models.GenerationRequest) ([]string, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	eng, err := p.loader.Load(req.Checkpoint)
	if err != nil {
		return nil, err
	}

	job, err := p.buildJob(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	waveforms, err := eng.Generate(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}
	if len(waveforms) != req.Variations {
		return nil, fmt.Errorf("expected %d waveforms, runner produced %d", req.Variations, len(waveforms))
	}

	paths, err := p.writeOutputs(waveforms)
	if err != nil {
		return nil, err
	}

	logger.LogPredictionRequest(ctx, req.Checkpoint, time.Since(start), req.Variations, nil)
	return paths, nil
}

// buildJob maps the request onto a generation job: the reference clip becomes
// a continuation prefix or melody guidance, and sampling parameters pass
// through unmodified.
func (p *Predictor) buildJob(req *models.GenerationRequest) (engine.Job, error) {
	descriptions := make([]string, req.Variations)
	for i := range descriptions {
		descriptions[i] = req.Prompt
	}

	job := engine.Job{
		Descriptions: descriptions,
		Params: engine.Params{
			Duration:        req.Duration,
			Temperature:     req.Temperature,
			TopP:            req.TopP,
			MinCFG:          req.MinCFG,
			MaxCFG:          req.MaxCFG,
			DecodingSteps:   req.DecodingSteps,
			SpanArrangement: spanArrangement(req.SpanScore),
		},
	}

	if req.InputAudio == "" {
		return job, nil
	}

	clip, err := audio.DecodeWAV(req.InputAudio)
	if err != nil {
		return engine.Job{}, fmt.Errorf("%w: reference audio: %v", models.ErrInvalidArgument, err)
	}

	if !req.Continuation {
		job.MelodyClip = clip
		return job, nil
	}

	end := req.ContinuationEnd
	if !req.ContinuationEndSpecified() {
		end = clip.DurationSeconds()
	}
	if req.ContinuationStart > end {
		return engine.Job{}, fmt.Errorf(
			"%w: continuation_start must be less than or equal to continuation_end",
			models.ErrInvalidArgument)
	}

	window, err := clip.Slice(req.ContinuationStart, end)
	if err != nil {
		return engine.Job{}, fmt.Errorf("%w: %v", models.ErrInvalidArgument, err)
	}
	job.ContinuationClip = window
	return job, nil
}

// writeOutputs clears the previous run's artifacts and persists each waveform
// as <index>.wav. The files are staged in a request-scoped temp dir and moved
// into place, so the fixed directory never holds a partial result set.
func (p *Predictor) writeOutputs(waveforms []*audio.Waveform) ([]string, error) {
	staging, err := os.MkdirTemp("", "magnet-out-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	names := make([]string, len(waveforms))
	for idx, wf := range waveforms {
		names[idx] = fmt.Sprintf("%d.wav", idx)
		if err := audio.EncodeLoudnessWAV(filepath.Join(staging, names[idx]), wf); err != nil {
			return nil, fmt.Errorf("failed to write variation %d: %w", idx, err)
		}
	}

	if err := os.RemoveAll(p.outputDir); err != nil {
		return nil, fmt.Errorf("failed to clear output dir: %w", err)
	}
	if err := os.MkdirAll(p.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	paths := make([]string, len(names))
	for idx, name := range names {
		dest := filepath.Join(p.outputDir, name)
		if err := moveFile(filepath.Join(staging, name), dest); err != nil {
			return nil, fmt.Errorf("failed to place variation %d: %w", idx, err)
		}
		paths[idx] = dest
	}
	return paths, nil
}

func spanArrangement(spanScore string) string {
	if spanScore == models.SpanScoreProdStride1 {
		return engine.SpanStride1
	}
	return engine.SpanNonoverlap
}

// moveFile renames when possible and falls back to copy for cross-device
// staging dirs.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}
