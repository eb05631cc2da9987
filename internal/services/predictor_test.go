package services

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/Conceptual-Machines/magnet-api/internal/audio"
	"github.com/Conceptual-Machines/magnet-api/internal/engine"
	"github.com/Conceptual-Machines/magnet-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine records the jobs it receives and returns synthetic waveforms.
type fakeEngine struct {
	checkpoint string
	jobs       []engine.Job
	closed     bool
}

func (f *fakeEngine) Checkpoint() string { return f.checkpoint }

func (f *fakeEngine) Generate(_ context.Context, job engine.Job) ([]*audio.Waveform, error) {
	f.jobs = append(f.jobs, job)
	out := make([]*audio.Waveform, len(job.Descriptions))
	for i := range out {
		samples := make([]float64, 8000)
		for j := range samples {
			samples[j] = 0.25 * math.Sin(2*math.Pi*220*float64(j)/8000)
		}
		out[i] = &audio.Waveform{Samples: samples, SampleRate: 8000, Channels: 1}
	}
	return out, nil
}

func (f *fakeEngine) Close() error {
	f.closed = true
	return nil
}

type fixture struct {
	predictor *Predictor
	outputDir string
	engines   []*fakeEngine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fx := &fixture{outputDir: filepath.Join(t.TempDir(), "output")}
	loader := engine.NewLoaderWithFactory(func(checkpoint string) (engine.Engine, error) {
		eng := &fakeEngine{checkpoint: checkpoint}
		fx.engines = append(fx.engines, eng)
		return eng, nil
	})
	fx.predictor = NewPredictor(loader, fx.outputDir)
	return fx
}

// writeClip stages a reference WAV of the given length for conditioning tests.
func writeClip(t *testing.T, seconds float64, sampleRate int) string {
	t.Helper()
	frames := int(seconds * float64(sampleRate))
	samples := make([]float64, frames)
	for i := range samples {
		samples[i] = 0.4 * math.Sin(2*math.Pi*330*float64(i)/float64(sampleRate))
	}
	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, audio.EncodeWAV(path, &audio.Waveform{
		Samples:    samples,
		SampleRate: sampleRate,
		Channels:   1,
	}))
	return path
}

func TestPredictReturnsOnePathPerVariation(t *testing.T) {
	fx := newFixture(t)
	req := models.DefaultGenerationRequest()
	req.Variations = 4

	paths, err := fx.predictor.Predict(context.Background(), &req)
	require.NoError(t, err)
	require.Len(t, paths, 4)

	for idx, p := range paths {
		assert.Equal(t, filepath.Join(fx.outputDir, filepath.Base(p)), p)
		info, err := os.Stat(p)
		require.NoError(t, err, "variation %d missing", idx)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestPredictPassesParamsThroughUnmodified(t *testing.T) {
	fx := newFixture(t)
	req := models.DefaultGenerationRequest()
	req.Duration = 12
	req.Temperature = 2.5
	req.TopP = 0.8
	req.MinCFG = 1.5
	req.MaxCFG = 7.0
	req.DecodingSteps = [4]int{40, 20, 15, 5}
	req.SpanScore = models.SpanScoreMaxNonoverlap

	_, err := fx.predictor.Predict(context.Background(), &req)
	require.NoError(t, err)

	require.Len(t, fx.engines, 1)
	require.Len(t, fx.engines[0].jobs, 1)
	got := fx.engines[0].jobs[0].Params

	assert.Equal(t, engine.Params{
		Duration:        12,
		Temperature:     2.5,
		TopP:            0.8,
		MinCFG:          1.5,
		MaxCFG:          7.0,
		DecodingSteps:   [4]int{40, 20, 15, 5},
		SpanArrangement: engine.SpanNonoverlap,
	}, got)
}

func TestPredictStrideSpanScoreMapsToStride1(t *testing.T) {
	fx := newFixture(t)
	req := models.DefaultGenerationRequest()
	req.SpanScore = models.SpanScoreProdStride1

	_, err := fx.predictor.Predict(context.Background(), &req)
	require.NoError(t, err)
	assert.Equal(t, engine.SpanStride1, fx.engines[0].jobs[0].Params.SpanArrangement)
}

func TestPredictInvalidWindowFailsBeforeGeneration(t *testing.T) {
	fx := newFixture(t)
	req := models.DefaultGenerationRequest()
	req.Continuation = true
	req.ContinuationStart = 5
	req.ContinuationEnd = 3

	_, err := fx.predictor.Predict(context.Background(), &req)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
	assert.Empty(t, fx.engines, "no engine work before validation")
}

func TestPredictContinuationSlicesWindow(t *testing.T) {
	fx := newFixture(t)
	req := models.DefaultGenerationRequest()
	req.InputAudio = writeClip(t, 2.0, 8000)
	req.Continuation = true
	req.ContinuationStart = 0.5
	req.ContinuationEnd = 1.5

	_, err := fx.predictor.Predict(context.Background(), &req)
	require.NoError(t, err)

	job := fx.engines[0].jobs[0]
	require.NotNil(t, job.ContinuationClip)
	assert.Nil(t, job.MelodyClip)
	assert.Equal(t, 8000, job.ContinuationClip.Frames())
}

func TestPredictSentinelEndUsesFullClip(t *testing.T) {
	for _, end := range []float64{models.ContinuationEndFullClip, 0} {
		fx := newFixture(t)
		req := models.DefaultGenerationRequest()
		req.InputAudio = writeClip(t, 2.0, 8000)
		req.Continuation = true
		req.ContinuationStart = 0.5
		req.ContinuationEnd = end

		_, err := fx.predictor.Predict(context.Background(), &req)
		require.NoError(t, err)

		job := fx.engines[0].jobs[0]
		require.NotNil(t, job.ContinuationClip)
		// 2s clip from 0.5s onward leaves 1.5s.
		assert.Equal(t, 12000, job.ContinuationClip.Frames())
	}
}

func TestPredictStartPastClipEndRejected(t *testing.T) {
	fx := newFixture(t)
	req := models.DefaultGenerationRequest()
	req.InputAudio = writeClip(t, 1.0, 8000)
	req.Continuation = true
	req.ContinuationStart = 5
	req.ContinuationEnd = models.ContinuationEndFullClip

	_, err := fx.predictor.Predict(context.Background(), &req)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestPredictMelodyGuidanceWithoutContinuation(t *testing.T) {
	fx := newFixture(t)
	req := models.DefaultGenerationRequest()
	req.InputAudio = writeClip(t, 1.0, 8000)
	req.Continuation = false

	_, err := fx.predictor.Predict(context.Background(), &req)
	require.NoError(t, err)

	job := fx.engines[0].jobs[0]
	assert.Nil(t, job.ContinuationClip)
	require.NotNil(t, job.MelodyClip)
	assert.Equal(t, 8000, job.MelodyClip.Frames())
}

func TestPredictMissingReferenceAudioRejected(t *testing.T) {
	fx := newFixture(t)
	req := models.DefaultGenerationRequest()
	req.InputAudio = filepath.Join(t.TempDir(), "missing.wav")
	req.Continuation = true

	_, err := fx.predictor.Predict(context.Background(), &req)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestPredictClearsPreviousOutputs(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, os.MkdirAll(fx.outputDir, 0o755))
	stale := filepath.Join(fx.outputDir, "stale.wav")
	require.NoError(t, os.WriteFile(stale, []byte("old run"), 0o644))

	req := models.DefaultGenerationRequest()
	req.Variations = 1

	paths, err := fx.predictor.Predict(context.Background(), &req)
	require.NoError(t, err)
	require.Len(t, paths, 1)

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err), "previous artifacts must be removed")

	entries, err := os.ReadDir(fx.outputDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPredictReloadsOnCheckpointChange(t *testing.T) {
	fx := newFixture(t)

	req := models.DefaultGenerationRequest()
	req.Checkpoint = "facebook/magnet-small-10secs"
	_, err := fx.predictor.Predict(context.Background(), &req)
	require.NoError(t, err)

	// Same checkpoint: no reload.
	_, err = fx.predictor.Predict(context.Background(), &req)
	require.NoError(t, err)
	assert.Len(t, fx.engines, 1)

	// Different checkpoint: the old engine is released and a new one loaded.
	req.Checkpoint = "facebook/audio-magnet-medium"
	_, err = fx.predictor.Predict(context.Background(), &req)
	require.NoError(t, err)
	require.Len(t, fx.engines, 2)
	assert.True(t, fx.engines[0].closed)
	assert.Equal(t, "facebook/audio-magnet-medium", fx.engines[1].checkpoint)
}

func TestPredictInvalidRequestBounds(t *testing.T) {
	fx := newFixture(t)
	req := models.DefaultGenerationRequest()
	req.Variations = 9

	_, err := fx.predictor.Predict(context.Background(), &req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidArgument))
}
