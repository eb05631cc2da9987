package engine

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Conceptual-Machines/magnet-api/internal/audio"
)

// Runner drives the external MAGNeT inference runner binary. Each Generate
// call is one process invocation: parameters go in as flags, waveforms come
// back as WAV files in a scratch directory.
type Runner struct {
	bin        string
	checkpoint string
	weightsDir string
}

func NewRunner(bin, checkpoint, weightsDir string) *Runner {
	return &Runner{
		bin:        bin,
		checkpoint: checkpoint,
		weightsDir: weightsDir,
	}
}

func (r *Runner) Checkpoint() string { return r.checkpoint }

func (r *Runner) Close() error { return nil }

func (r *Runner) Generate(ctx context.Context, job Job) ([]*audio.Waveform, error) {
	if len(job.Descriptions) == 0 {
		return nil, fmt.Errorf("generate called with no descriptions")
	}

	scratch, err := os.MkdirTemp("", "magnet-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	args, err := r.buildArgs(job, scratch)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, r.bin, args...)
	// The underlying library resolves checkpoints through this variable.
	cmd.Env = append(os.Environ(), "AUDIOCRAFT_CACHE_DIR="+r.weightsDir)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("magnet runner failed: %w: %s", err, string(output))
	}

	waveforms := make([]*audio.Waveform, 0, len(job.Descriptions))
	for idx := range job.Descriptions {
		outPath := filepath.Join(scratch, fmt.Sprintf("%d.wav", idx))
		if stat, err := os.Stat(outPath); os.IsNotExist(err) || (stat != nil && stat.Size() == 0) {
			return nil, fmt.Errorf("runner produced no output for variation %d: %s", idx, outPath)
		}
		wf, err := audio.DecodeWAV(outPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read variation %d: %w", idx, err)
		}
		waveforms = append(waveforms, wf)
	}
	return waveforms, nil
}

func (r *Runner) buildArgs(job Job, scratch string) ([]string, error) {
	p := job.Params
	steps := make([]string, len(p.DecodingSteps))
	for i, s := range p.DecodingSteps {
		steps[i] = strconv.Itoa(s)
	}

	args := []string{
		"--checkpoint", r.checkpoint,
		"--output-dir", scratch,
		"--duration", strconv.Itoa(p.Duration),
		"--temperature", strconv.FormatFloat(p.Temperature, 'f', -1, 64),
		"--top-p", strconv.FormatFloat(p.TopP, 'f', -1, 64),
		"--min-cfg", strconv.FormatFloat(p.MinCFG, 'f', -1, 64),
		"--max-cfg", strconv.FormatFloat(p.MaxCFG, 'f', -1, 64),
		"--decoding-steps", strings.Join(steps, ","),
		"--span-arrangement", p.SpanArrangement,
	}
	for _, d := range job.Descriptions {
		args = append(args, "--description", d)
	}

	if job.ContinuationClip != nil {
		promptPath := filepath.Join(scratch, "prompt.wav")
		if err := audio.EncodeWAV(promptPath, job.ContinuationClip); err != nil {
			return nil, fmt.Errorf("failed to stage continuation prompt: %w", err)
		}
		args = append(args, "--prompt-audio", promptPath)
	} else if job.MelodyClip != nil {
		melodyPath := filepath.Join(scratch, "melody.wav")
		if err := audio.EncodeWAV(melodyPath, job.MelodyClip); err != nil {
			return nil, fmt.Errorf("failed to stage melody clip: %w", err)
		}
		args = append(args, "--melody-audio", melodyPath)
	}

	return args, nil
}
