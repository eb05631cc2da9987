package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Conceptual-Machines/magnet-api/internal/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() Params {
	return Params{
		Duration:        8,
		Temperature:     3.0,
		TopP:            0.9,
		MinCFG:          1.0,
		MaxCFG:          10.0,
		DecodingSteps:   [4]int{20, 10, 10, 10},
		SpanArrangement: SpanStride1,
	}
}

func TestBuildArgsPassesParamsThrough(t *testing.T) {
	r := NewRunner("/usr/local/bin/magnet-runner", "facebook/magnet-small-10secs", "checkpoints")
	scratch := t.TempDir()

	args, err := r.buildArgs(Job{
		Descriptions: []string{"a prompt", "a prompt"},
		Params:       testParams(),
	}, scratch)
	require.NoError(t, err)

	joined := map[string]string{}
	for i := 0; i+1 < len(args); i += 2 {
		joined[args[i]] = args[i+1]
	}

	assert.Equal(t, "facebook/magnet-small-10secs", joined["--checkpoint"])
	assert.Equal(t, "8", joined["--duration"])
	assert.Equal(t, "3", joined["--temperature"])
	assert.Equal(t, "0.9", joined["--top-p"])
	assert.Equal(t, "1", joined["--min-cfg"])
	assert.Equal(t, "10", joined["--max-cfg"])
	assert.Equal(t, "20,10,10,10", joined["--decoding-steps"])
	assert.Equal(t, "stride1", joined["--span-arrangement"])
	assert.Equal(t, scratch, joined["--output-dir"])

	descriptions := 0
	for i, a := range args {
		if a == "--description" {
			descriptions++
			assert.Equal(t, "a prompt", args[i+1])
		}
	}
	assert.Equal(t, 2, descriptions)
}

func TestBuildArgsStagesContinuationPrompt(t *testing.T) {
	r := NewRunner("/usr/local/bin/magnet-runner", "facebook/magnet-small-10secs", "checkpoints")
	scratch := t.TempDir()

	clip := &audio.Waveform{
		Samples:    []float64{0.1, 0.2, 0.3, 0.2},
		SampleRate: 8000,
		Channels:   1,
	}
	args, err := r.buildArgs(Job{
		Descriptions:     []string{"continue this"},
		Params:           testParams(),
		ContinuationClip: clip,
	}, scratch)
	require.NoError(t, err)

	promptPath := filepath.Join(scratch, "prompt.wav")
	assert.Contains(t, args, "--prompt-audio")
	assert.Contains(t, args, promptPath)

	info, err := os.Stat(promptPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestBuildArgsStagesMelodyClip(t *testing.T) {
	r := NewRunner("/usr/local/bin/magnet-runner", "facebook/audio-magnet-small", "checkpoints")
	scratch := t.TempDir()

	clip := &audio.Waveform{
		Samples:    []float64{0.1, 0.2},
		SampleRate: 8000,
		Channels:   1,
	}
	args, err := r.buildArgs(Job{
		Descriptions: []string{"guided"},
		Params:       testParams(),
		MelodyClip:   clip,
	}, scratch)
	require.NoError(t, err)

	assert.Contains(t, args, "--melody-audio")
	assert.Contains(t, args, filepath.Join(scratch, "melody.wav"))
	assert.NotContains(t, args, "--prompt-audio")
}
