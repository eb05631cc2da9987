package engine

import (
	"context"
	"testing"

	"github.com/Conceptual-Machines/magnet-api/internal/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEngine is a test implementation of the Engine interface
type stubEngine struct {
	checkpoint string
	closed     bool
}

func (s *stubEngine) Checkpoint() string { return s.checkpoint }

func (s *stubEngine) Generate(_ context.Context, _ Job) ([]*audio.Waveform, error) {
	return nil, nil
}

func (s *stubEngine) Close() error {
	s.closed = true
	return nil
}

func TestLoaderReusesSameCheckpoint(t *testing.T) {
	loads := 0
	loader := NewLoaderWithFactory(func(checkpoint string) (Engine, error) {
		loads++
		return &stubEngine{checkpoint: checkpoint}, nil
	})

	first, err := loader.Load("facebook/magnet-small-10secs")
	require.NoError(t, err)

	second, err := loader.Load("facebook/magnet-small-10secs")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, loads)
}

func TestLoaderReloadsOnCheckpointChange(t *testing.T) {
	loads := 0
	loader := NewLoaderWithFactory(func(checkpoint string) (Engine, error) {
		loads++
		return &stubEngine{checkpoint: checkpoint}, nil
	})

	first, err := loader.Load("facebook/magnet-small-10secs")
	require.NoError(t, err)

	second, err := loader.Load("facebook/audio-magnet-medium")
	require.NoError(t, err)

	assert.Equal(t, 2, loads)
	assert.Equal(t, "facebook/audio-magnet-medium", second.Checkpoint())
	assert.True(t, first.(*stubEngine).closed, "previous engine must be released")
	assert.Same(t, second, loader.Current())
}
