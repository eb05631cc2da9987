package engine

import "fmt"

// Factory creates an Engine bound to a checkpoint name.
type Factory func(checkpoint string) (Engine, error)

// Loader resolves checkpoint names to a loaded Engine. It keeps the current
// engine as explicit state and reloads only when a request names a different
// checkpoint. Not safe for concurrent use; the serving harness processes one
// request at a time.
type Loader struct {
	factory Factory
	current Engine
}

// NewLoader builds a loader that creates exec-backed runners.
func NewLoader(bin, weightsDir string) *Loader {
	return &Loader{
		factory: func(checkpoint string) (Engine, error) {
			return NewRunner(bin, checkpoint, weightsDir), nil
		},
	}
}

// NewLoaderWithFactory builds a loader with a custom engine factory.
func NewLoaderWithFactory(factory Factory) *Loader {
	return &Loader{factory: factory}
}

// Load returns an engine for the named checkpoint, reusing the current one
// when it already holds those weights.
func (l *Loader) Load(checkpoint string) (Engine, error) {
	if l.current != nil && l.current.Checkpoint() == checkpoint {
		return l.current, nil
	}

	eng, err := l.factory(checkpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint %s: %w", checkpoint, err)
	}

	if l.current != nil {
		if cerr := l.current.Close(); cerr != nil {
			return nil, fmt.Errorf("failed to release previous checkpoint: %w", cerr)
		}
	}
	l.current = eng
	return eng, nil
}

// Current returns the loaded engine, or nil before the first Load.
func (l *Loader) Current() Engine { return l.current }
