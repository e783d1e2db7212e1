package rules

import (
	"context"
	"fmt"
	"os"
)

// Source supplies the rule set for a run. Implementations must return
// either a fully validated Thresholds or an error.
type Source interface {
	Fetch(ctx context.Context) (Thresholds, error)
}

// FileSource reads a rule document written by the advisory generator.
type FileSource struct {
	Path string
}

// Fetch implements Source.
func (s FileSource) Fetch(ctx context.Context) (Thresholds, error) {
	if err := ctx.Err(); err != nil {
		return Thresholds{}, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return Thresholds{}, &ConfigurationError{Field: s.Path, Reason: fmt.Sprintf("read rules: %v", err)}
	}
	t, err := Parse(data)
	if err != nil {
		return Thresholds{}, fmt.Errorf("rules %s: %w", s.Path, err)
	}
	return t, nil
}

// Static is a Source that always returns the same, pre-validated set.
type Static Thresholds

// Fetch implements Source.
func (s Static) Fetch(context.Context) (Thresholds, error) {
	t := Thresholds(s)
	if err := t.Validate(); err != nil {
		return Thresholds{}, err
	}
	return t, nil
}
