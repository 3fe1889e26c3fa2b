package classifier

import (
	"context"
	"fmt"

	"github.com/framewatch/api/internal/config"
	"github.com/framewatch/api/internal/model"
)

// Classifier maps a window payload to a label from a fixed vocabulary.
// Implementations hold no mutable state across calls and are safe for
// concurrent use by many jobs once constructed.
type Classifier interface {
	Classify(ctx context.Context, payload []byte) (string, error)
	Labels() []string
}

// Registry holds the strategies loaded at startup, selected per job by the
// explicit model tag in the request.
type Registry struct {
	strategies map[model.ModelType]Classifier
}

func NewRegistry(cfg *config.ClassifierConfig, vision Classifier) (*Registry, error) {
	stat, err := NewStatistical(cfg)
	if err != nil {
		return nil, fmt.Errorf("load statistical classifier: %w", err)
	}

	return &Registry{
		strategies: map[model.ModelType]Classifier{
			model.ModelStatistical: stat,
			model.ModelVision:      vision,
		},
	}, nil
}

// Get returns the strategy for the given model choice.
func (r *Registry) Get(m model.ModelType) (Classifier, error) {
	c, ok := r.strategies[m]
	if !ok || c == nil {
		return nil, fmt.Errorf("no classifier for model %q", m)
	}
	return c, nil
}
