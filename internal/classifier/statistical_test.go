package classifier

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/framewatch/api/internal/config"
	"github.com/framewatch/api/internal/model"
)

// writeCheckpoint writes a checkpoint JSON to a temp file and returns a
// config pointing at it.
func writeCheckpoint(t *testing.T, ckpt Checkpoint) *config.ClassifierConfig {
	t.Helper()

	data, err := json.Marshal(ckpt)
	if err != nil {
		t.Fatalf("marshal checkpoint: %v", err)
	}

	path := filepath.Join(t.TempDir(), "checkpoint.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write checkpoint: %v", err)
	}

	return &config.ClassifierConfig{CheckpointPath: path}
}

func flatScaler() ([]float64, []float64) {
	min := make([]float64, FeatureCount)
	max := make([]float64, FeatureCount)
	for i := range max {
		max[i] = 1000
	}
	return min, max
}

func TestStatisticalPicksHighestScore(t *testing.T) {
	min, max := flatScaler()
	cfg := writeCheckpoint(t, Checkpoint{
		Labels:    []string{model.NoAnomalyLabel, "blur"},
		ScalerMin: min,
		ScalerMax: max,
		BaseScore: []float64{0.1, 0.9},
	})

	s, err := NewStatistical(cfg)
	if err != nil {
		t.Fatalf("NewStatistical: %v", err)
	}

	// no trees, so base scores decide: "blur" wins
	label, err := s.Classify(context.Background(), []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if label != "blur" {
		t.Errorf("label = %q, want %q", label, "blur")
	}
}

func TestStatisticalTreeRouting(t *testing.T) {
	min, max := flatScaler()

	// Single-split tree on feature 1 (max histogram count, scaled by 1/1000).
	// Left leaf votes for the sentinel, right leaf for "blur".
	tree := Tree{
		Feature:   []int{1, -1, -1},
		Threshold: []float64{0.005, 0, 0},
		Left:      []int{1, -1, -1},
		Right:     []int{2, -1, -1},
		Leaf: [][]float64{
			nil,
			{10, 0},
			{0, 10},
		},
	}
	cfg := writeCheckpoint(t, Checkpoint{
		Labels:    []string{model.NoAnomalyLabel, "blur"},
		ScalerMin: min,
		ScalerMax: max,
		BaseScore: []float64{0, 0},
		Trees:     []Tree{tree},
	})

	s, err := NewStatistical(cfg)
	if err != nil {
		t.Fatalf("NewStatistical: %v", err)
	}

	low := []byte{1, 1, 2, 2}                    // max count 2, scaled 0.002 -> left leaf
	high := []byte{1, 1, 1, 1, 1, 1, 1, 1, 1, 1} // max count 10, scaled 0.01 -> right leaf

	label, err := s.Classify(context.Background(), low)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if label != model.NoAnomalyLabel {
		t.Errorf("low payload label = %q, want %q", label, model.NoAnomalyLabel)
	}

	label, err = s.Classify(context.Background(), high)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if label != "blur" {
		t.Errorf("high payload label = %q, want %q", label, "blur")
	}
}

func TestCheckpointValidation(t *testing.T) {
	min, max := flatScaler()

	cases := []struct {
		name string
		ckpt Checkpoint
	}{
		{
			name: "too few labels",
			ckpt: Checkpoint{Labels: []string{model.NoAnomalyLabel}, ScalerMin: min, ScalerMax: max, BaseScore: []float64{0}},
		},
		{
			name: "sentinel not first",
			ckpt: Checkpoint{Labels: []string{"blur", model.NoAnomalyLabel}, ScalerMin: min, ScalerMax: max, BaseScore: []float64{0, 0}},
		},
		{
			name: "scaler length mismatch",
			ckpt: Checkpoint{Labels: []string{model.NoAnomalyLabel, "blur"}, ScalerMin: []float64{0}, ScalerMax: max, BaseScore: []float64{0, 0}},
		},
		{
			name: "base score length mismatch",
			ckpt: Checkpoint{Labels: []string{model.NoAnomalyLabel, "blur"}, ScalerMin: min, ScalerMax: max, BaseScore: []float64{0}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := writeCheckpoint(t, tc.ckpt)
			if _, err := NewStatistical(cfg); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestStatisticalLabels(t *testing.T) {
	min, max := flatScaler()
	cfg := writeCheckpoint(t, Checkpoint{
		Labels:    []string{model.NoAnomalyLabel, "blur", "crop"},
		ScalerMin: min,
		ScalerMax: max,
		BaseScore: []float64{0, 0, 0},
	})

	s, err := NewStatistical(cfg)
	if err != nil {
		t.Fatalf("NewStatistical: %v", err)
	}

	labels := s.Labels()
	if len(labels) != 3 || labels[0] != model.NoAnomalyLabel {
		t.Errorf("Labels() = %v", labels)
	}
}
