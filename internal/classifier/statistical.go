package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/framewatch/api/internal/config"
	"github.com/framewatch/api/internal/model"
)

// Checkpoint is the exported form of the trained statistical model: a
// min-max scaler fitted on the training features and a gradient-boosted
// tree ensemble, one score column per class.
type Checkpoint struct {
	Labels    []string  `json:"labels"`
	ScalerMin []float64 `json:"scaler_min"`
	ScalerMax []float64 `json:"scaler_max"`
	BaseScore []float64 `json:"base_score"`
	Trees     []Tree    `json:"trees"`
}

// Tree is one regression tree of the ensemble. Nodes are stored as parallel
// arrays; leaf nodes carry per-class score contributions.
type Tree struct {
	Feature   []int       `json:"feature"`
	Threshold []float64   `json:"threshold"`
	Left      []int       `json:"left"`
	Right     []int       `json:"right"`
	Leaf      [][]float64 `json:"leaf"`
}

// Statistical classifies a window by byte-histogram statistics fed to the
// boosted-tree ensemble. Parameters are loaded once at startup; Classify is
// pure payload -> label.
type Statistical struct {
	ckpt         Checkpoint
	denoise      bool
	medianFilter bool
}

func NewStatistical(cfg *config.ClassifierConfig) (*Statistical, error) {
	data, err := os.ReadFile(cfg.CheckpointPath)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint %s: %w", cfg.CheckpointPath, err)
	}

	var ckpt Checkpoint
	if err := json.Unmarshal(data, &ckpt); err != nil {
		return nil, fmt.Errorf("parse checkpoint: %w", err)
	}
	if err := validateCheckpoint(&ckpt); err != nil {
		return nil, err
	}

	return &Statistical{
		ckpt:         ckpt,
		denoise:      cfg.Denoise,
		medianFilter: cfg.MedianFilter,
	}, nil
}

func validateCheckpoint(ckpt *Checkpoint) error {
	if len(ckpt.Labels) < 2 {
		return fmt.Errorf("checkpoint needs at least 2 labels, got %d", len(ckpt.Labels))
	}
	if ckpt.Labels[0] != model.NoAnomalyLabel {
		return fmt.Errorf("checkpoint label 0 must be %q, got %q", model.NoAnomalyLabel, ckpt.Labels[0])
	}
	if len(ckpt.ScalerMin) != FeatureCount || len(ckpt.ScalerMax) != FeatureCount {
		return fmt.Errorf("scaler length %d/%d, want %d", len(ckpt.ScalerMin), len(ckpt.ScalerMax), FeatureCount)
	}
	if len(ckpt.BaseScore) != len(ckpt.Labels) {
		return fmt.Errorf("base score length %d, want %d", len(ckpt.BaseScore), len(ckpt.Labels))
	}
	return nil
}

func (s *Statistical) Labels() []string {
	return s.ckpt.Labels
}

func (s *Statistical) Classify(_ context.Context, payload []byte) (string, error) {
	features := Features(payload, s.denoise, s.medianFilter)
	scaled := s.scale(features)
	scores := s.score(scaled)

	best := 0
	for i, v := range scores {
		if v > scores[best] {
			best = i
		}
	}
	return s.ckpt.Labels[best], nil
}

// scale maps each feature into [0,1] by the fitted min-max bounds. Features
// with a degenerate training range pass through as 0.
func (s *Statistical) scale(features []float64) []float64 {
	scaled := make([]float64, len(features))
	for i, v := range features {
		span := s.ckpt.ScalerMax[i] - s.ckpt.ScalerMin[i]
		if span == 0 {
			continue
		}
		scaled[i] = (v - s.ckpt.ScalerMin[i]) / span
	}
	return scaled
}

// score accumulates per-class scores across the ensemble.
func (s *Statistical) score(x []float64) []float64 {
	scores := make([]float64, len(s.ckpt.BaseScore))
	copy(scores, s.ckpt.BaseScore)

	for _, tree := range s.ckpt.Trees {
		node := 0
		for tree.Left[node] >= 0 {
			if x[tree.Feature[node]] <= tree.Threshold[node] {
				node = tree.Left[node]
			} else {
				node = tree.Right[node]
			}
		}
		for c, v := range tree.Leaf[node] {
			scores[c] += v
		}
	}
	return scores
}
