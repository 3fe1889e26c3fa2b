package classifier

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// visionFrameCount is how many leading frames of a window the vision
// strategy classifies on.
const visionFrameCount = 2

// FrameService is the external inference capability: frames in, label out.
// Resizing, embedding extraction, temporal pooling and the head network all
// live behind this contract.
type FrameService interface {
	ClassifyFrames(ctx context.Context, frames [][]byte) (string, error)
	Labels() []string
}

// LeadingFrameExtractor decodes the first frames of a chunk file.
type LeadingFrameExtractor interface {
	ExtractLeading(ctx context.Context, chunkPath, outDir string, count int) ([]string, error)
}

// Vision classifies a window by its first frames through the external
// inference service.
type Vision struct {
	service   FrameService
	extractor LeadingFrameExtractor
}

func NewVision(service FrameService, extractor LeadingFrameExtractor) *Vision {
	return &Vision{service: service, extractor: extractor}
}

func (v *Vision) Labels() []string {
	return v.service.Labels()
}

func (v *Vision) Classify(ctx context.Context, payload []byte) (string, error) {
	scratch, err := os.MkdirTemp("", "vision-*")
	if err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	chunkPath := filepath.Join(scratch, "chunk.bin")
	if err := os.WriteFile(chunkPath, payload, 0o600); err != nil {
		return "", fmt.Errorf("write chunk: %w", err)
	}

	framePaths, err := v.extractor.ExtractLeading(ctx, chunkPath, scratch, visionFrameCount)
	if err != nil {
		return "", err
	}

	frames := make([][]byte, 0, len(framePaths))
	for _, p := range framePaths {
		data, err := os.ReadFile(p)
		if err != nil {
			return "", fmt.Errorf("read frame %s: %w", p, err)
		}
		frames = append(frames, data)
	}

	return v.service.ClassifyFrames(ctx, frames)
}
