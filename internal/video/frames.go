package video

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
)

// FrameExtractor decodes chunk files into JPEG snapshot frames. Used by the
// evidence persister, not by the detection hot path.
type FrameExtractor struct {
	ffmpegPath string
}

func NewFrameExtractor(ffmpegPath string) *FrameExtractor {
	return &FrameExtractor{ffmpegPath: ffmpegPath}
}

// ExtractSnapshots decodes the chunk at chunkPath into outDir and returns
// the paths of count representative frames in selection order. Selection is
// deterministic (evenly spaced across the decoded sequence), so re-running
// on the same chunk yields the same frames.
func (e *FrameExtractor) ExtractSnapshots(ctx context.Context, chunkPath, outDir string, count int) ([]string, error) {
	cmd := exec.CommandContext(ctx, e.ffmpegPath,
		"-i", chunkPath,
		"-f", "image2",
		"-qscale:v", "2",
		"-loglevel", "error",
		"-y",
		filepath.Join(outDir, "frame-%04d.jpg"),
	)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("decode chunk %s: %w", chunkPath, err)
	}

	frames, err := filepath.Glob(filepath.Join(outDir, "frame-*.jpg"))
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames decoded from %s", chunkPath)
	}
	sort.Strings(frames)

	return selectEvenly(frames, count), nil
}

// ExtractLeading decodes only the first count frames of the chunk, in
// stream order. The vision strategy classifies on the leading frames by
// convention.
func (e *FrameExtractor) ExtractLeading(ctx context.Context, chunkPath, outDir string, count int) ([]string, error) {
	cmd := exec.CommandContext(ctx, e.ffmpegPath,
		"-i", chunkPath,
		"-vframes", fmt.Sprintf("%d", count),
		"-f", "image2",
		"-qscale:v", "2",
		"-loglevel", "error",
		"-y",
		filepath.Join(outDir, "lead-%04d.jpg"),
	)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("decode chunk %s: %w", chunkPath, err)
	}

	frames, err := filepath.Glob(filepath.Join(outDir, "lead-*.jpg"))
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames decoded from %s", chunkPath)
	}
	sort.Strings(frames)
	return frames, nil
}

// selectEvenly picks count items spread across frames: first, last, and
// evenly spaced ones in between. Fewer frames than count yields all frames.
func selectEvenly(frames []string, count int) []string {
	if count <= 0 {
		return nil
	}
	if len(frames) <= count {
		return frames
	}
	if count == 1 {
		return frames[:1]
	}

	selected := make([]string, 0, count)
	step := float64(len(frames)-1) / float64(count-1)
	for i := 0; i < count; i++ {
		selected = append(selected, frames[int(float64(i)*step)])
	}
	return selected
}
