package video

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// WindowSource yields the ordered sequence of one-second windows of a video
// source as raw h264 byte chunks. Windows are produced lazily, strictly in
// increasing index order starting at 0. A single source must not be read
// concurrently — the extraction cursor is not safe for parallel use.
type WindowSource struct {
	ffmpegPath string
	source     string
	fps        int
	total      int
	scratchDir string
	next       int
}

// Opener builds window sources; holds the external tool locations
type Opener struct {
	ffmpegPath string
	prober     *Prober
}

func NewOpener(ffmpegPath, ffprobePath string) *Opener {
	return &Opener{
		ffmpegPath: ffmpegPath,
		prober:     NewProber(ffprobePath),
	}
}

// Open probes the source and prepares window extraction. The last partial
// window is dropped: total = frames/fps - 1.
func (o *Opener) Open(ctx context.Context, source string) (*WindowSource, error) {
	info, err := o.prober.Probe(ctx, source)
	if err != nil {
		return nil, err
	}

	total := info.TotalFrames/info.FPS - 1
	if total < 0 {
		total = 0
	}

	scratch, err := os.MkdirTemp("", "windows-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}

	return &WindowSource{
		ffmpegPath: o.ffmpegPath,
		source:     source,
		fps:        info.FPS,
		total:      total,
		scratchDir: scratch,
	}, nil
}

// FPS returns windows-per-unit (frames per one-second window).
func (s *WindowSource) FPS() int { return s.fps }

// TotalWindows returns how many full windows the source yields.
func (s *WindowSource) TotalWindows() int { return s.total }

// Next extracts the payload of the window at index. Indices must be
// requested in order; the chunk file is removed once read.
func (s *WindowSource) Next(ctx context.Context, index int) ([]byte, error) {
	if index != s.next {
		return nil, fmt.Errorf("window %d requested out of order (expected %d)", index, s.next)
	}
	if index >= s.total {
		return nil, fmt.Errorf("window %d beyond end of stream (%d windows)", index, s.total)
	}

	chunkPath := filepath.Join(s.scratchDir, fmt.Sprintf("window-%d.bin", index))
	cmd := exec.CommandContext(ctx, s.ffmpegPath,
		"-ss", formatTimestamp(index),
		"-i", s.source,
		"-t", "1",
		"-vframes", fmt.Sprintf("%d", s.fps),
		"-f", "h264",
		"-loglevel", "error",
		"-y",
		chunkPath,
	)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("extract window %d: %w", index, err)
	}

	payload, err := os.ReadFile(chunkPath)
	if err != nil {
		return nil, fmt.Errorf("read window %d chunk: %w", index, err)
	}
	_ = os.Remove(chunkPath)

	s.next++
	return payload, nil
}

// Close removes the scratch directory.
func (s *WindowSource) Close() error {
	return os.RemoveAll(s.scratchDir)
}

// formatTimestamp renders a second offset as MM:SS for ffmpeg seeking.
func formatTimestamp(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
