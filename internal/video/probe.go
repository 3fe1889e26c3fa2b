package video

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ProbeInfo holds the windowing parameters of a video source
type ProbeInfo struct {
	FPS         int
	TotalFrames int
}

// Prober wraps ffprobe for extracting stream metadata
type Prober struct {
	ffprobePath string
}

func NewProber(ffprobePath string) *Prober {
	return &Prober{ffprobePath: ffprobePath}
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		RFrameRate string `json:"r_frame_rate"`
		NbFrames   string `json:"nb_frames"`
	} `json:"streams"`
}

// Probe runs ffprobe against the source and returns frame rate and total
// frame count of the first video stream. Sources without a known frame
// count cannot be windowed and are rejected.
func (p *Prober) Probe(ctx context.Context, source string) (ProbeInfo, error) {
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_type,r_frame_rate,nb_frames",
		"-of", "json",
		source,
	)

	out, err := cmd.Output()
	if err != nil {
		return ProbeInfo{}, fmt.Errorf("ffprobe %s: %w", source, err)
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return ProbeInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return ProbeInfo{}, fmt.Errorf("no video stream in %s", source)
	}

	stream := probe.Streams[0]
	fps, err := parseFrameRate(stream.RFrameRate)
	if err != nil {
		return ProbeInfo{}, err
	}

	total, err := strconv.Atoi(stream.NbFrames)
	if err != nil {
		return ProbeInfo{}, fmt.Errorf("source has no usable frame count (nb_frames=%q)", stream.NbFrames)
	}

	return ProbeInfo{FPS: fps, TotalFrames: total}, nil
}

// parseFrameRate reads ffprobe's rational frame rate ("25/1") and returns
// the integer numerator, matching how the windowing grid is defined.
func parseFrameRate(rate string) (int, error) {
	num, _, found := strings.Cut(rate, "/")
	if !found {
		num = rate
	}
	fps, err := strconv.Atoi(num)
	if err != nil || fps <= 0 {
		return 0, fmt.Errorf("invalid frame rate %q", rate)
	}
	return fps, nil
}
