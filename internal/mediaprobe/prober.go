// Package mediaprobe inspects a local media file for the metadata the
// planner needs (duration, framerate) by invoking ffprobe. It is the
// MediaProbe collaborator the core specification delegates to rather than
// specifies.
package mediaprobe

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/ffmpegfarm/internal/models"
	"github.com/jmylchreest/ffmpegfarm/internal/util"
)

// Result is the metadata the planner requires from a probe.
type Result struct {
	DurationSeconds int
	Framerate       float64
}

// MediaProbe determines duration and framerate for a source file.
type MediaProbe interface {
	Probe(ctx context.Context, path string) (Result, error)
}

// probeOutput mirrors the subset of ffprobe's JSON output this package reads.
type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType    string `json:"codec_type"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
	} `json:"streams"`
}

// FFProbe is a MediaProbe backed by an external ffprobe binary.
type FFProbe struct {
	binaryPath string
	timeout    time.Duration
}

// NewFFProbe creates a MediaProbe that invokes the binary at binaryPath.
func NewFFProbe(binaryPath string) *FFProbe {
	return &FFProbe{binaryPath: binaryPath, timeout: 30 * time.Second}
}

// DiscoverFFProbe locates the ffprobe binary via FFPROBE_PATH, the working
// directory, or PATH, and returns a MediaProbe backed by it.
func DiscoverFFProbe() (*FFProbe, error) {
	path, err := util.FindBinary("ffprobe", "FFPROBE_PATH")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrProbeFailed, err)
	}
	return NewFFProbe(path), nil
}

// WithTimeout sets the probe timeout.
func (p *FFProbe) WithTimeout(timeout time.Duration) *FFProbe {
	p.timeout = timeout
	return p
}

// Probe runs ffprobe against a local file path and extracts duration and framerate.
func (p *FFProbe) Probe(ctx context.Context, path string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	cmd := exec.CommandContext(ctx, p.binaryPath, args...)
	output, err := cmd.Output()
	if err != nil {
		return Result{}, fmt.Errorf("%w: ffprobe: %w", models.ErrProbeFailed, err)
	}

	var parsed probeOutput
	if err := json.Unmarshal(output, &parsed); err != nil {
		return Result{}, fmt.Errorf("%w: parsing ffprobe output: %w", models.ErrProbeFailed, err)
	}

	durationSeconds, err := parseDuration(parsed.Format.Duration)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", models.ErrProbeFailed, err)
	}

	var framerate float64
	for _, s := range parsed.Streams {
		if s.CodecType != "video" {
			continue
		}
		if s.AvgFrameRate != "" {
			framerate = parseFramerate(s.AvgFrameRate)
		} else if s.RFrameRate != "" {
			framerate = parseFramerate(s.RFrameRate)
		}
		break
	}

	return Result{DurationSeconds: durationSeconds, Framerate: framerate}, nil
}

func parseDuration(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("missing duration")
	}
	dur, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing duration %q: %w", s, err)
	}
	return int(dur), nil
}

// parseFramerate parses a framerate string like "30000/1001" or "25/1".
func parseFramerate(fr string) float64 {
	parts := strings.Split(fr, "/")
	if len(parts) != 2 {
		if f, err := strconv.ParseFloat(fr, 64); err == nil {
			return f
		}
		return 0
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

var _ MediaProbe = (*FFProbe)(nil)
