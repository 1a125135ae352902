// Package planner decomposes a validated request into the unit jobs and
// parts that realize it. Plan and PlanMux are pure functions over their
// inputs: given the same request and probed metadata, they always emit the
// same jobs and parts in the same order.
package planner

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmylchreest/ffmpegfarm/internal/models"
)

// chunkSeconds is the fixed video chunk size (§4.2).
const chunkSeconds = 60

// ProbedMetadata is the media metadata MediaProbe reports for a source file.
type ProbedMetadata struct {
	DurationSeconds int
	Framerate       float64
}

// Options carries the encoding mode flags that select a video job's
// per-rendition tail.
type Options struct {
	EnableDash bool
	EnableCrf  bool
}

// Plan decomposes a request into its unit jobs (audio pass first, then
// chunked video pass) and their corresponding parts, per §4.2.
func Plan(request *models.Request, meta ProbedMetadata, opts Options, destFolder, prefix, destExtension string) ([]*models.Job, []*models.Part, error) {
	var jobs []*models.Job
	var parts []*models.Part

	audioSource := request.AudioSource
	if audioSource == "" {
		audioSource = request.VideoSource
	}

	for i, target := range request.Targets {
		outputFilename := fmt.Sprintf("%s/%s_%d_audio.mp4", destFolder, prefix, i)
		parts = append(parts, &models.Part{
			CorrelationID: request.CorrelationID,
			TargetIndex:   i,
			Number:        0,
			Filename:      outputFilename,
		})

		args := fmt.Sprintf(`-y -i "%s" -c:a aac -b:a %dk -vn "%s"`, audioSource, target.AudioBitrate, outputFilename)
		jobs = append(jobs, &models.Job{
			CorrelationID: request.CorrelationID,
			Arguments:     args,
			Needed:        request.Needed,
			Kind:          models.JobKindAudio,
			Source:        audioSource,
			ChunkDuration: meta.DurationSeconds,
			Active:        true,
		})
	}

	if request.VideoSource != "" {
		numChunks := int(math.Ceil(float64(meta.DurationSeconds) / float64(chunkSeconds)))
		for k := 0; k < numChunks; k++ {
			start := k * chunkSeconds
			if start > meta.DurationSeconds {
				start = meta.DurationSeconds
			}

			var b strings.Builder
			fmt.Fprintf(&b, `-y -ss %s -t %d -i "%s"`, formatHMS(start), chunkSeconds, request.VideoSource)

			for j, target := range request.Targets {
				chunkFilename := fmt.Sprintf("%s/%s_%d_%d%s", destFolder, prefix, j, start, destExtension)
				parts = append(parts, &models.Part{
					CorrelationID: request.CorrelationID,
					TargetIndex:   j,
					Number:        k,
					Filename:      chunkFilename,
				})
				b.WriteString(renditionTail(target, opts, meta.Framerate, chunkFilename))
			}

			jobs = append(jobs, &models.Job{
				CorrelationID: request.CorrelationID,
				Arguments:     b.String(),
				Needed:        request.Needed,
				Kind:          models.JobKindVideo,
				Source:        request.VideoSource,
				ChunkDuration: chunkSeconds,
				Active:        true,
			})
		}
	}

	return jobs, parts, nil
}

// renditionTail renders the per-rendition tail selected by opts, §4.2.
// DASH takes precedence over the CRF toggle; constant-bitrate is the default.
func renditionTail(target models.TargetRendition, opts Options, framerate float64, chunkFilename string) string {
	switch {
	case opts.EnableDash:
		gop := int(math.Round(framerate * 4))
		return fmt.Sprintf(` -s %dx%d -c:v libx264 -g %d -keyint_min %d -profile:v high -b:v %dk -level 4.1 -pix_fmt yuv420p -an "%s"`,
			target.Width, target.Height, gop, gop, target.VideoBitrate, chunkFilename)
	case opts.EnableCrf:
		buf := (target.VideoBitrate / 8) * chunkSeconds
		return fmt.Sprintf(` -s %dx%d -c:v libx264 -profile:v high -crf 18 -preset medium -maxrate %dk -bufsize %dk -level 4.1 -pix_fmt yuv420p -an "%s"`,
			target.Width, target.Height, target.VideoBitrate, buf, chunkFilename)
	default:
		return fmt.Sprintf(` -s %dx%d -c:v libx264 -profile:v high -b:v %dk -level 4.1 -pix_fmt yuv420p -an "%s"`,
			target.Width, target.Height, target.VideoBitrate, chunkFilename)
	}
}

// formatHMS renders seconds as HH:MM:SS.
func formatHMS(totalSeconds int) string {
	h := totalSeconds / 3600
	m := (totalSeconds % 3600) / 60
	s := totalSeconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// MuxRequest is the input to PlanMux.
type MuxRequest struct {
	CorrelationID       string
	VideoSource         string
	AudioSource         string
	DestinationFolder   string
	DestinationFilename string
	Inpoint             *time.Duration // optional in-point offset
	VideoSourceDuration int
	Needed              models.Time
}

// PlanMux decomposes a mux request into exactly one Job of kind mux, §4.2.
func PlanMux(req MuxRequest) *models.Job {
	out := filepath.Join(req.DestinationFolder, req.DestinationFilename)

	var b strings.Builder
	if req.Inpoint != nil {
		fmt.Fprintf(&b, "-ss %s ", formatInpoint(*req.Inpoint))
	}
	fmt.Fprintf(&b, `-xerror -i "%s" -i "%s" -map 0:v:0 -map 1:a:0 -c copy -y "%s"`, req.VideoSource, req.AudioSource, out)

	return &models.Job{
		CorrelationID: req.CorrelationID,
		Arguments:     b.String(),
		Needed:        req.Needed,
		Kind:          models.JobKindMux,
		Source:        req.VideoSource,
		ChunkDuration: req.VideoSourceDuration,
		Active:        true,
	}
}

// formatInpoint renders a duration as "H:MM:SS" — unpadded hour, matching
// the in-point format scenario S4 expects.
func formatInpoint(d time.Duration) string {
	total := int(d.Seconds())
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}
