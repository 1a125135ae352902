package planner

import (
	"testing"
	"time"

	"github.com/jmylchreest/ffmpegfarm/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseRequest() *models.Request {
	return &models.Request{
		CorrelationID: "corr-1",
		VideoSource:   "source.mp4",
		Destination:   "/out",
		Needed:        time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Targets: []models.TargetRendition{
			{Width: 1280, Height: 720, VideoBitrate: 2000, AudioBitrate: 128},
		},
	}
}

// TestPlan_S1 covers spec scenario S1 (audio-first ordering).
func TestPlan_S1(t *testing.T) {
	req := baseRequest()
	meta := ProbedMetadata{DurationSeconds: 180, Framerate: 25}

	jobs, parts, err := Plan(req, meta, Options{}, "/out", "prefix", ".mp4")
	require.NoError(t, err)

	require.Len(t, jobs, 4)
	assert.Equal(t, models.JobKindAudio, jobs[0].Kind)
	assert.Equal(t, models.JobKindVideo, jobs[1].Kind)
	assert.Equal(t, models.JobKindVideo, jobs[2].Kind)
	assert.Equal(t, models.JobKindVideo, jobs[3].Kind)

	assert.Contains(t, jobs[1].Arguments, `-ss 00:00:00`)
	assert.Contains(t, jobs[2].Arguments, `-ss 00:01:00`)
	assert.Contains(t, jobs[3].Arguments, `-ss 00:02:00`)

	require.Len(t, parts, 4)
	assert.Equal(t, "/out/prefix_0_audio.mp4", parts[0].Filename)
	assert.Equal(t, "/out/prefix_0_0.mp4", parts[1].Filename)
	assert.Equal(t, "/out/prefix_0_60.mp4", parts[2].Filename)
	assert.Equal(t, "/out/prefix_0_120.mp4", parts[3].Filename)
}

// TestPlan_S2 covers spec scenario S2 (CRF mode).
func TestPlan_S2(t *testing.T) {
	req := baseRequest()
	meta := ProbedMetadata{DurationSeconds: 180, Framerate: 25}

	jobs, _, err := Plan(req, meta, Options{EnableCrf: true}, "/out", "prefix", ".mp4")
	require.NoError(t, err)

	videoJob := jobs[1]
	assert.Contains(t, videoJob.Arguments, "-crf 18 -preset medium -maxrate 2000k -bufsize 15000k")
}

// TestPlan_S3 covers spec scenario S3 (DASH mode with framerate 25).
func TestPlan_S3(t *testing.T) {
	req := baseRequest()
	meta := ProbedMetadata{DurationSeconds: 180, Framerate: 25}

	jobs, _, err := Plan(req, meta, Options{EnableDash: true, EnableCrf: true}, "/out", "prefix", ".mp4")
	require.NoError(t, err)

	videoJob := jobs[1]
	assert.Contains(t, videoJob.Arguments, "-g 100 -keyint_min 100")
	assert.NotContains(t, videoJob.Arguments, "-crf")
}

func TestPlan_LastChunkNotShortened(t *testing.T) {
	req := baseRequest()
	meta := ProbedMetadata{DurationSeconds: 65, Framerate: 25}

	jobs, _, err := Plan(req, meta, Options{}, "/out", "prefix", ".mp4")
	require.NoError(t, err)

	var lastVideoJob *models.Job
	for _, j := range jobs {
		if j.Kind == models.JobKindVideo {
			lastVideoJob = j
		}
	}
	require.NotNil(t, lastVideoJob)
	assert.Contains(t, lastVideoJob.Arguments, "-t 60")
}

func TestPlan_AtomicityCounts(t *testing.T) {
	req := baseRequest()
	req.Targets = append(req.Targets, models.TargetRendition{Width: 640, Height: 360, VideoBitrate: 800, AudioBitrate: 96})
	meta := ProbedMetadata{DurationSeconds: 150, Framerate: 24}

	jobs, parts, err := Plan(req, meta, Options{}, "/out", "prefix", ".mp4")
	require.NoError(t, err)

	numChunks := 3 // ceil(150/60)
	wantJobs := len(req.Targets) + numChunks
	wantParts := len(req.Targets) * (1 + numChunks)
	assert.Len(t, jobs, wantJobs)
	assert.Len(t, parts, wantParts)
}

// TestPlanMux_S4 covers spec scenario S4 (mux with inpoint).
func TestPlanMux_S4(t *testing.T) {
	inpoint := 5 * time.Second
	job := PlanMux(MuxRequest{
		CorrelationID:       "corr-2",
		VideoSource:         "v.mp4",
		AudioSource:         "a.mp4",
		DestinationFolder:   "/out",
		DestinationFilename: "out.mp4",
		Inpoint:             &inpoint,
		VideoSourceDuration: 120,
	})

	assert.Equal(t, models.JobKindMux, job.Kind)
	assert.Equal(t,
		`-ss 0:00:05 -xerror -i "v.mp4" -i "a.mp4" -map 0:v:0 -map 1:a:0 -c copy -y "/out/out.mp4"`,
		job.Arguments,
	)
}

func TestPlanMux_NoInpoint(t *testing.T) {
	job := PlanMux(MuxRequest{
		VideoSource:         "v.mp4",
		AudioSource:         "a.mp4",
		DestinationFolder:   "/out",
		DestinationFilename: "out.mp4",
	})
	assert.Equal(t,
		`-xerror -i "v.mp4" -i "a.mp4" -map 0:v:0 -map 1:a:0 -c copy -y "/out/out.mp4"`,
		job.Arguments,
	)
}
