package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/jmylchreest/ffmpegfarm/internal/dispatcher"
	"github.com/jmylchreest/ffmpegfarm/internal/models"
	"github.com/jmylchreest/ffmpegfarm/internal/service"
)

// JobHandler exposes the job-plane submission and dispatch API (§6):
// Submit, SubmitMux, NextJob, Pause.
type JobHandler struct {
	requestService *service.RequestService
	dispatcher     *dispatcher.Dispatcher
}

// NewJobHandler creates a new job handler.
func NewJobHandler(requestService *service.RequestService, d *dispatcher.Dispatcher) *JobHandler {
	return &JobHandler{requestService: requestService, dispatcher: d}
}

// Register registers the job-plane routes with the API.
func (h *JobHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "submitJob",
		Method:      "POST",
		Path:        "/api/v1/jobs",
		Summary:     "Submit a transcoding request",
		Description: "Validates sources and destination, probes the video source, decomposes it into jobs and parts, and persists them atomically. Returns the new correlation id.",
		Tags:        []string{"Jobs"},
	}, h.Submit)

	huma.Register(api, huma.Operation{
		OperationID: "submitMuxJob",
		Method:      "POST",
		Path:        "/api/v1/jobs/mux",
		Summary:     "Submit a mux request",
		Description: "Combines a video source and an audio source into a single container via a single mux job.",
		Tags:        []string{"Jobs"},
	}, h.SubmitMux)

	huma.Register(api, huma.Operation{
		OperationID: "nextJob",
		Method:      "POST",
		Path:        "/api/v1/jobs/next",
		Summary:     "Claim the next dispatchable job",
		Description: "Records the calling worker's liveness heartbeat and claims the next dispatchable job ordered by deadline, if any exists.",
		Tags:        []string{"Jobs"},
	}, h.NextJob)

	huma.Register(api, huma.Operation{
		OperationID: "pauseRequest",
		Method:      "POST",
		Path:        "/api/v1/requests/{correlationId}/pause",
		Summary:     "Pause a request's undispatched jobs",
		Description: "Sets active=false on every job of the request that is neither taken nor done. Jobs already claimed by a worker run to completion or lease expiry.",
		Tags:        []string{"Jobs"},
	}, h.Pause)
}

// TargetRenditionBody is a single requested output rendition.
type TargetRenditionBody struct {
	Width        int `json:"width" doc:"Output width in pixels" minimum:"1"`
	Height       int `json:"height" doc:"Output height in pixels" minimum:"1"`
	VideoBitrate int `json:"video_bitrate" doc:"Video bitrate in kbps" minimum:"1"`
	AudioBitrate int `json:"audio_bitrate" doc:"Audio bitrate in kbps" minimum:"1"`
}

// SubmitJobRequest is the request body for Submit — §6's JobRequest.
type SubmitJobRequest struct {
	VideoSourceFilename string                `json:"video_source_filename,omitempty" doc:"Local path to the source video file"`
	AudioSourceFilename string                `json:"audio_source_filename,omitempty" doc:"Local path to an alternate audio source"`
	DestinationFilename string                `json:"destination_filename" doc:"Output destination path"`
	Needed              time.Time             `json:"needed" doc:"Deadline by which the request is needed"`
	EnableDash          bool                  `json:"enable_dash,omitempty" doc:"Emit MPEG-DASH-compatible encoding parameters"`
	HasAlternateAudio   bool                  `json:"has_alternate_audio,omitempty" doc:"Whether audio_source_filename names a distinct alternate audio source"`
	Targets             []TargetRenditionBody `json:"targets" doc:"Ordered list of target renditions"`
}

// SubmitJobInput is the input for Submit.
type SubmitJobInput struct {
	Body SubmitJobRequest
}

// SubmitJobOutput is the output for Submit.
type SubmitJobOutput struct {
	Body CorrelationResponse
}

// CorrelationResponse carries a request's correlation id.
type CorrelationResponse struct {
	CorrelationID string `json:"correlation_id"`
}

// Submit validates and decomposes a transcoding request, persisting its
// planned jobs and parts atomically.
func (h *JobHandler) Submit(ctx context.Context, input *SubmitJobInput) (*SubmitJobOutput, error) {
	targets := make([]models.TargetRendition, len(input.Body.Targets))
	for i, t := range input.Body.Targets {
		targets[i] = models.TargetRendition{
			Width:        t.Width,
			Height:       t.Height,
			VideoBitrate: t.VideoBitrate,
			AudioBitrate: t.AudioBitrate,
		}
	}

	correlationID, err := h.requestService.Submit(ctx, service.SubmitRequest{
		VideoSourceFilename: input.Body.VideoSourceFilename,
		AudioSourceFilename: input.Body.AudioSourceFilename,
		DestinationFilename: input.Body.DestinationFilename,
		Needed:              input.Body.Needed,
		EnableDash:          input.Body.EnableDash,
		HasAlternateAudio:   input.Body.HasAlternateAudio,
		Targets:             targets,
	})
	if err != nil {
		return nil, submissionError(err)
	}

	return &SubmitJobOutput{Body: CorrelationResponse{CorrelationID: correlationID}}, nil
}

// SubmitMuxJobRequest is the request body for SubmitMux — §6's MuxJobRequest.
type SubmitMuxJobRequest struct {
	VideoSourceFilename string `json:"video_source_filename" doc:"Local path to the source video track"`
	AudioSourceFilename string `json:"audio_source_filename" doc:"Local path to the source audio track"`
	DestinationFilename string `json:"destination_filename" doc:"Output filename, relative to output_folder"`
	OutputFolder        string `json:"output_folder" doc:"Destination folder; must already exist"`
	InpointSeconds      *int   `json:"inpoint_seconds,omitempty" doc:"Optional in-point offset, in seconds"`
}

// SubmitMuxJobInput is the input for SubmitMux.
type SubmitMuxJobInput struct {
	Body SubmitMuxJobRequest
}

// SubmitMuxJobOutput is the output for SubmitMux.
type SubmitMuxJobOutput struct {
	Body CorrelationResponse
}

// SubmitMux combines a video source and an audio source into a single
// container via one mux job.
func (h *JobHandler) SubmitMux(ctx context.Context, input *SubmitMuxJobInput) (*SubmitMuxJobOutput, error) {
	var inpoint *time.Duration
	if input.Body.InpointSeconds != nil {
		d := time.Duration(*input.Body.InpointSeconds) * time.Second
		inpoint = &d
	}

	correlationID, err := h.requestService.SubmitMux(ctx, service.SubmitMuxRequest{
		VideoSourceFilename: input.Body.VideoSourceFilename,
		AudioSourceFilename: input.Body.AudioSourceFilename,
		DestinationFilename: input.Body.DestinationFilename,
		OutputFolder:        input.Body.OutputFolder,
		Inpoint:             inpoint,
	})
	if err != nil {
		return nil, submissionError(err)
	}

	return &SubmitMuxJobOutput{Body: CorrelationResponse{CorrelationID: correlationID}}, nil
}

// NextJobRequest is the request body for NextJob.
type NextJobRequest struct {
	MachineName string `json:"machine_name" doc:"Name of the polling worker" minLength:"1"`
}

// NextJobInput is the input for NextJob.
type NextJobInput struct {
	Body NextJobRequest
}

// NextJobOutput is the output for NextJob.
type NextJobOutput struct {
	Body *TranscodingJobResponse
}

// TranscodingJobResponse is the claimed job handed to a worker (§6's
// TranscodingJob): {Id, Arguments, JobCorrelationId}.
type TranscodingJobResponse struct {
	ID               uint   `json:"id"`
	Arguments        string `json:"arguments"`
	JobCorrelationID string `json:"job_correlation_id"`
}

// NextJob records the calling worker's heartbeat and claims the next
// dispatchable job, if one exists. Returns a nil body when the queue is
// empty — this is not an error (§4.3).
func (h *JobHandler) NextJob(ctx context.Context, input *NextJobInput) (*NextJobOutput, error) {
	if input.Body.MachineName == "" {
		return nil, huma.Error400BadRequest("machine_name is required")
	}

	job, err := h.dispatcher.NextJob(ctx, input.Body.MachineName)
	if err != nil {
		if errors.Is(err, models.ErrClaimLost) {
			// A lost race is not surfaced to the worker as an error; it
			// simply retries on its next poll (§7).
			return &NextJobOutput{Body: nil}, nil
		}
		return nil, huma.Error500InternalServerError("claiming next job", err)
	}
	if job == nil {
		return &NextJobOutput{Body: nil}, nil
	}

	return &NextJobOutput{Body: &TranscodingJobResponse{
		ID:               job.ID,
		Arguments:        job.Arguments,
		JobCorrelationID: job.CorrelationID,
	}}, nil
}

// PauseInput is the input for Pause.
type PauseInput struct {
	CorrelationID string `path:"correlationId" doc:"Correlation id of the request to pause"`
}

// PauseOutput is the output for Pause.
type PauseOutput struct {
	Body PauseResponse
}

// PauseResponse reports how many jobs were paused.
type PauseResponse struct {
	JobsPaused int64 `json:"jobs_paused"`
}

// Pause stops dispatching every not-yet-taken, not-yet-done job of a
// request. Jobs already claimed by a worker are unaffected (§8 property 6).
func (h *JobHandler) Pause(ctx context.Context, input *PauseInput) (*PauseOutput, error) {
	n, err := h.dispatcher.Pause(ctx, input.CorrelationID)
	if err != nil {
		return nil, huma.Error500InternalServerError("pausing request", err)
	}
	return &PauseOutput{Body: PauseResponse{JobsPaused: n}}, nil
}

// submissionError maps the §7 error kinds onto HTTP status codes.
func submissionError(err error) error {
	switch {
	case errors.Is(err, models.ErrBadRequest):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, models.ErrSourceNotFound):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, models.ErrDestinationInvalid):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, models.ErrProbeFailed):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, models.ErrRepository):
		return huma.Error500InternalServerError("storage failure", err)
	default:
		return huma.Error500InternalServerError("submitting request", err)
	}
}
