// Package service implements the request-plane business logic that sits in
// front of the planner and the repository: validating a submission, probing
// its source media, decomposing it into jobs and parts, and persisting the
// result atomically.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmylchreest/ffmpegfarm/internal/mediaprobe"
	"github.com/jmylchreest/ffmpegfarm/internal/models"
	"github.com/jmylchreest/ffmpegfarm/internal/planner"
	"github.com/jmylchreest/ffmpegfarm/internal/repository"
)

// SubmitRequest is the validated input to RequestService.Submit — the
// JobRequest of §6.
type SubmitRequest struct {
	VideoSourceFilename string
	AudioSourceFilename string
	DestinationFilename string
	Needed              time.Time
	EnableDash          bool
	HasAlternateAudio   bool
	Targets             []models.TargetRendition
}

// SubmitMuxRequest is the validated input to RequestService.SubmitMux — the
// MuxJobRequest of §6.
type SubmitMuxRequest struct {
	VideoSourceFilename string
	AudioSourceFilename string
	DestinationFilename string
	OutputFolder        string
	Inpoint             *time.Duration
}

// RequestService validates a submission, probes its video source, plans the
// decomposed jobs and parts, and persists them atomically (§4.5).
type RequestService struct {
	repo      repository.JobRepository
	probe     mediaprobe.MediaProbe
	enableCrf bool
	logger    *slog.Logger
}

// NewRequestService creates a RequestService. enableCrf selects the
// constant-rate-factor encoding tail over constant-bitrate for non-DASH
// submissions, per the Dispatch.EnableCrf configuration option (§6); DASH
// always takes precedence when a request sets EnableDash.
func NewRequestService(repo repository.JobRepository, probe mediaprobe.MediaProbe, enableCrf bool) *RequestService {
	return &RequestService{
		repo:      repo,
		probe:     probe,
		enableCrf: enableCrf,
		logger:    slog.Default(),
	}
}

// WithLogger sets the logger for the service.
func (s *RequestService) WithLogger(logger *slog.Logger) *RequestService {
	s.logger = logger
	return s
}

// Submit validates req, probes its video source, plans the decomposed jobs
// and parts, and persists everything atomically. Nothing is persisted on any
// validation, probe, or repository failure (§4.5, §7).
func (s *RequestService) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if err := validateSubmitRequest(req); err != nil {
		return "", err
	}

	if err := checkSourceExists(req.VideoSourceFilename); err != nil {
		return "", err
	}
	if err := checkSourceExists(req.AudioSourceFilename); err != nil {
		return "", err
	}

	destFolder := filepath.Dir(req.DestinationFilename)
	if err := checkDestinationFolder(destFolder); err != nil {
		return "", err
	}

	var meta planner.ProbedMetadata
	if req.VideoSourceFilename != "" {
		result, err := s.probe.Probe(ctx, req.VideoSourceFilename)
		if err != nil {
			s.logger.Error("probing video source", "source", req.VideoSourceFilename, "error", err)
			return "", err
		}
		meta = planner.ProbedMetadata{DurationSeconds: result.DurationSeconds, Framerate: result.Framerate}
	}

	correlationID := uuid.NewString()

	request := &models.Request{
		CorrelationID: correlationID,
		VideoSource:   req.VideoSourceFilename,
		AudioSource:   req.AudioSourceFilename,
		Destination:   req.DestinationFilename,
		Needed:        req.Needed,
		EnableDash:    req.EnableDash,
		Targets:       req.Targets,
	}

	prefix, destExtension := splitDestination(req.DestinationFilename)
	opts := planner.Options{EnableDash: req.EnableDash, EnableCrf: s.enableCrf}

	jobs, parts, err := planner.Plan(request, meta, opts, destFolder, prefix, destExtension)
	if err != nil {
		return "", err
	}

	if err := s.repo.AddRequest(ctx, request, jobs, parts); err != nil {
		s.logger.Error("persisting request", "correlation_id", correlationID, "error", err)
		return "", err
	}

	s.logger.Info("request submitted", "correlation_id", correlationID, "jobs", len(jobs), "parts", len(parts))
	return correlationID, nil
}

// SubmitMux validates req, probes its video source for duration, plans the
// single mux job, and persists it atomically. Unlike Submit, a mux request
// carries no deadline field (§6); the owning request's Needed is set to the
// submission instant, giving mux jobs no fairness priority over each other
// beyond FIFO-by-id.
func (s *RequestService) SubmitMux(ctx context.Context, req SubmitMuxRequest) (string, error) {
	if err := validateSubmitMuxRequest(req); err != nil {
		return "", err
	}

	if err := checkSourceExists(req.VideoSourceFilename); err != nil {
		return "", err
	}
	if err := checkSourceExists(req.AudioSourceFilename); err != nil {
		return "", err
	}
	if err := checkDestinationFolder(req.OutputFolder); err != nil {
		return "", err
	}

	result, err := s.probe.Probe(ctx, req.VideoSourceFilename)
	if err != nil {
		s.logger.Error("probing video source", "source", req.VideoSourceFilename, "error", err)
		return "", err
	}

	correlationID := uuid.NewString()
	needed := time.Now()

	job := planner.PlanMux(planner.MuxRequest{
		CorrelationID:       correlationID,
		VideoSource:         req.VideoSourceFilename,
		AudioSource:         req.AudioSourceFilename,
		DestinationFolder:   req.OutputFolder,
		DestinationFilename: req.DestinationFilename,
		Inpoint:             req.Inpoint,
		VideoSourceDuration: result.DurationSeconds,
		Needed:              needed,
	})

	request := &models.Request{
		CorrelationID: correlationID,
		VideoSource:   req.VideoSourceFilename,
		AudioSource:   req.AudioSourceFilename,
		Destination:   filepath.Join(req.OutputFolder, req.DestinationFilename),
		Needed:        needed,
	}

	if err := s.repo.AddRequest(ctx, request, []*models.Job{job}, nil); err != nil {
		s.logger.Error("persisting mux request", "correlation_id", correlationID, "error", err)
		return "", err
	}

	s.logger.Info("mux request submitted", "correlation_id", correlationID, "job_id", job.ID)
	return correlationID, nil
}

func validateSubmitRequest(req SubmitRequest) error {
	if req.VideoSourceFilename == "" && req.AudioSourceFilename == "" {
		return fmt.Errorf("%w: at least one of video or audio source is required", models.ErrBadRequest)
	}
	if req.HasAlternateAudio && req.AudioSourceFilename == "" {
		return fmt.Errorf("%w: alternate audio requested but no audio source given", models.ErrBadRequest)
	}
	if req.DestinationFilename == "" {
		return fmt.Errorf("%w: destination filename is required", models.ErrBadRequest)
	}
	if len(req.Targets) == 0 {
		return fmt.Errorf("%w: at least one target rendition is required", models.ErrBadRequest)
	}
	return nil
}

func validateSubmitMuxRequest(req SubmitMuxRequest) error {
	if req.VideoSourceFilename == "" || req.AudioSourceFilename == "" {
		return fmt.Errorf("%w: video and audio source are both required for a mux job", models.ErrBadRequest)
	}
	if req.DestinationFilename == "" || req.OutputFolder == "" {
		return fmt.Errorf("%w: output folder and destination filename are required", models.ErrBadRequest)
	}
	return nil
}

// checkSourceExists reports models.ErrSourceNotFound if path is non-empty
// and does not exist on the local filesystem. An empty path (source not
// declared) is not an error here; that is validated separately.
func checkSourceExists(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", models.ErrSourceNotFound, path)
	}
	return nil
}

// checkDestinationFolder reports models.ErrDestinationInvalid if folder does
// not exist or is not a directory.
func checkDestinationFolder(folder string) error {
	info, err := os.Stat(folder)
	if err != nil {
		return fmt.Errorf("%w: %s", models.ErrDestinationInvalid, folder)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", models.ErrDestinationInvalid, folder)
	}
	return nil
}

// splitDestination splits a destination filename into the Planner's prefix
// (basename without extension) and destExtension (including the leading dot).
func splitDestination(destinationFilename string) (prefix, destExtension string) {
	base := filepath.Base(destinationFilename)
	destExtension = filepath.Ext(base)
	prefix = strings.TrimSuffix(base, destExtension)
	return prefix, destExtension
}
