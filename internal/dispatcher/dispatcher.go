// Package dispatcher implements the lease state machine that hands jobs to
// workers and reclaims them on expiry. It mediates all worker-facing access
// to the job queue; nothing else in this module claims or pauses jobs
// directly against the repository.
package dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jmylchreest/ffmpegfarm/internal/models"
	"github.com/jmylchreest/ffmpegfarm/internal/repository"
)

// Dispatcher wraps a JobRepository with the worker-facing claim/pause
// operations. It runs no background loop: lease expiry is evaluated lazily,
// at the moment a worker next asks for a job, by ClaimNext's own predicate.
type Dispatcher struct {
	jobRepo      repository.JobRepository
	leaseTimeout time.Duration
	logger       *slog.Logger
}

// New creates a Dispatcher with the given lease timeout (T_lease, §4.4).
func New(jobRepo repository.JobRepository, leaseTimeout time.Duration) *Dispatcher {
	return &Dispatcher{
		jobRepo:      jobRepo,
		leaseTimeout: leaseTimeout,
		logger:       slog.Default(),
	}
}

// WithLogger sets a custom logger.
func (d *Dispatcher) WithLogger(logger *slog.Logger) *Dispatcher {
	d.logger = logger
	return d
}

// NextJob claims the next dispatchable job for machineName and records its
// liveness heartbeat. Returns (nil, nil) when the queue has no dispatchable
// job. A lost race against a concurrent claimer surfaces as
// models.ErrClaimLost; the caller is expected to retry or report empty,
// never to retry internally (§7).
func (d *Dispatcher) NextJob(ctx context.Context, machineName string) (*models.Job, error) {
	now := time.Now()

	if err := d.jobRepo.RecordWorkerHeartbeat(ctx, machineName, now); err != nil {
		d.logger.Error("recording worker heartbeat", "machine", machineName, "error", err)
		return nil, err
	}

	job, err := d.jobRepo.ClaimNext(ctx, now, d.leaseTimeout)
	if err != nil {
		if errors.Is(err, models.ErrClaimLost) {
			d.logger.Warn("claim lost to concurrent worker", "machine", machineName)
			return nil, err
		}
		d.logger.Error("claiming next job", "machine", machineName, "error", err)
		return nil, err
	}
	if job == nil {
		return nil, nil
	}

	d.logger.Info("job claimed", "machine", machineName, "job_id", job.ID, "correlation_id", job.CorrelationID, "kind", job.Kind)
	return job, nil
}

// Heartbeat refreshes a claimed job's lease.
func (d *Dispatcher) Heartbeat(ctx context.Context, jobID uint) error {
	return d.jobRepo.Heartbeat(ctx, jobID, time.Now())
}

// Complete marks a job done.
func (d *Dispatcher) Complete(ctx context.Context, jobID uint) error {
	d.logger.Info("job completed", "job_id", jobID)
	return d.jobRepo.MarkDone(ctx, jobID)
}

// Fail marks a job failed, recording the reason. A failed job is terminal:
// MarkFailed sets it done, so it is never dispatched again and nothing
// retries it internally.
func (d *Dispatcher) Fail(ctx context.Context, jobID uint, reason string) error {
	d.logger.Warn("job failed", "job_id", jobID, "reason", reason)
	return d.jobRepo.MarkFailed(ctx, jobID, reason)
}

// Pause stops dispatching every not-yet-taken, not-yet-done job of a
// request. A job already taken by a worker runs to completion or lease
// expiry; Pause never transitions a taken job (§8 testable property 6).
func (d *Dispatcher) Pause(ctx context.Context, correlationID string) (int64, error) {
	n, err := d.jobRepo.Pause(ctx, correlationID)
	if err != nil {
		d.logger.Error("pausing request", "correlation_id", correlationID, "error", err)
		return 0, err
	}
	d.logger.Info("request paused", "correlation_id", correlationID, "jobs_paused", n)
	return n, nil
}
