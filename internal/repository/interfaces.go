// Package repository defines and implements durable persistence for the job
// plane: requests, their planned jobs and parts, and worker liveness.
package repository

import (
	"context"
	"time"

	"github.com/jmylchreest/ffmpegfarm/internal/models"
)

// JobRepository persists planned output and mediates concurrent access to
// the shared job queue. AddRequest, and ClaimNext on PostgreSQL/MySQL, run
// inside a single transaction; the other mutating operations run without an
// explicit transaction. No isolation level is set, so transactions use the
// storage engine's default isolation.
type JobRepository interface {
	// AddRequest atomically persists a request together with its jobs and
	// parts. All three tables are updated in a single transaction; on any
	// failure nothing is committed.
	AddRequest(ctx context.Context, request *models.Request, jobs []*models.Job, parts []*models.Part) error

	// ClaimNext selects one dispatchable job ordered by deadline ascending
	// (id tiebreak), marks it taken with a fresh heartbeat, and returns it.
	// Returns (nil, nil) if no dispatchable job exists. Returns
	// models.ErrClaimLost if the conditional update raced another claimer.
	ClaimNext(ctx context.Context, now time.Time, leaseTimeout time.Duration) (*models.Job, error)

	// Heartbeat refreshes a claimed job's heartbeat timestamp.
	Heartbeat(ctx context.Context, jobID uint, now time.Time) error

	// MarkDone transitions a job to its terminal completed state.
	MarkDone(ctx context.Context, jobID uint) error

	// MarkFailed transitions a job to its terminal failed state, recording
	// the given reason.
	MarkFailed(ctx context.Context, jobID uint, reason string) error

	// Pause sets active=false on every job of the given request for which
	// done=false and taken=false. Returns the number of jobs affected.
	Pause(ctx context.Context, correlationID string) (int64, error)

	// RecordWorkerHeartbeat upserts a worker liveness row.
	RecordWorkerHeartbeat(ctx context.Context, machineName string, now time.Time) error

	// GetJob retrieves a job by id, for inspection/testing.
	GetJob(ctx context.Context, jobID uint) (*models.Job, error)

	// GetRequest retrieves a request by correlation id, for inspection/testing.
	GetRequest(ctx context.Context, correlationID string) (*models.Request, error)

	// CountJobsByRequest returns the number of jobs persisted for a request.
	CountJobsByRequest(ctx context.Context, correlationID string) (int64, error)

	// CountPartsByRequest returns the number of parts persisted for a request.
	CountPartsByRequest(ctx context.Context, correlationID string) (int64, error)
}
