package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jmylchreest/ffmpegfarm/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupJobTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.Request{}, &models.Job{}, &models.Part{}, &models.WorkerHeartbeat{})
	require.NoError(t, err)

	return db
}

func sampleRequestAndJobs(correlationID string, needed time.Time) (*models.Request, []*models.Job, []*models.Part) {
	request := &models.Request{
		CorrelationID: correlationID,
		VideoSource:   "in.mp4",
		Destination:   "/out/out.mp4",
		Needed:        needed,
		Targets:       []models.TargetRendition{{Width: 1280, Height: 720, VideoBitrate: 2000, AudioBitrate: 128}},
	}
	jobs := []*models.Job{
		{CorrelationID: correlationID, Arguments: "-y -i \"in.mp4\" -c:a aac -b:a 128k -vn \"out_audio.mp4\"", Needed: needed, Kind: models.JobKindAudio, Source: "in.mp4", Active: true},
		{CorrelationID: correlationID, Arguments: "-y -ss 00:00:00 -t 60 -i \"in.mp4\"", Needed: needed, Kind: models.JobKindVideo, Source: "in.mp4", Active: true},
	}
	parts := []*models.Part{
		{CorrelationID: correlationID, TargetIndex: 0, Number: 0, Filename: "out_0_audio.mp4"},
		{CorrelationID: correlationID, TargetIndex: 0, Number: 0, Filename: "out_0_0.mp4"},
	}
	return request, jobs, parts
}

// TestAddRequest_Atomic covers spec testable property 1: after submission,
// exactly the planned jobs and parts are visible.
func TestAddRequest_Atomic(t *testing.T) {
	db := setupJobTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	request, jobs, parts := sampleRequestAndJobs("corr-1", time.Now())
	require.NoError(t, repo.AddRequest(ctx, request, jobs, parts))

	jobCount, err := repo.CountJobsByRequest(ctx, "corr-1")
	require.NoError(t, err)
	assert.EqualValues(t, len(jobs), jobCount)

	partCount, err := repo.CountPartsByRequest(ctx, "corr-1")
	require.NoError(t, err)
	assert.EqualValues(t, len(parts), partCount)

	got, err := repo.GetRequest(ctx, "corr-1")
	require.NoError(t, err)
	assert.Equal(t, request.Destination, got.Destination)
}

func TestAddRequest_NoJobsOrParts(t *testing.T) {
	db := setupJobTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	request := &models.Request{CorrelationID: "corr-empty", VideoSource: "in.mp4", Destination: "/out", Needed: time.Now()}
	require.NoError(t, repo.AddRequest(ctx, request, nil, nil))

	count, err := repo.CountJobsByRequest(ctx, "corr-empty")
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
}

// TestClaimNext_DeadlineOrdering covers spec testable property 4: jobs are
// claimed in deadline-ascending order with id as tiebreak.
func TestClaimNext_DeadlineOrdering(t *testing.T) {
	db := setupJobTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	now := time.Now()
	later := now.Add(time.Hour)

	request, jobs, parts := sampleRequestAndJobs("corr-2", later)
	jobs[0].Needed = later
	jobs[1].Needed = now
	require.NoError(t, repo.AddRequest(ctx, request, jobs, parts))

	claimed, err := repo.ClaimNext(ctx, time.Now(), time.Minute)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, models.JobKindVideo, claimed.Kind)
}

// TestClaimNext_MarksTakenWithHeartbeat checks that a claimed job is
// persisted as taken with a fresh heartbeat.
func TestClaimNext_MarksTakenWithHeartbeat(t *testing.T) {
	db := setupJobTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	request, jobs, parts := sampleRequestAndJobs("corr-3", time.Now())
	require.NoError(t, repo.AddRequest(ctx, request, jobs, parts))

	claimed, err := repo.ClaimNext(ctx, time.Now(), time.Minute)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.True(t, claimed.Taken)
	require.NotNil(t, claimed.Heartbeat)
}

func TestClaimNext_NoneDispatchable(t *testing.T) {
	db := setupJobTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	claimed, err := repo.ClaimNext(ctx, time.Now(), time.Minute)
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

// TestClaimNext_ExpiredLeaseReclaimed covers spec testable property 3:
// a job's lease is reclaimable exactly once its heartbeat age exceeds T_lease.
func TestClaimNext_ExpiredLeaseReclaimed(t *testing.T) {
	db := setupJobTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	request, jobs, parts := sampleRequestAndJobs("corr-4", time.Now())
	require.NoError(t, repo.AddRequest(ctx, request, jobs[:1], parts[:1]))

	leaseTimeout := 10 * time.Second
	staleHeartbeat := time.Now().Add(-leaseTimeout - time.Second)

	var job models.Job
	require.NoError(t, db.Where("correlation_id = ?", "corr-4").First(&job).Error)
	require.NoError(t, db.Model(&job).Updates(map[string]any{"taken": true, "heartbeat": staleHeartbeat}).Error)

	claimed, err := repo.ClaimNext(ctx, time.Now(), leaseTimeout)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, job.ID, claimed.ID)
}

func TestClaimNext_FreshLeaseNotReclaimed(t *testing.T) {
	db := setupJobTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	request, jobs, parts := sampleRequestAndJobs("corr-5", time.Now())
	require.NoError(t, repo.AddRequest(ctx, request, jobs[:1], parts[:1]))

	leaseTimeout := time.Minute
	fresh := time.Now()

	var job models.Job
	require.NoError(t, db.Where("correlation_id = ?", "corr-5").First(&job).Error)
	require.NoError(t, db.Model(&job).Updates(map[string]any{"taken": true, "heartbeat": fresh}).Error)

	claimed, err := repo.ClaimNext(ctx, time.Now(), leaseTimeout)
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestHeartbeat_UpdatesTakenJob(t *testing.T) {
	db := setupJobTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	request, jobs, parts := sampleRequestAndJobs("corr-6", time.Now())
	require.NoError(t, repo.AddRequest(ctx, request, jobs[:1], parts[:1]))

	claimed, err := repo.ClaimNext(ctx, time.Now(), time.Minute)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	later := time.Now().Add(time.Second)
	require.NoError(t, repo.Heartbeat(ctx, claimed.ID, later))

	got, err := repo.GetJob(ctx, claimed.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Heartbeat)
}

func TestMarkDone(t *testing.T) {
	db := setupJobTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	request, jobs, parts := sampleRequestAndJobs("corr-7", time.Now())
	require.NoError(t, repo.AddRequest(ctx, request, jobs[:1], parts[:1]))

	claimed, err := repo.ClaimNext(ctx, time.Now(), time.Minute)
	require.NoError(t, err)
	require.NoError(t, repo.MarkDone(ctx, claimed.ID))

	got, err := repo.GetJob(ctx, claimed.ID)
	require.NoError(t, err)
	assert.True(t, got.Done)
}

func TestMarkFailed(t *testing.T) {
	db := setupJobTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	request, jobs, parts := sampleRequestAndJobs("corr-8", time.Now())
	require.NoError(t, repo.AddRequest(ctx, request, jobs[:1], parts[:1]))

	claimed, err := repo.ClaimNext(ctx, time.Now(), time.Minute)
	require.NoError(t, err)
	require.NoError(t, repo.MarkFailed(ctx, claimed.ID, "exit status 1"))

	got, err := repo.GetJob(ctx, claimed.ID)
	require.NoError(t, err)
	assert.True(t, got.Done)
	assert.Equal(t, "exit status 1", got.LastError)
}

func TestMarkDone_NotFound(t *testing.T) {
	db := setupJobTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	err := repo.MarkDone(ctx, 9999)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrJobNotFound))
}

// TestPause_NeverTransitionsTakenJobs covers spec testable property 6: Pause
// affects only jobs that are neither done nor taken.
func TestPause_NeverTransitionsTakenJobs(t *testing.T) {
	db := setupJobTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	request, jobs, parts := sampleRequestAndJobs("corr-9", time.Now())
	require.NoError(t, repo.AddRequest(ctx, request, jobs, parts))

	claimed, err := repo.ClaimNext(ctx, time.Now(), time.Minute)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	n, err := repo.Pause(ctx, "corr-9")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	takenJob, err := repo.GetJob(ctx, claimed.ID)
	require.NoError(t, err)
	assert.True(t, takenJob.Taken)
	assert.True(t, takenJob.Active)
}

func TestRecordWorkerHeartbeat_Upsert(t *testing.T) {
	db := setupJobTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	first := time.Now()
	require.NoError(t, repo.RecordWorkerHeartbeat(ctx, "worker-1", first))

	second := first.Add(time.Minute)
	require.NoError(t, repo.RecordWorkerHeartbeat(ctx, "worker-1", second))

	var hb models.WorkerHeartbeat
	require.NoError(t, db.Where("machine_name = ?", "worker-1").First(&hb).Error)
	assert.WithinDuration(t, second, hb.LastSeen, time.Second)

	var count int64
	require.NoError(t, db.Model(&models.WorkerHeartbeat{}).Where("machine_name = ?", "worker-1").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestGetRequest_NotFound(t *testing.T) {
	db := setupJobTestDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	_, err := repo.GetRequest(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrRequestNotFound))
}
