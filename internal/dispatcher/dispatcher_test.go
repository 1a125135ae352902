package dispatcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jmylchreest/ffmpegfarm/internal/models"
	"github.com/jmylchreest/ffmpegfarm/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupDispatcherTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Request{}, &models.Job{}, &models.Part{}, &models.WorkerHeartbeat{}))
	return db
}

func seedJobs(t *testing.T, db *gorm.DB, repo repository.JobRepository, correlationID string, n int) {
	request := &models.Request{CorrelationID: correlationID, VideoSource: "in.mp4", Destination: "/out", Needed: time.Now()}
	var jobs []*models.Job
	for i := 0; i < n; i++ {
		jobs = append(jobs, &models.Job{
			CorrelationID: correlationID,
			Arguments:     "-y -i \"in.mp4\" -c:a aac -b:a 128k -vn \"out.mp4\"",
			Needed:        time.Now(),
			Kind:          models.JobKindAudio,
			Source:        "in.mp4",
			Active:        true,
		})
	}
	require.NoError(t, repo.AddRequest(context.Background(), request, jobs, nil))
}

func TestDispatcher_NextJob_ReturnsNilWhenEmpty(t *testing.T) {
	db := setupDispatcherTestDB(t)
	repo := repository.NewJobRepository(db)
	d := New(repo, time.Minute)

	job, err := d.NextJob(context.Background(), "worker-1")
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestDispatcher_NextJob_ClaimsAndRecordsHeartbeat(t *testing.T) {
	db := setupDispatcherTestDB(t)
	repo := repository.NewJobRepository(db)
	seedJobs(t, db, repo, "corr-1", 1)
	d := New(repo, time.Minute)

	job, err := d.NextJob(context.Background(), "worker-1")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.True(t, job.Taken)

	var hb models.WorkerHeartbeat
	require.NoError(t, db.Where("machine_name = ?", "worker-1").First(&hb).Error)
}

// TestDispatcher_AtMostOneWorker covers spec testable property 2: concurrent
// NextJob calls never return the same job id to two workers.
func TestDispatcher_AtMostOneWorker(t *testing.T) {
	db := setupDispatcherTestDB(t)
	repo := repository.NewJobRepository(db)
	seedJobs(t, db, repo, "corr-2", 5)
	d := New(repo, time.Minute)

	var mu sync.Mutex
	seen := map[uint]int{}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			job, err := d.NextJob(context.Background(), "worker")
			if err != nil || job == nil {
				return
			}
			mu.Lock()
			seen[job.ID]++
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	for id, count := range seen {
		assert.Equal(t, 1, count, "job %d claimed more than once", id)
	}
}

func TestDispatcher_CompleteAndFail(t *testing.T) {
	db := setupDispatcherTestDB(t)
	repo := repository.NewJobRepository(db)
	seedJobs(t, db, repo, "corr-3", 2)
	d := New(repo, time.Minute)

	j1, err := d.NextJob(context.Background(), "w1")
	require.NoError(t, err)
	require.NotNil(t, j1)
	require.NoError(t, d.Complete(context.Background(), j1.ID))

	j2, err := d.NextJob(context.Background(), "w1")
	require.NoError(t, err)
	require.NotNil(t, j2)
	require.NoError(t, d.Fail(context.Background(), j2.ID, "transcode error"))
}

func TestDispatcher_Pause(t *testing.T) {
	db := setupDispatcherTestDB(t)
	repo := repository.NewJobRepository(db)
	seedJobs(t, db, repo, "corr-4", 3)
	d := New(repo, time.Minute)

	n, err := d.Pause(context.Background(), "corr-4")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	job, err := d.NextJob(context.Background(), "w1")
	require.NoError(t, err)
	assert.Nil(t, job)
}
