package queue_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storekit/storekit/pkg/queue"
)

// newRedisStorage connects to the Redis named by TEST_REDIS_URL, or skips.
// Each test gets its own key prefix so runs don't interfere.
func newRedisStorage(t *testing.T, queues ...string) *queue.RedisStorage {
	t.Helper()

	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set, skipping Redis storage tests")
	}

	opt, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opt)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Ping(context.Background()).Err())

	rs, err := queue.NewRedisStorage(client, queues,
		queue.WithRedisKeyPrefix(fmt.Sprintf("queue-test:%s:", uuid.NewString())))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rs.Close() })

	return rs
}

func TestRedisStorage_ClaimLifecycle(t *testing.T) {
	t.Parallel()

	rs := newRedisStorage(t, "emails")
	ctx := context.Background()

	job := newJob(t, "emails", 2)
	require.NoError(t, rs.CreateJob(ctx, job))

	workerID := uuid.New()

	claimed, err := rs.ClaimJob(ctx, workerID, "emails", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, job.ID, claimed.ID)
	assert.Equal(t, queue.JobStatusRunning, claimed.Status)
	assert.Equal(t, 1, claimed.Attempts)
	require.NotNil(t, claimed.LeasedBy)
	assert.Equal(t, workerID, *claimed.LeasedBy)

	// The claim is exclusive.
	_, err = rs.ClaimJob(ctx, uuid.New(), "emails", time.Minute)
	assert.ErrorIs(t, err, queue.ErrNoJobToClaim)

	require.NoError(t, rs.CompleteJob(ctx, job.ID))

	stored, err := rs.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.JobStatusCompleted, stored.Status)
	require.NotNil(t, stored.CompletedAt)
}

func TestRedisStorage_RetryUntilFailed(t *testing.T) {
	t.Parallel()

	rs := newRedisStorage(t, "emails")
	ctx := context.Background()

	job := newJob(t, "emails", 2)
	require.NoError(t, rs.CreateJob(ctx, job))
	workerID := uuid.New()

	_, err := rs.ClaimJob(ctx, workerID, "emails", time.Minute)
	require.NoError(t, err)
	require.NoError(t, rs.RetryJob(ctx, job.ID, "smtp timeout", time.Now()))

	stored, err := rs.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.JobStatusRetrying, stored.Status)

	claimed, err := rs.ClaimJob(ctx, workerID, "emails", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, claimed.Attempts)
	require.NoError(t, rs.RetryJob(ctx, job.ID, "smtp timeout", time.Now()))

	stored, err = rs.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.JobStatusFailed, stored.Status)
	assert.Equal(t, 2, stored.Attempts)
}

func TestRedisStorage_LeaseRecovery(t *testing.T) {
	t.Parallel()

	rs := newRedisStorage(t, "emails")
	ctx := context.Background()

	job := newJob(t, "emails", 3)
	require.NoError(t, rs.CreateJob(ctx, job))

	_, err := rs.ClaimJob(ctx, uuid.New(), "emails", 10*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	recovered, err := rs.RecoverExpiredLeases(ctx, "emails")
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	claimed, err := rs.ClaimJob(ctx, uuid.New(), "emails", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, claimed.Attempts)
}

func TestRedisStorage_CancelAndReplay(t *testing.T) {
	t.Parallel()

	rs := newRedisStorage(t, "emails")
	ctx := context.Background()

	t.Run("cancel pending", func(t *testing.T) {
		job := newJob(t, "emails", 3)
		require.NoError(t, rs.CreateJob(ctx, job))

		require.NoError(t, rs.CancelJob(ctx, job.ID))

		stored, err := rs.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, queue.JobStatusCancelled, stored.Status)

		assert.ErrorIs(t, rs.CancelJob(ctx, job.ID), queue.ErrJobNotCancellable)
	})

	t.Run("replay failed", func(t *testing.T) {
		job := newJob(t, "emails", 1)
		require.NoError(t, rs.CreateJob(ctx, job))

		_, err := rs.ClaimJob(ctx, uuid.New(), "emails", time.Minute)
		require.NoError(t, err)
		require.NoError(t, rs.FailJob(ctx, job.ID, "boom"))

		require.NoError(t, rs.ReplayJob(ctx, job.ID))

		stored, err := rs.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, queue.JobStatusPending, stored.Status)
		assert.Equal(t, 0, stored.Attempts)
	})
}

// Failed jobs must stay discoverable: operators list them by queue to
// inspect and replay, they are never silently dropped.
func TestRedisStorage_ListJobs(t *testing.T) {
	t.Parallel()

	rs := newRedisStorage(t, "emails")
	ctx := context.Background()

	first := newJob(t, "emails", 1)
	first.CreatedAt = time.Now().Add(-time.Minute)
	second := newJob(t, "emails", 1)
	require.NoError(t, rs.CreateJob(ctx, first))
	require.NoError(t, rs.CreateJob(ctx, second))

	jobs, err := rs.ListJobs(ctx, "emails", queue.JobStatusPending, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, first.ID, jobs[0].ID, "oldest first")

	jobs, err = rs.ListJobs(ctx, "emails", queue.JobStatusPending, 1)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)

	// Fail one job and make sure it shows up in the failed listing.
	claimed, err := rs.ClaimJob(ctx, uuid.New(), "emails", time.Minute)
	require.NoError(t, err)
	require.NoError(t, rs.FailJob(ctx, claimed.ID, "smtp rejected"))

	jobs, err = rs.ListJobs(ctx, "emails", queue.JobStatusFailed, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, claimed.ID, jobs[0].ID)
	require.NotNil(t, jobs[0].LastError)
	assert.Contains(t, *jobs[0].LastError, "smtp rejected")

	// Replaying drains the failed index.
	require.NoError(t, rs.ReplayJob(ctx, claimed.ID))

	jobs, err = rs.ListJobs(ctx, "emails", queue.JobStatusFailed, 0)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	jobs, err = rs.ListJobs(ctx, "emails", queue.JobStatusPending, 0)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	_, err = rs.ListJobs(ctx, "", queue.JobStatusPending, 0)
	assert.Error(t, err, "queue name is required")
}

// A job that exhausts its attempts via RetryJob lands in the failed
// listing just like a fatal failure.
func TestRedisStorage_ListJobs_RetryExhaustion(t *testing.T) {
	t.Parallel()

	rs := newRedisStorage(t, "emails")
	ctx := context.Background()

	job := newJob(t, "emails", 1)
	require.NoError(t, rs.CreateJob(ctx, job))

	_, err := rs.ClaimJob(ctx, uuid.New(), "emails", time.Minute)
	require.NoError(t, err)
	require.NoError(t, rs.RetryJob(ctx, job.ID, "smtp timeout", time.Now()))

	jobs, err := rs.ListJobs(ctx, "emails", queue.JobStatusFailed, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, job.ID, jobs[0].ID)
}

func TestRedisStorage_ExtendLease(t *testing.T) {
	t.Parallel()

	rs := newRedisStorage(t, "emails")
	ctx := context.Background()

	job := newJob(t, "emails", 3)
	require.NoError(t, rs.CreateJob(ctx, job))

	_, err := rs.ClaimJob(ctx, uuid.New(), "emails", 20*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, rs.ExtendLease(ctx, job.ID, time.Minute))

	// The original lease has long run out; the extension must keep the
	// job invisible to lease recovery.
	time.Sleep(50 * time.Millisecond)

	recovered, err := rs.RecoverExpiredLeases(ctx, "emails")
	require.NoError(t, err)
	assert.Equal(t, 0, recovered)

	stored, err := rs.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.JobStatusRunning, stored.Status)
	assert.Equal(t, 1, stored.Attempts)

	_, err = rs.ClaimJob(ctx, uuid.New(), "emails", time.Minute)
	assert.ErrorIs(t, err, queue.ErrNoJobToClaim)
}
