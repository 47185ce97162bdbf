package queue

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStorage implements the queue repositories on Redis, for deployments
// where several worker processes share one queue without Postgres. Every
// state change runs as a Lua script, so claims and reports are atomic even
// under concurrent workers.
//
// Layout per queue:
//   - jobs:<id>            hash with the job fields
//   - ready:<queue>        zset of claimable job ids scored by scheduled-at
//   - running:<queue>      zset of leased job ids scored by lease expiry
//   - failed:<queue>       zset of failed job ids scored by failure time
//
// The claim and lease-recovery scripts derive job hash keys from the key
// prefix at runtime, so all keys must live on one node: standalone Redis
// (or a single hash slot) only, not Redis Cluster.
type RedisStorage struct {
	client    redis.Cmdable
	keyPrefix string
	retention time.Duration

	ticker *time.Ticker
	done   chan struct{}
}

var (
	claimScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 1)
if #ids == 0 then return false end
local id = ids[1]
local key = ARGV[4] .. id
redis.call('ZREM', KEYS[1], id)
redis.call('HSET', key, 'status', 'running', 'lease_expiry', ARGV[2], 'leased_by', ARGV[3])
redis.call('HINCRBY', key, 'attempts', 1)
redis.call('ZADD', KEYS[2], ARGV[2], id)
return redis.call('HGETALL', key)
`)

	completeScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[2], 'status')
if not status then return 0 end
if status ~= 'running' then return -1 end
redis.call('HSET', KEYS[2], 'status', 'completed', 'completed_at', ARGV[2])
redis.call('HDEL', KEYS[2], 'lease_expiry', 'leased_by')
redis.call('ZREM', KEYS[1], ARGV[1])
return 1
`)

	retryScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[3], 'status')
if not status then return 0 end
if status ~= 'running' then return -1 end
redis.call('HSET', KEYS[3], 'last_error', ARGV[2])
redis.call('HDEL', KEYS[3], 'lease_expiry', 'leased_by')
redis.call('ZREM', KEYS[1], ARGV[1])
local attempts = tonumber(redis.call('HGET', KEYS[3], 'attempts'))
local max = tonumber(redis.call('HGET', KEYS[3], 'max_attempts'))
if attempts >= max then
  redis.call('HSET', KEYS[3], 'status', 'failed', 'completed_at', ARGV[4])
  redis.call('ZADD', KEYS[4], ARGV[4], ARGV[1])
else
  redis.call('HSET', KEYS[3], 'status', 'retrying', 'scheduled_at', ARGV[3])
  redis.call('ZADD', KEYS[2], ARGV[3], ARGV[1])
end
return 1
`)

	failScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[2], 'status')
if not status then return 0 end
if status ~= 'running' then return -1 end
redis.call('HSET', KEYS[2], 'status', 'failed', 'last_error', ARGV[2], 'completed_at', ARGV[3])
redis.call('HDEL', KEYS[2], 'lease_expiry', 'leased_by')
redis.call('ZREM', KEYS[1], ARGV[1])
redis.call('ZADD', KEYS[3], ARGV[3], ARGV[1])
return 1
`)

	extendScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[2], 'status')
if not status then return 0 end
if status ~= 'running' then return -1 end
redis.call('HSET', KEYS[2], 'lease_expiry', ARGV[2])
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[1])
return 1
`)

	cancelScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[2], 'status')
if not status then return 0 end
if status ~= 'pending' and status ~= 'retrying' then return -1 end
redis.call('HSET', KEYS[2], 'status', 'cancelled', 'completed_at', ARGV[2])
redis.call('ZREM', KEYS[1], ARGV[1])
return 1
`)

	replayScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[2], 'status')
if not status then return 0 end
if status ~= 'failed' then return -1 end
redis.call('HSET', KEYS[2], 'status', 'pending', 'attempts', 0, 'scheduled_at', ARGV[2])
redis.call('HDEL', KEYS[2], 'completed_at')
redis.call('ZREM', KEYS[3], ARGV[1])
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[1])
return 1
`)

	expireLeasesScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
local recovered = 0
for _, id in ipairs(ids) do
  local key = ARGV[2] .. id
  redis.call('ZREM', KEYS[1], id)
  if redis.call('HGET', key, 'status') == 'running' then
    redis.call('HDEL', key, 'lease_expiry', 'leased_by')
    local attempts = tonumber(redis.call('HGET', key, 'attempts'))
    local max = tonumber(redis.call('HGET', key, 'max_attempts'))
    if attempts >= max then
      redis.call('HSET', key, 'status', 'failed', 'last_error', 'lease expired after final attempt', 'completed_at', ARGV[1])
      redis.call('ZADD', KEYS[3], ARGV[1], id)
    else
      redis.call('HSET', key, 'status', 'retrying', 'scheduled_at', ARGV[1])
      redis.call('ZADD', KEYS[2], ARGV[1], id)
    end
    recovered = recovered + 1
  end
end
return recovered
`)
)

// RedisStorageOption configures a RedisStorage.
type RedisStorageOption func(*RedisStorage)

// WithRedisKeyPrefix namespaces all keys, e.g. to share one Redis between
// environments. Defaults to "queue:".
func WithRedisKeyPrefix(prefix string) RedisStorageOption {
	return func(rs *RedisStorage) {
		if prefix != "" {
			rs.keyPrefix = prefix
		}
	}
}

// WithRedisRetention sets how long terminal job hashes are kept, enforced
// via key TTL once a job reaches a terminal status. Zero keeps them forever.
func WithRedisRetention(d time.Duration) RedisStorageOption {
	return func(rs *RedisStorage) {
		rs.retention = d
	}
}

// NewRedisStorage creates a Redis-backed job storage. queues lists every
// queue whose leases the background janitor should watch.
func NewRedisStorage(client redis.Cmdable, queues []string, opts ...RedisStorageOption) (*RedisStorage, error) {
	if client == nil {
		return nil, ErrRepositoryNil
	}

	rs := &RedisStorage{
		client:    client,
		keyPrefix: "queue:",
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(rs)
	}

	rs.ticker = time.NewTicker(time.Second)
	go rs.janitor(queues)

	return rs, nil
}

// Close stops the background janitor.
func (rs *RedisStorage) Close() error {
	close(rs.done)
	rs.ticker.Stop()
	return nil
}

func (rs *RedisStorage) jobKey(id string) string    { return rs.keyPrefix + "jobs:" + id }
func (rs *RedisStorage) jobKeyPrefix() string       { return rs.keyPrefix + "jobs:" }
func (rs *RedisStorage) readyKey(q string) string   { return rs.keyPrefix + "ready:" + q }
func (rs *RedisStorage) runningKey(q string) string { return rs.keyPrefix + "running:" + q }
func (rs *RedisStorage) failedKey(q string) string  { return rs.keyPrefix + "failed:" + q }

// CreateJob implements EnqueuerRepository.
func (rs *RedisStorage) CreateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job cannot be nil")
	}

	fields := jobToHash(job)
	pipe := rs.client.TxPipeline()
	pipe.HSet(ctx, rs.jobKey(job.ID.String()), fields)
	pipe.ZAdd(ctx, rs.readyKey(job.Queue), redis.Z{
		Score:  float64(job.ScheduledAt.UnixMilli()),
		Member: job.ID.String(),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store job %s: %w", job.ID, err)
	}
	return nil
}

// ClaimJob implements WorkerRepository.
func (rs *RedisStorage) ClaimJob(ctx context.Context, workerID uuid.UUID, queue string, lease time.Duration) (*Job, error) {
	now := time.Now()
	res, err := claimScript.Run(ctx, rs.client,
		[]string{rs.readyKey(queue), rs.runningKey(queue)},
		now.UnixMilli(),
		now.Add(lease).UnixMilli(),
		workerID.String(),
		rs.jobKeyPrefix(),
	).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoJobToClaim
		}
		return nil, fmt.Errorf("claim script failed: %w", err)
	}

	flat, ok := res.([]any)
	if !ok || len(flat) == 0 {
		return nil, ErrNoJobToClaim
	}
	return jobFromFlatHash(flat)
}

// CompleteJob implements WorkerRepository.
func (rs *RedisStorage) CompleteJob(ctx context.Context, jobID uuid.UUID) error {
	job, err := rs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	err = rs.runStatusScript(ctx, completeScript,
		[]string{rs.runningKey(job.Queue), rs.jobKey(jobID.String())}, jobID,
		jobID.String(), time.Now().UnixMilli())
	if err != nil {
		return err
	}
	return rs.applyRetention(ctx, jobID)
}

// RetryJob implements WorkerRepository.
func (rs *RedisStorage) RetryJob(ctx context.Context, jobID uuid.UUID, errMsg string, nextRunAt time.Time) error {
	job, err := rs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	res, err := retryScript.Run(ctx, rs.client,
		[]string{rs.runningKey(job.Queue), rs.readyKey(job.Queue), rs.jobKey(jobID.String()), rs.failedKey(job.Queue)},
		jobID.String(), errMsg, nextRunAt.UnixMilli(), time.Now().UnixMilli(),
	).Int()
	if err != nil {
		return fmt.Errorf("retry script failed: %w", err)
	}
	if err := statusScriptError(res, jobID); err != nil {
		return err
	}
	if job.Attempts >= job.MaxAttempts {
		return rs.applyRetention(ctx, jobID)
	}
	return nil
}

// FailJob implements WorkerRepository.
func (rs *RedisStorage) FailJob(ctx context.Context, jobID uuid.UUID, errMsg string) error {
	job, err := rs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	err = rs.runStatusScript(ctx, failScript,
		[]string{rs.runningKey(job.Queue), rs.jobKey(jobID.String()), rs.failedKey(job.Queue)}, jobID,
		jobID.String(), errMsg, time.Now().UnixMilli())
	if err != nil {
		return err
	}
	return rs.applyRetention(ctx, jobID)
}

// ExtendLease implements WorkerRepository.
func (rs *RedisStorage) ExtendLease(ctx context.Context, jobID uuid.UUID, d time.Duration) error {
	job, err := rs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	return rs.runStatusScript(ctx, extendScript,
		[]string{rs.runningKey(job.Queue), rs.jobKey(jobID.String())}, jobID,
		jobID.String(), time.Now().Add(d).UnixMilli())
}

// CancelJob cancels a pending or retrying job.
func (rs *RedisStorage) CancelJob(ctx context.Context, jobID uuid.UUID) error {
	job, err := rs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	res, err := cancelScript.Run(ctx, rs.client,
		[]string{rs.readyKey(job.Queue), rs.jobKey(jobID.String())},
		jobID.String(), time.Now().UnixMilli(),
	).Int()
	if err != nil {
		return fmt.Errorf("cancel script failed: %w", err)
	}
	switch res {
	case 0:
		return ErrJobNotFound
	case -1:
		return ErrJobNotCancellable
	}
	return rs.applyRetention(ctx, jobID)
}

// ReplayJob resets a failed job for a fresh round of attempts.
func (rs *RedisStorage) ReplayJob(ctx context.Context, jobID uuid.UUID) error {
	job, err := rs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	res, err := replayScript.Run(ctx, rs.client,
		[]string{rs.readyKey(job.Queue), rs.jobKey(jobID.String()), rs.failedKey(job.Queue)},
		jobID.String(), time.Now().UnixMilli(),
	).Int()
	if err != nil {
		return fmt.Errorf("replay script failed: %w", err)
	}
	switch res {
	case 0:
		return ErrJobNotFound
	case -1:
		return ErrJobNotReplayable
	}
	// Replayed jobs must outlive any retention TTL set while failed.
	if rs.retention > 0 {
		if err := rs.client.Persist(ctx, rs.jobKey(jobID.String())).Err(); err != nil {
			return fmt.Errorf("failed to clear retention on job %s: %w", jobID, err)
		}
	}
	return nil
}

// GetJob fetches a job by id.
func (rs *RedisStorage) GetJob(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	fields, err := rs.client.HGetAll(ctx, rs.jobKey(jobID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read job %s: %w", jobID, err)
	}
	if len(fields) == 0 {
		return nil, ErrJobNotFound
	}
	return jobFromHash(fields)
}

// ListJobs returns jobs in the queue with the given status, oldest first,
// up to limit (0 means no limit). The queue name is required: Redis keys
// are per queue, there is no cross-queue index. Pending, retrying, running
// and failed jobs are indexed; an empty status matches all of them.
// Completed and cancelled jobs are not listable, they only live out their
// retention TTL.
func (rs *RedisStorage) ListJobs(ctx context.Context, queueName string, status JobStatus, limit int) ([]Job, error) {
	if queueName == "" {
		return nil, errors.New("queue name is required")
	}

	var indexes []string
	switch status {
	case JobStatusPending, JobStatusRetrying:
		indexes = []string{rs.readyKey(queueName)}
	case JobStatusRunning:
		indexes = []string{rs.runningKey(queueName)}
	case JobStatusFailed:
		indexes = []string{rs.failedKey(queueName)}
	case "":
		indexes = []string{rs.readyKey(queueName), rs.runningKey(queueName), rs.failedKey(queueName)}
	default:
		return nil, fmt.Errorf("status %q is not indexed in the redis storage", status)
	}

	var out []Job
	for _, key := range indexes {
		ids, err := rs.client.ZRange(ctx, key, 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to list jobs in queue %q: %w", queueName, err)
		}
		for _, id := range ids {
			fields, err := rs.client.HGetAll(ctx, rs.jobKeyPrefix()+id).Result()
			if err != nil {
				return nil, fmt.Errorf("failed to read job %s: %w", id, err)
			}
			if len(fields) == 0 {
				// The hash expired with the retention window; drop the
				// dangling index entry.
				_ = rs.client.ZRem(ctx, key, id).Err()
				continue
			}
			job, err := jobFromHash(fields)
			if err != nil {
				return nil, err
			}
			if status != "" && job.Status != status {
				continue
			}
			out = append(out, *job)
		}
	}

	slices.SortFunc(out, func(a, b Job) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// RecoverExpiredLeases moves jobs whose lease ran out back to a claimable
// status (or to failed when their attempt budget is spent) and returns how
// many jobs were recovered. The janitor calls this every second; it is
// exported for deployments that run their own sweep cadence.
func (rs *RedisStorage) RecoverExpiredLeases(ctx context.Context, queue string) (int, error) {
	res, err := expireLeasesScript.Run(ctx, rs.client,
		[]string{rs.runningKey(queue), rs.readyKey(queue), rs.failedKey(queue)},
		time.Now().UnixMilli(), rs.jobKeyPrefix(),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("lease recovery failed for queue %q: %w", queue, err)
	}
	return res, nil
}

func (rs *RedisStorage) janitor(queues []string) {
	for {
		select {
		case <-rs.ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			for _, q := range queues {
				_, _ = rs.RecoverExpiredLeases(ctx, q)
			}
			cancel()
		case <-rs.done:
			return
		}
	}
}

// applyRetention sets the retention TTL on a job that just went terminal.
func (rs *RedisStorage) applyRetention(ctx context.Context, jobID uuid.UUID) error {
	if rs.retention <= 0 {
		return nil
	}
	job, err := rs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.Status.Terminal() {
		return nil
	}
	if err := rs.client.Expire(ctx, rs.jobKey(jobID.String()), rs.retention).Err(); err != nil {
		return fmt.Errorf("failed to set retention on job %s: %w", jobID, err)
	}
	return nil
}

func (rs *RedisStorage) runStatusScript(ctx context.Context, script *redis.Script, keys []string, jobID uuid.UUID, args ...any) error {
	res, err := script.Run(ctx, rs.client, keys, args...).Int()
	if err != nil {
		return fmt.Errorf("job status script failed: %w", err)
	}
	return statusScriptError(res, jobID)
}

func statusScriptError(res int, jobID uuid.UUID) error {
	switch res {
	case 0:
		return ErrJobNotFound
	case -1:
		return fmt.Errorf("job %s is not running", jobID)
	}
	return nil
}

// Hash encoding: primitive field values so Lua can update them in place.
// Times are unix milliseconds; the backoff schedule is a comma-joined list
// of millisecond values.

func jobToHash(job *Job) map[string]any {
	fields := map[string]any{
		"id":           job.ID.String(),
		"queue":        job.Queue,
		"name":         job.Name,
		"payload":      string(job.Payload),
		"status":       string(job.Status),
		"attempts":     job.Attempts,
		"max_attempts": job.MaxAttempts,
		"scheduled_at": job.ScheduledAt.UnixMilli(),
		"created_at":   job.CreatedAt.UnixMilli(),
	}
	if len(job.Backoff) > 0 {
		parts := make([]string, len(job.Backoff))
		for i, d := range job.Backoff {
			parts[i] = strconv.FormatInt(d.Milliseconds(), 10)
		}
		fields["backoff"] = strings.Join(parts, ",")
	}
	return fields
}

func jobFromFlatHash(flat []any) (*Job, error) {
	fields := make(map[string]string, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		k, kok := flat[i].(string)
		v, vok := flat[i+1].(string)
		if !kok || !vok {
			return nil, fmt.Errorf("unexpected claim script reply element at %d", i)
		}
		fields[k] = v
	}
	return jobFromHash(fields)
}

func jobFromHash(fields map[string]string) (*Job, error) {
	id, err := uuid.Parse(fields["id"])
	if err != nil {
		return nil, fmt.Errorf("invalid job id %q: %w", fields["id"], err)
	}

	job := &Job{
		ID:      id,
		Queue:   fields["queue"],
		Name:    fields["name"],
		Payload: []byte(fields["payload"]),
		Status:  JobStatus(fields["status"]),
	}

	if job.Attempts, err = strconv.Atoi(fields["attempts"]); err != nil {
		return nil, fmt.Errorf("invalid attempts for job %s: %w", id, err)
	}
	if job.MaxAttempts, err = strconv.Atoi(fields["max_attempts"]); err != nil {
		return nil, fmt.Errorf("invalid max_attempts for job %s: %w", id, err)
	}
	if job.ScheduledAt, err = parseMillis(fields["scheduled_at"]); err != nil {
		return nil, fmt.Errorf("invalid scheduled_at for job %s: %w", id, err)
	}
	if job.CreatedAt, err = parseMillis(fields["created_at"]); err != nil {
		return nil, fmt.Errorf("invalid created_at for job %s: %w", id, err)
	}

	if v, ok := fields["lease_expiry"]; ok && v != "" {
		t, err := parseMillis(v)
		if err != nil {
			return nil, fmt.Errorf("invalid lease_expiry for job %s: %w", id, err)
		}
		job.LeaseExpiry = &t
	}
	if v, ok := fields["leased_by"]; ok && v != "" {
		workerID, err := uuid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("invalid leased_by for job %s: %w", id, err)
		}
		job.LeasedBy = &workerID
	}
	if v, ok := fields["last_error"]; ok && v != "" {
		job.LastError = &v
	}
	if v, ok := fields["completed_at"]; ok && v != "" {
		t, err := parseMillis(v)
		if err != nil {
			return nil, fmt.Errorf("invalid completed_at for job %s: %w", id, err)
		}
		job.CompletedAt = &t
	}
	if v, ok := fields["backoff"]; ok && v != "" {
		for _, part := range strings.Split(v, ",") {
			ms, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid backoff for job %s: %w", id, err)
			}
			job.Backoff = append(job.Backoff, time.Duration(ms)*time.Millisecond)
		}
	}

	return job, nil
}

func parseMillis(v string) (time.Time, error) {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}
