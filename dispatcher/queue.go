package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// scheduleKey is the sorted set holding every scheduled reminder job.
// Member: JSON Job payload. Score: not-before unix seconds.
const scheduleKey = "reminders:schedule"

// processingKey holds claimed jobs until Complete removes them, scored by
// claim time. A crash between claim and execution leaves the member here;
// ReclaimStale moves it back onto the schedule.
const processingKey = "reminders:processing"

// Job is one deferred unit of work bound to a reminder.
type Job struct {
	ID         string `json:"id"`
	ReminderID uint   `json:"reminder_id"`
}

// Queue is a durable delayed-work queue with at-least-once delivery.
// Schedule enqueues a job that must not run before fireAt; ClaimDue hands
// each due job to exactly one caller and parks it as in-flight until
// Complete acknowledges it. ReclaimStale requeues in-flight jobs whose
// claimer died before acknowledging.
type Queue interface {
	Schedule(ctx context.Context, reminderID uint, fireAt time.Time) error
	ClaimDue(ctx context.Context, now time.Time, limit int64) ([]Job, error)
	Complete(ctx context.Context, job Job) error
	ReclaimStale(ctx context.Context, olderThan time.Time) (int, error)
	Close() error
}

// RedisQueue stores jobs in a Redis sorted set. A reschedule adds a second
// member for the same reminder rather than replacing the first; the stale
// job is neutralised by the dispatcher's status gate when it fires.
type RedisQueue struct {
	client *redis.Client
}

func NewRedisQueue(addr, password string) (*RedisQueue, error) {
	if !strings.Contains(addr, ":") {
		addr = addr + ":6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisQueue{client: client}, nil
}

func (q *RedisQueue) Schedule(ctx context.Context, reminderID uint, fireAt time.Time) error {
	payload, err := json.Marshal(Job{
		ID:         uuid.NewString(),
		ReminderID: reminderID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	err = q.client.ZAdd(ctx, scheduleKey, redis.Z{
		Score:  float64(fireAt.Unix()),
		Member: string(payload),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to schedule reminder %d: %w", reminderID, err)
	}
	return nil
}

// ClaimDue returns the due jobs this caller won. A member is copied into
// the processing set before it leaves the schedule, so a claimer that dies
// mid-flight leaves a reclaimable trace instead of losing the job. A job
// counts as claimed only when our ZRem removed its schedule member, so
// concurrent pollers never hand the same job to two workers.
func (q *RedisQueue) ClaimDue(ctx context.Context, now time.Time, limit int64) ([]Job, error) {
	members, err := q.client.ZRangeByScore(ctx, scheduleKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read due jobs: %w", err)
	}

	var jobs []Job
	for _, member := range members {
		err := q.client.ZAdd(ctx, processingKey, redis.Z{
			Score:  float64(now.Unix()),
			Member: member,
		}).Err()
		if err != nil {
			return jobs, fmt.Errorf("failed to park job: %w", err)
		}

		removed, err := q.client.ZRem(ctx, scheduleKey, member).Result()
		if err != nil {
			return jobs, fmt.Errorf("failed to claim job: %w", err)
		}
		if removed == 0 {
			continue // another poller got there first; its Complete clears the parked copy
		}

		var job Job
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			// Unparseable member is dropped for good, parked copy included,
			// or ReclaimStale would hand it back forever.
			q.client.ZRem(ctx, processingKey, member)
			continue
		}
		jobs = append(jobs, job)
	}

	return jobs, nil
}

// Complete acknowledges an executed job, removing its in-flight copy.
func (q *RedisQueue) Complete(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := q.client.ZRem(ctx, processingKey, string(payload)).Err(); err != nil {
		return fmt.Errorf("failed to acknowledge job: %w", err)
	}
	return nil
}

// ReclaimStale moves in-flight jobs claimed before olderThan back onto the
// schedule, due immediately. The status gate makes the re-delivery a no-op
// when the original claimer did finish the send.
func (q *RedisQueue) ReclaimStale(ctx context.Context, olderThan time.Time) (int, error) {
	members, err := q.client.ZRangeByScore(ctx, processingKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(olderThan.Unix(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read stalled jobs: %w", err)
	}

	reclaimed := 0
	for _, member := range members {
		err := q.client.ZAdd(ctx, scheduleKey, redis.Z{
			Score:  float64(time.Now().Unix()),
			Member: member,
		}).Err()
		if err != nil {
			return reclaimed, fmt.Errorf("failed to requeue stalled job: %w", err)
		}
		removed, err := q.client.ZRem(ctx, processingKey, member).Result()
		if err != nil {
			return reclaimed, fmt.Errorf("failed to clear stalled job: %w", err)
		}
		if removed > 0 {
			reclaimed++
		}
	}

	return reclaimed, nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
