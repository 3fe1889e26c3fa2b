package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/framewatch/api/internal/model"
)

// ErrJobNotFound is returned when no status record exists for a job id.
var ErrJobNotFound = errors.New("job not found")

const jobTTL = 24 * time.Hour

// JobStore keeps detection job status records so they can be queried after
// the orchestrating call returns.
type JobStore struct {
	redis *redis.Client
}

func NewJobStore(redisClient *redis.Client) *JobStore {
	return &JobStore{redis: redisClient}
}

func jobKey(id string) string {
	return fmt.Sprintf("job:%s", id)
}

// Save writes the job record with a rolling TTL.
func (s *JobStore) Save(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, jobKey(job.ID), data, jobTTL).Err()
}

// Get reads one job record.
func (s *JobStore) Get(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}

	return &job, nil
}
