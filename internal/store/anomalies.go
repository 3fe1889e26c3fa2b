package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/framewatch/api/internal/model"
)

// AnomalyStore persists anomaly records as JSON documents in a per-job
// hash keyed by window index. Writing is an upsert: broker redelivery of an
// event overwrites the existing record for its (job, window) pair instead
// of duplicating it.
type AnomalyStore struct {
	redis *redis.Client
}

func NewAnomalyStore(redisClient *redis.Client) *AnomalyStore {
	return &AnomalyStore{redis: redisClient}
}

func recordsKey(jobID string) string {
	return fmt.Sprintf("anomalies:%s", jobID)
}

// Put writes one anomaly record.
func (s *AnomalyStore) Put(ctx context.Context, rec model.AnomalyRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	field := fmt.Sprintf("%d", rec.WindowIndex)
	if err := s.redis.HSet(ctx, recordsKey(rec.JobID), field, data).Err(); err != nil {
		return fmt.Errorf("write anomaly record %s/%d: %w", rec.JobID, rec.WindowIndex, err)
	}
	return nil
}

// FindByJob returns all records for a job in store order. Callers that need
// strict window ordering must sort.
func (s *AnomalyStore) FindByJob(ctx context.Context, jobID string) ([]model.AnomalyRecord, error) {
	entries, err := s.redis.HGetAll(ctx, recordsKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read anomaly records for %s: %w", jobID, err)
	}

	records := make([]model.AnomalyRecord, 0, len(entries))
	for _, raw := range entries {
		var rec model.AnomalyRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode anomaly record for %s: %w", jobID, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
