package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/framewatch/api/internal/model"
)

// AnomalyRecords reads back persisted anomaly records.
type AnomalyRecords interface {
	FindByJob(ctx context.Context, jobID string) ([]model.AnomalyRecord, error)
}

// ResultService answers result queries: it reads the anomaly records of a
// job and mints fresh time-limited snapshot links for each one.
type ResultService struct {
	records     AnomalyRecords
	resolver    SourceResolver
	frameBucket string
	linkTTL     time.Duration
}

func NewResultService(records AnomalyRecords, resolver SourceResolver, frameBucket string, linkTTL time.Duration) *ResultService {
	return &ResultService{
		records:     records,
		resolver:    resolver,
		frameBucket: frameBucket,
		linkTTL:     linkTTL,
	}
}

// FindResult returns every anomaly recorded for a job, ordered by window
// index, each with one link per stored snapshot. A store or link failure
// fails the whole query rather than returning a partial listing.
func (s *ResultService) FindResult(ctx context.Context, jobID string) (*model.FindResultResponse, error) {
	records, err := s.records.FindByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].WindowIndex < records[j].WindowIndex
	})

	anomalies := make([]model.AnomalyResult, 0, len(records))
	for _, rec := range records {
		links := make([]string, 0, rec.SnapshotCount)
		for seq := 0; seq < rec.SnapshotCount; seq++ {
			key := SnapshotKey(rec.JobID, rec.WindowIndex, seq)
			url, err := s.resolver.GetSignedURL(ctx, s.frameBucket, key, s.linkTTL)
			if err != nil {
				return nil, fmt.Errorf("failed to sign snapshot link %s: %w", key, err)
			}
			links = append(links, url)
		}
		anomalies = append(anomalies, model.AnomalyResult{
			WindowIndex: rec.WindowIndex,
			Label:       rec.Label,
			Links:       links,
		})
	}

	return &model.FindResultResponse{
		JobID:     jobID,
		Anomalies: anomalies,
	}, nil
}

// SnapshotKey is the object key under which the evidence worker stores the
// seq-th snapshot of a window. The result query must derive the same keys.
func SnapshotKey(jobID string, windowIndex, seq int) string {
	return fmt.Sprintf("%s/%d_%d.jpg", jobID, windowIndex, seq)
}
