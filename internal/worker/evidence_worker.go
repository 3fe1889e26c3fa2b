package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/hibiken/asynq"

	"github.com/framewatch/api/internal/model"
	"github.com/framewatch/api/internal/service"
)

// SnapshotExtractor decodes a chunk file into representative JPEG frames.
type SnapshotExtractor interface {
	ExtractSnapshots(ctx context.Context, chunkPath, outDir string, count int) ([]string, error)
}

// FrameUploader stores snapshot objects.
type FrameUploader interface {
	Upload(ctx context.Context, bucket, key string, body io.Reader, contentType string) error
}

// AnomalyWriter persists the durable record of one processed event.
type AnomalyWriter interface {
	Put(ctx context.Context, rec model.AnomalyRecord) error
}

// EvidenceWorker consumes anomaly events off the queue: it decodes the
// window payload into snapshots, uploads them to object storage and writes
// the anomaly record. Returning an error leaves the event on the queue for
// redelivery; processing is idempotent because snapshot keys and the record
// field are both derived from (job, window).
type EvidenceWorker struct {
	extractor SnapshotExtractor
	storage   FrameUploader
	anomalies AnomalyWriter

	frameBucket   string
	snapshotCount int
}

func NewEvidenceWorker(extractor SnapshotExtractor, storage FrameUploader, anomalies AnomalyWriter, frameBucket string, snapshotCount int) *EvidenceWorker {
	return &EvidenceWorker{
		extractor:     extractor,
		storage:       storage,
		anomalies:     anomalies,
		frameBucket:   frameBucket,
		snapshotCount: snapshotCount,
	}
}

// ProcessTask handles one anomaly event.
func (w *EvidenceWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var event model.AnomalyEvent
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		return fmt.Errorf("failed to unmarshal anomaly event: %w", err)
	}

	log.Printf("Persisting anomaly evidence for job %s window %d (%s)", event.JobID, event.WindowIndex, event.Label)

	scratch, err := os.MkdirTemp("", "evidence-")
	if err != nil {
		return fmt.Errorf("failed to create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	chunkPath := filepath.Join(scratch, "chunk.bin")
	if err := os.WriteFile(chunkPath, event.Payload, 0o644); err != nil {
		return fmt.Errorf("failed to write chunk: %w", err)
	}

	frames, err := w.extractor.ExtractSnapshots(ctx, chunkPath, scratch, w.snapshotCount)
	if err != nil {
		return fmt.Errorf("failed to extract snapshots for %s/%d: %w", event.JobID, event.WindowIndex, err)
	}

	for seq, framePath := range frames {
		data, err := os.ReadFile(framePath)
		if err != nil {
			return fmt.Errorf("failed to read snapshot %s: %w", framePath, err)
		}
		key := service.SnapshotKey(event.JobID, event.WindowIndex, seq)
		if err := w.storage.Upload(ctx, w.frameBucket, key, bytes.NewReader(data), "image/jpeg"); err != nil {
			return fmt.Errorf("failed to upload snapshot %s: %w", key, err)
		}
	}

	rec := model.AnomalyRecord{
		JobID:         event.JobID,
		WindowIndex:   event.WindowIndex,
		Label:         event.Label,
		SnapshotCount: len(frames),
	}
	if err := w.anomalies.Put(ctx, rec); err != nil {
		return fmt.Errorf("failed to save anomaly record %s/%d: %w", event.JobID, event.WindowIndex, err)
	}

	return nil
}
