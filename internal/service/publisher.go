package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/framewatch/api/internal/model"
)

// TaskTypeAnomaly is the broker task carrying one anomaly event.
const TaskTypeAnomaly = "detect:anomaly"

// EventPublisher hands anomaly events to the broker. Publish returns only
// after the broker has acknowledged durability, which bounds in-flight
// events to one per job and gives the window loop backpressure.
type EventPublisher interface {
	Publish(ctx context.Context, event *model.AnomalyEvent) error
}

// AsynqPublisher implements EventPublisher on the asynq task queue.
type AsynqPublisher struct {
	client   *asynq.Client
	queue    string
	maxRetry int
}

func NewAsynqPublisher(client *asynq.Client, queue string, maxRetry int) *AsynqPublisher {
	return &AsynqPublisher{
		client:   client,
		queue:    queue,
		maxRetry: maxRetry,
	}
}

// Publish enqueues the event. The task ID is derived from (job, window) so
// a retried send of the same event deduplicates at the channel level.
func (p *AsynqPublisher) Publish(ctx context.Context, event *model.AnomalyEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	task := asynq.NewTask(TaskTypeAnomaly, payload)
	_, err = p.client.EnqueueContext(ctx, task,
		asynq.Queue(p.queue),
		asynq.MaxRetry(p.maxRetry),
		asynq.TaskID(fmt.Sprintf("%s:%d", event.JobID, event.WindowIndex)),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue event: %w", err)
	}
	return nil
}
