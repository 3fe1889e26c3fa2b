package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/framewatch/api/internal/classifier"
	"github.com/framewatch/api/internal/model"
)

// ErrJobNotProcessing is returned when cancelling a job that has no running
// orchestration loop.
var ErrJobNotProcessing = errors.New("job is not being processed")

// WindowStream is one opened video source yielding ordered windows.
type WindowStream interface {
	FPS() int
	TotalWindows() int
	Next(ctx context.Context, index int) ([]byte, error)
	Close() error
}

// WindowOpener resolves a locator into a window stream.
type WindowOpener interface {
	Open(ctx context.Context, source string) (WindowStream, error)
}

// SourceResolver turns an object-storage key into a retrievable URL.
type SourceResolver interface {
	GetSignedURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)
}

// VideoStore keeps uploaded videos for the duration of their job. Sources
// are transient inputs; they are removed once the job reaches a terminal
// status, while evidence snapshots persist.
type VideoStore interface {
	Upload(ctx context.Context, bucket, key string, body io.Reader, contentType string) error
	Delete(ctx context.Context, bucket, key string) error
}

// ClassifierSource selects a strategy by model tag.
type ClassifierSource interface {
	Get(m model.ModelType) (classifier.Classifier, error)
}

// JobStore persists job status records.
type JobStore interface {
	Save(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, jobID string) (*model.Job, error)
}

// Notifier pushes job progress to subscribed clients. Implemented by the
// websocket hub.
type Notifier interface {
	BroadcastProgress(jobID string, windowIndex, totalWindows int, status model.JobStatus)
	BroadcastAnomaly(jobID string, windowIndex int, label string)
	BroadcastDone(jobID string, status model.JobStatus)
	BroadcastError(jobID, code, message string)
}

// DetectionService drives detection jobs: one orchestration goroutine per
// job walks the window sequence, classifies each window and publishes an
// anomaly event per positive window, waiting for broker acknowledgment
// before moving on.
type DetectionService struct {
	jobs        JobStore
	publisher   EventPublisher
	opener      WindowOpener
	resolver    SourceResolver
	videos      VideoStore
	classifiers ClassifierSource
	hub         Notifier

	videoBucket string
	linkTTL     time.Duration

	processing map[string]context.CancelFunc
	mu         sync.Mutex
}

func NewDetectionService(
	jobs JobStore,
	publisher EventPublisher,
	opener WindowOpener,
	resolver SourceResolver,
	videos VideoStore,
	classifiers ClassifierSource,
	hub Notifier,
	videoBucket string,
	linkTTL time.Duration,
) *DetectionService {
	return &DetectionService{
		jobs:        jobs,
		publisher:   publisher,
		opener:      opener,
		resolver:    resolver,
		videos:      videos,
		classifiers: classifiers,
		hub:         hub,
		videoBucket: videoBucket,
		linkTTL:     linkTTL,
		processing:  make(map[string]context.CancelFunc),
	}
}

// StartVideo uploads a video to object storage and starts a detection job
// on it.
func (s *DetectionService) StartVideo(ctx context.Context, file io.Reader, filename string, m model.ModelType) (*model.DetectResponse, error) {
	ext := "mp4"
	if i := strings.LastIndex(filename, "."); i >= 0 && i < len(filename)-1 {
		ext = filename[i+1:]
	}
	key := fmt.Sprintf("%s%d.%s", uuid.NewString(), time.Now().Unix(), ext)

	if err := s.videos.Upload(ctx, s.videoBucket, key, file, "video/"+ext); err != nil {
		return nil, fmt.Errorf("failed to store video: %w", err)
	}

	return s.start(ctx, key, model.SourceVideo, m)
}

// StartStream starts a detection job on a live stream locator.
func (s *DetectionService) StartStream(ctx context.Context, source string, m model.ModelType) (*model.DetectResponse, error) {
	return s.start(ctx, source, model.SourceStream, m)
}

func (s *DetectionService) start(ctx context.Context, source string, srcType model.SourceType, m model.ModelType) (*model.DetectResponse, error) {
	job := &model.Job{
		ID:         uuid.NewString(),
		Source:     source,
		SourceType: srcType,
		Model:      m,
		Status:     model.JobStatusQueued,
		LastWindow: -1,
		CreatedAt:  time.Now(),
	}

	if err := s.jobs.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	go s.process(context.Background(), job)

	return &model.DetectResponse{JobID: job.ID, Status: job.Status}, nil
}

// process is the detection session for one job. It owns the job's
// cancellation and terminal status; every failure lands in the job record,
// never in a panic.
func (s *DetectionService) process(ctx context.Context, job *model.Job) {
	withCancel, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.processing[job.ID] = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.processing, job.ID)
		s.mu.Unlock()
	}()

	log.Printf("Starting detection job %s (model=%s, source=%s)", job.ID, job.Model, job.SourceType)

	cls, err := s.classifiers.Get(job.Model)
	if err != nil {
		s.failJob(ctx, withCancel, job, err)
		return
	}

	source, err := s.resolveSource(withCancel, job)
	if err != nil {
		s.failJob(ctx, withCancel, job, fmt.Errorf("source resolution failed: %w", err))
		return
	}

	stream, err := s.opener.Open(withCancel, source)
	if err != nil {
		s.failJob(ctx, withCancel, job, fmt.Errorf("probing source failed: %w", err))
		return
	}
	defer stream.Close()

	now := time.Now()
	job.Status = model.JobStatusRunning
	job.StartedAt = &now
	job.TotalWindows = stream.TotalWindows()
	if err := s.jobs.Save(ctx, job); err != nil {
		log.Printf("job %s: failed to save running status: %v", job.ID, err)
	}

	for i := 0; i < stream.TotalWindows(); i++ {
		// Cancellation is observed at window boundaries only; events already
		// published keep persisting normally.
		if withCancel.Err() != nil {
			s.finishJob(ctx, job, model.JobStatusCanceled)
			return
		}

		payload, err := stream.Next(withCancel, i)
		if err != nil {
			s.failJob(ctx, withCancel, job, fmt.Errorf("window %d extraction failed: %w", i, err))
			return
		}

		label, err := cls.Classify(withCancel, payload)
		if err != nil {
			s.failJob(ctx, withCancel, job, fmt.Errorf("window %d classification failed: %w", i, err))
			return
		}

		if label != model.NoAnomalyLabel {
			event := &model.AnomalyEvent{
				JobID:          job.ID,
				WindowIndex:    i,
				Label:          label,
				WindowsPerUnit: stream.FPS(),
				Payload:        payload,
			}
			if err := s.publisher.Publish(withCancel, event); err != nil {
				s.failJob(ctx, withCancel, job, fmt.Errorf("window %d event publish failed: %w", i, err))
				return
			}
			log.Printf("job %s: anomaly %q at window %d", job.ID, label, i)
			s.hub.BroadcastAnomaly(job.ID, i, label)
		}

		job.LastWindow = i
		if err := s.jobs.Save(ctx, job); err != nil {
			log.Printf("job %s: failed to save progress: %v", job.ID, err)
		}
		s.hub.BroadcastProgress(job.ID, i, job.TotalWindows, job.Status)
	}

	s.finishJob(ctx, job, model.JobStatusCompleted)
}

// resolveSource turns an object-storage key into a short-lived retrieval
// URL; live-stream locators pass through untouched.
func (s *DetectionService) resolveSource(ctx context.Context, job *model.Job) (string, error) {
	if job.SourceType == model.SourceStream {
		return job.Source, nil
	}
	return s.resolver.GetSignedURL(ctx, s.videoBucket, job.Source, s.linkTTL)
}

func (s *DetectionService) finishJob(ctx context.Context, job *model.Job, status model.JobStatus) {
	now := time.Now()
	job.Status = status
	job.CompletedAt = &now
	if err := s.jobs.Save(ctx, job); err != nil {
		log.Printf("job %s: failed to save terminal status: %v", job.ID, err)
	}
	if job.SourceType == model.SourceVideo {
		if err := s.videos.Delete(ctx, s.videoBucket, job.Source); err != nil {
			log.Printf("job %s: failed to remove source video: %v", job.ID, err)
		}
	}
	log.Printf("Detection job %s finished with status %s", job.ID, status)
	s.hub.BroadcastDone(job.ID, status)
}

// failJob records the terminal status for a window-loop error. A cancel
// that interrupts in-flight extraction, classification or publishing is not
// a failure; it lands as Canceled just like one observed at a window
// boundary.
func (s *DetectionService) failJob(ctx, loopCtx context.Context, job *model.Job, cause error) {
	if loopCtx.Err() != nil || errors.Is(cause, context.Canceled) {
		s.finishJob(ctx, job, model.JobStatusCanceled)
		return
	}

	log.Printf("Detection job %s failed: %v", job.ID, cause)
	msg := cause.Error()
	job.Error = &msg
	s.finishJob(ctx, job, model.JobStatusFailed)
	s.hub.BroadcastError(job.ID, "DETECTION_FAILED", msg)
}

// Cancel signals a running job to stop at the next window boundary.
func (s *DetectionService) Cancel(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cancel, ok := s.processing[jobID]
	if !ok {
		return ErrJobNotProcessing
	}
	cancel()
	delete(s.processing, jobID)
	log.Printf("Canceled detection job %s", jobID)
	return nil
}

// CancelAll stops every in-flight job; used on shutdown.
func (s *DetectionService) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, cancel := range s.processing {
		cancel()
	}
}

// GetStatus reads the status record of a job.
func (s *DetectionService) GetStatus(ctx context.Context, jobID string) (*model.JobStatusResponse, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	return &model.JobStatusResponse{
		JobID:        job.ID,
		Status:       job.Status,
		TotalWindows: job.TotalWindows,
		LastWindow:   job.LastWindow,
		Error:        job.Error,
	}, nil
}
