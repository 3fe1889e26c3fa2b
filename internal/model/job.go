package model

import "time"

// Job is the durable status record of a detection job. The orchestration
// state itself lives in the goroutine driving the job; this record only
// exists so status can be queried after the fact.
type Job struct {
	ID           string     `json:"id"`
	Source       string     `json:"source"`
	SourceType   SourceType `json:"sourceType"`
	Model        ModelType  `json:"model"`
	Status       JobStatus  `json:"status"`
	TotalWindows int        `json:"totalWindows"`
	LastWindow   int        `json:"lastWindow"`
	Error        *string    `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// StreamDetectRequest starts detection on a live stream
type StreamDetectRequest struct {
	Source string `json:"source" validate:"required"`
	Model  string `json:"model" validate:"required"`
}

// DetectResponse is returned when a job has been accepted
type DetectResponse struct {
	JobID  string    `json:"jobId"`
	Status JobStatus `json:"status"`
}

// ArchiveDetectResponse is returned for archive uploads, one job per entry
type ArchiveDetectResponse struct {
	JobIDs []string `json:"jobIds"`
}

// JobStatusResponse reports progress of a detection job
type JobStatusResponse struct {
	JobID        string    `json:"jobId"`
	Status       JobStatus `json:"status"`
	TotalWindows int       `json:"totalWindows"`
	LastWindow   int       `json:"lastWindow"`
	Error        *string   `json:"error,omitempty"`
}
