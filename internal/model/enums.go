package model

import "fmt"

// ModelType selects the classifier strategy for a detection job
type ModelType string

const (
	ModelStatistical ModelType = "statistical"
	ModelVision      ModelType = "vision"
)

var ValidModelTypes = []ModelType{ModelStatistical, ModelVision}

// ModelTypeFromString parses a model tag from a request
func ModelTypeFromString(s string) (ModelType, error) {
	for _, m := range ValidModelTypes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown model type %q", s)
}

// SourceType distinguishes uploaded videos from live streams
type SourceType string

const (
	SourceVideo  SourceType = "video"
	SourceStream SourceType = "stream"
)

// JobStatus represents the lifecycle of a detection job
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusCanceled  JobStatus = "canceled"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether a job in this status will never change again.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusCanceled, JobStatusFailed:
		return true
	}
	return false
}

// NoAnomalyLabel is the sentinel label shared by every classifier strategy.
// A window classified with any other label produces an anomaly event.
const NoAnomalyLabel = "normal"
