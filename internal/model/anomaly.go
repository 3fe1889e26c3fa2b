package model

// AnomalyEvent is the broker message emitted for each positively classified
// window. It carries the raw chunk bytes (base64 via encoding/json) so the
// consumer never depends on job-scoped temporary files that may be gone by
// the time the event is delivered.
type AnomalyEvent struct {
	JobID          string `json:"job_id"`
	WindowIndex    int    `json:"window_index"`
	Label          string `json:"label"`
	WindowsPerUnit int    `json:"windows_per_unit"`
	Payload        []byte `json:"payload_base64"`
}

// AnomalyRecord is the durable outcome of one processed anomaly event.
// Immutable once written; only read back by the result query.
type AnomalyRecord struct {
	JobID         string `json:"job_id"`
	WindowIndex   int    `json:"window_index"`
	Label         string `json:"label"`
	SnapshotCount int    `json:"snapshot_count"`
}

// AnomalyResult is one record as returned to clients, with fresh time-limited
// snapshot links. Links are generated per request and never stored.
type AnomalyResult struct {
	WindowIndex int      `json:"windowIndex"`
	Label       string   `json:"label"`
	Links       []string `json:"links"`
}

// FindResultResponse lists all anomalies detected for a job, ordered by
// window index ascending.
type FindResultResponse struct {
	JobID     string          `json:"jobId"`
	Anomalies []AnomalyResult `json:"anomalies"`
}
