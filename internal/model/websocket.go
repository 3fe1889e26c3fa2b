package model

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeAnomaly  = "anomaly"
	WSMessageTypeDone     = "done"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage reports how far the window loop has advanced
type WSProgressMessage struct {
	Type         string    `json:"type"`
	JobID        string    `json:"jobId"`
	WindowIndex  int       `json:"windowIndex"`
	TotalWindows int       `json:"totalWindows"`
	Status       JobStatus `json:"status"`
}

// WSAnomalyMessage is pushed when a window classifies positive
type WSAnomalyMessage struct {
	Type        string `json:"type"`
	JobID       string `json:"jobId"`
	WindowIndex int    `json:"windowIndex"`
	Label       string `json:"label"`
}

// WSDoneMessage reports the terminal status of a job
type WSDoneMessage struct {
	Type   string    `json:"type"`
	JobID  string    `json:"jobId"`
	Status JobStatus `json:"status"`
}

// WSErrorMessage represents an error
type WSErrorMessage struct {
	Type  string  `json:"type"`
	JobID string  `json:"jobId"`
	Error WSError `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
