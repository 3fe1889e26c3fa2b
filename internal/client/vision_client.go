package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/framewatch/api/internal/config"
	"github.com/framewatch/api/internal/model"
)

// VisionClient talks to the frame inference microservice. The service owns
// the embedding extractor and classification head; this client only ships
// frames and reads back a label.
type VisionClient struct {
	httpClient *http.Client
	baseURL    string
	labels     []string
}

// ClassifyFramesRequest carries base64-encoded JPEG frames
type ClassifyFramesRequest struct {
	Frames [][]byte `json:"frames"`
}

// ClassifyFramesResponse carries the predicted label
type ClassifyFramesResponse struct {
	Label string `json:"label"`
}

// NewVisionClient creates a new inference service client
func NewVisionClient(cfg *config.ClassifierConfig) *VisionClient {
	return &VisionClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.VisionTimeout) * time.Second,
		},
		baseURL: cfg.VisionServiceURL,
		labels:  []string{model.NoAnomalyLabel, "blur", "highlight", "crop", "overlap"},
	}
}

// Labels returns the fixed label vocabulary, sentinel at index 0.
func (c *VisionClient) Labels() []string {
	return c.labels
}

// ClassifyFrames sends window frames to the inference endpoint
func (c *VisionClient) ClassifyFrames(ctx context.Context, frames [][]byte) (string, error) {
	var result ClassifyFramesResponse
	if err := c.post(ctx, "/classify", &ClassifyFramesRequest{Frames: frames}, &result); err != nil {
		return "", err
	}
	if result.Label == "" {
		return "", fmt.Errorf("vision service returned empty label")
	}
	return result.Label, nil
}

// HealthCheck checks if the inference service is available
func (c *VisionClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vision service unhealthy: status %d", resp.StatusCode)
	}

	return nil
}

// post sends a POST request with JSON body and parses the response
func (c *VisionClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vision service error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}
