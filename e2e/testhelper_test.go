package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	"github.com/framewatch/api/internal/classifier"
	"github.com/framewatch/api/internal/handler"
	"github.com/framewatch/api/internal/model"
	"github.com/framewatch/api/internal/service"
	"github.com/framewatch/api/internal/store"
	"github.com/framewatch/api/internal/worker"
)

// testApp wires the whole pipeline with in-memory infrastructure: the
// publisher delivers events straight to the evidence worker, storage is a
// map, and windows come from a scripted source.
type testApp struct {
	app     *fiber.App
	storage *memStorage
}

// memJobStore is an in-memory stand-in for the Redis job store.
type memJobStore struct {
	mu   sync.Mutex
	jobs map[string]model.Job
}

func (m *memJobStore) Save(_ context.Context, job *model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	return nil
}

func (m *memJobStore) Get(_ context.Context, jobID string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	return &job, nil
}

// memAnomalyStore mirrors the per-job hash upsert of the Redis store.
type memAnomalyStore struct {
	mu      sync.Mutex
	records map[string]map[int]model.AnomalyRecord
}

func (m *memAnomalyStore) Put(_ context.Context, rec model.AnomalyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records[rec.JobID] == nil {
		m.records[rec.JobID] = make(map[int]model.AnomalyRecord)
	}
	m.records[rec.JobID][rec.WindowIndex] = rec
	return nil
}

func (m *memAnomalyStore) FindByJob(_ context.Context, jobID string) ([]model.AnomalyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.AnomalyRecord, 0, len(m.records[jobID]))
	for _, rec := range m.records[jobID] {
		out = append(out, rec)
	}
	return out, nil
}

// memStorage keeps uploaded objects in a map and signs URLs by key.
type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memStorage) Upload(_ context.Context, bucket, key string, body io.Reader, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+key] = data
	return nil
}

func (m *memStorage) Delete(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, bucket+"/"+key)
	return nil
}

func (m *memStorage) GetSignedURL(_ context.Context, bucket, key string, _ time.Duration) (string, error) {
	return fmt.Sprintf("https://storage.test/%s/%s?signed", bucket, key), nil
}

func (m *memStorage) object(bucket, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket+"/"+key]
	return data, ok
}

// inlinePublisher hands each event straight to the evidence worker, standing
// in for broker transport plus consumer.
type inlinePublisher struct {
	worker *worker.EvidenceWorker
}

func (p *inlinePublisher) Publish(ctx context.Context, event *model.AnomalyEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.worker.ProcessTask(ctx, asynq.NewTask(service.TaskTypeAnomaly, payload))
}

// scriptedStream yields windows whose payloads spell out their labels.
type scriptedStream struct {
	labels []string
}

func (s *scriptedStream) FPS() int          { return 25 }
func (s *scriptedStream) TotalWindows() int { return len(s.labels) }
func (s *scriptedStream) Close() error      { return nil }

func (s *scriptedStream) Next(_ context.Context, index int) ([]byte, error) {
	return []byte(s.labels[index]), nil
}

type scriptedOpener struct {
	labels []string
}

func (o scriptedOpener) Open(_ context.Context, _ string) (service.WindowStream, error) {
	return &scriptedStream{labels: o.labels}, nil
}

// echoClassifier returns the payload itself as the label.
type echoClassifier struct{}

func (echoClassifier) Labels() []string { return []string{model.NoAnomalyLabel, "blur", "crop"} }

func (echoClassifier) Classify(_ context.Context, payload []byte) (string, error) {
	return string(payload), nil
}

type echoRegistry struct{}

func (echoRegistry) Get(model.ModelType) (classifier.Classifier, error) {
	return echoClassifier{}, nil
}

// stubExtractor writes snapshot files without invoking ffmpeg.
type stubExtractor struct{}

func (stubExtractor) ExtractSnapshots(_ context.Context, _, outDir string, count int) ([]string, error) {
	paths := make([]string, 0, count)
	for i := 0; i < count; i++ {
		p := filepath.Join(outDir, fmt.Sprintf("frame-%04d.jpg", i))
		if err := os.WriteFile(p, []byte{0xFF, 0xD8}, 0o644); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

type noopHub struct{}

func (noopHub) BroadcastProgress(string, int, int, model.JobStatus) {}
func (noopHub) BroadcastAnomaly(string, int, string)               {}
func (noopHub) BroadcastDone(string, model.JobStatus)              {}
func (noopHub) BroadcastError(string, string, string)              {}

// setupApp builds the detection API with windows scripted per label. The
// sentinel label marks a normal window; anything else flows through the
// full evidence path.
func setupApp(t *testing.T, windowLabels []string) *testApp {
	t.Helper()

	jobs := &memJobStore{jobs: make(map[string]model.Job)}
	anomalies := &memAnomalyStore{records: make(map[string]map[int]model.AnomalyRecord)}
	storage := &memStorage{objects: make(map[string][]byte)}

	evidenceWorker := worker.NewEvidenceWorker(stubExtractor{}, storage, anomalies, "detection-frame", 3)
	publisher := &inlinePublisher{worker: evidenceWorker}

	detectionService := service.NewDetectionService(
		jobs,
		publisher,
		scriptedOpener{labels: windowLabels},
		storage,
		storage,
		echoRegistry{},
		noopHub{},
		"detection-video",
		15*time.Minute,
	)
	resultService := service.NewResultService(anomalies, storage, "detection-frame", 15*time.Minute)

	validate := validator.New()
	detectHandler := handler.NewDetectHandler(detectionService, validate)
	resultHandler := handler.NewResultHandler(resultService)

	app := fiber.New()

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")
	detect := api.Group("/detect")
	detect.Post("/video", detectHandler.Video)
	detect.Post("/stream", detectHandler.Stream)
	detect.Post("/archive", detectHandler.Archive)
	detect.Get("/status/:jobId", detectHandler.Status)
	detect.Post("/cancel/:jobId", detectHandler.Cancel)
	detect.Get("/result/:jobId", resultHandler.Find)

	return &testApp{app: app, storage: storage}
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return app.Test(req, -1)
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// waitForTerminal polls the status endpoint until the job stops changing.
func waitForTerminal(t *testing.T, app *fiber.App, jobID string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := doRequest(app, http.MethodGet, "/api/detect/status/"+jobID, "")
		if err != nil {
			t.Fatalf("status request failed: %v", err)
		}
		body := parseJSON(t, resp)
		switch body["status"] {
		case "completed", "canceled", "failed":
			return body
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal status", jobID)
	return nil
}
