package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudship/deploy-gateway/internal/models"
	"github.com/cloudship/deploy-gateway/internal/provider"
	"github.com/cloudship/deploy-gateway/internal/service"
	"github.com/cloudship/deploy-gateway/internal/stream"
	"github.com/cloudship/deploy-gateway/pkg/logger"
)

// fakeProvider scripts provider behavior for handler tests
type fakeProvider struct {
	mu sync.Mutex

	dispatchErr   error
	dispatched    []map[string]string
	latestRunID   string
	latestRunErr  error
	polls         []*models.RunStatus
	pollErrs      []error
	pollIdx       int
	logText       string
	runs          []models.RunSummary
	noCredentials bool
}

func (f *fakeProvider) Dispatch(ctx context.Context, inputs map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatched = append(f.dispatched, inputs)
	return f.dispatchErr
}

func (f *fakeProvider) LatestRun(ctx context.Context) (string, error) {
	if f.latestRunErr != nil {
		return "", f.latestRunErr
	}
	return f.latestRunID, nil
}

func (f *fakeProvider) ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error) {
	return f.runs, nil
}

func (f *fakeProvider) GetRun(ctx context.Context, runID string) (*models.RunStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.pollIdx
	if i >= len(f.polls) {
		i = len(f.polls) - 1
	} else {
		f.pollIdx++
	}
	if i < len(f.pollErrs) && f.pollErrs[i] != nil {
		return nil, f.pollErrs[i]
	}
	return f.polls[i], nil
}

func (f *fakeProvider) FetchLogs(ctx context.Context, logsURL string) (string, bool, error) {
	if f.logText == "" {
		return "", false, nil
	}
	return f.logText, true, nil
}

func (f *fakeProvider) HasCredentials() bool { return !f.noCredentials }

var _ provider.Provider = (*fakeProvider)(nil)

func newTestRouter(prov provider.Provider) http.Handler {
	log := logger.Nop()
	svc := service.NewService(prov, log, service.Options{
		Stream:            stream.Config{PollInterval: time.Millisecond, MaxAttempts: 20},
		DiscoveryAttempts: 2,
		DiscoveryDelay:    time.Millisecond,
	})
	return NewRouter(NewHandlers(svc, log), NewLoggingMiddleware(log))
}

func TestCreateDeploymentReturnsRunID(t *testing.T) {
	prov := &fakeProvider{latestRunID: "4242"}
	router := newTestRouter(prov)

	body := `{"userId":"u1","createS3":true,"s3BucketName":"b1"}`
	req := httptest.NewRequest("POST", "/v1/deployments", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}

	var resp struct {
		Message string `json:"message"`
		RunID   string `json:"runId"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.RunID != "4242" {
		t.Errorf("runId = %q, want 4242", resp.RunID)
	}
	if resp.Message != "Deployment triggered" {
		t.Errorf("message = %q", resp.Message)
	}

	if len(prov.dispatched) != 1 {
		t.Fatalf("dispatch count = %d, want 1", len(prov.dispatched))
	}
	inputs := prov.dispatched[0]
	if inputs["userId"] != "u1" || inputs["createS3"] != "true" || inputs["createRDS"] != "false" {
		t.Errorf("dispatched inputs = %v", inputs)
	}
	if inputs["s3BucketName"] != "b1" {
		t.Errorf("s3BucketName input = %q", inputs["s3BucketName"])
	}
}

func TestCreateDeploymentMissingUserID(t *testing.T) {
	prov := &fakeProvider{latestRunID: "4242"}
	router := newTestRouter(prov)

	req := httptest.NewRequest("POST", "/v1/deployments", strings.NewReader(`{"createS3":true}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["error"] != "userId is required" {
		t.Errorf(`error = %q, want "userId is required"`, resp["error"])
	}

	if len(prov.dispatched) != 0 {
		t.Error("dispatch attempted despite missing userId")
	}
}

func TestCreateDeploymentMalformedBody(t *testing.T) {
	prov := &fakeProvider{latestRunID: "4242"}
	router := newTestRouter(prov)

	// Only a missing userId is a 400; a body that fails to parse is an
	// unexpected error and lands in the 500 path.
	req := httptest.NewRequest("POST", "/v1/deployments", strings.NewReader(`{"userId":`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("malformed body status = %d, want 500", w.Code)
	}

	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["error"] == "" {
		t.Error("error message missing from response")
	}

	if len(prov.dispatched) != 0 {
		t.Error("dispatch attempted despite unparseable body")
	}
}

func TestCreateDeploymentForwardsUpstreamStatus(t *testing.T) {
	prov := &fakeProvider{
		dispatchErr: &provider.DispatchError{StatusCode: http.StatusUnprocessableEntity, Message: "bad inputs"},
	}
	router := newTestRouter(prov)

	req := httptest.NewRequest("POST", "/v1/deployments", strings.NewReader(`{"userId":"u1"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want upstream 422", w.Code)
	}

	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["error"] != "Deployment failed" {
		t.Errorf("error = %q", resp["error"])
	}
}

func TestCreateDeploymentDiscoveryFailure(t *testing.T) {
	prov := &fakeProvider{latestRunErr: provider.ErrRunNotFound}
	router := newTestRouter(prov)

	req := httptest.NewRequest("POST", "/v1/deployments", strings.NewReader(`{"userId":"u1"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 when no run id can be discovered", w.Code)
	}
}

// sseEvent is one parsed frame of a text/event-stream body
type sseEvent struct {
	name string
	data map[string]any
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()

	var events []sseEvent
	for _, frame := range strings.Split(body, "\n\n") {
		frame = strings.TrimSpace(frame)
		if frame == "" {
			continue
		}
		var ev sseEvent
		for _, line := range strings.Split(frame, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev.data); err != nil {
					t.Fatalf("bad event payload %q: %v", line, err)
				}
			}
		}
		events = append(events, ev)
	}
	return events
}

func TestStreamDeploymentFullScenario(t *testing.T) {
	prov := &fakeProvider{
		latestRunID: "4242",
		polls: []*models.RunStatus{
			{Lifecycle: models.LifecycleQueued},
			{Lifecycle: models.LifecycleRunning, LogsURL: "logs"},
			{Lifecycle: models.LifecycleCompleted, Conclusion: models.ConclusionSuccess, LogsURL: "logs"},
		},
		logText: "provisioning\ns3_bucket_name = \"b1\"",
	}
	router := newTestRouter(prov)

	// Dispatch first so the stream can attribute outputs.
	dispatch := httptest.NewRequest("POST", "/v1/deployments", strings.NewReader(`{"userId":"u1","createS3":true,"s3BucketName":"b1"}`))
	dw := httptest.NewRecorder()
	router.ServeHTTP(dw, dispatch)
	if dw.Code != http.StatusOK {
		t.Fatalf("dispatch status = %d", dw.Code)
	}

	req := httptest.NewRequest("GET", "/v1/deployments/stream?runId=4242", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	events := parseSSE(t, w.Body.String())

	var names []string
	for _, ev := range events {
		names = append(names, ev.name)
	}

	wantOrder := []string{"status", "status", "log", "status", "status", "outputs", "done"}
	if len(names) != len(wantOrder) {
		t.Fatalf("event names = %v, want %v", names, wantOrder)
	}
	for i := range wantOrder {
		if names[i] != wantOrder[i] {
			t.Fatalf("event[%d] = %s, want %s (full: %v)", i, names[i], wantOrder[i], names)
		}
	}

	if events[0].data["status"] != "queued" {
		t.Errorf("first status = %v", events[0].data)
	}
	final := events[4].data
	if final["status"] != "completed" || final["conclusion"] != "success" {
		t.Errorf("final status = %v", final)
	}

	outputs := events[5].data
	if outputs["userId"] != "u1" || outputs["runId"] != "4242" {
		t.Errorf("outputs attribution = %v", outputs)
	}
}

func TestStreamDeploymentFailedRunHasNoOutputs(t *testing.T) {
	prov := &fakeProvider{
		polls: []*models.RunStatus{
			{Lifecycle: models.LifecycleCompleted, Conclusion: models.ConclusionFailure},
		},
	}
	router := newTestRouter(prov)

	req := httptest.NewRequest("GET", "/v1/deployments/stream?runId=4242", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	events := parseSSE(t, w.Body.String())
	for _, ev := range events {
		if ev.name == "outputs" {
			t.Fatal("outputs event emitted for a failed run")
		}
	}
	last := events[len(events)-1]
	if last.name != "done" {
		t.Errorf("last event = %s, want done", last.name)
	}
}

func TestStreamDeploymentTransientErrorsAreRetried(t *testing.T) {
	transient := &provider.ProviderError{Code: 503, Message: "unavailable", Err: provider.ErrProviderUnavailable}
	prov := &fakeProvider{
		polls: []*models.RunStatus{
			nil,
			nil,
			{Lifecycle: models.LifecycleCompleted, Conclusion: models.ConclusionSuccess},
		},
		pollErrs: []error{transient, transient, nil},
	}
	router := newTestRouter(prov)

	req := httptest.NewRequest("GET", "/v1/deployments/stream?runId=4242", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	events := parseSSE(t, w.Body.String())
	for _, ev := range events {
		if ev.name == "error" {
			t.Fatalf("transient failures surfaced an error event: %v", events)
		}
	}
	if events[len(events)-1].name != "done" {
		t.Errorf("final status not delivered after transient retries: %v", events)
	}
}

func TestStreamDeploymentMissingRunID(t *testing.T) {
	router := newTestRouter(&fakeProvider{})

	req := httptest.NewRequest("GET", "/v1/deployments/stream", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "runId is required") {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestStreamDeploymentUnconfiguredToken(t *testing.T) {
	router := newTestRouter(&fakeProvider{noCredentials: true})

	req := httptest.NewRequest("GET", "/v1/deployments/stream?runId=1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(w.Body.String(), "token not configured") {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestGetRunNotFound(t *testing.T) {
	prov := &fakeProvider{
		polls:    []*models.RunStatus{nil},
		pollErrs: []error{provider.ErrRunNotFound},
	}
	router := newTestRouter(prov)

	req := httptest.NewRequest("GET", "/v1/runs/999", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestListRunsFiltered(t *testing.T) {
	prov := &fakeProvider{
		runs: []models.RunSummary{
			{RunID: "3", Lifecycle: models.LifecycleRunning},
			{RunID: "2", Lifecycle: models.LifecycleCompleted, Conclusion: models.ConclusionSuccess},
			{RunID: "1", Lifecycle: models.LifecycleCompleted, Conclusion: models.ConclusionFailure},
		},
	}
	router := newTestRouter(prov)

	req := httptest.NewRequest("GET", "/v1/runs?status=success", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Runs []models.RunSummary `json:"runs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Runs) != 1 || resp.Runs[0].RunID != "2" {
		t.Errorf("filtered runs = %+v", resp.Runs)
	}
}
