package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"homeline/internal/capability"
	"homeline/internal/config"
	"homeline/internal/db"
	"homeline/internal/domain"
	"homeline/internal/engine"
	"homeline/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	return newTestServerWithAuth(t, AuthConfig{AllowAnonymous: true})
}

func newTestServerWithAuth(t *testing.T, auth AuthConfig) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	now := func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	e := engine.New(conn, config.Default(), capability.Defaults(now))
	e.Now = now
	handler, err := New(Config{Engine: e, BasePath: "/v0", Workspace: workspace, Auth: auth})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal error envelope from %s: %v", string(data), err)
	}
	return env.Error.Code
}

func strongListing() map[string]any {
	return map[string]any{
		"title":       "Sunny 3BR apartment near the river",
		"description": "Bright three bedroom apartment with river views, a renovated kitchen and a large balcony.",
		"address":     "12 Riverside Ave",
		"city":        "Lisbon",
		"price":       500000,
		"bedrooms":    3,
		"bathrooms":   2,
		"area_sqm":    120,
		"images":      []string{"front.jpg", "kitchen.jpg"},
	}
}

func createListing(t *testing.T, srv *testServer, body map[string]any) domain.Property {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/properties", body, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create property status %d: %s", res.StatusCode, string(data))
	}
	var p domain.Property
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("unmarshal property: %v", err)
	}
	return p
}

func TestPropertyCRUD(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	created := createListing(t, srv, strongListing())
	if created.ID == "" || created.Status != "draft" {
		t.Fatalf("unexpected created property: %+v", created)
	}

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/properties/"+created.ID, nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/properties/"+created.ID, map[string]any{
		"price": 520000,
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("patch status %d: %s", res.StatusCode, string(data))
	}
	var patched domain.Property
	_ = json.Unmarshal(data, &patched)
	if patched.Price != 520000 {
		t.Fatalf("expected patched price, got %v", patched.Price)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/properties?city=Lisbon", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status %d: %s", res.StatusCode, string(data))
	}
	var page struct {
		Items []domain.Property `json:"items"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("unmarshal page: %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("expected one listed property, got %d", len(page.Items))
	}

	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v0/properties/"+created.ID, nil, nil)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/properties/"+created.ID, nil, nil)
	if res.StatusCode != http.StatusNotFound || errorCode(t, data) != "not_found" {
		t.Fatalf("expected not_found after delete, got %d %s", res.StatusCode, string(data))
	}
}

func TestCreatePropertyValidation(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/properties", map[string]any{
		"address": "12 Riverside Ave",
	}, nil)
	if res.StatusCode != http.StatusBadRequest || errorCode(t, data) != "bad_request" {
		t.Fatalf("expected bad_request, got %d %s", res.StatusCode, string(data))
	}
}

func TestWorkflowOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	p := createListing(t, srv, strongListing())

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/properties/"+p.ID+"/workflow/start", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("start status %d: %s", res.StatusCode, string(data))
	}
	var st domain.WorkflowStatus
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if st.CurrentStage != domain.StageLeadManagement || st.HumanInterventionRequired {
		t.Fatalf("expected parked lead_management, got %+v", st)
	}

	// Starting twice conflicts.
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/properties/"+p.ID+"/workflow/start", nil, nil)
	if res.StatusCode != http.StatusConflict || errorCode(t, data) != "stage_conflict" {
		t.Fatalf("expected stage_conflict, got %d %s", res.StatusCode, string(data))
	}

	// The active workflow also blocks deletion.
	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v0/properties/"+p.ID, nil, nil)
	if res.StatusCode != http.StatusConflict || errorCode(t, data) != "stage_conflict" {
		t.Fatalf("expected delete conflict, got %d %s", res.StatusCode, string(data))
	}

	// A parked thread takes no resume; buyer input goes through the message
	// endpoint.
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/properties/"+p.ID+"/workflow/resume", map[string]any{
		"role":     "lead",
		"response": "I would like to offer 460000 for the apartment",
	}, nil)
	if res.StatusCode != http.StatusConflict || errorCode(t, data) != "stage_conflict" {
		t.Fatalf("expected stage_conflict for resume on parked thread, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/properties/"+p.ID+"/workflow/message", map[string]any{
		"role":       "lead",
		"response":   "I would like to offer 460000 for the apartment",
		"lead_email": "marta.silva@example.com",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("message status %d: %s", res.StatusCode, string(data))
	}
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if st.CurrentStage != domain.StageNegotiation || !st.HumanInterventionRequired {
		t.Fatalf("expected suspension at negotiation, got %+v", st)
	}

	// Interrupted threads take input the other way around.
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/properties/"+p.ID+"/workflow/message", map[string]any{
		"role":     "lead",
		"response": "any news?",
	}, nil)
	if res.StatusCode != http.StatusConflict || errorCode(t, data) != "stage_conflict" {
		t.Fatalf("expected stage_conflict for message on interrupted thread, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/properties/"+p.ID+"/workflow", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status status %d: %s", res.StatusCode, string(data))
	}
	var read domain.WorkflowStatus
	_ = json.Unmarshal(data, &read)
	if read.CurrentStage != st.CurrentStage {
		t.Fatalf("status mismatch: %s vs %s", read.CurrentStage, st.CurrentStage)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/properties/"+p.ID+"/workflow/history", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("history status %d: %s", res.StatusCode, string(data))
	}
	var entries []domain.HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if len(entries) < 4 {
		t.Fatalf("expected checkpoint history, got %d entries", len(entries))
	}
	for i, e := range entries {
		if e.Seq != i+1 {
			t.Fatalf("history out of order at %d: seq %d", i, e.Seq)
		}
	}
}

func TestResumeValidation(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	p := createListing(t, srv, strongListing())
	if res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/properties/"+p.ID+"/workflow/start", nil, nil); res.StatusCode != http.StatusOK {
		t.Fatalf("start: %d %s", res.StatusCode, string(data))
	}

	// Role outside the enum is rejected before it reaches the engine.
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/properties/"+p.ID+"/workflow/resume", map[string]any{
		"role":     "stranger",
		"response": "hello",
	}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad role, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/properties/unknown/workflow/resume", map[string]any{
		"role":     "broker",
		"response": "approve",
	}, nil)
	if res.StatusCode != http.StatusNotFound || errorCode(t, data) != "not_found" {
		t.Fatalf("expected not_found for unknown thread, got %d %s", res.StatusCode, string(data))
	}
}

func TestEventsEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	p := createListing(t, srv, strongListing())
	if res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/properties/"+p.ID+"/workflow/start", nil, nil); res.StatusCode != http.StatusOK {
		t.Fatalf("start: %d %s", res.StatusCode, string(data))
	}
	if res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/properties/"+p.ID+"/workflow/message", map[string]any{
		"role":     "lead",
		"response": "I would like to offer 460000",
	}, nil); res.StatusCode != http.StatusOK {
		t.Fatalf("message: %d %s", res.StatusCode, string(data))
	}

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/events?property_id="+p.ID+"&type=workflow.suspended", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events status %d: %s", res.StatusCode, string(data))
	}
	var page struct {
		Items []EventResponse `json:"items"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(page.Items) == 0 {
		t.Fatalf("expected suspended events for %s", p.ID)
	}
	for _, evt := range page.Items {
		if evt.Type != "workflow.suspended" {
			t.Fatalf("filter leaked type %s", evt.Type)
		}
	}
}

func TestPropertyConfigEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	p := createListing(t, srv, strongListing())

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/properties/"+p.ID+"/config", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("config status %d: %s", res.StatusCode, string(data))
	}
	var cfg PipelineConfigResponse
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("unmarshal config: %v", err)
	}
	if cfg.Pipeline.QualityThreshold != 85 || cfg.Pipeline.RetryLimit != 3 {
		t.Fatalf("unexpected effective config: %+v", cfg)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}
}

func TestAuthRequiredWithoutAnonymous(t *testing.T) {
	srv, cleanup := newTestServerWithAuth(t, AuthConfig{JWTSecret: "test-secret"})
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/properties", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d %s", res.StatusCode, string(data))
	}

	// Health stays open.
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health must not require auth, got %d", res.StatusCode)
	}

	// Dev login mints a usable token.
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/auth/dev/login", map[string]any{
		"actor_id": "tester",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login status %d: %s", res.StatusCode, string(data))
	}
	var login DevLoginResponse
	if err := json.Unmarshal(data, &login); err != nil || login.Token == "" {
		t.Fatalf("expected token, got %s (%v)", string(data), err)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/properties", nil, map[string]string{
		"Authorization": "Bearer " + login.Token,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with bearer token, got %d %s", res.StatusCode, string(data))
	}
}
