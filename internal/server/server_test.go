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

	"gigledger/internal/config"
	"gigledger/internal/db"
	"gigledger/internal/domain"
	"gigledger/internal/engine"
	"gigledger/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	e := engine.New(conn, *cfg)
	e.Now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: AuthConfig{AllowLegacyIdentityHeader: true}})
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
	t.Cleanup(testSrv.Close)
	return testSrv
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

func asIdentity(id string) map[string]string {
	return map[string]string{"X-Identity": id}
}

func TestFullMarketplaceFlow(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	admin := asIdentity("admin-1")
	employer := asIdentity("employer-1")
	freelancer := asIdentity("freelancer-1")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/admin/init", map[string]any{"identity": "admin-1"}, admin)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("init admin status %d: %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/registry/employers", map[string]any{
		"identity": "employer-1", "user_name": "Acme Ops", "company_name": "Acme Inc",
	}, admin)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("whitelist employer status %d: %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/registry/freelancers", map[string]any{
		"identity": "freelancer-1", "user_name": "Dev One", "profession": "developer",
	}, admin)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("whitelist freelancer status %d: %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/admin/fund", map[string]any{
		"owner": "employer-1", "amount": 1000,
	}, admin)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("fund status %d: %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects", map[string]any{
		"number": 1, "title": "Build the widget", "total_budget": 1000,
	}, employer)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project status %d: %s", res.StatusCode, data)
	}
	var project domain.Project
	if err := json.Unmarshal(data, &project); err != nil {
		t.Fatalf("unmarshal project: %v", err)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+project.Addr+"/details", map[string]any{
		"description": "widget work", "requirement": "developer", "deadline": "2024-06-01T00:00:00Z",
	}, employer)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("details status %d: %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+project.Addr+"/accept", nil, freelancer)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("accept status %d: %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+project.Addr+"/tasks", map[string]any{
		"number": 1, "title": "Everything", "budget": 1000,
	}, employer)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("add task status %d: %s", res.StatusCode, data)
	}
	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks/"+task.Addr+"/submit", map[string]any{
		"poc_type": "unit_tests", "proof": "ci-run-42",
	}, freelancer)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("submit status %d: %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks/"+task.Addr+"/approve", map[string]any{
		"destination": "freelancer-1",
	}, employer)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("approve status %d: %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/projects/"+project.Addr, nil, employer)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get project status %d: %s", res.StatusCode, data)
	}
	if err := json.Unmarshal(data, &project); err != nil {
		t.Fatalf("unmarshal project: %v", err)
	}
	if project.Status != domain.ProjectCompleted {
		t.Fatalf("project status = %s, want completed", project.Status)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+project.Addr+"/rating", map[string]any{
		"stars": 4, "feedback": "solid",
	}, employer)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("rate status %d: %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/overviews/freelancer-1", nil, employer)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("overview status %d: %s", res.StatusCode, data)
	}
	var overview domain.Overview
	if err := json.Unmarshal(data, &overview); err != nil {
		t.Fatalf("unmarshal overview: %v", err)
	}
	if overview.AverageRating != 4.0 || overview.ProjectsCompleted != 1 {
		t.Fatalf("overview = %+v, want avg 4.0 and 1 completion", overview)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/balances/freelancer-1", nil, freelancer)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("balance status %d: %s", res.StatusCode, data)
	}
	var bal BalanceResponse
	if err := json.Unmarshal(data, &bal); err != nil {
		t.Fatalf("unmarshal balance: %v", err)
	}
	if bal.Balance != 1000 {
		t.Fatalf("freelancer balance = %d, want 1000", bal.Balance)
	}
}

func TestErrorEnvelope(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	admin := asIdentity("admin-1")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/admin/init", map[string]any{"identity": "admin-1"}, admin)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("init admin status %d: %s", res.StatusCode, data)
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/admin/init", map[string]any{"identity": "admin-2"}, admin)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("second init status %d, want 409: %s", res.StatusCode, data)
	}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.Error.Code != "admin_already_initialized" {
		t.Fatalf("code = %q, want admin_already_initialized", envelope.Error.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/projects", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401: %s", res.StatusCode, data)
	}

	// Health stays open.
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d, want 200", res.StatusCode)
	}
}

func TestJWTLoginRoundTrip(t *testing.T) {
	token, err := signDevToken("test-secret", "employer-1")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	p, err := authenticateJWT(token, "test-secret")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if p.Identity != "employer-1" || p.Source != "jwt" {
		t.Fatalf("principal = %+v", p)
	}
	if _, err := authenticateJWT(token, "other-secret"); err == nil {
		t.Fatal("wrong secret should fail")
	}
}
