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

	"github.com/golang-jwt/jwt/v5"

	"caseline/internal/config"
	"caseline/internal/db"
	"caseline/internal/domain"
	"caseline/internal/engine"
	"caseline/internal/migrate"
	"caseline/internal/repo"
)

const testSecret = "caseline-test-secret"

var serverTestStart = time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	e.Now = func() time.Time { return serverTestStart }

	ctx := context.Background()
	for _, unit := range []string{"triage", "billing"} {
		if err := e.UpsertUnit(ctx, domain.OrganizationalUnit{ID: unit, UnitWIPLimit: 50}, "seed"); err != nil {
			t.Fatalf("seed unit %s: %v", unit, err)
		}
	}
	if err := e.UpsertSkill(ctx, domain.Skill{ID: "review"}, "seed"); err != nil {
		t.Fatalf("seed skill: %v", err)
	}
	staff := []domain.StaffProfile{
		{ID: "s1", UserID: "user-s1", UnitID: "triage", Role: domain.RoleStaff, Skills: []string{"review"}, IndividualWIPLimit: 5},
		{ID: "s2", UserID: "user-s2", UnitID: "billing", Role: domain.RoleStaff, IndividualWIPLimit: 5},
		{ID: "sup1", UserID: "user-sup1", UnitID: "triage", Role: domain.RoleSupervisor, IndividualWIPLimit: 5},
	}
	for _, p := range staff {
		if err := e.UpsertStaff(ctx, p, "seed"); err != nil {
			t.Fatalf("seed staff %s: %v", p.ID, err)
		}
	}

	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: AuthConfig{JWTSecret: testSecret}})
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
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func mintToken(t *testing.T, sub, role, staffID, unitID string) string {
	t.Helper()
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role:    role,
		StaffID: staffID,
		UnitID:  unitID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func adminHeaders(t *testing.T) map[string]string {
	return map[string]string{"Authorization": "Bearer " + mintToken(t, "user-admin", domain.RoleAdmin, "", "")}
}

func staffHeaders(t *testing.T) map[string]string {
	return map[string]string{"Authorization": "Bearer " + mintToken(t, "user-s1", domain.RoleStaff, "s1", "triage")}
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

func decodeError(t *testing.T, data []byte) apiErrorBody {
	t.Helper()
	var envelope struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error body %q: %v", string(data), err)
	}
	return envelope.Error
}

func TestHealthNeedsNoAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", res.StatusCode)
	}
}

func TestMissingCredentials(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/assignments", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	if body := decodeError(t, data); body.Code != "unauthorized" {
		t.Fatalf("code = %s", body.Code)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/assignments", nil, map[string]string{
		"Authorization": "Bearer not-a-token",
	})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token status %d", res.StatusCode)
	}
	if body := decodeError(t, data); body.Code != "invalid_credentials" {
		t.Fatalf("code = %s", body.Code)
	}
}

func TestAutoAssignLifecycleOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/assignments/auto-assign", map[string]any{
		"work_item_id":    "dossier-1",
		"work_item_type":  "dossier_review",
		"priority":        "urgent",
		"required_skills": []string{"review"},
	}, adminHeaders(t))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("auto-assign status %d: %s", res.StatusCode, string(data))
	}
	var created AutoAssignResponse
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if created.AssigneeID != "s1" {
		t.Fatalf("assignee = %s", created.AssigneeID)
	}
	wantDeadline := serverTestStart.Add(2 * time.Hour).Format(time.RFC3339)
	if created.SLADeadline != wantDeadline {
		t.Fatalf("deadline = %s, want %s", created.SLADeadline, wantDeadline)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/assignments/"+created.AssignmentID, nil, staffHeaders(t))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get status %d: %s", res.StatusCode, string(data))
	}

	for _, step := range []string{"start", "complete"} {
		res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/assignments/"+created.AssignmentID+"/"+step, nil, staffHeaders(t))
		if res.StatusCode != http.StatusOK {
			t.Fatalf("%s status %d: %s", step, res.StatusCode, string(data))
		}
	}

	// A terminal assignment refuses another transition.
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/assignments/"+created.AssignmentID+"/cancel", nil, staffHeaders(t))
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("cancel status %d: %s", res.StatusCode, string(data))
	}
	if body := decodeError(t, data); body.Code != "conflict" {
		t.Fatalf("code = %s", body.Code)
	}
}

func TestAutoAssignErrorEnvelope(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/assignments/auto-assign", map[string]any{
		"work_item_id":    "dossier-2",
		"work_item_type":  "dossier_review",
		"priority":        "urgent",
		"required_skills": []string{"clairvoyance"},
	}, adminHeaders(t))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	body := decodeError(t, data)
	if body.Code != "not_found" {
		t.Fatalf("code = %s", body.Code)
	}
	if body.Message == "" || body.MessageAr == "" {
		t.Fatalf("envelope missing translations: %+v", body)
	}

	// Nobody outside triage holds the review skill.
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/assignments/auto-assign", map[string]any{
		"work_item_id":    "dossier-3",
		"work_item_type":  "dossier_review",
		"priority":        "urgent",
		"required_skills": []string{"review"},
		"unit_id":         "billing",
	}, adminHeaders(t))
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	if body := decodeError(t, data); body.Code != "no_eligible_staff" {
		t.Fatalf("code = %s", body.Code)
	}
}

func TestCapacityCheckScopes(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/capacity/check?staff_id=s1", nil, staffHeaders(t))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("own capacity status %d: %s", res.StatusCode, string(data))
	}
	var report domain.CapacityReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if report.AvailableCapacity != 5 || report.Status != "ok" {
		t.Fatalf("report = %+v", report)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/capacity/check?staff_id=s2", nil, staffHeaders(t))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("cross-unit status %d: %s", res.StatusCode, string(data))
	}
	if body := decodeError(t, data); body.Code != "permission_denied" {
		t.Fatalf("code = %s", body.Code)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/capacity/check?staff_id=s1&unit_id=triage", nil, adminHeaders(t))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("both targets status %d: %s", res.StatusCode, string(data))
	}
	if body := decodeError(t, data); body.Code != "validation_error" {
		t.Fatalf("code = %s", body.Code)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/capacity/check?staff_id=ghost", nil, adminHeaders(t))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("ghost status %d: %s", res.StatusCode, string(data))
	}

	sup := map[string]string{"Authorization": "Bearer " + mintToken(t, "user-sup1", domain.RoleSupervisor, "sup1", "triage")}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/capacity/check?unit_id=triage", nil, sup)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("supervisor unit status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/capacity/check?unit_id=billing", nil, sup)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign unit status %d: %s", res.StatusCode, string(data))
	}
}

func TestAdminSweepRequiresAdmin(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/admin/sweep", nil, staffHeaders(t))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("staff sweep status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/admin/sweep", nil, adminHeaders(t))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("admin sweep status %d: %s", res.StatusCode, string(data))
	}
	var report engine.SweepReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if report.Processed != 0 {
		t.Fatalf("processed = %d on empty db", report.Processed)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	// A key without a staff profile acts as an admin service key.
	secret := "svc-key-secret"
	err := srv.Engine.Repo.InsertAPIKey(context.Background(), domain.APIKey{
		ID:        "key-1",
		UserID:    "svc-dispatcher",
		Name:      "dispatcher",
		KeyHash:   repo.HashAPIKey(secret),
		CreatedAt: serverTestStart.Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("insert key: %v", err)
	}

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/admin/sweep", nil, map[string]string{"X-Api-Key": secret})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("service key sweep status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/admin/sweep", nil, map[string]string{"X-Api-Key": "wrong"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad key status %d: %s", res.StatusCode, string(data))
	}
	if body := decodeError(t, data); body.Code != "invalid_credentials" {
		t.Fatalf("code = %s", body.Code)
	}
}
