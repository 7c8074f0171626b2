package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"caravand/services/lifecycle"
)

const testServiceToken = "test-service-token"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	orm, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := orm.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := lifecycle.Migrate(orm); err != nil {
		t.Fatalf("migrate lifecycle tables: %v", err)
	}
	if err := orm.AutoMigrate(&stationModel{}, &workerModel{}, &definitionModel{}); err != nil {
		t.Fatalf("migrate catalog tables: %v", err)
	}

	a, err := New(&Store{ORM: orm}, Config{ServiceToken: testServiceToken})
	if err != nil {
		t.Fatalf("new api: %v", err)
	}

	srv := httptest.NewServer(a.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, srv *httptest.Server, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		payload = nil
	}
	return resp.StatusCode, payload
}

func seedOperation(t *testing.T, srv *httptest.Server) int64 {
	t.Helper()

	status, body := doJSON(t, srv, http.MethodPost, "/v1/stations", testServiceToken, map[string]any{
		"code": "CHASSIS-1",
		"name": "Chassis assembly",
	})
	if status != http.StatusOK {
		t.Fatalf("create station status = %d, body = %v", status, body)
	}
	stationID := int64(body["station"].(map[string]any)["id"].(float64))

	status, body = doJSON(t, srv, http.MethodPost, "/v1/definitions", testServiceToken, map[string]any{
		"name":           "Install axle",
		"target_minutes": 90,
		"quality_check":  true,
	})
	if status != http.StatusCreated {
		t.Fatalf("create definition status = %d, body = %v", status, body)
	}
	definitionID := int64(body["definition"].(map[string]any)["id"].(float64))

	status, body = doJSON(t, srv, http.MethodPost, "/v1/operations", testServiceToken, map[string]any{
		"station_id":    stationID,
		"definition_id": definitionID,
	})
	if status != http.StatusCreated {
		t.Fatalf("create operation status = %d, body = %v", status, body)
	}

	op := body["operation"].(map[string]any)
	if op["status"] != string(lifecycle.StatusPending) {
		t.Fatalf("new operation status = %v, want pending", op["status"])
	}
	if int(op["target_minutes"].(float64)) != 90 {
		t.Fatalf("target_minutes = %v, want definition default 90", op["target_minutes"])
	}
	return int64(op["id"].(float64))
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"wrong token", "not-the-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := doJSON(t, srv, http.MethodGet, "/v1/stations", tt.token, nil)
			if status != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", status)
			}
		})
	}
}

func TestHealthEndpointsUnauthenticated(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := srv.Client().Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestLifecycleFlow(t *testing.T) {
	srv := newTestServer(t)
	opID := seedOperation(t, srv)
	opPath := fmt.Sprintf("/v1/operations/%d", opID)

	status, body := doJSON(t, srv, http.MethodPost, opPath+"/start", testServiceToken, map[string]any{
		"worker_ids": []int64{11, 12},
	})
	if status != http.StatusOK {
		t.Fatalf("start status = %d, body = %v", status, body)
	}
	if got := body["operation"].(map[string]any)["status"]; got != string(lifecycle.StatusInProgress) {
		t.Fatalf("status after start = %v, want in_progress", got)
	}

	// A second start is rejected with transition context.
	status, body = doJSON(t, srv, http.MethodPost, opPath+"/start", testServiceToken, map[string]any{
		"worker_ids": []int64{11},
	})
	if status != http.StatusConflict {
		t.Fatalf("second start status = %d, want 409", status)
	}
	if body["code"] != "invalid_transition" || body["status"] != string(lifecycle.StatusInProgress) || body["action"] != "start" {
		t.Fatalf("error body = %v, want invalid_transition from in_progress", body)
	}

	status, body = doJSON(t, srv, http.MethodPost, opPath+"/pause", testServiceToken, map[string]any{
		"reason":      "material_wait",
		"description": "axles not delivered",
	})
	if status != http.StatusOK {
		t.Fatalf("pause status = %d, body = %v", status, body)
	}

	status, body = doJSON(t, srv, http.MethodPost, opPath+"/resume", testServiceToken, nil)
	if status != http.StatusOK {
		t.Fatalf("resume status = %d, body = %v", status, body)
	}

	status, body = doJSON(t, srv, http.MethodPost, opPath+"/complete", testServiceToken, nil)
	if status != http.StatusOK {
		t.Fatalf("complete status = %d, body = %v", status, body)
	}
	op := body["operation"].(map[string]any)
	if op["status"] != string(lifecycle.StatusCompleted) {
		t.Fatalf("status after complete = %v, want completed", op["status"])
	}
	if int(op["progress"].(float64)) != 100 {
		t.Fatalf("progress after complete = %v, want 100", op["progress"])
	}

	status, body = doJSON(t, srv, http.MethodGet, opPath+"/pauses", testServiceToken, nil)
	if status != http.StatusOK {
		t.Fatalf("list pauses status = %d, body = %v", status, body)
	}
	pauses := body["pauses"].([]any)
	if len(pauses) != 1 {
		t.Fatalf("pauses = %d, want 1", len(pauses))
	}
	entry := pauses[0].(map[string]any)
	if entry["reason"] != "material_wait" || entry["resumed_at"] == nil {
		t.Fatalf("pause entry = %v, want closed material_wait", entry)
	}
}

func TestPauseValidationOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	opID := seedOperation(t, srv)
	opPath := fmt.Sprintf("/v1/operations/%d", opID)

	if status, _ := doJSON(t, srv, http.MethodPost, opPath+"/start", testServiceToken, map[string]any{
		"worker_ids": []int64{1},
	}); status != http.StatusOK {
		t.Fatalf("start status = %d", status)
	}

	status, body := doJSON(t, srv, http.MethodPost, opPath+"/pause", testServiceToken, map[string]any{
		"reason": "coffee",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("pause with unknown reason status = %d, want 400", status)
	}
	if body["code"] != "invalid_input" {
		t.Fatalf("error body = %v, want invalid_input", body)
	}
}

func TestProgressClampOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	opID := seedOperation(t, srv)
	opPath := fmt.Sprintf("/v1/operations/%d/progress", opID)

	status, body := doJSON(t, srv, http.MethodPut, opPath, testServiceToken, map[string]any{"progress": 150})
	if status != http.StatusOK {
		t.Fatalf("progress status = %d, body = %v", status, body)
	}
	if got := int(body["operation"].(map[string]any)["progress"].(float64)); got != 100 {
		t.Fatalf("progress = %d, want clamped to 100", got)
	}

	status, body = doJSON(t, srv, http.MethodPut, opPath, testServiceToken, map[string]any{"progress": -5})
	if status != http.StatusOK {
		t.Fatalf("progress status = %d, body = %v", status, body)
	}
	if got := int(body["operation"].(map[string]any)["progress"].(float64)); got != 0 {
		t.Fatalf("progress = %d, want clamped to 0", got)
	}
}

func TestWorkerTokenRecordsActor(t *testing.T) {
	srv := newTestServer(t)
	opID := seedOperation(t, srv)

	status, body := doJSON(t, srv, http.MethodPost, "/v1/workers", testServiceToken, map[string]any{
		"name": "Mikko",
	})
	if status != http.StatusCreated {
		t.Fatalf("create worker status = %d, body = %v", status, body)
	}
	workerID := int64(body["worker"].(map[string]any)["id"].(float64))

	status, body = doJSON(t, srv, http.MethodPost, "/v1/tokens", testServiceToken, map[string]any{
		"worker_id": workerID,
	})
	if status != http.StatusCreated {
		t.Fatalf("issue token status = %d, body = %v", status, body)
	}
	workerToken := body["token"].(string)

	opPath := fmt.Sprintf("/v1/operations/%d", opID)
	if status, _ := doJSON(t, srv, http.MethodPost, opPath+"/start", workerToken, map[string]any{
		"worker_ids": []int64{workerID},
	}); status != http.StatusOK {
		t.Fatalf("start with worker token status = %d", status)
	}

	if status, _ := doJSON(t, srv, http.MethodPost, opPath+"/pause", workerToken, map[string]any{
		"reason": "break",
	}); status != http.StatusOK {
		t.Fatalf("pause with worker token status = %d", status)
	}

	status, body = doJSON(t, srv, http.MethodGet, opPath+"/pauses", testServiceToken, nil)
	if status != http.StatusOK {
		t.Fatalf("list pauses status = %d", status)
	}
	entry := body["pauses"].([]any)[0].(map[string]any)
	if got := int64(entry["actor_id"].(float64)); got != workerID {
		t.Fatalf("pause actor_id = %d, want %d", got, workerID)
	}
}

func TestCreateOperationUnknownDefinition(t *testing.T) {
	srv := newTestServer(t)

	status, body := doJSON(t, srv, http.MethodPost, "/v1/operations", testServiceToken, map[string]any{
		"station_id":    1,
		"definition_id": 4242,
	})
	if status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404, body = %v", status, body)
	}
}

func TestActiveRequiresReadPool(t *testing.T) {
	srv := newTestServer(t)

	status, _ := doJSON(t, srv, http.MethodGet, "/v1/operations/active", testServiceToken, nil)
	if status != http.StatusFailedDependency {
		t.Fatalf("status = %d, want 424 without a read-side pool", status)
	}
}
