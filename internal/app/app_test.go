package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"taskboard/internal/logging"
	"taskboard/internal/models"
	"taskboard/internal/pdf"
	"taskboard/internal/repositories"
	"taskboard/internal/services"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := services.NewTaskService(repositories.NewMemoryTaskRepository())
	return NewRouter(zap.NewNop(), svc, pdf.NewSummaryGenerator(""), prometheus.NewRegistry(), "taskapi")
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTaskLifecycle(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/tasks", `{"title":"Buy milk","description":"2%"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", w.Code, w.Body)
	}
	var created models.Task
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.Status != models.StatusPending || created.CompletedAt != nil {
		t.Errorf("created = %+v", created)
	}
	if !strings.Contains(w.Body.String(), `"completed_at":null`) {
		t.Errorf("completed_at must be serialized as null: %s", w.Body)
	}

	w = do(r, http.MethodPatch, "/api/tasks/1/complete", "")
	if w.Code != http.StatusOK {
		t.Fatalf("complete status = %d body=%s", w.Code, w.Body)
	}

	w = do(r, http.MethodGet, "/api/tasks?status=completed", "")
	var list []models.Task
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].CompletedAt == nil {
		t.Fatalf("completed list = %+v", list)
	}

	if w = do(r, http.MethodDelete, "/api/tasks/1", ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	if w = do(r, http.MethodDelete, "/api/tasks/1", ""); w.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d", w.Code)
	}
	if w = do(r, http.MethodGet, "/api/tasks/1", ""); w.Code != http.StatusNotFound {
		t.Fatalf("get deleted status = %d", w.Code)
	}
}

func TestListEmptyIsArray(t *testing.T) {
	r := newTestRouter(t)
	w := do(r, http.MethodGet, "/api/tasks", "")
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "[]" {
		t.Fatalf("status=%d body=%q", w.Code, w.Body)
	}
}

func TestBadRequests(t *testing.T) {
	r := newTestRouter(t)
	cases := []struct {
		name, method, target, body string
	}{
		{"missing title", http.MethodPost, "/api/tasks", `{"description":"x"}`},
		{"blank title", http.MethodPost, "/api/tasks", `{"title":"   "}`},
		{"bad status", http.MethodGet, "/api/tasks?status=archived", ""},
		{"bad date", http.MethodGet, "/api/tasks?from_date=yesterday", ""},
		{"bad id", http.MethodPatch, "/api/tasks/abc/complete", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := do(r, tc.method, tc.target, tc.body); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d body=%s", w.Code, w.Body)
			}
		})
	}
}

func TestSummaryIsPDF(t *testing.T) {
	r := newTestRouter(t)
	do(r, http.MethodPost, "/api/tasks", `{"title":"a","description":"b"}`)

	w := do(r, http.MethodGet, "/api/tasks/summary", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("content type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "tasks_summary.pdf") {
		t.Errorf("content disposition = %q", cd)
	}
	if !strings.HasPrefix(w.Body.String(), "%PDF-") {
		t.Error("body is not a PDF")
	}
}

func TestRequestIDAndMetrics(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(logging.RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(logging.RequestIDHeader); got != "abc-123" {
		t.Errorf("request id = %q", got)
	}

	do(r, http.MethodGet, "/api/tasks", "")
	w = do(r, http.MethodGet, "/metrics", "")
	if !strings.Contains(w.Body.String(), `taskapi_http_requests_total{method="GET",route="/api/tasks",status="200"} 1`) {
		t.Errorf("metrics missing request counter:\n%s", w.Body)
	}
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(t)
	w := do(r, http.MethodOptions, "/api/tasks/1/complete", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Access-Control-Allow-Methods"), "PATCH") {
		t.Errorf("allow methods = %q", w.Header().Get("Access-Control-Allow-Methods"))
	}
}
