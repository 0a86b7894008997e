package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/reportstream/reportstream/internal/config"
	"github.com/reportstream/reportstream/internal/ingest"
	"github.com/reportstream/reportstream/internal/models"
	"github.com/reportstream/reportstream/internal/store"
)

func newTestServer() (*Server, *store.MemoryStore) {
	mem := store.NewMemoryStore()
	orch := ingest.New(mem, mem, mem, nil, zap.NewNop(), ingest.Config{})
	cfg := config.Config{MaxUploadSize: 1 << 20}
	return NewServer(zap.NewNop(), orch, nil, cfg), mem
}

func multipartUpload(t *testing.T, fileName, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func waitForStatus(t *testing.T, srv *Server, fileID string, want models.IngestStatus) *models.StatusInfo {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		st, err := srv.Orchestrator.Status(context.Background(), fileID)
		if err == nil && st.Status == want {
			return st
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("file %s never reached status %s", fileID, want)
	return nil
}

func TestUploadHandlerAcceptsAndProcesses(t *testing.T) {
	srv, mem := newTestServer()
	router := srv.Routes()

	csv := "Date,Website,Revenue\n2024-01-15,a.com,10\n2024-01-15,b.com,5\n"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartUpload(t, "report.csv", csv))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp UploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.FileID == "" || resp.Status != string(models.StatusUploading) {
		t.Fatalf("unexpected response: %+v", resp)
	}

	waitForStatus(t, srv, resp.FileID, models.StatusCompleted)

	// Result is now queryable through the handler.
	resultRec := httptest.NewRecorder()
	router.ServeHTTP(resultRec, httptest.NewRequest(http.MethodGet, "/result/"+resp.FileID, nil))
	if resultRec.Code != http.StatusOK {
		t.Fatalf("result: expected 200, got %d", resultRec.Code)
	}
	var res models.AnalysisResult
	if err := json.Unmarshal(resultRec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Summary.TotalRows != 2 || res.Summary.TotalRevenue != 15 {
		t.Fatalf("unexpected summary: %+v", res.Summary)
	}
	if mem.RowCount(resp.FileID) != 2 {
		t.Fatalf("rows written = %d, want 2", mem.RowCount(resp.FileID))
	}
}

func TestUploadHandlerRejectsExtension(t *testing.T) {
	srv, _ := newTestServer()
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, multipartUpload(t, "report.xlsx", "Date,Website\n"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUploadHandlerRequiresFileField(t *testing.T) {
	srv, _ := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewBufferString("not multipart"))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStatusHandlerUnknownID(t *testing.T) {
	srv, _ := newTestServer()
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status/does-not-exist", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestResultHandlerUnknownID(t *testing.T) {
	srv, _ := newTestServer()
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/result/does-not-exist", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestStatusHandlerFailedIngestion(t *testing.T) {
	srv, _ := newTestServer()
	router := srv.Routes()

	// Header without a website column fails fast; the failure must be
	// observable through the status endpoint.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartUpload(t, "report.csv", "Country,Revenue\nUS,1\n"))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	var resp UploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	st := waitForStatus(t, srv, resp.FileID, models.StatusFailed)
	if st.Error == "" {
		t.Fatal("failed status should carry an error message")
	}
}

func TestHealthHandler(t *testing.T) {
	srv, _ := newTestServer()
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
