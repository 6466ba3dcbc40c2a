package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/keyrelay/keyrelay/internal/models"
)

func TestHandleProjectLogs(t *testing.T) {
	srv := newTestServer(t)
	id := createTestProject(t, srv, "logged")

	ctx := context.Background()
	base := time.Now().Add(-time.Minute)
	for i, status := range []int{200, 404, 502} {
		entry := &models.LogEntry{
			ProjectID: id,
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Method:    "GET",
			Path:      "/data",
			Status:    status,
		}
		if err := srv.app.Storage.Logs().Append(ctx, entry); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/logs/"+id+"?limit=2", nil)
	rec := httptest.NewRecorder()
	srv.handleProjectLogs(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Logs []models.LogEntry `json:"logs"`
	}
	json.NewDecoder(rec.Body).Decode(&resp)
	if len(resp.Logs) != 2 {
		t.Fatalf("expected 2 entries with limit=2, got %d", len(resp.Logs))
	}
	// Newest first
	if resp.Logs[0].Status != 502 || resp.Logs[1].Status != 404 {
		t.Errorf("expected newest-first ordering, got %d then %d", resp.Logs[0].Status, resp.Logs[1].Status)
	}
}

func TestHandleProjectLogs_MissingProject(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/logs/ghost", nil)
	rec := httptest.NewRecorder()
	srv.handleProjectLogs(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandleSecurityLogs(t *testing.T) {
	srv := newTestServer(t)

	entry := &models.SecurityLogEntry{
		Timestamp: time.Now(),
		ClientID:  "1.2.3.4_abcd1234",
		Method:    "GET",
		URL:       "/wp-login.php",
		Pattern:   "wp-login",
		UserAgent: "scanner/1.0",
	}
	if err := srv.app.Storage.Logs().AppendSecurity(context.Background(), entry); err != nil {
		t.Fatalf("AppendSecurity failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/logs/security", nil)
	rec := httptest.NewRecorder()
	srv.handleSecurityLogs(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Logs []models.SecurityLogEntry `json:"logs"`
	}
	json.NewDecoder(rec.Body).Decode(&resp)
	if len(resp.Logs) != 1 || resp.Logs[0].Pattern != "wp-login" {
		t.Errorf("unexpected security log listing: %+v", resp.Logs)
	}
}
