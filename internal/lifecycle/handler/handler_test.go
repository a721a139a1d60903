package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadcrm/internal/artifact"
	"leadcrm/internal/lifecycle/models"
	dErrors "leadcrm/pkg/domain-errors"
)

type stubService struct {
	submitID  string
	submitErr error
	status    *models.Request
	statusErr error
	artifact  *artifact.Artifact
}

func (s *stubService) Submit(_ context.Context, _ models.Kind, _ string, _ models.Strategy, _ string) (string, error) {
	return s.submitID, s.submitErr
}

func (s *stubService) Status(_ context.Context, _ string) (*models.Request, error) {
	return s.status, s.statusErr
}

func (s *stubService) Download(_ context.Context, _ string) (*artifact.Artifact, error) {
	if s.artifact == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "export artifact expired or removed")
	}
	return s.artifact, nil
}

func newRouter(svc Service) chi.Router {
	r := chi.NewRouter()
	New(svc, slog.Default()).Register(r)
	return r
}

func TestHandleSubmitAccepted(t *testing.T) {
	router := newRouter(&stubService{submitID: "req_123"})

	body, _ := json.Marshal(map[string]string{
		"kind": "export", "subject": "jane@example.com", "requester": "dpo@crm",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/privacy/requests", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "req_123", resp["request_id"])
	assert.Equal(t, "pending", resp["status"])
}

func TestHandleSubmitConflict(t *testing.T) {
	router := newRouter(&stubService{
		submitErr: dErrors.New(dErrors.CodeRequestConflict, "a export request for this subject is already in flight"),
	})

	body, _ := json.Marshal(map[string]string{"kind": "export", "subject": "jane@example.com"})
	req := httptest.NewRequest(http.MethodPost, "/v1/privacy/requests", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleSubmitBadBody(t *testing.T) {
	router := newRouter(&stubService{})

	req := httptest.NewRequest(http.MethodPost, "/v1/privacy/requests", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSubmitValidation(t *testing.T) {
	router := newRouter(&stubService{submitID: "req_123"})

	tests := []struct {
		name    string
		payload map[string]string
		message string
	}{
		{
			name:    "unknown kind",
			payload: map[string]string{"kind": "purge", "subject": "jane@example.com"},
			message: "kind must be one of [export deletion]",
		},
		{
			name:    "subject not an email",
			payload: map[string]string{"kind": "export", "subject": "jane"},
			message: "subject must be a valid email",
		},
		{
			name:    "unknown strategy",
			payload: map[string]string{"kind": "deletion", "subject": "jane@example.com", "strategy": "soft"},
			message: "strategy must be one of [full anonymize retain]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(tt.payload)
			req := httptest.NewRequest(http.MethodPost, "/v1/privacy/requests", bytes.NewReader(body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.message)
		})
	}
}

func TestHandleStatus(t *testing.T) {
	router := newRouter(&stubService{status: &models.Request{
		ID: "req_123", Subject: "jane@example.com", Kind: models.KindExport, Status: models.StatusCompleted,
	}})

	req := httptest.NewRequest(http.MethodGet, "/v1/privacy/requests/req_123", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.Request
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.StatusCompleted, resp.Status)
}

func TestHandleDownload(t *testing.T) {
	router := newRouter(&stubService{artifact: &artifact.Artifact{
		ID: "art-1", ContentType: "application/json", Payload: []byte(`{"subject":"jane@example.com"}`),
	}})

	req := httptest.NewRequest(http.MethodGet, "/v1/privacy/exports/download?token=abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"subject":"jane@example.com"}`, rec.Body.String())
}

func TestHandleDownloadExpired(t *testing.T) {
	router := newRouter(&stubService{})

	req := httptest.NewRequest(http.MethodGet, "/v1/privacy/exports/download?token=stale", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
