package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadcrm/internal/consent/models"
	dErrors "leadcrm/pkg/domain-errors"
)

type stubService struct {
	record      *models.Record
	recordErr   error
	withdrawErr error
	hasConsent  bool
	list        []*models.Record
}

func (s *stubService) Record(_ context.Context, _ string, _ models.Type, _ bool, _ models.Method, _ string) (*models.Record, error) {
	return s.record, s.recordErr
}

func (s *stubService) Withdraw(_ context.Context, _ string, _ models.Type, _ string) error {
	return s.withdrawErr
}

func (s *stubService) HasConsent(_ context.Context, _ string, _ models.Type) (bool, error) {
	return s.hasConsent, nil
}

func (s *stubService) List(_ context.Context, _ string) ([]*models.Record, error) {
	return s.list, nil
}

func newRouter(svc Service) chi.Router {
	r := chi.NewRouter()
	New(svc, slog.Default()).Register(r)
	return r
}

func grantedRecord() *models.Record {
	return &models.Record{
		ID:        "cons_1",
		Subject:   "jane@example.com",
		Type:      models.TypeMarketing,
		Given:     true,
		Method:    models.MethodExplicit,
		GrantedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestHandleRecordCreated(t *testing.T) {
	router := newRouter(&stubService{record: grantedRecord()})

	body, _ := json.Marshal(map[string]any{
		"subject": "jane@example.com", "type": "marketing", "given": true, "method": "explicit",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/privacy/consents", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp models.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "cons_1", resp.ID)
	assert.True(t, resp.Given)
}

func TestHandleRecordDuplicateGrant(t *testing.T) {
	router := newRouter(&stubService{
		recordErr: dErrors.New(dErrors.CodeDuplicateConsent, "an active marketing consent already exists"),
	})

	body, _ := json.Marshal(map[string]any{
		"subject": "jane@example.com", "type": "marketing", "given": true, "method": "explicit",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/privacy/consents", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleRecordValidation(t *testing.T) {
	router := newRouter(&stubService{record: grantedRecord()})

	tests := []struct {
		name    string
		payload map[string]any
		message string
	}{
		{
			name:    "missing subject",
			payload: map[string]any{"type": "marketing", "method": "explicit"},
			message: "subject is required",
		},
		{
			name:    "unknown type",
			payload: map[string]any{"subject": "jane@example.com", "type": "telemetry", "method": "explicit"},
			message: "type must be one of",
		},
		{
			name:    "unknown method",
			payload: map[string]any{"subject": "jane@example.com", "type": "marketing", "method": "verbal"},
			message: "method must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(tt.payload)
			req := httptest.NewRequest(http.MethodPost, "/v1/privacy/consents", bytes.NewReader(body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.message)
		})
	}
}

func TestHandleWithdraw(t *testing.T) {
	router := newRouter(&stubService{})

	body, _ := json.Marshal(map[string]string{
		"subject": "jane@example.com", "type": "marketing", "reason": "user request",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/privacy/consents/withdraw", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "withdrawn")
}

func TestHandleWithdrawNoActiveGrant(t *testing.T) {
	router := newRouter(&stubService{
		withdrawErr: dErrors.New(dErrors.CodeNoActiveConsent, "no active marketing consent for subject"),
	})

	body, _ := json.Marshal(map[string]string{"subject": "jane@example.com", "type": "marketing"})
	req := httptest.NewRequest(http.MethodPost, "/v1/privacy/consents/withdraw", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleCheck(t *testing.T) {
	router := newRouter(&stubService{hasConsent: true})

	req := httptest.NewRequest(http.MethodGet, "/v1/privacy/consents/check?subject=jane@example.com&type=marketing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp["has_consent"])
}

func TestHandleCheckMissingParams(t *testing.T) {
	router := newRouter(&stubService{})

	req := httptest.NewRequest(http.MethodGet, "/v1/privacy/consents/check?subject=jane@example.com", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleList(t *testing.T) {
	router := newRouter(&stubService{list: []*models.Record{grantedRecord()}})

	req := httptest.NewRequest(http.MethodGet, "/v1/privacy/consents?subject=jane@example.com", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cons_1")
}
