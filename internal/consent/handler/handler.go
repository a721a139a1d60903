// Package handler exposes the consent ledger over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"leadcrm/internal/consent/models"
	dErrors "leadcrm/pkg/domain-errors"
	"leadcrm/pkg/platform/httputil"
	"leadcrm/pkg/validation"
)

type Service interface {
	Record(ctx context.Context, subject string, consentType models.Type, given bool, method models.Method, consentContext string) (*models.Record, error)
	Withdraw(ctx context.Context, subject string, consentType models.Type, reason string) error
	HasConsent(ctx context.Context, subject string, consentType models.Type) (bool, error)
	List(ctx context.Context, subject string) ([]*models.Record, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/privacy/consents", h.HandleRecord)
	r.Post("/v1/privacy/consents/withdraw", h.HandleWithdraw)
	r.Get("/v1/privacy/consents/check", h.HandleCheck)
	r.Get("/v1/privacy/consents", h.HandleList)
}

type recordRequest struct {
	Subject string `json:"subject" validate:"required,email"`
	Type    string `json:"type" validate:"required,oneof=marketing analytics functional data-processing"`
	Given   bool   `json:"given"`
	Method  string `json:"method" validate:"required,oneof=explicit implicit legitimate-interest"`
	Context string `json:"context,omitempty" validate:"omitempty,max=1024"`
}

func (h *Handler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := validation.Validate(&req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	record, err := h.service.Record(r.Context(),
		req.Subject, models.Type(req.Type), req.Given, models.Method(req.Method), req.Context)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, record)
}

type withdrawRequest struct {
	Subject string `json:"subject" validate:"required,email"`
	Type    string `json:"type" validate:"required,oneof=marketing analytics functional data-processing"`
	Reason  string `json:"reason,omitempty" validate:"omitempty,max=1024"`
}

func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := validation.Validate(&req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Withdraw(r.Context(), req.Subject, models.Type(req.Type), req.Reason); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "withdrawn"})
}

func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	subject := r.URL.Query().Get("subject")
	consentType := r.URL.Query().Get("type")
	if subject == "" || consentType == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "subject and type are required"))
		return
	}

	has, err := h.service.HasConsent(r.Context(), subject, models.Type(consentType))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"has_consent": has})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	subject := r.URL.Query().Get("subject")
	if subject == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "subject is required"))
		return
	}

	records, err := h.service.List(r.Context(), subject)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"consents": records})
}
