// Package handler exposes the lifecycle manager over HTTP. The handlers only
// map requests onto service calls; callers poll status until terminal.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"leadcrm/internal/artifact"
	"leadcrm/internal/lifecycle/models"
	dErrors "leadcrm/pkg/domain-errors"
	"leadcrm/pkg/platform/httputil"
	"leadcrm/pkg/validation"
)

type Service interface {
	Submit(ctx context.Context, kind models.Kind, subject string, strategy models.Strategy, requester string) (string, error)
	Status(ctx context.Context, requestID string) (*models.Request, error)
	Download(ctx context.Context, token string) (*artifact.Artifact, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/privacy/requests", h.HandleSubmit)
	r.Get("/v1/privacy/requests/{requestID}", h.HandleStatus)
	r.Get("/v1/privacy/exports/download", h.HandleDownload)
}

type submitRequest struct {
	Kind      string `json:"kind" validate:"required,oneof=export deletion"`
	Subject   string `json:"subject" validate:"required,email"`
	Strategy  string `json:"strategy,omitempty" validate:"omitempty,oneof=full anonymize retain"`
	Requester string `json:"requester,omitempty" validate:"omitempty,max=256"`
}

type submitResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := validation.Validate(&req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	id, err := h.service.Submit(r.Context(),
		models.Kind(req.Kind), req.Subject, models.Strategy(req.Strategy), req.Requester)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, submitResponse{
		RequestID: id,
		Status:    string(models.StatusPending),
	})
}

func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")
	req, err := h.service.Status(r.Context(), requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, req)
}

func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	a, err := h.service.Download(r.Context(), token)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="data-export.json"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(a.Payload); err != nil {
		h.logger.Warn("write export payload", "artifact_id", a.ID, "error", err)
	}
}
