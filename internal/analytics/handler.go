package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/pulsemetrics/analytics-gateway/internal"
	"github.com/pulsemetrics/analytics-gateway/internal/identity"
	"github.com/pulsemetrics/analytics-gateway/internal/transport"
	"github.com/pulsemetrics/analytics-gateway/pkg/logger"
)

type ServiceAPI interface {
	Query(ctx context.Context, id *identity.Identity, dto QueryRequestDTO) (*QueryResponse, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

// Query handles POST /analytics/query.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	id, ok := identity.FromContext(r.Context())
	if !ok || id == nil {
		h.Logger.Error("Query: identity not found in context")
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto QueryRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("Query: invalid request body", "error", err, "user_id", id.UserID)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.Service.Query(r.Context(), id, dto)
	if err != nil {
		h.handleGatewayError(w, err, id.UserID)
		return
	}

	h.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGatewayError(w http.ResponseWriter, err error, userID string) {
	if appErr, ok := internal.IsAppError(err); ok {
		h.Logger.Warn("Query: request failed",
			"user_id", userID,
			"code", appErr.Code,
			"category", appErr.WireCategory())
		h.WriteWireError(w, appErr.StatusCode, appErr.WireCategory())
		return
	}

	h.Logger.Error("Query: unexpected error", "error", err, "user_id", userID)
	h.WriteWireError(w, http.StatusInternalServerError, "internal_error")
}
