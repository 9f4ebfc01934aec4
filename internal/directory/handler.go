package directory

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/pulsemetrics/analytics-gateway/internal"
	"github.com/pulsemetrics/analytics-gateway/internal/transport"
	"github.com/pulsemetrics/analytics-gateway/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Service *Service
}

func NewHandler(service *Service) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

func (h *Handler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var dto CreateOrganizationDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("CreateOrganization: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	org, err := h.Service.CreateOrganization(r.Context(), dto)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, org)
}

func (h *Handler) DeactivateOrganization(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "id")
	if orgID == "" {
		h.WriteError(w, http.StatusBadRequest, "organization id is required")
		return
	}

	if err := h.Service.DeactivateOrganization(r.Context(), orgID); err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	var dto AssignRoleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("AssignRole: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	assignment, err := h.Service.AssignRole(r.Context(), dto)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, assignment)
}

func (h *Handler) LinkAgency(w http.ResponseWriter, r *http.Request) {
	var dto CreateAgencyLinkDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("LinkAgency: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	link, err := h.Service.LinkAgency(r.Context(), dto)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, link)
}

func (h *Handler) DeactivateAgencyLink(w http.ResponseWriter, r *http.Request) {
	agencyID := chi.URLParam(r, "agencyId")
	clientID := chi.URLParam(r, "clientId")
	if agencyID == "" || clientID == "" {
		h.WriteError(w, http.StatusBadRequest, "agency and client ids are required")
		return
	}

	if err := h.Service.DeactivateAgencyLink(r.Context(), agencyID, clientID); err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

func (h *Handler) AttachApp(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "id")
	if orgID == "" {
		h.WriteError(w, http.StatusBadRequest, "organization id is required")
		return
	}

	var dto AttachGrantDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("AttachApp: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	grant, err := h.Service.AttachApp(r.Context(), orgID, dto)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, grant)
}

func (h *Handler) DetachApp(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "id")
	appID := chi.URLParam(r, "appId")
	if orgID == "" || appID == "" {
		h.WriteError(w, http.StatusBadRequest, "organization and app ids are required")
		return
	}

	if err := h.Service.DetachApp(r.Context(), orgID, appID); err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "detached"})
}

func (h *Handler) ListGrants(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "id")
	if orgID == "" {
		h.WriteError(w, http.StatusBadRequest, "organization id is required")
		return
	}

	grants, err := h.Service.ListGrants(r.Context(), orgID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"grants": grants})
}

func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	if appErr, ok := internal.IsAppError(err); ok {
		status, body := appErr.ToHTTPResponse()
		h.WriteJSON(w, status, body)
		return
	}
	h.Logger.Error("directory service error", "error", err)
	h.WriteError(w, http.StatusInternalServerError, "internal server error")
}
