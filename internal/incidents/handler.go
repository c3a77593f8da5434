package incidents

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rkotelnikov/sitewatch/internal/domain"
	"github.com/rkotelnikov/sitewatch/internal/pkg/httputil"
	"github.com/rkotelnikov/sitewatch/internal/sites"
)

// Pagination constants.
const (
	DefaultIncidentsLimit = 50
	MaxIncidentsLimit     = 200
)

// Handler handles HTTP requests for the incidents module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new incidents handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers the classification and ingestion routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/incidents/classify", h.Classify)
	r.Get("/incidents/{id}", h.GetIncident)
	r.Post("/errors/report", h.ReportError)
	r.Get("/sites/{id}/incidents", h.ListSiteIncidents)
}

// ClassifyRequest represents the request body for a classification call.
type ClassifyRequest struct {
	SiteID    string `json:"site_id" validate:"required"`
	CheckType string `json:"check_type" validate:"required"`
	EventID   string `json:"event_id" validate:"required"`
}

// ReportErrorRequest represents the request body for a direct error report.
type ReportErrorRequest struct {
	SiteID    string         `json:"site_id" validate:"required"`
	Severity  string         `json:"severity" validate:"required,oneof=sev-1 sev-2 sev-3"`
	Type      string         `json:"type" validate:"required,min=1,max=255"`
	Message   string         `json:"message" validate:"required,min=1"`
	Path      *string        `json:"path"`
	Timestamp *time.Time     `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
}

// Classify handles POST /incidents/classify request.
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	result, err := h.service.Classify(r.Context(), ClassifyInput{
		SiteID:    req.SiteID,
		CheckType: domain.CheckType(req.CheckType),
		EventID:   req.EventID,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	if result.Suppressed {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"success":    true,
			"suppressed": true,
			"reason":     result.Reason,
		})
		return
	}

	if result.Incident == nil {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"success":          true,
			"incident_created": false,
			"reason":           result.Reason,
		})
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"success":              true,
		"incident_created":     result.IncidentCreated,
		"incident_id":          result.Incident.ID,
		"severity":             result.Incident.Severity,
		"consecutive_failures": result.ConsecutiveFailures,
	})
}

// ReportError handles POST /errors/report request. The site's shared secret
// travels in the X-Site-Secret header; sites without a secret accept
// unauthenticated reports.
func (h *Handler) ReportError(w http.ResponseWriter, r *http.Request) {
	var req ReportErrorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	report, err := h.service.ReportError(r.Context(), ReportErrorInput{
		SiteID:     req.SiteID,
		Severity:   domain.Severity(req.Severity),
		ErrorType:  req.Type,
		Message:    req.Message,
		Path:       req.Path,
		Metadata:   req.Metadata,
		OccurredAt: req.Timestamp,
		Secret:     r.Header.Get("X-Site-Secret"),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	resp := map[string]interface{}{
		"success":          true,
		"error_log_id":     report.ErrorLog.ID,
		"incident_created": report.IncidentCreated,
	}
	if report.Incident != nil {
		resp["incident_id"] = report.Incident.ID
	} else {
		resp["incident_id"] = nil
	}

	httputil.JSON(w, http.StatusCreated, resp)
}

// GetIncident handles GET /incidents/{id} request.
func (h *Handler) GetIncident(w http.ResponseWriter, r *http.Request) {
	incident, err := h.service.GetIncident(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, incident)
}

// ListSiteIncidents handles GET /sites/{id}/incidents request.
func (h *Handler) ListSiteIncidents(w http.ResponseWriter, r *http.Request) {
	limit := DefaultIncidentsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			httputil.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if n > MaxIncidentsLimit {
			n = MaxIncidentsLimit
		}
		limit = n
	}

	list, err := h.service.ListIncidents(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{"incidents": list})
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
		{Error: sites.ErrSiteNotFound, Status: http.StatusNotFound},
		{Error: ErrIncidentNotFound, Status: http.StatusNotFound},
		{Error: ErrInvalidSecret, Status: http.StatusUnauthorized},
		{Error: ErrSiteInactive, Status: http.StatusBadRequest},
		{Error: ErrInvalidSeverity, Status: http.StatusBadRequest},
	})
}
