package sites

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rkotelnikov/sitewatch/internal/domain"
	"github.com/rkotelnikov/sitewatch/internal/pkg/httputil"
)

// Handler handles HTTP requests for the sites module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new sites handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers the site and check management routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/sites", func(r chi.Router) {
		r.Get("/", h.ListSites)
		r.Post("/", h.CreateSite)
		r.Get("/{id}", h.GetSite)
		r.Patch("/{id}/status", h.UpdateSiteStatus)
		r.Get("/{id}/checks", h.ListChecks)
		r.Post("/{id}/checks", h.CreateCheck)
	})
	r.Patch("/checks/{id}", h.UpdateCheck)
	r.Post("/deploys", h.RecordDeploy)
}

// CreateSiteRequest represents the request body for registering a site.
type CreateSiteRequest struct {
	ExternalID               string `json:"external_id" validate:"required,min=1,max=255"`
	Name                     string `json:"name" validate:"required,min=1,max=255"`
	PrimaryDomain            string `json:"primary_domain" validate:"required,min=1,max=255"`
	DeploySuppressionMinutes *int   `json:"deploy_suppression_minutes" validate:"omitempty,min=0"`
	Secret                   string `json:"secret"`
}

// UpdateSiteStatusRequest represents the request body for changing a site's
// lifecycle state.
type UpdateSiteStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active suspended"`
}

// CreateCheckRequest represents the request body for adding a health check.
type CreateCheckRequest struct {
	Type           string `json:"check_type" validate:"required,oneof=uptime health_api ssl cms form seo"`
	Target         string `json:"target" validate:"required,min=1"`
	TimeoutMS      int    `json:"timeout_ms" validate:"omitempty,min=0"`
	ExpectedStatus int    `json:"expected_status" validate:"omitempty,min=100,max=599"`
	Enabled        *bool  `json:"enabled"`
}

// UpdateCheckRequest represents the request body for toggling a check.
type UpdateCheckRequest struct {
	Enabled bool `json:"enabled"`
}

// RecordDeployRequest represents the request body for a deploy notification.
// The site's shared secret travels in the X-Site-Secret header.
type RecordDeployRequest struct {
	SiteExternalID string     `json:"site_external_id" validate:"required"`
	DeployedAt     *time.Time `json:"deployed_at"`
}

// CreateSite handles POST /sites request.
func (h *Handler) CreateSite(w http.ResponseWriter, r *http.Request) {
	var req CreateSiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	site, err := h.service.CreateSite(r.Context(), CreateSiteInput{
		ExternalID:               req.ExternalID,
		Name:                     req.Name,
		PrimaryDomain:            req.PrimaryDomain,
		DeploySuppressionMinutes: req.DeploySuppressionMinutes,
		Secret:                   req.Secret,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, site)
}

// GetSite handles GET /sites/{id} request.
func (h *Handler) GetSite(w http.ResponseWriter, r *http.Request) {
	site, err := h.service.GetSite(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, site)
}

// ListSites handles GET /sites request.
func (h *Handler) ListSites(w http.ResponseWriter, r *http.Request) {
	filter := SiteFilter{}
	if v := r.URL.Query().Get("status"); v != "" {
		status := domain.SiteStatus(v)
		if !status.IsValid() {
			httputil.Error(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		filter.Status = &status
	}

	list, err := h.service.ListSites(r.Context(), filter)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{"sites": list})
}

// UpdateSiteStatus handles PATCH /sites/{id}/status request.
func (h *Handler) UpdateSiteStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateSiteStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	site, err := h.service.UpdateSiteStatus(r.Context(), chi.URLParam(r, "id"), domain.SiteStatus(req.Status))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, site)
}

// CreateCheck handles POST /sites/{id}/checks request.
func (h *Handler) CreateCheck(w http.ResponseWriter, r *http.Request) {
	var req CreateCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	check, err := h.service.CreateCheck(r.Context(), CreateCheckInput{
		SiteID:         chi.URLParam(r, "id"),
		Type:           domain.CheckType(req.Type),
		Target:         req.Target,
		Timeout:        time.Duration(req.TimeoutMS) * time.Millisecond,
		ExpectedStatus: req.ExpectedStatus,
		Enabled:        req.Enabled,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, check)
}

// ListChecks handles GET /sites/{id}/checks request.
func (h *Handler) ListChecks(w http.ResponseWriter, r *http.Request) {
	checks, err := h.service.ListChecks(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{"checks": checks})
}

// UpdateCheck handles PATCH /checks/{id} request.
func (h *Handler) UpdateCheck(w http.ResponseWriter, r *http.Request) {
	var req UpdateCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.service.SetCheckEnabled(r.Context(), chi.URLParam(r, "id"), req.Enabled); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// RecordDeploy handles POST /deploys request.
func (h *Handler) RecordDeploy(w http.ResponseWriter, r *http.Request) {
	var req RecordDeployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	deployedAt := time.Time{}
	if req.DeployedAt != nil {
		deployedAt = *req.DeployedAt
	}

	site, err := h.service.RecordDeploy(r.Context(), req.SiteExternalID, r.Header.Get("X-Site-Secret"), deployedAt)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"site_id":        site.ID,
		"last_deploy_at": site.LastDeployAt,
	})
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
		{Error: ErrSiteNotFound, Status: http.StatusNotFound},
		{Error: ErrCheckNotFound, Status: http.StatusNotFound},
		{Error: ErrSiteExists, Status: http.StatusConflict},
		{Error: ErrInvalidSecret, Status: http.StatusUnauthorized},
	})
}
