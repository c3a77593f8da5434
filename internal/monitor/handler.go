package monitor

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rkotelnikov/sitewatch/internal/pkg/httputil"
)

// Handler handles HTTP requests for the monitor module.
type Handler struct {
	service *Service
}

// NewHandler creates a new monitor handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the monitor routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/monitor/poll", h.Poll)
}

// PollResponse is the poll cycle summary returned to the caller.
type PollResponse struct {
	Success   bool           `json:"success"`
	ChecksRun int            `json:"checks_run"`
	Summary   PollSummary    `json:"summary"`
	Results   []CheckOutcome `json:"results"`
}

// PollSummary counts per-result outcomes of one cycle.
type PollSummary struct {
	OK   int `json:"ok"`
	Warn int `json:"warn"`
	Fail int `json:"fail"`
}

// Poll handles POST /monitor/poll request. Running a cycle is synchronous;
// the response carries the full per-check breakdown.
func (h *Handler) Poll(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.RunCycle(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}

	httputil.JSON(w, http.StatusOK, PollResponse{
		Success:   true,
		ChecksRun: summary.ChecksRun,
		Summary:   PollSummary{OK: summary.OK, Warn: summary.Warn, Fail: summary.Fail},
		Results:   summary.Results,
	})
}
