package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/therapymatch/internal/availability"
	"github.com/wolfman30/therapymatch/pkg/logging"
)

// maxSlotRangeDays bounds one slots query.
const maxSlotRangeDays = 62

type slotService interface {
	GetAvailableSlots(ctx context.Context, providerID string, rangeStart, rangeEnd time.Time) ([]availability.Slot, error)
	IsSlotAvailable(ctx context.Context, providerID string, start time.Time) (bool, error)
}

// AvailabilityHandler serves provider slot queries.
type AvailabilityHandler struct {
	slots  slotService
	logger *logging.Logger
}

func NewAvailabilityHandler(slots slotService, logger *logging.Logger) *AvailabilityHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AvailabilityHandler{slots: slots, logger: logger}
}

type slotsResponse struct {
	ProviderID string              `json:"providerId"`
	Start      string              `json:"start"`
	End        string              `json:"end"`
	Slots      []availability.Slot `json:"slots"`
}

// GetSlots lists bookable slots.
// Route: GET /v1/providers/{providerID}/slots?start=YYYY-MM-DD&end=YYYY-MM-DD
func (h *AvailabilityHandler) GetSlots(w http.ResponseWriter, r *http.Request) {
	providerID := pathParam(r, "providerID")
	if providerID == "" {
		jsonError(w, "missing providerID", http.StatusBadRequest)
		return
	}
	start, ok := parseDate(r, "start")
	if !ok {
		jsonError(w, "start must be a YYYY-MM-DD date", http.StatusBadRequest)
		return
	}
	end, ok := parseDate(r, "end")
	if !ok {
		jsonError(w, "end must be a YYYY-MM-DD date", http.StatusBadRequest)
		return
	}
	if end.Sub(start) > maxSlotRangeDays*24*time.Hour {
		jsonError(w, "date range too large", http.StatusBadRequest)
		return
	}

	slots, err := h.slots.GetAvailableSlots(r.Context(), providerID, start, end)
	if err != nil {
		if errors.Is(err, availability.ErrNotFound) {
			jsonError(w, "provider not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load slots", "provider_id", providerID, "error", err)
		jsonError(w, "failed to load availability", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, slotsResponse{
		ProviderID: providerID,
		Start:      start.Format(time.DateOnly),
		End:        end.Format(time.DateOnly),
		Slots:      slots,
	})
}

// CheckSlot re-validates one start time before booking.
// Route: GET /v1/providers/{providerID}/slots/check?start=RFC3339
func (h *AvailabilityHandler) CheckSlot(w http.ResponseWriter, r *http.Request) {
	providerID := pathParam(r, "providerID")
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(r.URL.Query().Get("start")))
	if providerID == "" || err != nil {
		jsonError(w, "start must be an RFC3339 timestamp", http.StatusBadRequest)
		return
	}

	available, err := h.slots.IsSlotAvailable(r.Context(), providerID, start)
	if err != nil {
		if errors.Is(err, availability.ErrNotFound) {
			jsonError(w, "provider not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to check slot", "provider_id", providerID, "error", err)
		jsonError(w, "failed to check availability", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"providerId": providerID,
		"start":      start,
		"available":  available,
	})
}
