package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"parking-facility/internal/export"
	"parking-facility/internal/facility"
	"parking-facility/internal/logging"
	"parking-facility/internal/parking"
)

const defaultAnalyticsDays = 7

type Handler struct {
	facility    *facility.Facility
	serviceName string
}

func NewHandler(f *facility.Facility, serviceName string) *Handler {
	return &Handler{facility: f, serviceName: serviceName}
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, parking.ErrCapacityExhausted),
		errors.Is(err, parking.ErrDuplicateVehicle),
		errors.Is(err, parking.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, parking.ErrUnknownSlot),
		errors.Is(err, parking.ErrVehicleNotFound):
		return http.StatusNotFound
	case errors.Is(err, parking.ErrUnknownCategory),
		errors.Is(err, parking.ErrInvalidVehicle),
		errors.Is(err, parking.ErrInvalidRange):
		return http.StatusBadRequest
	case errors.Is(err, facility.ErrPersist):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	WriteError(r.Context(), w, status, err.Error())
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Service: h.serviceName,
		Meta:    extractMeta(r.Context()),
	})
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	slots := h.facility.RegistrySnapshot(ctx)
	stats := h.facility.Occupancy(ctx)
	now := h.facility.Now()
	fees := h.facility.Fees()

	resp := StatusResponse{
		Capacity:       stats.Capacity,
		Occupied:       stats.Occupied,
		Available:      stats.Free,
		FreeByCategory: stats.FreeByCategory,
		Slots:          make([]SlotResponse, len(slots)),
	}
	for i, s := range slots {
		resp.Slots[i] = toSlotResponse(s, now, fees)
	}

	WriteSuccess(ctx, w, "Status retrieved successfully", resp)
}

func (h *Handler) GetSlot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Slot id must be a number")
		return
	}

	slot, err := h.facility.Slot(ctx, id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	WriteSuccess(ctx, w, "Slot retrieved successfully", toSlotResponse(slot, h.facility.Now(), h.facility.Fees()))
}

func (h *Handler) ParkVehicle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ParkVehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, parking.ErrUnknownCategory) {
			WriteError(ctx, w, http.StatusBadRequest, err.Error())
			return
		}
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Plate == "" || req.Category == "" {
		WriteError(ctx, w, http.StatusBadRequest, "Plate and category are required")
		return
	}

	slot, err := h.facility.Allocate(ctx, parking.NewVehicle(req.Plate, req.Owner, req.Category))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	WriteSuccess(ctx, w, "Vehicle parked successfully", toSlotResponse(slot, slot.Session.EntryTime, h.facility.Fees()))
}

func (h *Handler) LeaveSlot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req LeaveSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.SlotID <= 0 {
		WriteError(ctx, w, http.StatusBadRequest, "Slot id must be greater than 0")
		return
	}

	record, err := h.facility.Release(ctx, req.SlotID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	WriteSuccess(ctx, w, "Slot vacated successfully", toHistoryResponse(record))
}

func (h *Handler) FindByPlate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	plate := chi.URLParam(r, "plate")
	if plate == "" {
		WriteError(ctx, w, http.StatusBadRequest, "Plate is required")
		return
	}

	slot, err := h.facility.FindByPlate(ctx, plate)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	WriteSuccess(ctx, w, "Vehicle found", toSlotResponse(slot, h.facility.Now(), h.facility.Fees()))
}

// parseHistoryQuery reads limit, category, plate, from and to. Dates are
// RFC 3339 timestamps or YYYY-MM-DD days in the facility's zone.
func (h *Handler) parseHistoryQuery(r *http.Request) (facility.HistoryQuery, error) {
	var q facility.HistoryQuery
	values := r.URL.Query()

	if v := values.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return q, fmt.Errorf("%w: limit must be a non-negative number", parking.ErrInvalidRange)
		}
		q.Limit = limit
	}

	if v := values.Get("category"); v != "" {
		c, err := parking.ParseCategory(v)
		if err != nil {
			return q, err
		}
		q.Category = c
	}

	q.Plate = values.Get("plate")

	loc := h.facility.Now().Location()
	var err error
	if q.From, err = parseTime(values.Get("from"), loc); err != nil {
		return q, err
	}
	if q.To, err = parseTime(values.Get("to"), loc); err != nil {
		return q, err
	}
	if !q.From.IsZero() && !q.To.IsZero() && !q.From.Before(q.To) {
		return q, fmt.Errorf("%w: from must be before to", parking.ErrInvalidRange)
	}
	return q, nil
}

func parseTime(v string, loc *time.Location) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, v, loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: invalid time %q", parking.ErrInvalidRange, v)
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q, err := h.parseHistoryQuery(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	records := h.facility.History(ctx, q)
	resp := make([]HistoryRecordResponse, len(records))
	for i, rec := range records {
		resp[i] = toHistoryResponse(rec)
	}

	WriteSuccess(ctx, w, "History retrieved successfully", resp)
}

func (h *Handler) ExportHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q, err := h.parseHistoryQuery(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="parking-history.csv"`)
	w.WriteHeader(http.StatusOK)
	if err := export.WriteCSV(w, h.facility.History(ctx, q)); err != nil {
		logging.Error(ctx, "failed to write csv export", "error", err)
	}
}

func writeInvoice(w http.ResponseWriter, inv export.Invoice) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = inv.WriteTo(w)
}

func (h *Handler) GetRecordInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Index must be a number")
		return
	}

	record, err := h.facility.Record(ctx, index)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeInvoice(w, export.NewInvoice(record))
}

func (h *Handler) GetSlotInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Slot id must be a number")
		return
	}

	q, err := h.facility.Quote(ctx, id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeInvoice(w, export.QuoteInvoice(q.Session, q.At, q.Fee))
}

func (h *Handler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	days := defaultAnalyticsDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			WriteError(ctx, w, http.StatusBadRequest, "Days must be a number")
			return
		}
		days = n
	}

	summary, err := h.facility.Analytics(ctx, days)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	WriteSuccess(ctx, w, "Analytics retrieved successfully", toAnalyticsResponse(summary))
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.facility.Reset(ctx); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	WriteSuccess(ctx, w, "Facility reset successfully", nil)
}
