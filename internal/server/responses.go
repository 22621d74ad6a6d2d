package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"parking-facility/internal/export"
	"parking-facility/internal/parking"
)

type Meta struct {
	TraceID   string `json:"trace_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Meta    *Meta  `json:"meta,omitempty"`
}

type ParkVehicleRequest struct {
	Plate    string           `json:"plate"`
	Owner    string           `json:"owner"`
	Category parking.Category `json:"category"`
}

type LeaveSlotRequest struct {
	SlotID int `json:"slot_id"`
}

type SessionResponse struct {
	VehiclePlate string           `json:"vehicle_plate"`
	OwnerName    string           `json:"owner_name,omitempty"`
	Category     parking.Category `json:"category"`
	EntryTime    time.Time        `json:"entry_time"`
	ElapsedMs    int64            `json:"elapsed_ms"`
	Elapsed      string           `json:"elapsed"`
	CurrentFee   int64            `json:"current_fee"`
}

type SlotResponse struct {
	ID       int              `json:"id"`
	Category parking.Category `json:"category"`
	Occupied bool             `json:"occupied"`
	Session  *SessionResponse `json:"session,omitempty"`
}

type StatusResponse struct {
	Capacity       int                      `json:"capacity"`
	Occupied       int                      `json:"occupied"`
	Available      int                      `json:"available"`
	FreeByCategory map[parking.Category]int `json:"free_by_category"`
	Slots          []SlotResponse           `json:"slots"`
}

type HistoryRecordResponse struct {
	VehiclePlate string           `json:"vehicle_plate"`
	OwnerName    string           `json:"owner_name,omitempty"`
	Category     parking.Category `json:"category"`
	SlotID       int              `json:"slot_id"`
	EntryTime    time.Time        `json:"entry_time"`
	ExitTime     time.Time        `json:"exit_time"`
	DurationMs   int64            `json:"duration_ms"`
	Duration     string           `json:"duration"`
	Fee          int64            `json:"fee"`
}

type DailyRevenueResponse struct {
	Day      string `json:"day"`
	Revenue  int64  `json:"revenue"`
	Vehicles int    `json:"vehicles"`
}

type AnalyticsResponse struct {
	GeneratedAt       time.Time                `json:"generated_at"`
	Counts            map[parking.Category]int `json:"counts_by_category"`
	TotalRevenue      int64                    `json:"total_revenue"`
	AverageDurationMs int64                    `json:"average_duration_ms"`
	AverageDuration   string                   `json:"average_duration"`
	VehiclesToday     int                      `json:"vehicles_today"`
	RevenueByDay      []DailyRevenueResponse   `json:"revenue_by_day"`
	Capacity          int                      `json:"capacity"`
	Occupied          int                      `json:"occupied"`
}

func toSlotResponse(s parking.Slot, now time.Time, fees parking.FeePolicy) SlotResponse {
	resp := SlotResponse{
		ID:       s.ID,
		Category: s.Category,
		Occupied: s.Occupied,
	}
	if s.Session != nil {
		elapsed := s.Session.Elapsed(now)
		fee, _ := fees.ComputeFee(elapsed.Milliseconds())
		resp.Session = &SessionResponse{
			VehiclePlate: s.Session.VehiclePlate,
			OwnerName:    s.Session.OwnerName,
			Category:     s.Session.Category,
			EntryTime:    s.Session.EntryTime,
			ElapsedMs:    elapsed.Milliseconds(),
			Elapsed:      export.FormatDuration(elapsed),
			CurrentFee:   fee,
		}
	}
	return resp
}

func toHistoryResponse(r parking.HistoryRecord) HistoryRecordResponse {
	return HistoryRecordResponse{
		VehiclePlate: r.VehiclePlate,
		OwnerName:    r.OwnerName,
		Category:     r.Category,
		SlotID:       r.SlotID,
		EntryTime:    r.EntryTime,
		ExitTime:     r.ExitTime,
		DurationMs:   r.DurationMs,
		Duration:     export.FormatDuration(r.Duration()),
		Fee:          r.Fee,
	}
}

func toAnalyticsResponse(s parking.Summary) AnalyticsResponse {
	days := make([]DailyRevenueResponse, len(s.RevenueByDay))
	for i, d := range s.RevenueByDay {
		days[i] = DailyRevenueResponse{
			Day:      d.Day.Format(time.DateOnly),
			Revenue:  d.Revenue,
			Vehicles: d.Vehicles,
		}
	}
	return AnalyticsResponse{
		GeneratedAt:       s.GeneratedAt,
		Counts:            s.Counts,
		TotalRevenue:      s.TotalRevenue,
		AverageDurationMs: s.AverageDurationMs,
		AverageDuration:   export.FormatDuration(time.Duration(s.AverageDurationMs) * time.Millisecond),
		VehiclesToday:     s.VehiclesToday,
		RevenueByDay:      days,
		Capacity:          s.Occupancy.Capacity,
		Occupied:          s.Occupancy.Occupied,
	}
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func extractMeta(ctx context.Context) *Meta {
	meta := &Meta{}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		meta.TraceID = span.SpanContext().TraceID().String()
	}

	if reqID, ok := ctx.Value(RequestIDKey).(string); ok {
		meta.RequestID = reqID
	}

	return meta
}

func WriteSuccess(ctx context.Context, w http.ResponseWriter, message string, data any) {
	WriteJSON(w, http.StatusOK, Response{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    extractMeta(ctx),
	})
}

func WriteError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Response{
		Success: false,
		Error:   message,
		Meta:    extractMeta(ctx),
	})
}
