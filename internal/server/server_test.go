package server

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-facility/internal/facility"
	"parking-facility/internal/parking"
	"parking-facility/internal/persistence"
	"parking-facility/internal/telemetry"
)

var testNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

type testServer struct {
	router http.Handler
	clock  *parking.ManualClock
}

func newTestServer(t *testing.T, capacity int, categories ...parking.Category) *testServer {
	t.Helper()
	if len(categories) == 0 {
		categories = []parking.Category{parking.CategoryCar}
	}
	clock := parking.NewManualClock(testNow)
	opts := parking.Options{
		TotalSlots: capacity,
		Categories: categories,
		Fees:       parking.DefaultFeePolicy(),
		Clock:      clock,
	}
	adapter := persistence.NewAdapter(persistence.NewMemoryKV(), "", time.UTC)

	f, err := facility.Open(context.Background(), opts, adapter, nil, telemetry.NewNoopProvider())
	require.NoError(t, err)

	return &testServer{
		router: NewRouter(NewHandler(f, "parking-test"), "parking-test"),
		clock:  clock,
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) (Response, T) {
	t.Helper()
	var raw struct {
		Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	var data T
	if len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, &data))
	}
	return raw.Response, data
}

func (ts *testServer) park(t *testing.T, plate string, category parking.Category) SlotResponse {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/parking/park", map[string]string{
		"plate":    plate,
		"owner":    "Owner",
		"category": string(category),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	_, slot := decode[SlotResponse](t, rec)
	return slot
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t, 3)

	rec := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "parking-test", body.Service)
}

func TestRequestIDIsPropagated(t *testing.T) {
	ts := newTestServer(t, 3)

	req := httptest.NewRequest(http.MethodGet, "/api/parking/slots", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
	resp, _ := decode[StatusResponse](t, rec)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, "req-123", resp.Meta.RequestID)
}

func TestParkAndLeave(t *testing.T) {
	ts := newTestServer(t, 3)

	slot := ts.park(t, "ka01ab1234", parking.CategoryCar)
	assert.Equal(t, 1, slot.ID)
	require.NotNil(t, slot.Session)
	assert.Equal(t, "KA01AB1234", slot.Session.VehiclePlate)

	ts.clock.Advance(65 * time.Minute)

	rec := ts.do(t, http.MethodGet, "/api/parking/slots/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	_, live := decode[SlotResponse](t, rec)
	assert.Equal(t, "1h 05m", live.Session.Elapsed)
	assert.Equal(t, int64(70), live.Session.CurrentFee)

	rec = ts.do(t, http.MethodPost, "/api/parking/leave", map[string]int{"slot_id": 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp, record := decode[HistoryRecordResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, int64(65*60*1000), record.DurationMs)
	assert.Equal(t, int64(70), record.Fee)
	assert.Equal(t, "1h 05m", record.Duration)
}

func TestStatus(t *testing.T) {
	ts := newTestServer(t, 3, parking.AllCategories...)
	ts.park(t, "A1", parking.CategoryCar)

	rec := ts.do(t, http.MethodGet, "/api/parking/slots", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	_, status := decode[StatusResponse](t, rec)

	assert.Equal(t, 3, status.Capacity)
	assert.Equal(t, 1, status.Occupied)
	assert.Equal(t, 2, status.Available)
	assert.Equal(t, 0, status.FreeByCategory[parking.CategoryCar])
	require.Len(t, status.Slots, 3)
	assert.Equal(t, parking.CategoryBike, status.Slots[0].Category)
}

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t, 1)
	ts.park(t, "A1", parking.CategoryCar)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"full", http.MethodPost, "/api/parking/park", map[string]string{"plate": "A2", "category": "CAR"}, http.StatusConflict},
		{"duplicate plate", http.MethodPost, "/api/parking/park", map[string]string{"plate": "a1", "category": "CAR"}, http.StatusConflict},
		{"unknown category", http.MethodPost, "/api/parking/park", map[string]string{"plate": "A3", "category": "BOAT"}, http.StatusBadRequest},
		{"missing plate", http.MethodPost, "/api/parking/park", map[string]string{"category": "CAR"}, http.StatusBadRequest},
		{"bad body", http.MethodPost, "/api/parking/leave", "nope", http.StatusBadRequest},
		{"unknown slot", http.MethodPost, "/api/parking/leave", map[string]int{"slot_id": 9}, http.StatusNotFound},
		{"slot id zero", http.MethodPost, "/api/parking/leave", map[string]int{"slot_id": 0}, http.StatusBadRequest},
		{"unknown slot get", http.MethodGet, "/api/parking/slots/9", nil, http.StatusNotFound},
		{"non numeric slot", http.MethodGet, "/api/parking/slots/x", nil, http.StatusBadRequest},
		{"plate not found", http.MethodGet, "/api/parking/find/ZZ", nil, http.StatusNotFound},
		{"bad days", http.MethodGet, "/api/parking/analytics?days=0", nil, http.StatusBadRequest},
		{"days above limit", http.MethodGet, "/api/parking/analytics?days=3661", nil, http.StatusBadRequest},
		{"huge days", http.MethodGet, "/api/parking/analytics?days=1000000000", nil, http.StatusBadRequest},
		{"bad history category", http.MethodGet, "/api/parking/history?category=BOAT", nil, http.StatusBadRequest},
		{"bad history range", http.MethodGet, "/api/parking/history?from=2026-03-14&to=2026-03-13", nil, http.StatusBadRequest},
		{"missing record", http.MethodGet, "/api/parking/history/0/invoice", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			resp, _ := decode[json.RawMessage](t, rec)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestLeaveEmptySlotConflict(t *testing.T) {
	ts := newTestServer(t, 2)

	rec := ts.do(t, http.MethodPost, "/api/parking/leave", map[string]int{"slot_id": 2})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestFindByPlate(t *testing.T) {
	ts := newTestServer(t, 3)
	ts.park(t, "A1", parking.CategoryCar)
	ts.park(t, "B2", parking.CategoryCar)

	rec := ts.do(t, http.MethodGet, "/api/parking/find/b2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	_, slot := decode[SlotResponse](t, rec)
	assert.Equal(t, 2, slot.ID)
}

func parkFor(t *testing.T, ts *testServer, plate string, category parking.Category, d time.Duration) {
	t.Helper()
	slot := ts.park(t, plate, category)
	ts.clock.Advance(d)
	rec := ts.do(t, http.MethodPost, "/api/parking/leave", map[string]int{"slot_id": slot.ID})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHistoryAndExport(t *testing.T) {
	ts := newTestServer(t, 3, parking.AllCategories...)
	parkFor(t, ts, "C1", parking.CategoryCar, time.Hour)
	parkFor(t, ts, "B1", parking.CategoryBike, 10*time.Minute)
	parkFor(t, ts, "C2", parking.CategoryCar, 2*time.Hour)

	rec := ts.do(t, http.MethodGet, "/api/parking/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	_, all := decode[[]HistoryRecordResponse](t, rec)
	require.Len(t, all, 3)
	assert.Equal(t, "C2", all[0].VehiclePlate)

	rec = ts.do(t, http.MethodGet, "/api/parking/history?category=car&limit=1", nil)
	_, cars := decode[[]HistoryRecordResponse](t, rec)
	require.Len(t, cars, 1)
	assert.Equal(t, "C2", cars[0].VehiclePlate)

	rec = ts.do(t, http.MethodGet, "/api/parking/history/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Vehicle Number", rows[0][0])
	assert.Equal(t, "C2", rows[1][0])

	rec = ts.do(t, http.MethodGet, "/api/parking/history/2/invoice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Vehicle Number: C1")
	assert.Contains(t, rec.Body.String(), "Fee:            70")
}

func TestSlotInvoice(t *testing.T) {
	ts := newTestServer(t, 2)
	ts.park(t, "A1", parking.CategoryCar)
	ts.clock.Advance(20 * time.Minute)

	rec := ts.do(t, http.MethodGet, "/api/parking/slots/1/invoice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "PROVISIONAL")
	assert.Contains(t, rec.Body.String(), "Duration:       20m")

	rec = ts.do(t, http.MethodGet, "/api/parking/slots/2/invoice", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAnalytics(t *testing.T) {
	ts := newTestServer(t, 3)
	parkFor(t, ts, "C1", parking.CategoryCar, time.Hour)
	ts.park(t, "C2", parking.CategoryCar)

	rec := ts.do(t, http.MethodGet, "/api/parking/analytics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	_, a := decode[AnalyticsResponse](t, rec)

	assert.Equal(t, int64(70), a.TotalRevenue)
	assert.Equal(t, 2, a.Counts[parking.CategoryCar])
	assert.Equal(t, 1, a.VehiclesToday)
	assert.Equal(t, "1h 00m", a.AverageDuration)
	require.Len(t, a.RevenueByDay, 7)
	assert.Equal(t, "2026-03-14", a.RevenueByDay[6].Day)
	assert.Equal(t, int64(70), a.RevenueByDay[6].Revenue)
	assert.Equal(t, 1, a.Occupied)

	rec = ts.do(t, http.MethodGet, "/api/parking/analytics?days=3", nil)
	_, a = decode[AnalyticsResponse](t, rec)
	assert.Len(t, a.RevenueByDay, 3)
}

func TestReset(t *testing.T) {
	ts := newTestServer(t, 2)
	parkFor(t, ts, "C1", parking.CategoryCar, time.Hour)
	ts.park(t, "C2", parking.CategoryCar)

	rec := ts.do(t, http.MethodPost, "/api/parking/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/parking/slots", nil)
	_, status := decode[StatusResponse](t, rec)
	assert.Equal(t, 0, status.Occupied)

	rec = ts.do(t, http.MethodGet, "/api/parking/history", nil)
	_, history := decode[[]HistoryRecordResponse](t, rec)
	assert.Empty(t, history)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, 2)
	rec := ts.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, 2)
	rec := ts.do(t, http.MethodOptions, "/api/parking/park", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp, _ := decode[json.RawMessage](t, rec)
	assert.Equal(t, "Internal server error", resp.Error)
}
