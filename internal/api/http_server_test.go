package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"posada/internal/authority"
	"posada/internal/availability"
	"posada/internal/clock"
	"posada/internal/config"
	"posada/internal/database"
	"posada/internal/events"
	"posada/internal/holds"
	"posada/internal/models"
	"posada/internal/orchestrator"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBooker struct {
	resp *authority.BookResponse
	err  error
}

func (s *stubBooker) Book(context.Context, *authority.BookRequest) (*authority.BookResponse, error) {
	return s.resp, s.err
}

type testEnv struct {
	server *httptest.Server
	db     *database.DB
	holds  *holds.Manager
	clock  *clock.Fixed
	booker *stubBooker
}

func newTestEnv(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()
	logger := zerolog.New(os.Stdout)

	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clk := clock.NewFixed(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	publisher := events.NewBusPublisher(events.NewEventBus())
	holdManager := holds.NewManager(holds.NewMemoryStore(), clk, publisher, logger)

	booker := &stubBooker{}
	confirmer := orchestrator.NewConfirmer(holdManager, booker, db, publisher, cfg.Payments, logger)
	canceller := orchestrator.NewCanceller(db, publisher, logger)
	aggregator := availability.NewAggregator(db, logger)

	srv := NewHTTPServer(cfg, db, holdManager, aggregator, confirmer, canceller, logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{server: ts, db: db, holds: holdManager, clock: clk, booker: booker}
}

func defaultConfig() config.Config {
	return config.Config{
		Holds:    config.HoldsConfig{DefaultTTLSeconds: 900},
		Payments: config.PaymentsConfig{DefaultMethodID: 2, DestinationAccount: "ACC-001"},
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestHoldLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t, defaultConfig())

	resp, body := env.do(t, http.MethodPost, "/api/v1/holds",
		map[string]any{"roomId": "R1", "durationSeconds": 600})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	holdID := body["id"].(string)
	assert.Equal(t, "R1", body["roomId"])
	assert.Equal(t, false, body["expired"])

	resp, body = env.do(t, http.MethodGet, "/api/v1/holds/"+holdID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, holdID, body["id"])

	resp, body = env.do(t, http.MethodGet, "/api/v1/holds/room/R1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["holds"], 1)

	resp, body = env.do(t, http.MethodDelete, "/api/v1/holds/"+holdID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["released"])

	// Releasing again is still 200, just a no-op.
	resp, body = env.do(t, http.MethodDelete, "/api/v1/holds/"+holdID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["released"])
}

func TestCreateHoldDefaultsDuration(t *testing.T) {
	env := newTestEnv(t, defaultConfig())

	resp, body := env.do(t, http.MethodPost, "/api/v1/holds", map[string]any{"roomId": "R1"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, float64(900), body["durationSeconds"])
}

func TestCreateHoldValidation(t *testing.T) {
	env := newTestEnv(t, defaultConfig())

	resp, _ := env.do(t, http.MethodPost, "/api/v1/holds", map[string]any{"roomId": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/holds",
		map[string]any{"roomId": "R1", "durationSeconds": -1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReservationCRUDOverHTTP(t *testing.T) {
	env := newTestEnv(t, defaultConfig())

	resp, body := env.do(t, http.MethodPost, "/api/v1/reservations", map[string]any{
		"userId": 7, "totalCost": 350.5, "startDate": "2024-06-01", "endDate": "2024-06-03",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "ACTIVA", body["overall_status"])
	id := int64(body["id"].(float64))

	resp, _ = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/reservations/%d", id), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/api/v1/reservations", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["reservations"], 1)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/reservations/999", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/reservations", map[string]any{
		"startDate": "2024-06-05", "endDate": "2024-06-01",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReservationTerminalStateIsSticky(t *testing.T) {
	env := newTestEnv(t, defaultConfig())

	_, body := env.do(t, http.MethodPost, "/api/v1/reservations", map[string]any{
		"startDate": "2024-06-01", "endDate": "2024-06-02",
	})
	id := int64(body["id"].(float64))
	path := fmt.Sprintf("/api/v1/reservations/%d", id)

	resp, body := env.do(t, http.MethodPatch, path, map[string]any{"overallStatus": "CANCELADA"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["active"])

	// Once cancelled, the reservation cannot be reactivated.
	resp, _ = env.do(t, http.MethodPatch, path, map[string]any{"overallStatus": "ACTIVA"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestDeleteReservationIsLogicalAndIdempotent(t *testing.T) {
	env := newTestEnv(t, defaultConfig())

	_, body := env.do(t, http.MethodPost, "/api/v1/reservations", map[string]any{
		"startDate": "2024-06-01", "endDate": "2024-06-02",
	})
	id := int64(body["id"].(float64))
	path := fmt.Sprintf("/api/v1/reservations/%d", id)

	resp, body := env.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	// The row survives as a cancelled record.
	resp, body = env.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "CANCELADA", body["overall_status"])

	resp, body = env.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["success"])
}

func TestOccupiedDatesOverHTTP(t *testing.T) {
	env := newTestEnv(t, defaultConfig())
	ctx := context.Background()

	active := &models.Reservation{
		StartDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, env.db.CreateReservation(ctx, active))
	require.NoError(t, env.db.CreateRoomAssignment(ctx, &models.RoomAssignment{
		RoomID: "R1", ReservationID: active.ID, Active: true,
	}))

	cancelled := &models.Reservation{
		OverallStatus: "Cancelada por admin",
		StartDate:     time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, env.db.CreateReservation(ctx, cancelled))
	require.NoError(t, env.db.CreateRoomAssignment(ctx, &models.RoomAssignment{
		RoomID: "R1", ReservationID: cancelled.ID, Active: true,
	}))

	resp, body := env.do(t, http.MethodGet, "/api/v1/rooms/R1/occupied-dates", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "R1", body["roomId"])
	assert.Equal(t, []any{"2024-06-01", "2024-06-02", "2024-06-03"}, body["occupiedDates"])
}

func TestConfirmOverHTTP(t *testing.T) {
	env := newTestEnv(t, defaultConfig())

	_, body := env.do(t, http.MethodPost, "/api/v1/holds",
		map[string]any{"roomId": "R1", "durationSeconds": 900})
	holdID := body["id"].(string)

	env.booker.resp = &authority.BookResponse{
		ReservationID: 42,
		RawBody:       []byte(`{"idReserva":42,"detalle":"ok"}`),
	}

	resp, body := env.do(t, http.MethodPost, "/api/v1/integration/reservations/confirm",
		map[string]any{"holdId": holdID, "guestName": "Ana", "totalAmount": 150.5})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(42), body["idReserva"])
	assert.Equal(t, true, body["paymentRecorded"])

	payment, err := env.db.FindPaymentByHold(context.Background(), holdID)
	require.NoError(t, err)
	require.NotNil(t, payment)
	assert.Equal(t, int64(42), payment.ReservationID)

	// A replay reuses the recorded reservation instead of booking again.
	resp, body = env.do(t, http.MethodPost, "/api/v1/integration/reservations/confirm",
		map[string]any{"holdId": holdID})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["alreadyConfirmed"])
}

func TestConfirmHoldInvalidOverHTTP(t *testing.T) {
	env := newTestEnv(t, defaultConfig())

	resp, _ := env.do(t, http.MethodPost, "/api/v1/integration/reservations/confirm",
		map[string]any{"holdId": "missing"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	_, body := env.do(t, http.MethodPost, "/api/v1/holds",
		map[string]any{"roomId": "R1", "durationSeconds": 60})
	holdID := body["id"].(string)
	env.clock.Advance(2 * time.Minute)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/integration/reservations/confirm",
		map[string]any{"holdId": holdID})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestConfirmMirrorsUpstreamFailure(t *testing.T) {
	env := newTestEnv(t, defaultConfig())

	_, body := env.do(t, http.MethodPost, "/api/v1/holds",
		map[string]any{"roomId": "R1", "durationSeconds": 900})
	holdID := body["id"].(string)

	env.booker.err = &authority.StatusError{
		Status: http.StatusConflict,
		Body:   []byte(`{"error":"room no longer available"}`),
	}

	resp, body := env.do(t, http.MethodPost, "/api/v1/integration/reservations/confirm",
		map[string]any{"holdId": holdID})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "room no longer available", body["error"])
}

func TestConfirmUnparseableUpstream(t *testing.T) {
	env := newTestEnv(t, defaultConfig())

	_, body := env.do(t, http.MethodPost, "/api/v1/holds",
		map[string]any{"roomId": "R1", "durationSeconds": 900})
	holdID := body["id"].(string)

	env.booker.err = &authority.UnparseableError{
		Status: http.StatusCreated,
		Body:   []byte(`{"estado":"creada"}`),
	}

	// The authority's status and body come back verbatim even though no
	// reservation id could be read from them.
	resp, body := env.do(t, http.MethodPost, "/api/v1/integration/reservations/confirm",
		map[string]any{"holdId": holdID})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "creada", body["estado"])
}

func TestIntegrationCancelAlways200(t *testing.T) {
	env := newTestEnv(t, defaultConfig())

	resp, body := env.do(t, http.MethodDelete, "/api/v1/integration/reservations/cancel", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["success"])

	resp, body = env.do(t, http.MethodDelete, "/api/v1/integration/reservations/cancel?idReserva=abc", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["success"])

	_, created := env.do(t, http.MethodPost, "/api/v1/reservations", map[string]any{
		"startDate": "2024-06-01", "endDate": "2024-06-02",
	})
	id := int64(created["id"].(float64))

	resp, body = env.do(t, http.MethodDelete,
		fmt.Sprintf("/api/v1/integration/reservations/cancel?idReserva=%d", id), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "reservation cancelled", body["message"])

	resp, body = env.do(t, http.MethodDelete,
		"/api/v1/integration/reservations/cancel?idReserva=9999", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "reservation not found", body["message"])
}

func TestAssignmentsOverHTTP(t *testing.T) {
	env := newTestEnv(t, defaultConfig())

	_, created := env.do(t, http.MethodPost, "/api/v1/reservations", map[string]any{
		"startDate": "2024-06-01", "endDate": "2024-06-02",
	})
	reservationID := int64(created["id"].(float64))

	resp, body := env.do(t, http.MethodPost, "/api/v1/assignments", map[string]any{
		"room_id": "R1", "reservation_id": reservationID, "capacity": 2, "active": true,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assignmentID := int64(body["id"].(float64))

	resp, body = env.do(t, http.MethodGet,
		fmt.Sprintf("/api/v1/assignments/reservation/%d", reservationID), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["assignments"], 1)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/assignments", map[string]any{
		"room_id": "R1", "reservation_id": 9999,
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/assignments/%d", assignmentID), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/assignments/%d", assignmentID), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, defaultConfig())

	resp, body := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}
