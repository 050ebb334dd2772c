package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"posada/internal/authority"
	"posada/internal/database"
	"posada/internal/holds"
	"posada/internal/models"
	"posada/internal/orchestrator"
)

func (s *HTTPServer) handleHolds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		RoomID          string `json:"roomId"`
		DurationSeconds int64  `json:"durationSeconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.DurationSeconds == 0 {
		body.DurationSeconds = s.cfg.Holds.DefaultTTLSeconds
	}

	hold, err := s.holds.CreateHold(r.Context(), body.RoomID, body.DurationSeconds)
	if err != nil {
		if errors.Is(err, holds.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error().Err(err).Msg("failed to create hold")
		writeError(w, http.StatusInternalServerError, "failed to create hold")
		return
	}

	writeJSON(w, http.StatusCreated, holdJSON(hold, false))
}

func (s *HTTPServer) handleHoldSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/holds/")

	if roomID, ok := strings.CutPrefix(rest, "room/"); ok {
		s.handleHoldsForRoom(w, r, strings.TrimSpace(roomID))
		return
	}

	id := strings.TrimSpace(rest)
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		hold, err := s.holds.GetHold(r.Context(), id)
		if err != nil {
			if errors.Is(err, holds.ErrNotFound) {
				writeError(w, http.StatusNotFound, "hold not found")
				return
			}
			s.log.Error().Err(err).Msg("failed to get hold")
			writeError(w, http.StatusInternalServerError, "failed to get hold")
			return
		}
		writeJSON(w, http.StatusOK, holdJSON(hold, s.holds.IsExpired(hold)))

	case http.MethodDelete:
		released, err := s.holds.ReleaseHold(r.Context(), id)
		if err != nil {
			s.log.Error().Err(err).Msg("failed to release hold")
			writeError(w, http.StatusInternalServerError, "failed to release hold")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"released": released})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleHoldsForRoom(w http.ResponseWriter, r *http.Request, roomID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	live, err := s.holds.ListHoldsForRoom(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, holds.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error().Err(err).Msg("failed to list holds")
		writeError(w, http.StatusInternalServerError, "failed to list holds")
		return
	}

	items := make([]map[string]any, 0, len(live))
	for _, hold := range live {
		items = append(items, holdJSON(hold, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"holds": items})
}

func (s *HTTPServer) handleReservations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		reservations, err := s.db.ListReservations(r.Context())
		if err != nil {
			s.log.Error().Err(err).Msg("failed to list reservations")
			writeError(w, http.StatusInternalServerError, "failed to list reservations")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reservations": reservations})

	case http.MethodPost:
		var body struct {
			UserID         int64   `json:"userId"`
			ExternalUserID int64   `json:"externalUserId"`
			TotalCost      float64 `json:"totalCost"`
			StartDate      string  `json:"startDate"`
			EndDate        string  `json:"endDate"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		start, err := time.Parse(models.DateLayout, body.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid startDate; expected YYYY-MM-DD")
			return
		}
		end, err := time.Parse(models.DateLayout, body.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid endDate; expected YYYY-MM-DD")
			return
		}

		reservation := &models.Reservation{
			UserID:         body.UserID,
			ExternalUserID: body.ExternalUserID,
			TotalCost:      body.TotalCost,
			StartDate:      start,
			EndDate:        end,
		}
		if err := s.db.CreateReservation(r.Context(), reservation); err != nil {
			if errors.Is(err, database.ErrInvalidDateRange) {
				writeError(w, http.StatusBadRequest, "endDate must not be before startDate")
				return
			}
			s.log.Error().Err(err).Msg("failed to create reservation")
			writeError(w, http.StatusInternalServerError, "failed to create reservation")
			return
		}
		writeJSON(w, http.StatusCreated, reservation)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleReservationByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/reservations/")
	id, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		reservation, err := s.db.GetReservation(r.Context(), id)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				writeError(w, http.StatusNotFound, "reservation not found")
				return
			}
			s.log.Error().Err(err).Msg("failed to get reservation")
			writeError(w, http.StatusInternalServerError, "failed to get reservation")
			return
		}
		writeJSON(w, http.StatusOK, reservation)

	case http.MethodPatch:
		s.patchReservation(w, r, id)

	case http.MethodDelete:
		result, err := s.canceller.Cancel(r.Context(), id)
		if err != nil {
			s.log.Error().Err(err).Int64("reservation_id", id).Msg("cancellation failed")
			writeJSON(w, http.StatusOK, &models.CancellationResult{
				Success: false,
				Message: "failed to cancel reservation",
			})
			return
		}
		writeJSON(w, http.StatusOK, result)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) patchReservation(w http.ResponseWriter, r *http.Request, id int64) {
	var body struct {
		OverallStatus string `json:"overallStatus"`
		Active        *bool  `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.OverallStatus == "" {
		writeError(w, http.StatusBadRequest, "overallStatus is required")
		return
	}

	current, err := s.db.GetReservation(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "reservation not found")
			return
		}
		s.log.Error().Err(err).Msg("failed to get reservation")
		writeError(w, http.StatusInternalServerError, "failed to get reservation")
		return
	}

	// Cancelled and expired reservations never come back.
	if models.NormalizeState(current.OverallStatus).Terminal() &&
		models.NormalizeState(body.OverallStatus) != models.NormalizeState(current.OverallStatus) {
		writeError(w, http.StatusConflict, "reservation is in a terminal state")
		return
	}

	active := models.NormalizeState(body.OverallStatus) == models.StateActive
	if body.Active != nil {
		active = *body.Active
	}

	if err := s.db.UpdateReservationStatus(r.Context(), id, body.OverallStatus, active); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "reservation not found")
			return
		}
		s.log.Error().Err(err).Msg("failed to update reservation")
		writeError(w, http.StatusInternalServerError, "failed to update reservation")
		return
	}

	updated, err := s.db.GetReservation(r.Context(), id)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to reload reservation")
		writeError(w, http.StatusInternalServerError, "failed to reload reservation")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *HTTPServer) handleAssignments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		assignments, err := s.db.ListRoomAssignments(r.Context())
		if err != nil {
			s.log.Error().Err(err).Msg("failed to list assignments")
			writeError(w, http.StatusInternalServerError, "failed to list assignments")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"assignments": assignments})

	case http.MethodPost:
		var assignment models.RoomAssignment
		if err := json.NewDecoder(r.Body).Decode(&assignment); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if assignment.RoomID == "" || assignment.ReservationID <= 0 {
			writeError(w, http.StatusBadRequest, "room_id and reservation_id are required")
			return
		}

		if err := s.db.CreateRoomAssignment(r.Context(), &assignment); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				writeError(w, http.StatusNotFound, "reservation not found")
				return
			}
			s.log.Error().Err(err).Msg("failed to create assignment")
			writeError(w, http.StatusInternalServerError, "failed to create assignment")
			return
		}
		writeJSON(w, http.StatusCreated, &assignment)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleAssignmentSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/assignments/")

	if raw, ok := strings.CutPrefix(rest, "reservation/"); ok {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		reservationID, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil || reservationID <= 0 {
			writeError(w, http.StatusBadRequest, "invalid reservation id")
			return
		}
		assignments, err := s.db.ListRoomAssignmentsForReservation(r.Context(), reservationID)
		if err != nil {
			s.log.Error().Err(err).Msg("failed to list assignments")
			writeError(w, http.StatusInternalServerError, "failed to list assignments")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"assignments": assignments})
		return
	}

	id, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid assignment id")
		return
	}

	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := s.db.DeleteRoomAssignment(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "assignment not found")
			return
		}
		s.log.Error().Err(err).Msg("failed to delete assignment")
		writeError(w, http.StatusInternalServerError, "failed to delete assignment")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (s *HTTPServer) handleConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req orchestrator.ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.confirmer.Confirm(r.Context(), &req)
	if err != nil {
		var statusErr *authority.StatusError
		var unparseable *authority.UnparseableError
		switch {
		case errors.Is(err, holds.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, orchestrator.ErrHoldInvalid):
			writeError(w, http.StatusConflict, err.Error())
		case errors.As(err, &statusErr):
			// Mirror the booking authority's answer verbatim.
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(statusErr.Status)
			_, _ = w.Write(statusErr.Body)
		case errors.As(err, &unparseable):
			// No reservation id could be read, so the raw answer is all the
			// caller gets; mirror it with the authority's own status.
			status := unparseable.Status
			if status == 0 {
				status = http.StatusBadGateway
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write(unparseable.Body)
		default:
			s.log.Error().Err(err).Msg("confirmation failed")
			writeError(w, http.StatusInternalServerError, "failed to confirm reservation")
		}
		return
	}

	resp := map[string]any{
		"idReserva":        result.ReservationID,
		"paymentRecorded":  result.PaymentRecorded,
		"alreadyConfirmed": result.AlreadyConfirmed,
	}
	if len(result.RawBody) > 0 {
		resp["upstream"] = json.RawMessage(result.RawBody)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCancel mirrors the legacy integration gateway: the answer is always
// 200 with a structured result, even for storage faults.
func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	raw := strings.TrimSpace(r.URL.Query().Get("idReserva"))
	if raw == "" {
		writeJSON(w, http.StatusOK, &models.CancellationResult{
			Success: false,
			Message: "idReserva query parameter is required",
		})
		return
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusOK, &models.CancellationResult{
			Success: false,
			Message: "idReserva must be a number",
		})
		return
	}

	result, err := s.canceller.Cancel(r.Context(), id)
	if err != nil {
		s.log.Error().Err(err).Int64("reservation_id", id).Msg("cancellation failed")
		writeJSON(w, http.StatusOK, &models.CancellationResult{
			Success: false,
			Message: "failed to cancel reservation",
		})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/rooms/")
	roomID, ok := strings.CutSuffix(rest, "/occupied-dates")
	roomID = strings.TrimSpace(roomID)
	if !ok || roomID == "" || strings.Contains(roomID, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	dates, err := s.avail.OccupiedDates(r.Context(), roomID)
	if err != nil {
		s.log.Error().Err(err).Str("room_id", roomID).Msg("failed to compute occupied dates")
		writeError(w, http.StatusInternalServerError, "failed to compute occupied dates")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"roomId":        roomID,
		"occupiedDates": dates,
	})
}

func holdJSON(hold *models.Hold, expired bool) map[string]any {
	return map[string]any{
		"id":              hold.ID,
		"roomId":          hold.RoomID,
		"durationSeconds": hold.Duration,
		"startAt":         hold.StartAt,
		"endAt":           hold.EndAt,
		"status":          hold.Status,
		"expired":         expired,
	}
}
