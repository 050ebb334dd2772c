package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"posada/internal/models"
)

const reservationColumns = `id, user_id, external_user_id, total_cost, registered_at,
                 start_date, end_date, overall_status, active, updated_at`

// CreateReservation persists a new reservation with status ACTIVA unless the
// caller provides another status. Identity and timestamps are assigned here.
func (db *DB) CreateReservation(ctx context.Context, r *models.Reservation) error {
	if r.EndDate.Before(r.StartDate) {
		return ErrInvalidDateRange
	}
	if r.OverallStatus == "" {
		r.OverallStatus = models.StatusActive
		r.Active = true
	}

	query := `INSERT INTO reservations (
				user_id, external_user_id, total_cost, registered_at,
				start_date, end_date, overall_status, active, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		nullableID(r.UserID),
		nullableID(r.ExternalUserID),
		r.TotalCost,
		now,
		r.StartDate.Format(models.DateLayout),
		r.EndDate.Format(models.DateLayout),
		r.OverallStatus,
		r.Active,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	r.ID = id
	r.RegisteredAt = now
	r.UpdatedAt = now

	return nil
}

func (db *DB) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	r, err := scanReservation(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return r, nil
}

// UpdateReservationStatus mutates the only fields an administrative update may
// touch: the free-text overall status and the active flag.
func (db *DB) UpdateReservationStatus(ctx context.Context, id int64, overallStatus string, active bool) error {
	query := `UPDATE reservations SET overall_status = ?, active = ?, updated_at = ? WHERE id = ?`
	result, err := db.ExecContext(ctx, query, overallStatus, active, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update reservation status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) ListReservations(ctx context.Context) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations ORDER BY id`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	defer rows.Close()

	var reservations []*models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

// CancelReservationWithRefund applies the cancellation policy in one
// transaction: the reservation must currently be ACTIVA; it is flipped to
// CANCELADA with the active flag cleared, and the refundable amount is the sum
// of its recorded payments. Business rejections come back in the result, not
// as errors.
func (db *DB) CancelReservationWithRefund(ctx context.Context, id int64) (*models.CancellationResult, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var status string
	err = tx.QueryRowContext(ctx, `SELECT overall_status FROM reservations WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.CancellationResult{Success: false, RefundAmount: 0, Message: "reservation not found"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read reservation in tx: %w", err)
	}

	if models.NormalizeState(status) != models.StateActive {
		return &models.CancellationResult{Success: false, RefundAmount: 0, Message: "reservation is not active"}, nil
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE reservations SET overall_status = ?, active = 0, updated_at = ? WHERE id = ?`,
		models.StatusCancelled, time.Now(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel reservation in tx: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return &models.CancellationResult{Success: false, RefundAmount: 0, Message: "no rows processed"}, nil
	}

	var refund float64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total_amount), 0) FROM payments WHERE reservation_id = ?`, id).Scan(&refund)
	if err != nil {
		return nil, fmt.Errorf("failed to sum payments in tx: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit cancellation: %w", err)
	}

	return &models.CancellationResult{Success: true, RefundAmount: refund, Message: "reservation cancelled"}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*models.Reservation, error) {
	var r models.Reservation
	var userID, externalUserID sql.NullInt64
	var startStr, endStr string
	err := row.Scan(
		&r.ID, &userID, &externalUserID, &r.TotalCost, &r.RegisteredAt,
		&startStr, &endStr, &r.OverallStatus, &r.Active, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.UserID = userID.Int64
	r.ExternalUserID = externalUserID.Int64

	r.StartDate, err = time.Parse(models.DateLayout, startStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse start date %s: %w", startStr, err)
	}
	r.EndDate, err = time.Parse(models.DateLayout, endStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse end date %s: %w", endStr, err)
	}
	return &r, nil
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
