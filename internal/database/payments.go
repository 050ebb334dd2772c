package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"posada/internal/models"
)

// InsertPayment records a payment for a reservation. Exactly one payment is
// expected per confirmed hold; callers enforce that via FindPaymentByHold.
func (db *DB) InsertPayment(ctx context.Context, p *models.Payment) error {
	query := `INSERT INTO payments (reservation_id, hold_id, payer_reference, method_id, total_amount, created_at)
              VALUES (?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		p.ReservationID, p.HoldID, p.PayerReference, p.MethodID, p.TotalAmount, now)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	p.ID = id
	p.CreatedAt = now

	return nil
}

// FindPaymentByHold returns the payment recorded for a hold, or nil when none
// exists. The hold id doubles as the confirmation idempotency key.
func (db *DB) FindPaymentByHold(ctx context.Context, holdID string) (*models.Payment, error) {
	query := `SELECT id, reservation_id, hold_id, payer_reference, method_id, total_amount, created_at
              FROM payments WHERE hold_id = ? LIMIT 1`

	p := &models.Payment{}
	var holdRef, payerRef sql.NullString
	err := db.QueryRowContext(ctx, query, holdID).Scan(
		&p.ID, &p.ReservationID, &holdRef, &payerRef, &p.MethodID, &p.TotalAmount, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find payment by hold: %w", err)
	}

	p.HoldID = holdRef.String
	p.PayerReference = payerRef.String
	return p, nil
}

func (db *DB) ListPaymentsForReservation(ctx context.Context, reservationID int64) ([]*models.Payment, error) {
	query := `SELECT id, reservation_id, hold_id, payer_reference, method_id, total_amount, created_at
              FROM payments WHERE reservation_id = ? ORDER BY id`
	rows, err := db.QueryContext(ctx, query, reservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		p := &models.Payment{}
		var holdRef, payerRef sql.NullString
		err := rows.Scan(&p.ID, &p.ReservationID, &holdRef, &payerRef, &p.MethodID, &p.TotalAmount, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		p.HoldID = holdRef.String
		p.PayerReference = payerRef.String
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
