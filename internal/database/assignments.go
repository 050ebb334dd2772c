package database

import (
	"context"
	"fmt"
	"time"

	"posada/internal/models"
)

const assignmentColumns = `id, room_id, reservation_id, capacity, computed_cost,
                 discount, taxes, active, updated_at`

// CreateRoomAssignment links a room to an existing reservation. The
// (room, reservation) pair is unique; the reservation must exist.
func (db *DB) CreateRoomAssignment(ctx context.Context, a *models.RoomAssignment) error {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM reservations WHERE id = ?)`, a.ReservationID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check reservation: %w", err)
	}
	if !exists {
		return ErrNotFound
	}

	query := `INSERT INTO room_assignments (
				room_id, reservation_id, capacity, computed_cost, discount, taxes, active, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		a.RoomID, a.ReservationID, a.Capacity, a.ComputedCost, a.Discount, a.Taxes, a.Active, now)
	if err != nil {
		return fmt.Errorf("failed to create room assignment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	a.ID = id
	a.UpdatedAt = now

	return nil
}

func (db *DB) DeleteRoomAssignment(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM room_assignments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete room assignment: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) ListRoomAssignments(ctx context.Context) ([]*models.RoomAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM room_assignments ORDER BY id`
	return db.queryAssignments(ctx, query)
}

func (db *DB) ListRoomAssignmentsForReservation(ctx context.Context, reservationID int64) ([]*models.RoomAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM room_assignments WHERE reservation_id = ? ORDER BY id`
	return db.queryAssignments(ctx, query, reservationID)
}

func (db *DB) queryAssignments(ctx context.Context, query string, args ...any) ([]*models.RoomAssignment, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list room assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*models.RoomAssignment
	for rows.Next() {
		a := &models.RoomAssignment{}
		err := rows.Scan(
			&a.ID, &a.RoomID, &a.ReservationID, &a.Capacity, &a.ComputedCost,
			&a.Discount, &a.Taxes, &a.Active, &a.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// CreateDiscountApplication attaches a discount amount to a room assignment.
func (db *DB) CreateDiscountApplication(ctx context.Context, d *models.DiscountApplication) error {
	query := `INSERT INTO discount_applications (assignment_id, discount_id, amount, active)
              VALUES (?, ?, ?, ?)`
	result, err := db.ExecContext(ctx, query, d.AssignmentID, d.DiscountID, d.Amount, d.Active)
	if err != nil {
		return fmt.Errorf("failed to create discount application: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	d.ID = id
	return nil
}

func (db *DB) DeleteDiscountApplication(ctx context.Context, discountID, assignmentID int64) error {
	result, err := db.ExecContext(ctx,
		`DELETE FROM discount_applications WHERE discount_id = ? AND assignment_id = ?`,
		discountID, assignmentID)
	if err != nil {
		return fmt.Errorf("failed to delete discount application: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) ListDiscountsForAssignment(ctx context.Context, assignmentID int64) ([]*models.DiscountApplication, error) {
	query := `SELECT id, assignment_id, discount_id, amount, active
              FROM discount_applications WHERE assignment_id = ? ORDER BY id`
	rows, err := db.QueryContext(ctx, query, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list discount applications: %w", err)
	}
	defer rows.Close()

	var discounts []*models.DiscountApplication
	for rows.Next() {
		d := &models.DiscountApplication{}
		if err := rows.Scan(&d.ID, &d.AssignmentID, &d.DiscountID, &d.Amount, &d.Active); err != nil {
			return nil, fmt.Errorf("failed to scan discount application: %w", err)
		}
		discounts = append(discounts, d)
	}
	return discounts, rows.Err()
}
