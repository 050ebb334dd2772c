package database

import (
	"context"
	"testing"
	"time"

	"posada/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createReservation(t *testing.T, db *DB, start, end time.Time) *models.Reservation {
	t.Helper()
	r := &models.Reservation{StartDate: start, EndDate: end}
	require.NoError(t, db.CreateReservation(context.Background(), r))
	return r
}

func TestCreateRoomAssignment(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	r := createReservation(t, db, date(2024, 6, 1), date(2024, 6, 3))

	a := &models.RoomAssignment{
		RoomID:        "R1",
		ReservationID: r.ID,
		Capacity:      2,
		ComputedCost:  200,
		Taxes:         26,
		Active:        true,
	}
	require.NoError(t, db.CreateRoomAssignment(ctx, a))
	assert.NotZero(t, a.ID)

	listed, err := db.ListRoomAssignmentsForReservation(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "R1", listed[0].RoomID)
	assert.Equal(t, 2, listed[0].Capacity)
}

func TestCreateRoomAssignmentRequiresReservation(t *testing.T) {
	db := setupTestDB(t)

	a := &models.RoomAssignment{RoomID: "R1", ReservationID: 9999}
	err := db.CreateRoomAssignment(context.Background(), a)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateRoomAssignmentUniquePair(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	r := createReservation(t, db, date(2024, 6, 1), date(2024, 6, 2))

	first := &models.RoomAssignment{RoomID: "R1", ReservationID: r.ID, Active: true}
	require.NoError(t, db.CreateRoomAssignment(ctx, first))

	dup := &models.RoomAssignment{RoomID: "R1", ReservationID: r.ID, Active: true}
	assert.Error(t, db.CreateRoomAssignment(ctx, dup))
}

func TestDeleteRoomAssignment(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	r := createReservation(t, db, date(2024, 6, 1), date(2024, 6, 2))
	a := &models.RoomAssignment{RoomID: "R2", ReservationID: r.ID, Active: true}
	require.NoError(t, db.CreateRoomAssignment(ctx, a))

	require.NoError(t, db.DeleteRoomAssignment(ctx, a.ID))
	assert.ErrorIs(t, db.DeleteRoomAssignment(ctx, a.ID), ErrNotFound)
}

func TestDiscountApplications(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	r := createReservation(t, db, date(2024, 6, 1), date(2024, 6, 2))
	a := &models.RoomAssignment{RoomID: "R1", ReservationID: r.ID, Active: true}
	require.NoError(t, db.CreateRoomAssignment(ctx, a))

	d := &models.DiscountApplication{AssignmentID: a.ID, DiscountID: 5, Amount: 15, Active: true}
	require.NoError(t, db.CreateDiscountApplication(ctx, d))
	assert.NotZero(t, d.ID)

	discounts, err := db.ListDiscountsForAssignment(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, discounts, 1)
	assert.Equal(t, int64(5), discounts[0].DiscountID)

	require.NoError(t, db.DeleteDiscountApplication(ctx, 5, a.ID))
	assert.ErrorIs(t, db.DeleteDiscountApplication(ctx, 5, a.ID), ErrNotFound)
}

func TestFindPaymentByHold(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	r := createReservation(t, db, date(2024, 6, 1), date(2024, 6, 2))

	p, err := db.FindPaymentByHold(ctx, "hold-abc")
	require.NoError(t, err)
	assert.Nil(t, p)

	require.NoError(t, db.InsertPayment(ctx, &models.Payment{
		ReservationID: r.ID,
		HoldID:        "hold-abc",
		MethodID:      2,
		TotalAmount:   99.90,
	}))

	p, err = db.FindPaymentByHold(ctx, "hold-abc")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, r.ID, p.ReservationID)
	assert.InDelta(t, 99.90, p.TotalAmount, 0.001)

	payments, err := db.ListPaymentsForReservation(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}
