package orchestrator

import (
	"context"
	"fmt"

	"posada/internal/events"
	"posada/internal/metrics"
	"posada/internal/models"

	"github.com/rs/zerolog"
)

// CancelStore is the slice of the persistence gateway the canceller needs.
// The cancel-with-refund operation is atomic on the storage side.
type CancelStore interface {
	CancelReservationWithRefund(ctx context.Context, id int64) (*models.CancellationResult, error)
}

// Canceller turns cancellation requests into structured results. Business
// rejections (unknown id, already cancelled) come back in the result; only a
// storage fault produces an error.
type Canceller struct {
	store     CancelStore
	publisher events.Publisher
	log       zerolog.Logger
}

func NewCanceller(store CancelStore, publisher events.Publisher, logger zerolog.Logger) *Canceller {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Canceller{
		store:     store,
		publisher: publisher,
		log:       logger.With().Str("component", "cancel").Logger(),
	}
}

// Cancel performs the logical cancellation of a reservation and reports the
// refundable amount.
func (c *Canceller) Cancel(ctx context.Context, reservationID int64) (*models.CancellationResult, error) {
	if reservationID <= 0 {
		metrics.IncCancellation("rejected")
		return &models.CancellationResult{
			Success: false,
			Message: "a positive idReserva is required",
		}, nil
	}

	result, err := c.store.CancelReservationWithRefund(ctx, reservationID)
	if err != nil {
		metrics.IncCancellation("fault")
		return nil, fmt.Errorf("failed to cancel reservation %d: %w", reservationID, err)
	}

	if !result.Success {
		metrics.IncCancellation("rejected")
		c.log.Info().Int64("reservation_id", reservationID).Str("reason", result.Message).
			Msg("cancellation rejected")
		return result, nil
	}

	metrics.IncCancellation("ok")
	c.log.Info().Int64("reservation_id", reservationID).
		Float64("refund", result.RefundAmount).Msg("reservation cancelled")

	if err := c.publisher.Publish(ctx, events.EventReservationCancelled,
		fmt.Sprintf("%d", reservationID),
		events.ReservationEventPayload{
			ReservationID: reservationID,
			Status:        models.StatusCancelled,
			RefundAmount:  result.RefundAmount,
			Message:       result.Message,
		}); err != nil {
		c.log.Warn().Err(err).Msg("failed to publish reservation_cancelled event")
	}

	return result, nil
}
