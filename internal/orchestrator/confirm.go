package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"posada/internal/authority"
	"posada/internal/config"
	"posada/internal/events"
	"posada/internal/holds"
	"posada/internal/metrics"
	"posada/internal/models"
	"posada/internal/worker"

	"github.com/rs/zerolog"
)

// ErrHoldInvalid is returned when the hold backing a confirmation is missing
// or already past its window.
var ErrHoldInvalid = errors.New("hold is invalid or expired")

// Booker is the slice of the authority client the confirmer needs.
type Booker interface {
	Book(ctx context.Context, req *authority.BookRequest) (*authority.BookResponse, error)
}

// PaymentStore is the slice of the persistence gateway the confirmer needs.
type PaymentStore interface {
	InsertPayment(ctx context.Context, p *models.Payment) error
	FindPaymentByHold(ctx context.Context, holdID string) (*models.Payment, error)
}

// ConfirmRequest carries everything needed to turn a hold into a confirmed
// reservation with the booking authority.
type ConfirmRequest struct {
	HoldID      string  `json:"holdId"`
	GuestName   string  `json:"guestName"`
	GuestEmail  string  `json:"guestEmail"`
	GuestCount  int     `json:"guestCount"`
	StartDate   string  `json:"startDate"`
	EndDate     string  `json:"endDate"`
	TotalAmount float64 `json:"totalAmount"`
}

// ConfirmResult reports the confirmed reservation. RawBody is the authority's
// response verbatim; PaymentRecorded is false when the best-effort payment
// insert did not land.
type ConfirmResult struct {
	ReservationID    int64
	RawBody          []byte
	PaymentRecorded  bool
	AlreadyConfirmed bool
}

// Confirmer drives the hold -> authority -> payment confirmation flow.
// Confirmations for the same hold are serialized with a per-hold mutex so
// concurrent retries cannot race each other to the authority.
type Confirmer struct {
	holds     *holds.Manager
	booker    Booker
	payments  PaymentStore
	publisher events.Publisher
	retry     worker.RetryPolicy
	cfg       config.PaymentsConfig
	log       zerolog.Logger

	mu    sync.Mutex
	locks map[string]*holdLock
}

// holdLock is a ref-counted entry in the per-hold lock map so entries can be
// dropped once the last confirmation for that hold has finished.
type holdLock struct {
	sync.Mutex
	refs int
}

func NewConfirmer(
	holdManager *holds.Manager,
	booker Booker,
	payments PaymentStore,
	publisher events.Publisher,
	cfg config.PaymentsConfig,
	logger zerolog.Logger,
) *Confirmer {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Confirmer{
		holds:     holdManager,
		booker:    booker,
		payments:  payments,
		publisher: publisher,
		retry:     worker.DefaultRetryPolicy(),
		cfg:       cfg,
		log:       logger.With().Str("component", "confirm").Logger(),
	}
}

func (c *Confirmer) lockFor(holdID string) *holdLock {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locks == nil {
		c.locks = make(map[string]*holdLock)
	}
	l, ok := c.locks[holdID]
	if !ok {
		l = &holdLock{}
		c.locks[holdID] = l
	}
	l.refs++
	return l
}

func (c *Confirmer) unlockFor(holdID string, l *holdLock) {
	l.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(c.locks, holdID)
	}
}

// Confirm validates the hold, registers the reservation with the booking
// authority and records the payment. Authority failures are returned as-is
// (*authority.StatusError / *authority.UnparseableError) so the transport
// layer can mirror them. The payment insert is best-effort: its failure is
// logged and reflected in the result, never in the error.
func (c *Confirmer) Confirm(ctx context.Context, req *ConfirmRequest) (*ConfirmResult, error) {
	if req.HoldID == "" {
		return nil, fmt.Errorf("%w: hold id is required", holds.ErrValidation)
	}

	lock := c.lockFor(req.HoldID)
	lock.Lock()
	defer c.unlockFor(req.HoldID, lock)

	hold, err := c.holds.GetHold(ctx, req.HoldID)
	if err != nil {
		if errors.Is(err, holds.ErrNotFound) {
			metrics.IncConfirmation("hold_invalid")
			return nil, fmt.Errorf("%w: hold %s not found", ErrHoldInvalid, req.HoldID)
		}
		return nil, fmt.Errorf("failed to load hold: %w", err)
	}
	if c.holds.IsExpired(hold) {
		metrics.IncConfirmation("hold_invalid")
		return nil, fmt.Errorf("%w: hold %s expired at %s", ErrHoldInvalid, hold.ID, hold.EndAt)
	}

	// The hold id is the idempotency key: a retry after a successful
	// confirmation must not book or pay twice.
	if existing, err := c.payments.FindPaymentByHold(ctx, req.HoldID); err != nil {
		return nil, fmt.Errorf("failed to check existing payment: %w", err)
	} else if existing != nil {
		c.log.Info().Str("hold_id", req.HoldID).Int64("reservation_id", existing.ReservationID).
			Msg("confirmation replayed, reusing recorded reservation")
		return &ConfirmResult{
			ReservationID:    existing.ReservationID,
			PaymentRecorded:  true,
			AlreadyConfirmed: true,
		}, nil
	}

	resp, err := c.booker.Book(ctx, &authority.BookRequest{
		RoomID:     hold.RoomID,
		HoldID:     hold.ID,
		GuestName:  req.GuestName,
		GuestEmail: req.GuestEmail,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		GuestCount: req.GuestCount,
	})
	if err != nil {
		var unparseable *authority.UnparseableError
		if errors.As(err, &unparseable) {
			metrics.IncConfirmation("unparseable")
		} else {
			metrics.IncConfirmation("upstream_error")
		}
		return nil, err
	}

	result := &ConfirmResult{
		ReservationID: resp.ReservationID,
		RawBody:       resp.RawBody,
	}

	payment := &models.Payment{
		ReservationID:  resp.ReservationID,
		HoldID:         hold.ID,
		PayerReference: c.cfg.DestinationAccount,
		MethodID:       c.cfg.DefaultMethodID,
		TotalAmount:    req.TotalAmount,
	}
	err = c.retry.Do(ctx, func() error {
		return c.payments.InsertPayment(ctx, payment)
	})
	if err != nil {
		// The reservation is already confirmed upstream; losing the
		// payment row must not fail the confirmation.
		c.log.Error().Err(err).Str("hold_id", hold.ID).
			Int64("reservation_id", resp.ReservationID).
			Msg("payment insert failed after confirmation")
	} else {
		result.PaymentRecorded = true
	}

	if err := c.holds.MarkConfirmed(ctx, hold.ID, resp.ReservationID); err != nil {
		c.log.Warn().Err(err).Str("hold_id", hold.ID).Msg("failed to mark hold confirmed")
	}

	metrics.IncConfirmation("ok")
	c.log.Info().Str("hold_id", hold.ID).Int64("reservation_id", resp.ReservationID).
		Bool("payment_recorded", result.PaymentRecorded).Msg("reservation confirmed")

	if err := c.publisher.Publish(ctx, events.EventReservationConfirmed, hold.ID,
		events.ReservationEventPayload{
			ReservationID: resp.ReservationID,
			HoldID:        hold.ID,
			Status:        models.StatusActive,
		}); err != nil {
		c.log.Warn().Err(err).Msg("failed to publish reservation_confirmed event")
	}

	return result, nil
}
