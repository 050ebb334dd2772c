package holds

import (
	"context"
	"fmt"
	"time"

	"posada/internal/clock"
	"posada/internal/events"
	"posada/internal/metrics"
	"posada/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Manager owns the hold lifecycle. Expiry is lazy: a hold past its end time is
// simply no longer visible through the read paths; nothing has to run for it
// to expire.
type Manager struct {
	store     Store
	clock     clock.Clock
	publisher events.Publisher
	log       zerolog.Logger
}

func NewManager(store Store, clk clock.Clock, publisher events.Publisher, logger zerolog.Logger) *Manager {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Manager{
		store:     store,
		clock:     clk,
		publisher: publisher,
		log:       logger.With().Str("component", "holds").Logger(),
	}
}

// CreateHold places a time-bounded hold on a room.
func (m *Manager) CreateHold(ctx context.Context, roomID string, durationSeconds int64) (*models.Hold, error) {
	if roomID == "" {
		return nil, fmt.Errorf("%w: room id is required", ErrValidation)
	}
	if durationSeconds <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrValidation)
	}

	now := m.clock.Now()
	hold := &models.Hold{
		ID:       uuid.NewString(),
		RoomID:   roomID,
		Duration: durationSeconds,
		StartAt:  now,
		EndAt:    now.Add(time.Duration(durationSeconds) * time.Second),
		Status:   models.HoldStatusActive,
	}

	if err := m.store.Save(ctx, hold); err != nil {
		return nil, fmt.Errorf("failed to save hold: %w", err)
	}

	metrics.IncHoldCreated()
	m.log.Info().Str("hold_id", hold.ID).Str("room_id", roomID).
		Time("end_at", hold.EndAt).Msg("hold created")

	if err := m.publisher.Publish(ctx, events.EventHoldCreated, hold.ID, events.HoldEventPayload{
		HoldID: hold.ID,
		RoomID: hold.RoomID,
		Status: hold.Status,
		EndAt:  hold.EndAt,
	}); err != nil {
		m.log.Warn().Err(err).Msg("failed to publish hold_created event")
	}

	return hold, nil
}

// GetHold returns the hold whether or not it has expired; callers decide with
// IsExpired. Missing holds come back as ErrNotFound.
func (m *Manager) GetHold(ctx context.Context, id string) (*models.Hold, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: hold id is required", ErrValidation)
	}
	return m.store.Get(ctx, id)
}

// ListHoldsForRoom returns the live holds for a room. Expired holds are
// dropped from the result and opportunistically removed from the store.
func (m *Manager) ListHoldsForRoom(ctx context.Context, roomID string) ([]*models.Hold, error) {
	if roomID == "" {
		return nil, fmt.Errorf("%w: room id is required", ErrValidation)
	}

	all, err := m.store.ListForRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list holds for room: %w", err)
	}

	now := m.clock.Now()
	live := make([]*models.Hold, 0, len(all))
	for _, hold := range all {
		if hold.ExpiredAt(now) {
			m.evict(ctx, hold)
			continue
		}
		live = append(live, hold)
	}
	return live, nil
}

// ReleaseHold removes a hold. Releasing a hold that is already gone is not an
// error; the bool reports whether anything was actually removed.
func (m *Manager) ReleaseHold(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, fmt.Errorf("%w: hold id is required", ErrValidation)
	}

	err := m.store.Delete(ctx, id)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to release hold: %w", err)
	}

	metrics.IncHoldReleased()
	m.log.Info().Str("hold_id", id).Msg("hold released")

	if err := m.publisher.Publish(ctx, events.EventHoldReleased, id, events.HoldEventPayload{
		HoldID: id,
		Status: models.HoldStatusReleased,
	}); err != nil {
		m.log.Warn().Err(err).Msg("failed to publish hold_released event")
	}

	return true, nil
}

// IsExpired reports whether the hold's window has passed. A hold ending
// exactly now is still valid.
func (m *Manager) IsExpired(hold *models.Hold) bool {
	return hold.ExpiredAt(m.clock.Now())
}

// UpdateStatus transitions the hold's lifecycle marker (active, confirmed,
// released).
func (m *Manager) UpdateStatus(ctx context.Context, id, status string) error {
	hold, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	hold.Status = status
	if err := m.store.Save(ctx, hold); err != nil {
		return fmt.Errorf("failed to update hold status: %w", err)
	}
	return nil
}

// MarkConfirmed flips the hold to confirmed and links it to the reservation
// created from it.
func (m *Manager) MarkConfirmed(ctx context.Context, id string, reservationID int64) error {
	hold, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	hold.Status = models.HoldStatusConfirmed
	hold.ReservationID = reservationID
	if err := m.store.Save(ctx, hold); err != nil {
		return fmt.Errorf("failed to mark hold confirmed: %w", err)
	}
	return nil
}

// SweepExpired removes every expired hold from the store and reports how many
// were removed. Lazy expiry does not depend on it; the sweep only keeps the
// store tidy.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	all, err := m.store.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list holds: %w", err)
	}

	now := m.clock.Now()
	removed := 0
	for _, hold := range all {
		if hold.ExpiredAt(now) {
			m.evict(ctx, hold)
			removed++
		}
	}
	return removed, nil
}

func (m *Manager) evict(ctx context.Context, hold *models.Hold) {
	if err := m.store.Delete(ctx, hold.ID); err != nil && err != ErrNotFound {
		m.log.Warn().Err(err).Str("hold_id", hold.ID).Msg("failed to evict expired hold")
	}
}
