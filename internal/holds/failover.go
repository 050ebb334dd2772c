package holds

import (
	"context"
	"sync/atomic"
	"time"

	"posada/internal/models"

	"github.com/rs/zerolog"
)

// FailoverStore serves from the primary store until it errors, then trips to
// the fallback and retries the primary after a minute.
type FailoverStore struct {
	primary   Store
	fallback  Store
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverStore(primary, fallback Store, logger *zerolog.Logger) *FailoverStore {
	return &FailoverStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (s *FailoverStore) trip(err error) {
	s.logger.Error().Err(err).Msg("primary hold store failed, falling back to memory")
	s.isDown.Store(true)
	s.lastCheck.Store(time.Now().UnixNano())
}

func (s *FailoverStore) shouldRetryPrimary() bool {
	return time.Since(time.Unix(0, s.lastCheck.Load())) > time.Minute
}

func (s *FailoverStore) Save(ctx context.Context, hold *models.Hold) error {
	if !s.isDown.Load() || s.shouldRetryPrimary() {
		err := s.primary.Save(ctx, hold)
		if err == nil {
			s.isDown.Store(false)
			return nil
		}
		s.trip(err)
	}
	return s.fallback.Save(ctx, hold)
}

func (s *FailoverStore) Get(ctx context.Context, id string) (*models.Hold, error) {
	if !s.isDown.Load() || s.shouldRetryPrimary() {
		hold, err := s.primary.Get(ctx, id)
		if err == nil || err == ErrNotFound {
			s.isDown.Store(false)
			return hold, err
		}
		s.trip(err)
	}
	return s.fallback.Get(ctx, id)
}

func (s *FailoverStore) ListForRoom(ctx context.Context, roomID string) ([]*models.Hold, error) {
	if !s.isDown.Load() || s.shouldRetryPrimary() {
		holds, err := s.primary.ListForRoom(ctx, roomID)
		if err == nil {
			s.isDown.Store(false)
			return holds, nil
		}
		s.trip(err)
	}
	return s.fallback.ListForRoom(ctx, roomID)
}

func (s *FailoverStore) ListAll(ctx context.Context) ([]*models.Hold, error) {
	if !s.isDown.Load() || s.shouldRetryPrimary() {
		holds, err := s.primary.ListAll(ctx)
		if err == nil {
			s.isDown.Store(false)
			return holds, nil
		}
		s.trip(err)
	}
	return s.fallback.ListAll(ctx)
}

func (s *FailoverStore) Delete(ctx context.Context, id string) error {
	if !s.isDown.Load() || s.shouldRetryPrimary() {
		err := s.primary.Delete(ctx, id)
		if err == nil || err == ErrNotFound {
			s.isDown.Store(false)
			return err
		}
		s.trip(err)
	}
	return s.fallback.Delete(ctx, id)
}
