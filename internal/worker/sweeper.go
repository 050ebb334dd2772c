package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// HoldSweeper is satisfied by the hold manager.
type HoldSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// Sweeper periodically clears expired holds out of the store. Expiry itself
// is lazy; the sweep only reclaims storage for holds nobody reads anymore.
type Sweeper struct {
	holds    HoldSweeper
	interval time.Duration
	log      zerolog.Logger
}

func NewSweeper(holds HoldSweeper, interval time.Duration, logger zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		holds:    holds,
		interval: interval,
		log:      logger.With().Str("component", "hold_sweeper").Logger(),
	}
}

// Run blocks until ctx is done, sweeping on every tick.
func (s *Sweeper) Run(ctx context.Context) {
	s.log.Info().Dur("interval", s.interval).Msg("hold sweeper started")
	defer s.log.Info().Msg("hold sweeper stopped")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	removed, err := s.holds.SweepExpired(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("hold sweep failed")
		return
	}
	if removed > 0 {
		s.log.Info().Int("removed", removed).Msg("expired holds swept")
	}
}
