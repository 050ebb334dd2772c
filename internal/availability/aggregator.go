package availability

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"posada/internal/models"

	"github.com/rs/zerolog"
)

// Reader is the slice of the persistence gateway the aggregator needs.
type Reader interface {
	ListReservations(ctx context.Context) ([]*models.Reservation, error)
	ListRoomAssignments(ctx context.Context) ([]*models.RoomAssignment, error)
}

// Aggregator answers which calendar days a room is occupied on, derived from
// full snapshots of reservations and room assignments.
type Aggregator struct {
	reader Reader
	log    zerolog.Logger
}

func NewAggregator(reader Reader, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		reader: reader,
		log:    logger.With().Str("component", "availability").Logger(),
	}
}

// OccupiedDates returns the sorted distinct "2006-01-02" days on which the
// room is held by a reservation that still counts against availability.
// Cancelled and expired reservations are excluded leniently: any status whose
// trimmed upper-cased text contains CANCELADA or EXPIRADO is out, so free-text
// variants like "Cancelada por admin" do not block the room.
func (a *Aggregator) OccupiedDates(ctx context.Context, roomID string) ([]string, error) {
	if roomID == "" {
		return nil, fmt.Errorf("room id is required")
	}

	var (
		wg           sync.WaitGroup
		reservations []*models.Reservation
		assignments  []*models.RoomAssignment
		resErr       error
		asgErr       error
	)

	// Both snapshots are read in parallel and joined before any filtering.
	wg.Add(2)
	go func() {
		defer wg.Done()
		reservations, resErr = a.reader.ListReservations(ctx)
	}()
	go func() {
		defer wg.Done()
		assignments, asgErr = a.reader.ListRoomAssignments(ctx)
	}()
	wg.Wait()

	if resErr != nil {
		return nil, fmt.Errorf("failed to read reservations: %w", resErr)
	}
	if asgErr != nil {
		return nil, fmt.Errorf("failed to read room assignments: %w", asgErr)
	}

	byReservation := make(map[int64]*models.Reservation, len(reservations))
	for _, r := range reservations {
		byReservation[r.ID] = r
	}

	seen := make(map[string]struct{})
	for _, asg := range assignments {
		if asg.RoomID != roomID {
			continue
		}

		r, ok := byReservation[asg.ReservationID]
		if !ok {
			a.log.Warn().Int64("reservation_id", asg.ReservationID).
				Str("room_id", roomID).Msg("assignment references unknown reservation")
			continue
		}
		if !models.CountsAgainstAvailability(r.OverallStatus) {
			continue
		}

		// Both endpoints are occupied days.
		for d := r.StartDate; !d.After(r.EndDate); d = d.AddDate(0, 0, 1) {
			seen[d.Format(models.DateLayout)] = struct{}{}
		}
	}

	dates := make([]string, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	return dates, nil
}
