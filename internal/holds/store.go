package holds

import (
	"context"
	"errors"

	"posada/internal/models"
)

var (
	// ErrNotFound is returned when a hold does not exist in the store.
	ErrNotFound = errors.New("hold not found")
	// ErrValidation marks caller mistakes (empty room id, non-positive duration).
	ErrValidation = errors.New("validation error")
)

// Store persists room holds. Implementations must treat the stored TTL as a
// hygiene bound only; expiry is decided by the manager's clock.
type Store interface {
	Save(ctx context.Context, hold *models.Hold) error
	Get(ctx context.Context, id string) (*models.Hold, error)
	ListForRoom(ctx context.Context, roomID string) ([]*models.Hold, error)
	ListAll(ctx context.Context) ([]*models.Hold, error)
	Delete(ctx context.Context, id string) error
}
