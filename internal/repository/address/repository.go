package address

import (
	"context"

	"storefront/internal/domain"
)

// Repository resolves an address id to a snapshot, scoped to its owner.
// Address management is an external collaborator; checkout only reads.
type Repository interface {
	GetForUser(ctx context.Context, id, userID string) (*domain.Address, error)
}
