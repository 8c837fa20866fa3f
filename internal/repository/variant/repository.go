package variant

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"storefront/internal/domain"
)

// DB is the executor subset the ledger operations need. Both *pgxpool.Pool
// and pgx.Tx satisfy it, so checkout can reserve stock inside its own
// transaction while cancellation releases through the pool.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository exposes variant reads and the atomic stock ledger.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Variant, error)
	Reserve(ctx context.Context, variantID string, quantity int) error
	Release(ctx context.Context, variantID string, quantity int) error
}
