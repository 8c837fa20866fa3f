package address

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/domain"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) GetForUser(ctx context.Context, id, userID string) (*domain.Address, error) {
	const q = `
SELECT id::text, line1, COALESCE(line2, ''), city, COALESCE(state, ''), postal_code, country
FROM addresses
WHERE id = $1 AND user_id = $2
`
	var a domain.Address
	err := r.pool.QueryRow(ctx, q, id, userID).Scan(
		&a.ID,
		&a.Line1,
		&a.Line2,
		&a.City,
		&a.State,
		&a.PostalCode,
		&a.Country,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}
