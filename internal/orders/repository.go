package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the order does not exist.
var ErrNotFound = errors.New("orders: not found")

// Repository provides PostgreSQL backed persistence for orders.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns a single order.
func (r *Repository) Get(ctx context.Context, id int64) (*Order, error) {
	var o Order
	err := r.pool.QueryRow(ctx,
		`SELECT id, buyer_id, status, region_id, total_price, created_at, updated_at
		 FROM orders WHERE id = $1`, id).
		Scan(&o.ID, &o.BuyerID, &o.Status, &o.RegionID, &o.TotalPrice, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// MarkPaid moves an ordered order to paid. The transition happens at
// most once: an order already paid (or still a cart) is left untouched
// and reported as false.
func (r *Repository) MarkPaid(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1 AND status = $3`,
		id, StatusPaid, StatusOrdered)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
