package store

import (
	"context"

	models "loyalty-cart/model"
)

// GET    /api/rewards          - FindByEmail
// POST   /api/rewards/redeem   - Redeem (conditional decrement)
// PATCH  /api/rewards/set      - SetRewards
// POST   /api/rewards/refund   - Increment
// POST   /api/rewards/credit   - Increment
// POST   /api/auth/register    - CreateCustomer
// POST   /api/password/change  - UpdatePassword
// GET    /api/admin/customers  - ListCustomers
// GET    /api/health           - Ping

type Store interface {
	FindByEmail(ctx context.Context, email string) (models.Customer, error)
	CreateCustomer(ctx context.Context, c NewCustomer) (models.Customer, error)
	UpdatePassword(ctx context.Context, email, hash string) error
	ListCustomers(ctx context.Context) ([]models.Customer, error)

	Redeem(ctx context.Context, email string, points int64) error
	Increment(ctx context.Context, email string, points int64) error
	SetRewards(ctx context.Context, email string, rewards int64) error

	Ping(ctx context.Context) error
	Close() error
}
