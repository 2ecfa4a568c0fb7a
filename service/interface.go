package service

import (
	"context"

	models "loyalty-cart/model"
)

type ServiceInterface interface {
	GetRewards(ctx context.Context, email string) (int64, error)
	Redeem(ctx context.Context, email string, points int64) (models.User, error)
	Refund(ctx context.Context, email string, points int64) (models.User, error)
	Credit(ctx context.Context, email string, points int64) (models.User, error)
	SetRewards(ctx context.Context, email string, rewards int64) (int64, error)

	Register(ctx context.Context, in RegisterInput) (models.User, error)
	Login(ctx context.Context, in LoginInput) (models.User, error)
	ChangePassword(ctx context.Context, in ChangePasswordInput) error

	ListCustomers(ctx context.Context) ([]models.CustomerView, error)
	Authorize(ctx context.Context, email, role string) error
	Health(ctx context.Context) HealthDTO
}
