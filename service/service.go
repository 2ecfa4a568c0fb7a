package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	models "loyalty-cart/model"
	"loyalty-cart/store"
)

// Policy holds the account rules the ledger applies.
type Policy struct {
	BcryptCost int
	// SignupPoints is the balance written for a new registration.
	SignupPoints int64
	// LoginDefaultPoints is reported at login when the stored balance is NULL.
	LoginDefaultPoints int64
}

func DefaultPolicy() Policy {
	return Policy{BcryptCost: bcrypt.DefaultCost, SignupPoints: 0, LoginDefaultPoints: 150}
}

type Service struct {
	store  store.Store
	policy Policy
	log    *zap.Logger
	now    func() time.Time
}

func NewService(s store.Store, p Policy, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if p.BcryptCost == 0 {
		p.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{store: s, policy: p, log: log, now: time.Now}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError turns the first validator failure into a client message.
func validationError(err error) error {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return models.NewValidation(err.Error())
	}
	fe := ves[0]
	switch fe.Tag() {
	case "required":
		return models.NewValidation(fmt.Sprintf("%q is required", fe.Field()))
	case "email":
		return models.NewValidation(fmt.Sprintf("%q must be a valid email", fe.Field()))
	case "min":
		return models.NewValidation(fmt.Sprintf("%q length must be at least %s characters long", fe.Field(), fe.Param()))
	case "max":
		return models.NewValidation(fmt.Sprintf("%q length must be less than or equal to %s characters long", fe.Field(), fe.Param()))
	default:
		return models.NewValidation(fmt.Sprintf("%q is invalid", fe.Field()))
	}
}

func lookupError(err error) error {
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, store.ErrNoRowsUpdated) {
		return models.NewNotFound("User not found")
	}
	return models.NewServer("Server error", err)
}

func requireEmail(email string) (string, error) {
	e := models.NormalizeEmail(email)
	if e == "" {
		return "", models.NewValidation("Email and points (number) required")
	}
	return e, nil
}

func (s *Service) GetRewards(ctx context.Context, email string) (int64, error) {
	e := models.NormalizeEmail(email)
	if e == "" {
		return 0, models.NewValidation("Email required")
	}
	c, err := s.store.FindByEmail(ctx, e)
	if err != nil {
		return 0, lookupError(err)
	}
	return c.Points(), nil
}

// Redeem debits points with a single guarded UPDATE. When the guard does
// not match, the row is re-read only to explain why.
func (s *Service) Redeem(ctx context.Context, email string, points int64) (models.User, error) {
	e, err := requireEmail(email)
	if err != nil {
		return models.User{}, err
	}
	if points <= 0 {
		return models.User{}, models.NewValidation("points must be a positive integer")
	}

	err = s.store.Redeem(ctx, e, points)
	if errors.Is(err, store.ErrNoRowsUpdated) {
		latest, ferr := s.store.FindByEmail(ctx, e)
		if ferr != nil {
			return models.User{}, lookupError(ferr)
		}
		if latest.Points() < points {
			s.log.Info("redeem rejected",
				zap.String("email", e),
				zap.Int64("points", points),
				zap.Int64("current", latest.Points()))
			return models.User{}, models.NewInsufficientPoints(latest.Points())
		}
		return models.User{}, models.NewServer("Unable to redeem points", nil)
	}
	if err != nil {
		return models.User{}, models.NewServer("Server error", err)
	}

	c, err := s.store.FindByEmail(ctx, e)
	if err != nil {
		return models.User{}, lookupError(err)
	}
	s.log.Info("points redeemed",
		zap.String("email", e),
		zap.Int64("points", points),
		zap.Int64("new_balance", c.Points()))
	return c.ToUser(0), nil
}

func (s *Service) Refund(ctx context.Context, email string, points int64) (models.User, error) {
	return s.increment(ctx, "refund", email, points)
}

func (s *Service) Credit(ctx context.Context, email string, points int64) (models.User, error) {
	return s.increment(ctx, "credit", email, points)
}

func (s *Service) increment(ctx context.Context, reason, email string, points int64) (models.User, error) {
	e, err := requireEmail(email)
	if err != nil {
		return models.User{}, err
	}
	if points <= 0 {
		return models.User{}, models.NewValidation("points must be a positive integer")
	}
	if err := s.store.Increment(ctx, e, points); err != nil {
		return models.User{}, lookupError(err)
	}
	c, err := s.store.FindByEmail(ctx, e)
	if err != nil {
		return models.User{}, lookupError(err)
	}
	s.log.Info("points added",
		zap.String("reason", reason),
		zap.String("email", e),
		zap.Int64("points", points),
		zap.Int64("new_balance", c.Points()))
	return c.ToUser(0), nil
}

// SetRewards is the administrative override.
func (s *Service) SetRewards(ctx context.Context, email string, rewards int64) (int64, error) {
	e := models.NormalizeEmail(email)
	if e == "" {
		return 0, models.NewValidation("Email and rewards (number) required")
	}
	if rewards < 0 {
		return 0, models.NewValidation("rewards cannot be negative")
	}
	if err := s.store.SetRewards(ctx, e, rewards); err != nil {
		return 0, lookupError(err)
	}
	s.log.Info("rewards set", zap.String("email", e), zap.Int64("rewards", rewards))
	return rewards, nil
}

type RegisterInput struct {
	FullName string `json:"full_name" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type ChangePasswordInput struct {
	Email           string `json:"email" validate:"required,email"`
	CurrentPassword string `json:"currentPassword" validate:"required,min=6"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	in.Email = models.NormalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	if err := validate.Struct(in); err != nil {
		return models.User{}, validationError(err)
	}

	if _, err := s.store.FindByEmail(ctx, in.Email); err == nil {
		return models.User{}, models.NewConflict("Email already in use")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return models.User{}, models.NewServer("Server error", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.policy.BcryptCost)
	if err != nil {
		return models.User{}, models.NewServer("Server error", err)
	}
	c, err := s.store.CreateCustomer(ctx, store.NewCustomer{
		FullName:     in.FullName,
		Email:        in.Email,
		PasswordHash: string(hash),
		Rewards:      s.policy.SignupPoints,
		Role:         models.RoleCustomer,
	})
	if errors.Is(err, store.ErrDuplicateEmail) {
		return models.User{}, models.NewConflict("Email already in use")
	}
	if err != nil {
		return models.User{}, models.NewServer("Server error", err)
	}
	s.log.Info("customer registered", zap.Int64("id", c.ID), zap.String("email", c.Email))
	return c.ToUser(0), nil
}

func (s *Service) Login(ctx context.Context, in LoginInput) (models.User, error) {
	in.Email = models.NormalizeEmail(in.Email)
	if err := validate.Struct(in); err != nil {
		return models.User{}, validationError(err)
	}
	c, err := s.store.FindByEmail(ctx, in.Email)
	if err != nil {
		return models.User{}, lookupError(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(in.Password)) != nil {
		return models.User{}, models.NewUnauthorized("Invalid password")
	}
	return c.ToUser(s.policy.LoginDefaultPoints), nil
}

func (s *Service) ChangePassword(ctx context.Context, in ChangePasswordInput) error {
	in.Email = models.NormalizeEmail(in.Email)
	if err := validate.Struct(in); err != nil {
		return validationError(err)
	}
	c, err := s.store.FindByEmail(ctx, in.Email)
	if err != nil {
		return lookupError(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(in.CurrentPassword)) != nil {
		return models.NewUnauthorized("Current password is incorrect")
	}
	if in.CurrentPassword == in.NewPassword {
		return models.NewValidation("New password must be different from current password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), s.policy.BcryptCost)
	if err != nil {
		return models.NewServer("Server error", err)
	}
	if err := s.store.UpdatePassword(ctx, in.Email, string(hash)); err != nil {
		return lookupError(err)
	}
	s.log.Info("password changed", zap.String("email", in.Email))
	return nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]models.CustomerView, error) {
	rows, err := s.store.ListCustomers(ctx)
	if err != nil {
		return nil, models.NewServer("Error fetching customers", err)
	}
	out := make([]models.CustomerView, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.View())
	}
	return out, nil
}

// Authorize checks that email names an account holding role.
func (s *Service) Authorize(ctx context.Context, email, role string) error {
	e := models.NormalizeEmail(email)
	if e == "" {
		return models.NewUnauthorized("Authentication required")
	}
	c, err := s.store.FindByEmail(ctx, e)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NewUnauthorized("Authentication required")
	}
	if err != nil {
		return models.NewServer("Server error", err)
	}
	if c.Role != role {
		return models.NewForbidden("Insufficient privileges")
	}
	return nil
}

func (s *Service) Health(ctx context.Context) HealthDTO {
	h := HealthDTO{Status: "ok", Database: "connected", Timestamp: s.now().UTC()}
	if err := s.store.Ping(ctx); err != nil {
		s.log.Error("health check failed", zap.Error(err))
		h.Status = "error"
		h.Database = "disconnected"
	}
	return h
}

// DTOs
type HealthDTO struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Timestamp time.Time `json:"timestamp"`
}

func (h HealthDTO) OK() bool { return h.Status == "ok" }
