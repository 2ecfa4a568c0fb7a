package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	models "loyalty-cart/model"
	"loyalty-cart/store"
)

// ---- fakeStore implementing store.Store for tests ----
type fakeStore struct {
	FindByEmailFn    func(email string) (models.Customer, error)
	CreateCustomerFn func(c store.NewCustomer) (models.Customer, error)
	UpdatePasswordFn func(email, hash string) error
	ListCustomersFn  func() ([]models.Customer, error)
	RedeemFn         func(email string, points int64) error
	IncrementFn      func(email string, points int64) error
	SetRewardsFn     func(email string, rewards int64) error
	PingFn           func() error
}

func (f *fakeStore) FindByEmail(_ context.Context, email string) (models.Customer, error) {
	return f.FindByEmailFn(email)
}
func (f *fakeStore) CreateCustomer(_ context.Context, c store.NewCustomer) (models.Customer, error) {
	return f.CreateCustomerFn(c)
}
func (f *fakeStore) UpdatePassword(_ context.Context, email, hash string) error {
	return f.UpdatePasswordFn(email, hash)
}
func (f *fakeStore) ListCustomers(context.Context) ([]models.Customer, error) {
	return f.ListCustomersFn()
}
func (f *fakeStore) Redeem(_ context.Context, email string, points int64) error {
	return f.RedeemFn(email, points)
}
func (f *fakeStore) Increment(_ context.Context, email string, points int64) error {
	return f.IncrementFn(email, points)
}
func (f *fakeStore) SetRewards(_ context.Context, email string, rewards int64) error {
	return f.SetRewardsFn(email, rewards)
}
func (f *fakeStore) Ping(context.Context) error { return f.PingFn() }
func (f *fakeStore) Close() error               { return nil }

// ledgerStore is an in-memory balance table behind the fake.
type ledgerStore struct {
	rows map[string]models.Customer
}

func newLedgerStore(balances map[string]int64) *fakeStore {
	ls := &ledgerStore{rows: map[string]models.Customer{}}
	for email, pts := range balances {
		ls.rows[email] = models.Customer{ID: int64(len(ls.rows) + 1), Email: email, FullName: "Test User",
			Rewards: sql.NullInt64{Int64: pts, Valid: true}, Role: models.RoleCustomer, CreatedAt: time.Now()}
	}
	return &fakeStore{
		FindByEmailFn: func(email string) (models.Customer, error) {
			c, ok := ls.rows[email]
			if !ok {
				return models.Customer{}, sql.ErrNoRows
			}
			return c, nil
		},
		RedeemFn: func(email string, points int64) error {
			c, ok := ls.rows[email]
			if !ok || c.Points() < points {
				return store.ErrNoRowsUpdated
			}
			c.Rewards.Int64 -= points
			ls.rows[email] = c
			return nil
		},
		IncrementFn: func(email string, points int64) error {
			c, ok := ls.rows[email]
			if !ok {
				return store.ErrNoRowsUpdated
			}
			c.Rewards = sql.NullInt64{Int64: c.Points() + points, Valid: true}
			ls.rows[email] = c
			return nil
		},
	}
}

// ---- Tests ----

func TestRedeemScenario(t *testing.T) {
	svc := NewService(newLedgerStore(map[string]int64{"ann@b.com": 150}), DefaultPolicy(), nil)
	ctx := context.Background()

	u, err := svc.Redeem(ctx, "  Ann@B.com ", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Rewards != 50 || u.LoyaltyPoints != 50 {
		t.Fatalf("expected balance 50, got %+v", u)
	}

	_, err = svc.Redeem(ctx, "ann@b.com", 100)
	if !models.IsKind(err, models.KindInsufficientPoints) {
		t.Fatalf("expected insufficient points, got %v", err)
	}
	var me *models.Error
	if !errors.As(err, &me) || me.Current == nil || *me.Current != 50 {
		t.Fatalf("expected current balance 50 on error, got %+v", me)
	}

	bal, err := svc.GetRewards(ctx, "ann@b.com")
	if err != nil || bal != 50 {
		t.Fatalf("expected balance to stay 50, got %d (%v)", bal, err)
	}
}

func TestRedeemThenRefundRestoresBalance(t *testing.T) {
	svc := NewService(newLedgerStore(map[string]int64{"bob@b.com": 150}), DefaultPolicy(), nil)
	ctx := context.Background()

	if _, err := svc.Redeem(ctx, "bob@b.com", 100); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	u, err := svc.Refund(ctx, "BOB@b.com", 100)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if u.Rewards != 150 {
		t.Fatalf("expected 150 after refund, got %d", u.Rewards)
	}
}

func TestRedeemValidationAndNotFound(t *testing.T) {
	svc := NewService(newLedgerStore(nil), DefaultPolicy(), nil)
	ctx := context.Background()

	if _, err := svc.Redeem(ctx, "   ", 10); !models.IsKind(err, models.KindValidation) {
		t.Fatalf("expected validation error for blank email, got %v", err)
	}
	if _, err := svc.Redeem(ctx, "a@b.com", 0); !models.IsKind(err, models.KindValidation) {
		t.Fatalf("expected validation error for zero points, got %v", err)
	}
	if _, err := svc.Redeem(ctx, "ghost@b.com", 10); !models.IsKind(err, models.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.Refund(ctx, "ghost@b.com", 10); !models.IsKind(err, models.KindNotFound) {
		t.Fatalf("expected not found on refund, got %v", err)
	}
}

func TestRedeemGuardMissWithEnoughPoints(t *testing.T) {
	// the guard missed but a re-read shows enough points: generic failure
	fs := &fakeStore{
		RedeemFn: func(string, int64) error { return store.ErrNoRowsUpdated },
		FindByEmailFn: func(email string) (models.Customer, error) {
			return models.Customer{Email: email, Rewards: sql.NullInt64{Int64: 500, Valid: true}}, nil
		},
	}
	svc := NewService(fs, DefaultPolicy(), nil)
	_, err := svc.Redeem(context.Background(), "a@b.com", 10)
	if models.KindOf(err) != models.KindServer {
		t.Fatalf("expected server error, got %v", err)
	}
}

func TestRedeemStoreError(t *testing.T) {
	fs := &fakeStore{RedeemFn: func(string, int64) error { return errors.New("db down") }}
	svc := NewService(fs, DefaultPolicy(), nil)
	if _, err := svc.Redeem(context.Background(), "a@b.com", 10); models.KindOf(err) != models.KindServer {
		t.Fatalf("expected server error, got %v", err)
	}
}

func TestSetRewards(t *testing.T) {
	var gotEmail string
	var gotRewards int64
	fs := &fakeStore{
		SetRewardsFn: func(email string, rewards int64) error {
			if email == "ghost@b.com" {
				return sql.ErrNoRows
			}
			gotEmail, gotRewards = email, rewards
			return nil
		},
	}
	svc := NewService(fs, DefaultPolicy(), nil)
	ctx := context.Background()

	if _, err := svc.SetRewards(ctx, "a@b.com", -1); !models.IsKind(err, models.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.SetRewards(ctx, "ghost@b.com", 5); !models.IsKind(err, models.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	r, err := svc.SetRewards(ctx, " A@b.com", 999)
	if err != nil || r != 999 {
		t.Fatalf("unexpected result %d %v", r, err)
	}
	if gotEmail != "a@b.com" || gotRewards != 999 {
		t.Fatalf("store got %q %d", gotEmail, gotRewards)
	}
}

func TestRegister(t *testing.T) {
	var created store.NewCustomer
	fs := &fakeStore{
		FindByEmailFn: func(email string) (models.Customer, error) {
			if email == "taken@b.com" {
				return models.Customer{Email: email}, nil
			}
			return models.Customer{}, sql.ErrNoRows
		},
		CreateCustomerFn: func(c store.NewCustomer) (models.Customer, error) {
			created = c
			return models.Customer{ID: 9, FullName: c.FullName, Email: c.Email, PasswordHash: c.PasswordHash,
				Rewards: sql.NullInt64{Int64: c.Rewards, Valid: true}, Role: c.Role, CreatedAt: time.Now()}, nil
		},
	}
	p := DefaultPolicy()
	p.BcryptCost = bcrypt.MinCost
	p.SignupPoints = 150
	svc := NewService(fs, p, nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{FullName: "Al", Email: "a@b.com", Password: "secret1"}); !models.IsKind(err, models.KindValidation) {
		t.Fatalf("expected validation error for short name, got %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{FullName: "Alice", Email: "not-an-email", Password: "secret1"}); !models.IsKind(err, models.KindValidation) {
		t.Fatalf("expected validation error for email, got %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{FullName: "Alice", Email: "a@b.com", Password: "123"}); !models.IsKind(err, models.KindValidation) {
		t.Fatalf("expected validation error for password, got %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{FullName: "Alice", Email: " Taken@B.com", Password: "secret1"}); !models.IsKind(err, models.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	u, err := svc.Register(ctx, RegisterInput{FullName: "Alice Smith", Email: " Alice@B.com ", Password: "secret1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Email != "alice@b.com" || created.Rewards != 150 || created.Role != models.RoleCustomer {
		t.Fatalf("unexpected insert: %+v", created)
	}
	if bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("secret1")) != nil {
		t.Fatalf("password was not hashed with bcrypt")
	}
	if u.ID != 9 || u.LoyaltyPoints != 150 || u.Name != "Alice Smith" {
		t.Fatalf("unexpected user: %+v", u)
	}
}

func TestLogin(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	fs := &fakeStore{
		FindByEmailFn: func(email string) (models.Customer, error) {
			if email != "a@b.com" {
				return models.Customer{}, sql.ErrNoRows
			}
			return models.Customer{ID: 1, FullName: "Ann", Email: email, PasswordHash: string(hash), CreatedAt: time.Now()}, nil
		},
	}
	svc := NewService(fs, DefaultPolicy(), nil)
	ctx := context.Background()

	if _, err := svc.Login(ctx, LoginInput{Email: "x@b.com", Password: "secret1"}); !models.IsKind(err, models.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.Login(ctx, LoginInput{Email: "a@b.com", Password: "wrong12"}); !models.IsKind(err, models.KindUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	u, err := svc.Login(ctx, LoginInput{Email: "A@B.COM", Password: "secret1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// NULL rewards default at login
	if u.LoyaltyPoints != 150 || u.Role != models.RoleCustomer {
		t.Fatalf("unexpected user: %+v", u)
	}
}

func TestChangePassword(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	var stored string
	fs := &fakeStore{
		FindByEmailFn: func(email string) (models.Customer, error) {
			return models.Customer{Email: email, PasswordHash: string(hash)}, nil
		},
		UpdatePasswordFn: func(email, h string) error {
			stored = h
			return nil
		},
	}
	p := DefaultPolicy()
	p.BcryptCost = bcrypt.MinCost
	svc := NewService(fs, p, nil)
	ctx := context.Background()

	err := svc.ChangePassword(ctx, ChangePasswordInput{Email: "a@b.com", CurrentPassword: "nope123", NewPassword: "other12"})
	if !models.IsKind(err, models.KindUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	err = svc.ChangePassword(ctx, ChangePasswordInput{Email: "a@b.com", CurrentPassword: "secret1", NewPassword: "secret1"})
	if !models.IsKind(err, models.KindValidation) {
		t.Fatalf("expected validation error for same password, got %v", err)
	}
	if err := svc.ChangePassword(ctx, ChangePasswordInput{Email: "a@b.com", CurrentPassword: "secret1", NewPassword: "other12"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(stored), []byte("other12")) != nil {
		t.Fatalf("expected new hash to be stored")
	}
}

func TestAuthorize(t *testing.T) {
	fs := &fakeStore{
		FindByEmailFn: func(email string) (models.Customer, error) {
			switch email {
			case "boss@b.com":
				return models.Customer{Email: email, Role: models.RoleAdmin}, nil
			case "ann@b.com":
				return models.Customer{Email: email, Role: models.RoleCustomer}, nil
			}
			return models.Customer{}, sql.ErrNoRows
		},
	}
	svc := NewService(fs, DefaultPolicy(), nil)
	ctx := context.Background()

	if err := svc.Authorize(ctx, "Boss@b.com", models.RoleAdmin); err != nil {
		t.Fatalf("expected admin to pass, got %v", err)
	}
	if err := svc.Authorize(ctx, "ann@b.com", models.RoleAdmin); !models.IsKind(err, models.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := svc.Authorize(ctx, "", models.RoleAdmin); !models.IsKind(err, models.KindUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestListCustomersHidesHash(t *testing.T) {
	fs := &fakeStore{
		ListCustomersFn: func() ([]models.Customer, error) {
			return []models.Customer{
				{ID: 1, Email: "a@b.com", PasswordHash: "secret", Rewards: sql.NullInt64{Int64: 3, Valid: true}},
				{ID: 2, Email: "b@b.com", PasswordHash: "secret"},
			}, nil
		},
	}
	svc := NewService(fs, DefaultPolicy(), nil)
	out, err := svc.ListCustomers(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 || out[0].Rewards == nil || *out[0].Rewards != 3 || out[1].Rewards != nil {
		t.Fatalf("unexpected views: %+v", out)
	}

	fs.ListCustomersFn = func() ([]models.Customer, error) { return nil, errors.New("db down") }
	if _, err := svc.ListCustomers(context.Background()); models.KindOf(err) != models.KindServer {
		t.Fatalf("expected server error, got %v", err)
	}
}

func TestHealth(t *testing.T) {
	fs := &fakeStore{PingFn: func() error { return nil }}
	svc := NewService(fs, DefaultPolicy(), nil)
	if h := svc.Health(context.Background()); !h.OK() || h.Database != "connected" {
		t.Fatalf("unexpected health: %+v", h)
	}
	fs.PingFn = func() error { return errors.New("refused") }
	if h := svc.Health(context.Background()); h.OK() || h.Database != "disconnected" {
		t.Fatalf("unexpected health: %+v", h)
	}
}
