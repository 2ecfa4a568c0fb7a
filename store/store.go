package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	models "loyalty-cart/model"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrDuplicateEmail is returned by CreateCustomer when the email is taken.
var ErrDuplicateEmail = errors.New("email already in use")

// ErrNoRowsUpdated is returned when a conditional UPDATE matched nothing.
var ErrNoRowsUpdated = errors.New("no rows updated")

// NewCustomer is the insert shape for registration.
type NewCustomer struct {
	FullName     string
	Email        string
	PasswordHash string
	Rewards      int64
	Role         string
}

// SQLStore is a Store backed by MySQL, Postgres or SQLite through sqlx.
// All statements are written with ? placeholders and rebound per driver.
type SQLStore struct {
	DB *sqlx.DB
}

// Open connects with the named driver ("mysql", "postgres" or "sqlite3").
func Open(driver, dsn string) (*SQLStore, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if driver == "sqlite3" {
		// a single connection serializes writers instead of surfacing SQLITE_BUSY
		db.SetMaxOpenConns(1)
	}
	return &SQLStore{DB: db}, nil
}

func (s *SQLStore) Close() error { return s.DB.Close() }

// Migrate creates the customers table for the store's dialect.
func (s *SQLStore) Migrate(ctx context.Context) error {
	name := "migrations/" + dialect(s.DB.DriverName()) + ".sql"
	body, err := migrations.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	for _, stmt := range strings.Split(string(body), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func dialect(driver string) string {
	switch driver {
	case "postgres", "pgx":
		return "postgres"
	case "sqlite3", "sqlite":
		return "sqlite"
	default:
		return "mysql"
	}
}

const customerColumns = `id, full_name, email, password_hash, rewards, created_at, role`

func (s *SQLStore) FindByEmail(ctx context.Context, email string) (models.Customer, error) {
	var c models.Customer
	q := s.DB.Rebind(`SELECT ` + customerColumns + ` FROM customers WHERE email = ?`)
	if err := s.DB.GetContext(ctx, &c, q, email); err != nil {
		return models.Customer{}, err
	}
	return c, nil
}

func (s *SQLStore) CreateCustomer(ctx context.Context, nc NewCustomer) (models.Customer, error) {
	role := nc.Role
	if role == "" {
		role = models.RoleCustomer
	}
	q := s.DB.Rebind(`INSERT INTO customers (full_name, email, password_hash, rewards, role) VALUES (?, ?, ?, ?, ?)`)
	if _, err := s.DB.ExecContext(ctx, q, nc.FullName, nc.Email, nc.PasswordHash, nc.Rewards, role); err != nil {
		if isDuplicate(err) {
			return models.Customer{}, ErrDuplicateEmail
		}
		return models.Customer{}, err
	}
	return s.FindByEmail(ctx, nc.Email)
}

func (s *SQLStore) UpdatePassword(ctx context.Context, email, hash string) error {
	res, err := s.DB.ExecContext(ctx, s.DB.Rebind(`UPDATE customers SET password_hash = ? WHERE email = ?`), hash, email)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func (s *SQLStore) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	out := []models.Customer{}
	if err := s.DB.SelectContext(ctx, &out, `SELECT `+customerColumns+` FROM customers ORDER BY id`); err != nil {
		return nil, err
	}
	return out, nil
}

// Redeem subtracts points only if the balance covers them at write time.
// The WHERE clause is re-evaluated by the database under its row lock, so
// two racing redemptions cannot both overdraw the balance.
func (s *SQLStore) Redeem(ctx context.Context, email string, points int64) error {
	q := s.DB.Rebind(`UPDATE customers SET rewards = COALESCE(rewards, 0) - ? WHERE email = ? AND COALESCE(rewards, 0) >= ?`)
	res, err := s.DB.ExecContext(ctx, q, points, email, points)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// Increment adds points unconditionally. No upper bound is enforced.
func (s *SQLStore) Increment(ctx context.Context, email string, points int64) error {
	q := s.DB.Rebind(`UPDATE customers SET rewards = COALESCE(rewards, 0) + ? WHERE email = ?`)
	res, err := s.DB.ExecContext(ctx, q, points, email)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// SetRewards overwrites the balance (admin operation).
func (s *SQLStore) SetRewards(ctx context.Context, email string, rewards int64) error {
	res, err := s.DB.ExecContext(ctx, s.DB.Rebind(`UPDATE customers SET rewards = ? WHERE email = ?`), rewards, email)
	if err != nil {
		return err
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if ra == 0 {
		// MySQL reports 0 affected rows when the value is unchanged
		if _, err := s.FindByEmail(ctx, email); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

func expectRow(res sql.Result) error {
	ra, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if ra == 0 {
		return ErrNoRowsUpdated
	}
	return nil
}

func isDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
