package models

import (
	"database/sql"
	"strings"
	"time"
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Customer is a row of the customers table.
type Customer struct {
	ID           int64         `db:"id" json:"id"`
	FullName     string        `db:"full_name" json:"full_name"`
	Email        string        `db:"email" json:"email"`
	PasswordHash string        `db:"password_hash" json:"-"`
	Rewards      sql.NullInt64 `db:"rewards" json:"-"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	Role         string        `db:"role" json:"role"`
}

// Points returns the stored balance, treating NULL as 0.
func (c Customer) Points() int64 {
	if !c.Rewards.Valid {
		return 0
	}
	return c.Rewards.Int64
}

func (c Customer) IsAdmin() bool { return c.Role == RoleAdmin }

// User is the account shape returned to clients.
type User struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	JoinDate      string  `json:"joinDate"`
	LoyaltyPoints int64   `json:"loyaltyPoints"`
	Rewards       int64   `json:"rewards"`
	MemberSince   string  `json:"memberSince"`
	Avatar        *string `json:"avatar"`
	Role          string  `json:"role"`
}

// ToUser maps a customer row to the client shape. nullPoints is reported
// when the rewards column is NULL.
func (c Customer) ToUser(nullPoints int64) User {
	pts := nullPoints
	if c.Rewards.Valid {
		pts = c.Rewards.Int64
	}
	role := c.Role
	if role == "" {
		role = RoleCustomer
	}
	since := c.CreatedAt.Format("2006-01-02")
	return User{
		ID:            c.ID,
		Name:          c.FullName,
		Email:         c.Email,
		JoinDate:      since,
		LoyaltyPoints: pts,
		Rewards:       pts,
		MemberSince:   since,
		Role:          role,
	}
}

// CustomerView is an admin listing row. It never carries the password hash.
type CustomerView struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Rewards   *int64    `json:"rewards"`
	CreatedAt time.Time `json:"created_at"`
	Role      string    `json:"role"`
}

func (c Customer) View() CustomerView {
	v := CustomerView{ID: c.ID, FullName: c.FullName, Email: c.Email, CreatedAt: c.CreatedAt, Role: c.Role}
	if c.Rewards.Valid {
		r := c.Rewards.Int64
		v.Rewards = &r
	}
	return v
}

// NormalizeEmail is the lookup key for every account operation.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
