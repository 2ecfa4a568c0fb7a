package cart

import (
	"sync"

	models "loyalty-cart/model"
)

// Account is the signed-in customer as the client sees it. Points is a
// cache of the ledger balance.
type Account struct {
	Name   string
	Email  string
	Role   string
	Points int64
}

// Session holds at most one signed-in account. Background completions
// write to it from worker goroutines.
type Session struct {
	mu   sync.RWMutex
	acct *Account
}

func NewSession() *Session { return &Session{} }

func (s *Session) SignIn(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acct = &Account{
		Name:   u.Name,
		Email:  models.NormalizeEmail(u.Email),
		Role:   u.Role,
		Points: u.Rewards,
	}
}

func (s *Session) SignOut() {
	s.mu.Lock()
	s.acct = nil
	s.mu.Unlock()
}

// Current returns a copy of the signed-in account.
func (s *Session) Current() (Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.acct == nil {
		return Account{}, false
	}
	return *s.acct, true
}

// Email is the normalized email of the signed-in account, or "".
func (s *Session) Email() string {
	a, _ := s.Current()
	return a.Email
}

func (s *Session) Points() int64 {
	a, _ := s.Current()
	return a.Points
}

// SetPoints overwrites the cached balance, but only while email is still
// the signed-in account. A result that lands after sign-out or after a
// different customer signs in is discarded.
func (s *Session) SetPoints(email string, points int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.acct == nil || s.acct.Email != models.NormalizeEmail(email) {
		return false
	}
	s.acct.Points = points
	return true
}

// AddPoints adjusts the cached balance under the same rule as SetPoints.
func (s *Session) AddPoints(email string, delta int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.acct == nil || s.acct.Email != models.NormalizeEmail(email) {
		return false
	}
	s.acct.Points += delta
	return true
}

func (s *Session) IsAdmin() bool {
	a, ok := s.Current()
	return ok && a.Role == models.RoleAdmin
}
