package store

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	models "loyalty-cart/model"
)

// MemoryStore is a process-local Store. Each email has its own mutex so a
// balance check and its update happen as one step, the way the guarded
// UPDATE does in SQL.
type MemoryStore struct {
	mu     sync.RWMutex
	rows   map[string]*models.Customer
	nextID int64

	// per-email mutexes. Keys are email -> *sync.Mutex
	locks sync.Map
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: map[string]*models.Customer{}}
}

// helper: acquire per-email lock. Returns unlock func.
func (s *MemoryStore) lockForEmail(email string) func() {
	m := &sync.Mutex{}
	actual, _ := s.locks.LoadOrStore(email, m)
	mtx := actual.(*sync.Mutex)
	mtx.Lock()
	return func() { mtx.Unlock() }
}

func (s *MemoryStore) get(email string) (models.Customer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.rows[email]
	if !ok {
		return models.Customer{}, false
	}
	return *c, true
}

func (s *MemoryStore) put(c models.Customer) {
	s.mu.Lock()
	s.rows[c.Email] = &c
	s.mu.Unlock()
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (models.Customer, error) {
	unlock := s.lockForEmail(email)
	defer unlock()
	c, ok := s.get(email)
	if !ok {
		return models.Customer{}, sql.ErrNoRows
	}
	return c, nil
}

func (s *MemoryStore) CreateCustomer(_ context.Context, nc NewCustomer) (models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[nc.Email]; ok {
		return models.Customer{}, ErrDuplicateEmail
	}
	role := nc.Role
	if role == "" {
		role = models.RoleCustomer
	}
	s.nextID++
	c := &models.Customer{
		ID:           s.nextID,
		FullName:     nc.FullName,
		Email:        nc.Email,
		PasswordHash: nc.PasswordHash,
		Rewards:      sql.NullInt64{Int64: nc.Rewards, Valid: true},
		CreatedAt:    time.Now().UTC(),
		Role:         role,
	}
	s.rows[nc.Email] = c
	return *c, nil
}

// SetRole is used to seed admin accounts.
func (s *MemoryStore) SetRole(email, role string) error {
	unlock := s.lockForEmail(email)
	defer unlock()
	c, ok := s.get(email)
	if !ok {
		return ErrNoRowsUpdated
	}
	c.Role = role
	s.put(c)
	return nil
}

func (s *MemoryStore) UpdatePassword(_ context.Context, email, hash string) error {
	unlock := s.lockForEmail(email)
	defer unlock()
	c, ok := s.get(email)
	if !ok {
		return ErrNoRowsUpdated
	}
	c.PasswordHash = hash
	s.put(c)
	return nil
}

func (s *MemoryStore) ListCustomers(context.Context) ([]models.Customer, error) {
	s.mu.RLock()
	out := make([]models.Customer, 0, len(s.rows))
	for _, c := range s.rows {
		out = append(out, *c)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Redeem(_ context.Context, email string, points int64) error {
	unlock := s.lockForEmail(email)
	defer unlock()
	c, ok := s.get(email)
	if !ok || c.Points() < points {
		return ErrNoRowsUpdated
	}
	c.Rewards = sql.NullInt64{Int64: c.Points() - points, Valid: true}
	s.put(c)
	return nil
}

func (s *MemoryStore) Increment(_ context.Context, email string, points int64) error {
	unlock := s.lockForEmail(email)
	defer unlock()
	c, ok := s.get(email)
	if !ok {
		return ErrNoRowsUpdated
	}
	c.Rewards = sql.NullInt64{Int64: c.Points() + points, Valid: true}
	s.put(c)
	return nil
}

func (s *MemoryStore) SetRewards(_ context.Context, email string, rewards int64) error {
	unlock := s.lockForEmail(email)
	defer unlock()
	c, ok := s.get(email)
	if !ok {
		return sql.ErrNoRows
	}
	c.Rewards = sql.NullInt64{Int64: rewards, Valid: true}
	s.put(c)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
func (s *MemoryStore) Close() error               { return nil }
