// Package cart holds the client-side shopping cart: lines, totals, and the
// loyalty-point calls made when rewards are redeemed, removed or earned.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	models "loyalty-cart/model"
)

var ErrNotSignedIn = errors.New("cart: not signed in")

// Ledger is the authoritative point balance. *client.Client implements it.
type Ledger interface {
	GetBalance(ctx context.Context, email string) (int64, error)
	Redeem(ctx context.Context, email string, points int64) (models.User, error)
	Refund(ctx context.Context, email string, points int64) (models.User, error)
	Credit(ctx context.Context, email string, points int64) (models.User, error)
}

// Receipt is what CompleteOrder hands back once the cart is cleared.
type Receipt struct {
	Lines        []Line
	Totals       Totals
	Email        string
	PointsEarned int64
}

type Engine struct {
	mu    sync.Mutex
	lines []Line

	session *Session
	ledger  Ledger
	tasks   *TaskQueue
	ownQ    bool
	pricing Pricing
	log     *zap.Logger
}

type Option func(*Engine)

func WithPricing(p Pricing) Option { return func(e *Engine) { e.pricing = p } }

func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.log = l } }

// WithTaskQueue shares q instead of starting a private queue. The caller
// owns q and closes it.
func WithTaskQueue(q *TaskQueue) Option { return func(e *Engine) { e.tasks = q } }

// NewEngine builds an empty cart bound to session. A nil ledger keeps the
// engine offline: redeem fails and refunds or credits stay local.
func NewEngine(session *Session, ledger Ledger, opts ...Option) *Engine {
	e := &Engine{
		session: session,
		ledger:  ledger,
		pricing: DefaultPricing(),
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.session == nil {
		e.session = NewSession()
	}
	if e.tasks == nil {
		e.tasks = NewTaskQueue(64, 1, 15*time.Second, e.log)
		e.ownQ = true
	}
	return e
}

func (e *Engine) Session() *Session { return e.session }

func (e *Engine) indexOf(id string) int {
	for i, l := range e.lines {
		if l.ID == id {
			return i
		}
	}
	return -1
}

// AddItem bumps the quantity of an existing line or appends a new one.
func (e *Engine) AddItem(item Item) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i := e.indexOf(item.ID); i >= 0 {
		e.lines[i].Quantity++
		return
	}
	e.lines = append(e.lines, Line{Item: item, Quantity: 1})
}

// UpdateQuantity changes a line by delta, clamped at 0. A line that reaches
// 0 is removed; if it was a reward the points go back to the ledger in the
// background.
func (e *Engine) UpdateQuantity(id string, delta int) {
	e.change(id, func(q int) int { return q + delta })
}

func (e *Engine) RemoveItem(id string) {
	e.change(id, func(int) int { return 0 })
}

func (e *Engine) change(id string, next func(int) int) {
	e.mu.Lock()
	i := e.indexOf(id)
	if i < 0 {
		e.mu.Unlock()
		return
	}
	line := e.lines[i]
	qty := next(line.Quantity)
	if qty > 0 {
		e.lines[i].Quantity = qty
		e.mu.Unlock()
		return
	}
	e.lines = append(e.lines[:i], e.lines[i+1:]...)
	e.mu.Unlock()

	if line.IsReward() {
		e.refund(line.PointsCost * int64(line.Quantity))
	}
}

func (e *Engine) refund(points int64) {
	email := e.session.Email()
	if email == "" || e.ledger == nil {
		return
	}
	e.tasks.Submit("refund", func(ctx context.Context) error {
		u, err := e.ledger.Refund(ctx, email, points)
		if err != nil {
			return fmt.Errorf("refund %d points to %s: %w", points, email, err)
		}
		e.session.SetPoints(email, u.Rewards)
		return nil
	})
}

func (e *Engine) Totals() Totals {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ComputeTotals(e.lines, e.pricing)
}

// CompleteOrder clears the cart. A signed-in customer earns floor(total)
// points, applied to the cached balance at once and credited to the ledger
// in the background. Guests earn nothing.
func (e *Engine) CompleteOrder() Receipt {
	e.mu.Lock()
	lines := e.lines
	e.lines = nil
	e.mu.Unlock()

	r := Receipt{Lines: lines, Totals: ComputeTotals(lines, e.pricing)}
	email := e.session.Email()
	if email == "" {
		return r
	}
	r.Email = email
	r.PointsEarned = r.Totals.PointsEarned()
	if r.PointsEarned == 0 {
		return r
	}
	e.session.AddPoints(email, r.PointsEarned)
	if e.ledger == nil {
		return r
	}
	earned := r.PointsEarned
	e.tasks.Submit("credit", func(ctx context.Context) error {
		u, err := e.ledger.Credit(ctx, email, earned)
		if err != nil {
			return fmt.Errorf("credit %d points to %s: %w", earned, email, err)
		}
		e.session.SetPoints(email, u.Rewards)
		return nil
	})
	return r
}

// RedeemReward debits the ledger and, only on success, adds item to the cart.
func (e *Engine) RedeemReward(ctx context.Context, item Item) error {
	if !item.IsReward() {
		return models.NewValidation(fmt.Sprintf("%s is not a reward", item.Name))
	}
	acct, ok := e.session.Current()
	if !ok {
		return ErrNotSignedIn
	}
	if acct.Points < item.PointsCost {
		return models.NewInsufficientPoints(acct.Points)
	}
	if e.ledger == nil {
		return models.NewTransient("no rewards ledger configured", nil)
	}
	u, err := e.ledger.Redeem(ctx, acct.Email, item.PointsCost)
	if err != nil {
		var me *models.Error
		if errors.As(err, &me) && me.Kind == models.KindInsufficientPoints && me.Current != nil {
			e.session.SetPoints(acct.Email, *me.Current)
		}
		return err
	}
	e.session.SetPoints(acct.Email, u.Rewards)
	e.AddItem(item)
	e.log.Info("reward redeemed",
		zap.String("email", acct.Email),
		zap.String("item", item.ID),
		zap.Int64("points", item.PointsCost),
		zap.Int64("balance", u.Rewards))
	return nil
}

// SyncBalance replaces the cached balance with the ledger's.
func (e *Engine) SyncBalance(ctx context.Context) (int64, error) {
	email := e.session.Email()
	if email == "" {
		return 0, ErrNotSignedIn
	}
	if e.ledger == nil {
		return e.session.Points(), nil
	}
	bal, err := e.ledger.GetBalance(ctx, email)
	if err != nil {
		return 0, err
	}
	e.session.SetPoints(email, bal)
	return bal, nil
}

// Lines returns a snapshot of the cart in insertion order.
func (e *Engine) Lines() []Line {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Line, len(e.lines))
	copy(out, e.lines)
	return out
}

func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.lines)
}

// Wait blocks until queued refunds and credits have finished.
func (e *Engine) Wait() { e.tasks.Wait() }

// Close drains the engine's own task queue. Shared queues are left open.
func (e *Engine) Close() {
	if e.ownQ {
		e.tasks.Close()
		return
	}
	e.tasks.Wait()
}
