package memory

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"travelshare/internal/core"
)

// Store keeps expenses in process memory.
type Store struct {
	mu    sync.Mutex
	items []core.Expense
}

func New() *Store {
	return &Store{}
}

// NewWithDemoTrip returns a store holding a small three-person trip, handy
// for local runs without a database.
func NewWithDemoTrip(now time.Time) *Store {
	share := func(id, expenseID, userID int64, amount int64) core.ExpenseShare {
		return core.ExpenseShare{ID: id, ExpenseID: expenseID, UserID: userID, Amount: decimal.NewFromInt(amount)}
	}
	return &Store{items: []core.Expense{
		{
			ID: 1, TripID: 1, PaidByUserID: 1,
			Amount:      decimal.NewFromInt(90),
			Description: "Dinner at local restaurant",
			CreatedAt:   now.AddDate(0, 0, -3),
			Shares:      []core.ExpenseShare{share(1, 1, 1, 30), share(2, 1, 2, -30), share(3, 1, 3, -30)},
		},
		{
			ID: 2, TripID: 1, PaidByUserID: 2,
			Amount:      decimal.NewFromInt(120),
			Description: "Train tickets",
			CreatedAt:   now.AddDate(0, 0, -2),
			Shares:      []core.ExpenseShare{share(4, 2, 1, -40), share(5, 2, 3, -40), share(6, 2, 2, 40)},
		},
		{
			ID: 3, TripID: 1, PaidByUserID: 3,
			Amount:      decimal.NewFromInt(60),
			Description: "Taxi to hotel",
			CreatedAt:   now.AddDate(0, 0, -1),
			Shares:      []core.ExpenseShare{share(7, 3, 1, -20), share(8, 3, 2, -20), share(9, 3, 3, 20)},
		},
	}}
}

// Create assigns the next expense id and fills in missing share ids.
func (s *Store) Create(_ context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e = e.Clone()
	e.ID = s.maxIDLocked() + 1
	s.ownSharesLocked(&e)
	s.items = append(s.items, e)
	return e.Clone(), nil
}

func (s *Store) GetAll(_ context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Expense, 0, len(s.items))
	for _, e := range s.items {
		out = append(out, e.Clone())
	}
	return out, nil
}

func (s *Store) GetByID(_ context.Context, id int64) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.items[i].Clone(), nil
	}
	return core.Expense{}, core.ErrNotFound
}

func (s *Store) ListByTrip(_ context.Context, tripID int64) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Expense
	for _, e := range s.items {
		if e.TripID == tripID {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

func (s *Store) Update(_ context.Context, e core.Expense) (bool, error) {
	if err := e.Validate(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(e.ID)
	if i < 0 {
		return false, nil
	}
	e = e.Clone()
	s.ownSharesLocked(&e)
	s.items[i] = e
	return true, nil
}

func (s *Store) Delete(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return false, nil
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return true, nil
}

func (s *Store) MaxShareID(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxShareIDLocked(), nil
}

func (s *Store) indexLocked(id int64) int {
	for i, e := range s.items {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) maxIDLocked() int64 {
	var max int64
	for _, e := range s.items {
		if e.ID > max {
			max = e.ID
		}
	}
	return max
}

func (s *Store) maxShareIDLocked() int64 {
	var max int64
	for _, e := range s.items {
		for _, sh := range e.Shares {
			if sh.ID > max {
				max = sh.ID
			}
		}
	}
	return max
}

// ownSharesLocked points every share at e and numbers the ones without an id.
func (s *Store) ownSharesLocked(e *core.Expense) {
	next := s.maxShareIDLocked()
	for _, sh := range e.Shares {
		if sh.ID > next {
			next = sh.ID
		}
	}
	for i := range e.Shares {
		e.Shares[i].ExpenseID = e.ID
		if e.Shares[i].ID <= 0 {
			next++
			e.Shares[i].ID = next
		}
	}
}
