package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"travelshare/internal/cache"
	"travelshare/internal/core"
	applog "travelshare/internal/log"
	"travelshare/internal/payment"
	"travelshare/internal/report"
	"travelshare/internal/split"
	"travelshare/internal/storage"
)

var (
	// ErrNotPayable means the share does not exist or is not owed.
	ErrNotPayable = errors.New("share is not payable")
	// ErrExportDisabled means no report exporter is configured.
	ErrExportDisabled = errors.New("report export is not configured")
)

// UserDirectory is the part of the user directory the service reads.
type UserDirectory interface {
	ByID(id int64) (core.User, bool)
	All() []core.User
}

// ReportExporter publishes a trip report somewhere and returns a reference
// to what it wrote.
type ReportExporter interface {
	ExportReport(ctx context.Context, r core.ReportSummary) (string, error)
}

// Deps wires an ExpenseService. Store, Users and Authorize are required.
type Deps struct {
	Store       storage.ExpenseStore
	Users       UserDirectory
	Calculator  *split.Calculator
	Authorize   payment.AuthorizeFunc
	Exporter    ReportExporter
	ReportCache cache.Cache[int64, core.ReportSummary]
	Logger      *applog.Logger
	Now         func() time.Time
}

// ExpenseService is the entry point for expense, report and payment
// operations. Share id assignment and writes are serialised by mu.
type ExpenseService struct {
	mu         sync.Mutex
	store      storage.ExpenseStore
	users      UserDirectory
	calc       *split.Calculator
	authorize  payment.AuthorizeFunc
	exporter   ReportExporter
	reports    cache.Cache[int64, core.ReportSummary]
	reportsGen atomic.Uint64
	flight     singleflight.Group
	logger     *applog.Logger
	now        func() time.Time
}

func NewExpenseService(d Deps) *ExpenseService {
	s := &ExpenseService{
		store:     d.Store,
		users:     d.Users,
		calc:      d.Calculator,
		authorize: d.Authorize,
		exporter:  d.Exporter,
		reports:   d.ReportCache,
		logger:    d.Logger,
		now:       d.Now,
	}
	if s.calc == nil {
		s.calc = split.NewCalculator(split.DefaultPolicy)
	}
	if s.authorize == nil {
		s.authorize = payment.Authorize
	}
	if s.logger == nil {
		s.logger = applog.Discard()
	}
	s.logger = s.logger.WithComponent(applog.ComponentExpense)
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CreateExpenseInput describes a new expense. PayerID defaults to the first
// participant in PaidUserIDs.
type CreateExpenseInput struct {
	TripID         int64
	PayerID        int64
	Amount         decimal.Decimal
	Description    string
	ParticipantIDs []int64
	PaidUserIDs    []int64
}

func (in CreateExpenseInput) payer() int64 {
	if in.PayerID > 0 {
		return in.PayerID
	}
	participants := map[int64]bool{}
	for _, id := range in.ParticipantIDs {
		participants[id] = true
	}
	for _, id := range in.PaidUserIDs {
		if participants[id] {
			return id
		}
	}
	return 0
}

// CreateExpense splits the amount among the participants and stores the
// expense with its shares.
func (s *ExpenseService) CreateExpense(ctx context.Context, in CreateExpenseInput) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.buildExpense(ctx, in, 0)
	if err != nil {
		return core.Expense{}, err
	}
	e.CreatedAt = s.now()

	created, err := s.store.Create(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", asValidation(err))
	}
	s.invalidateReports(created.TripID)

	s.logger.InfoContext(ctx, "Expense created",
		applog.NewFields().
			WithExpense(created.ID, created.TripID, created.Amount).
			WithUser(created.PaidByUserID).
			WithOperation(applog.OpCreate).
			ToSlice()...)
	return created, nil
}

// buildExpense validates in and computes shares numbered after the store's
// current maximum. Callers hold s.mu.
func (s *ExpenseService) buildExpense(ctx context.Context, in CreateExpenseInput, expenseID int64) (core.Expense, error) {
	e := core.Expense{
		ID:           expenseID,
		TripID:       in.TripID,
		PaidByUserID: in.payer(),
		Amount:       in.Amount,
		Description:  strings.TrimSpace(in.Description),
	}
	if !e.Amount.IsPositive() {
		return core.Expense{}, asValidation(core.ErrInvalidAmount)
	}
	if len(in.ParticipantIDs) == 0 {
		return core.Expense{}, asValidation(core.ErrDivision)
	}

	maxShareID, err := s.store.MaxShareID(ctx)
	if err != nil {
		return core.Expense{}, fmt.Errorf("read max share id: %w", err)
	}
	shares, err := s.calc.Shares(split.Input{
		Amount:         in.Amount,
		ParticipantIDs: in.ParticipantIDs,
		PaidUserIDs:    in.PaidUserIDs,
		PayerID:        e.PaidByUserID,
		FirstShareID:   maxShareID + 1,
		ExpenseID:      expenseID,
	})
	if err != nil {
		return core.Expense{}, asValidation(err)
	}
	e.Shares = shares

	if err := e.Validate(); err != nil {
		return core.Expense{}, asValidation(err)
	}
	return e, nil
}

func (s *ExpenseService) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	e, err := s.store.GetByID(ctx, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, err)
	}
	return e, nil
}

// ListExpenses returns the expenses of tripID, or every expense when tripID
// is zero.
func (s *ExpenseService) ListExpenses(ctx context.Context, tripID int64) ([]core.Expense, error) {
	var (
		out []core.Expense
		err error
	)
	if tripID > 0 {
		out, err = s.store.ListByTrip(ctx, tripID)
	} else {
		out, err = s.store.GetAll(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return out, nil
}

// UpdateExpense replaces an expense and recomputes its shares. The creation
// time is kept.
func (s *ExpenseService) UpdateExpense(ctx context.Context, id int64, in CreateExpenseInput) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, err)
	}
	e, err := s.buildExpense(ctx, in, id)
	if err != nil {
		return core.Expense{}, err
	}
	e.CreatedAt = existing.CreatedAt

	ok, err := s.store.Update(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", id, asValidation(err))
	}
	if !ok {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", id, core.ErrNotFound)
	}
	s.invalidateReports(existing.TripID, e.TripID)

	s.logger.InfoContext(ctx, "Expense updated",
		applog.NewFields().WithExpense(e.ID, e.TripID, e.Amount).WithOperation(applog.OpUpdate).ToSlice()...)
	return e, nil
}

// DeleteExpense removes an expense and its shares. Unknown ids fail with
// core.ErrNotFound and leave the store untouched.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	ok, err := s.store.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("delete expense %d: %w", id, core.ErrNotFound)
	}
	s.invalidateReports(existing.TripID)

	s.logger.InfoContext(ctx, "Expense deleted",
		applog.NewFields().WithExpense(id, existing.TripID, existing.Amount).WithOperation(applog.OpDelete).ToSlice()...)
	return nil
}

// ComputeTripReport returns the balances and settlements of tripID. Reports
// are cached until the trip changes and concurrent requests for the same
// trip share one computation.
func (s *ExpenseService) ComputeTripReport(ctx context.Context, tripID int64) (core.ReportSummary, error) {
	if s.reports != nil {
		if r, ok := s.reports.Get(tripID); ok {
			return r, nil
		}
	}

	v, err, _ := s.flight.Do(strconv.FormatInt(tripID, 10), func() (any, error) {
		gen := s.reportsGen.Load()
		// Shared by every waiting caller, so one caller leaving must not fail the rest.
		ctx := context.WithoutCancel(ctx)
		expenses, err := s.store.ListByTrip(ctx, tripID)
		if err != nil {
			return core.ReportSummary{}, fmt.Errorf("list trip %d expenses: %w", tripID, err)
		}
		r := report.Compute(tripID, expenses, s.users, s.now())
		if s.reports != nil && s.reportsGen.Load() == gen {
			s.reports.Set(tripID, r)
		}
		s.logger.DebugContext(ctx, "Trip report computed",
			applog.FieldTripID, tripID, "users", len(r.UserBalances), "transfers", len(r.Settlements))
		return r, nil
	})
	if err != nil {
		return core.ReportSummary{}, err
	}
	return v.(core.ReportSummary), nil
}

func (s *ExpenseService) invalidateReports(tripIDs ...int64) {
	s.reportsGen.Add(1)
	if s.reports == nil {
		return
	}
	for _, id := range tripIDs {
		s.reports.Delete(id)
	}
}

// ExportReport computes the trip report and hands it to the exporter.
func (s *ExpenseService) ExportReport(ctx context.Context, tripID int64) (string, error) {
	if s.exporter == nil {
		return "", ErrExportDisabled
	}
	r, err := s.ComputeTripReport(ctx, tripID)
	if err != nil {
		return "", err
	}
	ref, err := s.exporter.ExportReport(ctx, r)
	if err != nil {
		return "", fmt.Errorf("export trip %d report: %w", tripID, err)
	}
	s.logger.InfoContext(ctx, "Trip report exported",
		applog.FieldTripID, tripID, applog.FieldOperation, applog.OpExport, "ref", ref)
	return ref, nil
}

// Users lists the user directory.
func (s *ExpenseService) Users() []core.User {
	if s.users == nil {
		return nil
	}
	return s.users.All()
}

// Close releases the store when it holds resources.
func (s *ExpenseService) Close() error {
	if c, ok := s.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close expense store: %w", err)
		}
	}
	return nil
}

// asValidation tags domain validation failures with core.ErrValidation so
// callers can branch on a single kind.
func asValidation(err error) error {
	switch {
	case errors.Is(err, core.ErrValidation):
		return err
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrDescriptionLong),
		errors.Is(err, core.ErrInvalidTrip),
		errors.Is(err, core.ErrInvalidPayer),
		errors.Is(err, core.ErrNoShares),
		errors.Is(err, core.ErrDivision):
		return fmt.Errorf("%w: %w", core.ErrValidation, err)
	default:
		return err
	}
}
