package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"travelshare/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is an ExpenseStore backed by a SQLite file.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection serialises writers so max+1 id assignment cannot race.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Create(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	e = e.Clone()

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var maxID int64
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM expenses`).Scan(&maxID); err != nil {
			return fmt.Errorf("select max expense id: %w", err)
		}
		e.ID = maxID + 1

		_, err := tx.ExecContext(ctx,
			`INSERT INTO expenses (id, trip_id, paid_by_user_id, amount, description, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			e.ID, e.TripID, e.PaidByUserID, e.Amount.String(), e.Description, e.CreatedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}
		return insertShares(ctx, tx, &e)
	})
	if err != nil {
		return core.Expense{}, err
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"trip_id", e.TripID,
		"amount", e.Amount.String(),
		"shares", len(e.Shares))

	return e, nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]core.Expense, error) {
	return r.list(ctx, `WHERE 1 = 1`)
}

func (r *SQLiteRepository) ListByTrip(ctx context.Context, tripID int64) ([]core.Expense, error) {
	return r.list(ctx, `WHERE e.trip_id = ?`, tripID)
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (core.Expense, error) {
	out, err := r.list(ctx, `WHERE e.id = ?`, id)
	if err != nil {
		return core.Expense{}, err
	}
	if len(out) == 0 {
		return core.Expense{}, core.ErrNotFound
	}
	return out[0], nil
}

func (r *SQLiteRepository) Update(ctx context.Context, e core.Expense) (bool, error) {
	if err := e.Validate(); err != nil {
		return false, err
	}
	e = e.Clone()

	found := false
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE expenses SET trip_id = ?, paid_by_user_id = ?, amount = ?, description = ?, created_at = ? WHERE id = ?`,
			e.TripID, e.PaidByUserID, e.Amount.String(), e.Description, e.CreatedAt.UTC().Format(time.RFC3339Nano), e.ID)
		if err != nil {
			return fmt.Errorf("update expense %d: %w", e.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return nil
		}
		found = true
		if _, err := tx.ExecContext(ctx, `DELETE FROM expense_shares WHERE expense_id = ?`, e.ID); err != nil {
			return fmt.Errorf("delete shares of expense %d: %w", e.ID, err)
		}
		return insertShares(ctx, tx, &e)
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) (bool, error) {
	found := false
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM expense_shares WHERE expense_id = ?`, id); err != nil {
			return fmt.Errorf("delete shares of expense %d: %w", id, err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete expense %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		found = n > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

func (r *SQLiteRepository) MaxShareID(ctx context.Context) (int64, error) {
	var max int64
	if err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM expense_shares`).Scan(&max); err != nil {
		return 0, fmt.Errorf("select max share id: %w", err)
	}
	return max, nil
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// insertShares writes e's shares, numbering those without an id from the
// current maximum.
func insertShares(ctx context.Context, tx *sql.Tx, e *core.Expense) error {
	var next int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM expense_shares`).Scan(&next); err != nil {
		return fmt.Errorf("select max share id: %w", err)
	}
	for _, sh := range e.Shares {
		if sh.ID > next {
			next = sh.ID
		}
	}
	for i := range e.Shares {
		sh := &e.Shares[i]
		sh.ExpenseID = e.ID
		if sh.ID <= 0 {
			next++
			sh.ID = next
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO expense_shares (id, expense_id, user_id, amount, position) VALUES (?, ?, ?, ?, ?)`,
			sh.ID, sh.ExpenseID, sh.UserID, sh.Amount.String(), i)
		if err != nil {
			return fmt.Errorf("insert share %d: %w", sh.ID, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) list(ctx context.Context, where string, args ...any) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT e.id, e.trip_id, e.paid_by_user_id, e.amount, e.description, e.created_at
		 FROM expenses e `+where+` ORDER BY e.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}

	var out []core.Expense
	index := map[int64]int{}
	for rows.Next() {
		var (
			e         core.Expense
			amount    string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.TripID, &e.PaidByUserID, &amount, &e.Description, &createdAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			rows.Close()
			return nil, fmt.Errorf("parse amount of expense %d: %w", e.ID, err)
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("parse created_at of expense %d: %w", e.ID, err)
		}
		index[e.ID] = len(out)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	rows.Close()

	if len(out) == 0 {
		return out, nil
	}

	shareRows, err := r.db.QueryContext(ctx,
		`SELECT s.id, s.expense_id, s.user_id, s.amount
		 FROM expense_shares s JOIN expenses e ON e.id = s.expense_id `+where+`
		 ORDER BY s.expense_id, s.position`, args...)
	if err != nil {
		return nil, fmt.Errorf("query shares: %w", err)
	}
	defer shareRows.Close()

	for shareRows.Next() {
		var (
			sh     core.ExpenseShare
			amount string
		)
		if err := shareRows.Scan(&sh.ID, &sh.ExpenseID, &sh.UserID, &amount); err != nil {
			return nil, fmt.Errorf("scan share: %w", err)
		}
		if sh.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse amount of share %d: %w", sh.ID, err)
		}
		if i, ok := index[sh.ExpenseID]; ok {
			out[i].Shares = append(out[i].Shares, sh)
		}
	}
	if err := shareRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shares: %w", err)
	}
	return out, nil
}
