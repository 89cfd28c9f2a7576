// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/tripshare/internal/models"
	"github.com/mmynk/tripshare/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateTrip persists a new trip with its roster.
func (s *SQLiteStore) CreateTrip(ctx context.Context, trip *models.Trip) error {
	if trip.ID == "" {
		trip.ID = uuid.New().String()
	}
	if trip.CreatedAt == 0 {
		trip.CreatedAt = time.Now().Unix()
	}
	trip.People = storage.PrepareRoster(trip.People)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO trips (id, owner_id, name, base_currency, created_at) VALUES (?, ?, ?, ?, ?)",
		trip.ID, trip.OwnerID, trip.Name, trip.BaseCurrency, trip.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trip: %w", err)
	}
	if err := insertPeople(ctx, tx, trip.ID, trip.People); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertPeople(ctx context.Context, tx *sql.Tx, tripID string, people []models.Person) error {
	for i, p := range people {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO people (trip_id, id, name, merged_with_id, position) VALUES (?, ?, ?, ?, ?)",
			tripID, p.ID, p.Name, p.MergedWithID, i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert person: %w", err)
		}
	}
	return nil
}

// GetTrip retrieves a trip by ID, including people and expenses.
func (s *SQLiteStore) GetTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	trip := &models.Trip{People: []models.Person{}, Expenses: []models.Expense{}}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, owner_id, name, base_currency, created_at FROM trips WHERE id = ?",
		tripID,
	).Scan(&trip.ID, &trip.OwnerID, &trip.Name, &trip.BaseCurrency, &trip.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("trip %s: %w", tripID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, merged_with_id FROM people WHERE trip_id = ? ORDER BY position",
		tripID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get people: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.Person
		if err := rows.Scan(&p.ID, &p.Name, &p.MergedWithID); err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		trip.People = append(trip.People, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate people: %w", err)
	}

	expenseRows, err := s.db.QueryContext(ctx, `
		SELECT id, description, category, amount, currency, exchange_rate, paid_by_id, split_all, split_among, date
		FROM expenses WHERE trip_id = ? ORDER BY date DESC, id DESC`,
		tripID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get expenses: %w", err)
	}
	defer expenseRows.Close()

	for expenseRows.Next() {
		var (
			e          models.Expense
			splitAll   bool
			splitAmong string
		)
		if err := expenseRows.Scan(&e.ID, &e.Description, &e.Category, &e.Amount, &e.Currency,
			&e.ExchangeRate, &e.PaidByID, &splitAll, &splitAmong, &e.Date); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		if splitAll {
			e.SplitAmongIDs = models.SplitAll()
		} else {
			var ids []string
			if err := json.Unmarshal([]byte(splitAmong), &ids); err != nil {
				return nil, fmt.Errorf("failed to decode split of expense %s: %w", e.ID, err)
			}
			e.SplitAmongIDs = models.SplitBetween(ids...)
		}
		trip.Expenses = append(trip.Expenses, e)
	}
	if err := expenseRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	return trip, nil
}

// ListTrips returns summaries of the owner's trips, newest first.
func (s *SQLiteStore) ListTrips(ctx context.Context, ownerID string) ([]models.TripSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.base_currency, t.created_at,
		       (SELECT COUNT(*) FROM people p WHERE p.trip_id = t.id),
		       (SELECT COUNT(*) FROM expenses e WHERE e.trip_id = t.id)
		FROM trips t
		WHERE t.owner_id = ?
		ORDER BY t.created_at DESC, t.id`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}
	defer rows.Close()

	trips := []models.TripSummary{}
	for rows.Next() {
		var t models.TripSummary
		if err := rows.Scan(&t.ID, &t.Name, &t.BaseCurrency, &t.CreatedAt, &t.People, &t.Expenses); err != nil {
			return nil, fmt.Errorf("failed to scan trip: %w", err)
		}
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trips: %w", err)
	}
	return trips, nil
}

// UpdatePeople replaces the trip's roster.
func (s *SQLiteStore) UpdatePeople(ctx context.Context, tripID string, people []models.Person) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := requireTrip(ctx, tx, tripID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM people WHERE trip_id = ?", tripID); err != nil {
		return fmt.Errorf("failed to clear people: %w", err)
	}
	if err := insertPeople(ctx, tx, tripID, people); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SaveExpense inserts or updates an expense.
func (s *SQLiteStore) SaveExpense(ctx context.Context, tripID string, expense *models.Expense) error {
	splitAmong, err := json.Marshal(expense.SplitAmongIDs.IDs)
	if err != nil {
		return fmt.Errorf("failed to encode split: %w", err)
	}
	if expense.SplitAmongIDs.IDs == nil {
		splitAmong = []byte("[]")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := requireTrip(ctx, tx, tripID); err != nil {
		return err
	}

	if expense.ID == "" {
		expense.ID = uuid.New().String()
		if expense.Date == 0 {
			expense.Date = time.Now().UnixMilli()
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO expenses (id, trip_id, description, category, amount, currency, exchange_rate,
			                      paid_by_id, split_all, split_among, date)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			expense.ID, tripID, expense.Description, expense.Category, expense.Amount, expense.Currency,
			expense.ExchangeRate, expense.PaidByID, expense.SplitAmongIDs.All, string(splitAmong), expense.Date,
		)
		if err != nil {
			return fmt.Errorf("failed to insert expense: %w", err)
		}
	} else {
		err = tx.QueryRowContext(ctx, `
			UPDATE expenses
			SET description = ?, category = ?, amount = ?, currency = ?, exchange_rate = ?,
			    paid_by_id = ?, split_all = ?, split_among = ?
			WHERE id = ? AND trip_id = ?
			RETURNING date`,
			expense.Description, expense.Category, expense.Amount, expense.Currency, expense.ExchangeRate,
			expense.PaidByID, expense.SplitAmongIDs.All, string(splitAmong), expense.ID, tripID,
		).Scan(&expense.Date)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("expense %s: %w", expense.ID, storage.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to update expense: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteExpense removes an expense from a trip.
func (s *SQLiteStore) DeleteExpense(ctx context.Context, tripID, expenseID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ? AND trip_id = ?", expenseID, tripID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	return nil
}

func requireTrip(ctx context.Context, tx *sql.Tx, tripID string) error {
	var one int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM trips WHERE id = ?", tripID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("trip %s: %w", tripID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to look up trip: %w", err)
	}
	return nil
}
