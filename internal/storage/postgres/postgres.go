// Package postgres provides a PostgreSQL-backed implementation of the
// storage.Store interface on top of a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mmynk/tripshare/internal/models"
	"github.com/mmynk/tripshare/internal/storage"
)

var _ storage.Store = (*PostgresStore)(nil)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS trips (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL DEFAULT '',
    name TEXT NOT NULL,
    base_currency TEXT NOT NULL,
    created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS people (
    trip_id TEXT NOT NULL REFERENCES trips(id) ON DELETE CASCADE,
    id TEXT NOT NULL,
    name TEXT NOT NULL,
    merged_with_id TEXT NOT NULL DEFAULT '',
    position INTEGER NOT NULL,
    PRIMARY KEY (trip_id, id)
);

CREATE TABLE IF NOT EXISTS expenses (
    id TEXT PRIMARY KEY,
    trip_id TEXT NOT NULL REFERENCES trips(id) ON DELETE CASCADE,
    description TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    amount DOUBLE PRECISION NOT NULL,
    currency TEXT NOT NULL,
    exchange_rate DOUBLE PRECISION NOT NULL,
    paid_by_id TEXT NOT NULL,
    split_all BOOLEAN NOT NULL DEFAULT FALSE,
    split_among TEXT[] NOT NULL DEFAULT '{}',
    date BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trips_owner_id ON trips(owner_id);
CREATE INDEX IF NOT EXISTS idx_expenses_trip_id ON expenses(trip_id);
`

// PostgresStore implements storage.Store using PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// New connects to dsn, verifies the connection and applies the schema.
func New(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateTrip(ctx context.Context, trip *models.Trip) error {
	if trip.ID == "" {
		trip.ID = uuid.New().String()
	}
	if trip.CreatedAt == 0 {
		trip.CreatedAt = time.Now().Unix()
	}
	trip.People = storage.PrepareRoster(trip.People)

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO trips (id, owner_id, name, base_currency, created_at) VALUES ($1, $2, $3, $4, $5)`,
			trip.ID, trip.OwnerID, trip.Name, trip.BaseCurrency, trip.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert trip: %w", err)
		}
		return insertPeople(ctx, tx, trip.ID, trip.People)
	})
}

func insertPeople(ctx context.Context, tx pgx.Tx, tripID string, people []models.Person) error {
	if len(people) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i, p := range people {
		batch.Queue(
			`INSERT INTO people (trip_id, id, name, merged_with_id, position) VALUES ($1, $2, $3, $4, $5)`,
			tripID, p.ID, p.Name, p.MergedWithID, i,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert people: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	trip := &models.Trip{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, owner_id, name, base_currency, created_at FROM trips WHERE id = $1`, tripID,
	).Scan(&trip.ID, &trip.OwnerID, &trip.Name, &trip.BaseCurrency, &trip.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("trip %s: %w", tripID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}

	rows, _ := s.pool.Query(ctx,
		`SELECT id, name, merged_with_id FROM people WHERE trip_id = $1 ORDER BY position`, tripID)
	trip.People, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Person, error) {
		var p models.Person
		err := row.Scan(&p.ID, &p.Name, &p.MergedWithID)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get people: %w", err)
	}

	rows, _ = s.pool.Query(ctx, `
		SELECT id, description, category, amount, currency, exchange_rate, paid_by_id, split_all, split_among, date
		FROM expenses WHERE trip_id = $1 ORDER BY date DESC, id DESC`, tripID)
	trip.Expenses, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Expense, error) {
		var (
			e        models.Expense
			splitAll bool
			ids      []string
		)
		err := row.Scan(&e.ID, &e.Description, &e.Category, &e.Amount, &e.Currency,
			&e.ExchangeRate, &e.PaidByID, &splitAll, &ids, &e.Date)
		if splitAll {
			e.SplitAmongIDs = models.SplitAll()
		} else {
			e.SplitAmongIDs = models.SplitBetween(ids...)
		}
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get expenses: %w", err)
	}
	return trip, nil
}

func (s *PostgresStore) ListTrips(ctx context.Context, ownerID string) ([]models.TripSummary, error) {
	rows, _ := s.pool.Query(ctx, `
		SELECT t.id, t.name, t.base_currency, t.created_at,
		       (SELECT COUNT(*) FROM people p WHERE p.trip_id = t.id),
		       (SELECT COUNT(*) FROM expenses e WHERE e.trip_id = t.id)
		FROM trips t
		WHERE t.owner_id = $1
		ORDER BY t.created_at DESC, t.id`, ownerID)
	trips, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.TripSummary, error) {
		var t models.TripSummary
		err := row.Scan(&t.ID, &t.Name, &t.BaseCurrency, &t.CreatedAt, &t.People, &t.Expenses)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}
	return trips, nil
}

func (s *PostgresStore) UpdatePeople(ctx context.Context, tripID string, people []models.Person) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := requireTrip(ctx, tx, tripID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM people WHERE trip_id = $1`, tripID); err != nil {
			return fmt.Errorf("failed to clear people: %w", err)
		}
		return insertPeople(ctx, tx, tripID, people)
	})
}

func (s *PostgresStore) SaveExpense(ctx context.Context, tripID string, expense *models.Expense) error {
	ids := expense.SplitAmongIDs.IDs
	if ids == nil {
		ids = []string{}
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := requireTrip(ctx, tx, tripID); err != nil {
			return err
		}

		if expense.ID == "" {
			expense.ID = uuid.New().String()
			if expense.Date == 0 {
				expense.Date = time.Now().UnixMilli()
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO expenses (id, trip_id, description, category, amount, currency, exchange_rate,
				                      paid_by_id, split_all, split_among, date)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
				expense.ID, tripID, expense.Description, expense.Category, expense.Amount, expense.Currency,
				expense.ExchangeRate, expense.PaidByID, expense.SplitAmongIDs.All, ids, expense.Date,
			)
			if err != nil {
				return fmt.Errorf("failed to insert expense: %w", err)
			}
			return nil
		}

		err := tx.QueryRow(ctx, `
			UPDATE expenses
			SET description = $1, category = $2, amount = $3, currency = $4, exchange_rate = $5,
			    paid_by_id = $6, split_all = $7, split_among = $8
			WHERE id = $9 AND trip_id = $10
			RETURNING date`,
			expense.Description, expense.Category, expense.Amount, expense.Currency, expense.ExchangeRate,
			expense.PaidByID, expense.SplitAmongIDs.All, ids, expense.ID, tripID,
		).Scan(&expense.Date)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("expense %s: %w", expense.ID, storage.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to update expense: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) DeleteExpense(ctx context.Context, tripID, expenseID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1 AND trip_id = $2`, expenseID, tripID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	return nil
}

func requireTrip(ctx context.Context, tx pgx.Tx, tripID string) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM trips WHERE id = $1)`, tripID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to look up trip: %w", err)
	}
	if !exists {
		return fmt.Errorf("trip %s: %w", tripID, storage.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, username, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		user.ID, user.Username, user.PasswordHash, user.CreatedAt, user.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("username %q: %w", user.Username, storage.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, "username", username)
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, "id", id)
}

func (s *PostgresStore) getUser(ctx context.Context, column, value string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, created_at, updated_at FROM users WHERE `+column+` = $1`, value,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", value, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by %s: %w", column, err)
	}
	return user, nil
}
