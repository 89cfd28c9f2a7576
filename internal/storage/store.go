// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/tripshare/internal/models"
)

var (
	// ErrNotFound is returned when a trip, expense or user does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a unique key (such as a username) is taken.
	ErrAlreadyExists = errors.New("already exists")
)

// TripStore persists trips with their roster and expenses.
type TripStore interface {
	// CreateTrip persists a new trip. ID and CreatedAt are filled in when
	// empty.
	CreateTrip(ctx context.Context, trip *models.Trip) error

	// GetTrip returns the trip with its people in roster order and its
	// expenses newest first.
	GetTrip(ctx context.Context, tripID string) (*models.Trip, error)

	// ListTrips returns the owner's trips, newest first.
	ListTrips(ctx context.Context, ownerID string) ([]models.TripSummary, error)

	// UpdatePeople replaces the roster. Callers should pass it through
	// PrepareRoster first.
	UpdatePeople(ctx context.Context, tripID string, people []models.Person) error

	// SaveExpense inserts the expense when its ID is empty and updates it
	// otherwise. Updates keep the stored date.
	SaveExpense(ctx context.Context, tripID string, expense *models.Expense) error

	// DeleteExpense removes one expense.
	DeleteExpense(ctx context.Context, tripID, expenseID string) error
}

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Store defines the interface for all storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL)
// without changing the service layer.
type Store interface {
	TripStore
	UserStore

	// Close releases any resources held by the store.
	Close() error
}
