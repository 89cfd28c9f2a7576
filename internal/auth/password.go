package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/tripshare/internal/models"
	"github.com/mmynk/tripshare/internal/storage"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrInvalidUsername    = errors.New("username must be 3 to 32 characters without spaces")
	ErrUsernameTaken      = errors.New("username already registered")
)

// UserStorage defines the interface for user persistence operations.
// This allows the authenticator to be independent of the storage implementation.
type UserStorage interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// PasswordAuthenticator implements password-based authentication using bcrypt.
type PasswordAuthenticator struct {
	storage UserStorage
	cost    int
}

// NewPasswordAuthenticator creates a new password-based authenticator.
func NewPasswordAuthenticator(storage UserStorage) *PasswordAuthenticator {
	return &PasswordAuthenticator{
		storage: storage,
		cost:    bcrypt.DefaultCost,
	}
}

// WithCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (a *PasswordAuthenticator) WithCost(cost int) *PasswordAuthenticator {
	a.cost = cost
	return a
}

// NormalizeUsername trims and lower-cases a username.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func validateUsername(username string) error {
	if len(username) < 3 || len(username) > 32 || strings.ContainsAny(username, " \t\n") {
		return ErrInvalidUsername
	}
	return nil
}

// ValidateCredential checks if the password meets minimum requirements.
func (a *PasswordAuthenticator) ValidateCredential(credential string) error {
	if len(credential) < MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

// Register creates a new user account with a hashed password.
func (a *PasswordAuthenticator) Register(ctx context.Context, username, credential string) (*models.User, error) {
	username = NormalizeUsername(username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := a.ValidateCredential(credential); err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(credential), a.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.NewUser(username, string(hashedPassword))
	if err := a.storage.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Authenticate verifies the username and password, returning the user if valid.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, username, credential string) (*models.User, error) {
	user, err := a.storage.GetUserByUsername(ctx, NormalizeUsername(username))
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(credential)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}
