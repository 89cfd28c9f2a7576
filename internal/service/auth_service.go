package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/tripshare/internal/auth"
	"github.com/mmynk/tripshare/internal/models"
)

// AuthService serves Register and Login. Both answer with the user and a
// session token.
type AuthService struct {
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	logger        *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(authenticator auth.Authenticator, jwtManager *auth.JWTManager, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		authenticator: authenticator,
		jwtManager:    jwtManager,
		logger:        logger,
	}
}

// Register creates a new user account.
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	user, err := s.authenticator.Register(ctx, req.Username, req.Password)
	if err != nil {
		s.logger.Warn("Registration failed", "username", req.Username, "error", err)
		switch {
		case errors.Is(err, auth.ErrUsernameTaken):
			return nil, connect.NewError(connect.CodeAlreadyExists, err)
		case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrInvalidUsername):
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	s.logger.Info("User registered", "user_id", user.ID, "username", user.Username)
	return s.session(user)
}

// Login authenticates a user and returns a JWT token.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	user, err := s.authenticator.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		s.logger.Warn("Login failed", "username", req.Username, "error", err)
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidCredentials)
	}

	s.logger.Info("User logged in", "user_id", user.ID)
	return s.session(user)
}

// session issues the token returned by Register and Login.
func (s *AuthService) session(user *models.User) (*AuthResponse, error) {
	token, err := s.jwtManager.Generate(user)
	if err != nil {
		s.logger.Error("Failed to generate token", "user_id", user.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return &AuthResponse{User: user, Token: token}, nil
}

// Handlers returns the service's procedures keyed by path.
func (s *AuthService) Handlers(opts ...connect.HandlerOption) map[string]http.Handler {
	return map[string]http.Handler{
		RegisterProcedure: unary(RegisterProcedure, s.Register, opts...),
		LoginProcedure:    unary(LoginProcedure, s.Login, opts...),
	}
}
