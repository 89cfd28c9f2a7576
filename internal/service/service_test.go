package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/tripshare/internal/auth"
	"github.com/mmynk/tripshare/internal/middleware"
	"github.com/mmynk/tripshare/internal/models"
	"github.com/mmynk/tripshare/internal/storage/sqlite"
)

type fakeRates struct {
	mu    sync.Mutex
	rate  float64
	calls []string
}

func (f *fakeRates) Rate(_ context.Context, from, to string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, from+"->"+to)
	return f.rate
}

type testEnv struct {
	client *Client
	rates  *fakeRates
}

// setupTestServer starts both services behind the same interceptors the
// server uses.
func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	authenticator := auth.NewPasswordAuthenticator(store).WithCost(bcrypt.MinCost)
	rates := &fakeRates{rate: 11.5}

	interceptors := connect.WithInterceptors(
		middleware.LoggingInterceptor(nil),
		middleware.RequireAuth(jwtManager, RegisterProcedure, LoginProcedure),
	)
	mux := http.NewServeMux()
	for path, h := range NewAuthService(authenticator, jwtManager, nil).Handlers(interceptors) {
		mux.Handle(path, h)
	}
	for path, h := range NewTripService(store, rates, nil, nil).Handlers(interceptors) {
		mux.Handle(path, h)
	}

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testEnv{client: NewClient(http.DefaultClient, server.URL), rates: rates}
}

// login registers a fresh user and returns a client carrying their token.
func (e *testEnv) login(t *testing.T, username string) *Client {
	t.Helper()
	resp, err := Call[RegisterRequest, AuthResponse](context.Background(), e.client, RegisterProcedure,
		&RegisterRequest{Username: username, Password: "password123"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
	return e.client.WithToken(resp.Token)
}

func codeOf(err error) connect.Code {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr.Code()
	}
	return connect.CodeUnknown
}

func createTrip(t *testing.T, c *Client, people ...models.Person) *models.Trip {
	t.Helper()
	resp, err := Call[CreateTripRequest, TripResponse](context.Background(), c, CreateTripProcedure,
		&CreateTripRequest{Name: "Lisbon", BaseCurrency: "EUR", People: people})
	require.NoError(t, err)
	return resp.Trip
}
