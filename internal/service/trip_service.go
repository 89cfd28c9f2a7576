package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/tripshare/internal/calculator"
	"github.com/mmynk/tripshare/internal/metrics"
	"github.com/mmynk/tripshare/internal/middleware"
	"github.com/mmynk/tripshare/internal/models"
	"github.com/mmynk/tripshare/internal/storage"
)

// RateSource converts between currencies. Implementations fall back to 1
// rather than fail.
type RateSource interface {
	Rate(ctx context.Context, from, to string) float64
}

// TripService implements the TripService RPC interface. Every procedure
// acts on behalf of the authenticated user, who may only see their own
// trips.
type TripService struct {
	store   storage.TripStore
	rates   RateSource
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewTripService creates a TripService with the given storage backend.
func NewTripService(store storage.TripStore, rates RateSource, m *metrics.Metrics, logger *slog.Logger) *TripService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TripService{store: store, rates: rates, metrics: m, logger: logger}
}

// Handlers returns the service's procedures keyed by path.
func (s *TripService) Handlers(opts ...connect.HandlerOption) map[string]http.Handler {
	return map[string]http.Handler{
		CreateTripProcedure:    unary(CreateTripProcedure, s.CreateTrip, opts...),
		GetTripProcedure:       unary(GetTripProcedure, s.GetTrip, opts...),
		ListTripsProcedure:     unary(ListTripsProcedure, s.ListTrips, opts...),
		UpdatePeopleProcedure:  unary(UpdatePeopleProcedure, s.UpdatePeople, opts...),
		SaveExpenseProcedure:   unary(SaveExpenseProcedure, s.SaveExpense, opts...),
		DeleteExpenseProcedure: unary(DeleteExpenseProcedure, s.DeleteExpense, opts...),
		GetBalancesProcedure:   unary(GetBalancesProcedure, s.GetBalances, opts...),
	}
}

func invalid(format string, args ...any) error {
	return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf(format, args...))
}

// storeError maps storage errors onto Connect codes.
func storeError(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return connect.NewError(connect.CodeNotFound, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}

func caller(ctx context.Context) (string, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, errors.New("authentication required"))
	}
	return userID, nil
}

// ownedTrip loads a trip and checks that the caller owns it.
func (s *TripService) ownedTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if tripID == "" {
		return nil, invalid("tripId is required")
	}
	trip, err := s.store.GetTrip(ctx, tripID)
	if err != nil {
		s.logger.Warn("GetTrip failed", "trip_id", tripID, "error", err)
		return nil, storeError(err)
	}
	if trip.OwnerID != userID {
		return nil, connect.NewError(connect.CodePermissionDenied, fmt.Errorf("trip %s belongs to another user", tripID))
	}
	return trip, nil
}

// validatePeople checks a roster and returns it ready for storage. Links to
// people not on the roster are dropped; self links and one-sided links
// between present people are rejected.
func validatePeople(people []models.Person) ([]models.Person, error) {
	prepared := storage.PrepareRoster(people)
	byID := make(map[string]models.Person, len(prepared))
	for i := range prepared {
		p := &prepared[i]
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			return nil, invalid("person %d has no name", i+1)
		}
		if _, dup := byID[p.ID]; dup {
			return nil, invalid("duplicate person id %s", p.ID)
		}
		byID[p.ID] = *p
	}
	for _, p := range prepared {
		if p.MergedWithID == "" {
			continue
		}
		if p.MergedWithID == p.ID {
			return nil, invalid("%s cannot be merged with themselves", p.Name)
		}
		if partner := byID[p.MergedWithID]; partner.MergedWithID != p.ID {
			return nil, invalid("merge between %s and %s must be set on both people", p.Name, partner.Name)
		}
	}
	return prepared, nil
}

// CreateTrip creates a trip owned by the caller.
func (s *TripService) CreateTrip(ctx context.Context, req *CreateTripRequest) (*TripResponse, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("CreateTrip request received", "name", req.Name, "people_count", len(req.People))

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalid("trip name is required")
	}
	base := strings.ToUpper(strings.TrimSpace(req.BaseCurrency))
	if base == "" {
		base = calculator.DefaultBaseCurrency
	}
	if !calculator.IsSupportedCurrency(base) {
		return nil, invalid("unsupported base currency %q", req.BaseCurrency)
	}
	people, err := validatePeople(req.People)
	if err != nil {
		return nil, err
	}

	trip := &models.Trip{Name: name, BaseCurrency: base, People: people, OwnerID: userID}
	if err := s.store.CreateTrip(ctx, trip); err != nil {
		s.logger.Error("CreateTrip failed", "error", err)
		return nil, storeError(err)
	}
	trip.Expenses = []models.Expense{}

	s.logger.Info("Trip created", "trip_id", trip.ID)
	return &TripResponse{Trip: trip}, nil
}

// GetTrip returns a trip with its people and expenses.
func (s *TripService) GetTrip(ctx context.Context, req *GetTripRequest) (*TripResponse, error) {
	trip, err := s.ownedTrip(ctx, req.TripID)
	if err != nil {
		return nil, err
	}
	return &TripResponse{Trip: trip}, nil
}

// ListTrips lists the caller's trips, newest first.
func (s *TripService) ListTrips(ctx context.Context, _ *ListTripsRequest) (*ListTripsResponse, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	trips, err := s.store.ListTrips(ctx, userID)
	if err != nil {
		s.logger.Error("ListTrips failed", "error", err)
		return nil, storeError(err)
	}
	s.logger.Info("ListTrips successful", "count", len(trips))
	return &ListTripsResponse{Trips: trips}, nil
}

// UpdatePeople replaces a trip's roster.
func (s *TripService) UpdatePeople(ctx context.Context, req *UpdatePeopleRequest) (*TripResponse, error) {
	if _, err := s.ownedTrip(ctx, req.TripID); err != nil {
		return nil, err
	}
	people, err := validatePeople(req.People)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdatePeople(ctx, req.TripID, people); err != nil {
		s.logger.Error("UpdatePeople failed", "trip_id", req.TripID, "error", err)
		return nil, storeError(err)
	}
	trip, err := s.store.GetTrip(ctx, req.TripID)
	if err != nil {
		return nil, storeError(err)
	}
	s.logger.Info("People updated", "trip_id", req.TripID, "people_count", len(people))
	return &TripResponse{Trip: trip}, nil
}

// SaveExpense adds or edits an expense. A foreign-currency expense without
// a rate gets the current rate to the trip's base currency.
func (s *TripService) SaveExpense(ctx context.Context, req *SaveExpenseRequest) (*ExpenseResponse, error) {
	trip, err := s.ownedTrip(ctx, req.TripID)
	if err != nil {
		return nil, err
	}

	e := req.Expense
	e.Description = strings.TrimSpace(e.Description)
	if e.Description == "" {
		return nil, invalid("description is required")
	}
	if !(e.Amount > 0) || math.IsInf(e.Amount, 0) {
		return nil, invalid("amount must be a positive number")
	}
	e.Currency = strings.ToUpper(strings.TrimSpace(e.Currency))
	if e.Currency == "" {
		e.Currency = trip.BaseCurrency
	}
	if !calculator.IsSupportedCurrency(e.Currency) {
		return nil, invalid("unsupported currency %q", e.Currency)
	}
	if _, ok := trip.FindPerson(e.PaidByID); !ok {
		return nil, invalid("payer %q is not on the trip", e.PaidByID)
	}
	if !e.SplitAmongIDs.All {
		if len(e.SplitAmongIDs.IDs) == 0 {
			return nil, invalid("expense must be split among at least one person")
		}
		for _, id := range e.SplitAmongIDs.IDs {
			if _, ok := trip.FindPerson(id); !ok {
				return nil, invalid("participant %q is not on the trip", id)
			}
		}
	}

	switch {
	case e.ExchangeRate < 0 || math.IsNaN(e.ExchangeRate) || math.IsInf(e.ExchangeRate, 0):
		return nil, invalid("exchange rate must be positive")
	case e.Currency == trip.BaseCurrency:
		e.ExchangeRate = 1
	case e.ExchangeRate == 0 && s.rates != nil:
		e.ExchangeRate = s.rates.Rate(ctx, e.Currency, trip.BaseCurrency)
	}

	if err := s.store.SaveExpense(ctx, trip.ID, &e); err != nil {
		s.logger.Error("SaveExpense failed", "trip_id", trip.ID, "error", err)
		return nil, storeError(err)
	}
	s.logger.Info("Expense saved", "trip_id", trip.ID, "expense_id", e.ID)
	return &ExpenseResponse{Expense: e}, nil
}

// DeleteExpense removes an expense.
func (s *TripService) DeleteExpense(ctx context.Context, req *DeleteExpenseRequest) (*Empty, error) {
	if _, err := s.ownedTrip(ctx, req.TripID); err != nil {
		return nil, err
	}
	if err := s.store.DeleteExpense(ctx, req.TripID, req.ExpenseID); err != nil {
		s.logger.Warn("DeleteExpense failed", "trip_id", req.TripID, "expense_id", req.ExpenseID, "error", err)
		return nil, storeError(err)
	}
	s.logger.Info("Expense deleted", "trip_id", req.TripID, "expense_id", req.ExpenseID)
	return &Empty{}, nil
}

// GetBalances computes group balances and the settlements that clear them.
func (s *TripService) GetBalances(ctx context.Context, req *GetBalancesRequest) (*GetBalancesResponse, error) {
	trip, err := s.ownedTrip(ctx, req.TripID)
	if err != nil {
		return nil, err
	}

	balances := calculator.CalculateBalances(*trip)
	settlements := calculator.OptimizeSettlements(balances)
	s.metrics.Settlements(len(settlements))

	names := make(map[string]string, len(trip.People))
	for _, p := range trip.People {
		names[p.ID] = p.Name
	}
	groupName := func(key string) string {
		members := calculator.GroupMembers(key)
		parts := make([]string, len(members))
		for i, id := range members {
			parts[i] = names[id]
		}
		return strings.Join(parts, " & ")
	}

	resp := &GetBalancesResponse{
		BaseCurrency: trip.BaseCurrency,
		Balances:     make([]GroupBalance, 0, len(balances)),
		Settlements:  make([]SettlementView, 0, len(settlements)),
	}
	for key, b := range balances {
		resp.Balances = append(resp.Balances, GroupBalance{
			Key:        key,
			Name:       groupName(key),
			Members:    b.Members,
			IsMerged:   b.IsMerged,
			TotalPaid:  b.TotalPaid,
			Share:      b.Share,
			NetBalance: b.NetBalance,
			Settled:    calculator.IsSettled(b.NetBalance),
		})
	}
	sort.Slice(resp.Balances, func(i, j int) bool { return resp.Balances[i].Key < resp.Balances[j].Key })
	for _, st := range settlements {
		resp.Settlements = append(resp.Settlements, SettlementView{
			Settlement: st,
			FromName:   groupName(st.From),
			ToName:     groupName(st.To),
		})
	}

	s.logger.Info("Balances computed", "trip_id", trip.ID, "groups", len(balances), "settlements", len(settlements))
	return resp, nil
}
