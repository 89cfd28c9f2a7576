package service

import (
	"context"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/tripshare/internal/models"
)

func TestCreateAndGetTrip(t *testing.T) {
	env := setupTestServer(t)
	c := env.login(t, "alice")
	ctx := context.Background()

	trip := createTrip(t, c,
		models.Person{ID: "a", Name: " Ann ", MergedWithID: "b"},
		models.Person{ID: "b", Name: "Bo", MergedWithID: "a"},
		models.Person{Name: "Cy"},
	)
	assert.NotEmpty(t, trip.ID)
	assert.Equal(t, "EUR", trip.BaseCurrency)
	require.Len(t, trip.People, 3)
	assert.Equal(t, "Ann", trip.People[0].Name)
	assert.NotEmpty(t, trip.People[2].ID)

	got, err := Call[GetTripRequest, TripResponse](ctx, c, GetTripProcedure, &GetTripRequest{TripID: trip.ID})
	require.NoError(t, err)
	assert.Equal(t, trip.People, got.Trip.People)
	assert.Empty(t, got.Trip.Expenses)

	list, err := Call[ListTripsRequest, ListTripsResponse](ctx, c, ListTripsProcedure, &ListTripsRequest{})
	require.NoError(t, err)
	require.Len(t, list.Trips, 1)
	assert.Equal(t, trip.ID, list.Trips[0].ID)
	assert.Equal(t, 3, list.Trips[0].People)
}

func TestCreateTrip_Validation(t *testing.T) {
	env := setupTestServer(t)
	c := env.login(t, "alice")

	tests := []struct {
		name string
		req  CreateTripRequest
	}{
		{"missing name", CreateTripRequest{Name: "  "}},
		{"unknown currency", CreateTripRequest{Name: "x", BaseCurrency: "XXX"}},
		{"nameless person", CreateTripRequest{Name: "x", People: []models.Person{{ID: "a"}}}},
		{"duplicate ids", CreateTripRequest{Name: "x", People: []models.Person{{ID: "a", Name: "A"}, {ID: "a", Name: "B"}}}},
		{"self merge", CreateTripRequest{Name: "x", People: []models.Person{{ID: "a", Name: "A", MergedWithID: "a"}}}},
		{"one-sided merge", CreateTripRequest{Name: "x", People: []models.Person{{ID: "a", Name: "A", MergedWithID: "b"}, {ID: "b", Name: "B"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Call[CreateTripRequest, TripResponse](context.Background(), c, CreateTripProcedure, &tt.req)
			assert.Equal(t, connect.CodeInvalidArgument, codeOf(err))
		})
	}
}

func TestCreateTrip_DefaultsBaseCurrency(t *testing.T) {
	env := setupTestServer(t)
	c := env.login(t, "alice")

	resp, err := Call[CreateTripRequest, TripResponse](context.Background(), c, CreateTripProcedure, &CreateTripRequest{Name: "Home"})
	require.NoError(t, err)
	assert.Equal(t, "SEK", resp.Trip.BaseCurrency)
}

func TestTripsAreOwnerScoped(t *testing.T) {
	env := setupTestServer(t)
	alice := env.login(t, "alice")
	bob := env.login(t, "bobby")
	ctx := context.Background()

	trip := createTrip(t, alice, models.Person{ID: "a", Name: "Ann"})

	_, err := Call[GetTripRequest, TripResponse](ctx, bob, GetTripProcedure, &GetTripRequest{TripID: trip.ID})
	assert.Equal(t, connect.CodePermissionDenied, codeOf(err))

	list, err := Call[ListTripsRequest, ListTripsResponse](ctx, bob, ListTripsProcedure, &ListTripsRequest{})
	require.NoError(t, err)
	assert.Empty(t, list.Trips)

	_, err = Call[GetTripRequest, TripResponse](ctx, alice, GetTripProcedure, &GetTripRequest{TripID: "missing"})
	assert.Equal(t, connect.CodeNotFound, codeOf(err))
}

func TestUpdatePeople_ClearsDanglingLinks(t *testing.T) {
	env := setupTestServer(t)
	c := env.login(t, "alice")

	trip := createTrip(t, c,
		models.Person{ID: "a", Name: "Ann", MergedWithID: "b"},
		models.Person{ID: "b", Name: "Bo", MergedWithID: "a"},
	)

	// Bo leaves; Ann still points at Bo.
	resp, err := Call[UpdatePeopleRequest, TripResponse](context.Background(), c, UpdatePeopleProcedure, &UpdatePeopleRequest{
		TripID: trip.ID,
		People: []models.Person{{ID: "a", Name: "Ann", MergedWithID: "b"}, {ID: "c", Name: "Cy"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []models.Person{{ID: "a", Name: "Ann"}, {ID: "c", Name: "Cy"}}, resp.Trip.People)
}

func TestSaveExpense(t *testing.T) {
	env := setupTestServer(t)
	c := env.login(t, "alice")
	ctx := context.Background()
	trip := createTrip(t, c, models.Person{ID: "a", Name: "Ann"}, models.Person{ID: "b", Name: "Bo"})

	t.Run("base currency forces rate 1", func(t *testing.T) {
		resp, err := Call[SaveExpenseRequest, ExpenseResponse](ctx, c, SaveExpenseProcedure, &SaveExpenseRequest{
			TripID: trip.ID,
			Expense: models.Expense{Description: "Dinner", Amount: 60, Currency: "eur", ExchangeRate: 3,
				PaidByID: "a", SplitAmongIDs: models.SplitAll()},
		})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Expense.ID)
		assert.NotZero(t, resp.Expense.Date)
		assert.Equal(t, "EUR", resp.Expense.Currency)
		assert.Equal(t, 1.0, resp.Expense.ExchangeRate)
		assert.True(t, resp.Expense.SplitAmongIDs.All)
	})

	t.Run("foreign currency without rate is looked up", func(t *testing.T) {
		resp, err := Call[SaveExpenseRequest, ExpenseResponse](ctx, c, SaveExpenseProcedure, &SaveExpenseRequest{
			TripID: trip.ID,
			Expense: models.Expense{Description: "Taxi", Amount: 100, Currency: "SEK",
				PaidByID: "b", SplitAmongIDs: models.SplitBetween("a")},
		})
		require.NoError(t, err)
		assert.Equal(t, 11.5, resp.Expense.ExchangeRate)
		assert.Contains(t, env.rates.calls, "SEK->EUR")
	})

	t.Run("explicit rate is kept", func(t *testing.T) {
		resp, err := Call[SaveExpenseRequest, ExpenseResponse](ctx, c, SaveExpenseProcedure, &SaveExpenseRequest{
			TripID: trip.ID,
			Expense: models.Expense{Description: "Museum", Amount: 20, Currency: "USD", ExchangeRate: 0.9,
				PaidByID: "a", SplitAmongIDs: models.SplitBetween("a", "b")},
		})
		require.NoError(t, err)
		assert.Equal(t, 0.9, resp.Expense.ExchangeRate)
	})

	t.Run("update keeps id", func(t *testing.T) {
		created, err := Call[SaveExpenseRequest, ExpenseResponse](ctx, c, SaveExpenseProcedure, &SaveExpenseRequest{
			TripID:  trip.ID,
			Expense: models.Expense{Description: "Coffee", Amount: 4, PaidByID: "a", SplitAmongIDs: models.SplitAll()},
		})
		require.NoError(t, err)

		edit := created.Expense
		edit.Amount = 5
		updated, err := Call[SaveExpenseRequest, ExpenseResponse](ctx, c, SaveExpenseProcedure, &SaveExpenseRequest{TripID: trip.ID, Expense: edit})
		require.NoError(t, err)
		assert.Equal(t, created.Expense.ID, updated.Expense.ID)
		assert.Equal(t, created.Expense.Date, updated.Expense.Date)
		assert.Equal(t, 5.0, updated.Expense.Amount)
	})

	invalidCases := []struct {
		name    string
		expense models.Expense
	}{
		{"no description", models.Expense{Amount: 1, PaidByID: "a", SplitAmongIDs: models.SplitAll()}},
		{"zero amount", models.Expense{Description: "x", PaidByID: "a", SplitAmongIDs: models.SplitAll()}},
		{"negative amount", models.Expense{Description: "x", Amount: -3, PaidByID: "a", SplitAmongIDs: models.SplitAll()}},
		{"unknown payer", models.Expense{Description: "x", Amount: 1, PaidByID: "z", SplitAmongIDs: models.SplitAll()}},
		{"unknown participant", models.Expense{Description: "x", Amount: 1, PaidByID: "a", SplitAmongIDs: models.SplitBetween("a", "z")}},
		{"nobody shares", models.Expense{Description: "x", Amount: 1, PaidByID: "a"}},
		{"negative rate", models.Expense{Description: "x", Amount: 1, Currency: "USD", ExchangeRate: -1, PaidByID: "a", SplitAmongIDs: models.SplitAll()}},
		{"unknown currency", models.Expense{Description: "x", Amount: 1, Currency: "ABC", PaidByID: "a", SplitAmongIDs: models.SplitAll()}},
	}
	for _, tt := range invalidCases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Call[SaveExpenseRequest, ExpenseResponse](ctx, c, SaveExpenseProcedure, &SaveExpenseRequest{TripID: trip.ID, Expense: tt.expense})
			assert.Equal(t, connect.CodeInvalidArgument, codeOf(err))
		})
	}
}

func TestDeleteExpense(t *testing.T) {
	env := setupTestServer(t)
	c := env.login(t, "alice")
	ctx := context.Background()
	trip := createTrip(t, c, models.Person{ID: "a", Name: "Ann"})

	saved, err := Call[SaveExpenseRequest, ExpenseResponse](ctx, c, SaveExpenseProcedure, &SaveExpenseRequest{
		TripID:  trip.ID,
		Expense: models.Expense{Description: "Snacks", Amount: 9, PaidByID: "a", SplitAmongIDs: models.SplitAll()},
	})
	require.NoError(t, err)

	req := &DeleteExpenseRequest{TripID: trip.ID, ExpenseID: saved.Expense.ID}
	_, err = Call[DeleteExpenseRequest, Empty](ctx, c, DeleteExpenseProcedure, req)
	require.NoError(t, err)
	_, err = Call[DeleteExpenseRequest, Empty](ctx, c, DeleteExpenseProcedure, req)
	assert.Equal(t, connect.CodeNotFound, codeOf(err))
}

func TestGetBalances(t *testing.T) {
	env := setupTestServer(t)
	c := env.login(t, "alice")
	ctx := context.Background()

	// Ann and Bo share finances; Cy is on their own.
	trip := createTrip(t, c,
		models.Person{ID: "a", Name: "Ann", MergedWithID: "b"},
		models.Person{ID: "b", Name: "Bo", MergedWithID: "a"},
		models.Person{ID: "c", Name: "Cy"},
	)
	for _, e := range []models.Expense{
		{Description: "Hotel", Amount: 300, PaidByID: "c", SplitAmongIDs: models.SplitAll()},
		{Description: "Wine", Amount: 30, PaidByID: "a", SplitAmongIDs: models.SplitBetween("a", "c")},
	} {
		_, err := Call[SaveExpenseRequest, ExpenseResponse](ctx, c, SaveExpenseProcedure, &SaveExpenseRequest{TripID: trip.ID, Expense: e})
		require.NoError(t, err)
	}

	resp, err := Call[GetBalancesRequest, GetBalancesResponse](ctx, c, GetBalancesProcedure, &GetBalancesRequest{TripID: trip.ID})
	require.NoError(t, err)
	assert.Equal(t, "EUR", resp.BaseCurrency)
	require.Len(t, resp.Balances, 2)

	pair, single := resp.Balances[0], resp.Balances[1]
	assert.Equal(t, "a|b", pair.Key)
	assert.Equal(t, "Ann & Bo", pair.Name)
	assert.True(t, pair.IsMerged)
	assert.InDelta(t, 30, pair.TotalPaid, 1e-9)
	assert.InDelta(t, 215, pair.Share, 1e-9)
	assert.InDelta(t, -185, pair.NetBalance, 1e-9)

	assert.Equal(t, "c", single.Key)
	assert.Equal(t, "Cy", single.Name)
	assert.InDelta(t, 185, single.NetBalance, 1e-9)

	require.Len(t, resp.Settlements, 1)
	st := resp.Settlements[0]
	assert.Equal(t, "a|b", st.From)
	assert.Equal(t, "c", st.To)
	assert.Equal(t, "Ann & Bo", st.FromName)
	assert.Equal(t, "Cy", st.ToName)
	assert.InDelta(t, 185, st.Amount, 1e-9)
}
