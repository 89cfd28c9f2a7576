// Package storagetest holds the behavior every storage.Store backend must
// share. Backend packages call Run from their own tests.
package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/tripshare/internal/models"
	"github.com/mmynk/tripshare/internal/storage"
)

// Run exercises store. The store must be empty.
func Run(t *testing.T, store storage.Store) {
	ctx := context.Background()

	t.Run("CreateTrip generates ID and clears dangling links", func(t *testing.T) {
		trip := &models.Trip{
			Name:         "Lisbon",
			BaseCurrency: "EUR",
			OwnerID:      "owner-1",
			People: []models.Person{
				{ID: "a", Name: "Ann", MergedWithID: "b"},
				{ID: "b", Name: "Bo", MergedWithID: "a"},
				{ID: "c", Name: "Cy", MergedWithID: "zz"},
			},
		}
		require.NoError(t, store.CreateTrip(ctx, trip))
		assert.NotEmpty(t, trip.ID)
		assert.NotZero(t, trip.CreatedAt)

		got, err := store.GetTrip(ctx, trip.ID)
		require.NoError(t, err)
		assert.Equal(t, "Lisbon", got.Name)
		assert.Equal(t, "EUR", got.BaseCurrency)
		assert.Equal(t, "owner-1", got.OwnerID)
		assert.Equal(t, []models.Person{
			{ID: "a", Name: "Ann", MergedWithID: "b"},
			{ID: "b", Name: "Bo", MergedWithID: "a"},
			{ID: "c", Name: "Cy"},
		}, got.People)
		assert.Empty(t, got.Expenses)
	})

	t.Run("GetTrip unknown returns ErrNotFound", func(t *testing.T) {
		_, err := store.GetTrip(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("expenses insert update delete", func(t *testing.T) {
		trip := &models.Trip{Name: "Tokyo", BaseCurrency: "SEK", OwnerID: "owner-2",
			People: []models.Person{{ID: "a", Name: "Ann"}, {ID: "b", Name: "Bo"}}}
		require.NoError(t, store.CreateTrip(ctx, trip))

		older := &models.Expense{Description: "Hotel", Amount: 1000, Currency: "JPY", ExchangeRate: 0.07,
			PaidByID: "a", SplitAmongIDs: models.SplitAll(), Date: 1000}
		newer := &models.Expense{Description: "Sushi", Category: "food", Amount: 300, Currency: "SEK",
			ExchangeRate: 1, PaidByID: "b", SplitAmongIDs: models.SplitBetween("a", "b"), Date: 2000}
		require.NoError(t, store.SaveExpense(ctx, trip.ID, older))
		require.NoError(t, store.SaveExpense(ctx, trip.ID, newer))
		assert.NotEmpty(t, older.ID)
		assert.NotEqual(t, older.ID, newer.ID)

		got, err := store.GetTrip(ctx, trip.ID)
		require.NoError(t, err)
		require.Len(t, got.Expenses, 2)
		assert.Equal(t, *newer, got.Expenses[0], "newest first")
		assert.Equal(t, *older, got.Expenses[1])
		assert.True(t, got.Expenses[1].SplitAmongIDs.All)

		update := *older
		update.Description = "Ryokan"
		update.Amount = 1200
		update.Date = 999999
		update.SplitAmongIDs = models.SplitBetween("b")
		require.NoError(t, store.SaveExpense(ctx, trip.ID, &update))
		assert.Equal(t, int64(1000), update.Date, "update keeps the original date")

		got, err = store.GetTrip(ctx, trip.ID)
		require.NoError(t, err)
		assert.Equal(t, update, got.Expenses[1])

		require.NoError(t, store.DeleteExpense(ctx, trip.ID, newer.ID))
		assert.ErrorIs(t, store.DeleteExpense(ctx, trip.ID, newer.ID), storage.ErrNotFound)

		got, err = store.GetTrip(ctx, trip.ID)
		require.NoError(t, err)
		require.Len(t, got.Expenses, 1)
		assert.Equal(t, update.ID, got.Expenses[0].ID)
	})

	t.Run("SaveExpense with empty explicit split", func(t *testing.T) {
		trip := &models.Trip{Name: "Empty", BaseCurrency: "SEK", OwnerID: "owner-3"}
		require.NoError(t, store.CreateTrip(ctx, trip))
		e := &models.Expense{Description: "Nothing", Amount: 5, Currency: "SEK", PaidByID: "x", Date: 1}
		require.NoError(t, store.SaveExpense(ctx, trip.ID, e))

		got, err := store.GetTrip(ctx, trip.ID)
		require.NoError(t, err)
		require.Len(t, got.Expenses, 1)
		assert.False(t, got.Expenses[0].SplitAmongIDs.All)
		assert.Empty(t, got.Expenses[0].SplitAmongIDs.IDs)
	})

	t.Run("SaveExpense errors", func(t *testing.T) {
		err := store.SaveExpense(ctx, "missing", &models.Expense{Description: "x", Amount: 1})
		assert.ErrorIs(t, err, storage.ErrNotFound)

		trip := &models.Trip{Name: "Oslo", BaseCurrency: "NOK", OwnerID: "owner-4"}
		require.NoError(t, store.CreateTrip(ctx, trip))
		err = store.SaveExpense(ctx, trip.ID, &models.Expense{ID: "no-such-expense", Description: "x", Amount: 1})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("UpdatePeople replaces roster", func(t *testing.T) {
		trip := &models.Trip{Name: "Rome", BaseCurrency: "EUR", OwnerID: "owner-5",
			People: []models.Person{{ID: "a", Name: "Ann"}, {ID: "b", Name: "Bo"}}}
		require.NoError(t, store.CreateTrip(ctx, trip))

		people := storage.PrepareRoster([]models.Person{
			{ID: "b", Name: "Bo", MergedWithID: "c"},
			{ID: "c", Name: "Cy", MergedWithID: "b"},
		})
		require.NoError(t, store.UpdatePeople(ctx, trip.ID, people))

		got, err := store.GetTrip(ctx, trip.ID)
		require.NoError(t, err)
		assert.Equal(t, people, got.People)

		assert.ErrorIs(t, store.UpdatePeople(ctx, "missing", people), storage.ErrNotFound)
	})

	t.Run("ListTrips is scoped to owner", func(t *testing.T) {
		first := &models.Trip{Name: "First", BaseCurrency: "SEK", OwnerID: "lister", CreatedAt: 100,
			People: []models.Person{{ID: "a", Name: "Ann"}}}
		second := &models.Trip{Name: "Second", BaseCurrency: "USD", OwnerID: "lister", CreatedAt: 200}
		other := &models.Trip{Name: "Other", BaseCurrency: "SEK", OwnerID: "someone-else", CreatedAt: 300}
		for _, trip := range []*models.Trip{first, second, other} {
			require.NoError(t, store.CreateTrip(ctx, trip))
		}
		require.NoError(t, store.SaveExpense(ctx, first.ID, &models.Expense{Description: "x", Amount: 1, Currency: "SEK", PaidByID: "a", Date: 1}))

		trips, err := store.ListTrips(ctx, "lister")
		require.NoError(t, err)
		assert.Equal(t, []models.TripSummary{
			{ID: second.ID, Name: "Second", BaseCurrency: "USD", CreatedAt: 200},
			{ID: first.ID, Name: "First", BaseCurrency: "SEK", People: 1, Expenses: 1, CreatedAt: 100},
		}, trips)

		none, err := store.ListTrips(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("users", func(t *testing.T) {
		user := models.NewUser("ann", "hash")
		require.NoError(t, store.CreateUser(ctx, user))

		byName, err := store.GetUserByUsername(ctx, "ann")
		require.NoError(t, err)
		assert.Equal(t, user, byName)

		byID, err := store.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "ann", byID.Username)

		err = store.CreateUser(ctx, models.NewUser("ann", "other"))
		assert.ErrorIs(t, err, storage.ErrAlreadyExists)

		_, err = store.GetUserByUsername(ctx, "bob")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = store.GetUserByID(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}
