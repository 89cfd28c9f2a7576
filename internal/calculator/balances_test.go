package calculator

import (
	"math"
	"math/rand"
	"testing"

	"github.com/mmynk/tripshare/internal/models"
)

func people(ids ...string) []models.Person {
	out := make([]models.Person, len(ids))
	for i, id := range ids {
		out[i] = models.Person{ID: id, Name: id}
	}
	return out
}

func TestCalculateBalances(t *testing.T) {
	tests := []struct {
		name         string
		trip         models.Trip
		validateFunc func(t *testing.T, balances map[string]PersonBalance)
	}{
		{
			name: "split evenly among everyone",
			trip: models.Trip{
				BaseCurrency: "USD",
				People:       people("A", "B", "C"),
				Expenses: []models.Expense{
					{Amount: 90, ExchangeRate: 1, PaidByID: "A", SplitAmongIDs: models.SplitAll()},
				},
			},
			validateFunc: func(t *testing.T, balances map[string]PersonBalance) {
				want := map[string]float64{"A": 60, "B": -30, "C": -30}
				for key, net := range want {
					if math.Abs(balances[key].NetBalance-net) > 0.01 {
						t.Errorf("%s net = %v, want %v", key, balances[key].NetBalance, net)
					}
				}
				if math.Abs(balances["A"].TotalPaid-90) > 0.01 {
					t.Errorf("A paid = %v, want 90", balances["A"].TotalPaid)
				}
			},
		},
		{
			name: "merged pair absorbs share",
			trip: models.Trip{
				People: []models.Person{
					{ID: "A", Name: "Alice", MergedWithID: "B"},
					{ID: "B", Name: "Bob", MergedWithID: "A"},
					{ID: "C", Name: "Charlie"},
				},
				Expenses: []models.Expense{
					{Amount: 100, ExchangeRate: 1, PaidByID: "C", SplitAmongIDs: models.SplitAll()},
				},
			},
			validateFunc: func(t *testing.T, balances map[string]PersonBalance) {
				if len(balances) != 2 {
					t.Fatalf("expected 2 groups, got %d", len(balances))
				}
				ab := balances["A|B"]
				if math.Abs(ab.Share-66.67) > 0.01 {
					t.Errorf("A|B share = %v, want 66.67", ab.Share)
				}
				if math.Abs(ab.NetBalance+66.67) > 0.01 {
					t.Errorf("A|B net = %v, want -66.67", ab.NetBalance)
				}
				if !ab.IsMerged || len(ab.MergedWithNames) != 2 {
					t.Errorf("A|B should be merged with two names, got %+v", ab)
				}
				c := balances["C"]
				if math.Abs(c.TotalPaid-100) > 0.01 || math.Abs(c.Share-33.33) > 0.01 || math.Abs(c.NetBalance-66.67) > 0.01 {
					t.Errorf("C = %+v, want paid 100 share 33.33 net 66.67", c)
				}
				if c.IsMerged || c.MergedWithNames != nil {
					t.Errorf("C should not be merged, got %+v", c)
				}
			},
		},
		{
			name: "payment by a merged member credits the group once",
			trip: models.Trip{
				People: []models.Person{
					{ID: "A", MergedWithID: "B"},
					{ID: "B", MergedWithID: "A"},
					{ID: "C"},
				},
				Expenses: []models.Expense{
					{Amount: 30, PaidByID: "B", SplitAmongIDs: models.SplitBetween("C")},
				},
			},
			validateFunc: func(t *testing.T, balances map[string]PersonBalance) {
				if math.Abs(balances["A|B"].TotalPaid-30) > 0.01 {
					t.Errorf("A|B paid = %v, want 30", balances["A|B"].TotalPaid)
				}
				if math.Abs(balances["C"].NetBalance+30) > 0.01 {
					t.Errorf("C net = %v, want -30", balances["C"].NetBalance)
				}
			},
		},
		{
			name: "both merged members listed are charged twice",
			trip: models.Trip{
				People: []models.Person{
					{ID: "A", MergedWithID: "B"},
					{ID: "B", MergedWithID: "A"},
					{ID: "C"},
				},
				Expenses: []models.Expense{
					{Amount: 90, PaidByID: "C", SplitAmongIDs: models.SplitBetween("A", "B", "C")},
				},
			},
			validateFunc: func(t *testing.T, balances map[string]PersonBalance) {
				if math.Abs(balances["A|B"].Share-60) > 0.01 {
					t.Errorf("A|B share = %v, want 60", balances["A|B"].Share)
				}
			},
		},
		{
			name: "exchange rate converts to base",
			trip: models.Trip{
				People: people("A", "B"),
				Expenses: []models.Expense{
					{Amount: 10, Currency: "EUR", ExchangeRate: 11.5, PaidByID: "A", SplitAmongIDs: models.SplitAll()},
				},
			},
			validateFunc: func(t *testing.T, balances map[string]PersonBalance) {
				if math.Abs(balances["A"].NetBalance-57.5) > 0.01 {
					t.Errorf("A net = %v, want 57.5", balances["A"].NetBalance)
				}
			},
		},
		{
			name: "zero exchange rate reads as one",
			trip: models.Trip{
				People: people("A", "B"),
				Expenses: []models.Expense{
					{Amount: 10, PaidByID: "A", SplitAmongIDs: models.SplitAll()},
				},
			},
			validateFunc: func(t *testing.T, balances map[string]PersonBalance) {
				if math.Abs(balances["A"].TotalPaid-10) > 0.01 {
					t.Errorf("A paid = %v, want 10", balances["A"].TotalPaid)
				}
			},
		},
		{
			name: "empty participant list only credits payer",
			trip: models.Trip{
				People: people("A", "B"),
				Expenses: []models.Expense{
					{Amount: 40, PaidByID: "A", SplitAmongIDs: models.SplitBetween()},
				},
			},
			validateFunc: func(t *testing.T, balances map[string]PersonBalance) {
				if math.Abs(balances["A"].NetBalance-40) > 0.01 {
					t.Errorf("A net = %v, want 40", balances["A"].NetBalance)
				}
				if balances["B"].Share != 0 {
					t.Errorf("B share = %v, want 0", balances["B"].Share)
				}
			},
		},
		{
			name: "no people yields no balances",
			trip: models.Trip{
				Expenses: []models.Expense{
					{Amount: 40, PaidByID: "A", SplitAmongIDs: models.SplitAll()},
				},
			},
			validateFunc: func(t *testing.T, balances map[string]PersonBalance) {
				if len(balances) != 0 {
					t.Errorf("expected no balances, got %d", len(balances))
				}
			},
		},
		{
			name: "unknown payer and participant ids are skipped",
			trip: models.Trip{
				People: people("A", "B"),
				Expenses: []models.Expense{
					{Amount: 20, PaidByID: "ghost", SplitAmongIDs: models.SplitBetween("A", "ghost")},
				},
			},
			validateFunc: func(t *testing.T, balances map[string]PersonBalance) {
				if math.Abs(balances["A"].Share-10) > 0.01 {
					t.Errorf("A share = %v, want 10", balances["A"].Share)
				}
				if balances["A"].TotalPaid != 0 || balances["B"].TotalPaid != 0 {
					t.Error("no group should be credited for an unknown payer")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.validateFunc(t, CalculateBalances(tt.trip))
		})
	}
}

func TestCalculateBalances_DoesNotMutateTrip(t *testing.T) {
	trip := models.Trip{
		People: []models.Person{{ID: "b", MergedWithID: "a"}, {ID: "a", MergedWithID: "b"}},
		Expenses: []models.Expense{
			{Amount: 10, PaidByID: "a", SplitAmongIDs: models.SplitBetween("b", "a")},
		},
	}
	CalculateBalances(trip)
	if trip.People[0].ID != "b" || trip.Expenses[0].SplitAmongIDs.IDs[0] != "b" {
		t.Error("CalculateBalances reordered its input")
	}
}

// randomTrip builds a trip with some merged pairs and a mix of split modes.
func randomTrip(r *rand.Rand) models.Trip {
	n := 2 + r.Intn(7)
	roster := make([]models.Person, n)
	for i := range roster {
		roster[i] = models.Person{ID: string(rune('a' + i))}
	}
	for i := 0; i+1 < n; i += 2 {
		if r.Intn(3) == 0 {
			roster[i].MergedWithID = roster[i+1].ID
			roster[i+1].MergedWithID = roster[i].ID
		}
	}

	trip := models.Trip{People: roster}
	for e := 0; e < 1+r.Intn(10); e++ {
		expense := models.Expense{
			Amount:       float64(r.Intn(100000)) / 100,
			ExchangeRate: []float64{0, 1, 0.095, 11.37}[r.Intn(4)],
			PaidByID:     roster[r.Intn(n)].ID,
		}
		if r.Intn(2) == 0 {
			expense.SplitAmongIDs = models.SplitAll()
		} else {
			var ids []string
			for _, p := range roster {
				if r.Intn(2) == 0 {
					ids = append(ids, p.ID)
				}
			}
			if len(ids) == 0 {
				ids = []string{roster[0].ID}
			}
			expense.SplitAmongIDs = models.SplitBetween(ids...)
		}
		trip.Expenses = append(trip.Expenses, expense)
	}
	return trip
}

func TestCalculateBalances_ZeroSum(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		trip := randomTrip(r)
		var sum float64
		for _, bal := range CalculateBalances(trip) {
			sum += bal.NetBalance
		}
		if math.Abs(sum) > 0.01 {
			t.Fatalf("trip %d: balances sum to %v, want 0", i, sum)
		}
	}
}

func TestIsSettled(t *testing.T) {
	tests := []struct {
		balance float64
		want    bool
	}{
		{0, true},
		{0.01, true},
		{-0.01, true},
		{0.011, false},
		{-5, false},
	}
	for _, tt := range tests {
		if got := IsSettled(tt.balance); got != tt.want {
			t.Errorf("IsSettled(%v) = %v, want %v", tt.balance, got, tt.want)
		}
	}
}
