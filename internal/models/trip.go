package models

import (
	"encoding/json"
	"fmt"
)

// SplitAllKeyword is the wire value meaning "split among everyone on the trip".
const SplitAllKeyword = "ALL"

// Person is a trip member.
type Person struct {
	// ID is the unique identifier for the person (UUID format).
	ID string `json:"id"`

	// Name is the display name.
	Name string `json:"name"`

	// MergedWithID links this person to a partner whose finances are shared.
	// The link is expected to be symmetric. A link to a person that is not on
	// the trip is treated as no link at all.
	MergedWithID string `json:"mergedWithId,omitempty"`
}

// SplitAmong describes who shares an expense: either everyone on the trip at
// calculation time (All) or an explicit list of person IDs.
type SplitAmong struct {
	All bool
	IDs []string
}

// SplitAll returns a SplitAmong covering the whole trip.
func SplitAll() SplitAmong {
	return SplitAmong{All: true}
}

// SplitBetween returns a SplitAmong covering the given people.
func SplitBetween(ids ...string) SplitAmong {
	return SplitAmong{IDs: ids}
}

// Resolve returns the participant IDs for the given roster.
func (s SplitAmong) Resolve(people []Person) []string {
	if !s.All {
		return s.IDs
	}
	ids := make([]string, len(people))
	for i, p := range people {
		ids[i] = p.ID
	}
	return ids
}

// MarshalJSON encodes All as "ALL" and anything else as an array of IDs.
func (s SplitAmong) MarshalJSON() ([]byte, error) {
	if s.All {
		return json.Marshal(SplitAllKeyword)
	}
	if s.IDs == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.IDs)
}

// UnmarshalJSON accepts either "ALL" or an array of IDs.
func (s *SplitAmong) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = SplitAmong{}
		return nil
	}
	var keyword string
	if err := json.Unmarshal(data, &keyword); err == nil {
		if keyword != SplitAllKeyword {
			return fmt.Errorf("invalid splitAmongIds keyword %q", keyword)
		}
		*s = SplitAll()
		return nil
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("invalid splitAmongIds: %w", err)
	}
	*s = SplitAmong{IDs: ids}
	return nil
}

// Expense is one payment made during a trip.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string `json:"id"`

	Description string `json:"description"`
	Category    string `json:"category,omitempty"`

	// Amount is expressed in Currency.
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`

	// ExchangeRate converts one unit of Currency into the trip's base currency.
	// Zero is read as 1.
	ExchangeRate float64 `json:"exchangeRate"`

	// PaidByID is the person who paid the full amount.
	PaidByID string `json:"paidById"`

	// SplitAmongIDs lists who shares the cost.
	SplitAmongIDs SplitAmong `json:"splitAmongIds"`

	// Date is the creation time in Unix milliseconds.
	Date int64 `json:"date"`
}

// ValueInBase returns the expense value in the trip's base currency.
func (e Expense) ValueInBase() float64 {
	rate := e.ExchangeRate
	if rate == 0 {
		rate = 1
	}
	return e.Amount * rate
}

// Trip is the aggregate the expense splitter reads.
type Trip struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	BaseCurrency string    `json:"baseCurrency"`
	People       []Person  `json:"people"`
	Expenses     []Expense `json:"expenses"`

	// OwnerID is the user who created the trip.
	OwnerID string `json:"ownerId,omitempty"`

	// CreatedAt is the Unix timestamp when the trip was created.
	CreatedAt int64 `json:"createdAt,omitempty"`
}

// FindPerson returns the person with the given ID.
func (t *Trip) FindPerson(id string) (Person, bool) {
	for _, p := range t.People {
		if p.ID == id {
			return p, true
		}
	}
	return Person{}, false
}

// TripSummary is the lightweight listing form of a trip.
type TripSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	BaseCurrency string `json:"baseCurrency"`
	People       int    `json:"people"`
	Expenses     int    `json:"expenses"`
	CreatedAt    int64  `json:"createdAt"`
}
