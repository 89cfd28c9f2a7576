package models

// Settlement is one directed payment instruction between balance groups.
// Settlements are computed on demand and never stored.
type Settlement struct {
	// From is the group key of the payer (debtor).
	From string `json:"from"`

	// To is the group key of the receiver (creditor).
	To string `json:"to"`

	// Amount is in the trip's base currency.
	Amount float64 `json:"amount"`
}
