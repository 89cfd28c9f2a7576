package calculator

import (
	"math"
	"sort"

	"github.com/mmynk/tripshare/internal/models"
)

type openBalance struct {
	key     string
	balance float64
}

// OptimizeSettlements derives payment transfers that bring every group to
// zero using the "best-fit sink" strategy.
//
// Every group pays at most once, and may receive any number of payments.
// Each round the largest debtor pays its whole debt to the smallest creditor
// that can absorb it. When no creditor is large enough the largest creditor
// is overpaid and turns into a debtor for a later round.
//
// Groups are considered in key order before sorting by balance, so the
// output is deterministic for a given input.
func OptimizeSettlements(balances map[string]PersonBalance) []models.Settlement {
	keys := make([]string, 0, len(balances))
	for key := range balances {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	open := make([]*openBalance, 0, len(keys))
	for _, key := range keys {
		if b := balances[key].NetBalance; !IsSettled(b) {
			open = append(open, &openBalance{key: key, balance: b})
		}
	}

	var settlements []models.Settlement
	for len(open) > 1 {
		// Most negative first, most positive last.
		sort.SliceStable(open, func(i, j int) bool {
			return open[i].balance < open[j].balance
		})

		debtor := open[0]
		if debtor.balance >= 0 {
			// Nobody owes anything; the input was not zero-sum.
			break
		}
		debt := math.Abs(debtor.balance)

		sink := -1
		for i := len(open) - 1; i > 0; i-- {
			if open[i].balance < debt-ZeroTolerance {
				break
			}
			sink = i
		}
		if sink == -1 {
			sink = len(open) - 1
		}

		creditor := open[sink]
		settlements = append(settlements, models.Settlement{
			From:   debtor.key,
			To:     creditor.key,
			Amount: debt,
		})
		creditor.balance += debtor.balance
		debtor.balance = 0

		remaining := open[:0]
		for _, p := range open {
			if !IsSettled(p.balance) {
				remaining = append(remaining, p)
			}
		}
		open = remaining
	}

	return settlements
}

// CalculateSettlements computes balances for the trip and derives the
// settlement list from them.
func CalculateSettlements(trip models.Trip) []models.Settlement {
	return OptimizeSettlements(CalculateBalances(trip))
}
