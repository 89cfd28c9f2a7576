package calculator

import (
	"math"

	"github.com/mmynk/tripshare/internal/models"
)

// ZeroTolerance is the absolute balance, in base-currency units, at or below
// which a group counts as settled.
const ZeroTolerance = 0.01

// PersonBalance is the balance of one balance group.
type PersonBalance struct {
	Members         []string // Person IDs in the group, sorted
	TotalPaid       float64  // Total paid across all expenses
	Share           float64  // Total consumed across all expenses
	NetBalance      float64  // Positive = owed money, Negative = owes money
	IsMerged        bool
	MergedWithNames []string // Member names, only set for merged groups
}

// IsSettled reports whether a balance is within ZeroTolerance of zero.
func IsSettled(balance float64) bool {
	return math.Abs(balance) <= ZeroTolerance
}

// CalculateBalances computes total paid, share and net balance per balance
// group, keyed by GroupKey.
//
// Algorithm:
// - The payer's group is credited the full value of each expense
// - The value is divided evenly among the resolved participants and each
// participant's group is charged one portion. A merged group charged for both
// of its members pays two portions.
// - Expenses with no participants only credit the payer
// - net_balance = total_paid - share
//
// IDs that are not on the roster are ignored.
func CalculateBalances(trip models.Trip) map[string]PersonBalance {
	groups := BalanceGroups(trip.People)
	names := make(map[string]string, len(trip.People))
	for _, p := range trip.People {
		names[p.ID] = p.Name
	}

	breakdown := make(map[string]*PersonBalance, len(groups))
	personToGroup := make(map[string]string, len(trip.People))
	for _, ids := range groups {
		key := GroupKey(ids)
		members := GroupMembers(key)
		bal := &PersonBalance{Members: members, IsMerged: len(members) > 1}
		if bal.IsMerged {
			for _, id := range members {
				bal.MergedWithNames = append(bal.MergedWithNames, names[id])
			}
		}
		breakdown[key] = bal
		for _, id := range ids {
			personToGroup[id] = key
		}
	}

	for _, expense := range trip.Expenses {
		value := expense.ValueInBase()

		if bal, ok := breakdown[personToGroup[expense.PaidByID]]; ok {
			bal.TotalPaid += value
		}

		participants := expense.SplitAmongIDs.Resolve(trip.People)
		if len(participants) == 0 {
			continue
		}
		perPerson := value / float64(len(participants))
		for _, id := range participants {
			if bal, ok := breakdown[personToGroup[id]]; ok {
				bal.Share += perPerson
			}
		}
	}

	result := make(map[string]PersonBalance, len(breakdown))
	for key, bal := range breakdown {
		bal.NetBalance = bal.TotalPaid - bal.Share
		result[key] = *bal
	}
	return result
}
