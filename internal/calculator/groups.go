package calculator

import (
	"sort"
	"strings"

	"github.com/mmynk/tripshare/internal/models"
)

// GroupKeySeparator joins member IDs into a group key.
const GroupKeySeparator = "|"

// BalanceGroups collapses people into balance-sharing groups.
//
// People are visited in input order. A person whose MergedWithID points at
// someone on the roster who has not been grouped yet forms a pair with them;
// everyone else is a singleton. Dangling links (partner missing) and links to
// an already-grouped partner fall back to a singleton.
func BalanceGroups(people []models.Person) [][]string {
	byID := make(map[string]bool, len(people))
	for _, p := range people {
		byID[p.ID] = true
	}

	groups := make([][]string, 0, len(people))
	visited := make(map[string]bool, len(people))
	for _, p := range people {
		if visited[p.ID] {
			continue
		}
		visited[p.ID] = true

		partner := p.MergedWithID
		if partner != "" && partner != p.ID && byID[partner] && !visited[partner] {
			visited[partner] = true
			groups = append(groups, []string{p.ID, partner})
			continue
		}
		groups = append(groups, []string{p.ID})
	}
	return groups
}

// GroupKey returns the stable key of a group: sorted member IDs joined by
// GroupKeySeparator. The input slice is not modified.
func GroupKey(ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return strings.Join(sorted, GroupKeySeparator)
}

// GroupMembers splits a group key back into member IDs.
func GroupMembers(key string) []string {
	if key == "" {
		return nil
	}
	return strings.Split(key, GroupKeySeparator)
}
