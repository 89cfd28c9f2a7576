package storage

import (
	"github.com/google/uuid"

	"github.com/mmynk/tripshare/internal/models"
)

// PrepareRoster returns a copy of people ready to be stored: missing IDs are
// generated and merge links to anyone not on the roster are cleared.
func PrepareRoster(people []models.Person) []models.Person {
	out := make([]models.Person, len(people))
	copy(out, people)
	present := make(map[string]bool, len(out))
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = uuid.NewString()
		}
		present[out[i].ID] = true
	}
	for i := range out {
		if out[i].MergedWithID != "" && !present[out[i].MergedWithID] {
			out[i].MergedWithID = ""
		}
	}
	return out
}
