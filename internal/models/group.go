package models

import "github.com/mmynk/tabsplit/internal/calculator"

// Group represents a reusable participant list.
// Groups own sessions, enabling balances across many receipts.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Roommates", "Work Lunch").
	Name string

	// Currency is the ISO 4217 code shared by all of the group's sessions
	// and settlements, so that balances add like amounts.
	Currency string

	// Members is the list of participants in this group, in join order.
	Members []calculator.Participant

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64
}

// HasMember reports whether a participant ID belongs to the group.
func (g *Group) HasMember(id string) bool {
	for _, m := range g.Members {
		if m.ID == id {
			return true
		}
	}
	return false
}
