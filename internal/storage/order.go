package storage

import (
	"cmp"
	"slices"

	"github.com/mcoot/rosterbot/internal/model"
)

// CompareRegistrations orders registrations by registration time, then ID
func CompareRegistrations(a, b *model.Registration) int {
	if c := a.RegisteredAt.Compare(b.RegisteredAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// SortEntries sorts roster entries into list order in place
func SortEntries(entries []model.RosterEntry) {
	slices.SortFunc(entries, func(a, b model.RosterEntry) int {
		return CompareRegistrations(&a.Registration, &b.Registration)
	})
}
