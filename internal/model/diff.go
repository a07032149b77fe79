package model

import (
	"slices"
	"strings"
)

// Change describes a URL present in both result sets whose outcome differs.
type Change struct {
	URL    string     `json:"url"`
	Before PageRecord `json:"before"`
	After  PageRecord `json:"after"`
}

// Diff is the comparison of an older result set against a newer one.
type Diff struct {
	// Added holds records only present in the newer set.
	Added []PageRecord `json:"added"`

	// Removed holds records only present in the older set.
	Removed []PageRecord `json:"removed"`

	// Changed holds URLs whose status or location changed.
	Changed []Change `json:"changed"`

	// Unchanged counts URLs with identical status and location.
	Unchanged int `json:"unchanged"`
}

// HasChanges reports whether the two sets differ at all.
func (d *Diff) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || len(d.Changed) > 0
}

// Compare computes the difference between before and after. FinalLocation
// is diagnostic and ignored. All slices are sorted by URL.
func Compare(before, after *ResultSet) *Diff {
	d := &Diff{
		Added:   []PageRecord{},
		Removed: []PageRecord{},
		Changed: []Change{},
	}

	for _, old := range before.Sorted() {
		cur, ok := after.Get(old.URL)
		if !ok {
			d.Removed = append(d.Removed, old)
			continue
		}
		if old.Status != cur.Status || old.Location != cur.Location {
			d.Changed = append(d.Changed, Change{URL: old.URL, Before: old, After: cur})
			continue
		}
		d.Unchanged++
	}

	for _, cur := range after.Sorted() {
		if !before.Contains(cur.URL) {
			d.Added = append(d.Added, cur)
		}
	}

	slices.SortFunc(d.Changed, func(a, b Change) int {
		return strings.Compare(a.URL, b.URL)
	})
	return d
}
