package contact

import (
	"slices"

	"github.com/tartampluch/go-contacts/internal/config"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

var collationTag = language.MustParse(config.CollationLocale)

// SortByName orders contacts by name using Brazilian Portuguese collation,
// ignoring case and accents. Ties keep their relative order.
func SortByName(list []Contact) {
	// Collators are not safe for concurrent use: one per call.
	cl := collate.New(collationTag, collate.Loose)
	slices.SortStableFunc(list, func(a, b Contact) int {
		return cl.CompareString(a.Name, b.Name)
	})
}

// SortedByName returns a sorted copy, leaving list untouched.
func SortedByName(list []Contact) []Contact {
	out := slices.Clone(list)
	SortByName(out)
	return out
}
