// Package category maps the dataset's inconsistent category labels onto the closed set of display buckets.
package category

import "strings"

// Category is one canonical display bucket.
type Category string

const (
	Cafe           Category = "cafe"
	Restaurant     Category = "restaurant"
	Pizza          Category = "pizza"
	Bagel          Category = "bagel"
	Shopping       Category = "shopping"
	Museum         Category = "museum"
	Activity       Category = "activity"
	BroadwayComedy Category = "broadway_comedy"
	Iconic         Category = "iconic"
	Other          Category = "other"
)

// All lists every canonical category in display order.
var All = []Category{
	Cafe, Restaurant, Pizza, Bagel, Shopping, Museum, Activity, BroadwayComedy, Iconic, Other,
}

var titles = map[Category]string{
	Cafe:           "Cafés Near This Clinic",
	Restaurant:     "Great Eats Nearby",
	Pizza:          "Pizza by the Slice",
	Bagel:          "Bagels & Breakfast",
	Shopping:       "Shopping & Markets",
	Museum:         "Museums",
	Activity:       "Things To Do",
	BroadwayComedy: "Broadway & Comedy",
	Iconic:         "Iconic NYC Must-Sees",
	Other:          "More Nearby",
}

// Title returns the section heading shown above a group.
func (c Category) Title() string {
	if t, ok := titles[c]; ok {
		return t
	}
	return titles[Other]
}

// Rank returns the display position of c; unknown values sort last.
func (c Category) Rank() int {
	for i, v := range All {
		if v == c {
			return i
		}
	}
	return len(All)
}

// Parse validates s as a canonical category name.
func Parse(s string) (Category, bool) {
	c := Category(canonicalKey(s))
	for _, v := range All {
		if v == c {
			return c, true
		}
	}
	return Other, false
}

// canonicalKey lowercases and joins words with underscores so "Hidden Gems",
// "hidden-gems" and "hidden_gems" compare equal.
func canonicalKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", " ", "_", " ", "/", " ", "&", " ").Replace(s)
	return strings.Join(strings.Fields(s), "_")
}
