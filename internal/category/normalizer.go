package category

import "strings"

// Normalizer resolves a place's raw label and name to a Category.
// The zero value keeps pizza, bagel and iconic in their own buckets.
type Normalizer struct {
	// FoldPizzaBagels folds bagel into cafe and pizza into restaurant.
	FoldPizzaBagels bool
	// IconicAsActivity folds iconic into activity.
	IconicAsActivity bool
}

// Name overrides are checked in order; the first match wins over the raw label.
var nameOverrides = []struct {
	keywords []string
	category Category
}{
	{keywords: []string{"moma design store"}, category: Shopping},
	{keywords: []string{"metropolitan museum", "memorial & museum", "museum", "moma", "amnh"}, category: Museum},
}

var rawTable = map[string]Category{
	"cafe":             Cafe,
	"cafes":            Cafe,
	"coffee":           Cafe,
	"coffee_shop":      Cafe,
	"bakery":           Cafe,
	"restaurant":       Restaurant,
	"restaurants":      Restaurant,
	"food":             Restaurant,
	"eats":             Restaurant,
	"great_eats":       Restaurant,
	"fast_food":        Restaurant,
	"pizza":            Pizza,
	"bagel":            Bagel,
	"bagels":           Bagel,
	"shopping":         Shopping,
	"shop":             Shopping,
	"shops":            Shopping,
	"markets":          Shopping,
	"shopping_markets": Shopping,
	"hidden_gems":      Shopping,
	"museum":           Museum,
	"museums":          Museum,
	"activity":         Activity,
	"activities":       Activity,
	"attraction":       Activity,
	"attractions":      Activity,
	"things_to_do":     Activity,
	"broadway_comedy":  BroadwayComedy,
	"broadway":         BroadwayComedy,
	"comedy":           BroadwayComedy,
	"theater":          BroadwayComedy,
	"theatre":          BroadwayComedy,
	"iconic":           Iconic,
	"must_see":         Iconic,
	"must_sees":        Iconic,
	"landmark":         Iconic,
	"landmarks":        Iconic,
}

// Normalize maps a raw category and place name to a canonical Category.
// It is total: unknown labels return Other.
func (n Normalizer) Normalize(raw, name string) Category {
	lowerName := strings.ToLower(name)
	for _, o := range nameOverrides {
		for _, kw := range o.keywords {
			if strings.Contains(lowerName, kw) {
				return o.category
			}
		}
	}

	key := canonicalKey(raw)
	if key == "pizza_bagels" {
		switch {
		case strings.Contains(lowerName, "bagel"):
			return n.fold(Bagel)
		case strings.Contains(lowerName, "pizza"):
			return n.fold(Pizza)
		default:
			return Restaurant
		}
	}

	c, ok := rawTable[key]
	if !ok {
		return Other
	}
	return n.fold(c)
}

func (n Normalizer) fold(c Category) Category {
	switch {
	case n.FoldPizzaBagels && c == Bagel:
		return Cafe
	case n.FoldPizzaBagels && c == Pizza:
		return Restaurant
	case n.IconicAsActivity && c == Iconic:
		return Activity
	}
	return c
}

// Normalize uses the default Normalizer.
func Normalize(raw, name string) Category {
	return Normalizer{}.Normalize(raw, name)
}
