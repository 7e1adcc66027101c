// Package grocery guesses which kind of aisle a supply item belongs to.
package grocery

import "strings"

// Fallback is returned when no keyword matches.
const Fallback = "Other"

type rule struct {
	category string
	keywords []string
}

// rules are matched by substring; the longest matching keyword wins so
// "ice cream" beats "cream" and "dish soap" beats "soap".
var rules = []rule{
	{"Produce", []string{
		"apple", "banana", "orange", "lemon", "lime", "avocado", "tomato", "potato",
		"onion", "garlic", "lettuce", "spinach", "kale", "broccoli", "carrot", "celery",
		"cucumber", "pepper", "mushroom", "grape", "berries", "melon", "herb", "fruit",
		"vegetable", "salad",
	}},
	{"Dairy", []string{
		"milk", "egg", "butter", "cheese", "yogurt", "cream", "half and half",
	}},
	{"Meat & Seafood", []string{
		"chicken", "beef", "pork", "turkey", "bacon", "sausage", "ham", "steak",
		"salmon", "shrimp", "tuna", "fish", "lamb", "deli meat",
	}},
	{"Bakery", []string{
		"bread", "bagel", "tortilla", "roll", "bun", "muffin", "croissant", "baguette",
	}},
	{"Pantry", []string{
		"rice", "pasta", "noodle", "flour", "sugar", "salt", "spice", "oil", "vinegar",
		"sauce", "broth", "stock", "soup", "bean", "lentil", "cereal", "oatmeal",
		"canned", "peanut butter", "honey", "jam",
	}},
	{"Frozen", []string{
		"frozen", "ice cream", "popsicle", "ice",
	}},
	{"Beverages", []string{
		"coffee", "tea", "juice", "soda", "water", "beer", "wine", "drink",
		"sparkling water",
	}},
	{"Snacks", []string{
		"chip", "cracker", "cookie", "popcorn", "pretzel", "candy", "chocolate",
		"snack", "granola bar", "trail mix", "nuts",
	}},
	{"Household", []string{
		"paper towel", "toilet paper", "trash bag", "dish soap", "laundry", "detergent",
		"cleaner", "bleach", "sponge", "foil", "plastic wrap", "battery", "batteries",
		"light bulb", "napkin",
	}},
	{"Personal Care", []string{
		"shampoo", "conditioner", "toothpaste", "toothbrush", "deodorant", "lotion",
		"sunscreen", "razor", "tissue", "soap", "floss", "band-aid",
	}},
}

// Categorize returns the aisle name for an item name, or Fallback.
// Matching is case-insensitive.
func Categorize(itemName string) string {
	name := strings.ToLower(strings.TrimSpace(itemName))
	if name == "" {
		return Fallback
	}

	best, bestLen := Fallback, 0
	for _, r := range rules {
		for _, kw := range r.keywords {
			if len(kw) > bestLen && strings.Contains(name, kw) {
				best, bestLen = r.category, len(kw)
			}
		}
	}
	return best
}
