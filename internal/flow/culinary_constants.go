package flow

import (
	"fmt"
	"sort"

	"github.com/BTreeMap/CookFlow/internal/constraint"
)

// culinaryConstants is the curated conversion, substitution, and temperature
// table consulted before any model call for cooking questions. Keys are
// matched as whole words in the utterance, with plural folding, so "2 cups"
// hits the "cup" entry.
var culinaryConstants = map[string]string{
	"al dente":      "pasta cooked firm to the bite, usually 1-2 minutes less than the package time",
	"baking powder": "substitute 1 teaspoon with 1/4 teaspoon baking soda + 1/2 teaspoon cream of tartar",
	"baking soda":   "use about 1/4 teaspoon per cup of flour; substitute with 3x the amount of baking powder",
	"beef":          "medium-rare 135°F / 57°C, medium 145°F / 63°C; ground beef always 160°F / 71°C",
	"butter":        "1 stick = 113 g = 8 tablespoons = 1/2 cup; in baking, swap with 3/4 the amount of oil",
	"buttermilk":    "substitute 1 cup with 1 cup milk + 1 tablespoon lemon juice or vinegar, rested 5 minutes",
	"chicken":       "cook to an internal temperature of 165°F / 74°C in the thickest part",
	"cup":           "1 cup = 240 ml = 16 tablespoons; 1 cup flour is about 120 g, 1 cup sugar about 200 g",
	"egg":           "1 large egg is about 50 g; in baking, replace one with 1 tablespoon ground flaxseed + 3 tablespoons water",
	"fish":          "cook to 145°F / 63°C, or until the flesh is opaque and flakes with a fork",
	"flour":         "1 cup all-purpose flour = 120 g; for self-raising, add 1.5 teaspoons baking powder per cup",
	"gallon":        "1 gallon = 3.8 liters = 16 cups",
	"honey":         "replace 1 cup sugar with 3/4 cup honey; reduce other liquid by 1/4 cup and the oven by 25°F",
	"ounce":         "1 ounce = 28 g; 8 fluid ounces = 1 cup = 240 ml",
	"oven":          "moderate oven 350°F / 175°C, hot oven 425°F / 220°C; fan ovens run about 25°F / 15°C hotter",
	"pork":          "cook to 145°F / 63°C with a 3 minute rest; ground pork 160°F / 71°C",
	"pound":         "1 pound = 454 g",
	"rice":          "1 cup dry rice + 2 cups water, simmered covered 18 minutes, rested 5; yields about 3 cups cooked",
	"simmer":        "small bubbles at the edge, about 185-205°F / 85-96°C; a rolling boil is 212°F / 100°C",
	"stock":         "substitute 1 cup with 1 cup water + 1 teaspoon bouillon",
	"tablespoon":    "1 tablespoon = 3 teaspoons = 15 ml",
	"teaspoon":      "1 teaspoon = 5 ml",
	"turkey":        "cook to 165°F / 74°C in the thigh; rest 20 minutes before carving",
	"yeast":         "1 packet = 2 1/4 teaspoons = 7 g; active dry yeast blooms in warm water for 5-10 minutes",
}

// maxCulinaryMatches caps how many table entries one answer cites.
const maxCulinaryMatches = 3

// LookupCulinaryConstants returns the table entries whose key appears in the
// utterance, formatted as "key: value" lines in key order, at most
// maxCulinaryMatches of them. An empty result means the question needs the
// model.
func LookupCulinaryConstants(utterance string) []string {
	keys := make([]string, 0, len(culinaryConstants))
	for key := range culinaryConstants {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var matches []string
	for _, key := range keys {
		if !constraint.MatchesIngredient(utterance, key) {
			continue
		}
		matches = append(matches, fmt.Sprintf("%s: %s", key, culinaryConstants[key]))
		if len(matches) == maxCulinaryMatches {
			break
		}
	}
	return matches
}
