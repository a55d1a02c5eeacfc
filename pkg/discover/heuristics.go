package discover

import (
	"strings"

	"github.com/gitpancake/eden.printify/pkg/models"
)

// categoryRule maps keyword hits to a category. Order matters: the first
// rule whose title keywords (or, for t-shirts, description keyword) hit
// wins.
type categoryRule struct {
	name          string
	titleWords    []string
	descWords     []string
	averagePrice  int
	averageWeight int
}

var categoryRules = []categoryRule{
	{"t-shirts", []string{"t-shirt", "tee"}, []string{"t-shirt"}, 2500, 180},
	{"hoodies", []string{"hoodie", "sweatshirt"}, nil, 4500, 400},
	{"mugs", []string{"mug", "cup"}, nil, 1500, 350},
	{"posters", []string{"poster", "print"}, nil, 2000, 50},
	{"phone-cases", []string{"phone", "case"}, nil, 1800, 30},
	{"bags", []string{"bag", "tote"}, nil, 3000, 200},
	{"hats", []string{"hat", "cap"}, nil, 2200, 100},
	{"tank-tops", []string{"tank", "sleeveless"}, nil, 2000, 150},
	{"stickers", []string{"sticker"}, nil, 500, 5},
	{"pillows", []string{"pillow"}, nil, 3500, 500},
	{"towels", []string{"towel"}, nil, 2500, 300},
	{"socks", []string{"sock"}, nil, 1200, 50},
	{"jackets", []string{"jacket"}, nil, 5500, 600},
	{"dresses", []string{"dress"}, nil, 4000, 250},
	{"pants", []string{"pant", "legging"}, nil, 3500, 300},
}

const (
	otherCategory = "other"
	otherPrice    = 2000
	otherWeight   = 200
)

var popularBrands = []string{"gildan", "champion", "bella+canvas", "next level"}

var popularCategories = map[string]bool{
	"t-shirts": true,
	"hoodies":  true,
	"mugs":     true,
}

// Categorize infers a product category from a blueprint's title and
// description. First matching rule wins; no match yields "other".
func Categorize(title, description string) string {
	title = strings.ToLower(title)
	description = strings.ToLower(description)
	for _, rule := range categoryRules {
		for _, w := range rule.titleWords {
			if strings.Contains(title, w) {
				return rule.name
			}
		}
		for _, w := range rule.descWords {
			if strings.Contains(description, w) {
				return rule.name
			}
		}
	}
	return otherCategory
}

// EstimatePrice returns the per-category price estimate in cents.
func EstimatePrice(category string) int {
	for _, rule := range categoryRules {
		if rule.name == category {
			return rule.averagePrice
		}
	}
	return otherPrice
}

// EstimateWeight returns the per-category shipping weight estimate in grams.
func EstimateWeight(category string) int {
	for _, rule := range categoryRules {
		if rule.name == category {
			return rule.averageWeight
		}
	}
	return otherWeight
}

// Categories lists every category the heuristics can assign, "other" last.
func Categories() []string {
	names := make([]string, 0, len(categoryRules)+1)
	for _, rule := range categoryRules {
		names = append(names, rule.name)
	}
	return append(names, otherCategory)
}

// PopularityScore is additive: base 50, +20 for a well-known brand, +15
// for a high-demand category, +10 for a US-based provider. It is not
// rescaled, so the effective range is 50..95.
func PopularityScore(bp models.Blueprint, p models.PrintProvider) float64 {
	score := 50.0

	brand := strings.ToLower(bp.Brand)
	for _, b := range popularBrands {
		if strings.Contains(brand, b) {
			score += 20
			break
		}
	}

	if popularCategories[Categorize(bp.Title, bp.Description)] {
		score += 15
	}

	loc := strings.ToLower(p.Location.Text)
	if strings.Contains(loc, "united states") || p.Location.Country == "US" {
		score += 10
	}

	return score
}
