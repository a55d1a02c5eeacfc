// Package discover ranks catalog blueprints with lightweight heuristics:
// keyword-based categories, per-category price/weight tables and an
// additive popularity score. Nothing here is authoritative — it exists to
// narrow a multi-thousand-entry catalog down to a shortlist worth fetching
// variants for.
package discover

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gitpancake/eden.printify/pkg/models"
)

// Catalog is the slice of the Printify client the helper needs.
type Catalog interface {
	Blueprints(ctx context.Context) ([]models.Blueprint, error)
	PrintProviders(ctx context.Context, blueprintID int) ([]models.PrintProvider, error)
}

// InvalidArgumentError reports a caller mistake detected before any
// network call is made.
type InvalidArgumentError struct {
	Argument string
	Reason   string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Argument, e.Reason)
}

// Suggestion is one ranked (blueprint, print provider) pair.
type Suggestion struct {
	BlueprintID        int     `json:"blueprint_id"`
	PrintProviderID    int     `json:"print_provider_id"`
	BlueprintTitle     string  `json:"blueprint_title"`
	PrintProviderTitle string  `json:"print_provider_title"`
	Category           string  `json:"category"`
	Description        string  `json:"description"`
	EstimatedPrice     int     `json:"estimated_price"`
	PopularityScore    float64 `json:"popularity_score"`
}

// Criteria narrows Suggest results. Zero values mean "no filter".
type Criteria struct {
	Category      string
	MaxPriceCents int
	// Location is matched as a case-insensitive substring of the
	// provider's location text.
	Location string
}

const (
	sampleLimit        = 50
	providersPerResult = 3
	suggestLimit       = 20
	searchMatchLimit   = 10
)

// Options configures a Helper.
type Options struct {
	Catalog Catalog
	Logger  zerolog.Logger
	// ProviderDelay is the pause between per-blueprint provider lookups.
	// Defaults to 50ms; set to a negative value to disable.
	ProviderDelay time.Duration
	// Rand drives blueprint sampling. Defaults to a time-seeded source.
	Rand *rand.Rand
}

// Helper samples and ranks the blueprint catalog.
type Helper struct {
	catalog Catalog
	logger  zerolog.Logger
	delay   time.Duration
	rng     *rand.Rand
}

func NewHelper(opts Options) *Helper {
	h := &Helper{
		catalog: opts.Catalog,
		logger:  opts.Logger,
		delay:   opts.ProviderDelay,
		rng:     opts.Rand,
	}
	if h.delay == 0 {
		h.delay = 50 * time.Millisecond
	}
	if h.rng == nil {
		h.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return h
}

// Suggest fetches the blueprint catalog, samples it, and returns the top
// pairs by popularity. Individual provider lookups that fail are skipped
// with a warning rather than failing the whole run.
func (h *Helper) Suggest(ctx context.Context, c Criteria) ([]Suggestion, error) {
	blueprints, err := h.catalog.Blueprints(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching blueprints: %w", err)
	}

	if c.Category != "" {
		filtered := blueprints[:0]
		for _, bp := range blueprints {
			if Categorize(bp.Title, bp.Description) == c.Category {
				filtered = append(filtered, bp)
			}
		}
		blueprints = filtered
	}

	sampled := h.sample(blueprints, sampleLimit)

	var suggestions []Suggestion
	for i, bp := range sampled {
		providers, err := h.catalog.PrintProviders(ctx, bp.ID)
		if err != nil {
			h.logger.Warn().Int("blueprint_id", bp.ID).Err(err).Msg("skipping blueprint")
			continue
		}

		if c.Location != "" {
			want := strings.ToLower(c.Location)
			kept := providers[:0]
			for _, p := range providers {
				if strings.Contains(strings.ToLower(p.Location.Text), want) {
					kept = append(kept, p)
				}
			}
			providers = kept
		}
		if len(providers) > providersPerResult {
			providers = providers[:providersPerResult]
		}

		for _, p := range providers {
			s := buildSuggestion(bp, p)
			if c.MaxPriceCents > 0 && s.EstimatedPrice > c.MaxPriceCents {
				continue
			}
			suggestions = append(suggestions, s)
		}

		if h.delay > 0 && i < len(sampled)-1 {
			time.Sleep(h.delay)
		}
	}

	sortByPopularity(suggestions)
	if len(suggestions) > suggestLimit {
		suggestions = suggestions[:suggestLimit]
	}
	return suggestions, nil
}

// Search matches keywords against blueprint titles and descriptions and
// returns the matches paired with their first print provider, sorted by
// popularity. An empty keyword list is rejected before any network call.
func (h *Helper) Search(ctx context.Context, keywords []string) ([]Suggestion, error) {
	if len(keywords) == 0 {
		return nil, &InvalidArgumentError{Argument: "keywords", Reason: "must be a non-empty list"}
	}
	lowered := make([]string, len(keywords))
	for i, k := range keywords {
		lowered[i] = strings.ToLower(k)
	}

	blueprints, err := h.catalog.Blueprints(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching blueprints: %w", err)
	}

	var matches []models.Blueprint
	for _, bp := range blueprints {
		haystack := strings.ToLower(bp.Title + " " + bp.Description)
		for _, k := range lowered {
			if strings.Contains(haystack, k) {
				matches = append(matches, bp)
				break
			}
		}
		if len(matches) == searchMatchLimit {
			break
		}
	}

	var suggestions []Suggestion
	for i, bp := range matches {
		providers, err := h.catalog.PrintProviders(ctx, bp.ID)
		if err != nil {
			h.logger.Warn().Int("blueprint_id", bp.ID).Err(err).Msg("skipping blueprint")
			continue
		}
		if len(providers) == 0 {
			continue
		}
		suggestions = append(suggestions, buildSuggestion(bp, providers[0]))

		if h.delay > 0 && i < len(matches)-1 {
			time.Sleep(h.delay)
		}
	}

	sortByPopularity(suggestions)
	return suggestions, nil
}

// CategoryCounts buckets every blueprint in the catalog by inferred category.
func (h *Helper) CategoryCounts(ctx context.Context) (map[string]int, error) {
	blueprints, err := h.catalog.Blueprints(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching blueprints: %w", err)
	}
	counts := make(map[string]int)
	for _, bp := range blueprints {
		counts[Categorize(bp.Title, bp.Description)]++
	}
	return counts, nil
}

func buildSuggestion(bp models.Blueprint, p models.PrintProvider) Suggestion {
	category := Categorize(bp.Title, bp.Description)
	return Suggestion{
		BlueprintID:        bp.ID,
		PrintProviderID:    p.ID,
		BlueprintTitle:     bp.Title,
		PrintProviderTitle: p.Title,
		Category:           category,
		Description:        bp.Description,
		EstimatedPrice:     EstimatePrice(category),
		PopularityScore:    PopularityScore(bp, p),
	}
}

func sortByPopularity(s []Suggestion) {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].PopularityScore > s[j].PopularityScore
	})
}

// sample returns up to size elements picked without replacement. Order is
// randomized only when the input exceeds the size.
func (h *Helper) sample(blueprints []models.Blueprint, size int) []models.Blueprint {
	if len(blueprints) <= size {
		return blueprints
	}
	shuffled := make([]models.Blueprint, len(blueprints))
	copy(shuffled, blueprints)
	h.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:size]
}
