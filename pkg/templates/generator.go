package templates

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/gitpancake/eden.printify/pkg/discover"
	"github.com/gitpancake/eden.printify/pkg/models"
)

// Report summarizes a GenerateAll run.
type Report struct {
	TotalTemplates  int    `json:"total_templates"`
	TotalBlueprints int    `json:"total_blueprints"`
	TemplatesDir    string `json:"templates_dir"`
	SummaryFile     string `json:"summary_file"`
}

// GeneratorOptions configures a Generator. Index is optional.
type GeneratorOptions struct {
	Catalog Catalog
	Store   *Store
	Index   *Index
	Logger  zerolog.Logger
	// ProviderDelay and BlueprintDelay pace the API calls. Defaults:
	// 100ms between providers, 500ms between blueprints. Negative
	// disables.
	ProviderDelay  time.Duration
	BlueprintDelay time.Duration
}

// Generator walks every blueprint × print provider pair and persists a
// template envelope for each, plus a library summary and index rows.
type Generator struct {
	catalog        Catalog
	assembler      *Assembler
	store          *Store
	index          *Index
	logger         zerolog.Logger
	providerDelay  time.Duration
	blueprintDelay time.Duration
}

func NewGenerator(opts GeneratorOptions) *Generator {
	g := &Generator{
		catalog:        opts.Catalog,
		assembler:      NewAssembler(opts.Catalog),
		store:          opts.Store,
		index:          opts.Index,
		logger:         opts.Logger,
		providerDelay:  opts.ProviderDelay,
		blueprintDelay: opts.BlueprintDelay,
	}
	if g.providerDelay == 0 {
		g.providerDelay = 100 * time.Millisecond
	}
	if g.blueprintDelay == 0 {
		g.blueprintDelay = 500 * time.Millisecond
	}
	return g
}

// GenerateOne assembles and persists a single template, returning the
// saved path.
func (g *Generator) GenerateOne(ctx context.Context, blueprintID, printProviderID int, custom Customizations) (string, error) {
	bp, provider, variants, err := g.assembler.lookup(ctx, blueprintID, printProviderID)
	if err != nil {
		return "", err
	}
	doc := buildDefaultDocument(bp, provider, variants, custom)
	return g.persist(bp, provider, doc)
}

// GenerateAll visits every blueprint × provider pair. Pairs without
// variants are skipped; per-pair failures are logged, not fatal.
func (g *Generator) GenerateAll(ctx context.Context) (Report, error) {
	blueprints, err := g.catalog.Blueprints(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("fetching blueprints: %w", err)
	}
	g.logger.Info().Int("blueprints", len(blueprints)).Msg("generating templates")

	report := Report{
		TemplatesDir: g.store.Dir(),
		SummaryFile:  g.store.SummaryPath(),
	}

	for bi, bp := range blueprints {
		providers, err := g.catalog.PrintProviders(ctx, bp.ID)
		if err != nil {
			g.logger.Warn().Int("blueprint_id", bp.ID).Err(err).Msg("skipping blueprint")
			continue
		}
		if len(providers) > 0 {
			report.TotalBlueprints++
		}

		for pi, provider := range providers {
			variants, err := g.catalog.Variants(ctx, bp.ID, provider.ID)
			if err != nil {
				g.logger.Warn().
					Int("blueprint_id", bp.ID).
					Int("print_provider_id", provider.ID).
					Err(err).
					Msg("skipping combination")
				continue
			}
			valid := variants[:0]
			for _, v := range variants {
				if v.ID > 0 {
					valid = append(valid, v)
				}
			}
			if len(valid) == 0 {
				continue
			}
			doc := buildDefaultDocument(bp, provider, valid, Customizations{})

			if _, err := g.persist(bp, provider, doc); err != nil {
				g.logger.Warn().
					Int("blueprint_id", bp.ID).
					Int("print_provider_id", provider.ID).
					Err(err).
					Msg("failed to persist template")
				continue
			}
			report.TotalTemplates++

			if g.providerDelay > 0 && pi < len(providers)-1 {
				time.Sleep(g.providerDelay)
			}
		}

		if g.blueprintDelay > 0 && bi < len(blueprints)-1 {
			time.Sleep(g.blueprintDelay)
		}
	}

	summary := Summary{
		TotalTemplates:  report.TotalTemplates,
		TotalBlueprints: report.TotalBlueprints,
		GeneratedAt:     time.Now().UTC(),
	}
	for _, bp := range blueprints {
		summary.Blueprints = append(summary.Blueprints, BlueprintSummary{
			ID: bp.ID, Title: bp.Title, Brand: bp.Brand, Model: bp.Model,
		})
	}
	if err := g.store.WriteSummary(summary); err != nil {
		return report, err
	}

	return report, nil
}

// RebuildIndex rewalks the template tree and replaces the sqlite index
// with what is actually on disk.
func (g *Generator) RebuildIndex() error {
	if g.index == nil {
		return nil
	}
	var entries []Entry
	err := g.store.Walk(func(path string, env Envelope) error {
		entries = append(entries, entryFor(path, env))
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking template tree: %w", err)
	}
	return g.index.Rebuild(entries)
}

func (g *Generator) persist(bp models.Blueprint, provider models.PrintProvider, doc models.ProductDocument) (string, error) {
	env := Envelope{
		Metadata: Metadata{
			GeneratedAt:   time.Now().UTC(),
			Blueprint:     BlueprintSummary{ID: bp.ID, Title: bp.Title, Brand: bp.Brand, Model: bp.Model},
			PrintProvider: ProviderSummary{ID: provider.ID, Title: provider.Title},
			VariantCount:  len(doc.Variants),
		},
		Template: doc,
	}

	path, err := g.store.Save(env)
	if err != nil {
		return "", err
	}

	if g.index != nil {
		if err := g.index.Record(entryFor(path, env)); err != nil {
			g.logger.Warn().Str("path", path).Err(err).Msg("failed to index template")
		}
	}

	g.logger.Debug().
		Int("blueprint_id", bp.ID).
		Int("print_provider_id", provider.ID).
		Str("path", path).
		Msg("template saved")
	return path, nil
}

func entryFor(path string, env Envelope) Entry {
	return Entry{
		BlueprintID:     env.Metadata.Blueprint.ID,
		PrintProviderID: env.Metadata.PrintProvider.ID,
		Title:           env.Template.Title,
		Category:        discover.Categorize(env.Template.Title, env.Template.Description),
		Path:            path,
		GeneratedAt:     env.Metadata.GeneratedAt,
	}
}
