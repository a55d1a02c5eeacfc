// Package templates turns catalog data into ready-to-edit product
// documents and persists them as a browsable template library.
package templates

import (
	"context"
	"fmt"

	"github.com/gitpancake/eden.printify/pkg/models"
)

const (
	defaultPriceCents = 2500
	defaultGrams      = 180

	placeholderImageURL = "https://example.com/placeholder-image.png"
)

// Catalog is the slice of the Printify client the assembler needs.
type Catalog interface {
	Blueprints(ctx context.Context) ([]models.Blueprint, error)
	PrintProviders(ctx context.Context, blueprintID int) ([]models.PrintProvider, error)
	Variants(ctx context.Context, blueprintID, printProviderID int) ([]models.CatalogVariant, error)
}

// NotFoundError reports a blueprint or print provider missing from the
// catalog listing, or an empty variant list for an existing pair.
type NotFoundError struct {
	Resource    string
	ID          int
	BlueprintID int
}

func (e *NotFoundError) Error() string {
	switch e.Resource {
	case "blueprint":
		return fmt.Sprintf("blueprint %d not found", e.ID)
	case "print provider":
		return fmt.Sprintf("print provider %d not found for blueprint %d", e.ID, e.BlueprintID)
	default:
		return fmt.Sprintf("no %s found for blueprint %d and print provider %d", e.Resource, e.BlueprintID, e.ID)
	}
}

// Customizations override the assembler's fixed defaults. Zero values keep
// the defaults.
type Customizations struct {
	Title       string
	Description string
	PriceCents  int
	Grams       int
}

// Assembler builds product document skeletons from catalog data.
type Assembler struct {
	catalog Catalog
}

func NewAssembler(catalog Catalog) *Assembler {
	return &Assembler{catalog: catalog}
}

// lookup resolves the blueprint, provider and variant list for a pair,
// failing with NotFoundError at the first missing piece.
func (a *Assembler) lookup(ctx context.Context, blueprintID, printProviderID int) (models.Blueprint, models.PrintProvider, []models.CatalogVariant, error) {
	var bp models.Blueprint
	var provider models.PrintProvider

	blueprints, err := a.catalog.Blueprints(ctx)
	if err != nil {
		return bp, provider, nil, fmt.Errorf("fetching blueprints: %w", err)
	}
	found := false
	for _, candidate := range blueprints {
		if candidate.ID == blueprintID {
			bp, found = candidate, true
			break
		}
	}
	if !found {
		return bp, provider, nil, &NotFoundError{Resource: "blueprint", ID: blueprintID}
	}

	providers, err := a.catalog.PrintProviders(ctx, blueprintID)
	if err != nil {
		return bp, provider, nil, fmt.Errorf("fetching print providers: %w", err)
	}
	found = false
	for _, candidate := range providers {
		if candidate.ID == printProviderID {
			provider, found = candidate, true
			break
		}
	}
	if !found {
		return bp, provider, nil, &NotFoundError{Resource: "print provider", ID: printProviderID, BlueprintID: blueprintID}
	}

	variants, err := a.catalog.Variants(ctx, blueprintID, printProviderID)
	if err != nil {
		return bp, provider, nil, fmt.Errorf("fetching variants: %w", err)
	}
	valid := variants[:0]
	for _, v := range variants {
		if v.ID > 0 {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		return bp, provider, nil, &NotFoundError{Resource: "variants", ID: printProviderID, BlueprintID: blueprintID}
	}

	return bp, provider, valid, nil
}

// Assemble builds a document mirroring the full catalog variant set: one
// product variant per catalog variant and one print area per
// placeholder-bearing variant.
func (a *Assembler) Assemble(ctx context.Context, blueprintID, printProviderID int, custom Customizations) (models.ProductDocument, error) {
	bp, provider, variants, err := a.lookup(ctx, blueprintID, printProviderID)
	if err != nil {
		return models.ProductDocument{}, err
	}

	doc := skeleton(bp, provider, blueprintID, printProviderID, custom)
	defaultID := variants[0].ID

	for _, v := range variants {
		doc.Variants = append(doc.Variants, sampleVariant(v, defaultID, custom))
		placeholders := placeholdersFor(v, bp)
		if len(placeholders) == 0 {
			continue
		}
		doc.PrintAreas = append(doc.PrintAreas, models.PrintArea{
			VariantIDs:   []int{v.ID},
			Placeholders: placeholders,
		})
	}

	return doc, nil
}

// AssembleDefault builds a single-variant document: only the catalog's
// first variant, with a front placeholder when the catalog reports no
// print positions.
func (a *Assembler) AssembleDefault(ctx context.Context, blueprintID, printProviderID int, custom Customizations) (models.ProductDocument, error) {
	bp, provider, variants, err := a.lookup(ctx, blueprintID, printProviderID)
	if err != nil {
		return models.ProductDocument{}, err
	}

	return buildDefaultDocument(bp, provider, variants, custom), nil
}

// buildDefaultDocument is the single-variant skeleton shared by
// AssembleDefault and the bulk generator.
func buildDefaultDocument(bp models.Blueprint, provider models.PrintProvider, variants []models.CatalogVariant, custom Customizations) models.ProductDocument {
	v := variants[0]
	doc := skeleton(bp, provider, bp.ID, provider.ID, custom)
	doc.Variants = []models.ProductVariant{sampleVariant(v, v.ID, custom)}

	placeholders := placeholdersFor(v, bp)
	if len(placeholders) == 0 {
		placeholders = []models.Placeholder{placeholderAt("front", bp)}
	}
	doc.PrintAreas = []models.PrintArea{{
		VariantIDs:   []int{v.ID},
		Placeholders: placeholders,
	}}

	return doc
}

func skeleton(bp models.Blueprint, provider models.PrintProvider, blueprintID, printProviderID int, custom Customizations) models.ProductDocument {
	title := custom.Title
	if title == "" {
		title = fmt.Sprintf("%s - %s", bp.Title, provider.Title)
	}
	description := custom.Description
	if description == "" {
		description = bp.Description
	}
	return models.ProductDocument{
		Title:           title,
		Description:     description,
		BlueprintID:     blueprintID,
		PrintProviderID: printProviderID,
	}
}

func sampleVariant(v models.CatalogVariant, defaultID int, custom Customizations) models.ProductVariant {
	price := custom.PriceCents
	if price == 0 {
		price = defaultPriceCents
	}
	grams := custom.Grams
	if grams == 0 {
		grams = defaultGrams
	}
	return models.ProductVariant{
		ID:        v.ID,
		Price:     price,
		IsEnabled: true,
		IsDefault: v.ID == defaultID,
		Grams:     grams,
		Options:   v.Options,
	}
}

func placeholdersFor(v models.CatalogVariant, bp models.Blueprint) []models.Placeholder {
	placeholders := make([]models.Placeholder, 0, len(v.Placeholders))
	for _, p := range v.Placeholders {
		position := p.Position
		if position == "" {
			position = "front"
		}
		placeholders = append(placeholders, placeholderAt(position, bp))
	}
	return placeholders
}

func placeholderAt(position string, bp models.Blueprint) models.Placeholder {
	return models.Placeholder{
		Position: position,
		Images: []models.Image{{
			ID:         "placeholder_" + position,
			Name:       fmt.Sprintf("%s %s design", bp.Title, position),
			URL:        placeholderImageURL,
			PreviewURL: placeholderImageURL,
			X:          0,
			Y:          0,
			Scale:      1,
			Angle:      0,
		}},
	}
}
