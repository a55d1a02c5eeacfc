package templates

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitpancake/eden.printify/pkg/models"
	"github.com/gitpancake/eden.printify/pkg/validate"
)

type fakeCatalog struct {
	blueprints []models.Blueprint
	providers  map[int][]models.PrintProvider
	variants   map[[2]int][]models.CatalogVariant
}

func (f *fakeCatalog) Blueprints(ctx context.Context) ([]models.Blueprint, error) {
	return f.blueprints, nil
}

func (f *fakeCatalog) PrintProviders(ctx context.Context, blueprintID int) ([]models.PrintProvider, error) {
	return f.providers[blueprintID], nil
}

func (f *fakeCatalog) Variants(ctx context.Context, blueprintID, printProviderID int) ([]models.CatalogVariant, error) {
	return f.variants[[2]int{blueprintID, printProviderID}], nil
}

func teeCatalog() *fakeCatalog {
	return &fakeCatalog{
		blueprints: []models.Blueprint{
			{ID: 5, Title: "Unisex Cotton Tee", Description: "A classic everyday t-shirt", Brand: "Gildan", Model: "5000"},
		},
		providers: map[int][]models.PrintProvider{
			5: {{ID: 50, Title: "Printful", Location: models.Location{Text: "United States", Country: "US"}}},
		},
		variants: map[[2]int][]models.CatalogVariant{
			{5, 50}: {
				{
					ID:      12126,
					Title:   "Navy / S",
					Options: models.OptionList{{ID: 1, Value: "Navy"}, {ID: 2, Value: "S"}},
					Placeholders: []models.CatalogPlaceholder{
						{Position: "front", Width: 4500, Height: 5100},
						{Position: "back", Width: 4500, Height: 5100},
					},
				},
				{
					ID:      12127,
					Title:   "Navy / M",
					Options: models.OptionList{{ID: 1, Value: "Navy"}, {ID: 3, Value: "M"}},
					Placeholders: []models.CatalogPlaceholder{
						{Position: "front", Width: 4500, Height: 5100},
					},
				},
				// A variant the catalog reports without print positions.
				{ID: 12128, Title: "Navy / L", Options: models.OptionList{{ID: 1, Value: "Navy"}}},
			},
		},
	}
}

func TestAssembleFullVariantSet(t *testing.T) {
	a := NewAssembler(teeCatalog())

	doc, err := a.Assemble(context.Background(), 5, 50, Customizations{})
	require.NoError(t, err)

	assert.Equal(t, "Unisex Cotton Tee - Printful", doc.Title)
	assert.Equal(t, "A classic everyday t-shirt", doc.Description)
	assert.Equal(t, 5, doc.BlueprintID)
	assert.Equal(t, 50, doc.PrintProviderID)

	require.Len(t, doc.Variants, 3)
	for i, v := range doc.Variants {
		assert.Equal(t, 2500, v.Price)
		assert.Equal(t, 180, v.Grams)
		assert.True(t, v.IsEnabled)
		assert.Equal(t, i == 0, v.IsDefault, "only the first catalog variant is default")
	}

	// One print area per placeholder-bearing variant.
	require.Len(t, doc.PrintAreas, 2)
	assert.Equal(t, []int{12126}, doc.PrintAreas[0].VariantIDs)
	require.Len(t, doc.PrintAreas[0].Placeholders, 2)
	img := doc.PrintAreas[0].Placeholders[0].Images[0]
	assert.Equal(t, "placeholder_front", img.ID)
	assert.Equal(t, "Unisex Cotton Tee front design", img.Name)
	assert.Equal(t, placeholderImageURL, img.URL)
	assert.Equal(t, placeholderImageURL, img.PreviewURL)
	assert.Zero(t, img.X)
	assert.Zero(t, img.Y)
	assert.Equal(t, 1.0, img.Scale)
	assert.Zero(t, img.Angle)
	assert.Equal(t, "placeholder_back", doc.PrintAreas[0].Placeholders[1].Images[0].ID)
}

func TestAssembleCustomizations(t *testing.T) {
	a := NewAssembler(teeCatalog())

	doc, err := a.Assemble(context.Background(), 5, 50, Customizations{
		Title:      "My Band Tee",
		PriceCents: 2900,
		Grams:      200,
	})
	require.NoError(t, err)

	assert.Equal(t, "My Band Tee", doc.Title)
	assert.Equal(t, "A classic everyday t-shirt", doc.Description)
	for _, v := range doc.Variants {
		assert.Equal(t, 2900, v.Price)
		assert.Equal(t, 200, v.Grams)
	}
}

func TestAssembleDefaultSingleVariant(t *testing.T) {
	a := NewAssembler(teeCatalog())

	doc, err := a.AssembleDefault(context.Background(), 5, 50, Customizations{})
	require.NoError(t, err)

	require.Len(t, doc.Variants, 1)
	assert.Equal(t, 12126, doc.Variants[0].ID)
	assert.True(t, doc.Variants[0].IsDefault)
	require.Len(t, doc.PrintAreas, 1)
	assert.Equal(t, []int{12126}, doc.PrintAreas[0].VariantIDs)
	assert.Len(t, doc.PrintAreas[0].Placeholders, 2)
}

func TestAssembleDefaultFallsBackToFront(t *testing.T) {
	catalog := teeCatalog()
	catalog.variants[[2]int{5, 50}] = []models.CatalogVariant{
		{ID: 12128, Options: models.OptionList{{ID: 1, Value: "Navy"}}},
	}
	a := NewAssembler(catalog)

	doc, err := a.AssembleDefault(context.Background(), 5, 50, Customizations{})
	require.NoError(t, err)

	require.Len(t, doc.PrintAreas, 1)
	require.Len(t, doc.PrintAreas[0].Placeholders, 1)
	assert.Equal(t, "front", doc.PrintAreas[0].Placeholders[0].Position)
	assert.Equal(t, "placeholder_front", doc.PrintAreas[0].Placeholders[0].Images[0].ID)
}

func TestAssembleNotFound(t *testing.T) {
	a := NewAssembler(teeCatalog())
	ctx := context.Background()

	_, err := a.Assemble(ctx, 999, 50, Customizations{})
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "blueprint", notFound.Resource)
	assert.Contains(t, err.Error(), "blueprint 999 not found")

	_, err = a.Assemble(ctx, 5, 999, Customizations{})
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "print provider", notFound.Resource)

	catalog := teeCatalog()
	catalog.variants[[2]int{5, 50}] = nil
	_, err = NewAssembler(catalog).Assemble(ctx, 5, 50, Customizations{})
	require.ErrorAs(t, err, &notFound)
	assert.Contains(t, err.Error(), "no variants found")
}

func TestAssembledDocumentPassesValidation(t *testing.T) {
	a := NewAssembler(teeCatalog())
	ctx := context.Background()

	full, err := a.Assemble(ctx, 5, 50, Customizations{})
	require.NoError(t, err)
	result := validate.Product(full)
	assert.True(t, result.IsValid, "full-mode output must validate cleanly: %v", result.Errors)

	single, err := a.AssembleDefault(ctx, 5, 50, Customizations{})
	require.NoError(t, err)
	result = validate.Product(single)
	assert.True(t, result.IsValid, "single-mode output must validate cleanly: %v", result.Errors)
}

func TestSanitizeTitle(t *testing.T) {
	assert.Equal(t, "unisex_cotton_tee_printful", SanitizeTitle("Unisex Cotton Tee - Printful"))
	assert.Equal(t, "caf_mug_11oz", SanitizeTitle("Café Mug (11oz)"))
	assert.Equal(t, "plain", SanitizeTitle("plain"))
}
