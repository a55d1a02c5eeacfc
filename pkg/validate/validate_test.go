package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitpancake/eden.printify/pkg/models"
)

func validDocument() models.ProductDocument {
	return models.ProductDocument{
		Title:           "Unisex Cotton Tee - Printful",
		Description:     "A soft everyday tee",
		BlueprintID:     5,
		PrintProviderID: 50,
		Variants: []models.ProductVariant{
			{
				ID: 12126, Price: 2500, IsEnabled: true, IsDefault: true, Grams: 180,
				Options: models.OptionList{{ID: 1, Value: "Navy"}, {ID: 2, Value: "S"}},
			},
		},
		PrintAreas: []models.PrintArea{
			{
				VariantIDs: []int{12126},
				Placeholders: []models.Placeholder{
					{
						Position: "front",
						Images: []models.Image{{
							ID: "img1", Name: "front design",
							URL:        "https://cdn.example.com/a.png",
							PreviewURL: "https://cdn.example.com/a.png",
							Scale:      1,
						}},
					},
				},
			},
		},
		SalesChannelProperties: []models.SalesChannelProperty{
			{SalesChannelID: "etsy", Properties: map[string]any{"title": "Etsy Tee"}},
		},
	}
}

func TestValidDocumentHasNoErrors(t *testing.T) {
	r := Product(validDocument())
	assert.True(t, r.IsValid)
	assert.Empty(t, r.Errors)
}

func TestMissingTitleAndDescription(t *testing.T) {
	doc := validDocument()
	doc.Title = "   "
	doc.Description = ""

	r := Product(doc)
	assert.False(t, r.IsValid)
	assert.Contains(t, strings.Join(r.Errors, "\n"), "title")
	assert.Contains(t, strings.Join(r.Errors, "\n"), "description")
}

func TestNonPositiveIDs(t *testing.T) {
	doc := validDocument()
	doc.BlueprintID = 0
	doc.PrintProviderID = -4

	r := Product(doc)
	assert.False(t, r.IsValid)
	joined := strings.Join(r.Errors, "\n")
	assert.Contains(t, joined, "blueprint_id")
	assert.Contains(t, joined, "print_provider_id")
}

func TestMissingPrintAreasMentionsPrintArea(t *testing.T) {
	doc := validDocument()
	doc.PrintAreas = nil

	r := Product(doc)
	require.False(t, r.IsValid)
	assert.Contains(t, strings.ToLower(strings.Join(r.Errors, "\n")), "print area")
}

func TestVariantChecks(t *testing.T) {
	doc := validDocument()
	doc.Variants = []models.ProductVariant{
		{ID: 0, Price: -1},
		{ID: 12127, Price: 50, Options: models.OptionList{{ID: 1, Value: "M"}}},
	}

	r := Product(doc)
	joined := strings.Join(r.Errors, "\n")
	assert.Contains(t, joined, "variant 0: id must be a positive integer")
	assert.Contains(t, joined, "variant 0: price must be positive")
	assert.Contains(t, joined, "variant 0: options must be non-empty")
	// A positive but tiny price is a warning, not an error.
	assert.NotContains(t, joined, "variant 1: price")
	assert.Contains(t, strings.Join(r.Warnings, "\n"), "suspiciously low")
}

func TestImageFieldErrors(t *testing.T) {
	doc := validDocument()
	doc.PrintAreas[0].Placeholders[0].Images[0] = models.Image{
		URL: "not a url", PreviewURL: "https://ok.example.com/p.png",
	}

	r := Product(doc)
	joined := strings.Join(r.Errors, "\n")
	assert.Contains(t, joined, "id is required")
	assert.Contains(t, joined, "name is required")
	assert.Contains(t, strings.Join(r.Warnings, "\n"), "does not parse as a URL")
}

func TestEmptyPlaceholderAndVariantIDs(t *testing.T) {
	doc := validDocument()
	doc.PrintAreas[0].VariantIDs = nil
	doc.PrintAreas[0].Placeholders[0].Images = nil
	doc.PrintAreas[0].Placeholders[0].Position = ""

	r := Product(doc)
	joined := strings.Join(r.Errors, "\n")
	assert.Contains(t, joined, "variant_ids must be non-empty")
	assert.Contains(t, joined, "position is required")
	assert.Contains(t, joined, "images must be non-empty")
}

func TestSalesChannelWarnings(t *testing.T) {
	doc := validDocument()
	doc.SalesChannelProperties = nil
	r := Product(doc)
	assert.True(t, r.IsValid)
	assert.Contains(t, strings.Join(r.Warnings, "\n"), "sales_channel_properties is missing")

	doc = validDocument()
	doc.SalesChannelProperties[0].Properties = map[string]any{"title": "", "price": float64(0)}
	r = Product(doc)
	assert.True(t, r.IsValid)
	warnings := strings.Join(r.Warnings, "\n")
	assert.Contains(t, warnings, "title is present but empty")
	assert.Contains(t, warnings, "price is present but empty")
}

func TestValidationErrorMessage(t *testing.T) {
	doc := validDocument()
	doc.Title = ""
	r := Product(doc)
	err := &ValidationError{Result: r}
	assert.Contains(t, err.Error(), "1 error(s)")
	assert.Contains(t, err.Error(), "title")
}
