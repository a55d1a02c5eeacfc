package main

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitpancake/eden.printify/pkg/models"
	"github.com/gitpancake/eden.printify/pkg/validate"
)

func submittableDocument() models.ProductDocument {
	return models.ProductDocument{
		Title:           "Tee",
		Description:     "desc",
		BlueprintID:     5,
		PrintProviderID: 50,
		Variants: []models.ProductVariant{
			{ID: 12126, Price: 2500, IsEnabled: true, IsDefault: true, Options: models.OptionList{{ID: 1, Value: "Navy"}}},
		},
		PrintAreas: []models.PrintArea{
			{VariantIDs: []int{12126}, Placeholders: []models.Placeholder{{
				Position: "front",
				Images: []models.Image{{
					ID:         "img1",
					Name:       "design",
					URL:        "https://cdn.mysite.com/a.png",
					PreviewURL: "https://cdn.mysite.com/a.png",
					Scale:      1,
				}},
			}}},
		},
	}
}

func TestValidateForSubmitAcceptsValidDocument(t *testing.T) {
	a := &app{logger: zerolog.Nop()}
	assert.NoError(t, a.validateForSubmit("product.json", submittableDocument()))
}

func TestValidateForSubmitBlocksInvalidDocument(t *testing.T) {
	a := &app{logger: zerolog.Nop()}

	// Well-formed everywhere except print_areas must still be refused.
	doc := submittableDocument()
	doc.PrintAreas = nil

	err := a.validateForSubmit("product.json", doc)
	var vErr *validate.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.False(t, vErr.Result.IsValid)
}
