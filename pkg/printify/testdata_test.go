package printify

import "github.com/gitpancake/eden.printify/pkg/models"

func sampleDocument() models.ProductDocument {
	return models.ProductDocument{
		Title:           "My Tee",
		Description:     "A soft everyday tee",
		BlueprintID:     5,
		PrintProviderID: 50,
		Variants: []models.ProductVariant{
			{
				ID:        12126,
				Price:     2500,
				IsEnabled: true,
				IsDefault: true,
				Grams:     180,
				Options:   models.OptionList{{ID: 1, Value: "Navy"}, {ID: 2, Value: "S"}},
			},
		},
		PrintAreas: []models.PrintArea{
			{
				VariantIDs: []int{12126},
				Placeholders: []models.Placeholder{
					{
						Position: "front",
						Images: []models.Image{
							{
								ID:         "img1",
								Name:       "front design",
								URL:        "https://cdn.example.com/a.png",
								PreviewURL: "https://cdn.example.com/a.png",
								Scale:      1,
							},
						},
					},
				},
			},
		},
	}
}
