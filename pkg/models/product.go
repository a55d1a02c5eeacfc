package models

// Image is one artwork entry inside a placeholder. The id/url/preview_url
// triple starts out pointing at externally hosted files and is rewritten in
// place once the file is uploaded to Printify.
type Image struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	URL        string  `json:"url"`
	PreviewURL string  `json:"preview_url"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Scale      float64 `json:"scale"`
	Angle      float64 `json:"angle"`
}

// Placeholder is a print position (e.g. "front") with the artwork placed on it.
type Placeholder struct {
	Position string  `json:"position"`
	Images   []Image `json:"images"`
}

// PrintArea binds placeholders to the variants they apply to.
type PrintArea struct {
	VariantIDs   []int         `json:"variant_ids"`
	Placeholders []Placeholder `json:"placeholders"`
}

// ProductVariant is a purchasable configuration inside a product document.
// Price is in cents. Options follows the same dual-shape acceptance as the
// catalog's variant options.
type ProductVariant struct {
	ID        int        `json:"id"`
	Price     int        `json:"price"`
	IsEnabled bool       `json:"is_enabled"`
	IsDefault bool       `json:"is_default"`
	Grams     int        `json:"grams"`
	Options   OptionList `json:"options"`
}

// SalesChannelProperty carries per-channel overrides for a product.
type SalesChannelProperty struct {
	SalesChannelID string         `json:"sales_channel_id"`
	Properties     map[string]any `json:"properties"`
}

// ProductDocument is the unit created, validated and submitted. It is read
// from hand-authored JSON files or produced by the template assembler, and
// mutated in place (image fields only) by the image pipeline.
type ProductDocument struct {
	Title                  string                 `json:"title"`
	Description            string                 `json:"description"`
	BlueprintID            int                    `json:"blueprint_id"`
	PrintProviderID        int                    `json:"print_provider_id"`
	Variants               []ProductVariant       `json:"variants"`
	PrintAreas             []PrintArea            `json:"print_areas"`
	SalesChannelProperties []SalesChannelProperty `json:"sales_channel_properties,omitempty"`
}

// Product is the catalog's canonical representation of a created product,
// i.e. a ProductDocument plus the server-assigned id.
type Product struct {
	ID string `json:"id"`
	ProductDocument
}

// UploadedImage is the transient result of the image-upload endpoint. URL
// may be absent in the response, in which case PreviewURL substitutes; the
// client normalizes that before handing the value out.
type UploadedImage struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	PreviewURL string `json:"preview_url"`
}
