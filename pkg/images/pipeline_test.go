package images

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitpancake/eden.printify/pkg/models"
)

type fakeUploader struct {
	calls   []string
	results map[string]models.UploadedImage
	failOn  string
}

func (f *fakeUploader) UploadImageFromURL(ctx context.Context, srcURL, fileName string) (models.UploadedImage, error) {
	f.calls = append(f.calls, srcURL)
	if srcURL == f.failOn {
		return models.UploadedImage{}, errors.New("boom")
	}
	if img, ok := f.results[srcURL]; ok {
		return img, nil
	}
	return models.UploadedImage{ID: "up_" + fileName, URL: "https://images.printify.com/" + fileName, PreviewURL: "https://images.printify.com/preview/" + fileName}, nil
}

func newPipeline(u Uploader) *Pipeline {
	return NewPipeline(Options{Uploader: u, Logger: zerolog.Nop()})
}

func docWithImages(urls ...string) models.ProductDocument {
	var images []models.Image
	for i, u := range urls {
		images = append(images, models.Image{
			ID:         "img" + string(rune('a'+i)),
			Name:       "design " + string(rune('a'+i)),
			URL:        u,
			PreviewURL: u,
			X:          0.5,
			Y:          0.25,
			Scale:      0.9,
			Angle:      15,
		})
	}
	return models.ProductDocument{
		Title:           "Tee",
		Description:     "desc",
		BlueprintID:     5,
		PrintProviderID: 50,
		Variants: []models.ProductVariant{
			{ID: 12126, Price: 2500, IsEnabled: true, IsDefault: true, Options: models.OptionList{{ID: 1, Value: "Navy"}}},
		},
		PrintAreas: []models.PrintArea{
			{VariantIDs: []int{12126}, Placeholders: []models.Placeholder{{Position: "front", Images: images}}},
		},
		SalesChannelProperties: []models.SalesChannelProperty{
			{SalesChannelID: "etsy", Properties: map[string]any{"title": "Etsy Tee"}},
		},
	}
}

func TestIsExternalURL(t *testing.T) {
	assert.True(t, IsExternalURL("https://cdn.mysite.com/art.png"))
	assert.True(t, IsExternalURL("http://cdn.mysite.com/art.png"))
	assert.False(t, IsExternalURL("https://images.printify.com/abc"))
	assert.False(t, IsExternalURL("https://printify.com/abc"))
	assert.False(t, IsExternalURL("https://example.com/placeholder-image.png"))
	assert.False(t, IsExternalURL("https://via.placeholder.com/400"))
	assert.False(t, IsExternalURL("https://placekitten.com/200/300"))
	assert.False(t, IsExternalURL("file:///tmp/art.png"))
	assert.False(t, IsExternalURL(""))

	// Only the placeholder host itself is skipped. Real artwork hosted on
	// an example.com subdomain must be uploaded.
	assert.True(t, IsExternalURL("https://cdn.example.com/a.png"))
	assert.True(t, IsExternalURL("https://myexample.com/a.png"))
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "my_cool_design_v2.png", SanitizeFileName("my cool design-v2"))
	assert.Equal(t, "uploaded_image.png", SanitizeFileName(""))
}

func TestProcessNoExternalImagesIsNoOp(t *testing.T) {
	u := &fakeUploader{}
	doc := docWithImages("https://example.com/placeholder-image.png")

	got, err := newPipeline(u).Process(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, doc, got)
	assert.Empty(t, u.calls, "no-op must not reach the network")
}

func TestProcessRewritesAndStrips(t *testing.T) {
	u := &fakeUploader{}
	doc := docWithImages("https://cdn.mysite.com/a.png")

	got, err := newPipeline(u).Process(context.Background(), doc)
	require.NoError(t, err)
	require.Equal(t, []string{"https://cdn.mysite.com/a.png"}, u.calls)

	img := got.PrintAreas[0].Placeholders[0].Images[0]
	assert.Equal(t, "up_design_a.png", img.ID)
	assert.Equal(t, "https://images.printify.com/design_a.png", img.URL)
	assert.Equal(t, "https://images.printify.com/preview/design_a.png", img.PreviewURL)

	// Transform and name survive the rewrite.
	assert.Equal(t, "design a", img.Name)
	assert.Equal(t, 0.5, img.X)
	assert.Equal(t, 0.25, img.Y)
	assert.Equal(t, 0.9, img.Scale)
	assert.Equal(t, 15.0, img.Angle)

	assert.Nil(t, got.SalesChannelProperties)

	// The input document is untouched.
	assert.Equal(t, "imga", doc.PrintAreas[0].Placeholders[0].Images[0].ID)
	assert.NotNil(t, doc.SalesChannelProperties)
}

func TestProcessUploadsExampleSubdomainImage(t *testing.T) {
	u := &fakeUploader{results: map[string]models.UploadedImage{
		"https://cdn.example.com/a.png": {ID: "real123", URL: "https://printify.com/x", PreviewURL: "https://printify.com/y"},
	}}
	doc := docWithImages("https://cdn.example.com/a.png")

	got, err := newPipeline(u).Process(context.Background(), doc)
	require.NoError(t, err)
	require.Equal(t, []string{"https://cdn.example.com/a.png"}, u.calls)

	img := got.PrintAreas[0].Placeholders[0].Images[0]
	assert.Equal(t, "real123", img.ID)
	assert.Equal(t, "https://printify.com/x", img.URL)
	assert.Equal(t, "https://printify.com/y", img.PreviewURL)
	assert.Equal(t, "design a", img.Name)
	assert.Equal(t, 0.5, img.X)
	assert.Equal(t, 0.25, img.Y)
	assert.Equal(t, 0.9, img.Scale)
	assert.Equal(t, 15.0, img.Angle)
}

func TestProcessDedupesByImageID(t *testing.T) {
	u := &fakeUploader{}
	doc := docWithImages("https://cdn.mysite.com/a.png")
	// Second placeholder reuses the same image id.
	doc.PrintAreas = append(doc.PrintAreas, models.PrintArea{
		VariantIDs: []int{12127},
		Placeholders: []models.Placeholder{{
			Position: "back",
			Images:   []models.Image{{ID: "imga", Name: "design a", URL: "https://cdn.mysite.com/a.png", PreviewURL: "https://cdn.mysite.com/a.png", Scale: 1}},
		}},
	})

	got, err := newPipeline(u).Process(context.Background(), doc)
	require.NoError(t, err)
	assert.Len(t, u.calls, 1, "shared image id means one upload job")
	assert.Equal(t, got.PrintAreas[0].Placeholders[0].Images[0].ID, got.PrintAreas[1].Placeholders[0].Images[0].ID)
}

func TestProcessZeroSuccessesFallsBack(t *testing.T) {
	u := &fakeUploader{failOn: "https://cdn.mysite.com/a.png"}
	doc := docWithImages("https://cdn.mysite.com/a.png", "https://cdn.mysite.com/b.png")

	got, err := newPipeline(u).Process(context.Background(), doc)
	require.NoError(t, err, "total upload failure degrades to an artwork-free document")

	require.Len(t, got.PrintAreas, 1)
	require.Len(t, got.PrintAreas[0].Placeholders, 1)
	assert.Equal(t, "front", got.PrintAreas[0].Placeholders[0].Position)
	assert.Empty(t, got.PrintAreas[0].Placeholders[0].Images)
	assert.Nil(t, got.SalesChannelProperties)

	// The batch aborts on the first failure.
	assert.Equal(t, []string{"https://cdn.mysite.com/a.png"}, u.calls)
}

func TestProcessPartialFailurePropagates(t *testing.T) {
	u := &fakeUploader{failOn: "https://cdn.mysite.com/b.png"}
	doc := docWithImages("https://cdn.mysite.com/a.png", "https://cdn.mysite.com/b.png")

	_, err := newPipeline(u).Process(context.Background(), doc)
	var uploadErr *UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, "imgb", uploadErr.ImageID)
	assert.Equal(t, "https://cdn.mysite.com/b.png", uploadErr.URL)
}

func TestProcessFileWritesSibling(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "product.json")
	data, err := json.Marshal(docWithImages("https://cdn.mysite.com/a.png"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	u := &fakeUploader{}
	outPath, err := newPipeline(u).ProcessFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "product-with-uploaded-images.json"), outPath)

	// Input file is byte-identical.
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, after)

	var processed models.ProductDocument
	out, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(out, &processed))
	assert.Equal(t, "up_design_a.png", processed.PrintAreas[0].Placeholders[0].Images[0].ID)
}
