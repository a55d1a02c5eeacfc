// Package images resolves externally-hosted artwork inside a product
// document into Printify-hosted references so the document becomes
// submittable.
package images

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gitpancake/eden.printify/pkg/models"
)

// Uploader is the slice of the Printify client the pipeline needs.
type Uploader interface {
	UploadImageFromURL(ctx context.Context, srcURL, fileName string) (models.UploadedImage, error)
}

// UploadError reports a failed upload that aborted the batch after at
// least one image had already been uploaded.
type UploadError struct {
	ImageID  string
	URL      string
	FileName string
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("uploading image %q (%s): %v", e.ImageID, e.URL, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// OutputSuffix is appended to the input file's base name by ProcessFile.
const OutputSuffix = "-with-uploaded-images"

// Domains that never need uploading, matched against the URL host:
// Printify's own CDN and throwaway placeholder-image services. Subdomains
// are covered (images.printify.com).
var skipDomains = []string{
	"printify.com",
	"placeholder.com",
	"placehold.it",
	"placehold.co",
	"placekitten.com",
}

// The generated-template placeholder URL lives on example.com itself.
// Only that exact host is skipped; subdomains like cdn.example.com are
// real external hosts.
const placeholderHost = "example.com"

// Options configures a Pipeline.
type Options struct {
	Uploader Uploader
	Logger   zerolog.Logger
}

// Pipeline uploads external images referenced by a product document and
// rewrites the references in place.
type Pipeline struct {
	uploader Uploader
	logger   zerolog.Logger
}

func NewPipeline(opts Options) *Pipeline {
	return &Pipeline{uploader: opts.Uploader, logger: opts.Logger}
}

type uploadJob struct {
	imageID  string
	url      string
	fileName string
}

// Process uploads every distinct external image in the document and
// returns a copy with the references rewritten and
// sales_channel_properties removed. A document without external images is
// returned unchanged. When no upload succeeds the copy instead has every
// placeholder's image list emptied so the product can still be submitted
// without artwork.
func (p *Pipeline) Process(ctx context.Context, doc models.ProductDocument) (models.ProductDocument, error) {
	jobs := extractJobs(doc)
	if len(jobs) == 0 {
		return doc, nil
	}

	uploaded := make(map[string]models.UploadedImage, len(jobs))
	for _, job := range jobs {
		img, err := p.uploader.UploadImageFromURL(ctx, job.url, job.fileName)
		if err != nil {
			if len(uploaded) == 0 {
				p.logger.Warn().
					Str("image_id", job.imageID).
					Str("url", job.url).
					Err(err).
					Msg("upload batch failed, continuing without artwork")
				return stripImages(doc), nil
			}
			return doc, &UploadError{ImageID: job.imageID, URL: job.url, FileName: job.fileName, Err: err}
		}
		p.logger.Info().
			Str("image_id", job.imageID).
			Str("uploaded_id", img.ID).
			Str("file_name", job.fileName).
			Msg("image uploaded")
		uploaded[job.imageID] = img
	}

	return rewrite(doc, uploaded), nil
}

// ProcessFile runs Process on a product JSON file and writes the result
// to a sibling file. The input file is never modified.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading product file: %w", err)
	}
	var doc models.ProductDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("decoding product file %s: %w", path, err)
	}

	processed, err := p.Process(ctx, doc)
	if err != nil {
		return "", err
	}

	out, err := json.MarshalIndent(processed, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding processed product: %w", err)
	}

	outPath := outputPath(path)
	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		return "", fmt.Errorf("writing processed product: %w", err)
	}
	return outPath, nil
}

func outputPath(path string) string {
	if strings.HasSuffix(path, ".json") {
		return strings.TrimSuffix(path, ".json") + OutputSuffix + ".json"
	}
	return path + OutputSuffix
}

// extractJobs collects the distinct external images in document order,
// keyed by the image's id field.
func extractJobs(doc models.ProductDocument) []uploadJob {
	var jobs []uploadJob
	seen := make(map[string]bool)
	for _, area := range doc.PrintAreas {
		for _, ph := range area.Placeholders {
			for _, img := range ph.Images {
				if !IsExternalURL(img.URL) || seen[img.ID] {
					continue
				}
				seen[img.ID] = true
				jobs = append(jobs, uploadJob{
					imageID:  img.ID,
					url:      img.URL,
					fileName: SanitizeFileName(img.Name),
				})
			}
		}
	}
	return jobs
}

// rewrite returns a copy of doc with every uploaded image's id, url and
// preview_url replaced. Position, transform and name are untouched.
// sales_channel_properties is dropped.
func rewrite(doc models.ProductDocument, uploaded map[string]models.UploadedImage) models.ProductDocument {
	out := doc
	out.SalesChannelProperties = nil
	out.PrintAreas = make([]models.PrintArea, len(doc.PrintAreas))
	for i, area := range doc.PrintAreas {
		out.PrintAreas[i] = area
		out.PrintAreas[i].Placeholders = make([]models.Placeholder, len(area.Placeholders))
		for j, ph := range area.Placeholders {
			out.PrintAreas[i].Placeholders[j] = ph
			images := make([]models.Image, len(ph.Images))
			copy(images, ph.Images)
			for k := range images {
				if up, ok := uploaded[images[k].ID]; ok {
					images[k].ID = up.ID
					images[k].URL = up.URL
					images[k].PreviewURL = up.PreviewURL
				}
			}
			out.PrintAreas[i].Placeholders[j].Images = images
		}
	}
	return out
}

// stripImages returns a copy of doc with every placeholder retained but
// its image list emptied, and sales_channel_properties dropped.
func stripImages(doc models.ProductDocument) models.ProductDocument {
	out := doc
	out.SalesChannelProperties = nil
	out.PrintAreas = make([]models.PrintArea, len(doc.PrintAreas))
	for i, area := range doc.PrintAreas {
		out.PrintAreas[i] = area
		out.PrintAreas[i].Placeholders = make([]models.Placeholder, len(area.Placeholders))
		for j, ph := range area.Placeholders {
			out.PrintAreas[i].Placeholders[j] = ph
			out.PrintAreas[i].Placeholders[j].Images = []models.Image{}
		}
	}
	return out
}

// IsExternalURL reports whether an image URL needs uploading: an http(s)
// URL whose host is neither Printify's nor a placeholder-image service's.
func IsExternalURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" || host == placeholderHost {
		return false
	}
	for _, domain := range skipDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return false
		}
	}
	return true
}

// SanitizeFileName maps an image name onto an upload filename: every
// non-alphanumeric character becomes an underscore and a .png extension
// is appended.
func SanitizeFileName(name string) string {
	if name == "" {
		name = "uploaded_image"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String() + ".png"
}
