package templates

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gitpancake/eden.printify/pkg/models"
)

// BlueprintSummary is the slice of a blueprint recorded in envelopes and
// the summary file.
type BlueprintSummary struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Brand string `json:"brand,omitempty"`
	Model string `json:"model,omitempty"`
}

// ProviderSummary identifies the print provider a template was built for.
type ProviderSummary struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// Metadata describes when and from what a template was generated.
type Metadata struct {
	GeneratedAt   time.Time        `json:"generated_at"`
	Blueprint     BlueprintSummary `json:"blueprint"`
	PrintProvider ProviderSummary  `json:"print_provider"`
	VariantCount  int              `json:"variant_count"`
}

// Envelope is the on-disk template format: the generated document plus
// metadata about its provenance.
type Envelope struct {
	Metadata Metadata               `json:"metadata"`
	Template models.ProductDocument `json:"template"`
}

// Summary is the library-wide rollup written next to the templates.
type Summary struct {
	TotalTemplates  int                `json:"total_templates"`
	TotalBlueprints int                `json:"total_blueprints"`
	GeneratedAt     time.Time          `json:"generated_at"`
	Blueprints      []BlueprintSummary `json:"blueprints"`
}

const summaryFileName = "templates-summary.json"

// Store persists template envelopes under a directory keyed by blueprint
// and provider id.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Dir() string { return s.dir }

// SummaryPath is where WriteSummary places the rollup file.
func (s *Store) SummaryPath() string {
	return filepath.Join(s.dir, summaryFileName)
}

// Save writes the envelope to
// <dir>/blueprint-<id>/provider-<id>/<sanitized-title>.json and returns
// the path.
func (s *Store) Save(env Envelope) (string, error) {
	dir := filepath.Join(
		s.dir,
		fmt.Sprintf("blueprint-%d", env.Metadata.Blueprint.ID),
		fmt.Sprintf("provider-%d", env.Metadata.PrintProvider.ID),
	)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating template directory: %w", err)
	}

	path := filepath.Join(dir, SanitizeTitle(env.Template.Title)+".json")
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding template: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing template: %w", err)
	}
	return path, nil
}

// Load reads a single envelope by path.
func (s *Store) Load(path string) (Envelope, error) {
	var env Envelope
	data, err := os.ReadFile(path)
	if err != nil {
		return env, fmt.Errorf("reading template: %w", err)
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("decoding template %s: %w", path, err)
	}
	return env, nil
}

// WriteSummary writes the library rollup file.
func (s *Store) WriteSummary(sum Summary) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating templates directory: %w", err)
	}
	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	if err := os.WriteFile(s.SummaryPath(), data, 0o644); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return nil
}

// ReadSummary returns the rollup file, or a zero Summary when it does not
// exist yet.
func (s *Store) ReadSummary() (Summary, error) {
	var sum Summary
	data, err := os.ReadFile(s.SummaryPath())
	if os.IsNotExist(err) {
		return sum, nil
	}
	if err != nil {
		return sum, fmt.Errorf("reading summary: %w", err)
	}
	if err := json.Unmarshal(data, &sum); err != nil {
		return sum, fmt.Errorf("decoding summary: %w", err)
	}
	return sum, nil
}

// Walk visits every saved envelope in the library, skipping files that do
// not parse as envelopes.
func (s *Store) Walk(fn func(path string, env Envelope) error) error {
	return filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == s.dir {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") || d.Name() == summaryFileName {
			return nil
		}
		env, err := s.Load(path)
		if err != nil || env.Metadata.Blueprint.ID == 0 {
			return nil
		}
		return fn(path, env)
	})
}

// SanitizeTitle maps a template title onto a filesystem-safe name: every
// run of non-alphanumeric characters becomes a single underscore.
func SanitizeTitle(title string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}
