// Package validate checks product documents against the structure the
// create-product endpoint expects. It is a closed-form check: no network,
// no catalog lookups, just the document's own shape and numeric ranges.
package validate

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gitpancake/eden.printify/pkg/models"
)

// Result separates blocking errors from advisory warnings. A document is
// submittable only when Errors is empty; warnings never block.
type Result struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// ValidationError wraps a failed Result so callers can refuse submission
// with the full error list attached.
type ValidationError struct {
	Result Result
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("product document failed validation with %d error(s): %s",
		len(e.Result.Errors), strings.Join(e.Result.Errors, "; "))
}

// Product validates a product document. Ordering is stable: document-level
// checks first, then variants, print areas and sales channel properties in
// document order.
func Product(doc models.ProductDocument) Result {
	var r Result

	if strings.TrimSpace(doc.Title) == "" {
		r.Errors = append(r.Errors, "title is required and must be non-empty")
	}
	if strings.TrimSpace(doc.Description) == "" {
		r.Errors = append(r.Errors, "description is required and must be non-empty")
	}
	if doc.BlueprintID <= 0 {
		r.Errors = append(r.Errors, "blueprint_id is required and must be a positive integer")
	}
	if doc.PrintProviderID <= 0 {
		r.Errors = append(r.Errors, "print_provider_id is required and must be a positive integer")
	}

	if len(doc.Variants) == 0 {
		r.Errors = append(r.Errors, "variants must be a non-empty list")
	}
	for i, v := range doc.Variants {
		if v.ID <= 0 {
			r.Errors = append(r.Errors, fmt.Sprintf("variant %d: id must be a positive integer", i))
		}
		if v.Price <= 0 {
			r.Errors = append(r.Errors, fmt.Sprintf("variant %d: price must be positive (in cents)", i))
		} else if v.Price < 100 {
			r.Warnings = append(r.Warnings, fmt.Sprintf("variant %d: price %d is below 100 cents, which looks suspiciously low", i, v.Price))
		}
		if len(v.Options) == 0 {
			r.Errors = append(r.Errors, fmt.Sprintf("variant %d: options must be non-empty", i))
		}
	}

	if len(doc.PrintAreas) == 0 {
		r.Errors = append(r.Errors, "print_areas must be a non-empty list: at least one print area is required")
	}
	for i, area := range doc.PrintAreas {
		if len(area.VariantIDs) == 0 {
			r.Errors = append(r.Errors, fmt.Sprintf("print area %d: variant_ids must be non-empty", i))
		}
		if len(area.Placeholders) == 0 {
			r.Errors = append(r.Errors, fmt.Sprintf("print area %d: placeholders must be non-empty", i))
		}
		for j, ph := range area.Placeholders {
			if strings.TrimSpace(ph.Position) == "" {
				r.Errors = append(r.Errors, fmt.Sprintf("print area %d placeholder %d: position is required", i, j))
			}
			if len(ph.Images) == 0 {
				r.Errors = append(r.Errors, fmt.Sprintf("print area %d placeholder %d: images must be non-empty", i, j))
			}
			for k, img := range ph.Images {
				where := fmt.Sprintf("print area %d placeholder %d image %d", i, j, k)
				if img.ID == "" {
					r.Errors = append(r.Errors, where+": id is required")
				}
				if img.Name == "" {
					r.Errors = append(r.Errors, where+": name is required")
				}
				if img.URL == "" {
					r.Errors = append(r.Errors, where+": url is required")
				} else if !isParseableURL(img.URL) {
					r.Warnings = append(r.Warnings, where+": url does not parse as a URL: "+img.URL)
				}
				if img.PreviewURL == "" {
					r.Errors = append(r.Errors, where+": preview_url is required")
				} else if !isParseableURL(img.PreviewURL) {
					r.Warnings = append(r.Warnings, where+": preview_url does not parse as a URL: "+img.PreviewURL)
				}
			}
		}
	}

	if len(doc.SalesChannelProperties) == 0 {
		r.Warnings = append(r.Warnings, "sales_channel_properties is missing; channel defaults will apply")
	}
	for i, scp := range doc.SalesChannelProperties {
		for _, field := range []string{"title", "description", "price"} {
			v, present := scp.Properties[field]
			if present && isEmptyPropertyValue(v) {
				r.Warnings = append(r.Warnings, fmt.Sprintf("sales channel property %d: %s is present but empty", i, field))
			}
		}
		if _, present := scp.Properties["is_enabled"]; present {
			if _, ok := scp.Properties["is_enabled"].(bool); !ok {
				r.Warnings = append(r.Warnings, fmt.Sprintf("sales channel property %d: is_enabled is present but not a boolean", i))
			}
		}
	}

	r.IsValid = len(r.Errors) == 0
	return r
}

func isParseableURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func isEmptyPropertyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case float64:
		return t == 0
	default:
		return false
	}
}
