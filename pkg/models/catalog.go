package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Shop is a sales channel the authenticated account can publish to.
type Shop struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	SalesChannel string `json:"sales_channel"`
}

// shopWire mirrors the API payload, where id is sometimes a number and
// sometimes a string depending on the sales channel.
type shopWire struct {
	ID           json.RawMessage `json:"id"`
	Title        string          `json:"title"`
	SalesChannel string          `json:"sales_channel"`
}

func (s *Shop) UnmarshalJSON(b []byte) error {
	var w shopWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	s.Title = w.Title
	s.SalesChannel = w.SalesChannel
	s.ID = strings.Trim(string(bytes.TrimSpace(w.ID)), `"`)
	return nil
}

// Blueprint is a catalog product type (e.g. a specific t-shirt model).
// Blueprints are immutable and sourced entirely from the catalog.
type Blueprint struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Brand       string   `json:"brand"`
	Model       string   `json:"model"`
	Images      []string `json:"images,omitempty"`
}

// PrintProvider is a manufacturing partner offering a blueprint.
type PrintProvider struct {
	ID       int      `json:"id"`
	Title    string   `json:"title"`
	Location Location `json:"location,omitempty"`
}

// Location is free text in most catalog responses but occasionally arrives
// as a structured address object. Both shapes normalize here, so downstream
// code only ever sees the flattened text plus an optional country code.
type Location struct {
	Text    string
	Country string
}

func (l Location) String() string { return l.Text }

func (l Location) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Text)
}

func (l *Location) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*l = Location{}
		return nil
	}
	if trimmed[0] == '"' {
		return json.Unmarshal(trimmed, &l.Text)
	}
	if trimmed[0] != '{' {
		return fmt.Errorf("models: location must be a string or object, got %q", previewJSON(trimmed))
	}
	var obj map[string]any
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return err
	}
	if c, ok := obj["country"].(string); ok {
		l.Country = c
	}
	// Flatten the address fields in a stable, human-readable order.
	var parts []string
	for _, key := range []string{"address1", "address2", "city", "region", "zip", "country"} {
		if v, ok := obj[key].(string); ok && strings.TrimSpace(v) != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		// Unknown keys only; fall back to whatever string values exist.
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if v, ok := obj[k].(string); ok && strings.TrimSpace(v) != "" {
				parts = append(parts, v)
			}
		}
	}
	l.Text = strings.Join(parts, ", ")
	return nil
}

// VariantOption is one normalized option entry, e.g. {id: 1, value: "Red"}.
type VariantOption struct {
	ID    int    `json:"id"`
	Value string `json:"value"`
}

// OptionList accepts the two shapes the catalog emits for variant options:
// an ordered list of {id, value} pairs, or a free-form key→value map. The
// map form is converted to the list form with ids 1..N in source key order.
type OptionList []VariantOption

func (o *OptionList) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*o = nil
		return nil
	}
	switch trimmed[0] {
	case '[':
		var list []VariantOption
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return err
		}
		*o = list
		return nil
	case '{':
		// Walk the object token-by-token so the source key order survives;
		// decoding into a map would lose it.
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		if _, err := dec.Token(); err != nil {
			return err
		}
		var out []VariantOption
		for dec.More() {
			if _, err := dec.Token(); err != nil {
				return err
			}
			var v any
			if err := dec.Decode(&v); err != nil {
				return err
			}
			out = append(out, VariantOption{ID: len(out) + 1, Value: stringifyOptionValue(v)})
		}
		*o = out
		return nil
	default:
		return fmt.Errorf("models: options must be a list or object, got %q", previewJSON(trimmed))
	}
}

func stringifyOptionValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

// CatalogPlaceholder is a named print location on a catalog variant, with
// pixel dimensions.
type CatalogPlaceholder struct {
	Position string `json:"position"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// CatalogVariant is a sellable configuration of a blueprint+provider pair as
// the catalog reports it.
type CatalogVariant struct {
	ID           int                  `json:"id"`
	Title        string               `json:"title"`
	Options      OptionList           `json:"options,omitempty"`
	Placeholders []CatalogPlaceholder `json:"placeholders,omitempty"`
}

func previewJSON(b []byte) string {
	const max = 40
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
