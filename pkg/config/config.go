package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config is constructed once per process and passed into component
// constructors; nothing below the command layer reads the environment.
type Config struct {
	APIToken           string
	ShopID             string
	BaseURL            string
	DefaultProductPath string
	TemplatesDir       string
	TemplateIndexPath  string
}

// ConfigurationError reports required environment values that are absent.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing required environment variables: %s (set them in .env or the environment)",
		strings.Join(e.Missing, ", "))
}

// Load reads .env (if present) and the environment. It does not validate;
// call Validate before using credentials so commands that only touch local
// files can still run without a token.
func Load() Config {
	_ = godotenv.Load(".env", ".env.local")

	return Config{
		APIToken:           os.Getenv("PRINTIFY_API_TOKEN"),
		ShopID:             os.Getenv("PRINTIFY_SHOP_ID"),
		BaseURL:            getenv("PRINTIFY_BASE_URL", "https://api.printify.com/v1"),
		DefaultProductPath: getenv("DEFAULT_PRODUCT_JSON_PATH", "./product.json"),
		TemplatesDir:       getenv("TEMPLATES_DIR", "templates"),
		TemplateIndexPath:  getenv("TEMPLATE_INDEX_PATH", "templates/templates-index.db"),
	}
}

// Validate checks that the credential values required for API access are
// present. Shop ID is optional: it can be discovered from the shops listing.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.APIToken) == "" {
		missing = append(missing, "PRINTIFY_API_TOKEN")
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
