package printify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gitpancake/eden.printify/pkg/models"
	"github.com/gitpancake/eden.printify/pkg/utils"
)

// DefaultBaseURL is the production Printify REST endpoint.
const DefaultBaseURL = "https://api.printify.com/v1"

const defaultUserAgent = "EdenPrintify/1.2.0"

// Options configures the Printify API client.
type Options struct {
	Token          string
	ShopID         string
	BaseURL        string
	UserAgent      string
	HTTPClient     *http.Client
	Logger         zerolog.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the Printify REST API. Every call is
// made at most once; retries and backoff belong to the caller's transport,
// not here.
type Client struct {
	shopID     string
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient constructs a client with sane defaults and injected dependencies.
// A custom HTTPClient (e.g. a stub transport in tests) may omit the token.
func NewClient(opts Options) (*Client, error) {
	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		if strings.TrimSpace(opts.Token) == "" {
			return nil, ErrMissingToken
		}
		httpClient = utils.NewAuthenticatedHTTPClient(opts.Token, userAgent, opts.RequestTimeout)
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		shopID:     strings.TrimSpace(opts.ShopID),
		baseURL:    baseURL,
		userAgent:  userAgent,
		httpClient: httpClient,
		logger:     opts.Logger,
	}, nil
}

// ShopID returns the currently configured shop id, which may be empty until
// ResolveShop has run.
func (c *Client) ShopID() string { return c.shopID }

// ResolveShop returns the configured shop id, or discovers one from the
// shops listing when none was configured. With multiple shops the first one
// wins and the rest are logged.
func (c *Client) ResolveShop(ctx context.Context) (string, error) {
	if c.shopID != "" {
		return c.shopID, nil
	}
	shops, err := c.Shops(ctx)
	if err != nil {
		return "", err
	}
	if len(shops) == 0 {
		return "", ErrNoShops
	}
	if len(shops) > 1 {
		c.logger.Warn().
			Int("shops", len(shops)).
			Str("using", shops[0].Title).
			Str("shop_id", shops[0].ID).
			Msg("multiple shops found, using the first one")
	}
	c.shopID = shops[0].ID
	return c.shopID, nil
}

// Shops lists the shops for the authenticated account.
func (c *Client) Shops(ctx context.Context) ([]models.Shop, error) {
	body, err := c.do(ctx, http.MethodGet, "/shops.json", nil)
	if err != nil {
		return nil, err
	}
	return decodeList[models.Shop](body, "data")
}

// Blueprints lists every product type in the catalog.
func (c *Client) Blueprints(ctx context.Context) ([]models.Blueprint, error) {
	body, err := c.do(ctx, http.MethodGet, "/catalog/blueprints.json", nil)
	if err != nil {
		return nil, err
	}
	return decodeList[models.Blueprint](body, "data")
}

// PrintProviders lists the providers that can fulfill a blueprint.
func (c *Client) PrintProviders(ctx context.Context, blueprintID int) ([]models.PrintProvider, error) {
	path := fmt.Sprintf("/catalog/blueprints/%d/print_providers.json", blueprintID)
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return decodeList[models.PrintProvider](body, "data")
}

// PrintProvider fetches a single provider by id.
func (c *Client) PrintProvider(ctx context.Context, providerID int) (models.PrintProvider, error) {
	path := fmt.Sprintf("/catalog/print_providers/%d.json", providerID)
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return models.PrintProvider{}, err
	}
	var provider models.PrintProvider
	if err := json.Unmarshal(body, &provider); err != nil {
		return models.PrintProvider{}, fmt.Errorf("printify: decoding print provider: %w", err)
	}
	return provider, nil
}

// Variants lists the sellable configurations for a blueprint+provider pair.
// The endpoint sometimes returns a raw list and sometimes wraps it under
// "variants"; both shapes normalize here.
func (c *Client) Variants(ctx context.Context, blueprintID, printProviderID int) ([]models.CatalogVariant, error) {
	path := fmt.Sprintf("/catalog/blueprints/%d/print_providers/%d/variants.json", blueprintID, printProviderID)
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return decodeList[models.CatalogVariant](body, "variants", "data")
}

// CreateProduct submits a product document to the shop. Callers are expected
// to run the document through the validator first.
func (c *Client) CreateProduct(ctx context.Context, doc models.ProductDocument) (models.Product, error) {
	shopID, err := c.ResolveShop(ctx)
	if err != nil {
		return models.Product{}, err
	}
	body, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/shops/%s/products.json", shopID), doc)
	if err != nil {
		return models.Product{}, err
	}
	var product models.Product
	if err := json.Unmarshal(body, &product); err != nil {
		return models.Product{}, fmt.Errorf("printify: decoding created product: %w", err)
	}
	return product, nil
}

// Products lists the products in the current shop.
func (c *Client) Products(ctx context.Context) ([]models.Product, error) {
	shopID, err := c.ResolveShop(ctx)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/shops/%s/products.json", shopID), nil)
	if err != nil {
		return nil, err
	}
	return decodeList[models.Product](body, "data")
}

// Product fetches a single product by id.
func (c *Client) Product(ctx context.Context, productID string) (models.Product, error) {
	shopID, err := c.ResolveShop(ctx)
	if err != nil {
		return models.Product{}, err
	}
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/shops/%s/products/%s.json", shopID, productID), nil)
	if err != nil {
		return models.Product{}, err
	}
	var product models.Product
	if err := json.Unmarshal(body, &product); err != nil {
		return models.Product{}, fmt.Errorf("printify: decoding product: %w", err)
	}
	return product, nil
}

// UpdateProduct is a pass-through PUT; there is no merge semantics here.
func (c *Client) UpdateProduct(ctx context.Context, productID string, doc models.ProductDocument) (models.Product, error) {
	shopID, err := c.ResolveShop(ctx)
	if err != nil {
		return models.Product{}, err
	}
	body, err := c.do(ctx, http.MethodPut, fmt.Sprintf("/shops/%s/products/%s.json", shopID, productID), doc)
	if err != nil {
		return models.Product{}, err
	}
	var product models.Product
	if err := json.Unmarshal(body, &product); err != nil {
		return models.Product{}, fmt.Errorf("printify: decoding updated product: %w", err)
	}
	return product, nil
}

// DeleteProduct removes a product from the shop.
func (c *Client) DeleteProduct(ctx context.Context, productID string) error {
	shopID, err := c.ResolveShop(ctx)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodDelete, fmt.Sprintf("/shops/%s/products/%s.json", shopID, productID), nil)
	return err
}

// PublishProduct pushes a product to a sales channel.
func (c *Client) PublishProduct(ctx context.Context, productID, salesChannelID string) error {
	shopID, err := c.ResolveShop(ctx)
	if err != nil {
		return err
	}
	payload := map[string]string{"sales_channel_id": salesChannelID}
	_, err = c.do(ctx, http.MethodPost, fmt.Sprintf("/shops/%s/products/%s/publish.json", shopID, productID), payload)
	return err
}

// UploadImageFromURL asks Printify to fetch and host an externally hosted
// image. The response's url field may be absent; preview_url substitutes.
func (c *Client) UploadImageFromURL(ctx context.Context, srcURL, fileName string) (models.UploadedImage, error) {
	payload := map[string]string{"url": srcURL, "file_name": fileName}
	body, err := c.do(ctx, http.MethodPost, "/uploads/images.json", payload)
	if err != nil {
		return models.UploadedImage{}, err
	}
	return decodeUploadedImage(body)
}

// UploadImageFile uploads a local file as multipart form data.
func (c *Client) UploadImageFile(ctx context.Context, path string) (models.UploadedImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.UploadedImage{}, fmt.Errorf("printify: opening image file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return models.UploadedImage{}, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return models.UploadedImage{}, fmt.Errorf("printify: reading image file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return models.UploadedImage{}, err
	}

	reqURL := c.baseURL + "/uploads/images.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, &buf)
	if err != nil {
		return models.UploadedImage{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	body, err := c.send(req)
	if err != nil {
		return models.UploadedImage{}, err
	}
	return decodeUploadedImage(body)
}

func decodeUploadedImage(body []byte) (models.UploadedImage, error) {
	var img models.UploadedImage
	if err := json.Unmarshal(body, &img); err != nil {
		return models.UploadedImage{}, fmt.Errorf("printify: decoding upload response: %w", err)
	}
	if img.URL == "" {
		img.URL = img.PreviewURL
	}
	return img, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("printify: encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req)
}

func (c *Client) send(req *http.Request) ([]byte, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("printify: %s %s: %w", req.Method, req.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("printify: reading response body: %w", err)
	}

	c.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("printify api call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Method:     req.Method,
			URL:        req.URL.String(),
			Body:       previewBody(body, 2048),
		}
	}
	return body, nil
}

// decodeList accepts the two shapes catalog listings come in: a raw JSON
// array, or an object wrapping the array under a service-specific key.
func decodeList[T any](body []byte, keys ...string) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var out []T
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, fmt.Errorf("printify: decoding list response: %w", err)
		}
		return out, nil
	}
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("printify: decoding wrapped response: %w", err)
	}
	for _, key := range keys {
		raw, ok := wrapped[key]
		if !ok {
			continue
		}
		var out []T
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("printify: decoding %q list: %w", key, err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("printify: response object has none of the expected list keys %v", keys)
}
