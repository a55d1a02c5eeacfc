package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gitpancake/eden.printify/pkg/config"
	"github.com/gitpancake/eden.printify/pkg/discover"
	"github.com/gitpancake/eden.printify/pkg/images"
	"github.com/gitpancake/eden.printify/pkg/models"
	"github.com/gitpancake/eden.printify/pkg/printify"
	"github.com/gitpancake/eden.printify/pkg/templates"
	"github.com/gitpancake/eden.printify/pkg/validate"
)

// CLI for the Printify catalog, template and product workflow.
//
// Examples:
//
//	go run ./cmd/printify list-shops
//	go run ./cmd/printify generate-template --blueprint 5 --provider 50
//	go run ./cmd/printify search-products tee hoodie
//
// Structured logs go to stderr; command results go to stdout as JSON.
func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg := config.Load()
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger().Level(logLevel())

	a := &app{cfg: cfg, logger: logger}

	switch os.Args[1] {
	case "create":
		a.create(os.Args[2:])
	case "list-shops":
		a.listShops(os.Args[2:])
	case "list-products":
		a.listProducts(os.Args[2:])
	case "debug-blueprints":
		a.debugBlueprints(os.Args[2:])
	case "debug-blueprint":
		a.debugBlueprint(os.Args[2:])
	case "debug-structure":
		a.debugStructure(os.Args[2:])
	case "debug-print-provider":
		a.debugPrintProvider(os.Args[2:])
	case "upload-image":
		a.uploadImage(os.Args[2:])
	case "generate-template":
		a.generateTemplate(os.Args[2:])
	case "generate-all-templates":
		a.generateAllTemplates(os.Args[2:])
	case "generate-dynamic-template":
		a.generateDynamicTemplate(os.Args[2:])
	case "list-templates":
		a.listTemplates(os.Args[2:])
	case "show-categories":
		a.showCategories(os.Args[2:])
	case "process-with-images":
		a.processWithImages(os.Args[2:])
	case "discover-products":
		a.discoverProducts(os.Args[2:])
	case "search-products":
		a.searchProducts(os.Args[2:])
	case "publish":
		a.publish(os.Args[2:])
	case "help":
		usage()
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	lines := []string{
		"usage:",
		"  printify create [--file product.json]",
		"  printify list-shops",
		"  printify list-products",
		"  printify debug-blueprints [--limit n]",
		"  printify debug-blueprint --id <blueprint-id>",
		"  printify debug-structure --blueprint <id> --provider <id>",
		"  printify debug-print-provider --id <provider-id>",
		"  printify upload-image (--file <path> | --url <url> --name <file-name>)",
		"  printify generate-template --blueprint <id> --provider <id> [--title t] [--price cents] [--grams g]",
		"  printify generate-all-templates",
		"  printify generate-dynamic-template --blueprint <id> --provider <id> [--title t] [--description d] [--price cents]",
		"  printify list-templates",
		"  printify show-categories",
		"  printify process-with-images [--file product.json] [--create]",
		"  printify discover-products [--category c] [--max-price cents] [--location substr]",
		"  printify search-products <keyword> [keyword ...]",
		"  printify publish --product <id> --channel <sales-channel-id>",
		"  printify help",
	}
	for _, l := range lines {
		_, _ = fmt.Fprintln(os.Stderr, l)
	}
}

func logLevel() zerolog.Level {
	if os.Getenv("PRINTIFY_DEBUG") != "" {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

type app struct {
	cfg    config.Config
	logger zerolog.Logger
}

// client builds the API client, exiting when credentials are missing.
func (a *app) client() *printify.Client {
	if err := a.cfg.Validate(); err != nil {
		fail(err)
	}
	c, err := printify.NewClient(printify.Options{
		Token:   a.cfg.APIToken,
		ShopID:  a.cfg.ShopID,
		BaseURL: a.cfg.BaseURL,
		Logger:  a.logger,
	})
	if err != nil {
		fail(err)
	}
	return c
}

func (a *app) helper() *discover.Helper {
	return discover.NewHelper(discover.Options{Catalog: a.client(), Logger: a.logger})
}

func fail(err error) {
	_, _ = fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fail(err)
	}
}

func ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Minute)
}

// validateForSubmit gates every submit path: warnings are logged, errors
// print the full result and block the submission.
func (a *app) validateForSubmit(path string, doc models.ProductDocument) error {
	result := validate.Product(doc)
	for _, w := range result.Warnings {
		a.logger.Warn().Str("file", path).Msg(w)
	}
	if !result.IsValid {
		printJSON(result)
		return &validate.ValidationError{Result: result}
	}
	return nil
}

func readDocument(path string) (models.ProductDocument, error) {
	var doc models.ProductDocument
	data, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("reading product file: %w", err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("decoding product file %s: %w", path, err)
	}
	return doc, nil
}

func (a *app) create(args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	file := fs.String("file", a.cfg.DefaultProductPath, "path to the product JSON file")
	_ = fs.Parse(args)

	doc, err := readDocument(*file)
	if err != nil {
		fail(err)
	}

	if err := a.validateForSubmit(*file, doc); err != nil {
		fail(err)
	}

	runCtx, cancel := ctx()
	defer cancel()

	product, err := a.client().CreateProduct(runCtx, doc)
	if err != nil {
		fail(err)
	}
	a.logger.Info().Str("product_id", product.ID).Str("title", product.Title).Msg("product created")
	printJSON(product)
}

func (a *app) listShops(args []string) {
	fs := flag.NewFlagSet("list-shops", flag.ExitOnError)
	_ = fs.Parse(args)

	runCtx, cancel := ctx()
	defer cancel()

	shops, err := a.client().Shops(runCtx)
	if err != nil {
		fail(err)
	}
	printJSON(shops)
}

func (a *app) listProducts(args []string) {
	fs := flag.NewFlagSet("list-products", flag.ExitOnError)
	_ = fs.Parse(args)

	runCtx, cancel := ctx()
	defer cancel()

	products, err := a.client().Products(runCtx)
	if err != nil {
		fail(err)
	}
	printJSON(products)
}

func (a *app) debugBlueprints(args []string) {
	fs := flag.NewFlagSet("debug-blueprints", flag.ExitOnError)
	limit := fs.Int("limit", 0, "print at most n blueprints (0 = all)")
	_ = fs.Parse(args)

	runCtx, cancel := ctx()
	defer cancel()

	blueprints, err := a.client().Blueprints(runCtx)
	if err != nil {
		fail(err)
	}
	a.logger.Info().Int("blueprints", len(blueprints)).Msg("catalog fetched")
	if *limit > 0 && len(blueprints) > *limit {
		blueprints = blueprints[:*limit]
	}
	printJSON(blueprints)
}

func (a *app) debugBlueprint(args []string) {
	fs := flag.NewFlagSet("debug-blueprint", flag.ExitOnError)
	id := fs.Int("id", 0, "blueprint id")
	_ = fs.Parse(args)
	if *id <= 0 {
		usage()
		os.Exit(2)
	}

	runCtx, cancel := ctx()
	defer cancel()

	c := a.client()
	blueprints, err := c.Blueprints(runCtx)
	if err != nil {
		fail(err)
	}
	var bp *models.Blueprint
	for i := range blueprints {
		if blueprints[i].ID == *id {
			bp = &blueprints[i]
			break
		}
	}
	if bp == nil {
		fail(fmt.Errorf("blueprint %d not found", *id))
	}

	providers, err := c.PrintProviders(runCtx, *id)
	if err != nil {
		fail(err)
	}

	out := struct {
		Blueprint      models.Blueprint       `json:"blueprint"`
		PrintProviders []models.PrintProvider `json:"print_providers"`
		Variants       []models.CatalogVariant `json:"variants,omitempty"`
	}{Blueprint: *bp, PrintProviders: providers}

	// Variants of the first provider give a usable starting point.
	if len(providers) > 0 {
		variants, err := c.Variants(runCtx, *id, providers[0].ID)
		if err != nil {
			a.logger.Warn().Int("print_provider_id", providers[0].ID).Err(err).Msg("could not fetch variants")
		} else {
			out.Variants = variants
		}
	}
	printJSON(out)
}

func (a *app) debugPrintProvider(args []string) {
	fs := flag.NewFlagSet("debug-print-provider", flag.ExitOnError)
	id := fs.Int("id", 0, "print provider id")
	_ = fs.Parse(args)
	if *id <= 0 {
		usage()
		os.Exit(2)
	}

	runCtx, cancel := ctx()
	defer cancel()

	provider, err := a.client().PrintProvider(runCtx, *id)
	if err != nil {
		fail(err)
	}
	printJSON(provider)
}

// debugStructure prints a fill-in-the-blanks product document for a pair,
// plus the print positions the first variant actually supports.
func (a *app) debugStructure(args []string) {
	fs := flag.NewFlagSet("debug-structure", flag.ExitOnError)
	blueprintID := fs.Int("blueprint", 0, "blueprint id")
	providerID := fs.Int("provider", 0, "print provider id")
	_ = fs.Parse(args)
	if *blueprintID <= 0 || *providerID <= 0 {
		usage()
		os.Exit(2)
	}

	runCtx, cancel := ctx()
	defer cancel()

	variants, err := a.client().Variants(runCtx, *blueprintID, *providerID)
	if err != nil {
		fail(err)
	}
	if len(variants) == 0 {
		fail(fmt.Errorf("no variants found for blueprint %d and print provider %d", *blueprintID, *providerID))
	}
	first := variants[0]

	recommended := models.ProductDocument{
		Title:           "Your Product Title",
		Description:     "Your product description",
		BlueprintID:     *blueprintID,
		PrintProviderID: *providerID,
		Variants: []models.ProductVariant{{
			ID:        first.ID,
			Price:     2500,
			IsEnabled: true,
			IsDefault: true,
			Grams:     180,
			Options:   first.Options,
		}},
		PrintAreas: []models.PrintArea{{
			VariantIDs: []int{first.ID},
			Placeholders: []models.Placeholder{{
				Position: "front",
				Images: []models.Image{{
					ID:         "your_image_id",
					Name:       "Your Design Name",
					URL:        "https://your-image-url.com/image.png",
					PreviewURL: "https://your-image-url.com/image.png",
					Scale:      1,
				}},
			}},
		}},
	}
	printJSON(recommended)

	_, _ = fmt.Fprintln(os.Stderr, "available print positions:")
	for _, ph := range first.Placeholders {
		_, _ = fmt.Fprintf(os.Stderr, "  %s (%dx%d)\n", ph.Position, ph.Width, ph.Height)
	}
}

func (a *app) uploadImage(args []string) {
	fs := flag.NewFlagSet("upload-image", flag.ExitOnError)
	file := fs.String("file", "", "path to a local image file")
	url := fs.String("url", "", "source URL for a hosted image")
	name := fs.String("name", "", "file name for a URL upload")
	_ = fs.Parse(args)

	runCtx, cancel := ctx()
	defer cancel()

	c := a.client()
	var img models.UploadedImage
	var err error
	switch {
	case *file != "":
		img, err = c.UploadImageFile(runCtx, *file)
	case *url != "":
		fileName := *name
		if fileName == "" {
			fileName = images.SanitizeFileName("")
		}
		img, err = c.UploadImageFromURL(runCtx, *url, fileName)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fail(err)
	}
	printJSON(img)
}

// newGenerator wires the template store and sqlite index. The index is
// optional: failure to open it degrades to files-only operation.
func (a *app) newGenerator(catalog templates.Catalog) (*templates.Generator, *templates.Index) {
	store := templates.NewStore(a.cfg.TemplatesDir)
	index, err := templates.NewIndex(a.cfg.TemplateIndexPath)
	if err != nil {
		a.logger.Warn().Err(err).Msg("template index unavailable, continuing without it")
		index = nil
	}
	return templates.NewGenerator(templates.GeneratorOptions{
		Catalog: catalog,
		Store:   store,
		Index:   index,
		Logger:  a.logger,
	}), index
}

func (a *app) generateTemplate(args []string) {
	fs := flag.NewFlagSet("generate-template", flag.ExitOnError)
	blueprintID := fs.Int("blueprint", 0, "blueprint id")
	providerID := fs.Int("provider", 0, "print provider id")
	title := fs.String("title", "", "template title override")
	price := fs.Int("price", 0, "variant price in cents")
	grams := fs.Int("grams", 0, "variant weight in grams")
	_ = fs.Parse(args)
	if *blueprintID <= 0 || *providerID <= 0 {
		usage()
		os.Exit(2)
	}

	runCtx, cancel := ctx()
	defer cancel()

	g, index := a.newGenerator(a.client())
	if index != nil {
		defer func() { _ = index.Close() }()
	}

	path, err := g.GenerateOne(runCtx, *blueprintID, *providerID, templates.Customizations{
		Title:      *title,
		PriceCents: *price,
		Grams:      *grams,
	})
	if err != nil {
		fail(err)
	}
	a.logger.Info().Str("path", path).Msg("template generated")
	printJSON(map[string]string{"path": path})
}

func (a *app) generateAllTemplates(args []string) {
	fs := flag.NewFlagSet("generate-all-templates", flag.ExitOnError)
	_ = fs.Parse(args)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, index := a.newGenerator(a.client())
	if index != nil {
		defer func() { _ = index.Close() }()
	}

	report, err := g.GenerateAll(runCtx)
	if err != nil {
		fail(err)
	}
	printJSON(report)
}

// generateDynamicTemplate mirrors the full catalog variant set and prices
// it by the blueprint's inferred category instead of the flat default.
func (a *app) generateDynamicTemplate(args []string) {
	fs := flag.NewFlagSet("generate-dynamic-template", flag.ExitOnError)
	blueprintID := fs.Int("blueprint", 0, "blueprint id")
	providerID := fs.Int("provider", 0, "print provider id")
	title := fs.String("title", "", "template title override")
	description := fs.String("description", "", "template description override")
	price := fs.Int("price", 0, "variant price in cents (default: category estimate)")
	_ = fs.Parse(args)
	if *blueprintID <= 0 || *providerID <= 0 {
		usage()
		os.Exit(2)
	}

	runCtx, cancel := ctx()
	defer cancel()

	c := a.client()
	blueprints, err := c.Blueprints(runCtx)
	if err != nil {
		fail(err)
	}
	category := "other"
	for _, bp := range blueprints {
		if bp.ID == *blueprintID {
			category = discover.Categorize(bp.Title, bp.Description)
			break
		}
	}

	custom := templates.Customizations{
		Title:       *title,
		Description: *description,
		PriceCents:  *price,
		Grams:       discover.EstimateWeight(category),
	}
	if custom.PriceCents == 0 {
		custom.PriceCents = discover.EstimatePrice(category)
	}

	doc, err := templates.NewAssembler(c).Assemble(runCtx, *blueprintID, *providerID, custom)
	if err != nil {
		fail(err)
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		fail(err)
	}
	path := fmt.Sprintf("dynamic-template-%d-%d.json", *blueprintID, *providerID)
	if err := os.WriteFile(path, out, 0o644); err != nil {
		fail(err)
	}
	a.logger.Info().
		Str("category", category).
		Int("price_cents", custom.PriceCents).
		Int("variants", len(doc.Variants)).
		Str("path", path).
		Msg("dynamic template generated")
	printJSON(map[string]string{"path": path, "category": category})
}

func (a *app) listTemplates(args []string) {
	fs := flag.NewFlagSet("list-templates", flag.ExitOnError)
	_ = fs.Parse(args)

	store := templates.NewStore(a.cfg.TemplatesDir)

	rebuild := false
	if _, err := os.Stat(a.cfg.TemplateIndexPath); err != nil {
		rebuild = true
	}
	index, err := templates.NewIndex(a.cfg.TemplateIndexPath)
	if err != nil {
		fail(err)
	}
	defer func() { _ = index.Close() }()

	if rebuild {
		a.logger.Info().Msg("template index missing, rebuilding from the template tree")
		g := templates.NewGenerator(templates.GeneratorOptions{Store: store, Index: index, Logger: a.logger})
		if err := g.RebuildIndex(); err != nil {
			fail(err)
		}
	}

	entries, err := index.All()
	if err != nil {
		fail(err)
	}
	summary, err := store.ReadSummary()
	if err != nil {
		fail(err)
	}

	printJSON(struct {
		TotalTemplates int               `json:"total_templates"`
		Summary        templates.Summary `json:"summary"`
		Templates      []templates.Entry `json:"templates"`
	}{len(entries), summary, entries})
}

func (a *app) showCategories(args []string) {
	fs := flag.NewFlagSet("show-categories", flag.ExitOnError)
	_ = fs.Parse(args)

	// Prefer the local index; fall back to categorizing the live catalog.
	if _, err := os.Stat(a.cfg.TemplateIndexPath); err == nil {
		index, err := templates.NewIndex(a.cfg.TemplateIndexPath)
		if err == nil {
			defer func() { _ = index.Close() }()
			counts, err := index.CountByCategory()
			if err == nil && len(counts) > 0 {
				printJSON(counts)
				return
			}
		}
	}

	runCtx, cancel := ctx()
	defer cancel()

	counts, err := a.helper().CategoryCounts(runCtx)
	if err != nil {
		fail(err)
	}
	printJSON(counts)
}

func (a *app) processWithImages(args []string) {
	fs := flag.NewFlagSet("process-with-images", flag.ExitOnError)
	file := fs.String("file", a.cfg.DefaultProductPath, "path to the product JSON file")
	create := fs.Bool("create", false, "create the product after processing")
	_ = fs.Parse(args)

	runCtx, cancel := ctx()
	defer cancel()

	c := a.client()
	pipeline := images.NewPipeline(images.Options{Uploader: c, Logger: a.logger})

	outPath, err := pipeline.ProcessFile(runCtx, *file)
	if err != nil {
		fail(err)
	}
	a.logger.Info().Str("path", outPath).Msg("processed product written")

	if !*create {
		printJSON(map[string]string{"path": outPath})
		return
	}

	doc, err := readDocument(outPath)
	if err != nil {
		fail(err)
	}
	if err := a.validateForSubmit(outPath, doc); err != nil {
		fail(err)
	}
	product, err := c.CreateProduct(runCtx, doc)
	if err != nil {
		fail(err)
	}
	printJSON(product)
}

func (a *app) discoverProducts(args []string) {
	fs := flag.NewFlagSet("discover-products", flag.ExitOnError)
	category := fs.String("category", "", "restrict to one category (see show-categories)")
	maxPrice := fs.Int("max-price", 0, "price ceiling in cents")
	location := fs.String("location", "", "provider location substring")
	_ = fs.Parse(args)

	runCtx, cancel := ctx()
	defer cancel()

	suggestions, err := a.helper().Suggest(runCtx, discover.Criteria{
		Category:      *category,
		MaxPriceCents: *maxPrice,
		Location:      *location,
	})
	if err != nil {
		fail(err)
	}
	printJSON(suggestions)
}

func (a *app) searchProducts(args []string) {
	fs := flag.NewFlagSet("search-products", flag.ExitOnError)
	_ = fs.Parse(args)

	keywords := fs.Args()
	runCtx, cancel := ctx()
	defer cancel()

	suggestions, err := a.helper().Search(runCtx, keywords)
	if err != nil {
		var argErr *discover.InvalidArgumentError
		if errors.As(err, &argErr) {
			_, _ = fmt.Fprintln(os.Stderr, argErr.Error())
			usage()
			os.Exit(2)
		}
		fail(err)
	}
	printJSON(suggestions)
}

func (a *app) publish(args []string) {
	fs := flag.NewFlagSet("publish", flag.ExitOnError)
	productID := fs.String("product", "", "product id")
	channel := fs.String("channel", "", "sales channel id")
	_ = fs.Parse(args)
	if strings.TrimSpace(*productID) == "" || strings.TrimSpace(*channel) == "" {
		usage()
		os.Exit(2)
	}

	runCtx, cancel := ctx()
	defer cancel()

	if err := a.client().PublishProduct(runCtx, *productID, *channel); err != nil {
		fail(err)
	}
	a.logger.Info().Str("product_id", *productID).Str("sales_channel_id", *channel).Msg("product published")
	printJSON(map[string]string{"status": "published", "product_id": *productID})
}
