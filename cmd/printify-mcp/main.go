package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/gitpancake/eden.printify/pkg/config"
	"github.com/gitpancake/eden.printify/pkg/discover"
	"github.com/gitpancake/eden.printify/pkg/models"
	"github.com/gitpancake/eden.printify/pkg/printify"
	"github.com/gitpancake/eden.printify/pkg/templates"
	"github.com/gitpancake/eden.printify/pkg/validate"
)

// JSON-RPC tool server exposing the Printify workflow to AI agents over
// SSE. Tools: discover_products, search_products, generate_template,
// validate_product, list_categories, create_product.
func main() {
	cfg := config.Load()
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("configuration invalid")
	}

	client, err := printify.NewClient(printify.Options{
		Token:   cfg.APIToken,
		ShopID:  cfg.ShopID,
		BaseURL: cfg.BaseURL,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("building printify client")
	}

	deps := &toolDeps{
		client:    client,
		helper:    discover.NewHelper(discover.Options{Catalog: client, Logger: logger}),
		assembler: templates.NewAssembler(client),
	}

	s := &server{
		tools: []tool{
			discoverProductsTool(deps),
			searchProductsTool(deps),
			generateTemplateTool(deps),
			validateProductTool(),
			listCategoriesTool(deps),
			createProductTool(deps),
		},
		clients: make(map[string]*sseClient),
		logger:  logger,
		audit:   newAuditLogger(logger),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.HandleFunc("/sse", s.handleSSE)
	r.Post("/rpc", s.handleRPC)

	addr := ":8080"
	if v := os.Getenv("MCP_ADDR"); v != "" {
		addr = v
	}
	logger.Info().Str("addr", addr).Msg("printify-mcp SSE server listening")
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

// newAuditLogger appends one JSON line per tool call to logs/tool_calls.jsonl,
// falling back to the main logger when the file cannot be opened.
func newAuditLogger(fallback zerolog.Logger) zerolog.Logger {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fallback
	}
	f, err := os.OpenFile("logs/tool_calls.jsonl", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fallback
	}
	return zerolog.New(f).With().Timestamp().Logger()
}

type server struct {
	tools   []tool
	clients map[string]*sseClient
	mu      sync.RWMutex
	logger  zerolog.Logger
	audit   zerolog.Logger
}

type sseClient struct {
	id string
	ch chan jsonrpcResponse
}

func (s *server) handleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Cache-Control")

	clientID := fmt.Sprintf("%s-%d", r.RemoteAddr, time.Now().UnixNano())
	client := &sseClient{id: clientID, ch: make(chan jsonrpcResponse, 10)}

	s.mu.Lock()
	s.clients[clientID] = client
	s.mu.Unlock()

	// Closing under the write lock pairs with the read-locked send in
	// handleRequest, so a dispatch in flight can never hit a closed channel.
	defer func() {
		s.mu.Lock()
		delete(s.clients, clientID)
		close(client.ch)
		s.mu.Unlock()
	}()

	if r.Method == http.MethodPost {
		body, err := io.ReadAll(r.Body)
		if err == nil && len(body) > 0 {
			var msg jsonrpcRequest
			if err := json.Unmarshal(body, &msg); err == nil {
				go s.handleRequest(clientID, r.Context(), msg)
			}
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	for {
		select {
		case resp, ok := <-client.ch:
			if !ok {
				return
			}
			if err := writeSSE(w, resp); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		case <-time.After(30 * time.Second):
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *server) handleRPC(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(r.Body)
	var msg jsonrpcRequest
	if err := dec.Decode(&msg); err != nil {
		http.Error(w, "invalid JSON-RPC request", http.StatusBadRequest)
		return
	}

	clientID := r.Header.Get("X-Client-ID")

	s.mu.RLock()
	_, exists := s.clients[clientID]
	s.mu.RUnlock()

	if exists {
		go s.handleRequest(clientID, r.Context(), msg)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"status":"accepted"}`))
		return
	}

	resp := s.dispatch(r.Context(), msg)
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(resp)
}

func (s *server) handleRequest(clientID string, ctx context.Context, req jsonrpcRequest) {
	resp := s.dispatch(ctx, req)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if client, exists := s.clients[clientID]; exists {
		// Non-blocking send while holding the read lock: the channel is
		// only closed under the write lock after removal from the map.
		select {
		case client.ch <- resp:
		default:
			// Channel full, drop message
		}
	}
}

func (s *server) dispatch(ctx context.Context, req jsonrpcRequest) jsonrpcResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	default:
		return replyError(req.ID, -32601, "Method not found", map[string]any{"method": req.Method})
	}
}

func (s *server) handleInitialize(req jsonrpcRequest) jsonrpcResponse {
	result := map[string]any{
		"protocolVersion": "2024-11-05",
		"serverInfo": map[string]any{
			"name":    "printify-mcp",
			"version": "1.2.0",
		},
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
	}
	return replyResult(req.ID, result)
}

func (s *server) handleToolsList(req jsonrpcRequest) jsonrpcResponse {
	list := make([]map[string]any, 0, len(s.tools))
	for _, t := range s.tools {
		list = append(list, map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"inputSchema": t.InputSchema,
		})
	}
	return replyResult(req.ID, map[string]any{"tools": list})
}

func (s *server) handleToolsCall(ctx context.Context, req jsonrpcRequest) jsonrpcResponse {
	var p toolsCallParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return replyError(req.ID, -32602, "Invalid params", err.Error())
	}

	s.audit.Info().
		RawJSON("request_id", idOrNull(req.ID)).
		Str("tool", p.Name).
		Interface("arguments", p.Arguments).
		Msg("tool call")

	var t *tool
	for i := range s.tools {
		if s.tools[i].Name == p.Name {
			t = &s.tools[i]
			break
		}
	}
	if t == nil {
		return replyError(req.ID, -32602, "Invalid params", map[string]any{
			"reason": "unknown tool",
			"name":   p.Name,
		})
	}

	content, err := t.Call(ctx, p.Arguments)
	if err != nil {
		s.audit.Error().
			RawJSON("request_id", idOrNull(req.ID)).
			Str("tool", p.Name).
			Err(err).
			Msg("tool error")
		return replyError(req.ID, 1, "Tool execution error", err.Error())
	}

	s.audit.Info().
		RawJSON("request_id", idOrNull(req.ID)).
		Str("tool", p.Name).
		Int("content_items", len(content)).
		Msg("tool output")

	return replyResult(req.ID, map[string]any{"content": content})
}

func idOrNull(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}

func writeSSE(w http.ResponseWriter, resp jsonrpcResponse) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", string(b))
	return err
}

func replyResult(id json.RawMessage, result any) jsonrpcResponse {
	return jsonrpcResponse{JSONRPC: "2.0", ID: id, Result: mustMarshalRaw(result)}
}

func replyError(id json.RawMessage, code int, message string, data any) jsonrpcResponse {
	return jsonrpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &jsonrpcError{
			Code:    code,
			Message: message,
			Data:    mustMarshalRaw(data),
		},
	}
}

// --- JSON-RPC types ---

type jsonrpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
}

type jsonrpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func mustMarshalRaw(v any) json.RawMessage {
	if v == nil {
		return json.RawMessage("null")
	}
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return json.RawMessage(b)
}

// --- Tools ---

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type tool struct {
	Name        string
	Description string
	InputSchema map[string]any
	Call        func(ctx context.Context, args map[string]any) ([]contentItem, error)
}

type toolsCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type toolDeps struct {
	client    *printify.Client
	helper    *discover.Helper
	assembler *templates.Assembler
}

func jsonContent(v any) ([]contentItem, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return []contentItem{{Type: "text", Text: string(b)}}, nil
}

func asString(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func asInt(args map[string]any, key string) (int, bool) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, false
	}
	f, ok := v.(float64)
	return int(f), ok
}

func discoverProductsTool(deps *toolDeps) tool {
	return tool{
		Name:        "discover_products",
		Description: "Sample the Printify blueprint catalog and return the top product suggestions ranked by popularity. Optional filters: category, max price in cents, provider location substring.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"category": map[string]any{
					"type":        "string",
					"description": "Restrict to one category (see list_categories).",
				},
				"max_price": map[string]any{
					"type":        "integer",
					"description": "Price ceiling in cents.",
				},
				"location": map[string]any{
					"type":        "string",
					"description": "Case-insensitive substring of the provider's location (e.g. \"united states\").",
				},
			},
			"additionalProperties": false,
		},
		Call: func(ctx context.Context, args map[string]any) ([]contentItem, error) {
			criteria := discover.Criteria{}
			if v, ok := asString(args, "category"); ok {
				criteria.Category = v
			}
			if v, ok := asInt(args, "max_price"); ok {
				criteria.MaxPriceCents = v
			}
			if v, ok := asString(args, "location"); ok {
				criteria.Location = v
			}
			suggestions, err := deps.helper.Suggest(ctx, criteria)
			if err != nil {
				return nil, err
			}
			return jsonContent(suggestions)
		},
	}
}

func searchProductsTool(deps *toolDeps) tool {
	return tool{
		Name:        "search_products",
		Description: "Search Printify blueprints by keywords against title and description, ranked by popularity.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"keywords": map[string]any{
					"type":        "array",
					"description": "Non-empty list of keywords to match.",
					"items":       map[string]any{"type": "string"},
					"minItems":    1,
				},
			},
			"required":             []string{"keywords"},
			"additionalProperties": false,
		},
		Call: func(ctx context.Context, args map[string]any) ([]contentItem, error) {
			raw, ok := args["keywords"].([]any)
			if !ok {
				return nil, fmt.Errorf("missing required argument: keywords")
			}
			keywords := make([]string, 0, len(raw))
			for _, k := range raw {
				if s, ok := k.(string); ok && strings.TrimSpace(s) != "" {
					keywords = append(keywords, s)
				}
			}
			suggestions, err := deps.helper.Search(ctx, keywords)
			if err != nil {
				return nil, err
			}
			return jsonContent(suggestions)
		},
	}
}

func generateTemplateTool(deps *toolDeps) tool {
	return tool{
		Name:        "generate_template",
		Description: "Generate a complete editable product document for a blueprint and print provider pair, mirroring the full catalog variant set.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"blueprint_id": map[string]any{
					"type":        "integer",
					"description": "Blueprint id from discover_products or search_products.",
				},
				"print_provider_id": map[string]any{
					"type":        "integer",
					"description": "Print provider id for the blueprint.",
				},
				"title":       map[string]any{"type": "string"},
				"description": map[string]any{"type": "string"},
				"price": map[string]any{
					"type":        "integer",
					"description": "Variant price in cents (default 2500).",
				},
			},
			"required":             []string{"blueprint_id", "print_provider_id"},
			"additionalProperties": false,
		},
		Call: func(ctx context.Context, args map[string]any) ([]contentItem, error) {
			blueprintID, ok := asInt(args, "blueprint_id")
			if !ok || blueprintID <= 0 {
				return nil, fmt.Errorf("missing required argument: blueprint_id")
			}
			providerID, ok := asInt(args, "print_provider_id")
			if !ok || providerID <= 0 {
				return nil, fmt.Errorf("missing required argument: print_provider_id")
			}

			custom := templates.Customizations{}
			if v, ok := asString(args, "title"); ok {
				custom.Title = v
			}
			if v, ok := asString(args, "description"); ok {
				custom.Description = v
			}
			if v, ok := asInt(args, "price"); ok {
				custom.PriceCents = v
			}

			doc, err := deps.assembler.Assemble(ctx, blueprintID, providerID, custom)
			if err != nil {
				return nil, err
			}
			return jsonContent(doc)
		},
	}
}

func validateProductTool() tool {
	return tool{
		Name:        "validate_product",
		Description: "Check a product document against the submission schema. Returns errors (blocking) and warnings (non-blocking).",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"product": map[string]any{
					"type":        "object",
					"description": "The product document to validate.",
				},
			},
			"required":             []string{"product"},
			"additionalProperties": false,
		},
		Call: func(ctx context.Context, args map[string]any) ([]contentItem, error) {
			raw, ok := args["product"]
			if !ok {
				return nil, fmt.Errorf("missing required argument: product")
			}
			b, err := json.Marshal(raw)
			if err != nil {
				return nil, err
			}
			var doc models.ProductDocument
			if err := json.Unmarshal(b, &doc); err != nil {
				return nil, fmt.Errorf("product does not parse as a product document: %w", err)
			}
			return jsonContent(validate.Product(doc))
		},
	}
}

func listCategoriesTool(deps *toolDeps) tool {
	return tool{
		Name:        "list_categories",
		Description: "List the product categories the discovery heuristics can assign, with blueprint counts from the live catalog.",
		InputSchema: map[string]any{
			"type":                 "object",
			"properties":           map[string]any{},
			"additionalProperties": false,
		},
		Call: func(ctx context.Context, args map[string]any) ([]contentItem, error) {
			counts, err := deps.helper.CategoryCounts(ctx)
			if err != nil {
				return nil, err
			}
			return jsonContent(map[string]any{
				"categories": discover.Categories(),
				"counts":     counts,
			})
		},
	}
}

func createProductTool(deps *toolDeps) tool {
	return tool{
		Name:        "create_product",
		Description: "Validate and submit a product document to the configured Printify shop. Refuses documents with validation errors.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"product": map[string]any{
					"type":        "object",
					"description": "The product document to create.",
				},
			},
			"required":             []string{"product"},
			"additionalProperties": false,
		},
		Call: func(ctx context.Context, args map[string]any) ([]contentItem, error) {
			raw, ok := args["product"]
			if !ok {
				return nil, fmt.Errorf("missing required argument: product")
			}
			b, err := json.Marshal(raw)
			if err != nil {
				return nil, err
			}
			var doc models.ProductDocument
			if err := json.Unmarshal(b, &doc); err != nil {
				return nil, fmt.Errorf("product does not parse as a product document: %w", err)
			}

			result := validate.Product(doc)
			if !result.IsValid {
				return nil, &validate.ValidationError{Result: result}
			}

			product, err := deps.client.CreateProduct(ctx, doc)
			if err != nil {
				return nil, err
			}
			return jsonContent(product)
		},
	}
}
