package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/nlpodyssey/openai-agents-go/agents"
	"github.com/nlpodyssey/openai-agents-go/tracing"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Message is one turn of a chat session.
type Message struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionHistory stores chat turns using GORM with raw SQL queries.
type SessionHistory struct {
	db      *gorm.DB
	mu      sync.RWMutex
	maxSize int
}

func NewSessionHistory(dbPath string, maxSize int) (*SessionHistory, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	schemaSQL := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL CHECK(role IN ('user', 'assistant')),
		content TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);

	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at);
	`

	if err := db.Exec(schemaSQL).Error; err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SessionHistory{db: db, maxSize: maxSize}, nil
}

func (sh *SessionHistory) Close() error {
	sqlDB, err := sh.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (sh *SessionHistory) AddMessage(sessionID string, msg Message) error {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	upsertSession := `
		INSERT INTO sessions (id, created_at, updated_at)
		VALUES (?, datetime('now'), datetime('now'))
		ON CONFLICT(id) DO UPDATE SET updated_at = datetime('now')`

	if err := sh.db.Exec(upsertSession, sessionID).Error; err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}

	insertMessage := `
		INSERT INTO messages (session_id, role, content, created_at)
		VALUES (?, ?, ?, datetime('now'))`

	if err := sh.db.Exec(insertMessage, sessionID, msg.Role, msg.Content).Error; err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	// Keep only the last maxSize messages per session.
	trimMessages := `
		DELETE FROM messages WHERE session_id = ? AND id NOT IN (
			SELECT id FROM messages
			WHERE session_id = ?
			ORDER BY created_at DESC
			LIMIT ?
		)`

	if err := sh.db.Exec(trimMessages, sessionID, sessionID, sh.maxSize).Error; err != nil {
		return fmt.Errorf("failed to trim messages: %w", err)
	}

	return nil
}

func (sh *SessionHistory) GetHistory(sessionID string) ([]Message, error) {
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	query := `
		SELECT id, session_id, role, content, created_at
		FROM messages
		WHERE session_id = ?
		ORDER BY created_at ASC`

	rows, err := sh.db.Raw(query, sessionID).Rows()
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		var createdAt string
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Timestamp, _ = time.Parse("2006-01-02 15:04:05", createdAt)
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func (sh *SessionHistory) GetHistoryAsContext(sessionID string) (string, error) {
	msgs, err := sh.GetHistory(sessionID)
	if err != nil {
		return "", err
	}
	if len(msgs) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("\n\n=== Recent Conversation History ===\n")
	for _, msg := range msgs {
		role := "User"
		if msg.Role == "assistant" {
			role = "Assistant"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, msg.Content)
	}
	b.WriteString("=== End of History ===\n")
	return b.String(), nil
}

// chatRequest is the payload accepted by the /chat endpoint.
type chatRequest struct {
	Prompt string `json:"prompt"`
}

// chatResponse is the JSON shape returned by the /chat endpoint.
type chatResponse struct {
	SessionID string `json:"session_id"`
	Output    string `json:"output"`
}

func main() {
	addr := getEnv("AGENT_SERVER_ADDR", ":8090")

	godotenv.Load()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	// Disable OpenAI tracing to prevent console spam.
	tracing.SetTracingDisabled(true)

	dbPath := getEnv("AGENT_DB_PATH", "./agent_sessions.db")
	history, err := NewSessionHistory(dbPath, 10)
	if err != nil {
		log.Fatal().Err(err).Msg("initializing session database")
	}
	defer history.Close()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/history/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionID")
		msgs, err := history.GetHistory(sessionID)
		if err != nil {
			http.Error(w, fmt.Sprintf("history error: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(msgs)
	})

	r.Post("/chat", func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		req.Prompt = strings.TrimSpace(req.Prompt)
		if req.Prompt == "" {
			http.Error(w, "prompt is required", http.StatusBadRequest)
			return
		}

		// Session ID from header, or a fresh one for new conversations.
		sessionID := r.Header.Get("X-Session-ID")
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		if err := history.AddMessage(sessionID, Message{Role: "user", Content: req.Prompt}); err != nil {
			log.Warn().Err(err).Str("session", sessionID).Msg("storing user message")
		}

		conversationContext, err := history.GetHistoryAsContext(sessionID)
		if err != nil {
			log.Warn().Err(err).Str("session", sessionID).Msg("loading history")
			conversationContext = ""
		}

		promptWithContext := req.Prompt
		if conversationContext != "" {
			promptWithContext = req.Prompt + conversationContext
		}

		// Build a merch-designer agent on each request.
		agent := agents.New("MerchDesigner").
			WithInstructions(baseInstructions()).
			WithModel("gpt-4o").
			WithTools(
				mcpDiscoverProductsTool(),
				mcpSearchProductsTool(),
				mcpListCategoriesTool(),
				mcpGenerateTemplateTool(),
				mcpValidateProductTool(),
				mcpCreateProductTool(),
			)

		ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
		defer cancel()

		result, err := agents.Run(ctx, agent, promptWithContext)
		if err != nil {
			http.Error(w, fmt.Sprintf("agent error: %v", err), http.StatusInternalServerError)
			return
		}

		response := result.FinalOutput.(string)

		if err := history.AddMessage(sessionID, Message{Role: "assistant", Content: response}); err != nil {
			log.Warn().Err(err).Str("session", sessionID).Msg("storing assistant message")
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Session-ID", sessionID)
		if err := json.NewEncoder(w).Encode(chatResponse{SessionID: sessionID, Output: response}); err != nil {
			http.Error(w, "failed to encode response", http.StatusInternalServerError)
			return
		}
	})

	log.Info().Str("addr", addr).Msg("agent server listening")
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatal().Err(err).Msg("agent server error")
	}
}

// baseInstructions provides the system prompt for the merch designer.
func baseInstructions() string {
	return strings.TrimSpace(`
You are a print-on-demand merch designer assistant. You help users pick a
product, generate an editable product template for it, and submit finished
products to their Printify shop.

WORKFLOW:
1. Understand what the user wants to sell (product type, budget, market).
2. Use discover_products or search_products to find matching blueprints.
   Use list_categories if the user is unsure what product types exist.
3. When the user picks a blueprint and print provider, use generate_template
   to build a complete product document. Walk them through the fields they
   should edit: title, description, prices, and the placeholder image URLs.
4. Before submitting, ALWAYS run validate_product and report every error
   and warning to the user. Never submit a document with errors.
5. Only call create_product after the user explicitly confirms.

RULES:
- Prices are in cents. Say "$25.00 (2500 cents)" so the user is never confused.
- Placeholder image URLs (example.com) must be replaced with real artwork
  URLs before the product is sellable. Remind the user.
- Quote blueprint and print provider ids exactly as the tools return them.
- Be concise. Summarize long tool output instead of pasting it verbatim.
`)
}

// getEnv returns the value of the environment variable or a default.
func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// --- MCP integration helpers ------------------------------------------------

func getMCPServerURL() string {
	if url := os.Getenv("MCP_SERVER_URL"); url != "" {
		return url + "/rpc"
	}
	return "http://localhost:8080/rpc"
}

// mcpToolsCallParams mirrors the JSON-RPC "tools/call" params expected by the
// MCP server implemented in cmd/printify-mcp/main.go.
type mcpToolsCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// mcpRPCRequest is a minimal JSON-RPC 2.0 request payload.
type mcpRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type mcpContentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// mcpRPCResult is the expected result field for tools/call (a map with a
// "content" array).
type mcpRPCResult struct {
	Content []mcpContentItem `json:"content"`
}

type mcpRPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type mcpRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  *mcpRPCResult   `json:"result,omitempty"`
	Error   *mcpRPCError    `json:"error,omitempty"`
}

// callMCP performs a single tools/call request against the MCP server and
// returns the concatenated text of all content items.
func callMCP(ctx context.Context, toolName string, args map[string]any) (string, error) {
	reqBody := mcpRPCRequest{
		JSONRPC: "2.0",
		ID:      int(time.Now().UnixNano() / int64(time.Millisecond)),
		Method:  "tools/call",
		Params: mcpToolsCallParams{
			Name:      toolName,
			Arguments: args,
		},
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal MCP request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, getMCPServerURL(), bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("build MCP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("call MCP server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("MCP server returned status %s", resp.Status)
	}

	var rpcResp mcpRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return "", fmt.Errorf("decode MCP response: %w", err)
	}

	if rpcResp.Error != nil {
		return "", fmt.Errorf("MCP error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if rpcResp.Result == nil {
		return "", fmt.Errorf("MCP response missing result")
	}

	var builder strings.Builder
	for _, c := range rpcResp.Result.Content {
		if c.Text == "" {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString("\n\n")
		}
		builder.WriteString(c.Text)
	}

	return builder.String(), nil
}

type mcpDiscoverProductsParams struct {
	Category string `json:"category,omitempty"`
	MaxPrice int    `json:"max_price,omitempty"`
	Location string `json:"location,omitempty"`
}

func mcpDiscoverProductsTool() agents.FunctionTool {
	return agents.NewFunctionTool(
		"discover_products",
		"Browse the Printify blueprint catalog and get the top product suggestions ranked by popularity. Optional filters: category, max price in cents, provider location.",
		func(ctx context.Context, params mcpDiscoverProductsParams) (string, error) {
			args := map[string]any{}
			if v := strings.TrimSpace(params.Category); v != "" {
				args["category"] = v
			}
			if params.MaxPrice > 0 {
				args["max_price"] = params.MaxPrice
			}
			if v := strings.TrimSpace(params.Location); v != "" {
				args["location"] = v
			}
			return callMCP(ctx, "discover_products", args)
		},
	)
}

type mcpSearchProductsParams struct {
	Keywords []string `json:"keywords"`
}

func mcpSearchProductsTool() agents.FunctionTool {
	return agents.NewFunctionTool(
		"search_products",
		"Search Printify blueprints by keywords against their titles and descriptions.",
		func(ctx context.Context, params mcpSearchProductsParams) (string, error) {
			keywords := make([]string, 0, len(params.Keywords))
			for _, k := range params.Keywords {
				if s := strings.TrimSpace(k); s != "" {
					keywords = append(keywords, s)
				}
			}
			if len(keywords) == 0 {
				return "", fmt.Errorf("keywords is required")
			}
			return callMCP(ctx, "search_products", map[string]any{"keywords": keywords})
		},
	)
}

func mcpListCategoriesTool() agents.FunctionTool {
	return agents.NewFunctionTool(
		"list_categories",
		"List the known product categories with blueprint counts. Use this when the user is unsure what product types are available.",
		func(ctx context.Context, _ struct{}) (string, error) {
			return callMCP(ctx, "list_categories", map[string]any{})
		},
	)
}

type mcpGenerateTemplateParams struct {
	BlueprintID     int    `json:"blueprint_id"`
	PrintProviderID int    `json:"print_provider_id"`
	Title           string `json:"title,omitempty"`
	Description     string `json:"description,omitempty"`
	Price           int    `json:"price,omitempty"`
}

func mcpGenerateTemplateTool() agents.FunctionTool {
	return agents.NewFunctionTool(
		"generate_template",
		"Generate a complete editable product document for a blueprint and print provider pair. Optionally set title, description, and price in cents.",
		func(ctx context.Context, params mcpGenerateTemplateParams) (string, error) {
			if params.BlueprintID <= 0 {
				return "", fmt.Errorf("blueprint_id is required")
			}
			if params.PrintProviderID <= 0 {
				return "", fmt.Errorf("print_provider_id is required")
			}
			args := map[string]any{
				"blueprint_id":      params.BlueprintID,
				"print_provider_id": params.PrintProviderID,
			}
			if v := strings.TrimSpace(params.Title); v != "" {
				args["title"] = v
			}
			if v := strings.TrimSpace(params.Description); v != "" {
				args["description"] = v
			}
			if params.Price > 0 {
				args["price"] = params.Price
			}
			return callMCP(ctx, "generate_template", args)
		},
	)
}

type mcpProductParams struct {
	Product map[string]any `json:"product"`
}

func mcpValidateProductTool() agents.FunctionTool {
	return agents.NewFunctionTool(
		"validate_product",
		"Check a product document against the submission schema. Returns blocking errors and non-blocking warnings. Always call this before create_product.",
		func(ctx context.Context, params mcpProductParams) (string, error) {
			if len(params.Product) == 0 {
				return "", fmt.Errorf("product is required")
			}
			return callMCP(ctx, "validate_product", map[string]any{"product": params.Product})
		},
	)
}

func mcpCreateProductTool() agents.FunctionTool {
	return agents.NewFunctionTool(
		"create_product",
		"Submit a validated product document to the configured Printify shop. Only call this after the user has confirmed.",
		func(ctx context.Context, params mcpProductParams) (string, error) {
			if len(params.Product) == 0 {
				return "", fmt.Errorf("product is required")
			}
			return callMCP(ctx, "create_product", map[string]any{"product": params.Product})
		},
	)
}
