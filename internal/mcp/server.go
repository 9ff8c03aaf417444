package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/arturoeanton/go-product-lens/internal/domain"
	"github.com/arturoeanton/go-product-lens/internal/port"
	"github.com/arturoeanton/go-product-lens/internal/service"
)

// Server implements the Model Context Protocol (MCP) server.
// It lets external AI agents identify products and inspect the catalog.
type Server struct {
	match   *service.MatchService
	catalog *service.CatalogService
	fetcher port.ImageFetcher
	audit   AuditWriter
	port    string
}

// AuditWriter records tool calls.
type AuditWriter interface {
	WriteAudit(action, resource, resourceID, details, ip, userAgent string) error
}

// NewServer creates a new MCP server. audit may be nil.
func NewServer(match *service.MatchService, catalog *service.CatalogService, fetcher port.ImageFetcher, audit AuditWriter, port string) *Server {
	return &Server{
		match:   match,
		catalog: catalog,
		fetcher: fetcher,
		audit:   audit,
		port:    port,
	}
}

// Tool represents an MCP tool definition.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC error.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Handler returns the MCP HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", s.handleRPC)
	mux.HandleFunc("/mcp/sse", s.handleSSE)
	return mux
}

// Start begins the MCP server on the configured port.
func (s *Server) Start() error {
	slog.Info("MCP server starting", "port", s.port)
	return http.ListenAndServe(":"+s.port, s.Handler())
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, nil, -32700, "parse error")
		return
	}

	var result interface{}
	var err error

	switch req.Method {
	case "tools/list":
		result = s.listTools()
	case "tools/call":
		result, err = s.callTool(r.Context(), req.Params)
		s.record(r, req.Params, err)
	case "initialize":
		result = map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"serverInfo": map[string]string{
				"name":    "productlens",
				"version": "1.0.0",
			},
			"capabilities": map[string]interface{}{
				"tools": map[string]bool{"listChanged": false},
			},
		}
	default:
		writeError(w, req.ID, -32601, "method not found")
		return
	}

	if err != nil {
		writeError(w, req.ID, -32603, err.Error())
		return
	}

	writeResult(w, req.ID, result)
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: endpoint\ndata: /mcp\n\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	<-r.Context().Done()
}

func (s *Server) listTools() map[string]interface{} {
	tools := []Tool{
		{
			Name:        "identify_product",
			Description: "Identify the product shown in an image by matching it against the catalog",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"image_url": {"type": "string", "description": "Public URL of the photo"}
				},
				"required": ["image_url"]
			}`),
		},
		{
			Name:        "catalog_stats",
			Description: "Report how many reference products the catalog holds",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {}
			}`),
		},
	}
	return map[string]interface{}{"tools": tools}
}

func (s *Server) callTool(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var req struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	switch req.Name {
	case "identify_product":
		var args struct {
			ImageURL string `json:"image_url"`
		}
		if len(req.Arguments) > 0 {
			if err := json.Unmarshal(req.Arguments, &args); err != nil {
				return nil, fmt.Errorf("invalid arguments: %w", err)
			}
		}
		if args.ImageURL == "" {
			return nil, fmt.Errorf("image_url is required")
		}

		data, err := s.fetcher.Fetch(ctx, args.ImageURL)
		if err != nil {
			return nil, err
		}
		result, err := s.match.Identify(ctx, data)
		if err != nil {
			return nil, err
		}
		text, err := describe(result)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"content": []map[string]interface{}{
				{"type": "text", "text": text},
			},
			"outcome": service.Outcome(result),
		}, nil

	case "catalog_stats":
		n, err := s.catalog.Count(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"content": []map[string]interface{}{
				{"type": "text", "text": fmt.Sprintf("The catalog holds %d products.", n)},
			},
			"count": n,
		}, nil

	default:
		return nil, fmt.Errorf("unknown tool: %s", req.Name)
	}
}

func describe(result domain.MatchResult) (string, error) {
	switch r := result.(type) {
	case domain.Found:
		return fmt.Sprintf("Match: %s (price %s, score %.4f). Reference image: %s",
			r.Entry.Name, r.Entry.Price, r.Score, r.Entry.ImageURL), nil
	case domain.NotFound:
		if r.Guess == nil {
			return service.MessageNoMatch, nil
		}
		return fmt.Sprintf("%s Closest: %s (confidence %.2f).", service.MessageUnconfirmed, r.Guess.Name, r.Guess.Confidence), nil
	case domain.Failed:
		return "Identification failed: " + r.Reason, nil
	}
	return "", fmt.Errorf("unhandled match result %T", result)
}

func (s *Server) record(r *http.Request, params json.RawMessage, callErr error) {
	if s.audit == nil {
		return
	}
	details, _ := json.Marshal(map[string]interface{}{
		"params": json.RawMessage(params),
		"ok":     callErr == nil,
	})
	ip, ua := r.RemoteAddr, r.UserAgent()
	go func() {
		if err := s.audit.WriteAudit(domain.AuditActionMCPCall, "mcp", "tools/call", string(details), ip, ua); err != nil {
			slog.Error("failed to write audit log", "error", err)
		}
	}()
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, id interface{}, code int, message string) {
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message}}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
