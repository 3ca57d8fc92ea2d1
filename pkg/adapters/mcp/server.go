package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/tourguide"
	"github.com/aretw0/tourguide/internal/logging"
	"github.com/aretw0/tourguide/pkg/bus"
	"github.com/aretw0/tourguide/pkg/domain"
	"github.com/aretw0/tourguide/pkg/panel"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// CatalogURI is the resource listing the authored tutorials.
const CatalogURI = "tourguide://catalog"

// StatusResponse is the structured result of every tutorial tool.
type StatusResponse struct {
	Tab    string             `json:"tab" jsonschema_description:"The browser tab the tutorial runs in"`
	Status bus.TutorialStatus `json:"status" jsonschema_description:"The orchestration state of the tab"`
}

// StartArgs are the arguments of start_tutorial.
type StartArgs struct {
	Tab      string `json:"tab"`
	Catalog  string `json:"catalog,omitempty"`
	Action   string `json:"action,omitempty"`
	Software string `json:"software,omitempty"`
	Steps    string `json:"steps,omitempty"`
}

// TabArgs are the arguments of tools acting on a tab.
type TabArgs struct {
	Tab string `json:"tab"`
}

// CatalogEntry is one tutorial of the catalog resource.
type CatalogEntry struct {
	ID       string `json:"id"`
	Title    string `json:"title,omitempty"`
	Software string `json:"software,omitempty"`
	Action   string `json:"action,omitempty"`
	Steps    int    `json:"steps"`
}

// Server exposes the panel as an MCP server.
type Server struct {
	panel     *panel.Panel
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(p *panel.Panel, opts ...Option) *Server {
	s := &Server{
		panel:     p,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("tourguide-mcp", tourguide.Version),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	if p.Catalog() != nil {
		s.registerResources()
	}
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the MCP protocol over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	startTool := mcp.NewTool("start_tutorial",
		mcp.WithDescription("Start a tutorial overlay in a browser tab. Provide exactly one of catalog, action or steps."),
		mcp.WithString("tab", mcp.Required(), mcp.Description("The browser tab ID")),
		mcp.WithString("catalog", mcp.Description("ID of an authored tutorial")),
		mcp.WithString("action", mcp.Description("What the user wants to do, in natural language")),
		mcp.WithString("software", mcp.Description("The software the action is performed in")),
		mcp.WithString("steps", mcp.Description(`JSON array of steps, e.g. [{"step":"Click Save","web_element":"Save"}]`)),
		mcp.WithOutputSchema[StatusResponse](),
	)
	s.mcpServer.AddTool(startTool, mcp.NewStructuredToolHandler(s.handleStart))

	statusTool := mcp.NewTool("tutorial_status",
		mcp.WithDescription("Report the tutorial state of a browser tab."),
		mcp.WithString("tab", mcp.Required(), mcp.Description("The browser tab ID")),
		mcp.WithOutputSchema[StatusResponse](),
	)
	s.mcpServer.AddTool(statusTool, mcp.NewStructuredToolHandler(s.handleStatus))

	cancelTool := mcp.NewTool("cancel_tutorial",
		mcp.WithDescription("Stop the tutorial of a browser tab and discard its progress."),
		mcp.WithString("tab", mcp.Required(), mcp.Description("The browser tab ID")),
		mcp.WithOutputSchema[StatusResponse](),
	)
	s.mcpServer.AddTool(cancelTool, mcp.NewStructuredToolHandler(s.handleCancel))
}

var errNoTab = errors.New("tab is required")

func (s *Server) handleStart(ctx context.Context, request mcp.CallToolRequest, args StartArgs) (StatusResponse, error) {
	if args.Tab == "" {
		return StatusResponse{}, errNoTab
	}

	var (
		st  bus.TutorialStatus
		err error
	)
	switch {
	case args.Steps != "":
		var steps []domain.Step
		if err := json.Unmarshal([]byte(args.Steps), &steps); err != nil {
			return StatusResponse{}, fmt.Errorf("invalid steps: %w", err)
		}
		st, err = s.panel.Initiate(ctx, args.Tab, steps)
	case args.Catalog != "":
		st, err = s.panel.InitiateCatalog(ctx, args.Tab, args.Catalog)
	case args.Action != "":
		st, err = s.panel.InitiateQuery(ctx, args.Tab, args.Action, args.Software)
	default:
		return StatusResponse{}, errors.New("one of catalog, action or steps is required")
	}
	if err != nil {
		s.logger.Warn("MCP start_tutorial failed", "tab_id", args.Tab, "err", err)
		return StatusResponse{}, fmt.Errorf("start failed: %w", err)
	}
	return StatusResponse{Tab: args.Tab, Status: st}, nil
}

func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest, args TabArgs) (StatusResponse, error) {
	if args.Tab == "" {
		return StatusResponse{}, errNoTab
	}
	st, err := s.panel.Status(ctx, args.Tab)
	if err != nil {
		return StatusResponse{}, fmt.Errorf("status failed: %w", err)
	}
	return StatusResponse{Tab: args.Tab, Status: st}, nil
}

func (s *Server) handleCancel(ctx context.Context, request mcp.CallToolRequest, args TabArgs) (StatusResponse, error) {
	if args.Tab == "" {
		return StatusResponse{}, errNoTab
	}
	st, err := s.panel.Cancel(ctx, args.Tab)
	if err != nil {
		return StatusResponse{}, fmt.Errorf("cancel failed: %w", err)
	}
	return StatusResponse{Tab: args.Tab, Status: st}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(CatalogURI, "Authored tutorials",
		mcp.WithMIMEType("application/json"),
	), s.readCatalog)
}

func (s *Server) readCatalog(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	tutorials, err := s.panel.Catalog().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}
	entries := make([]CatalogEntry, len(tutorials))
	for i, t := range tutorials {
		entries[i] = CatalogEntry{ID: t.ID, Title: t.Title, Software: t.Software, Action: t.Action, Steps: len(t.Steps)}
	}
	jsonBytes, err := json.Marshal(entries)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      CatalogURI,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}
