package mcp

import (
	"context"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ctxkeep/ctxkeep/internal/capture"
	"github.com/ctxkeep/ctxkeep/internal/config"
	"github.com/ctxkeep/ctxkeep/internal/restore"
	"github.com/ctxkeep/ctxkeep/internal/search"
	"github.com/ctxkeep/ctxkeep/internal/store"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"context_capture": {
		def:     captureToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCapture },
	},
	"context_capture_update": {
		def:     captureUpdateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCaptureUpdate },
	},
	"context_edit_meta": {
		def:     editMetaToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEditMeta },
	},
	"context_restore": {
		def:     restoreToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRestore },
	},
	"context_preview": {
		def:     previewToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePreview },
	},
	"context_query": {
		def:     queryToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleQuery },
	},
	"context_delete": {
		def:     deleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDelete },
	},
	"context_reindex": {
		def:     reindexToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleReindex },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with ctxkeep tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
// The search index is rebuilt from the store before serving so queries are
// answerable immediately.
func NewServer(st *store.Store, svc *capture.Service, formatter *restore.Formatter, index *search.Index, cfg *config.Config, version string) (*server.MCPServer, error) {
	s := server.NewMCPServer(
		"ctxkeep",
		version,
		server.WithToolCapabilities(true),
	)

	summaries, err := st.ListAll(context.Background())
	if err != nil {
		return nil, err
	}
	index.Rebuild(summaries)

	h := NewHandlers(st, svc, formatter, index)

	disabled := make(map[string]bool)
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}
	for _, name := range ValidateDisabledTools(cfg.DisabledTools) {
		log.Printf("warning: unknown disabled tool %q", name)
	}

	// Register tools (skip disabled)
	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s, nil
}

// Run starts the MCP server using stdio transport.
func Run(st *store.Store, svc *capture.Service, formatter *restore.Formatter, index *search.Index, cfg *config.Config, version string) error {
	s, err := NewServer(st, svc, formatter, index, cfg, version)
	if err != nil {
		return err
	}
	return server.ServeStdio(s)
}
