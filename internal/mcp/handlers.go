package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ctxkeep/ctxkeep/internal/capture"
	"github.com/ctxkeep/ctxkeep/internal/errors"
	"github.com/ctxkeep/ctxkeep/internal/restore"
	"github.com/ctxkeep/ctxkeep/internal/search"
	"github.com/ctxkeep/ctxkeep/internal/store"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	store     *store.Store
	capture   *capture.Service
	formatter *restore.Formatter
	index     *search.Index
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(st *store.Store, cap *capture.Service, formatter *restore.Formatter, index *search.Index) *Handlers {
	return &Handlers{store: st, capture: cap, formatter: formatter, index: index}
}

// Request types for each tool

// CaptureRequest represents the arguments for context_capture.
type CaptureRequest struct {
	OwnerID string          `json:"owner_id"`
	ToolID  string          `json:"tool_id"`
	Title   *string         `json:"title,omitempty"`
	Tags    []string        `json:"tags,omitempty"`
	Context json.RawMessage `json:"context"`
}

// CaptureUpdateRequest represents the arguments for context_capture_update.
type CaptureUpdateRequest struct {
	ID              string          `json:"id"`
	OwnerID         string          `json:"owner_id"`
	ExpectedVersion int64           `json:"expected_version"`
	Context         json.RawMessage `json:"context"`
}

// EditMetaRequest represents the arguments for context_edit_meta.
type EditMetaRequest struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"owner_id"`
	ExpectedVersion int64     `json:"expected_version"`
	Title           *string   `json:"title,omitempty"`
	Tags            *[]string `json:"tags,omitempty"`
}

// RestoreRequest represents the arguments for context_restore.
type RestoreRequest struct {
	ID         string  `json:"id"`
	OwnerID    string  `json:"owner_id"`
	TargetTool *string `json:"target_tool,omitempty"`
}

// PreviewRequest represents the arguments for context_preview.
type PreviewRequest struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
}

// QueryRequest represents the arguments for context_query.
type QueryRequest struct {
	OwnerID string  `json:"owner_id"`
	Query   string  `json:"query,omitempty"`
	Tag     *string `json:"tag,omitempty"`
	Tool    *string `json:"tool,omitempty"`
	SortBy  string  `json:"sort_by,omitempty"`
	Limit   int     `json:"limit,omitempty"`
	Offset  int     `json:"offset,omitempty"`
}

// DeleteRequest represents the arguments for context_delete.
type DeleteRequest struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
}

// Handler implementations

// HandleCapture handles the context_capture tool call.
func (h *Handlers) HandleCapture(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CaptureRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidPayload("arguments", err.Error())), nil
	}

	snap, err := h.capture.CaptureNew(ctx, capture.NewInput{
		OwnerID: input.OwnerID,
		ToolID:  input.ToolID,
		Title:   input.Title,
		Tags:    input.Tags,
		Raw:     input.Context,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(snap.ToSummary())
}

// HandleCaptureUpdate handles the context_capture_update tool call.
func (h *Handlers) HandleCaptureUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CaptureUpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidPayload("arguments", err.Error())), nil
	}

	snap, err := h.capture.CaptureUpdate(ctx, input.ID, input.OwnerID, input.ExpectedVersion, input.Context)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(snap.ToSummary())
}

// HandleEditMeta handles the context_edit_meta tool call.
func (h *Handlers) HandleEditMeta(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[EditMetaRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidPayload("arguments", err.Error())), nil
	}

	snap, err := h.capture.EditMeta(ctx, input.ID, input.OwnerID, input.ExpectedVersion, capture.MetaInput{
		Title: input.Title,
		Tags:  input.Tags,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(snap.ToSummary())
}

// HandleRestore handles the context_restore tool call.
func (h *Handlers) HandleRestore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RestoreRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidPayload("arguments", err.Error())), nil
	}

	result, err := h.formatter.Restore(ctx, input.ID, input.OwnerID, input.TargetTool)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePreview handles the context_preview tool call.
func (h *Handlers) HandlePreview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PreviewRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidPayload("arguments", err.Error())), nil
	}

	result, err := h.formatter.Preview(ctx, input.ID, input.OwnerID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleQuery handles the context_query tool call.
func (h *Handlers) HandleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[QueryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidPayload("arguments", err.Error())), nil
	}

	result, err := h.index.Query(search.QueryInput{
		OwnerID: input.OwnerID,
		Text:    input.Query,
		Tag:     input.Tag,
		ToolID:  input.Tool,
		SortBy:  input.SortBy,
		Limit:   input.Limit,
		Offset:  input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDelete handles the context_delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidPayload("arguments", err.Error())), nil
	}

	if err := h.capture.Delete(ctx, input.ID, input.OwnerID); err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{"id": input.ID, "deleted": true})
}

// HandleReindex handles the context_reindex tool call.
func (h *Handlers) HandleReindex(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summaries, err := h.store.ListAll(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	h.index.Rebuild(summaries)
	return successResult(map[string]any{"indexed": len(summaries)})
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if engErr, ok := err.(*errors.EngineError); ok {
		errorObj := map[string]any{
			"code":    engErr.Code,
			"message": engErr.Message,
			"status":  engErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if engErr.Code != errors.ErrInternal && engErr.Details != nil {
			errorObj["details"] = engErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
