package mcp

import "github.com/mark3labs/mcp-go/mcp"

var captureToolDef = mcp.NewTool("context_capture",
	mcp.WithDescription("Capture a new session context snapshot. The context object carries conversation turns, code references, tool state, and project metadata; it is validated, compressed, and stored."),
	mcp.WithString("owner_id", mcp.Required(), mcp.Description("Owning principal id (trusted, supplied by the caller's identity layer)")),
	mcp.WithString("tool_id", mcp.Required(), mcp.Description("Originating AI tool (e.g., claude-code, cursor)")),
	mcp.WithString("title", mcp.Description("Optional snapshot title (max 200 chars)")),
	mcp.WithArray("tags", mcp.Description("Optional tags (max 20, each max 50 chars)")),
	mcp.WithObject("context", mcp.Required(), mcp.Description("Context data: conversation, code_refs, tool_state, project_meta")),
)

var captureUpdateToolDef = mcp.NewTool("context_capture_update",
	mcp.WithDescription("Replace a snapshot's context data. Fails with CONFLICT if expected_version is stale."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Snapshot id")),
	mcp.WithString("owner_id", mcp.Required(), mcp.Description("Owning principal id")),
	mcp.WithNumber("expected_version", mcp.Required(), mcp.Description("Version the caller last read")),
	mcp.WithObject("context", mcp.Required(), mcp.Description("Replacement context data")),
)

var editMetaToolDef = mcp.NewTool("context_edit_meta",
	mcp.WithDescription("Edit a snapshot's title and/or tags without touching the payload. Bumps version like any other update."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Snapshot id")),
	mcp.WithString("owner_id", mcp.Required(), mcp.Description("Owning principal id")),
	mcp.WithNumber("expected_version", mcp.Required(), mcp.Description("Version the caller last read")),
	mcp.WithString("title", mcp.Description("New title")),
	mcp.WithArray("tags", mcp.Description("New tag set (replaces the old one)")),
)

var restoreToolDef = mcp.NewTool("context_restore",
	mcp.WithDescription("Restore a snapshot. Without target_tool the canonical payload is returned; with it, the registered adapter shapes the output. Unknown targets fail with UNSUPPORTED_TOOL."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Snapshot id")),
	mcp.WithString("owner_id", mcp.Required(), mcp.Description("Owning principal id")),
	mcp.WithString("target_tool", mcp.Description("Target tool adapter (claude-code, cursor, chatgpt, copilot)")),
)

var previewToolDef = mcp.NewTool("context_preview",
	mcp.WithDescription("Preview a snapshot: metadata, turn/code-reference counts, and compression ratio, without a full restore."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Snapshot id")),
	mcp.WithString("owner_id", mcp.Required(), mcp.Description("Owning principal id")),
)

var queryToolDef = mcp.NewTool("context_query",
	mcp.WithDescription("Search snapshots by text, tag, and tool. Results are always scoped to owner_id and ranked by term matches then recency."),
	mcp.WithString("owner_id", mcp.Required(), mcp.Description("Owning principal id")),
	mcp.WithString("query", mcp.Description("Text query over title, tags, and tool id (min 2 chars)")),
	mcp.WithString("tag", mcp.Description("Filter by tag")),
	mcp.WithString("tool", mcp.Description("Filter by tool id")),
	mcp.WithString("sort_by", mcp.Description("updated_at (default) or created_at; applies when no text query")),
	mcp.WithNumber("limit", mcp.Description("Max results (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Results offset")),
)

var deleteToolDef = mcp.NewTool("context_delete",
	mcp.WithDescription("Soft-delete a snapshot. It disappears from query and restore but is not physically removed."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Snapshot id")),
	mcp.WithString("owner_id", mcp.Required(), mcp.Description("Owning principal id")),
)

var reindexToolDef = mcp.NewTool("context_reindex",
	mcp.WithDescription("Rebuild the search index from the store. The store is the source of truth; a rebuild repairs any missed best-effort index update."),
)
