package restore

import (
	"sort"
	"strings"
	"sync"

	"github.com/ctxkeep/ctxkeep/internal/payload"
)

// Adapter is a pure transformation from the canonical payload into one tool's
// expected shape. Adding a tool means registering a new adapter; existing
// ones are never modified.
type Adapter func(p *payload.ContextPayload) (map[string]any, error)

// Registry maps tool ids to adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds or replaces the adapter for a tool id.
func (r *Registry) Register(toolID string, a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[strings.TrimSpace(toolID)] = a
}

// Get returns the adapter for a tool id, if registered.
func (r *Registry) Get(toolID string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[toolID]
	return a, ok
}

// Known returns registered tool ids in sorted order.
func (r *Registry) Known() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	known := make([]string, 0, len(r.adapters))
	for toolID := range r.adapters {
		known = append(known, toolID)
	}
	sort.Strings(known)
	return known
}

// DefaultRegistry returns a registry with the builtin tool adapters.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("claude-code", claudeCodeAdapter)
	r.Register("cursor", cursorAdapter)
	r.Register("chatgpt", chatgptAdapter)
	r.Register("copilot", copilotAdapter)
	return r
}

// claudeCodeAdapter inlines every code reference and keeps structured turns.
// Instructions travel in tool_state under "instructions" when present.
func claudeCodeAdapter(p *payload.ContextPayload) (map[string]any, error) {
	files := make(map[string]string, len(p.CodeRefs))
	for path, ref := range p.CodeRefs {
		files[path] = ref.Content
	}

	instructions := ""
	if v, ok := p.ToolState["instructions"].(string); ok {
		instructions = v
	}

	return map[string]any{
		"files":           files,
		"conversation":    p.Conversation,
		"project_context": p.ProjectMeta,
		"instructions":    instructions,
	}, nil
}

// cursorAdapter maps the canonical fields onto Cursor's workspace shape.
func cursorAdapter(p *payload.ContextPayload) (map[string]any, error) {
	workspace := make(map[string]string, len(p.CodeRefs))
	for path, ref := range p.CodeRefs {
		workspace[path] = ref.Content
	}

	return map[string]any{
		"workspace":      workspace,
		"chat_history":   p.Conversation,
		"project_config": p.ProjectMeta,
	}, nil
}

// chatgptAdapter flattens the conversation into a single markdown transcript
// and references code by path rather than inlining it.
func chatgptAdapter(p *payload.ContextPayload) (map[string]any, error) {
	paths := make([]string, 0, len(p.CodeRefs))
	for path := range p.CodeRefs {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	return map[string]any{
		"transcript": TranscriptMarkdown(p),
		"code_paths": paths,
		"project":    p.ProjectMeta,
	}, nil
}

// copilotAdapter inlines full-content references and lists diffs by path,
// since Copilot consumes whole files but not patch context.
func copilotAdapter(p *payload.ContextPayload) (map[string]any, error) {
	files := make(map[string]string)
	diffPaths := make([]string, 0)
	for path, ref := range p.CodeRefs {
		if ref.Kind == payload.RefKindFull {
			files[path] = ref.Content
		} else {
			diffPaths = append(diffPaths, path)
		}
	}
	sort.Strings(diffPaths)

	return map[string]any{
		"files":      files,
		"diff_paths": diffPaths,
		"chat":       p.Conversation,
		"project":    p.ProjectMeta,
	}, nil
}
