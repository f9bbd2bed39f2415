package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// decode maps the request's argument map onto a tool's typed input struct.
// The JSON round trip gives strict field mapping without per-field type
// assertions; errors name the tool so a bad call is easy to trace.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var input T
	raw, err := json.Marshal(req.GetArguments())
	if err != nil {
		return input, fmt.Errorf("%s: encode arguments: %w", req.Params.Name, err)
	}
	if err := json.Unmarshal(raw, &input); err != nil {
		return input, fmt.Errorf("%s: decode arguments: %w", req.Params.Name, err)
	}
	return input, nil
}
