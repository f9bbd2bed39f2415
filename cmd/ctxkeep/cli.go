package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/ctxkeep/ctxkeep/internal/capture"
	"github.com/ctxkeep/ctxkeep/internal/errors"
	"github.com/ctxkeep/ctxkeep/internal/restore"
	"github.com/ctxkeep/ctxkeep/internal/search"
	"github.com/ctxkeep/ctxkeep/internal/store"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(d *deps) *cli.App {
	app := &cli.App{
		Name:    "ctxkeep",
		Usage:   "Session context preservation engine",
		Version: Version,
		Commands: []*cli.Command{
			captureCmd(d),
			updateCmd(d),
			editMetaCmd(d),
			restoreCmd(d),
			previewCmd(d),
			queryCmd(d),
			listCmd(d),
			deleteCmd(d),
			reindexCmd(d),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// ownerFlag is shared by every command; all data access is owner-scoped.
func ownerFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "owner",
		Aliases: []string{"u"},
		EnvVars: []string{"CTXKEEP_OWNER"},
		Usage:   "Owner identity (or set CTXKEEP_OWNER)",
	}
}

// captureCmd creates the capture command.
func captureCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "capture",
		Usage: "Capture a new context snapshot (reads context JSON from stdin)",
		Flags: []cli.Flag{
			ownerFlag(),
			&cli.StringFlag{Name: "tool", Required: true, Usage: "Source tool identifier (e.g. claude-code)"},
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Snapshot title (optional)"},
			&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags"},
		},
		Action: func(c *cli.Context) error {
			if !stdinHasData() {
				return outputError(errors.NewInvalidPayload("context", "context JSON must be piped via stdin"))
			}

			raw, err := readStdin()
			if err != nil {
				return outputError(errors.NewInternal(err))
			}

			input := captureNewInput(c, raw)
			snap, err := d.capture.CaptureNew(c.Context, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(snap.ToSummary())
		},
	}
}

// updateCmd creates the update command.
func updateCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Replace a snapshot's context (reads context JSON from stdin)",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			ownerFlag(),
			&cli.Int64Flag{Name: "expected-version", Aliases: []string{"e"}, Required: true, Usage: "Version the update is based on"},
		},
		Action: func(c *cli.Context) error {
			id, err := requireID(c)
			if err != nil {
				return outputError(err)
			}
			if !stdinHasData() {
				return outputError(errors.NewInvalidPayload("context", "context JSON must be piped via stdin"))
			}

			raw, err := readStdin()
			if err != nil {
				return outputError(errors.NewInternal(err))
			}

			snap, err := d.capture.CaptureUpdate(c.Context, id, c.String("owner"), c.Int64("expected-version"), []byte(raw))
			if err != nil {
				return outputError(err)
			}

			return outputJSON(snap.ToSummary())
		},
	}
}

// editMetaCmd creates the edit-meta command.
func editMetaCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "edit-meta",
		Usage:     "Update a snapshot's title and/or tags",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			ownerFlag(),
			&cli.Int64Flag{Name: "expected-version", Aliases: []string{"e"}, Required: true, Usage: "Version the edit is based on"},
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "New title"},
			&cli.StringFlag{Name: "tags", Usage: "New comma-separated tags (replaces existing)"},
		},
		Action: func(c *cli.Context) error {
			id, err := requireID(c)
			if err != nil {
				return outputError(err)
			}

			input := metaInput(c)
			snap, err := d.capture.EditMeta(c.Context, id, c.String("owner"), c.Int64("expected-version"), input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(snap.ToSummary())
		},
	}
}

// restoreCmd creates the restore command.
func restoreCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "restore",
		Usage:     "Restore a snapshot, optionally formatted for a target tool",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			ownerFlag(),
			&cli.StringFlag{Name: "target-tool", Usage: "Format output for this tool (claude-code|cursor|chatgpt|copilot)"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: "json", Usage: "Output encoding: json|yaml"},
			&cli.StringFlag{Name: "render", Aliases: []string{"r"}, Usage: "Render conversation transcript: md|html"},
		},
		Action: func(c *cli.Context) error {
			id, err := requireID(c)
			if err != nil {
				return outputError(err)
			}

			var target *string
			if t := c.String("target-tool"); t != "" {
				target = &t
			}

			out, err := d.formatter.Restore(c.Context, id, c.String("owner"), target)
			if err != nil {
				return outputError(err)
			}

			if render := c.String("render"); render != "" {
				return outputTranscript(out, render)
			}
			return outputEncoded(out, c.String("output"))
		},
	}
}

// previewCmd creates the preview command.
func previewCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "preview",
		Usage:     "Show snapshot metadata and stats without decompressing for restore",
		ArgsUsage: "<id>",
		Flags:     []cli.Flag{ownerFlag()},
		Action: func(c *cli.Context) error {
			id, err := requireID(c)
			if err != nil {
				return outputError(err)
			}

			out, err := d.formatter.Preview(c.Context, id, c.String("owner"))
			if err != nil {
				return outputError(err)
			}

			return outputJSON(out)
		},
	}
}

// queryCmd creates the query command.
func queryCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "query",
		Usage: "Search snapshots by text, tag, or tool",
		Flags: []cli.Flag{
			ownerFlag(),
			&cli.StringFlag{Name: "text", Usage: "Search text (min 2 characters)"},
			&cli.StringFlag{Name: "tag", Usage: "Filter by tag"},
			&cli.StringFlag{Name: "tool", Usage: "Filter by source tool"},
			&cli.StringFlag{Name: "sort-by", Value: "updated_at", Usage: "Sort order when no text: updated_at|created_at"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: search.DefaultQueryLimit, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
		},
		Action: func(c *cli.Context) error {
			// Each CLI invocation is a fresh process; hydrate the index first.
			if err := rebuildIndex(c, d); err != nil {
				return outputError(err)
			}

			input := search.QueryInput{
				OwnerID: c.String("owner"),
				Text:    c.String("text"),
				SortBy:  c.String("sort-by"),
				Limit:   c.Int("limit"),
				Offset:  c.Int("offset"),
			}
			if tag := c.String("tag"); tag != "" {
				input.Tag = &tag
			}
			if tool := c.String("tool"); tool != "" {
				input.ToolID = &tool
			}

			out, err := d.index.Query(input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(out)
		},
	}
}

// listCmd creates the list command.
func listCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List snapshots for an owner, most recently updated first",
		Flags: []cli.Flag{
			ownerFlag(),
			&cli.StringFlag{Name: "tool", Usage: "Filter by source tool"},
			&cli.StringFlag{Name: "tag", Usage: "Filter by tag"},
		},
		Action: func(c *cli.Context) error {
			filter := store.ListFilter{}
			if tool := c.String("tool"); tool != "" {
				filter.ToolID = &tool
			}
			if tag := c.String("tag"); tag != "" {
				filter.Tag = &tag
			}

			items, err := d.store.List(c.Context, c.String("owner"), filter)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(map[string]any{"items": items, "count": len(items)})
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Soft-delete a snapshot",
		ArgsUsage: "<id>",
		Flags:     []cli.Flag{ownerFlag()},
		Action: func(c *cli.Context) error {
			id, err := requireID(c)
			if err != nil {
				return outputError(err)
			}

			if err := d.capture.Delete(c.Context, id, c.String("owner")); err != nil {
				return outputError(err)
			}

			return outputJSON(map[string]any{"id": id, "deleted": true})
		},
	}
}

// reindexCmd creates the reindex command.
func reindexCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "reindex",
		Usage: "Rebuild the search index from stored snapshots",
		Action: func(c *cli.Context) error {
			if err := rebuildIndex(c, d); err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"indexed": d.index.Len()})
		},
	}
}

// Helper functions

// requireID returns the positional snapshot id argument.
func requireID(c *cli.Context) (string, error) {
	if c.NArg() < 1 {
		return "", errors.NewInvalidPayload("id", "snapshot id is required")
	}
	return c.Args().First(), nil
}

// rebuildIndex hydrates the in-memory search index from the store.
func rebuildIndex(c *cli.Context, d *deps) error {
	summaries, err := d.store.ListAll(c.Context)
	if err != nil {
		return err
	}
	d.index.Rebuild(summaries)
	return nil
}

// captureNewInput assembles capture input from flags plus piped context JSON.
func captureNewInput(c *cli.Context, raw string) capture.NewInput {
	input := capture.NewInput{
		OwnerID: c.String("owner"),
		ToolID:  c.String("tool"),
		Raw:     []byte(raw),
	}
	if title := c.String("title"); title != "" {
		input.Title = &title
	}
	if tags := c.String("tags"); tags != "" {
		input.Tags = parseTags(tags)
	}
	return input
}

// metaInput assembles a metadata edit from flags.
func metaInput(c *cli.Context) capture.MetaInput {
	input := capture.MetaInput{}
	if title := c.String("title"); title != "" {
		input.Title = &title
	}
	if c.IsSet("tags") {
		tags := parseTags(c.String("tags"))
		input.Tags = &tags
	}
	return input
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputEncoded writes v as JSON or YAML per the --output flag.
func outputEncoded(v any, format string) error {
	switch format {
	case "", "json":
		return outputJSON(v)
	case "yaml":
		// Round-trip through JSON so YAML keys match the JSON field names.
		raw, err := json.Marshal(v)
		if err != nil {
			return outputError(errors.NewInternal(err))
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return outputError(errors.NewInternal(err))
		}
		data, err := restore.EncodeYAML(generic)
		if err != nil {
			return outputError(errors.NewInternal(err))
		}
		_, err = os.Stdout.Write(data)
		return err
	default:
		return outputError(errors.NewInvalidPayload("output", "output must be json or yaml"))
	}
}

// outputTranscript renders the restored conversation per the --render flag.
func outputTranscript(out *restore.FormattedContext, format string) error {
	if out.Payload == nil {
		return outputError(errors.NewInvalidPayload("render",
			"transcript rendering requires a generic restore (omit --target-tool)"))
	}
	switch format {
	case "md":
		fmt.Println(restore.TranscriptMarkdown(out.Payload))
		return nil
	case "html":
		html, err := restore.TranscriptHTML(out.Payload)
		if err != nil {
			return outputError(errors.NewInternal(err))
		}
		fmt.Println(html)
		return nil
	default:
		return outputError(errors.NewInvalidPayload("render", "render must be md or html"))
	}
}

// outputError formats error for CLI.
func outputError(err error) error {
	if engErr, ok := err.(*errors.EngineError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", engErr.Code, engErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// parseTags splits a comma-separated string into a slice of tags.
func parseTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
