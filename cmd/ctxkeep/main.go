package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ctxkeep/ctxkeep/internal/capture"
	"github.com/ctxkeep/ctxkeep/internal/codec"
	"github.com/ctxkeep/ctxkeep/internal/config"
	"github.com/ctxkeep/ctxkeep/internal/mcp"
	"github.com/ctxkeep/ctxkeep/internal/quota"
	"github.com/ctxkeep/ctxkeep/internal/restore"
	"github.com/ctxkeep/ctxkeep/internal/search"
	"github.com/ctxkeep/ctxkeep/internal/store"
	"github.com/ctxkeep/ctxkeep/internal/workpool"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"capture": true, "update": true, "edit-meta": true,
	"restore": true, "preview": true, "query": true,
	"list": true, "delete": true, "reindex": true,
	"help": true,
}

// deps bundles the wired services shared by CLI commands and the MCP server.
type deps struct {
	store     *store.Store
	capture   *capture.Service
	formatter *restore.Formatter
	index     *search.Index
	cfg       *config.Config
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	// Known subcommand → CLI
	if cliCommands[arg] {
		return true
	}
	// --help or --version → CLI
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   ___ _____ __  _____ _____ ___ ___
  / __|_   _\ \/ / _ \ | __| __| _ \
 | (__  | |  >  <|   < | _|| _||  _/
  \___| |_| /_/\_\_|\_\|___|___|_|

  Session context preservation engine

  Usage: ctxkeep <command> [options]
         ctxkeep --help

  MCP server mode requires piped input.`)
}

// wire builds the service graph on top of an initialized database.
func wire(baseDir string) (*deps, func(), error) {
	database, err := store.Init(baseDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	cfg, err := config.Load(baseDir)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	store.ConfigurePool(database, cfg)

	st := store.New(database, codec.New(cfg.CompressThresholdBytes))
	index := search.NewIndex()
	checker := quota.NewCountChecker(st, cfg.MaxSnapshots)
	pool := workpool.New(cfg.WorkerCount)
	capSvc := capture.NewService(st, index, checker, pool, cfg)
	formatter := restore.NewFormatter(st, nil, pool)

	d := &deps{
		store:     st,
		capture:   capSvc,
		formatter: formatter,
		index:     index,
		cfg:       cfg,
	}
	return d, func() { database.Close() }, nil
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}

	baseDir := filepath.Join(homeDir, ".ctxkeep")

	d, closeDB, err := wire(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeDB()

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(d)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'ctxkeep --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := mcp.Run(d.store, d.capture, d.formatter, d.index, d.cfg, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
