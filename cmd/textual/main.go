package main

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hpungsan/textual/internal/client"
	"github.com/hpungsan/textual/internal/config"
	"github.com/hpungsan/textual/internal/db"
	"github.com/hpungsan/textual/internal/logger"
	"github.com/hpungsan/textual/internal/mcp"
	"github.com/hpungsan/textual/internal/ops"
)

// Version is set via -ldflags at build time.
var Version = "dev"

type runMode int

const (
	modeServe   runMode = iota // MCP over stdio
	modeBanner                 // interactive, no arguments
	modeHelp                   // help or version, no env needed
	modeCLI                    // a known subcommand
	modeUnknown                // unrecognised argument on a terminal
)

// selectMode picks what to do from the arguments and whether stdin is a
// terminal. Anything unrecognised on a pipe is left to the MCP server.
func selectMode(args []string, interactive bool) runMode {
	if len(args) < 2 {
		if interactive {
			return modeBanner
		}
		return modeServe
	}
	switch arg := args[1]; {
	case arg == "help" || arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v":
		return modeHelp
	case newCLIApp(nil).Command(arg) != nil:
		return modeCLI
	case interactive:
		return modeUnknown
	default:
		return modeServe
	}
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, err := os.Stdin.Stat()
	return err == nil && stat.Mode()&os.ModeCharDevice != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   _            _               _
  | |_ _____  _| |_ _   _  __ _| |
  | __/ _ \ \/ / __| | | |/ _' | |
  | ||  __/>  <| |_| |_| | (_| | |
   \__\___/_/\_\\__|\__,_|\__,_|_|

  Redact sensitive entities across fragmented text

  Usage: textual <command> [options]
         textual --help

  MCP server mode requires piped input.`)
}

// buildEnv loads configuration and opens the journal and service client.
// The returned cleanup closes what was opened.
func buildEnv(baseDir string) (*ops.Env, func(), error) {
	if err := config.LoadDotEnv(filepath.Join(baseDir, ".env"), ".env"); err != nil {
		return nil, nil, err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("could not determine working directory: %w", err)
	}
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	config.ApplyEnv(cfg, os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		log.Warn("unknown disabled_tools", zap.Strings("names", unknown))
	}
	if unknown := mcp.ValidateDisabledTypes(cfg.DisabledTypes); len(unknown) > 0 {
		log.Warn("unknown disabled_types", zap.Strings("names", unknown))
	}

	database, err := db.Init(baseDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	db.ConfigurePool(database, cfg)

	env := &ops.Env{DB: database, Cfg: cfg, Log: log}

	// Without an API key only history commands work.
	if c, err := client.New(cfg, log); err != nil {
		log.Debug("service client unavailable", zap.Error(err))
	} else {
		env.Redactor = c
	}

	cleanup := func() {
		database.Close()
		_ = log.Sync()
	}
	return env, cleanup, nil
}

func main() {
	if err := run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	mode := selectMode(args, isTerminal())
	switch mode {
	case modeBanner:
		printBanner()
		return nil
	case modeHelp:
		return newCLIApp(nil).Run(args)
	case modeUnknown:
		return fmt.Errorf("unknown command %q; run 'textual --help' for usage", args[1])
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("could not determine home directory: %w", err)
	}
	env, cleanup, err := buildEnv(filepath.Join(home, ".textual"))
	if err != nil {
		return err
	}
	defer cleanup()

	if mode == modeCLI {
		return newCLIApp(env).Run(args)
	}
	return mcp.Run(env, Version)
}
