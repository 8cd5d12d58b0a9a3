// Senseichat is a terminal client for the assistant backend.
//
// It signs in against the backend's auth endpoints, keeps the bearer
// token and a profile snapshot in a local SQLite state store so a
// restart resumes the session, and drives the conversation endpoints
// from a full-screen TUI. Configuration is loaded from a single YAML
// file discovered automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	senseichat                 Start the chat TUI
//	senseichat version         Print version and build information
//	senseichat -config <path>  Use an explicit config file
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"senseichat/internal/buildinfo"
	"senseichat/internal/chat"
	"senseichat/internal/config"
	"senseichat/internal/credential"
	"senseichat/internal/gateway"
	"senseichat/internal/session"
	"senseichat/internal/statestore"

	tea "github.com/charmbracelet/bubbletea"
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run]. This keeps
// os.Exit, os.Stdout, and os.Args out of the application logic so that
// startup can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the senseichat command. Arguments are
// parsed by hand rather than with the flag package: flag relies on
// package-level globals (flag.CommandLine) that interfere with parallel
// tests, and the argument surface here is two flags and one subcommand.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var command string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++ // skip the value
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			return fmt.Errorf("unknown flag: %s", args[i])
		}
	}

	switch command {
	case "version":
		fmt.Fprintln(stdout, buildinfo.String())
		for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
			if v, ok := buildinfo.Info()[k]; ok {
				fmt.Fprintf(stdout, "  %-12s %s\n", k+":", v)
			}
		}
		return nil
	case "":
		return runChat(ctx, configPath)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runChat is the primary operating mode: loads config, opens the state
// store, wires the session and conversation layers together, and runs
// the TUI until the user quits.
func runChat(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	// All persistent client state (the bearer token and the profile
	// snapshot) lives in one SQLite file under the user config dir.
	dbPath, err := cfg.StateDBPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return fmt.Errorf("create state directory %s: %w", filepath.Dir(dbPath), err)
	}
	store, err := statestore.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open state database %s: %w", dbPath, err)
	}
	defer store.Close()
	logger.Info("state database opened", "path", dbPath)

	creds := credential.NewStore(store, logger)
	gw := gateway.New(cfg.Backend.BaseURL, creds, logger,
		gateway.WithTimeouts(cfg.Backend.Timeout(), cfg.Backend.PromptTimeout()))
	sess := session.NewManager(gw, creds, store, logger)
	dir := chat.NewDirectory(gw, logger)
	transcript := chat.NewTranscript(gw, dir, logger)

	logger.Info("starting senseichat",
		"version", buildinfo.Version,
		"backend", cfg.Backend.BaseURL,
	)

	p := tea.NewProgram(newModel(ctx, cfg, sess, dir, transcript), tea.WithAltScreen())

	// A rejected credential on any protected call drops the whole UI
	// back to the sign-in view, whatever it was doing at the time.
	gw.OnAuthLost(func() {
		p.Send(authLostMsg{})
	})

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("ui failed: %w", err)
	}

	logger.Info("senseichat stopped")
	return nil
}

// loadConfig locates and parses the YAML configuration file. An explicit
// -config path must exist; otherwise the default search paths are tried
// and a missing file falls back to built-in defaults, so the client runs
// against a local backend with zero setup.
func loadConfig(explicit string) (*config.Config, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		if explicit != "" {
			return nil, err
		}
		return config.Default(), nil
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	return cfg, nil
}

// newLogger builds the structured logger. Logs go to the configured
// log_file, or are discarded when none is set: the TUI owns the
// terminal, so logging to stdout would corrupt the display. The
// returned close func releases the log file handle.
func newLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	w := io.Writer(io.Discard)
	closeLog := func() {}

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %s: %w", cfg.LogFile, err)
		}
		w = f
		closeLog = func() { f.Close() }
	}

	level := slog.LevelInfo
	if cfg.LogLevel != "" {
		level, _ = config.ParseLogLevel(cfg.LogLevel)
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	})
	return slog.New(handler), closeLog, nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "senseichat - terminal client for the assistant backend")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: senseichat [flags] [command]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	for _, p := range config.DefaultSearchPaths() {
		fmt.Fprintf(w, "  %s\n", p)
	}
	return nil
}
