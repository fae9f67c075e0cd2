// Krish is a personal assistant reachable over Telegram.
//
// Each message is scored for intent, answered with a context window
// sized to that intent, and may drive tools (web search, GitHub,
// Notion, reminders, outbound messages). Durable facts are extracted
// into a markdown memory file. Configuration is loaded from a single
// YAML file discovered automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	krish serve              Start the Telegram bot
//	krish ask <question>     Answer one question on the command line
//	krish index              Embed daily logs into the retrieval index
//	krish metrics [limit]    Show recent per-turn metrics
//	krish init [dir]         Initialize a working directory with defaults
//	krish version            Print version and build information
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata" // reminder timezones on hosts without zoneinfo

	"github.com/nugget/krish/internal/agent"
	"github.com/nugget/krish/internal/buildinfo"
	"github.com/nugget/krish/internal/config"
	"github.com/nugget/krish/internal/httpkit"
	"github.com/nugget/krish/internal/memory"
	"github.com/nugget/krish/internal/metrics"
	"github.com/nugget/krish/internal/retrieval"
	"github.com/nugget/krish/internal/telegram"
)

// main constructs the OS-level environment (context, stdio, argv) and
// delegates immediately to [run].
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the krish command. args is
// os.Args[1:]. Arguments are parsed by hand so run can be called
// concurrently from tests.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: krish ask <question>")
		}
		return runAsk(ctx, stdout, stderr, configPath, cmdArgs)
	case "index":
		return runIndex(ctx, stdout, stderr, configPath)
	case "metrics":
		limit := 20
		if len(cmdArgs) > 0 {
			n, err := strconv.Atoi(cmdArgs[0])
			if err != nil || n <= 0 {
				return fmt.Errorf("usage: krish metrics [limit]")
			}
			limit = n
		}
		return runMetrics(ctx, stdout, configPath, outputFmt, limit)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	b := buildinfo.Current()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(b)
	}
	fmt.Fprintln(w, b.String())
	fmt.Fprintf(w, "  %-12s %s\n", "go_version:", b.GoVersion)
	fmt.Fprintf(w, "  %-12s %s\n", "platform:", b.Platform)
	return nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Krish - Personal AI Assistant")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: krish [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve            Start the Telegram bot")
	fmt.Fprintln(w, "  ask <question>   Answer one question on the command line")
	fmt.Fprintln(w, "  index            Embed daily logs into the retrieval index")
	fmt.Fprintln(w, "  metrics [limit]  Show recent per-turn metrics (default: 20)")
	fmt.Fprintln(w, "  init [dir]       Initialize working directory with defaults (default: .)")
	fmt.Fprintln(w, "  version          Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/krish/config.yaml, /etc/krish/config.yaml")
	return nil
}

// loadConfig locates, parses and validates the YAML configuration file
// and builds the configured logger writing to logOut. It returns the
// path that was loaded.
func loadConfig(explicit string, logOut io.Writer) (*config.Config, *slog.Logger, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, cfgPath, fmt.Errorf("invalid config %s: %w", cfgPath, err)
	}

	logger, err := config.NewLogger(logOut, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, cfgPath, fmt.Errorf("config %s: %w", cfgPath, err)
	}
	return cfg, logger, cfgPath, nil
}

// runServe handles "krish serve": it connects to Telegram, arms
// persisted reminders and serves messages until SIGINT or SIGTERM.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	cfg, logger, cfgPath, err := loadConfig(configPath, stdout)
	if err != nil {
		return err
	}
	logger.Info("starting Krish", "build", buildinfo.Current().String())
	logger.Info("config loaded", "path", cfgPath)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The long poll holds a request open for up to 30s.
	tgHTTP := httpkit.NewClient(httpkit.WithTimeout(45*time.Second), httpkit.WithLogger(logger))
	client, err := telegram.Dial(cfg.Telegram.Token, nil, tgHTTP, logger)
	if err != nil {
		return err
	}

	a, err := buildApp(cfg, logger, client)
	if err != nil {
		return err
	}
	defer a.Close()
	a.checkProviders(ctx)

	if err := a.startScheduler(ctx); err != nil {
		return err
	}
	defer a.scheduler.Stop()

	bridge := telegram.NewBridge(telegram.BridgeConfig{
		Client:    client,
		Runner:    a.handler,
		Memory:    a.workspace,
		Sessions:  a.sessions,
		Name:      cfg.PersonaName,
		AllowFrom: cfg.Telegram.AllowFrom,
		RateLimit: cfg.Telegram.RateLimit,
		Logger:    logger,
	})
	bridge.Start(ctx)

	logger.Info("Krish stopped", "sessions", a.sessions.Stats(), "reminders", a.scheduler.Stats())
	return nil
}

// runAsk handles "krish ask <question>": one turn on the "cli" session
// with no chat transport, so reminder and messaging tools are absent.
// Logs go to stderr so stdout carries only the answer.
func runAsk(ctx context.Context, stdout io.Writer, stderr io.Writer, configPath string, args []string) error {
	cfg, logger, _, err := loadConfig(configPath, stderr)
	if err != nil {
		return err
	}

	a, err := buildApp(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	question := strings.Join(args, " ")
	answer := a.handler.Handle(ctx, agent.Turn{SessionID: "cli", Text: question}, nil)
	fmt.Fprintln(stdout, answer)
	return nil
}

// runIndex handles "krish index": it embeds every daily-log message not
// yet in the retrieval index.
func runIndex(ctx context.Context, stdout io.Writer, stderr io.Writer, configPath string) error {
	cfg, logger, _, err := loadConfig(configPath, stderr)
	if err != nil {
		return err
	}
	if !cfg.Embeddings.Enabled {
		return fmt.Errorf("index: embeddings are disabled (set embeddings.enabled in config)")
	}

	loc, err := time.LoadLocation(cfg.Reminders.Timezone)
	if err != nil {
		return err
	}
	ws, err := memory.NewWorkspace(cfg.Workspace.Dir, loc, cfg.Context.RecentLogDays, logger)
	if err != nil {
		return fmt.Errorf("open workspace: %w", err)
	}

	index, embedder, err := openIndex(cfg)
	if err != nil {
		return err
	}
	defer index.Close()

	stats, err := retrieval.NewIndexer(index, embedder, logger).Backfill(ctx, ws)
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	total, err := index.Count(ctx)
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}

	fmt.Fprintf(stdout, "Indexed %d new messages (%d scanned, %d failed, %d total)\n",
		stats.Added, stats.Scanned, stats.Failed, total)
	return nil
}

// runMetrics handles "krish metrics [limit]".
func runMetrics(ctx context.Context, stdout io.Writer, configPath, outputFmt string, limit int) error {
	cfg, _, _, err := loadConfig(configPath, io.Discard)
	if err != nil {
		return err
	}

	store, err := metrics.NewStore(cfg.DBPath("metrics"))
	if err != nil {
		return fmt.Errorf("open metrics store: %w", err)
	}
	defer store.Close()

	records, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}

	if outputFmt == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Fprintln(stdout, "No turns recorded yet.")
		return nil
	}

	now := time.Now()
	summary, err := store.Summary(ctx, now.Add(-24*time.Hour), now)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Last 24h: %d turns, %d with tools, avg context %.0f tokens, %d facts extracted\n",
		summary.Turns, summary.ToolTurns, summary.AvgContextTokens, summary.Extracted)

	bySource, err := store.CountBySource(ctx, now.Add(-24*time.Hour), now)
	if err != nil {
		return err
	}
	sources := make([]string, 0, len(bySource))
	for src, n := range bySource {
		sources = append(sources, fmt.Sprintf("%s=%d", src, n))
	}
	sort.Strings(sources)
	fmt.Fprintf(stdout, "Classified by: %s\n\n", strings.Join(sources, " "))

	for _, r := range records {
		tools := "-"
		if len(r.ToolsUsed) > 0 {
			tools = strings.Join(r.ToolsUsed, ",")
		}
		fmt.Fprintf(stdout, "%s  %-14s %s  tools=%s  ctx=%d/%d  %q\n",
			r.Timestamp.Local().Format("2006-01-02 15:04:05"),
			r.Source, r.Scores, tools, r.ContextTokens, r.Budget, r.Message)
	}
	return nil
}
