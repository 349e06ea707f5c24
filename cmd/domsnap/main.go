// Command domsnap takes visual-testing snapshots and posts them to the local
// snapshot agent.
//
// Usage:
//
//	domsnap -url https://example.com               # snapshot one page
//	domsnap -url https://example.com -screenshot   # snapshot a screenshot of it
//	domsnap -config domsnap.yaml                   # take every configured snapshot
//	domsnap -mcp                                   # serve MCP tools on stdio
//	domsnap -check                                 # probe the agent
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/domsnap/percy"
)

func main() {
	configPath := flag.String("config", "", "path to domsnap.yaml config file")
	pageURL := flag.String("url", "", "snapshot a single URL")
	name := flag.String("name", "", "snapshot name (default: the URL)")
	screenshot := flag.Bool("screenshot", false, "snapshot a screenshot instead of the document")
	enableJS := flag.Bool("js", false, "snapshot will be replayed with JavaScript enabled")
	widths := flag.String("widths", "", "comma-separated render widths")
	noPost := flag.Bool("no-post", false, "serialize without posting to the agent")
	serveMCP := flag.Bool("mcp", false, "serve MCP tools on stdio")
	check := flag.Bool("check", false, "check that the agent is reachable and exit")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error (default: LOG_LEVEL or info)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "domsnap:", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
		if *logLevel == "debug" {
			cfg.Debug.Enabled = true
		}
	}

	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := percy.New(cfg, logger)
	if err != nil {
		logger.Error("domsnap: init", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	ws, err := parseWidths(*widths)
	if err != nil {
		logger.Error("domsnap: -widths", "error", err)
		os.Exit(2)
	}
	opts := percy.SnapshotOptions{
		Screenshot:       *screenshot,
		EnableJavaScript: *enableJS,
		Widths:           ws,
		NoPost:           *noPost,
	}

	m := mode{check: *check, serveMCP: *serveMCP, pageURL: *pageURL, name: *name, opts: opts}
	if err := run(ctx, logger, os.Stdout, client, cfg, m); err != nil {
		client.Close()
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		logger.Error("domsnap: fatal", "error", err)
		os.Exit(1)
	}
}

const usage = "usage: domsnap -url <url> [-screenshot] | -config <file> | -mcp | -check"

var errUsage = errors.New("domsnap: nothing to do")

// mode is what one invocation was asked to do.
type mode struct {
	check    bool
	serveMCP bool
	pageURL  string
	name     string
	opts     percy.SnapshotOptions
}

func run(ctx context.Context, logger *slog.Logger, out io.Writer, client *percy.Client, cfg *percy.Config, m mode) error {
	switch {
	case m.check:
		if err := client.Healthcheck(ctx); err != nil {
			return err
		}
		logger.Info("domsnap: agent is up", "address", cfg.Agent.Address)
		return nil

	case m.serveMCP:
		srv := mcp.NewServer(&mcp.Implementation{Name: "domsnap", Version: "1.0.0"}, nil)
		client.RegisterMCP(srv)
		logger.Info("domsnap: MCP stdio starting")
		return srv.Run(ctx, &mcp.StdioTransport{})

	case m.pageURL != "":
		res, err := client.SnapshotURL(ctx, m.pageURL, m.name, m.opts)
		if err != nil {
			return err
		}
		return printJSON(out, res)

	case len(cfg.Snapshots) > 0:
		results, err := client.RunConfigured(ctx)
		if perr := printJSON(out, results); perr != nil {
			return perr
		}
		return err
	}

	return errUsage
}

func loadConfig(path string) (*percy.Config, error) {
	if path != "" {
		return percy.LoadConfigFile(path)
	}
	return percy.DefaultConfig()
}

func parseWidths(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		w, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || w <= 0 {
			return nil, fmt.Errorf("invalid width %q", part)
		}
		out = append(out, w)
	}
	return out, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
