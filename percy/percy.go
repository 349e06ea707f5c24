// Package percy takes visual-testing snapshots and hands them to a local
// snapshot agent.
//
// Two flows produce a snapshot. Snapshot wraps a driver's screenshot in a
// minimal document, for native apps where no DOM is reachable. SnapshotPage
// and SnapshotURL capture a live browser page with its runtime state. Both
// serialize with domsnap, post the result to the agent, and optionally dump
// it to disk and archive it in SQLite.
package percy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/hazyhaar/domsnap/idgen"
	"github.com/hazyhaar/domsnap/percy/internal/agent"
	"github.com/hazyhaar/domsnap/percy/internal/archive"
	"github.com/hazyhaar/domsnap/percy/internal/browser"
)

// ErrArchiveDisabled is returned by archive queries when no archive path is
// configured.
var ErrArchiveDisabled = errors.New("percy: archive is disabled")

// ArchivedSnapshot is a snapshot stored in the local archive.
type ArchivedSnapshot = archive.Snapshot

// Client takes snapshots. Create one per process; it owns the browser (when
// live pages are snapshotted) and the archive.
type Client struct {
	cfg     *Config
	logger  *slog.Logger
	agent   *agent.Client
	archive *archive.Archive
	ids     idgen.Generator

	browserMu sync.Mutex
	browser   *browser.Manager

	clientInfo string
}

// Option configures a Client.
type Option func(*Client)

// WithIDs sets the correlation-id generator passed to the serializer.
func WithIDs(gen idgen.Generator) Option {
	return func(c *Client) { c.ids = gen }
}

// New creates a Client from configuration, opening the archive if one is
// configured.
func New(cfg *Config, logger *slog.Logger, opts ...Option) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		var err error
		if cfg, err = DefaultConfig(); err != nil {
			return nil, err
		}
	}

	c := &Client{
		cfg:    cfg,
		logger: logger,
		agent: agent.New(cfg.Agent.Address,
			agent.WithTimeout(cfg.Agent.Timeout),
			agent.WithLogger(logger)),
		ids:        idgen.Element,
		clientInfo: "domsnap/" + moduleVersion(""),
	}
	for _, o := range opts {
		o(c)
	}

	if cfg.Archive.Path != "" {
		a, err := archive.Open(cfg.Archive.Path, cfg.Archive.Keep)
		if err != nil {
			return nil, fmt.Errorf("percy: %w", err)
		}
		c.archive = a
	}
	return c, nil
}

// Close shuts down the browser, if started, and closes the archive.
func (c *Client) Close() error {
	var errs []error
	c.browserMu.Lock()
	if c.browser != nil {
		errs = append(errs, c.browser.Close())
		c.browser = nil
	}
	c.browserMu.Unlock()
	if c.archive != nil {
		errs = append(errs, c.archive.Close())
	}
	return errors.Join(errs...)
}

// Healthcheck reports whether the agent is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	return c.agent.Healthcheck(ctx)
}

// Archived lists archived snapshots, newest first, without their HTML.
func (c *Client) Archived(ctx context.Context, name string, limit int) ([]ArchivedSnapshot, error) {
	if c.archive == nil {
		return nil, ErrArchiveDisabled
	}
	return c.archive.List(ctx, name, limit)
}

// ArchivedSnapshot returns one archived snapshot with its HTML, or nil.
func (c *Client) ArchivedSnapshot(ctx context.Context, id string) (*ArchivedSnapshot, error) {
	if c.archive == nil {
		return nil, ErrArchiveDisabled
	}
	return c.archive.Get(ctx, id)
}

// startBrowser launches the managed browser on first use.
func (c *Client) startBrowser(ctx context.Context) (*browser.Manager, error) {
	c.browserMu.Lock()
	defer c.browserMu.Unlock()

	if c.browser == nil {
		bc := c.cfg.Browser
		c.browser = browser.NewManager(browser.Config{
			RemoteURL:         bc.Remote,
			ResourceBlocking:  bc.ResourceBlocking,
			Stealth:           browser.ParseStealth(bc.Stealth),
			XvfbDisplay:       bc.XvfbDisplay,
			NavigationTimeout: bc.NavigationTimeout,
			Width:             bc.Width,
			Height:            bc.Height,
			Logger:            c.logger,
		})
	}
	if _, err := c.browser.Start(ctx); err != nil {
		return nil, fmt.Errorf("percy: start browser: %w", err)
	}
	return c.browser, nil
}

// rodEnvironment identifies the automation stack for live-page snapshots.
var rodEnvironment = "rod/" + moduleVersion("github.com/go-rod/rod")

// moduleVersion returns the build version of a module in this binary; ""
// means the main module.
func moduleVersion(path string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	if path == "" || path == info.Main.Path {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return v
		}
		return "dev"
	}
	for _, d := range info.Deps {
		if d.Path == path {
			return d.Version
		}
	}
	return "unknown"
}
