package percy

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/gosimple/slug"
	"github.com/hazyhaar/domsnap/horosafe"
	"github.com/hazyhaar/domsnap/livedom"
	"github.com/hazyhaar/domsnap/percy/internal/agent"
	"github.com/hazyhaar/domsnap/percy/internal/archive"
	"golang.org/x/net/html"
)

// Result reports what happened to one snapshot.
type Result struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	Widths    []int  `json:"widths"`
	MinHeight int    `json:"min_height"`
	Posted    bool   `json:"posted"`
	PostError string `json:"post_error,omitempty"`
	DebugPath string `json:"debug_path,omitempty"`
	ArchiveID string `json:"archive_id,omitempty"`

	// DOMSnapshot is the serialized document.
	DOMSnapshot string `json:"-"`
}

type delivery struct {
	name      string
	url       string
	html      string
	source    *livedom.Document
	widths    []int
	minHeight int
	percyCSS  string
	enableJS  bool
	env       string
	post      bool
}

// deliver posts a serialized snapshot, then dumps and archives it as
// configured. Failures of any step are logged and recorded in the Result.
func (c *Client) deliver(ctx context.Context, d delivery) (*Result, error) {
	res := &Result{
		Name:        d.name,
		URL:         d.url,
		Widths:      d.widths,
		MinHeight:   d.minHeight,
		DOMSnapshot: d.html,
	}

	if d.post {
		err := c.agent.PostSnapshot(ctx, agent.Snapshot{
			Name:             d.name,
			URL:              d.url,
			DOMSnapshot:      d.html,
			ClientInfo:       c.clientInfo,
			EnvironmentInfo:  d.env,
			Widths:           d.widths,
			MinHeight:        d.minHeight,
			PercyCSS:         d.percyCSS,
			EnableJavaScript: d.enableJS,
		})
		if err != nil {
			c.logger.Error("[percy] Error posting snapshot to agent.", "snapshot", d.name, "error", err)
			res.PostError = err.Error()
		} else {
			res.Posted = true
		}
	}

	if c.cfg.Debug.Enabled {
		path, err := c.writeDebugSnapshot(d.name, d.source)
		if err != nil {
			c.logger.Warn("percy: debug snapshot failed", "snapshot", d.name, "error", err)
		} else {
			res.DebugPath = path
		}
	}

	if c.archive != nil {
		a := &archive.Snapshot{
			Name:      d.name,
			URL:       d.url,
			HTML:      d.html,
			Widths:    d.widths,
			MinHeight: d.minHeight,
		}
		if err := c.archive.Store(ctx, a); err != nil {
			c.logger.Warn("percy: archive failed", "snapshot", d.name, "error", err)
		} else {
			res.ArchiveID = a.ID
		}
	}
	return res, nil
}

// writeDebugSnapshot writes the source document's markup to
// <debug dir>/<slug of name>.html.
func (c *Client) writeDebugSnapshot(name string, doc *livedom.Document) (string, error) {
	dir := c.cfg.Debug.Dir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("percy: debug dir: %w", err)
	}

	file := slug.Make(name)
	if file == "" {
		file = "snapshot"
	}
	path, err := horosafe.SafePath(dir, file+".html")
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if root := doc.DocumentElement(); root != nil {
		if err := html.Render(&buf, root); err != nil {
			return "", fmt.Errorf("percy: render debug snapshot: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("percy: write debug snapshot: %w", err)
	}
	c.logger.Info("percy: debug snapshot written", "path", path)
	return path, nil
}
