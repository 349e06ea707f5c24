package percy

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/hazyhaar/domsnap/domsnap"
	"github.com/hazyhaar/domsnap/livedom"
	"github.com/hazyhaar/domsnap/percy/internal/browser"
)

// SnapshotDocument serializes a live document and posts it. Widths default
// to [Width] and MinHeight to Height when unset.
func (c *Client) SnapshotDocument(ctx context.Context, doc *livedom.Document, name string, opts SnapshotOptions) (*Result, error) {
	return c.snapshotDocument(ctx, doc, name, opts, "go/livedom")
}

func (c *Client) snapshotDocument(ctx context.Context, doc *livedom.Document, name string, opts SnapshotOptions, env string) (*Result, error) {
	widths := opts.Widths
	if len(widths) == 0 && opts.Width > 0 {
		widths = []int{opts.Width}
	}
	minHeight := opts.MinHeight
	if minHeight == 0 {
		minHeight = opts.Height
	}

	out, err := domsnap.Serialize(domsnap.Options{
		Document:         doc,
		EnableJavaScript: opts.EnableJavaScript,
		Logger:           c.logger,
		IDs:              c.ids,
	})
	if err != nil {
		return nil, fmt.Errorf("percy: serialize: %w", err)
	}

	return c.deliver(ctx, delivery{
		name:      name,
		url:       doc.URL,
		html:      out,
		source:    doc,
		widths:    widths,
		minHeight: minHeight,
		percyCSS:  opts.PercyCSS,
		enableJS:  opts.EnableJavaScript,
		env:       env,
		post:      !opts.NoPost,
	})
}

// SnapshotPage captures a page open in a browser and posts its document.
// Widths and MinHeight default to the page's window size.
func (c *Client) SnapshotPage(ctx context.Context, page *rod.Page, name string, opts SnapshotOptions) (*Result, error) {
	if opts.AppendDeviceName {
		product, err := browser.Product(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("percy: capabilities: %w", err)
		}
		name = fmt.Sprintf("%s [%s]", name, product)
	}
	if len(opts.Widths) == 0 && opts.Width == 0 || opts.MinHeight == 0 && opts.Height == 0 {
		size, err := browser.WindowSize(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("percy: %w", err)
		}
		if len(opts.Widths) == 0 && opts.Width == 0 {
			opts.Width = size.Width
		}
		if opts.MinHeight == 0 && opts.Height == 0 {
			opts.Height = size.Height
		}
	}

	doc, err := browser.CapturePage(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("percy: %w", err)
	}
	return c.snapshotDocument(ctx, doc, name, opts, rodEnvironment)
}

// SnapshotURL opens pageURL in the managed browser and snapshots it, as a
// live document or, with opts.Screenshot, as a screenshot.
func (c *Client) SnapshotURL(ctx context.Context, pageURL, name string, opts SnapshotOptions) (*Result, error) {
	mgr, err := c.startBrowser(ctx)
	if err != nil {
		return nil, err
	}
	tab, err := browser.OpenTab(ctx, mgr, pageURL)
	if err != nil {
		return nil, fmt.Errorf("percy: %w", err)
	}
	defer tab.Close()

	if name == "" {
		name = pageURL
	}
	if opts.Screenshot {
		return c.Snapshot(ctx, tabDriver{tab}, name, opts)
	}
	return c.SnapshotPage(ctx, tab.Page, name, opts)
}

// RunConfigured takes every snapshot listed in the configuration. A failed
// snapshot is logged and the batch continues; the failures are joined in
// the returned error.
func (c *Client) RunConfigured(ctx context.Context) ([]*Result, error) {
	var (
		results []*Result
		errs    []error
	)
	for _, sc := range c.cfg.Snapshots {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		res, err := c.SnapshotURL(ctx, sc.URL, sc.Name, SnapshotOptions{
			AppendDeviceName: sc.AppendDeviceName,
			PercyCSS:         sc.PercyCSS,
			Widths:           sc.Widths,
			MinHeight:        sc.MinHeight,
			EnableJavaScript: sc.EnableJavaScript,
			Screenshot:       sc.Screenshot,
		})
		if err != nil {
			c.logger.Error("percy: snapshot failed", "name", sc.Name, "url", sc.URL, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", sc.Name, err))
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// tabDriver adapts a browser tab to Driver.
type tabDriver struct {
	tab *browser.Tab
}

func (d tabDriver) Capabilities(ctx context.Context) (Capabilities, error) {
	product, err := d.tab.Product(ctx)
	if err != nil {
		return Capabilities{}, err
	}
	return Capabilities{DeviceName: product}, nil
}

func (d tabDriver) WindowSize(ctx context.Context) (Size, error) {
	return d.tab.WindowSize(ctx)
}

func (d tabDriver) TakeScreenshot(ctx context.Context) (string, error) {
	return d.tab.TakeScreenshot(ctx)
}

func (d tabDriver) EnvironmentInfo() string { return rodEnvironment }
