package browser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/hazyhaar/domsnap/livedom"
)

// Tab wraps a Rod page opened for a snapshot: stealth applied, resources
// blocked, viewport set, navigated and loaded.
type Tab struct {
	Page    *rod.Page
	PageURL string

	router  *rod.HijackRouter
	manager *Manager
}

// OpenTab creates a tab on the running browser and navigates it to pageURL.
func OpenTab(ctx context.Context, mgr *Manager, pageURL string) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	t := &Tab{Page: page, PageURL: pageURL, manager: mgr}

	if len(mgr.cfg.ResourceBlocking) > 0 {
		t.router = applyResourceBlocking(page, mgr.cfg.ResourceBlocking)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             mgr.cfg.Width,
		Height:            mgr.cfg.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		mgr.cfg.Logger.Warn("browser: set viewport failed", "error", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, mgr.cfg.NavigationTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		t.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		mgr.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}
	return t, nil
}

// Size is a window size in CSS pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// WindowSize returns the tab's inner window size.
func (t *Tab) WindowSize(ctx context.Context) (Size, error) {
	return WindowSize(ctx, t.Page)
}

// TakeScreenshot returns a base64 PNG of the viewport.
func (t *Tab) TakeScreenshot(ctx context.Context) (string, error) {
	return Screenshot(ctx, t.Page)
}

// Product returns the browser product string, e.g. "HeadlessChrome/124.0".
func (t *Tab) Product(ctx context.Context) (string, error) {
	return Product(ctx, t.Page)
}

// Capture reads the tab's live document.
func (t *Tab) Capture(ctx context.Context) (*livedom.Document, error) {
	return CapturePage(ctx, t.Page)
}

// WindowSize returns a page's inner window size.
func WindowSize(ctx context.Context, page *rod.Page) (Size, error) {
	res, err := page.Context(ctx).Eval(`() => JSON.stringify({width: window.innerWidth, height: window.innerHeight})`)
	if err != nil {
		return Size{}, fmt.Errorf("browser: window size: %w", err)
	}
	var s Size
	if err := json.Unmarshal([]byte(res.Value.Str()), &s); err != nil {
		return Size{}, fmt.Errorf("browser: window size: %w", err)
	}
	return s, nil
}

// Screenshot returns a base64 PNG of a page's viewport.
func Screenshot(ctx context.Context, page *rod.Page) (string, error) {
	png, err := page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return "", fmt.Errorf("browser: screenshot: %w", err)
	}
	return base64.StdEncoding.EncodeToString(png), nil
}

// Product returns the product string of the browser running page.
func Product(ctx context.Context, page *rod.Page) (string, error) {
	v, err := proto.BrowserGetVersion{}.Call(page.Context(ctx))
	if err != nil {
		return "", fmt.Errorf("browser: version: %w", err)
	}
	return v.Product, nil
}

// Close stops request interception and closes the tab.
func (t *Tab) Close() error {
	if t.router != nil {
		t.router.Stop()
		t.router = nil
	}
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}
