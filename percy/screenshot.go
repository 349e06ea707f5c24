package percy

import (
	"context"
	"fmt"
	"regexp"
	"runtime"
	"strings"

	"github.com/hazyhaar/domsnap/domsnap"
	"github.com/hazyhaar/domsnap/livedom"
	"github.com/hazyhaar/domsnap/percy/internal/browser"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// MaxScreenshotHeight caps the minimum height of a screenshot snapshot.
const MaxScreenshotHeight = 2000

// WrapperURL is the address the screenshot wrapper document is parsed at.
const WrapperURL = "http://localhost"

// Size is a window size in CSS pixels.
type Size = browser.Size

// Capabilities describes the device behind a Driver.
type Capabilities struct {
	DeviceName string
}

// Driver is an automation session that can screenshot its current screen.
type Driver interface {
	Capabilities(ctx context.Context) (Capabilities, error)
	WindowSize(ctx context.Context) (Size, error)
	// TakeScreenshot returns a base64 PNG. Whitespace in it is ignored.
	TakeScreenshot(ctx context.Context) (string, error)
}

// EnvironmentReporter is implemented by drivers that can name their
// automation stack, e.g. "rod/v0.116.2".
type EnvironmentReporter interface {
	EnvironmentInfo() string
}

// SnapshotOptions tunes one snapshot.
type SnapshotOptions struct {
	// AppendDeviceName suffixes the name with " [<deviceName>]".
	AppendDeviceName bool

	// CustomCSS is appended to the screenshot element's inline style.
	//
	// Deprecated: use PercyCSS.
	CustomCSS string

	// PercyCSS is applied by the renderer on top of the snapshot.
	PercyCSS string

	// Width and Height override the window size. Height is capped at
	// MaxScreenshotHeight for screenshot snapshots.
	Width, Height int

	// Widths and MinHeight set the render widths and minimum height for
	// live-page snapshots. They default to the window size.
	Widths    []int
	MinHeight int

	// EnableJavaScript marks the snapshot as replayed with script enabled.
	EnableJavaScript bool

	// Screenshot makes SnapshotURL take a screenshot snapshot of the page
	// instead of capturing its document.
	Screenshot bool

	// NoPost serializes, dumps and archives without posting to the agent.
	NoPost bool
}

var screenshotWhitespace = regexp.MustCompile(`[ \r\n]+`)

var titlePolicy = bluemonday.StrictPolicy()

// Snapshot renders the driver's current screenshot as a static document and
// posts it. An agent failure is logged and reported in the Result, not
// returned.
func (c *Client) Snapshot(ctx context.Context, drv Driver, name string, opts SnapshotOptions) (*Result, error) {
	if opts.AppendDeviceName {
		caps, err := drv.Capabilities(ctx)
		if err != nil {
			return nil, fmt.Errorf("percy: capabilities: %w", err)
		}
		name = fmt.Sprintf("%s [%s]", name, caps.DeviceName)
	}

	dims, err := drv.WindowSize(ctx)
	if err != nil {
		return nil, fmt.Errorf("percy: window size: %w", err)
	}
	raw, err := drv.TakeScreenshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("percy: screenshot: %w", err)
	}
	base64Data := screenshotWhitespace.ReplaceAllString(raw, "")

	// The element keeps the real window size; overrides only change what is
	// reported to the renderer.
	style := screenshotStyle(base64Data, dims, opts.CustomCSS)
	if opts.CustomCSS != "" {
		c.logger.Warn(`percy: the "customCss" option has been deprecated in favor of "percyCSS" and will be removed in future versions`,
			"snapshot", name)
	}
	if opts.Height > 0 {
		dims.Height = opts.Height
	}
	if dims.Height > MaxScreenshotHeight {
		dims.Height = MaxScreenshotHeight
	}
	if opts.Width > 0 {
		dims.Width = opts.Width
	}

	doc, err := wrapperDocument(name, style)
	if err != nil {
		return nil, err
	}
	out, err := domsnap.Serialize(domsnap.Options{Document: doc, Logger: c.logger, IDs: c.ids})
	if err != nil {
		return nil, fmt.Errorf("percy: serialize: %w", err)
	}

	env := "go/" + runtime.Version()
	if r, ok := drv.(EnvironmentReporter); ok {
		env = r.EnvironmentInfo()
	}
	return c.deliver(ctx, delivery{
		name:      name,
		url:       WrapperURL + "/",
		html:      out,
		source:    doc,
		widths:    []int{dims.Width},
		minHeight: dims.Height,
		percyCSS:  opts.PercyCSS,
		env:       env,
		post:      !opts.NoPost,
	})
}

// screenshotStyle is the inline style that paints the screenshot as the
// element background at the window size.
func screenshotStyle(base64Data string, dims Size, customCSS string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "background-image: url('data:image/png;base64,%s');", base64Data)
	b.WriteString("background-repeat: no-repeat;")
	b.WriteString("background-size: cover;")
	fmt.Fprintf(&b, "height: %dpx;", dims.Height)
	fmt.Fprintf(&b, "width: %dpx;", dims.Width)
	b.WriteString(strings.TrimSpace(customCSS))
	return b.String()
}

// wrapperDocument builds the document that renders a single element showing
// the screenshot. The style is inline: the renderer may not see <style>
// elements of a document it did not load itself.
func wrapperDocument(name, style string) (*livedom.Document, error) {
	src := `<!DOCTYPE html>
<html style="margin: 0;height: 100%;">
  <head>
    <title>` + titlePolicy.Sanitize(name) + `</title>
  </head>
  <body style="margin: 0;height: 100%;">
    <div style="` + html.EscapeString(style) + `"></div>
  </body>
</html>`
	doc, err := livedom.Parse(strings.NewReader(src), WrapperURL)
	if err != nil {
		return nil, fmt.Errorf("percy: wrapper document: %w", err)
	}
	return doc, nil
}
