package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-rod/rod"
	"github.com/hazyhaar/domsnap/domsnap"
	"github.com/hazyhaar/domsnap/livedom"
	"golang.org/x/net/html"
)

//go:embed capture.js
var captureJS string

// sheetOwnerAttr carries a stylesheet owner's index through the captured
// markup. It is stripped when the document is rebuilt.
const sheetOwnerAttr = "data-domsnap-sheet-owner"

// captured is one document as reported by capture.js.
type captured struct {
	HTML        string            `json:"html"`
	URL         string            `json:"url"`
	Loaded      bool              `json:"loaded"`
	Doctype     *capturedDoctype  `json:"doctype"`
	Controls    []capturedControl `json:"controls"`
	Canvases    []capturedCanvas  `json:"canvases"`
	Videos      []capturedVideo   `json:"videos"`
	StyleSheets []capturedSheet   `json:"styleSheets"`
	Frames      []capturedFrame   `json:"frames"`
}

type capturedDoctype struct {
	Name     string `json:"name"`
	PublicID string `json:"publicId"`
	SystemID string `json:"systemId"`
}

type capturedControl struct {
	ID       string  `json:"id"`
	Checked  *bool   `json:"checked"`
	Value    *string `json:"value"`
	Selected []int   `json:"selected"`
}

type capturedCanvas struct {
	ID      string `json:"id"`
	DataURL string `json:"dataURL"`
}

type capturedVideo struct {
	ID     string `json:"id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Frame  string `json:"frame"`
}

type capturedSheet struct {
	Href  string   `json:"href"`
	Owner int      `json:"owner"`
	Rules []string `json:"rules"`
}

type capturedFrame struct {
	ID       string    `json:"id"`
	InHead   bool      `json:"inHead"`
	Document *captured `json:"document"`
}

// CapturePage tags the page's stateful elements with correlation ids, reads
// their runtime state and rebuilds it as a livedom.Document. Same-origin
// frames are captured recursively; cross-origin ones are attached as nil.
func CapturePage(ctx context.Context, page *rod.Page) (*livedom.Document, error) {
	res, err := page.Context(ctx).Eval(captureJS, domsnap.ElementIDAttr, domsnap.StatefulSelector, sheetOwnerAttr)
	if err != nil {
		return nil, fmt.Errorf("browser: capture: %w", err)
	}
	return DecodeCapture([]byte(res.Value.Str()))
}

// DecodeCapture rebuilds a document from capture.js output.
func DecodeCapture(raw []byte) (*livedom.Document, error) {
	var c captured
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("browser: decode capture: %w", err)
	}
	return c.build()
}

func (c *captured) build() (*livedom.Document, error) {
	if c.HTML == "" {
		return nil, domsnap.ErrNoDocument
	}
	doc, err := livedom.Parse(strings.NewReader(c.HTML), c.URL)
	if err != nil {
		return nil, err
	}
	doc.Loaded = c.Loaded
	if c.Doctype != nil {
		doc.SetDoctype(livedom.Doctype{Name: c.Doctype.Name, PublicID: c.Doctype.PublicID, SystemID: c.Doctype.SystemID})
	}

	byID := make(map[string]*html.Node)
	for _, n := range doc.QueryAll("[" + domsnap.ElementIDAttr + "]") {
		id := livedom.Attr(n, domsnap.ElementIDAttr)
		if _, dup := byID[id]; !dup {
			byID[id] = n
		}
	}

	for _, ctl := range c.Controls {
		n := byID[ctl.ID]
		if n == nil {
			continue
		}
		switch {
		case ctl.Checked != nil:
			doc.SetChecked(n, *ctl.Checked)
		case ctl.Selected != nil:
			doc.SetSelected(n, ctl.Selected...)
		case ctl.Value != nil:
			doc.SetValue(n, *ctl.Value)
		}
	}

	for _, cv := range c.Canvases {
		if n := byID[cv.ID]; n != nil {
			doc.SetCanvasDataURL(n, cv.DataURL)
		}
	}

	for _, v := range c.Videos {
		n := byID[v.ID]
		if n == nil || v.Width <= 0 || v.Height <= 0 {
			continue
		}
		frame, err := livedom.DecodeDataURL(v.Frame)
		if err != nil {
			return nil, fmt.Errorf("browser: video %s: %w", v.ID, err)
		}
		doc.SetVideoFrame(n, frame, v.Width, v.Height)
	}

	owners := make(map[int]*html.Node)
	for _, n := range doc.QueryAll("[" + sheetOwnerAttr + "]") {
		if i, err := strconv.Atoi(livedom.Attr(n, sheetOwnerAttr)); err == nil {
			owners[i] = n
		}
		livedom.RemoveAttr(n, sheetOwnerAttr)
	}
	doc.StyleSheets = nil
	for _, s := range c.StyleSheets {
		sheet := &livedom.StyleSheet{Href: s.Href, Rules: s.Rules}
		if s.Owner >= 0 {
			sheet.Owner = owners[s.Owner]
		}
		doc.AddStyleSheet(sheet)
	}

	for _, f := range c.Frames {
		n := byID[f.ID]
		if n == nil {
			continue
		}
		if f.InHead {
			restoreToHead(doc, n)
		}
		if f.Document == nil {
			doc.AttachFrame(n, nil)
			continue
		}
		inner, err := f.Document.build()
		if err != nil {
			return nil, fmt.Errorf("browser: frame %s: %w", f.ID, err)
		}
		doc.AttachFrame(n, inner)
	}
	return doc, nil
}

// restoreToHead moves a frame the parser hoisted into <body> back under
// <head>, where the live page had it.
func restoreToHead(doc *livedom.Document, n *html.Node) {
	head := doc.Head()
	if head == nil {
		root := doc.DocumentElement()
		head = livedom.NewElement("head")
		root.InsertBefore(head, root.FirstChild)
	}
	if n.Parent == head {
		return
	}
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
	head.AppendChild(n)
}
