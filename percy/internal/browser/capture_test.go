package browser

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/hazyhaar/domsnap/domsnap"
	"github.com/hazyhaar/domsnap/livedom"
	"golang.org/x/net/html"
)

func pngDataURL(w, h int) string {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	return livedom.EncodeDataURL(img)
}

func fixture(t *testing.T) []byte {
	t.Helper()
	inner := map[string]any{
		"html":   `<html><head></head><body><input data-percy-element-id="_f1"></body></html>`,
		"url":    "https://example.com/frame",
		"loaded": true,
		"controls": []map[string]any{
			{"id": "_f1", "value": "inside"},
		},
	}
	doc := map[string]any{
		"html": `<html><head><style data-domsnap-sheet-owner="0"></style><link rel="stylesheet" href="/a.css" data-domsnap-sheet-owner="1"></head><body>` +
			`<input id="name" data-percy-element-id="_1">` +
			`<input id="agree" type="checkbox" data-percy-element-id="_2">` +
			`<select id="pick" multiple data-percy-element-id="_3"><option>a</option><option>b</option><option>c</option></select>` +
			`<canvas id="chart" data-percy-element-id="_4"></canvas>` +
			`<video id="clip" data-percy-element-id="_5"></video>` +
			`<iframe id="same" data-percy-element-id="_6"></iframe>` +
			`<iframe id="cross" src="https://other.example/" data-percy-element-id="_7"></iframe>` +
			`</body></html>`,
		"url":     "https://example.com/",
		"loaded":  true,
		"doctype": map[string]any{"name": "html", "publicId": "", "systemId": "about:legacy-compat"},
		"controls": []map[string]any{
			{"id": "_1", "value": "Ada"},
			{"id": "_2", "checked": true},
			{"id": "_3", "selected": []int{0, 2}},
			{"id": "_missing", "value": "ignored"},
		},
		"canvases": []map[string]any{{"id": "_4", "dataURL": pngDataURL(2, 2)}},
		"videos":   []map[string]any{{"id": "_5", "width": 4, "height": 3, "frame": pngDataURL(4, 3)}},
		"styleSheets": []map[string]any{
			{"href": "", "owner": 0, "rules": []string{".x { color: red; }"}},
			{"href": "https://example.com/a.css", "owner": 1, "rules": nil},
			{"href": "", "owner": -1, "rules": []string{".adopted { margin: 0; }"}},
		},
		"frames": []map[string]any{
			{"id": "_6", "document": inner},
			{"id": "_7", "document": nil},
		},
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func one(t *testing.T, d *livedom.Document, sel string) *html.Node {
	t.Helper()
	nodes := d.QueryAll(sel)
	if len(nodes) != 1 {
		t.Fatalf("QueryAll(%q): got %d", sel, len(nodes))
	}
	return nodes[0]
}

func TestDecodeCapture(t *testing.T) {
	doc, err := DecodeCapture(fixture(t))
	if err != nil {
		t.Fatalf("DecodeCapture: %v", err)
	}

	if dt := doc.Doctype(); dt == nil || dt.SystemID != "about:legacy-compat" {
		t.Errorf("doctype: got %+v", dt)
	}
	if v := doc.Value(one(t, doc, "#name")); v != "Ada" {
		t.Errorf("value: got %q", v)
	}
	if !doc.Checked(one(t, doc, "#agree")) {
		t.Error("checkbox should be checked")
	}
	if got := doc.SelectedIndices(one(t, doc, "#pick")); len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Errorf("selected: got %v", got)
	}
	if !strings.HasPrefix(doc.Canvas(one(t, doc, "#chart")).DataURL(), "data:image/png;base64,") {
		t.Error("canvas surface not restored")
	}
	if v := doc.Video(one(t, doc, "#clip")); v.Width != 4 || v.Height != 3 || v.Frame == nil {
		t.Errorf("video: got %+v", v)
	}

	if len(doc.StyleSheets) != 3 {
		t.Fatalf("stylesheets: got %d", len(doc.StyleSheets))
	}
	if doc.StyleSheets[0].Owner == nil || doc.StyleSheets[0].Owner.Data != "style" {
		t.Error("sheet 0 owner should be the <style>")
	}
	if doc.StyleSheets[1].Rules != nil {
		t.Error("cross-origin sheet rules should stay nil")
	}
	if doc.StyleSheets[2].Owner != nil {
		t.Error("adopted sheet has no owner")
	}

	frame := doc.FrameDocument(one(t, doc, "#same"))
	if frame == nil {
		t.Fatal("same-origin frame not attached")
	}
	if v := frame.Value(frame.QueryAll("input")[0]); v != "inside" {
		t.Errorf("frame value: got %q", v)
	}
	if doc.FrameDocument(one(t, doc, "#cross")) != nil {
		t.Error("cross-origin frame should be inaccessible")
	}
}

func TestDecodeCapture_Serializes(t *testing.T) {
	doc, err := DecodeCapture(fixture(t))
	if err != nil {
		t.Fatal(err)
	}
	out, err := domsnap.Serialize(domsnap.Options{Document: doc})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	for _, want := range []string{
		`<!DOCTYPE html SYSTEM "about:legacy-compat">`,
		`value="Ada"`,
		domsnap.CanvasAttr,
		`poster="data:image/png;base64,`,
		`srcdoc="`,
		`.adopted { margin: 0; }`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Count(out, domsnap.CSSOMAttr) != 2 {
		t.Errorf("want 2 synthesized styles, got %d", strings.Count(out, domsnap.CSSOMAttr))
	}
}

func TestDecodeCapture_HeadFrame(t *testing.T) {
	raw := `{
		"html": "<html><head><title>t</title><iframe id=\"hf\" src=\"https://example.com/tracker\" data-percy-element-id=\"_h\"></iframe></head><body><p>x</p></body></html>",
		"url": "https://example.com/",
		"loaded": true,
		"frames": [{"id": "_h", "inHead": true, "document": null}]
	}`
	doc, err := DecodeCapture([]byte(raw))
	if err != nil {
		t.Fatalf("DecodeCapture: %v", err)
	}
	if got := one(t, doc, "#hf").Parent; got != doc.Head() {
		t.Fatalf("frame parent: got <%s>, want <head>", got.Data)
	}

	out, err := domsnap.Serialize(domsnap.Options{Document: doc})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if strings.Contains(out, "tracker") || strings.Contains(out, "<iframe") {
		t.Errorf("head frame present in output: %s", out)
	}
	if !strings.Contains(out, "<p>x</p>") {
		t.Errorf("body lost: %s", out)
	}
}

func TestDecodeCapture_SheetOwnersByMarker(t *testing.T) {
	raw := `{
		"html": "<html><head><style data-domsnap-sheet-owner=\"1\">.b{}</style><style data-domsnap-sheet-owner=\"0\"></style></head><body></body></html>",
		"styleSheets": [
			{"href": "", "owner": 0, "rules": [".a { color: red; }"]},
			{"href": "", "owner": 1, "rules": [".b { }"]}
		]
	}`
	doc, err := DecodeCapture([]byte(raw))
	if err != nil {
		t.Fatalf("DecodeCapture: %v", err)
	}
	if len(doc.StyleSheets) != 2 {
		t.Fatalf("stylesheets: got %d", len(doc.StyleSheets))
	}
	if got := doc.StyleSheets[0].OwnerText(); got != "" {
		t.Errorf("sheet 0 owner text: got %q, want the empty <style>", got)
	}
	if got := doc.StyleSheets[1].OwnerText(); got != ".b{}" {
		t.Errorf("sheet 1 owner text: got %q", got)
	}
	if n := len(doc.QueryAll("[" + sheetOwnerAttr + "]")); n != 0 {
		t.Errorf("%d owner markers left in the document", n)
	}

	out, err := domsnap.Serialize(domsnap.Options{Document: doc})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(out, domsnap.CSSOMAttr) != 1 || !strings.Contains(out, ".a { color: red; }") {
		t.Errorf("want only the empty-owner sheet synthesized: %s", out)
	}
}

func TestDecodeCapture_Errors(t *testing.T) {
	if _, err := DecodeCapture([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid json")
	}
	if _, err := DecodeCapture([]byte(`{"html": ""}`)); !errors.Is(err, domsnap.ErrNoDocument) {
		t.Errorf("empty html: got %v", err)
	}
	bad := `{"html":"<video data-percy-element-id=\"_v\"></video>","videos":[{"id":"_v","width":1,"height":1,"frame":"data:image/gif;base64,AAAA"}]}`
	if _, err := DecodeCapture([]byte(bad)); err == nil {
		t.Error("expected error for undecodable video frame")
	}
}

func TestShouldBlock(t *testing.T) {
	set := blockSet([]string{"Images", " fonts ", "stylesheets", "bogus"})
	if len(set) != 2 {
		t.Fatalf("blockSet: got %v", set)
	}
	tests := []struct {
		typ  proto.NetworkResourceType
		want bool
	}{
		{proto.NetworkResourceTypeImage, true},
		{proto.NetworkResourceTypeFont, true},
		{proto.NetworkResourceTypeMedia, false},
		{proto.NetworkResourceTypeStylesheet, false},
		{proto.NetworkResourceTypeDocument, false},
	}
	for _, tt := range tests {
		if got := shouldBlock(set, tt.typ); got != tt.want {
			t.Errorf("shouldBlock(%s) = %v, want %v", tt.typ, got, tt.want)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	m := NewManager(Config{})
	if m.cfg.Stealth != LevelHeadless || m.cfg.Width != 1280 || m.cfg.Height != 1024 {
		t.Errorf("defaults: got %+v", m.cfg)
	}
	if ParseStealth("headful") != LevelHeadful || ParseStealth("") != LevelHeadless {
		t.Error("ParseStealth")
	}
	if m.Browser() != nil {
		t.Error("browser should not start before Start")
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Start(context.Background()); err == nil {
		t.Error("Start after Close should fail")
	}
}

func TestCaptureScript(t *testing.T) {
	// A document counts as loaded once its load event has returned.
	if !strings.Contains(captureJS, "loadEventEnd > 0") || strings.Contains(captureJS, "readyState") {
		t.Error("capture.js must derive loaded from loadEventEnd")
	}
	for _, want := range []string{"inHead: !!el.closest('head')", "ownerAttr", "removeAttribute(ownerAttr)"} {
		if !strings.Contains(captureJS, want) {
			t.Errorf("capture.js missing %q", want)
		}
	}
}
