package livedom

import (
	"image"
	"image/color"
	"strings"
	"testing"
)

func mustParse(t *testing.T, src string) *Document {
	t.Helper()
	d, err := Parse(strings.NewReader(src), "https://example.com/page")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return d
}

func TestDoctype(t *testing.T) {
	d := mustParse(t, `<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Strict//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-strict.dtd"><html><body></body></html>`)
	dt := d.Doctype()
	if dt == nil {
		t.Fatal("Doctype: got nil")
	}
	if dt.Name != "html" {
		t.Errorf("Name: got %q", dt.Name)
	}
	if dt.PublicID != "-//W3C//DTD XHTML 1.0 Strict//EN" {
		t.Errorf("PublicID: got %q", dt.PublicID)
	}
	if dt.SystemID != "http://www.w3.org/TR/xhtml1/DTD/xhtml1-strict.dtd" {
		t.Errorf("SystemID: got %q", dt.SystemID)
	}
}

func TestDoctype_Absent(t *testing.T) {
	d := mustParse(t, `<html><body></body></html>`)
	if dt := d.Doctype(); dt != nil {
		t.Fatalf("Doctype: got %+v, want nil", dt)
	}
	d.SetDoctype(Doctype{Name: "html", SystemID: "about:legacy-compat"})
	dt := d.Doctype()
	if dt == nil || dt.SystemID != "about:legacy-compat" {
		t.Fatalf("SetDoctype: got %+v", dt)
	}
}

func TestType(t *testing.T) {
	d := mustParse(t, `<input id="a"><input id="b" type="CHECKBOX"><input id="c" type="bogus">
		<select id="d"></select><select id="e" multiple></select><textarea id="f"></textarea>`)
	tests := map[string]string{
		"#a": "text", "#b": "checkbox", "#c": "text",
		"#d": "select-one", "#e": "select-multiple", "#f": "textarea",
	}
	for sel, want := range tests {
		n := d.QueryAll(sel)[0]
		if got := Type(n); got != want {
			t.Errorf("Type(%s): got %q, want %q", sel, got, want)
		}
	}
}

func TestFormDefaultsAndOverrides(t *testing.T) {
	d := mustParse(t, `<input id="cb" type="checkbox" checked><input id="t" value="init">
		<textarea id="ta">hello</textarea>`)
	cb := d.QueryAll("#cb")[0]
	if !d.Checked(cb) {
		t.Error("Checked: markup default should be true")
	}
	d.SetChecked(cb, false)
	if d.Checked(cb) {
		t.Error("Checked: override should be false")
	}
	if got := d.Value(cb); got != "on" {
		t.Errorf("Value(checkbox): got %q, want on", got)
	}

	in := d.QueryAll("#t")[0]
	if got := d.Value(in); got != "init" {
		t.Errorf("Value: got %q, want init", got)
	}
	d.SetValue(in, "typed")
	if got := d.Value(in); got != "typed" {
		t.Errorf("Value: got %q, want typed", got)
	}
	if got := Attr(in, "value"); got != "init" {
		t.Errorf("SetValue must not touch markup, got %q", got)
	}

	ta := d.QueryAll("#ta")[0]
	if got := d.Value(ta); got != "hello" {
		t.Errorf("Value(textarea): got %q, want hello", got)
	}
}

func TestTextareaLeadingNewlines(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"<textarea id=\"ta\">\n\nline2</textarea>", "\nline2"},
		{"<textarea id=\"ta\">\nline1</textarea>", "line1"},
		{"<textarea id=\"ta\">line1\n</textarea>", "line1\n"},
	}
	for _, tt := range tests {
		d := mustParse(t, tt.src)
		if got := d.Value(d.QueryAll("#ta")[0]); got != tt.want {
			t.Errorf("Value(%q): got %q, want %q", tt.src, got, tt.want)
		}
	}
}

func TestSelectedIndices(t *testing.T) {
	d := mustParse(t, `<select id="one"><option>a</option><option>b</option></select>
		<select id="pre"><option>a</option><option selected>b</option></select>
		<select id="multi" multiple><option>a</option><optgroup><option>b</option><option>c</option></optgroup></select>
		<select id="empty"></select>`)

	one := d.QueryAll("#one")[0]
	if got := d.SelectedIndex(one); got != 0 {
		t.Errorf("single default: got %d, want 0", got)
	}
	pre := d.QueryAll("#pre")[0]
	if got := d.SelectedIndex(pre); got != 1 {
		t.Errorf("selected attr: got %d, want 1", got)
	}
	multi := d.QueryAll("#multi")[0]
	if got := len(d.Options(multi)); got != 3 {
		t.Fatalf("Options through optgroup: got %d, want 3", got)
	}
	if got := d.SelectedIndices(multi); len(got) != 0 {
		t.Errorf("multi default: got %v, want none", got)
	}
	d.SetSelected(multi, 0, 2, 9)
	got := d.SelectedIndices(multi)
	if len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Errorf("multi override: got %v, want [0 2]", got)
	}
	empty := d.QueryAll("#empty")[0]
	if got := d.SelectedIndex(empty); got != -1 {
		t.Errorf("empty select: got %d, want -1", got)
	}
}

func TestSurfaceDataURL(t *testing.T) {
	if got := (Surface{}).DataURL(); got != EmptyDataURL {
		t.Fatalf("empty surface: got %q", got)
	}
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	url := (Surface{Image: img}).DataURL()
	if !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Fatalf("DataURL: got %.40q", url)
	}
	back, err := DecodeDataURL(url)
	if err != nil {
		t.Fatalf("DecodeDataURL: %v", err)
	}
	if back.Bounds().Dx() != 2 {
		t.Errorf("decoded width: got %d", back.Bounds().Dx())
	}
	if (Surface{Encoded: "data:image/png;base64,xyz"}).DataURL() != "data:image/png;base64,xyz" {
		t.Error("Encoded should win")
	}
}

func TestCollectStyleSheets(t *testing.T) {
	d := mustParse(t, `<html><head><style>body { color: red; }</style><style id="dyn"></style>
		<link rel="stylesheet" href="/main.css"><link rel="icon" href="/f.ico"></head><body></body></html>`)
	if got := len(d.StyleSheets); got != 3 {
		t.Fatalf("StyleSheets: got %d, want 3", got)
	}
	if d.StyleSheets[0].OwnerText() == "" || len(d.StyleSheets[0].Rules) != 1 {
		t.Errorf("inline sheet: %+v", d.StyleSheets[0])
	}
	dyn := d.SheetOwnedBy(d.QueryAll("#dyn")[0])
	if dyn == nil {
		t.Fatal("SheetOwnedBy: nil")
	}
	dyn.InsertRule(".x { color: blue; }")
	if dyn.CSSText() != ".x { color: blue; }" {
		t.Errorf("CSSText: got %q", dyn.CSSText())
	}
	if d.StyleSheets[2].Href != "/main.css" || d.StyleSheets[2].Rules != nil {
		t.Errorf("link sheet: %+v", d.StyleSheets[2])
	}
}

func TestParseRules(t *testing.T) {
	rules, err := ParseRules(`a { color: red; } @media print { b { display: none; } }`)
	if err != nil {
		t.Fatalf("ParseRules: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("ParseRules: got %d rules, want 2", len(rules))
	}
	if !strings.Contains(rules[0], "color: red") {
		t.Errorf("rule[0]: got %q", rules[0])
	}
}

func TestBaseURI(t *testing.T) {
	d := mustParse(t, `<html><head></head><body></body></html>`)
	if got := d.BaseURI(); got != "https://example.com/page" {
		t.Errorf("BaseURI without base: got %q", got)
	}
	d = mustParse(t, `<html><head><base href="/assets/"></head><body></body></html>`)
	if got := d.BaseURI(); got != "https://example.com/assets/" {
		t.Errorf("BaseURI with base: got %q", got)
	}
}

func TestFrames(t *testing.T) {
	d := mustParse(t, `<iframe id="f"></iframe>`)
	f := d.QueryAll("#f")[0]
	if d.FrameDocument(f) != nil {
		t.Fatal("FrameDocument: expected nil before attach")
	}
	inner := mustParse(t, `<p>inner</p>`)
	d.AttachFrame(f, inner)
	if d.FrameDocument(f) != inner {
		t.Fatal("FrameDocument: attach not recorded")
	}
}
