package livedom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var inputTypes = map[string]bool{
	"text": true, "search": true, "tel": true, "url": true, "email": true,
	"password": true, "date": true, "month": true, "week": true, "time": true,
	"datetime-local": true, "number": true, "range": true, "color": true,
	"checkbox": true, "radio": true, "file": true, "submit": true,
	"image": true, "reset": true, "button": true, "hidden": true,
}

// Type returns the control's type as a browser reports it: the normalised
// input type ("text" when missing or unknown), "select-one",
// "select-multiple" or "textarea". Non-controls return "".
func Type(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	switch n.DataAtom {
	case atom.Input:
		t := strings.ToLower(strings.TrimSpace(Attr(n, "type")))
		if inputTypes[t] {
			return t
		}
		return "text"
	case atom.Select:
		if HasAttr(n, "multiple") {
			return "select-multiple"
		}
		return "select-one"
	case atom.Textarea:
		return "textarea"
	}
	return ""
}

// Checked returns the current checkedness of a checkbox or radio.
func (d *Document) Checked(n *html.Node) bool {
	if s := d.peek(n); s != nil && s.checked != nil {
		return *s.checked
	}
	return HasAttr(n, "checked")
}

// SetChecked records a runtime checkedness without touching markup.
func (d *Document) SetChecked(n *html.Node, checked bool) {
	d.stateOf(n).checked = &checked
}

// Value returns the control's current value. Defaults follow the markup:
// the value attribute for inputs ("on" for value-less checkboxes and
// radios), the text content for a textarea, the selected option's value for
// a select.
func (d *Document) Value(n *html.Node) string {
	if s := d.peek(n); s != nil && s.value != nil {
		return *s.value
	}
	switch n.DataAtom {
	case atom.Textarea:
		return TextContent(n)
	case atom.Select:
		idx := d.SelectedIndices(n)
		if len(idx) == 0 {
			return ""
		}
		return optionValue(d.Options(n)[idx[0]])
	}
	if !HasAttr(n, "value") {
		switch Type(n) {
		case "checkbox", "radio":
			return "on"
		}
	}
	return Attr(n, "value")
}

// SetValue records the control's current value, e.g. text typed by a user.
func (d *Document) SetValue(n *html.Node, v string) {
	d.stateOf(n).value = &v
}

// Options returns a select's options in list order: option children and
// option children of optgroup children.
func (d *Document) Options(sel *html.Node) []*html.Node {
	return Options(sel)
}

// Options returns a select's options in list order.
func Options(sel *html.Node) []*html.Node {
	var opts []*html.Node
	for c := sel.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.Option:
			opts = append(opts, c)
		case atom.Optgroup:
			for g := c.FirstChild; g != nil; g = g.NextSibling {
				if g.Type == html.ElementNode && g.DataAtom == atom.Option {
					opts = append(opts, g)
				}
			}
		}
	}
	return opts
}

// SelectedIndices returns the indices of the selected options. A
// single-select holds at most one; without a selected attribute the first
// option is selected, as a browser does for a drop-down.
func (d *Document) SelectedIndices(sel *html.Node) []int {
	if s := d.peek(sel); s != nil && s.selSet {
		return append([]int(nil), s.selected...)
	}
	opts := d.Options(sel)
	var idx []int
	for i, o := range opts {
		if HasAttr(o, "selected") {
			idx = append(idx, i)
		}
	}
	if Type(sel) == "select-one" {
		if len(idx) > 0 {
			return idx[len(idx)-1:]
		}
		if len(opts) > 0 && displaySize(sel) <= 1 {
			return []int{0}
		}
	}
	return idx
}

// SelectedIndex returns the first selected index, or -1.
func (d *Document) SelectedIndex(sel *html.Node) int {
	idx := d.SelectedIndices(sel)
	if len(idx) == 0 {
		return -1
	}
	return idx[0]
}

// SetSelected records the current selection. Out-of-range indices are
// dropped; a single-select keeps only the last index given.
func (d *Document) SetSelected(sel *html.Node, indices ...int) {
	n := len(d.Options(sel))
	var kept []int
	for _, i := range indices {
		if i >= 0 && i < n {
			kept = append(kept, i)
		}
	}
	if Type(sel) == "select-one" && len(kept) > 1 {
		kept = kept[len(kept)-1:]
	}
	s := d.stateOf(sel)
	s.selected = kept
	s.selSet = true
}

func optionValue(o *html.Node) string {
	if HasAttr(o, "value") {
		return Attr(o, "value")
	}
	return strings.Join(strings.Fields(TextContent(o)), " ")
}

func displaySize(sel *html.Node) int {
	size := 0
	for _, c := range Attr(sel, "size") {
		if c < '0' || c > '9' {
			return 0
		}
		size = size*10 + int(c-'0')
	}
	return size
}
