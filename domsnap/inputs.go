package domsnap

import (
	"github.com/hazyhaar/domsnap/livedom"
	"golang.org/x/net/html"
)

// controlKind is the closed set of form-control behaviours.
type controlKind int

const (
	kindOther controlKind = iota // text-like inputs: value attribute
	kindCheckable
	kindSelectOne
	kindSelectMultiple
	kindTextArea
)

func kindOf(n *html.Node) controlKind {
	switch livedom.Type(n) {
	case "checkbox", "radio":
		return kindCheckable
	case "select-one":
		return kindSelectOne
	case "select-multiple":
		return kindSelectMultiple
	case "textarea":
		return kindTextArea
	default:
		return kindOther
	}
}

// serializeInputs writes each control's runtime state into its clone as
// markup. Must run before anything is removed from the clone.
func (s *snapshot) serializeInputs() error {
	for _, el := range s.doc.QueryAll("input, textarea, select") {
		cloned, err := s.counterpart(el)
		if err != nil {
			return err
		}

		switch kindOf(el) {
		case kindCheckable:
			if s.doc.Checked(el) {
				livedom.SetAttr(cloned, "checked", "")
			} else {
				livedom.RemoveAttr(cloned, "checked")
			}

		case kindSelectOne:
			opts := clearSelected(cloned)
			if i := s.doc.SelectedIndex(el); i >= 0 && i < len(opts) {
				livedom.SetAttr(opts[i], "selected", "true")
			}

		case kindSelectMultiple:
			opts := clearSelected(cloned)
			for _, i := range s.doc.SelectedIndices(el) {
				if i < len(opts) {
					livedom.SetAttr(opts[i], "selected", "true")
				}
			}

		case kindTextArea:
			s.sel(cloned).SetText(s.doc.Value(el))

		default:
			livedom.SetAttr(cloned, "value", s.doc.Value(el))
		}
	}
	return nil
}

// clearSelected drops markup selection from a cloned select so only the
// live selection is written back. It returns the options.
func clearSelected(sel *html.Node) []*html.Node {
	opts := livedom.Options(sel)
	for _, o := range opts {
		livedom.RemoveAttr(o, "selected")
	}
	return opts
}
