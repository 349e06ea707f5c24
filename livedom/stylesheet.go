package livedom

import (
	"fmt"
	"strings"

	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// StyleSheet is a sheet attached to a document.
type StyleSheet struct {
	// Href is the sheet's external source, "" for inline or scripted sheets.
	Href string

	// Owner is the <style> or <link> element the sheet belongs to. Nil for
	// sheets constructed by script.
	Owner *html.Node

	// Rules holds the serialized text of each rule. Nil means the rules are
	// not enumerable (cross-origin or not yet loaded).
	Rules []string
}

// OwnerText returns the literal text inside the owning element.
func (s *StyleSheet) OwnerText() string {
	if s.Owner == nil {
		return ""
	}
	return TextContent(s.Owner)
}

// InsertRule appends a rule to the sheet's object model, leaving the
// owner's markup untouched, as CSSStyleSheet.insertRule does.
func (s *StyleSheet) InsertRule(rule string) {
	if s.Rules == nil {
		s.Rules = []string{}
	}
	s.Rules = append(s.Rules, rule)
}

// CSSText concatenates the text of all rules.
func (s *StyleSheet) CSSText() string {
	return strings.Join(s.Rules, "")
}

// ParseRules splits a block of CSS into the serialized text of its
// top-level rules.
func ParseRules(css string) ([]string, error) {
	sheet, err := parser.Parse(css)
	if err != nil {
		return nil, fmt.Errorf("livedom: parse css: %w", err)
	}
	rules := make([]string, 0, len(sheet.Rules))
	for _, r := range sheet.Rules {
		rules = append(rules, r.String())
	}
	return rules, nil
}

// AddStyleSheet attaches a sheet to the document.
func (d *Document) AddStyleSheet(s *StyleSheet) {
	d.StyleSheets = append(d.StyleSheets, s)
}

// SheetOwnedBy returns the sheet whose owner is n, or nil.
func (d *Document) SheetOwnedBy(n *html.Node) *StyleSheet {
	for _, s := range d.StyleSheets {
		if s.Owner == n {
			return s
		}
	}
	return nil
}

// CollectStyleSheets replaces StyleSheets with the sheets declared in the
// markup: one per <style> element, rules parsed from its text, and one per
// <link rel=stylesheet>, external and not enumerable.
func (d *Document) CollectStyleSheets() {
	d.StyleSheets = nil
	for _, n := range d.QueryAll("style, link") {
		switch n.DataAtom {
		case atom.Style:
			rules, err := ParseRules(TextContent(n))
			if err != nil {
				rules = []string{}
			}
			d.AddStyleSheet(&StyleSheet{Owner: n, Rules: rules})
		case atom.Link:
			if !isStylesheetLink(n) {
				continue
			}
			d.AddStyleSheet(&StyleSheet{Href: Attr(n, "href"), Owner: n})
		}
	}
}

func isStylesheetLink(n *html.Node) bool {
	for _, rel := range strings.Fields(strings.ToLower(Attr(n, "rel"))) {
		if rel == "stylesheet" {
			return true
		}
	}
	return false
}
