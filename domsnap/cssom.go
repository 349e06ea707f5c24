package domsnap

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/domsnap/livedom"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// scriptOnly reports whether a sheet's rules exist only in the object
// model: no external source, enumerable rules, and no literal text in its
// owning element.
func scriptOnly(sheet *livedom.StyleSheet) bool {
	return sheet.Href == "" &&
		sheet.Rules != nil &&
		strings.TrimSpace(sheet.OwnerText()) == ""
}

// serializeCSSOM writes each script-only sheet into the clone's head as a
// literal <style>.
func (s *snapshot) serializeCSSOM() {
	var head *html.Node
	for _, sheet := range s.doc.StyleSheets {
		if !scriptOnly(sheet) {
			continue
		}
		if head == nil {
			head = s.cloneHead()
		}
		style := livedom.NewElement("style", html.Attribute{Key: CSSOMAttr, Val: "true"})
		style.AppendChild(&html.Node{Type: html.TextNode, Data: sheet.CSSText()})
		s.sel(head).AppendNodes(style)
	}
}

// cloneHead returns the clone's <head>, creating one when the document
// has none.
func (s *snapshot) cloneHead() *html.Node {
	if head := livedom.FindHead(s.root); head != nil {
		return head
	}
	head := &html.Node{Type: html.ElementNode, Data: "head", DataAtom: atom.Head}
	s.root.InsertBefore(head, s.root.FirstChild)
	return head
}

// Doctype renders a doctype declaration that preserves the source
// document's rendering mode. A missing doctype or name defaults to html.
func Doctype(dt *livedom.Doctype) string {
	name, pub, sys := "html", "", ""
	if dt != nil {
		if dt.Name != "" {
			name = dt.Name
		}
		pub, sys = dt.PublicID, dt.SystemID
	}

	var ids string
	switch {
	case pub != "" && sys != "":
		ids = fmt.Sprintf(` PUBLIC "%s" "%s"`, pub, sys)
	case pub != "":
		ids = fmt.Sprintf(` PUBLIC "%s"`, pub)
	case sys != "":
		ids = fmt.Sprintf(` SYSTEM "%s"`, sys)
	}
	return "<!DOCTYPE " + name + ids + ">"
}
