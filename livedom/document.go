// Package livedom models a live browser document in Go.
//
// A Document pairs an x/net/html parse tree with the runtime state a
// rendering engine would hold beside it: current form-control values,
// canvas and video pixels, embedded frame documents, and stylesheet rules
// that exist only in the object model. The snapshot serializer reads this
// state; the only thing it ever writes back is correlation-id attributes.
//
// Documents come from Parse (static markup, every control at its markup
// default) or from the browser capture in percy/internal/browser, which
// rebuilds a Document from a running page.
package livedom

import (
	"fmt"
	"io"
	"net/url"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is a live document: a parse tree plus runtime state.
type Document struct {
	// Root is the document node (html.DocumentNode).
	Root *html.Node

	// URL is the document address. Used for base-URI resolution.
	URL string

	// Loaded reports whether the document's load event has fired.
	Loaded bool

	// StyleSheets lists the sheets attached to the document, in order.
	StyleSheets []*StyleSheet

	state map[*html.Node]*elementState
}

// Doctype is the name and identifiers of a document type declaration.
type Doctype struct {
	Name     string
	PublicID string
	SystemID string
}

// New wraps an existing document node. The document is marked loaded.
func New(root *html.Node, pageURL string) *Document {
	return &Document{
		Root:   root,
		URL:    pageURL,
		Loaded: true,
		state:  make(map[*html.Node]*elementState),
	}
}

// Parse reads HTML from r and returns a loaded Document with the sheets
// declared in the markup attached.
func Parse(r io.Reader, pageURL string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("livedom: parse: %w", err)
	}
	d := New(root, pageURL)
	d.CollectStyleSheets()
	return d, nil
}

// DocumentElement returns the root element (normally <html>), or nil for
// an empty document.
func (d *Document) DocumentElement() *html.Node {
	if d == nil || d.Root == nil {
		return nil
	}
	if d.Root.Type == html.ElementNode {
		return d.Root
	}
	for c := d.Root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

// Head returns the <head> element, or nil.
func (d *Document) Head() *html.Node {
	return FindHead(d.DocumentElement())
}

// FindHead returns the <head> child of a document element, or nil.
func FindHead(docElem *html.Node) *html.Node {
	if docElem == nil {
		return nil
	}
	for c := docElem.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Head {
			return c
		}
	}
	return nil
}

// QueryAll returns every element under the document matching a CSS
// selector, in document order. It panics on an invalid selector.
func (d *Document) QueryAll(sel string) []*html.Node {
	return QueryAll(d.Root, sel)
}

// QueryAll returns every element under root matching a CSS selector.
func QueryAll(root *html.Node, sel string) []*html.Node {
	if root == nil {
		return nil
	}
	return cascadia.MustCompile(sel).MatchAll(root)
}

// Doctype returns the document type declaration, or nil when the document
// has none.
func (d *Document) Doctype() *Doctype {
	if d == nil || d.Root == nil {
		return nil
	}
	for c := d.Root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.DoctypeNode {
			continue
		}
		dt := &Doctype{Name: c.Data}
		for _, a := range c.Attr {
			switch a.Key {
			case "public":
				dt.PublicID = a.Val
			case "system":
				dt.SystemID = a.Val
			}
		}
		return dt
	}
	return nil
}

// SetDoctype replaces the document type declaration, inserting one as the
// first child of the document node when absent.
func (d *Document) SetDoctype(dt Doctype) {
	node := &html.Node{Type: html.DoctypeNode, Data: dt.Name}
	if dt.PublicID != "" {
		node.Attr = append(node.Attr, html.Attribute{Key: "public", Val: dt.PublicID})
	}
	if dt.SystemID != "" {
		node.Attr = append(node.Attr, html.Attribute{Key: "system", Val: dt.SystemID})
	}
	for c := d.Root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.DoctypeNode {
			d.Root.InsertBefore(node, c)
			d.Root.RemoveChild(c)
			return
		}
	}
	d.Root.InsertBefore(node, d.Root.FirstChild)
}

// BaseURI resolves the first <base href> against the document URL.
func (d *Document) BaseURI() string {
	bases := d.QueryAll("base[href]")
	if len(bases) == 0 {
		return d.URL
	}
	href := Attr(bases[0], "href")
	base, err := url.Parse(d.URL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return d.URL
	}
	return base.ResolveReference(ref).String()
}

func (d *Document) stateOf(n *html.Node) *elementState {
	if d.state == nil {
		d.state = make(map[*html.Node]*elementState)
	}
	s, ok := d.state[n]
	if !ok {
		s = &elementState{}
		d.state[n] = s
	}
	return s
}

func (d *Document) peek(n *html.Node) *elementState {
	if d.state == nil {
		return nil
	}
	return d.state[n]
}

// elementState is the runtime state of one element. Nil fields mean the
// element still reflects its markup.
type elementState struct {
	checked  *bool
	value    *string
	selected []int
	selSet   bool
	canvas   *Surface
	video    *VideoState
	frame    *Document
}
