package domsnap

import (
	"fmt"
	"log/slog"

	"github.com/PuerkitoBio/goquery"
	"github.com/hazyhaar/domsnap/idgen"
	"github.com/hazyhaar/domsnap/livedom"
	"golang.org/x/net/html"
)

// TagElements gives every stateful element lacking a correlation id a fresh
// one and returns how many were tagged. Already tagged elements keep their
// id, so repeated calls on the same tree are no-ops.
func TagElements(doc *livedom.Document, gen idgen.Generator) int {
	if gen == nil {
		gen = idgen.Element
	}
	tagged := 0
	for _, el := range doc.QueryAll(StatefulSelector) {
		if livedom.Attr(el, ElementIDAttr) != "" {
			continue
		}
		livedom.SetAttr(el, ElementIDAttr, gen())
		tagged++
	}
	return tagged
}

// counterpart pairs a live element with its copy in the clone.
type counterpart struct {
	live  *html.Node
	clone *html.Node
}

// snapshot is the state of one Serialize call: the live document, its
// clone, and the id side table relating the two.
type snapshot struct {
	doc    *livedom.Document
	opts   Options
	logger *slog.Logger

	root  *html.Node // cloned document element
	dom   *goquery.Document
	pairs map[string][]counterpart
}

func newSnapshot(doc *livedom.Document, opts Options) *snapshot {
	live := goquery.NewDocumentFromNode(doc.DocumentElement())
	root := live.Selection.Clone().Nodes[0]

	s := &snapshot{
		doc:    doc,
		opts:   opts,
		logger: opts.Logger,
		root:   root,
		dom:    goquery.NewDocumentFromNode(root),
		pairs:  make(map[string][]counterpart),
	}
	s.correlate()
	return s
}

// correlate fills the side table from the id attributes present on both
// trees. A script that copies a tagged element leaves duplicate ids; the
// clone preserves document order, so duplicates pair up positionally.
func (s *snapshot) correlate() {
	sel := "[" + ElementIDAttr + "]"
	for _, n := range s.doc.QueryAll(sel) {
		id := livedom.Attr(n, ElementIDAttr)
		s.pairs[id] = append(s.pairs[id], counterpart{live: n})
	}
	seen := make(map[string]int)
	for _, n := range livedom.QueryAll(s.root, sel) {
		id := livedom.Attr(n, ElementIDAttr)
		i := seen[id]
		seen[id]++
		if i < len(s.pairs[id]) {
			s.pairs[id][i].clone = n
		}
	}
}

// counterpart returns the clone of a tagged live element.
func (s *snapshot) counterpart(live *html.Node) (*html.Node, error) {
	id := livedom.Attr(live, ElementIDAttr)
	for _, p := range s.pairs[id] {
		if p.live == live && p.clone != nil {
			return p.clone, nil
		}
	}
	return nil, fmt.Errorf("%w: %s=%q", ErrMissingCounterpart, ElementIDAttr, id)
}

// sel wraps a clone node for editing.
func (s *snapshot) sel(n *html.Node) *goquery.Selection {
	return s.dom.FindNodes(n)
}
