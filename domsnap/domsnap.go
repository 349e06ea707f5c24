// Package domsnap serializes a live document into a single static,
// self-contained HTML string that reproduces its current state: form
// values, same-origin frame contents, canvas pixels, video frames and
// stylesheet rules that only exist in the object model. No script is
// executed; the output parses with any HTML parser and renders without one.
//
// The pipeline tags stateful elements with a correlation id, deep-copies the
// document element, then bakes each category of runtime state into the copy:
//
//	tag ids → clone → inputs → frames → videos → [cssom → canvas] → transform → render
//
// The bracketed steps only run when JavaScript will be disabled on replay.
// The live document is never modified beyond the id attributes.
package domsnap

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hazyhaar/domsnap/idgen"
	"github.com/hazyhaar/domsnap/livedom"
	"golang.org/x/net/html"
)

// Attributes written by the serializer.
const (
	// ElementIDAttr carries the correlation id linking a live element to its
	// counterpart in the clone.
	ElementIDAttr = "data-percy-element-id"

	// CanvasAttr marks an <img> that replaced a canvas.
	CanvasAttr = "data-percy-canvas-serialized"

	// CSSOMAttr marks a <style> synthesized from script-only rules.
	CSSOMAttr = "data-percy-cssom-serialized"
)

// StatefulSelector matches every element that gets a correlation id.
const StatefulSelector = "input, textarea, select, iframe, canvas, video"

var (
	// ErrNoDocument is returned when there is no document, or the document
	// has no document element, to serialize.
	ErrNoDocument = errors.New("domsnap: no document to serialize")

	// ErrMissingCounterpart is returned when a tagged live element has no
	// counterpart in the clone. It means the live tree changed while a
	// serialization was in progress.
	ErrMissingCounterpart = errors.New("domsnap: clone counterpart not found")
)

// TransformFunc rewrites the cloned document element before it is
// rendered. Failures are logged and ignored.
type TransformFunc func(root *html.Node) error

// Options configures one serialization.
type Options struct {
	// Document is the live document to serialize. Required.
	Document *livedom.Document

	// EnableJavaScript reports whether script will run when the snapshot is
	// replayed. When false, canvases and script-only stylesheets are baked
	// in and uncapturable script-built frames are dropped.
	EnableJavaScript bool

	// Transform, when set, is applied to the clone's document element last.
	Transform TransformFunc

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// IDs generates correlation ids. Defaults to idgen.Element.
	IDs idgen.Generator
}

func (o *Options) defaults() {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.IDs == nil {
		o.IDs = idgen.Element
	}
}

// Serialize renders the document's current state as a doctype followed by
// the document element's markup.
func Serialize(opts Options) (string, error) {
	opts.defaults()
	doc := opts.Document
	if doc == nil || doc.DocumentElement() == nil {
		return "", ErrNoDocument
	}

	TagElements(doc, opts.IDs)

	s := newSnapshot(doc, opts)

	if err := s.serializeInputs(); err != nil {
		return "", err
	}
	if err := s.serializeFrames(); err != nil {
		return "", err
	}
	if err := s.serializeVideos(); err != nil {
		return "", err
	}
	if !opts.EnableJavaScript {
		s.serializeCSSOM()
		if err := s.serializeCanvas(); err != nil {
			return "", err
		}
	}

	if opts.Transform != nil {
		runTransform(opts.Logger, opts.Transform, s.root)
	}

	var sb strings.Builder
	sb.WriteString(Doctype(doc.Doctype()))
	if err := html.Render(&sb, s.root); err != nil {
		return "", fmt.Errorf("domsnap: render: %w", err)
	}
	return sb.String(), nil
}

// runTransform applies fn to root. An error or panic from fn is logged and
// the clone is rendered as it stands.
func runTransform(logger *slog.Logger, fn TransformFunc, root *html.Node) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("domsnap: could not transform the dom", "error", fmt.Sprint(r))
		}
	}()
	if err := fn(root); err != nil {
		logger.Error("domsnap: could not transform the dom", "error", err)
	}
}
