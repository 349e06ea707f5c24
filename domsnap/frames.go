package domsnap

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/hazyhaar/domsnap/livedom"
	"golang.org/x/net/html"
)

// serializeFrames inlines same-origin frame contents as srcdoc, recursing
// into each embedded document, and drops frames that cannot be replayed.
func (s *snapshot) serializeFrames() error {
	for _, frame := range s.doc.QueryAll("iframe") {
		cloned, err := s.counterpart(frame)
		if err != nil {
			return err
		}
		target := s.sel(cloned)
		byScript := builtWithJS(frame)

		// Frames in <head> render nothing and tend to break the replay.
		if target.Closest("head").Length() > 0 {
			target.Remove()
			continue
		}

		content := s.doc.FrameDocument(frame)
		if content == nil || content.DocumentElement() == nil {
			// An uncaptured script-built frame would be fetched during
			// asset discovery; without script on replay it shows nothing.
			if !s.opts.EnableJavaScript && byScript {
				target.Remove()
			}
			continue
		}

		if s.opts.EnableJavaScript && byScript {
			continue
		}
		if !byScript && !content.Loaded {
			s.logger.Debug("domsnap: skipping frame still loading",
				"id", livedom.Attr(frame, ElementIDAttr), "src", livedom.Attr(frame, "src"))
			continue
		}

		inner, err := Serialize(Options{
			Document:         content,
			EnableJavaScript: s.opts.EnableJavaScript,
			Transform:        baseURITransform(content.BaseURI()),
			Logger:           s.logger,
			IDs:              s.opts.IDs,
		})
		if err != nil {
			return fmt.Errorf("domsnap: frame %s: %w", livedom.Attr(frame, ElementIDAttr), err)
		}
		target.SetAttr("srcdoc", inner).RemoveAttr("src")
	}
	return nil
}

// builtWithJS reports whether a frame's content can only come from script:
// it has no srcdoc and no navigable src.
func builtWithJS(frame *html.Node) bool {
	if livedom.Attr(frame, "srcdoc") != "" {
		return false
	}
	src := strings.TrimSpace(livedom.Attr(frame, "src"))
	if src == "" {
		return true
	}
	scheme, _, ok := strings.Cut(src, ":")
	return ok && strings.EqualFold(scheme, "javascript")
}

// baseURITransform pins relative URLs inside an inlined frame to the
// frame's own base URI by prepending a <base> to its head.
func baseURITransform(baseURI string) TransformFunc {
	return func(root *html.Node) error {
		u, err := url.Parse(baseURI)
		if err != nil {
			return fmt.Errorf("base uri %q: %w", baseURI, err)
		}
		if u.Hostname() == "" {
			return nil
		}
		head := livedom.FindHead(root)
		if head == nil {
			return fmt.Errorf("base uri %q: document has no head", baseURI)
		}
		base := livedom.NewElement("base", html.Attribute{Key: "href", Val: baseURI})
		head.InsertBefore(base, head.FirstChild)
		return nil
	}
}
