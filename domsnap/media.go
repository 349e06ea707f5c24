package domsnap

import (
	"image"
	"strings"

	"github.com/aymerick/douceur/parser"
	"github.com/hazyhaar/domsnap/livedom"
	"golang.org/x/image/draw"
	"golang.org/x/net/html"
)

// serializeCanvas swaps every drawn canvas for an <img> of its pixels.
func (s *snapshot) serializeCanvas() error {
	for _, canvas := range s.doc.QueryAll("canvas") {
		dataURL := s.doc.Canvas(canvas).DataURL()
		if dataURL == livedom.EmptyDataURL {
			continue
		}
		cloned, err := s.counterpart(canvas)
		if err != nil {
			return err
		}

		// Keep every attribute so selectors and styles still apply.
		img := livedom.NewElement("img", append([]html.Attribute(nil), canvas.Attr...)...)
		livedom.SetAttr(img, "src", dataURL)
		livedom.SetAttr(img, CanvasAttr, "")
		livedom.SetAttr(img, "style", withDefaultMaxWidth(livedom.Attr(img, "style")))

		s.sel(cloned).ReplaceWithNodes(img)
	}
	return nil
}

// withDefaultMaxWidth bounds script-resized canvases: it adds
// max-width: 100% unless the inline style already sets a max-width.
func withDefaultMaxWidth(style string) string {
	decls, err := parser.ParseDeclarations(style)
	if err != nil {
		style = strings.TrimSpace(style)
		if style != "" && !strings.HasSuffix(style, ";") {
			style += ";"
		}
		return strings.TrimSpace(style + " max-width: 100%;")
	}

	parts := make([]string, 0, len(decls)+1)
	for _, d := range decls {
		if strings.EqualFold(d.Property, "max-width") {
			return style
		}
		parts = append(parts, d.String())
	}
	parts = append(parts, "max-width: 100%;")
	return strings.Join(parts, " ")
}

// serializeVideos sets a poster from the frame each video is showing, so a
// static replay shows that frame instead of a blank box.
func (s *snapshot) serializeVideos() error {
	for _, video := range s.doc.QueryAll("video") {
		if livedom.Attr(video, "poster") != "" {
			continue
		}
		cloned, err := s.counterpart(video)
		if err != nil {
			return err
		}
		dataURL := captureFrame(s.doc.Video(video))
		if dataURL == livedom.EmptyDataURL {
			continue
		}
		s.sel(cloned).SetAttr("poster", dataURL)
	}
	return nil
}

// captureFrame draws the current frame onto a surface of the video's
// intrinsic size and encodes it. A video without dimensions has nothing to
// draw.
func captureFrame(v livedom.VideoState) string {
	if v.Width <= 0 || v.Height <= 0 {
		return livedom.EmptyDataURL
	}
	dst := image.NewRGBA(image.Rect(0, 0, v.Width, v.Height))
	if v.Frame != nil {
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), v.Frame, v.Frame.Bounds(), draw.Src, nil)
	}
	return livedom.EncodeDataURL(dst)
}
