package livedom

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"strings"

	"golang.org/x/net/html"
)

// EmptyDataURL is the encoding of a surface with no content, as a browser
// returns from toDataURL on a zero-sized canvas.
const EmptyDataURL = "data:,"

const pngDataURLPrefix = "data:image/png;base64,"

// Surface is the pixel buffer behind a canvas. Either Image holds the
// pixels or Encoded holds an already encoded data URL (as captured from a
// browser); Encoded wins when both are set.
type Surface struct {
	Image   image.Image
	Encoded string
}

// DataURL returns the surface as an embeddable image, or EmptyDataURL.
func (s Surface) DataURL() string {
	if s.Encoded != "" {
		return s.Encoded
	}
	return EncodeDataURL(s.Image)
}

// EncodeDataURL encodes an image as a PNG data URL. A nil or empty image,
// or one that fails to encode, yields EmptyDataURL.
func EncodeDataURL(img image.Image) string {
	if img == nil || img.Bounds().Empty() {
		return EmptyDataURL
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return EmptyDataURL
	}
	return pngDataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecodeDataURL decodes a PNG data URL produced by a browser or by
// EncodeDataURL. EmptyDataURL decodes to a nil image.
func DecodeDataURL(s string) (image.Image, error) {
	if s == "" || s == EmptyDataURL {
		return nil, nil
	}
	payload, ok := strings.CutPrefix(s, pngDataURLPrefix)
	if !ok {
		return nil, fmt.Errorf("livedom: unsupported data URL %.32q", s)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("livedom: data URL payload: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("livedom: data URL image: %w", err)
	}
	return img, nil
}

// Canvas returns a canvas's current surface. A canvas never drawn on has
// an empty surface.
func (d *Document) Canvas(n *html.Node) Surface {
	if s := d.peek(n); s != nil && s.canvas != nil {
		return *s.canvas
	}
	return Surface{}
}

// SetCanvas records the pixels currently rendered on a canvas.
func (d *Document) SetCanvas(n *html.Node, img image.Image) {
	d.stateOf(n).canvas = &Surface{Image: img}
}

// SetCanvasDataURL records an already encoded canvas surface.
func (d *Document) SetCanvasDataURL(n *html.Node, dataURL string) {
	d.stateOf(n).canvas = &Surface{Encoded: dataURL}
}

// VideoState is the frame a video element is currently displaying, with
// the video's intrinsic size.
type VideoState struct {
	Frame  image.Image
	Width  int
	Height int
}

// Video returns a video's current state. A video that has not decoded a
// frame has a zero state.
func (d *Document) Video(n *html.Node) VideoState {
	if s := d.peek(n); s != nil && s.video != nil {
		return *s.video
	}
	return VideoState{}
}

// SetVideoFrame records the frame a video is displaying. Width and height
// are the intrinsic video size; zero values default to the frame bounds.
func (d *Document) SetVideoFrame(n *html.Node, frame image.Image, width, height int) {
	if frame != nil && (width <= 0 || height <= 0) {
		b := frame.Bounds()
		width, height = b.Dx(), b.Dy()
	}
	d.stateOf(n).video = &VideoState{Frame: frame, Width: width, Height: height}
}

// AttachFrame sets the document embedded in an iframe. A nil content
// marks the frame inaccessible (cross-origin).
func (d *Document) AttachFrame(iframe *html.Node, content *Document) {
	d.stateOf(iframe).frame = content
}

// FrameDocument returns the document embedded in an iframe, or nil when it
// is inaccessible or was never attached.
func (d *Document) FrameDocument(iframe *html.Node) *Document {
	if s := d.peek(iframe); s != nil {
		return s.frame
	}
	return nil
}
