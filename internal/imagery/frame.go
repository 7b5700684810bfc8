package imagery

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png" // providers may answer with PNG

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"geoguess-bot/internal/geo"
)

// Framer post-processes fetched images: it trims a margin from every edge,
// which removes the provider watermark, and stamps the camera heading in
// the bottom-left corner.
type Framer struct {
	next   Fetcher
	margin int
}

// NewFramer wraps next.
func NewFramer(next Fetcher, margin int) *Framer {
	if margin < 0 {
		margin = 0
	}
	return &Framer{next: next, margin: margin}
}

// FetchImage implements Fetcher. Payloads that cannot be decoded are
// returned unchanged.
func (f *Framer) FetchImage(ctx context.Context, at geo.Coordinate, view ViewParams) ([]byte, error) {
	raw, err := f.next.FetchImage(ctx, at, view)
	if err != nil {
		return nil, err
	}
	out, err := Frame(raw, view.Heading, f.margin)
	if err != nil {
		log.Warn().Err(err).Msg("Sending unframed image")
		return raw, nil
	}
	return out, nil
}

// Frame crops margin pixels from each edge of the encoded image, draws the
// compass label for heading and re-encodes it as JPEG.
func Frame(raw []byte, heading, margin int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	b := src.Bounds()
	if b.Dx() <= 2*margin || b.Dy() <= 2*margin {
		margin = 0
	}
	crop := image.Rect(b.Min.X+margin, b.Min.Y+margin, b.Max.X-margin, b.Max.Y-margin)

	dst := image.NewRGBA(image.Rect(0, 0, crop.Dx(), crop.Dy()))
	draw.Draw(dst, dst.Bounds(), src, crop.Min, draw.Src)
	drawCompass(dst, heading)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// Compass names the cardinal direction nearest to heading.
func Compass(heading int) string {
	h := ((heading % 360) + 360) % 360
	return [...]string{"N", "E", "S", "W"}[((h+45)%360)/90]
}

func drawCompass(img *image.RGBA, heading int) {
	face := basicfont.Face7x13
	label := fmt.Sprintf("%s %03d", Compass(heading), ((heading%360)+360)%360)

	const pad = 4
	w := font.MeasureString(face, label).Ceil()
	h := face.Metrics().Height.Ceil()
	bounds := img.Bounds()
	box := image.Rect(bounds.Min.X, bounds.Max.Y-h-2*pad, bounds.Min.X+w+2*pad, bounds.Max.Y)
	if !box.In(bounds) {
		return
	}

	draw.Draw(img, box, &image.Uniform{C: color.RGBA{0x00, 0x00, 0x00, 0xA0}}, image.Point{}, draw.Over)
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(box.Min.X+pad, box.Max.Y-pad-face.Metrics().Descent.Ceil()),
	}
	d.DrawString(label)
}
