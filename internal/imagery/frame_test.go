package imagery

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoguess-bot/internal/geo"
)

type staticFetcher struct {
	data []byte
	err  error
}

func (s staticFetcher) FetchImage(context.Context, geo.Coordinate, ViewParams) ([]byte, error) {
	return s.data, s.err
}

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0x80, A: 0xFF})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestFrame_CropsMargin(t *testing.T) {
	out, err := Frame(testJPEG(t, 200, 120), 90, 10)
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 180, img.Bounds().Dx())
	assert.Equal(t, 100, img.Bounds().Dy())
}

func TestFrame_TinyImageKeepsSize(t *testing.T) {
	out, err := Frame(testJPEG(t, 16, 16), 0, 10)
	require.NoError(t, err)

	img, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
}

func TestFrame_InvalidPayload(t *testing.T) {
	_, err := Frame([]byte("not an image"), 0, 10)
	assert.Error(t, err)
}

func TestFramer_PassesThroughUndecodable(t *testing.T) {
	f := NewFramer(staticFetcher{data: []byte("raw")}, 10)
	out, err := f.FetchImage(context.Background(), geo.Coordinate{}, ViewParams{})
	require.NoError(t, err)
	assert.Equal(t, []byte("raw"), out)
}

func TestFramer_PropagatesFetchError(t *testing.T) {
	f := NewFramer(staticFetcher{err: ErrImageFetch}, 10)
	_, err := f.FetchImage(context.Background(), geo.Coordinate{}, ViewParams{})
	assert.ErrorIs(t, err, ErrImageFetch)
}

func TestCompass(t *testing.T) {
	tests := map[int]string{
		0: "N", 30: "N", 90: "E", 134: "E", 180: "S", 270: "W", 350: "N", -90: "W", 450: "E",
	}
	for heading, want := range tests {
		assert.Equal(t, want, Compass(heading), "heading %d", heading)
	}
}
