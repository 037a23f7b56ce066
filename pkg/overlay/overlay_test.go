package overlay

import (
	"image"
	"image/color"
	"testing"

	"github.com/cyclopcam/gatecount/pkg/nn"
	"github.com/stretchr/testify/require"
)

func rgbaAt(img *image.RGBA, x, y int) color.RGBA {
	return img.RGBAAt(x, y)
}

func TestDrawLineAndFlash(t *testing.T) {
	style := DefaultStyle()

	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	Draw(img, &Scene{LineY: 50}, &style)
	require.Equal(t, style.LineColor, rgbaAt(img, 100, 50))
	require.Equal(t, color.RGBA{}, rgbaAt(img, 100, 20))

	img = image.NewRGBA(image.Rect(0, 0, 200, 100))
	Draw(img, &Scene{LineY: 50, Flash: FlashIncoming}, &style)
	require.Equal(t, style.IncomingColor, rgbaAt(img, 100, 50))

	img = image.NewRGBA(image.Rect(0, 0, 200, 100))
	Draw(img, &Scene{LineY: 50, Flash: FlashOutgoing}, &style)
	require.Equal(t, style.OutgoingColor, rgbaAt(img, 100, 50))
}

func TestDrawBoxColours(t *testing.T) {
	style := DefaultStyle()
	img := image.NewRGBA(image.Rect(0, 0, 200, 200))
	Draw(img, &Scene{
		LineY: 190,
		Objects: []Object{
			{Box: nn.MakeRect(20, 20, 40, 40), CentroidY: 40, Tracked: true},
			{Box: nn.MakeRect(120, 20, 40, 40), CentroidY: 40, Tracked: true, Counted: true},
			{Box: nn.MakeRect(20, 120, 40, 40), CentroidY: 140, Tracked: false},
		},
	}, &style)
	// Sample the middle of each left edge
	require.Equal(t, style.TrackedColor, rgbaAt(img, 20, 30))
	require.Equal(t, style.CountedColor, rgbaAt(img, 120, 30))
	require.Equal(t, style.UntrackedColor, rgbaAt(img, 20, 130))
	// Centroid marker
	require.Equal(t, style.TrackedColor, rgbaAt(img, 40, 40))
}
