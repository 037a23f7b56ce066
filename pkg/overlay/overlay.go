// Package overlay draws the counter's annotations onto a video frame
package overlay

import (
	"image"
	"image/color"

	"github.com/cyclopcam/gatecount/pkg/nn"
	"github.com/fogleman/gg"
)

// Flash selects the colour of the gate line on a frame where a crossing was accepted
type Flash int

const (
	FlashNone Flash = iota
	FlashIncoming
	FlashOutgoing
)

// Object is a box to draw
type Object struct {
	Box       nn.Rect
	CentroidY int
	Label     string // eg "car #17"
	Counted   bool   // Already attributed to a crossing
	Tracked   bool   // False if the tracker could not assign an ID
}

// Scene is everything that gets drawn onto one frame
type Scene struct {
	LineY   int
	Flash   Flash
	Objects []Object
	Text    []string // Lines of text in the top-left corner
}

type Style struct {
	LineColor      color.RGBA
	IncomingColor  color.RGBA
	OutgoingColor  color.RGBA
	TrackedColor   color.RGBA
	CountedColor   color.RGBA
	UntrackedColor color.RGBA
	TextColor      color.RGBA
	PanelColor     color.RGBA
	LineWidth      float64
	FlashWidth     float64
	BoxWidth       float64
	CentroidRadius float64
}

func DefaultStyle() Style {
	return Style{
		LineColor:      color.RGBA{255, 0, 0, 255},
		IncomingColor:  color.RGBA{0, 230, 0, 255},
		OutgoingColor:  color.RGBA{255, 160, 0, 255},
		TrackedColor:   color.RGBA{0, 255, 0, 255},
		CountedColor:   color.RGBA{0, 200, 255, 255},
		UntrackedColor: color.RGBA{160, 160, 160, 255},
		TextColor:      color.RGBA{255, 255, 255, 255},
		PanelColor:     color.RGBA{0, 0, 0, 160},
		LineWidth:      3,
		FlashWidth:     6,
		BoxWidth:       2,
		CentroidRadius: 4,
	}
}

// Draw renders the scene into img, in place
func Draw(img *image.RGBA, scene *Scene, style *Style) {
	dc := gg.NewContextForRGBA(img)
	width := float64(img.Bounds().Dx())

	for i := range scene.Objects {
		obj := &scene.Objects[i]
		c := style.TrackedColor
		if !obj.Tracked {
			c = style.UntrackedColor
		} else if obj.Counted {
			c = style.CountedColor
		}
		box := obj.Box
		dc.SetColor(c)
		dc.SetLineWidth(style.BoxWidth)
		dc.DrawRectangle(float64(box.X), float64(box.Y), float64(box.Width), float64(box.Height))
		dc.Stroke()

		cx := float64(box.Center().X)
		dc.DrawCircle(cx, float64(obj.CentroidY), style.CentroidRadius)
		dc.Fill()

		if obj.Label != "" {
			ty := float64(box.Y) - 4
			if ty < 12 {
				ty = float64(box.Y2()) + 12
			}
			dc.DrawString(obj.Label, float64(box.X), ty)
		}
	}

	lineColor := style.LineColor
	lineWidth := style.LineWidth
	switch scene.Flash {
	case FlashIncoming:
		lineColor = style.IncomingColor
		lineWidth = style.FlashWidth
	case FlashOutgoing:
		lineColor = style.OutgoingColor
		lineWidth = style.FlashWidth
	}
	dc.SetColor(lineColor)
	dc.SetLineWidth(lineWidth)
	dc.DrawLine(0, float64(scene.LineY), width, float64(scene.LineY))
	dc.Stroke()

	if len(scene.Text) != 0 {
		drawPanel(dc, scene.Text, style)
	}
}

func drawPanel(dc *gg.Context, lines []string, style *Style) {
	const pad = 6
	w := 0.0
	h := 0.0
	for _, s := range lines {
		lw, lh := dc.MeasureString(s)
		w = max(w, lw)
		h = max(h, lh)
	}
	lineHeight := h + 4
	dc.SetColor(style.PanelColor)
	dc.DrawRectangle(0, 0, w+2*pad, lineHeight*float64(len(lines))+2*pad)
	dc.Fill()
	dc.SetColor(style.TextColor)
	for i, s := range lines {
		dc.DrawString(s, pad, pad+h+lineHeight*float64(i))
	}
}
