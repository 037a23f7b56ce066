package nn

import (
	"github.com/chewxy/math32"
)

type Point struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

func (p Point) Distance(b Point) float32 {
	dx := float32(p.X - b.X)
	dy := float32(p.Y - b.Y)
	return math32.Sqrt(dx*dx + dy*dy)
}

// Rect is an axis-aligned box in frame pixel coordinates
type Rect struct {
	X      int32 `json:"x"`
	Y      int32 `json:"y"`
	Width  int32 `json:"width"`
	Height int32 `json:"height"`
}

func MakeRect(x, y, width, height int) Rect {
	return Rect{
		X:      int32(x),
		Y:      int32(y),
		Width:  int32(width),
		Height: int32(height),
	}
}

// Make a rect from two corners
func MakeRectFromCorners(x1, y1, x2, y2 int) Rect {
	return MakeRect(x1, y1, x2-x1, y2-y1)
}

func (r Rect) X2() int32 {
	return r.X + r.Width
}

func (r Rect) Y2() int32 {
	return r.Y + r.Height
}

func (r Rect) Area() int {
	return int(r.Width) * int(r.Height)
}

func (r Rect) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

func (r Rect) Intersection(b Rect) Rect {
	x1 := max(r.X, b.X)
	y1 := max(r.Y, b.Y)
	x2 := min(r.X2(), b.X2())
	y2 := min(r.Y2(), b.Y2())
	return Rect{
		X:      x1,
		Y:      y1,
		Width:  max(0, x2-x1),
		Height: max(0, y2-y1),
	}
}

func (r Rect) Union(b Rect) Rect {
	x1 := min(r.X, b.X)
	y1 := min(r.Y, b.Y)
	x2 := max(r.X2(), b.X2())
	y2 := max(r.Y2(), b.Y2())
	return Rect{
		X:      x1,
		Y:      y1,
		Width:  x2 - x1,
		Height: y2 - y1,
	}
}

// Intersection over Union
func (r Rect) IOU(b Rect) float32 {
	intersection := r.Intersection(b).Area()
	union := r.Area() + b.Area() - intersection
	if union <= 0 {
		return 0
	}
	return float32(intersection) / float32(union)
}

func (r Rect) Center() Point {
	return Point{
		X: r.X + r.Width/2,
		Y: r.Y + r.Height/2,
	}
}

// CenterY returns the vertical midpoint, without rounding
func (r Rect) CenterY() float32 {
	return float32(r.Y) + float32(r.Height)/2
}

func (r *Rect) Offset(dx, dy int32) {
	r.X += dx
	r.Y += dy
}

// Scale the rectangle by sx, sy (eg when mapping a box from a resized frame back to the source frame)
func (r Rect) Scale(sx, sy float32) Rect {
	x1 := math32.Round(float32(r.X) * sx)
	y1 := math32.Round(float32(r.Y) * sy)
	x2 := math32.Round(float32(r.X2()) * sx)
	y2 := math32.Round(float32(r.Y2()) * sy)
	return Rect{
		X:      int32(x1),
		Y:      int32(y1),
		Width:  int32(x2 - x1),
		Height: int32(y2 - y1),
	}
}

// Clip the rectangle to the frame bounds [0,0,width,height]
func (r Rect) Clip(width, height int) Rect {
	return r.Intersection(MakeRect(0, 0, width, height))
}
