package nn

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIOU(t *testing.T) {
	a := MakeRect(0, 0, 10, 10)
	b := MakeRect(5, 5, 10, 10)
	require.InDelta(t, 25.0/175.0, a.IOU(b), 1e-6)
	require.Equal(t, float32(1), a.IOU(a))
	require.Equal(t, float32(0), a.IOU(MakeRect(20, 20, 5, 5)))
	require.Equal(t, float32(0), Rect{}.IOU(Rect{}))
}

func TestRectCenter(t *testing.T) {
	r := MakeRect(10, 300, 40, 25)
	require.Equal(t, int32(50), r.X2())
	require.Equal(t, int32(325), r.Y2())
	require.Equal(t, Point{X: 30, Y: 312}, r.Center())
	require.Equal(t, float32(312.5), r.CenterY())
}

func TestRectScaleAndClip(t *testing.T) {
	r := MakeRect(10, 20, 30, 40)
	s := r.Scale(2, 0.5)
	require.Equal(t, MakeRect(20, 10, 60, 20), s)

	c := MakeRect(-5, 90, 20, 20).Clip(100, 100)
	require.Equal(t, MakeRect(0, 90, 15, 10), c)
}

func TestPointDistance(t *testing.T) {
	require.Equal(t, float32(5), Point{X: 0, Y: 0}.Distance(Point{X: 3, Y: 4}))
}

func TestNonMaxSuppression(t *testing.T) {
	input := []ObjectDetection{
		{Class: COCOCar, Confidence: 0.6, Box: MakeRect(0, 0, 100, 100)},
		{Class: COCOCar, Confidence: 0.9, Box: MakeRect(5, 5, 100, 100)},
		{Class: COCOTruck, Confidence: 0.7, Box: MakeRect(5, 5, 100, 100)},
		{Class: COCOCar, Confidence: 0.8, Box: MakeRect(500, 500, 50, 50)},
	}
	out := NonMaxSuppression(input, 0.5)
	require.Len(t, out, 3)
	require.Equal(t, float32(0.9), out[0].Confidence)
	require.Equal(t, float32(0.8), out[1].Confidence)
	require.Equal(t, COCOTruck, out[2].Class)
}

func TestClassFilter(t *testing.T) {
	f := ClassFilter(COCOClasses, []string{"car", "truck", "spaceship"})
	require.Equal(t, map[int]bool{COCOCar: true, COCOTruck: true}, f)
}
