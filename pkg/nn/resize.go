package nn

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// ResizeTransform maps coordinates of a resized image back to the original image.
// original = resized / Scale
type ResizeTransform struct {
	ScaleX float32
	ScaleY float32
}

func IdentityResizeTransform() ResizeTransform {
	return ResizeTransform{ScaleX: 1, ScaleY: 1}
}

func (r ResizeTransform) IsIdentity() bool {
	return r.ScaleX == 1 && r.ScaleY == 1
}

// ApplyBackward maps a box from the resized image to the original image
func (r ResizeTransform) ApplyBackward(box Rect) Rect {
	if r.IsIdentity() {
		return box
	}
	return box.Scale(1/r.ScaleX, 1/r.ScaleY)
}

// ResizeToWidth scales img down so that its width is at most maxWidth, preserving
// aspect ratio. Images that are already small enough are returned as-is.
func ResizeToWidth(img *image.RGBA, maxWidth int) (*image.RGBA, ResizeTransform) {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img, IdentityResizeTransform()
	}
	scale := float32(maxWidth) / float32(b.Dx())
	newHeight := max(1, int(float32(b.Dy())*scale))
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, newHeight))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst, ResizeTransform{
		ScaleX: float32(maxWidth) / float32(b.Dx()),
		ScaleY: float32(newHeight) / float32(b.Dy()),
	}
}

// ToRGBA returns img as an *image.RGBA, converting if necessary
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Copy(dst, image.Point{}, img, b, xdraw.Src, nil)
	return dst
}
