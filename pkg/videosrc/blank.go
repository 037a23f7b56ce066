package videosrc

import (
	"image"
	"io"
	"time"
)

// Blank produces a fixed number of empty frames.
// It drives the counter when detections come from a labels file instead of a detector.
type Blank struct {
	id       string
	width    int
	height   int
	count    int64
	next     int64
	interval time.Duration
}

func NewBlank(id string, width, height int, count int64, fps float64) *Blank {
	if fps <= 0 {
		fps = 25
	}
	return &Blank{
		id:       id,
		width:    width,
		height:   height,
		count:    count,
		interval: time.Duration(float64(time.Second) / fps),
	}
}

func (b *Blank) ID() string {
	return b.id
}

func (b *Blank) Next() (*Frame, error) {
	if b.next >= b.count {
		return nil, io.EOF
	}
	f := &Frame{
		Index: b.next,
		PTS:   time.Duration(b.next) * b.interval,
		Image: image.NewRGBA(image.Rect(0, 0, b.width, b.height)),
	}
	b.next++
	return f, nil
}

func (b *Blank) Close() error {
	return nil
}
