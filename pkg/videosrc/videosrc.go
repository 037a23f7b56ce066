// Package videosrc produces decoded frames from a video source
package videosrc

import (
	"image"
	"time"
)

// Frame is one decoded video frame
type Frame struct {
	Index int64         // Zero-based frame number within the source
	PTS   time.Duration // Presentation time, relative to the start of the source
	Image *image.RGBA
}

// Source produces frames in order.
// Next returns io.EOF when the source is exhausted.
type Source interface {
	// ID identifies the source. A change of ID marks a new counting session.
	ID() string
	Next() (*Frame, error)
	Close() error
}
