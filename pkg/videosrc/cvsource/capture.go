// Package cvsource reads video files and capture devices through OpenCV
package cvsource

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/cyclopcam/gatecount/pkg/nn"
	"github.com/cyclopcam/gatecount/pkg/videosrc"
	"gocv.io/x/gocv"
)

// Capture is a videosrc.Source backed by gocv.VideoCapture
type Capture struct {
	name     string
	capture  *gocv.VideoCapture
	mat      gocv.Mat
	fps      float64
	next     int64
	maxWidth int
}

// Open opens a video file, a stream URL, or (if name is an integer) a capture device.
// maxWidth, if non-zero, downscales wider frames.
func Open(name string, maxWidth int) (*Capture, error) {
	var capture *gocv.VideoCapture
	var err error
	if device, errNum := strconv.Atoi(name); errNum == nil {
		capture, err = gocv.OpenVideoCapture(device)
	} else {
		capture, err = gocv.VideoCaptureFile(name)
	}
	if err != nil {
		return nil, fmt.Errorf("Failed to open video '%v': %w", name, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("Failed to open video '%v'", name)
	}
	fps := capture.Get(gocv.VideoCaptureFPS)
	if fps <= 0 {
		fps = 25
	}
	return &Capture{
		name:     name,
		capture:  capture,
		mat:      gocv.NewMat(),
		fps:      fps,
		maxWidth: maxWidth,
	}, nil
}

func (c *Capture) ID() string {
	return "video:" + c.name
}

func (c *Capture) FPS() float64 {
	return c.fps
}

func (c *Capture) Next() (*videosrc.Frame, error) {
	if ok := c.capture.Read(&c.mat); !ok || c.mat.Empty() {
		return nil, io.EOF
	}
	img, err := c.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("Failed to convert frame %v: %w", c.next, err)
	}
	rgba, _ := nn.ResizeToWidth(nn.ToRGBA(img), c.maxWidth)
	f := &videosrc.Frame{
		Index: c.next,
		PTS:   time.Duration(float64(c.next) / c.fps * float64(time.Second)),
		Image: rgba,
	}
	c.next++
	return f, nil
}

func (c *Capture) Close() error {
	c.mat.Close()
	return c.capture.Close()
}
