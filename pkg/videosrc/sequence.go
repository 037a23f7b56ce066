package videosrc

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cyclopcam/gatecount/pkg/nn"
)

// ImageSequence reads a directory of still images (JPEG or PNG) as a video.
// Files are played in lexical order.
type ImageSequence struct {
	dir      string
	files    []string
	next     int
	interval time.Duration
	maxWidth int
}

// OpenImageSequence opens a directory of images.
// fps is used to synthesize frame timestamps. maxWidth, if non-zero, downscales wider frames.
func OpenImageSequence(dir string, fps float64, maxWidth int) (*ImageSequence, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("No images found in %v", dir)
	}
	sort.Strings(files)
	if fps <= 0 {
		fps = 25
	}
	return &ImageSequence{
		dir:      dir,
		files:    files,
		interval: time.Duration(float64(time.Second) / fps),
		maxWidth: maxWidth,
	}, nil
}

func (s *ImageSequence) ID() string {
	return "images:" + s.dir
}

func (s *ImageSequence) Len() int {
	return len(s.files)
}

func (s *ImageSequence) Next() (*Frame, error) {
	if s.next >= len(s.files) {
		return nil, io.EOF
	}
	filename := s.files[s.next]
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("Failed to decode %v: %w", filename, err)
	}
	rgba, _ := nn.ResizeToWidth(nn.ToRGBA(img), s.maxWidth)
	frame := &Frame{
		Index: int64(s.next),
		PTS:   time.Duration(s.next) * s.interval,
		Image: rgba,
	}
	s.next++
	return frame, nil
}

func (s *ImageSequence) Close() error {
	return nil
}
