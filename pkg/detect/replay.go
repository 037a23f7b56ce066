package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cyclopcam/gatecount/pkg/gate"
	"github.com/cyclopcam/gatecount/pkg/nn"
	"github.com/cyclopcam/gatecount/pkg/videosrc"
)

// ReplayAdapter plays back tracked detections from a labels file, instead of running a detector
type ReplayAdapter struct {
	Labels *nn.VideoLabels
	frames map[int64][]nn.ObjectDetection
	last   int64 // Highest frame number in the file
}

func NewReplayAdapter(labels *nn.VideoLabels) *ReplayAdapter {
	r := &ReplayAdapter{
		Labels: labels,
		frames: map[int64][]nn.ObjectDetection{},
	}
	for _, f := range labels.Frames {
		r.frames[int64(f.Frame)] = append(r.frames[int64(f.Frame)], f.Objects...)
		r.last = max(r.last, int64(f.Frame))
	}
	return r
}

// LoadLabels reads a labels JSON file
func LoadLabels(filename string) (*nn.VideoLabels, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	labels := &nn.VideoLabels{}
	if err := json.Unmarshal(b, labels); err != nil {
		return nil, fmt.Errorf("Error parsing labels file %v: %w", filename, err)
	}
	return labels, nil
}

// NumFrames is the number of frames needed to play back the whole file
func (r *ReplayAdapter) NumFrames() int64 {
	if len(r.frames) == 0 {
		return 0
	}
	return r.last + 1
}

func (r *ReplayAdapter) Detect(ctx context.Context, frame *videosrc.Frame, threshold float32) ([]gate.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	objects := []nn.ObjectDetection{}
	for _, d := range r.frames[frame.Index] {
		if d.Confidence >= threshold {
			objects = append(objects, d)
		}
	}
	return toObservations(objects, r.Labels.Classes), nil
}

func (r *ReplayAdapter) Reset() {
}

func (r *ReplayAdapter) Close() {
}
