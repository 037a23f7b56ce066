package detect

import (
	"context"
	"fmt"

	"github.com/cyclopcam/gatecount/pkg/gate"
	"github.com/cyclopcam/gatecount/pkg/nn"
	"github.com/cyclopcam/gatecount/pkg/tracker"
	"github.com/cyclopcam/gatecount/pkg/videosrc"
)

// DefaultInferenceWidth is the width that frames are scaled down to before detection
const DefaultInferenceWidth = 640

type TrackingConfig struct {
	InferenceWidth  int      // Frames wider than this are scaled down before detection. Zero disables scaling.
	NmsIouThreshold float32  // Zero uses nn.DefaultNmsIouThreshold
	Classes         []string // If not empty, only these classes are passed on. eg ["car", "motorcycle", "bus", "truck"]
	Tracker         tracker.Config
}

func DefaultTrackingConfig() TrackingConfig {
	return TrackingConfig{
		InferenceWidth:  DefaultInferenceWidth,
		NmsIouThreshold: nn.DefaultNmsIouThreshold,
		Tracker:         tracker.DefaultConfig(),
	}
}

// TrackingAdapter runs an object detector on each frame, and assigns track IDs with a tracker
type TrackingAdapter struct {
	config   TrackingConfig
	detector nn.ObjectDetector
	tracker  *tracker.Tracker
	classes  []string
	filter   map[int]bool
}

// NewTrackingAdapter takes ownership of detector, and closes it in Close()
func NewTrackingAdapter(detector nn.ObjectDetector, config TrackingConfig) *TrackingAdapter {
	classes := detector.Config().Classes
	var filter map[int]bool
	if len(config.Classes) != 0 {
		filter = nn.ClassFilter(classes, config.Classes)
	}
	return &TrackingAdapter{
		config:   config,
		detector: detector,
		tracker:  tracker.New(config.Tracker),
		classes:  classes,
		filter:   filter,
	}
}

func (a *TrackingAdapter) Detect(ctx context.Context, frame *videosrc.Frame, threshold float32) ([]gate.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	width := frame.Image.Bounds().Dx()
	height := frame.Image.Bounds().Dy()

	small, xform := nn.ResizeToWidth(frame.Image, a.config.InferenceWidth)
	params := nn.DetectionParams{
		ProbabilityThreshold: threshold,
		NmsIouThreshold:      a.config.NmsIouThreshold,
	}
	params = params.WithDefaults()
	raw, err := a.detector.DetectObjects(small, &params)
	if err != nil {
		return nil, fmt.Errorf("Object detection failed on frame %v: %w", frame.Index, err)
	}

	kept := make([]nn.ObjectDetection, 0, len(raw))
	for _, d := range raw {
		if d.Confidence < threshold {
			continue
		}
		if a.filter != nil && !a.filter[d.Class] {
			continue
		}
		d.Box = xform.ApplyBackward(d.Box).Clip(width, height)
		if d.Box.IsEmpty() {
			continue
		}
		kept = append(kept, d)
	}
	kept = nn.NonMaxSuppression(kept, params.NmsIouThreshold)

	tracked := a.tracker.Update(kept, width)
	return toObservations(tracked, a.classes), nil
}

func (a *TrackingAdapter) Reset() {
	a.tracker.Reset()
}

func (a *TrackingAdapter) Close() {
	a.detector.Close()
}

func toObservations(objects []nn.ObjectDetection, classes []string) []gate.Observation {
	out := make([]gate.Observation, 0, len(objects))
	for _, d := range objects {
		label := ""
		if d.Class >= 0 && d.Class < len(classes) {
			label = classes[d.Class]
		}
		out = append(out, gate.Observation{
			TrackID:    d.Track,
			ClassLabel: label,
			Box:        d.Box,
			Confidence: d.Confidence,
		})
	}
	return out
}
