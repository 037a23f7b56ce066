package detect

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/cyclopcam/gatecount/pkg/gate"
	"github.com/cyclopcam/gatecount/pkg/nn"
	"github.com/cyclopcam/gatecount/pkg/videosrc"
)

// Recorder wraps an Adapter, and keeps a copy of every observation in a form that
// ReplayAdapter can play back.
type Recorder struct {
	Adapter
	lock    sync.Mutex
	labels  nn.VideoLabels
	classID map[string]int
}

func NewRecorder(inner Adapter) *Recorder {
	return &Recorder{
		Adapter: inner,
		classID: map[string]int{},
	}
}

func (r *Recorder) Detect(ctx context.Context, frame *videosrc.Frame, threshold float32) ([]gate.Observation, error) {
	obs, err := r.Adapter.Detect(ctx, frame, threshold)
	if err != nil {
		return nil, err
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.labels.Width == 0 {
		r.labels.Width = frame.Image.Bounds().Dx()
		r.labels.Height = frame.Image.Bounds().Dy()
	}
	img := &nn.ImageLabels{
		Frame:   int(frame.Index),
		Objects: make([]nn.ObjectDetection, 0, len(obs)),
	}
	for _, o := range obs {
		img.Objects = append(img.Objects, nn.ObjectDetection{
			Class:      r.classIndex(o.ClassLabel),
			Confidence: o.Confidence,
			Box:        o.Box,
			Track:      o.TrackID,
		})
	}
	r.labels.Frames = append(r.labels.Frames, img)
	return obs, nil
}

func (r *Recorder) classIndex(label string) int {
	if idx, ok := r.classID[label]; ok {
		return idx
	}
	idx := len(r.labels.Classes)
	r.labels.Classes = append(r.labels.Classes, label)
	r.classID[label] = idx
	return idx
}

// Labels returns a copy of everything recorded so far
func (r *Recorder) Labels() *nn.VideoLabels {
	r.lock.Lock()
	defer r.lock.Unlock()
	c := r.labels
	c.Classes = append([]string(nil), r.labels.Classes...)
	c.Frames = append([]*nn.ImageLabels(nil), r.labels.Frames...)
	return &c
}

// Save writes the recorded labels as JSON
func (r *Recorder) Save(filename string) error {
	b, err := json.MarshalIndent(r.Labels(), "", "\t")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, b, 0644)
}
