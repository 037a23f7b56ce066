package gate

import "github.com/cyclopcam/gatecount/pkg/nn"

// NoTrack is the TrackID of an object that the tracker could not associate
const NoTrack = 0

// Observation is one detected object in one frame
type Observation struct {
	TrackID    int64   `json:"trackID"` // Stable across frames for the same object. NoTrack if unknown.
	ClassLabel string  `json:"class"`   // Raw detector label, eg "car", "motorcycle"
	Box        nn.Rect `json:"box"`
	Confidence float32 `json:"confidence"`
}

// CentroidY returns the vertical midpoint of the box, truncated to a whole pixel
func (o *Observation) CentroidY() int {
	return int(o.Box.Y) + int(o.Box.Height)/2
}

// Crossing is a single accepted crossing event
type Crossing struct {
	TrackID   int64     `json:"trackID"`
	Label     string    `json:"label"`
	Category  Category  `json:"category"`
	Direction Direction `json:"direction"`
	Frame     int64     `json:"frame"`
	FromY     int       `json:"fromY"` // Centroid in the previous sighting
	ToY       int       `json:"toY"`   // Centroid in this frame
}

// Jump is the vertical distance moved between the two sightings that straddled the line
func (c *Crossing) Jump() int {
	return max(c.ToY-c.FromY, c.FromY-c.ToY)
}
