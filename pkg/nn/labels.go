package nn

// VideoLabels contains labels for each video frame.
// When produced by a tracker, each object also carries its track ID, which
// lets a labelled video be replayed through the counter without a detector.
type VideoLabels struct {
	Classes []string       `json:"classes"`
	Width   int            `json:"width,omitempty"`
	Height  int            `json:"height,omitempty"`
	Frames  []*ImageLabels `json:"frames"`
}

type ImageLabels struct {
	Frame   int               `json:"frame,omitempty"` // For video, this is the frame number
	Objects []ObjectDetection `json:"objects"`
}

// ObjectDetection is an object that a neural network has found in an image
type ObjectDetection struct {
	Class      int     `json:"class"`
	Confidence float32 `json:"confidence"`
	Box        Rect    `json:"box"`
	Track      int64   `json:"track,omitempty"` // Zero if the object has not been associated with a track
}

// ClassName returns the name of class 'cls', or an empty string if it's out of range
func (v *VideoLabels) ClassName(cls int) string {
	if cls < 0 || cls >= len(v.Classes) {
		return ""
	}
	return v.Classes[cls]
}
