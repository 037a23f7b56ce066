// Package detect turns video frames into tracked observations for the counter
package detect

import (
	"context"

	"github.com/cyclopcam/gatecount/pkg/gate"
	"github.com/cyclopcam/gatecount/pkg/videosrc"
)

// Adapter produces the observations of one frame.
// Track IDs must be stable across frames for as long as the object can be followed.
type Adapter interface {
	Detect(ctx context.Context, frame *videosrc.Frame, threshold float32) ([]gate.Observation, error)

	// Reset forgets all tracks, at the start of a new session
	Reset()

	Close()
}
