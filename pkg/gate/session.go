// Package gate counts vehicles crossing a horizontal line.
//
// A Session consumes one frame of tracked observations at a time, keeps a short
// centroid history per track, and attributes each track to at most one crossing.
package gate

import (
	"errors"
	"fmt"
	"image"
	"sort"

	"github.com/cyclopcam/gatecount/pkg/overlay"
)

var ErrInvalidLinePosition = errors.New("Line position must be between 0 and 1 (exclusive)")

const DefaultLinePosition = 0.6

// DefaultMaxTrackAge is the number of frames after which an unseen track is forgotten
const DefaultMaxTrackAge = 150

type Config struct {
	LinePosition float64 // Fraction of the frame height where the gate line sits. Exclusive range (0, 1).
	LineY        int     // If positive, the gate line in pixels, and LinePosition is ignored
	MaxTrackAge  int     // Forget tracks that have not been observed for this many frames. Zero disables eviction.
	ShowCounts   bool    // Draw a panel with the running counts
}

func DefaultConfig() Config {
	return Config{
		LinePosition: DefaultLinePosition,
		MaxTrackAge:  DefaultMaxTrackAge,
		ShowCounts:   true,
	}
}

func (c *Config) Validate() error {
	if c.LineY < 0 {
		return fmt.Errorf("LineY may not be negative (got %v)", c.LineY)
	}
	if c.LineY == 0 && !(c.LinePosition > 0 && c.LinePosition < 1) {
		return fmt.Errorf("%w (got %v)", ErrInvalidLinePosition, c.LinePosition)
	}
	if c.MaxTrackAge < 0 {
		return fmt.Errorf("MaxTrackAge may not be negative (got %v)", c.MaxTrackAge)
	}
	return nil
}

// FrameResult is the outcome of one call to Advance
type FrameResult struct {
	Frame     *image.RGBA // The annotated frame. Nil when produced by AdvanceNoRender.
	Index     int64       // Zero-based index of this frame within the session
	LineY     int
	Counts    Counts     // Snapshot after this frame was applied
	Crossings []Crossing // Crossings accepted in this frame
	Flash     *Direction // Direction of the first crossing in this frame, if any
	Objects   []ObjectState
}

// ObjectState is an observation annotated with what the session did with it
type ObjectState struct {
	Observation
	CentroidY int
	Counted   bool // Track has been attributed to a crossing (now or earlier)
}

type trackState struct {
	history  History
	lastSeen int64
}

// Session owns all counting state for one video.
// It is not safe for concurrent use; one processing loop owns it.
type Session struct {
	config  Config
	style   overlay.Style
	lineY   int
	hasLine bool
	frame   int64 // Index of the next frame
	tracks  map[int64]*trackState
	counted *CountedSet
	counts  Counts
}

func NewSession(config Config) (*Session, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	s := &Session{
		config: config,
		style:  overlay.DefaultStyle(),
	}
	s.Reset()
	return s, nil
}

// Reset discards all tracks, counts, and the gate line.
// The next frame starts a fresh session.
func (s *Session) Reset() {
	s.tracks = map[int64]*trackState{}
	s.counted = NewCountedSet()
	s.counts = Counts{}
	s.frame = 0
	s.lineY = 0
	s.hasLine = false
}

// Advance applies one frame of observations, and draws the overlay onto 'frame'
func (s *Session) Advance(frame *image.RGBA, observations []Observation) FrameResult {
	result := s.apply(frame.Bounds().Dy(), observations)
	result.Frame = frame
	overlay.Draw(frame, s.scene(&result), &s.style)
	return result
}

// AdvanceNoRender applies one frame of observations without drawing anything
func (s *Session) AdvanceNoRender(frameHeight int, observations []Observation) FrameResult {
	return s.apply(frameHeight, observations)
}

func (s *Session) apply(frameHeight int, observations []Observation) FrameResult {
	if !s.hasLine {
		if s.config.LineY > 0 {
			s.lineY = s.config.LineY
		} else {
			s.lineY = ResolveLineY(frameHeight, s.config.LinePosition)
		}
		s.hasLine = true
	}
	index := s.frame
	s.frame++

	result := FrameResult{
		Index:   index,
		LineY:   s.lineY,
		Objects: make([]ObjectState, 0, len(observations)),
	}

	// A tracker should never emit the same ID twice in one frame, but if it does,
	// only the first occurrence touches state.
	seen := make(map[int64]bool, len(observations))

	for _, obs := range observations {
		cy := obs.CentroidY()
		state := ObjectState{
			Observation: obs,
			CentroidY:   cy,
		}
		if obs.TrackID == NoTrack || seen[obs.TrackID] {
			result.Objects = append(result.Objects, state)
			continue
		}
		seen[obs.TrackID] = true

		track := s.tracks[obs.TrackID]
		if track == nil {
			track = &trackState{}
			s.tracks[obs.TrackID] = track
		}

		// On first sighting prevY == cy, so no crossing can fire
		prevY := cy
		if last, ok := track.history.Last(); ok {
			prevY = last
		}
		track.history.Push(cy)
		track.lastSeen = index

		if dir, crossed := DetectCrossing(prevY, cy, s.lineY); crossed && !s.counted.Contains(obs.TrackID) {
			if cat, ok := CategoryFromLabel(obs.ClassLabel); ok {
				s.counts.Increment(dir, cat)
				s.counted.Add(obs.TrackID)
				result.Crossings = append(result.Crossings, Crossing{
					TrackID:   obs.TrackID,
					Label:     obs.ClassLabel,
					Category:  cat,
					Direction: dir,
					Frame:     index,
					FromY:     prevY,
					ToY:       cy,
				})
			}
		}
		state.Counted = s.counted.Contains(obs.TrackID)
		result.Objects = append(result.Objects, state)
	}

	s.evict(index)

	result.Counts = s.counts
	// Mixed directions in one frame flash the colour of the first crossing
	if len(result.Crossings) != 0 {
		d := result.Crossings[0].Direction
		result.Flash = &d
	}
	return result
}

// Forget the history of tracks that have been absent for more than MaxTrackAge frames.
// Counted IDs are kept for the whole session.
func (s *Session) evict(index int64) {
	if s.config.MaxTrackAge <= 0 {
		return
	}
	for id, t := range s.tracks {
		if index-t.lastSeen > int64(s.config.MaxTrackAge) {
			delete(s.tracks, id)
		}
	}
}

func (s *Session) scene(r *FrameResult) *overlay.Scene {
	scene := &overlay.Scene{
		LineY:   r.LineY,
		Objects: make([]overlay.Object, 0, len(r.Objects)),
	}
	if r.Flash != nil {
		switch *r.Flash {
		case DirectionIncoming:
			scene.Flash = overlay.FlashIncoming
		case DirectionOutgoing:
			scene.Flash = overlay.FlashOutgoing
		}
	}
	for _, obj := range r.Objects {
		label := obj.ClassLabel
		if obj.TrackID != NoTrack {
			label = fmt.Sprintf("%v #%v", obj.ClassLabel, obj.TrackID)
		}
		scene.Objects = append(scene.Objects, overlay.Object{
			Box:       obj.Box,
			CentroidY: obj.CentroidY,
			Label:     label,
			Counted:   obj.Counted,
			Tracked:   obj.TrackID != NoTrack,
		})
	}
	if s.config.ShowCounts {
		for _, d := range Directions {
			scene.Text = append(scene.Text, fmt.Sprintf("%-8v car %v  bike %v  bus %v  truck %v", d,
				r.Counts.Get(d, CategoryCar), r.Counts.Get(d, CategoryBike), r.Counts.Get(d, CategoryBus), r.Counts.Get(d, CategoryTruck)))
		}
	}
	return scene
}

// Counts returns a snapshot of the current counts
func (s *Session) Counts() Counts {
	return s.counts
}

// Export returns the current counts as a flat "<Direction>_<Category>" map
func (s *Session) Export() map[string]uint64 {
	return s.counts.Export()
}

// LineY returns the gate line, which is only known after the first frame
func (s *Session) LineY() (int, bool) {
	return s.lineY, s.hasLine
}

// FrameIndex returns the number of frames applied since the last reset
func (s *Session) FrameIndex() int64 {
	return s.frame
}

func (s *Session) IsCounted(trackID int64) bool {
	return s.counted.Contains(trackID)
}

// History returns the centroid samples of a track, oldest first
func (s *Session) History(trackID int64) []int {
	t := s.tracks[trackID]
	if t == nil {
		return nil
	}
	return t.history.Samples()
}

// NumTracks is the number of tracks with a live history
func (s *Session) NumTracks() int {
	return len(s.tracks)
}

// TrackIDs returns the IDs of all live tracks, in ascending order
func (s *Session) TrackIDs() []int64 {
	ids := make([]int64, 0, len(s.tracks))
	for id := range s.tracks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
