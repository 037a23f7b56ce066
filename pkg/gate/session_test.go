package gate

import (
	"image"
	"testing"

	"github.com/cyclopcam/gatecount/pkg/nn"
	"github.com/stretchr/testify/require"
)

// Line position that puts the gate at y=360 on a 600 pixel frame
const testHeight = 600
const testLinePos = 0.6

func newTestSession(t *testing.T) *Session {
	cfg := DefaultConfig()
	cfg.LinePosition = testLinePos
	cfg.MaxTrackAge = 0
	s, err := NewSession(cfg)
	require.NoError(t, err)
	return s
}

// obs creates an observation whose box is centred vertically on cy
func obs(id int64, label string, cy int) Observation {
	return Observation{
		TrackID:    id,
		ClassLabel: label,
		Box:        nn.MakeRect(100, cy-20, 60, 40),
		Confidence: 0.9,
	}
}

func advance(s *Session, observations ...Observation) FrameResult {
	return s.AdvanceNoRender(testHeight, observations)
}

func TestLineY(t *testing.T) {
	s := newTestSession(t)
	_, ok := s.LineY()
	require.False(t, ok)
	r := advance(s)
	require.Equal(t, 360, r.LineY)
	y, ok := s.LineY()
	require.True(t, ok)
	require.Equal(t, 360, y)

	require.Equal(t, 432, ResolveLineY(720, 0.6))
	require.Equal(t, 0, ResolveLineY(1, 0.6))
}

func TestFixedLineY(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LineY = 250
	cfg.LinePosition = 0 // Ignored
	s, err := NewSession(cfg)
	require.NoError(t, err)
	require.Equal(t, 250, advance(s, obs(1, "car", 240)).LineY)
	r := advance(s, obs(1, "car", 255))
	require.Len(t, r.Crossings, 1)
	require.Equal(t, DirectionIncoming, r.Crossings[0].Direction)

	cfg.LineY = -1
	require.Error(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	for _, pos := range []float64{0, 1, -0.1, 1.5} {
		cfg := DefaultConfig()
		cfg.LinePosition = pos
		_, err := NewSession(cfg)
		require.ErrorIs(t, err, ErrInvalidLinePosition)
	}
	cfg := DefaultConfig()
	cfg.MaxTrackAge = -1
	require.Error(t, cfg.Validate())
}

func TestDetectCrossing(t *testing.T) {
	cases := []struct {
		prev, cy  int
		crossed   bool
		direction Direction
	}{
		{355, 365, true, DirectionIncoming},
		{365, 355, true, DirectionOutgoing},
		{355, 360, true, DirectionIncoming},
		{365, 360, true, DirectionOutgoing},
		{360, 365, false, 0},
		{360, 355, false, 0},
		{360, 360, false, 0},
		{300, 340, false, 0},
		{400, 370, false, 0},
	}
	for _, c := range cases {
		d, ok := DetectCrossing(c.prev, c.cy, 360)
		require.Equal(t, c.crossed, ok, "%v -> %v", c.prev, c.cy)
		if ok {
			require.Equal(t, c.direction, d, "%v -> %v", c.prev, c.cy)
		}
	}
}

func TestFirstSightingNeverCounts(t *testing.T) {
	s := newTestSession(t)
	// Appears exactly on the line, and below it
	advance(s, obs(1, "car", 360), obs(2, "car", 500))
	require.Equal(t, uint64(0), s.Counts().Total())
	require.False(t, s.IsCounted(1))
	require.Equal(t, []int{360}, s.History(1))
}

func TestDirection(t *testing.T) {
	s := newTestSession(t)
	advance(s, obs(1, "car", 355), obs(2, "car", 365))
	r := advance(s, obs(1, "car", 365), obs(2, "car", 355))
	require.Len(t, r.Crossings, 2)
	require.Equal(t, uint64(1), r.Counts.Get(DirectionIncoming, CategoryCar))
	require.Equal(t, uint64(1), r.Counts.Get(DirectionOutgoing, CategoryCar))
	require.Equal(t, DirectionIncoming, *r.Flash)

	// Both sightings on the same side
	s.Reset()
	advance(s, obs(3, "car", 300))
	advance(s, obs(3, "car", 340))
	require.Equal(t, uint64(0), s.Counts().Total())
}

func TestSingleCount(t *testing.T) {
	s := newTestSession(t)
	ys := []int{340, 370, 340, 370, 340, 370, 340}
	for _, y := range ys {
		advance(s, obs(9, "truck", y))
	}
	c := s.Counts()
	require.Equal(t, uint64(1), c.Total())
	require.Equal(t, uint64(1), c.Get(DirectionIncoming, CategoryTruck))
	require.True(t, s.IsCounted(9))
}

func TestCategoryMapping(t *testing.T) {
	s := newTestSession(t)
	advance(s, obs(1, "motorcycle", 350), obs(2, "Bus", 350), obs(3, "drone", 350), obs(4, "CAR", 350), obs(5, "truck", 350))
	r := advance(s, obs(1, "motorcycle", 370), obs(2, "Bus", 370), obs(3, "drone", 370), obs(4, "CAR", 370), obs(5, "truck", 370))
	require.Len(t, r.Crossings, 4)
	require.Equal(t, uint64(1), r.Counts.Get(DirectionIncoming, CategoryBike))
	require.Equal(t, uint64(1), r.Counts.Get(DirectionIncoming, CategoryBus))
	require.Equal(t, uint64(1), r.Counts.Get(DirectionIncoming, CategoryCar))
	require.Equal(t, uint64(1), r.Counts.Get(DirectionIncoming, CategoryTruck))
	require.Equal(t, uint64(4), r.Counts.Total())

	// The drone is tracked but never counted, and not marked as counted either
	require.False(t, s.IsCounted(3))
	require.Equal(t, []int{350, 370}, s.History(3))
}

func TestMissingTrackID(t *testing.T) {
	s := newTestSession(t)
	advance(s, obs(NoTrack, "car", 340))
	r := advance(s, obs(NoTrack, "car", 380))
	require.Empty(t, r.Crossings)
	require.Len(t, r.Objects, 1)
	require.Equal(t, 0, s.NumTracks())
}

func TestDuplicateTrackIDInFrame(t *testing.T) {
	s := newTestSession(t)
	advance(s, obs(1, "car", 340))
	r := advance(s, obs(1, "car", 370), obs(1, "car", 340))
	require.Len(t, r.Crossings, 1)
	require.Len(t, r.Objects, 2)
	require.Equal(t, []int{340, 370}, s.History(1))
}

func TestHistoryCapped(t *testing.T) {
	s := newTestSession(t)
	for y := 100; y < 110; y++ {
		advance(s, obs(1, "car", y))
	}
	require.Equal(t, []int{105, 106, 107, 108, 109}, s.History(1))
}

func TestReset(t *testing.T) {
	s := newTestSession(t)
	advance(s, obs(1, "car", 340))
	advance(s, obs(1, "car", 370))
	require.Equal(t, uint64(1), s.Counts().Total())

	s.Reset()
	require.Equal(t, uint64(0), s.Counts().Total())
	require.Equal(t, 0, s.NumTracks())
	require.False(t, s.IsCounted(1))
	require.Equal(t, int64(0), s.FrameIndex())
	_, ok := s.LineY()
	require.False(t, ok)

	// Reset is idempotent
	s.Reset()
	require.Equal(t, Counts{}, s.Counts())

	// The same ID behaves like a brand new track after a reset
	r := advance(s, obs(1, "car", 370))
	require.Empty(t, r.Crossings)
	r = advance(s, obs(1, "car", 340))
	require.Len(t, r.Crossings, 1)
	require.Equal(t, DirectionOutgoing, r.Crossings[0].Direction)
}

// Track 17 enters above the line, crosses downward, then drifts back up.
// Track 22 crosses upward on the same frame as track 17's first crossing.
func TestScenario(t *testing.T) {
	s := newTestSession(t)

	r := advance(s, obs(17, "car", 300), obs(22, "bus", 400))
	require.Empty(t, r.Crossings)

	r = advance(s, obs(17, "car", 370), obs(22, "bus", 350))
	require.Len(t, r.Crossings, 2)
	require.Equal(t, Crossing{TrackID: 17, Label: "car", Category: CategoryCar, Direction: DirectionIncoming, Frame: 1, FromY: 300, ToY: 370}, r.Crossings[0])
	require.Equal(t, Crossing{TrackID: 22, Label: "bus", Category: CategoryBus, Direction: DirectionOutgoing, Frame: 1, FromY: 400, ToY: 350}, r.Crossings[1])
	require.Equal(t, 70, r.Crossings[0].Jump())

	r = advance(s, obs(17, "car", 340))
	require.Empty(t, r.Crossings)
	require.Nil(t, r.Flash)

	require.Equal(t, map[string]uint64{
		"Incoming_Car":   1,
		"Incoming_Bike":  0,
		"Incoming_Bus":   0,
		"Incoming_Truck": 0,
		"Outgoing_Car":   0,
		"Outgoing_Bike":  0,
		"Outgoing_Bus":   1,
		"Outgoing_Truck": 0,
	}, s.Export())
	require.Equal(t, []int{300, 370, 340}, s.History(17))
	require.Equal(t, []int64{17, 22}, s.TrackIDs())
}

func TestEviction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LinePosition = testLinePos
	cfg.MaxTrackAge = 3
	s, err := NewSession(cfg)
	require.NoError(t, err)

	advance(s, obs(1, "car", 340), obs(2, "car", 100))
	advance(s, obs(1, "car", 370), obs(2, "car", 100))
	require.True(t, s.IsCounted(1))

	// Track 2 keeps being seen, track 1 disappears
	for i := 0; i < 3; i++ {
		advance(s, obs(2, "car", 100))
	}
	require.Equal(t, 2, s.NumTracks())
	advance(s, obs(2, "car", 100))
	require.Equal(t, 1, s.NumTracks())
	require.Nil(t, s.History(1))
	require.True(t, s.IsCounted(1))
	// Counts are never rolled back by eviction
	require.Equal(t, uint64(1), s.Counts().Total())

	// Track 1 returns and crosses again, but was already counted
	advance(s, obs(1, "car", 340))
	r := advance(s, obs(1, "car", 370))
	require.Empty(t, r.Crossings)
	require.Equal(t, uint64(1), s.Counts().Total())
}

func TestCountedSurvivesLongAbsence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LinePosition = testLinePos
	s, err := NewSession(cfg)
	require.NoError(t, err)

	advance(s, obs(1, "car", 340))
	advance(s, obs(1, "car", 370))
	for i := 0; i <= DefaultMaxTrackAge; i++ {
		advance(s)
	}
	require.Equal(t, 0, s.NumTracks())

	advance(s, obs(1, "car", 340))
	advance(s, obs(1, "car", 370))
	require.Equal(t, uint64(1), s.Counts().Total())
	require.Equal(t, uint64(1), s.Counts().Get(DirectionIncoming, CategoryCar))
}

func TestAdvanceDrawsOverlay(t *testing.T) {
	s := newTestSession(t)
	img := image.NewRGBA(image.Rect(0, 0, 640, testHeight))
	s.Advance(img, []Observation{obs(1, "car", 340)})
	r := s.Advance(img, []Observation{obs(1, "car", 370)})
	require.Same(t, img, r.Frame)
	require.Equal(t, s.style.IncomingColor, img.RGBAAt(600, 360))
	require.True(t, r.Objects[0].Counted)
}
