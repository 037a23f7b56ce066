package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/gatecount/pkg/detect"
	"github.com/cyclopcam/gatecount/pkg/gate"
	"github.com/cyclopcam/gatecount/pkg/nn"
	"github.com/cyclopcam/gatecount/pkg/videosrc"
	"github.com/cyclopcam/gatecount/server/config"
	"github.com/cyclopcam/gatecount/server/countdb"
	"github.com/cyclopcam/gatecount/server/report"
	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

const (
	frameWidth  = 320
	frameHeight = 200 // line at 120 with the default position of 0.6
)

// A car moves down across the line on frame 2, and a bus moves up across it on frame 3
func testLabels() *nn.VideoLabels {
	obj := func(class int, track int64, y int32) nn.ObjectDetection {
		return nn.ObjectDetection{Class: class, Confidence: 0.9, Track: track, Box: nn.Rect{X: 50, Y: y, Width: 40, Height: 20}}
	}
	return &nn.VideoLabels{
		Classes: []string{"car", "bus"},
		Width:   frameWidth,
		Height:  frameHeight,
		Frames: []*nn.ImageLabels{
			{Frame: 0, Objects: []nn.ObjectDetection{obj(0, 1, 90)}},                  // cy 100
			{Frame: 1, Objects: []nn.ObjectDetection{obj(0, 1, 105)}},                 // cy 115
			{Frame: 2, Objects: []nn.ObjectDetection{obj(0, 1, 115), obj(1, 2, 140)}}, // car cy 125, bus cy 150
			{Frame: 3, Objects: []nn.ObjectDetection{obj(1, 2, 95)}},                  // bus cy 105
		},
	}
}

type testEnv struct {
	pipeline *Pipeline
	db       *countdb.CountDB
	exporter *report.Exporter
}

func setup(t *testing.T, adapter detect.Adapter) *testEnv {
	log := logs.NewTestingLog(t)
	db, err := countdb.Open(log, dbh.MakeSqliteConfig(filepath.Join(t.TempDir(), "counts.sqlite")))
	require.NoError(t, err)
	t.Cleanup(db.Close)
	store, err := report.NewStorage(log, config.StorageConfig{Filesystem: &config.StorageConfigFS{Root: t.TempDir()}})
	require.NoError(t, err)
	exporter := report.NewExporter(log, store)

	p, err := New(log, Config{Gate: gate.DefaultConfig(), Confidence: 0.5}, adapter, db, exporter)
	require.NoError(t, err)
	return &testEnv{pipeline: p, db: db, exporter: exporter}
}

func TestRunToEOF(t *testing.T) {
	env := setup(t, detect.NewReplayAdapter(testLabels()))
	p := env.pipeline
	watcher := p.AddWatcher()

	require.NoError(t, p.Start(videosrc.NewBlank("test:a", frameWidth, frameHeight, 5, 10)))
	require.NoError(t, p.Wait())

	status := p.Status()
	require.False(t, status.Running)
	require.Equal(t, "test:a", status.Source)
	require.Equal(t, int64(5), status.Frame)
	require.Equal(t, 120, status.LineY)
	require.Equal(t, uint64(1), status.Counts.Get(gate.DirectionIncoming, gate.CategoryCar))
	require.Equal(t, uint64(1), status.Counts.Get(gate.DirectionOutgoing, gate.CategoryBus))
	require.Equal(t, uint64(2), status.Counts.Total())
	require.NotNil(t, p.LatestFrame())

	// The session was finished in the DB and exported
	session, err := env.db.GetSession(status.SessionID)
	require.NoError(t, err)
	require.Equal(t, EndReasonEOF, session.EndReason)
	require.Equal(t, int64(5), session.Frames)
	require.Equal(t, 120, session.LineY)
	require.Equal(t, status.Counts.Export(), session.Counts.Data)
	crossings, err := env.db.SessionCrossings(status.SessionID)
	require.NoError(t, err)
	require.Len(t, crossings, 2)

	r, err := env.exporter.Read(status.SessionUUID)
	require.NoError(t, err)
	require.Equal(t, uint64(2), r.Total)
	require.Equal(t, uint64(1), r.ByCategory["Car"])

	// Watchers see the session start, both crossings, and the session end
	p.Close()
	events := []SummaryEvent{}
	nCrossings := 0
	for s := range watcher {
		events = append(events, s.Event)
		nCrossings += len(s.Crossings)
	}
	require.Equal(t, EventSessionEnd, events[len(events)-1])
	require.Equal(t, 2, nCrossings)
}

func TestResetAfterEOF(t *testing.T) {
	env := setup(t, detect.NewReplayAdapter(testLabels()))
	p := env.pipeline
	require.NoError(t, p.Start(videosrc.NewBlank("test:a", frameWidth, frameHeight, 5, 10)))
	require.NoError(t, p.Wait())
	first := p.Status()

	p.RequestReset()
	second := p.Status()
	require.NotEqual(t, first.SessionUUID, second.SessionUUID)
	require.Equal(t, uint64(0), second.Counts.Total())
	require.Equal(t, "test:a", second.Source)
	require.False(t, second.HasLine)
	require.Nil(t, p.LatestFrame())
}

func TestNewSourceStartsNewSession(t *testing.T) {
	env := setup(t, detect.NewReplayAdapter(testLabels()))
	p := env.pipeline

	// Only the first three frames: the car crosses, but the bus does not
	require.NoError(t, p.Start(videosrc.NewBlank("test:a", frameWidth, frameHeight, 3, 10)))
	require.NoError(t, p.Wait())
	first := p.Status()
	require.Equal(t, uint64(1), first.Counts.Total())

	require.NoError(t, p.Start(videosrc.NewBlank("test:b", frameWidth, frameHeight, 5, 10)))
	require.NoError(t, p.Wait())
	second := p.Status()
	require.NotEqual(t, first.SessionUUID, second.SessionUUID)
	require.Equal(t, "test:b", second.Source)
	require.Equal(t, uint64(2), second.Counts.Total())

	sessions, err := env.db.ListSessions(10)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
}

type failingAdapter struct {
	inner     detect.Adapter
	failFrame int64
}

var errDetector = errors.New("detector exploded")

func (f *failingAdapter) Detect(ctx context.Context, frame *videosrc.Frame, threshold float32) ([]gate.Observation, error) {
	if frame.Index == f.failFrame {
		return nil, errDetector
	}
	return f.inner.Detect(ctx, frame, threshold)
}

func (f *failingAdapter) Reset() { f.inner.Reset() }
func (f *failingAdapter) Close() { f.inner.Close() }

func TestDetectorFailureIsFatal(t *testing.T) {
	env := setup(t, &failingAdapter{inner: detect.NewReplayAdapter(testLabels()), failFrame: 3})
	p := env.pipeline
	require.NoError(t, p.Start(videosrc.NewBlank("test:a", frameWidth, frameHeight, 5, 10)))
	err := p.Wait()
	require.ErrorIs(t, err, errDetector)

	// Frames before the failure are kept. The failed frame is not applied.
	status := p.Status()
	require.False(t, status.Running)
	require.Equal(t, int64(3), status.Frame)
	require.Equal(t, uint64(1), status.Counts.Total())
	require.Contains(t, status.Error, "detector exploded")

	session, err := env.db.GetSession(status.SessionID)
	require.NoError(t, err)
	require.Contains(t, session.EndReason, EndReasonFailure)
}

func TestStartWhileRunning(t *testing.T) {
	env := setup(t, detect.NewReplayAdapter(testLabels()))
	p := env.pipeline
	require.NoError(t, p.Start(videosrc.NewBlank("test:a", frameWidth, frameHeight, 100000, 10)))
	err := p.Start(videosrc.NewBlank("test:a", frameWidth, frameHeight, 1, 10))
	require.ErrorIs(t, err, ErrAlreadyRunning)
	p.Stop()
	require.NoError(t, p.Err())
	require.False(t, p.Status().Running)
}

func TestTiming(t *testing.T) {
	env := setup(t, detect.NewReplayAdapter(testLabels()))
	p := env.pipeline
	require.NoError(t, p.Start(videosrc.NewBlank("test:a", frameWidth, frameHeight, 4, 10)))
	require.NoError(t, p.Wait())
	timing := p.Status().Timing
	require.Equal(t, int64(4), timing.Read.Samples)
	require.Equal(t, int64(4), timing.Detect.Samples)
	require.Equal(t, int64(4), timing.Count.Samples)
	require.GreaterOrEqual(t, timing.Count.MaxMS, timing.Count.MinMS)
}
