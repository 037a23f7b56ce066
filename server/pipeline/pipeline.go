// Package pipeline runs the frame loop: read a frame, detect, count, publish
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cyclopcam/gatecount/pkg/detect"
	"github.com/cyclopcam/gatecount/pkg/gate"
	"github.com/cyclopcam/gatecount/pkg/perfstats"
	"github.com/cyclopcam/gatecount/pkg/videosrc"
	"github.com/cyclopcam/gatecount/server/countdb"
	"github.com/cyclopcam/gatecount/server/report"
	"github.com/cyclopcam/logs"
	"github.com/google/uuid"
)

var ErrAlreadyRunning = errors.New("Pipeline is already running")

// Reasons for a session to end
const (
	EndReasonEOF     = "eof"
	EndReasonReset   = "reset"
	EndReasonSource  = "source changed"
	EndReasonClosed  = "closed"
	EndReasonFailure = "error"
)

type Config struct {
	Gate       gate.Config
	Confidence float32
}

// Status is a snapshot of the pipeline, for API consumers
type Status struct {
	SessionUUID string      `json:"sessionUUID"`
	SessionID   int64       `json:"sessionID"` // Database ID. Zero if there is no database.
	Source      string      `json:"source"`
	StartedAt   time.Time   `json:"startedAt"`
	Running     bool        `json:"running"`
	Frame       int64       `json:"frame"` // Frames counted in this session
	PTS         float64     `json:"pts"`   // Seconds into the source
	LineY       int         `json:"lineY"`
	HasLine     bool        `json:"hasLine"`
	NumTracks   int         `json:"numTracks"`
	Counts      gate.Counts `json:"counts"`
	Timing      Timing      `json:"timing"`
	Error       string      `json:"error,omitempty"`
}

// Timing of the stages of the frame loop, for the current session
type Timing struct {
	Read   perfstats.Summary `json:"read"`
	Detect perfstats.Summary `json:"detect"`
	Count  perfstats.Summary `json:"count"` // Counting and drawing the overlay
}

type stageTimes struct {
	read   perfstats.TimeAccumulator
	detect perfstats.TimeAccumulator
	count  perfstats.TimeAccumulator
}

type sessionInfo struct {
	uuid      string
	dbID      int64
	source    string
	startedAt time.Time
}

type Pipeline struct {
	Log      logs.Log
	config   Config
	adapter  detect.Adapter
	session  *gate.Session
	db       *countdb.CountDB // May be nil
	exporter *report.Exporter // May be nil

	times stageTimes // Owned by the loop while it runs

	mustStop       atomic.Bool // True if Stop() has been called
	resetRequested atomic.Bool // Applied by the loop between frames
	looperStopped  chan bool   // When looperStopped is closed, the loop has stopped

	// Guards everything below, and the transition between running and stopped
	lock      sync.Mutex
	running   bool
	active    *sessionInfo // nil when there is no open session
	status    Status
	lastFrame *image.RGBA
	err       error
	lastErrAt time.Time

	watchersLock sync.RWMutex
	watchers     []chan *FrameSummary
	lastSentAt   time.Time
}

// New creates a pipeline. db and exporter are optional.
func New(log logs.Log, config Config, adapter detect.Adapter, db *countdb.CountDB, exporter *report.Exporter) (*Pipeline, error) {
	session, err := gate.NewSession(config.Gate)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		Log:           log,
		config:        config,
		adapter:       adapter,
		session:       session,
		db:            db,
		exporter:      exporter,
		looperStopped: make(chan bool),
	}
	close(p.looperStopped)
	return p, nil
}

// Start counting frames from src, on a background goroutine.
// A source with a different ID to the current session starts a new session.
// The pipeline takes ownership of src, and closes it when the loop exits.
func (p *Pipeline) Start(src videosrc.Source) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.running {
		return ErrAlreadyRunning
	}
	if p.active != nil && p.active.source != src.ID() {
		p.finishSession(EndReasonSource)
	}
	if p.active == nil {
		p.beginSession(src.ID())
	}
	p.err = nil
	p.status.Error = ""
	p.running = true
	p.status.Running = true
	p.mustStop.Store(false)
	p.looperStopped = make(chan bool)
	go p.loop(src)
	return nil
}

// Stop the loop after the frame in progress, and wait for it to exit.
// The session stays open, so that Start() with the same source carries on counting.
func (p *Pipeline) Stop() {
	p.mustStop.Store(true)
	<-p.stoppedChan()
}

// Wait for the loop to exit, and return the error that stopped it, if any
func (p *Pipeline) Wait() error {
	<-p.stoppedChan()
	return p.Err()
}

// Close stops the loop, finishes the open session, and closes the detector
func (p *Pipeline) Close() {
	p.Log.Infof("Pipeline shutting down")
	p.Stop()
	p.lock.Lock()
	if p.active != nil {
		p.finishSession(EndReasonClosed)
	}
	p.lock.Unlock()
	p.adapter.Close()
	p.closeWatchers()
	p.Log.Infof("Pipeline is closed")
}

// Err returns the error that stopped the loop
func (p *Pipeline) Err() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.err
}

// RequestReset discards all counts and tracks, and starts a new session.
// If the loop is running, the reset happens between frames.
func (p *Pipeline) RequestReset() {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.running {
		p.resetRequested.Store(true)
		return
	}
	p.resetLocked()
}

func (p *Pipeline) resetLocked() {
	source := ""
	if p.active != nil {
		source = p.active.source
		p.finishSession(EndReasonReset)
	} else {
		source = p.status.Source
	}
	p.beginSession(source)
}

// Status returns a snapshot of the pipeline state
func (p *Pipeline) Status() Status {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.status
}

// LatestFrame returns the most recent annotated frame, or nil.
// The caller must not modify it.
func (p *Pipeline) LatestFrame() *image.RGBA {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.lastFrame
}

func (p *Pipeline) stoppedChan() chan bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.looperStopped
}

// Loop runs until the source is exhausted, an error occurs, or Stop() is called
func (p *Pipeline) loop(src videosrc.Source) {
	defer close(p.looperStopped)
	defer src.Close()

	// Detection is never cancelled midway. Stop is only honoured between frames.
	ctx := context.Background()
	var loopErr error
	eof := false

	for !p.mustStop.Load() {
		if p.resetRequested.Swap(false) {
			p.lock.Lock()
			p.Log.Infof("Pipeline: resetting session")
			p.resetLocked()
			p.lock.Unlock()
		}

		start := time.Now()
		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			eof = true
			break
		} else if err != nil {
			loopErr = fmt.Errorf("Error reading frame from '%v': %w", src.ID(), err)
			break
		}

		p.times.read.Since(start)

		start = time.Now()
		observations, err := p.adapter.Detect(ctx, frame, p.config.Confidence)
		if err != nil {
			// Detector failure is fatal for the session. The frame is not applied.
			loopErr = err
			break
		}
		p.times.detect.Since(start)

		start = time.Now()
		result := p.session.Advance(frame.Image, observations)
		p.times.count.Since(start)
		p.commit(frame, &result)
	}

	p.lock.Lock()
	defer p.lock.Unlock()
	p.running = false
	p.status.Running = false
	if loopErr != nil {
		p.Log.Errorf("Pipeline: %v", loopErr)
		p.err = loopErr
		p.status.Error = loopErr.Error()
		p.finishSession(EndReasonFailure + ": " + loopErr.Error())
	} else if eof {
		p.Log.Infof("Pipeline: source '%v' finished after %v frames", src.ID(), p.session.FrameIndex())
		p.finishSession(EndReasonEOF)
	}
	// A reset that arrived after the last frame
	if p.resetRequested.Swap(false) {
		p.resetLocked()
	}
}

// commit publishes the result of one frame
func (p *Pipeline) commit(frame *videosrc.Frame, result *gate.FrameResult) {
	p.lock.Lock()
	info := p.active
	p.status.Frame = result.Index + 1
	p.status.PTS = frame.PTS.Seconds()
	p.status.LineY = result.LineY
	p.status.HasLine = true
	p.status.NumTracks = p.session.NumTracks()
	p.status.Counts = result.Counts
	p.status.Timing = Timing{
		Read:   p.times.read.Summary(),
		Detect: p.times.detect.Summary(),
		Count:  p.times.count.Summary(),
	}
	p.lastFrame = result.Frame
	p.lock.Unlock()

	if info == nil {
		return
	}
	if p.db != nil {
		if result.Index == 0 {
			p.logDBError(p.db.SetLineY(info.dbID, result.LineY))
		}
		p.logDBError(p.db.AddCrossings(info.dbID, result.Crossings, time.Now()))
	}

	for _, c := range result.Crossings {
		p.Log.Debugf("Pipeline: %v #%v %v at frame %v (%v -> %v)", c.Label, c.TrackID, c.Direction, c.Frame, c.FromY, c.ToY)
	}

	p.sendToWatchers(&FrameSummary{
		Event:       EventFrame,
		SessionUUID: info.uuid,
		Frame:       result.Index,
		PTS:         frame.PTS.Seconds(),
		Counts:      result.Counts,
		Crossings:   result.Crossings,
	}, len(result.Crossings) != 0)
}

func (p *Pipeline) logDBError(err error) {
	if err == nil {
		return
	}
	if time.Since(p.lastErrAt) > 15*time.Second {
		p.Log.Errorf("Pipeline: error writing to counts DB: %v", err)
		p.lastErrAt = time.Now()
	}
}

// beginSession must be called with the lock held
func (p *Pipeline) beginSession(source string) {
	p.session.Reset()
	p.adapter.Reset()
	p.times = stageTimes{}
	info := &sessionInfo{
		uuid:      uuid.New().String(),
		source:    source,
		startedAt: time.Now(),
	}
	if p.db != nil {
		rec, err := p.db.CreateSession(info.uuid, source, info.startedAt)
		if err != nil {
			p.Log.Errorf("Pipeline: failed to create DB session: %v", err)
		} else {
			info.dbID = rec.ID
		}
	}
	p.active = info
	p.lastFrame = nil
	p.status = Status{
		SessionUUID: info.uuid,
		SessionID:   info.dbID,
		Source:      source,
		StartedAt:   info.startedAt,
		Running:     p.running,
		Error:       p.status.Error,
	}
	p.Log.Infof("Pipeline: session %v started on '%v'", info.uuid, source)
	p.sendToWatchers(&FrameSummary{Event: EventSessionStart, SessionUUID: info.uuid, Counts: gate.Counts{}}, true)
}

// finishSession must be called with the lock held
func (p *Pipeline) finishSession(reason string) {
	info := p.active
	if info == nil {
		return
	}
	p.active = nil
	endedAt := time.Now()
	counts := p.session.Counts()
	frames := p.session.FrameIndex()
	lineY, _ := p.session.LineY()

	p.Log.Infof("Pipeline: session %v ended (%v). Counts: %v", info.uuid, reason, counts.Export())

	if p.db != nil && info.dbID != 0 {
		p.logDBError(p.db.FinishSession(info.dbID, endedAt, frames, reason, counts))
	}
	if p.exporter != nil {
		r := &report.Report{
			UUID:       info.uuid,
			Source:     info.source,
			StartedAt:  info.startedAt.UTC(),
			EndedAt:    endedAt.UTC(),
			EndReason:  reason,
			Frames:     frames,
			LineY:      lineY,
			Total:      counts.Total(),
			Counts:     counts.Export(),
			ByCategory: counts.ExportByCategory(),
		}
		if err := p.exporter.Write(r); err != nil {
			p.Log.Errorf("Pipeline: %v", err)
		}
		if err := p.exporter.WriteChart(info.uuid, counts); err != nil {
			p.Log.Errorf("Pipeline: %v", err)
		}
		if p.lastFrame != nil {
			if err := p.exporter.WriteSnapshot(info.uuid, p.lastFrame); err != nil {
				p.Log.Errorf("Pipeline: failed to write snapshot of session %v: %v", info.uuid, err)
			}
		}
	}
	p.sendToWatchers(&FrameSummary{Event: EventSessionEnd, SessionUUID: info.uuid, Frame: frames, Counts: counts}, true)
}
