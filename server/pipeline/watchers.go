package pipeline

import (
	"slices"
	"time"

	"github.com/cyclopcam/gatecount/pkg/gate"
)

// SYNC-WATCHER-CHANNEL-SIZE
const WatcherChannelSize = 100

// Frames without crossings are sent to watchers at most this often
const HeartbeatInterval = time.Second

type SummaryEvent string

const (
	EventFrame        SummaryEvent = "frame"
	EventSessionStart SummaryEvent = "sessionStart"
	EventSessionEnd   SummaryEvent = "sessionEnd"
	EventSnapshot     SummaryEvent = "snapshot" // First message to a new websocket client
)

// FrameSummary is what watchers receive
type FrameSummary struct {
	Event       SummaryEvent    `json:"event"`
	SessionUUID string          `json:"sessionUUID"`
	Frame       int64           `json:"frame"`
	PTS         float64         `json:"pts"` // Seconds
	Counts      gate.Counts     `json:"counts"`
	Crossings   []gate.Crossing `json:"crossings,omitempty"`
}

// Register to receive frame summaries
func (p *Pipeline) AddWatcher() chan *FrameSummary {
	p.watchersLock.Lock()
	defer p.watchersLock.Unlock()
	ch := make(chan *FrameSummary, WatcherChannelSize)
	p.watchers = append(p.watchers, ch)
	return ch
}

// Unregister a watcher. The channel is closed.
func (p *Pipeline) RemoveWatcher(ch chan *FrameSummary) {
	p.watchersLock.Lock()
	defer p.watchersLock.Unlock()
	for i, w := range p.watchers {
		if w == ch {
			p.watchers = slices.Delete(p.watchers, i, i+1)
			close(ch)
			return
		}
	}
	p.Log.Warnf("Pipeline.RemoveWatcher failed to find channel")
}

func (p *Pipeline) closeWatchers() {
	p.watchersLock.Lock()
	defer p.watchersLock.Unlock()
	for _, ch := range p.watchers {
		close(ch)
	}
	p.watchers = nil
}

// Send a summary to all watchers. Unless 'always' is true, summaries are rate limited to HeartbeatInterval.
func (p *Pipeline) sendToWatchers(s *FrameSummary, always bool) {
	p.watchersLock.Lock()
	defer p.watchersLock.Unlock()
	if !always && time.Since(p.lastSentAt) < HeartbeatInterval {
		return
	}
	p.lastSentAt = time.Now()
	for _, ch := range p.watchers {
		// SYNC-WATCHER-CHANNEL-SIZE
		if len(ch) >= cap(ch)*9/10 {
			// A stalled watcher must not stall the counting loop, so we drop summaries
			p.Log.Warnf("Pipeline watcher is falling behind. Dropping frame summary.")
		} else {
			ch <- s
		}
	}
}
