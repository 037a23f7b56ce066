package server

import (
	"net/http"

	"github.com/cyclopcam/gatecount/server/pipeline"
	"github.com/julienschmidt/httprouter"
)

// httpCountsWebSocket streams frame summaries to the client.
// The first message is a snapshot of the current counts.
func (s *Server) httpCountsWebSocket(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	c, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Errorf("websocket upgrade failed: %v", err)
		return
	}
	defer c.Close()

	watcher := s.pipeline.AddWatcher()
	defer s.pipeline.RemoveWatcher(watcher)

	status := s.pipeline.Status()
	snapshot := &pipeline.FrameSummary{
		Event:       pipeline.EventSnapshot,
		SessionUUID: status.SessionUUID,
		Frame:       status.Frame,
		PTS:         status.PTS,
		Counts:      status.Counts,
	}
	if err := c.WriteJSON(snapshot); err != nil {
		return
	}

	// We don't expect any messages from the client, but we must read in order to notice when it goes away
	closed := make(chan bool)
	go func() {
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				close(closed)
				return
			}
		}
	}()

	for {
		select {
		case summary, ok := <-watcher:
			if !ok {
				return
			}
			if err := c.WriteJSON(summary); err != nil {
				s.Log.Infof("Counts websocket closed: %v", err)
				return
			}
		case <-closed:
			return
		}
	}
}
