package server

import (
	"errors"
	"net/http"

	"github.com/cyclopcam/gatecount/server/countdb"
	"github.com/cyclopcam/gatecount/server/report"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
)

const maxSessionsList = 1000

type sessionJSON struct {
	ID        int64             `json:"id"`
	UUID      string            `json:"uuid"`
	Source    string            `json:"source"`
	StartedAt int64             `json:"startedAt"`         // Unix milliseconds
	EndedAt   int64             `json:"endedAt,omitempty"` // Unix milliseconds. Zero if the session is still open.
	LineY     int               `json:"lineY"`
	Frames    int64             `json:"frames"`
	EndReason string            `json:"endReason,omitempty"`
	Counts    map[string]uint64 `json:"counts,omitempty"`
}

func makeSessionJSON(s *countdb.Session) *sessionJSON {
	j := &sessionJSON{
		ID:        s.ID,
		UUID:      s.UUID,
		Source:    s.Source,
		StartedAt: s.StartedAt.Get().UnixMilli(),
		LineY:     s.LineY,
		Frames:    s.Frames,
		EndReason: s.EndReason,
	}
	if s.EndedAt != 0 {
		j.EndedAt = s.EndedAt.Get().UnixMilli()
	}
	if s.Counts != nil {
		j.Counts = s.Counts.Data
	}
	return j
}

func (s *Server) requireDB() *countdb.CountDB {
	if s.countDB == nil {
		www.PanicServerError("No counts database is configured")
	}
	return s.countDB
}

func (s *Server) httpSessions(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	db := s.requireDB()
	limit := www.QueryInt(r, "limit")
	if limit <= 0 || limit > maxSessionsList {
		limit = 100
	}
	sessions, err := db.ListSessions(limit)
	www.Check(err)
	out := []*sessionJSON{}
	for i := range sessions {
		out = append(out, makeSessionJSON(&sessions[i]))
	}
	www.CacheNever(w)
	www.SendJSON(w, out)
}

func (s *Server) getSession(params httprouter.Params) *countdb.Session {
	db := s.requireDB()
	id := www.ParseID(params.ByName("id"))
	session, err := db.GetSession(id)
	if errors.Is(err, countdb.ErrNotFound) {
		www.PanicNotFound()
	}
	www.Check(err)
	return session
}

// httpSessionCounts returns the flat counts of a session.
// Finished sessions return the stored counts. Open sessions are rebuilt from their crossings.
func (s *Server) httpSessionCounts(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	session := s.getSession(params)
	if session.EndedAt != 0 && session.Counts != nil {
		www.SendJSON(w, session.Counts.Data)
		return
	}
	counts, err := s.countDB.SessionCounts(session.ID)
	www.Check(err)
	www.CacheNever(w)
	www.SendJSON(w, counts.Export())
}

func (s *Server) httpSessionReport(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	session := s.getSession(params)
	if s.exporter == nil {
		www.PanicNotFound()
	}
	url, err := s.exporter.URL(session.UUID)
	if errors.Is(err, report.ErrNoPublicUrl) {
		www.PanicBadRequestf("Reports are not publicly accessible")
	}
	www.Check(err)
	type reportJSON struct {
		URL string `json:"url"`
	}
	www.SendJSON(w, &reportJSON{URL: url})
}
