package server

import (
	"embed"
	"net/http"
	"time"

	"github.com/cyclopcam/staticfiles"
	"github.com/cyclopcam/www"
	"github.com/go-chi/httprate"
	"github.com/julienschmidt/httprouter"
)

//go:embed static
var staticWWW embed.FS

func (s *Server) setupHttpRoutes() error {
	router := httprouter.New()

	limit := s.config.RateLimit

	// Every API route gets its own per-IP rate limiter
	handle := func(method, route string, h httprouter.Handle) {
		if limit.Requests <= 0 {
			www.Handle(s.Log, router, method, route, h)
			return
		}
		limited := httprate.Limit(limit.Requests, time.Duration(limit.WindowSeconds)*time.Second, httprate.WithKeyFuncs(httprate.KeyByIP))
		www.Handle(s.Log, router, method, route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			limited(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				h(w, r, params)
			})).ServeHTTP(w, r)
		})
	}

	handle("GET", "/api/ping", s.httpPing)
	handle("GET", "/api/counts", s.httpCounts)
	handle("GET", "/api/counts/chart", s.httpCountsChart)
	handle("GET", "/api/counts/chart.png", s.httpCountsChartPNG)
	handle("GET", "/api/session", s.httpSession)
	handle("POST", "/api/session/reset", s.httpSessionReset)
	handle("GET", "/api/sessions", s.httpSessions)
	handle("GET", "/api/sessions/:id/counts", s.httpSessionCounts)
	handle("GET", "/api/sessions/:id/report", s.httpSessionReport)
	handle("GET", "/api/frame/latest.jpg", s.httpLatestFrame)
	handle("GET", "/api/ws/counts", s.httpCountsWebSocket)

	static, err := staticfiles.NewCachedStaticFileServer(staticWWW, "static", []string{"/api/"}, s.Log, true, nil)
	if err != nil {
		s.Log.Warnf("Error in static files: %v", err)
	} else {
		router.NotFound = static
	}

	s.httpRouter = router
	return nil
}

func (s *Server) httpPing(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	type pingJSON struct {
		Time int64 `json:"time"`
	}
	www.SendJSON(w, &pingJSON{Time: time.Now().Unix()})
}
