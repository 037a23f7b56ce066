package server

import (
	"image/jpeg"
	"net/http"

	"github.com/cyclopcam/gatecount/pkg/gate"
	"github.com/cyclopcam/gatecount/server/report"
	"github.com/cyclopcam/www"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/julienschmidt/httprouter"
)

type countsJSON struct {
	SessionUUID string            `json:"sessionUUID"`
	Frame       int64             `json:"frame"`
	Counts      map[string]uint64 `json:"counts"`     // eg "Incoming_Car": 3
	ByCategory  map[string]uint64 `json:"byCategory"` // eg "Car": 5
	Incoming    uint64            `json:"incoming"`
	Outgoing    uint64            `json:"outgoing"`
	Total       uint64            `json:"total"`
}

func makeCountsJSON(uuid string, frame int64, c gate.Counts) *countsJSON {
	return &countsJSON{
		SessionUUID: uuid,
		Frame:       frame,
		Counts:      c.Export(),
		ByCategory:  c.ExportByCategory(),
		Incoming:    c.Direction(gate.DirectionIncoming),
		Outgoing:    c.Direction(gate.DirectionOutgoing),
		Total:       c.Total(),
	}
}

func (s *Server) httpCounts(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	status := s.pipeline.Status()
	www.CacheNever(w)
	www.SendJSON(w, makeCountsJSON(status.SessionUUID, status.Frame, status.Counts))
}

// httpCountsChart renders incoming vs outgoing per category as an HTML bar chart
func (s *Server) httpCountsChart(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	status := s.pipeline.Status()
	bar := countsChart(status.SessionUUID, status.Counts)
	www.CacheNever(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	www.Check(bar.Render(w))
}

// httpCountsChartPNG is the same chart as a static image, as stored with each session report
func (s *Server) httpCountsChartPNG(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	status := s.pipeline.Status()
	png, err := report.CountsChartPNG("Session "+status.SessionUUID, status.Counts)
	www.Check(err)
	www.CacheNever(w)
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

func countsChart(sessionUUID string, counts gate.Counts) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Vehicle counts", Subtitle: "Session " + sessionUUID}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	categories := []string{}
	for _, cat := range gate.Categories {
		categories = append(categories, cat.String())
	}
	bar.SetXAxis(categories)
	for _, dir := range gate.Directions {
		data := []opts.BarData{}
		for _, cat := range gate.Categories {
			data = append(data, opts.BarData{Value: counts.Get(dir, cat)})
		}
		bar.AddSeries(dir.String(), data, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true)}))
	}
	return bar
}

func (s *Server) httpSession(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.CacheNever(w)
	www.SendJSON(w, s.pipeline.Status())
}

func (s *Server) httpSessionReset(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	s.Log.Infof("Session reset requested by %v", r.RemoteAddr)
	s.pipeline.RequestReset()
	www.SendOK(w)
}

func (s *Server) httpLatestFrame(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	img := s.pipeline.LatestFrame()
	if img == nil {
		www.PanicNotFound()
	}
	www.CacheNever(w)
	w.Header().Set("Content-Type", "image/jpeg")
	www.Check(jpeg.Encode(w, img, &jpeg.Options{Quality: 85}))
}
