// Package report publishes the counts of finished sessions to blob storage
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	"github.com/cyclopcam/gatecount/pkg/gate"
	"github.com/cyclopcam/logs"
)

// Report is the document written for each session
type Report struct {
	UUID       string            `json:"uuid"`
	Source     string            `json:"source"`
	StartedAt  time.Time         `json:"startedAt"`
	EndedAt    time.Time         `json:"endedAt"`
	EndReason  string            `json:"endReason"`
	Frames     int64             `json:"frames"`
	LineY      int               `json:"lineY"`
	Total      uint64            `json:"total"`
	Counts     map[string]uint64 `json:"counts"`     // eg "Incoming_Car": 3
	ByCategory map[string]uint64 `json:"byCategory"` // eg "Car": 5
}

type Exporter struct {
	log   logs.Log
	store Storage
}

func NewExporter(log logs.Log, store Storage) *Exporter {
	return &Exporter{
		log:   log,
		store: store,
	}
}

func countsName(uuid string) string {
	return "sessions/" + uuid + "/counts.json"
}

func snapshotName(uuid string) string {
	return "sessions/" + uuid + "/last-frame.jpg"
}

func chartName(uuid string) string {
	return "sessions/" + uuid + "/counts.png"
}

// Write stores the report as sessions/<uuid>/counts.json
func (e *Exporter) Write(r *Report) error {
	b, err := json.MarshalIndent(r, "", "\t")
	if err != nil {
		return err
	}
	if err := WriteFile(e.store, countsName(r.UUID), bytes.NewReader(b)); err != nil {
		return fmt.Errorf("Failed to write report for session %v: %w", r.UUID, err)
	}
	e.log.Infof("Report: session %v written (%v crossings)", r.UUID, r.Total)
	return nil
}

// WriteSnapshot stores the last annotated frame of a session, next to its report
func (e *Exporter) WriteSnapshot(uuid string, img image.Image) error {
	buf := bytes.Buffer{}
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return err
	}
	return WriteFile(e.store, snapshotName(uuid), &buf)
}

// WriteChart stores a bar chart of the session's counts, next to its report
func (e *Exporter) WriteChart(uuid string, counts gate.Counts) error {
	png, err := CountsChartPNG("Session "+uuid, counts)
	if err != nil {
		return fmt.Errorf("Failed to render chart for session %v: %w", uuid, err)
	}
	return WriteFile(e.store, chartName(uuid), bytes.NewReader(png))
}

// Read loads a report written by Write
func (e *Exporter) Read(uuid string) (*Report, error) {
	b, err := ReadFile(e.store, countsName(uuid))
	if err != nil {
		return nil, err
	}
	r := &Report{}
	if err := json.Unmarshal(b, r); err != nil {
		return nil, fmt.Errorf("Invalid report for session %v: %w", uuid, err)
	}
	return r, nil
}

// URL returns a public URL of a session's report, if the store has one
func (e *Exporter) URL(uuid string) (string, error) {
	return e.store.URL(countsName(uuid))
}
