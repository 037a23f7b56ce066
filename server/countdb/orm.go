package countdb

import (
	"github.com/cyclopcam/dbh"
)

// BaseModel is our base class for a GORM model.
// The default GORM Model uses int, but we prefer int64
type BaseModel struct {
	ID int64 `gorm:"primaryKey" json:"id"`
}

// A Session is one uninterrupted count of one video source
type Session struct {
	BaseModel
	UUID      string                            `json:"uuid"`
	Source    string                            `json:"source"`    // ID of the video source
	StartedAt dbh.IntTime                       `json:"startedAt"` //
	EndedAt   dbh.IntTime                       `json:"endedAt"`   // Zero while the session is running
	LineY     int                               `json:"lineY"`     // Gate line, in pixels of the counted frame
	Frames    int64                             `json:"frames"`    // Number of frames counted
	EndReason string                            `json:"endReason"` // eg "eof", "reset", "stopped", or an error message
	Counts    *dbh.JSONField[map[string]uint64] `json:"counts"`    // Flat counts, updated when the session finishes
}

// A Crossing is one vehicle that crossed the gate line
type Crossing struct {
	BaseModel
	SessionID int64       `json:"sessionID"`
	Frame     int64       `json:"frame"`
	TrackID   int64       `json:"trackID"`
	Label     string      `json:"label"`     // Raw detector label
	Category  string      `json:"category"`  // Car, Bike, Bus, Truck
	Direction string      `json:"direction"` // Incoming, Outgoing
	FromY     int         `json:"fromY"`
	ToY       int         `json:"toY"`
	Time      dbh.IntTime `json:"time"` // Wall clock time when the crossing was recorded
}
