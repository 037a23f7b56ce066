// Package countdb stores counting sessions and their crossings
package countdb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/gatecount/pkg/gate"
	"github.com/cyclopcam/logs"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("Not found")

type CountDB struct {
	Log logs.Log
	DB  *gorm.DB
}

// Open or create the counts DB
func Open(log logs.Log, config dbh.DBConfig) (*CountDB, error) {
	if config.Driver == dbh.DriverSqlite {
		if err := os.MkdirAll(filepath.Dir(config.Database), 0770); err != nil {
			return nil, fmt.Errorf("Failed to create DB directory for '%v': %w", config.Database, err)
		}
	}
	log.Infof("Opening counts DB (%v)", config.LogSafeDescription())
	db, err := dbh.OpenDB(log, config, Migrations(log), 0)
	if err != nil {
		return nil, fmt.Errorf("Failed to open counts database: %w", err)
	}
	return &CountDB{
		Log: log,
		DB:  db,
	}, nil
}

func (c *CountDB) Close() {
	if sqlDB, err := c.DB.DB(); err == nil {
		sqlDB.Close()
	}
}

// CreateSession records the start of a new session
func (c *CountDB) CreateSession(uuid, source string, startedAt time.Time) (*Session, error) {
	s := &Session{
		UUID:      uuid,
		Source:    source,
		StartedAt: dbh.MakeIntTime(startedAt),
		Counts:    &dbh.JSONField[map[string]uint64]{Data: gate.Counts{}.Export()},
	}
	if err := c.DB.Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// SetLineY records the gate line, which is only known once the first frame has been seen
func (c *CountDB) SetLineY(sessionID int64, lineY int) error {
	return c.DB.Model(&Session{}).Where("id = ?", sessionID).Update("line_y", lineY).Error
}

// AddCrossings records the crossings of one frame, in a single transaction
func (c *CountDB) AddCrossings(sessionID int64, crossings []gate.Crossing, at time.Time) error {
	if len(crossings) == 0 {
		return nil
	}
	rows := make([]Crossing, 0, len(crossings))
	for _, cr := range crossings {
		rows = append(rows, Crossing{
			SessionID: sessionID,
			Frame:     cr.Frame,
			TrackID:   cr.TrackID,
			Label:     cr.Label,
			Category:  cr.Category.String(),
			Direction: cr.Direction.String(),
			FromY:     cr.FromY,
			ToY:       cr.ToY,
			Time:      dbh.MakeIntTime(at),
		})
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
}

// FinishSession stores the final counts of a session
func (c *CountDB) FinishSession(sessionID int64, endedAt time.Time, frames int64, reason string, counts gate.Counts) error {
	return c.DB.Model(&Session{}).Where("id = ?", sessionID).Updates(map[string]any{
		"ended_at":   dbh.MakeIntTime(endedAt),
		"frames":     frames,
		"end_reason": reason,
		"counts":     &dbh.JSONField[map[string]uint64]{Data: counts.Export()},
	}).Error
}

// ListSessions returns the most recent sessions first
func (c *CountDB) ListSessions(limit int) ([]Session, error) {
	sessions := []Session{}
	q := c.DB.Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *CountDB) GetSession(sessionID int64) (*Session, error) {
	sessions := []Session{}
	if err := c.DB.Where("id = ?", sessionID).Find(&sessions).Error; err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, ErrNotFound
	}
	return &sessions[0], nil
}

func (c *CountDB) SessionCrossings(sessionID int64) ([]Crossing, error) {
	crossings := []Crossing{}
	if err := c.DB.Where("session_id = ?", sessionID).Order("id").Find(&crossings).Error; err != nil {
		return nil, err
	}
	return crossings, nil
}

// SessionCounts rebuilds the counts of a session from its crossings.
// This works for sessions that are still running, and for sessions that ended abruptly.
func (c *CountDB) SessionCounts(sessionID int64) (gate.Counts, error) {
	type cell struct {
		Direction string
		Category  string
		N         uint64
	}
	cells := []cell{}
	err := c.DB.Model(&Crossing{}).
		Select("direction, category, COUNT(*) AS n").
		Where("session_id = ?", sessionID).
		Group("direction, category").
		Scan(&cells).Error
	if err != nil {
		return gate.Counts{}, err
	}
	flat := map[string]uint64{}
	for _, cl := range cells {
		flat[cl.Direction+"_"+cl.Category] = cl.N
	}
	return gate.ParseExport(flat)
}
