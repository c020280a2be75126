package model

import (
	"database/sql"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Session{},
	&ZoneDef{},
	&ExitDef{},
	&FrameRecord{},
	&ZoneSample{},
	&StatusSnapshot{},
}

////////////////////////
// SESSION MODELS
////////////////////////

// Session is one monitoring run over a video source
type Session struct {
	ID        string         `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
	Name      string         `json:"name" gorm:"size:200"`
	Source    string         `json:"source" gorm:"size:255"`
	StartTime time.Time      `json:"startTime" gorm:"index:idx_session_start"`
	EndTime   sql.NullTime   `json:"endTime"`
	Layout    datatypes.JSON `json:"layout"`

	Zones []ZoneDef `json:"zones" gorm:"foreignKey:SessionID"`
	Exits []ExitDef `json:"exits" gorm:"foreignKey:SessionID"`
}

func (*Session) TableName() string {
	return "sessions"
}

// ZoneDef is a zone as configured when the session started
type ZoneDef struct {
	ID        uint    `json:"-" gorm:"primarykey;autoIncrement"`
	SessionID string  `json:"sessionId" gorm:"size:36;index:idx_zone_def_session"`
	ZoneID    string  `json:"zoneId" gorm:"size:64"`
	Name      string  `json:"name" gorm:"size:127"`
	Position  int     `json:"position"` // declaration order, first match wins
	Area      float64 `json:"area"`
	Polygon   string  `json:"polygon"` // WKT, normalized coordinates
}

func (*ZoneDef) TableName() string {
	return "zone_defs"
}

// ExitDef is an exit as configured when the session started
type ExitDef struct {
	ID        uint    `json:"-" gorm:"primarykey;autoIncrement"`
	SessionID string  `json:"sessionId" gorm:"size:36;index:idx_exit_def_session"`
	ExitID    string  `json:"exitId" gorm:"size:64"`
	Name      string  `json:"name" gorm:"size:127"`
	Position  int     `json:"position"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Capacity  float64 `json:"capacity"`
	Status    string  `json:"status" gorm:"size:16"`
}

func (*ExitDef) TableName() string {
	return "exit_defs"
}

////////////////////////
// RECORDING MODELS
////////////////////////

// FrameRecord is the aggregate state of one processed frame
type FrameRecord struct {
	ID           uint           `json:"-" gorm:"primarykey;autoIncrement"`
	Time         time.Time      `json:"time"`
	SessionID    string         `json:"sessionId" gorm:"size:36;index:idx_frame_session"`
	FrameNumber  int64          `json:"frame"`
	TotalPeople  int            `json:"totalPeople"`
	GlobalStatus string         `json:"globalStatus" gorm:"size:16"`
	AlarmLevel   string         `json:"alarmLevel" gorm:"size:16"`
	Counts       datatypes.JSON `json:"zoneCounts"`
	Densities    datatypes.JSON `json:"zoneDensities"`
	Statuses     datatypes.JSON `json:"zoneStatuses"`
}

func (*FrameRecord) TableName() string {
	return "frame_records"
}

// ZoneSample is the state of one zone in one processed frame
type ZoneSample struct {
	ID               uint      `json:"-" gorm:"primarykey;autoIncrement"`
	Time             time.Time `json:"time"`
	SessionID        string    `json:"sessionId" gorm:"size:36;index:idx_zone_sample_session"`
	FrameNumber      int64     `json:"frame"`
	ZoneID           string    `json:"zoneId" gorm:"size:64;index:idx_zone_sample_zone"`
	Count            int       `json:"count"`
	Density          float64   `json:"density"`
	Status           string    `json:"status" gorm:"size:16"`
	EmergencySeconds float64   `json:"emergencySeconds"`
}

func (*ZoneSample) TableName() string {
	return "zone_samples"
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// StatusSnapshot is written periodically by the status monitor
type StatusSnapshot struct {
	ID           uint           `json:"-" gorm:"primarykey;autoIncrement"`
	Time         time.Time      `json:"time" gorm:"index:idx_status_time"`
	SessionID    string         `json:"sessionId" gorm:"size:36"`
	FrameNumber  int64          `json:"frame"`
	GlobalStatus string         `json:"globalStatus" gorm:"size:16"`
	TotalPeople  int            `json:"totalPeople"`
	ActiveTimers datatypes.JSON `json:"activeTimers"`
}

func (*StatusSnapshot) TableName() string {
	return "status_snapshots"
}
