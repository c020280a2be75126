// Package convert turns core session and frame types into GORM rows.
package convert

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/crowdeval/crowdeval/internal/geo"
	"github.com/crowdeval/crowdeval/internal/model"
	"github.com/crowdeval/crowdeval/pkg/core"
	"gorm.io/datatypes"
)

// toJSON marshals v for a JSON column. nil maps become "{}".
func toJSON(v any) (datatypes.JSON, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return datatypes.JSON("{}"), nil
	}
	return datatypes.JSON(data), nil
}

// CoreToSession converts a session and the layout it was started with.
// Zone polygons are stored as WKT; the full layout is kept as JSON.
func CoreToSession(s core.Session, layout core.Layout) (model.Session, error) {
	layoutJSON, err := toJSON(layout)
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to marshal layout: %w", err)
	}

	out := model.Session{
		ID:        s.ID,
		Name:      s.Name,
		Source:    s.Source,
		StartTime: s.StartTime,
		Layout:    layoutJSON,
		Zones:     make([]model.ZoneDef, len(layout.Zones)),
		Exits:     make([]model.ExitDef, len(layout.Exits)),
	}
	if !s.EndTime.IsZero() {
		out.EndTime = sql.NullTime{Time: s.EndTime, Valid: true}
	}

	for i, z := range layout.Zones {
		out.Zones[i] = model.ZoneDef{
			SessionID: s.ID,
			ZoneID:    z.ID,
			Name:      z.Name,
			Position:  i,
			Area:      z.Area,
			Polygon:   geo.PolygonWKT(z.Polygon),
		}
	}
	for i, e := range layout.Exits {
		out.Exits[i] = model.ExitDef{
			SessionID: s.ID,
			ExitID:    e.ID,
			Name:      e.Name,
			Position:  i,
			X:         e.Point.X,
			Y:         e.Point.Y,
			Capacity:  e.Capacity,
			Status:    string(e.Status),
		}
	}
	return out, nil
}

// CoreToFrameRecord converts the aggregate part of a frame result.
func CoreToFrameRecord(sessionID string, r *core.FrameResult) (model.FrameRecord, error) {
	counts, err := toJSON(r.Counts())
	if err != nil {
		return model.FrameRecord{}, err
	}
	densities, err := toJSON(r.Densities())
	if err != nil {
		return model.FrameRecord{}, err
	}
	statuses, err := toJSON(r.Statuses())
	if err != nil {
		return model.FrameRecord{}, err
	}

	return model.FrameRecord{
		Time:         r.Timestamp,
		SessionID:    sessionID,
		FrameNumber:  r.FrameNumber,
		TotalPeople:  r.TotalPeople,
		GlobalStatus: r.GlobalAlert.String(),
		AlarmLevel:   r.AlarmLevel,
		Counts:       counts,
		Densities:    densities,
		Statuses:     statuses,
	}, nil
}

// CoreToZoneSamples returns one row per zone in declaration order.
func CoreToZoneSamples(sessionID string, r *core.FrameResult) []model.ZoneSample {
	out := make([]model.ZoneSample, len(r.Zones))
	for i, z := range r.Zones {
		out[i] = model.ZoneSample{
			Time:        r.Timestamp,
			SessionID:   sessionID,
			FrameNumber: r.FrameNumber,
			ZoneID:      z.ZoneID,
			Count:       z.Count,
			Density:     z.Density,
			Status:      z.Status.String(),
		}
		if z.Timer != nil {
			out[i].EmergencySeconds = z.Timer.Elapsed.Seconds()
		}
	}
	return out
}

// SessionToSummary builds the summary header for a stored session. Frame
// statistics are filled in by the caller.
func SessionToSummary(s model.Session) core.SessionSummary {
	return core.SessionSummary{
		SessionID: s.ID,
		Name:      s.Name,
		CreatedAt: s.StartTime,
	}
}
