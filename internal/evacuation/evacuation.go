// Package evacuation turns zone snapshots and routing results into
// per-zone instructions and the global alert level.
package evacuation

import (
	"fmt"
	"strings"

	"github.com/crowdeval/crowdeval/internal/geo"
	"github.com/crowdeval/crowdeval/internal/routing"
	"github.com/crowdeval/crowdeval/pkg/core"
)

// Instruction applies the decision table to one zone.
//
//	SAFE                 MONITOR
//	MODERATE             CONTROL
//	WARNING   + exit     PREPARE
//	WARNING   no exit    HOLD
//	EMERGENCY + exit     EVACUATE (flagged when capacity is exceeded)
//	EMERGENCY no exit    AWAIT_RESCUE
func Instruction(zone core.ZoneSnapshot, route routing.Result) core.EvacuationInstruction {
	in := core.EvacuationInstruction{
		ZoneID:   zone.ZoneID,
		ZoneName: zone.Name,
		Status:   zone.Status,
		Count:    zone.Count,
		Density:  zone.Density,
	}
	name := displayName(zone)

	switch zone.Status {
	case core.StatusSafe:
		in.Action = core.ActionMonitor
		in.Message = fmt.Sprintf("%s: normal, continue monitoring", name)

	case core.StatusModerate:
		in.Action = core.ActionControl
		in.Message = fmt.Sprintf("%s: moderate density (%.1f/m²), control entry flow", name, zone.Density)

	case core.StatusWarning:
		if route.Exit == nil {
			in.Action = core.ActionHold
			in.Message = fmt.Sprintf("%s: high density, no open exit, hold and control crowd", name)
			break
		}
		withExit(&in, route)
		in.Action = core.ActionPrepare
		in.Message = fmt.Sprintf("%s: high density, prepare evacuation via %s", name, route.Exit.Name)

	default:
		if route.Exit == nil {
			in.Action = core.ActionAwaitRescue
			in.Critical = true
			in.Message = fmt.Sprintf("CRITICAL: %s, all exits blocked, await rescue", name)
			break
		}
		withExit(&in, route)
		in.Action = core.ActionEvacuate
		in.Message = fmt.Sprintf("EVACUATE %s via %s immediately", name, route.Exit.Name)
		if route.CapacityExceeded {
			in.Critical = true
			in.Message += fmt.Sprintf(" (%s)", route.Warning)
		}
	}

	return in
}

func withExit(in *core.EvacuationInstruction, route routing.Result) {
	in.ExitID = route.Exit.ID
	in.ExitName = route.Exit.Name
	in.Distance = route.Distance
	in.CapacityExceeded = route.CapacityExceeded
}

func displayName(z core.ZoneSnapshot) string {
	if z.Name != "" {
		return z.Name
	}
	return z.ZoneID
}

// Generate routes every zone from its centroid and builds its instruction.
// snapshots and zones are matched by id; snapshots without a zone are routed
// from the frame centre.
func Generate(snapshots []core.ZoneSnapshot, zones []core.Zone, exits []core.ExitPoint, size core.FrameSize) []core.EvacuationInstruction {
	byID := make(map[string]core.Zone, len(zones))
	for _, z := range zones {
		byID[z.ID] = z
	}

	out := make([]core.EvacuationInstruction, 0, len(snapshots))
	for _, snap := range snapshots {
		anchor := core.Point{X: 0.5, Y: 0.5}
		if z, ok := byID[snap.ZoneID]; ok && len(z.Polygon) > 0 {
			anchor = geo.Centroid(z.Polygon)
		}
		out = append(out, Instruction(snap, routing.Route(anchor, snap.Count, exits, size)))
	}
	return out
}

// GlobalAlertLevel is the most severe status present, or SAFE for no input.
func GlobalAlertLevel(statuses []core.Status) core.Status {
	level := core.StatusSafe
	for _, s := range statuses {
		if s > level {
			level = s
		}
	}
	return level
}

// SummaryMessage describes the overall state in one line.
func SummaryMessage(snapshots []core.ZoneSnapshot) string {
	total := 0
	statuses := make([]core.Status, len(snapshots))
	for i, s := range snapshots {
		total += s.Count
		statuses[i] = s.Status
	}

	namesAt := func(status core.Status) string {
		var names []string
		for _, s := range snapshots {
			if s.Status == status {
				names = append(names, displayName(s))
			}
		}
		return strings.Join(names, ", ")
	}

	switch GlobalAlertLevel(statuses) {
	case core.StatusEmergency:
		return fmt.Sprintf("EMERGENCY in %s! Total: %d people", namesAt(core.StatusEmergency), total)
	case core.StatusWarning:
		return fmt.Sprintf("Warning in %s. Total: %d people", namesAt(core.StatusWarning), total)
	case core.StatusModerate:
		return fmt.Sprintf("Moderate density detected. Total: %d people", total)
	default:
		return fmt.Sprintf("All zones safe. Total: %d people", total)
	}
}
