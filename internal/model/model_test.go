package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableNames(t *testing.T) {
	tests := []struct {
		name     string
		model    interface{ TableName() string }
		expected string
	}{
		{"Session", &Session{}, "sessions"},
		{"ZoneDef", &ZoneDef{}, "zone_defs"},
		{"ExitDef", &ExitDef{}, "exit_defs"},
		{"FrameRecord", &FrameRecord{}, "frame_records"},
		{"ZoneSample", &ZoneSample{}, "zone_samples"},
		{"StatusSnapshot", &StatusSnapshot{}, "status_snapshots"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.model.TableName())
		})
	}
}

func TestDatabaseModelsListEveryTable(t *testing.T) {
	names := make(map[string]bool)
	for _, m := range DatabaseModels {
		names[m.(interface{ TableName() string }).TableName()] = true
	}
	assert.Equal(t, map[string]bool{
		"sessions":         true,
		"zone_defs":        true,
		"exit_defs":        true,
		"frame_records":    true,
		"zone_samples":     true,
		"status_snapshots": true,
	}, names)
}
