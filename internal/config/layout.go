package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/crowdeval/crowdeval/internal/geo"
	"github.com/crowdeval/crowdeval/pkg/core"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Layout limits.
const (
	MaxZones = 12
	MaxExits = 8
)

// ZoneConfig is a zone as authored in the config file. Polygon vertices are
// normalized [x, y] pairs.
type ZoneConfig struct {
	ID      string      `json:"id" mapstructure:"id" validate:"required"`
	Name    string      `json:"name" mapstructure:"name"`
	Area    float64     `json:"area" mapstructure:"area" validate:"gt=0"`
	Polygon [][]float64 `json:"polygon" mapstructure:"polygon" validate:"min=3,dive,len=2"`
}

// ExitConfig is an exit as authored in the config file.
type ExitConfig struct {
	ID       string  `json:"id" mapstructure:"id" validate:"required"`
	Name     string  `json:"name" mapstructure:"name"`
	X        float64 `json:"x" mapstructure:"x" validate:"gte=0,lte=1"`
	Y        float64 `json:"y" mapstructure:"y" validate:"gte=0,lte=1"`
	Capacity float64 `json:"capacity" mapstructure:"capacity" validate:"gt=0"`
	Status   string  `json:"status" mapstructure:"status" validate:"omitempty,oneof=OPEN BLOCKED"`
}

// LayoutConfig is the zones and exits section of the config file.
type LayoutConfig struct {
	Zones []ZoneConfig `json:"zones" mapstructure:"zones" validate:"min=1,max=12,unique=ID,dive"`
	Exits []ExitConfig `json:"exits" mapstructure:"exits" validate:"min=1,max=8,unique=ID,dive"`
}

var validate = validator.New()

// GetLayout decodes, validates and converts the configured layout.
func GetLayout() (core.Layout, error) {
	var lc LayoutConfig
	if err := viper.UnmarshalKey("zones", &lc.Zones); err != nil {
		return core.Layout{}, fmt.Errorf("error decoding zones: %w", err)
	}
	if err := viper.UnmarshalKey("exits", &lc.Exits); err != nil {
		return core.Layout{}, fmt.Errorf("error decoding exits: %w", err)
	}
	if err := lc.Validate(); err != nil {
		return core.Layout{}, err
	}
	return lc.ToCore(), nil
}

// Validate checks field constraints and polygon geometry. All problems are
// reported together.
func (lc *LayoutConfig) Validate() error {
	for i := range lc.Exits {
		lc.Exits[i].Status = strings.ToUpper(strings.TrimSpace(lc.Exits[i].Status))
	}

	var errs []error
	if err := validate.Struct(lc); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("invalid layout: %w", err)
		}
		for _, fe := range verrs {
			errs = append(errs, fmt.Errorf("%s: failed %q (%s)", fe.Namespace(), fe.Tag(), fe.Param()))
		}
	}

	for _, z := range lc.Zones {
		if len(z.Polygon) < 3 {
			continue
		}
		if err := geo.ValidatePolygon(toPoints(z.Polygon)); err != nil {
			errs = append(errs, fmt.Errorf("zone %s: %w", z.ID, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid layout: %w", errors.Join(errs...))
	}
	return nil
}

// ToCore converts a validated layout. Exits without a status are OPEN.
func (lc *LayoutConfig) ToCore() core.Layout {
	layout := core.Layout{
		Zones: make([]core.Zone, len(lc.Zones)),
		Exits: make([]core.ExitPoint, len(lc.Exits)),
	}
	for i, z := range lc.Zones {
		layout.Zones[i] = core.Zone{ID: z.ID, Name: z.Name, Polygon: toPoints(z.Polygon), Area: z.Area}
	}
	for i, e := range lc.Exits {
		status := core.ExitOpen
		if e.Status == string(core.ExitBlocked) {
			status = core.ExitBlocked
		}
		layout.Exits[i] = core.ExitPoint{
			ID:       e.ID,
			Name:     e.Name,
			Point:    core.Point{X: e.X, Y: e.Y},
			Capacity: e.Capacity,
			Status:   status,
		}
	}
	return layout
}

func toPoints(coords [][]float64) []core.Point {
	pts := make([]core.Point, 0, len(coords))
	for _, c := range coords {
		if len(c) < 2 {
			continue
		}
		pts = append(pts, core.Point{X: c[0], Y: c[1]})
	}
	return pts
}

// defaultZones is a 2x2 grid of 50 m² zones.
func defaultZones() []map[string]any {
	names := []string{"Zone A (Top-Left)", "Zone B (Top-Right)", "Zone C (Bottom-Left)", "Zone D (Bottom-Right)"}
	zones := make([]map[string]any, 0, 4)
	for i := 0; i < 4; i++ {
		x0, y0 := float64(i%2)*0.5, float64(i/2)*0.5
		zones = append(zones, map[string]any{
			"id":   fmt.Sprintf("zone_%d", i),
			"name": names[i],
			"area": 50.0,
			"polygon": [][]float64{
				{x0, y0}, {x0 + 0.5, y0}, {x0 + 0.5, y0 + 0.5}, {x0, y0 + 0.5},
			},
		})
	}
	return zones
}

func defaultExits() []map[string]any {
	return []map[string]any{
		{"id": "exit_0", "name": "Main Gate", "x": 0.5, "y": 0.0, "capacity": 20.0, "status": "OPEN"},
		{"id": "exit_1", "name": "South Exit", "x": 0.5, "y": 1.0, "capacity": 20.0, "status": "OPEN"},
	}
}
