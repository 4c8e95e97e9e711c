package weather

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used by the provider and all sinks.
const DateLayout = "2006-01-02"

// Area is a Norwegian electricity price area.
type Area string

const (
	AreaNO1 Area = "NO1" // Eastern Norway
	AreaNO2 Area = "NO2" // Southern Norway
	AreaNO3 Area = "NO3" // Central Norway
	AreaNO4 Area = "NO4" // Northern Norway
	AreaNO5 Area = "NO5" // Western Norway

	// AreaUnknown marks rows for stations missing from the catalog.
	AreaUnknown Area = "??"
)

// AllAreas lists every electricity area in display order.
var AllAreas = []Area{AreaNO1, AreaNO2, AreaNO3, AreaNO4, AreaNO5}

// ParseArea accepts an area name in any letter case.
func ParseArea(s string) (Area, error) {
	a := Area(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllAreas {
		if a == known {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: unknown electricity area %q", ErrInvalidInput, s)
}

func (a Area) String() string {
	return string(a)
}

// Station is immutable reference data describing one weather station.
type Station struct {
	ID   string `json:"id" yaml:"id" validate:"required"`
	Name string `json:"name" yaml:"name" validate:"required"`
	Area Area   `json:"area" yaml:"area" validate:"required,oneof=NO1 NO2 NO3 NO4 NO5"`
}

// Observation is one flattened daily precipitation row.
type Observation struct {
	StationID       string   `json:"stationId"`
	StationName     string   `json:"stationName"`
	Area            Area     `json:"area"`
	Date            string   `json:"date"` // YYYY-MM-DD
	PrecipitationMM *float64 `json:"precipitationMm,omitempty"`
	QualityCode     *int     `json:"qualityCode,omitempty"`
}

// DateChunk is a half-open date interval [Start, End).
type DateChunk struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (c DateChunk) String() string {
	return c.Start.Format(DateLayout) + ".." + c.End.Format(DateLayout)
}

// WorkItem is one independent fetch task: a single station over a single chunk.
type WorkItem struct {
	Index   int
	Station Station
	Chunk   DateChunk
}

// TaskOutcome is the result of running one WorkItem. Err is nil on success.
type TaskOutcome struct {
	Item WorkItem
	Rows []Observation
	Err  error
}
