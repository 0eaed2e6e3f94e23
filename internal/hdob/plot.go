package hdob

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/couchcryptid/recon-hdob/internal/domain"
)

// PlotPoint is what a map renderer needs from one observation: position,
// wind barb, and pressure label. Values come from the encoded line, so the
// plot always agrees with the HDOB text.
type PlotPoint struct {
	Time               time.Time `json:"time"`
	Lat                float64   `json:"lat"`
	Lon                float64   `json:"lon"`
	WindDirDeg         *float64  `json:"wind_dir_deg"`
	WindSpeedKt        *float64  `json:"wind_speed_kt"`
	SurfacePressureHPa *float64  `json:"surface_pressure_hpa"`
}

// NewPlotPoint decodes rec's line and attaches the record's full timestamp.
func NewPlotPoint(rec domain.HDOBRecord) (PlotPoint, error) {
	obs, err := DecodeLine(rec.Line)
	if err != nil {
		return PlotPoint{}, err
	}
	return obs.PlotPoint(rec.Time), nil
}

// PlotPoint pins the observation to the UTC date of day.
func (o Observation) PlotPoint(day time.Time) PlotPoint {
	day = day.UTC()
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return PlotPoint{
		Time:               midnight.Add(o.Clock),
		Lat:                o.Lat,
		Lon:                o.Lon,
		WindDirDeg:         o.WindDirDeg,
		WindSpeedKt:        o.WindSpeedKt,
		SurfacePressureHPa: o.SurfacePressHPa,
	}
}

var plotHeader = []string{"time", "lat", "lon", "wind_dir_deg", "wind_speed_kt", "surface_pressure_hpa"}

// WritePlotCSV writes points as CSV with a header row. Missing values are
// empty cells.
func WritePlotCSV(w io.Writer, points []PlotPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(plotHeader); err != nil {
		return fmt.Errorf("write plot header: %w", err)
	}
	for _, p := range points {
		row := []string{
			p.Time.UTC().Format(time.RFC3339),
			strconv.FormatFloat(p.Lat, 'f', 4, 64),
			strconv.FormatFloat(p.Lon, 'f', 4, 64),
			optional(p.WindDirDeg, 0),
			optional(p.WindSpeedKt, 0),
			optional(p.SurfacePressureHPa, 1),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write plot row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func optional(v *float64, prec int) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}
