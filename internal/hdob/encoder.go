// Package hdob encodes observation selections as HDOB data lines, frames
// them into messages, and decodes existing HDOB text.
//
// A data line is thirteen space-separated fixed-width fields:
//
//	hhmmss LLLLH NNNNNH PPPP GGGGG XXXX sTTT sddd wwwSSS MMM KKK ppp FF
//
// Absent or implausible values are written as slashes filling the field.
package hdob

import (
	"fmt"
	"math"
	"strings"

	"github.com/couchcryptid/recon-hdob/internal/domain"
)

// LineWidth is the length of every HDOB data line.
const LineWidth = 67

// Field widths in line order.
var fieldWidths = [...]int{6, 5, 6, 4, 5, 4, 4, 4, 6, 3, 3, 3, 2}

// Plausibility limits applied before a value is written.
const (
	minStaticHPa  = 100.0
	maxStaticHPa  = 1100.0
	minSurfaceHPa = 800.0
	maxSurfaceHPa = 1100.0
	maxAltitudeM  = 99999
	maxTenths     = 999 // ±99.9
	maxKnots      = 999
	maxDValueM    = 4999
	negativeDBias = 5000
)

// Missing returns the missing-data code for a field of width n.
func Missing(n int) string {
	return strings.Repeat("/", n)
}

// fields holds the rendered text of each HDOB field.
type fields struct {
	time, lat, lon, press, alt, extrap, temp, dew, wind, peak, sfmr, rain, flags string
}

func (f fields) String() string {
	return strings.Join([]string{
		f.time, f.lat, f.lon, f.press, f.alt, f.extrap, f.temp,
		f.dew, f.wind, f.peak, f.sfmr, f.rain, f.flags,
	}, " ")
}

// Encode renders sel as one HDOB data line. Values that are absent or out of
// physical range become the missing-data code; only a selection without a
// timestamp or position is an error.
func Encode(sel domain.ObservationSelection, flags string) (domain.HDOBRecord, error) {
	rec := sel.Record
	if rec.Time.IsZero() {
		return domain.HDOBRecord{}, &domain.EncodingError{Line: rec.Line, Err: domain.ErrMissingTimestamp}
	}
	if !rec.HasPosition() {
		return domain.HDOBRecord{}, &domain.EncodingError{Line: rec.Line, Err: domain.ErrMissingPosition}
	}

	f := fields{
		time:   rec.Time.UTC().Format("150405"),
		lat:    encodeLat(*rec.Lat),
		lon:    encodeLon(*rec.Lon),
		press:  encodeStaticPressure(rec.StaticPressHPa),
		alt:    encodeAltitude(rec.GeoAltM),
		extrap: encodeExtrapolated(rec.StaticPressHPa, rec.GeoAltM, rec.TempC),
		temp:   encodeSignedTenths(rec.TempC),
		dew:    encodeSignedTenths(rec.DewPointC),
		wind:   encodeWind(rec.WindDirDeg, rec.WindSpeedMS),
		peak:   encodeKnots(sel.PeakWindKt),
		sfmr:   Missing(3),
		rain:   Missing(3),
		flags:  encodeFlags(flags),
	}
	return domain.HDOBRecord{Time: rec.Time.UTC(), Line: f.String()}, nil
}

func round(v float64) int {
	return int(math.Round(v))
}

// degMin splits an absolute coordinate into whole degrees and rounded
// minutes, carrying 60 minutes into the degrees.
func degMin(abs float64) (int, int) {
	deg := int(math.Floor(abs))
	minutes := round((abs - float64(deg)) * 60)
	if minutes == 60 {
		deg++
		minutes = 0
	}
	return deg, minutes
}

func encodeLat(lat float64) string {
	if math.IsNaN(lat) || math.Abs(lat) > 90 {
		return Missing(5)
	}
	hemi := "N"
	if lat < 0 {
		hemi = "S"
	}
	deg, minutes := degMin(math.Abs(lat))
	return fmt.Sprintf("%02d%02d%s", deg, minutes, hemi)
}

func encodeLon(lon float64) string {
	if math.IsNaN(lon) || math.Abs(lon) > 180 {
		return Missing(6)
	}
	hemi := "E"
	if lon < 0 {
		hemi = "W"
	}
	deg, minutes := degMin(math.Abs(lon))
	return fmt.Sprintf("%03d%02d%s", deg, minutes, hemi)
}

// pressureTenths writes hPa in tenths with the thousands digit dropped.
func pressureTenths(hpa float64) string {
	tenths := round(hpa*10) % 10000
	return fmt.Sprintf("%04d", tenths)
}

func encodeStaticPressure(p *float64) string {
	if p == nil || *p < minStaticHPa || *p > maxStaticHPa {
		return Missing(4)
	}
	return pressureTenths(*p)
}

func encodeAltitude(z *float64) string {
	if z == nil {
		return Missing(5)
	}
	m := round(*z)
	if m < 0 || m > maxAltitudeM {
		return Missing(5)
	}
	return fmt.Sprintf("%05d", m)
}

// encodeExtrapolated writes XXXX: surface pressure at low levels, D-value
// above the 550 hPa level. Negative D-values are written as 5000 plus their
// magnitude.
func encodeExtrapolated(p, z, t *float64) string {
	if p == nil || z == nil || *p < minStaticHPa || *p > maxStaticHPa {
		return Missing(4)
	}
	if *p >= extrapolationFloorHPa {
		p0, ok := SurfacePressure(*p, *z, t)
		if !ok || p0 < minSurfaceHPa || p0 > maxSurfaceHPa {
			return Missing(4)
		}
		return pressureTenths(p0)
	}

	d := round(DValue(*z, *p))
	if d < -maxDValueM || d > maxDValueM {
		return Missing(4)
	}
	if d < 0 {
		d = negativeDBias - d
	}
	return fmt.Sprintf("%04d", d)
}

func encodeSignedTenths(v *float64) string {
	if v == nil {
		return Missing(4)
	}
	tenths := round(*v * 10)
	if tenths > maxTenths || tenths < -maxTenths {
		return Missing(4)
	}
	sign := "+"
	if tenths < 0 {
		sign = "-"
		tenths = -tenths
	}
	return fmt.Sprintf("%s%03d", sign, tenths)
}

// encodeWind writes direction to the nearest 10 degrees and speed in knots.
// Both are needed; one without the other is missing.
func encodeWind(dir, speedMS *float64) string {
	if dir == nil || speedMS == nil {
		return Missing(6)
	}
	www := round(*dir/10) * 10 % 360
	if www < 0 {
		www += 360
	}
	sss := round(*speedMS * KnotsPerMS)
	if sss < 0 || sss > maxKnots {
		return Missing(6)
	}
	return fmt.Sprintf("%03d%03d", www, sss)
}

func encodeKnots(kt *float64) string {
	if kt == nil {
		return Missing(3)
	}
	v := round(*kt)
	if v < 0 || v > maxKnots {
		return Missing(3)
	}
	return fmt.Sprintf("%03d", v)
}

func encodeFlags(flags string) string {
	switch len(flags) {
	case 0:
		return domain.DefaultFlags
	case 2:
		return flags
	default:
		return Missing(2)
	}
}
