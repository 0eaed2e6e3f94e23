package hdob

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedLine is wrapped by every DecodeLine failure.
var ErrMalformedLine = errors.New("malformed hdob line")

// Observation is a decoded HDOB data line. Pointer fields are nil when the
// field carried the missing-data code.
type Observation struct {
	// Clock is the observation time as an offset from 00:00 UTC.
	Clock time.Duration
	Lat   float64
	Lon   float64

	StaticPressHPa *float64
	GeoAltM        *float64
	// Exactly one of SurfacePressHPa and DValueM is set when XXXX is present;
	// which one depends on the static pressure level.
	SurfacePressHPa *float64
	DValueM         *float64
	TempC           *float64
	DewPointC       *float64
	WindDirDeg      *float64
	WindSpeedKt     *float64
	PeakWindKt      *float64
	SFMRWindKt      *float64
	RainRateMMH     *float64
	Flags           string
}

// DecodeLine parses one HDOB data line.
func DecodeLine(line string) (Observation, error) {
	var obs Observation
	if len(line) != LineWidth {
		return obs, fmt.Errorf("%w: length %d, want %d", ErrMalformedLine, len(line), LineWidth)
	}
	parts := strings.Split(line, " ")
	if len(parts) != len(fieldWidths) {
		return obs, fmt.Errorf("%w: %d fields, want %d", ErrMalformedLine, len(parts), len(fieldWidths))
	}
	for i, p := range parts {
		if len(p) != fieldWidths[i] {
			return obs, fmt.Errorf("%w: field %d is %q", ErrMalformedLine, i+1, p)
		}
	}

	var err error
	if obs.Clock, err = decodeClock(parts[0]); err != nil {
		return obs, err
	}
	if obs.Lat, err = decodeCoord(parts[1], 2, 90, "N", "S"); err != nil {
		return obs, err
	}
	if obs.Lon, err = decodeCoord(parts[2], 3, 180, "E", "W"); err != nil {
		return obs, err
	}

	d := decoder{}
	if v := d.unsigned(parts[3]); v != nil {
		p := *v / 10
		if p < minStaticHPa {
			p += 1000
		}
		obs.StaticPressHPa = &p
	}
	obs.GeoAltM = d.unsigned(parts[4])
	if x := d.unsigned(parts[5]); x != nil && obs.StaticPressHPa != nil {
		if *obs.StaticPressHPa >= extrapolationFloorHPa {
			p0 := *x / 10
			if p0 < 500 {
				p0 += 1000
			}
			obs.SurfacePressHPa = &p0
		} else {
			dv := *x
			if dv > maxDValueM {
				dv = -(dv - negativeDBias)
			}
			obs.DValueM = &dv
		}
	}
	obs.TempC = d.signedTenths(parts[6])
	obs.DewPointC = d.signedTenths(parts[7])
	if parts[8] != Missing(6) {
		obs.WindDirDeg = d.unsigned(parts[8][:3])
		obs.WindSpeedKt = d.unsigned(parts[8][3:])
	}
	obs.PeakWindKt = d.unsigned(parts[9])
	obs.SFMRWindKt = d.unsigned(parts[10])
	obs.RainRateMMH = d.unsigned(parts[11])
	obs.Flags = parts[12]
	if d.err != nil {
		return obs, d.err
	}
	return obs, nil
}

// decoder records the first numeric failure so field decoding reads
// straight through.
type decoder struct {
	err error
}

func (d *decoder) unsigned(s string) *float64 {
	if s == Missing(len(s)) {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		if d.err == nil {
			d.err = fmt.Errorf("%w: field %q is not numeric", ErrMalformedLine, s)
		}
		return nil
	}
	v := float64(n)
	return &v
}

func (d *decoder) signedTenths(s string) *float64 {
	if s == Missing(len(s)) {
		return nil
	}
	if s[0] != '+' && s[0] != '-' {
		if d.err == nil {
			d.err = fmt.Errorf("%w: field %q has no sign", ErrMalformedLine, s)
		}
		return nil
	}
	v := d.unsigned(s[1:])
	if v == nil {
		return nil
	}
	t := *v / 10
	if s[0] == '-' {
		t = -t
	}
	return &t
}

func decodeClock(s string) (time.Duration, error) {
	t, err := time.Parse("150405", s)
	if err != nil {
		return 0, fmt.Errorf("%w: time %q", ErrMalformedLine, s)
	}
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second, nil
}

func decodeCoord(s string, degDigits int, limit float64, pos, neg string) (float64, error) {
	hemi := s[len(s)-1:]
	if hemi != pos && hemi != neg {
		return 0, fmt.Errorf("%w: coordinate %q", ErrMalformedLine, s)
	}
	deg, err1 := strconv.Atoi(s[:degDigits])
	minutes, err2 := strconv.Atoi(s[degDigits : len(s)-1])
	if err1 != nil || err2 != nil || minutes >= 60 || deg < 0 || minutes < 0 {
		return 0, fmt.Errorf("%w: coordinate %q", ErrMalformedLine, s)
	}
	v := float64(deg) + float64(minutes)/60
	if v > limit {
		return 0, fmt.Errorf("%w: coordinate %q out of range", ErrMalformedLine, s)
	}
	if hemi == neg {
		v = -v
	}
	return v, nil
}
