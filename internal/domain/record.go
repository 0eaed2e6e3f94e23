package domain

import (
	"time"
)

// TelemetryRecord is one validated IWG1 packet. Optional instrument values
// are pointers; nil means the source cell was blank or non-finite.
type TelemetryRecord struct {
	Seq  int       // position in the input, used for stable tie-breaking
	Line int       // 1-based source line number
	Time time.Time // UTC

	Lat *float64 // decimal degrees
	Lon *float64 // decimal degrees

	GeoAltM        *float64 // GPS MSL altitude, else WGS-84 altitude
	PressAltM      *float64
	StaticPressHPa *float64
	TempC          *float64
	DewPointC      *float64
	WindSpeedMS    *float64
	WindDirDeg     *float64

	AuxFields int // trailing columns present but not used by HDOB
}

// HasPosition reports whether both coordinates are present.
func (r TelemetryRecord) HasPosition() bool {
	return r.Lat != nil && r.Lon != nil
}

// TimeBucket is a half-open interval [Start, Start+Width) and the records
// falling inside it, in input order.
type TimeBucket struct {
	Index   int64 // floor(unix seconds / width)
	Start   time.Time
	Width   time.Duration
	Records []TelemetryRecord
}

// End returns the exclusive upper bound of the bucket.
func (b TimeBucket) End() time.Time {
	return b.Start.Add(b.Width)
}

// Contains reports whether t lies within [Start, End).
func (b TimeBucket) Contains(t time.Time) bool {
	return !t.Before(b.Start) && t.Before(b.End())
}

// ObservationSelection is the record chosen to represent a bucket.
type ObservationSelection struct {
	Record      TelemetryRecord
	BucketStart time.Time
	// Offset is the signed distance from the selection anchor to the record.
	Offset time.Duration
	// PeakWindKt is the highest 10 s mean wind speed seen in the bucket.
	PeakWindKt *float64
}

// HDOBRecord is one encoded HDOB data line.
type HDOBRecord struct {
	Time time.Time
	Line string
}

// Float returns a pointer to v. Handy for building records in tests and
// fixtures.
func Float(v float64) *float64 {
	return &v
}
