package pipeline

import (
	"time"

	"github.com/couchcryptid/recon-hdob/internal/domain"
	"github.com/couchcryptid/recon-hdob/internal/hdob"
)

// PeakWindWindow is the averaging window for the peak flight-level wind.
const PeakWindWindow = 10 * time.Second

// Select picks the record nearest the bucket's anchor. Equal distances go to
// the earlier timestamp, then to the record that came first in the input.
// ok is false for an empty bucket.
func Select(b domain.TimeBucket, anchor domain.SelectionAnchor) (sel domain.ObservationSelection, ok bool) {
	if len(b.Records) == 0 {
		return domain.ObservationSelection{}, false
	}
	at := b.Start
	if anchor == domain.AnchorCenter {
		at = b.Start.Add(b.Width / 2)
	}

	best := 0
	bestDist := absDuration(b.Records[0].Time.Sub(at))
	for i := 1; i < len(b.Records); i++ {
		r := b.Records[i]
		d := absDuration(r.Time.Sub(at))
		if d < bestDist || d == bestDist && earlier(r, b.Records[best]) {
			best, bestDist = i, d
		}
	}

	rec := b.Records[best]
	return domain.ObservationSelection{
		Record:      rec,
		BucketStart: b.Start,
		Offset:      rec.Time.Sub(at),
		PeakWindKt:  PeakWind(b.Records, PeakWindWindow),
	}, true
}

func earlier(a, b domain.TelemetryRecord) bool {
	if !a.Time.Equal(b.Time) {
		return a.Time.Before(b.Time)
	}
	return a.Seq < b.Seq
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// PeakWind returns the highest mean wind speed, in knots, over any trailing
// window ending at a record. Records must be time-sorted. It returns nil when
// no record carries a wind speed.
func PeakWind(records []domain.TelemetryRecord, window time.Duration) *float64 {
	type sample struct {
		t time.Time
		v float64
	}
	samples := make([]sample, 0, len(records))
	for _, r := range records {
		if r.WindSpeedMS != nil {
			samples = append(samples, sample{r.Time, *r.WindSpeedMS})
		}
	}
	if len(samples) == 0 {
		return nil
	}

	var sum, best float64
	head := 0
	for i, s := range samples {
		sum += s.v
		floor := s.t.Add(-window)
		for samples[head].t.Before(floor) {
			sum -= samples[head].v
			head++
		}
		mean := sum / float64(i-head+1)
		if i == 0 || mean > best {
			best = mean
		}
	}
	kt := best * hdob.KnotsPerMS
	return &kt
}
