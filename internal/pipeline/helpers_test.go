package pipeline_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/recon-hdob/internal/domain"
	"github.com/couchcryptid/recon-hdob/internal/observability"
	"github.com/couchcryptid/recon-hdob/internal/pipeline"
)

var hourStart = time.Date(2024, 9, 26, 12, 0, 0, 0, time.UTC)

// iwg1Line renders a 28-column IWG1 packet. A negative wind speed leaves the
// wind cells blank.
func iwg1Line(ts time.Time, lat, lon, windMS float64) string {
	cols := make([]string, 28)
	cols[0] = "IWG1"
	cols[1] = ts.Format("2006-01-02T15:04:05")
	cols[2] = fmt.Sprintf("%.5f", lat)
	cols[3] = fmt.Sprintf("%.5f", lon)
	cols[4] = "3048.0"
	cols[5] = "3060.0"
	cols[6] = "3100"
	cols[20] = "12.3"
	cols[21] = "8.9"
	cols[23] = "696.8"
	if windMS >= 0 {
		cols[26] = fmt.Sprintf("%.2f", windMS)
		cols[27] = "135"
	}
	return strings.Join(cols, ",")
}

// secondsOfFlight produces one packet per second from start.
func secondsOfFlight(start time.Time, n int) []string {
	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		lines = append(lines, iwg1Line(start.Add(time.Duration(i)*time.Second),
			20+float64(i)*0.0005, -70-float64(i)*0.0004, 15+float64(i%40)*0.25))
	}
	return lines
}

func record(seq int, ts time.Time, windMS *float64) domain.TelemetryRecord {
	return domain.TelemetryRecord{
		Seq:            seq,
		Line:           seq + 1,
		Time:           ts,
		Lat:            domain.Float(25),
		Lon:            domain.Float(-80),
		GeoAltM:        domain.Float(3048),
		StaticPressHPa: domain.Float(696.8),
		TempC:          domain.Float(12),
		WindSpeedMS:    windMS,
		WindDirDeg:     domain.Float(90),
	}
}

func job(interval time.Duration, workers int) domain.ConversionJob {
	return domain.ConversionJob{Interval: interval, Workers: workers}
}

func newConverter(t *testing.T, opts ...pipeline.Option) (*pipeline.Converter, *observability.Metrics) {
	t.Helper()
	m := observability.NewMetricsForTesting()
	return pipeline.New(observability.DiscardLogger(), m, opts...), m
}

func times(recs []domain.HDOBRecord) []time.Time {
	out := make([]time.Time, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Time)
	}
	return out
}
