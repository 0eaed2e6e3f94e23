package hdob

import (
	"testing"
	"time"

	"github.com/couchcryptid/recon-hdob/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var f = domain.Float

func lowLevelRecord() domain.TelemetryRecord {
	return domain.TelemetryRecord{
		Line:           12,
		Time:           time.Date(2024, 9, 26, 15, 10, 0, 0, time.UTC),
		Lat:            f(25.5),
		Lon:            f(-80.25),
		GeoAltM:        f(3048.2),
		StaticPressHPa: f(696.8),
		TempC:          f(12.4),
		DewPointC:      f(9.1),
		WindSpeedMS:    f(20.5),
		WindDirDeg:     f(135),
	}
}

func TestEncode_LiteralLines(t *testing.T) {
	tests := []struct {
		name string
		sel  domain.ObservationSelection
		want string
	}{
		{
			name: "low level with extrapolated surface pressure",
			sel:  domain.ObservationSelection{Record: lowLevelRecord(), PeakWindKt: f(45.4)},
			want: "151000 2530N 08015W 6968 03048 9912 +124 +091 140040 045 /// /// 00",
		},
		{
			name: "high level positive D-value southern hemisphere",
			sel: domain.ObservationSelection{Record: domain.TelemetryRecord{
				Time:           time.Date(2024, 9, 26, 23, 59, 30, 0, time.UTC),
				Lat:            f(-12.9999),
				Lon:            f(145.5),
				GeoAltM:        f(5800),
				StaticPressHPa: f(500),
				TempC:          f(-18.46),
				WindSpeedMS:    f(0),
				WindDirDeg:     f(355),
			}},
			want: "235930 1300S 14530E 5000 05800 0226 -185 //// 000000 /// /// /// 00",
		},
		{
			name: "negative D-value is biased by 5000",
			sel: domain.ObservationSelection{Record: domain.TelemetryRecord{
				Time:           time.Date(2024, 9, 26, 0, 0, 5, 0, time.UTC),
				Lat:            f(0),
				Lon:            f(0),
				GeoAltM:        f(5500),
				StaticPressHPa: f(500),
			}},
			want: "000005 0000N 00000E 5000 05500 5074 //// //// ////// /// /// /// 00",
		},
		{
			name: "pressures above 1000 hPa drop the thousands digit",
			sel: domain.ObservationSelection{Record: domain.TelemetryRecord{
				Time:           time.Date(2024, 9, 26, 12, 0, 0, 0, time.UTC),
				Lat:            f(18.0),
				Lon:            f(-65.0),
				GeoAltM:        f(150),
				StaticPressHPa: f(1005.3),
				TempC:          f(27.0),
				DewPointC:      f(-0.04),
			}},
			want: "120000 1800N 06500W 0053 00150 0226 +270 +000 ////// /// /// /// 00",
		},
		{
			name: "negative half tenth rounds away from zero",
			sel: domain.ObservationSelection{Record: domain.TelemetryRecord{
				Time:      time.Date(2024, 9, 26, 6, 0, 0, 0, time.UTC),
				Lat:       f(18.0),
				Lon:       f(-65.0),
				TempC:     f(-0.05),
				DewPointC: f(0.05),
			}},
			want: "060000 1800N 06500W //// ///// //// -001 +001 ////// /// /// /// 00",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := Encode(tc.sel, "")
			require.NoError(t, err)
			assert.Equal(t, tc.want, rec.Line)
			assert.Len(t, rec.Line, LineWidth)
			assert.Equal(t, tc.sel.Record.Time, rec.Time)
		})
	}
}

func TestEncode_MissingWindSpeedIsNeverZero(t *testing.T) {
	rec := lowLevelRecord()
	rec.WindSpeedMS = nil

	out, err := Encode(domain.ObservationSelection{Record: rec}, "00")
	require.NoError(t, err)
	assert.Equal(t, "//////", out.Line[46:52])
	assert.NotContains(t, out.Line[46:52], "0")
}

func TestEncode_OutOfRangeValuesUseSentinel(t *testing.T) {
	rec := lowLevelRecord()
	rec.StaticPressHPa = f(50)   // not a real static pressure
	rec.GeoAltM = f(-20)         // below the altitude field's range
	rec.TempC = f(123.4)         // overflows ±99.9
	rec.WindSpeedMS = f(600)     // > 999 kt

	out, err := Encode(domain.ObservationSelection{Record: rec, PeakWindKt: f(1200)}, "00")
	require.NoError(t, err)
	assert.Equal(t, "151000 2530N 08015W //// ///// //// //// +091 ////// /// /// /// 00", out.Line)
}

func TestEncode_Flags(t *testing.T) {
	sel := domain.ObservationSelection{Record: lowLevelRecord()}

	out, err := Encode(sel, "03")
	require.NoError(t, err)
	assert.Equal(t, "03", out.Line[65:])

	out, err = Encode(sel, "bad")
	require.NoError(t, err)
	assert.Equal(t, "//", out.Line[65:])
}

func TestEncode_RequiresTimestampAndPosition(t *testing.T) {
	rec := lowLevelRecord()
	rec.Lat = nil
	_, err := Encode(domain.ObservationSelection{Record: rec}, "")
	var ee *domain.EncodingError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 12, ee.Line)
	assert.ErrorIs(t, err, domain.ErrMissingPosition)

	rec = lowLevelRecord()
	rec.Time = time.Time{}
	_, err = Encode(domain.ObservationSelection{Record: rec}, "")
	assert.ErrorIs(t, err, domain.ErrMissingTimestamp)
}

func TestCoordinates(t *testing.T) {
	assert.Equal(t, "2530N", encodeLat(25.5))
	assert.Equal(t, "0001S", encodeLat(-0.01))
	assert.Equal(t, "9000N", encodeLat(90))
	assert.Equal(t, "/////", encodeLat(91))
	assert.Equal(t, "18000W", encodeLon(-179.9999))
	assert.Equal(t, "00000E", encodeLon(0))
}

func TestPhysics(t *testing.T) {
	assert.InDelta(t, 0, ISAHeight(SeaLevelHPa), 1e-9)
	assert.InDelta(t, 5574.38, ISAHeight(500), 0.01)
	assert.Zero(t, ISAHeight(1050), "heights below sea level clamp to zero")

	p0, ok := SurfacePressure(696.8, 3048.2, f(12.4))
	require.True(t, ok)
	assert.InDelta(t, 991.244, p0, 0.001)

	p0, ok = SurfacePressure(696.8, 3048.2, nil)
	require.True(t, ok)
	assert.InDelta(t, 1013.095, p0, 0.001)

	_, ok = SurfacePressure(700, 3000, f(-400))
	assert.False(t, ok)
}
