// Command genmock writes a synthetic IWG1 flight log: an aircraft flying
// straight legs through an idealized hurricane at constant pressure level.
// The output exercises every column the converter reads and, on request,
// data gaps, garbled lines, and out-of-order packets.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/mock/20240926I1_1309A_Mock.txt.gz \
//	  -start 2024-09-26T12:00:00 -duration 2h -seed 7 -gaps 3 -bad 25
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/recon-hdob/internal/adapter/file"
	"github.com/couchcryptid/recon-hdob/internal/hdob"
	"github.com/couchcryptid/recon-hdob/internal/iwg1"
)

const (
	columns        = 33 // IWG1 tag plus 32 values
	groundSpeedMS  = 120.0
	metresPerDegLa = 111_320.0
	eyeRadiusKm    = 30.0
	peakWindMS     = 55.0
	centralDropHPa = 60.0
)

type storm struct {
	lat, lon float64
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path (.gz, .zst, .lz4 compress)")
	startStr := flag.String("start", "2024-09-26T12:00:00", "first packet time (UTC)")
	duration := flag.Duration("duration", time.Hour, "flight length")
	seed := flag.Uint64("seed", 1, "random seed")
	gaps := flag.Int("gaps", 0, "number of 5-minute data gaps")
	bad := flag.Int("bad", 0, "number of garbled lines to inject")
	swaps := flag.Int("swaps", 0, "number of adjacent packet pairs to swap")
	lat := flag.Float64("lat", 25.0, "storm centre latitude")
	lon := flag.Float64("lon", -80.0, "storm centre longitude")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	start, err := iwg1.ParseTimestamp(*startStr)
	if err != nil {
		return fmt.Errorf("parse -start: %w", err)
	}

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	lines := generate(rng, start, *duration, storm{*lat, *lon})
	lines = dropGaps(rng, lines, *gaps, 300)
	lines = swapPairs(rng, lines, *swaps)
	lines = injectGarbage(rng, lines, *bad)

	err = file.WriteFile(*out, func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		bw.WriteString(header() + "\n")
		for _, l := range lines {
			bw.WriteString(l + "\n")
		}
		return bw.Flush()
	})
	if err != nil {
		return err
	}
	log.Printf("wrote %d packets to %s", len(lines), *out)
	return nil
}

func header() string {
	names := []string{"IWG1", "Date_Time", "Lat", "Lon", "GPS_MSL_Alt", "WGS_84_Alt", "Press_Alt", "Radar_Alt",
		"Grnd_Spd", "True_Airspeed", "Indicated_Airspeed", "Mach_Number", "Vert_Velocity", "True_Hdg", "Track",
		"Drift", "Pitch", "Roll", "Side_slip", "Angle_of_Attack", "Ambient_Temp", "Dew_Point", "Total_Temp",
		"Static_Press", "Dynamic_Press", "Cabin_Pressure", "Wind_Speed", "Wind_Dir", "Vert_Wind_Spd",
		"Solar_Zenith", "Sun_Elev_AC", "Sun_Az_Grd", "Sun_Az_AC"}
	return strings.Join(names, ",")
}

// generate flies legs of alternating heading through the storm centre, one
// packet per second.
func generate(rng *rand.Rand, start time.Time, d time.Duration, s storm) []string {
	n := int(d / time.Second)
	lines := make([]string, 0, n)

	legLen := 2 * 150_000.0 / groundSpeedMS // seconds per 300 km leg
	headings := []float64{45, 225, 135, 315}
	x, y := -150_000*math.Sin(rad(headings[0])), -150_000*math.Cos(rad(headings[0]))

	for i := range n {
		hdg := headings[int(float64(i)/legLen)%len(headings)]
		x += groundSpeedMS * math.Sin(rad(hdg))
		y += groundSpeedMS * math.Cos(rad(hdg))

		r := math.Hypot(x, y) / 1000
		speed := vortexWind(r) + rng.NormFloat64()*0.8
		// Cyclonic inflow: wind blows from 20 degrees outside the tangent.
		bearing := math.Mod(deg(math.Atan2(x, y))+360, 360)
		dir := math.Mod(bearing+90+20+360, 360)

		static := 700 - centralDropHPa*0.6*math.Exp(-r/eyeRadiusKm) + rng.NormFloat64()*0.2
		alt := hdob.ISAHeight(static) + 120*(1-math.Exp(-r/eyeRadiusKm)) - 250*math.Exp(-r/eyeRadiusKm)
		temp := 11 + 6*math.Exp(-r/eyeRadiusKm) + rng.NormFloat64()*0.3
		dew := temp - 1.5 - 3*math.Exp(-r/eyeRadiusKm)

		lat := s.lat + y/metresPerDegLa
		lon := s.lon + x/(metresPerDegLa*math.Cos(rad(s.lat)))

		cols := make([]string, columns)
		cols[0] = iwg1.Tag
		cols[1] = start.Add(time.Duration(i) * time.Second).UTC().Format("2006-01-02T15:04:05.000")
		cols[2] = f(lat, 6)
		cols[3] = f(lon, 6)
		cols[4] = f(alt, 1)
		cols[5] = f(alt+28, 1)
		cols[6] = f(hdob.ISAHeight(static), 1)
		cols[8] = f(groundSpeedMS, 1)
		cols[13] = f(hdg, 1)
		cols[20] = f(temp, 2)
		cols[21] = f(dew, 2)
		cols[23] = f(static, 2)
		cols[26] = f(math.Max(speed, 0), 2)
		cols[27] = f(dir, 1)
		lines = append(lines, strings.Join(cols, ","))
	}
	return lines
}

// vortexWind is a modified Rankine profile in m/s at radius r km.
func vortexWind(r float64) float64 {
	if r <= eyeRadiusKm {
		return peakWindMS * r / eyeRadiusKm
	}
	return peakWindMS * math.Pow(eyeRadiusKm/r, 0.6)
}

func dropGaps(rng *rand.Rand, lines []string, gaps, length int) []string {
	for range gaps {
		if len(lines) <= length*2 {
			break
		}
		at := rng.IntN(len(lines) - length)
		lines = append(lines[:at:at], lines[at+length:]...)
	}
	return lines
}

func swapPairs(rng *rand.Rand, lines []string, swaps int) []string {
	for range swaps {
		if len(lines) < 2 {
			break
		}
		i := rng.IntN(len(lines) - 1)
		lines[i], lines[i+1] = lines[i+1], lines[i]
	}
	return lines
}

func injectGarbage(rng *rand.Rand, lines []string, bad int) []string {
	garbage := []string{
		"IWG1,not-a-time,25.0,-80.0",
		"IWG1,2024-09-26T12:00:00,95.0,-80.0",
		"IWG1,2024-09-26T12:00:00,25.0,-80.0,abc",
		"GPS,$GPGGA,garbled",
		"IWG1",
	}
	for range bad {
		at := rng.IntN(len(lines) + 1)
		g := garbage[rng.IntN(len(garbage))]
		lines = append(lines[:at], append([]string{g}, lines[at:]...)...)
	}
	return lines
}

func f(v float64, prec int) string { return strconv.FormatFloat(v, 'f', prec, 64) }

func rad(d float64) float64 { return d * math.Pi / 180 }

func deg(r float64) float64 { return r * 180 / math.Pi }
