// Command validate checks an HDOB file: message framing and numbering, the
// fixed-width field syntax of every data line, and chronological order. With
// -iwg1 it also re-converts the source flight log and verifies the file's
// data lines match the conversion byte for byte.
//
// Usage:
//
//	go run ./cmd/validate -in out/20240926I1_1309A.hdob
//	go run ./cmd/validate -in out/hdob.txt -iwg1 data/flight.txt.gz -interval 30s
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/couchcryptid/recon-hdob/internal/adapter/file"
	"github.com/couchcryptid/recon-hdob/internal/config"
	"github.com/couchcryptid/recon-hdob/internal/domain"
	"github.com/couchcryptid/recon-hdob/internal/hdob"
	"github.com/couchcryptid/recon-hdob/internal/observability"
	"github.com/couchcryptid/recon-hdob/internal/pipeline"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func issues(name string, found []hdob.Issue) *phase {
	p := &phase{name: name}
	for _, is := range found {
		p.errorf("%s", is)
	}
	return p
}

type options struct {
	in, source     string
	interval       string
	start, end     string
	anchor, flags  string
	allowAnyPeriod bool
}

func main() {
	var o options
	flag.StringVar(&o.in, "in", "", "HDOB file to check (.gz, .zst, .lz4 accepted)")
	flag.StringVar(&o.source, "iwg1", "", "IWG1 flight log the file was converted from")
	flag.StringVar(&o.interval, "interval", "30s", "interval used for the conversion")
	flag.StringVar(&o.start, "start", "", "window start used for the conversion")
	flag.StringVar(&o.end, "end", "", "window end used for the conversion")
	flag.StringVar(&o.anchor, "anchor", string(domain.AnchorStart), "selection anchor used for the conversion")
	flag.StringVar(&o.flags, "flags", domain.DefaultFlags, "quality flags used for the conversion")
	flag.BoolVar(&o.allowAnyPeriod, "allow-any-interval", false, "accept non-standard intervals")
	flag.Parse()

	if o.in == "" {
		flag.Usage()
		os.Exit(1)
	}
	os.Exit(run(o))
}

func run(o options) int {
	fmt.Println("=== HDOB Validation ===")
	fmt.Println()

	lines, err := file.ReadLines(o.in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	report, err := hdob.Check(strings.NewReader(strings.Join(lines, "\n")))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	framing := issues("Phase 1: Message framing", report.Framing)
	if report.Raw {
		framing.name = "Phase 1: Message framing (raw, skipped)"
	}
	phases := []*phase{
		framing,
		issues("Phase 2: Field syntax (fixed width)", report.Fields),
		issues("Phase 3: Chronological order", report.Order),
	}
	if o.source != "" {
		phases = append(phases, sourceParity(o, dataLines(lines)))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Lines: %d total, %d data, %d messages\n", len(lines), report.DataLines, report.Messages)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// dataLines keeps the lines that decode as HDOB observations.
func dataLines(lines []string) []domain.HDOBRecord {
	var out []domain.HDOBRecord
	for _, l := range lines {
		l = strings.TrimRight(l, "\r")
		if _, err := hdob.DecodeLine(l); err == nil {
			out = append(out, domain.HDOBRecord{Line: l})
		}
	}
	return out
}

// ── Phase 4: Source Parity ──
// Re-converts the IWG1 log with the given job and compares line by line.

func sourceParity(o options, got []domain.HDOBRecord) *phase {
	p := &phase{name: "Phase 4: Source parity (re-conversion)"}

	interval, err := config.ParseInterval(o.interval, o.allowAnyPeriod)
	if err != nil {
		p.errorf("interval: %v", err)
		return p
	}
	window, err := pipeline.ParseWindow(o.start, o.end)
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	src, err := file.ReadLines(o.source)
	if err != nil {
		p.errorf("%v", err)
		return p
	}

	logger := observability.DiscardLogger()
	conv := pipeline.New(logger, observability.NewMetricsWith(prometheus.NewRegistry()))
	job := domain.ConversionJob{
		Interval: interval,
		Window:   window,
		Workers:  runtime.NumCPU(),
		Anchor:   domain.SelectionAnchor(o.anchor),
		Flags:    o.flags,
	}
	res, err := conv.Convert(context.Background(), src, job)
	if err != nil {
		p.errorf("convert %s: %v", o.source, err)
		return p
	}

	want := res.Records
	if len(want) != len(got) {
		p.errorf("line count: conversion produced %d, file has %d", len(want), len(got))
	}
	for i := range min(len(want), len(got)) {
		if want[i].Line != got[i].Line {
			p.errorf("data line %d: expected %q, got %q", i+1, want[i].Line, got[i].Line)
		}
		if len(p.errors) >= 20 {
			p.errorf("further mismatches omitted")
			break
		}
	}
	if d := pipeline.Digest(got); d != res.Summary.Digest {
		p.errorf("digest: conversion %s, file %s", res.Summary.Digest, d)
	}
	return p
}
