// Command recon converts an IWG1 flight log into HDOB observations.
//
// Defaults come from the environment (see internal/config), then an optional
// YAML job file, then flags. HDOB text goes to -out or stdout; logs and the
// run summary go to stderr.
//
// Usage:
//
//	go run ./cmd/recon -path flights/20240926I1_1309A_Helene.txt.gz -interval 30 -out helene.hdob
//	go run ./cmd/recon -url https://example.org/iwg1/N42RF.txt -start 15:00 -end 18:30 -raw
//	go run ./cmd/recon -job jobs/helene.yaml -plot-out helene.csv
//
// Exit codes: 0 success, 1 usage or configuration error, 2 no telemetry
// rows parsed, 3 no HDOB output produced, 4 invalid time window.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"path"
	"slices"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/couchcryptid/recon-hdob/internal/adapter/file"
	"github.com/couchcryptid/recon-hdob/internal/adapter/remote"
	"github.com/couchcryptid/recon-hdob/internal/config"
	"github.com/couchcryptid/recon-hdob/internal/domain"
	"github.com/couchcryptid/recon-hdob/internal/hdob"
	"github.com/couchcryptid/recon-hdob/internal/observability"
	"github.com/couchcryptid/recon-hdob/internal/pipeline"
)

const (
	exitOK = iota
	exitUsage
	exitNoRows
	exitNoOutput
	exitBadWindow
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// invocation is everything one run needs, after defaults, job file, and
// flags have been merged.
type invocation struct {
	path, url     string
	out, plotOut  string
	raw           bool
	start, end    string
	job           domain.ConversionJob
	msg           hdob.MessageOptions
	missionForced bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "recon: %v\n", err)
		return exitUsage
	}
	logFormat := cfg.LogFormat
	if os.Getenv("LOG_FORMAT") == "" {
		logFormat = "text"
	}
	logger := observability.NewLogger(stderr, cfg.LogLevel, logFormat)

	inv, err := parseArgs(args, cfg, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "recon: %v\n", err)
		return exitUsage
	}

	window, err := pipeline.ParseWindow(inv.start, inv.end)
	if err != nil {
		fmt.Fprintf(stderr, "recon: %v\n", err)
		return exitBadWindow
	}
	inv.job.Window = window
	if err := inv.job.Validate(); err != nil {
		fmt.Fprintf(stderr, "recon: %v\n", err)
		return exitCode(err)
	}

	lines, source, err := readInput(ctx, inv, cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "recon: %v\n", err)
		return exitUsage
	}
	if !inv.missionForced {
		inv.msg.Mission = hdob.MissionFromName(path.Base(source), inv.msg.Mission)
	}

	conv := pipeline.New(logger, observability.NewMetricsWith(prometheus.NewRegistry()))
	res, err := conv.Convert(ctx, lines, inv.job)
	if err != nil {
		fmt.Fprintf(stderr, "recon: %v\n", err)
		return exitCode(err)
	}

	sum := res.Summary
	if sum.Records == 0 {
		fmt.Fprintf(stderr, "recon: no telemetry rows parsed from %s (%s lines, %s skipped)\n",
			source, humanize.Comma(int64(sum.TotalLines)), humanize.Comma(int64(sum.SkippedLines)))
		return exitNoRows
	}
	if sum.Produced == 0 {
		fmt.Fprintf(stderr, "recon: no HDOB observations produced (%s records, %s outside window)\n",
			humanize.Comma(int64(sum.Records)), humanize.Comma(int64(sum.OutsideWindow)))
		return exitNoOutput
	}

	if err := writeOutputs(inv, res, stdout); err != nil {
		fmt.Fprintf(stderr, "recon: %v\n", err)
		return exitUsage
	}
	printSummary(stderr, source, lines, inv, res)
	return exitOK
}

func parseArgs(args []string, cfg *config.Config, stderr io.Writer) (*invocation, error) {
	fs := flag.NewFlagSet("recon", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		pathFlag  = fs.String("path", "", "IWG1 flight log (.gz, .zst, .lz4 accepted)")
		urlFlag   = fs.String("url", "", "IWG1 flight log URL")
		interval  = fs.String("interval", cfg.Interval.String(), "HDOB interval: seconds or duration")
		start     = fs.String("start", "", "UTC window start: timestamp or HH:MM[:SS]")
		end       = fs.String("end", "", "UTC window end: timestamp or HH:MM[:SS]")
		workers   = fs.Int("workers", cfg.Workers, "parallel segments")
		anchor    = fs.String("anchor", string(cfg.Anchor), "selection anchor: start or center")
		flags     = fs.String("flags", cfg.Flags, "two-character quality flag field")
		mission   = fs.String("mission", "", "mission identifier line, e.g. \"AF309 1309A HELENE\"")
		stormDate = fs.String("storm-date", "", "storm date YYYYMMDD (default: first observation)")
		perMsg    = fs.Int("lines-per-message", cfg.LinesPerMessage, "data lines per HDOB message")
		out       = fs.String("out", "", "output file (default stdout; .gz and .zst compress)")
		plotOut   = fs.String("plot-out", "", "plot feed CSV output")
		raw       = fs.Bool("raw", false, "write data lines only, without message framing")
		jobPath   = fs.String("job", "", "YAML job file")
		allowAny  = fs.Bool("allow-any-interval", cfg.AllowAnyInterval, "accept intervals other than 10, 30, 60, 120 s")
	)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	inv := &invocation{job: cfg.Job(), msg: cfg.MessageOptions()}
	if *jobPath != "" {
		jf, err := config.LoadJob(*jobPath)
		if err != nil {
			return nil, err
		}
		if err := jf.Apply(&inv.job, &inv.msg, *allowAny); err != nil {
			return nil, err
		}
		inv.path, inv.url = jf.Path, jf.URL
		inv.start, inv.end = jf.Start, jf.End
		inv.out, inv.plotOut, inv.raw = jf.Out, jf.PlotOut, jf.Raw
		inv.missionForced = jf.Mission != ""
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["path"] && set["url"] {
		return nil, errors.New("-path and -url are mutually exclusive")
	}

	var err error
	fs.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "path":
			inv.path, inv.url = *pathFlag, ""
		case "url":
			inv.url, inv.path = *urlFlag, ""
		case "interval":
			inv.job.Interval, err = config.ParseInterval(*interval, *allowAny)
			if err != nil {
				err = fmt.Errorf("%w: interval: %v", domain.ErrInvalidJob, err)
			}
		case "start":
			inv.start = *start
		case "end":
			inv.end = *end
		case "workers":
			inv.job.Workers = *workers
		case "anchor":
			inv.job.Anchor = domain.SelectionAnchor(*anchor)
		case "flags":
			inv.job.Flags = *flags
		case "mission":
			inv.msg.Mission, inv.missionForced = *mission, true
		case "storm-date":
			inv.msg.StormDate, err = config.ParseStormDate(*stormDate)
		case "lines-per-message":
			if *perMsg < 1 {
				err = errors.New("-lines-per-message must be positive")
			}
			inv.msg.LinesPerMessage = *perMsg
		case "out":
			inv.out = *out
		case "plot-out":
			inv.plotOut = *plotOut
		case "raw":
			inv.raw = *raw
		}
	})
	if err != nil {
		return nil, err
	}

	switch {
	case inv.path == "" && inv.url == "":
		fs.Usage()
		return nil, errors.New("one of -path or -url is required")
	case inv.path != "" && inv.url != "":
		return nil, errors.New("-path and -url are mutually exclusive")
	}
	return inv, nil
}

// readInput returns the input lines and the name used to label them.
func readInput(ctx context.Context, inv *invocation, cfg *config.Config, logger *slog.Logger) ([]string, string, error) {
	if inv.url != "" {
		lines, err := remote.NewClient(cfg.FetchTimeout, logger).FetchLines(ctx, inv.url)
		return lines, inv.url, err
	}
	lines, err := file.ReadLines(inv.path)
	return lines, inv.path, err
}

func writeOutputs(inv *invocation, res *pipeline.Result, stdout io.Writer) error {
	writeHDOB := func(w io.Writer) error {
		if inv.raw {
			return hdob.WriteRaw(w, res.Records)
		}
		return hdob.WriteMessages(w, res.Records, inv.msg)
	}
	if inv.out == "" {
		if err := writeHDOB(stdout); err != nil {
			return &domain.IOError{Op: "write", Path: "stdout", Err: err}
		}
	} else if err := file.WriteFile(inv.out, writeHDOB); err != nil {
		return err
	}

	if inv.plotOut != "" {
		return file.WriteFile(inv.plotOut, func(w io.Writer) error {
			return hdob.WritePlotCSV(w, res.Plot)
		})
	}
	return nil
}

func printSummary(w io.Writer, source string, lines []string, inv *invocation, res *pipeline.Result) {
	var inBytes uint64
	for _, l := range lines {
		inBytes += uint64(len(l)) + 1
	}
	s := res.Summary
	fmt.Fprintf(w, "%s: %s lines (%s), %s records, %s skipped, %s outside window\n",
		source,
		humanize.Comma(int64(s.TotalLines)),
		humanize.Bytes(inBytes),
		humanize.Comma(int64(s.Records)),
		humanize.Comma(int64(s.SkippedLines)),
		humanize.Comma(int64(s.OutsideWindow)),
	)
	fmt.Fprintf(w, "%s HDOB observations at %s (%s empty intervals) for %q, %d segments, digest %s, took %s\n",
		humanize.Comma(int64(s.Produced)),
		inv.job.Interval,
		humanize.Comma(int64(s.EmptyBuckets)),
		inv.msg.Mission,
		s.Segments,
		s.Digest,
		s.Duration,
	)
	for _, reason := range slices.Sorted(maps.Keys(s.SkipReasons)) {
		fmt.Fprintf(w, "  skipped %-12s %s\n", reason, humanize.Comma(int64(s.SkipReasons[reason])))
	}
}

// exitCode maps a conversion error to the process exit status.
func exitCode(err error) int {
	var filter *domain.FilterError
	if errors.As(err, &filter) {
		return exitBadWindow
	}
	return exitUsage
}
