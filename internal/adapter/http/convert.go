package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/recon-hdob/internal/adapter/file"
	"github.com/couchcryptid/recon-hdob/internal/config"
	"github.com/couchcryptid/recon-hdob/internal/domain"
	"github.com/couchcryptid/recon-hdob/internal/hdob"
	"github.com/couchcryptid/recon-hdob/internal/pipeline"
	"github.com/couchcryptid/recon-hdob/internal/service"
)

// Response headers on /v1/convert.
const (
	HeaderDigest   = "X-HDOB-Digest"
	HeaderProduced = "X-HDOB-Produced"
	HeaderSkipped  = "X-HDOB-Skipped-Lines"
	HeaderCache    = "X-HDOB-Cache"
)

// conversion is a parsed request.
type conversion struct {
	req  service.Request
	msg  hdob.MessageOptions
	raw  bool
	name string
}

// plotResponse is the /v1/plot body.
type plotResponse struct {
	Mission string           `json:"mission"`
	Lines   []string         `json:"lines"`
	Points  []hdob.PlotPoint `json:"points"`
	Summary pipeline.Summary `json:"summary"`
	Cached  bool             `json:"cached"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	c, resp, ok := s.convert(w, r)
	if !ok {
		return
	}
	res := resp.Result

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set(HeaderDigest, res.Summary.Digest)
	w.Header().Set(HeaderProduced, strconv.Itoa(res.Summary.Produced))
	w.Header().Set(HeaderSkipped, strconv.Itoa(res.Summary.SkippedLines))
	w.Header().Set(HeaderCache, cacheState(resp.Cached))
	w.WriteHeader(http.StatusOK)

	var err error
	if c.raw {
		err = hdob.WriteRaw(w, res.Records)
	} else {
		err = hdob.WriteMessages(w, res.Records, c.msg)
	}
	if err != nil {
		s.logger.Warn("write hdob response failed", "error", err)
	}
}

func (s *Server) handlePlot(w http.ResponseWriter, r *http.Request) {
	c, resp, ok := s.convert(w, r)
	if !ok {
		return
	}
	res := resp.Result
	lines := make([]string, len(res.Records))
	for i, rec := range res.Records {
		lines[i] = rec.Line
	}
	sharedobs.WriteJSON(w, http.StatusOK, plotResponse{
		Mission: c.req.Mission,
		Lines:   lines,
		Points:  res.Plot,
		Summary: res.Summary,
		Cached:  resp.Cached,
	})
}

// convert parses the request, reads the body, and runs the conversion. On
// failure it writes the error response and returns false.
func (s *Server) convert(w http.ResponseWriter, r *http.Request) (*conversion, *service.Response, bool) {
	c, err := s.parseQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, err)
		return nil, nil, false
	}

	name := c.name
	if strings.EqualFold(r.Header.Get("Content-Encoding"), "gzip") {
		name += ".gz"
	}
	body := http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	lines, err := file.ReadLinesFrom(body, name)
	if err != nil {
		s.writeError(w, err)
		return nil, nil, false
	}
	c.req.Lines = lines

	resp, err := s.conv.Convert(r.Context(), c.req)
	if err != nil {
		s.writeError(w, err)
		return nil, nil, false
	}
	return c, resp, true
}

// parseQuery builds the job and framing from query parameters over the
// server defaults: interval, start, end, workers, anchor, flags, mission,
// name, storm_date, lines_per_message, raw.
func (s *Server) parseQuery(q url.Values) (*conversion, error) {
	job := s.opts.Job
	msg := s.opts.Message
	c := &conversion{name: q.Get("name")}

	if v := q.Get("interval"); v != "" {
		d, err := config.ParseInterval(v, s.opts.AllowAnyInterval)
		if err != nil {
			return nil, fmt.Errorf("%w: interval: %v", domain.ErrInvalidJob, err)
		}
		job.Interval = d
	}
	window, err := pipeline.ParseWindow(q.Get("start"), q.Get("end"))
	if err != nil {
		return nil, err
	}
	job.Window = window

	if v := q.Get("workers"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%w: workers %q is not a number", domain.ErrInvalidJob, v)
		}
		job.Workers = n
	}
	if v := q.Get("anchor"); v != "" {
		job.Anchor = domain.SelectionAnchor(v)
	}
	if v := q.Get("flags"); v != "" {
		job.Flags = v
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}

	msg.Mission = hdob.MissionFromName(c.name, msg.Mission)
	if v := q.Get("mission"); v != "" {
		msg.Mission = v
	}
	if v := q.Get("storm_date"); v != "" {
		d, err := config.ParseStormDate(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidJob, err)
		}
		msg.StormDate = d
	}
	if v := q.Get("lines_per_message"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: lines_per_message must be a positive number", domain.ErrInvalidJob)
		}
		msg.LinesPerMessage = n
	}
	if v := q.Get("raw"); v != "" {
		raw, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: raw must be true or false", domain.ErrInvalidJob)
		}
		c.raw = raw
	}

	c.req = service.Request{Job: job, Mission: msg.Mission}
	c.msg = msg
	return c, nil
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, kind := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("conversion failed", "error", err)
	}
	sharedobs.WriteJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}

// classify maps the error taxonomy onto HTTP statuses.
func classify(err error) (int, string) {
	var (
		tooLarge *http.MaxBytesError
		filter   *domain.FilterError
		ioErr    *domain.IOError
		encoding *domain.EncodingError
	)
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "body_too_large"
	case errors.As(err, &filter):
		return http.StatusBadRequest, "filter"
	case errors.Is(err, domain.ErrInvalidJob):
		return http.StatusBadRequest, "job"
	case errors.As(err, &ioErr):
		return http.StatusBadRequest, "input"
	case errors.As(err, &encoding):
		return http.StatusInternalServerError, "encoding"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func cacheState(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}
