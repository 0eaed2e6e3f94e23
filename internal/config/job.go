package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/recon-hdob/internal/domain"
	"github.com/couchcryptid/recon-hdob/internal/hdob"
)

// JobFile is a conversion described in YAML:
//
//	path: flights/20240926I1_1309A_Helene.txt
//	interval: 30s
//	start: "15:00"
//	end: "18:30"
//	workers: 8
//	mission: AFXXX 1309A HELENE
//	out: out/helene.hdob
//
// Unset fields keep the environment defaults.
type JobFile struct {
	Path            string `yaml:"path"`
	URL             string `yaml:"url"`
	Interval        string `yaml:"interval"`
	Start           string `yaml:"start"`
	End             string `yaml:"end"`
	Workers         int    `yaml:"workers"`
	Anchor          string `yaml:"anchor"`
	Flags           string `yaml:"flags"`
	Mission         string `yaml:"mission"`
	StormDate       string `yaml:"storm_date"`
	LinesPerMessage int    `yaml:"lines_per_message"`
	Out             string `yaml:"out"`
	PlotOut         string `yaml:"plot_out"`
	Raw             bool   `yaml:"raw"`
}

// LoadJob reads and validates a job file. Unknown keys are rejected so
// typos do not silently fall back to defaults.
func LoadJob(path string) (*JobFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.IOError{Op: "read job", Path: path, Err: err}
	}
	return ParseJob(data)
}

// ParseJob decodes and validates YAML job data.
func ParseJob(data []byte) (*JobFile, error) {
	var j JobFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&j); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: decode job: %v", domain.ErrInvalidJob, err)
	}
	if err := j.validate(); err != nil {
		return nil, err
	}
	return &j, nil
}

func (j *JobFile) validate() error {
	if j.Path != "" && j.URL != "" {
		return fmt.Errorf("%w: path and url are mutually exclusive", domain.ErrInvalidJob)
	}
	if j.Interval != "" {
		if _, err := ParseInterval(j.Interval, true); err != nil {
			return fmt.Errorf("%w: interval: %v", domain.ErrInvalidJob, err)
		}
	}
	if j.Workers < 0 || j.Workers > maxWorkers {
		return fmt.Errorf("%w: workers must be 1-%d", domain.ErrInvalidJob, maxWorkers)
	}
	if j.LinesPerMessage < 0 {
		return fmt.Errorf("%w: lines_per_message must be positive", domain.ErrInvalidJob)
	}
	if j.StormDate != "" {
		if _, err := ParseStormDate(j.StormDate); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidJob, err)
		}
	}
	return nil
}

// Apply overlays the file's settings on a job and message options built
// from the environment. Interval checks honour allowAny.
func (j *JobFile) Apply(job *domain.ConversionJob, msg *hdob.MessageOptions, allowAny bool) error {
	if j.Interval != "" {
		d, err := ParseInterval(j.Interval, allowAny)
		if err != nil {
			return fmt.Errorf("%w: interval: %v", domain.ErrInvalidJob, err)
		}
		job.Interval = d
	}
	if j.Workers > 0 {
		job.Workers = j.Workers
	}
	if j.Anchor != "" {
		job.Anchor = domain.SelectionAnchor(j.Anchor)
	}
	if j.Flags != "" {
		job.Flags = j.Flags
	}
	if j.Mission != "" {
		msg.Mission = j.Mission
	}
	if j.StormDate != "" {
		d, err := ParseStormDate(j.StormDate)
		if err != nil {
			return err
		}
		msg.StormDate = d
	}
	if j.LinesPerMessage > 0 {
		msg.LinesPerMessage = j.LinesPerMessage
	}
	return nil
}

// ParseStormDate reads a YYYYMMDD date as UTC midnight.
func ParseStormDate(s string) (time.Time, error) {
	d, err := time.Parse("20060102", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("storm date %q is not YYYYMMDD", s)
	}
	return d, nil
}
