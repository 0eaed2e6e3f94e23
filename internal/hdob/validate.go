package hdob

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	headerRe  = regexp.MustCompile(`^[A-Z]{4}\d{2} [A-Z]{4} (\d{6})$`)
	missionRe = regexp.MustCompile(`^(.+) HDOB (\d{2}) (\d{8})$`)
)

// Issue is one problem found by Check.
type Issue struct {
	Line int
	Msg  string
}

func (i Issue) String() string {
	return fmt.Sprintf("line %d: %s", i.Line, i.Msg)
}

// Report is the outcome of checking an HDOB file. Issues are grouped by the
// kind of check that raised them.
type Report struct {
	Raw       bool // no message framing, data lines only
	Messages  int
	DataLines int
	Framing   []Issue
	Fields    []Issue
	Order     []Issue
}

// OK reports whether no check raised an issue.
func (r *Report) OK() bool {
	return len(r.Framing) == 0 && len(r.Fields) == 0 && len(r.Order) == 0
}

// Check reads an HDOB file, framed or raw, and verifies line widths, field
// syntax, message framing and numbering, and chronological order. Midnight
// crossings are accepted.
func Check(r io.Reader) (*Report, error) {
	sc := bufio.NewScanner(r)
	rep := &Report{}
	c := checker{rep: rep, lastClock: -1}

	lineNo := 0
	for sc.Scan() {
		lineNo++
		c.line(lineNo, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read hdob: %w", err)
	}
	if c.state != stateBetween && !rep.Raw {
		rep.Framing = append(rep.Framing, Issue{lineNo, "last message has no " + Terminator})
	}
	return rep, nil
}

type checkState int

const (
	stateBetween checkState = iota // expecting a header or blank line
	stateMission                   // expecting the mission line
	stateData                      // expecting data lines or the terminator
)

type checker struct {
	rep       *Report
	state     checkState
	started   bool
	lastClock time.Duration
	msgLast   time.Duration // clock of the last data line in the current message
	msgStamp  string        // ddhhmm from the current header
}

func (c *checker) framing(line int, format string, args ...any) {
	c.rep.Framing = append(c.rep.Framing, Issue{line, fmt.Sprintf(format, args...)})
}

func (c *checker) line(n int, s string) {
	if !c.started && strings.TrimSpace(s) != "" {
		c.started = true
		if _, err := DecodeLine(s); err == nil {
			c.rep.Raw = true
		}
	}
	if c.rep.Raw {
		if strings.TrimSpace(s) != "" {
			c.data(n, s)
		}
		return
	}

	switch c.state {
	case stateBetween:
		if strings.TrimSpace(s) == "" {
			return
		}
		m := headerRe.FindStringSubmatch(s)
		if m == nil {
			c.framing(n, "expected message header, got %q", s)
			return
		}
		c.msgStamp = m[1]
		c.state = stateMission
	case stateMission:
		m := missionRe.FindStringSubmatch(s)
		if m == nil {
			c.framing(n, "expected mission line, got %q", s)
			c.state = stateData
			return
		}
		c.rep.Messages++
		if num, _ := strconv.Atoi(m[2]); num != c.rep.Messages {
			c.framing(n, "message number %02d, want %02d", num, c.rep.Messages)
		}
		if _, err := time.Parse("20060102", m[3]); err != nil {
			c.framing(n, "bad storm date %q", m[3])
		}
		c.msgLast = -1
		c.state = stateData
	case stateData:
		if s == Terminator {
			if c.msgLast >= 0 {
				want := c.msgLast.Truncate(time.Minute)
				if got := stampClock(c.msgStamp); got != want {
					c.framing(n, "header time %s does not match last observation", c.msgStamp)
				}
			}
			c.state = stateBetween
			return
		}
		c.data(n, s)
	}
}

func (c *checker) data(n int, s string) {
	obs, err := DecodeLine(s)
	if err != nil {
		c.rep.Fields = append(c.rep.Fields, Issue{n, err.Error()})
		return
	}
	c.rep.DataLines++
	c.msgLast = obs.Clock
	if c.lastClock >= 0 && obs.Clock < c.lastClock && c.lastClock-obs.Clock < 12*time.Hour {
		c.rep.Order = append(c.rep.Order, Issue{n, fmt.Sprintf("observation at %s precedes %s",
			fmtClock(obs.Clock), fmtClock(c.lastClock))})
	}
	c.lastClock = obs.Clock
}

// stampClock reads the hhmm part of a ddhhmm header stamp.
func stampClock(stamp string) time.Duration {
	h, _ := strconv.Atoi(stamp[2:4])
	m, _ := strconv.Atoi(stamp[4:6])
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
}

func fmtClock(d time.Duration) string {
	return time.Time{}.Add(d).Format("15:04:05")
}
