package hdob

import (
	"bufio"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/couchcryptid/recon-hdob/internal/domain"
)

// Message framing defaults.
const (
	DefaultWMOHeader       = "URNT15"
	DefaultCenter          = "KNHC"
	DefaultMission         = "AFXXX 0000A INVEST"
	DefaultLinesPerMessage = 20
	Terminator             = "$$"
)

// MessageOptions controls how data lines are grouped into HDOB messages.
type MessageOptions struct {
	WMOHeader       string
	Center          string
	Mission         string
	StormDate       time.Time // zero means the UTC date of the first record
	LinesPerMessage int
}

// DefaultMessageOptions returns the framing used by NHC for recon HDOBs.
func DefaultMessageOptions() MessageOptions {
	return MessageOptions{
		WMOHeader:       DefaultWMOHeader,
		Center:          DefaultCenter,
		Mission:         DefaultMission,
		LinesPerMessage: DefaultLinesPerMessage,
	}
}

func (o MessageOptions) withDefaults() MessageOptions {
	d := DefaultMessageOptions()
	if o.WMOHeader == "" {
		o.WMOHeader = d.WMOHeader
	}
	if o.Center == "" {
		o.Center = d.Center
	}
	if o.Mission == "" {
		o.Mission = d.Mission
	}
	if o.LinesPerMessage < 1 {
		o.LinesPerMessage = d.LinesPerMessage
	}
	return o
}

// WriteMessages frames records into numbered messages separated by a blank
// line. Each header carries the day and time of the last observation in its
// message. Nothing is written for an empty record list.
func WriteMessages(w io.Writer, records []domain.HDOBRecord, opts MessageOptions) error {
	if len(records) == 0 {
		return nil
	}
	opts = opts.withDefaults()
	storm := opts.StormDate
	if storm.IsZero() {
		storm = records[0].Time
	}

	bw := bufio.NewWriter(w)
	num := 0
	for lo := 0; lo < len(records); lo += opts.LinesPerMessage {
		hi := min(lo+opts.LinesPerMessage, len(records))
		batch := records[lo:hi]
		num++
		if num > 1 {
			bw.WriteString("\n")
		}
		fmt.Fprintf(bw, "%s %s %s\n", opts.WMOHeader, opts.Center, batch[len(batch)-1].Time.UTC().Format("021504"))
		fmt.Fprintf(bw, "%s HDOB %02d %s\n", opts.Mission, num, storm.UTC().Format("20060102"))
		for _, r := range batch {
			bw.WriteString(r.Line)
			bw.WriteString("\n")
		}
		bw.WriteString(Terminator + "\n")
	}
	return bw.Flush()
}

// WriteRaw writes only the data lines, one per line.
func WriteRaw(w io.Writer, records []domain.HDOBRecord) error {
	bw := bufio.NewWriter(w)
	for _, r := range records {
		bw.WriteString(r.Line)
		bw.WriteString("\n")
	}
	return bw.Flush()
}

// FormatMessages is WriteMessages into a string.
func FormatMessages(records []domain.HDOBRecord, opts MessageOptions) string {
	var sb strings.Builder
	_ = WriteMessages(&sb, records, opts) // strings.Builder never fails
	return sb.String()
}

// MissionFromName derives a mission line prefix from a flight-log name such
// as "20240926I1_1309A_Helene.txt": the first NNNNA or NNNNB token followed by
// a storm name. It returns fallback when no such token exists.
func MissionFromName(name, fallback string) string {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	tokens := strings.Fields(strings.NewReplacer("_", " ", "-", " ").Replace(base))
	for i := 0; i+1 < len(tokens); i++ {
		if isMissionToken(tokens[i]) {
			return fmt.Sprintf("AFXXX %s %s", tokens[i], strings.ToUpper(tokens[i+1]))
		}
	}
	return fallback
}

func isMissionToken(s string) bool {
	if len(s) != 5 {
		return false
	}
	for _, c := range s[:4] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s[4] == 'A' || s[4] == 'B'
}
