package pipeline

import (
	"time"

	"github.com/couchcryptid/recon-hdob/internal/domain"
	"github.com/couchcryptid/recon-hdob/internal/forkjoin"
)

// Segment is a contiguous run of buckets handled by one worker.
type Segment struct {
	Index   int
	Buckets []domain.TimeBucket
}

// Partition groups time-sorted records into epoch-aligned buckets of the
// given width. Only buckets holding records are returned; empty counts the
// buckets between the first and last record that held none. Bucket record
// slices share the input's backing array and must be treated as read-only.
func Partition(records []domain.TelemetryRecord, width time.Duration) (buckets []domain.TimeBucket, empty int) {
	if len(records) == 0 {
		return nil, 0
	}
	w := int64(width / time.Second)

	lo := 0
	cur := bucketIndex(records[0].Time, w)
	flush := func(hi int) {
		buckets = append(buckets, domain.TimeBucket{
			Index:   cur,
			Start:   time.Unix(cur*w, 0).UTC(),
			Width:   width,
			Records: records[lo:hi:hi],
		})
	}
	for i := 1; i < len(records); i++ {
		idx := bucketIndex(records[i].Time, w)
		if idx == cur {
			continue
		}
		flush(i)
		lo, cur = i, idx
	}
	flush(len(records))

	span := buckets[len(buckets)-1].Index - buckets[0].Index + 1
	return buckets, int(span) - len(buckets)
}

// bucketIndex is floor(unix seconds / width), correct for instants before
// the epoch too.
func bucketIndex(t time.Time, width int64) int64 {
	sec := t.Unix()
	idx := sec / width
	if sec%width < 0 {
		idx--
	}
	return idx
}

// Segments splits buckets into at most k contiguous segments whose sizes
// differ by at most one. Segment boundaries always fall between buckets.
func Segments(buckets []domain.TimeBucket, k int) []Segment {
	ranges := forkjoin.Split(len(buckets), k)
	segs := make([]Segment, len(ranges))
	for i, r := range ranges {
		segs[i] = Segment{Index: i, Buckets: buckets[r[0]:r[1]:r[1]]}
	}
	return segs
}
