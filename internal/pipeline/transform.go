package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/recon-hdob/internal/domain"
	"github.com/couchcryptid/recon-hdob/internal/hdob"
)

// HDOBTransformer implements SegmentProcessor: nearest-to-anchor selection
// followed by HDOB encoding, one bucket at a time.
type HDOBTransformer struct {
	logger *slog.Logger
}

// NewTransformer creates an HDOBTransformer.
func NewTransformer(logger *slog.Logger) *HDOBTransformer {
	return &HDOBTransformer{logger: logger}
}

// Process encodes every non-empty bucket of seg in order. It reads only the
// segment it is given.
func (t *HDOBTransformer) Process(ctx context.Context, seg Segment, job domain.ConversionJob) ([]domain.HDOBRecord, error) {
	anchor := job.EffectiveAnchor()
	flags := job.EffectiveFlags()

	out := make([]domain.HDOBRecord, 0, len(seg.Buckets))
	for _, b := range seg.Buckets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sel, ok := Select(b, anchor)
		if !ok {
			continue
		}
		rec, err := hdob.Encode(sel, flags)
		if err != nil {
			return nil, fmt.Errorf("segment %d bucket %s: %w", seg.Index, b.Start.Format("15:04:05"), err)
		}
		out = append(out, rec)
	}
	t.logger.Debug("segment encoded", "segment", seg.Index, "buckets", len(seg.Buckets), "records", len(out))
	return out, nil
}
