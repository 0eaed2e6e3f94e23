package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/recon-hdob/internal/domain"
	"github.com/couchcryptid/recon-hdob/internal/hdob"
	"github.com/couchcryptid/recon-hdob/internal/observability"
	"github.com/couchcryptid/recon-hdob/internal/pipeline"
)

var start = time.Date(2024, 9, 26, 12, 0, 0, 0, time.UTC)

func flight(n int) []string {
	lines := make([]string, 0, n)
	for i := range n {
		ts := start.Add(time.Duration(i) * time.Second)
		lines = append(lines, fmt.Sprintf("IWG1,%s,25.5,-80.25,3048.2,,,,,,,,,,,,,,,,12.4,9.1,,696.8,,,20.5,140", ts.Format("2006-01-02T15:04:05")))
	}
	return lines
}

func job() domain.ConversionJob {
	return domain.ConversionJob{Interval: 30 * time.Second, Workers: 2}
}

type countingConverter struct {
	calls atomic.Int32
	inner *pipeline.Converter
	gate  chan struct{}
}

func (c *countingConverter) Convert(ctx context.Context, lines []string, j domain.ConversionJob) (*pipeline.Result, error) {
	c.calls.Add(1)
	if c.gate != nil {
		<-c.gate
	}
	return c.inner.Convert(ctx, lines, j)
}

type recordingPublisher struct {
	mu       sync.Mutex
	missions []string
	count    int
	err      error
	readyErr error
}

func (p *recordingPublisher) Publish(_ context.Context, mission string, records []domain.HDOBRecord, _ []hdob.PlotPoint) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.missions = append(p.missions, mission)
	p.count += len(records)
	return nil
}

func (p *recordingPublisher) CheckReadiness(context.Context) error { return p.readyErr }

func newService(t *testing.T, cacheSize int, opts ...Option) (*Service, *countingConverter, *observability.Metrics) {
	t.Helper()
	m := observability.NewMetricsForTesting()
	conv := &countingConverter{inner: pipeline.New(observability.DiscardLogger(), m)}
	return New(conv, cacheSize, observability.DiscardLogger(), m, opts...), conv, m
}

func TestConvert_CachesByContentAndJob(t *testing.T) {
	svc, conv, m := newService(t, 4)
	ctx := context.Background()
	lines := flight(120)

	first, err := svc.Convert(ctx, Request{Lines: lines, Job: job()})
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Len(t, first.Result.Records, 4)

	again, err := svc.Convert(ctx, Request{Lines: lines, Job: job()})
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Same(t, first.Result, again.Result)
	assert.Equal(t, int32(1), conv.calls.Load())

	other := job()
	other.Interval = time.Minute
	res, err := svc.Convert(ctx, Request{Lines: lines, Job: other})
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Len(t, res.Result.Records, 2)

	assert.InDelta(t, 1, testutil.ToFloat64(m.ResultCache.WithLabelValues("hit")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.ResultCache.WithLabelValues("miss")), 0)
}

func TestConvert_CacheDisabled(t *testing.T) {
	svc, conv, _ := newService(t, 0)
	for range 3 {
		_, err := svc.Convert(context.Background(), Request{Lines: flight(30), Job: job()})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), conv.calls.Load())
	assert.Zero(t, svc.cache.len())
}

func TestConvert_InvalidJobNotCached(t *testing.T) {
	svc, conv, _ := newService(t, 4)
	bad := job()
	bad.Workers = 0
	_, err := svc.Convert(context.Background(), Request{Lines: flight(30), Job: bad})
	assert.ErrorIs(t, err, domain.ErrInvalidJob)
	assert.Zero(t, conv.calls.Load())
	assert.Zero(t, svc.cache.len())
}

func TestConvert_ConcurrentDuplicatesRunOnce(t *testing.T) {
	svc, conv, _ := newService(t, 4)
	conv.gate = make(chan struct{})
	lines := flight(90)

	var wg sync.WaitGroup
	results := make([]*Response, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := svc.Convert(context.Background(), Request{Lines: lines, Job: job()})
			assert.NoError(t, err)
			results[i] = resp
		}()
	}
	// Let the callers pile up behind the first conversion.
	require.Eventually(t, func() bool { return conv.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(conv.gate)
	wg.Wait()

	assert.Equal(t, int32(1), conv.calls.Load())
	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, results[0].Result.Summary.Digest, r.Result.Summary.Digest)
	}
}

func TestConvert_CancelledLeaderDoesNotFailFollowers(t *testing.T) {
	svc, conv, _ := newService(t, 4)
	conv.gate = make(chan struct{})
	req := Request{Lines: flight(90), Job: job()}

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := svc.Convert(leaderCtx, req)
		leaderErr <- err
	}()
	require.Eventually(t, func() bool { return conv.calls.Load() == 1 }, time.Second, time.Millisecond)

	type outcome struct {
		resp *Response
		err  error
	}
	follower := make(chan outcome, 1)
	go func() {
		resp, err := svc.Convert(context.Background(), req)
		follower <- outcome{resp, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case err := <-leaderErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting on the shared conversion")
	}

	close(conv.gate)
	got := <-follower
	require.NoError(t, got.err)
	assert.Len(t, got.resp.Result.Records, 3)
	assert.Equal(t, int32(1), conv.calls.Load())

	again, err := svc.Convert(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, again.Cached, "the shared conversion still fills the cache")
}

func TestConvert_PublishesFreshResultsOnly(t *testing.T) {
	pub := &recordingPublisher{}
	svc, _, _ := newService(t, 4, WithPublisher(pub))
	req := Request{Lines: flight(120), Job: job(), Mission: "AF309 1309A HELENE"}

	resp, err := svc.Convert(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, resp.Published)

	resp, err = svc.Convert(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, resp.Published)

	assert.Equal(t, []string{"AF309 1309A HELENE"}, pub.missions)
	assert.Equal(t, 4, pub.count)
}

func TestConvert_PublishFailureKeepsResult(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc, _, _ := newService(t, 4, WithPublisher(pub))

	resp, err := svc.Convert(context.Background(), Request{Lines: flight(60), Job: job()})
	require.NoError(t, err)
	assert.False(t, resp.Published)
	assert.NotEmpty(t, resp.Result.Records)
}

func TestCheckReadiness(t *testing.T) {
	pub := &recordingPublisher{}
	svc, _, m := newService(t, 1, WithPublisher(pub))
	ctx := context.Background()

	require.Error(t, svc.CheckReadiness(ctx), "not started")

	svc.Start()
	require.NoError(t, svc.CheckReadiness(ctx))
	assert.InDelta(t, 1, testutil.ToFloat64(m.ServiceRunning), 0)

	pub.readyErr = errors.New("kafka unreachable")
	assert.EqualError(t, svc.CheckReadiness(ctx), "kafka unreachable")

	pub.readyErr = nil
	svc.Stop()
	assert.Error(t, svc.CheckReadiness(ctx))
	assert.Zero(t, testutil.ToFloat64(m.ServiceRunning))
}

func TestResultCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newResultCache(2)
	a, b, d := &pipeline.Result{}, &pipeline.Result{}, &pipeline.Result{}
	c.add("a", a)
	c.add("b", b)
	_, ok := c.get("a") // a is now most recent
	require.True(t, ok)
	c.add("d", d)

	_, ok = c.get("b")
	assert.False(t, ok, "b was least recently used")
	got, ok := c.get("a")
	assert.True(t, ok)
	assert.Same(t, a, got)
	assert.Equal(t, 2, c.len())

	c.add("a", d)
	got, _ = c.get("a")
	assert.Same(t, d, got, "re-adding replaces the value")
	assert.Equal(t, 2, c.len())
}

func TestCacheKey(t *testing.T) {
	lines := flight(3)
	j := job()
	assert.Equal(t, cacheKey(lines, j), cacheKey(append([]string(nil), lines...), j))

	j2 := j
	j2.Flags = "11"
	assert.NotEqual(t, cacheKey(lines, j), cacheKey(lines, j2))

	j3 := j
	j3.Window = domain.TimeWindow{From: &domain.Bound{TimeOfDay: true, OfDay: 12 * time.Hour}}
	j4 := j
	j4.Window = domain.TimeWindow{To: &domain.Bound{TimeOfDay: true, OfDay: 12 * time.Hour}}
	assert.NotEqual(t, cacheKey(lines, j3), cacheKey(lines, j4))

	assert.NotEqual(t, cacheKey([]string{"ab", "c"}, j), cacheKey([]string{"a", "bc"}, j))
}
