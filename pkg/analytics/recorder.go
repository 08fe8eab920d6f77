package analytics

import (
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/getmockd/sandbox/internal/id"
	"github.com/getmockd/sandbox/pkg/events"
	"github.com/getmockd/sandbox/pkg/logging"
	"github.com/getmockd/sandbox/pkg/metrics"
)

const (
	// DefaultMaxEntries is the ring buffer size when none is configured.
	DefaultMaxEntries = 5000
	// DefaultBucket is the timeline interval when none is requested.
	DefaultBucket = time.Minute
	// maxBuckets caps the timeline length; wider spans get wider buckets.
	maxBuckets = 500
	// topEndpoints is the number of entries in Summary.TopEndpoints.
	topEndpoints = 10
)

// Recorder keeps the most recent calls in a ring buffer.
type Recorder struct {
	mu    sync.RWMutex
	buf   []*Call
	next  int
	count int

	pub     events.Publisher
	metrics *metrics.Set
	log     *slog.Logger
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithPublisher sets where call.recorded events are sent.
func WithPublisher(p events.Publisher) Option {
	return func(r *Recorder) {
		if p != nil {
			r.pub = p
		}
	}
}

// WithMetrics sets the metrics updated for each call.
func WithMetrics(m *metrics.Set) Option {
	return func(r *Recorder) { r.metrics = m }
}

// WithLogger sets the recorder logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Recorder) {
		if log != nil {
			r.log = log
		}
	}
}

// NewRecorder returns a recorder keeping up to maxEntries calls.
func NewRecorder(maxEntries int, opts ...Option) *Recorder {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	r := &Recorder{
		buf: make([]*Call, maxEntries),
		pub: events.NopPublisher{},
		log: logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Capacity returns the ring buffer size.
func (r *Recorder) Capacity() int { return len(r.buf) }

// Record stores call, evicting the oldest entry when full. Missing ID and
// Timestamp are filled in.
func (r *Recorder) Record(call *Call) {
	if call == nil {
		return
	}
	c := *call
	if c.ID == "" {
		c.ID = id.Sortable()
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now().UTC()
	}

	r.mu.Lock()
	r.buf[r.next] = &c
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
	r.mu.Unlock()

	r.metrics.ObserveMockCall(c.EnvironmentID, c.Method, c.Status,
		time.Duration(c.DurationMs*float64(time.Millisecond)))
	r.pub.Publish(events.TypeCallRecorded, &c)
}

// snapshot returns matching calls, newest first.
func (r *Recorder) snapshot(f *Filter) []*Call {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Call, 0, r.count)
	for i := 1; i <= r.count; i++ {
		c := r.buf[(r.next-i+len(r.buf))%len(r.buf)]
		if f == nil || f.matches(c) {
			out = append(out, c)
		}
	}
	return out
}

// Query returns calls matching f, newest first, after applying Offset and
// Limit. total is the number of matches before paging.
func (r *Recorder) Query(f Filter) (calls []*Call, total int, err error) {
	if err := f.Validate(); err != nil {
		return nil, 0, err
	}
	matched := r.snapshot(&f)
	total = len(matched)
	if f.Offset >= len(matched) {
		return []*Call{}, total, nil
	}
	matched = matched[f.Offset:]
	if f.Limit > 0 && f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}
	out := make([]*Call, len(matched))
	for i, c := range matched {
		cp := *c
		out[i] = &cp
	}
	return out, total, nil
}

// Len returns the number of stored calls.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Clear removes calls for environmentID, or every call when it is empty.
// It returns the number removed.
func (r *Recorder) Clear(environmentID string) int {
	r.mu.Lock()
	var removed int
	if environmentID == "" {
		removed = r.count
		r.buf = make([]*Call, len(r.buf))
		r.next, r.count = 0, 0
	} else {
		kept := make([]*Call, 0, r.count)
		for i := r.count; i >= 1; i-- {
			c := r.buf[(r.next-i+len(r.buf))%len(r.buf)]
			if c.EnvironmentID != environmentID {
				kept = append(kept, c)
			}
		}
		removed = r.count - len(kept)
		r.buf = make([]*Call, len(r.buf))
		copy(r.buf, kept)
		r.count = len(kept)
		r.next = len(kept) % len(r.buf)
	}
	r.mu.Unlock()

	if removed > 0 {
		r.log.Debug("analytics cleared", "environment", environmentID, "removed", removed)
	}
	r.pub.Publish(events.TypeAnalyticsCleared, map[string]any{
		"environmentId": environmentID,
		"removed":       removed,
	})
	return removed
}

// Summary aggregates calls matching f. Limit and Offset are ignored. bucket
// sets the timeline interval; zero selects DefaultBucket.
func (r *Recorder) Summary(f Filter, bucket time.Duration) (*Summary, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return Summarize(r.snapshot(&f), bucket), nil
}

// Summarize aggregates calls.
func Summarize(calls []*Call, bucket time.Duration) *Summary {
	s := &Summary{
		ByStatusClass: map[string]int{},
		ByEnvironment: map[string]int{},
		ByMethod:      map[string]int{},
		TopEndpoints:  []EndpointStat{},
		Timeline:      []Bucket{},
	}
	if len(calls) == 0 {
		return s
	}

	durations := make([]float64, 0, len(calls))
	endpoints := map[[2]string]*EndpointStat{}
	var sum float64
	first, last := calls[0].Timestamp, calls[0].Timestamp

	for _, c := range calls {
		s.Total++
		if c.IsError() {
			s.Errors++
		}
		sum += c.DurationMs
		durations = append(durations, c.DurationMs)
		s.MaxMs = math.Max(s.MaxMs, c.DurationMs)
		s.ByStatusClass[c.StatusClass()]++
		s.ByEnvironment[c.EnvironmentID]++
		s.ByMethod[c.Method]++

		route := c.Route
		if route == "" {
			route = c.Path
		}
		key := [2]string{c.Method, route}
		ep, ok := endpoints[key]
		if !ok {
			ep = &EndpointStat{Method: c.Method, Route: route}
			endpoints[key] = ep
		}
		ep.Count++
		ep.AvgMs += c.DurationMs
		if c.IsError() {
			ep.Errors++
		}

		if c.Timestamp.Before(first) {
			first = c.Timestamp
		}
		if c.Timestamp.After(last) {
			last = c.Timestamp
		}
	}

	s.AvgMs = round2(sum / float64(s.Total))
	s.ErrorRate = round2(float64(s.Errors) / float64(s.Total))
	sort.Float64s(durations)
	s.P50Ms = percentile(durations, 0.50)
	s.P95Ms = percentile(durations, 0.95)

	for _, ep := range endpoints {
		ep.AvgMs = round2(ep.AvgMs / float64(ep.Count))
		s.TopEndpoints = append(s.TopEndpoints, *ep)
	}
	sort.Slice(s.TopEndpoints, func(i, j int) bool {
		a, b := s.TopEndpoints[i], s.TopEndpoints[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.Route != b.Route {
			return a.Route < b.Route
		}
		return a.Method < b.Method
	})
	if len(s.TopEndpoints) > topEndpoints {
		s.TopEndpoints = s.TopEndpoints[:topEndpoints]
	}

	s.Timeline = timeline(calls, first, last, bucket)
	return s
}

func timeline(calls []*Call, first, last time.Time, bucket time.Duration) []Bucket {
	if bucket <= 0 {
		bucket = DefaultBucket
	}
	start := first.Truncate(bucket)
	for last.Sub(start)/bucket >= maxBuckets {
		bucket *= 2
		start = first.Truncate(bucket)
	}
	n := int(last.Sub(start)/bucket) + 1
	out := make([]Bucket, n)
	sums := make([]float64, n)
	for i := range out {
		out[i].Start = start.Add(time.Duration(i) * bucket)
	}
	for _, c := range calls {
		i := int(c.Timestamp.Sub(start) / bucket)
		out[i].Count++
		sums[i] += c.DurationMs
		if c.IsError() {
			out[i].Errors++
		}
	}
	for i := range out {
		if out[i].Count > 0 {
			out[i].AvgMs = round2(sums[i] / float64(out[i].Count))
		}
	}
	return out
}

// percentile uses the nearest-rank method on sorted values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	return sorted[rank]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
