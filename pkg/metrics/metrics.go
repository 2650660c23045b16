// Package metrics is a small Prometheus-compatible registry. Series are
// addressed by name with labels baked in (see WithLabels) and grouped into
// families by base name. Handler serves the text exposition format.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// DefaultBuckets are latency buckets in seconds, sized for remote API calls.
var DefaultBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32}

// Counter is a monotonically increasing counter.
type Counter struct{ n atomic.Int64 }

func (c *Counter) Inc()         { c.n.Add(1) }
func (c *Counter) Add(n int64)  { c.n.Add(n) }
func (c *Counter) Value() int64 { return c.n.Load() }

// GaugeFunc is a gauge sampled when the registry is rendered.
type GaugeFunc func() float64

// Histogram counts observations into fixed upper bounds.
type Histogram struct {
	mu     sync.Mutex
	bounds []float64
	hits   []uint64 // per bound, not cumulative
	sum    float64
	total  uint64
}

func newHistogram(bounds []float64) *Histogram {
	b := append([]float64(nil), bounds...)
	sort.Float64s(b)
	return &Histogram{bounds: b, hits: make([]uint64, len(b))}
}

// Observe records v.
func (h *Histogram) Observe(v float64) {
	i := sort.SearchFloat64s(h.bounds, v)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.total++
	if i < len(h.hits) {
		h.hits[i]++
	}
}

// Count returns the number of observations.
func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.total
}

func (h *Histogram) write(b *strings.Builder, base, labels string) {
	h.mu.Lock()
	hits := append([]uint64(nil), h.hits...)
	sum, total := h.sum, h.total
	h.mu.Unlock()

	prefix := ""
	if labels != "" {
		prefix = labels + ","
	}
	var cum uint64
	for i, le := range h.bounds {
		cum += hits[i]
		fmt.Fprintf(b, "%s_bucket{%sle=\"%g\"} %d\n", base, prefix, le, cum)
	}
	fmt.Fprintf(b, "%s_bucket{%sle=\"+Inf\"} %d\n", base, prefix, total)
	fmt.Fprintf(b, "%s %g\n", seriesName(base+"_sum", labels), sum)
	fmt.Fprintf(b, "%s %d\n", seriesName(base+"_count", labels), total)
}

type family struct {
	kind   string
	help   string
	series map[string]any // keyed by label list
}

// Registry holds metric families in registration order.
type Registry struct {
	mu       sync.Mutex
	families map[string]*family
	order    []string
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{families: make(map[string]*family)}
}

// series returns the series called name, creating it with mk on first use.
// Reusing a base name with a different kind panics.
func (r *Registry) series(name, kind, help string, mk func() any) any {
	base, labels := splitName(name)

	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.families[base]
	if !ok {
		f = &family{kind: kind, series: make(map[string]any)}
		r.families[base] = f
		r.order = append(r.order, base)
	}
	if f.kind != kind {
		panic(fmt.Sprintf("metrics: %s registered as %s, not %s", base, f.kind, kind))
	}
	if help != "" {
		f.help = help
	}
	s, ok := f.series[labels]
	if !ok {
		s = mk()
		f.series[labels] = s
	}
	return s
}

// Counter returns the counter called name, creating it if needed.
func (r *Registry) Counter(name, help string) *Counter {
	return r.series(name, "counter", help, func() any { return &Counter{} }).(*Counter)
}

// Histogram returns the histogram called name, creating it if needed.
// Nil bounds means DefaultBuckets.
func (r *Registry) Histogram(name, help string, bounds []float64) *Histogram {
	if bounds == nil {
		bounds = DefaultBuckets
	}
	return r.series(name, "histogram", help, func() any { return newHistogram(bounds) }).(*Histogram)
}

// GaugeFunc registers f as the gauge called name. A later call with the
// same name replaces f.
func (r *Registry) GaugeFunc(name, help string, f func() float64) {
	base, labels := splitName(name)
	r.series(name, "gauge", help, func() any { return GaugeFunc(f) })
	r.mu.Lock()
	r.families[base].series[labels] = GaugeFunc(f)
	r.mu.Unlock()
}

// WithLabels appends label pairs to name:
// WithLabels("foo", "k", "v") is `foo{k="v"}`. An odd pair list is ignored.
func WithLabels(name string, kvs ...string) string {
	if len(kvs) == 0 || len(kvs)%2 != 0 {
		return name
	}
	var b strings.Builder
	b.WriteString(name)
	for i := 0; i < len(kvs); i += 2 {
		if i == 0 {
			b.WriteByte('{')
		} else {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%q", kvs[i], kvs[i+1])
	}
	b.WriteByte('}')
	return b.String()
}

// splitName separates `foo{k="v"}` into "foo" and `k="v"`.
func splitName(name string) (base, labels string) {
	i := strings.IndexByte(name, '{')
	if i == -1 || !strings.HasSuffix(name, "}") {
		return name, ""
	}
	return name[:i], name[i+1 : len(name)-1]
}

func seriesName(base, labels string) string {
	if labels == "" {
		return base
	}
	return base + "{" + labels + "}"
}

// Render returns every family in the Prometheus text format.
func (r *Registry) Render() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	for _, base := range r.order {
		f := r.families[base]
		if f.help != "" {
			fmt.Fprintf(&b, "# HELP %s %s\n", base, f.help)
		}
		fmt.Fprintf(&b, "# TYPE %s %s\n", base, f.kind)

		keys := make([]string, 0, len(f.series))
		for k := range f.series {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, labels := range keys {
			switch s := f.series[labels].(type) {
			case *Counter:
				fmt.Fprintf(&b, "%s %d\n", seriesName(base, labels), s.Value())
			case GaugeFunc:
				fmt.Fprintf(&b, "%s %g\n", seriesName(base, labels), s())
			case *Histogram:
				s.write(&b, base, labels)
			}
		}
	}
	return b.String()
}

// Handler serves the registry.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(r.Render()))
	})
}
