package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var metricNameRE = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)

const defaultCardinalityLimit = 200

// PrometheusProvider implements Provider over a Prometheus registry, with a
// per-metric label-cardinality guard so a misbehaving high-cardinality
// label (e.g. a raw domain or rule id) degrades to a warning counter
// instead of unbounded memory growth.
type PrometheusProvider struct {
	reg *prom.Registry

	mu         sync.RWMutex
	counters   map[string]*prom.CounterVec
	gauges     map[string]*prom.GaugeVec
	histograms map[string]*prom.HistogramVec

	cardinality map[string]map[string]struct{}
	cardLimit   int
	exceeded    map[string]struct{}
	warnCounter *prom.CounterVec

	handler http.Handler
}

type PrometheusOptions struct {
	Registry         *prom.Registry
	CardinalityLimit int
}

func NewPrometheusProvider(opts PrometheusOptions) *PrometheusProvider {
	reg := opts.Registry
	if reg == nil {
		reg = prom.NewRegistry()
	}
	limit := opts.CardinalityLimit
	if limit <= 0 {
		limit = defaultCardinalityLimit
	}
	warn := prom.NewCounterVec(prom.CounterOpts{
		Name: "sentinel_internal_cardinality_exceeded_total",
		Help: "count of metrics whose label cardinality exceeded the configured limit",
	}, []string{"metric"})
	_ = reg.Register(warn)

	return &PrometheusProvider{
		reg:         reg,
		counters:    make(map[string]*prom.CounterVec),
		gauges:      make(map[string]*prom.GaugeVec),
		histograms:  make(map[string]*prom.HistogramVec),
		cardinality: make(map[string]map[string]struct{}),
		cardLimit:   limit,
		exceeded:    make(map[string]struct{}),
		warnCounter: warn,
		handler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
}

func (p *PrometheusProvider) MetricsHandler() http.Handler { return p.handler }

func (p *PrometheusProvider) Health(context.Context) error { return nil }

func (p *PrometheusProvider) buildFQName(c CommonOpts) (string, error) {
	if c.Name == "" {
		return "", errors.New("metrics: name required")
	}
	fq := c.Name
	if c.Subsystem != "" {
		fq = c.Subsystem + "_" + fq
	}
	if c.Namespace != "" {
		fq = c.Namespace + "_" + fq
	}
	if !metricNameRE.MatchString(fq) {
		return "", fmt.Errorf("metrics: invalid metric name %q", fq)
	}
	return fq, nil
}

func (p *PrometheusProvider) NewCounter(opts CounterOpts) Counter {
	fq, err := p.buildFQName(opts.CommonOpts)
	if err != nil {
		return noopCounter{}
	}
	vec := p.counterVec(fq, opts.Help, opts.Labels)
	if vec == nil {
		return noopCounter{}
	}
	return &promCounter{vec: vec, provider: p, id: fq}
}

func (p *PrometheusProvider) counterVec(fq, help string, labels []string) *prom.CounterVec {
	p.mu.RLock()
	vec := p.counters[fq]
	p.mu.RUnlock()
	if vec != nil {
		return vec
	}
	vec = prom.NewCounterVec(prom.CounterOpts{Name: fq, Help: help}, labels)
	if err := p.reg.Register(vec); err != nil {
		if are, ok := err.(prom.AlreadyRegisteredError); ok {
			vec = are.ExistingCollector.(*prom.CounterVec)
		} else {
			return nil
		}
	}
	p.mu.Lock()
	p.counters[fq] = vec
	p.mu.Unlock()
	return vec
}

func (p *PrometheusProvider) NewGauge(opts GaugeOpts) Gauge {
	fq, err := p.buildFQName(opts.CommonOpts)
	if err != nil {
		return noopGauge{}
	}
	p.mu.RLock()
	vec := p.gauges[fq]
	p.mu.RUnlock()
	if vec == nil {
		vec = prom.NewGaugeVec(prom.GaugeOpts{Name: fq, Help: opts.Help}, opts.Labels)
		if err := p.reg.Register(vec); err != nil {
			if are, ok := err.(prom.AlreadyRegisteredError); ok {
				vec = are.ExistingCollector.(*prom.GaugeVec)
			} else {
				return noopGauge{}
			}
		}
		p.mu.Lock()
		p.gauges[fq] = vec
		p.mu.Unlock()
	}
	return &promGauge{vec: vec, provider: p, id: fq}
}

func (p *PrometheusProvider) NewHistogram(opts HistogramOpts) Histogram {
	fq, err := p.buildFQName(opts.CommonOpts)
	if err != nil {
		return noopHistogram{}
	}
	buckets := opts.Buckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}
	p.mu.RLock()
	vec := p.histograms[fq]
	p.mu.RUnlock()
	if vec == nil {
		vec = prom.NewHistogramVec(prom.HistogramOpts{Name: fq, Help: opts.Help, Buckets: buckets}, opts.Labels)
		if err := p.reg.Register(vec); err != nil {
			if are, ok := err.(prom.AlreadyRegisteredError); ok {
				vec = are.ExistingCollector.(*prom.HistogramVec)
			} else {
				return noopHistogram{}
			}
		}
		p.mu.Lock()
		p.histograms[fq] = vec
		p.mu.Unlock()
	}
	return &promHistogram{vec: vec, provider: p, id: fq}
}

func (p *PrometheusProvider) NewTimer(h HistogramOpts) func() Timer {
	hist := p.NewHistogram(h)
	return func() Timer { return &promTimer{hist: hist, start: time.Now()} }
}

// checkCardinality tracks distinct label-value joins seen for a metric and
// fires the warning counter once the configured limit is crossed; it never
// blocks the write itself.
func (p *PrometheusProvider) checkCardinality(id string, labels []string) {
	if len(labels) == 0 {
		return
	}
	key := fmt.Sprint(labels)
	p.mu.Lock()
	defer p.mu.Unlock()
	set := p.cardinality[id]
	if set == nil {
		set = make(map[string]struct{})
		p.cardinality[id] = set
	}
	set[key] = struct{}{}
	if len(set) > p.cardLimit {
		if _, warned := p.exceeded[id]; !warned {
			p.exceeded[id] = struct{}{}
			p.warnCounter.WithLabelValues(id).Inc()
		}
	}
}

type promCounter struct {
	vec      *prom.CounterVec
	provider *PrometheusProvider
	id       string
}

func (c *promCounter) Inc(delta float64, labels ...string) {
	c.provider.checkCardinality(c.id, labels)
	c.vec.WithLabelValues(labels...).Add(delta)
}

type promGauge struct {
	vec      *prom.GaugeVec
	provider *PrometheusProvider
	id       string
}

func (g *promGauge) Set(v float64, labels ...string) {
	g.provider.checkCardinality(g.id, labels)
	g.vec.WithLabelValues(labels...).Set(v)
}

func (g *promGauge) Add(delta float64, labels ...string) {
	g.provider.checkCardinality(g.id, labels)
	g.vec.WithLabelValues(labels...).Add(delta)
}

type promHistogram struct {
	vec      *prom.HistogramVec
	provider *PrometheusProvider
	id       string
}

func (h *promHistogram) Observe(v float64, labels ...string) {
	h.provider.checkCardinality(h.id, labels)
	h.vec.WithLabelValues(labels...).Observe(v)
}

type promTimer struct {
	hist  Histogram
	start time.Time
}

func (t *promTimer) ObserveDuration(labels ...string) {
	t.hist.Observe(time.Since(t.start).Seconds(), labels...)
}
