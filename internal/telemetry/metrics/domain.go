package metrics

// DomainGauges wires the fetch-pipeline introspection metrics: token-bucket
// fill rate per (domain, provider), circuit-breaker state, and daily budget
// spend per scope. Instruments are pre-registered at startup rather than
// constructed ad hoc at each call site.
type DomainGauges struct {
	BucketFillRatio  Gauge
	CircuitState     Gauge
	BudgetSpentUSD   Gauge
	HealthScore      Gauge
	FetchLatency     Histogram
	FetchAttempts    Counter
	AlertsRaised     Counter
	RunDuration      Histogram
}

// NewDomainGauges pre-registers every fetch-pipeline instrument against
// provider. Each instrument's label names, in order, are the Labels of its
// options below.
func NewDomainGauges(provider Provider) *DomainGauges {
	return &DomainGauges{
		BucketFillRatio: provider.NewGauge(GaugeOpts{CommonOpts{
			Namespace: "sentinel", Subsystem: "ratelimit", Name: "bucket_fill_ratio",
			Help:   "Current token bucket fill ratio in [0,1] per domain and provider.",
			Labels: []string{"domain", "provider"},
		}}),
		CircuitState: provider.NewGauge(GaugeOpts{CommonOpts{
			Namespace: "sentinel", Subsystem: "ratelimit", Name: "circuit_state",
			Help:   "Circuit breaker state per domain and provider: 0=closed, 1=half_open, 2=open.",
			Labels: []string{"domain", "provider"},
		}}),
		BudgetSpentUSD: provider.NewGauge(GaugeOpts{CommonOpts{
			Namespace: "sentinel", Subsystem: "budget", Name: "spent_usd",
			Help:   "Today's spend in USD per budget scope.",
			Labels: []string{"scope"},
		}}),
		HealthScore: provider.NewGauge(GaugeOpts{CommonOpts{
			Namespace: "sentinel", Subsystem: "rule", Name: "health_score",
			Help:   "Current health score (0-100) per rule.",
			Labels: []string{"rule_id"},
		}}),
		FetchLatency: provider.NewHistogram(HistogramOpts{CommonOpts: CommonOpts{
			Namespace: "sentinel", Subsystem: "fetch", Name: "latency_seconds",
			Help:   "Fetch adapter latency in seconds per provider and outcome.",
			Labels: []string{"provider", "outcome"},
		}}),
		FetchAttempts: provider.NewCounter(CounterOpts{CommonOpts{
			Namespace: "sentinel", Subsystem: "fetch", Name: "attempts_total",
			Help:   "Total fetch attempts per provider and outcome.",
			Labels: []string{"provider", "outcome"},
		}}),
		AlertsRaised: provider.NewCounter(CounterOpts{CommonOpts{
			Namespace: "sentinel", Subsystem: "alerts", Name: "raised_total",
			Help:   "Total alerts raised per alert type and severity.",
			Labels: []string{"alert_type", "severity"},
		}}),
		RunDuration: provider.NewHistogram(HistogramOpts{CommonOpts: CommonOpts{
			Namespace: "sentinel", Subsystem: "run", Name: "duration_seconds",
			Help:   "End-to-end run-processor duration in seconds per rule type.",
			Labels: []string{"rule_type"},
		}}),
	}
}

// CircuitStateValue maps the ratelimit package's breaker state to the
// numeric encoding CircuitState exposes.
func CircuitStateValue(open bool, halfOpen bool) float64 {
	switch {
	case open:
		return 2
	case halfOpen:
		return 1
	default:
		return 0
	}
}
