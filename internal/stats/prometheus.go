package stats

import "github.com/prometheus/client_golang/prometheus"

const namespace = "lms_assistant"

// Exporter publishes Collector snapshots as Prometheus metrics. Values are
// read at scrape time, so nothing is counted twice.
type Exporter struct {
	c *Collector

	requests      *prometheus.Desc
	providerCalls *prometheus.Desc
	quotaErrors   *prometheus.Desc
	tokens        *prometheus.Desc
	avgResponse   *prometheus.Desc
	cacheLookups  *prometheus.Desc
	uptime        *prometheus.Desc
}

func NewExporter(c *Collector) *Exporter {
	return &Exporter{
		c: c,
		requests: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "requests_total"),
			"Assistant requests by outcome",
			[]string{"status"}, nil),
		providerCalls: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "provider", "calls_total"),
			"Provider calls by outcome",
			[]string{"provider", "status"}, nil),
		quotaErrors: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "provider", "quota_errors_total"),
			"Provider calls rejected for quota or rate limits",
			[]string{"provider"}, nil),
		tokens: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "provider", "tokens_total"),
			"Tokens consumed by successful provider calls",
			[]string{"provider"}, nil),
		avgResponse: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "provider", "avg_response_milliseconds"),
			"Mean provider response time",
			[]string{"provider"}, nil),
		cacheLookups: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "lookups_total"),
			"Response cache lookups by result",
			[]string{"result"}, nil),
		uptime: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "uptime_seconds"),
			"Seconds since the collector started",
			nil, nil),
	}
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.requests
	ch <- e.providerCalls
	ch <- e.quotaErrors
	ch <- e.tokens
	ch <- e.avgResponse
	ch <- e.cacheLookups
	ch <- e.uptime
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	s := e.c.Snapshot()

	counter := func(desc *prometheus.Desc, v int64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), labels...)
	}

	counter(e.requests, s.Requests.Successful, "answered")
	counter(e.requests, s.Requests.Failed, "fallback")
	counter(e.cacheLookups, s.Cache.Hits, "hit")
	counter(e.cacheLookups, s.Cache.Misses, "miss")

	for _, name := range s.ProviderNames() {
		p := s.Providers[name]
		counter(e.providerCalls, p.Successes, name, "success")
		counter(e.providerCalls, p.Errors, name, "error")
		counter(e.quotaErrors, p.QuotaErrors, name)
		counter(e.tokens, p.Tokens, name)
		ch <- prometheus.MustNewConstMetric(e.avgResponse, prometheus.GaugeValue, p.AvgResponseTimeMs, name)
	}

	ch <- prometheus.MustNewConstMetric(e.uptime, prometheus.GaugeValue, float64(s.UptimeSeconds))
}
