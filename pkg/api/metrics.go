package api

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/psaab/aclc/pkg/dialect"
)

// aclcCollector implements prometheus.Collector, reading engine counters
// on each scrape.
type aclcCollector struct {
	srv *Server

	operationsTotal  *prometheus.Desc
	failuresTotal    *prometheus.Desc
	conversionsTotal *prometheus.Desc
	rejectionsTotal  *prometheus.Desc
	aclsConfigured   *prometheus.Desc
	uptimeSeconds    *prometheus.Desc
}

func newCollector(srv *Server) *aclcCollector {
	return &aclcCollector{
		srv: srv,

		operationsTotal: prometheus.NewDesc(
			"aclc_operations_total",
			"Successful operations per dialect.",
			[]string{"dialect", "op"}, nil,
		),
		failuresTotal: prometheus.NewDesc(
			"aclc_failures_total",
			"Failed parses and renders per dialect and error kind.",
			[]string{"dialect", "kind"}, nil,
		),
		conversionsTotal: prometheus.NewDesc(
			"aclc_conversions_total",
			"Lines translated from one set to another.",
			nil, nil,
		),
		rejectionsTotal: prometheus.NewDesc(
			"aclc_rejections_total",
			"Rejections recorded since start.",
			nil, nil,
		),
		aclsConfigured: prometheus.NewDesc(
			"aclc_acls_configured",
			"Configured ACLs per dialect.",
			[]string{"dialect"}, nil,
		),
		uptimeSeconds: prometheus.NewDesc(
			"aclc_uptime_seconds",
			"Seconds since the engine started.",
			nil, nil,
		),
	}
}

func (c *aclcCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.operationsTotal
	ch <- c.failuresTotal
	ch <- c.conversionsTotal
	ch <- c.rejectionsTotal
	ch <- c.aclsConfigured
	ch <- c.uptimeSeconds
}

func (c *aclcCollector) Collect(ch chan<- prometheus.Metric) {
	eng := c.srv.engine
	if eng == nil {
		return
	}

	stats, conversions := eng.Stats()
	for _, s := range stats {
		ch <- prometheus.MustNewConstMetric(c.operationsTotal, prometheus.CounterValue,
			float64(s.Parsed), s.Dialect, "parse")
		ch <- prometheus.MustNewConstMetric(c.operationsTotal, prometheus.CounterValue,
			float64(s.Rendered), s.Dialect, "render")
		ch <- prometheus.MustNewConstMetric(c.operationsTotal, prometheus.CounterValue,
			float64(s.Deleted), s.Dialect, "delete")

		kinds := make([]string, 0, len(s.Failures))
		for k := range s.Failures {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			ch <- prometheus.MustNewConstMetric(c.failuresTotal, prometheus.CounterValue,
				float64(s.Failures[k]), s.Dialect, k)
		}
	}
	ch <- prometheus.MustNewConstMetric(c.conversionsTotal, prometheus.CounterValue, float64(conversions))
	ch <- prometheus.MustNewConstMetric(c.rejectionsTotal, prometheus.CounterValue,
		float64(eng.Rejections().Total()))

	perDialect := make(map[string]int)
	for _, marker := range eng.ACLs() {
		if ctx, err := dialect.Select(marker); err == nil {
			perDialect[ctx.Dialect.String()]++
		}
	}
	for d, n := range perDialect {
		ch <- prometheus.MustNewConstMetric(c.aclsConfigured, prometheus.GaugeValue, float64(n), d)
	}
	ch <- prometheus.MustNewConstMetric(c.uptimeSeconds, prometheus.GaugeValue, eng.Uptime().Seconds())
}
