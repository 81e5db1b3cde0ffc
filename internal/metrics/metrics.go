// Package metrics collects attendance counters for Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector tracks scan and token activity. All methods are safe for
// concurrent use.
type Collector struct {
	scans         *prometheus.CounterVec
	scanRejects   *prometheus.CounterVec
	tokensIssued  prometheus.Counter
	tokensDeleted prometheus.Counter
}

// NewCollector registers the attendance metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campusattend_scans_total",
			Help: "Recorded attendance events by direction and entry path.",
		}, []string{"direction", "path"}),
		scanRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campusattend_scan_rejected_total",
			Help: "Rejected attendance attempts by reason.",
		}, []string{"reason"}),
		tokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "campusattend_tokens_issued_total",
			Help: "Daily QR tokens issued.",
		}),
		tokensDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "campusattend_tokens_deleted_total",
			Help: "Daily QR tokens deleted.",
		}),
	}
	reg.MustRegister(c.scans, c.scanRejects, c.tokensIssued, c.tokensDeleted)
	return c
}

// RecordScan counts a successful event. path is "qr" or "direct".
func (c *Collector) RecordScan(direction, path string) {
	c.scans.WithLabelValues(direction, path).Inc()
}

// RecordScanRejected counts a refused attempt by reason label.
func (c *Collector) RecordScanRejected(reason string) {
	c.scanRejects.WithLabelValues(reason).Inc()
}

// RecordTokenIssued counts a token creation.
func (c *Collector) RecordTokenIssued() { c.tokensIssued.Inc() }

// RecordTokenDeleted counts a token deletion.
func (c *Collector) RecordTokenDeleted() { c.tokensDeleted.Inc() }
