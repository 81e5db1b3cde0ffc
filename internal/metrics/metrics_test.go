package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordScan("in", "qr")
	c.RecordScan("in", "qr")
	c.RecordScan("out", "direct")
	c.RecordScanRejected("daily_limit")
	c.RecordTokenIssued()
	c.RecordTokenIssued()
	c.RecordTokenDeleted()

	if got := testutil.ToFloat64(c.scans.WithLabelValues("in", "qr")); got != 2 {
		t.Errorf("scans in/qr = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.scans.WithLabelValues("out", "direct")); got != 1 {
		t.Errorf("scans out/direct = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.scanRejects.WithLabelValues("daily_limit")); got != 1 {
		t.Errorf("rejected daily_limit = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.tokensIssued); got != 2 {
		t.Errorf("tokens issued = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.tokensDeleted); got != 1 {
		t.Errorf("tokens deleted = %v, want 1", got)
	}
}

func TestCollectorRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)

	defer func() {
		if recover() == nil {
			t.Fatal("expected duplicate registration to panic")
		}
	}()
	NewCollector(reg)
}
