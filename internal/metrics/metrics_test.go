package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCycle(t *testing.T) {
	m := New()

	m.RecordCycle("success", 1.5)
	m.RecordCycle("success", 0.5)
	m.RecordCycle("failed", 0.1)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.cyclesTotal.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.cyclesTotal.WithLabelValues("failed")))
}

func TestRecordScan(t *testing.T) {
	m := New()

	m.RecordScan("arp-scan", 0.7)
	m.RecordScanError("nmap")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.scanErrors.WithLabelValues("nmap")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.scanErrors.WithLabelValues("arp-scan")))
}

func TestRecordEventAndDevices(t *testing.T) {
	m := New()

	m.RecordEvent("arrived")
	m.RecordEvent("arrived")
	m.RecordEvent("departed")
	m.SetDevices(3, 7)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.eventsTotal.WithLabelValues("arrived")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.eventsTotal.WithLabelValues("departed")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.devicesOnline))
	assert.Equal(t, float64(7), testutil.ToFloat64(m.devicesTracked))
}

func TestRecordNotification(t *testing.T) {
	m := New()

	m.RecordNotification("sent")
	m.RecordNotification("dropped")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.notificationsTotal.WithLabelValues("sent")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.notificationsTotal.WithLabelValues("dropped")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordCycle("success", 1.0)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "lanwatch_cycle_total"))
	assert.True(t, strings.Contains(body, "go_goroutines"))
}
