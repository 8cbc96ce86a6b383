package monitor

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveBatch(BatchResultOK, time.Second)
		m.AddRulesEvaluated(3)
		m.IncTriggered("price_above")
		m.IncClaimLost()
		m.IncTriggerError(StageClaim)
		m.IncDelivery("email", false, nil)
		m.SetUnsentLogs(1)
	})
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveBatch(BatchResultOK, 10*time.Millisecond)
	m.ObserveBatch(BatchResultDecodeError, time.Millisecond)
	m.AddRulesEvaluated(4)
	m.AddRulesEvaluated(0)
	m.IncTriggered("price_above")
	m.IncClaimLost()
	m.IncTriggerError(StageLog)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.batches.WithLabelValues(BatchResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.batches.WithLabelValues(BatchResultDecodeError)))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.rulesEvaluated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.triggered.WithLabelValues("price_above")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.claimsLost))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.triggerErrors.WithLabelValues(StageLog)))
}

func TestMetrics_DeliveryResults(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.IncDelivery("email", false, nil)
	m.IncDelivery("email", true, nil)
	m.IncDelivery("email", true, errors.New("smtp down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("email", "sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("email", "skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("email", "error")))
}

func TestMetrics_UnsentGaugeExposition(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.SetUnsentLogs(7)

	expected := `
# HELP alertradar_unsent_alert_logs Alert logs from the last 24h with notification_sent=false.
# TYPE alertradar_unsent_alert_logs gauge
alertradar_unsent_alert_logs 7
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "alertradar_unsent_alert_logs"))
}
