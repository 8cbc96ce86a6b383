package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "alertradar"

// 批次处理结果
const (
	BatchResultOK          = "ok"
	BatchResultDecodeError = "decode_error"
	BatchResultFetchError  = "fetch_error"
)

// 触发失败阶段
const (
	StageCondition = "condition"
	StageClaim     = "claim"
	StageLog       = "log"
	StageDelivery  = "delivery"
	StageMarkSent  = "mark_sent"
)

// Metrics 评估与投递的 Prometheus 指标
// 所有方法对 nil 接收者安全，未启用指标时直接传 nil
type Metrics struct {
	batches        *prometheus.CounterVec
	batchDuration  prometheus.Histogram
	rulesEvaluated prometheus.Counter
	triggered      *prometheus.CounterVec
	claimsLost     prometheus.Counter
	triggerErrors  *prometheus.CounterVec
	deliveries     *prometheus.CounterVec
	unsentLogs     prometheus.Gauge
}

// NewMetrics 创建并注册指标；registerer 为空时使用默认注册表
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_batches_total",
			Help:      "Price update batches handled, by result.",
		}, []string{"result"}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "price_batch_duration_seconds",
			Help:      "Time spent evaluating one price update batch.",
			Buckets:   prometheus.DefBuckets,
		}),
		rulesEvaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rules_evaluated_total",
			Help:      "Candidate alert rules loaded for evaluation.",
		}),
		triggered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_triggered_total",
			Help:      "Alerts whose trigger claim was won and logged.",
		}, []string{"alert_type"}),
		claimsLost: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claims_lost_total",
			Help:      "Trigger claims refused by the store.",
		}),
		triggerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trigger_errors_total",
			Help:      "Per-rule failures, by stage.",
		}, []string{"stage"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Notification channel attempts, by channel and result.",
		}, []string{"channel", "result"}),
		unsentLogs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unsent_alert_logs",
			Help:      "Alert logs from the last 24h with notification_sent=false.",
		}),
	}

	registerer.MustRegister(
		m.batches,
		m.batchDuration,
		m.rulesEvaluated,
		m.triggered,
		m.claimsLost,
		m.triggerErrors,
		m.deliveries,
		m.unsentLogs,
	)
	return m
}

func (m *Metrics) ObserveBatch(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(result).Inc()
	m.batchDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) AddRulesEvaluated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rulesEvaluated.Add(float64(n))
}

func (m *Metrics) IncTriggered(alertType string) {
	if m == nil {
		return
	}
	m.triggered.WithLabelValues(alertType).Inc()
}

func (m *Metrics) IncClaimLost() {
	if m == nil {
		return
	}
	m.claimsLost.Inc()
}

func (m *Metrics) IncTriggerError(stage string) {
	if m == nil {
		return
	}
	m.triggerErrors.WithLabelValues(stage).Inc()
}

// IncDelivery 记录一次渠道投递；err 为空视为成功，skipped 表示渠道主动跳过
func (m *Metrics) IncDelivery(channel string, skipped bool, err error) {
	if m == nil {
		return
	}
	result := "sent"
	switch {
	case err != nil:
		result = "error"
	case skipped:
		result = "skipped"
	}
	m.deliveries.WithLabelValues(channel, result).Inc()
}

func (m *Metrics) SetUnsentLogs(n int64) {
	if m == nil {
		return
	}
	m.unsentLogs.Set(float64(n))
}
