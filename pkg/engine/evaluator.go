package engine

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"AlertRadar/pkg/clock"
	"AlertRadar/pkg/model"
	"AlertRadar/pkg/monitor"
)

// Evaluator 处理行情批次：筛选规则、评估条件、claim、写日志、投递
type Evaluator struct {
	store    Store
	delivery Delivery
	logger   *zap.Logger
	clock    clock.Clock
	metrics  *monitor.Metrics
}

type Option func(*Evaluator)

func WithClock(c clock.Clock) Option {
	return func(e *Evaluator) { e.clock = c }
}

func WithMetrics(m *monitor.Metrics) Option {
	return func(e *Evaluator) { e.metrics = m }
}

// New 创建评估器
func New(store Store, delivery Delivery, logger *zap.Logger, opts ...Option) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Evaluator{
		store:    store,
		delivery: delivery,
		logger:   logger.Named("evaluator"),
		clock:    clock.SystemClock{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HandlePriceUpdate 处理一条行情批次消息。
// 只有消息解析失败（ErrDecode）和规则加载失败（ErrFetch）会返回错误，
// 单条规则的失败只记录日志，不影响同批次的其他规则。
func (e *Evaluator) HandlePriceUpdate(msg []byte) error {
	start := e.clock.Now()

	var update model.PriceUpdateMessage
	if err := json.Unmarshal(msg, &update); err != nil {
		e.metrics.ObserveBatch(monitor.BatchResultDecodeError, e.clock.Now().Sub(start))
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}

	if len(update.Symbols) == 0 {
		return nil
	}

	alerts, err := e.store.GetActiveAlertsForSymbols(update.SymbolList())
	if err != nil {
		e.metrics.ObserveBatch(monitor.BatchResultFetchError, e.clock.Now().Sub(start))
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}

	if len(alerts) == 0 {
		e.metrics.ObserveBatch(monitor.BatchResultOK, e.clock.Now().Sub(start))
		return nil
	}
	e.metrics.AddRulesEvaluated(len(alerts))

	var triggered int
	for i := range alerts {
		alert := &alerts[i]
		quote, ok := update.Symbols[alert.Symbol]
		if !ok {
			continue
		}

		now := e.clock.Now()
		if !ShouldTrigger(alert.Frequency, alert.LastTriggeredAt, now) {
			continue
		}

		met, err := Evaluate(alert, &quote)
		if err != nil {
			e.metrics.IncTriggerError(monitor.StageCondition)
			e.logger.Warn("规则条件评估失败，跳过",
				zap.String("alert_id", alert.ID),
				zap.String("alert_type", string(alert.AlertType)),
				zap.Error(fmt.Errorf("%w: %w", ErrCondition, err)))
			continue
		}
		if !met {
			continue
		}

		fired, err := e.trigger(alert, &quote, now)
		if err != nil {
			e.logger.Error("触发提醒失败",
				zap.String("alert_id", alert.ID),
				zap.String("symbol", alert.Symbol),
				zap.Error(err))
			continue
		}
		if fired {
			triggered++
		}
	}

	e.metrics.ObserveBatch(monitor.BatchResultOK, e.clock.Now().Sub(start))
	e.logger.Info("行情批次处理完成",
		zap.String("source", update.Source),
		zap.Int("symbols", len(update.Symbols)),
		zap.Int("evaluated", len(alerts)),
		zap.Int("triggered", triggered))
	return nil
}

// trigger claim → 写日志 → 投递 → 标记已发送。
// claim 被拒绝时返回 (false, nil)。
func (e *Evaluator) trigger(alert *model.AlertRule, quote *model.SymbolQuote, now time.Time) (bool, error) {
	won, err := e.store.ClaimAlertTrigger(alert.ID, alert.Frequency)
	if err != nil {
		e.metrics.IncTriggerError(monitor.StageClaim)
		return false, fmt.Errorf("%w: %w", ErrClaim, err)
	}
	if !won {
		e.metrics.IncClaimLost()
		e.logger.Debug("claim 未获得，跳过", zap.String("alert_id", alert.ID))
		return false, nil
	}

	alertLog := &model.AlertLog{
		AlertRuleID:      alert.ID,
		UserID:           alert.UserID,
		Symbol:           alert.Symbol,
		TriggeredAt:      now,
		AlertType:        alert.AlertType,
		ConditionMet:     conditionSnapshot(alert),
		MarketData:       marketSnapshot(alert.Symbol, quote, now),
		NotificationSent: false,
	}
	logID, err := e.store.CreateAlertLog(alertLog)
	if err != nil {
		e.metrics.IncTriggerError(monitor.StageLog)
		return false, fmt.Errorf("%w: %w", ErrLogPersist, err)
	}
	alertLog.ID = logID
	e.metrics.IncTriggered(string(alert.AlertType))

	if err := e.delivery.Deliver(alert, alertLog, quote); err != nil {
		e.metrics.IncTriggerError(monitor.StageDelivery)
		e.logger.Warn("通知投递失败，日志保持未发送状态",
			zap.String("alert_id", alert.ID),
			zap.String("log_id", logID),
			zap.Error(fmt.Errorf("%w: %w", ErrDelivery, err)))
		return true, nil
	}

	if err := e.store.UpdateAlertLogNotificationSent(logID, true); err != nil {
		e.metrics.IncTriggerError(monitor.StageMarkSent)
		e.logger.Warn("更新通知发送状态失败",
			zap.String("log_id", logID),
			zap.Error(err))
	}
	return true, nil
}

// conditionSnapshot condition_met 字段；threshold 取解析出的条件数值，无条件时为 0
func conditionSnapshot(alert *model.AlertRule) []byte {
	var threshold float64
	if cond, err := alert.Condition(); err == nil && cond != nil {
		threshold = cond.Magnitude()
	}
	b, err := json.Marshal(map[string]any{
		"alert_type": alert.AlertType,
		"threshold":  threshold,
		"triggered":  true,
	})
	if err == nil {
		return b
	}
	return fallbackSnapshot(map[string]any{
		"alert_type": alert.AlertType,
		"triggered":  true,
	})
}

// marketSnapshot market_data 字段；行情含 NaN/Inf 时只保留 symbol 与时间戳
func marketSnapshot(symbol string, quote *model.SymbolQuote, now time.Time) []byte {
	b, err := json.Marshal(map[string]any{
		"symbol":     symbol,
		"price":      quote.Price,
		"volume":     quote.Volume,
		"change_pct": quote.ChangePct,
		"timestamp":  now.Unix(),
	})
	if err == nil {
		return b
	}
	return fallbackSnapshot(map[string]any{
		"symbol":    symbol,
		"timestamp": now.Unix(),
	})
}

func fallbackSnapshot(v map[string]any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return b
}
