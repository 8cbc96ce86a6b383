package engine

import "AlertRadar/pkg/model"

// Store 评估核心依赖的持久化接口，由 database.DB 实现
type Store interface {
	// GetActiveAlertsForSymbols 返回 symbol 属于给定集合且 is_active=true 的规则
	GetActiveAlertsForSymbols(symbols []string) ([]model.AlertRule, error)
	// ClaimAlertTrigger 按持久化状态重新校验频率窗口并原子推进 last_triggered_at。
	// 返回 false 表示窗口未开放或已被其他实例抢先，不是错误。
	ClaimAlertTrigger(alertID string, frequency model.Frequency) (bool, error)
	// CreateAlertLog 写入审计记录并返回其 id
	CreateAlertLog(log *model.AlertLog) (string, error)
	UpdateAlertLogNotificationSent(logID string, sent bool) error
}

// Delivery 通知投递
type Delivery interface {
	Deliver(alert *model.AlertRule, log *model.AlertLog, quote *model.SymbolQuote) error
}
