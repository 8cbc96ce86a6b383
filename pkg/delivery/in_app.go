package delivery

import (
	"fmt"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"AlertRadar/pkg/model"
)

const notificationTypeAlertTriggered = "alert_triggered"

// InAppStore 站内通知渠道需要的查询，由 database.DB 实现
type InAppStore interface {
	GetNotificationPreferences(userID string) (*model.NotificationPreferences, error)
	GetTodayAlertCount(userID string) (int, error)
	CreateInAppNotification(n *model.InAppNotification) error
}

// InAppDelivery 写入 notification_queue，前端轮询展示；
// 配置了推送时再向用户的 iOS 设备发送 APNs 通知
type InAppDelivery struct {
	store  InAppStore
	push   *PushDelivery
	logger *zap.Logger
}

// NewInAppDelivery push 可为空
func NewInAppDelivery(store InAppStore, push *PushDelivery, logger *zap.Logger) *InAppDelivery {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InAppDelivery{store: store, push: push, logger: logger.Named("in_app")}
}

// Send 创建站内通知；超过每日提醒上限时跳过
func (d *InAppDelivery) Send(alert *model.AlertRule, alertLog *model.AlertLog, quote *model.SymbolQuote) (bool, error) {
	// 设置读取失败不阻塞投递
	prefs, err := d.store.GetNotificationPreferences(alert.UserID)
	if err != nil {
		d.logger.Warn("获取通知设置失败，忽略每日上限", zap.String("user_id", alert.UserID), zap.Error(err))
	}
	if prefs != nil && prefs.MaxAlertsPerDay > 0 {
		count, err := d.store.GetTodayAlertCount(alert.UserID)
		if err != nil {
			d.logger.Warn("获取今日提醒数失败", zap.String("user_id", alert.UserID), zap.Error(err))
		} else if count > prefs.MaxAlertsPerDay {
			// 当前这条日志已计入 count
			d.logger.Info("超过每日提醒上限，跳过站内通知",
				zap.String("alert_id", alert.ID),
				zap.Int("count", count),
				zap.Int("limit", prefs.MaxAlertsPerDay))
			return false, nil
		}
	}

	title := buildTitle(alert)
	message := buildMessage(alert, quote)

	data, err := json.Marshal(buildData(alert, quote))
	if err != nil {
		d.logger.Warn("通知数据序列化失败", zap.String("alert_id", alert.ID), zap.Error(err))
		data = []byte("{}")
	}

	var logID *string
	if alertLog != nil && alertLog.ID != "" {
		id := alertLog.ID
		logID = &id
	}

	notification := &model.InAppNotification{
		UserID:     alert.UserID,
		AlertLogID: logID,
		Type:       notificationTypeAlertTriggered,
		Title:      title,
		Message:    message,
		Data:       data,
	}
	if err := d.store.CreateInAppNotification(notification); err != nil {
		return false, fmt.Errorf("创建站内通知失败: %w", err)
	}

	if d.push != nil {
		d.push.Notify(alert.UserID, title, message, map[string]any{
			"symbol":        alert.Symbol,
			"watch_list_id": alert.WatchListID,
			"alert_type":    string(alert.AlertType),
		})
	}
	return true, nil
}

func buildTitle(alert *model.AlertRule) string {
	return fmt.Sprintf("%s %s", alert.Symbol, alertTypeLabel(alert.AlertType))
}

func buildMessage(alert *model.AlertRule, quote *model.SymbolQuote) string {
	fallback := fmt.Sprintf("Alert triggered for %s", alert.Symbol)

	switch alert.AlertType {
	case model.AlertTypePriceChangePct:
		return fmt.Sprintf("%s moved %.2f%% today", alert.Symbol, quote.ChangePct)
	case model.AlertTypePriceAbove, model.AlertTypePriceBelow, model.AlertTypeVolumeAbove, model.AlertTypeVolumeBelow:
	default:
		return fallback
	}

	cond, err := alert.Condition()
	if err != nil {
		return fallback
	}
	c, ok := cond.(model.ThresholdCondition)
	if !ok {
		return fallback
	}

	switch alert.AlertType {
	case model.AlertTypePriceAbove:
		return fmt.Sprintf("%s crossed above $%.2f (current: $%.2f)", alert.Symbol, c.Threshold, quote.Price)
	case model.AlertTypePriceBelow:
		return fmt.Sprintf("%s dropped below $%.2f (current: $%.2f)", alert.Symbol, c.Threshold, quote.Price)
	case model.AlertTypeVolumeAbove:
		return fmt.Sprintf("%s volume exceeded %s (current: %s)", alert.Symbol, formatVolume(c.Threshold), formatVolume(float64(quote.Volume)))
	default:
		return fmt.Sprintf("%s volume dropped below %s (current: %s)", alert.Symbol, formatVolume(c.Threshold), formatVolume(float64(quote.Volume)))
	}
}

// buildData 前端跳转需要的 watch_list_id 等信息
func buildData(alert *model.AlertRule, quote *model.SymbolQuote) map[string]any {
	return map[string]any{
		"watch_list_id": alert.WatchListID,
		"symbol":        alert.Symbol,
		"price":         quote.Price,
		"volume":        quote.Volume,
		"alert_type":    alert.AlertType,
	}
}
