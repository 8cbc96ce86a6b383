// pkg/database/alert_log.go
package database

import (
	"fmt"
	"time"

	"AlertRadar/pkg/model"
)

const maxAlertLogPage = 200

// CreateAlertLog 写入触发日志，返回生成的 id
func (d *DB) CreateAlertLog(log *model.AlertLog) (string, error) {
	if log.TriggeredAt.IsZero() {
		log.TriggeredAt = d.clock.Now().UTC()
	}
	if len(log.ConditionMet) == 0 {
		log.ConditionMet = []byte("{}")
	}
	if len(log.MarketData) == 0 {
		log.MarketData = []byte("{}")
	}

	if err := d.db.Create(log).Error; err != nil {
		return "", fmt.Errorf("保存触发日志失败: %w", err)
	}
	return log.ID, nil
}

// UpdateAlertLogNotificationSent 标记通知已发送。
// notification_sent 只能从 false 变为 true，sent=false 时不做任何修改。
func (d *DB) UpdateAlertLogNotificationSent(logID string, sent bool) error {
	if !sent {
		return nil
	}
	err := d.db.Model(&model.AlertLog{}).
		Where("id = ? AND notification_sent = ?", logID, false).
		Update("notification_sent", true).Error
	if err != nil {
		return fmt.Errorf("更新通知发送状态失败: %w", err)
	}
	return nil
}

// GetTodayAlertCount 用户今天（UTC）被触发的提醒数
func (d *DB) GetTodayAlertCount(userID string) (int, error) {
	var count int64
	err := d.db.Model(&model.AlertLog{}).
		Where("user_id = ? AND triggered_at >= ?", userID, d.todayStart()).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("统计今日提醒数失败: %w", err)
	}
	return int(count), nil
}

// GetTodayEmailCount 用户今天（UTC）已成功发送的提醒数
func (d *DB) GetTodayEmailCount(userID string) (int, error) {
	var count int64
	err := d.db.Model(&model.AlertLog{}).
		Where("user_id = ? AND triggered_at >= ? AND notification_sent = ?", userID, d.todayStart(), true).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("统计今日邮件数失败: %w", err)
	}
	return int(count), nil
}

// CountUnsentSince since 之后仍未发送成功的日志数
func (d *DB) CountUnsentSince(since time.Time) (int64, error) {
	var count int64
	err := d.db.Model(&model.AlertLog{}).
		Where("notification_sent = ? AND triggered_at >= ?", false, since.UTC()).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("统计未发送日志失败: %w", err)
	}
	return count, nil
}

// ListAlertLogsByUser 用户最近的触发记录，按触发时间倒序
func (d *DB) ListAlertLogsByUser(userID string, limit int) ([]model.AlertLog, error) {
	if limit <= 0 || limit > maxAlertLogPage {
		limit = maxAlertLogPage
	}

	var logs []model.AlertLog
	err := d.db.
		Where("user_id = ?", userID).
		Order("triggered_at DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("查询触发记录失败: %w", err)
	}
	return logs, nil
}
