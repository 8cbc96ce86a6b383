// pkg/database/alert.go
package database

import (
	"fmt"

	"gorm.io/gorm"

	"AlertRadar/pkg/model"
)

// GetActiveAlertsForSymbols 查询给定股票上所有启用的规则，按创建时间排序
func (d *DB) GetActiveAlertsForSymbols(symbols []string) ([]model.AlertRule, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	var alerts []model.AlertRule
	err := d.db.
		Where("is_active = ? AND symbol IN ?", true, symbols).
		Order("created_at ASC").
		Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("查询启用规则失败: %w", err)
	}
	return alerts, nil
}

// ClaimAlertTrigger 用一条条件 UPDATE 抢占触发权。
// 条件在数据库里按持久化的 last_triggered_at 重新校验，
// 并发的多个实例中只有一个能让 RowsAffected 为 1。
//
//	once:   last_triggered_at 为空，同时置 is_active=false
//	daily:  为空或不晚于 now-24h
//	always: 为空或不晚于 now-5m
func (d *DB) ClaimAlertTrigger(alertID string, frequency model.Frequency) (bool, error) {
	now := d.clock.Now().UTC()
	updates := map[string]any{
		"last_triggered_at": now,
		"trigger_count":     gorm.Expr("trigger_count + 1"),
		"updated_at":        now,
	}

	query := d.db.Model(&model.AlertRule{}).Where("id = ?", alertID)
	switch frequency {
	case model.FrequencyOnce:
		query = query.Where("last_triggered_at IS NULL")
		updates["is_active"] = false
	case model.FrequencyDaily, model.FrequencyAlways:
		window, _ := frequency.Window()
		query = query.Where("(last_triggered_at IS NULL OR last_triggered_at <= ?)", now.Add(-window))
	default:
		return false, fmt.Errorf("未知的提醒频率: %q", frequency)
	}

	result := query.Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("抢占规则触发失败: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}
