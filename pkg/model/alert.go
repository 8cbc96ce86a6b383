// pkg/model/alert.go
package model

import (
	"time"

	"gorm.io/datatypes"
)

// AlertType 提醒类型枚举
type AlertType string

const (
	AlertTypePriceAbove     AlertType = "price_above"
	AlertTypePriceBelow     AlertType = "price_below"
	AlertTypePriceChangePct AlertType = "price_change_pct"
	AlertTypeVolumeAbove    AlertType = "volume_above"
	AlertTypeVolumeBelow    AlertType = "volume_below"
	AlertTypeVolumeSpike    AlertType = "volume_spike"
	AlertTypeNews           AlertType = "news"
	AlertTypeEarnings       AlertType = "earnings"
)

// Frequency 控制规则再次触发的间隔
//
//	once:   只触发一次，随后 is_active=false
//	daily:  24 小时内最多一次
//	always: 每个行情批次都评估，但两次通知之间至少间隔 5 分钟
type Frequency string

const (
	FrequencyOnce   Frequency = "once"
	FrequencyDaily  Frequency = "daily"
	FrequencyAlways Frequency = "always"
)

const (
	DailyWindow    = 24 * time.Hour
	AlwaysCooldown = 5 * time.Minute
)

// Window 返回频率对应的最小触发间隔；once 没有窗口，未知频率返回 false
func (f Frequency) Window() (time.Duration, bool) {
	switch f {
	case FrequencyDaily:
		return DailyWindow, true
	case FrequencyAlways:
		return AlwaysCooldown, true
	default:
		return 0, false
	}
}

// Valid 是否为已知频率
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyOnce, FrequencyDaily, FrequencyAlways:
		return true
	}
	return false
}

// AlertRule 用户创建的提醒规则（alert_rules 表）
// 规则的增删改由外部 API 负责，这里只通过原子 claim 推进 last_triggered_at
type AlertRule struct {
	ID              string         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          string         `gorm:"type:uuid;not null;index" json:"user_id"`
	WatchListID     string         `gorm:"type:uuid;index" json:"watch_list_id"`
	Symbol          string         `gorm:"type:varchar(20);not null;index" json:"symbol"`
	AlertType       AlertType      `gorm:"type:varchar(30);not null" json:"alert_type"`
	Conditions      datatypes.JSON `json:"conditions"`
	IsActive        bool           `gorm:"default:true;index" json:"is_active"`
	Frequency       Frequency      `gorm:"type:varchar(10);not null" json:"frequency"`
	NotifyEmail     bool           `gorm:"default:false" json:"notify_email"`
	NotifyInApp     bool           `gorm:"default:true" json:"notify_in_app"`
	Name            string         `json:"name"`
	LastTriggeredAt *time.Time     `json:"last_triggered_at"`
	TriggerCount    int            `gorm:"default:0" json:"trigger_count"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (AlertRule) TableName() string {
	return "alert_rules"
}
