// pkg/model/notification.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AlertLog 一次成功 claim 后写入的审计记录
// 创建后只允许把 notification_sent 从 false 改为 true
type AlertLog struct {
	ID               string         `gorm:"type:uuid;primaryKey" json:"id"`
	AlertRuleID      string         `gorm:"type:uuid;not null;index" json:"alert_rule_id"`
	UserID           string         `gorm:"type:uuid;not null;index:idx_alert_logs_user_time" json:"user_id"`
	Symbol           string         `gorm:"type:varchar(20);not null" json:"symbol"`
	TriggeredAt      time.Time      `gorm:"not null;index:idx_alert_logs_user_time" json:"triggered_at"`
	AlertType        AlertType      `gorm:"type:varchar(30);not null" json:"alert_type"`
	ConditionMet     datatypes.JSON `json:"condition_met"`
	MarketData       datatypes.JSON `json:"market_data"`
	NotificationSent bool           `gorm:"default:false;index" json:"notification_sent"`
	IsRead           bool           `gorm:"default:false" json:"is_read"`
	IsDismissed      bool           `gorm:"default:false" json:"is_dismissed"`
}

func (a *AlertLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

func (AlertLog) TableName() string {
	return "alert_logs"
}

// InAppNotification 站内通知，前端轮询 notification_queue 展示
type InAppNotification struct {
	ID         string         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     string         `gorm:"type:uuid;not null;index" json:"user_id"`
	AlertLogID *string        `gorm:"type:uuid" json:"alert_log_id,omitempty"`
	Type       string         `gorm:"type:varchar(30);not null" json:"type"` // alert_triggered
	Title      string         `gorm:"not null" json:"title"`
	Message    string         `gorm:"type:text" json:"message"`
	Data       datatypes.JSON `json:"data"`
	IsRead     bool           `gorm:"default:false" json:"is_read"`
	CreatedAt  time.Time      `json:"created_at"`
}

func (n *InAppNotification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	return nil
}

func (InAppNotification) TableName() string {
	return "notification_queue"
}

// NotificationPreferences 用户通知设置
type NotificationPreferences struct {
	UserID             string  `gorm:"type:uuid;primaryKey" json:"user_id"`
	EmailEnabled       bool    `json:"email_enabled"`
	EmailAddress       *string `json:"email_address"`
	EmailVerified      bool    `json:"email_verified"`
	QuietHoursEnabled  bool    `json:"quiet_hours_enabled"`
	QuietHoursStart    string  `json:"quiet_hours_start"`    // HH:MM:SS
	QuietHoursEnd      string  `json:"quiet_hours_end"`      // HH:MM:SS
	QuietHoursTimezone string  `json:"quiet_hours_timezone"` // 例如 America/New_York
	MaxAlertsPerDay    int     `json:"max_alerts_per_day"`
	MaxEmailsPerDay    int     `json:"max_emails_per_day"`
}

func (NotificationPreferences) TableName() string {
	return "notification_preferences"
}

// UserEmail 发送邮件需要的最少用户信息
type UserEmail struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// DeviceToken 用户注册的 iOS 推送设备
type DeviceToken struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string    `gorm:"type:uuid;not null;index" json:"user_id"`
	Token     string    `gorm:"type:varchar(200);uniqueIndex;not null" json:"token"`
	Platform  string    `gorm:"type:varchar(10);default:'ios'" json:"platform"`
	CreatedAt time.Time `json:"created_at"`
}

func (d *DeviceToken) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}

func (DeviceToken) TableName() string {
	return "device_tokens"
}
