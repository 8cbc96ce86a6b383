// pkg/database/notification.go
package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"AlertRadar/pkg/model"
)

// GetNotificationPreferences 用户通知设置；用户没有设置时返回 (nil, nil)
func (d *DB) GetNotificationPreferences(userID string) (*model.NotificationPreferences, error) {
	var prefs model.NotificationPreferences
	err := d.db.Where("user_id = ?", userID).Take(&prefs).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("获取通知设置失败: %w", err)
	}
	return &prefs, nil
}

// GetUserEmail 用户的账户邮箱与姓名
func (d *DB) GetUserEmail(userID string) (*model.UserEmail, error) {
	var user model.User
	err := d.db.Select("email", "full_name").Where("id = ?", userID).Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("用户不存在: %s", userID)
		}
		return nil, fmt.Errorf("获取用户邮箱失败: %w", err)
	}
	return &model.UserEmail{Email: user.Email, FullName: user.FullName}, nil
}

// CreateInAppNotification 写入站内通知队列
func (d *DB) CreateInAppNotification(n *model.InAppNotification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = d.clock.Now().UTC()
	}
	if len(n.Data) == 0 {
		n.Data = []byte("{}")
	}
	if err := d.db.Create(n).Error; err != nil {
		return fmt.Errorf("保存站内通知失败: %w", err)
	}
	return nil
}

// GetDeviceTokens 用户注册的推送设备
func (d *DB) GetDeviceTokens(userID string) ([]model.DeviceToken, error) {
	var tokens []model.DeviceToken
	if err := d.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&tokens).Error; err != nil {
		return nil, fmt.Errorf("查询推送设备失败: %w", err)
	}
	return tokens, nil
}

// DeleteDeviceToken APNs 返回设备已失效时移除
func (d *DB) DeleteDeviceToken(token string) error {
	if err := d.db.Where("token = ?", token).Delete(&model.DeviceToken{}).Error; err != nil {
		return fmt.Errorf("删除推送设备失败: %w", err)
	}
	return nil
}
