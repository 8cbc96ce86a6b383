package delivery

import (
	"fmt"
	"strings"
	"time"

	"AlertRadar/pkg/model"
)

var alertTypeLabels = map[model.AlertType]string{
	model.AlertTypePriceAbove:     "Price Above",
	model.AlertTypePriceBelow:     "Price Below",
	model.AlertTypePriceChangePct: "Price Change %",
	model.AlertTypeVolumeAbove:    "Volume Above",
	model.AlertTypeVolumeBelow:    "Volume Below",
	model.AlertTypeVolumeSpike:    "Volume Spike",
	model.AlertTypeNews:           "News Alert",
	model.AlertTypeEarnings:       "Earnings Report",
}

// alertTypeLabel 通知标题中使用的提醒类型名称
func alertTypeLabel(alertType model.AlertType) string {
	if label, ok := alertTypeLabels[alertType]; ok {
		return label
	}
	return strings.ReplaceAll(string(alertType), "_", " ")
}

// formatVolume 成交量缩写，例如 1.5M
func formatVolume(vol float64) string {
	switch {
	case vol >= 1_000_000_000:
		return fmt.Sprintf("%.1fB", vol/1_000_000_000)
	case vol >= 1_000_000:
		return fmt.Sprintf("%.1fM", vol/1_000_000)
	case vol >= 1_000:
		return fmt.Sprintf("%.1fK", vol/1_000)
	default:
		return fmt.Sprintf("%.0f", vol)
	}
}

// sanitizeHeader 去掉 CR/LF，防止邮件头注入
func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}

// isInQuietHours now 在用户时区下是否落在免打扰时段。
// start<=end 为当天区间，否则视为跨午夜区间；两端都包含。
func isInQuietHours(prefs *model.NotificationPreferences, now time.Time) (bool, error) {
	if prefs == nil || !prefs.QuietHoursEnabled {
		return false, nil
	}

	loc, err := time.LoadLocation(prefs.QuietHoursTimezone)
	if err != nil {
		return false, fmt.Errorf("加载时区 %s 失败: %w", prefs.QuietHoursTimezone, err)
	}

	current := now.In(loc).Format("15:04:05")
	start, end := prefs.QuietHoursStart, prefs.QuietHoursEnd
	if start <= end {
		return current >= start && current <= end, nil
	}
	return current >= start || current <= end, nil
}
