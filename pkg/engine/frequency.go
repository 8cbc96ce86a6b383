package engine

import (
	"time"

	"AlertRadar/pkg/model"
)

// ShouldTrigger 频率预检，只用于减少无效 claim；最终以 ClaimAlertTrigger 为准
func ShouldTrigger(freq model.Frequency, lastTriggeredAt *time.Time, now time.Time) bool {
	switch freq {
	case model.FrequencyOnce:
		return lastTriggeredAt == nil
	case model.FrequencyDaily, model.FrequencyAlways:
		if lastTriggeredAt == nil {
			return true
		}
		window, _ := freq.Window()
		return now.Sub(*lastTriggeredAt) >= window
	default:
		return false
	}
}
