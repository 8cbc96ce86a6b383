package engine

import (
	"fmt"
	"math"

	"AlertRadar/pkg/model"
)

// Evaluate 判断规则条件是否被当前行情满足
// volume_spike、news、earnings 以及未知类型永远返回 (false, nil)
func Evaluate(rule *model.AlertRule, quote *model.SymbolQuote) (bool, error) {
	switch rule.AlertType {
	case model.AlertTypePriceAbove, model.AlertTypePriceBelow,
		model.AlertTypeVolumeAbove, model.AlertTypeVolumeBelow,
		model.AlertTypePriceChangePct:
	default:
		return false, nil
	}

	cond, err := rule.Condition()
	if err != nil {
		return false, fmt.Errorf("规则 %s 条件解析失败: %w", rule.ID, err)
	}

	switch c := cond.(type) {
	case model.ThresholdCondition:
		return evaluateThreshold(rule.AlertType, c, quote), nil
	case model.PriceChangeCondition:
		return evaluatePriceChange(c, quote), nil
	default:
		return false, nil
	}
}

func evaluateThreshold(alertType model.AlertType, c model.ThresholdCondition, quote *model.SymbolQuote) bool {
	switch alertType {
	case model.AlertTypePriceAbove:
		return quote.Price >= c.Threshold
	case model.AlertTypePriceBelow:
		return quote.Price <= c.Threshold
	case model.AlertTypeVolumeAbove:
		return float64(quote.Volume) >= c.Threshold
	case model.AlertTypeVolumeBelow:
		return float64(quote.Volume) <= c.Threshold
	}
	return false
}

func evaluatePriceChange(c model.PriceChangeCondition, quote *model.SymbolQuote) bool {
	switch c.Direction {
	case model.DirectionUp:
		return quote.ChangePct >= c.PercentChange
	case model.DirectionDown:
		return quote.ChangePct <= -c.PercentChange
	default:
		return math.Abs(quote.ChangePct) >= c.PercentChange
	}
}
