// pkg/model/condition.go
package model

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

var ErrInvalidCondition = errors.New("invalid alert condition")

// Condition conditions 字段的具体形状，由 alert_type 唯一决定
type Condition interface {
	// Magnitude 写入 condition_met.threshold 的数值
	Magnitude() float64
	Validate() error
}

// ThresholdCondition price_above / price_below / volume_above / volume_below
type ThresholdCondition struct {
	Threshold float64 `json:"threshold"`
}

func (c ThresholdCondition) Magnitude() float64 { return c.Threshold }

func (c ThresholdCondition) Validate() error {
	if !(c.Threshold > 0) {
		return fmt.Errorf("%w: threshold must be positive, got %v", ErrInvalidCondition, c.Threshold)
	}
	return nil
}

// Direction price_change_pct 的方向
type Direction string

const (
	DirectionUp     Direction = "up"
	DirectionDown   Direction = "down"
	DirectionEither Direction = "either"
)

// PriceChangeCondition price_change_pct；Direction 为空时等同 either
type PriceChangeCondition struct {
	PercentChange float64   `json:"percent_change"`
	Direction     Direction `json:"direction"`
}

func (c PriceChangeCondition) Magnitude() float64 { return c.PercentChange }

func (c PriceChangeCondition) Validate() error {
	if !(c.PercentChange > 0) {
		return fmt.Errorf("%w: percent_change must be positive, got %v", ErrInvalidCondition, c.PercentChange)
	}
	switch c.Direction {
	case DirectionUp, DirectionDown, DirectionEither, "":
		return nil
	}
	return fmt.Errorf("%w: unknown direction %q", ErrInvalidCondition, c.Direction)
}

// VolumeSpikeCondition volume_spike；缺少历史基线数据源，目前不参与评估
type VolumeSpikeCondition struct {
	VolumeMultiplier float64 `json:"volume_multiplier"`
	Baseline         string  `json:"baseline"` // "avg_30d"
}

func (c VolumeSpikeCondition) Magnitude() float64 { return c.VolumeMultiplier }

func (c VolumeSpikeCondition) Validate() error {
	if !(c.VolumeMultiplier > 0) {
		return fmt.Errorf("%w: volume_multiplier must be positive, got %v", ErrInvalidCondition, c.VolumeMultiplier)
	}
	return nil
}

// Condition 按 alert_type 解析 conditions。
// news、earnings 以及未知类型没有条件结构，返回 (nil, nil)。
func (r *AlertRule) Condition() (Condition, error) {
	var cond Condition
	switch r.AlertType {
	case AlertTypePriceAbove, AlertTypePriceBelow, AlertTypeVolumeAbove, AlertTypeVolumeBelow:
		var c ThresholdCondition
		if err := decodeCondition(r.Conditions, &c); err != nil {
			return nil, err
		}
		cond = c
	case AlertTypePriceChangePct:
		var c PriceChangeCondition
		if err := decodeCondition(r.Conditions, &c); err != nil {
			return nil, err
		}
		cond = c
	case AlertTypeVolumeSpike:
		var c VolumeSpikeCondition
		if err := decodeCondition(r.Conditions, &c); err != nil {
			return nil, err
		}
		cond = c
	default:
		return nil, nil
	}

	if err := cond.Validate(); err != nil {
		return nil, err
	}
	return cond, nil
}

func decodeCondition(raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCondition, err)
	}
	return nil
}
