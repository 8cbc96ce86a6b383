package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AlertRadar/pkg/model"
)

func ruleWith(alertType model.AlertType, conditions string) *model.AlertRule {
	return &model.AlertRule{
		ID:         "rule-1",
		AlertType:  alertType,
		Conditions: []byte(conditions),
	}
}

func TestEvaluate_Thresholds(t *testing.T) {
	cases := []struct {
		name  string
		rule  *model.AlertRule
		quote model.SymbolQuote
		want  bool
	}{
		{"price_above at threshold", ruleWith(model.AlertTypePriceAbove, `{"threshold":150}`), model.SymbolQuote{Price: 150}, true},
		{"price_above over threshold", ruleWith(model.AlertTypePriceAbove, `{"threshold":150}`), model.SymbolQuote{Price: 150.01}, true},
		{"price_above under threshold", ruleWith(model.AlertTypePriceAbove, `{"threshold":150}`), model.SymbolQuote{Price: 149.99}, false},
		{"price_below at threshold", ruleWith(model.AlertTypePriceBelow, `{"threshold":100}`), model.SymbolQuote{Price: 100}, true},
		{"price_below over threshold", ruleWith(model.AlertTypePriceBelow, `{"threshold":100}`), model.SymbolQuote{Price: 100.5}, false},
		{"volume_above at threshold", ruleWith(model.AlertTypeVolumeAbove, `{"threshold":1000000}`), model.SymbolQuote{Volume: 1_000_000}, true},
		{"volume_above under threshold", ruleWith(model.AlertTypeVolumeAbove, `{"threshold":1000000}`), model.SymbolQuote{Volume: 999_999}, false},
		{"volume_below under threshold", ruleWith(model.AlertTypeVolumeBelow, `{"threshold":500}`), model.SymbolQuote{Volume: 10}, true},
		{"volume_below over threshold", ruleWith(model.AlertTypeVolumeBelow, `{"threshold":500}`), model.SymbolQuote{Volume: 501}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Evaluate(tc.rule, &tc.quote)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvaluate_PriceChangePct(t *testing.T) {
	cases := []struct {
		name   string
		cond   string
		change float64
		want   bool
	}{
		{"either drop past threshold", `{"percent_change":5,"direction":"either"}`, -6, true},
		{"either rise past threshold", `{"percent_change":5,"direction":"either"}`, 5, true},
		{"either inside band", `{"percent_change":5,"direction":"either"}`, -4.99, false},
		{"empty direction acts as either", `{"percent_change":5}`, -7, true},
		{"up ignores drop", `{"percent_change":5,"direction":"up"}`, -6, false},
		{"up at threshold", `{"percent_change":5,"direction":"up"}`, 5, true},
		{"down at threshold", `{"percent_change":3,"direction":"down"}`, -3, true},
		{"down ignores rise", `{"percent_change":3,"direction":"down"}`, 10, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Evaluate(ruleWith(model.AlertTypePriceChangePct, tc.cond), &model.SymbolQuote{ChangePct: tc.change})
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvaluate_Inert(t *testing.T) {
	quote := &model.SymbolQuote{Price: 1e6, Volume: 1e12, ChangePct: 99}
	for _, at := range []model.AlertType{
		model.AlertTypeVolumeSpike,
		model.AlertTypeNews,
		model.AlertTypeEarnings,
		model.AlertType("crypto_whale"),
	} {
		t.Run(string(at), func(t *testing.T) {
			got, err := Evaluate(ruleWith(at, `{"volume_multiplier":2,"baseline":"avg_30d"}`), quote)
			require.NoError(t, err)
			assert.False(t, got)
		})
	}
}

func TestEvaluate_InvalidConditions(t *testing.T) {
	cases := []struct {
		name string
		rule *model.AlertRule
	}{
		{"malformed json", ruleWith(model.AlertTypePriceAbove, `{invalid`)},
		{"zero threshold", ruleWith(model.AlertTypePriceAbove, `{"threshold":0}`)},
		{"negative threshold", ruleWith(model.AlertTypeVolumeBelow, `{"threshold":-10}`)},
		{"missing threshold", ruleWith(model.AlertTypePriceBelow, `{}`)},
		{"zero percent", ruleWith(model.AlertTypePriceChangePct, `{"percent_change":0,"direction":"up"}`)},
		{"negative percent", ruleWith(model.AlertTypePriceChangePct, `{"percent_change":-2}`)},
		{"unknown direction", ruleWith(model.AlertTypePriceChangePct, `{"percent_change":2,"direction":"sideways"}`)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Evaluate(tc.rule, &model.SymbolQuote{Price: 200, Volume: 1, ChangePct: 50})
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrInvalidCondition)
			assert.False(t, got)
		})
	}
}
