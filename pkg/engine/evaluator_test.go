package engine

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AlertRadar/pkg/model"
)

func TestHandlePriceUpdate_InvalidJSON(t *testing.T) {
	store := &mockStore{}
	e, _ := newTestEvaluator(t, store, &mockDelivery{})

	err := e.HandlePriceUpdate([]byte(`{not json`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecode)
	assert.Empty(t, store.fetchCalls)
}

func TestHandlePriceUpdate_EmptySymbols(t *testing.T) {
	store := &mockStore{}
	e, _ := newTestEvaluator(t, store, &mockDelivery{})

	require.NoError(t, e.HandlePriceUpdate([]byte(`{"timestamp":1,"source":"test","symbols":{}}`)))
	require.NoError(t, e.HandlePriceUpdate([]byte(`{"timestamp":1,"source":"test"}`)))
	assert.Empty(t, store.fetchCalls)
}

func TestHandlePriceUpdate_FetchError(t *testing.T) {
	store := &mockStore{
		getActiveAlertsForSymbolsFn: func([]string) ([]model.AlertRule, error) {
			return nil, errors.New("connection refused")
		},
	}
	e, _ := newTestEvaluator(t, store, &mockDelivery{})

	err := e.HandlePriceUpdate(makePriceUpdateJSON(t, map[string]model.SymbolQuote{"AAPL": {Price: 150}}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetch)
	assert.Empty(t, store.claimCalls)
	assert.Empty(t, store.createCalls)
}

func TestHandlePriceUpdate_FetchesBatchSymbols(t *testing.T) {
	store := &mockStore{}
	e, _ := newTestEvaluator(t, store, &mockDelivery{})

	require.NoError(t, e.HandlePriceUpdate(makePriceUpdateJSON(t, map[string]model.SymbolQuote{
		"AAPL": {Price: 150},
		"MSFT": {Price: 300},
	})))
	require.Len(t, store.fetchCalls, 1)
	assert.Equal(t, []string{"AAPL", "MSFT"}, store.fetchCalls[0])
}

func TestHandlePriceUpdate_EndToEnd(t *testing.T) {
	store := &mockStore{
		getActiveAlertsForSymbolsFn: alertsFn(
			makeAlert("alert-aapl", "AAPL", model.AlertTypePriceAbove, model.FrequencyAlways, `{"threshold":140}`),
		),
	}
	delivery := &mockDelivery{}
	e, _ := newTestEvaluator(t, store, delivery)

	msg := makePriceUpdateJSON(t, map[string]model.SymbolQuote{
		"AAPL": {Price: 155},
	})
	require.NoError(t, e.HandlePriceUpdate(msg))

	require.Len(t, store.claimCalls, 1)
	assert.Equal(t, claimCall{"alert-aapl", model.FrequencyAlways}, store.claimCalls[0])

	require.Len(t, store.createCalls, 1)
	log := store.createCalls[0]
	assert.Equal(t, "alert-aapl", log.AlertRuleID)
	assert.Equal(t, "user-001", log.UserID)
	assert.Equal(t, "AAPL", log.Symbol)
	assert.Equal(t, model.AlertTypePriceAbove, log.AlertType)
	assert.Equal(t, testNow, log.TriggeredAt)

	var cond map[string]any
	require.NoError(t, json.Unmarshal(log.ConditionMet, &cond))
	assert.Equal(t, "price_above", cond["alert_type"])
	assert.Equal(t, 140.0, cond["threshold"])
	assert.Equal(t, true, cond["triggered"])

	var market map[string]any
	require.NoError(t, json.Unmarshal(log.MarketData, &market))
	assert.Equal(t, "AAPL", market["symbol"])
	assert.Equal(t, 155.0, market["price"])
	assert.Equal(t, 0.0, market["volume"])
	assert.Equal(t, 0.0, market["change_pct"])
	assert.Equal(t, float64(testNow.Unix()), market["timestamp"])

	require.Len(t, delivery.calls, 1)
	assert.Equal(t, "log-001", delivery.calls[0].Log.ID)
	assert.False(t, delivery.calls[0].Log.NotificationSent)
	assert.Equal(t, 155.0, delivery.calls[0].Quote.Price)

	require.Len(t, store.sentCalls, 1)
	assert.Equal(t, sentCall{"log-001", true}, store.sentCalls[0])
}

func TestHandlePriceUpdate_KOfNTrigger(t *testing.T) {
	store := &mockStore{
		getActiveAlertsForSymbolsFn: alertsFn(
			makeAlert("a1", "AAPL", model.AlertTypePriceAbove, model.FrequencyAlways, `{"threshold":100}`),
			makeAlert("a2", "AAPL", model.AlertTypePriceAbove, model.FrequencyAlways, `{"threshold":500}`),
			makeAlert("a3", "MSFT", model.AlertTypePriceBelow, model.FrequencyDaily, `{"threshold":350}`),
			makeAlert("a4", "MSFT", model.AlertTypeVolumeSpike, model.FrequencyDaily, `{"volume_multiplier":3}`),
			makeAlert("a5", "TSLA", model.AlertTypePriceAbove, model.FrequencyOnce, `{"threshold":1}`),
		),
	}
	delivery := &mockDelivery{}
	e, _ := newTestEvaluator(t, store, delivery)

	require.NoError(t, e.HandlePriceUpdate(makePriceUpdateJSON(t, map[string]model.SymbolQuote{
		"AAPL": {Price: 180},
		"MSFT": {Price: 320, Volume: 90_000_000},
	})))

	// a1、a3 满足；a2 未达阈值，a4 永不触发，a5 不在本批次
	require.Len(t, store.claimCalls, 2)
	assert.Equal(t, "a1", store.claimCalls[0].AlertID)
	assert.Equal(t, "a3", store.claimCalls[1].AlertID)
	assert.Len(t, store.createCalls, 2)
	assert.Len(t, delivery.calls, 2)
	assert.Len(t, store.sentCalls, 2)
}

func TestHandlePriceUpdate_GateSkipsWithoutStoreCalls(t *testing.T) {
	recent := testNow.Add(-2 * time.Minute)
	fired := testNow.Add(-48 * time.Hour)

	always := makeAlert("always", "AAPL", model.AlertTypePriceAbove, model.FrequencyAlways, `{"threshold":100}`)
	always.LastTriggeredAt = &recent
	once := makeAlert("once", "AAPL", model.AlertTypePriceAbove, model.FrequencyOnce, `{"threshold":100}`)
	once.LastTriggeredAt = &fired
	bogus := makeAlert("bogus", "AAPL", model.AlertTypePriceAbove, model.Frequency("hourly"), `{"threshold":100}`)

	store := &mockStore{getActiveAlertsForSymbolsFn: alertsFn(always, once, bogus)}
	e, _ := newTestEvaluator(t, store, &mockDelivery{})

	require.NoError(t, e.HandlePriceUpdate(makePriceUpdateJSON(t, map[string]model.SymbolQuote{"AAPL": {Price: 200}})))
	assert.Empty(t, store.claimCalls)
	assert.Empty(t, store.createCalls)
}

func TestHandlePriceUpdate_GateReopensWithClock(t *testing.T) {
	last := testNow.Add(-4 * time.Minute)
	alert := makeAlert("always", "AAPL", model.AlertTypePriceAbove, model.FrequencyAlways, `{"threshold":100}`)
	alert.LastTriggeredAt = &last

	store := &mockStore{getActiveAlertsForSymbolsFn: alertsFn(alert)}
	e, clk := newTestEvaluator(t, store, &mockDelivery{})
	msg := makePriceUpdateJSON(t, map[string]model.SymbolQuote{"AAPL": {Price: 200}})

	require.NoError(t, e.HandlePriceUpdate(msg))
	assert.Empty(t, store.claimCalls)

	clk.Advance(time.Minute)
	require.NoError(t, e.HandlePriceUpdate(msg))
	assert.Len(t, store.claimCalls, 1)
}

func TestHandlePriceUpdate_ClaimLost(t *testing.T) {
	store := &mockStore{
		getActiveAlertsForSymbolsFn: alertsFn(
			makeAlert("a1", "AAPL", model.AlertTypePriceAbove, model.FrequencyDaily, `{"threshold":100}`),
		),
		claimAlertTriggerFn: func(string, model.Frequency) (bool, error) { return false, nil },
	}
	delivery := &mockDelivery{}
	e, _ := newTestEvaluator(t, store, delivery)

	require.NoError(t, e.HandlePriceUpdate(makePriceUpdateJSON(t, map[string]model.SymbolQuote{"AAPL": {Price: 200}})))
	assert.Len(t, store.claimCalls, 1)
	assert.Empty(t, store.createCalls)
	assert.Empty(t, delivery.calls)
}

func TestHandlePriceUpdate_ClaimErrorContinues(t *testing.T) {
	store := &mockStore{
		getActiveAlertsForSymbolsFn: alertsFn(
			makeAlert("a1", "AAPL", model.AlertTypePriceAbove, model.FrequencyDaily, `{"threshold":100}`),
			makeAlert("a2", "AAPL", model.AlertTypePriceAbove, model.FrequencyDaily, `{"threshold":100}`),
		),
		claimAlertTriggerFn: func(id string, _ model.Frequency) (bool, error) {
			if id == "a1" {
				return false, errors.New("deadlock detected")
			}
			return true, nil
		},
	}
	delivery := &mockDelivery{}
	e, _ := newTestEvaluator(t, store, delivery)

	require.NoError(t, e.HandlePriceUpdate(makePriceUpdateJSON(t, map[string]model.SymbolQuote{"AAPL": {Price: 200}})))
	require.Len(t, store.createCalls, 1)
	assert.Equal(t, "a2", store.createCalls[0].AlertRuleID)
	assert.Len(t, delivery.calls, 1)
}

func TestHandlePriceUpdate_CreateLogFailureSkipsDelivery(t *testing.T) {
	store := &mockStore{
		getActiveAlertsForSymbolsFn: alertsFn(
			makeAlert("a1", "AAPL", model.AlertTypePriceAbove, model.FrequencyDaily, `{"threshold":100}`),
		),
		createAlertLogFn: func(*model.AlertLog) (string, error) { return "", errors.New("disk full") },
	}
	delivery := &mockDelivery{}
	e, _ := newTestEvaluator(t, store, delivery)

	require.NoError(t, e.HandlePriceUpdate(makePriceUpdateJSON(t, map[string]model.SymbolQuote{"AAPL": {Price: 200}})))
	assert.Len(t, store.claimCalls, 1)
	assert.Len(t, store.createCalls, 1)
	assert.Empty(t, delivery.calls)
	assert.Empty(t, store.sentCalls)
}

func TestHandlePriceUpdate_DeliveryFailureKeepsLogUnsent(t *testing.T) {
	store := &mockStore{
		getActiveAlertsForSymbolsFn: alertsFn(
			makeAlert("a1", "AAPL", model.AlertTypePriceAbove, model.FrequencyDaily, `{"threshold":100}`),
		),
	}
	delivery := &mockDelivery{
		deliverFn: func(*model.AlertRule, *model.AlertLog, *model.SymbolQuote) error {
			return errors.New("smtp timeout")
		},
	}
	e, _ := newTestEvaluator(t, store, delivery)

	require.NoError(t, e.HandlePriceUpdate(makePriceUpdateJSON(t, map[string]model.SymbolQuote{"AAPL": {Price: 200}})))
	require.Len(t, store.createCalls, 1)
	assert.False(t, store.createCalls[0].NotificationSent)
	assert.Len(t, delivery.calls, 1)
	assert.Empty(t, store.sentCalls)
}

func TestHandlePriceUpdate_MarkSentFailureIsNotFatal(t *testing.T) {
	store := &mockStore{
		getActiveAlertsForSymbolsFn: alertsFn(
			makeAlert("a1", "AAPL", model.AlertTypePriceAbove, model.FrequencyDaily, `{"threshold":100}`),
			makeAlert("a2", "AAPL", model.AlertTypePriceAbove, model.FrequencyDaily, `{"threshold":100}`),
		),
		updateAlertLogNotificationSentFn: func(string, bool) error { return errors.New("timeout") },
	}
	delivery := &mockDelivery{}
	e, _ := newTestEvaluator(t, store, delivery)

	require.NoError(t, e.HandlePriceUpdate(makePriceUpdateJSON(t, map[string]model.SymbolQuote{"AAPL": {Price: 200}})))
	assert.Len(t, delivery.calls, 2)
	assert.Len(t, store.sentCalls, 2)
}

func TestHandlePriceUpdate_MalformedRuleDoesNotBlockOthers(t *testing.T) {
	store := &mockStore{
		getActiveAlertsForSymbolsFn: alertsFn(
			makeAlert("broken", "AAPL", model.AlertTypePriceAbove, model.FrequencyDaily, `{bad json`),
			makeAlert("good", "AAPL", model.AlertTypePriceAbove, model.FrequencyDaily, `{"threshold":100}`),
		),
	}
	delivery := &mockDelivery{}
	e, _ := newTestEvaluator(t, store, delivery)

	require.NoError(t, e.HandlePriceUpdate(makePriceUpdateJSON(t, map[string]model.SymbolQuote{"AAPL": {Price: 200}})))
	require.Len(t, store.claimCalls, 1)
	assert.Equal(t, "good", store.claimCalls[0].AlertID)
	assert.Len(t, delivery.calls, 1)
}

func TestMarketSnapshot_FallsBackOnNonFiniteValues(t *testing.T) {
	raw := marketSnapshot("AAPL", &model.SymbolQuote{Price: math.NaN(), Volume: 10}, testNow)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "AAPL", got["symbol"])
	assert.Equal(t, float64(testNow.Unix()), got["timestamp"])
	assert.NotContains(t, got, "price")
}

func TestConditionSnapshot_InertTypeHasZeroThreshold(t *testing.T) {
	alert := makeAlert("n1", "AAPL", model.AlertTypeNews, model.FrequencyDaily, `{}`)

	var got map[string]any
	require.NoError(t, json.Unmarshal(conditionSnapshot(&alert), &got))
	assert.Equal(t, "news", got["alert_type"])
	assert.Equal(t, 0.0, got["threshold"])
	assert.Equal(t, true, got["triggered"])
}
