package engine

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap/zaptest"

	"AlertRadar/pkg/clock"
	"AlertRadar/pkg/model"
)

type claimCall struct {
	AlertID   string
	Frequency model.Frequency
}

type sentCall struct {
	LogID string
	Sent  bool
}

// mockStore 可配置返回值并记录调用的 Store
type mockStore struct {
	mu sync.Mutex

	getActiveAlertsForSymbolsFn      func(symbols []string) ([]model.AlertRule, error)
	claimAlertTriggerFn              func(alertID string, frequency model.Frequency) (bool, error)
	createAlertLogFn                 func(log *model.AlertLog) (string, error)
	updateAlertLogNotificationSentFn func(logID string, sent bool) error

	fetchCalls  [][]string
	claimCalls  []claimCall
	createCalls []*model.AlertLog
	sentCalls   []sentCall
}

func (m *mockStore) GetActiveAlertsForSymbols(symbols []string) ([]model.AlertRule, error) {
	m.mu.Lock()
	m.fetchCalls = append(m.fetchCalls, symbols)
	m.mu.Unlock()
	if m.getActiveAlertsForSymbolsFn != nil {
		return m.getActiveAlertsForSymbolsFn(symbols)
	}
	return nil, nil
}

func (m *mockStore) ClaimAlertTrigger(alertID string, frequency model.Frequency) (bool, error) {
	m.mu.Lock()
	m.claimCalls = append(m.claimCalls, claimCall{alertID, frequency})
	m.mu.Unlock()
	if m.claimAlertTriggerFn != nil {
		return m.claimAlertTriggerFn(alertID, frequency)
	}
	return true, nil
}

func (m *mockStore) CreateAlertLog(log *model.AlertLog) (string, error) {
	m.mu.Lock()
	m.createCalls = append(m.createCalls, log)
	n := len(m.createCalls)
	m.mu.Unlock()
	if m.createAlertLogFn != nil {
		return m.createAlertLogFn(log)
	}
	return fmt.Sprintf("log-%03d", n), nil
}

func (m *mockStore) UpdateAlertLogNotificationSent(logID string, sent bool) error {
	m.mu.Lock()
	m.sentCalls = append(m.sentCalls, sentCall{logID, sent})
	m.mu.Unlock()
	if m.updateAlertLogNotificationSentFn != nil {
		return m.updateAlertLogNotificationSentFn(logID, sent)
	}
	return nil
}

type deliverCall struct {
	Alert *model.AlertRule
	Log   *model.AlertLog
	Quote *model.SymbolQuote
}

type mockDelivery struct {
	deliverFn func(alert *model.AlertRule, log *model.AlertLog, quote *model.SymbolQuote) error
	calls     []deliverCall
}

func (d *mockDelivery) Deliver(alert *model.AlertRule, log *model.AlertLog, quote *model.SymbolQuote) error {
	cp := *log
	d.calls = append(d.calls, deliverCall{alert, &cp, quote})
	if d.deliverFn != nil {
		return d.deliverFn(alert, log, quote)
	}
	return nil
}

var testNow = time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)

func newTestEvaluator(t *testing.T, store *mockStore, delivery *mockDelivery) (*Evaluator, *clock.FakeClock) {
	t.Helper()
	clk := clock.NewFakeClock(testNow)
	return New(store, delivery, zaptest.NewLogger(t), WithClock(clk)), clk
}

func makeAlert(id, symbol string, alertType model.AlertType, freq model.Frequency, conditions string) model.AlertRule {
	return model.AlertRule{
		ID:          id,
		UserID:      "user-001",
		WatchListID: "wl-001",
		Symbol:      symbol,
		AlertType:   alertType,
		Conditions:  []byte(conditions),
		IsActive:    true,
		Frequency:   freq,
		NotifyEmail: true,
		NotifyInApp: true,
		Name:        "Test Alert",
		CreatedAt:   testNow.Add(-time.Hour),
		UpdatedAt:   testNow.Add(-time.Hour),
	}
}

func makePriceUpdateJSON(t *testing.T, symbols map[string]model.SymbolQuote) []byte {
	t.Helper()
	b, err := json.Marshal(model.PriceUpdateMessage{
		Timestamp: testNow.Unix(),
		Source:    "test",
		Symbols:   symbols,
	})
	if err != nil {
		t.Fatalf("marshal price update: %v", err)
	}
	return b
}

func alertsFn(alerts ...model.AlertRule) func([]string) ([]model.AlertRule, error) {
	return func([]string) ([]model.AlertRule, error) {
		out := make([]model.AlertRule, len(alerts))
		copy(out, alerts)
		return out, nil
	}
}
