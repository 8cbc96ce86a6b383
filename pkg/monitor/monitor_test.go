package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AlertRadar/pkg/clock"
)

func TestMonitor_RegisterAndCheck(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC))
	var alerts []string
	m := NewMonitor(clk, func(component, status, message string) {
		alerts = append(alerts, component+":"+status)
	})

	dbErr := errors.New("connection refused")
	m.RegisterComponent("database", func(context.Context) error { return dbErr })
	m.RegisterComponent("nats", func(context.Context) error { return nil })

	st := m.GetStatus("database")
	require.NotNil(t, st)
	assert.Equal(t, StatusUnknown, st.Status)
	assert.True(t, m.Healthy())

	clk.Advance(time.Minute)
	m.CheckAll(context.Background())

	st = m.GetStatus("database")
	assert.Equal(t, StatusUnhealthy, st.Status)
	assert.Equal(t, "connection refused", st.Message)
	assert.Equal(t, clk.Now(), st.LastChecked)
	assert.Equal(t, StatusHealthy, m.GetStatus("nats").Status)
	assert.False(t, m.Healthy())
	assert.Equal(t, []string{"database:unhealthy"}, alerts)

	// 状态未变化时不重复告警
	m.CheckAll(context.Background())
	assert.Len(t, alerts, 1)

	dbErr = nil
	m.CheckAll(context.Background())
	assert.True(t, m.Healthy())
}

func TestMonitor_GetAllStatusSortedCopy(t *testing.T) {
	m := NewMonitor(nil, nil)
	m.UpdateStatus("redis", StatusHealthy, "")
	m.UpdateStatus("consumer", StatusUnhealthy, "stalled")

	all := m.GetAllStatus()
	require.Len(t, all, 2)
	assert.Equal(t, "consumer", all[0].Component)
	assert.Equal(t, "redis", all[1].Component)

	all[0].Status = StatusHealthy
	assert.Equal(t, StatusUnhealthy, m.GetStatus("consumer").Status)
	assert.Nil(t, m.GetStatus("missing"))
}
