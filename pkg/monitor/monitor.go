package monitor

import (
	"context"
	"sort"
	"sync"
	"time"

	"AlertRadar/pkg/clock"
)

const (
	StatusUnknown   = "unknown"
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// HealthStatus 健康状态
type HealthStatus struct {
	Component   string    `json:"component"`
	Status      string    `json:"status"`
	LastChecked time.Time `json:"last_checked"`
	Message     string    `json:"message,omitempty"`
}

// Probe 组件探活函数，返回 nil 表示健康
type Probe func(ctx context.Context) error

// Monitor 组件健康登记表，供 /health 与定时探活使用
type Monitor struct {
	components map[string]*HealthStatus
	probes     map[string]Probe
	mutex      sync.RWMutex
	clock      clock.Clock
	alertFunc  func(component, status, message string)
}

// NewMonitor 创建新的监控系统；alertFunc 在组件状态变为不健康时调用
func NewMonitor(clk clock.Clock, alertFunc func(component, status, message string)) *Monitor {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Monitor{
		components: make(map[string]*HealthStatus),
		probes:     make(map[string]Probe),
		clock:      clk,
		alertFunc:  alertFunc,
	}
}

// RegisterComponent 注册组件；probe 可为空，表示状态由组件自己上报
func (m *Monitor) RegisterComponent(component string, probe Probe) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.components[component] = &HealthStatus{
		Component:   component,
		Status:      StatusUnknown,
		LastChecked: m.clock.Now(),
	}
	if probe != nil {
		m.probes[component] = probe
	}
}

// UpdateStatus 更新组件状态
func (m *Monitor) UpdateStatus(component, status, message string) {
	m.mutex.Lock()
	st, exists := m.components[component]
	if !exists {
		st = &HealthStatus{Component: component}
		m.components[component] = st
	}
	oldStatus := st.Status
	st.Status = status
	st.LastChecked = m.clock.Now()
	st.Message = message
	m.mutex.Unlock()

	// 状态变为不健康时告警
	if oldStatus != status && status != StatusHealthy && m.alertFunc != nil {
		m.alertFunc(component, status, message)
	}
}

// GetStatus 获取组件状态的副本
func (m *Monitor) GetStatus(component string) *HealthStatus {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if st, exists := m.components[component]; exists {
		cp := *st
		return &cp
	}
	return nil
}

// GetAllStatus 获取所有组件状态，按组件名排序
func (m *Monitor) GetAllStatus() []HealthStatus {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	statuses := make([]HealthStatus, 0, len(m.components))
	for _, st := range m.components {
		statuses = append(statuses, *st)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Component < statuses[j].Component })
	return statuses
}

// Healthy 所有已注册组件都不处于 unhealthy
func (m *Monitor) Healthy() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for _, st := range m.components {
		if st.Status == StatusUnhealthy {
			return false
		}
	}
	return true
}

// CheckAll 执行所有注册的探活函数
func (m *Monitor) CheckAll(ctx context.Context) {
	m.mutex.RLock()
	probes := make(map[string]Probe, len(m.probes))
	for name, p := range m.probes {
		probes[name] = p
	}
	m.mutex.RUnlock()

	for name, probe := range probes {
		if err := probe(ctx); err != nil {
			m.UpdateStatus(name, StatusUnhealthy, err.Error())
			continue
		}
		m.UpdateStatus(name, StatusHealthy, "")
	}
}
