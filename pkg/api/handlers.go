package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"AlertRadar/pkg/config"
	"AlertRadar/pkg/model"
	"AlertRadar/pkg/monitor"
)

const (
	healthTimeout   = 2 * time.Second
	defaultLogLimit = 50
)

// Pinger 数据库等可探活的依赖
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConsumerStatus 行情消费者健康状态
type ConsumerStatus interface {
	IsHealthy() bool
}

// CanarySender 发送巡检邮件
type CanarySender interface {
	SendTest(to, name string) error
}

// AlertLogReader 查询提醒历史
type AlertLogReader interface {
	ListAlertLogsByUser(userID string, limit int) ([]model.AlertLog, error)
}

// Deps 处理程序依赖；未提供的依赖对应接口降级
type Deps struct {
	DB          Pinger
	Broker      Pinger
	Consumer    ConsumerStatus
	Monitor     *monitor.Monitor
	Canary      CanarySender
	CanaryToken config.Secret
	AlertLogs   AlertLogReader
	Gatherer    prometheus.Gatherer
}

// Handlers API处理程序
type Handlers struct {
	deps   Deps
	logger *zap.Logger
}

// NewHandlers 创建新的API处理程序
func NewHandlers(deps Deps, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	return &Handlers{deps: deps, logger: logger.Named("handlers")}
}

// HealthCheck 数据库可用且消费者正常时返回 200，否则 503
func (h *Handlers) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	healthy := true
	resp := gin.H{}

	if h.deps.DB != nil {
		if err := h.deps.DB.Ping(ctx); err != nil {
			healthy = false
			resp["database"] = gin.H{"status": monitor.StatusUnhealthy, "error": err.Error()}
		} else {
			resp["database"] = gin.H{"status": monitor.StatusHealthy}
		}
	}

	if h.deps.Consumer != nil {
		if h.deps.Consumer.IsHealthy() {
			resp["consumer"] = gin.H{"status": monitor.StatusHealthy}
		} else {
			healthy = false
			resp["consumer"] = gin.H{"status": monitor.StatusUnhealthy}
		}
	}

	if h.deps.Monitor != nil {
		resp["components"] = h.deps.Monitor.GetAllStatus()
	}

	status := http.StatusOK
	resp["status"] = monitor.StatusHealthy
	if !healthy {
		status = http.StatusServiceUnavailable
		resp["status"] = monitor.StatusUnhealthy
	}
	c.JSON(status, resp)
}

// ReadinessCheck 数据库与消息队列都可连接时就绪
func (h *Handlers) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	for name, p := range map[string]Pinger{"database": h.deps.DB, "nats": h.deps.Broker} {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "component": name, "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Metrics Prometheus 指标
func (h *Handlers) Metrics() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(h.deps.Gatherer, promhttp.HandlerOpts{}))
}

// GetAlertLogs 用户的提醒历史，按触发时间倒序
func (h *Handlers) GetAlertLogs(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id参数不能为空"})
		return
	}
	if h.deps.AlertLogs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "提醒历史不可用"})
		return
	}

	limit := defaultLogLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := cast.ToIntE(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit必须为正整数"})
			return
		}
		limit = n
	}

	logs, err := h.deps.AlertLogs.ListAlertLogsByUser(userID, limit)
	if err != nil {
		h.logger.Error("查询提醒历史失败", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询提醒历史失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  logs,
		"count": len(logs),
	})
}
