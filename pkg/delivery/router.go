package delivery

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"AlertRadar/pkg/model"
	"AlertRadar/pkg/monitor"
)

const (
	ChannelEmail = "email"
	ChannelInApp = "in_app"
	ChannelPush  = "push"
)

// Sender 单个通知渠道。返回 false 表示按用户设置跳过，不算失败。
type Sender interface {
	Send(alert *model.AlertRule, log *model.AlertLog, quote *model.SymbolQuote) (bool, error)
}

// Router 按规则的 notify_* 开关分发到各渠道，渠道错误合并后返回
type Router struct {
	email   Sender
	inApp   Sender
	logger  *zap.Logger
	metrics *monitor.Metrics
}

func NewRouter(email, inApp Sender, logger *zap.Logger, metrics *monitor.Metrics) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		email:   email,
		inApp:   inApp,
		logger:  logger.Named("delivery"),
		metrics: metrics,
	}
}

// Deliver 实现 engine.Delivery
func (r *Router) Deliver(alert *model.AlertRule, log *model.AlertLog, quote *model.SymbolQuote) error {
	var err error
	if alert.NotifyInApp {
		err = multierr.Append(err, r.send(ChannelInApp, r.inApp, alert, log, quote))
	}
	if alert.NotifyEmail {
		err = multierr.Append(err, r.send(ChannelEmail, r.email, alert, log, quote))
	}
	return err
}

func (r *Router) send(channel string, s Sender, alert *model.AlertRule, log *model.AlertLog, quote *model.SymbolQuote) error {
	if s == nil {
		r.metrics.IncDelivery(channel, true, nil)
		return nil
	}

	sent, err := s.Send(alert, log, quote)
	r.metrics.IncDelivery(channel, !sent, err)
	if err != nil {
		r.logger.Warn("渠道投递失败",
			zap.String("channel", channel),
			zap.String("alert_id", alert.ID),
			zap.Error(err))
		return err
	}
	if !sent {
		r.logger.Debug("渠道按用户设置跳过", zap.String("channel", channel), zap.String("alert_id", alert.ID))
	}
	return nil
}
