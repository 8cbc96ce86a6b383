package delivery

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"AlertRadar/pkg/clock"
	"AlertRadar/pkg/config"
	"AlertRadar/pkg/model"
	"AlertRadar/pkg/monitor"
)

const pushExpiration = 24 * time.Hour

// Pusher *apns2.Client 满足该接口
type Pusher interface {
	Push(n *apns2.Notification) (*apns2.Response, error)
}

// DeviceStore 推送设备查询，由 database.DB 实现
type DeviceStore interface {
	GetDeviceTokens(userID string) ([]model.DeviceToken, error)
	DeleteDeviceToken(token string) error
}

// NewAPNsClient 基于 .p8 token 鉴权创建 APNs 客户端
func NewAPNsClient(cfg config.APNSConfig) (*apns2.Client, error) {
	authKey, err := token.AuthKeyFromFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("加载 APNs 密钥失败: %w", err)
	}

	host := apns2.HostDevelopment
	if cfg.Production {
		host = apns2.HostProduction
	}

	return &apns2.Client{
		Token: &token.Token{
			AuthKey: authKey,
			KeyID:   cfg.KeyID,
			TeamID:  cfg.TeamID,
		},
		HTTPClient: &http.Client{
			Transport: &http2.Transport{
				DialTLS:         apns2.DialTLS,
				TLSClientConfig: &tls.Config{},
			},
			Timeout: apns2.HTTPClientTimeout,
		},
		Host: host,
	}, nil
}

// PushDelivery 向用户注册的所有 iOS 设备推送，尽力而为：
// 单个设备失败只记录日志，设备失效时从表中移除
type PushDelivery struct {
	client  Pusher
	topic   string
	store   DeviceStore
	clock   clock.Clock
	logger  *zap.Logger
	metrics *monitor.Metrics
}

func NewPushDelivery(client Pusher, topic string, store DeviceStore, clk clock.Clock, logger *zap.Logger, metrics *monitor.Metrics) *PushDelivery {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PushDelivery{
		client:  client,
		topic:   topic,
		store:   store,
		clock:   clk,
		logger:  logger.Named("push"),
		metrics: metrics,
	}
}

// Notify 返回成功送达的设备数
func (p *PushDelivery) Notify(userID, title, body string, custom map[string]any) int {
	tokens, err := p.store.GetDeviceTokens(userID)
	if err != nil {
		p.metrics.IncDelivery(ChannelPush, false, err)
		p.logger.Warn("查询推送设备失败", zap.String("user_id", userID), zap.Error(err))
		return 0
	}

	var sent int
	for _, t := range tokens {
		pl := payload.NewPayload().AlertTitle(title).AlertBody(body).Sound("default")
		if sym, ok := custom["symbol"].(string); ok && sym != "" {
			pl = pl.ThreadID(sym)
		}
		for k, v := range custom {
			pl = pl.Custom(k, v)
		}

		resp, err := p.client.Push(&apns2.Notification{
			DeviceToken: t.Token,
			Topic:       p.topic,
			Expiration:  p.clock.Now().Add(pushExpiration),
			Payload:     pl,
		})
		if err != nil {
			p.metrics.IncDelivery(ChannelPush, false, err)
			p.logger.Warn("APNs 推送失败", zap.String("user_id", userID), zap.Error(err))
			continue
		}
		if !resp.Sent() {
			p.metrics.IncDelivery(ChannelPush, false, fmt.Errorf("apns: %s", resp.Reason))
			p.logger.Warn("APNs 拒绝推送",
				zap.String("user_id", userID),
				zap.Int("status", resp.StatusCode),
				zap.String("reason", resp.Reason))
			if resp.Reason == apns2.ReasonUnregistered || resp.Reason == apns2.ReasonBadDeviceToken {
				if err := p.store.DeleteDeviceToken(t.Token); err != nil {
					p.logger.Warn("移除失效设备失败", zap.Error(err))
				}
			}
			continue
		}
		p.metrics.IncDelivery(ChannelPush, false, nil)
		sent++
	}
	return sent
}
