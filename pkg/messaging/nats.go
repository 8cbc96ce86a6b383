// pkg/messaging/nats.go
package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"AlertRadar/pkg/config"
)

// NATSClient NATS JetStream 连接封装
type NATSClient struct {
	conn      *nats.Conn
	jetStream jetstream.JetStream
	cfg       config.NATSConfig
	logger    *zap.Logger
}

// NewNATSClient 创建新的NATS客户端
func NewNATSClient(cfg config.NATSConfig, logger *zap.Logger) (*NATSClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("nats")

	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.ClientID),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1), // 无限重连
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS连接断开", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS重新连接成功", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("连接NATS失败: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("创建JetStream失败: %w", err)
	}

	return &NATSClient{conn: nc, jetStream: js, cfg: cfg, logger: logger}, nil
}

// EnsureStream 创建或更新行情 Stream
func (c *NATSClient) EnsureStream(ctx context.Context) error {
	_, err := c.jetStream.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        c.cfg.Stream,
		Subjects:    []string{c.cfg.Subject},
		Description: "股票行情批次",
		Retention:   jetstream.LimitsPolicy,
		MaxMsgs:     100000,
		MaxBytes:    100 * 1024 * 1024, // 100MB
		MaxAge:      24 * time.Hour,    // 保留24小时
	})
	if err != nil {
		return fmt.Errorf("创建/更新Stream %s 失败: %w", c.cfg.Stream, err)
	}
	c.logger.Info("Stream 设置成功", zap.String("stream", c.cfg.Stream), zap.String("subject", c.cfg.Subject))
	return nil
}

// Publish 发布消息；data 为 []byte 时原样发送，否则序列化为 JSON
func (c *NATSClient) Publish(ctx context.Context, subject string, data any) error {
	var payload []byte
	switch v := data.(type) {
	case []byte:
		payload = v
	case string:
		payload = []byte(v)
	default:
		b, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("序列化数据失败: %w", err)
		}
		payload = b
	}

	ack, err := c.jetStream.Publish(ctx, subject, payload)
	if err != nil {
		return fmt.Errorf("发布消息到 %s 失败: %w", subject, err)
	}
	c.logger.Debug("消息已发布",
		zap.String("subject", subject),
		zap.String("stream", ack.Stream),
		zap.Uint64("seq", ack.Sequence),
		zap.Int("bytes", len(payload)))
	return nil
}

// NewConsumer 在行情 Stream 上创建持久化 pull 消费者
func (c *NATSClient) NewConsumer(ctx context.Context, handler MessageHandler) (*Consumer, error) {
	cons, err := c.jetStream.CreateOrUpdateConsumer(ctx, c.cfg.Stream, jetstream.ConsumerConfig{
		Durable:       c.cfg.Durable,
		Description:   "提醒评估消费者",
		FilterSubject: c.cfg.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       c.cfg.AckWait,
		MaxDeliver:    c.cfg.MaxDeliver,
		DeliverPolicy: jetstream.DeliverNewPolicy,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("创建消费者 %s 失败: %w", c.cfg.Durable, err)
	}
	return NewConsumer(&jsFetcher{cons: cons}, handler, ConsumerOptions{
		Name:         c.cfg.Durable,
		Batch:        c.cfg.FetchBatch,
		FetchTimeout: c.cfg.FetchTimeout,
	}, c.logger), nil
}

// Ping 健康检查
func (c *NATSClient) Ping(context.Context) error {
	if !c.IsConnected() {
		return fmt.Errorf("NATS 未连接")
	}
	return nil
}

// IsConnected 检查连接状态
func (c *NATSClient) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

// Close 关闭连接，先 drain 保证已取出的消息处理完
func (c *NATSClient) Close() error {
	if c.conn == nil {
		return nil
	}
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
		return fmt.Errorf("关闭NATS连接失败: %w", err)
	}
	c.logger.Info("NATS连接已关闭")
	return nil
}
