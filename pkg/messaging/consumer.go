package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

// maxConsecutiveFailures 连续拉取失败多少次后标记为不健康
const maxConsecutiveFailures = 3

const retryBackoff = 5 * time.Second

// MessageHandler 返回错误时消息被 Nak，由 JetStream 重新投递
type MessageHandler func(data []byte) error

// Message jetstream.Msg 中消费者用到的部分
type Message interface {
	Data() []byte
	Ack() error
	Nak() error
}

// Fetcher 拉取一批消息；ErrNoMessages / 超时视为空批次
type Fetcher interface {
	Fetch(batch int, maxWait time.Duration) ([]Message, error)
}

type jsFetcher struct {
	cons jetstream.Consumer
}

func (f *jsFetcher) Fetch(batch int, maxWait time.Duration) ([]Message, error) {
	mb, err := f.cons.Fetch(batch, jetstream.FetchMaxWait(maxWait))
	if err != nil {
		return nil, err
	}
	var msgs []Message
	for msg := range mb.Messages() {
		msgs = append(msgs, msg)
	}
	if err := mb.Error(); err != nil && !isEmptyFetch(err) {
		return msgs, err
	}
	return msgs, nil
}

func isEmptyFetch(err error) bool {
	return errors.Is(err, jetstream.ErrNoMessages) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}

type ConsumerOptions struct {
	Name         string
	Batch        int
	FetchTimeout time.Duration
	RetryBackoff time.Duration
}

// Consumer 持续拉取行情批次并交给 handler 处理
type Consumer struct {
	fetcher Fetcher
	handler MessageHandler
	opts    ConsumerOptions
	logger  *zap.Logger

	healthy          atomic.Bool
	consecutiveFails atomic.Int32
	processed        atomic.Int64
}

func NewConsumer(fetcher Fetcher, handler MessageHandler, opts ConsumerOptions, logger *zap.Logger) *Consumer {
	if opts.Batch <= 0 {
		opts.Batch = 10
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 5 * time.Second
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = retryBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Consumer{
		fetcher: fetcher,
		handler: handler,
		opts:    opts,
		logger:  logger.With(zap.String("consumer", opts.Name)),
	}
	c.healthy.Store(true)
	return c
}

// Run 阻塞直到 ctx 取消
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("开始消费行情批次")
	for {
		if ctx.Err() != nil {
			c.logger.Info("消费者收到停止信号", zap.Int64("processed", c.processed.Load()))
			return nil
		}
		if !c.poll() {
			select {
			case <-ctx.Done():
			case <-time.After(c.opts.RetryBackoff):
			}
		}
	}
}

// poll 拉取并处理一批消息；拉取失败返回 false
func (c *Consumer) poll() bool {
	msgs, err := c.fetcher.Fetch(c.opts.Batch, c.opts.FetchTimeout)
	for _, msg := range msgs {
		c.handle(msg)
	}
	if err != nil && !isEmptyFetch(err) {
		c.recordFailure(err)
		return false
	}
	c.recordSuccess()
	return true
}

func (c *Consumer) handle(msg Message) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("处理消息时发生panic", zap.Any("panic", r))
			_ = msg.Nak()
		}
	}()

	if err := c.handler(msg.Data()); err != nil {
		c.logger.Warn("处理消息失败，等待重新投递", zap.Error(err))
		if nakErr := msg.Nak(); nakErr != nil {
			c.logger.Warn("Nak 失败", zap.Error(nakErr))
		}
		return
	}
	if err := msg.Ack(); err != nil {
		c.logger.Warn("Ack 失败", zap.Error(err))
	}
	c.processed.Add(1)
}

func (c *Consumer) recordFailure(err error) {
	fails := c.consecutiveFails.Add(1)
	c.logger.Warn("拉取消息失败", zap.Int32("consecutive", fails), zap.Error(err))
	if fails >= maxConsecutiveFailures && c.healthy.CompareAndSwap(true, false) {
		c.logger.Error("连续拉取失败，消费者标记为不健康", zap.Int32("consecutive", fails))
	}
}

func (c *Consumer) recordSuccess() {
	if c.consecutiveFails.Swap(0) > 0 && c.healthy.CompareAndSwap(false, true) {
		c.logger.Info("消费者恢复健康")
	}
}

// IsHealthy 消费者是否在正常拉取
func (c *Consumer) IsHealthy() bool {
	return c.healthy.Load()
}

// Probe 供 monitor 注册的探活函数
func (c *Consumer) Probe(context.Context) error {
	if !c.IsHealthy() {
		return fmt.Errorf("连续 %d 次拉取失败", c.consecutiveFails.Load())
	}
	return nil
}
