package cache

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"AlertRadar/pkg/engine"
	"AlertRadar/pkg/model"
)

const defaultTimeout = 200 * time.Millisecond

// Client ClaimStore 用到的 redis 命令，*redis.Client 满足该接口
type Client interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// ClaimStore 在数据库 claim 前查一次 redis 标记，只用来提前拒绝。
// 标记只在数据库授予 claim 之后写入，TTL 等于频率窗口；
// 没有标记时由数据库的条件 UPDATE 决定结果。
// once 规则不写标记：claim 成功后规则已停用，不会再被取出。
// redis 不可用时退化为直接访问数据库。
type ClaimStore struct {
	engine.Store
	client  Client
	prefix  string
	timeout time.Duration
	logger  *zap.Logger
}

func NewClaimStore(store engine.Store, client Client, prefix string, logger *zap.Logger) *ClaimStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClaimStore{
		Store:   store,
		client:  client,
		prefix:  prefix,
		timeout: defaultTimeout,
		logger:  logger.Named("claim_cache"),
	}
}

// key 带上频率，修改频率后旧窗口的标记不再生效
func (s *ClaimStore) key(alertID string, frequency model.Frequency) string {
	return s.prefix + alertID + ":" + string(frequency)
}

// ClaimAlertTrigger 实现 engine.Store
func (s *ClaimStore) ClaimAlertTrigger(alertID string, frequency model.Frequency) (bool, error) {
	ttl, ok := frequency.Window()
	if !ok {
		return s.Store.ClaimAlertTrigger(alertID, frequency)
	}

	key := s.key(alertID, frequency)
	if s.marked(key) {
		return false, nil
	}

	won, err := s.Store.ClaimAlertTrigger(alertID, frequency)
	if err != nil || !won {
		return won, err
	}
	s.mark(key, ttl)
	return true, nil
}

// marked redis 出错时视为没有标记
func (s *ClaimStore) marked(key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		s.logger.Warn("查询 redis 标记失败，直接访问数据库", zap.String("key", key), zap.Error(err))
		return false
	}
	return n > 0
}

func (s *ClaimStore) mark(key string, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.client.Set(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Err(); err != nil {
		s.logger.Warn("写入 redis 标记失败", zap.String("key", key), zap.Error(err))
	}
}
