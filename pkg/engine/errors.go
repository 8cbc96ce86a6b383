package engine

import "errors"

var (
	// ErrDecode 行情消息无法解析，整批放弃
	ErrDecode = errors.New("decode price update")
	// ErrFetch 候选规则加载失败，整批放弃
	ErrFetch = errors.New("fetch alert rules")
	// ErrCondition 规则条件无法评估，跳过该规则
	ErrCondition = errors.New("evaluate condition")
	// ErrClaim 触发 claim 执行失败，不写日志
	ErrClaim = errors.New("claim alert trigger")
	// ErrLogPersist claim 成功但日志写入失败，不投递
	ErrLogPersist = errors.New("persist alert log")
	// ErrDelivery 投递失败，只记录
	ErrDelivery = errors.New("deliver notification")
)
