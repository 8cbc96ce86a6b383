// publisher 向行情 subject 发布测试批次，用于本地联调
//
//	go run ./cmd/publisher -quotes "AAPL:155.2:1200000:1.8,MSFT:410:800000:-0.4"
//	go run ./cmd/publisher -quotes "AAPL:150" -interval 30s
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"AlertRadar/pkg/config"
	"AlertRadar/pkg/logger"
	"AlertRadar/pkg/messaging"
	"AlertRadar/pkg/model"
)

func main() {
	quotes := flag.String("quotes", "", "SYMBOL:PRICE[:VOLUME[:CHANGE_PCT]]，多个用逗号分隔")
	source := flag.String("source", "publisher", "批次来源")
	subject := flag.String("subject", "", "发布的 subject，默认取配置 nats.subject")
	interval := flag.Duration("interval", 0, "大于0时按间隔重复发布")
	flag.Parse()

	if err := run(*quotes, *source, *subject, *interval); err != nil {
		fmt.Fprintf(os.Stderr, "发布失败: %v\n", err)
		os.Exit(1)
	}
}

func run(quotes, source, subject string, interval time.Duration) error {
	cfg, err := config.LoadConfig(config.GetDefaultConfigPath())
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	symbols, err := parseQuotes(quotes)
	if err != nil {
		return err
	}
	if subject == "" {
		subject = cfg.NATS.Subject
	}

	cfg.NATS.ClientID += "-publisher"
	natsClient, err := messaging.NewNATSClient(cfg.NATS, log)
	if err != nil {
		return err
	}
	defer natsClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := natsClient.EnsureStream(ctx); err != nil {
		return err
	}

	publish := func() error {
		msg := model.PriceUpdateMessage{
			Timestamp: time.Now().Unix(),
			Source:    source,
			Symbols:   symbols,
		}
		if err := natsClient.Publish(ctx, subject, msg); err != nil {
			return err
		}
		log.Info("行情批次已发布", zap.String("subject", subject), zap.Strings("symbols", msg.SymbolList()))
		return nil
	}

	if err := publish(); err != nil || interval <= 0 {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := publish(); err != nil {
				log.Error("发布行情批次失败", zap.Error(err))
			}
		}
	}
}

// parseQuotes 解析 SYMBOL:PRICE[:VOLUME[:CHANGE_PCT]] 列表，股票代码统一大写
func parseQuotes(raw string) (map[string]model.SymbolQuote, error) {
	out := make(map[string]model.SymbolQuote)
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) < 2 || len(parts) > 4 {
			return nil, fmt.Errorf("行情格式错误 %q，应为 SYMBOL:PRICE[:VOLUME[:CHANGE_PCT]]", item)
		}

		symbol := strings.ToUpper(strings.TrimSpace(parts[0]))
		if symbol == "" {
			return nil, fmt.Errorf("行情格式错误 %q: 股票代码为空", item)
		}
		var q model.SymbolQuote
		var err error
		if q.Price, err = cast.ToFloat64E(parts[1]); err != nil {
			return nil, fmt.Errorf("%s 价格无效: %w", symbol, err)
		}
		if len(parts) > 2 {
			if q.Volume, err = cast.ToInt64E(parts[2]); err != nil {
				return nil, fmt.Errorf("%s 成交量无效: %w", symbol, err)
			}
		}
		if len(parts) > 3 {
			if q.ChangePct, err = cast.ToFloat64E(parts[3]); err != nil {
				return nil, fmt.Errorf("%s 涨跌幅无效: %w", symbol, err)
			}
		}
		out[symbol] = q
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("至少需要一个行情，使用 -quotes 指定")
	}
	return out, nil
}
