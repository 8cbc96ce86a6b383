package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"AlertRadar/pkg/clock"
	"AlertRadar/pkg/config"
	"AlertRadar/pkg/model"
)

// DB 通知服务的持久化层，实现 engine.Store 以及各投递渠道需要的查询
type DB struct {
	db     *gorm.DB
	clock  clock.Clock
	logger *zap.Logger
}

// Open 连接 postgres
func Open(cfg config.DatabaseConfig, logger *zap.Logger, clk clock.Clock) (*DB, error) {
	gdb, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("获取数据库连接池失败: %w", err)
	}
	// 设置连接池参数
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// 测试连接
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("测试数据库连接失败: %w", err)
	}

	d := New(gdb, clk, logger)
	if cfg.AutoMigrate {
		if err := d.AutoMigrate(); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// New 包装已有的 gorm 连接，测试中传入 sqlite
func New(gdb *gorm.DB, clk clock.Clock, logger *zap.Logger) *DB {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DB{db: gdb, clock: clk, logger: logger.Named("database")}
}

// AutoMigrate 创建通知服务涉及的表，生产环境通常由迁移脚本负责
func (d *DB) AutoMigrate() error {
	if err := d.db.AutoMigrate(
		&model.User{},
		&model.AlertRule{},
		&model.AlertLog{},
		&model.NotificationPreferences{},
		&model.InAppNotification{},
		&model.DeviceToken{},
	); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}
	return nil
}

// Ping 健康检查
func (d *DB) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭数据库连接
func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// todayStart 当前 UTC 日的零点
func (d *DB) todayStart() time.Time {
	now := d.clock.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
