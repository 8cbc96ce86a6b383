package database

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"AlertRadar/pkg/clock"
	"AlertRadar/pkg/model"
)

var testStart = time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)

func newTestDB(t *testing.T) (*DB, *clock.FakeClock) {
	t.Helper()

	clk := clock.NewFakeClock(testStart)
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: clk.Now,
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	d := New(gdb, clk, zaptest.NewLogger(t))
	require.NoError(t, d.AutoMigrate())
	return d, clk
}

func seedRule(t *testing.T, d *DB, rule model.AlertRule) model.AlertRule {
	t.Helper()
	if rule.ID == "" {
		rule.ID = fmt.Sprintf("rule-%d", time.Now().UnixNano())
	}
	if rule.UserID == "" {
		rule.UserID = "user-1"
	}
	if rule.AlertType == "" {
		rule.AlertType = model.AlertTypePriceAbove
	}
	if len(rule.Conditions) == 0 {
		rule.Conditions = []byte(`{"threshold":100}`)
	}
	require.NoError(t, d.db.Create(&rule).Error)
	return rule
}

func loadRule(t *testing.T, d *DB, id string) model.AlertRule {
	t.Helper()
	var rule model.AlertRule
	require.NoError(t, d.db.Where("id = ?", id).Take(&rule).Error)
	return rule
}
