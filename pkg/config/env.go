package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cast"
)

// overrideFromEnv 使用环境变量覆盖配置
func overrideFromEnv(config *Config) error {
	setString(&config.App.Name, "APP_NAME")
	setString(&config.App.Env, "APP_ENV")
	setString(&config.App.WebURL, "APP_WEB_URL")

	setString(&config.Log.Level, "LOG_LEVEL")
	setString(&config.Log.Format, "LOG_FORMAT")
	setString(&config.Log.File, "LOG_FILE")

	// 数据库配置
	setString(&config.Database.Host, "DB_HOST")
	if err := setInt(&config.Database.Port, "DB_PORT"); err != nil {
		return err
	}
	setString(&config.Database.User, "DB_USER")
	setSecret(&config.Database.Password, "DB_PASSWORD")
	setString(&config.Database.DBName, "DB_NAME")
	setString(&config.Database.SSLMode, "DB_SSLMODE")
	if err := setBool(&config.Database.AutoMigrate, "DB_AUTO_MIGRATE"); err != nil {
		return err
	}

	// NATS配置
	setString(&config.NATS.URL, "NATS_URL")
	setString(&config.NATS.ClientID, "NATS_CLIENT_ID")
	setString(&config.NATS.Stream, "NATS_STREAM")
	setString(&config.NATS.Subject, "NATS_SUBJECT")
	setString(&config.NATS.Durable, "NATS_DURABLE")
	if err := setInt(&config.NATS.FetchBatch, "NATS_FETCH_BATCH"); err != nil {
		return err
	}
	if err := setDuration(&config.NATS.FetchTimeout, "NATS_FETCH_TIMEOUT"); err != nil {
		return err
	}

	// Redis
	if err := setBool(&config.Redis.Enabled, "REDIS_ENABLED"); err != nil {
		return err
	}
	setString(&config.Redis.Addr, "REDIS_ADDR")
	setSecret(&config.Redis.Password, "REDIS_PASSWORD")
	if err := setInt(&config.Redis.DB, "REDIS_DB"); err != nil {
		return err
	}

	// API配置
	setString(&config.API.Port, "API_PORT")

	// SMTP
	setString(&config.SMTP.Host, "SMTP_HOST")
	if err := setInt(&config.SMTP.Port, "SMTP_PORT"); err != nil {
		return err
	}
	setString(&config.SMTP.Username, "SMTP_USERNAME")
	setSecret(&config.SMTP.Password, "SMTP_PASSWORD")
	setString(&config.SMTP.From, "SMTP_FROM")

	// APNs
	if err := setBool(&config.APNS.Enabled, "APNS_ENABLED"); err != nil {
		return err
	}
	setString(&config.APNS.KeyFile, "APNS_KEY_FILE")
	setString(&config.APNS.KeyID, "APNS_KEY_ID")
	setString(&config.APNS.TeamID, "APNS_TEAM_ID")
	setString(&config.APNS.Topic, "APNS_TOPIC")
	if err := setBool(&config.APNS.Production, "APNS_PRODUCTION"); err != nil {
		return err
	}

	setSecret(&config.Canary.Token, "CANARY_TOKEN")
	return nil
}

func setString(dst *string, key string) {
	if env := os.Getenv(key); env != "" {
		*dst = env
	}
}

func setSecret(dst *Secret, key string) {
	if env := os.Getenv(key); env != "" {
		*dst = Secret(env)
	}
}

func setInt(dst *int, key string) error {
	env := os.Getenv(key)
	if env == "" {
		return nil
	}
	v, err := cast.ToIntE(env)
	if err != nil {
		return fmt.Errorf("环境变量 %s 不是整数: %w", key, err)
	}
	*dst = v
	return nil
}

func setBool(dst *bool, key string) error {
	env := os.Getenv(key)
	if env == "" {
		return nil
	}
	v, err := cast.ToBoolE(env)
	if err != nil {
		return fmt.Errorf("环境变量 %s 不是布尔值: %w", key, err)
	}
	*dst = v
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	env := os.Getenv(key)
	if env == "" {
		return nil
	}
	v, err := cast.ToDurationE(env)
	if err != nil {
		return fmt.Errorf("环境变量 %s 不是时长: %w", key, err)
	}
	*dst = v
	return nil
}
