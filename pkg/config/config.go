package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Secret 敏感配置，打印时自动脱敏
type Secret string

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "******"
}

func (s Secret) GoString() string { return s.String() }

func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Value 返回明文
func (s Secret) Value() string { return string(s) }

type AppConfig struct {
	Name string `yaml:"name"`
	Env  string `yaml:"env"`
	// WebURL 邮件中"查看自选股"链接的前缀
	WebURL string `yaml:"web_url"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // json | console
	File       string `yaml:"file"`   // 为空时只输出到 stdout
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        Secret        `yaml:"password"`
	DBName          string        `yaml:"dbname"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// DSN postgres 连接字符串
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		d.Host, d.Port, d.User, d.Password.Value(), d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL          string        `yaml:"url"`
	ClientID     string        `yaml:"client_id"`
	Stream       string        `yaml:"stream"`
	Subject      string        `yaml:"subject"`
	Durable      string        `yaml:"durable"`
	FetchBatch   int           `yaml:"fetch_batch"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	AckWait      time.Duration `yaml:"ack_wait"`
	MaxDeliver   int           `yaml:"max_deliver"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password Secret `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type APIConfig struct {
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password Secret `yaml:"password"`
	From     string `yaml:"from"`
}

// Configured SMTP 是否可用；未配置时邮件渠道静默跳过
func (s SMTPConfig) Configured() bool {
	return s.Host != "" && s.From != ""
}

type APNSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	KeyFile    string `yaml:"key_file"` // .p8
	KeyID      string `yaml:"key_id"`
	TeamID     string `yaml:"team_id"`
	Topic      string `yaml:"topic"` // bundle id
	Production bool   `yaml:"production"`
}

type CanaryConfig struct {
	Token Secret `yaml:"token"`
}

type SchedulerConfig struct {
	UnsentAuditSpec string `yaml:"unsent_audit_spec"`
	HealthCheckSpec string `yaml:"health_check_spec"`
}

// Config 应用配置
type Config struct {
	App       AppConfig       `yaml:"app"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	NATS      NATSConfig      `yaml:"nats"`
	Redis     RedisConfig     `yaml:"redis"`
	API       APIConfig       `yaml:"api"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	APNS      APNSConfig      `yaml:"apns"`
	Canary    CanaryConfig    `yaml:"canary"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// Default 默认配置，文件与环境变量在此基础上覆盖
func Default() *Config {
	return &Config{
		App: AppConfig{Name: "alertradar", Env: "dev", WebURL: "http://localhost:3000"},
		Log: LogConfig{Level: "info", Format: "json", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 14},
		Database: DatabaseConfig{
			Host: "localhost", Port: 5432, User: "postgres", DBName: "alertradar", SSLMode: "disable",
			MaxOpenConns: 25, MaxIdleConns: 5, ConnMaxLifetime: 5 * time.Minute,
		},
		NATS: NATSConfig{
			URL: "nats://localhost:4222", ClientID: "alertradar-notifier",
			Stream: "QUOTES_STREAM", Subject: "quotes.batch", Durable: "alert-evaluator",
			FetchBatch: 10, FetchTimeout: 5 * time.Second, AckWait: 30 * time.Second, MaxDeliver: 5,
		},
		Redis:     RedisConfig{Addr: "localhost:6379", Prefix: "alertradar:claim:"},
		API:       APIConfig{Port: "8080", ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second},
		SMTP:      SMTPConfig{Port: 587},
		Scheduler: SchedulerConfig{UnsentAuditSpec: "@every 10m", HealthCheckSpec: "@every 30s"},
	}
}

// LoadConfig 从文件加载配置；先读取 .env，再用环境变量覆盖
func LoadConfig(path string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := overrideFromEnv(config); err != nil {
		return nil, err
	}
	return config, nil
}

// GetDefaultConfigPath 获取默认配置文件路径
func GetDefaultConfigPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev" // 默认开发环境
	}
	return fmt.Sprintf("configs/%s/app.yaml", env)
}
