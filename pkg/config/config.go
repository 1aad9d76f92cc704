package config

import (
	"os"
	"strconv"
	"time"
)

// DBConfig 数据库配置
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
	// 慢查询阈值（毫秒），0 使用默认 100ms
	SlowQueryMs int `yaml:"slow_query_ms"`
}

// MQConfig 消息队列配置，URL 为空时不发布事件
type MQConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig Redis配置，Addr 为空时使用进程内锁
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port string `yaml:"port"`
}

// SMTPConfig 邮件发送配置，Host 为空时只渲染并记录日志（dry-run）
type SMTPConfig struct {
	Host      string  `yaml:"host"`
	Port      int     `yaml:"port"`
	Username  string  `yaml:"username"`
	Password  string  `yaml:"password"`
	From      string  `yaml:"from"`
	RateLimit float64 `yaml:"rate_limit"` // 每秒最多发送封数
	Burst     int     `yaml:"burst"`
}

// OtelConfig OpenTelemetry 配置
type OtelConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `yaml:"level"`
}

// NotifierConfig 通知调度配置
type NotifierConfig struct {
	Timezone             string        `yaml:"timezone"`
	Workers              int           `yaml:"workers"`
	DeliveryTimeout      time.Duration `yaml:"delivery_timeout"`
	LockTTL              time.Duration `yaml:"lock_ttl"`
	DueSoonMinute        int           `yaml:"due_soon_minute"`
	DigestAt             string        `yaml:"digest_at"`
	OverdueAt            string        `yaml:"overdue_at"`
	DefaultLeadTimeHours int           `yaml:"default_lead_time_hours"`
	DigestListLimit      int           `yaml:"digest_list_limit"`
}

// OverrideDBFromEnv 从环境变量覆盖数据库配置
func OverrideDBFromEnv(cfg *DBConfig) {
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.Name = name
	}
}

// OverrideMQFromEnv 从环境变量覆盖MQ配置
func OverrideMQFromEnv(cfg *MQConfig) {
	if url := os.Getenv("MQ_URL"); url != "" {
		cfg.URL = url
	}
}

// OverrideRedisFromEnv 从环境变量覆盖Redis配置
func OverrideRedisFromEnv(cfg *RedisConfig) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Password = password
	}
}

// OverrideJWTFromEnv 从环境变量覆盖JWT配置
func OverrideJWTFromEnv(cfg *JWTConfig) {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Secret = secret
	}
}

// OverrideServerFromEnv 从环境变量覆盖服务器配置
func OverrideServerFromEnv(cfg *ServerConfig) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}
}

// OverrideSMTPFromEnv 从环境变量覆盖SMTP配置
func OverrideSMTPFromEnv(cfg *SMTPConfig) {
	if host := os.Getenv("SMTP_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("SMTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if user := os.Getenv("SMTP_USER"); user != "" {
		cfg.Username = user
	}
	if pass := os.Getenv("SMTP_PASS"); pass != "" {
		cfg.Password = pass
	}
	if from := os.Getenv("SMTP_FROM"); from != "" {
		cfg.From = from
	}
}

// OverrideNotifierFromEnv 从环境变量覆盖调度时区
func OverrideNotifierFromEnv(cfg *NotifierConfig) {
	if tz := os.Getenv("NOTIFIER_TIMEZONE"); tz != "" {
		cfg.Timezone = tz
	}
}
