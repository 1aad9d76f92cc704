package config

import (
	"errors"
	"fmt"
	"time"

	"todonotify/pkg/config"
)

// ErrSMTPHostRequired is returned for production configs without smtp.host;
// without it every notification would only be logged.
var ErrSMTPHostRequired = errors.New("smtp.host is required in production")

type Config struct {
	DB       config.DBConfig       `yaml:"db"`
	MQ       config.MQConfig       `yaml:"mq"`
	Redis    config.RedisConfig    `yaml:"redis"`
	JWT      config.JWTConfig      `yaml:"jwt"`
	Server   config.ServerConfig   `yaml:"server"`
	SMTP     config.SMTPConfig     `yaml:"smtp"`
	Otel     config.OtelConfig     `yaml:"otel"`
	Log      config.LogConfig      `yaml:"log"`
	Notifier config.NotifierConfig `yaml:"notifier"`
}

// Load reads config/<CONFIG_ENV>.yaml over config/base.yaml, then applies
// environment overrides and defaults.
func Load() (*Config, error) {
	env := config.GetConfigEnv()
	configDir := config.GetEnv("CONFIG_DIR", "config")
	return LoadFrom(env, configDir)
}

func LoadFrom(env, configDir string) (*Config, error) {
	cfgMap, err := config.LoadConfig(env, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var cfg Config
	if err := config.Decode(cfgMap, &cfg); err != nil {
		return nil, err
	}

	// 环境变量覆盖（优先级最高）
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideSMTPFromEnv(&cfg.SMTP)
	config.OverrideNotifierFromEnv(&cfg.Notifier)

	cfg.applyDefaults()
	if env == "production" && cfg.SMTP.Host == "" {
		return nil, ErrSMTPHostRequired
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = ":8080"
	}
	n := &c.Notifier
	if n.Workers <= 0 {
		n.Workers = 4
	}
	if n.DeliveryTimeout <= 0 {
		n.DeliveryTimeout = 30 * time.Second
	}
	if n.LockTTL <= 0 {
		n.LockTTL = 10 * time.Minute
	}
	if n.DigestAt == "" {
		n.DigestAt = "08:00"
	}
	if n.OverdueAt == "" {
		n.OverdueAt = "09:00"
	}
	if n.DefaultLeadTimeHours <= 0 {
		n.DefaultLeadTimeHours = 24
	}
	if n.DigestListLimit <= 0 {
		n.DigestListLimit = 10
	}
}

// Location resolves notifier.timezone; empty means the server's local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Notifier.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Notifier.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid notifier.timezone %q: %w", c.Notifier.Timezone, err)
	}
	return loc, nil
}
