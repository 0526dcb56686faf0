package config

import (
	"fmt"
	"strings"
	"time"
)

// Normalize 填充默认值并解析 duration 字段
// 需在 Validate 之前调用
func (c *AppConfig) Normalize() error {
	c.DiscordWebhook = strings.TrimSpace(c.DiscordWebhook)

	if c.CheckInterval <= 0 {
		c.CheckInterval = DefaultCheckInterval
	}
	c.CheckIntervalDuration = time.Duration(c.CheckInterval) * time.Second

	if err := c.normalizeQuery(); err != nil {
		return err
	}
	if err := c.normalizeNotifier(); err != nil {
		return err
	}
	c.normalizeStorage()

	if strings.TrimSpace(c.API.Addr) == "" {
		c.API.Addr = DefaultAPIAddr
	}

	for i := range c.Servers {
		c.Servers[i].normalize()
	}

	return nil
}

// normalizeQuery 解析查询超时与并发度
func (c *AppConfig) normalizeQuery() error {
	c.Query.TimeoutDuration = DefaultQueryTimeout
	if v := strings.TrimSpace(c.Query.Timeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("解析 query.timeout 失败: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("query.timeout 必须大于 0，当前值: %s", v)
		}
		c.Query.TimeoutDuration = d
	}

	// 0 表示未配置；-1 在调度器中展开为服务器数量
	if c.Query.MaxConcurrency == 0 {
		c.Query.MaxConcurrency = 4
	}
	return nil
}

// normalizeNotifier 解析发送超时并填充页脚、限流默认值
func (c *AppConfig) normalizeNotifier() error {
	c.Notifier.TimeoutDuration = DefaultNotifyTimeout
	if v := strings.TrimSpace(c.Notifier.Timeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("解析 notifier.timeout 失败: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("notifier.timeout 必须大于 0，当前值: %s", v)
		}
		c.Notifier.TimeoutDuration = d
	}

	if strings.TrimSpace(c.Notifier.Footer) == "" {
		c.Notifier.Footer = DefaultFooter
	}
	if c.Notifier.RateLimitPerMinute <= 0 {
		c.Notifier.RateLimitPerMinute = 30
	}
	return nil
}

// normalizeStorage 填充存储默认值
func (c *AppConfig) normalizeStorage() {
	c.Storage.Type = strings.ToLower(strings.TrimSpace(c.Storage.Type))
	if c.Storage.Type == "" {
		c.Storage.Type = "sqlite"
	}
	if c.Storage.RetentionDays <= 0 {
		c.Storage.RetentionDays = DefaultRetentionDays
	}

	switch c.Storage.Type {
	case "sqlite":
		if strings.TrimSpace(c.Storage.SQLite.Path) == "" {
			c.Storage.SQLite.Path = DefaultSQLitePath
		}
	case "postgres":
		pg := &c.Storage.Postgres
		if pg.Host == "" {
			pg.Host = "localhost"
		}
		if pg.Port == 0 {
			pg.Port = 5432
		}
		if pg.SSLMode == "" {
			pg.SSLMode = "disable"
		}
		if pg.MaxOpenConns <= 0 {
			pg.MaxOpenConns = 10
		}
		if pg.MaxIdleConns <= 0 {
			pg.MaxIdleConns = 2
		}
		if pg.ConnMaxLifetime == "" {
			pg.ConnMaxLifetime = "1h"
		}
	}
}

// normalize 填充单个服务器的默认值
func (s *ServerConfig) normalize() {
	s.Name = strings.TrimSpace(s.Name)
	s.Host = strings.TrimSpace(s.Host)
	if s.HighLoadThreshold == 0 {
		s.HighLoadThreshold = DefaultHighLoadThreshold
	}
}
