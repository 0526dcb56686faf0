package config

import (
	"os"
	"strconv"
	"strings"

	"sampmon/internal/logger"
)

// ApplyEnvOverrides 应用环境变量覆盖
// 格式：SAMPMON_DISCORD_WEBHOOK, SAMPMON_STORAGE_TYPE, SAMPMON_POSTGRES_HOST 等
func (c *AppConfig) ApplyEnvOverrides() {
	if v := os.Getenv("SAMPMON_DISCORD_WEBHOOK"); v != "" {
		c.DiscordWebhook = v
	}
	if v := os.Getenv("SAMPMON_CHECK_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			c.CheckInterval = n
		} else {
			logger.Warn("config", "忽略无效的 SAMPMON_CHECK_INTERVAL", "value", v)
		}
	}
	if v := os.Getenv("SAMPMON_API_ADDR"); v != "" {
		c.API.Addr = v
	}

	// 存储配置环境变量覆盖
	if v := os.Getenv("SAMPMON_STORAGE_TYPE"); v != "" {
		c.Storage.Type = v
	}
	if v := os.Getenv("SAMPMON_SQLITE_PATH"); v != "" {
		c.Storage.SQLite.Path = v
	}

	// PostgreSQL 配置环境变量覆盖
	if v := os.Getenv("SAMPMON_POSTGRES_HOST"); v != "" {
		c.Storage.Postgres.Host = v
	}
	if v := os.Getenv("SAMPMON_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			c.Storage.Postgres.Port = port
		}
	}
	if v := os.Getenv("SAMPMON_POSTGRES_USER"); v != "" {
		c.Storage.Postgres.User = v
	}
	if v := os.Getenv("SAMPMON_POSTGRES_PASSWORD"); v != "" {
		c.Storage.Postgres.Password = v
	}
	if v := os.Getenv("SAMPMON_POSTGRES_DATABASE"); v != "" {
		c.Storage.Postgres.Database = v
	}
	if v := os.Getenv("SAMPMON_POSTGRES_SSLMODE"); v != "" {
		c.Storage.Postgres.SSLMode = v
	}
}

// Clone 深拷贝配置（用于热更新回滚）
func (c *AppConfig) Clone() *AppConfig {
	clone := *c
	clone.API.Enabled = cloneBoolPtr(c.API.Enabled)
	clone.Servers = make([]ServerConfig, len(c.Servers))
	copy(clone.Servers, c.Servers)

	for i := range clone.Servers {
		clone.Servers[i].AlertOnOffline = cloneBoolPtr(c.Servers[i].AlertOnOffline)
		clone.Servers[i].AlertOnHighLoad = cloneBoolPtr(c.Servers[i].AlertOnHighLoad)
	}
	return &clone
}

// cloneBoolPtr 深拷贝 *bool 指针
func cloneBoolPtr(p *bool) *bool {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
