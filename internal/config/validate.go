package config

import (
	"fmt"
	"strings"

	"sampmon/internal/logger"
)

// Validate 验证配置合法性（需先调用 Normalize）
func (c *AppConfig) Validate() error {
	if len(c.Servers) == 0 {
		return fmt.Errorf("至少需要配置一个服务器")
	}

	if c.HasWebhook() {
		if err := validateURL(c.DiscordWebhook, "discord_webhook"); err != nil {
			return err
		}
	} else {
		logger.Warn("config", "未配置 discord_webhook，告警将只写入日志")
	}

	if err := c.validateServers(); err != nil {
		return err
	}

	switch c.Storage.Type {
	case "sqlite", "postgres", "none":
	default:
		return fmt.Errorf("storage.type 只支持 sqlite/postgres/none，收到: %s", c.Storage.Type)
	}

	if c.Query.MaxConcurrency < -1 {
		return fmt.Errorf("query.max_concurrency 必须 >= -1，当前值: %d", c.Query.MaxConcurrency)
	}

	return nil
}

// validateServers 校验服务器列表：名称唯一、地址与阈值合法
func (c *AppConfig) validateServers() error {
	seen := make(map[string]struct{}, len(c.Servers))
	for i, s := range c.Servers {
		if s.Name == "" {
			return fmt.Errorf("servers[%d]: name 不能为空", i)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("servers[%d]: 服务器名称重复: %s", i, s.Name)
		}
		seen[s.Name] = struct{}{}

		if s.Host == "" {
			return fmt.Errorf("服务器 %s: host 不能为空", s.Name)
		}
		if strings.ContainsAny(s.Host, " /") {
			return fmt.Errorf("服务器 %s: host 格式无效: %q", s.Name, s.Host)
		}
		if s.Port < 1 || s.Port > 65535 {
			return fmt.Errorf("服务器 %s: port 超出范围 (1-65535): %d", s.Name, s.Port)
		}
		if s.MaxPlayers < 0 {
			return fmt.Errorf("服务器 %s: max_players 不能为负数: %d", s.Name, s.MaxPlayers)
		}
		if s.HighLoadThreshold <= 0 || s.HighLoadThreshold > 1 {
			return fmt.Errorf("服务器 %s: high_load_threshold 必须在 (0, 1] 之间: %v", s.Name, s.HighLoadThreshold)
		}
	}
	return nil
}
