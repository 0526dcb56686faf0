package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sample 返回示例配置（-create-config 输出的内容）
func Sample() *AppConfig {
	return &AppConfig{
		DiscordWebhook: "https://discordapp.com/api/webhooks/YOUR_WEBHOOK_ID/YOUR_WEBHOOK_TOKEN",
		CheckInterval:  DefaultCheckInterval,
		Servers: []ServerConfig{
			{
				Name:              "Main SA-MP Server",
				Host:              "127.0.0.1",
				Port:              7777,
				MaxPlayers:        500,
				AlertOnOffline:    boolPtr(true),
				AlertOnHighLoad:   boolPtr(true),
				HighLoadThreshold: DefaultHighLoadThreshold,
			},
			{
				Name:              "Dev SA-MP Server",
				Host:              "127.0.0.1",
				Port:              7778,
				MaxPlayers:        100,
				AlertOnOffline:    boolPtr(true),
				AlertOnHighLoad:   boolPtr(true),
				HighLoadThreshold: DefaultHighLoadThreshold,
			},
		},
		Query: QueryConfig{
			Timeout:        DefaultQueryTimeout.String(),
			MaxConcurrency: 4,
		},
		Notifier: NotifierConfig{
			Timeout:            DefaultNotifyTimeout.String(),
			Footer:             DefaultFooter,
			RateLimitPerMinute: 30,
		},
		Storage: StorageConfig{
			Type:          "sqlite",
			SQLite:        SQLiteConfig{Path: DefaultSQLitePath},
			RetentionDays: DefaultRetentionDays,
		},
		API:          APIConfig{Enabled: boolPtr(true), Addr: DefaultAPIAddr},
		StatusReport: StatusReportConfig{Path: "status_report.json"},
	}
}

// MarshalSample 按文件扩展名序列化示例配置：.yaml/.yml 输出 YAML，其余输出 JSON
func MarshalSample(filename string) ([]byte, error) {
	cfg := Sample()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("序列化 YAML 失败: %w", err)
		}
		return data, nil
	default:
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("序列化 JSON 失败: %w", err)
		}
		return append(data, '\n'), nil
	}
}

// WriteSample 将示例配置写入文件（覆盖已有文件）
func WriteSample(filename string) error {
	data, err := MarshalSample(filename)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("写入示例配置失败: %w", err)
	}
	return nil
}
