package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// 默认值
const (
	DefaultCheckInterval     = 60 // 秒
	DefaultMaxPlayers        = 100
	DefaultHighLoadThreshold = 0.8
	DefaultQueryTimeout      = 5 * time.Second
	DefaultNotifyTimeout     = 10 * time.Second
	DefaultFooter            = "SA-MP Server Monitor"
	DefaultSQLitePath        = "sampmon.db"
	DefaultAPIAddr           = ":8080"
	DefaultRetentionDays     = 30

	// PlaceholderWebhook 默认配置中的占位 webhook，视为未配置
	PlaceholderWebhook = "YOUR_WEBHOOK_URL_HERE"
)

// AppConfig 应用配置
// 同时带 yaml/json 标签：YAML 是 JSON 的超集，旧版 monitor_config.json 可直接加载
type AppConfig struct {
	// Discord webhook 地址（为空或占位符时不发送告警）
	DiscordWebhook string `yaml:"discord_webhook" json:"discord_webhook"`

	// 巡检间隔（秒，默认 60）
	CheckInterval int `yaml:"check_interval" json:"check_interval"`

	// 解析后的巡检间隔（内部使用，不序列化）
	CheckIntervalDuration time.Duration `yaml:"-" json:"-"`

	// 被监测的服务器列表
	Servers []ServerConfig `yaml:"servers" json:"servers"`

	// UDP 查询配置
	Query QueryConfig `yaml:"query" json:"query"`

	// 告警发送配置
	Notifier NotifierConfig `yaml:"notifier" json:"notifier"`

	// 历史存储配置
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// 状态 HTTP API 配置
	API APIConfig `yaml:"api" json:"api"`

	// 状态报告导出配置
	StatusReport StatusReportConfig `yaml:"status_report" json:"status_report"`

	// 是否监听配置文件变更并热更新（默认 false）
	WatchConfig bool `yaml:"watch_config" json:"watch_config"`
}

// ServerConfig 单个服务器的监测配置（加载后只读）
type ServerConfig struct {
	Name       string `yaml:"name" json:"name"`
	Host       string `yaml:"host" json:"host"`
	Port       int    `yaml:"port" json:"port"`
	MaxPlayers int    `yaml:"max_players" json:"max_players"`

	// 告警开关（nil 表示默认开启）
	AlertOnOffline  *bool `yaml:"alert_on_offline,omitempty" json:"alert_on_offline,omitempty"`
	AlertOnHighLoad *bool `yaml:"alert_on_high_load,omitempty" json:"alert_on_high_load,omitempty"`

	// 高负载阈值（0-1，默认 0.8）
	HighLoadThreshold float64 `yaml:"high_load_threshold" json:"high_load_threshold"`
}

// UnmarshalYAML 仅在缺少 max_players 时取默认值，显式的 0 保持为 0（负载恒为 0）
func (s *ServerConfig) UnmarshalYAML(value *yaml.Node) error {
	type rawServerConfig ServerConfig
	raw := rawServerConfig{MaxPlayers: DefaultMaxPlayers}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*s = ServerConfig(raw)
	return nil
}

// Address 返回 host:port
func (s *ServerConfig) Address() string {
	return joinHostPort(s.Host, s.Port)
}

// ShouldAlertOnOffline 是否发送上线/离线告警
func (s *ServerConfig) ShouldAlertOnOffline() bool {
	return s.AlertOnOffline == nil || *s.AlertOnOffline
}

// ShouldAlertOnHighLoad 是否发送高负载告警
func (s *ServerConfig) ShouldAlertOnHighLoad() bool {
	return s.AlertOnHighLoad == nil || *s.AlertOnHighLoad
}

// QueryConfig UDP 查询配置
type QueryConfig struct {
	// 单次查询超时（Go duration 格式，默认 "5s"）
	Timeout string `yaml:"timeout" json:"timeout"`

	// 解析后的超时时间（内部使用，不序列化）
	TimeoutDuration time.Duration `yaml:"-" json:"-"`

	// 单个周期内并发探测的服务器数（默认 4；-1 表示与服务器数持平）
	MaxConcurrency int `yaml:"max_concurrency" json:"max_concurrency"`
}

// NotifierConfig 告警发送配置
type NotifierConfig struct {
	// 单次发送超时（Go duration 格式，默认 "10s"）
	Timeout string `yaml:"timeout" json:"timeout"`

	// 解析后的超时时间（内部使用，不序列化）
	TimeoutDuration time.Duration `yaml:"-" json:"-"`

	// embed 页脚文字
	Footer string `yaml:"footer" json:"footer"`

	// 覆盖 webhook 默认用户名（可选）
	Username string `yaml:"username" json:"username"`

	// 每分钟最多发送条数（默认 30，Discord webhook 限流约为 30/min）
	RateLimitPerMinute int `yaml:"rate_limit_per_minute" json:"rate_limit_per_minute"`
}

// StorageConfig 历史存储配置
type StorageConfig struct {
	// sqlite（默认）、postgres 或 none
	Type     string         `yaml:"type" json:"type"`
	SQLite   SQLiteConfig   `yaml:"sqlite" json:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres" json:"postgres"`

	// 历史数据保留天数（默认 30）
	RetentionDays int `yaml:"retention_days" json:"retention_days"`
}

// SQLiteConfig SQLite 配置
type SQLiteConfig struct {
	Path string `yaml:"path" json:"path"`
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	Host            string `yaml:"host" json:"host"`
	Port            int    `yaml:"port" json:"port"`
	User            string `yaml:"user" json:"user"`
	Password        string `yaml:"password" json:"password"`
	Database        string `yaml:"database" json:"database"`
	SSLMode         string `yaml:"sslmode" json:"sslmode"`
	MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

// APIConfig HTTP API 配置
type APIConfig struct {
	// nil 表示默认开启
	Enabled *bool  `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Addr    string `yaml:"addr" json:"addr"`
}

// IsEnabled 返回 API 是否启用
func (c *APIConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// StatusReportConfig 状态报告导出配置
type StatusReportConfig struct {
	// 每个周期结束后写入的 JSON 文件路径（为空则不写）
	Path string `yaml:"path" json:"path"`
}

// HasWebhook 返回是否配置了真实的 webhook
func (c *AppConfig) HasWebhook() bool {
	return isRealWebhook(c.DiscordWebhook)
}

// FindServer 按名称查找服务器配置
func (c *AppConfig) FindServer(name string) *ServerConfig {
	for i := range c.Servers {
		if c.Servers[i].Name == name {
			return &c.Servers[i]
		}
	}
	return nil
}

// DefaultConfig 返回内置默认配置（单服务器）
// 配置文件缺失或无效时使用
func DefaultConfig() *AppConfig {
	cfg := &AppConfig{
		DiscordWebhook: PlaceholderWebhook,
		CheckInterval:  DefaultCheckInterval,
		Servers: []ServerConfig{
			{
				Name:              "Main Server",
				Host:              "127.0.0.1",
				Port:              7777,
				MaxPlayers:        500,
				AlertOnOffline:    boolPtr(true),
				AlertOnHighLoad:   boolPtr(true),
				HighLoadThreshold: DefaultHighLoadThreshold,
			},
		},
	}
	// 默认配置必定合法，忽略错误
	_ = cfg.Normalize()
	return cfg
}

func boolPtr(v bool) *bool {
	return &v
}
