package storage

import (
	"context"
	"time"
)

// Snapshot 单个服务器某一时刻的探测快照
// 构建后只读；online=false 时 PingMs/PlayerCount 为空且 Error 非空
type Snapshot struct {
	Name        string    `json:"name"`
	Host        string    `json:"host"`
	Port        int       `json:"port"`
	Online      bool      `json:"online"`
	PingMs      *int      `json:"ping_ms,omitempty"`
	PlayerCount *int      `json:"player_count,omitempty"`
	MaxPlayers  int       `json:"max_players"`
	CapturedAt  time.Time `json:"captured_at"`
	Error       string    `json:"error,omitempty"`
}

// Players 返回在线人数（未知时为 0）
func (s *Snapshot) Players() int {
	if s == nil || s.PlayerCount == nil {
		return 0
	}
	return *s.PlayerCount
}

// Load 返回负载比例 players/max_players
// 离线、人数未知或 max_players<=0 时为 0
func (s *Snapshot) Load() float64 {
	if s == nil || !s.Online || s.MaxPlayers <= 0 {
		return 0
	}
	return float64(s.Players()) / float64(s.MaxPlayers)
}

// ===== 告警事件相关类型 =====

// AlertKind 告警类型
type AlertKind string

const (
	AlertWentOffline AlertKind = "went_offline" // 在线 → 离线
	AlertWentOnline  AlertKind = "went_online"  // 离线 → 在线
	AlertHighLoad    AlertKind = "high_load"    // 负载上穿阈值
)

// IsValid 检查告警类型是否合法
func (k AlertKind) IsValid() bool {
	switch k {
	case AlertWentOffline, AlertWentOnline, AlertHighLoad:
		return true
	}
	return false
}

// AlertField embed 字段（name/value/inline 三元组）
type AlertField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// AlertEvent 状态变更告警
type AlertEvent struct {
	// ID 存储后回填（未持久化时为 0）
	ID int64 `json:"id,omitempty"`

	Kind   AlertKind `json:"kind"`
	Server string    `json:"server"`
	Host   string    `json:"host"`
	Port   int       `json:"port"`

	Title       string       `json:"title"`
	Description string       `json:"description"`
	Color       int          `json:"color"`
	Fields      []AlertField `json:"fields,omitempty"`

	PlayerCount int     `json:"player_count"`
	MaxPlayers  int     `json:"max_players"`
	Load        float64 `json:"load"`
	Error       string  `json:"error,omitempty"`

	// OccurredAt 触发告警的快照时间
	OccurredAt time.Time `json:"occurred_at"`

	// Delivered 是否已成功投递到 webhook
	Delivered bool `json:"delivered"`
}

// AlertFilters 告警查询过滤器
type AlertFilters struct {
	Server  string      // 按服务器名过滤（可选）
	Kinds   []AlertKind // 按告警类型过滤（可选）
	SinceID int64       // 游标：仅返回 ID 大于该值的记录（可选）
}

// Storage 历史存储接口
// 只做尽力而为的追加记录，进程内最新状态由 state.Store 维护
type Storage interface {
	// Init 初始化存储（建表、建索引）
	Init() error

	// Close 关闭存储
	Close() error

	// WithContext 返回绑定指定 context 的存储实例
	// 用于支持请求级别的超时和取消，不修改原实例
	WithContext(ctx context.Context) Storage

	// SaveSnapshot 追加一条快照历史
	SaveSnapshot(snap *Snapshot) error

	// GetSnapshotHistory 获取指定服务器在 since 之后的快照（时间升序，最多 limit 条）
	GetSnapshotHistory(name string, since time.Time, limit int) ([]*Snapshot, error)

	// SaveAlert 保存告警并回填 ID
	SaveAlert(event *AlertEvent) error

	// GetAlerts 查询告警（ID 降序，最多 limit 条）
	GetAlerts(filters *AlertFilters, limit int) ([]*AlertEvent, error)

	// PurgeOldRecords 分批删除 cutoff 之前的快照与告警，返回本批删除条数
	PurgeOldRecords(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}
