// Package events 根据前后两次快照判定状态变更并生成告警
package events

import (
	"sampmon/internal/config"
	"sampmon/internal/storage"
)

// 复用 storage 定义，保持一致性
type (
	Snapshot   = storage.Snapshot
	AlertEvent = storage.AlertEvent
	AlertKind  = storage.AlertKind
	AlertField = storage.AlertField
)

const (
	KindWentOffline = storage.AlertWentOffline
	KindWentOnline  = storage.AlertWentOnline
	KindHighLoad    = storage.AlertHighLoad
)

// 告警颜色
const (
	ColorOffline  = 0xFF0000
	ColorOnline   = 0x00FF00
	ColorHighLoad = 0xFFA500
)

// Rules 单个服务器的告警规则
type Rules struct {
	// HighLoadThreshold 高负载阈值（0-1）
	HighLoadThreshold float64

	// AlertOnOffline 控制上线/离线告警
	AlertOnOffline bool

	// AlertOnHighLoad 控制高负载告警
	AlertOnHighLoad bool
}

// DefaultRules 返回默认规则（阈值 0.8，全部开启）
func DefaultRules() Rules {
	return Rules{
		HighLoadThreshold: config.DefaultHighLoadThreshold,
		AlertOnOffline:    true,
		AlertOnHighLoad:   true,
	}
}

// RulesFor 从服务器配置构造规则
func RulesFor(srv *config.ServerConfig) Rules {
	rules := DefaultRules()
	if srv == nil {
		return rules
	}
	if srv.HighLoadThreshold > 0 {
		rules.HighLoadThreshold = srv.HighLoadThreshold
	}
	rules.AlertOnOffline = srv.ShouldAlertOnOffline()
	rules.AlertOnHighLoad = srv.ShouldAlertOnHighLoad()
	return rules
}
