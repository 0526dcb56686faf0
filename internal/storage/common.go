// Package storage 提供快照历史与告警记录的持久化
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"sampmon/internal/config"
)

// New 根据配置创建存储实例（sqlite / postgres / none）
func New(cfg *config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "", "sqlite":
		return NewSQLiteStorage(cfg.SQLite.Path)
	case "postgres":
		return NewPostgresStorage(&cfg.Postgres)
	case "none":
		return NopStorage{}, nil
	default:
		return nil, fmt.Errorf("不支持的存储类型: %s", cfg.Type)
	}
}

// NopStorage 不做任何持久化（storage.type=none）
type NopStorage struct{}

func (NopStorage) Init() error { return nil }
func (NopStorage) Close() error { return nil }
func (n NopStorage) WithContext(context.Context) Storage { return n }
func (NopStorage) SaveSnapshot(*Snapshot) error { return nil }
func (NopStorage) SaveAlert(*AlertEvent) error { return nil }
func (NopStorage) GetAlerts(*AlertFilters, int) ([]*AlertEvent, error) { return nil, nil }
func (NopStorage) GetSnapshotHistory(string, time.Time, int) ([]*Snapshot, error) {
	return nil, nil
}
func (NopStorage) PurgeOldRecords(context.Context, time.Time, int) (int64, error) {
	return 0, nil
}

// encodeFields 将 embed 字段序列化为 JSON 文本
func encodeFields(fields []AlertField) (string, error) {
	if len(fields) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("序列化告警字段失败: %w", err)
	}
	return string(data), nil
}

// decodeFields 反序列化 embed 字段（空串视为无字段）
func decodeFields(raw string) ([]AlertField, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var fields []AlertField
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("解析告警字段失败: %w", err)
	}
	return fields, nil
}

// reverseSnapshots 反转快照数组（DESC 取数后翻转为时间升序）
func reverseSnapshots(snaps []*Snapshot) {
	for i, j := 0, len(snaps)-1; i < j; i, j = i+1, j-1 {
		snaps[i], snaps[j] = snaps[j], snaps[i]
	}
}

// normalizeLimit 限制查询条数范围
func normalizeLimit(limit, def, maxLimit int) int {
	if limit <= 0 {
		return def
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// intPtr 将可空整数转换为指针
func intPtr(v int64, valid bool) *int {
	if !valid {
		return nil
	}
	n := int(v)
	return &n
}

// boolToInt SQLite 没有布尔类型
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
