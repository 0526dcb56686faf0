// Package state 维护每个服务器最近一次的探测快照
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sampmon/internal/storage"
)

// StatusReport 状态报告（导出到文件或通过 API 返回）
type StatusReport struct {
	Timestamp time.Time                   `json:"timestamp"`
	Servers   map[string]storage.Snapshot `json:"servers"`
}

// Store 服务器名 → 最近快照
// 快照以不可变指针整体替换，读者只会看到旧值或新值
type Store struct {
	mu    sync.RWMutex
	snaps map[string]*storage.Snapshot
}

// NewStore 创建空状态表
func NewStore() *Store {
	return &Store{snaps: make(map[string]*storage.Snapshot)}
}

// Get 返回服务器的最近快照（首次探测前不存在）
func (s *Store) Get(name string) (*storage.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[name]
	return snap, ok
}

// Put 替换服务器的最近快照
func (s *Store) Put(snap *storage.Snapshot) {
	if snap == nil {
		return
	}
	s.mu.Lock()
	s.snaps[snap.Name] = snap
	s.mu.Unlock()
}

// Retain 仅保留给定名称的服务器（每个巡检周期开始时调用）
func (s *Store) Retain(names []string) {
	keep := make(map[string]struct{}, len(names))
	for _, n := range names {
		keep[n] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for name := range s.snaps {
		if _, ok := keep[name]; !ok {
			delete(s.snaps, name)
		}
	}
}

// All 返回所有快照的副本
func (s *Store) All() map[string]storage.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]storage.Snapshot, len(s.snaps))
	for name, snap := range s.snaps {
		out[name] = *snap
	}
	return out
}

// Report 生成当前状态报告
func (s *Store) Report() StatusReport {
	return StatusReport{
		Timestamp: time.Now().UTC(),
		Servers:   s.All(),
	}
}

// WriteReport 将状态报告原子写入文件（临时文件 + rename）
func (s *Store) WriteReport(path string) error {
	data, err := json.MarshalIndent(s.Report(), "", "  ")
	if err != nil {
		return fmt.Errorf("序列化状态报告失败: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".status_report-*.tmp")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // rename 成功后为空操作

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("写入状态报告失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("写入状态报告失败: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("替换状态报告失败: %w", err)
	}
	return nil
}
