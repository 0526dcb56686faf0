package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"sampmon/internal/config"
)

func newTestSQLite(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error = %v", err)
	}
	if err := s.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ptr(v int) *int { return &v }

func TestSQLiteSnapshotHistory(t *testing.T) {
	s := newTestSQLite(t)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	snaps := []*Snapshot{
		{Name: "main", Host: "127.0.0.1", Port: 7777, Online: true, PingMs: ptr(42), PlayerCount: ptr(100), MaxPlayers: 500, CapturedAt: base},
		{Name: "main", Host: "127.0.0.1", Port: 7777, Online: false, MaxPlayers: 500, CapturedAt: base.Add(time.Minute), Error: "timeout"},
		{Name: "other", Host: "10.0.0.1", Port: 7778, Online: true, PingMs: ptr(5), PlayerCount: ptr(1), MaxPlayers: 10, CapturedAt: base},
	}
	for _, snap := range snaps {
		if err := s.SaveSnapshot(snap); err != nil {
			t.Fatalf("SaveSnapshot() error = %v", err)
		}
	}

	got, err := s.GetSnapshotHistory("main", base.Add(-time.Hour), 0)
	if err != nil {
		t.Fatalf("GetSnapshotHistory() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}

	if !got[0].CapturedAt.Equal(base) || !got[1].CapturedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("历史记录应按时间升序: %v, %v", got[0].CapturedAt, got[1].CapturedAt)
	}
	if got[0].PingMs == nil || *got[0].PingMs != 42 || got[0].Players() != 100 {
		t.Errorf("在线快照字段错误: %+v", got[0])
	}
	if got[1].Online || got[1].PingMs != nil || got[1].PlayerCount != nil || got[1].Error != "timeout" {
		t.Errorf("离线快照字段错误: %+v", got[1])
	}

	got, err = s.GetSnapshotHistory("main", base.Add(30*time.Second), 0)
	if err != nil {
		t.Fatalf("GetSnapshotHistory() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("since 过滤后 len = %d, want 1", len(got))
	}
}

func TestSQLiteAlerts(t *testing.T) {
	s := newTestSQLite(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	events := []*AlertEvent{
		{Kind: AlertWentOffline, Server: "main", Host: "127.0.0.1", Port: 7777, Title: "down", Color: 0xFF0000, Error: "timeout", OccurredAt: now},
		{Kind: AlertHighLoad, Server: "main", Host: "127.0.0.1", Port: 7777, Title: "load", Color: 0xFFA500,
			Fields:      []AlertField{{Name: "Player Count", Value: "420/500", Inline: true}},
			PlayerCount: 420, MaxPlayers: 500, Load: 0.84, Delivered: true, OccurredAt: now.Add(time.Minute)},
		{Kind: AlertWentOnline, Server: "other", Host: "10.0.0.1", Port: 7778, Title: "up", Color: 0x00FF00, OccurredAt: now},
	}
	for _, ev := range events {
		if err := s.SaveAlert(ev); err != nil {
			t.Fatalf("SaveAlert() error = %v", err)
		}
		if ev.ID == 0 {
			t.Fatal("SaveAlert() 未回填 ID")
		}
	}

	tests := []struct {
		name    string
		filters *AlertFilters
		wantIDs []int64
	}{
		{"全部", nil, []int64{events[2].ID, events[1].ID, events[0].ID}},
		{"按服务器", &AlertFilters{Server: "main"}, []int64{events[1].ID, events[0].ID}},
		{"按类型", &AlertFilters{Kinds: []AlertKind{AlertHighLoad, AlertWentOnline}}, []int64{events[2].ID, events[1].ID}},
		{"游标", &AlertFilters{SinceID: events[0].ID}, []int64{events[2].ID, events[1].ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.GetAlerts(tt.filters, 10)
			if err != nil {
				t.Fatalf("GetAlerts() error = %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got[i].ID != id {
					t.Errorf("got[%d].ID = %d, want %d", i, got[i].ID, id)
				}
			}
		})
	}

	got, err := s.GetAlerts(&AlertFilters{Kinds: []AlertKind{AlertHighLoad}}, 1)
	if err != nil {
		t.Fatalf("GetAlerts() error = %v", err)
	}
	load := got[0]
	if !load.Delivered || load.Load != 0.84 || load.PlayerCount != 420 {
		t.Errorf("告警字段往返错误: %+v", load)
	}
	if len(load.Fields) != 1 || load.Fields[0].Value != "420/500" || !load.Fields[0].Inline {
		t.Errorf("Fields = %+v", load.Fields)
	}
	if !load.OccurredAt.Equal(now.Add(time.Minute)) {
		t.Errorf("OccurredAt = %v", load.OccurredAt)
	}
}

func TestSQLitePurgeOldRecords(t *testing.T) {
	s := newTestSQLite(t)
	old := time.Now().UTC().AddDate(0, 0, -40)
	fresh := time.Now().UTC()

	for i := 0; i < 5; i++ {
		_ = s.SaveSnapshot(&Snapshot{Name: "main", Host: "h", Port: 1, CapturedAt: old, Error: "x"})
	}
	_ = s.SaveSnapshot(&Snapshot{Name: "main", Host: "h", Port: 1, Online: true, CapturedAt: fresh})
	_ = s.SaveAlert(&AlertEvent{Kind: AlertWentOffline, Server: "main", Host: "h", Port: 1, OccurredAt: old})
	_ = s.SaveAlert(&AlertEvent{Kind: AlertWentOnline, Server: "main", Host: "h", Port: 1, OccurredAt: fresh})

	c := NewCleaner(s, 30)
	c.batchSize = 2
	if deleted := c.RunOnce(context.Background()); deleted != 6 {
		t.Errorf("RunOnce() deleted = %d, want 6", deleted)
	}

	snaps, _ := s.GetSnapshotHistory("main", time.Time{}, 0)
	if len(snaps) != 1 || !snaps[0].Online {
		t.Errorf("剩余快照错误: %+v", snaps)
	}
	alerts, _ := s.GetAlerts(nil, 0)
	if len(alerts) != 1 || alerts[0].Kind != AlertWentOnline {
		t.Errorf("剩余告警错误: %+v", alerts)
	}
}

func TestNewStorageByType(t *testing.T) {
	s, err := New(&config.StorageConfig{Type: "none"})
	if err != nil {
		t.Fatalf("New(none) error = %v", err)
	}
	if _, ok := s.(NopStorage); !ok {
		t.Errorf("New(none) = %T, want NopStorage", s)
	}

	if _, err := New(&config.StorageConfig{Type: "mongo"}); err == nil {
		t.Error("期望不支持的存储类型报错")
	}
}
