package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"sampmon/internal/storage"
)

func intPtr(v int) *int { return &v }

func TestStoreGetPut(t *testing.T) {
	t.Parallel()

	s := NewStore()
	if _, ok := s.Get("main"); ok {
		t.Fatal("首次探测前不应存在快照")
	}

	first := &storage.Snapshot{Name: "main", Online: true, PlayerCount: intPtr(10), MaxPlayers: 100}
	s.Put(first)
	got, ok := s.Get("main")
	if !ok || got != first {
		t.Fatalf("Get() = %v, %v", got, ok)
	}

	second := &storage.Snapshot{Name: "main", Online: false, Error: "timeout"}
	s.Put(second)
	got, _ = s.Get("main")
	if got != second {
		t.Error("Put() 应整体替换快照")
	}
	if !first.Online || first.Players() != 10 {
		t.Error("旧快照不应被修改")
	}

	s.Put(nil)
	if len(s.All()) != 1 {
		t.Error("Put(nil) 应被忽略")
	}
}

func TestStoreRetain(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Put(&storage.Snapshot{Name: "a"})
	s.Put(&storage.Snapshot{Name: "b"})
	s.Retain([]string{"b", "c"})

	all := s.All()
	if _, ok := all["a"]; ok || len(all) != 1 {
		t.Errorf("All() = %v, want only b", all)
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	t.Parallel()

	s := NewStore()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				s.Put(&storage.Snapshot{Name: "main", Online: true, PlayerCount: intPtr(j), MaxPlayers: 100})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if snap, ok := s.Get("main"); ok && (!snap.Online || snap.PlayerCount == nil) {
					t.Error("读到不完整的快照")
					return
				}
				_ = s.Report()
			}
		}()
	}
	wg.Wait()
}

func TestWriteReport(t *testing.T) {
	t.Parallel()

	s := NewStore()
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Put(&storage.Snapshot{Name: "main", Host: "127.0.0.1", Port: 7777, Online: true,
		PingMs: intPtr(20), PlayerCount: intPtr(5), MaxPlayers: 50, CapturedAt: at})
	s.Put(&storage.Snapshot{Name: "dev", Host: "127.0.0.1", Port: 7778, Error: "Query timeout", CapturedAt: at})

	dir := t.TempDir()
	path := filepath.Join(dir, "status_report.json")
	if err := s.WriteReport(path); err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取报告失败: %v", err)
	}
	var report StatusReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("报告不是合法 JSON: %v", err)
	}
	if len(report.Servers) != 2 || report.Timestamp.IsZero() {
		t.Fatalf("report = %+v", report)
	}
	if main := report.Servers["main"]; main.Players() != 5 || *main.PingMs != 20 {
		t.Errorf("main = %+v", main)
	}
	if dev := report.Servers["dev"]; dev.Online || dev.Error != "Query timeout" {
		t.Errorf("dev = %+v", dev)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("应只剩报告文件, got %d 个文件", len(entries))
	}
}
