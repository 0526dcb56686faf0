package events

import (
	"reflect"
	"testing"
	"time"

	"sampmon/internal/config"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func online(players, maxPlayers int) *Snapshot {
	ping := 30
	return &Snapshot{
		Name: "Main", Host: "127.0.0.1", Port: 7777,
		Online: true, PingMs: &ping, PlayerCount: &players, MaxPlayers: maxPlayers,
		CapturedAt: t0,
	}
}

func offline(errText string) *Snapshot {
	return &Snapshot{
		Name: "Main", Host: "127.0.0.1", Port: 7777,
		MaxPlayers: 500, Error: errText, CapturedAt: t0,
	}
}

func kinds(events []AlertEvent) []AlertKind {
	out := make([]AlertKind, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Kind)
	}
	return out
}

func TestEvaluateTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		prev *Snapshot
		curr *Snapshot
		want []AlertKind
	}{
		{"首次观测在线", nil, online(450, 500), []AlertKind{}},
		{"首次观测离线", nil, offline("timeout"), []AlertKind{}},
		{"在线 → 离线", online(10, 500), offline("timeout"), []AlertKind{KindWentOffline}},
		{"离线 → 在线", offline("timeout"), online(10, 500), []AlertKind{KindWentOnline}},
		{"离线 → 在线且高负载", offline("timeout"), online(450, 500), []AlertKind{KindWentOnline, KindHighLoad}},
		{"持续离线", offline("a"), offline("b"), []AlertKind{}},
		{"持续在线低负载", online(10, 500), online(20, 500), []AlertKind{}},
		{"负载上穿阈值", online(100, 500), online(420, 500), []AlertKind{KindHighLoad}},
		{"恰好等于阈值", online(100, 500), online(400, 500), []AlertKind{KindHighLoad}},
		{"持续高负载", online(420, 500), online(450, 500), []AlertKind{}},
		{"负载回落", online(450, 500), online(100, 500), []AlertKind{}},
		{"max_players 为 0", online(0, 0), online(50, 0), []AlertKind{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := kinds(Evaluate(DefaultRules(), tt.prev, tt.curr))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Evaluate() kinds = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateMessages(t *testing.T) {
	t.Parallel()

	t.Run("离线", func(t *testing.T) {
		events := Evaluate(DefaultRules(), online(10, 500), offline("Query timeout: 127.0.0.1:7777"))
		ev := events[0]
		if ev.Title != "⚠️ Server Offline: Main" {
			t.Errorf("Title = %q", ev.Title)
		}
		if ev.Description != "Main (127.0.0.1:7777) is now OFFLINE" {
			t.Errorf("Description = %q", ev.Description)
		}
		if ev.Color != ColorOffline || ev.Error == "" {
			t.Errorf("event = %+v", ev)
		}
		if len(ev.Fields) != 1 || ev.Fields[0].Value != "Query timeout: 127.0.0.1:7777" {
			t.Errorf("Fields = %+v", ev.Fields)
		}
	})

	t.Run("上线", func(t *testing.T) {
		ev := Evaluate(DefaultRules(), offline("x"), online(10, 500))[0]
		if ev.Title != "✅ Server Online: Main" || ev.Description != "Main is now ONLINE" || ev.Color != ColorOnline {
			t.Errorf("event = %+v", ev)
		}
	})

	t.Run("高负载", func(t *testing.T) {
		ev := Evaluate(DefaultRules(), online(100, 500), online(420, 500))[0]
		if ev.Title != "⚠️ High Load: Main" || ev.Color != ColorHighLoad {
			t.Errorf("event = %+v", ev)
		}
		if ev.Description != "Server load is above 80%" {
			t.Errorf("Description = %q", ev.Description)
		}
		want := []AlertField{
			{Name: "Player Count", Value: "420/500", Inline: true},
			{Name: "Load", Value: "84.0%", Inline: true},
		}
		if !reflect.DeepEqual(ev.Fields, want) {
			t.Errorf("Fields = %+v, want %+v", ev.Fields, want)
		}
		if ev.PlayerCount != 420 || ev.MaxPlayers != 500 || ev.Load != 0.84 {
			t.Errorf("event = %+v", ev)
		}
		if !ev.OccurredAt.Equal(t0) {
			t.Errorf("OccurredAt = %v, want %v", ev.OccurredAt, t0)
		}
	})
}

func TestEvaluateIsDeterministic(t *testing.T) {
	t.Parallel()

	prev, curr := online(100, 500), online(420, 500)
	first := Evaluate(DefaultRules(), prev, curr)
	second := Evaluate(DefaultRules(), prev, curr)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("相同输入结果不同:\n%+v\n%+v", first, second)
	}
}

func TestEvaluateRules(t *testing.T) {
	t.Parallel()

	off, on := false, true

	t.Run("关闭离线告警", func(t *testing.T) {
		rules := RulesFor(&config.ServerConfig{AlertOnOffline: &off})
		if got := Evaluate(rules, online(10, 500), offline("x")); len(got) != 0 {
			t.Errorf("got %v", kinds(got))
		}
		if got := Evaluate(rules, offline("x"), online(10, 500)); len(got) != 0 {
			t.Errorf("got %v", kinds(got))
		}
	})

	t.Run("关闭高负载告警", func(t *testing.T) {
		rules := RulesFor(&config.ServerConfig{AlertOnHighLoad: &off, AlertOnOffline: &on})
		if got := Evaluate(rules, online(10, 500), online(499, 500)); len(got) != 0 {
			t.Errorf("got %v", kinds(got))
		}
	})

	t.Run("自定义阈值", func(t *testing.T) {
		rules := RulesFor(&config.ServerConfig{HighLoadThreshold: 0.5})
		got := Evaluate(rules, online(10, 100), online(50, 100))
		if !reflect.DeepEqual(kinds(got), []AlertKind{KindHighLoad}) {
			t.Fatalf("got %v", kinds(got))
		}
		if got[0].Description != "Server load is above 50%" {
			t.Errorf("Description = %q", got[0].Description)
		}
	})

	t.Run("nil 配置使用默认规则", func(t *testing.T) {
		if RulesFor(nil) != DefaultRules() {
			t.Error("RulesFor(nil) != DefaultRules()")
		}
	})
}

// 配置显式 max_players: 0 时，任意人数都不触发高负载
func TestEvaluateZeroMaxPlayersFromConfig(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse([]byte(`{"servers":[{"name":"Z","host":"127.0.0.1","port":7777,"max_players":0}]}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	srv := &cfg.Servers[0]
	if srv.MaxPlayers != 0 {
		t.Fatalf("MaxPlayers = %d, want 0", srv.MaxPlayers)
	}

	prev, curr := online(10, srv.MaxPlayers), online(90, srv.MaxPlayers)
	if curr.Load() != 0 {
		t.Errorf("Load() = %v, want 0", curr.Load())
	}
	if got := Evaluate(RulesFor(srv), prev, curr); len(got) != 0 {
		t.Errorf("got %v, want 无事件", kinds(got))
	}
}

// 场景：100/500 → 420/500 → 离线 → 420/500
func TestEvaluateSequence(t *testing.T) {
	t.Parallel()

	seq := []*Snapshot{online(100, 500), online(420, 500), offline("Query timeout"), online(420, 500)}
	want := [][]AlertKind{
		{},
		{KindHighLoad},
		{KindWentOffline},
		{KindWentOnline, KindHighLoad},
	}

	var prev *Snapshot
	for i, curr := range seq {
		if got := kinds(Evaluate(DefaultRules(), prev, curr)); !reflect.DeepEqual(got, want[i]) {
			t.Errorf("step %d: got %v, want %v", i, got, want[i])
		}
		prev = curr
	}
}
