package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sampmon/internal/config"
	"sampmon/internal/storage"
)

func testEvent() storage.AlertEvent {
	return storage.AlertEvent{
		Kind:        storage.AlertHighLoad,
		Server:      "Main",
		Title:       "⚠️ High Load: Main",
		Description: "Server load is above 80%",
		Color:       0xFFA500,
		Fields: []storage.AlertField{
			{Name: "Player Count", Value: "420/500", Inline: true},
			{Name: "Load", Value: "84.0%", Inline: true},
		},
	}
}

func TestNotifyPayload(t *testing.T) {
	t.Parallel()

	var got WebhookPayload
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("请求体不是合法 JSON: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscord(srv.URL, &config.NotifierConfig{Username: "monitor"})
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return fixed }

	if err := d.Notify(context.Background(), testEvent()); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	if contentType != "application/json" {
		t.Errorf("Content-Type = %q", contentType)
	}
	if got.Username != "monitor" || len(got.Embeds) != 1 {
		t.Fatalf("payload = %+v", got)
	}
	e := got.Embeds[0]
	if e.Title != "⚠️ High Load: Main" || e.Color != 0xFFA500 || e.Description != "Server load is above 80%" {
		t.Errorf("embed = %+v", e)
	}
	if e.Footer.Text != config.DefaultFooter {
		t.Errorf("Footer = %q, want %q", e.Footer.Text, config.DefaultFooter)
	}
	if e.Timestamp != "2026-03-01T12:00:00Z" {
		t.Errorf("Timestamp = %q", e.Timestamp)
	}
	if len(e.Fields) != 2 || e.Fields[0].Value != "420/500" || !e.Fields[1].Inline {
		t.Errorf("Fields = %+v", e.Fields)
	}
}

func TestNotifyStatusCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		wantCode ErrorCode
	}{
		{"200 成功", http.StatusOK, ""},
		{"204 成功", http.StatusNoContent, ""},
		{"400 失败", http.StatusBadRequest, ErrCodeStatus},
		{"429 失败", http.StatusTooManyRequests, ErrCodeStatus},
		{"500 失败", http.StatusInternalServerError, ErrCodeStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := NewDiscord(srv.URL, &config.NotifierConfig{}).Notify(context.Background(), testEvent())
			if got := CodeOf(err); got != tt.wantCode {
				t.Fatalf("CodeOf(err) = %q, want %q (err=%v)", got, tt.wantCode, err)
			}
			if tt.wantCode == ErrCodeStatus {
				var ne *Error
				if !errors.As(err, &ne) || ne.StatusCode != tt.status {
					t.Errorf("StatusCode 未记录: %v", err)
				}
			}
		})
	}
}

func TestNotifyTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	d := NewDiscord(srv.URL, &config.NotifierConfig{TimeoutDuration: 100 * time.Millisecond})

	start := time.Now()
	err := d.Notify(context.Background(), testEvent())
	if CodeOf(err) != ErrCodeTransport {
		t.Fatalf("CodeOf(err) = %q, want transport (err=%v)", CodeOf(err), err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("发送超时未生效")
	}
}

func TestNotifyUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewDiscord(url, &config.NotifierConfig{}).Notify(context.Background(), testEvent())
	if CodeOf(err) != ErrCodeTransport {
		t.Errorf("CodeOf(err) = %q, want transport", CodeOf(err))
	}
}

func TestNotifyRateLimitHonorsContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscord(srv.URL, &config.NotifierConfig{RateLimitPerMinute: 1})
	if err := d.Notify(context.Background(), testEvent()); err != nil {
		t.Fatalf("第一次发送应成功: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := d.Notify(ctx, testEvent()); CodeOf(err) != ErrCodeTransport {
		t.Errorf("配额耗尽时应返回 transport 错误, got %v", err)
	}
}

func TestNotifyRateLimitBoundedByTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscord(srv.URL, &config.NotifierConfig{TimeoutDuration: 200 * time.Millisecond, RateLimitPerMinute: 1})
	if err := d.Notify(context.Background(), testEvent()); err != nil {
		t.Fatalf("第一次发送应成功: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- d.Notify(context.Background(), testEvent()) }()

	select {
	case err := <-errCh:
		if CodeOf(err) != ErrCodeTransport {
			t.Errorf("配额耗尽时应返回 transport 错误, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("发送超时未生效：无截止时间的 context 下 Notify 仍在等待配额")
	}
}

func TestNewReturnsNopForPlaceholder(t *testing.T) {
	t.Parallel()

	for _, hook := range []string{"", config.PlaceholderWebhook} {
		cfg := &config.AppConfig{DiscordWebhook: hook}
		if _, ok := New(cfg).(Nop); !ok {
			t.Errorf("webhook %q 应返回 Nop", hook)
		}
	}

	cfg := &config.AppConfig{DiscordWebhook: "https://discord.com/api/webhooks/1/abc"}
	if _, ok := New(cfg).(*Discord); !ok {
		t.Error("真实 webhook 应返回 *Discord")
	}
	if err := (Nop{}).Notify(context.Background(), testEvent()); err != nil {
		t.Errorf("Nop.Notify() error = %v", err)
	}
}

func TestStatusEmbed(t *testing.T) {
	t.Parallel()

	ping, players := 42, 12
	on := StatusEmbed(&storage.Snapshot{Name: "Main", Online: true, PingMs: &ping, PlayerCount: &players, MaxPlayers: 100})
	if on.Title != "SA-MP Server: Main" || on.Description != "Server Status Update" || on.Color != 0x00FF00 {
		t.Errorf("在线播报 = %+v", on)
	}
	if len(on.Fields) != 3 || on.Fields[0].Value != "Online" || on.Fields[1].Value != "12/100" || on.Fields[2].Value != "42ms" {
		t.Errorf("在线字段 = %+v", on.Fields)
	}

	off := StatusEmbed(&storage.Snapshot{Name: "Main", MaxPlayers: 100, Error: "timeout"})
	if off.Color != 0xFF0000 || len(off.Fields) != 2 || off.Fields[0].Value != "Offline" || off.Fields[1].Value != "0/100" {
		t.Errorf("离线播报 = %+v", off)
	}
}
