// Package notifier 通过 Discord webhook 发送告警
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"sampmon/internal/config"
	"sampmon/internal/logger"
	"sampmon/internal/storage"
)

// Notifier 告警发送接口
type Notifier interface {
	Notify(ctx context.Context, event storage.AlertEvent) error
}

// New 根据配置创建发送器；未配置真实 webhook 时返回 Nop
func New(cfg *config.AppConfig) Notifier {
	if !cfg.HasWebhook() {
		logger.Warn("notifier", "未配置 Discord webhook，告警只写日志")
		return Nop{}
	}
	return NewDiscord(cfg.DiscordWebhook, &cfg.Notifier)
}

// Nop 只记录日志的发送器
type Nop struct{}

// Notify 记录告警并返回 nil
func (Nop) Notify(_ context.Context, ev storage.AlertEvent) error {
	logger.Info("notifier", "跳过告警发送（webhook 未配置）", "server", ev.Server, "title", ev.Title)
	return nil
}

// Discord webhook 客户端（可并发使用）
type Discord struct {
	webhookURL string
	footer     string
	username   string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	now        func() time.Time
}

// NewDiscord 创建 Discord webhook 客户端
func NewDiscord(webhookURL string, cfg *config.NotifierConfig) *Discord {
	timeout := cfg.TimeoutDuration
	if timeout <= 0 {
		timeout = config.DefaultNotifyTimeout
	}
	footer := cfg.Footer
	if footer == "" {
		footer = config.DefaultFooter
	}

	d := &Discord{
		webhookURL: webhookURL,
		footer:     footer,
		username:   cfg.Username,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}

	// 限流：每分钟 N 条，突发容量 N；<=0 不限流
	if cfg.RateLimitPerMinute > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RateLimitPerMinute)/60.0), cfg.RateLimitPerMinute)
	}
	return d
}

// Notify 发送一条告警
// 200/204 视为成功，其他状态码返回 ErrCodeStatus
// 等待限流配额与 HTTP 请求共用同一个超时
func (d *Discord) Notify(ctx context.Context, ev storage.AlertEvent) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	payload := WebhookPayload{
		Username: d.username,
		Embeds:   []Embed{embedFromEvent(ev, d.footer, d.now())},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return &Error{Code: ErrCodeEncode, Message: "序列化 webhook 请求失败", Err: err}
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return &Error{Code: ErrCodeTransport, Message: "等待发送配额失败", Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(data))
	if err != nil {
		return &Error{Code: ErrCodeTransport, Message: "创建请求失败", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return &Error{Code: ErrCodeTransport, Message: "请求 webhook 失败", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &Error{
			Code:       ErrCodeStatus,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("webhook 返回 HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	logger.Info("notifier", "Discord 告警已发送", "server", ev.Server, "title", ev.Title)
	return nil
}
