package notifier

import (
	"fmt"
	"time"

	"sampmon/internal/storage"
)

// Embed Discord embed 对象
type Embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Color       int          `json:"color"`
	Timestamp   string       `json:"timestamp"`
	Footer      EmbedFooter  `json:"footer"`
	Fields      []EmbedField `json:"fields,omitempty"`
}

// EmbedFooter embed 页脚
type EmbedFooter struct {
	Text string `json:"text"`
}

// EmbedField embed 字段
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// WebhookPayload webhook 请求体
type WebhookPayload struct {
	Username string  `json:"username,omitempty"`
	Embeds   []Embed `json:"embeds"`
}

// embedFromEvent 将告警转换为 embed
// timestamp 使用发送时刻（UTC），与 Discord 客户端显示一致
func embedFromEvent(ev storage.AlertEvent, footer string, now time.Time) Embed {
	e := Embed{
		Title:       ev.Title,
		Description: ev.Description,
		Color:       ev.Color,
		Timestamp:   now.UTC().Format(time.RFC3339),
		Footer:      EmbedFooter{Text: footer},
	}
	for _, f := range ev.Fields {
		e.Fields = append(e.Fields, EmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return e
}

// StatusEmbed 生成服务器状态播报（手动推送用）
// 在线为绿色、离线为红色；字段 Status / Players / Ping（ping 未知时省略）
func StatusEmbed(snap *storage.Snapshot) storage.AlertEvent {
	status, color := "Offline", 0xFF0000
	if snap.Online {
		status, color = "Online", 0x00FF00
	}

	fields := []storage.AlertField{
		{Name: "Status", Value: status, Inline: true},
		{Name: "Players", Value: fmt.Sprintf("%d/%d", snap.Players(), snap.MaxPlayers), Inline: true},
	}
	if snap.PingMs != nil {
		fields = append(fields, storage.AlertField{Name: "Ping", Value: fmt.Sprintf("%dms", *snap.PingMs), Inline: true})
	}

	return storage.AlertEvent{
		Server:      snap.Name,
		Host:        snap.Host,
		Port:        snap.Port,
		Title:       "SA-MP Server: " + snap.Name,
		Description: "Server Status Update",
		Color:       color,
		Fields:      fields,
		PlayerCount: snap.Players(),
		MaxPlayers:  snap.MaxPlayers,
		Load:        snap.Load(),
		Error:       snap.Error,
		OccurredAt:  snap.CapturedAt,
	}
}
