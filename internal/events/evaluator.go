package events

import (
	"fmt"
	"net"
	"strconv"
)

// Evaluate 比较同一服务器的前后两次快照，返回应发送的告警
//
// 规则：
//   - prev 为 nil（首次观测）只建立基线，不产生告警
//   - 在线 → 离线：went_offline
//   - 离线 → 在线：went_online
//   - 新快照在线且负载从阈值以下上穿到阈值及以上：high_load（仅在上升沿触发）
//
// 纯函数：相同输入总是得到相同输出，OccurredAt 取新快照的采集时间
func Evaluate(rules Rules, prev, curr *Snapshot) []AlertEvent {
	if prev == nil || curr == nil {
		return nil
	}

	var events []AlertEvent

	switch {
	case prev.Online && !curr.Online:
		if rules.AlertOnOffline {
			events = append(events, offlineEvent(curr))
		}
	case !prev.Online && curr.Online:
		if rules.AlertOnOffline {
			events = append(events, onlineEvent(curr))
		}
	}

	if curr.Online && rules.AlertOnHighLoad {
		threshold := rules.HighLoadThreshold
		if load, prevLoad := curr.Load(), prev.Load(); load >= threshold && prevLoad < threshold {
			events = append(events, highLoadEvent(curr, threshold))
		}
	}

	return events
}

func offlineEvent(s *Snapshot) AlertEvent {
	ev := baseEvent(KindWentOffline, s)
	ev.Title = "⚠️ Server Offline: " + s.Name
	ev.Description = fmt.Sprintf("%s (%s) is now OFFLINE", s.Name, net.JoinHostPort(s.Host, strconv.Itoa(s.Port)))
	ev.Color = ColorOffline
	if s.Error != "" {
		ev.Fields = []AlertField{{Name: "Error", Value: s.Error}}
	}
	return ev
}

func onlineEvent(s *Snapshot) AlertEvent {
	ev := baseEvent(KindWentOnline, s)
	ev.Title = "✅ Server Online: " + s.Name
	ev.Description = s.Name + " is now ONLINE"
	ev.Color = ColorOnline
	return ev
}

func highLoadEvent(s *Snapshot, threshold float64) AlertEvent {
	ev := baseEvent(KindHighLoad, s)
	ev.Title = "⚠️ High Load: " + s.Name
	ev.Description = fmt.Sprintf("Server load is above %.0f%%", threshold*100)
	ev.Color = ColorHighLoad
	ev.Fields = []AlertField{
		{Name: "Player Count", Value: fmt.Sprintf("%d/%d", ev.PlayerCount, ev.MaxPlayers), Inline: true},
		{Name: "Load", Value: fmt.Sprintf("%.1f%%", ev.Load*100), Inline: true},
	}
	return ev
}

func baseEvent(kind AlertKind, s *Snapshot) AlertEvent {
	return AlertEvent{
		Kind:        kind,
		Server:      s.Name,
		Host:        s.Host,
		Port:        s.Port,
		PlayerCount: s.Players(),
		MaxPlayers:  s.MaxPlayers,
		Load:        s.Load(),
		Error:       s.Error,
		OccurredAt:  s.CapturedAt,
	}
}
