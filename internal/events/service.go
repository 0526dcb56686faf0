package events

import (
	"context"
	"sync"

	"sampmon/internal/config"
	"sampmon/internal/logger"
	"sampmon/internal/storage"
)

// StateStore 最近快照表（*state.Store 实现该接口）
type StateStore interface {
	Get(name string) (*Snapshot, bool)
	Put(snap *Snapshot)
}

// Notifier 告警发送器（*notifier.Discord 实现该接口）
type Notifier interface {
	Notify(ctx context.Context, event AlertEvent) error
}

// Service 事件服务
// 协调状态表、判定逻辑、告警发送与历史存储
type Service struct {
	store    StateStore
	notifier Notifier
	storage  storage.Storage
	locks    sync.Map // server name -> *sync.Mutex，防止同一服务器并发处理时重复告警
}

// NewService 创建事件服务；history 为 nil 时不记录历史
func NewService(store StateStore, notifier Notifier, history storage.Storage) *Service {
	if history == nil {
		history = storage.NopStorage{}
	}
	return &Service{
		store:    store,
		notifier: notifier,
		storage:  history,
	}
}

func (s *Service) lockFor(name string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(name, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Process 处理一次新快照：判定变更 → 发送告警 → 记录历史 → 更新状态表
//
// 发送与存储失败只记录日志，不影响状态表更新；返回本次产生的告警
func (s *Service) Process(ctx context.Context, srv *config.ServerConfig, snap *Snapshot) []AlertEvent {
	if snap == nil {
		return nil
	}

	// 同一服务器串行化：两个 goroutine 读到同一个旧快照会重复告警
	mu := s.lockFor(snap.Name)
	mu.Lock()
	defer mu.Unlock()

	prev, _ := s.store.Get(snap.Name)
	events := Evaluate(RulesFor(srv), prev, snap)
	history := s.storage.WithContext(ctx)

	for i := range events {
		ev := &events[i]
		logTransition(ev)

		if err := s.notifier.Notify(ctx, *ev); err != nil {
			logger.Error("events", "发送告警失败",
				"server", ev.Server, "kind", ev.Kind, "error", err)
		} else {
			ev.Delivered = true
		}

		if err := history.SaveAlert(ev); err != nil {
			logger.Warn("events", "保存告警记录失败",
				"server", ev.Server, "kind", ev.Kind, "error", err)
		}
	}

	if err := history.SaveSnapshot(snap); err != nil {
		logger.Warn("events", "保存快照历史失败", "server", snap.Name, "error", err)
	}

	s.store.Put(snap)
	return events
}

func logTransition(ev *AlertEvent) {
	switch ev.Kind {
	case KindWentOffline:
		logger.Warn("events", "服务器离线", "server", ev.Server, "error", ev.Error)
	case KindWentOnline:
		logger.Info("events", "服务器恢复在线", "server", ev.Server)
	case KindHighLoad:
		logger.Warn("events", "服务器高负载",
			"server", ev.Server,
			"players", ev.PlayerCount,
			"max_players", ev.MaxPlayers,
			"load", ev.Load)
	}
}
