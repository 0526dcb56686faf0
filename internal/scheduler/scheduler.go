// Package scheduler 驱动周期性巡检：探测 → 判定 → 告警 → 更新状态
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"sampmon/internal/config"
	"sampmon/internal/logger"
	"sampmon/internal/storage"
)

var (
	// ErrAlreadyRunning 调度器已在运行
	ErrAlreadyRunning = errors.New("scheduler: already running")
	// ErrStopped 调度器已停止，不能再次启动
	ErrStopped = errors.New("scheduler: stopped")
)

// State 调度器生命周期状态：Idle → Running → Stopped
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Prober 探测单个服务器（*monitor.Prober 实现该接口）
type Prober interface {
	Probe(ctx context.Context, srv *config.ServerConfig) *storage.Snapshot
}

// Processor 处理新快照（*events.Service 实现该接口）
type Processor interface {
	Process(ctx context.Context, srv *config.ServerConfig, snap *storage.Snapshot) []storage.AlertEvent
}

// StatusStore 状态表的维护与导出（*state.Store 实现该接口）
type StatusStore interface {
	Retain(names []string)
	WriteReport(path string) error
}

// Scheduler 巡检调度器
// 每个周期探测全部服务器，周期之间等待 check_interval（可被 Stop/TriggerNow 打断）
type Scheduler struct {
	prober    Prober
	processor Processor
	status    StatusStore

	mu     sync.Mutex
	state  State
	cfg    *config.AppConfig
	wakeCh chan struct{} // 提前开始下一周期
	stopCh chan struct{} // Stop 信号
	done   chan struct{} // 循环退出后关闭
}

// New 创建调度器；status 为 nil 时不清理状态表也不导出状态报告
func New(prober Prober, processor Processor, status StatusStore, cfg *config.AppConfig) *Scheduler {
	return &Scheduler{
		prober:    prober,
		processor: processor,
		status:    status,
		cfg:       cfg,
		wakeCh:    make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// State 返回当前状态
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start 启动巡检循环（非阻塞）
// 只能从 Idle 启动：运行中返回 ErrAlreadyRunning，停止后返回 ErrStopped
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateRunning:
		return ErrAlreadyRunning
	case StateStopped:
		return ErrStopped
	}

	s.state = StateRunning
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)

	logger.Info("scheduler", "调度器已启动",
		"servers", len(s.cfg.Servers),
		"check_interval", s.cfg.CheckIntervalDuration)
	return nil
}

// Stop 停止调度器并等待循环退出（幂等）
// 正在执行的周期会先完成，周期间的等待会被立即打断
func (s *Scheduler) Stop() {
	s.mu.Lock()
	prev := s.state
	done := s.done
	if prev != StateStopped {
		s.state = StateStopped
		close(s.stopCh)
	}
	s.mu.Unlock()

	if done != nil {
		<-done
	}
	if prev != StateStopped {
		logger.Info("scheduler", "调度器已停止")
	}
}

// TriggerNow 立即开始下一周期（当前周期执行中时，在其结束后立即开始）
func (s *Scheduler) TriggerNow() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
		// 已有唤醒信号
	}
}

// UpdateConfig 替换配置（热更新），下一周期生效
func (s *Scheduler) UpdateConfig(cfg *config.AppConfig) {
	if cfg == nil {
		return
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	logger.Info("scheduler", "配置已更新", "servers", len(cfg.Servers))
}

func (s *Scheduler) currentConfig() *config.AppConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			s.markStopped()
			return
		default:
		}

		cfg := s.currentConfig()
		s.RunCycle(ctx, cfg)

		interval := cfg.CheckIntervalDuration
		if interval <= 0 {
			interval = config.DefaultCheckInterval * time.Second
		}
		timer := time.NewTimer(interval)
		select {
		case <-timer.C:
		case <-s.wakeCh:
			timer.Stop()
		case <-s.stopCh:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			s.markStopped()
			return
		}
	}
}

// markStopped 父 context 取消时进入 Stopped
func (s *Scheduler) markStopped() {
	s.mu.Lock()
	if s.state != StateStopped {
		s.state = StateStopped
		close(s.stopCh)
	}
	s.mu.Unlock()
	logger.Info("scheduler", "调度器收到取消信号，已退出")
}

// RunCycle 执行一个巡检周期：清理已移除的服务器，并发探测全部服务器，然后导出状态报告
func (s *Scheduler) RunCycle(ctx context.Context, cfg *config.AppConfig) {
	cycleID := uuid.NewString()[:8]
	start := time.Now()
	servers := cfg.Servers

	// 状态表只由巡检周期写入，热更新删除的服务器在此清理
	if s.status != nil {
		names := make([]string, 0, len(servers))
		for i := range servers {
			names = append(names, servers[i].Name)
		}
		s.status.Retain(names)
	}

	var g errgroup.Group
	g.SetLimit(concurrencyLimit(cfg.Query.MaxConcurrency, len(servers)))
	for i := range servers {
		srv := &servers[i]
		g.Go(func() error {
			s.checkServer(ctx, cycleID, srv)
			return nil
		})
	}
	_ = g.Wait()

	logger.Debug("scheduler", "巡检周期完成",
		"cycle_id", cycleID,
		"servers", len(servers),
		"elapsed", time.Since(start))

	if s.status != nil && cfg.StatusReport.Path != "" {
		if err := s.status.WriteReport(cfg.StatusReport.Path); err != nil {
			logger.Error("scheduler", "导出状态报告失败", "path", cfg.StatusReport.Path, "error", err)
		} else {
			logger.Debug("scheduler", "状态报告已导出", "path", cfg.StatusReport.Path)
		}
	}
}

// checkServer 探测并处理单个服务器，panic 不会影响其他服务器
func (s *Scheduler) checkServer(ctx context.Context, cycleID string, srv *config.ServerConfig) {
	snap := s.safeProbe(ctx, cycleID, srv)

	// 取消导致的查询失败不代表服务器离线，丢弃本次结果
	if ctx.Err() != nil {
		logger.Debug("scheduler", "巡检已取消，丢弃探测结果", "cycle_id", cycleID, "server", srv.Name)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("scheduler", "处理快照时发生 panic",
				"cycle_id", cycleID, "server", srv.Name, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	s.processor.Process(ctx, srv, snap)

	if snap.Online {
		logger.Info("scheduler", "ONLINE",
			"cycle_id", cycleID,
			"server", srv.Name,
			"players", snap.Players(),
			"max_players", snap.MaxPlayers,
			"ping_ms", derefInt(snap.PingMs))
	} else {
		logger.Warn("scheduler", "OFFLINE",
			"cycle_id", cycleID,
			"server", srv.Name,
			"error", snap.Error)
	}
}

func (s *Scheduler) safeProbe(ctx context.Context, cycleID string, srv *config.ServerConfig) (snap *storage.Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("scheduler", "探测时发生 panic",
				"cycle_id", cycleID, "server", srv.Name, "panic", r, "stack", string(debug.Stack()))
			snap = offlineSnapshot(srv, fmt.Sprintf("internal error: %v", r))
		}
	}()

	snap = s.prober.Probe(ctx, srv)
	if snap == nil {
		snap = offlineSnapshot(srv, "internal error: empty probe result")
	}
	return snap
}

func offlineSnapshot(srv *config.ServerConfig, errText string) *storage.Snapshot {
	return &storage.Snapshot{
		Name:       srv.Name,
		Host:       srv.Host,
		Port:       srv.Port,
		MaxPlayers: srv.MaxPlayers,
		Error:      errText,
		CapturedAt: time.Now().UTC(),
	}
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// concurrencyLimit 计算单周期并发数：-1 表示与服务器数持平，0 使用默认 4
func concurrencyLimit(configured, servers int) int {
	switch {
	case configured < 0:
		return max(servers, 1)
	case configured == 0:
		return 4
	}
	return configured
}
