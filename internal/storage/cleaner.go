package storage

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"sampmon/internal/logger"
)

const (
	cleanerStartupDelay = time.Minute
	cleanerInterval     = 24 * time.Hour
	cleanerJitter       = 0.1
	cleanerBatchSize    = 1000
	cleanerMaxBatches   = 100
)

// Cleaner 定期清理超过保留期的快照与告警记录
type Cleaner struct {
	storage       Storage
	retentionDays int

	// 可在测试中覆盖
	startupDelay time.Duration
	interval     time.Duration
	batchSize    int

	running  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCleaner 创建清理任务
func NewCleaner(storage Storage, retentionDays int) *Cleaner {
	return &Cleaner{
		storage:       storage,
		retentionDays: retentionDays,
		startupDelay:  cleanerStartupDelay,
		interval:      cleanerInterval,
		batchSize:     cleanerBatchSize,
		stopCh:        make(chan struct{}),
	}
}

// Start 启动清理任务（阻塞，应在 goroutine 中调用）
func (c *Cleaner) Start(ctx context.Context) {
	if c.retentionDays <= 0 {
		logger.Info("cleaner", "数据清理已禁用")
		return
	}

	delay := withJitter(c.startupDelay)
	logger.Info("cleaner", "清理任务将在延迟后启动",
		"delay", delay,
		"retention_days", c.retentionDays,
		"cleanup_interval", c.interval)

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return
	case <-c.stopCh:
		return
	}

	c.RunOnce(ctx)

	for {
		select {
		case <-time.After(withJitter(c.interval)):
			c.RunOnce(ctx)
		case <-ctx.Done():
			logger.Info("cleaner", "清理任务收到取消信号，正在退出")
			return
		case <-c.stopCh:
			logger.Info("cleaner", "清理任务收到停止信号，正在退出")
			return
		}
	}
}

// Stop 停止清理任务（幂等）
func (c *Cleaner) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}

// RunOnce 执行一轮清理，返回删除条数
func (c *Cleaner) RunOnce(ctx context.Context) int64 {
	if !c.running.CompareAndSwap(false, true) {
		logger.Info("cleaner", "清理任务仍在运行，跳过本轮")
		return 0
	}
	defer c.running.Store(false)

	cutoff := time.Now().UTC().AddDate(0, 0, -c.retentionDays)
	startTime := time.Now()
	var totalDeleted int64
	batchCount := 0
	backoff := 50 * time.Millisecond

	for batchCount < cleanerMaxBatches {
		if ctx.Err() != nil {
			logger.Info("cleaner", "清理任务被取消", "deleted", totalDeleted, "batches", batchCount)
			return totalDeleted
		}

		deleted, err := c.storage.PurgeOldRecords(ctx, cutoff, c.batchSize)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("cleaner", "清理任务被取消", "deleted", totalDeleted, "batches", batchCount)
				return totalDeleted
			}

			// SQLite 锁冲突时指数退避重试
			if strings.Contains(err.Error(), "database is locked") {
				logger.Warn("cleaner", "数据库锁冲突，等待重试", "backoff", backoff)
				time.Sleep(backoff)
				backoff = min(backoff*2, 5*time.Second)
				continue
			}

			logger.Error("cleaner", "清理任务失败", "error", err, "deleted", totalDeleted)
			return totalDeleted
		}

		backoff = 50 * time.Millisecond
		totalDeleted += deleted
		batchCount++

		// 两张表各删一批，都不满说明没有更多数据
		if deleted < int64(c.batchSize) {
			break
		}
	}

	if totalDeleted > 0 {
		logger.Info("cleaner", "历史数据清理完成",
			"deleted", totalDeleted,
			"batches", batchCount,
			"elapsed", time.Since(startTime),
			"cutoff", cutoff.Format(time.RFC3339))
	}
	return totalDeleted
}

func withJitter(d time.Duration) time.Duration {
	return d + time.Duration(float64(d)*cleanerJitter*(rand.Float64()*2-1))
}
