package api

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type clientLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientLimiter 按客户端 IP 限流（token bucket），用于手动推送接口
type ClientLimiter struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiterEntry
	rateVal  rate.Limit
	burst    int
	ttl      time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewClientLimiter 创建限流器：每个 IP 每分钟 perMinute 次，突发 burst 次
func NewClientLimiter(perMinute, burst int) *ClientLimiter {
	l := &ClientLimiter{
		limiters: make(map[string]*clientLimiterEntry),
		rateVal:  rate.Limit(float64(perMinute) / 60.0),
		burst:    burst,
		ttl:      5 * time.Minute,
		stopCh:   make(chan struct{}),
	}

	l.wg.Add(1)
	go l.cleanupWorker()
	return l
}

// Allow 检查该 IP 的请求是否允许
func (l *ClientLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.limiters[ip]
	if !ok {
		entry = &clientLimiterEntry{limiter: rate.NewLimiter(l.rateVal, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter.Allow()
}

// Count 返回当前跟踪的 IP 数量
func (l *ClientLimiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func (l *ClientLimiter) cleanupWorker() {
	defer l.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup(time.Now())
		case <-l.stopCh:
			return
		}
	}
}

// cleanup 回收长时间未使用的限流器
func (l *ClientLimiter) cleanup(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > l.ttl {
			delete(l.limiters, ip)
		}
	}
}

// Stop 停止清理 goroutine（幂等）
func (l *ClientLimiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
		l.wg.Wait()
	})
}
