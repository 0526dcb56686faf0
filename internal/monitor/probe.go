package monitor

import (
	"context"
	"time"

	"sampmon/internal/config"
	"sampmon/internal/logger"
	"sampmon/internal/query"
	"sampmon/internal/storage"
)

// Querier 单次 UDP 查询（*query.Client 实现该接口）
type Querier interface {
	Query(ctx context.Context, host string, port int, kind query.Kind, timeout time.Duration) (*query.Response, error)
}

// Prober 探测器：对单个服务器依次执行 ping → players → serverinfo
type Prober struct {
	querier Querier
	timeout time.Duration
}

// NewProber 创建探测器，timeout 为单次查询超时
func NewProber(q Querier, timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = config.DefaultQueryTimeout
	}
	return &Prober{querier: q, timeout: timeout}
}

// probeSteps 查询顺序，任一步失败即判定离线
var probeSteps = []query.Kind{query.KindPing, query.KindPlayers, query.KindInfo}

// Probe 探测一个服务器并返回快照（从不返回 nil）
func (p *Prober) Probe(ctx context.Context, srv *config.ServerConfig) *storage.Snapshot {
	snap := &storage.Snapshot{
		Name:       srv.Name,
		Host:       srv.Host,
		Port:       srv.Port,
		MaxPlayers: srv.MaxPlayers,
	}

	var ping, players int
	for _, kind := range probeSteps {
		resp, err := p.querier.Query(ctx, srv.Host, srv.Port, kind, p.timeout)
		if err != nil {
			logger.Debug("probe", "查询失败",
				"server", srv.Name,
				"kind", kind,
				"code", query.CodeOf(err),
				"error", err)
			snap.Online = false
			snap.Error = err.Error()
			snap.CapturedAt = time.Now().UTC()
			return snap
		}

		switch kind {
		case query.KindPing:
			ping = resp.PingMillis()
		case query.KindPlayers:
			players = resp.PlayerCount()
		}
	}

	snap.Online = true
	snap.PingMs = &ping
	snap.PlayerCount = &players
	snap.CapturedAt = time.Now().UTC()
	return snap
}
