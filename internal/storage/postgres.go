package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"sampmon/internal/config"
	"sampmon/internal/logger"
)

// PostgresStorage PostgreSQL 存储实现
type PostgresStorage struct {
	pool *pgxpool.Pool
	ctx  context.Context
}

// NewPostgresStorage 创建 PostgreSQL 存储
func NewPostgresStorage(cfg *config.PostgresConfig) (*PostgresStorage, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("解析 PostgreSQL 连接配置失败: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)

	poolConfig.MaxConnLifetime = time.Hour
	if cfg.ConnMaxLifetime != "" {
		lifetime, err := time.ParseDuration(cfg.ConnMaxLifetime)
		if err != nil {
			logger.Warn("storage", "解析 conn_max_lifetime 失败，使用默认值 1h", "error", err)
		} else {
			poolConfig.MaxConnLifetime = lifetime
		}
	}

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("创建 PostgreSQL 连接池失败: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("连接 PostgreSQL 失败: %w", err)
	}

	return &PostgresStorage{pool: pool, ctx: ctx}, nil
}

// WithContext 返回绑定指定 context 的存储实例
func (s *PostgresStorage) WithContext(ctx context.Context) Storage {
	if ctx == nil {
		return s
	}
	return &PostgresStorage{pool: s.pool, ctx: ctx}
}

// Init 初始化数据库表
func (s *PostgresStorage) Init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshot_history (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		host TEXT NOT NULL,
		port INTEGER NOT NULL,
		online BOOLEAN NOT NULL,
		ping_ms INTEGER,
		player_count INTEGER,
		max_players INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		captured_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshot_history_name_ts
	ON snapshot_history(name, captured_at DESC);

	CREATE TABLE IF NOT EXISTS alert_events (
		id BIGSERIAL PRIMARY KEY,
		kind TEXT NOT NULL,
		server TEXT NOT NULL,
		host TEXT NOT NULL,
		port INTEGER NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		color INTEGER NOT NULL,
		fields JSONB NOT NULL DEFAULT '[]',
		player_count INTEGER NOT NULL DEFAULT 0,
		max_players INTEGER NOT NULL DEFAULT 0,
		load_ratio DOUBLE PRECISION NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		delivered BOOLEAN NOT NULL DEFAULT FALSE,
		occurred_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_alert_events_server_id
	ON alert_events(server, id DESC);
	`

	if _, err := s.pool.Exec(s.ctx, schema); err != nil {
		return fmt.Errorf("初始化 PostgreSQL 数据库失败: %w", err)
	}
	return nil
}

// Close 关闭数据库连接
func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}

// SaveSnapshot 追加一条快照历史
func (s *PostgresStorage) SaveSnapshot(snap *Snapshot) error {
	_, err := s.pool.Exec(s.ctx, `
		INSERT INTO snapshot_history (name, host, port, online, ping_ms, player_count, max_players, error, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, snap.Name, snap.Host, snap.Port, snap.Online, snap.PingMs, snap.PlayerCount,
		snap.MaxPlayers, snap.Error, snap.CapturedAt)
	if err != nil {
		return fmt.Errorf("保存快照失败: %w", err)
	}
	return nil
}

// GetSnapshotHistory 获取快照历史（时间升序）
func (s *PostgresStorage) GetSnapshotHistory(name string, since time.Time, limit int) ([]*Snapshot, error) {
	limit = normalizeLimit(limit, 500, 5000)

	rows, err := s.pool.Query(s.ctx, `
		SELECT name, host, port, online, ping_ms, player_count, max_players, error, captured_at
		FROM snapshot_history
		WHERE name = $1 AND captured_at >= $2
		ORDER BY captured_at DESC
		LIMIT $3
	`, name, since, limit)
	if err != nil {
		return nil, fmt.Errorf("查询快照历史失败: %w", err)
	}
	defer rows.Close()

	var snaps []*Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.Name, &snap.Host, &snap.Port, &snap.Online, &snap.PingMs,
			&snap.PlayerCount, &snap.MaxPlayers, &snap.Error, &snap.CapturedAt); err != nil {
			return nil, fmt.Errorf("扫描快照失败: %w", err)
		}
		snaps = append(snaps, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历快照失败: %w", err)
	}

	reverseSnapshots(snaps)
	return snaps, nil
}

// SaveAlert 保存告警并回填 ID
func (s *PostgresStorage) SaveAlert(event *AlertEvent) error {
	fields, err := encodeFields(event.Fields)
	if err != nil {
		return err
	}

	err = s.pool.QueryRow(s.ctx, `
		INSERT INTO alert_events (kind, server, host, port, title, description, color, fields,
			player_count, max_players, load_ratio, error, delivered, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`, string(event.Kind), event.Server, event.Host, event.Port, event.Title, event.Description,
		event.Color, fields, event.PlayerCount, event.MaxPlayers, event.Load, event.Error,
		event.Delivered, event.OccurredAt).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("保存告警失败: %w", err)
	}
	return nil
}

// GetAlerts 查询告警（ID 降序）
func (s *PostgresStorage) GetAlerts(filters *AlertFilters, limit int) ([]*AlertEvent, error) {
	limit = normalizeLimit(limit, 50, 1000)

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters != nil {
		if filters.Server != "" {
			where = append(where, "server = "+arg(filters.Server))
		}
		if filters.SinceID > 0 {
			where = append(where, "id > "+arg(filters.SinceID))
		}
		if len(filters.Kinds) > 0 {
			kinds := make([]string, len(filters.Kinds))
			for i, k := range filters.Kinds {
				kinds[i] = string(k)
			}
			where = append(where, "kind = ANY("+arg(kinds)+")")
		}
	}

	query := `
		SELECT id, kind, server, host, port, title, description, color, fields::text,
			player_count, max_players, load_ratio, error, delivered, occurred_at
		FROM alert_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC LIMIT " + arg(limit)

	rows, err := s.pool.Query(s.ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("查询告警失败: %w", err)
	}
	defer rows.Close()

	var events []*AlertEvent
	for rows.Next() {
		var (
			ev     AlertEvent
			kind   string
			fields string
		)
		if err := rows.Scan(&ev.ID, &kind, &ev.Server, &ev.Host, &ev.Port, &ev.Title, &ev.Description,
			&ev.Color, &fields, &ev.PlayerCount, &ev.MaxPlayers, &ev.Load, &ev.Error,
			&ev.Delivered, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("扫描告警失败: %w", err)
		}
		ev.Kind = AlertKind(kind)
		if ev.Fields, err = decodeFields(fields); err != nil {
			return nil, err
		}
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历告警失败: %w", err)
	}
	return events, nil
}

// PurgeOldRecords 分批删除过期数据
func (s *PostgresStorage) PurgeOldRecords(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	var total int64
	for _, stmt := range []string{
		`DELETE FROM snapshot_history WHERE id IN (SELECT id FROM snapshot_history WHERE captured_at < $1 LIMIT $2)`,
		`DELETE FROM alert_events WHERE id IN (SELECT id FROM alert_events WHERE occurred_at < $1 LIMIT $2)`,
	} {
		tag, err := s.pool.Exec(ctx, stmt, cutoff, batchSize)
		if err != nil {
			return total, fmt.Errorf("清理过期数据失败: %w", err)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}
