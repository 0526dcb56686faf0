package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // 纯Go实现的SQLite驱动
)

// SQLiteStorage SQLite存储实现
type SQLiteStorage struct {
	db  *sql.DB
	ctx context.Context
}

// NewSQLiteStorage 创建SQLite存储
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	// 使用WAL模式和其他参数解决并发锁问题
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite建议单个写连接
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	return &SQLiteStorage{db: db, ctx: context.Background()}, nil
}

// WithContext 返回绑定指定 context 的存储实例
func (s *SQLiteStorage) WithContext(ctx context.Context) Storage {
	if ctx == nil {
		return s
	}
	return &SQLiteStorage{db: s.db, ctx: ctx}
}

// effectiveCtx 返回有效的 context
func (s *SQLiteStorage) effectiveCtx() context.Context {
	if s.ctx != nil {
		return s.ctx
	}
	return context.Background()
}

// Init 初始化数据库表
func (s *SQLiteStorage) Init() error {
	ctx := s.effectiveCtx()
	schema := `
	CREATE TABLE IF NOT EXISTS snapshot_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		host TEXT NOT NULL,
		port INTEGER NOT NULL,
		online INTEGER NOT NULL,
		ping_ms INTEGER,
		player_count INTEGER,
		max_players INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		captured_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshot_history_name_ts
	ON snapshot_history(name, captured_at DESC);

	CREATE TABLE IF NOT EXISTS alert_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		server TEXT NOT NULL,
		host TEXT NOT NULL,
		port INTEGER NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		color INTEGER NOT NULL,
		fields TEXT NOT NULL DEFAULT '[]',
		player_count INTEGER NOT NULL DEFAULT 0,
		max_players INTEGER NOT NULL DEFAULT 0,
		load_ratio REAL NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		delivered INTEGER NOT NULL DEFAULT 0,
		occurred_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_alert_events_server_id
	ON alert_events(server, id DESC);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("初始化数据库失败: %w", err)
	}
	return nil
}

// Close 关闭数据库
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// SaveSnapshot 追加一条快照历史
func (s *SQLiteStorage) SaveSnapshot(snap *Snapshot) error {
	var ping, players sql.NullInt64
	if snap.PingMs != nil {
		ping = sql.NullInt64{Int64: int64(*snap.PingMs), Valid: true}
	}
	if snap.PlayerCount != nil {
		players = sql.NullInt64{Int64: int64(*snap.PlayerCount), Valid: true}
	}

	_, err := s.db.ExecContext(s.effectiveCtx(), `
		INSERT INTO snapshot_history (name, host, port, online, ping_ms, player_count, max_players, error, captured_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, snap.Name, snap.Host, snap.Port, boolToInt(snap.Online), ping, players,
		snap.MaxPlayers, snap.Error, snap.CapturedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("保存快照失败: %w", err)
	}
	return nil
}

// GetSnapshotHistory 获取快照历史（时间升序）
func (s *SQLiteStorage) GetSnapshotHistory(name string, since time.Time, limit int) ([]*Snapshot, error) {
	limit = normalizeLimit(limit, 500, 5000)

	rows, err := s.db.QueryContext(s.effectiveCtx(), `
		SELECT name, host, port, online, ping_ms, player_count, max_players, error, captured_at
		FROM snapshot_history
		WHERE name = ? AND captured_at >= ?
		ORDER BY captured_at DESC
		LIMIT ?
	`, name, since.UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("查询快照历史失败: %w", err)
	}
	defer rows.Close()

	var snaps []*Snapshot
	for rows.Next() {
		var (
			snap          Snapshot
			online        int
			ping, players sql.NullInt64
			capturedAt    int64
		)
		if err := rows.Scan(&snap.Name, &snap.Host, &snap.Port, &online, &ping, &players,
			&snap.MaxPlayers, &snap.Error, &capturedAt); err != nil {
			return nil, fmt.Errorf("扫描快照失败: %w", err)
		}
		snap.Online = online == 1
		snap.PingMs = intPtr(ping.Int64, ping.Valid)
		snap.PlayerCount = intPtr(players.Int64, players.Valid)
		snap.CapturedAt = time.UnixMilli(capturedAt).UTC()
		snaps = append(snaps, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历快照失败: %w", err)
	}

	reverseSnapshots(snaps)
	return snaps, nil
}

// SaveAlert 保存告警并回填 ID
func (s *SQLiteStorage) SaveAlert(event *AlertEvent) error {
	fields, err := encodeFields(event.Fields)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(s.effectiveCtx(), `
		INSERT INTO alert_events (kind, server, host, port, title, description, color, fields,
			player_count, max_players, load_ratio, error, delivered, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, string(event.Kind), event.Server, event.Host, event.Port, event.Title, event.Description,
		event.Color, fields, event.PlayerCount, event.MaxPlayers, event.Load, event.Error,
		boolToInt(event.Delivered), event.OccurredAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("保存告警失败: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("获取告警 ID 失败: %w", err)
	}
	event.ID = id
	return nil
}

// GetAlerts 查询告警（ID 降序）
func (s *SQLiteStorage) GetAlerts(filters *AlertFilters, limit int) ([]*AlertEvent, error) {
	limit = normalizeLimit(limit, 50, 1000)

	var (
		where []string
		args  []any
	)
	if filters != nil {
		if filters.Server != "" {
			where = append(where, "server = ?")
			args = append(args, filters.Server)
		}
		if filters.SinceID > 0 {
			where = append(where, "id > ?")
			args = append(args, filters.SinceID)
		}
		if len(filters.Kinds) > 0 {
			placeholders := make([]string, len(filters.Kinds))
			for i, k := range filters.Kinds {
				placeholders[i] = "?"
				args = append(args, string(k))
			}
			where = append(where, "kind IN ("+strings.Join(placeholders, ",")+")")
		}
	}

	query := `
		SELECT id, kind, server, host, port, title, description, color, fields,
			player_count, max_players, load_ratio, error, delivered, occurred_at
		FROM alert_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(s.effectiveCtx(), query, args...)
	if err != nil {
		return nil, fmt.Errorf("查询告警失败: %w", err)
	}
	defer rows.Close()

	var events []*AlertEvent
	for rows.Next() {
		var (
			ev         AlertEvent
			kind       string
			fields     string
			delivered  int
			occurredAt int64
		)
		if err := rows.Scan(&ev.ID, &kind, &ev.Server, &ev.Host, &ev.Port, &ev.Title, &ev.Description,
			&ev.Color, &fields, &ev.PlayerCount, &ev.MaxPlayers, &ev.Load, &ev.Error,
			&delivered, &occurredAt); err != nil {
			return nil, fmt.Errorf("扫描告警失败: %w", err)
		}
		ev.Kind = AlertKind(kind)
		ev.Delivered = delivered == 1
		ev.OccurredAt = time.UnixMilli(occurredAt).UTC()
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
func (s *SQLiteStorage) PurgeOldRecords(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}
	ts := cutoff.UnixMilli()

	var total int64
	for _, stmt := range []string{
		`DELETE FROM snapshot_history WHERE id IN (SELECT id FROM snapshot_history WHERE captured_at < ? LIMIT ?)`,
		`DELETE FROM alert_events WHERE id IN (SELECT id FROM alert_events WHERE occurred_at < ? LIMIT ?)`,
	} {
		res, err := s.db.ExecContext(ctx, stmt, ts, batchSize)
		if err != nil {
			return total, fmt.Errorf("清理过期数据失败: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}
