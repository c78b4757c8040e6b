package ledger

import (
	"context"
	"fmt"
	"os"
	"time"
)

// Stats summarizes queue composition and the publish record count.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	ctx = ensureContext(ctx)
	stats := &Stats{ByStatus: make(map[Status]int)}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM topics GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			raw   string
			count int
		)
		if err := rows.Scan(&raw, &count); err != nil {
			return nil, fmt.Errorf("scan queue stats: %w", err)
		}
		if status, ok := ParseStatus(raw); ok {
			stats.ByStatus[status] = count
		}
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM publish_records`).Scan(&stats.Records); err != nil {
		return nil, fmt.Errorf("record stats: %w", err)
	}
	return stats, nil
}

// CheckHealth inspects the ledger database and collects problems rather than
// stopping at the first one.
func (s *Store) CheckHealth(ctx context.Context) DatabaseHealth {
	ctx = ensureContext(ctx)
	health := DatabaseHealth{Healthy: true, CheckedAt: time.Now().UTC()}
	fail := func(format string, args ...any) {
		health.Healthy = false
		health.Issues = append(health.Issues, fmt.Sprintf(format, args...))
	}

	if _, err := os.Stat(s.path); err != nil {
		fail("database file: %v", err)
		return health
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.db.PingContext(pingCtx); err != nil {
		fail("ping: %v", err)
		return health
	}

	for _, table := range []string{"topics", "publish_records", "schema_version"} {
		var count int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name = ?`, table,
		).Scan(&count)
		if err != nil {
			fail("table check %s: %v", table, err)
			continue
		}
		if count == 0 {
			fail("missing table %s", table)
		}
	}

	var integrity string
	if err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		fail("integrity check: %v", err)
	} else if integrity != "ok" {
		fail("integrity: %s", integrity)
	}

	return health
}
