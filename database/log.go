package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/icodeforyou/bessquote/logging"
)

// LogQuery selects a page of stored log entries, newest first. An empty
// Module matches every module.
type LogQuery struct {
	MinLevel slog.Level
	Module   string
	Page     int
	PageSize int
}

func (d *Database) SaveLogEntry(ctx context.Context, e logging.LogEntry) error {
	_, err := d.write.ExecContext(ctx,
		"INSERT INTO log (timestamp, level, module, message, attrs) VALUES (?, ?, ?, ?, ?)",
		formatTime(e.Timestamp), e.Level, e.Module, e.Message, e.Attrs)
	if err != nil {
		return fmt.Errorf("save log entry: %w", err)
	}
	return nil
}

func (d *Database) GetLogEntries(ctx context.Context, q LogQuery) ([]logging.LogEntry, error) {
	page := max(q.Page, 1)
	size := q.PageSize
	if size < 1 {
		size = 10
	}

	where := []string{"level >= ?"}
	args := []any{int(q.MinLevel)}
	if q.Module != "" {
		where = append(where, "module = ?")
		args = append(args, q.Module)
	}
	args = append(args, size, (page-1)*size)

	rows, err := d.read.QueryContext(ctx,
		"SELECT timestamp, level, module, message, attrs FROM log WHERE "+
			strings.Join(where, " AND ")+
			" ORDER BY id DESC LIMIT ? OFFSET ?",
		args...)
	if err != nil {
		return nil, fmt.Errorf("query log: %w", err)
	}
	defer rows.Close()

	var entries []logging.LogEntry
	for rows.Next() {
		var (
			e  logging.LogEntry
			ts string
		)
		if err := rows.Scan(&ts, &e.Level, &e.Module, &e.Message, &e.Attrs); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		if e.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("log entry timestamp: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PurgeLog keeps the newest maxEntries rows.
func (d *Database) PurgeLog(ctx context.Context, maxEntries int) error {
	res, err := d.write.ExecContext(ctx,
		"DELETE FROM log WHERE id <= (SELECT id FROM log ORDER BY id DESC LIMIT 1 OFFSET ?)",
		maxEntries)
	if err != nil {
		return fmt.Errorf("purge log: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		d.logger.Debug("log purged", slog.Int64("rows", n), slog.Int("kept", maxEntries))
	}
	return nil
}
