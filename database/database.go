package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	sqlite "modernc.org/sqlite"
)

type Database struct {
	logger *slog.Logger
	read   *sql.DB
	write  *sql.DB
	path   string
	now    func() time.Time
}

// Fixed width, so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000Z"

const initSQL = `
	PRAGMA journal_mode = WAL;
	PRAGMA synchronous = NORMAL;
	PRAGMA temp_store = MEMORY;
	PRAGMA busy_timeout = 5000;
	PRAGMA automatic_index = true;
	PRAGMA foreign_keys = ON;
	PRAGMA analysis_limit = 1000;
	PRAGMA trusted_schema = OFF;
`

// The hook is process wide, register it once.
var registerHook sync.Once

// New opens the database at path with one writer and a pool of readers,
// then applies pending migrations.
func New(ctx context.Context, path string) (*Database, error) {
	registerHook.Do(func() {
		sqlite.RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, _ string) error {
			_, err := conn.ExecContext(context.Background(), initSQL, nil)
			return err
		})
	})

	read, err := openPool(path, maxReaders)
	if err != nil {
		return nil, fmt.Errorf("open %s for reading: %w", path, err)
	}
	write, err := openPool(path, 1)
	if err != nil {
		read.Close()
		return nil, fmt.Errorf("open %s for writing: %w", path, err)
	}

	d := &Database{
		logger: slog.Default().With(slog.String("module", "database")),
		read:   read,
		write:  write,
		path:   path,
		now:    time.Now,
	}
	if err := d.migrate(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return d, nil
}

const maxReaders = 10

func openPool(path string, conns int) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(conns)
	db.SetMaxIdleConns(conns)
	db.SetConnMaxIdleTime(time.Minute)
	return db, nil
}

func (d *Database) SetLogger(logger *slog.Logger) {
	d.logger = logger
}

func (d *Database) Close() {
	d.read.Close()
	d.write.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// purgeBefore deletes rows of table whose column holds a time older than
// retentionDays. Zero or fewer days keeps everything.
func (d *Database) purgeBefore(ctx context.Context, table, column string, retentionDays int) error {
	if retentionDays < 1 {
		return nil
	}
	cutoff := d.now().AddDate(0, 0, -retentionDays)
	res, err := d.write.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE %s < ?", table, column),
		formatTime(cutoff))
	if err != nil {
		return fmt.Errorf("purge %s: %w", table, err)
	}
	if n, err := res.RowsAffected(); err == nil {
		d.logger.Debug("purged", slog.String("table", table), slog.Int64("rows", n), slog.Time("cutoff", cutoff))
	}
	return nil
}
