package database

import (
	"archive/zip"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"
)

const backupStamp = "20060102_150405"

var backupName = regexp.MustCompile(`^(\d{8}_\d{6})_bessquote\.db\.zip$`)

type backupFile struct {
	path  string
	taken time.Time
}

func (d *Database) backupDir() string {
	return filepath.Join(filepath.Dir(d.path), "backups")
}

// Backup writes a compacted copy of the database, zipped, into a backups
// directory next to it.
func (d *Database) Backup(ctx context.Context) error {
	_, err := d.backup(ctx)
	return err
}

// backup returns the path of the zip file.
func (d *Database) backup(ctx context.Context) (string, error) {
	version, err := d.Version(ctx)
	if err != nil {
		return "", err
	}

	dir := d.backupDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	taken := d.now()
	snapshot := filepath.Join(dir, taken.Format(backupStamp)+"_bessquote.db")
	if _, err := d.write.ExecContext(ctx, "VACUUM INTO ?", snapshot); err != nil {
		return "", fmt.Errorf("vacuum into %s: %w", snapshot, err)
	}
	defer func() {
		if err := os.Remove(snapshot); err != nil {
			d.logger.Warn("snapshot left behind", slog.String("path", snapshot), slog.Any("error", err))
		}
	}()

	archive := snapshot + ".zip"
	comment := fmt.Sprintf("bessquote schema version %d", version)
	if err := zipSnapshot(snapshot, archive, filepath.Base(d.path), taken, comment); err != nil {
		os.Remove(archive)
		return "", err
	}

	d.logger.Info("database backed up", slog.String("path", archive), slog.Int("schemaVersion", version))
	return archive, nil
}

func zipSnapshot(snapshot, archive, entry string, taken time.Time, comment string) (err error) {
	src, err := os.Open(snapshot)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer src.Close()

	out, err := os.Create(archive)
	if err != nil {
		return fmt.Errorf("create %s: %w", archive, err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", archive, cerr)
		}
	}()

	zw := zip.NewWriter(out)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: entry, Method: zip.Deflate, Modified: taken})
	if err != nil {
		return fmt.Errorf("add %s to zip: %w", entry, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("compress snapshot: %w", err)
	}
	if err := zw.SetComment(comment); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish zip: %w", err)
	}
	return nil
}

// listBackups returns the backups found on disk, oldest first. A missing
// directory means there are none.
func (d *Database) listBackups() ([]backupFile, error) {
	dir := d.backupDir()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup directory: %w", err)
	}

	var backups []backupFile
	for _, e := range entries {
		m := backupName.FindStringSubmatch(e.Name())
		if m == nil || e.IsDir() {
			continue
		}
		taken, err := time.ParseInLocation(backupStamp, m[1], time.Local)
		if err != nil {
			d.logger.Debug("unreadable backup stamp", slog.String("file", e.Name()))
			continue
		}
		backups = append(backups, backupFile{path: filepath.Join(dir, e.Name()), taken: taken})
	}
	slices.SortFunc(backups, func(a, b backupFile) int { return cmp.Compare(a.taken.Unix(), b.taken.Unix()) })
	return backups, nil
}

// PurgeBackups deletes backups older than retentionDays. The newest backup
// is always kept, however old, and files that are not backups are never
// touched.
func (d *Database) PurgeBackups(ctx context.Context, retentionDays int) error {
	if retentionDays < 1 {
		return nil
	}
	backups, err := d.listBackups()
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		return nil
	}

	cutoff := d.now().AddDate(0, 0, -retentionDays)
	removed := 0
	for _, b := range backups[:len(backups)-1] {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !b.taken.Before(cutoff) {
			break
		}
		if err := os.Remove(b.path); err != nil {
			return fmt.Errorf("remove backup %s: %w", b.path, err)
		}
		removed++
	}

	d.logger.Info("old backups purged", slog.Int("removed", removed), slog.Int("kept", len(backups)-removed))
	return nil
}
