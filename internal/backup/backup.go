// Package backup writes consistent snapshots of the live database, keeps a
// rolling window of them on disk and bundles a month of snapshots into one
// archive.
package backup

import (
	"archive/zip"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

const (
	// FilePrefix starts every file the package manages.
	FilePrefix = "inventory_backup_"

	// DailyMarker holds the date of the last scheduled snapshot.
	DailyMarker = ".last_backup_date"
	// ArchiveMarker holds the year-month of the last monthly archive.
	ArchiveMarker = ".last_monthly_archive_ym"

	DefaultKeepDays = 60
	MaxListLimit    = 50
)

var datedFile = regexp.MustCompile(`^` + FilePrefix + `(\d{4}-\d{2}-\d{2})\.(db|zip)$`)

// Manager owns the backup directory.
type Manager struct {
	db       *sql.DB
	dir      string
	keepDays int
}

// New creates a Manager. keepDays <= 0 means DefaultKeepDays.
func New(database *sql.DB, dir string, keepDays int) *Manager {
	if keepDays <= 0 {
		keepDays = DefaultKeepDays
	}
	return &Manager{db: database, dir: dir, keepDays: keepDays}
}

// Dir returns the backup directory.
func (m *Manager) Dir() string { return m.dir }

// Result describes one daily snapshot.
type Result struct {
	DBPath  string
	DBSize  int64
	ZipPath string
	ZipSize int64
	Removed []string
}

// SnapshotName is the snapshot file name for a date (YYYY-MM-DD).
func SnapshotName(date string) string { return FilePrefix + date + ".db" }

// ArchiveName is the monthly archive file name for a year-month.
func ArchiveName(ym string) string { return FilePrefix + ym + ".zip" }

// Daily snapshots the database for date, zips the snapshot and prunes files
// older than the retention window relative to today.
func (m *Manager) Daily(ctx context.Context, date string, today time.Time) (*Result, error) {
	dbPath, err := m.Snapshot(ctx, date)
	if err != nil {
		return nil, err
	}

	zipPath := strings.TrimSuffix(dbPath, ".db") + ".zip"
	if err := Zip(zipPath, dbPath); err != nil {
		return nil, err
	}

	res := &Result{DBPath: dbPath, ZipPath: zipPath}
	if res.DBSize, err = fileSize(dbPath); err != nil {
		return nil, err
	}
	if res.ZipSize, err = fileSize(zipPath); err != nil {
		return nil, err
	}

	res.Removed, err = m.Cleanup(today)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Snapshot writes an online copy of the database with VACUUM INTO. An
// existing snapshot for the same date is replaced.
func (m *Manager) Snapshot(ctx context.Context, date string) (string, error) {
	if err := os.MkdirAll(m.dir, 0o750); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}

	target := filepath.Join(m.dir, SnapshotName(date))
	tmp := target + ".tmp"
	_ = os.Remove(tmp)

	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, tmp); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("moving snapshot into place: %w", err)
	}
	return target, nil
}

// Cleanup removes dated snapshots and zips older than keepDays before
// today's date. Files whose names carry no date are left alone.
func (m *Manager) Cleanup(today time.Time) ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	cutoff := day.AddDate(0, 0, -m.keepDays)

	var removed []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		match := datedFile.FindStringSubmatch(e.Name())
		if match == nil {
			continue
		}
		d, err := time.Parse("2006-01-02", match[1])
		if err != nil {
			continue
		}
		if !d.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(m.dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("removing %s: %w", e.Name(), err)
		}
		removed = append(removed, e.Name())
	}
	return removed, nil
}

// FileInfo describes one file in the backup directory.
type FileInfo struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// List returns managed files newest first. limit is clamped to 1..50.
func (m *Manager) List(limit int) ([]FileInfo, error) {
	limit = max(1, min(limit, MaxListLimit))

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), FilePrefix) || strings.HasSuffix(e.Name(), ".tmp") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].Name > files[j].Name
		}
		return files[i].ModTime.After(files[j].ModTime)
	})
	if len(files) > limit {
		files = files[:limit]
	}
	return files, nil
}

// Archive bundles every snapshot of a year-month into one zip. It returns
// an empty path and zero count when there is nothing to bundle.
func (m *Manager) Archive(ym string) (string, int, error) {
	pattern := filepath.Join(m.dir, FilePrefix+ym+"-*.db")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", 0, fmt.Errorf("listing snapshots for %s: %w", ym, err)
	}
	sort.Strings(matches)
	if len(matches) == 0 {
		return "", 0, nil
	}

	zipPath := filepath.Join(m.dir, ArchiveName(ym))
	if err := Zip(zipPath, matches...); err != nil {
		return "", 0, err
	}
	return zipPath, len(matches), nil
}

// Zip writes files into a deflated archive at zipPath, flat, by base name.
func Zip(zipPath string, files ...string) (err error) {
	out, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", zipPath, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", zipPath, cerr)
		}
		if err != nil {
			_ = os.Remove(zipPath)
		}
	}()

	zw := zip.NewWriter(out)
	for _, f := range files {
		if err := addFile(zw, f); err != nil {
			_ = zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finishing %s: %w", zipPath, err)
	}
	return nil
}

func addFile(zw *zip.Writer, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("zip header for %s: %w", path, err)
	}
	hdr.Name = filepath.Base(path)
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("adding %s: %w", path, err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("compressing %s: %w", path, err)
	}
	return nil
}

// ReadMarker returns a marker file's trimmed content, or "" when it is
// missing or unreadable.
func (m *Manager) ReadMarker(name string) string {
	b, err := os.ReadFile(filepath.Join(m.dir, name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// WriteMarker replaces a marker file's content.
func (m *Manager) WriteMarker(name, value string) error {
	if err := os.MkdirAll(m.dir, 0o750); err != nil {
		return fmt.Errorf("creating backup directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.dir, name), []byte(value), 0o640); err != nil {
		return fmt.Errorf("writing marker %s: %w", name, err)
	}
	return nil
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	return info.Size(), nil
}
