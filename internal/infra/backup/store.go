package backup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/henry9622/ProgramaTelemedicina/internal/core/domain"
	"github.com/henry9622/ProgramaTelemedicina/internal/core/port"
)

// ErrInvalidName rejects backup names that escape the backup directory.
var ErrInvalidName = errors.New("invalid backup name")

// ErrBackupNotFound is returned when the named snapshot does not exist.
var ErrBackupNotFound = errors.New("backup not found")

const snapshotExtension = ".sql.gz"

// Store manages database snapshots on a local directory. Deleting a
// snapshot is a privileged operation routed through the approval
// workflow; the store itself only touches the filesystem.
type Store struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time
}

// NewStore constructs a filesystem-backed snapshot store, creating the
// directory if missing.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if dir == "" {
		return nil, errors.New("backup directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}
	return &Store{dir: dir, logger: logger, now: time.Now}, nil
}

// List returns the snapshots on disk, newest first.
func (s *Store) List(ctx context.Context) ([]domain.BackupFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read backup directory: %w", err)
	}

	backups := make([]domain.BackupFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), snapshotExtension) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat backup %s: %w", entry.Name(), err)
		}
		backups = append(backups, domain.BackupFile{
			Name:      entry.Name(),
			SizeBytes: info.Size(),
			CreatedAt: info.ModTime().UTC(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})

	return backups, nil
}

// Exists reports whether the named snapshot is present.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	path, err := s.resolve(name)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat backup: %w", err)
	}
	return true, nil
}

// Delete removes the named snapshot.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.resolve(name)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrBackupNotFound
		}
		return fmt.Errorf("delete backup: %w", err)
	}

	s.logger.Info("backup deleted", zap.String("name", name))
	return nil
}

// Snapshot creates a new snapshot file stamped with the current time.
// The actual dump content is produced by the external pg_dump job that
// watches this directory; here an empty placeholder reserves the name.
func (s *Store) Snapshot(ctx context.Context) (domain.BackupFile, error) {
	if err := ctx.Err(); err != nil {
		return domain.BackupFile{}, err
	}

	now := s.now().UTC()
	name := fmt.Sprintf("respaldo_%s%s", now.Format("20060102_150405"), snapshotExtension)
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return domain.BackupFile{}, fmt.Errorf("create snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return domain.BackupFile{}, fmt.Errorf("close snapshot: %w", err)
	}

	s.logger.Info("backup snapshot created", zap.String("name", name))

	return domain.BackupFile{Name: name, SizeBytes: 0, CreatedAt: now}, nil
}

// resolve validates the name and returns the absolute path. Names with
// separators or traversal segments never reach the filesystem.
func (s *Store) resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", ErrInvalidName
	}
	return filepath.Join(s.dir, name), nil
}

var _ port.BackupStore = (*Store)(nil)
