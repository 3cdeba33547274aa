package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

const (
	backupPrefix    = "friday-"
	backupSuffix    = ".db"
	backupTimestamp = "20060102-150405"
)

// BackupArchive uploads database snapshots and keeps the newest Keep of them.
type BackupArchive struct {
	provider FileProvider
	keep     int
}

// NewBackupArchive stores snapshots in provider. keep <= 0 keeps every snapshot.
func NewBackupArchive(provider FileProvider, keep int) *BackupArchive {
	return &BackupArchive{provider: provider, keep: keep}
}

// BackupName returns the archive name of a snapshot taken at t.
func BackupName(t time.Time) string {
	return backupPrefix + t.UTC().Format(backupTimestamp) + backupSuffix
}

// Upload copies the snapshot file at localPath into the archive and rotates
// old snapshots. It returns the archived name.
func (a *BackupArchive) Upload(ctx context.Context, localPath string, takenAt time.Time) (string, error) {
	data, err := os.ReadFile(localPath) //nolint:gosec // G304: snapshot path produced by the caller
	if err != nil {
		return "", fmt.Errorf("read snapshot: %w", err)
	}
	name := BackupName(takenAt)
	if err := a.provider.Write(ctx, name, data); err != nil {
		return "", fmt.Errorf("upload snapshot %s: %w", name, err)
	}
	if err := a.rotate(ctx); err != nil {
		return name, err
	}
	return name, nil
}

// Snapshotter writes a consistent copy of a database to a new local file.
type Snapshotter interface {
	Backup(ctx context.Context, dest string) error
}

// Snapshot takes a snapshot of src in a temporary directory and uploads it.
func (a *BackupArchive) Snapshot(ctx context.Context, src Snapshotter, takenAt time.Time) (string, error) {
	dir, err := os.MkdirTemp("", "friday-backup-")
	if err != nil {
		return "", fmt.Errorf("create snapshot directory: %w", err)
	}
	defer os.RemoveAll(dir)

	local := filepath.Join(dir, BackupName(takenAt))
	if err := src.Backup(ctx, local); err != nil {
		return "", fmt.Errorf("snapshot database: %w", err)
	}
	return a.Upload(ctx, local, takenAt)
}

// List returns archived snapshot names, oldest first.
func (a *BackupArchive) List(ctx context.Context) ([]string, error) {
	paths, err := a.provider.List(ctx, backupPrefix)
	if err != nil {
		return nil, err
	}
	names := paths[:0]
	for _, p := range paths {
		if strings.HasSuffix(p, backupSuffix) {
			names = append(names, p)
		}
	}
	return names, nil
}

// Download writes the archived snapshot name to dest, which must not exist.
func (a *BackupArchive) Download(ctx context.Context, name, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("restore destination %s already exists", dest)
	}
	data, err := a.provider.Read(ctx, name)
	if err != nil {
		return fmt.Errorf("read snapshot %s: %w", name, err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return fmt.Errorf("create restore directory: %w", err)
	}
	if err := os.WriteFile(dest, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}

func (a *BackupArchive) rotate(ctx context.Context) error {
	if a.keep <= 0 {
		return nil
	}
	names, err := a.List(ctx)
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}
	if len(names) <= a.keep {
		return nil
	}
	var result error
	for _, name := range names[:len(names)-a.keep] {
		if err := a.provider.Delete(ctx, name); err != nil {
			result = multierror.Append(result, fmt.Errorf("delete snapshot %s: %w", name, err))
		}
	}
	return result
}
