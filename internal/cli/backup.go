package cli

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/friday_assistant/internal/memory_store"
	"github.com/lewisedginton/friday_assistant/internal/storage_manager"
	"github.com/lewisedginton/friday_assistant/pkg/logger"
)

// BackupCommand returns commands that manage database snapshots
func BackupCommand() *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Snapshot the memory database to the configured storage backend",
		Subcommands: []*cli.Command{
			{
				Name:   "create",
				Usage:  "Take a snapshot now",
				Action: backupCreateAction,
			},
			{
				Name:   "list",
				Usage:  "List archived snapshots, oldest first",
				Action: backupListAction,
			},
			{
				Name:      "restore",
				Usage:     "Copy an archived snapshot to a local file",
				ArgsUsage: "<name> <destination>",
				Action:    backupRestoreAction,
			},
		},
	}
}

func backupArchive(ctx *cli.Context) (*storage_manager.BackupArchive, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	sm, err := openStorage(ctx.Context, cfg)
	if err != nil {
		return nil, err
	}
	return storage_manager.NewBackupArchive(sm.Provider(storage_manager.NamespaceBackups), cfg.Storage.BackupKeep), nil
}

func backupCreateAction(ctx *cli.Context) error {
	log := getLogger(ctx)
	archive, err := backupArchive(ctx)
	if err != nil {
		log.Error("Failed to open backup storage", logger.ErrorField(err))
		return err
	}
	return withStore(ctx, func(store *memory_store.Store) error {
		name, err := archive.Snapshot(ctx.Context, store, time.Now())
		if err != nil {
			log.Error("Backup failed", logger.ErrorField(err))
			return err
		}
		log.Info("Backup stored", logger.StringField("backup", name))
		fmt.Fprintf(ctx.App.Writer, "Stored backup %s\n", name)
		return nil
	})
}

func backupListAction(ctx *cli.Context) error {
	archive, err := backupArchive(ctx)
	if err != nil {
		return err
	}
	names, err := archive.List(ctx.Context)
	if err != nil {
		return fmt.Errorf("list backups: %w", err)
	}
	for _, name := range names {
		fmt.Fprintln(ctx.App.Writer, name)
	}
	return nil
}

func backupRestoreAction(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return cli.Exit("usage: backup restore <name> <destination>", 1)
	}
	archive, err := backupArchive(ctx)
	if err != nil {
		return err
	}
	name, dest := ctx.Args().Get(0), ctx.Args().Get(1)
	if err := archive.Download(ctx.Context, name, dest); err != nil {
		return err
	}
	fmt.Fprintf(ctx.App.Writer, "Restored %s to %s\n", name, dest)
	return nil
}
