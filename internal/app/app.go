package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/afero"

	"coursesync/internal/config"
	"coursesync/internal/database"
	"coursesync/internal/encryption"
	"coursesync/internal/fetch"
	localfs "coursesync/internal/fs"
	"coursesync/internal/mirror"
	"coursesync/internal/model"
	"coursesync/internal/progress"
	"coursesync/internal/vault"
)

// Operations passed to NewCourseSyncApp.
const (
	OpSync      = "Sync"
	OpCheck     = "Check"
	OpStatus    = "Status"
	OpHistory   = "History"
	OpSnapshot  = "Snapshot"
	OpRestore   = "Restore"
	OpVaultInit = "VaultInit"
)

// ErrKeysMissing is returned when a vault is configured with encryption
// but no key pair has been generated yet.
var ErrKeysMissing = errors.New("encryption keys missing: run 'coursesync vault init'")

// Options tunes the process-level behavior of the app.
type Options struct {
	// Verbose enables debug logging.
	Verbose bool

	// Progress receives one line per finished transfer. Nil disables it.
	Progress io.Writer
}

// CourseSyncApp is the application layer between the CLI and SyncService.
// It constructs all dependencies from config and owns their lifecycle.
type CourseSyncApp struct {
	cfg       *config.Config
	db        *database.SQLiteDatabase
	vault     mirror.Vault
	encryptor mirror.Encryptor
	registry  *progress.Registry
	service   *mirror.SyncService
	logger    *slog.Logger
	logFile   *os.File
}

// NewCourseSyncApp creates a fully wired app from cfg. operation names the
// CLI command and prefixes the log operation ID. The caller must call Close.
func NewCourseSyncApp(ctx context.Context, cfg *config.Config, operation string, opts Options) (*CourseSyncApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	opID := operation + "-" + time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID, level)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	a := &CourseSyncApp{cfg: cfg, logger: logger, logFile: logFile}
	log := &slogAdapter{l: logger}

	osFs := afero.NewOsFs()
	ignore, err := localfs.LoadIgnoreMatcher(osFs, cfg.MirrorDir, cfg.Filesystem.Ignore)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("loading ignore patterns: %w", err)
	}

	a.registry = progress.NewRegistry(newProgressHandlers(opts.Progress))
	fetcher := fetch.NewHTTPFetcher(cfg.Network, a.registry, mirror.UUIDGenerator{}, log)
	source, err := fetch.NewSourceFromConfig(cfg.Source, osFs, fetcher, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating source: %w", err)
	}

	a.db, err = database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating database: %w", err)
	}
	if err := a.db.CheckMigrations(); err != nil {
		a.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	if len(cfg.Vaults) > 0 {
		a.vault, err = vault.NewVaultFromConfig(ctx, cfg.Vaults[0])
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("creating vault: %w", err)
		}
		a.encryptor, err = encryption.NewEncryptorFromConfig(osFs, cfg.Encryption)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("creating encryptor: %w", err)
		}
		if a.encryptor != nil && !a.encryptor.IsConfigured() && operation != OpVaultInit {
			a.Close()
			return nil, ErrKeysMissing
		}
	}

	downloader := mirror.NewDownloader(osFs, cfg.MirrorDir, fetcher, ignore, a.registry, log)
	a.service = mirror.NewSyncService(source, a.db, a.vault, a.encryptor, downloader, log,
		mirror.RealClock{}, mirror.UUIDGenerator{}, cfg.Network.MaxConcurrentSubjects)

	logger.Debug("app ready", "operation", operation, "mirror", cfg.MirrorDir, "ignore_patterns", ignore.Len())
	return a, nil
}

// Config returns the configuration the app was built from.
func (a *CourseSyncApp) Config() *config.Config {
	return a.cfg
}

// subjects falls back to the configured subscriptions.
func (a *CourseSyncApp) subjects(ids []string) []string {
	if len(ids) > 0 {
		return ids
	}
	return a.cfg.Subscriptions
}

// Sync mirrors the configured course.
func (a *CourseSyncApp) Sync(ctx context.Context, subjectIDs []string, onlyChanges bool) (*mirror.SyncReport, error) {
	return a.service.Sync(ctx, a.cfg.Course, mirror.SyncOptions{
		SubjectIDs:  a.subjects(subjectIDs),
		OnlyChanges: onlyChanges,
	})
}

// Check reports remote changes since the last sync without downloading.
func (a *CourseSyncApp) Check(ctx context.Context, subjectIDs []string) ([]*mirror.SubjectReport, error) {
	return a.service.Check(ctx, a.cfg.Course, a.subjects(subjectIDs))
}

// Status lists the files a sync would download.
func (a *CourseSyncApp) Status(ctx context.Context, subjectIDs []string) ([]*mirror.SubjectPending, error) {
	return a.service.Status(ctx, a.cfg.Course, a.subjects(subjectIDs))
}

// History returns the most recent sync runs.
func (a *CourseSyncApp) History(limit int) ([]*model.SyncRun, error) {
	return a.service.History(limit)
}

// Snapshots lists the stored versions of a subject.
func (a *CourseSyncApp) Snapshots(subjectID string) ([]*model.SnapshotRecord, error) {
	return a.service.Snapshots(subjectID)
}

// LoadSnapshot returns a stored snapshot tree; version 0 is the latest.
func (a *CourseSyncApp) LoadSnapshot(subjectID string, version int64) (*model.Subject, *model.SnapshotRecord, error) {
	return a.service.LoadSnapshot(subjectID, version)
}

// RestoreSnapshot imports an archived snapshot from the vault, unlocking
// the private key with passphrase when archives are encrypted.
func (a *CourseSyncApp) RestoreSnapshot(subjectID string, version int64, passphrase string) (*model.SnapshotRecord, error) {
	var dc mirror.DecryptionContext
	if a.encryptor != nil {
		var err error
		dc, err = a.encryptor.Unlock(passphrase)
		if err != nil {
			return nil, fmt.Errorf("unlocking private key: %w", err)
		}
	}
	return a.service.RestoreSnapshot(subjectID, version, dc)
}

// NeedsPassphrase reports whether restoring requires the vault passphrase.
func (a *CourseSyncApp) NeedsPassphrase() bool {
	return a.encryptor != nil
}

// InitVault generates the encryption keys, if encryption is enabled, and
// checks that the vault is reachable.
func (a *CourseSyncApp) InitVault(passphrase string) error {
	if a.vault == nil {
		return mirror.ErrNoVault
	}
	if a.encryptor != nil {
		if err := a.encryptor.Setup(passphrase); err != nil {
			return fmt.Errorf("setting up encryption: %w", err)
		}
	}
	if err := a.vault.ValidateSetup(); err != nil {
		return fmt.Errorf("validating vault: %w", err)
	}
	a.logger.Info("vault initialized", "encrypted", a.encryptor != nil)
	return nil
}

// Close releases the database and the log file. It is safe to call twice.
func (a *CourseSyncApp) Close() error {
	var firstErr error
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
		a.db = nil
	}
	if a.logFile != nil {
		a.logFile.Close()
		a.logFile = nil
	}
	return firstErr
}
