package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"fidx/internal/config"
	"fidx/internal/database"
	"fidx/internal/fidx"
	"fidx/internal/fs"
	"fidx/internal/logging"
	"fidx/internal/model"
	"fidx/internal/rules"
	"fidx/internal/search"
	"fidx/internal/telemetry"
	"fidx/internal/watcher"
)

// App is the application layer between the CLI and IndexService.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string paths, and manages the DB lifecycle on Close.
type App struct {
	cfg      *config.Config
	db       *database.SQLiteDatabase
	fsmgr    *fs.OSFilesystemManager
	service  *fidx.IndexService
	logger   logging.Logger
	queue    *watcher.Queue
	registry *prometheus.Registry
	op       *Operation
	logFile  *os.File
}

// NewApp creates a fully wired App from the given config.
// operation identifies the CLI command being run (e.g. "Scan", "Watch").
// The caller must call Close when done.
func NewApp(cfg *config.Config, operation string) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	level, _ := logging.ParseLevel(cfg.LogLevel)
	debounce, _ := cfg.Queue.Debounce()
	ruleSet, _ := cfg.BuildRules()

	db, err := database.NewDatabaseFromConfig(cfg.Database, fidx.RealClock{})
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	engine := rules.NewEngine(ruleSet)

	opID := uuid.New().String()[:8]
	slogger, logFile, err := logging.New(cfg.LogDir, opID, level)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := logging.Adapt(slogger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(registry)

	queue := watcher.NewQueue(watcher.QueueConfig{
		MaxCapacity:   cfg.Queue.MaxCapacity,
		DebounceDelay: debounce,
		BatchSize:     cfg.Queue.BatchSize,
	}, watcher.WithDropHook(metrics.EventDropped))
	if err := telemetry.RegisterQueueDepth(registry, queue); err != nil {
		logFile.Close()
		db.Close()
		return nil, fmt.Errorf("registering queue gauge: %w", err)
	}

	fsmgr := fs.NewOSFilesystemManager(cfg.Scan.Ignore)
	svc, err := fidx.NewIndexService(db, fsmgr, engine, logger, fidx.RealClock{},
		fidx.WithTagCacheSize(cfg.Tagging.TagCacheSize),
		fidx.WithMetrics(metrics),
		fidx.WithEventSink(queue),
	)
	if err != nil {
		logFile.Close()
		db.Close()
		return nil, fmt.Errorf("creating index service: %w", err)
	}

	return &App{
		cfg:      cfg,
		db:       db,
		fsmgr:    fsmgr,
		service:  svc,
		logger:   logger,
		queue:    queue,
		registry: registry,
		op:       NewOperation(operation),
		logFile:  logFile,
	}, nil
}

// persistOperation saves the operation to the history, giving it an auto-increment ID.
// This should only be called for commands that change the index.
func (a *App) persistOperation(params ...string) error {
	if a.op.Persisted() {
		return nil
	}
	a.op.Describe(params...)
	dbOp, err := a.db.CreateOperation(a.op.Name, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

// ScanDefaults returns the scan settings from the [scan] config section.
func (a *App) ScanDefaults() fidx.ScanConfig {
	return fidx.ScanConfig{
		Recursive:       a.cfg.Scan.Recursive,
		Extensions:      a.cfg.Scan.Extensions,
		ExcludePatterns: a.cfg.Scan.ExcludePatterns,
		MaxDepth:        a.cfg.Scan.MaxDepth,
	}
}

// Scan resolves rawPath and indexes the directory below it.
func (a *App) Scan(rawPath string, cfg fidx.ScanConfig) (*fidx.ScanResult, error) {
	if err := a.persistOperation(rawPath); err != nil {
		return nil, err
	}
	p, err := a.fsmgr.Resolve(rawPath)
	if err != nil {
		return nil, a.op.Record(fmt.Errorf("resolving path: %w", err))
	}
	result, err := a.service.Scan(p, cfg)
	return result, a.op.Record(err)
}

// ScanWatched scans every enabled watched directory.
func (a *App) ScanWatched() ([]*fidx.ScanResult, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	results, err := a.service.ScanWatchedDirectories(a.cfg.Scan.MaxDepth)
	return results, a.op.Record(err)
}

// AddDirectory resolves rawPath and registers it for scanning and watching.
func (a *App) AddDirectory(rawPath string, cfg fidx.ScanConfig) (*model.WatchedDirectory, error) {
	if err := a.persistOperation(rawPath); err != nil {
		return nil, err
	}
	p, err := a.fsmgr.Resolve(rawPath)
	if err != nil {
		return nil, a.op.Record(fmt.Errorf("resolving path: %w", err))
	}
	dir, err := a.service.AddWatchedDirectory(p, cfg)
	return dir, a.op.Record(err)
}

// ListDirectories returns every watched directory.
func (a *App) ListDirectories() ([]*model.WatchedDirectory, error) {
	return a.service.ListWatchedDirectories()
}

// RemoveDirectory unregisters a watched directory.
// The path may no longer exist on disk, so resolution uses filepath.Abs only.
func (a *App) RemoveDirectory(rawPath string) error {
	if err := a.persistOperation(rawPath); err != nil {
		return err
	}
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return a.op.Record(fmt.Errorf("resolving path: %w", err))
	}
	return a.op.Record(a.service.RemoveWatchedDirectory(absPath))
}

// Search runs a keyword search over the index.
func (a *App) Search(req search.Request) (*search.Response, error) {
	return a.service.Search(req)
}

// ListTags returns every tag, most used first.
func (a *App) ListTags() ([]*model.TagRecord, error) {
	return a.service.ListTags()
}

// CreateTag creates a custom tag.
func (a *App) CreateTag(spec fidx.TagSpec) (*model.TagRecord, error) {
	if err := a.persistOperation(spec.Name); err != nil {
		return nil, err
	}
	tag, err := a.service.CreateTag(spec)
	return tag, a.op.Record(err)
}

// UpdateTag changes a tag's display name, colour or icon.
func (a *App) UpdateTag(spec fidx.TagSpec) (*model.TagRecord, error) {
	if err := a.persistOperation(spec.Name); err != nil {
		return nil, err
	}
	tag, err := a.service.UpdateTag(spec)
	return tag, a.op.Record(err)
}

// DeleteTag removes a tag from every file and deletes it.
func (a *App) DeleteTag(name string) error {
	if err := a.persistOperation(name); err != nil {
		return err
	}
	return a.op.Record(a.service.DeleteTag(name))
}

// AddTag attaches a user tag to the indexed file at rawPath.
func (a *App) AddTag(rawPath, tagName string) error {
	if err := a.persistOperation(rawPath, tagName); err != nil {
		return err
	}
	p, err := a.fsmgr.Resolve(rawPath)
	if err != nil {
		return a.op.Record(fmt.Errorf("resolving path: %w", err))
	}
	return a.op.Record(a.service.AddTagToFile(p, tagName))
}

// RemoveTag detaches a tag from the indexed file at rawPath.
func (a *App) RemoveTag(rawPath, tagName string) error {
	if err := a.persistOperation(rawPath, tagName); err != nil {
		return err
	}
	p, err := a.fsmgr.Resolve(rawPath)
	if err != nil {
		return a.op.Record(fmt.Errorf("resolving path: %w", err))
	}
	return a.op.Record(a.service.RemoveTagFromFile(p, tagName))
}

// FileTags lists the tags on the indexed file at rawPath.
func (a *App) FileTags(rawPath string) ([]*model.FileTagAssociation, error) {
	p, err := a.fsmgr.Resolve(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	return a.service.FileTags(p)
}

// FilesByTags returns active files carrying every named tag.
func (a *App) FilesByTags(names []string) ([]*model.FileRecord, error) {
	return a.service.FilesByTags(names)
}

// Rules returns the rule engine's current rule set.
func (a *App) Rules() []rules.Rule {
	return a.service.Engine().Rules()
}

// Retag re-runs the rule engine over every active file.
func (a *App) Retag() (*fidx.TagReport, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	report, err := a.service.RetagAll()
	return report, a.op.Record(err)
}

// Stats summarises the index.
func (a *App) Stats() (*model.Stats, error) {
	return a.service.Stats()
}

// GetHistory returns the most recent operations.
func (a *App) GetHistory(limit int) ([]*model.Operation, error) {
	return a.service.GetHistory(limit)
}

// Backup writes a consistent snapshot of the index database to destPath.
func (a *App) Backup(destPath string) error {
	absPath, err := filepath.Abs(destPath)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	if err := a.db.BackupTo(absPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close finalizes the operation record and closes all resources.
func (a *App) Close() error {
	var firstErr error

	a.queue.Close()

	if a.op.Persisted() {
		if err := a.db.FinishOperation(a.op.ID, a.op.Status); err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}
	}

	if err := a.db.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
