package fidx

import (
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"fidx/internal/logging"
	"fidx/internal/rules"
	"fidx/internal/watcher"
)

var (
	ErrNotDirectory = errors.New("path is not a directory")
	ErrFileNotFound = errors.New("file is not indexed")
	ErrTagNotFound  = errors.New("tag not found")
	ErrTagExists    = errors.New("tag already exists")
	ErrDirNotFound  = errors.New("directory is not watched")
)

// DefaultTagCacheSize bounds the tag name to ID cache.
const DefaultTagCacheSize = 256

// Metrics receives pipeline counters. The telemetry package provides the
// Prometheus implementation.
type Metrics interface {
	EventApplied(kind watcher.Kind)
	EventFailed(kind watcher.Kind)
	ScanEntry(result string)
	AutoTagsApplied(n int)
}

// Scan entry results reported through Metrics.ScanEntry.
const (
	ScanEntryAdded   = "added"
	ScanEntryUpdated = "updated"
	ScanEntrySkipped = "skipped"
	ScanEntryError   = "error"
)

type nopMetrics struct{}

func (nopMetrics) EventApplied(watcher.Kind) {}
func (nopMetrics) EventFailed(watcher.Kind)  {}
func (nopMetrics) ScanEntry(string)          {}
func (nopMetrics) AutoTagsApplied(int)       {}

// Option configures optional IndexService collaborators.
type Option func(*IndexService)

// WithEventSink makes Scan announce ScanStart and ScanEnd markers on sink.
func WithEventSink(sink watcher.Sink) Option {
	return func(s *IndexService) { s.events = sink }
}

// WithMetrics reports pipeline counters to m.
func WithMetrics(m Metrics) Option {
	return func(s *IndexService) { s.metrics = m }
}

// WithTagCacheSize sets the capacity of the tag name to ID cache.
func WithTagCacheSize(n int) Option {
	return func(s *IndexService) { s.tagCacheSize = n }
}

// IndexService is the orchestration layer: it scans directories, applies
// change events, runs the rule engine and answers searches on top of a
// Database and a FilesystemManager.
type IndexService struct {
	database Database
	fsmgr    FilesystemManager
	engine   *rules.Engine
	logger   logging.Logger
	clock    Clock

	events       watcher.Sink
	metrics      Metrics
	tagCacheSize int
	tagIDs       *lru.Cache[string, int64]
}

// NewIndexService creates a new IndexService with the provided dependencies.
func NewIndexService(database Database, fsmgr FilesystemManager, engine *rules.Engine, logger logging.Logger, clock Clock, opts ...Option) (*IndexService, error) {
	s := &IndexService{
		database:     database,
		fsmgr:        fsmgr,
		engine:       engine,
		logger:       logger,
		clock:        clock,
		metrics:      nopMetrics{},
		tagCacheSize: DefaultTagCacheSize,
	}
	for _, opt := range opts {
		opt(s)
	}

	cache, err := lru.New[string, int64](s.tagCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating tag cache: %w", err)
	}
	s.tagIDs = cache
	return s, nil
}

// Engine returns the rule engine used for auto-tagging.
func (s *IndexService) Engine() *rules.Engine { return s.engine }

func (s *IndexService) announce(ev watcher.FileEvent) {
	if s.events == nil {
		return
	}
	if !s.events.TrySend(ev) {
		s.logger.Debug("scan marker dropped", "event", ev)
	}
}
