package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
	"go.uber.org/zap"

	"github.com/seenimoa/diligenceops/internal/config"
	"github.com/seenimoa/diligenceops/internal/pipeline"
)

// ErrRunNotFound is returned by Get for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// Run statuses.
const (
	RunRunning  = "running"
	RunComplete = "complete"
	RunError    = "error"
)

// RunRecord is the persisted state of one pipeline run.
type RunRecord struct {
	ID          string
	Ticker      string
	Status      string
	StartedAt   time.Time
	CompletedAt time.Time
	Error       string
	OutputDir   string
	Result      *pipeline.Record
}

// Done reports whether the run reached a terminal status.
func (r *RunRecord) Done() bool {
	return r.Status == RunComplete || r.Status == RunError
}

// RunStore keeps run records in badgerhold.
type RunStore struct {
	store *badgerhold.Store
	log   *zap.Logger
}

// OpenRunStore opens the run database described by cfg. An in-memory store
// ignores the path.
func OpenRunStore(cfg config.StoreConfig, log *zap.Logger) (*RunStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	options := badgerhold.DefaultOptions
	if cfg.InMemory {
		options.Options = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("store path is required unless in_memory is set")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		options.Options = badger.DefaultOptions(cfg.Path)
	}
	// Badger's own logger is silenced; store events go through zap.
	options.Logger = nil

	s, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	log.Debug("run store opened", zap.String("path", cfg.Path), zap.Bool("in_memory", cfg.InMemory))
	return &RunStore{store: s, log: log}, nil
}

// Save inserts or replaces a run.
func (s *RunStore) Save(r *RunRecord) error {
	if r.ID == "" {
		return errors.New("run ID is required")
	}
	if err := s.store.Upsert(r.ID, r); err != nil {
		return fmt.Errorf("save run %s: %w", r.ID, err)
	}
	return nil
}

// Get loads one run.
func (s *RunStore) Get(id string) (*RunRecord, error) {
	var r RunRecord
	if err := s.store.Get(id, &r); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return &r, nil
}

// List returns runs newest first. A limit of zero or less returns all.
func (s *RunStore) List(limit int) ([]RunRecord, error) {
	query := badgerhold.Where("ID").Ne("").SortBy("StartedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}
	runs := []RunRecord{}
	if err := s.store.Find(&runs, query); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Close closes the database.
func (s *RunStore) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
