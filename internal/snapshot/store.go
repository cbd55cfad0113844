package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"upi-transaction-lookup/internal/models"
	"upi-transaction-lookup/pkg/errors"
	"upi-transaction-lookup/pkg/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
)

// Snapshot is one immutable, fully loaded record collection
type Snapshot struct {
	Records  []*models.TransactionRecord `json:"-"`
	Version  uint64                      `json:"version"`
	Digest   string                      `json:"digest"`
	LoadedAt time.Time                   `json:"loaded_at"`
	Source   string                      `json:"source"`
	Stats    *LoadStats                  `json:"stats"`
}

// Count returns the number of records in the snapshot
func (s *Snapshot) Count() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// StoreOptions configures a Store
type StoreOptions struct {
	// Debounce delays a file-triggered reload until writes settle
	Debounce time.Duration `mapstructure:"debounce"`

	// TimeZone is the location cron schedules are evaluated in
	TimeZone string `mapstructure:"time_zone"`

	// Now returns the load timestamp
	Now func() time.Time `mapstructure:"-"`
}

// DefaultStoreOptions returns the default store options
func DefaultStoreOptions() *StoreOptions {
	return &StoreOptions{
		Debounce: 250 * time.Millisecond,
		TimeZone: "UTC",
		Now:      time.Now,
	}
}

// Store publishes the latest snapshot of a Source.
// Reads are lock-free; reloads are serialized.
type Store struct {
	source  Source
	options *StoreOptions
	logger  logger.Logger

	current  atomic.Pointer[Snapshot]
	reloadMu sync.Mutex
}

// NewStore creates a store for source. Nothing is loaded until Reload.
func NewStore(source Source, options *StoreOptions) *Store {
	if options == nil {
		options = DefaultStoreOptions()
	}
	if options.Now == nil {
		options.Now = time.Now
	}

	return &Store{
		source:  source,
		options: options,
		logger:  logger.GetGlobalLogger().WithComponent("snapshot"),
	}
}

// Source returns the source the store loads from
func (s *Store) Source() Source {
	return s.source
}

// Current returns the published snapshot, or nil before the first load
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Records returns the records of the published snapshot
func (s *Store) Records() []*models.TransactionRecord {
	if snap := s.current.Load(); snap != nil {
		return snap.Records
	}
	return nil
}

// Reload loads the source into a new snapshot and publishes it.
// On failure the previous snapshot keeps being served.
func (s *Store) Reload(ctx context.Context) (*Snapshot, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	start := time.Now()
	log := s.logger.WithField("source", s.source.Name())

	raw, err := s.source.Load(ctx)
	if err != nil {
		log.WithError(err).Error("Snapshot reload failed, keeping previous snapshot")
		return nil, errors.WrapIfNeeded(err, errors.CategoryLookup, errors.CodeReloadFailed, "snapshot reload failed")
	}

	records, stats := validateRecords(raw)

	digest, err := Digest(records)
	if err != nil {
		log.WithError(err).Error("Snapshot digest failed, keeping previous snapshot")
		return nil, errors.InternalError(errors.CodeUnexpectedError, "snapshot_digest", err)
	}

	var version uint64 = 1
	if prev := s.current.Load(); prev != nil {
		version = prev.Version + 1
	}

	snap := &Snapshot{
		Records:  records,
		Version:  version,
		Digest:   digest,
		LoadedAt: s.options.Now(),
		Source:   s.source.Name(),
		Stats:    stats,
	}
	s.current.Store(snap)

	fields := logger.Fields{
		"version":         version,
		"digest":          digest,
		"records_read":    stats.RecordsRead,
		"records_valid":   stats.RecordsValid,
		"invalid_count":   stats.InvalidCount,
		"duplicate_count": stats.DuplicateCount,
		"duration_ms":     time.Since(start).Milliseconds(),
	}
	if stats.HasErrors() {
		log.WithFields(fields).WithField("sample_errors", stats.GetSampleErrors()).
			Warn("Snapshot loaded with skipped records")
	} else {
		log.WithFields(fields).Info("Snapshot loaded")
	}

	return snap, nil
}

// Digest returns the hex sha256 of the records' JSON encoding, in order.
// Equal collections have equal digests regardless of version or process.
func Digest(records []*models.TransactionRecord) (string, error) {
	h := sha256.New()
	enc := json.NewEncoder(h)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return "", fmt.Errorf("encode record %s: %w", r.ID, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Watch reloads the snapshot whenever its file changes, until ctx is done.
// Only file sources can be watched.
func (s *Store) Watch(ctx context.Context) error {
	fs, ok := s.source.(*FileSource)
	if !ok {
		return errors.ConfigurationError(errors.CodeConfigConflict, "watch", s.source.Name(),
			fmt.Errorf("only file sources can be watched"))
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.InternalError(errors.CodeUnexpectedError, "snapshot_watch", err)
	}

	// Watch the directory so atomic rename-over writes are seen
	target := filepath.Clean(fs.Path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		watcher.Close()
		return errors.SourceError(errors.CodeSourceUnreadable, fs.Path, err)
	}

	s.logger.WithField("file_path", target).Info("Watching snapshot file for changes")

	go s.watchLoop(ctx, watcher, target)
	return nil
}

func (s *Store) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, target string) {
	defer watcher.Close()

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			s.logger.WithField("event", event.Op.String()).Debug("Snapshot file changed")
			if timer == nil {
				timer = time.NewTimer(s.options.Debounce)
			} else {
				timer.Reset(s.options.Debounce)
			}
			pending = timer.C

		case <-pending:
			pending = nil
			if _, err := s.Reload(ctx); err != nil {
				s.logger.WithError(err).Warn("File-triggered reload failed")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.WithError(err).Warn("Snapshot watcher error")
		}
	}
}

// Schedule reloads the snapshot on a cron spec. The returned function
// stops the scheduler and waits for a running reload to finish.
func (s *Store) Schedule(spec string) (func(), error) {
	loc, err := time.LoadLocation(s.options.TimeZone)
	if err != nil {
		loc = time.UTC
	}

	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(spec, func() {
		if _, err := s.Reload(context.Background()); err != nil {
			s.logger.WithError(err).Warn("Scheduled reload failed")
		}
	})
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "reload_schedule", spec, err)
	}

	c.Start()
	s.logger.WithField("schedule", spec).Info("Snapshot reload scheduler started")

	return func() {
		<-c.Stop().Done()
	}, nil
}
