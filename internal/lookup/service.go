// Package lookup serves transaction searches against the current snapshot.
//
// The Service ties together the snapshot store, the matcher and an
// optional result cache:
//  1. Normalize the request into a query
//  2. Read the current snapshot once
//  3. Serve a cached result for (snapshot digest, config, query) if present
//  4. Otherwise search, cache the result and log the stage trace
//
// Cache failures are logged and never fail a lookup.
package lookup

import (
	"context"
	"sync/atomic"
	"time"

	"upi-transaction-lookup/internal/cache"
	"upi-transaction-lookup/internal/matcher"
	"upi-transaction-lookup/internal/snapshot"
	"upi-transaction-lookup/pkg/errors"
	"upi-transaction-lookup/pkg/logger"
)

// SnapshotProvider supplies the snapshot a lookup searches
type SnapshotProvider interface {
	Current() *snapshot.Snapshot
}

// Stats counts lookups served since the service started
type Stats struct {
	Lookups     int64 `json:"lookups"`
	CacheHits   int64 `json:"cache_hits"`
	CacheErrors int64 `json:"cache_errors"`
	FuzzyHits   int64 `json:"fuzzy_hits"`
	NoMatches   int64 `json:"no_matches"`
}

// Service answers lookup requests
type Service struct {
	snapshots SnapshotProvider
	matcher   *matcher.Matcher
	cache     cache.ResultCache
	logger    logger.Logger

	lookups     atomic.Int64
	cacheHits   atomic.Int64
	cacheErrors atomic.Int64
	fuzzyHits   atomic.Int64
	noMatches   atomic.Int64
}

// NewService creates a lookup service. A nil matcher uses the default
// configuration and a nil cache disables caching.
func NewService(snapshots SnapshotProvider, m *matcher.Matcher, c cache.ResultCache) (*Service, error) {
	if snapshots == nil {
		return nil, errors.ValidationError(
			errors.CodeMissingField,
			"snapshot_provider",
			nil,
			nil,
		).WithSuggestion("Provide a snapshot store to search")
	}

	if m == nil {
		m = matcher.New(nil)
	}
	if err := m.Config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "search", m.Config.String(), err)
	}

	if c == nil {
		c = cache.NopCache{}
	}

	log := logger.GetGlobalLogger().WithComponent("lookup")
	log.WithFields(logger.Fields{
		"time_tolerance":   m.Config.TimeTolerance.String(),
		"amount_tolerance": m.Config.AmountTolerance.String(),
		"max_results":      m.Config.DefaultMaxResults,
	}).Debug("Created lookup service")

	return &Service{
		snapshots: snapshots,
		matcher:   m,
		cache:     c,
		logger:    log,
	}, nil
}

// Config returns the search configuration in use
func (s *Service) Config() *matcher.SearchConfig {
	return s.matcher.Config
}

// Lookup normalizes req and searches the current snapshot
func (s *Service) Lookup(ctx context.Context, req matcher.Request) (*matcher.SearchResult, error) {
	return s.LookupQuery(ctx, req.Query(s.matcher.Config))
}

// LookupQuery searches the current snapshot with an already normalized query
func (s *Service) LookupQuery(ctx context.Context, q matcher.Query) (*matcher.SearchResult, error) {
	s.lookups.Add(1)

	snap := s.snapshots.Current()
	if snap == nil {
		return nil, errors.LookupFailure(errors.CodeSnapshotNotLoaded, "lookup", nil)
	}

	fingerprint := q.Fingerprint()
	log := s.logger.WithFields(logger.Fields{
		"snapshot_version": snap.Version,
		"query":            fingerprint,
	})

	key := s.cacheKey(snap, fingerprint)
	if cached, ok := s.cached(ctx, key, log); ok {
		return cached, nil
	}

	start := time.Now()
	result := s.matcher.Search(snap.Records, q)
	s.count(result)

	log.WithFields(logger.Fields{
		"tier":        result.Tier,
		"count":       result.Count,
		"trace":       result.Trace,
		"duration_us": time.Since(start).Microseconds(),
	}).Debug("Lookup completed")

	if key != "" {
		if err := s.cache.Set(ctx, key, result); err != nil {
			s.cacheErrors.Add(1)
			log.WithError(err).Warn("Result cache write failed")
		}
	}

	return result, nil
}

// cacheKey returns "" for snapshots without a digest, which are never cached
func (s *Service) cacheKey(snap *snapshot.Snapshot, fingerprint string) string {
	if snap.Digest == "" {
		return ""
	}
	return cache.Key(snap.Digest, s.matcher.Config.Fingerprint(), fingerprint)
}

func (s *Service) cached(ctx context.Context, key string, log logger.Logger) (*matcher.SearchResult, bool) {
	if key == "" {
		return nil, false
	}

	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.cacheErrors.Add(1)
		log.WithError(err).Warn("Result cache read failed, searching uncached")
		return nil, false
	}
	if !ok {
		return nil, false
	}

	s.cacheHits.Add(1)
	s.count(cached)
	log.WithField("tier", cached.Tier).Debug("Served lookup from cache")
	return cached, true
}

func (s *Service) count(result *matcher.SearchResult) {
	switch result.Tier {
	case matcher.TierFuzzy:
		s.fuzzyHits.Add(1)
	case matcher.TierNone, matcher.TierEmpty:
		s.noMatches.Add(1)
	}
}

// Stats returns a point-in-time copy of the service counters
func (s *Service) Stats() Stats {
	return Stats{
		Lookups:     s.lookups.Load(),
		CacheHits:   s.cacheHits.Load(),
		CacheErrors: s.cacheErrors.Load(),
		FuzzyHits:   s.fuzzyHits.Load(),
		NoMatches:   s.noMatches.Load(),
	}
}
