// Package api exposes transaction lookups over HTTP.
//
// Routes:
//
//	POST /api/transactions/search   JSON request body
//	GET  /api/transactions/search   same fields as query parameters
//	POST /api/snapshot/reload       reload the snapshot store
//	GET  /api/health                snapshot and lookup counters
//
// Every response carries an X-Request-ID header.
package api

import (
	"context"
	"net/http"

	"upi-transaction-lookup/internal/lookup"
	"upi-transaction-lookup/internal/matcher"
	"upi-transaction-lookup/internal/snapshot"
	"upi-transaction-lookup/pkg/logger"

	"github.com/gorilla/mux"
)

// Searcher answers lookup requests
type Searcher interface {
	Lookup(ctx context.Context, req matcher.Request) (*matcher.SearchResult, error)
	Stats() lookup.Stats
}

// SnapshotStore is the snapshot store surface the API needs
type SnapshotStore interface {
	Current() *snapshot.Snapshot
	Reload(ctx context.Context) (*snapshot.Snapshot, error)
}

// Handler holds the dependencies of the HTTP handlers
type Handler struct {
	searcher Searcher
	store    SnapshotStore
	logger   logger.Logger
}

// NewRouter builds the HTTP router. A nil logger uses the global logger.
func NewRouter(searcher Searcher, store SnapshotStore, log logger.Logger) *mux.Router {
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	h := &Handler{
		searcher: searcher,
		store:    store,
		logger:   log.WithComponent("api"),
	}

	router := mux.NewRouter()
	router.Use(requestIDMiddleware, h.loggingMiddleware, h.recoveryMiddleware)

	router.HandleFunc("/api/transactions/search", h.SearchJSON).Methods(http.MethodPost)
	router.HandleFunc("/api/transactions/search", h.SearchQuery).Methods(http.MethodGet)
	router.HandleFunc("/api/snapshot/reload", h.Reload).Methods(http.MethodPost)
	router.HandleFunc("/api/health", h.Health).Methods(http.MethodGet)

	router.NotFoundHandler = requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "no route for "+r.URL.Path, "")
	}))
	router.MethodNotAllowedHandler = requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" not allowed on "+r.URL.Path, "")
	}))

	return router
}
