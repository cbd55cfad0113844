package cmd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"upi-transaction-lookup/cmd/txnlookup/config"
	"upi-transaction-lookup/internal/api"
	"upi-transaction-lookup/internal/cache"
	"upi-transaction-lookup/internal/lookup"
	"upi-transaction-lookup/internal/matcher"
	"upi-transaction-lookup/internal/snapshot"
	"upi-transaction-lookup/pkg/errors"
	"upi-transaction-lookup/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve transaction lookups over HTTP",
	Long: `Serve loads a snapshot and answers lookups over HTTP until interrupted.

The snapshot can be reloaded on file change (--watch), on a cron schedule
(--reload-schedule) or on demand with POST /api/snapshot/reload. Searches
never see a partially loaded snapshot.

Examples:
  txnlookup serve --snapshot transactions.json --watch
  txnlookup serve --postgres-dsn postgres://localhost/upi --reload-schedule "*/5 * * * *"
  txnlookup serve --snapshot transactions.json --redis-addr localhost:6379 --cache-ttl 10m`,

	PreRunE: func(cmd *cobra.Command, args []string) error { return bindFlags(cmd) },
	RunE:    runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	addSourceFlags(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "HTTP listen address")
	serveCmd.Flags().Duration("shutdown-timeout", 10*time.Second, "time allowed for in-flight requests on shutdown")

	// Reload flags
	serveCmd.Flags().Bool("watch", false, "reload when the snapshot file changes")
	serveCmd.Flags().Duration("watch-debounce", 250*time.Millisecond, "wait for writes to settle before reloading")
	serveCmd.Flags().String("reload-schedule", "", "cron spec for periodic reloads, e.g. \"*/5 * * * *\"")
	serveCmd.Flags().String("timezone", "UTC", "time zone the reload schedule runs in")

	// Cache flags
	serveCmd.Flags().String("redis-addr", "", "cache results in Redis at this address")
	serveCmd.Flags().String("redis-password", "", "Redis password")
	serveCmd.Flags().Int("redis-db", 0, "Redis database number")
	serveCmd.Flags().Duration("cache-ttl", 5*time.Minute, "lifetime of cached results")

	// Matching flags
	serveCmd.Flags().Duration("time-tolerance", 30*time.Minute, "largest time-of-day difference still matched")
	serveCmd.Flags().Float64("amount-tolerance", 50, "largest amount difference still matched")
	serveCmd.Flags().Int("default-last-n", 10, "result cap when a request does not send last_n")
}

func runServe(cmd *cobra.Command, args []string) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newLookupServer(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	addr := viper.GetString("addr")
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.NetworkError(errors.CodeConnectionFailed, addr, err)
	}

	return app.run(ctx, listener)
}

// lookupServer is the assembled lookup API with its background reloaders
type lookupServer struct {
	server  *http.Server
	store   *snapshot.Store
	source  snapshot.Source
	cleanup []func()
	logger  logger.Logger
}

// newLookupServer loads the first snapshot and wires the store, cache,
// lookup service and router. Watchers stop when ctx is done.
func newLookupServer(ctx context.Context) (*lookupServer, error) {
	app := &lookupServer{logger: logger.GetGlobalLogger().WithComponent("cli")}

	if err := app.build(ctx); err != nil {
		app.close()
		return nil, err
	}
	return app, nil
}

func (app *lookupServer) build(ctx context.Context) error {
	searchConfig, err := config.CreateSearchConfig(
		viper.GetDuration("time-tolerance"),
		viper.GetFloat64("amount-tolerance"),
		viper.GetInt("default-last-n"),
	)
	if err != nil {
		return config.InvalidSettingError("search", err)
	}

	storeOptions, err := config.CreateStoreOptions(viper.GetDuration("watch-debounce"), viper.GetString("timezone"))
	if err != nil {
		return config.InvalidSettingError("store", err)
	}

	cacheConfig, err := config.CreateCacheConfig(
		viper.GetString("redis-addr"),
		viper.GetString("redis-password"),
		viper.GetInt("redis-db"),
		viper.GetDuration("cache-ttl"),
	)
	if err != nil {
		return config.InvalidSettingError("cache", err)
	}

	source, closeSource, err := openSource(ctx)
	if err != nil {
		return err
	}
	app.source = source
	app.cleanup = append(app.cleanup, closeSource)

	app.store = snapshot.NewStore(source, storeOptions)
	snap, err := app.store.Reload(ctx)
	if err != nil {
		return err
	}
	reportLoad(os.Stderr, snap)

	if viper.GetBool("watch") {
		if err := app.store.Watch(ctx); err != nil {
			return err
		}
	}

	if spec := viper.GetString("reload-schedule"); spec != "" {
		stopSchedule, err := app.store.Schedule(spec)
		if err != nil {
			return err
		}
		app.cleanup = append(app.cleanup, stopSchedule)
	}

	var resultCache cache.ResultCache
	if cacheConfig.Enabled() {
		redisCache, err := cache.NewRedisCache(ctx, cacheConfig)
		if err != nil {
			return err
		}
		app.cleanup = append(app.cleanup, func() { _ = redisCache.Close() })
		resultCache = redisCache
	}

	service, err := lookup.NewService(app.store, matcher.New(searchConfig), resultCache)
	if err != nil {
		return err
	}

	app.server = &http.Server{
		Handler:           api.NewRouter(service, app.store, logger.GetGlobalLogger()),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return nil
}

// run serves on listener until ctx is done, then shuts down gracefully
func (app *lookupServer) run(ctx context.Context, listener net.Listener) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- app.server.Serve(listener)
	}()

	app.logger.WithFields(logger.Fields{
		"addr":   listener.Addr().String(),
		"source": app.source.Name(),
	}).Info("Lookup API listening")

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return errors.NetworkError(errors.CodeServiceUnavailable, listener.Addr().String(), err)
		}
		return nil
	case <-ctx.Done():
	}

	app.logger.Info("Shutting down lookup API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), viper.GetDuration("shutdown-timeout"))
	defer cancel()

	if err := app.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// close releases resources in reverse order of acquisition
func (app *lookupServer) close() {
	for i := len(app.cleanup) - 1; i >= 0; i-- {
		app.cleanup[i]()
	}
	app.cleanup = nil
}
