package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/yanqian/bank-support/internal/domain/knowledge"
	"github.com/yanqian/bank-support/internal/infra/config"
	"github.com/yanqian/bank-support/internal/infra/corpuswatch"
)

// App encapsulates the service lifecycle: the initial knowledge build, the
// corpus watcher and the HTTP server.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	server  *http.Server
	store   *knowledge.Store
	watcher *corpuswatch.Watcher
}

// NewApp is used by Wire to build the runnable app. watcher may be nil.
func NewApp(cfg *config.Config, logger *slog.Logger, server *http.Server, store *knowledge.Store, watcher *corpuswatch.Watcher) *App {
	return &App{
		cfg:     cfg,
		logger:  logger.With("component", "bootstrap"),
		server:  server,
		store:   store,
		watcher: watcher,
	}
}

// Run builds the knowledge store, starts the HTTP server and blocks until
// shutdown. A failed initial build is fatal: serving from an empty store
// would turn every question into an error.
func (a *App) Run(ctx context.Context) error {
	report, err := a.store.BuildFromFile(ctx, a.cfg.Knowledge.CorpusPath)
	if err != nil {
		return fmt.Errorf("initial knowledge build: %w", err)
	}
	a.logger.Info("knowledge store ready", "entries", report.Entries, "skipped", report.Skipped)

	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	// the watcher only stops on runCtx, so cancel before waiting for it
	defer func() {
		cancel()
		wg.Wait()
	}()

	if a.watcher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.watcher.Run(runCtx); err != nil {
				a.logger.Error("corpus watcher stopped", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server starting", "address", a.cfg.HTTP.Address)
		if err := a.server.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		a.logger.Info("shutdown signal received")
		return a.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
