package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Veraticus/tripwallet/internal/common"
	"github.com/Veraticus/tripwallet/internal/config"
	"github.com/Veraticus/tripwallet/internal/currency"
	"github.com/Veraticus/tripwallet/internal/ledger"
	"github.com/Veraticus/tripwallet/internal/rates"
	"github.com/Veraticus/tripwallet/internal/sheets"
	"github.com/Veraticus/tripwallet/internal/storage"
	"github.com/Veraticus/tripwallet/internal/workflow"
	"github.com/spf13/viper"
)

// app holds everything a command needs. Close releases it.
type app struct {
	cfg      *config.Config
	fetcher  rates.Fetcher
	store    ledger.Store
	workflow *workflow.Workflow
	closers  []func()
}

// newApp builds the fetcher, store, and workflow from the loaded configuration.
func newApp(ctx context.Context, opts ...workflow.Option) (*app, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	logger := slog.Default()
	a := &app{cfg: cfg}

	if err := a.initFetcher(logger); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initStore(ctx, logger); err != nil {
		a.Close()
		return nil, err
	}

	base := []workflow.Option{
		workflow.WithLogger(logger),
		workflow.WithMembers(cfg.Members),
	}
	a.workflow = workflow.New(a.fetcher, a.store, append(base, opts...)...)
	return a, nil
}

// Close releases caches, limiters, and database handles.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// initFetcher assembles source → rate limit → cache.
func (a *app) initFetcher(logger *slog.Logger) error {
	var source rates.Fetcher
	switch a.cfg.RateSource {
	case config.SourceStatic:
		source = rates.NewStaticFetcher(a.cfg.Static)
	default:
		client := &http.Client{Timeout: a.cfg.FetchTimeout}
		naver := rates.NewNaverFetcher(client, a.cfg.RateURL, logger)

		limiter := rates.NewLimiter(a.cfg.RatesPerMin)
		a.closers = append(a.closers, limiter.Close)
		source = rates.NewLimitedFetcher(naver, limiter)
	}

	var cache rates.Cache
	if a.cfg.RateCachePath != "" {
		bolt, err := rates.NewBoltCache(a.cfg.RateCachePath, a.cfg.RateTTL, logger)
		if err != nil {
			return fmt.Errorf("failed to open rate cache: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := bolt.Close(); err != nil {
				logger.Warn("failed to close rate cache", "error", err)
			}
		})
		cache = bolt
	} else {
		mem := rates.NewMemoryCache(a.cfg.RateTTL)
		a.closers = append(a.closers, mem.Close)
		cache = mem
	}

	a.fetcher = rates.NewCachedFetcher(source, cache, logger)
	return nil
}

// initStore opens the configured backend behind a single-writer wrapper.
func (a *app) initStore(ctx context.Context, logger *slog.Logger) error {
	var store ledger.Store

	switch a.cfg.Backend {
	case config.BackendGitHub:
		gh, err := ledger.NewGitHubStore(ctx, a.cfg.GitHub, logger)
		if err != nil {
			return err
		}
		store = gh

	case config.BackendSheets:
		sh, err := sheets.NewStore(ctx, a.cfg.Sheets, logger)
		if err != nil {
			return err
		}
		store = sh

	case config.BackendSQLite:
		db, err := storage.NewSQLiteStorage(a.cfg.SQLitePath)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() {
			if err := db.Close(); err != nil {
				logger.Warn("failed to close database", "error", err)
			}
		})
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		store = db

	default:
		store = ledger.NewFileStore(a.cfg.LedgerPath, logger)
	}

	a.store = ledger.NewSerialized(store)
	return nil
}

// parseCurrency turns a flag value into a code with a friendly error.
func parseCurrency(s string) (currency.Code, error) {
	code, err := currency.Parse(s)
	if err != nil {
		return "", common.NewUserError(fmt.Sprintf("unknown currency %q (supported: %s)", s, supportedList()), err)
	}
	return code, nil
}

func supportedList() string {
	codes := currency.Supported()
	names := make([]string, len(codes))
	for i, code := range codes {
		names[i] = string(code)
	}
	return strings.Join(names, ", ")
}

// explain rewrites domain errors into messages for the terminal.
func explain(err error) error {
	var verr *workflow.ValidationError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &verr):
		return common.NewUserError("invalid expense", verr)
	case errors.Is(err, ledger.ErrConflict):
		return common.NewUserError("the ledger kept changing while saving; try again", err)
	case errors.Is(err, ledger.ErrStorageUnavailable):
		return common.NewUserError("ledger storage is unavailable; nothing was changed", err)
	case errors.Is(err, rates.ErrFetchFailed):
		return common.NewUserError("could not fetch the exchange rate", err)
	default:
		return err
	}
}
