// Package app is the composition root: it turns a config.Config into the
// wired set of stores, services and background components shared by the
// HTTP server and the moviectl CLI.
//
// DEPENDENCY GRAPH:
//
//	config → DocumentStore (sqlite | appwrite)
//	       → Bus
//	       → CollectionService, MembershipService(store, collections, bus)
//	       → Catalog (tmdb, optional) → Reconciler → Library(bus)
//	       → AuthService(TokenService?, PasswordService)
//
// Everything is built once and passed down explicitly; no package keeps a
// global instance.
package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/sakif/movieshelf/internal/auth"
	"github.com/sakif/movieshelf/internal/catalog"
	"github.com/sakif/movieshelf/internal/catalog/tmdb"
	"github.com/sakif/movieshelf/internal/config"
	"github.com/sakif/movieshelf/internal/eventbus"
	"github.com/sakif/movieshelf/internal/library"
	"github.com/sakif/movieshelf/internal/repository"
	"github.com/sakif/movieshelf/internal/repository/appwrite"
	"github.com/sakif/movieshelf/internal/repository/sqlite"
	"github.com/sakif/movieshelf/internal/service"
)

// App holds the wired components. Close releases them.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Store       repository.DocumentStore
	Bus         *eventbus.Bus
	Collections *service.CollectionService
	Memberships *service.MembershipService
	Catalog     catalog.Catalog // nil without TMDB credentials
	Reconciler  *service.Reconciler
	Library     *library.Library
	Auth        *service.AuthService
}

// Option customizes Build. Tests use it to swap the store or catalog.
type Option func(*buildOptions)

type buildOptions struct {
	store       repository.DocumentStore
	catalog     catalog.Catalog
	catalogSet  bool
	serviceOpts []service.Option
}

// WithStore uses store instead of opening one from the config. App.Close
// still closes it.
func WithStore(store repository.DocumentStore) Option {
	return func(o *buildOptions) { o.store = store }
}

// WithCatalog uses cat instead of building a TMDB client. A nil cat disables
// catalog lookups.
func WithCatalog(cat catalog.Catalog) Option {
	return func(o *buildOptions) {
		o.catalog = cat
		o.catalogSet = true
	}
}

// WithServiceOptions passes extra options to the collection and membership
// services, after the configured collection key length.
func WithServiceOptions(opts ...service.Option) Option {
	return func(o *buildOptions) { o.serviceOpts = append(o.serviceOpts, opts...) }
}

// Build wires every component from cfg.
func Build(cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	store := o.store
	if store == nil {
		var err error
		store, err = OpenStore(cfg)
		if err != nil {
			return nil, err
		}
	}

	cat := o.catalog
	if !o.catalogSet {
		var err error
		cat, err = openCatalog(cfg, logger)
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Store:   store,
		Bus:     eventbus.New(),
		Catalog: cat,
	}

	svcOpts := append([]service.Option{service.WithCollectionKeyLength(cfg.CollectionKeyLength)}, o.serviceOpts...)
	a.Collections = service.NewCollectionService(store, logger, svcOpts...)
	a.Memberships = service.NewMembershipService(store, a.Collections, a.Bus, logger, svcOpts...)
	a.Reconciler = service.NewReconciler(a.Collections, a.Memberships, cat, logger)
	a.Library = library.New(a.Reconciler, a.Bus, logger)

	authSvc, err := buildAuth(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Auth = authSvc

	return a, nil
}

// Close stops the library and closes the store.
func (a *App) Close() error {
	if a.Library != nil {
		a.Library.Close()
	}
	if err := a.Store.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	return nil
}

// OpenStore opens the document store selected by cfg.Store.Driver. For the
// sqlite driver with a local file, the parent directory is created.
func OpenStore(cfg *config.Config) (repository.DocumentStore, error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		dsn := cfg.Store.DatabaseURL
		if isLocalPath(dsn) {
			dir := filepath.Dir(dsn)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
		db, err := sqlite.New(dsn)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		return db, nil

	case config.DriverAppwrite:
		client, err := appwrite.New(appwrite.Config{
			Endpoint:   cfg.Appwrite.Endpoint,
			ProjectID:  cfg.Appwrite.ProjectID,
			APIKey:     cfg.Appwrite.APIKey,
			DatabaseID: cfg.Appwrite.DatabaseID,
			Tables: map[string]string{
				repository.TableCollections: cfg.Appwrite.CollectionsID,
				repository.TableMemberships: cfg.Appwrite.MembershipsID,
			},
			Timeout: cfg.Appwrite.Timeout,
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("configuring appwrite: %w", err)
		}
		return client, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func isLocalPath(dsn string) bool {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return false
	}
	return !strings.Contains(dsn, "://")
}

func openCatalog(cfg *config.Config, logger *slog.Logger) (catalog.Catalog, error) {
	if !cfg.TMDB.Enabled() {
		logger.Warn("TMDB credentials not set, views will use saved snapshots only")
		return nil, nil
	}

	client, err := tmdb.New(tmdb.Config{
		BaseURL:     cfg.TMDB.BaseURL,
		AccessToken: cfg.TMDB.AccessToken,
		APIKey:      cfg.TMDB.APIKey,
		Language:    cfg.TMDB.Language,
		Timeout:     cfg.TMDB.Timeout,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("configuring tmdb: %w", err)
	}
	return client, nil
}

func buildAuth(cfg *config.Config, logger *slog.Logger) (*service.AuthService, error) {
	var tokens *auth.TokenService
	if cfg.Auth.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, authentication is disabled")
	} else {
		var err error
		tokens, err = auth.NewTokenService(cfg.Auth.JWTSecret)
		if err != nil {
			return nil, err
		}
		if cfg.Auth.AdminPasswordHash == "" {
			logger.Warn("ADMIN_PASSWORD_HASH not set, password login is disabled")
		}
	}

	return service.NewAuthService(tokens, auth.NewPasswordService(), cfg.Auth.AdminPasswordHash, logger), nil
}

// NewLogger builds the process logger. level is debug, info, warn or error;
// format is text or json.
func NewLogger(level, format string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, errors.New("invalid log format " + format)
	}
}
