// Package core wires the application's shared components together. Both the
// server and the CLI build on an App.
package core

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"

	"github.com/loanwell/lectern-go/internal/accounts"
	"github.com/loanwell/lectern-go/internal/assets"
	"github.com/loanwell/lectern-go/internal/bookdb"
	"github.com/loanwell/lectern-go/internal/bundles"
	"github.com/loanwell/lectern-go/internal/config"
	"github.com/loanwell/lectern-go/internal/db"
	"github.com/loanwell/lectern-go/internal/downloads"
	"github.com/loanwell/lectern-go/internal/drm"
	"github.com/loanwell/lectern-go/internal/jobs"
	"github.com/loanwell/lectern-go/internal/opds"
	"github.com/loanwell/lectern-go/internal/status"
	"github.com/loanwell/lectern-go/internal/tasks"
	"github.com/loanwell/lectern-go/internal/websocket"
)

// App holds the core components of the application.
type App struct {
	version   string
	config    *config.Config
	database  *sql.DB
	wsHub     *websocket.Hub
	books     *bookdb.Store
	accounts  *accounts.MemRegistry
	statusReg *status.Registry
	dlReg     *downloads.Registry
	engine    *downloads.Engine
	feeds     opds.FeedLoader
	bundles   *bundles.Resolver
	tasks     *tasks.Service
	jobMgr    *jobs.JobManager
}

// New sets up a new App instance: it loads the configuration, initializes the
// database connection, and runs migrations. The connector may be nil when the
// build carries no DRM support.
func New(version string, connector drm.Connector) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	database, err := db.InitDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.RunMigrations(database, assets.MigrationsFS); err != nil {
		// We can't proceed without a valid database schema.
		database.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	app, err := NewApp(version, cfg, database, connector)
	if err != nil {
		database.Close()
		return nil, err
	}
	log.Println("Core application setup complete.")
	return app, nil
}

// NewApp assembles an App around an already migrated database. Tests use this
// directly with an in-memory database.
func NewApp(version string, cfg *config.Config, database *sql.DB, connector drm.Connector) (*App, error) {
	hub := websocket.NewHub()
	go hub.Run()

	books := bookdb.New(database, cfg.Library.Path)
	statusReg := status.NewRegistry(hub)
	dlReg := downloads.NewRegistry()
	engine := downloads.NewEngine(&http.Client{}, books.TempDir())
	feeds := opds.NewHTTPLoader(&http.Client{})

	bundleResolver := bundles.NewResolver(cfg.Bundles.Path)
	go func() {
		if err := bundleResolver.Watch(); err != nil {
			log.Printf("Warning: could not watch bundled content directory: %v", err)
		}
	}()

	var bridge *drm.Bridge
	if connector != nil {
		bridge = drm.NewBridge(connector, dlReg)
	}

	app := &App{
		version:   version,
		config:    cfg,
		database:  database,
		wsHub:     hub,
		books:     books,
		accounts:  accounts.NewMemRegistry(),
		statusReg: statusReg,
		dlReg:     dlReg,
		engine:    engine,
		feeds:     feeds,
		bundles:   bundleResolver,
		jobMgr:    jobs.NewManager(),
	}
	app.tasks = tasks.NewService(cfg, app.accounts, books, statusReg, dlReg, engine, feeds, bundleResolver, bridge)
	jobs.RegisterAll(app)
	return app, nil
}

func (a *App) Version() string                  { return a.version }
func (a *App) Config() *config.Config           { return a.config }
func (a *App) DB() *sql.DB                      { return a.database }
func (a *App) WsHub() *websocket.Hub            { return a.wsHub }
func (a *App) Books() *bookdb.Store             { return a.books }
func (a *App) Accounts() *accounts.MemRegistry  { return a.accounts }
func (a *App) StatusRegistry() *status.Registry { return a.statusReg }
func (a *App) Tasks() *tasks.Service            { return a.tasks }
func (a *App) JobManager() *jobs.JobManager     { return a.jobMgr }

// Close gracefully closes the application's resources, like the DB connection.
func (a *App) Close() {
	if a.database != nil {
		a.database.Close()
	}
}
