package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"

	"github.com/smalyshev/TabulistBot/pkg/cache"
	"github.com/smalyshev/TabulistBot/pkg/config"
	"github.com/smalyshev/TabulistBot/pkg/db"
	"github.com/smalyshev/TabulistBot/pkg/db/maintenance"
	"github.com/smalyshev/TabulistBot/pkg/logging"
	"github.com/smalyshev/TabulistBot/pkg/mediawiki"
	"github.com/smalyshev/TabulistBot/pkg/probe"
	"github.com/smalyshev/TabulistBot/pkg/request"
	"github.com/smalyshev/TabulistBot/pkg/store"
	"github.com/smalyshev/TabulistBot/pkg/terms"
	"github.com/smalyshev/TabulistBot/pkg/tracker"
	"github.com/smalyshev/TabulistBot/pkg/updater"
	"github.com/smalyshev/TabulistBot/pkg/version"
	"github.com/smalyshev/TabulistBot/pkg/wikidata"
)

// app is the wired object graph shared by all commands.
type app struct {
	cfg        *config.Config
	out        io.Writer
	db         *db.DB
	store      *store.SQLStore
	tracker    *tracker.Tracker
	wiki       *mediawiki.Client
	query      *wikidata.Client
	registry   *prometheus.Registry
	updater    *updater.Updater
	discoverer *updater.Discoverer
	closeLogs  func()
}

// appOptions carries what differs between commands.
type appOptions struct {
	console bool
	force   bool
	dryRun  bool
}

// newApp loads the configuration and connects every component. The caller
// must call close.
func newApp(ctx context.Context, cmd *cli.Command, opts appOptions) (*app, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Update.Force = cfg.Update.Force || opts.force
	cfg.Update.DryRun = cfg.Update.DryRun || opts.dryRun

	closeLogs, err := logging.Init(&cfg.Log, opts.console || cmd.Bool("verbose"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	slog.Debug("Tabulist starting", "version", version.Version, "wiki", cfg.Wiki.Name)

	a := &app{cfg: cfg, out: stdout(cmd), closeLogs: closeLogs}
	if err := a.init(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	cfg := a.cfg

	d, err := db.Open(ctx, cfg.DB.Driver, cfg.DB.Path, cfg.DB.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	a.db = d
	a.store = store.NewSQLStore(d)

	if err := maintenance.Run(ctx, a.store, cfg.Wiki.Name, time.Duration(cfg.Update.LeaseTimeout)); err != nil {
		slog.Error("Maintenance tasks failed", "error", err)
	}

	a.tracker = tracker.New()
	opts := request.Options{
		UserAgent:   cfg.Request.UserAgent,
		Timeout:     time.Duration(cfg.Request.Timeout),
		MaxAttempts: cfg.Request.Retries,
		BaseDelay:   time.Duration(cfg.Request.Backoff.BaseDelay),
		MaxDelay:    time.Duration(cfg.Request.Backoff.MaxDelay),
		Gap:         time.Duration(cfg.Request.Gap),
	}

	wikiOpts := opts
	wikiOpts.Cookies = true
	wikiReq, err := request.New(a.tracker, wikiOpts)
	if err != nil {
		return err
	}

	queryOpts := opts
	if cfg.Sparql.Timeout > 0 {
		queryOpts.Timeout = time.Duration(cfg.Sparql.Timeout)
	}
	queryReq, err := request.New(a.tracker, queryOpts)
	if err != nil {
		return err
	}

	endpoint, err := cfg.WikiAPIEndpoint()
	if err != nil {
		return err
	}
	a.wiki = mediawiki.NewClient(wikiReq, endpoint, slog.Default())
	a.wiki.Maxlag = cfg.Wiki.Maxlag
	a.query = wikidata.NewClient(queryReq, cfg.Sparql.Endpoint, cfg.Wikidata.APIEndpoint, slog.Default())
	var source terms.Source = a.query
	if cfg.Wikidata.CacheTTL > 0 {
		source = terms.NewCachedSource(a.query, cache.NewMemoryCache(time.Duration(cfg.Wikidata.CacheTTL)))
	}
	enricher := terms.New(source, cfg.Wikidata.Languages, cfg.Wikidata.BatchSize, slog.Default())

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := updater.NewMetrics(a.registry)

	a.updater = updater.New(cfg, a.store, a.wiki, a.query, enricher, metrics, slog.Default())
	a.updater.SetDryRunOutput(a.out)
	a.discoverer = updater.NewDiscoverer(cfg, a.store, a.wiki, metrics, slog.Default())
	return nil
}

// login starts the bot session needed for edits. Dry runs never write.
func (a *app) login(ctx context.Context) error {
	if a.cfg.Update.DryRun {
		return nil
	}
	creds, err := config.LoadCredentials(a.cfg.Wiki.CredentialsFile)
	if err != nil {
		return err
	}
	return a.wiki.Login(ctx, creds.User, creds.Pass)
}

func (a *app) probes() []probe.Probe {
	return []probe.Probe{
		probe.Database(a.store),
		probe.Wiki(a.wiki),
		probe.Sparql(a.query),
	}
}

func (a *app) repair(ctx context.Context) error {
	return maintenance.Run(ctx, a.store, a.cfg.Wiki.Name, time.Duration(a.cfg.Update.LeaseTimeout))
}

func (a *app) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			slog.Warn("Failed to close database", "error", err)
		}
	}
	if a.closeLogs != nil {
		a.closeLogs()
	}
}

func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}
