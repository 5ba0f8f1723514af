package container

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"bondfuzz/adapters/db/postgres/migrations"
	"bondfuzz/adapters/httpeval"
	"bondfuzz/adapters/postgres"
	"bondfuzz/app"
	"bondfuzz/internal"
	"bondfuzz/internal/calibration"
	"bondfuzz/internal/config"
	"bondfuzz/internal/dispatch"
	"bondfuzz/internal/errors"
	"bondfuzz/internal/measure"
	"bondfuzz/ports"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	DB       *sqlx.DB
	Registry *prometheus.Registry

	// Repositories (nil until InitWithDatabase)
	CorpusRepo ports.CorpusRepository
	RunRepo    ports.RunRepository

	Engine    *measure.Engine
	Campaigns *app.CampaignService
}

// New creates a container with the engine wired and no persistence
func New(cfg *config.Config, logger *internal.Logger) (*Container, error) {
	if cfg == nil {
		return nil, errors.ConfigInvalid("config cannot be nil")
	}
	if logger == nil {
		logger = internal.NewDefaultLogger()
	}

	c := &Container{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}

	engine, err := measure.NewEngine(cfg.Measurement.Engine(),
		measure.WithDispatchConfig(cfg.Dispatch.Dispatcher()),
		measure.WithMetrics(dispatch.NewMetrics(c.Registry)),
		measure.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	c.Engine = engine
	c.Campaigns = app.NewCampaignService(engine, nil, nil, logger)
	return c, nil
}

// OpenDatabase connects to the configured database without touching the schema
func (c *Container) OpenDatabase(ctx context.Context) (*sqlx.DB, error) {
	return postgres.Open(ctx, c.Config.Database.Driver, c.Config.Database.URL)
}

// InitWithDatabase connects, applies pending migrations and switches the campaign service
// to persistent repositories
func (c *Container) InitWithDatabase(ctx context.Context) error {
	db, err := c.OpenDatabase(ctx)
	if err != nil {
		return err
	}
	if err := migrations.NewMigrator(db, c.Logger).Up(ctx); err != nil {
		db.Close()
		return errors.DatabaseError("database migration failed", err)
	}

	c.DB = db
	c.CorpusRepo = postgres.NewCorpusRepository(db)
	c.RunRepo = postgres.NewRunRepository(db)
	c.Campaigns = app.NewCampaignService(c.Engine, c.CorpusRepo, c.RunRepo, c.Logger)

	c.Logger.Info("container initialized with %s database", c.Config.Database.Driver)
	return nil
}

// Evaluators resolves reference evaluator names plus an optional remote endpoint. An empty
// endpoint falls back to the configured EVALUATOR_URL.
func (c *Container) Evaluators(references []string, endpoint, name string) ([]ports.Evaluator, error) {
	var out []ports.Evaluator
	for _, ref := range references {
		r, ok := calibration.Lookup(ref)
		if !ok {
			return nil, errors.InvalidInput(fmt.Sprintf("unknown reference evaluator %q", ref))
		}
		out = append(out, r.Evaluator)
	}
	if endpoint == "" {
		endpoint = c.Config.Dispatch.EvaluatorURL
	}
	if endpoint != "" {
		if err := checkEndpoint(endpoint); err != nil {
			return nil, errors.ExternalServiceError("evaluator "+name, err)
		}
		out = append(out, httpeval.NewClient(name, endpoint, 0))
	}
	if len(out) == 0 {
		return nil, errors.InvalidInput("no evaluator: pass a reference name or a URL, or set EVALUATOR_URL")
	}
	return out, nil
}

func checkEndpoint(endpoint string) error {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("endpoint %q: scheme must be http or https", endpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint %q: missing host", endpoint)
	}
	return nil
}

// Shutdown releases the database connection and flushes logs
func (c *Container) Shutdown(ctx context.Context) error {
	defer c.Logger.Sync()
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
