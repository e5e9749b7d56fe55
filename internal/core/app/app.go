// Package app wires the configured collaborators together. Every front end
// (CLI commands, TUI, MCP server) opens one App per process.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neilberkman/fieldhand/internal/core/advisory"
	"github.com/neilberkman/fieldhand/internal/core/advisoryapi"
	"github.com/neilberkman/fieldhand/internal/core/config"
	"github.com/neilberkman/fieldhand/internal/core/credstore"
	"github.com/neilberkman/fieldhand/internal/core/db"
	"github.com/neilberkman/fieldhand/internal/core/farmstate"
	"github.com/neilberkman/fieldhand/internal/core/logging"
	"github.com/neilberkman/fieldhand/internal/core/route"
	"github.com/neilberkman/fieldhand/internal/core/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Client   *advisoryapi.Client
	Creds    credstore.Store
	Farm     *farmstate.Store
	Session  *session.Manager
	Advisory *advisory.Service

	database *db.DB
}

// Open builds an App from cfg. The caller must Close it.
func Open(cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, err
	}

	client, err := advisoryapi.New(cfg.APIURL,
		advisoryapi.WithTimeout(cfg.RequestTimeout),
		advisoryapi.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger, Client: client}
	if err := a.openStore(); err != nil {
		_ = logger.Sync()
		return nil, err
	}

	a.Farm = farmstate.New()
	a.Session = session.New(client, a.Creds,
		session.WithLogger(logger.Named("session")),
		session.WithFarmState(a.Farm))
	a.Advisory = advisory.New(client, a.Session, a.Farm,
		advisory.WithLogger(logger.Named("advisory")),
		advisory.WithDefaults(advisory.Defaults{
			Region:          cfg.DefaultRegion,
			Season:          cfg.DefaultSeason,
			WeatherLocation: cfg.WeatherLocation,
		}))

	logger.Debug("app opened",
		zap.String("api_url", cfg.APIURL),
		zap.String("store", cfg.Store),
		zap.Duration("timeout", cfg.RequestTimeout))
	return a, nil
}

func (a *App) openStore() error {
	switch credstore.StoreType(a.Config.Store) {
	case credstore.StoreTypeSQLite:
		database, err := db.New(a.Config.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		a.database = database
		store, err := credstore.NewStore(credstore.StoreTypeSQLite, credstore.WithDatabase(database))
		if err != nil {
			_ = database.Close()
			return err
		}
		a.Creds = store

	case credstore.StoreTypeRedis:
		client := redis.NewClient(&redis.Options{Addr: a.Config.RedisAddr, DB: a.Config.RedisDB})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return fmt.Errorf("failed to reach redis at %s: %w", a.Config.RedisAddr, err)
		}
		store, err := credstore.NewStore(credstore.StoreTypeRedis,
			credstore.WithRedisClient(client),
			credstore.WithRedisPrefix(a.Config.RedisPrefix))
		if err != nil {
			_ = client.Close()
			return err
		}
		a.Creds = store

	default:
		store, err := credstore.NewStore(credstore.StoreType(a.Config.Store))
		if err != nil {
			return fmt.Errorf("store %q: %w", a.Config.Store, err)
		}
		a.Creds = store
	}
	return nil
}

// Close releases the credential store and flushes the log.
func (a *App) Close() error {
	var errs []error
	if a.Creds != nil {
		errs = append(errs, a.Creds.Close())
	}
	if a.database != nil {
		errs = append(errs, a.database.Close())
	}
	_ = a.Logger.Sync()
	return errors.Join(errs...)
}

// Gate resolves the startup session check and the route guard for path.
// It returns the snapshot and the decision; err is the session check's
// error, if any, which callers show but need not treat as fatal.
func (a *App) Gate(ctx context.Context, path string) (session.Snapshot, route.Decision, error) {
	snap := a.Session.Snapshot()
	var err error
	if snap.State == session.StateCheckingSession {
		snap, err = a.Session.CheckSession(ctx)
	}
	return snap, route.Resolve(snap.State, path), err
}

// RequireSession is Gate for commands that only make sense signed in.
func (a *App) RequireSession(ctx context.Context, path string) (session.Snapshot, error) {
	snap, d, err := a.Gate(ctx, path)
	if d.Action == route.Render {
		return snap, nil
	}
	if err != nil {
		return snap, fmt.Errorf("could not confirm your session: %w", err)
	}
	return snap, &advisoryapi.Error{Kind: advisoryapi.KindAuth, Message: "Not signed in. Run `fieldhand login` first."}
}
