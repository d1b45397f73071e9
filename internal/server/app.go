// Package server wires storage, the ceremony store and the service layer
// together and runs the gRPC vault server until a termination signal.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dmitrijs2005/securevault/internal/breach"
	"github.com/dmitrijs2005/securevault/internal/logging"
	"github.com/dmitrijs2005/securevault/internal/passkey"
	"github.com/dmitrijs2005/securevault/internal/server/config"
	"github.com/dmitrijs2005/securevault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/securevault/internal/server/services"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/securevault/internal/server/grpc"
)

// dbConnectTries bounds the startup wait for Postgres.
const dbConnectTries = 5

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	redis  *redis.Client
	svc    gs.Services
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.New(c.LogFormat, c.LogLevel, os.Stdout)

	db, err := openDB(ctx, c.DatabaseDSN, logger)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	wa, err := passkey.NewWebAuthn(passkey.Config{
		RPID:      c.WebAuthnRPID,
		RPName:    c.WebAuthnRPName,
		RPOrigins: c.WebAuthnOrigins,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{Addr: c.RedisAddr})

	audit := services.NewAuditService(db, rm, logger)
	svc := gs.Services{
		Auth:      services.NewAuthService(db, rm, audit, logger, c),
		Sessions:  services.NewSessionService(db, rm, audit, logger),
		TwoFactor: services.NewTwoFactorService(db, rm, audit),
		Trust:     services.NewTrustService(db, rm, audit),
		Vaults:    services.NewVaultService(db, rm, audit),
		Audit:     audit,
		Passkeys:  services.NewPasskeyService(db, rm, audit, logger, wa, passkey.NewChallengeStore(rdb, 0), c),
		Breach:    services.NewBreachService(breach.NewClient(c.BreachBaseURL)),
		Backup:    services.NewBackupService(db, rm, audit, c),
	}

	return &App{config: c, logger: logger, db: db, redis: rdb, svc: svc}, nil
}

// openDB opens the pgx pool and waits for the server to accept connections.
func openDB(ctx context.Context, dsn string, logger logging.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := db.PingContext(pctx); err != nil {
			logger.Warn(ctx, "database not ready", "error", err.Error())
			return struct{}{}, err
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(dbConnectTries))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.svc,
		app.config.LoginRateLimit, app.config.LoginRateBurst)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.redis.Close(); err != nil {
		app.logger.Warn(ctx, "redis close", "error", err.Error())
	}
	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "db close", "error", err.Error())
	}
}
