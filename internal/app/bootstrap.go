package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/deliver-app/deliver/internal/auth"
	"github.com/deliver-app/deliver/internal/companies"
	"github.com/deliver-app/deliver/internal/mail"
	"github.com/deliver-app/deliver/internal/observability"
	"github.com/deliver-app/deliver/internal/platform/cache"
	"github.com/deliver-app/deliver/internal/platform/db"
	"github.com/deliver-app/deliver/internal/rbac"
	"github.com/deliver-app/deliver/internal/shared"
	"github.com/deliver-app/deliver/internal/users"
	"github.com/deliver-app/deliver/jobs"
)

// Application owns the long-lived resources of the API process.
type Application struct {
	Handler http.Handler
	Metrics *observability.Metrics

	pool      *pgxpool.Pool
	redis     *redis.Client
	jobClient *jobs.Client
	inspector *asynq.Inspector
	logger    *slog.Logger
}

// RedisOpts returns the asynq connection options derived from cfg.
func RedisOpts(cfg *Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
}

// SMTPConfig returns relay settings derived from cfg.
func SMTPConfig(cfg *Config) mail.SMTPConfig {
	return mail.SMTPConfig{
		Host:       cfg.SMTPHost,
		Port:       cfg.SMTPPort,
		Username:   cfg.SMTPUsername,
		Password:   cfg.SMTPPassword,
		From:       cfg.SMTPFrom,
		RequireTLS: cfg.SMTPRequireTLS,
	}
}

// NewApplication connects to Postgres and Redis and wires every module.
func NewApplication(ctx context.Context, cfg *Config, logger *slog.Logger) (*Application, error) {
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		return nil, err
	}
	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		pool.Close()
		return nil, err
	}
	a := &Application{pool: pool, redis: redisClient, logger: logger}

	metrics := observability.NewMetrics()
	a.Metrics = metrics
	auditLogger := shared.NewAuditLogger(pool)
	rbacMiddleware := rbac.Middleware{Logger: logger}

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("token issuer: %w", err)
	}
	refreshStore := auth.NewRefreshStore(redisClient, cfg.RefreshTokenTTL)
	authService := auth.NewService(auth.NewRepository(pool), tokens, refreshStore, cfg.BcryptCost, logger)
	authHandler := auth.NewHandler(logger, authService, auth.HandlerOptions{
		RefreshTTL:     cfg.RefreshTokenTTL,
		SecureCookie:   cfg.IsProduction(),
		LoginPerMinute: cfg.LoginPerMinute,
	})

	notifier, err := a.notifier(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	usersService := users.NewService(users.ServiceDeps{
		Repo:          users.NewRepository(pool),
		Notifier:      notifier,
		Hasher:        users.BcryptHasher{Cost: cfg.BcryptCost},
		Audit:         auditLogger,
		Metrics:       metrics,
		Logger:        logger,
		NotifyTimeout: cfg.NotifyTimeout,
	})

	companiesService := companies.NewService(companies.NewRepository(pool), auditLogger, logger)

	a.inspector = asynq.NewInspector(RedisOpts(cfg))

	a.Handler = NewRouter(RouterParams{
		Logger:           logger,
		Config:           cfg,
		AuthHandler:      authHandler,
		AuthMiddleware:   auth.NewMiddleware(authService, logger),
		UsersHandler:     users.NewHandler(logger, usersService, rbacMiddleware),
		CompaniesHandler: companies.NewHandler(logger, companiesService, rbacMiddleware),
		RolesHandler:     rbac.NewRolesHandler(rbacMiddleware),
		JobHandler:       jobs.NewHandler(a.inspector, logger),
		Metrics:          metrics,
		Ready:            a.ready,
	})
	return a, nil
}

func (a *Application) notifier(cfg *Config) (users.Notifier, error) {
	switch cfg.MailTransport {
	case MailTransportSMTP:
		return mail.NewSMTPSender(SMTPConfig(cfg)), nil
	case MailTransportQueue:
		client, err := jobs.NewClient(RedisOpts(cfg))
		if err != nil {
			return nil, fmt.Errorf("jobs client: %w", err)
		}
		a.jobClient = client
		return mail.NewQueueNotifier(client), nil
	default:
		return nil, fmt.Errorf("unsupported mail transport %q", cfg.MailTransport)
	}
}

func (a *Application) ready(r *http.Request) error {
	if err := a.pool.Ping(r.Context()); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if err := a.redis.Ping(r.Context()).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

// Close releases every resource opened by NewApplication.
func (a *Application) Close() error {
	var errs []error
	if a.inspector != nil {
		errs = append(errs, a.inspector.Close())
	}
	if a.jobClient != nil {
		errs = append(errs, a.jobClient.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.pool != nil {
		a.pool.Close()
	}
	return errors.Join(errs...)
}
