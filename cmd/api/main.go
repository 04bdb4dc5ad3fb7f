package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/theatre-service/internal/api/http"
	"github.com/spec-kit/theatre-service/internal/api/http/handlers"
	"github.com/spec-kit/theatre-service/internal/auth"
	"github.com/spec-kit/theatre-service/internal/authz"
	"github.com/spec-kit/theatre-service/internal/config"
	"github.com/spec-kit/theatre-service/internal/events"
	"github.com/spec-kit/theatre-service/internal/mailer"
	"github.com/spec-kit/theatre-service/internal/observability"
	"github.com/spec-kit/theatre-service/internal/persistence"
	"github.com/spec-kit/theatre-service/internal/repository"
	"github.com/spec-kit/theatre-service/internal/service"
	"github.com/spec-kit/theatre-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	roleRepo := repository.NewRoleRepository(pool)
	assignmentRepo := repository.NewUserTheatreRoleRepository(pool)
	theatreRepo := repository.NewTheatreRepository(pool)
	screeningRepo := repository.NewScreeningRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)

	catalog := authz.NewCatalog(roleRepo, persistence.NewRoleCache(redis, cfg.Redis.RoleCacheTTL))
	resolver := authz.NewResolver(catalog, assignmentRepo)

	tokens, err := auth.NewTokenCodec(auth.TokenSecrets{
		User:   []byte(cfg.Auth.UserSecret),
		Email:  []byte(cfg.Auth.EmailSecret),
		Ticket: []byte(cfg.Auth.TicketSecret),
	}, auth.TokenTTLs{User: cfg.Auth.AuthTTL, Email: cfg.Auth.EmailTTL}, time.Now)
	if err != nil {
		logger.Fatal("failed to init token codec", zap.Error(err))
	}

	sender, err := mailer.NewSender(cfg.Mail, logger)
	if err != nil {
		logger.Fatal("failed to init mail sender", zap.Error(err))
	}
	if closer, ok := sender.(io.Closer); ok {
		defer closer.Close() //nolint:errcheck
	}
	mail := mailer.New(sender, mailer.Options{Capacity: cfg.Mail.QueueCapacity}, logger)

	dispatcher := events.NewInMemoryDispatcher()
	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:   userRepo,
		Tokens:     tokens,
		Passwords:  auth.NewPasswords(cfg.Auth.BcryptCost),
		Dispatcher: dispatcher,
	})
	ledger := service.NewTicketLedger(service.TicketDependencies{
		TicketRepo:     ticketRepo,
		ScreeningRepo:  screeningRepo,
		TheatreRepo:    theatreRepo,
		UserRepo:       userRepo,
		Resolver:       resolver,
		Tokens:         tokens,
		Dispatcher:     dispatcher,
		Expiry:         service.ValidAfterStart(cfg.Tickets.ValidityAfterStart),
		SelfIssueLimit: cfg.Tickets.SelfIssueLimit,
	})
	roleService := service.NewRoleService(service.RoleDependencies{
		TheatreRepo:    theatreRepo,
		UserRepo:       userRepo,
		AssignmentRepo: assignmentRepo,
		Catalog:        catalog,
		Resolver:       resolver,
	})
	userService := service.NewUserService(userRepo, ledger)
	notifications := service.NewNotificationService(dispatcher, mail, tokens, logger, cfg.App.PublicURL)

	notificationWorker := worker.StartNotificationWorker(ctx, notifications, mail, logger)

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	loginLimiter := persistence.NewRateLimiter(redis, "login", cfg.Redis.LoginAttempts, cfg.Redis.LoginWindow)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Auth:           handlers.NewAuthHandler(authService, loginLimiter, logger),
		Users:          handlers.NewUserHandler(userService),
		Roles:          handlers.NewRoleHandler(roleService),
		Tickets:        handlers.NewTicketHandler(ledger),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, userRepo),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	notificationWorker.Stop()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
