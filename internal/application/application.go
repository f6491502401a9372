package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/psds-microservice/ticket-bot/internal/chat/discord"
	"github.com/psds-microservice/ticket-bot/internal/config"
	"github.com/psds-microservice/ticket-bot/internal/database"
	"github.com/psds-microservice/ticket-bot/internal/handler"
	"github.com/psds-microservice/ticket-bot/internal/kafka"
	"github.com/psds-microservice/ticket-bot/internal/membercache"
	"github.com/psds-microservice/ticket-bot/internal/metrics"
	"github.com/psds-microservice/ticket-bot/internal/poller"
	"github.com/psds-microservice/ticket-bot/internal/registry"
	"github.com/psds-microservice/ticket-bot/internal/router"
	"github.com/psds-microservice/ticket-bot/internal/service"
	"github.com/psds-microservice/ticket-bot/internal/website"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// redisKeyExpiry ограничивает время жизни результатов проверки в Redis.
const redisKeyExpiry = 24 * time.Hour

// Bot приложение: сессия gateway, поллеры и HTTP-сервер.
type Bot struct {
	cfg       *config.Config
	log       *zap.Logger
	platform  *discord.Platform
	tickets   *service.TicketService
	scheduler *poller.Scheduler
	readiness *handler.Readiness
	httpSrv   *http.Server
	closers   []io.Closer
}

// NewBot собирает все компоненты. До Run к Discord никто не обращается.
func NewBot(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Bot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &Bot{cfg: cfg, log: log, readiness: &handler.Readiness{}}

	reg, err := b.openRegistry(ctx)
	if err != nil {
		b.close()
		return nil, err
	}
	cache, err := b.openMemberCache(ctx)
	if err != nil {
		b.close()
		return nil, err
	}

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicTicket, log)
	b.closers = append(b.closers, producer)
	web := website.NewClient(cfg.WebsiteURL, cfg.APISecret, cfg.HTTPTimeout)

	platform, err := discord.New(cfg.DiscordToken, cfg.GuildID, log)
	if err != nil {
		b.close()
		return nil, err
	}
	b.platform = platform

	admins := service.Roster(cfg.AdminIDs)
	b.tickets = service.NewTicketService(service.TicketDeps{
		Platform:   platform,
		Registry:   reg,
		Website:    web,
		Events:     producer,
		Admins:     admins,
		WebsiteURL: cfg.WebsiteURL,
	}, log)
	notifier := service.NewNotifier(platform, reg, admins, log)
	members := service.NewMemberService(service.MemberDeps{
		Platform: platform,
		Cache:    cache,
		CacheTTL: cfg.MemberCacheTTL,
		RoleID:   cfg.CustomerRoleID,
	}, log)
	lifecycle := service.NewLifecycle(service.LifecycleDeps{
		Platform: platform,
		Registry: reg,
		Events:   producer,
		Admins:   admins,
		Grace:    cfg.CloseGracePeriod,
	}, log)
	platform.SetHandler(service.NewInteractions(service.InteractionDeps{
		Lifecycle: lifecycle,
		Members:   members,
		Quotes:    web,
		Platform:  platform,
		Registry:  reg,
		Admins:    admins,
	}, log))

	b.scheduler = poller.New(web, poller.Queues(b.tickets, notifier, members), poller.Options{
		Interval:      cfg.PollInterval,
		RetryAttempts: cfg.PollRetryAttempts,
	}, log)

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(promReg)

	b.httpSrv = &http.Server{
		Addr: cfg.Addr(),
		Handler: router.New(router.Deps{
			Members:   handler.NewMemberHandler(members, log),
			Readiness: b.readiness,
			Gatherer:  promReg,
			Secret:    cfg.APISecret,
			Log:       log,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return b, nil
}

func (b *Bot) openRegistry(ctx context.Context) (*registry.Registry, error) {
	if !b.cfg.PersistenceEnabled() {
		b.log.Info("ticket registry is in memory only (DB_HOST not set)")
		return registry.New(nil, b.log), nil
	}
	if err := database.MigrateUp(ctx, b.cfg.DatabaseURL(), b.log); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Open(b.cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		b.closers = append(b.closers, sqlDB)
	}
	reg := registry.New(registry.NewGormStore(db), b.log)
	if err := reg.Hydrate(ctx); err != nil {
		return nil, fmt.Errorf("load ticket registry: %w", err)
	}
	return reg, nil
}

func (b *Bot) openMemberCache(ctx context.Context) (membercache.Cache, error) {
	if b.cfg.RedisURL == "" {
		return membercache.NewInMemory(), nil
	}
	cache, err := membercache.NewRedis(ctx, b.cfg.RedisURL, redisKeyExpiry)
	if err != nil {
		return nil, fmt.Errorf("member cache: %w", err)
	}
	b.closers = append(b.closers, cache)
	b.log.Info("member cache shared through redis")
	return cache, nil
}

// Run сразу поднимает HTTP, затем подключает gateway, готовит категорию тикетов
// и запускает поллинг. Блокируется до отмены ctx или ошибки компонента.
func (b *Bot) Run(ctx context.Context) error {
	defer b.close()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.log.Info("http server listening", zap.String("addr", b.httpSrv.Addr))
		if err := b.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := b.httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := b.platform.Open(ctx); err != nil {
			return err
		}
		b.tickets.PrepareCategory(ctx, b.cfg.TicketCategory)
		b.readiness.Set(true)
		defer b.readiness.Set(false)
		return b.scheduler.Run(ctx)
	})
	return g.Wait()
}

func (b *Bot) close() {
	if b.platform != nil {
		if err := b.platform.Close(); err != nil {
			b.log.Warn("close discord session", zap.Error(err))
		}
	}
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil {
			b.log.Warn("close resource", zap.Error(err))
		}
	}
}
