package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"driveshare/internal/app/commands"
	availabilityapp "driveshare/internal/app/handlers/availability"
	paymentsapp "driveshare/internal/app/handlers/payments"
	pricingapp "driveshare/internal/app/handlers/pricing"
	reservationapp "driveshare/internal/app/handlers/reservation"
	"driveshare/internal/app/middleware"
	appoutbox "driveshare/internal/app/outbox"
	"driveshare/internal/app/policies"
	"driveshare/internal/app/queries"
	"driveshare/internal/app/sweep"
	"driveshare/internal/app/uow"
	domainbooking "driveshare/internal/domain/booking"
	domaincars "driveshare/internal/domain/cars"
	"driveshare/internal/domain/shared/money"
	"driveshare/internal/infra/broker/kafka"
	"driveshare/internal/infra/config"
	mongodb "driveshare/internal/infra/db/mongo"
	ginserver "driveshare/internal/infra/http/gin"
	"driveshare/internal/infra/inbox"
	"driveshare/internal/infra/notify"
	"driveshare/internal/infra/obs"
	infraoutbox "driveshare/internal/infra/outbox"
	"driveshare/internal/infra/payments"
	"driveshare/internal/infra/sched"
	"driveshare/internal/infra/storage/memory"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	app, err := buildApplication(cfg, logger)
	if err != nil {
		logger.Error("application wiring failed", "error", err)
		os.Exit(1)
	}
	defer app.close()

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: app.ready,
	}, app.handlers)

	if cfg.FixturesPath != "" {
		if err := loadCarFixtures(ctx, cfg.FixturesPath, app.cars, logger); err != nil {
			logger.Warn("car fixtures load failed", "error", err, "path", cfg.FixturesPath)
		}
	}

	app.scheduler.Start()
	for _, worker := range app.workers {
		go worker(ctx)
	}

	go func() {
		<-ctx.Done()
		app.scheduler.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageMode, "payments", cfg.PaymentsMode)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type application struct {
	handlers  ginserver.Handlers
	scheduler *sched.Scheduler
	workers   []func(context.Context)
	cars      domaincars.Repository
	ready     func() error
	closers   []func() error
}

func (a application) close() {
	for _, closer := range a.closers {
		_ = closer()
	}
}

func buildApplication(cfg config.Config, logger *slog.Logger) (application, error) {
	app := application{scheduler: sched.New(logger), ready: func() error { return nil }}

	var (
		uowFactory  uow.UoWFactory
		outboxStore appoutbox.Outbox
		idStore     middleware.IdempotencyStore
		inboxStore  kafka.InboxStore
	)

	switch cfg.StorageMode {
	case "mongo":
		client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return application{}, fmt.Errorf("mongo connect: %w", err)
		}
		carRepo := mongodb.NewCarRepository(client.DB)
		app.cars = carRepo
		uowFactory = mongodb.Factory{
			DB:           client.DB,
			CarRepo:      carRepo,
			BookingRepo:  mongodb.NewBookingRepository(client.DB),
			CalendarRepo: mongodb.NewCalendarRepository(client.DB),
			OverrideRepo: mongodb.NewOverrideRepository(client.DB),
		}
		store := infraoutbox.NewStore(client.DB)
		outboxStore = store
		idStore = mongodb.NewIdempotencyStore(client.DB)
		inboxStore = inbox.NewStore(client.DB, "driveshare-payments")
		app.ready = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return client.Ping(pingCtx)
		}

		if len(cfg.KafkaBrokers) > 0 {
			producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
			if err != nil {
				return application{}, fmt.Errorf("kafka producer: %w", err)
			}
			app.closers = append(app.closers, producer.Close)
			relay := &infraoutbox.Worker{
				Store:       store,
				Producer:    producer,
				Interval:    cfg.OutboxPollInterval,
				TopicPrefix: cfg.KafkaTopicPrefix,
				Backoff:     cfg.RetryBackoff,
			}
			app.workers = append(app.workers, func(ctx context.Context) {
				if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("outbox relay stopped", "error", err)
				}
			})
		}
	default:
		carRepo := memory.NewCarRepository()
		app.cars = carRepo
		uowFactory = memory.Factory{
			CarRepo:      carRepo,
			BookingRepo:  memory.NewBookingRepository(),
			CalendarRepo: memory.NewCalendarRepository(),
			OverrideRepo: memory.NewOverrideRepository(),
		}
		outboxStore = memory.NewOutbox()
		idStore = memory.NewIdempotencyStore()
	}

	var gateway policies.PaymentsPort
	switch cfg.PaymentsMode {
	case "http":
		gateway = &payments.HTTPGateway{
			Client:  &http.Client{Timeout: cfg.PaymentsTimeout},
			BaseURL: cfg.PaymentsGatewayURL,
			APIKey:  cfg.PaymentsAPIKey,
			Logger:  logger,
		}
	default:
		gateway = payments.NewFakeGateway()
	}

	encoder := appoutbox.JSONEventEncoder{}
	notifier := notify.LogNotifier{Logger: logger}

	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler(commandBus, reservationapp.CreateReservationCommand{}.Key(), &reservationapp.CreateReservationHandler{
		UoWFactory:     uowFactory,
		Payments:       gateway,
		Outbox:         outboxStore,
		Encoder:        encoder,
		Notifier:       notifier,
		ApprovalWindow: cfg.ApprovalWindow,
		Logger:         logger,
	})
	commands.RegisterHandler(commandBus, reservationapp.ApproveReservationCommand{}.Key(), &reservationapp.ApproveReservationHandler{
		Payments: gateway,
		Outbox:   outboxStore,
		Encoder:  encoder,
		Notifier: notifier,
		Logger:   logger,
	})
	commands.RegisterHandler(commandBus, reservationapp.RejectReservationCommand{}.Key(), &reservationapp.RejectReservationHandler{
		Payments: gateway,
		Outbox:   outboxStore,
		Encoder:  encoder,
		Notifier: notifier,
		Logger:   logger,
	})
	commands.RegisterHandler(commandBus, reservationapp.CancelReservationCommand{}.Key(), &reservationapp.CancelReservationHandler{
		Payments: gateway,
		Policy:   domainbooking.DefaultRefundPolicy(),
		Outbox:   outboxStore,
		Encoder:  encoder,
		Notifier: notifier,
		Logger:   logger,
	})
	commands.RegisterHandler(commandBus, availabilityapp.BlockDatesCommand{}.Key(), &availabilityapp.BlockDatesHandler{
		Outbox:  outboxStore,
		Encoder: encoder,
	})
	commands.RegisterHandler(commandBus, availabilityapp.UnblockDatesCommand{}.Key(), &availabilityapp.UnblockDatesHandler{
		Outbox:  outboxStore,
		Encoder: encoder,
	})
	commands.RegisterHandler(commandBus, pricingapp.SetOverridesCommand{}.Key(), &pricingapp.SetOverridesHandler{})
	commands.RegisterHandler(commandBus, paymentsapp.ReconcileEventCommand{}.Key(), &paymentsapp.ReconcileEventHandler{
		Outbox:  outboxStore,
		Encoder: encoder,
		Logger:  logger,
	})

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler(queryBus, reservationapp.GetReservationQuery{}.Key(), &reservationapp.GetReservationHandler{UoWFactory: uowFactory})
	queries.RegisterHandler(queryBus, reservationapp.ListRenterReservationsQuery{}.Key(), &reservationapp.ListRenterReservationsHandler{UoWFactory: uowFactory})
	queries.RegisterHandler(queryBus, availabilityapp.GetCalendarQuery{}.Key(), &availabilityapp.GetCalendarHandler{UoWFactory: uowFactory})
	queries.RegisterHandler(queryBus, pricingapp.QuoteQuery{}.Key(), &pricingapp.QuoteHandler{UoWFactory: uowFactory})

	commandBusWithMiddleware := middleware.ChainCommands(
		commandBus,
		middleware.Validation(middleware.SelfValidator{}),
		middleware.Idempotency(idStore, nil),
		middleware.Transaction(uowFactory, nil),
		middleware.OutboxFlush(outboxStore),
	)
	queryBusWithMiddleware := middleware.ChainQueries(queryBus)

	registerSweeps(&app, cfg, uowFactory, gateway, outboxStore, encoder, logger)

	if inboxStore != nil && len(cfg.KafkaBrokers) > 0 {
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, "driveshare-payments", nil, kafka.PaymentEventHandler{
			Bus:    commandBusWithMiddleware,
			Inbox:  inboxStore,
			Logger: logger,
		})
		if err != nil {
			return application{}, fmt.Errorf("kafka consumer: %w", err)
		}
		app.closers = append(app.closers, consumer.Close)
		topic := cfg.KafkaTopicPrefix + "payment-gateway.events.v1"
		app.workers = append(app.workers, func(ctx context.Context) {
			if err := consumer.Run(ctx, []string{topic}); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("payment event consumer stopped", "error", err)
			}
		})
	}

	app.handlers = ginserver.Handlers{
		Reservation:  ginserver.ReservationHandler{Commands: commandBusWithMiddleware, Queries: queryBusWithMiddleware},
		Availability: ginserver.AvailabilityHandler{Commands: commandBusWithMiddleware, Queries: queryBusWithMiddleware},
		Pricing:      ginserver.PricingHandler{Commands: commandBusWithMiddleware, Queries: queryBusWithMiddleware},
		Webhook:      ginserver.WebhookHandler{Commands: commandBusWithMiddleware, SigningSecret: cfg.WebhookSecret},
		Identity:     ginserver.IdentityMiddleware{}.Handle,
	}
	return app, nil
}

func registerSweeps(app *application, cfg config.Config, factory uow.UoWFactory, gateway policies.PaymentsPort, box appoutbox.Outbox, encoder appoutbox.EventEncoder, logger *slog.Logger) {
	register := func(name, spec string, job sched.Job) {
		if err := app.scheduler.Register(name, spec, job); err != nil {
			logger.Error("sweep registration failed", "job", name, "spec", spec, "error", err)
		}
	}
	register("approval-timer", cfg.ApprovalSweepSpec, &sweep.ApprovalTimer{
		UoWFactory: factory,
		Payments:   gateway,
		Outbox:     box,
		Encoder:    encoder,
		Logger:     logger,
	})
	register("hold-reconciliation", cfg.ReconcileSweepSpec, &sweep.Reconciliation{
		UoWFactory: factory,
		Payments:   gateway,
		Outbox:     box,
		Encoder:    encoder,
		Grace:      cfg.OrphanGrace,
		Logger:     logger,
	})
	register("completion", cfg.CompletionSweepSpec, &sweep.Completion{
		UoWFactory: factory,
		Outbox:     box,
		Encoder:    encoder,
		Logger:     logger,
	})
}

type carFixture struct {
	ID               string `json:"id"`
	OwnerID          string `json:"owner_id"`
	Title            string `json:"title"`
	BaseNightlyCents int64  `json:"base_nightly_cents"`
	Currency         string `json:"currency"`
	WeekendMarkupPct int64  `json:"weekend_markup_pct"`
	ServiceFeePct    int64  `json:"service_fee_pct"`
	RequiresApproval bool   `json:"requires_approval"`
}

func loadCarFixtures(ctx context.Context, path string, repo domaincars.Repository, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("car fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	var fixtures []carFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}
	for _, fx := range fixtures {
		rate, err := money.New(fx.BaseNightlyCents, fx.Currency)
		if err != nil {
			logger.Error("fixture invalid", "car_id", fx.ID, "error", err)
			continue
		}
		car := domaincars.Car{
			ID:               domaincars.CarID(fx.ID),
			OwnerID:          fx.OwnerID,
			Title:            fx.Title,
			BaseNightly:      rate,
			WeekendMarkupPct: fx.WeekendMarkupPct,
			ServiceFeePct:    fx.ServiceFeePct,
			RequiresApproval: fx.RequiresApproval,
		}
		if err := car.Validate(); err != nil {
			logger.Error("fixture invalid", "car_id", fx.ID, "error", err)
			continue
		}
		if err := repo.Save(ctx, &car); err != nil {
			logger.Error("cannot store fixture car", "car_id", fx.ID, "error", err)
			continue
		}
		logger.Info("car fixture imported", "car_id", car.ID)
	}
	return nil
}
