package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	sweeperconfig "clinicbook/internal/config"
	slotsrepo "clinicbook/internal/slots/repository"
	"clinicbook/internal/slots/reservation"
	slotsservice "clinicbook/internal/slots/service"
	slotsvalidator "clinicbook/internal/slots/validator"
	"clinicbook/internal/sweeper"
	"clinicbook/pkg/config"
	"clinicbook/pkg/kafka"
	kafkaconfig "clinicbook/pkg/kafka/config"
	kafkamiddleware "clinicbook/pkg/kafka/middleware"
)

const ServiceName = "sweeper"

func main() {
	cfg := config.Load(ServiceName)
	if cfg.StoreDriver == config.StoreMemory {
		cfg.Log.Fatal("Sweeper needs a shared store; STORE_DRIVER=memory is not supported")
	}
	cfg.Connect()
	svcCfg := sweeperconfig.LoadSweeper(config.NewViper(), cfg.OccupancyTopic)

	cfg.Log.Info("Starting Sweeper service",
		"claim_ttl", cfg.ClaimTTL,
		"schedule", cfg.SweepSchedule,
		"group_id", svcCfg.GroupID,
	)

	sw := sweeper.New(
		sweeper.NewRedisLedger(cfg.Client.Redis),
		initSlots(cfg),
		cfg.ClaimTTL,
		cfg.Log,
	)

	kcfg, err := kafkaconfig.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid kafka configuration", "error", err)
	}
	consumer, err := kafka.NewConsumer(kcfg, cfg.Log, cfg.OccupancyTopic, svcCfg.GroupID, svcCfg.DLQTopic, sw.HandleMessage)
	if err != nil {
		cfg.Log.Fatal("Failed to create kafka consumer", "error", err)
	}
	consumer.Use(kafkamiddleware.LoggingConsumerMiddleware(cfg.Log))

	scheduler := cron.New(cron.WithLogger(sweeper.CronLogger(cfg.Log)))
	if _, err := sw.Schedule(scheduler, cfg.SweepSchedule); err != nil {
		cfg.Log.Fatal("Invalid sweep schedule", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if svcCfg.RunOnStart {
		if released, err := sw.Sweep(ctx); err != nil {
			cfg.Log.Error("Initial sweep failed", "released", released, "error", err)
		} else {
			cfg.Log.Info("Initial sweep completed", "released", released)
		}
	}

	scheduler.Start()

	consumerErr := make(chan error, 1)
	go func() {
		consumerErr <- consumer.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		cfg.Log.Info("Shutdown signal received")
	case err := <-consumerErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			cfg.Log.Error("Kafka consumer stopped", "error", err)
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		cfg.Log.Warn("Sweep still running at shutdown")
	}
	if err := consumer.Close(); err != nil {
		cfg.Log.Error("Failed to close kafka consumer", "error", err)
	}
	cfg.GracefulShutdown(shutdownCtx)
}

func initSlots(cfg *config.Config) sweeper.SlotReleaser {
	var repo slotsrepo.SlotRepository
	switch cfg.StoreDriver {
	case config.StoreFirestore:
		repo = slotsrepo.NewFirestoreSlotRepository(cfg)
	default:
		repo = slotsrepo.NewMongoSlotRepository(cfg)
	}

	return slotsservice.NewSlotService(
		repo,
		reservation.NewReserver(repo, nil, cfg.Log),
		slotsvalidator.NewSlotValidator(cfg.Log),
		cfg,
	)
}
