package main

import (
	"context"

	bookinghandler "clinicbook/internal/booking/handler"
	"clinicbook/internal/booking/reference"
	bookingrepo "clinicbook/internal/booking/repository"
	bookingservice "clinicbook/internal/booking/service"
	bookingvalidator "clinicbook/internal/booking/validator"
	"clinicbook/internal/slots/events"
	slotshandler "clinicbook/internal/slots/handler"
	slotsrepo "clinicbook/internal/slots/repository"
	"clinicbook/internal/slots/reservation"
	slotsservice "clinicbook/internal/slots/service"
	slotsvalidator "clinicbook/internal/slots/validator"
	visitsrepo "clinicbook/internal/visits/repository"
	visitsservice "clinicbook/internal/visits/service"
	"clinicbook/pkg/app"
	"clinicbook/pkg/config"
	"clinicbook/pkg/kafka"
	kafkaconfig "clinicbook/pkg/kafka/config"
	kafkamiddleware "clinicbook/pkg/kafka/middleware"
	"clinicbook/pkg/sealer"
)

const ServiceName = "booking"

type stores struct {
	slots   slotsrepo.SlotRepository
	catalog reference.Catalog
	visits  visitsrepo.VisitRepository
}

func main() {
	cfg := config.Load(ServiceName)
	cfg.Connect()

	cfg.Log.Info("Starting Booking service", "store", cfg.StoreDriver)
	serverApp := app.NewApplication(cfg)

	publisher := initPublisher(cfg, serverApp)
	st := initStores(cfg)

	slotService := slotsservice.NewSlotService(
		st.slots,
		reservation.NewReserver(st.slots, publisher, cfg.Log),
		slotsvalidator.NewSlotValidator(cfg.Log),
		cfg,
	)
	visitService := visitsservice.NewVisitService(st.visits, cfg)
	bookingService := bookingservice.NewBookingService(
		initSessions(cfg),
		st.catalog,
		slotService,
		visitService,
		bookingvalidator.NewAnswerValidator(cfg.Log),
		cfg,
	)

	cursorSealer, err := sealer.New(cfg.CursorKey)
	if err != nil {
		cfg.Log.Fatal("Invalid cursor key", "error", err)
	}

	auth, err := app.NewAuthenticator(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to initialise authenticator", "error", err)
	}

	serverApp.SetApp(auth, app.BackendChecks(cfg.Client),
		slotshandler.NewSlotHandler(slotService, cursorSealer, cfg.Log),
		bookinghandler.NewBookingHandler(bookingService, cfg.Log).
			WithSubmitMiddleware(serverApp.Idempotency()),
	)
	serverApp.Run()
}

func initStores(cfg *config.Config) stores {
	var st stores
	switch cfg.StoreDriver {
	case config.StoreMongo:
		st.slots = slotsrepo.NewMongoSlotRepository(cfg)
		st.catalog = reference.NewMongoCatalog(cfg)
		st.visits = visitsrepo.NewMongoVisitRepository(cfg)
	case config.StoreFirestore:
		st.slots = slotsrepo.NewFirestoreSlotRepository(cfg)
		st.catalog = reference.NewFirestoreCatalog(cfg)
		st.visits = visitsrepo.NewFirestoreVisitRepository(cfg)
	default:
		cfg.Log.Warn("Using in-memory stores; data is lost on restart")
		st.slots = slotsrepo.NewMemorySlotRepository()
		st.catalog = reference.NewMemoryCatalog()
		st.visits = visitsrepo.NewMemoryVisitRepository(st.slots)
	}

	st.catalog = reference.NewCachedCatalog(st.catalog, cfg.ReferenceCacheSize, cfg.ReferenceCacheTTL)
	cfg.Log.Info("Stores initialized", "driver", cfg.StoreDriver, "database", cfg.MongoDatabaseName)
	return st
}

func initSessions(cfg *config.Config) bookingrepo.SessionRepository {
	if cfg.Client.Redis != nil {
		return bookingrepo.NewRedisSessionRepository(cfg.Client.Redis, cfg.SessionTTL)
	}
	return bookingrepo.NewMemorySessionRepository(cfg.SessionTTL)
}

// initPublisher returns a nil publisher when events are off; the reserver
// treats that as no-op.
func initPublisher(cfg *config.Config, serverApp *app.Application) events.Publisher {
	if !cfg.EventsEnabled {
		return nil
	}

	kcfg, err := kafkaconfig.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid kafka configuration", "error", err)
	}
	producer, err := kafka.NewProducer(kcfg, cfg.Log, cfg.OccupancyTopic, "")
	if err != nil {
		cfg.Log.Fatal("Failed to create kafka producer", "error", err)
	}
	producer.Use(kafkamiddleware.LoggingProducerMiddleware(cfg.Log))

	serverApp.OnShutdown(func(context.Context) {
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close kafka producer", "error", err)
		}
	})
	return events.NewKafkaPublisher(producer)
}
