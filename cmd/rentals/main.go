package main

import (
	"github.com/joho/godotenv"

	accounthandler "vrent/internal/accounts/handler"
	accountrepo "vrent/internal/accounts/repository"
	accountservice "vrent/internal/accounts/service"
	accountvalidator "vrent/internal/accounts/validator"
	rentalhandler "vrent/internal/rentals/handler"
	rentalrepo "vrent/internal/rentals/repository"
	rentalservice "vrent/internal/rentals/service"
	rentalvalidator "vrent/internal/rentals/validator"
	vehiclehandler "vrent/internal/vehicles/handler"
	vehiclerepo "vrent/internal/vehicles/repository"
	vehicleservice "vrent/internal/vehicles/service"
	vehiclevalidator "vrent/internal/vehicles/validator"
	"vrent/pkg/app"
	"vrent/pkg/config"
	"vrent/pkg/contracts"
	"vrent/pkg/kafka"
	kafka_config "vrent/pkg/kafka/config"
	kafkamiddleware "vrent/pkg/kafka/middleware"
)

const ServiceName = "rentals"

func main() {
	_ = godotenv.Load()

	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting Rentals service")

	producer := initProducer(cfg)
	defer func() {
		if producer != nil {
			if err := producer.Close(); err != nil {
				cfg.Log.Warn("Failed to close Kafka producer", "error", err)
			}
		}
	}()

	handlers := initServices(cfg, producer)
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handlers...)
	serverApp.Run()
}

// initProducer builds the rental-events producer. The service stays up
// without a broker; events are best-effort and a nil producer downgrades
// publishing to a no-op.
func initProducer(cfg *config.Config) *kafka.Producer {
	kafkaCfg := kafka_config.Load()
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	producer, err := kafka.NewProducer(kafkaCfg, kafkaCfg.RentalEventsTopic, kafkaCfg.RentalEventsDLQ)
	if err != nil {
		cfg.Log.Warn("Kafka producer unavailable, rental events disabled", "error", err)
		return nil
	}

	if kafkaCfg.EnableMiddleware {
		producer.Use(kafkamiddleware.LoggingProducerMiddleware(cfg.Log))
		producer.Use(kafkamiddleware.MetricsProducerMiddleware())
	}
	return producer
}

func initServices(cfg *config.Config, producer *kafka.Producer) []contracts.Handler {
	rentalRepository := rentalrepo.NewMongoRentalRepository(cfg)
	rentalLockRepository := rentalrepo.NewRentalLockRepository(cfg)

	accountService := accountservice.NewAccountService(
		accountrepo.NewMongoAccountRepository(cfg),
		rentalRepository,
		accountvalidator.NewAccountValidator(cfg.Log),
		cfg,
	)

	vehicleService := vehicleservice.NewVehicleService(
		vehiclerepo.NewMongoVehicleRepository(cfg),
		rentalRepository,
		vehiclevalidator.NewVehicleValidator(cfg.Log),
		cfg,
	)

	events := rentalservice.NewNoopEventPublisher()
	if producer != nil {
		events = rentalservice.NewKafkaEventPublisher(producer, cfg.Log)
	}

	rentalService := rentalservice.NewRentalService(
		rentalRepository,
		rentalLockRepository,
		vehicleService,
		events,
		rentalvalidator.NewRentalValidator(cfg.Log),
		cfg,
	)

	cfg.Log.Info("Rental services initialized", "database", cfg.MongoDatabaseName)

	return []contracts.Handler{
		accounthandler.NewAccountHandler(accountService, cfg.Log),
		vehiclehandler.NewVehicleHandler(vehicleService, cfg.Log),
		rentalhandler.NewRentalHandler(rentalService, cfg.Log),
	}
}
