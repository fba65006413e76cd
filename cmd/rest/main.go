package main

import (
	"context"
	"log"

	"lingua-exchange-be/internal/bootstrap"
	"lingua-exchange-be/internal/config"
	"lingua-exchange-be/internal/server"
	"lingua-exchange-be/internal/tracer"
	"lingua-exchange-be/pkg/database"
)

func main() {
	// 0. Initialize Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)

	// 4. Start Background Services
	go func() {
		log.Println("Background: Starting Webhook Consumer...")
		if err := container.WebhookService.Consume(context.Background()); err != nil {
			log.Printf("Background Webhook Consumer Error: %v", err)
		}
	}()

	if err := container.SweepScheduler.Start(); err != nil {
		log.Panicf("Unable to start sweep scheduler: %v", err)
	}
	defer container.SweepScheduler.Stop()

	// 5. Initialize Server
	srv := server.New(cfg, container)

	// 6. Run Server
	log.Fatal(srv.Run())
}
