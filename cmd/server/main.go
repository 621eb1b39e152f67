package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/example/froydpay/internal/config"
	"github.com/example/froydpay/internal/database"
	"github.com/example/froydpay/internal/handlers"
	"github.com/example/froydpay/internal/routes"
	"github.com/example/froydpay/internal/services"
)

func main() {
	cfg := config.Load()
	db := database.Connect(cfg.DatabaseURL)

	app := fiber.New(fiber.Config{
		AppName:      "Froydpay Gateway",
		ErrorHandler: handlers.ErrorHandler,
		BodyLimit:    1 << 20,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))

	opts := routes.Options{}
	if cfg.MongoURI != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		client, err := database.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			cancel()
			log.Fatalf("mongo connection failed: %v", err)
		}
		journal, err := services.NewMongoEventJournal(ctx, client.Database(cfg.MongoDatabase))
		cancel()
		if err != nil {
			log.Fatalf("mongo event journal: %v", err)
		}
		opts.Journal = journal
		defer func() {
			_ = client.Disconnect(context.Background())
		}()
	}

	settlement := routes.Register(app, db, cfg, opts)

	if cfg.MockPayments {
		log.Println("[Server] mock payments enabled, stripe intents are simulated")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on :%s", cfg.AppPort)
		if err := app.Listen(":" + cfg.AppPort); err != nil {
			log.Printf("fiber.Listen error: %v", err)
			quit <- syscall.SIGTERM
		}
	}()

	<-quit

	log.Println("Shutting down")
	if err := app.ShutdownWithTimeout(20 * time.Second); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	settlement.Wait()
}
