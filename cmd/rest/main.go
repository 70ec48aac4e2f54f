package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"mediahub-be/internal/bootstrap"
	"mediahub-be/internal/config"
	"mediahub-be/internal/server"
	"mediahub-be/internal/tracer"

	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(cfg)
	if err != nil {
		log.Fatalf("Unable to bootstrap: %v", err)
	}
	defer func() {
		if err := container.Close(); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	shutdownTracer := tracer.InitTracer(ctx, cfg.Telemetry, container.Logger)
	defer func() { _ = shutdownTracer(context.Background()) }()

	// 3. Start Background Services
	if err := container.ConsumerService.Consume(ctx); err != nil {
		log.Fatalf("Unable to start stats consumer: %v", err)
	}

	srv := server.New(cfg, container)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		container.Manager.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return srv.Run()
	})
	g.Go(func() error {
		<-gctx.Done()
		container.Logger.Info("Main", "Shutting down", nil)
		return srv.Shutdown()
	})

	if err := g.Wait(); err != nil {
		container.Logger.Error("Main", "Server stopped with error", map[string]interface{}{"error": err.Error()})
	}
}
