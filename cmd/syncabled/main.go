package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"

	"github.com/syncable/syncable/internal/config"
	"github.com/syncable/syncable/internal/domain"
	"github.com/syncable/syncable/internal/infra/database"
	"github.com/syncable/syncable/internal/infra/repository"
	"github.com/syncable/syncable/internal/present/ws"
	"github.com/syncable/syncable/internal/service"
	"github.com/syncable/syncable/internal/usecase"
)

func main() {
	configPath := flag.String("c", "config.yaml", "path to config file")
	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		slog.Error(
			"Failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if conf.Server.EnableTrace {
		shutdown, err := setupTracer(ctx, conf.Server.TraceEndpoint)
		if err != nil {
			slog.Error(
				"Failed to set up tracing",
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
		defer shutdown(context.Background())
	}

	domainConf := domain.Config{
		NodeID:           conf.Server.NodeID,
		ValidateOnCreate: conf.Validation.ValidateOnCreate,
		ValidateOnUpdate: conf.Validation.ValidateOnUpdate,
		SendBuffer:       conf.Limits.SendBuffer,
		MaxMessageBytes:  conf.Limits.MaxMessageBytes,
	}

	docRepo := repository.NewDocumentRepository()
	userRepo := repository.NewUserRepository()
	subRepo := repository.NewSubscriptionRepository()

	validator := service.NewValidatorService()
	notifier := service.NewNotificationService(userRepo, docRepo, subRepo)

	docUC := usecase.NewDocumentUsecase(docRepo, subRepo, validator, domainConf)
	userUC := usecase.NewUserUsecase(userRepo, subRepo)
	subUC := usecase.NewSubscriptionUsecase(subRepo, docRepo)

	var signalService *service.SignalService
	if conf.Server.RedisAddr != "" {
		rdb := database.NewRedis(conf.Server.RedisAddr, "", conf.Server.RedisDB)
		signalService = service.NewSignalService(rdb, conf.Server.NodeID)
		go signalService.Listen(ctx, func(ctx context.Context, ev service.ChangeEvent) {
			notifier.Notify(ctx, ev.DocumentID, ev.DocumentName, ev.Changes)
		})
		slog.Info(
			"Change signal bridge enabled",
			slog.String("redis", conf.Server.RedisAddr),
			slog.String("node", conf.Server.NodeID),
			slog.String("module", "main"),
		)
	}

	controller := ws.NewController(userUC, docUC, subUC, notifier, signalService)
	handler := ws.NewHandler(domainConf, controller)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	handler.RegisterRoutes(e)

	go func() {
		if err := e.Start(conf.Server.ListenAddr); err != nil && err != http.ErrServerClosed {
			slog.Error(
				"Server stopped",
				slog.String("error", err.Error()),
				slog.String("module", "main"),
			)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error(
			"Shutdown failed",
			slog.String("error", err.Error()),
			slog.String("module", "main"),
		)
	}
}

func setupTracer(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName("syncabled"),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
