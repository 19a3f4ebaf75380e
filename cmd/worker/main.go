package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/pharmacy-api/internal/app"
	"github.com/jwalitptl/pharmacy-api/internal/config"
	"github.com/jwalitptl/pharmacy-api/internal/handler/health"
	"github.com/jwalitptl/pharmacy-api/internal/repository/postgres"
	auditService "github.com/jwalitptl/pharmacy-api/internal/service/audit"
	"github.com/jwalitptl/pharmacy-api/internal/service/notification"
	"github.com/jwalitptl/pharmacy-api/internal/worker"
	"github.com/jwalitptl/pharmacy-api/pkg/messaging"
	"github.com/jwalitptl/pharmacy-api/pkg/messaging/rabbitmq"
	"github.com/jwalitptl/pharmacy-api/pkg/messaging/redis"
	outbox "github.com/jwalitptl/pharmacy-api/pkg/worker"
)

const serviceName = "pharmacy-worker"

func main() {
	var (
		configPath string
		healthPort int
	)

	root := &cobra.Command{
		Use:   serviceName,
		Short: "Publishes outbox events, sends notifications and purges old audit entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath, healthPort)
		},
		SilenceUsage: true,
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	root.Flags().IntVar(&healthPort, "health-port", 8081, "port for health and metrics endpoints")

	ctx, stop := app.SignalContext(context.Background())
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newBroker(ctx context.Context, cfg config.MessagingConfig, outboxCfg config.OutboxConfig, zl zerolog.Logger) (messaging.Broker, error) {
	switch strings.ToLower(cfg.Driver) {
	case "redis":
		return redis.NewRedisBroker(ctx, redis.Config{
			URL:           cfg.URL,
			ChannelPrefix: cfg.ChannelPrefix,
			MaxRetries:    3,
			RetryBackoff:  outboxCfg.RetryBackoff,
		}, zl)
	case "rabbitmq":
		return rabbitmq.NewBroker(rabbitmq.Config{
			URL:         cfg.URL,
			Exchange:    cfg.Exchange,
			QueuePrefix: cfg.QueuePrefix,
		}, zl)
	case "memory":
		return messaging.NewMemoryBroker(), nil
	default:
		return nil, fmt.Errorf("unsupported messaging driver %q", cfg.Driver)
	}
}

func run(ctx context.Context, configPath string, healthPort int) error {
	rt, err := app.Bootstrap(ctx, configPath, serviceName)
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())
	cfg := rt.Config

	broker, err := newBroker(ctx, cfg.Messaging, cfg.Outbox, *rt.Logger.Zerolog())
	if err != nil {
		return fmt.Errorf("failed to create message broker: %w", err)
	}
	defer broker.Close()

	base := postgres.NewBaseRepository(rt.DB)

	processor, err := outbox.NewOutboxProcessor(
		postgres.NewOutboxRepository(base),
		broker,
		outbox.OutboxProcessorConfig{
			BatchSize:    cfg.Outbox.BatchSize,
			PollInterval: cfg.Outbox.PollInterval,
			MaxRetries:   cfg.Outbox.MaxRetries,
			RetryBackoff: cfg.Outbox.RetryBackoff,
			Lease:        cfg.Outbox.Lease,
			Retention:    cfg.Outbox.Retention,
		},
		rt.Logger.WithFields(map[string]interface{}{"component": "outbox"}),
		rt.Metrics,
	)
	if err != nil {
		return err
	}

	if cfg.SMTP.Enabled() {
		mailer := notification.NewDialer(notification.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
		if strings.EqualFold(cfg.Messaging.Driver, "redis") {
			rt.Logger.Warn("Redis pub/sub does not redeliver, emails whose send fails are not retried; use the rabbitmq driver for guaranteed delivery")
		}
		notifier := notification.NewService(mailer, cfg.SMTP.From, rt.Metrics.NotificationsSent)
		if err := notifier.Subscribe(rt.Logger.WithContext(ctx), broker); err != nil {
			return err
		}
	} else {
		rt.Logger.Warn("SMTP not configured, notifications disabled")
	}

	cleanup := worker.NewAuditCleanupWorker(
		auditService.NewService(postgres.NewAuditRepository(base)),
		cfg.Audit.RetentionDays,
		cfg.Audit.CleanupInterval,
		rt.Metrics.AuditLogsPurged,
		rt.Logger.WithFields(map[string]interface{}{"component": "audit_cleanup"}),
	)

	srv := healthServer(healthPort, health.NewHandler(rt.DB, rt.Registry))
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.Logger.Error(err, "Health server failed")
		}
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		cleanup.Start(ctx)
	}()

	rt.Logger.Info("Worker started", "driver", cfg.Messaging.Driver)
	<-ctx.Done()
	rt.Logger.Info("Shutting down worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	wg.Wait()
	return nil
}

func healthServer(port int, h *health.Handler) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	h.RegisterRoutes(&engine.RouterGroup)
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
