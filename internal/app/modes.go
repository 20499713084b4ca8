package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/brokerage/internal/server"
	"github.com/alanyoungcy/brokerage/internal/server/handler"
	"github.com/alanyoungcy/brokerage/internal/server/ws"
	"github.com/alanyoungcy/brokerage/internal/service"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// ServerMode serves the HTTP API (and the /ws order stream when Redis is
// enabled) until ctx is cancelled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, []string{service.OrderEventsChannel}, a.logger)
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, a.handlers(deps), deps.RateLimiter, hub, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}

// handlers builds the REST handlers. Admin routes are registered only when
// an API key is configured.
func (a *App) handlers(deps *Dependencies) server.Handlers {
	checks := map[string]handler.Checker{"postgres": deps.Postgres}
	if deps.Redis != nil {
		checks["redis"] = deps.Redis
	}
	if deps.S3 != nil {
		checks["s3"] = deps.S3
	}

	h := server.Handlers{
		Health:      handler.NewHealthHandler(checks, a.logger),
		Orders:      handler.NewOrderHandler(deps.Orders, a.logger),
		Portfolios:  handler.NewPortfolioHandler(deps.Portfolios, a.logger),
		Instruments: handler.NewInstrumentHandler(deps.Instruments, a.logger),
	}

	if a.cfg.Server.APIKey != "" {
		h.Admin = handler.NewAdminHandler(deps.Archiver, deps.BlobReader, deps.AuditStore, a.logger)
	} else {
		a.logger.Warn("server.api_key is empty; admin routes disabled")
	}
	return h
}

// ArchiveMode exports terminal orders older than the retention window to
// object storage once and exits.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	if deps.Archiver == nil {
		return fmt.Errorf("archive mode: s3 is not enabled")
	}

	before := time.Now().UTC().AddDate(0, 0, -a.cfg.Archive.RetentionDays)
	a.logger.InfoContext(ctx, "starting archive mode",
		slog.Time("before", before),
		slog.Int("retention_days", a.cfg.Archive.RetentionDays),
	)

	n, err := deps.Archiver.ArchiveOrders(ctx, before)
	if err != nil {
		return fmt.Errorf("archive mode: %w", err)
	}

	a.logger.InfoContext(ctx, "archive complete", slog.Int64("orders", n))
	return nil
}
