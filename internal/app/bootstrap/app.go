package bootstrap

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/pharmacy-assistant/internal/api/router"
	"github.com/wolfman30/pharmacy-assistant/internal/appointments"
	"github.com/wolfman30/pharmacy-assistant/internal/chat"
	appconfig "github.com/wolfman30/pharmacy-assistant/internal/config"
	httpmiddleware "github.com/wolfman30/pharmacy-assistant/internal/http/middleware"
	"github.com/wolfman30/pharmacy-assistant/internal/observability/metrics"
	"github.com/wolfman30/pharmacy-assistant/internal/tools"
	"github.com/wolfman30/pharmacy-assistant/pkg/logging"
)

// App is the wired API: its HTTP handler plus the resources to release on shutdown.
type App struct {
	Handler  http.Handler
	Service  *appointments.Service
	Registry *prometheus.Registry
	closers  []func() error
}

// Close releases clients opened by Build.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// Build wires every component from cfg.
func Build(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}
	app := &App{Registry: prometheus.NewRegistry()}
	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewAppointmentMetrics(app.Registry)

	redisClient := BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		app.closers = append(app.closers, redisClient.Close)
	}

	gateway, err := BuildCalendar(ctx, cfg, redisClient, logger)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	audit, err := BuildAuditSink(ctx, cfg, logger)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	loc := cfg.Location()
	app.Service = appointments.NewService(appointments.Deps{
		Calendar: gateway,
		Audit:    audit,
		Notifier: BuildNotifier(cfg, logger),
		Metrics:  m,
		Logger:   logger,
	}, appointments.Options{
		StepMinutes:   cfg.SlotStepMinutes,
		MaxSlots:      cfg.AvailabilityMaxSlots,
		WindowDays:    cfg.AvailabilityWindowDays,
		MaxWindowDays: cfg.AvailabilityMaxWindow,
		Location:      loc,
	})

	completer, err := BuildCompleter(ctx, cfg, logger)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	if completer == nil {
		completer = unavailableCompleter{}
	}
	if c, ok := completer.(io.Closer); ok {
		app.closers = append(app.closers, c.Close)
	}

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	app.closers = append(app.closers, func() error { limiter.Close(); return nil })

	app.Handler = router.New(&router.Config{
		Logger:       logger,
		ToolsHandler: tools.NewHandler(app.Service, m, logger),
		ChatHandler: chat.NewHandler(completer, app.Service, m, logger, chat.HandlerConfig{
			Model:    cfg.ChatModel,
			Location: loc,
		}),
		MetricsHandler:     promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{}),
		RateLimiter:        limiter,
		ToolsJWTSecret:     cfg.ToolsJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})
	return app, nil
}
