package main

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/ims-weather/internal/api/http"
	"github.com/i474232898/ims-weather/internal/common"
	"github.com/i474232898/ims-weather/internal/scheduler"
	"github.com/i474232898/ims-weather/internal/store"
	"github.com/i474232898/ims-weather/internal/weather"
)

// jobTimeout bounds a single scheduled run; a full-year temperature update is
// the slowest.
const jobTimeout = 2 * time.Hour

func (a *app) serveCmd() *cobra.Command {
	var withSchedule bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the summaries, the charts and the metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			summaries := store.NewSummaryStore()
			if err := summaries.Reload(a.cfg.DataDir); err != nil {
				a.logger.Warn("starting without summaries", zap.Error(err))
			}
			if withSchedule {
				sched, err := a.startScheduler(a.service(summaries))
				if err != nil {
					return err
				}
				defer sched.Stop()
			}
			return a.listen(cmd.Context(), summaries)
		},
	}
	cmd.Flags().BoolVar(&withSchedule, "schedule", false, "also run the scheduled jobs")
	return cmd
}

func (a *app) scheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the collection and aggregation jobs on their cron schedules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sched, err := a.startScheduler(a.service(nil))
			if err != nil {
				return err
			}
			<-cmd.Context().Done()
			sched.Stop()
			return nil
		},
	}
}

func (a *app) startScheduler(svc *weather.Service) (*scheduler.Scheduler, error) {
	sched := scheduler.New(svc, a.cfg.Schedules, common.Israel, jobTimeout, a.logger)
	if err := sched.Start(); err != nil {
		return nil, err
	}
	return sched, nil
}

func (a *app) listen(ctx context.Context, summaries httpapi.Summaries) error {
	app := fiber.New(fiber.Config{
		AppName:               "ims-weather",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{AllowMethods: "GET,HEAD"}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "ims-weather",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	httpapi.RegisterRoutes(app, summaries)

	// Charts rendered by the plot jobs.
	app.Static("/", a.cfg.DocsDir)

	errc := make(chan error, 1)
	go func() {
		a.logger.Info("listening", zap.String("port", a.cfg.Port))
		errc <- app.Listen(":" + a.cfg.Port)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		a.logger.Error("error during shutdown", zap.Error(err))
	}
	return nil
}
