package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/platinummonkey/lunchbox/pkg/config"
	"github.com/platinummonkey/lunchbox/pkg/notify"
	"github.com/platinummonkey/lunchbox/pkg/observability"
	"github.com/platinummonkey/lunchbox/pkg/offdays"
	"github.com/platinummonkey/lunchbox/pkg/orders"
	"github.com/platinummonkey/lunchbox/pkg/storage"
	"github.com/platinummonkey/lunchbox/pkg/storage/postgres"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// options are the scheduler's command line flags
type options struct {
	dbURL            string
	deliverySchedule string
	holidayFile      string
	seedYear         int
	runOnce          bool
	runDate          string
	logLevel         string
}

// parseOptions reads flags from args. Defaults come from the environment,
// so it must run after the env file is loaded.
func parseOptions(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("lunchbox-scheduler", flag.ContinueOnError)
	fs.StringVar(&opts.dbURL, "db-url", getEnv("LUNCHBOX_POSTGRES_URL", "postgres://localhost/lunchbox?sslmode=disable"), "PostgreSQL connection URL")
	fs.StringVar(&opts.deliverySchedule, "delivery-schedule", getEnv("LUNCHBOX_DELIVERY_CRON", "0 0 * * *"), "Cron schedule for delivery status updates (default: midnight UTC)")
	fs.StringVar(&opts.holidayFile, "holiday-file", getEnv("LUNCHBOX_HOLIDAY_FILE", ""), "YAML closure file to import on start and on every change")
	fs.IntVar(&opts.seedYear, "seed-holidays", 0, "Close every school on the public holidays of this year and exit")
	fs.BoolVar(&opts.runOnce, "run-once", false, "Run the delivery status update once and exit")
	fs.StringVar(&opts.runDate, "date", "", "Date to update statuses for (YYYY-MM-DD). If empty, uses today in UTC. Only used with --run-once")
	fs.StringVar(&opts.logLevel, "log-level", getEnv("LUNCHBOX_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.runDate != "" && !opts.runOnce {
		return options{}, fmt.Errorf("-date requires -run-once")
	}
	return opts, nil
}

func main() {
	envLoaded, err := config.LoadEnvFile("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "lunchbox-scheduler: %v\n", err)
		os.Exit(1)
	}
	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "lunchbox-scheduler: %v\n", err)
		os.Exit(2)
	}

	logger := setupLogger(opts.logLevel)
	if envLoaded {
		logger.Debug("Loaded environment file")
	}
	serviceLogger := observability.NewLogger(observability.ParseLogLevel(opts.logLevel), os.Stdout).
		WithField("service", "lunchbox-scheduler")

	storageCfg := storage.DefaultConfig()
	storageCfg.PostgresURL = opts.dbURL
	conn, err := postgres.NewConnectionManager(storageCfg, serviceLogger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := postgres.EnsureSchema(ctx, conn.DB()); err != nil {
		logger.Fatalf("Failed to ensure schema: %v", err)
	}

	offDayService := offdays.NewService(offdays.NewPostgresStore(conn.DB()), storageCfg.OffDayCacheSize, storageCfg.OffDayCacheTTL, serviceLogger, nil)
	orderService := orders.NewService(orders.NewPostgresStore(conn.DB()), offDayService, notify.NewLogMailer(serviceLogger), serviceLogger, nil)
	runner := newJobRunner(orderService, offDayService, logger)

	if opts.seedYear != 0 {
		if err := runner.seedHolidays(ctx, opts.seedYear); err != nil {
			logger.Fatalf("Holiday seeding failed: %v", err)
		}
		return
	}

	// Run once mode (for backfilling or testing)
	if opts.runOnce {
		date, err := resolveRunDate(opts.runDate, time.Now())
		if err != nil {
			logger.Fatalf("Invalid date: %v", err)
		}
		if err := runner.updateDeliveries(ctx, date); err != nil {
			logger.Fatalf("Delivery status update failed: %v", err)
		}
		return
	}

	if opts.holidayFile != "" {
		runner.importHolidays(ctx, opts.holidayFile)
		go func() {
			if err := watchHolidayFile(ctx, opts.holidayFile, logger, func() {
				runner.importHolidays(ctx, opts.holidayFile)
			}); err != nil {
				logger.Errorf("Holiday file watcher stopped: %v", err)
			}
		}()
	}

	c := cron.New(cron.WithLocation(time.UTC))
	_, err = c.AddFunc(opts.deliverySchedule, func() {
		defer observability.RecoverPanic(serviceLogger, "delivery status job")

		date, _ := resolveRunDate("", time.Now())
		if err := runner.updateDeliveries(ctx, date); err != nil {
			logger.Errorf("Delivery status update failed: %v", err)
		}
	})
	if err != nil {
		logger.Fatalf("Failed to schedule delivery status updates: %v", err)
	}

	c.Start()
	logger.Info("Lunchbox scheduler started")
	logger.Infof("Delivery status schedule: %s (UTC)", opts.deliverySchedule)

	// Wait for termination signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	logger.Info("Shutting down gracefully...")

	// Wait for a running job to finish
	stopCtx := c.Stop()
	<-stopCtx.Done()
	cancel()

	logger.Info("Scheduler stopped")
}

func setupLogger(logLevel string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
