package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/platinummonkey/lunchbox/pkg/calendar"
	"github.com/platinummonkey/lunchbox/pkg/offdays"
	"github.com/platinummonkey/lunchbox/pkg/orders"
	"github.com/sirupsen/logrus"
)

type deliveryUpdater interface {
	UpdateDeliveryStatuses(ctx context.Context, today calendar.Date) (orders.DeliveryUpdateResult, error)
}

type closureImporter interface {
	ImportFile(ctx context.Context, path string) (offdays.BulkResult, error)
	SeedHolidays(ctx context.Context, year int) (offdays.BulkResult, error)
}

type jobRunner struct {
	deliveries deliveryUpdater
	closures   closureImporter
	logger     *logrus.Logger
}

func newJobRunner(deliveries deliveryUpdater, closures closureImporter, logger *logrus.Logger) *jobRunner {
	return &jobRunner{deliveries: deliveries, closures: closures, logger: logger}
}

// resolveRunDate parses value, or returns today in UTC when it is empty
func resolveRunDate(value string, now time.Time) (calendar.Date, error) {
	if value == "" {
		return calendar.DateOf(now.UTC()), nil
	}
	return calendar.ParseDate(value)
}

func (r *jobRunner) updateDeliveries(ctx context.Context, date calendar.Date) error {
	r.logger.Infof("Updating delivery statuses for %s", date)

	result, err := r.deliveries.UpdateDeliveryStatuses(ctx, date)

	statuses := make([]string, 0, len(result.ByStatus))
	for status := range result.ByStatus {
		statuses = append(statuses, string(status))
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		r.logger.Infof("  - %s: %d", status, result.ByStatus[orders.DeliveryStatus(status)])
	}

	entry := r.logger.WithFields(logrus.Fields{
		"scanned": result.Scanned,
		"updated": result.Updated,
		"failed":  result.Failed,
	})
	if err != nil {
		entry.Errorf("Delivery status update finished with errors: %v", err)
		return err
	}
	entry.Info("Delivery status update completed")
	return nil
}

func (r *jobRunner) importHolidays(ctx context.Context, path string) {
	result, err := r.closures.ImportFile(ctx, path)
	if err != nil {
		r.logger.Errorf("Failed to import holiday file %s: %v", path, err)
		return
	}
	r.logger.Infof("Imported holiday file %s: %d created, %d already present", path, result.Created, result.Skipped)
}

func (r *jobRunner) seedHolidays(ctx context.Context, year int) error {
	if year < 2000 || year > 2100 {
		return fmt.Errorf("year %d out of range", year)
	}
	result, err := r.closures.SeedHolidays(ctx, year)
	if err != nil {
		return err
	}
	r.logger.Infof("Seeded %d public holidays: %d created, %d already present", year, result.Created, result.Skipped)
	return nil
}
