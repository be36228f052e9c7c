package async

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/platinummonkey/lunchbox/pkg/observability"
	"golang.org/x/sync/errgroup"
)

// SafeGo executes a function in a goroutine with:
// - Context cancellation support
// - Panic recovery
// - Timeout enforcement
// - Error logging
//
// Use this instead of bare `go func()` for fire-and-forget work that must
// not crash the process, such as confirmation emails.
//
// Example:
//
//	async.SafeGo(context.WithoutCancel(ctx), logger, 30*time.Second, "order confirmation", func(ctx context.Context) error {
//	    return notifier.OrderPaid(ctx, orderID)
//	})
func SafeGo(parentCtx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer observability.RecoverPanic(logger, taskName)

		if err := fn(ctx); err != nil {
			logger.WithError(err).WithField("task", taskName).Error("Background task failed")
		}
	}()
}

// Batch processes items concurrently with at most workers goroutines and a
// per-item timeout. Unlike a plain errgroup it does not stop at the first
// failure: every item is attempted and all errors are returned. Items not
// yet started when ctx is cancelled are skipped and reported once.
//
// Example:
//
//	errs := async.Batch(ctx, updates, 4, "delivery status", 10*time.Second, func(ctx context.Context, u Update) error {
//	    return store.SetDeliveryStatus(ctx, u.OrderID, u.Status)
//	})
func Batch[T any](ctx context.Context, items []T, workers int, taskName string, timeout time.Duration,
	fn func(context.Context, T) error) []error {

	if workers < 1 {
		workers = 1
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	record := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	g := new(errgroup.Group)
	g.SetLimit(workers)

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			record(fmt.Errorf("%s: %w", taskName, err))
			break
		}
		item := item
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					record(fmt.Errorf("%s: panic: %v", taskName, r))
				}
			}()

			itemCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			if err := fn(itemCtx, item); err != nil {
				record(err)
			}
			return nil
		})
	}

	_ = g.Wait()
	return errs
}
