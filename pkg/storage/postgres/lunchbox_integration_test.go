//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/platinummonkey/lunchbox/pkg/accounts"
	"github.com/platinummonkey/lunchbox/pkg/auth"
	"github.com/platinummonkey/lunchbox/pkg/billing"
	"github.com/platinummonkey/lunchbox/pkg/calendar"
	"github.com/platinummonkey/lunchbox/pkg/notify"
	"github.com/platinummonkey/lunchbox/pkg/observability"
	"github.com/platinummonkey/lunchbox/pkg/offdays"
	"github.com/platinummonkey/lunchbox/pkg/orders"
	"github.com/platinummonkey/lunchbox/pkg/pricing"
	"github.com/platinummonkey/lunchbox/pkg/storage/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const webhookSecret = "whsec_integration"

func setupPostgresTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("lunchbox_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	require.NoError(t, db.Ping())
	require.NoError(t, postgres.EnsureSchema(ctx, db))
	// a second run must be a no-op
	require.NoError(t, postgres.EnsureSchema(ctx, db))

	t.Cleanup(func() {
		db.Close()
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})
	return db
}

type sessionProvider struct {
	mu sync.Mutex
	n  int
}

func (p *sessionProvider) CreateCustomer(ctx context.Context, params billing.CustomerParams) (string, error) {
	return "cus_integration", nil
}

func (p *sessionProvider) CreateCheckoutSession(ctx context.Context, params billing.CheckoutSessionParams) (*billing.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n++
	id := fmt.Sprintf("cs_integration_%d", p.n)
	return &billing.CheckoutSession{ID: id, URL: "https://checkout.example/" + id}, nil
}

type recordingMailer struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (m *recordingMailer) Send(ctx context.Context, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *recordingMailer) templates() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, msg := range m.messages {
		out = append(out, msg.Template)
	}
	return out
}

func TestLunchboxFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := setupPostgresTestDB(t)
	ctx := context.Background()
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	mailer := &recordingMailer{}

	accountStore := accounts.NewStore(db)
	offDayService := offdays.NewService(offdays.NewPostgresStore(db), 0, 0, logger, nil)
	orderService := orders.NewService(orders.NewPostgresStore(db), offDayService, mailer, logger, nil)
	billingService := billing.NewService(
		billing.NewPostgresStore(db), accountStore, &sessionProvider{},
		billing.Config{WebhookSecret: webhookSecret, WebhookTolerance: billing.DefaultSignatureTolerance, AppBaseURL: "https://lunchbox.example"},
		logger,
		billing.WithNotifier(orderService),
		billing.WithAccessNotifier(notify.NewAccessNotifier(accountStore, mailer)),
	)

	account, err := accountStore.Upsert(ctx, &auth.Identity{
		Subject: "oidc|parent-1", Email: "an@example.com", GivenName: "An", FamilyName: "Peeters",
	})
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `INSERT INTO schools (id, name) VALUES ('school-1', 'De Regenboog')`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx,
		`INSERT INTO children (id, parent_id, school_id, first_name, last_name) VALUES ('child-1', $1, 'school-1', 'Lucas', 'Peeters')`,
		account.ID)
	require.NoError(t, err)

	// Close Tuesday 7 January 2025; inserting it twice skips the duplicate
	result, err := offDayService.BulkCreate(ctx, offdays.BulkRequest{
		StartDate: "2025-01-07", EndDate: "2025-01-07", SchoolIDs: []string{"school-1"}, Reason: "Pedagogische studiedag",
	})
	require.NoError(t, err)
	assert.Equal(t, offdays.BulkResult{Created: 1}, result)
	result, err = offDayService.BulkCreate(ctx, offdays.BulkRequest{
		StartDate: "2025-01-06", EndDate: "2025-01-07", SchoolIDs: []string{"school-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, offdays.BulkResult{Created: 1, Skipped: 1}, result)

	closed, err := offDayService.ListClosedDates(ctx, "school-1", "2025-01-06", "2025-01-12")
	require.NoError(t, err)
	assert.Len(t, closed, 5) // Mon, Tue, Wed, Sat, Sun

	t.Run("order checkout", func(t *testing.T) {
		order, err := orderService.Create(ctx, account.ID, orders.CreateRequest{
			ChildID:     "child-1",
			OrderType:   string(pricing.OrderTypeWeek),
			StartDate:   "2025-01-06",
			Preferences: orders.Preferences{BreadType: orders.BreadType("white"), Crust: true},
		})
		require.NoError(t, err)
		rate, err := pricing.DailyRateCents(pricing.OrderTypeWeek)
		require.NoError(t, err)
		assert.Equal(t, 2, order.BillableDays) // Thursday and Friday
		assert.Equal(t, 2*rate, order.PriceCents)

		session, err := billingService.CreateOrderCheckout(ctx, account.ID, orders.CheckoutItem(order))
		require.NoError(t, err)

		payment, err := billingService.ConfirmCheckout(ctx, account.ID, session.ID, billing.OutcomeSuccess)
		require.NoError(t, err)
		assert.Equal(t, billing.PaymentStatusPaid, payment.Status)

		stored, err := orderService.Get(ctx, account.ID, order.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.PaymentStatusPaid, stored.PaymentStatus)

		assert.Eventually(t, func() bool {
			for _, tmpl := range mailer.templates() {
				if tmpl == notify.TemplateOrderConfirmation {
					return true
				}
			}
			return false
		}, 5*time.Second, 50*time.Millisecond)

		// another parent cannot settle this session
		_, err = billingService.ConfirmCheckout(ctx, "someone-else", session.ID, billing.OutcomeCancel)
		assert.Error(t, err)
	})

	t.Run("access fee webhook", func(t *testing.T) {
		session, err := billingService.CreateAccessFeeCheckout(ctx, account.ID)
		require.NoError(t, err)

		payload := []byte(fmt.Sprintf(`{
			"id": "evt_integration_1",
			"type": "checkout.session.completed",
			"created": %d,
			"data": {"object": {"id": %q, "payment_intent": "pi_integration_1"}}
		}`, time.Now().Unix(), session.ID))
		signature := billing.SignPayload(payload, webhookSecret, time.Now())

		res, err := billingService.HandleWebhook(ctx, payload, signature)
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, billing.PaymentStatusPaid, res.Status)

		refreshed, err := accountStore.GetByID(ctx, account.ID)
		require.NoError(t, err)
		require.NotNil(t, refreshed.AccessExpiresAt)
		assert.True(t, refreshed.AccessExpiresAt.After(calendar.Today(time.Now())))

		var events int
		require.NoError(t, db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM payment_events WHERE event_id = 'evt_integration_1'`).Scan(&events))
		assert.Equal(t, 1, events)

		// a redelivery is applied idempotently
		res, err = billingService.HandleWebhook(ctx, payload, billing.SignPayload(payload, webhookSecret, time.Now()))
		require.NoError(t, err)
		assert.True(t, res.Success)
	})
}
