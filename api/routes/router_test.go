package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"github.com/talentkonnect/raffle-backend/internal/checkout"
	"github.com/talentkonnect/raffle-backend/internal/credits"
	"github.com/talentkonnect/raffle-backend/internal/ledger"
	"github.com/talentkonnect/raffle-backend/internal/ledger/ledgertest"
	"github.com/talentkonnect/raffle-backend/internal/reconcile"
	stripewebhook "github.com/talentkonnect/raffle-backend/internal/webhooks/stripe"
	"github.com/talentkonnect/raffle-backend/pkg/config"
	"github.com/talentkonnect/raffle-backend/pkg/enums"
	"github.com/talentkonnect/raffle-backend/pkg/logger"
	"github.com/talentkonnect/raffle-backend/pkg/metrics"
	"github.com/talentkonnect/raffle-backend/pkg/redis"
	pkgstripe "github.com/talentkonnect/raffle-backend/pkg/stripe"
)

const adminToken = "admin-secret"

type stubProvider struct {
	sessions map[string]*stripe.CheckoutSession
	events   []*stripe.Event
}

func (p *stubProvider) GetCheckoutSession(_ context.Context, id string) (*stripe.CheckoutSession, error) {
	sess, ok := p.sessions[id]
	if !ok {
		return nil, fmt.Errorf("no such checkout.session: %s", id)
	}
	return sess, nil
}

func (p *stubProvider) ListCompletedCheckoutEvents(context.Context, time.Time, string, int64) (pkgstripe.EventPage, error) {
	return pkgstripe.EventPage{Events: p.events}, nil
}

type stubCreator struct{}

func (stubCreator) CreateCheckoutSession(_ context.Context, req pkgstripe.CheckoutRequest) (*stripe.CheckoutSession, error) {
	return &stripe.CheckoutSession{ID: "cs_new", URL: "https://checkout.stripe.com/c/pay/cs_new"}, nil
}

type testEnv struct {
	handler  http.Handler
	store    *ledger.Store
	registry *prometheus.Registry
}

func testConfig() *config.Config {
	return &config.Config{
		App:       config.AppConfig{Env: "test"},
		Admin:     config.AdminConfig{Token: adminToken, RateLimitWindow: time.Minute, RateLimitPerIP: 100},
		Raffle:    config.RaffleConfig{PricePerEntryCents: 700, SiteURL: "https://raffle.example.com", MaxEntriesPerOrder: 100},
		Reconcile: config.ReconcileConfig{LookbackHours: 72},
		CORS:      config.CORSConfig{Origins: []string{"https://raffle.example.com"}},
		Stripe:    config.StripeConfig{Secret: "whsec_test"},
	}
}

func newTestEnv(t *testing.T, cfg *config.Config, provider reconcile.Provider) testEnv {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "routes-test", Output: io.Discard})
	store, dbClient := ledgertest.NewStore(t)

	mr := miniredis.RunT(t)
	redisClient, err := redis.New(context.Background(), config.RedisConfig{Address: mr.Addr()}, logg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = redisClient.Close() })

	registry := prometheus.NewRegistry()
	creditMetrics := metrics.NewCreditMetrics(registry)

	engine, err := credits.NewEngine(credits.EngineParams{Ledger: store, Logger: logg, Metrics: creditMetrics})
	require.NoError(t, err)
	normalizer, err := credits.NewNormalizer(cfg.Raffle.PricePerEntryCents)
	require.NoError(t, err)
	manual, err := credits.NewManualCrediter(engine, cfg.Raffle.PricePerEntryCents, cfg.Raffle.MaxEntriesPerOrder)
	require.NoError(t, err)
	rec, err := reconcile.NewService(reconcile.ServiceParams{
		Provider:   provider,
		Normalizer: normalizer,
		Engine:     engine,
		Logger:     logg,
		Metrics:    creditMetrics,
		Options:    reconcile.Options{Via: enums.AuditViaAdminReplay},
	})
	require.NoError(t, err)
	checkoutSvc, err := checkout.NewService(stubCreator{}, cfg.Raffle, logg)
	require.NoError(t, err)
	webhookSvc, err := stripewebhook.NewService(stripewebhook.ServiceParams{Normalizer: normalizer, Engine: engine, Logger: logg})
	require.NoError(t, err)
	guard, err := stripewebhook.NewDeliveryGuard(redisClient, time.Hour, "stripe-webhook")
	require.NoError(t, err)

	handler := NewRouter(Deps{
		Config:    cfg,
		Logger:    logg,
		DB:        dbClient,
		Redis:     redisClient,
		Gatherer:  registry,
		HTTP:      metrics.NewHTTPMetrics(registry),
		Ledger:    store,
		Checkout:  checkoutSvc,
		Manual:    manual,
		Reconcile: rec,
		Webhook:   webhookSvc,
		Guard:     guard,
	})
	return testEnv{handler: handler, store: store, registry: registry}
}

func (e testEnv) do(method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.RemoteAddr = "10.0.0.1:1234"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func admin(extra ...string) map[string]string {
	h := map[string]string{"X-Admin-Token": adminToken}
	for i := 0; i+1 < len(extra); i += 2 {
		h[extra[i]] = extra[i+1]
	}
	return h
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope), rec.Body.String())
	require.NoError(t, json.Unmarshal(envelope.Data, dest))
}

func TestHealthRoutes(t *testing.T) {
	env := newTestEnv(t, testConfig(), &stubProvider{})

	rec := env.do(http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-Raffle-Env"))

	rec = env.do(http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var status map[string]string
	decodeData(t, rec, &status)
	assert.Equal(t, "up", status["db"])
	assert.Equal(t, "up", status["redis"])
}

func TestTicketsUnknownUserIsZero(t *testing.T) {
	env := newTestEnv(t, testConfig(), &stubProvider{})

	rec := env.do(http.MethodGet, "/api/raffle/tickets/nobody", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		UserID  string `json:"userId"`
		Tickets int64  `json:"tickets"`
	}
	decodeData(t, rec, &body)
	assert.Equal(t, "nobody", body.UserID)
	assert.Zero(t, body.Tickets)
}

func TestAdminRoutesRejectMissingTokenWithoutMutation(t *testing.T) {
	env := newTestEnv(t, testConfig(), &stubProvider{})
	ctx := context.Background()

	for _, headers := range []map[string]string{nil, {"X-Admin-Token": "wrong"}} {
		rec := env.do(http.MethodPost, "/api/admin/tickets/credit", `{"userId":"u1","entries":3}`, headers)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := env.do(http.MethodGet, "/api/admin/webhooks/recent", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	total, err := env.store.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, total)
	count, err := env.store.PaymentCount(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, count)
	events, err := env.store.RecentAudit(ctx, 50)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestAdminSurfaceDisabledWithoutToken(t *testing.T) {
	cfg := testConfig()
	cfg.Admin.Token = ""
	env := newTestEnv(t, cfg, &stubProvider{})

	rec := env.do(http.MethodPost, "/api/admin/tickets/credit", `{"userId":"u1","entries":3}`, map[string]string{"X-Admin-Token": ""})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = env.do(http.MethodPost, "/api/admin/tickets/credit?token=", `{"userId":"u1","entries":3}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminManualCreditsAccumulate(t *testing.T) {
	env := newTestEnv(t, testConfig(), &stubProvider{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		rec := env.do(http.MethodPost, "/api/admin/tickets/credit", `{"userId":"u1","entries":3}`, admin())
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res credits.Result
		decodeData(t, rec, &res)
		assert.True(t, res.Applied)
		assert.Equal(t, int64(3*(i+1)), res.TotalTickets)
	}

	count, err := env.store.PaymentCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	rec := env.do(http.MethodGet, "/api/raffle/tickets/u1", "", nil)
	var body struct {
		Tickets int64 `json:"tickets"`
	}
	decodeData(t, rec, &body)
	assert.Equal(t, int64(6), body.Tickets)
}

func TestAdminManualCreditIdempotencyKeyReplays(t *testing.T) {
	env := newTestEnv(t, testConfig(), &stubProvider{})

	headers := admin("Idempotency-Key", "grant-42")
	first := env.do(http.MethodPost, "/api/admin/tickets/credit", `{"userId":"u9","entries":2}`, headers)
	second := env.do(http.MethodPost, "/api/admin/tickets/credit", `{"userId":"u9","entries":2}`, headers)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())

	total, err := env.store.Balance(context.Background(), "u9")
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestAdminManualCreditValidation(t *testing.T) {
	env := newTestEnv(t, testConfig(), &stubProvider{})
	for _, body := range []string{`{"userId":"","entries":1}`, `{"userId":"u1","entries":0}`, `{"userId":"u1","entries":1152921504606846976}`, `not json`} {
		rec := env.do(http.MethodPost, "/api/admin/tickets/credit", body, admin())
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestAdminReplayAndReconcile(t *testing.T) {
	rawSession, err := json.Marshal(map[string]any{
		"id":             "cs_evt",
		"amount_total":   1400,
		"payment_status": "paid",
		"metadata":       map[string]string{"userId": "u2"},
	})
	require.NoError(t, err)
	provider := &stubProvider{
		sessions: map[string]*stripe.CheckoutSession{
			"cs_replay": {
				ID:            "cs_replay",
				AmountTotal:   2100,
				PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
				Metadata:      map[string]string{"userId": "u2", "entriesPurchased": "3"},
			},
		},
		events: []*stripe.Event{{
			ID:   "evt_missed",
			Type: stripe.EventTypeCheckoutSessionCompleted,
			Data: &stripe.EventData{Raw: rawSession},
		}},
	}
	env := newTestEnv(t, testConfig(), provider)

	rec := env.do(http.MethodPost, "/api/admin/stripe/replay-session", `{"sessionId":"cs_replay"}`, admin())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var item reconcile.ItemResult
	decodeData(t, rec, &item)
	assert.True(t, item.Applied)
	assert.Equal(t, "cs_replay", item.SessionID)

	for i := 0; i < 2; i++ {
		rec = env.do(http.MethodPost, "/api/admin/stripe/reconcile-recent?hours=9999", "", admin())
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var summary reconcile.Summary
		decodeData(t, rec, &summary)
		assert.Equal(t, reconcile.MaxHours, summary.Hours)
		assert.Equal(t, 1, summary.ProcessedCount)
		if i == 0 {
			assert.Equal(t, 1, summary.AppliedCount)
		} else {
			assert.Equal(t, 1, summary.DuplicateCount)
		}
	}

	total, err := env.store.Balance(context.Background(), "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)

	rec = env.do(http.MethodGet, "/api/admin/webhooks/recent?limit=500", "", admin())
	require.Equal(t, http.StatusOK, rec.Code)
	var recent struct {
		Limit  int `json:"limit"`
		Events []struct {
			EventID string `json:"eventId"`
			Via     string `json:"via"`
		} `json:"events"`
	}
	decodeData(t, rec, &recent)
	assert.Equal(t, 50, recent.Limit)
	require.Len(t, recent.Events, 2)
	assert.Equal(t, "evt_missed", recent.Events[0].EventID)
	assert.Equal(t, string(enums.AuditViaAdminReplay), recent.Events[0].Via)
	assert.Equal(t, "admin_cs_replay", recent.Events[len(recent.Events)-1].EventID)
}

func TestAdminReplayUnknownSessionIsDependencyError(t *testing.T) {
	env := newTestEnv(t, testConfig(), &stubProvider{})
	rec := env.do(http.MethodPost, "/api/admin/stripe/replay-session", `{"sessionId":"cs_missing"}`, admin())
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAdminRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.Admin.RateLimitPerIP = 2
	env := newTestEnv(t, cfg, &stubProvider{})

	for i := 0; i < 2; i++ {
		rec := env.do(http.MethodGet, "/api/admin/webhooks/recent", "", admin())
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	rec := env.do(http.MethodGet, "/api/admin/webhooks/recent", "", admin())
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestCreateCheckoutRoute(t *testing.T) {
	env := newTestEnv(t, testConfig(), &stubProvider{})

	rec := env.do(http.MethodPost, "/api/payment/create-checkout", `{"userId":"u1","entries":2}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sess checkout.Session
	decodeData(t, rec, &sess)
	assert.Equal(t, "cs_new", sess.SessionID)
	assert.NotEmpty(t, sess.URL)

	rec = env.do(http.MethodPost, "/api/payment/create-checkout", `{"userId":"u1","entries":101}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookRouteRejectsUnsigned(t *testing.T) {
	env := newTestEnv(t, testConfig(), &stubProvider{})
	rec := env.do(http.MethodPost, "/api/stripe/webhook", `{"id":"evt_1"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsExposeCreditCounters(t *testing.T) {
	env := newTestEnv(t, testConfig(), &stubProvider{})
	rec := env.do(http.MethodPost, "/api/admin/tickets/credit", `{"userId":"u1","entries":1}`, admin())
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `raffle_credit_attempts_total{outcome="applied",via="admin"} 1`)
	assert.Contains(t, rec.Body.String(), `raffle_http_requests_total{method="POST",route="/api/admin/tickets/credit",status="200"} 1`)
}
