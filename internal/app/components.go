// Package app assembles the credit pipeline shared by the API and the cron
// worker.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/talentkonnect/raffle-backend/internal/checkout"
	"github.com/talentkonnect/raffle-backend/internal/credits"
	"github.com/talentkonnect/raffle-backend/internal/ledger"
	"github.com/talentkonnect/raffle-backend/internal/reconcile"
	stripewebhook "github.com/talentkonnect/raffle-backend/internal/webhooks/stripe"
	"github.com/talentkonnect/raffle-backend/pkg/config"
	"github.com/talentkonnect/raffle-backend/pkg/db"
	"github.com/talentkonnect/raffle-backend/pkg/enums"
	"github.com/talentkonnect/raffle-backend/pkg/logger"
	"github.com/talentkonnect/raffle-backend/pkg/metrics"
	pkgstripe "github.com/talentkonnect/raffle-backend/pkg/stripe"
)

// Components are the long-lived services built from config.
type Components struct {
	Ledger *ledger.Store
	Engine *credits.Engine
	Manual *credits.ManualCrediter
	// Reconcile audits as the scheduled path; AdminReconcile as admin-replay.
	Reconcile      *reconcile.Service
	AdminReconcile *reconcile.Service
	Checkout       checkout.Service
	Webhook        *stripewebhook.Service
	Stripe         *pkgstripe.Client
	Metrics        *metrics.CreditMetrics
}

// Build wires the ledger, engine and Stripe-facing services. A missing
// Stripe key leaves Stripe nil; checkout and reconcile then report a
// dependency error per request instead of failing startup.
func Build(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client, reg prometheus.Registerer) (*Components, error) {
	store, err := ledger.NewStore(dbClient)
	if err != nil {
		return nil, fmt.Errorf("ledger store: %w", err)
	}

	creditMetrics := metrics.NewCreditMetrics(reg)
	engine, err := credits.NewEngine(credits.EngineParams{Ledger: store, Logger: logg, Metrics: creditMetrics})
	if err != nil {
		return nil, fmt.Errorf("credit engine: %w", err)
	}
	normalizer, err := credits.NewNormalizer(cfg.Raffle.PricePerEntryCents)
	if err != nil {
		return nil, fmt.Errorf("normalizer: %w", err)
	}
	manual, err := credits.NewManualCrediter(engine, cfg.Raffle.PricePerEntryCents, cfg.Raffle.MaxEntriesPerOrder)
	if err != nil {
		return nil, fmt.Errorf("manual crediter: %w", err)
	}

	var stripeClient *pkgstripe.Client
	if cfg.Stripe.Enabled() {
		stripeClient, err = pkgstripe.NewClient(ctx, cfg.Stripe, logg)
		if err != nil {
			return nil, fmt.Errorf("stripe client: %w", err)
		}
	} else {
		logg.Warn(ctx, "stripe secret key not set; checkout and reconciliation disabled")
	}

	var provider reconcile.Provider
	var creator checkout.SessionCreator
	if stripeClient != nil {
		provider = stripeClient
		creator = stripeClient
	}

	newReconciler := func(via enums.AuditVia) (*reconcile.Service, error) {
		return reconcile.NewService(reconcile.ServiceParams{
			Provider:   provider,
			Normalizer: normalizer,
			Engine:     engine,
			Logger:     logg,
			Metrics:    creditMetrics,
			Options: reconcile.Options{
				DefaultHours: cfg.Reconcile.LookbackHours,
				MaxPages:     cfg.Reconcile.MaxPages,
				PageSize:     cfg.Reconcile.PageSize,
				Via:          via,
			},
		})
	}
	rec, err := newReconciler(enums.AuditViaReconcile)
	if err != nil {
		return nil, fmt.Errorf("reconcile service: %w", err)
	}
	adminRec, err := newReconciler(enums.AuditViaAdminReplay)
	if err != nil {
		return nil, fmt.Errorf("admin reconcile service: %w", err)
	}

	checkoutSvc, err := checkout.NewService(creator, cfg.Raffle, logg)
	if err != nil {
		return nil, fmt.Errorf("checkout service: %w", err)
	}

	webhookSvc, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Normalizer: normalizer,
		Engine:     engine,
		Logger:     logg,
	})
	if err != nil {
		return nil, fmt.Errorf("webhook service: %w", err)
	}

	return &Components{
		Ledger:         store,
		Engine:         engine,
		Manual:         manual,
		Reconcile:      rec,
		AdminReconcile: adminRec,
		Checkout:       checkoutSvc,
		Webhook:        webhookSvc,
		Stripe:         stripeClient,
		Metrics:        creditMetrics,
	}, nil
}
