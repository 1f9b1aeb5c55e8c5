package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/hakim/brandwatch/internal/alert"
	"github.com/hakim/brandwatch/internal/config"
	"github.com/hakim/brandwatch/internal/models"
	"github.com/hakim/brandwatch/internal/permute"
	"github.com/hakim/brandwatch/internal/probe"
	"github.com/hakim/brandwatch/internal/risk"
	"github.com/hakim/brandwatch/internal/scan"
	"github.com/hakim/brandwatch/internal/storage"
	"github.com/hakim/brandwatch/internal/storage/postgres"
	"github.com/hakim/brandwatch/internal/threat"
)

// recordStore is everything the commands need from persistence. Both the
// bbolt store and the postgres store implement it.
type recordStore interface {
	scan.Store
	threat.Store
	CreateBrand(ctx context.Context, b *models.Brand) error
	UpdateBrand(ctx context.Context, b *models.Brand) error
	ListBrands(ctx context.Context) ([]*models.Brand, error)
	ListScans(ctx context.Context, brandID string) ([]*models.Scan, error)
	ListFindings(ctx context.Context, scanID string) ([]models.Finding, error)
	GetAlertPolicy(ctx context.Context, userID string) (*models.AlertPolicy, error)
	SaveAlertPolicy(ctx context.Context, p *models.AlertPolicy) error
	Close() error
}

var (
	_ recordStore = (*storage.Store)(nil)
	_ recordStore = (*postgres.DB)(nil)
)

// openStore opens the store selected by storage.driver.
func openStore(ctx context.Context, c *config.Config) (recordStore, error) {
	switch c.Storage.Driver {
	case "", "bolt":
		store, err := storage.NewStore(c.Storage.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		return store, nil
	case "postgres":
		db, err := postgres.Connect(ctx, c.Storage.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
}

// engine bundles the scan manager with the threat workflow it writes through.
type engine struct {
	manager *scan.Manager
	threats *threat.Service
}

// newEngine wires probes, scoring, threat persistence and alerting into a
// scan manager.
func newEngine(store recordStore, c *config.Config, log logrus.FieldLogger) (*engine, error) {
	strategies, err := permute.ResolveStrategies("", c.Scan.Strategies)
	if err != nil {
		return nil, fmt.Errorf("scan.strategies: %w", err)
	}

	httpProber := probe.NewHTTPProber(c.Probe.HTTPTimeout, c.Probe.UserAgent)
	prober := &probe.Prober{
		DNS:      probe.NewDNSProber(c.Probe.Resolvers, c.Probe.DNSTimeout),
		HTTP:     httpProber,
		Registry: probe.NewRDAPProber(c.Probe.RDAPBaseURL, c.Probe.WhoisTimeout, c.Probe.WhoisRate, c.Probe.WhoisBurst),
		Timeouts: probe.Timeouts{
			DNS:   c.Probe.DNSTimeout,
			HTTP:  c.Probe.HTTPTimeout,
			Whois: c.Probe.WhoisTimeout,
		},
		Logger: log,
	}

	threats := threat.NewService(store, threat.RetryPolicy{
		MaxRetries:     c.Persistence.MaxRetries,
		InitialBackoff: c.Persistence.InitialBackoff,
	}, log)

	dispatcher := &alert.Dispatcher{
		Policies: store,
		Email:    &alert.LogNotifier{Channel: "email", Logger: log},
		Logger:   log,
	}
	if c.Alerts.WebhookURL != "" {
		dispatcher.Webhook = alert.NewWebhookNotifier(c.Alerts.WebhookURL, c.Alerts.WebhookTimeout)
	}

	manager := scan.NewManager(scan.Deps{
		Store:     store,
		Threats:   threats,
		Alerts:    dispatcher,
		Prober:    prober,
		Reference: httpProber,
		Scorer:    risk.NewScorer(risk.WeightsFromConfig(c.Risk), nil),
		Logger:    log,
	}, scan.Options{
		Concurrency:      c.Scan.Concurrency,
		MaxCandidates:    c.Scan.MaxCandidates,
		MaxDuration:      c.Scan.MaxDuration,
		FlushInterval:    c.Scan.FlushInterval,
		ReferenceTimeout: c.Probe.HTTPTimeout,
		Strategies:       strategies,
		CountryCode:      c.Scan.CountryCode,
	})

	return &engine{manager: manager, threats: threats}, nil
}
