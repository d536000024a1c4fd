package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"therapyhub/config"
	"therapyhub/internal/adapters/breaker"
	"therapyhub/internal/adapters/cache"
	"therapyhub/internal/adapters/email"
	"therapyhub/internal/adapters/queue"
	stripegw "therapyhub/internal/adapters/stripe"
	"therapyhub/internal/domain"
)

// app holds the configuration and the shared infrastructure a command needs.
// close releases whatever was opened, in reverse order.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &app{cfg: cfg, logger: config.NewLogger()}, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) openDB(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("postgres", a.cfg.DBUrl)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	a.closers = append(a.closers, func() { _ = db.Close() })
	return db, nil
}

// workshopCache returns the redis listing cache, or a cache that never hits when REDIS_URL is unset.
func (a *app) workshopCache(ctx context.Context) (domain.WorkshopCache, error) {
	if a.cfg.Redis.URL == "" {
		a.logger.Info("REDIS_URL not set, workshop listing cache disabled")
		return cache.NewNoopCache(), nil
	}
	rc, err := cache.NewRedisClient(ctx, a.cfg.Redis.URL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = rc.Close() })
	return cache.NewWorkshopCache(rc, a.cfg.Redis.TTL, a.logger), nil
}

func (a *app) queueConfig() queue.Config {
	return queue.Config{URL: a.cfg.RabbitMQ.URL, Exchange: a.cfg.RabbitMQ.Exchange, Queue: a.cfg.RabbitMQ.Queue}
}

// publisher returns the RabbitMQ event publisher, or one that drops events when RABBITMQ_URL is unset.
func (a *app) publisher() (domain.EventPublisher, error) {
	if a.cfg.RabbitMQ.URL == "" {
		a.logger.Info("RABBITMQ_URL not set, registration events will be dropped")
		return queue.NewNoopPublisher(a.logger), nil
	}
	client, err := queue.Dial(a.queueConfig(), a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)
	return client, nil
}

// paymentGateway returns the circuit-broken Stripe gateway and webhook verifier. Either is a
// nil interface when its secret is unset, which the services report as gateway unavailable.
func (a *app) paymentGateway() (domain.PaymentGateway, domain.WebhookVerifier, error) {
	var (
		gateway  domain.PaymentGateway
		verifier domain.WebhookVerifier
	)
	if key := a.cfg.Stripe.SecretKey; key != "" {
		gw, err := stripegw.NewGateway(stripegw.Config{SecretKey: key}, a.logger)
		if err != nil {
			return nil, nil, err
		}
		gateway = breaker.NewGateway(gw, breaker.Settings{IsSuccessful: stripegw.IsClientError}, a.logger)
	} else {
		a.logger.Warn("STRIPE_SECRET_KEY not set, paid registrations are unavailable")
	}
	if secret := a.cfg.Stripe.WebhookSecret; secret != "" {
		v, err := stripegw.NewWebhookVerifier(secret)
		if err != nil {
			return nil, nil, err
		}
		verifier = v
	} else {
		a.logger.Warn("STRIPE_WEBHOOK_SECRET not set, payment webhooks are rejected")
	}
	return gateway, verifier, nil
}

func (a *app) mailer() (domain.Mailer, error) {
	e := a.cfg.Email
	return email.NewMailer(email.MailerConfig{
		Provider:    e.Provider,
		FromAddress: e.FromAddress,
		FromName:    e.FromName,
		SES: email.SESConfig{
			Region:          e.AWSRegion,
			AccessKeyID:     e.AWSAccessKeyID,
			SecretAccessKey: e.AWSSecretAccessKey,
		},
	}, a.logger)
}
