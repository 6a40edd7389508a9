// Package poller implements the scheduled polling engine and the per-tenant
// check pipeline.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"tweet_relay/internal/model"
	"tweet_relay/internal/secret"
	"tweet_relay/internal/storage"
	"tweet_relay/internal/twitter"
	"tweet_relay/internal/webhook"
)

// Errors reported to callers of CheckNow.
var (
	ErrNotConfigured    = errors.New("tenant is not configured")
	ErrTrackingDisabled = errors.New("tracking is disabled")
	ErrCheckInFlight    = errors.New("a check for this tenant is already running")
)

// Notifier delivers best-effort direct messages to tenants. Send failures
// are swallowed by the implementation; the poller never depends on them
// succeeding.
type Notifier interface {
	SendMessage(chatID int64, text string)
}

// ClientFactory builds an authenticated twitter client from a tenant's
// decrypted cookie set.
type ClientFactory func(cookies map[string]string) twitter.Client

// Options tunes the engine. Zero values take the documented defaults.
type Options struct {
	Interval    time.Duration // tick cadence (default 15m)
	Lookback    time.Duration // tweet recency window (default 30m)
	FetchCount  int           // tweets requested per fetch (default 150)
	SeenCap     int           // seen-set retention (default 200)
	SendDelay   time.Duration // pause between webhook deliveries (default 1s)
	RetryPad    time.Duration // added to the server's 429 hint (default 1s)
	CallTimeout time.Duration // per external call (default 20s)
	TickTimeout time.Duration // limit for one whole tick (default 10m)
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = 15 * time.Minute
	}
	if o.Lookback <= 0 {
		o.Lookback = 30 * time.Minute
	}
	if o.FetchCount <= 0 {
		o.FetchCount = 150
	}
	if o.SeenCap <= 0 {
		o.SeenCap = model.SeenCap
	}
	if o.SendDelay <= 0 {
		o.SendDelay = time.Second
	}
	if o.RetryPad <= 0 {
		o.RetryPad = time.Second
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 20 * time.Second
	}
	if o.TickTimeout <= 0 {
		o.TickTimeout = 10 * time.Minute
	}
	return o
}

// Engine runs the fixed-cadence polling cycle over all enabled tenants.
// Tenants are checked concurrently within a tick; one tenant's failure never
// aborts another's.
type Engine struct {
	store    storage.Storage
	codec    *secret.Codec
	clients  ClientFactory
	channel  *webhook.Channel
	notifier Notifier
	log      *slog.Logger
	opts     Options

	mu       sync.Mutex
	inFlight map[int64]struct{}

	// Injected in tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// New creates an Engine with constructor-injected collaborators.
func New(store storage.Storage, codec *secret.Codec, clients ClientFactory, channel *webhook.Channel, notifier Notifier, log *slog.Logger, opts Options) *Engine {
	return &Engine{
		store:    store,
		codec:    codec,
		clients:  clients,
		channel:  channel,
		notifier: notifier,
		log:      log,
		opts:     opts.withDefaults(),
		inFlight: make(map[int64]struct{}),
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Run blocks until ctx is cancelled. It waits for ready (the chat platform's
// connection signal) before the first tick, then ticks on the configured
// interval. Overlapping ticks are prevented by the cron chain's
// skip-if-still-running wrapper rather than by locking here.
func (e *Engine) Run(ctx context.Context, ready <-chan struct{}) {
	if ready != nil {
		select {
		case <-ctx.Done():
			return
		case <-ready:
		}
	}
	e.log.Info("poller started", "interval", e.opts.Interval)

	e.Tick(ctx)

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{e.log})))
	c.Schedule(cron.Every(e.opts.Interval), cron.FuncJob(func() { e.Tick(ctx) }))
	c.Start()

	<-ctx.Done()
	stop := c.Stop()
	<-stop.Done()
	e.log.Info("poller stopped")
}

type tenantResult struct {
	tenantID int64
	err      error
}

// Tick runs one polling cycle: list enabled tenants, fan out one pipeline
// per tenant, join, and log the aggregate. Individual failures are collected
// and logged, never propagated.
func (e *Engine) Tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.TickTimeout)
	defer cancel()

	tenants, err := e.store.ListEnabled(ctx)
	if err != nil {
		e.log.Error("list enabled tenants", "error", err)
		return
	}
	if len(tenants) == 0 {
		e.log.Debug("no enabled tenants")
		return
	}

	results := make(chan tenantResult, len(tenants))
	var wg sync.WaitGroup
	launched := 0

	for _, tenant := range tenants {
		if !e.acquire(tenant.ID) {
			// A manual check is still running for this tenant.
			e.log.Warn("tenant check already in flight, skipping", "tenant_id", tenant.ID)
			continue
		}
		launched++
		wg.Add(1)
		go func(t model.Tenant) {
			defer wg.Done()
			defer e.release(t.ID)
			results <- tenantResult{tenantID: t.ID, err: e.processTenant(ctx, &t)}
		}(tenant)
	}

	wg.Wait()
	close(results)

	failed := 0
	for r := range results {
		if r.err != nil {
			failed++
			e.log.Error("tenant check failed", "tenant_id", r.tenantID, "error", r.err)
		}
	}
	e.log.Info("tick complete", "launched", launched, "succeeded", launched-failed, "failed", failed)
}

// CheckNow runs a single tenant's pipeline outside the schedule. It refuses
// to race a run already in flight for the same tenant.
func (e *Engine) CheckNow(ctx context.Context, tenantID int64) error {
	t, err := e.store.GetTenant(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("load tenant: %w", err)
	}
	if t == nil {
		return ErrNotConfigured
	}
	if !t.Enabled {
		return ErrTrackingDisabled
	}
	if !e.acquire(tenantID) {
		return ErrCheckInFlight
	}
	defer e.release(tenantID)

	ctx, cancel := context.WithTimeout(ctx, e.opts.TickTimeout)
	defer cancel()
	return e.processTenant(ctx, t)
}

func (e *Engine) acquire(tenantID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inFlight[tenantID]; busy {
		return false
	}
	e.inFlight[tenantID] = struct{}{}
	return true
}

func (e *Engine) release(tenantID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, tenantID)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
