// Package worker provides async levy assessment from the EventBus.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/lawdigitaltwin/tourismlevy/internal/assessment"
	"github.com/lawdigitaltwin/tourismlevy/internal/domain"
)

var tracer = otel.Tracer("tourismlevy-worker")

// Worker assesses levy requests published on domain.TopicLevyRequested.
type Worker struct {
	bus      domain.EventBus
	repo     domain.Repository
	cache    domain.Cache
	assessor *assessment.Assessor
	cacheTTL time.Duration

	mu            sync.Mutex
	subscriptions []domain.Subscription
	stopped       bool
	sem           chan struct{}
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// Concurrency bounds the requests assessed at the same time.
	Concurrency int

	// CacheTTL is how long finished assessments stay in the cache.
	CacheTTL time.Duration
}

// NewWorker creates a new async worker. repo and cache may be nil.
func NewWorker(bus domain.EventBus, repo domain.Repository, cache domain.Cache, assessor *assessment.Assessor) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		repo:     repo,
		cache:    cache,
		assessor: assessor,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes to the request topic.
func (w *Worker) Start(cfg Config) error {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	w.sem = make(chan struct{}, cfg.Concurrency)
	w.cacheTTL = cfg.CacheTTL

	sub, err := w.bus.Subscribe(w.ctx, domain.TopicLevyRequested, w.handleMessage)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.subscriptions = append(w.subscriptions, sub)
	w.mu.Unlock()

	slog.Info("levy worker started",
		"topic", domain.TopicLevyRequested,
		"concurrency", cfg.Concurrency,
	)
	return nil
}

// handleMessage hands msg to a pooled goroutine so the subscription keeps
// draining while earlier requests are still being assessed.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	select {
	case w.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	// Stop may be waiting on wg; no Add once it has begun
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		<-w.sem
		return nil
	}
	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.wg.Done()
		defer func() { <-w.sem }()
		_, _ = w.Process(w.ctx, msg)
	}()
	return nil
}

// RequestMessage is the payload published on domain.TopicLevyRequested.
type RequestMessage struct {
	AssessmentID string `json:"assessment_id"`
	TraceID      string `json:"trace_id,omitempty"`
	domain.LevyRequest
}

// Process assesses one request message. It persists and caches the
// assessment, publishes it on the calculated or rejected topic and, when the
// message came through Request, replies with it.
func (w *Worker) Process(ctx context.Context, msg *domain.Message) (*domain.Assessment, error) {
	start := time.Now()

	var req RequestMessage
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse levy request message",
			"message_id", msg.ID,
			"error", err,
		)
		return nil, err
	}

	traceID := req.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	ctx, span := tracer.Start(ctx, "worker.assess")
	defer span.End()
	span.SetAttributes(
		attribute.String("assessment.id", req.AssessmentID),
		attribute.String("trace.id", traceID),
	)

	a, err := w.assessor.Assess(ctx, req.AssessmentID, traceID, req.LevyRequest)
	if err != nil {
		span.SetStatus(codes.Error, a.Error.Code)
		span.SetAttributes(attribute.String("assessment.error", a.Error.Code))
	}

	w.store(ctx, a)

	topic := domain.TopicLevyCalculated
	if a.Status == domain.StatusRejected {
		topic = domain.TopicLevyRejected
	}

	payload, mErr := json.Marshal(a)
	if mErr != nil {
		return a, mErr
	}

	if pErr := w.bus.Publish(ctx, topic, payload); pErr != nil {
		slog.Error("failed to publish assessment",
			"assessment_id", a.ID,
			"topic", topic,
			"error", pErr,
		)
	}

	if msg.ReplyTo() != "" {
		if rErr := w.bus.Reply(ctx, msg, payload); rErr != nil {
			slog.Error("failed to reply",
				"assessment_id", a.ID,
				"error", rErr,
			)
		}
	}

	slog.Info("levy request processed",
		"assessment_id", a.ID,
		"trace_id", traceID,
		"status", a.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return a, err
}

// store persists and caches a. Both are best effort.
func (w *Worker) store(ctx context.Context, a *domain.Assessment) {
	if w.repo != nil {
		if err := w.repo.SaveAssessment(ctx, a); err != nil {
			slog.Error("failed to save assessment",
				"assessment_id", a.ID,
				"error", err,
			)
		}
	}
	if w.cache != nil {
		if err := w.cache.SetAssessment(ctx, a, w.cacheTTL); err != nil {
			slog.Warn("failed to cache assessment",
				"assessment_id", a.ID,
				"error", err,
			)
		}
	}
}

// Stop unsubscribes and waits for in-flight requests.
func (w *Worker) Stop() error {
	w.mu.Lock()
	w.stopped = true
	subs := w.subscriptions
	w.subscriptions = nil
	w.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
			errs = append(errs, err)
		}
	}

	w.wg.Wait()
	w.cancel()

	slog.Info("levy worker stopped")
	return errors.Join(errs...)
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
	InFlight          int      `json:"inFlight"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
		InFlight:          len(w.sem),
	}
}
