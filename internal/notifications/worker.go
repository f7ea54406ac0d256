package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bissquit/oprisk/internal/domain"
	"github.com/jonboulle/clockwork"
)

// WorkerConfig contains worker configuration.
type WorkerConfig struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	NumWorkers        int
	// DrainTimeout bounds delivery of events still queued at shutdown.
	DrainTimeout time.Duration
	// BaseURL prefixes incident links in rendered messages. Optional.
	BaseURL string
}

// DefaultWorkerConfig returns default worker configuration.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        5 * time.Minute,
		BackoffMultiplier: 2.0,
		NumWorkers:        2,
		DrainTimeout:      30 * time.Second,
	}
}

// Worker drains the dispatcher queue and delivers every event to the matching routes.
type Worker struct {
	config     WorkerConfig
	dispatcher *Dispatcher
	renderer   *Renderer
	routes     []Route
	clock      clockwork.Clock

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWorker creates a new notification worker. A nil clock uses the real clock.
func NewWorker(config WorkerConfig, dispatcher *Dispatcher, renderer *Renderer, routes []Route, clock clockwork.Clock) *Worker {
	if config.NumWorkers <= 0 {
		config.NumWorkers = 1
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = DefaultWorkerConfig().DrainTimeout
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Worker{
		config:     config,
		dispatcher: dispatcher,
		renderer:   renderer,
		routes:     routes,
		clock:      clock,
		stopCh:     make(chan struct{}),
	}
}

// Start launches worker goroutines.
func (w *Worker) Start(ctx context.Context) {
	slog.Info("starting notification worker",
		"workers", w.config.NumWorkers,
		"routes", len(w.routes),
		"max_attempts", w.config.MaxAttempts,
	)

	for i := 0; i < w.config.NumWorkers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i)
	}
}

// Stop stops all workers after they deliver what is already queued.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
	slog.Info("notification worker stopped")
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			w.drain(ctx, workerID)
			return
		case <-w.stopCh:
			w.drain(ctx, workerID)
			return
		case event := <-w.dispatcher.queue:
			if ctx.Err() != nil {
				w.drain(ctx, workerID, event)
				return
			}
			w.process(ctx, workerID, event)
		}
	}
}

// drain delivers whatever is still queued. The parent context may already be
// cancelled at this point, so deliveries run on a detached one bounded by DrainTimeout.
func (w *Worker) drain(parent context.Context, workerID int, pending ...domain.NotificationEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), w.config.DrainTimeout)
	defer cancel()

	for _, event := range pending {
		w.process(ctx, workerID, event)
	}
	for {
		select {
		case event := <-w.dispatcher.queue:
			w.process(ctx, workerID, event)
		default:
			return
		}
	}
}

func (w *Worker) process(ctx context.Context, workerID int, event domain.NotificationEvent) {
	queueLength.Set(float64(w.dispatcher.Pending()))

	payload := NewPayload(event, w.config.BaseURL, w.clock.Now())
	delivered := 0

	for _, route := range w.routes {
		if !route.Matches(event.EscalationLevel) {
			continue
		}
		if err := w.deliver(ctx, route, payload); err != nil {
			slog.Error("notification delivery failed",
				"worker", workerID,
				"incident_id", event.IncidentID,
				"escalation_id", event.EscalationID,
				"channel_type", route.Channel,
				"error", err,
			)
			continue
		}
		delivered++
	}

	slog.Debug("escalation event processed",
		"worker", workerID,
		"escalation_id", event.EscalationID,
		"level", event.EscalationLevel,
		"delivered", delivered,
	)
}

func (w *Worker) deliver(ctx context.Context, route Route, payload NotificationPayload) error {
	channelType := string(route.Channel)

	subject, body, err := w.renderer.Render(route.Channel, payload)
	if err != nil {
		recordNotificationSent(channelType, "failed")
		return err
	}

	notification := Notification{
		To:      route.Target,
		Subject: subject,
		Body:    body,
		Level:   payload.Event.EscalationLevel,
		Link:    payload.IncidentURL,
	}

	for attempt := 1; ; attempt++ {
		start := time.Now()
		err := w.dispatcher.SendToChannel(ctx, route.Channel, notification)
		if err == nil {
			recordNotificationSent(channelType, "success")
			recordNotificationDuration(channelType, time.Since(start))
			return nil
		}

		if !isRetryable(err) || attempt >= w.config.MaxAttempts {
			recordNotificationSent(channelType, "failed")
			return err
		}

		backoff := w.calculateBackoff(attempt)
		recordNotificationSent(channelType, "retry")
		slog.Warn("send failed, retrying",
			"channel_type", route.Channel,
			"attempt", attempt,
			"max_attempts", w.config.MaxAttempts,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			recordNotificationSent(channelType, "failed")
			return ctx.Err()
		case <-w.clock.After(backoff):
		}
	}
}

func (w *Worker) calculateBackoff(attempt int) time.Duration {
	backoff := float64(w.config.InitialBackoff)
	for i := 1; i < attempt; i++ {
		backoff *= w.config.BackoffMultiplier
	}

	if w.config.MaxBackoff > 0 && backoff > float64(w.config.MaxBackoff) {
		backoff = float64(w.config.MaxBackoff)
	}

	return time.Duration(backoff)
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	type retryable interface {
		IsRetryable() bool
	}
	var r retryable
	if errors.As(err, &r) {
		return r.IsRetryable()
	}

	// Default: retry unknown errors
	return true
}

// RetryableError wraps an error and marks it as retryable or not.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

// IsRetryable returns whether the error is retryable.
func (e *RetryableError) IsRetryable() bool {
	return e.Retryable
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a retryable error.
func NewRetryableError(err error) *RetryableError {
	return &RetryableError{Err: err, Retryable: true}
}

// NewNonRetryableError creates a non-retryable error.
func NewNonRetryableError(err error) *RetryableError {
	return &RetryableError{Err: err, Retryable: false}
}
