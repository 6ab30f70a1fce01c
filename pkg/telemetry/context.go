package telemetry

import (
	"context"
	"time"
)

// Telemetry provides a unified telemetry interface combining logging,
// metrics, and events.
type Telemetry struct {
	Logger  *Logger
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Metrics: metrics,
		Events:  events,
		Config:  cfg,
	}, nil
}

// WithContext adds the telemetry instance to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	ctx = t.Logger.WithContext(ctx)
	return ctx
}

// FromTelemetryContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown gracefully shuts down all telemetry components.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	// Metrics server is not explicitly shut down here as it may need to
	// continue serving metrics until the very end of the application
	// lifecycle
	return t.Events.Shutdown(ctx)
}

// StartMetricsServer starts the metrics HTTP server if metrics are enabled.
func (t *Telemetry) StartMetricsServer() error {
	return t.Metrics.StartMetricsServer()
}

// Context Helpers for common instrumentation patterns

// WithJobContext creates a context enriched with job-specific telemetry.
func WithJobContext(ctx context.Context, jobID, manifest string) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}

	logger := tel.Logger.WithJobID(jobID).WithField("manifest", manifest)
	ctx = logger.WithContext(ctx)

	tel.Metrics.RecordJobStarted(manifest)
	_ = tel.Events.PublishJobStarted(jobID, manifest)

	return context.WithValue(ctx, jobTimerKey{}, NewTimer())
}

// jobTimerKey is the context key for job timers.
type jobTimerKey struct{}

// EndJobContext completes the job context, recording metrics and events.
func EndJobContext(ctx context.Context, jobID, status string, err error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}

	var duration time.Duration
	if timer, ok := ctx.Value(jobTimerKey{}).(*Timer); ok {
		duration = timer.Duration()
	}

	tel.Metrics.RecordJobCompleted(status, duration)

	if err != nil {
		_ = tel.Events.PublishJobFailed(jobID, err.Error())
	} else {
		_ = tel.Events.PublishJobCompleted(jobID, status, duration)
	}
}

// WithTaskContext creates a context enriched with task-specific telemetry.
func WithTaskContext(ctx context.Context, jobID, taskID, resource, operation string) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}

	logger := tel.Logger.
		WithJobID(jobID).
		WithTaskID(taskID).
		WithResource(resource).
		WithField("operation", operation)
	ctx = logger.WithContext(ctx)

	_ = tel.Events.PublishTaskStarted(jobID, taskID, resource, operation)

	return context.WithValue(ctx, taskTimerKey{}, NewTimer())
}

// taskTimerKey is the context key for task timers.
type taskTimerKey struct{}

// EndTaskContext completes the task context, recording metrics and events.
func EndTaskContext(ctx context.Context, jobID, taskID, resource, operation, status string, err error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}

	var duration time.Duration
	if timer, ok := ctx.Value(taskTimerKey{}).(*Timer); ok {
		duration = timer.Duration()
	}

	tel.Metrics.RecordTaskExecution(operation, status, duration)

	if err != nil {
		_ = tel.Events.PublishTaskFailed(jobID, taskID, resource, err.Error())
	} else {
		_ = tel.Events.PublishTaskCompleted(jobID, taskID, resource, duration)
	}
}

// RecordQueryOperation times an expression evaluation and records its
// outcome.
func RecordQueryOperation(ctx context.Context, expression string, fn func() (matched bool, err error)) error {
	tel := FromTelemetryContext(ctx)
	timer := NewTimer()

	matched, err := fn()

	if tel != nil {
		outcome := "matched"
		switch {
		case err != nil:
			outcome = "error"
			_ = tel.Events.PublishQueryFailed(expression, err.Error())
		case !matched:
			outcome = "empty"
		}
		tel.Metrics.RecordQuery(outcome, timer.Duration())
	}

	return err
}
