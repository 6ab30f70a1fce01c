// Package telemetry provides observability instrumentation for OpenChord.
//
// The telemetry package integrates structured logging (zerolog), metrics
// (Prometheus), and event publishing into a unified system for monitoring
// and debugging OpenChord operations.
//
// # Architecture
//
// The telemetry system is built on three pillars:
//
//  1. Structured Logging - Context-aware logging with zerolog
//  2. Metrics Collection - Prometheus metrics for operational insights
//  3. Event Publishing - Async event system for audit and notifications
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "openchord"
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	// Start metrics server
//	if err := tel.StartMetricsServer(); err != nil {
//	    log.Fatal(err)
//	}
//
// Add telemetry to context:
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-specific logging with automatic context propagation:
//
//	logger := tel.Logger.NewComponentLogger("runtime")
//	logger = logger.WithJobID("job-123").WithResource("/root/db/primary")
//	logger.Info("Starting apply")
//	logger.WithError(err).Error("Apply failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Metrics
//
// Prometheus metrics track system behavior and performance:
//
//	// Record job execution
//	tel.Metrics.RecordJobStarted("site.yaml")
//	tel.Metrics.RecordJobCompleted("succeeded", duration)
//
//	// Record task execution
//	tel.Metrics.RecordTaskExecution("update", "succeeded", duration)
//
//	// Record expression queries
//	tel.Metrics.RecordQuery("matched", duration)
//
//	// Record errors
//	tel.Metrics.RecordError("eval")
//
// Metrics are exposed via HTTP at /metrics (default: :9090/metrics)
//
// # Event Publishing
//
// The event system provides async publishing with buffering and filtering:
//
//	// Publish events
//	tel.Events.PublishJobStarted(jobID, manifest)
//	tel.Events.PublishTaskCompleted(jobID, taskID, resource, duration)
//	tel.Events.PublishResourceChanged(resource, attribute, oldValue, newValue)
//
//	// Subscribe to events
//	tel.Events.Subscribe(func(event telemetry.Event) {
//	    fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
//	}, telemetry.FilterByLevel("warning"))
//
// Event filters: FilterByLevel, FilterByType, FilterByJobID, FilterByResource
//
// # Context Helpers
//
// High-level helpers simplify common instrumentation patterns:
//
//	// Job context
//	ctx = telemetry.WithJobContext(ctx, jobID, manifest)
//	defer telemetry.EndJobContext(ctx, jobID, status, err)
//
//	// Task context
//	ctx = telemetry.WithTaskContext(ctx, jobID, taskID, resource, operation)
//	defer telemetry.EndTaskContext(ctx, jobID, taskID, resource, operation, status, err)
//
//	// Query timing
//	err := telemetry.RecordQueryOperation(ctx, expression, func() (bool, error) {
//	    results, err := ref.Resolve(rctx)
//	    return len(results) > 0, err
//	})
//
// # Configuration
//
// The package provides pre-configured setups for different environments:
//
//	// Development (verbose console logging)
//	cfg := telemetry.DevelopmentConfig()
//
//	// Production (JSON logs, sampling)
//	cfg := telemetry.ProductionConfig()
//
//	// Custom configuration
//	cfg := &telemetry.Config{
//	    ServiceName: "openchord",
//	    ServiceVersion: "1.0.0",
//	    Environment: "staging",
//	    Logging: telemetry.LoggingConfig{
//	        Level: "info",
//	        Format: "json",
//	    },
//	    Metrics: telemetry.MetricsConfig{
//	        Enabled: true,
//	        ListenAddress: ":9090",
//	    },
//	}
//
// # Performance Considerations
//
// The telemetry system is designed for minimal overhead:
//
//  - Structured logging uses zerolog's zero-allocation approach
//  - Metrics use Prometheus's efficient storage format
//  - Events are buffered and batched to reduce I/O
//  - All operations are non-blocking when possible
//
// # Graceful Shutdown
//
// Always shut down telemetry gracefully to flush pending data:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	if err := tel.Shutdown(ctx); err != nil {
//	    log.Printf("Telemetry shutdown error: %v", err)
//	}
//
// # Common Metrics
//
// Key metrics exposed:
//
//  - openchord_queries_evaluated_total{outcome}
//  - openchord_query_duration_seconds{outcome}
//  - openchord_jobs_started_total{manifest}
//  - openchord_jobs_completed_total{status}
//  - openchord_job_duration_seconds{status}
//  - openchord_tasks_executed_total{operation,status}
//  - openchord_task_duration_seconds{operation}
//  - openchord_resources_managed{manifest}
//  - openchord_manifest_reloads_total{trigger}
//  - openchord_validation_failures_total{schema}
//  - openchord_errors_by_kind_total{kind}
//  - openchord_active_jobs
//
// # Security Considerations
//
//  - Never log sensitive data (credentials, keys, tokens)
//  - Opaque external values must stay unrevealed in logs and events
//  - Limit metrics endpoint access via network policies
//  - Consider event data before adding to audit logs
package telemetry
