package telemetry_test

import (
	"context"
	"fmt"
	"time"

	"github.com/openchord/openchord/pkg/telemetry"
)

// Example_basicSetup demonstrates basic telemetry setup.
func Example_basicSetup() {
	// Create configuration
	cfg := telemetry.DefaultConfig()
	cfg.ServiceName = "openchord"
	cfg.ServiceVersion = "1.0.0"

	// Initialize telemetry
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	// Start metrics server (non-blocking)
	if err := tel.StartMetricsServer(); err != nil {
		panic(err)
	}

	// Add telemetry to context
	ctx := tel.WithContext(context.Background())

	// Use telemetry
	logger := telemetry.FromContext(ctx)
	logger.Info("Application started")

	// Output can vary, so we don't specify output for this example
}

// Example_structuredLogging demonstrates structured logging features.
func Example_structuredLogging() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Logging.Output = "stdout"

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Component-specific logger
	logger := tel.Logger.NewComponentLogger("runtime")

	// Add context fields
	logger = logger.WithFields(map[string]interface{}{
		"job_id":   "job-123",
		"resource": "/root/db/primary",
	})

	// Log at different levels
	logger.Debug("Starting apply")
	logger.Info("Resource updated successfully")
	logger.Warn("Attribute outside expected range")

	// Log with error
	err := fmt.Errorf("network timeout")
	logger.WithError(err).Error("Failed to connect to remote host")

	// Output varies, no output specified
}

// Example_metricsCollection demonstrates metrics collection.
func Example_metricsCollection() {
	cfg := telemetry.DefaultConfig()
	cfg.Metrics.Enabled = true

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Record job metrics
	tel.Metrics.RecordJobStarted("site.yaml")

	// Simulate job execution
	start := time.Now()
	time.Sleep(50 * time.Millisecond)
	duration := time.Since(start)

	tel.Metrics.RecordJobCompleted("succeeded", duration)

	// Record task metrics
	tel.Metrics.RecordTaskExecution(
		"update",            // operation
		"succeeded",         // status
		25*time.Millisecond, // duration
	)

	// Record query metrics
	tel.Metrics.RecordQuery("matched", 2*time.Millisecond)

	// Record error metrics
	tel.Metrics.RecordError("eval")

	// Set resource counts
	tel.Metrics.SetResourceCount("site.yaml", 10)
	tel.Metrics.SetResourceCount("db.yaml", 5)

	fmt.Println("Metrics recorded successfully")
	// Output: Metrics recorded successfully
}

// Example_eventPublishing demonstrates event publishing and subscription.
func Example_eventPublishing() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.Enabled = true
	cfg.Events.EnableAsync = false // Synchronous for example

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Subscribe to events
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
	}, nil) // No filter, receive all events

	// Publish events
	tel.Events.PublishJobStarted("job-123", "site.yaml")
	tel.Events.PublishTaskStarted("job-123", "task-1", "/root/db/primary", "update")
	tel.Events.PublishTaskCompleted("job-123", "task-1", "/root/db/primary", 25*time.Millisecond)

	// Output varies due to async nature, no output specified
}

// Example_jobInstrumentation demonstrates instrumenting a complete job.
func Example_jobInstrumentation() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start job context
	jobID := "job-123"
	manifest := "site.yaml"
	ctx = telemetry.WithJobContext(ctx, jobID, manifest)

	// Execute job (simulated)
	executeJob(ctx, jobID)

	// End job context
	telemetry.EndJobContext(ctx, jobID, "succeeded", nil)

	fmt.Println("Job instrumentation complete")
	// Output: Job instrumentation complete
}

func executeJob(ctx context.Context, jobID string) {
	// Simulate task execution
	taskID := "task-1"
	resource := "/root/db/primary"
	operation := "update"

	ctx = telemetry.WithTaskContext(ctx, jobID, taskID, resource, operation)

	// Get logger from context
	logger := telemetry.FromContext(ctx)
	logger.Info("Executing task")

	// Simulate work
	time.Sleep(10 * time.Millisecond)

	// End task context
	telemetry.EndTaskContext(ctx, jobID, taskID, resource, operation, "succeeded", nil)
}

// Example_queryInstrumentation demonstrates timing expression queries.
func Example_queryInstrumentation() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	err := telemetry.RecordQueryOperation(ctx, "conf::host", func() (bool, error) {
		// Simulate evaluation
		time.Sleep(2 * time.Millisecond)
		return true, nil
	})

	if err == nil {
		fmt.Println("Query instrumentation complete")
	}

	// Output: Query instrumentation complete
}

// Example_eventFiltering demonstrates event filtering.
func Example_eventFiltering() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.Enabled = true
	cfg.Events.EnableAsync = false

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Subscribe with level filter (only warnings and errors)
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Important event: %s\n", event.Type)
	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))

	// Subscribe with type filter (only query failures)
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Query event: %s\n", event.Message)
	}, telemetry.FilterByType(telemetry.EventTypeQueryFailed))

	// Publish various events
	tel.Events.PublishJobStarted("job-123", "site.yaml")         // Info - filtered by level filter
	tel.Events.PublishQueryFailed("conf::host", "parse failure") // Error - passes level filter
	tel.Events.PublishJobFailed("job-123", "error")              // Error - passes level filter

	// Output varies, no output specified
}

// Example_productionConfiguration demonstrates production-ready configuration.
func Example_productionConfiguration() {
	cfg := telemetry.ProductionConfig()

	// Customize for your environment
	cfg.ServiceName = "openchord"
	cfg.ServiceVersion = "1.2.3"
	cfg.Environment = "production"

	// Configure metrics
	cfg.Metrics.ListenAddress = ":9090"
	cfg.Metrics.Namespace = "openchord"

	// Configure events
	cfg.Events.BufferSize = 10000
	cfg.Events.FlushInterval = 5 * time.Second

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	fmt.Println("Production configuration validated")
	// Output: Production configuration validated
}

// Example_multipleComponents demonstrates telemetry in a multi-component system.
func Example_multipleComponents() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Component-specific loggers
	evalLogger := tel.Logger.NewComponentLogger("eval")
	manifestLogger := tel.Logger.NewComponentLogger("manifest")
	runtimeLogger := tel.Logger.NewComponentLogger("runtime")

	evalLogger.Info("Expression engine initialized")
	manifestLogger.Info("Loading manifest")
	runtimeLogger.Info("Applying configuration")

	fmt.Println("Multi-component logging complete")
	// Output: Multi-component logging complete
}
