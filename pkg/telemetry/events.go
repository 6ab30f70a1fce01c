package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event represents a telemetry event in the OpenChord system.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// JobID is the associated job ID, if applicable.
	JobID string `json:"job_id,omitempty"`

	// TaskID is the associated task ID, if applicable.
	TaskID string `json:"task_id,omitempty"`

	// Resource is the associated resource path, if applicable.
	Resource string `json:"resource,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventType constants for common event types.
const (
	EventTypeJobStarted      = "job.started"
	EventTypeJobCompleted    = "job.completed"
	EventTypeJobFailed       = "job.failed"
	EventTypeTaskStarted     = "task.started"
	EventTypeTaskCompleted   = "task.completed"
	EventTypeTaskFailed      = "task.failed"
	EventTypeResourceChanged = "resource.changed"
	EventTypeManifestLoaded  = "manifest.loaded"
	EventTypeManifestInvalid = "manifest.invalid"
	EventTypeQueryFailed     = "query.failed"
	EventTypeError           = "error"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher manages event publishing and subscriptions.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	filters     []EventFilter
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config:      cfg,
		buffer:      make(chan Event, cfg.BufferSize),
		subscribers: make([]subscriberEntry, 0),
		filters:     make([]EventFilter, 0),
		ctx:         ctx,
		cancel:      cancel,
	}

	// Start the event processing goroutine
	if cfg.EnableAsync {
		ep.wg.Add(1)
		go ep.processEvents()
	}

	// Start the periodic flush goroutine
	if cfg.FlushInterval > 0 {
		ep.wg.Add(1)
		go ep.periodicFlush()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	// Set ID and timestamp if not already set
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Apply global filters
	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.RUnlock()
			return nil // Event filtered out
		}
	}
	ep.mu.RUnlock()

	// Send to buffer if async, otherwise process immediately
	if ep.config.EnableAsync {
		select {
		case ep.buffer <- event:
			return nil
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
			// Buffer full, drop event or log warning
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	// Synchronous publishing
	ep.deliverEvent(event)
	return nil
}

// PublishJobStarted publishes a job started event.
func (ep *EventPublisher) PublishJobStarted(jobID, manifest string) error {
	return ep.Publish(Event{
		Type:    EventTypeJobStarted,
		Source:  "runtime",
		JobID:   jobID,
		Message: fmt.Sprintf("Job %s started for manifest %s", jobID, manifest),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"manifest": manifest,
		},
	})
}

// PublishJobCompleted publishes a job completed event.
func (ep *EventPublisher) PublishJobCompleted(jobID, status string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:    EventTypeJobCompleted,
		Source:  "runtime",
		JobID:   jobID,
		Message: fmt.Sprintf("Job %s completed with status: %s", jobID, status),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"status":   status,
			"duration": duration.Seconds(),
		},
	})
}

// PublishJobFailed publishes a job failed event.
func (ep *EventPublisher) PublishJobFailed(jobID, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeJobFailed,
		Source:  "runtime",
		JobID:   jobID,
		Message: fmt.Sprintf("Job %s failed: %s", jobID, reason),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishTaskStarted publishes a task started event.
func (ep *EventPublisher) PublishTaskStarted(jobID, taskID, resource, operation string) error {
	return ep.Publish(Event{
		Type:     EventTypeTaskStarted,
		Source:   "runtime",
		JobID:    jobID,
		TaskID:   taskID,
		Resource: resource,
		Message:  fmt.Sprintf("Task %s started: %s on resource %s", taskID, operation, resource),
		Level:    EventLevelInfo,
		Data: map[string]interface{}{
			"operation": operation,
		},
	})
}

// PublishTaskCompleted publishes a task completed event.
func (ep *EventPublisher) PublishTaskCompleted(jobID, taskID, resource string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:     EventTypeTaskCompleted,
		Source:   "runtime",
		JobID:    jobID,
		TaskID:   taskID,
		Resource: resource,
		Message:  fmt.Sprintf("Task %s completed for resource %s", taskID, resource),
		Level:    EventLevelInfo,
		Data: map[string]interface{}{
			"duration": duration.Seconds(),
		},
	})
}

// PublishTaskFailed publishes a task failed event.
func (ep *EventPublisher) PublishTaskFailed(jobID, taskID, resource, reason string) error {
	return ep.Publish(Event{
		Type:     EventTypeTaskFailed,
		Source:   "runtime",
		JobID:    jobID,
		TaskID:   taskID,
		Resource: resource,
		Message:  fmt.Sprintf("Task %s failed for resource %s: %s", taskID, resource, reason),
		Level:    EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishResourceChanged publishes a resource attribute change event.
func (ep *EventPublisher) PublishResourceChanged(resource, attribute string, oldValue, newValue interface{}) error {
	return ep.Publish(Event{
		Type:     EventTypeResourceChanged,
		Source:   "runtime",
		Resource: resource,
		Message:  fmt.Sprintf("Resource %s attribute %s changed", resource, attribute),
		Level:    EventLevelInfo,
		Data: map[string]interface{}{
			"attribute": attribute,
			"old_value": oldValue,
			"new_value": newValue,
		},
	})
}

// PublishManifestLoaded publishes a manifest loaded event.
func (ep *EventPublisher) PublishManifestLoaded(manifest string, resourceCount int) error {
	return ep.Publish(Event{
		Type:    EventTypeManifestLoaded,
		Source:  "manifest",
		Message: fmt.Sprintf("Manifest %s loaded (%d resources)", manifest, resourceCount),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"manifest":       manifest,
			"resource_count": resourceCount,
		},
	})
}

// PublishQueryFailed publishes a query failure event.
func (ep *EventPublisher) PublishQueryFailed(expression, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeQueryFailed,
		Source:  "eval",
		Message: fmt.Sprintf("Query %q failed: %s", expression, reason),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"expression": expression,
			"reason":     reason,
		},
	})
}

// Subscribe adds a new event subscriber.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

// processEvents processes events from the buffer asynchronously.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	batch := make([]Event, 0, ep.config.MaxBatchSize)

	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)

			// Flush batch if it reaches max size
			if len(batch) >= ep.config.MaxBatchSize {
				ep.flushBatch(batch)
				batch = make([]Event, 0, ep.config.MaxBatchSize)
			}

		case <-ep.ctx.Done():
			// Flush remaining events before shutting down
			if len(batch) > 0 {
				ep.flushBatch(batch)
			}
			return
		}
	}
}

// periodicFlush flushes events periodically.
func (ep *EventPublisher) periodicFlush() {
	defer ep.wg.Done()

	ticker := time.NewTicker(ep.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// Trigger flush by draining buffer
			// This is handled by the processEvents goroutine
		case <-ep.ctx.Done():
			return
		}
	}
}

// flushBatch delivers a batch of events to subscribers.
func (ep *EventPublisher) flushBatch(events []Event) {
	for _, event := range events {
		ep.deliverEvent(event)
	}
}

// deliverEvent delivers an event to all subscribers.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		// Apply subscriber-specific filter
		if entry.filter != nil && !entry.filter(event) {
			continue
		}

		// Call subscriber in a goroutine to avoid blocking
		go entry.subscriber(event)
	}
}

// Shutdown gracefully shuts down the event publisher.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	// Signal shutdown
	ep.cancel()

	// Wait for processing to complete with timeout
	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// Common event filters.

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByJobID creates a filter that only allows events for a specific job.
func FilterByJobID(jobID string) EventFilter {
	return func(event Event) bool {
		return event.JobID == jobID
	}
}

// FilterByResource creates a filter that only allows events for a specific resource.
func FilterByResource(resource string) EventFilter {
	return func(event Event) bool {
		return event.Resource == resource
	}
}
