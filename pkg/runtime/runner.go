package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openchord/openchord/pkg/eval"
	"github.com/openchord/openchord/pkg/graph"
	"github.com/openchord/openchord/pkg/history"
	"github.com/openchord/openchord/pkg/manifest"
	"github.com/openchord/openchord/pkg/telemetry"
)

// Runner applies manifests to a live resource graph. One task runs per
// declared resource, in declaration order with parents first, so a
// resource's expressions can read what its ancestors already resolved.
type Runner struct {
	engine  *eval.Engine
	store   *history.Store
	schemas *manifest.SchemaRegistry
	tel     *telemetry.Telemetry
	logger  zerolog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithStore enables durable job and change records.
func WithStore(store *history.Store) RunnerOption {
	return func(r *Runner) { r.store = store }
}

// WithSchemas enables per-resource schema validation after a task's
// attributes are applied.
func WithSchemas(reg *manifest.SchemaRegistry) RunnerOption {
	return func(r *Runner) { r.schemas = reg }
}

// WithTelemetry wires job and task instrumentation.
func WithTelemetry(tel *telemetry.Telemetry) RunnerOption {
	return func(r *Runner) { r.tel = tel }
}

// WithLogger sets the runner's logger.
func WithLogger(logger zerolog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger.With().Str("component", "runtime").Logger()
	}
}

// NewRunner creates a runner backed by the given expression engine.
func NewRunner(engine *eval.Engine, opts ...RunnerOption) *Runner {
	r := &Runner{
		engine: engine,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Apply runs one job: every resource the manifest declares becomes a
// task that resolves its attribute expressions against the graph,
// applies the resolved values to its instance, and records what it
// read and what it changed. A failed task does not stop the job; the
// job's status reflects the aggregate outcome.
func (r *Runner) Apply(ctx context.Context, m *manifest.Manifest, root *graph.Instance) (*Job, error) {
	job := &Job{
		ID:              uuid.New().String(),
		Manifest:        m.Name,
		ManifestVersion: m.Version,
		Status:          StatusRunning,
		StartedAt:       time.Now(),
	}

	if r.tel != nil {
		ctx = r.tel.WithContext(ctx)
		r.tel.Metrics.SetResourceCount(m.Name, float64(m.ResourceCount()))
	}
	ctx = telemetry.WithJobContext(ctx, job.ID, m.Name)

	if r.store != nil {
		rec := &history.Job{
			ID:              job.ID,
			Manifest:        m.Name,
			ManifestVersion: m.Version,
			Status:          history.JobStatusRunning,
			StartedAt:       job.StartedAt,
			ResourceCount:   m.ResourceCount(),
			CreatedAt:       job.StartedAt,
			UpdatedAt:       job.StartedAt,
		}
		if err := r.store.CreateJob(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to record job: %w", err)
		}
	}

	walkErr := m.Walk(func(path string, spec *manifest.ResourceSpec) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		task := r.runTask(ctx, job, spec, path, m, root)
		job.Tasks = append(job.Tasks, task)
		return nil
	})

	job.aggregate()
	now := time.Now()
	job.CompletedAt = &now

	var jobErr error
	if walkErr != nil {
		job.Status = StatusFailed
		jobErr = walkErr
	}

	if r.store != nil {
		status := history.JobStatusCompleted
		var errMsg *string
		if job.Status == StatusFailed || job.Status == StatusPartial {
			status = history.JobStatusFailed
			msg := fmt.Sprintf("%d of %d tasks failed", job.Summary.Failed, job.Summary.Total)
			if jobErr != nil {
				msg = jobErr.Error()
			}
			errMsg = &msg
		}
		if err := r.store.UpdateJobStatus(ctx, job.ID, status, errMsg); err != nil {
			r.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to finalize job record")
		}
	}

	telemetry.EndJobContext(ctx, job.ID, string(job.Status), jobErr)

	r.logger.Info().
		Str("job_id", job.ID).
		Str("manifest", m.Name).
		Str("status", string(job.Status)).
		Int("tasks", job.Summary.Total).
		Int("failed", job.Summary.Failed).
		Msg("Job finished")

	if jobErr != nil {
		return job, jobErr
	}
	return job, nil
}

// runTask applies one declared resource. Task failures are recorded on
// the task, not returned.
func (r *Runner) runTask(ctx context.Context, job *Job, spec *manifest.ResourceSpec, path string, m *manifest.Manifest, root *graph.Instance) *Task {
	task := &Task{
		ID:        uuid.New().String(),
		Resource:  path,
		Status:    TaskStatusRunning,
		Operation: history.ChangeOpNoop,
		StartedAt: time.Now(),
	}

	tctx := telemetry.WithTaskContext(ctx, job.ID, task.ID, path, "apply")
	defer func() {
		now := time.Now()
		task.CompletedAt = &now
		var err error
		if task.Error != nil {
			err = fmt.Errorf("%s", *task.Error)
		}
		telemetry.EndTaskContext(tctx, job.ID, task.ID, task.Resource, string(task.Operation), string(task.Status), err)
	}()

	inst := findByPath(root, path)
	if inst == nil {
		task.failf("resource %s not present in graph", path)
		return task
	}
	task.Resource = inst.Path()

	rctx := r.engine.NewContext(inst).WithVars(m.Vars)

	keys := make([]string, 0, len(spec.Attributes))
	for k := range spec.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value, deps, err := r.resolveAttribute(rctx, spec.Attributes[key])
		if err != nil {
			if r.tel != nil {
				r.tel.Metrics.RecordError(errorKind(err))
			}
			task.failf("failed to resolve %s: %v", key, err)
			return task
		}
		task.Dependencies = append(task.Dependencies, deps...)

		old, hadOld := inst.Attr(key)
		op := history.ChangeOpNoop
		switch {
		case !hadOld:
			op = history.ChangeOpCreate
		case !reflect.DeepEqual(old, value):
			op = history.ChangeOpUpdate
		}
		if op != history.ChangeOpNoop {
			inst.SetAttr(key, value)
		}

		change := AttributeChange{Attribute: key, Op: op, New: value}
		if hadOld {
			change.Old = old
		}
		task.Changes = append(task.Changes, change)

		if r.store != nil {
			if err := r.recordChange(ctx, job.ID, task.Resource, change); err != nil {
				r.logger.Error().Err(err).Str("resource", task.Resource).Msg("Failed to record change")
			}
		}
		if r.tel != nil && op != history.ChangeOpNoop {
			var oldVal any
			if hadOld {
				oldVal = old
			}
			_ = r.tel.Events.PublishResourceChanged(task.Resource, key, oldVal, value)
		}
	}

	if spec.Schema != "" && r.schemas != nil {
		if err := r.schemas.ValidateNamed(spec.Schema, inst.Attrs()); err != nil {
			if r.tel != nil {
				r.tel.Metrics.RecordValidationFailure(spec.Schema)
			}
			task.failf("schema %s: %v", spec.Schema, err)
			return task
		}
	}

	task.Operation = taskOperation(task.Changes)
	task.Status = TaskStatusCompleted
	return task
}

// resolveAttribute resolves one declared attribute value. A top-level
// expression document is evaluated through a Ref so the owners of its
// results can be captured as dependencies; anything else is deep-mapped,
// which resolves embedded expressions and template strings in place.
func (r *Runner) resolveAttribute(rctx *eval.RefContext, raw any) (any, []Dependency, error) {
	if !eval.IsExpr(raw) {
		value, err := eval.MapValue(raw, rctx)
		return value, nil, err
	}

	ref, err := eval.NewRef(raw, nil)
	if err != nil {
		return nil, nil, err
	}
	results, err := ref.Resolve(rctx)
	if err != nil {
		return nil, nil, err
	}

	expr := exprString(raw)
	var deps []Dependency
	seen := map[string]bool{}
	for _, res := range results {
		owner := res.Owner()
		if owner == nil {
			continue
		}
		inst, ok := owner.(*graph.Instance)
		if !ok || seen[inst.Path()] {
			continue
		}
		seen[inst.Path()] = true
		deps = append(deps, Dependency{Expression: expr, Resource: inst.Path()})
	}

	switch len(results) {
	case 0:
		return nil, deps, nil
	case 1:
		return results[0].Resolved(), deps, nil
	default:
		values := make([]any, len(results))
		for i, res := range results {
			values[i] = res.Resolved()
		}
		return values, deps, nil
	}
}

func (r *Runner) recordChange(ctx context.Context, jobID, resource string, change AttributeChange) error {
	oldVal, err := jsonValue(change.Old)
	if err != nil {
		return err
	}
	newVal, err := jsonValue(change.New)
	if err != nil {
		return err
	}
	return r.store.AppendChange(ctx, &history.Change{
		JobID:     jobID,
		Resource:  resource,
		Attribute: change.Attribute,
		Op:        change.Op,
		OldValue:  oldVal,
		NewValue:  newVal,
		Timestamp: time.Now(),
	})
}

func (t *Task) failf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	t.Status = TaskStatusFailed
	t.Error = &msg
}

// taskOperation collapses per-attribute operations into one task-level
// operation: any update dominates, then create, then noop.
func taskOperation(changes []AttributeChange) history.ChangeOp {
	op := history.ChangeOpNoop
	for _, c := range changes {
		switch c.Op {
		case history.ChangeOpUpdate:
			return history.ChangeOpUpdate
		case history.ChangeOpCreate:
			op = history.ChangeOpCreate
		}
	}
	return op
}

// findByPath walks a /-separated resource path from the graph root.
func findByPath(root *graph.Instance, path string) *graph.Instance {
	inst := root
	for _, name := range strings.Split(strings.Trim(path, "/"), "/") {
		if name == "" {
			continue
		}
		var next *graph.Instance
		for _, child := range inst.Children() {
			if child.Name() == name {
				next = child
				break
			}
		}
		if next == nil {
			return nil
		}
		inst = next
	}
	return inst
}

// exprString renders the source expression for dependency records.
func exprString(raw any) string {
	if m, ok := raw.(map[string]any); ok {
		for _, k := range []string{"eval", "ref"} {
			if body, ok := m[k]; ok {
				if s, ok := body.(string); ok {
					return s
				}
				return fmt.Sprintf("%v", body)
			}
		}
	}
	return fmt.Sprintf("%v", raw)
}

func errorKind(err error) string {
	switch {
	case eval.IsParseError(err):
		return "parse"
	case eval.IsInternalError(err):
		return "internal"
	default:
		return "eval"
	}
}

func jsonValue(v any) (*string, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode value: %w", err)
	}
	s := string(data)
	return &s, nil
}
