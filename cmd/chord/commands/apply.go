package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openchord/openchord/pkg/history"
	"github.com/openchord/openchord/pkg/runtime"
	"github.com/openchord/openchord/pkg/telemetry"
)

func newApplyCommand() *cobra.Command {
	var (
		dbPath      string
		watch       bool
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply the manifest to the resource graph",
		Long: `Apply the manifest: build the resource graph, resolve every
declared attribute expression, and record what each task read and
changed.

With --watch the command keeps running and re-applies whenever the
manifest file changes.`,
		Example: `  # One-shot apply with change history
  chord apply -m site.yaml

  # Re-apply on every manifest edit
  chord apply -m site.yaml --watch

  # Apply without persisting history
  chord apply -m site.yaml --db ""

  # Expose prometheus metrics while watching
  chord apply -m site.yaml --watch --metrics-addr :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			tel, err := setupTelemetry(metricsAddr)
			if err != nil {
				return err
			}
			defer func() {
				if tel != nil {
					_ = tel.Shutdown(context.Background())
				}
			}()

			store, err := openStore(ctx, dbPath)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}

			if tel != nil {
				tel.Metrics.RecordManifestReload("initial")
			}
			if err := applyOnce(ctx, store, tel); err != nil {
				if !watch {
					return err
				}
				log.Error().Err(err).Msg("Apply failed, watching for changes")
			}

			if !watch {
				return nil
			}
			return watchAndApply(ctx, store, tel)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "chord.db", "history database path (empty disables persistence)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-apply when the manifest changes")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "expose prometheus metrics on this address")

	return cmd
}

func setupTelemetry(metricsAddr string) (*telemetry.Telemetry, error) {
	cfg := telemetry.DefaultConfig()
	cfg.Logging.Level = log.Logger.GetLevel().String()
	cfg.Metrics.Enabled = metricsAddr != ""
	if metricsAddr != "" {
		cfg.Metrics.ListenAddress = metricsAddr
	}

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}
	if metricsAddr != "" {
		if err := tel.StartMetricsServer(); err != nil {
			return nil, fmt.Errorf("failed to start metrics server: %w", err)
		}
		log.Info().Str("addr", metricsAddr).Msg("Metrics server started")
	}
	return tel, nil
}

func openStore(ctx context.Context, dbPath string) (*history.Store, error) {
	if dbPath == "" {
		return nil, nil
	}
	store, err := history.NewStore(history.Config{Path: dbPath})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func applyOnce(ctx context.Context, store *history.Store, tel *telemetry.Telemetry) error {
	m, root, reg, err := loadWorkspace()
	if err != nil {
		return err
	}

	opts := []runtime.RunnerOption{
		runtime.WithSchemas(reg),
		runtime.WithLogger(log.Logger),
	}
	if store != nil {
		opts = append(opts, runtime.WithStore(store))
	}
	if tel != nil {
		opts = append(opts, runtime.WithTelemetry(tel))
	}
	runner := runtime.NewRunner(newEngine(reg), opts...)

	job, err := runner.Apply(ctx, m, root)
	if err != nil {
		return err
	}

	log.Info().
		Str("job_id", job.ID).
		Str("status", string(job.Status)).
		Int("created", job.Summary.Created).
		Int("updated", job.Summary.Updated).
		Int("unchanged", job.Summary.Unchanged).
		Int("failed", job.Summary.Failed).
		Msg("Apply finished")

	if job.Status != runtime.StatusCompleted {
		for _, task := range job.Tasks {
			if task.Error != nil {
				log.Error().Str("resource", task.Resource).Str("error", *task.Error).Msg("Task failed")
			}
		}
		return fmt.Errorf("job %s finished with status %s", job.ID, job.Status)
	}
	return nil
}

// watchAndApply re-applies on manifest writes until the context is
// cancelled. Edits are debounced because editors produce bursts of
// write events for a single save.
func watchAndApply(ctx context.Context, store *history.Store, tel *telemetry.Telemetry) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors replace files on save, which drops
	// a watch on the file itself.
	dir := filepath.Dir(manifestPath)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	target, err := filepath.Abs(manifestPath)
	if err != nil {
		return err
	}

	log.Info().Str("manifest", manifestPath).Msg("Watching for changes")

	var debounce *time.Timer
	pending := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || abs != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(250*time.Millisecond, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})
		case <-pending:
			log.Info().Msg("Manifest changed, re-applying")
			if tel != nil {
				tel.Metrics.RecordManifestReload("watch")
			}
			if err := applyOnce(ctx, store, tel); err != nil {
				log.Error().Err(err).Msg("Apply failed")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("Watcher error")
		}
	}
}
