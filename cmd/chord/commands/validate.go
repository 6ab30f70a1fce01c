package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openchord/openchord/pkg/runtime"
)

func newValidateCommand() *cobra.Command {
	var resolve bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the manifest",
		Long: `Validate the manifest: structure, resource names, schema
references and graph shape.

With --resolve the command additionally dry-runs every attribute
expression and checks resolved attributes against their declared
schemas, without persisting anything.`,
		Example: `  # Structural validation
  chord validate -m site.yaml

  # Also resolve expressions and check schemas
  chord validate -m site.yaml --resolve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, root, reg, err := loadWorkspace()
			if err != nil {
				return err
			}

			if resolve {
				runner := runtime.NewRunner(newEngine(reg),
					runtime.WithSchemas(reg),
					runtime.WithLogger(log.Logger),
				)
				job, err := runner.Apply(cmd.Context(), m, root)
				if err != nil {
					return err
				}
				if job.Status != runtime.StatusCompleted {
					for _, task := range job.Tasks {
						if task.Error != nil {
							log.Error().Str("resource", task.Resource).Str("error", *task.Error).Msg("Validation failed")
						}
					}
					return fmt.Errorf("%d of %d resources failed validation", job.Summary.Failed, job.Summary.Total)
				}
			}

			log.Info().
				Str("manifest", m.Name).
				Int("resources", m.ResourceCount()).
				Bool("resolved", resolve).
				Msg("Manifest is valid")
			fmt.Printf("%s: %d resources OK\n", m.Name, m.ResourceCount())
			return nil
		},
	}

	cmd.Flags().BoolVar(&resolve, "resolve", false, "resolve expressions and check schemas")

	return cmd
}
