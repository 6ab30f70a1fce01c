package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/openchord/openchord/pkg/eval"
	"github.com/openchord/openchord/pkg/graph"
	"github.com/openchord/openchord/pkg/manifest"
	"github.com/openchord/openchord/pkg/template"
)

var (
	// Global flags
	manifestPath string
	verbose      bool
	jsonOutput   bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "chord",
		Short: "OpenChord - Configuration Query & Apply Engine",
		Long: `OpenChord manages a declared resource tree and resolves path
expressions against it.

Features:
  - Path-expression queries with filters, tests and ancestor search
  - YAML manifests with embedded expressions and templates
  - CUE schema validation
  - Durable job and change history in SQLite
  - Watch mode for continuous re-apply`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&manifestPath, "manifest", "m", "chord.yaml", "manifest file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newQueryCommand())
	rootCmd.AddCommand(newApplyCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}

// loadWorkspace loads the manifest, registers its schemas and builds
// the resource graph. Shared by the query, apply and validate commands.
func loadWorkspace() (*manifest.Manifest, *graph.Instance, *manifest.SchemaRegistry, error) {
	loader := manifest.NewLoader(log.Logger)
	m, err := loader.Load(manifestPath)
	if err != nil {
		return nil, nil, nil, err
	}
	reg := manifest.NewSchemaRegistry()
	if err := loader.RegisterSchemas(m, reg); err != nil {
		return nil, nil, nil, err
	}
	root, err := m.Build()
	if err != nil {
		return nil, nil, nil, err
	}
	return m, root, reg, nil
}

// newEngine builds the expression engine with the templating host and
// schema validator wired in.
func newEngine(reg *manifest.SchemaRegistry) *eval.Engine {
	host := template.New(template.WithLogger(log.Logger))
	opts := append(host.EngineOptions(),
		eval.WithSchemaValidator(reg),
		eval.WithLogger(log.Logger),
	)
	return eval.NewEngine(opts...)
}

// printResult writes v to stdout as YAML, or JSON with --json.
func printResult(v any) error {
	if jsonOutput {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	_, err = os.Stdout.Write(data)
	return err
}
