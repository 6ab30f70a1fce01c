package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openchord/openchord/pkg/eval"
	"github.com/openchord/openchord/pkg/graph"
	"github.com/openchord/openchord/pkg/telemetry"
)

func newQueryCommand() *cobra.Command {
	var (
		resourcePath string
		allMatches   bool
		varFlags     []string
	)

	cmd := &cobra.Command{
		Use:   "query <expression>",
		Short: "Resolve a path expression against the manifest's resource graph",
		Long: `Resolve a path expression against the resource graph built from
the manifest.

The expression is evaluated rooted at the resource named by --resource
(the graph root by default). Plain keys search the resource and its
ancestors; filters, tests, wildcards and expression functions follow
the same grammar used inside manifest attributes.`,
		Example: `  # Nearest value of "port" from the graph root
  chord query port

  # All matches instead of the first collapse
  chord query ".descendents::port" --all

  # Query rooted at a nested resource, with a variable binding
  chord query "servers::[zone=$zone]::name" --resource /site/web --var zone=us`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expression := args[0]

			vars, err := parseVarFlags(varFlags)
			if err != nil {
				return err
			}

			_, root, reg, err := loadWorkspace()
			if err != nil {
				return err
			}
			target, err := resolveTarget(root, resourcePath)
			if err != nil {
				return err
			}

			engine := newEngine(reg)
			ref, err := eval.NewRef(expression, nil)
			if err != nil {
				return err
			}

			ctx := engine.NewContext(target).WithVars(vars)
			if verbose {
				ctx = ctx.WithTrace(1)
			}

			log.Debug().
				Str("expression", expression).
				Str("resource", target.Path()).
				Msg("Resolving query")

			tel, err := setupTelemetry("")
			if err != nil {
				return err
			}
			defer func() { _ = tel.Shutdown(context.Background()) }()

			var display any
			err = telemetry.RecordQueryOperation(tel.WithContext(cmd.Context()), expression, func() (bool, error) {
				if allMatches {
					values, err := ref.ResolveAll(ctx)
					if err != nil {
						return false, err
					}
					display = displayValue(values)
					return len(values) > 0, nil
				}
				value, err := ref.ResolveOne(ctx)
				if err != nil {
					return false, err
				}
				display = displayValue(value)
				return value != nil, nil
			})
			if err != nil {
				return err
			}
			return printResult(display)
		},
	}

	cmd.Flags().StringVarP(&resourcePath, "resource", "r", "", "resource path to evaluate at (default: graph root)")
	cmd.Flags().BoolVar(&allMatches, "all", false, "print every match as a list")
	cmd.Flags().StringArrayVar(&varFlags, "var", nil, "variable binding as key=value (repeatable)")

	return cmd
}

func parseVarFlags(flags []string) (map[string]any, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	vars := make(map[string]any, len(flags))
	for _, f := range flags {
		key, value, ok := strings.Cut(f, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --var %q, want key=value", f)
		}
		vars[key] = value
	}
	return vars, nil
}

// resolveTarget walks a /-separated path from the graph root.
func resolveTarget(root *graph.Instance, path string) (*graph.Instance, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return root, nil
	}
	names := strings.Split(trimmed, "/")
	// A leading root name is accepted so paths printed elsewhere
	// (/site/db) round-trip.
	if names[0] == root.Name() {
		names = names[1:]
	}
	inst := root
	for _, name := range names {
		var next *graph.Instance
		for _, child := range inst.Children() {
			if child.Name() == name {
				next = child
				break
			}
		}
		if next == nil {
			return nil, fmt.Errorf("resource %s not found in graph", path)
		}
		inst = next
	}
	return inst, nil
}

// displayValue makes resolved values printable: resources render as
// their paths, opaque external values stay masked.
func displayValue(v any) any {
	switch t := v.(type) {
	case *graph.Instance:
		return t.Path()
	case eval.External:
		return "(external)"
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = displayValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = displayValue(item)
		}
		return out
	default:
		return v
	}
}
