package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/jsonpartial/internal/partial"
	"github.com/zjrosen/jsonpartial/internal/tracing"
)

func newRenderCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render [FILE|-]",
		Short: "Resolve partial references in a JSON document and print it",
		Long: `Resolve every <name> reference in a JSON document against the loaded
partials and print the result. The document is read from FILE, or from
stdin when FILE is "-" or omitted.

Examples:
  # Render a document using a partials directory
  jsonpartial render page.json --partials ./partials

  # Render from stdin with compact output
  echo '{"a": <a>}' | jsonpartial render - -m partials.yaml --indent ""

  # Substitute null for unknown partials
  jsonpartial render page.json --lenient`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			applyStrictFlags(cmd, a)

			engine := a.newEngine()
			if _, err := a.loadPartials(cmd.Context(), engine); err != nil {
				return err
			}

			text, origin, err := readDocument(cmd, args)
			if err != nil {
				return err
			}

			out, err := a.render(cmd.Context(), engine, text, origin)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}

	addStrictFlags(cmd)
	cmd.Flags().String("indent", "  ", `indentation for output ("" for compact)`)
	_ = a.v.BindPFlag("indent", cmd.Flags().Lookup("indent"))
	return cmd
}

func addStrictFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("strict", false, "fail on unknown partials (overrides config)")
	cmd.Flags().Bool("lenient", false, "render unknown partials as null (overrides config)")
	cmd.MarkFlagsMutuallyExclusive("strict", "lenient")
}

func applyStrictFlags(cmd *cobra.Command, a *app) {
	if strict, _ := cmd.Flags().GetBool("strict"); strict {
		a.cfg.Strict = true
	}
	if lenient, _ := cmd.Flags().GetBool("lenient"); lenient {
		a.cfg.Strict = false
	}
}

// readDocument reads the document named by args, or stdin.
func readDocument(cmd *cobra.Command, args []string) (text, origin string, err error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), "<stdin>", nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", "", fmt.Errorf("reading document: %w", err)
	}
	return string(data), args[0], nil
}

// render parses text against engine and formats it per the config.
func (a *app) render(ctx context.Context, engine *partial.Engine, text, origin string) (string, error) {
	_, span := a.provider.Tracer().Start(ctx, tracing.SpanRender, trace.WithAttributes(
		attribute.String(tracing.AttrPath, origin),
		attribute.Bool(tracing.AttrStrict, engine.StrictMode()),
	))
	defer span.End()

	value, err := engine.Parse(text, nil)
	if err != nil {
		tracing.Fail(span, err)
		return "", fmt.Errorf("rendering %s: %w", origin, err)
	}

	var opts []partial.FormatOption
	if a.cfg.Indent != "" {
		opts = append(opts, partial.WithIndent("", a.cfg.Indent))
	}
	out, err := engine.Stringify(value, opts...)
	if err != nil {
		tracing.Fail(span, err)
		return "", fmt.Errorf("encoding %s: %w", origin, err)
	}
	span.SetAttributes(attribute.Int(tracing.AttrBytes, len(out)))
	return out, nil
}
