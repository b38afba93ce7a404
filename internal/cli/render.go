package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/factsync/internal/compiler"
	"github.com/roach88/factsync/internal/spec"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	Spec string // render only this specification
	Feed bool   // render the feed form (no projection)
}

// RenderedSpecification is one entry of render's JSON output.
type RenderedSpecification struct {
	Name     string `json:"name"`
	File     string `json:"file"`
	Identity string `json:"identity"`
	Text     string `json:"text"`
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render <specs-dir>",
		Short: "Print specifications in canonical text",
		Long: `Print each loaded specification in its canonical textual form.

With --feed the projection is dropped, giving the form exchanged with a
replica to describe which facts to synchronize.

Examples:
  factsync render ./specs
  factsync render ./specs --spec openOffices --feed`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Spec, "spec", "", "render only this specification")
	cmd.Flags().BoolVar(&opts.Feed, "feed", false, "render the feed form")

	return cmd
}

func runRender(opts *RenderOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	var selected []compiler.NamedSpecification
	if opts.Spec != "" {
		named, err := lookupSpec(formatter, specsDir, opts.Spec)
		if err != nil {
			return err
		}
		selected = []compiler.NamedSpecification{named}
	} else {
		result, diags := loadSpecs(specsDir)
		if result == nil {
			return formatter.Fail(ExitCommandError, diags[0].Code, diags[0].Message, nil)
		}
		for _, d := range diags {
			formatter.VerboseLog("skipped: %s", d)
		}
		selected = result.Specifications
	}

	rendered := make([]RenderedSpecification, len(selected))
	for i, n := range selected {
		text := spec.Render(n.Specification)
		if opts.Feed {
			text = spec.RenderFeed(n.Specification)
		}
		rendered[i] = RenderedSpecification{
			Name:     n.Name,
			File:     n.File,
			Identity: spec.Identity(n.Specification),
			Text:     text,
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(rendered)
	}
	for i, r := range rendered {
		if i > 0 {
			fmt.Fprintln(formatter.Writer)
		}
		fmt.Fprintf(formatter.Writer, "// %s\n%s", r.Name, r.Text)
	}
	return nil
}
