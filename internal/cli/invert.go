package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/factsync/internal/inverse"
	"github.com/roach88/factsync/internal/spec"
)

// InvertOptions holds flags for the invert command.
type InvertOptions struct {
	*RootOptions
	Spec string
}

// InverseInfo is one inverse in invert's JSON output.
type InverseInfo struct {
	Target        string   `json:"target"`
	TargetType    string   `json:"target_type"`
	Operation     string   `json:"operation"`
	Path          string   `json:"path"`
	GivenSubset   []string `json:"given_subset"`
	ResultSubset  []string `json:"result_subset"`
	ParentSubset  []string `json:"parent_subset"`
	ExtraGivens   []string `json:"extra_givens,omitempty"`
	Specification string   `json:"specification"`
}

// NewInvertCommand creates the invert command.
func NewInvertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invert <specs-dir>",
		Short: "List the inverses of a specification",
		Long: `List every inverse of a specification.

An inverse is rooted at one fact type the specification mentions. When a
fact of that type arrives, running the inverse from it finds exactly the
results it adds, removes, or requires re-checking.

Example:
  factsync invert ./specs --spec openOffices`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvert(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Spec, "spec", "", "specification to invert (required)")

	return cmd
}

func runInvert(opts *InvertOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	named, err := lookupSpec(formatter, specsDir, opts.Spec)
	if err != nil {
		return err
	}

	invs, err := inverse.Invert(named.Specification, inverse.WithLogger(opts.logger()))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeExecute, "inversion failed", err)
	}
	formatter.VerboseLog("%s: %d inverse(s)", named.Name, len(invs))

	if formatter.Format == "json" {
		infos := make([]InverseInfo, len(invs))
		for i, inv := range invs {
			infos[i] = inverseInfo(inv)
		}
		return formatter.Success(infos)
	}

	if len(invs) == 0 {
		fmt.Fprintf(formatter.Writer, "%s has no inverses\n", named.Name)
		return nil
	}
	fmt.Fprint(formatter.Writer, inverse.RenderAll(invs))
	return nil
}

func inverseInfo(inv inverse.Inverse) InverseInfo {
	target := inv.Target()
	info := InverseInfo{
		Target:        target.Name,
		TargetType:    target.Type,
		Operation:     inv.Operation.String(),
		Path:          string(inv.Path),
		GivenSubset:   inv.GivenSubset.Names(),
		ResultSubset:  inv.ResultSubset.Names(),
		ParentSubset:  inv.ParentSubset.Names(),
		Specification: spec.Render(inv.InverseSpecification),
	}
	for _, l := range inv.ExtraGivens() {
		info.ExtraGivens = append(info.ExtraGivens, l.Name)
	}
	return info
}
