package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// LoadOptions holds flags for the load command.
type LoadOptions struct {
	*RootOptions
	DB dbFlag
}

// LoadedFact is one fact in load's output.
type LoadedFact struct {
	ID        string `json:"id"`
	Reference string `json:"reference"`
}

// LoadSummary is load's JSON output.
type LoadSummary struct {
	Facts    []LoadedFact `json:"facts"`
	Inserted int          `json:"inserted"`
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load <facts.yaml>",
		Short: "Save facts from a YAML file into the database",
		Long: `Save the facts of a YAML file into the database, in file order.

Saving is idempotent: a fact already present is left alone. Each fact's
reference (Type:hash) is printed so it can be passed to --given.

Example:
  factsync load --db ./facts.db ./directory.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB.Path, "db", envOr(EnvDatabase, ""), "path to SQLite database (default $"+EnvDatabase+")")

	return cmd
}

func runLoad(ctx context.Context, opts *LoadOptions, factsPath string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	facts, err := readFactFile(factsPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeFactFile, "failed to read facts", err)
	}

	st, err := opts.DB.open(formatter)
	if err != nil {
		return err
	}
	defer st.Close()

	inserted, err := st.SaveFacts(ctx, facts.Facts)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to save facts", err)
	}
	opts.logger().Debug("facts loaded", "file", factsPath, "total", len(facts.Facts), "inserted", inserted)

	summary := LoadSummary{Inserted: inserted}
	for _, step := range facts.Steps {
		summary.Facts = append(summary.Facts, LoadedFact{ID: step.ID, Reference: facts.Refs[step.ID].String()})
	}

	if formatter.Format == "json" {
		return formatter.Success(summary)
	}
	for _, f := range summary.Facts {
		fmt.Fprintf(formatter.Writer, "%s\t%s\n", f.ID, f.Reference)
	}
	fmt.Fprintf(formatter.Writer, "✓ %d fact(s) saved, %d new\n", len(summary.Facts), inserted)
	return nil
}
