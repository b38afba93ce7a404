package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/factsync/internal/engine"
	"github.com/roach88/factsync/internal/ir"
)

// Query strategies.
const (
	StrategyGraph = "graph" // walk the graph with the match executor
	StrategySQL   = "sql"   // one SQL statement for the top-level matches
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	DB       dbFlag
	Spec     string
	Given    []string
	Strategy string
}

// QueryResult is query's JSON output.
type QueryResult struct {
	Specification string          `json:"specification"`
	Strategy      string          `json:"strategy"`
	Count         int             `json:"count"`
	Results       json.RawMessage `json:"results"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <specs-dir>",
		Short: "Execute a specification against the database",
		Long: `Execute a specification from its givens and print the projected results.

The graph strategy walks predecessor and successor edges fact by fact.
The sql strategy evaluates the top-level matches in a single statement
and projects the rows the same way; both return the same results.

Example:
  factsync query --db ./facts.db ./specs --spec openOffices \
    --given company=Company:3f2a...`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB.Path, "db", envOr(EnvDatabase, ""), "path to SQLite database (default $"+EnvDatabase+")")
	cmd.Flags().StringVar(&opts.Spec, "spec", "", "specification to execute (required)")
	cmd.Flags().StringArrayVar(&opts.Given, "given", nil, "bind a given: label=Type:hash (repeatable)")
	cmd.Flags().StringVar(&opts.Strategy, "strategy", StrategyGraph, "execution strategy (graph|sql)")

	return cmd
}

func runQuery(ctx context.Context, opts *QueryOptions, specsDir string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Strategy != StrategyGraph && opts.Strategy != StrategySQL {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric,
			fmt.Sprintf("invalid strategy %q: must be %s or %s", opts.Strategy, StrategyGraph, StrategySQL), nil)
	}

	named, err := lookupSpec(formatter, specsDir, opts.Spec)
	if err != nil {
		return err
	}
	given, err := bindGivens(named.Specification, opts.Given, nil)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBadGiven, "invalid givens", err)
	}

	st, err := opts.DB.open(formatter)
	if err != nil {
		return err
	}
	defer st.Close()

	exec := engine.NewExecutor(st, engine.WithLogger(opts.logger()))
	var products []engine.Product
	switch opts.Strategy {
	case StrategySQL:
		tuples, err := st.ReadTuples(ctx, named.Specification, given)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeExecute, "query failed", err)
		}
		products, err = exec.Project(ctx, tuples, named.Specification.Projection)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeExecute, "projection failed", err)
		}
	default:
		products, err = exec.Execute(ctx, named.Specification, given)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeExecute, "execution failed", err)
		}
	}
	formatter.VerboseLog("%s: %d result(s) via %s", named.Name, len(products), opts.Strategy)

	values := engine.ProductsValue(products)
	if formatter.Format == "json" {
		data, err := ir.MarshalIRValue(values)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to encode results", err)
		}
		return formatter.Success(QueryResult{
			Specification: named.Name,
			Strategy:      opts.Strategy,
			Count:         len(values),
			Results:       data,
		})
	}
	for _, v := range values {
		line, err := ir.MarshalIRValue(v)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to encode result", err)
		}
		fmt.Fprintln(formatter.Writer, string(line))
	}
	return nil
}
