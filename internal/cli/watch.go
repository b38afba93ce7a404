package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/factsync/internal/engine"
	"github.com/roach88/factsync/internal/harness"
	"github.com/roach88/factsync/internal/ir"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	DB    dbFlag
	Spec  string
	Given []string
}

// WatchResult is watch's JSON output.
type WatchResult struct {
	Specification string                `json:"specification"`
	Observer      string                `json:"observer"`
	Initial       int                   `json:"initial"`
	Arrivals      int                   `json:"arrivals"`
	Changes       []harness.ChangeEvent `json:"changes"`
	Results       json.RawMessage       `json:"results"`
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <specs-dir> <facts.yaml>",
		Short: "Observe a specification while facts arrive",
		Long: `Start an observer over a specification, then save the facts of a
YAML file one at a time and print every change to the result set.

Facts marked "seed: true" are saved before the observer starts. Givens
may name a fact of the file by id instead of Type:hash.

Example:
  factsync watch --db ./facts.db ./specs ./arrivals.yaml \
    --spec openOffices --given company=acme`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB.Path, "db", envOr(EnvDatabase, ""), "path to SQLite database (default $"+EnvDatabase+")")
	cmd.Flags().StringVar(&opts.Spec, "spec", "", "specification to observe (required)")
	cmd.Flags().StringArrayVar(&opts.Given, "given", nil, "bind a given: label=Type:hash or label=id (repeatable)")

	return cmd
}

func runWatch(ctx context.Context, opts *WatchOptions, specsDir, factsPath string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := opts.logger()

	named, err := lookupSpec(formatter, specsDir, opts.Spec)
	if err != nil {
		return err
	}
	facts, err := readFactFile(factsPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeFactFile, "failed to read facts", err)
	}
	given, err := bindGivens(named.Specification, opts.Given, facts)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBadGiven, "invalid givens", err)
	}

	st, err := opts.DB.open(formatter)
	if err != nil {
		return err
	}
	defer st.Close()

	for i, step := range facts.Steps {
		if !step.Seed {
			continue
		}
		if _, _, err := st.SaveFact(ctx, facts.Facts[i]); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDatabase, fmt.Sprintf("failed to save seed %s", step.ID), err)
		}
	}

	obs, err := engine.NewObserver(st, named.Specification, given, engine.WithObserverLogger(logger))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeExecute, "failed to create observer", err)
	}
	if err := obs.Start(ctx); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeExecute, "failed to start observer", err)
	}
	invs, err := obs.Inverses()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeExecute, "inversion failed", err)
	}
	formatter.VerboseLog("%s: observer %s with %d inverse(s)", named.Name, obs.ID(), len(invs))

	result := WatchResult{
		Specification: named.Name,
		Observer:      obs.ID(),
		Initial:       len(obs.Results()),
		Changes:       []harness.ChangeEvent{},
	}
	text := formatter.Format != "json"
	if text {
		fmt.Fprintf(formatter.Writer, "observing %s: %d result(s)\n", named.Name, result.Initial)
	}

	for i, step := range facts.Steps {
		if step.Seed {
			continue
		}
		ref, _, err := st.SaveFact(ctx, facts.Facts[i])
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDatabase, fmt.Sprintf("failed to save %s", step.ID), err)
		}
		changes, err := obs.Apply(ctx, ref)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeExecute, fmt.Sprintf("failed to apply %s", step.ID), err)
		}
		result.Arrivals++
		logger.Debug("fact applied", "fact", step.ID, "changes", len(changes))
		for _, c := range changes {
			ev := changeEvent(step.ID, c, facts)
			result.Changes = append(result.Changes, ev)
			if text {
				fmt.Fprintln(formatter.Writer, ev)
			}
		}
	}

	results, err := ir.MarshalIRValue(engine.ProductsValue(obs.Results()))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to encode results", err)
	}
	result.Results = results

	if !text {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "%d arrival(s), %d change(s)\n", result.Arrivals, len(result.Changes))
	fmt.Fprintf(formatter.Writer, "results: %s\n", results)
	return nil
}

// changeEvent describes a change with facts named by their file id.
func changeEvent(factID string, c engine.Change, facts *loadedFacts) harness.ChangeEvent {
	tuple := make(map[string]string, len(c.Tuple))
	for _, b := range c.Tuple {
		tuple[b.Label] = facts.alias(b.Ref)
	}
	return harness.ChangeEvent{
		Fact:  factID,
		Added: c.Added,
		Path:  string(c.Path),
		Tuple: tuple,
	}
}
