package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nainya/entitystore/pkg/attrindex"
	"github.com/nainya/entitystore/pkg/value"
)

// NewIndexCommand groups the attribute index subcommands. Each one loads the
// index from storage, applies the operation and saves it back if it changed.
func NewIndexCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage and search the attribute index",
	}

	cmd.AddCommand(newIndexAddCommand(rootOpts))
	cmd.AddCommand(newIndexRemoveCommand(rootOpts))
	cmd.AddCommand(newIndexRemoveEntityCommand(rootOpts))
	cmd.AddCommand(newIndexFindCommand(rootOpts))
	cmd.AddCommand(newIndexWhereCommand(rootOpts))
	cmd.AddCommand(newIndexAttributesCommand(rootOpts))
	cmd.AddCommand(newIndexStatsCommand(rootOpts))

	return cmd
}

// withIndex opens the environment, loads the index and runs fn. The index is
// saved afterwards when mutate is set and fn succeeded.
func withIndex(cmd *cobra.Command, opts *RootOptions, mutate bool, fn func(ctx context.Context, e *env) error) error {
	ctx := cmd.Context()
	e, err := openEnv(ctx, opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.load(ctx); err != nil {
		return err
	}
	if err := fn(ctx, e); err != nil {
		return err
	}
	if mutate {
		return e.save(ctx)
	}
	return nil
}

func newIndexAddCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <entity> <attribute> <value>",
		Short: "Set an attribute value on an entity",
		Long: `Set an attribute value on an entity, replacing any previous value.

The value is parsed as JSON when possible (42, true, null, ["a"], {"k":1});
anything else is taken as text.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withIndex(cmd, rootOpts, true, func(ctx context.Context, e *env) error {
				v := parseValueArg(args[2])
				if err := e.index.AddAttribute(args[0], args[1], v); err != nil {
					return err
				}
				return newFormatter(rootOpts, cmd.OutOrStdout()).Print(
					map[string]any{"entityId": args[0], "attribute": args[1], "value": v},
					func(w io.Writer) {
						fmt.Fprintf(w, "%s.%s = %s\n", args[0], args[1], formatValue(v))
					})
			})
		},
	}
}

func newIndexRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <entity> <attribute>",
		Short: "Remove one attribute from an entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withIndex(cmd, rootOpts, true, func(ctx context.Context, e *env) error {
				return e.index.RemoveAttribute(args[0], args[1])
			})
		},
	}
}

func newIndexRemoveEntityCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-entity <entity>",
		Short: "Remove an entity and all of its attributes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withIndex(cmd, rootOpts, true, func(ctx context.Context, e *env) error {
				return e.index.RemoveEntity(args[0])
			})
		},
	}
}

func newIndexFindCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "find <attribute> [value]",
		Short: "List entities with attribute = value, or with the attribute at all",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withIndex(cmd, rootOpts, false, func(ctx context.Context, e *env) error {
				var v value.Value
				if len(args) == 2 {
					v = parseValueArg(args[1])
				}
				ids, err := e.index.FindByAttribute(args[0], v)
				if err != nil {
					return err
				}
				return newFormatter(rootOpts, cmd.OutOrStdout()).Print(
					map[string]any{"entityIds": ids},
					func(w io.Writer) { printIDs(w, ids) })
			})
		},
	}
}

// parseCondition reads attribute:operator[:value]
func parseCondition(s string) (attrindex.Condition, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 {
		return attrindex.Condition{}, fmt.Errorf("condition %q: want attribute:operator[:value]", s)
	}
	c := attrindex.Condition{Attribute: parts[0], Operator: attrindex.Operator(parts[1])}
	if len(parts) == 3 {
		c.Value = parseValueArg(parts[2])
	}
	return c, nil
}

func newIndexWhereCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		conds      []string
		combinator string
	)

	cmd := &cobra.Command{
		Use:   "where",
		Short: "List entities matching several conditions",
		Long: `List entities matching several conditions joined by AND or OR.

Each --cond is attribute:operator[:value] with operator one of
equals, exists, contains or startsWith, e.g.

  entitystore index where --cond type:equals:function --cond name:startsWith:parse`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			comb, err := attrindex.ParseCombinator(combinator)
			if err != nil {
				return err
			}
			parsed := make([]attrindex.Condition, 0, len(conds))
			for _, s := range conds {
				c, err := parseCondition(s)
				if err != nil {
					return err
				}
				parsed = append(parsed, c)
			}

			return withIndex(cmd, rootOpts, false, func(ctx context.Context, e *env) error {
				ids, err := e.index.FindByAttributes(parsed, comb)
				if err != nil {
					return err
				}
				return newFormatter(rootOpts, cmd.OutOrStdout()).Print(
					map[string]any{"entityIds": ids},
					func(w io.Writer) { printIDs(w, ids) })
			})
		},
	}

	cmd.Flags().StringArrayVar(&conds, "cond", nil, "condition attribute:operator[:value] (repeatable)")
	cmd.Flags().StringVar(&combinator, "combinator", "AND", "AND or OR")
	return cmd
}

func newIndexAttributesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "attributes <entity>",
		Short: "Show every attribute recorded for an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withIndex(cmd, rootOpts, false, func(ctx context.Context, e *env) error {
				attrs := e.index.Attributes(args[0])
				return newFormatter(rootOpts, cmd.OutOrStdout()).Print(attrs, func(w io.Writer) {
					if len(attrs) == 0 {
						fmt.Fprintf(w, "%s has no attributes\n", args[0])
						return
					}
					for _, f := range attrs {
						fmt.Fprintf(w, "%s = %s\n", f.Key, formatValue(f.Value))
					}
				})
			})
		},
	}
}

func newIndexStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show index size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withIndex(cmd, rootOpts, false, func(ctx context.Context, e *env) error {
				st := e.index.Statistics()
				return newFormatter(rootOpts, cmd.OutOrStdout()).Print(
					map[string]any{
						"totalEntities":          st.TotalEntities,
						"totalAttributes":        st.TotalAttributes,
						"totalAssociations":      st.TotalAssociations,
						"avgAttributesPerEntity": st.AvgAttributesPerEntity,
					},
					func(w io.Writer) {
						fmt.Fprintf(w, "entities:     %d\n", st.TotalEntities)
						fmt.Fprintf(w, "attributes:   %d\n", st.TotalAttributes)
						fmt.Fprintf(w, "associations: %d\n", st.TotalAssociations)
						fmt.Fprintf(w, "avg/entity:   %.2f\n", st.AvgAttributesPerEntity)
					})
			})
		},
	}
}
