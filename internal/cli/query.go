package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nainya/entitystore/pkg/query"
	"github.com/nainya/entitystore/pkg/value"
)

// QueryOutput is the JSON shape of a query result
type QueryOutput struct {
	Records []value.Map `json:"records"`
	Total   int         `json:"total"`
	HasMore bool        `json:"hasMore"`
	Grouped bool        `json:"grouped"`
}

// NewQueryCommand runs a query spec over a JSON array of records
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		recordsPath string
		specPath    string
		specInline  string
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Filter, sort, aggregate and paginate a record set",
		Long: `Run a query over a JSON array of records.

The query is a YAML or JSON document, e.g.

  where:
    - {field: active, op: equals, value: true}
  orderBy:
    - {field: age, direction: desc}
  limit: 10

Pass --records - to read records from stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}

			records, err := readRecords(cmd, recordsPath)
			if err != nil {
				return err
			}

			specData := []byte(specInline)
			if specPath != "" {
				if specData, err = os.ReadFile(specPath); err != nil {
					return fmt.Errorf("read spec: %w", err)
				}
			}
			spec, err := query.ParseSpec(specData)
			if err != nil {
				return err
			}
			d, err := spec.Build()
			if err != nil {
				return err
			}

			log := newCommandLogger(cfg, cmd.ErrOrStderr())
			res := query.NewExecutor(query.WithLogger(log)).Execute(d, records)

			out := QueryOutput{Records: res.Records, Total: res.Total, HasMore: res.HasMore, Grouped: res.Grouped}
			return newFormatter(rootOpts, cmd.OutOrStdout()).Print(out, func(w io.Writer) {
				for _, r := range res.Records {
					fmt.Fprintln(w, formatValue(r))
				}
				fmt.Fprintf(w, "-- %d of %d, more: %t\n", len(res.Records), res.Total, res.HasMore)
			})
		},
	}

	cmd.Flags().StringVarP(&recordsPath, "records", "r", "", "JSON file holding an array of records (- for stdin)")
	cmd.Flags().StringVarP(&specPath, "spec", "s", "", "YAML or JSON query spec file")
	cmd.Flags().StringVarP(&specInline, "query", "q", "", "inline YAML or JSON query spec")
	cmd.MarkFlagsMutuallyExclusive("spec", "query")
	_ = cmd.MarkFlagRequired("records")

	return cmd
}

func readRecords(cmd *cobra.Command, path string) ([]value.Map, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	records, err := value.DecodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return records, nil
}
