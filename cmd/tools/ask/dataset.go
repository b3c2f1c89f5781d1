package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"sales-insight-workers/internal/common/config"
	"sales-insight-workers/internal/common/database"
	"sales-insight-workers/internal/dataset"
)

// loadAccessor loads only the dataset; no model or knowledge store is needed
// to inspect it.
func loadAccessor(ctx context.Context, cfg *config.Config) (*dataset.Accessor, error) {
	var db *sql.DB
	if cfg.Dataset.Source == "postgres" {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return nil, err
		}
		defer pg.Close()
		if err := pg.Ping(ctx); err != nil {
			return nil, err
		}
		db = pg.DB
	}

	frame, err := dataset.Load(ctx, cfg.Dataset, db)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	return dataset.NewAccessor(frame, dataset.OptionsFromConfig(cfg.Dataset)), nil
}

func datasetRunE(root *rootOptions, run func(cmd *cobra.Command, a *dataset.Accessor) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := root.loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), root.Timeout)
		defer cancel()

		a, err := loadAccessor(ctx, cfg)
		if err != nil {
			return err
		}
		return run(cmd, a)
	}
}

func newSummaryCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show dataset totals, date range, divisions and branches",
		Args:  cobra.NoArgs,
		RunE: datasetRunE(root, func(cmd *cobra.Command, a *dataset.Accessor) error {
			return renderSummary(cmd.OutOrStdout(), a.Summary(), root.Format)
		}),
	}
}

func newColumnsCommand(root *rootOptions) *cobra.Command {
	var (
		values string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "columns",
		Short: "Describe the dataset columns, or list the values of one column",
		Example: `  ask columns
  ask columns --values Division_Name`,
		Args: cobra.NoArgs,
		RunE: datasetRunE(root, func(cmd *cobra.Command, a *dataset.Accessor) error {
			if values != "" {
				unique, err := a.UniqueValues(values, limit)
				if err != nil {
					return err
				}
				return renderValues(cmd.OutOrStdout(), values, unique, root.Format)
			}
			return renderColumns(cmd.OutOrStdout(), a.Columns(), root.Format)
		}),
	}
	cmd.Flags().StringVar(&values, "values", "", "list the distinct values of this column")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of values listed with --values")
	return cmd
}

func newTableCommand(root *rootOptions) *cobra.Command {
	var rows int
	cmd := &cobra.Command{
		Use:   "table",
		Short: "Print the first rows of the dataset",
		Args:  cobra.NoArgs,
		RunE: datasetRunE(root, func(cmd *cobra.Command, a *dataset.Accessor) error {
			return renderFrame(cmd.OutOrStdout(), a.Preview(rows), root.Format)
		}),
	}
	cmd.Flags().IntVarP(&rows, "rows", "n", 20, "number of rows (capped by dataset.preview_limit)")
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderSummary(w io.Writer, s dataset.Summary, format string) error {
	if format == "json" {
		return writeJSON(w, s)
	}

	table := newTable(w)
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"Transactions", fmt.Sprint(s.TotalTransactions)})
	if s.DateRange != nil {
		table.Append([]string{"Date range", s.DateRange.Start + " to " + s.DateRange.End})
	}
	table.Append([]string{"Total revenue", fmt.Sprintf("%.2f", s.TotalRevenue)})
	table.Append([]string{"Total profit", fmt.Sprintf("%.2f", s.TotalProfit)})
	table.Append([]string{"Average margin", fmt.Sprintf("%.2f", s.AverageMargin)})
	table.Append([]string{"Divisions", strings.Join(s.Divisions, ", ")})
	table.Append([]string{"Branches", strings.Join(s.Branches, ", ")})
	table.Render()
	return nil
}

func renderColumns(w io.Writer, cols []dataset.ColumnInfo, format string) error {
	if format == "json" {
		return writeJSON(w, cols)
	}

	table := newTable(w)
	table.SetHeader([]string{"Column", "Type", "Non-null", "Unique", "Samples"})
	for _, c := range cols {
		table.Append([]string{c.Name, c.Dtype, fmt.Sprint(c.NonNull), fmt.Sprint(c.Unique), joinValues(c.Samples)})
	}
	table.Render()
	return nil
}

func renderValues(w io.Writer, column string, values []any, format string) error {
	if format == "json" {
		return writeJSON(w, map[string]interface{}{"column": column, "values": values})
	}

	table := newTable(w)
	table.SetHeader([]string{column})
	for _, v := range values {
		table.Append([]string{dataset.FormatValue(v)})
	}
	table.Render()
	return nil
}

func renderFrame(w io.Writer, f *dataset.Frame, format string) error {
	if format == "json" {
		records := make([]map[string]any, f.Len())
		for i := range records {
			records[i] = f.Row(i)
		}
		return writeJSON(w, records)
	}

	cols := f.Columns()
	table := newTable(w)
	table.SetHeader(f.Names())
	for i := 0; i < f.Len(); i++ {
		cells := make([]string, len(cols))
		for j, c := range cols {
			cells[j] = dataset.FormatValue(c.Values[i])
		}
		table.Append(cells)
	}
	table.Render()
	return nil
}

func joinValues(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = dataset.FormatValue(v)
	}
	return strings.Join(parts, ", ")
}
