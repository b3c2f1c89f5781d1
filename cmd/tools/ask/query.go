package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"sales-insight-workers/internal/analysis"
	"sales-insight-workers/internal/app"
	"sales-insight-workers/internal/common/camunda"
	"sales-insight-workers/internal/common/config"
	"sales-insight-workers/internal/common/logger"
	"sales-insight-workers/internal/common/observability"
	"sales-insight-workers/internal/dataset"
	"sales-insight-workers/internal/models"
)

type queryOptions struct {
	Remote   bool
	ShowCode bool
}

func newQueryCommand(root *rootOptions) *cobra.Command {
	opts := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Answer a question about the sales data",
		Example: `  ask query "What was total revenue in 2024?"
  ask query --remote "Why did Cement sales drop in Q3?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")

			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), root.Timeout)
			defer cancel()

			var resp *models.AnswerResponse
			if opts.Remote {
				resp, err = askRemote(ctx, cfg, question)
			} else {
				resp, err = askLocal(ctx, cfg, question)
			}
			if err != nil {
				return err
			}
			return renderAnswer(cmd.OutOrStdout(), resp, root.Format, opts.ShowCode)
		},
	}

	cmd.Flags().BoolVar(&opts.Remote, "remote", false, "start a process instance through Zeebe instead of running in-process")
	cmd.Flags().BoolVar(&opts.ShowCode, "code", false, "print the generated analysis code")
	return cmd
}

func askLocal(ctx context.Context, cfg *config.Config, question string) (*models.AnswerResponse, error) {
	zapLog := logger.NewWithOutput("warn", "console", "stderr")
	defer zapLog.Sync()

	deps, err := app.Build(ctx, cfg, zapLog, observability.Noop())
	if err != nil {
		return nil, err
	}
	defer deps.Close()

	return deps.Handlers.Answer.Answer(ctx, "", question), nil
}

func askRemote(ctx context.Context, cfg *config.Config, question string) (*models.AnswerResponse, error) {
	client, err := camunda.NewClientWithConfig(&camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
	})
	if err != nil {
		return nil, err
	}
	defer client.Close()

	vars, err := client.CreateInstanceWithResult(ctx, cfg.Camunda.ProcessID, map[string]interface{}{
		"requestId": uuid.NewString(),
		"question":  question,
	})
	if err != nil {
		return nil, err
	}
	return decodeRemoteResponse(vars)
}

// decodeRemoteResponse reads the "response" variable the answer-question
// task writes.
func decodeRemoteResponse(vars map[string]interface{}) (*models.AnswerResponse, error) {
	raw, ok := vars["response"]
	if !ok {
		return nil, fmt.Errorf("process completed without a response variable")
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var resp models.AnswerResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}

func renderAnswer(w io.Writer, resp *models.AnswerResponse, format string, showCode bool) error {
	if format == "json" {
		return writeJSON(w, resp)
	}

	fmt.Fprintln(w, resp.Answer)
	fmt.Fprintln(w)

	meta := newTable(w)
	meta.SetHeader([]string{"Request", "Agent", "Query Type", "Success"})
	meta.Append([]string{resp.RequestID, resp.Agent, resp.QueryType, fmt.Sprint(resp.Success)})
	meta.Render()

	if resp.Error != "" {
		fmt.Fprintf(w, "\nError: %s\n", resp.Error)
	}
	if showCode && resp.Code != "" {
		fmt.Fprintf(w, "\nCode:\n%s\n", resp.Code)
	}
	if resp.Data != nil {
		if t, ok := resp.Data.Result.(analysis.Table); ok && len(t.Rows) > 0 {
			fmt.Fprintln(w)
			renderResultTable(w, t)
		}
	}
	return nil
}

func renderResultTable(w io.Writer, t analysis.Table) {
	table := newTable(w)
	table.SetHeader(t.Columns)
	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = dataset.FormatValue(v)
		}
		table.Append(cells)
	}
	table.Render()
}

func newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(true)
	return table
}
