package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"jaegerds/internal/app"
	"jaegerds/internal/models"
	"jaegerds/internal/timerange"
)

const maxFieldsCLI = 16

var (
	fromFlag    string
	toFlag      string
	jsonFlag    bool
	search      models.SearchQuery
	maxRowsFlag int
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <trace-id>",
	Short: "Fetch a single trace by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			return runQuery(ctx, a, models.LookupQuery{ID: args[0]})
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search traces of a service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			return runQuery(ctx, a, search)
		})
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file|->",
	Short: "Render a Jaeger JSON document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readDocument(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			return runQuery(ctx, a, models.UploadQuery{Document: doc})
		})
	},
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test the connection to Jaeger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			result := a.Datasource.TestConnection(ctx)
			if jsonFlag {
				return printJSON(result)
			}
			fmt.Printf("%s: %s\n", result.Status, result.Message)
			if result.Status != models.TestStatusSuccess {
				return errors.New("connection test failed")
			}
			return nil
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{lookupCmd, searchCmd, uploadCmd} {
		cmd.Flags().StringVar(&fromFlag, "from", "", "Range start, e.g. now-1h")
		cmd.Flags().StringVar(&toFlag, "to", "", "Range end, e.g. now")
		cmd.Flags().BoolVar(&jsonFlag, "json", false, "Output frames as JSON")
		cmd.Flags().IntVar(&maxRowsFlag, "max-rows", 50, "Rows printed per frame")
	}
	testCmd.Flags().BoolVar(&jsonFlag, "json", false, "Output as JSON")

	searchCmd.Flags().StringVarP(&search.Service, "service", "s", "", "Service name")
	searchCmd.Flags().StringVarP(&search.Operation, "operation", "o", "", "Operation name, or All")
	searchCmd.Flags().StringVarP(&search.Tags, "tags", "t", "", "logfmt tags, e.g. error=true")
	searchCmd.Flags().StringVar(&search.MinDuration, "min-duration", "", "Minimum span duration, e.g. 100ms")
	searchCmd.Flags().StringVar(&search.MaxDuration, "max-duration", "", "Maximum span duration, e.g. 1.2s")
	searchCmd.Flags().StringVarP(&search.Limit, "limit", "l", "", "Maximum number of traces")

	rootCmd.AddCommand(lookupCmd, searchCmd, uploadCmd, testCmd)
}

func runQuery(ctx context.Context, a *app.App, q models.Query) error {
	if fromFlag != "" || toFlag != "" {
		from, to := fromFlag, toFlag
		if from == "" {
			from = a.Config.TimeRange.From
		}
		if to == "" {
			to = a.Config.TimeRange.To
		}
		ctx = timerange.WithRange(ctx, timerange.Range{From: timerange.Expr(from), To: timerange.Expr(to)})
	}

	resp := a.Datasource.Query(ctx, q, nil)
	if resp.Failed() {
		return resp.Error
	}

	if jsonFlag {
		return printJSON(resp)
	}
	if len(resp.Frames) == 0 {
		fmt.Println("No data")
		return nil
	}
	for _, frame := range resp.Frames {
		table, err := frame.StringTable(maxFieldsCLI, maxRowsFlag)
		if err != nil {
			return err
		}
		fmt.Println(table)
	}
	return nil
}

func readDocument(path string) (string, error) {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(os.Stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}
	return string(b), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
