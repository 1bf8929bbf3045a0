package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/FranksOps/serprank/internal/report"
	"github.com/FranksOps/serprank/internal/sink"
	"github.com/spf13/cobra"
)

var runFormat string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Rank the next keyword window once and deliver the result.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := build(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		result, runErr := a.pipeline.Run(cmd.Context())
		if runErr != nil && !errors.Is(runErr, sink.ErrSink) {
			return runErr
		}
		if err := writeResult(result, runFormat); err != nil {
			return err
		}
		return runErr
	},
}

func init() {
	flags := runCmd.Flags()
	flags.StringVar(&runFormat, "format", "table", "Output format: table, text, json or html.")
	flags.Int("concurrency", 1, "Simultaneous SERP requests, 1 to 5.")
	flags.Bool("mobile", true, "Also rank the mobile SERP.")
	flags.String("endpoint", "https://www.google.com/search", "Search endpoint.")
	mustBind(v, "run.concurrency", flags.Lookup("concurrency"))
	mustBind(v, "run.mobile", flags.Lookup("mobile"))
	mustBind(v, "search.endpoint", flags.Lookup("endpoint"))
	rootCmd.AddCommand(runCmd)
}

func writeResult(result report.RunResult, format string) error {
	out := os.Stdout
	switch format {
	case "table":
		report.WriteTable(out, result)
		fmt.Fprintln(out)
		return report.WriteText(out, report.Summarize(result))
	case "text":
		return report.WriteText(out, report.Summarize(result))
	case "json":
		return report.WriteJSON(out, report.Summarize(result))
	case "html":
		return report.WriteHTML(out, result)
	}
	return fmt.Errorf("unknown format %q", format)
}
