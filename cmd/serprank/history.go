package main

import (
	"fmt"
	"os"
	"time"

	"github.com/FranksOps/serprank/internal/config"
	"github.com/FranksOps/serprank/internal/device"
	"github.com/FranksOps/serprank/internal/report"
	"github.com/FranksOps/serprank/internal/serp"
	"github.com/FranksOps/serprank/internal/storage"
	"github.com/spf13/cobra"
)

var historyFilter struct {
	runID   string
	keyword string
	device  string
	status  string
	since   time.Duration
	limit   int
	offset  int
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived rank records, newest first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Archive.Backend == config.ArchiveNone || cfg.Archive.Backend == "" {
			return fmt.Errorf("no archive configured; set archive.backend")
		}

		filter := storage.Filter{
			RunID:   historyFilter.runID,
			Keyword: historyFilter.keyword,
			Status:  serp.Status(historyFilter.status),
			Limit:   historyFilter.limit,
			Offset:  historyFilter.offset,
		}
		if historyFilter.device != "" {
			name, err := device.ParseName(historyFilter.device)
			if err != nil {
				return err
			}
			filter.Device = name
		}
		if historyFilter.since > 0 {
			since := time.Now().Add(-historyFilter.since)
			filter.Since = &since
		}

		archive, err := openArchive(cmd.Context(), cfg.Archive)
		if err != nil {
			return err
		}
		defer archive.Close()

		records, err := archive.Query(cmd.Context(), filter)
		if err != nil {
			return err
		}
		report.WriteHistory(os.Stdout, records)
		return nil
	},
}

func init() {
	flags := historyCmd.Flags()
	flags.StringVar(&historyFilter.runID, "run", "", "Only records of this run id.")
	flags.StringVar(&historyFilter.keyword, "keyword", "", "Only records of this keyword.")
	flags.StringVar(&historyFilter.device, "device", "", "Only records of this device profile.")
	flags.StringVar(&historyFilter.status, "status", "", "Only records with this status (ok, rate_limited, failed, no_match).")
	flags.DurationVar(&historyFilter.since, "since", 0, "Only records archived within this duration.")
	flags.IntVar(&historyFilter.limit, "limit", 50, "Maximum records to list; 0 lists all.")
	flags.IntVar(&historyFilter.offset, "offset", 0, "Records to skip.")
	rootCmd.AddCommand(historyCmd)
}
