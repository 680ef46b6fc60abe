package cmd

import (
	"errors"
	"fmt"

	"github.com/FranksOps/listcrawl/internal/config"
	"github.com/FranksOps/listcrawl/internal/report"
	"github.com/FranksOps/listcrawl/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var errNoStorage = errors.New("no storage backend configured (use --storage)")

func newRecordsCommand(v *viper.Viper) *cobra.Command {
	var (
		filter storage.Filter
		format string
	)

	cmd := &cobra.Command{
		Use:     "records",
		Short:   "List records stored by earlier crawls, newest first",
		Example: `  listcrawl records --storage sqlite --dsn listcrawl.db --query Restaurants --limit 10`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadStored(v)
			if err != nil {
				return err
			}

			backend, err := openBackend(cmd.Context(), cfg.Storage)
			if err != nil {
				return err
			}
			if backend == nil {
				return errNoStorage
			}
			defer backend.Close()

			records, err := backend.Query(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("query records: %w", err)
			}

			if format == "" {
				format = cfg.Report.Format
			}
			return report.Write(cmd.OutOrStdout(), format, report.FromRecords(records))
		},
	}

	f := cmd.Flags()
	f.StringVar(&filter.Query, "query", "", "only records from this search query")
	f.StringVar(&filter.Location, "location", "", "only records from this search location")
	f.StringVar(&filter.URL, "url", "", "only the record scraped from this page")
	f.IntVar(&filter.Limit, "limit", 0, "maximum number of records (0 = all)")
	f.IntVar(&filter.Offset, "offset", 0, "skip this many records")
	f.StringVar(&format, "format", "", "output format: text, json or html")

	return cmd
}
