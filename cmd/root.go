// Package cmd implements the listcrawl command line.
package cmd

import (
	"context"
	"fmt"

	"github.com/FranksOps/listcrawl/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

// NewRootCommand builds the command tree around its own viper instance.
func NewRootCommand() *cobra.Command {
	v := config.New()
	var cfgFile string

	root := &cobra.Command{
		Use:   "listcrawl",
		Short: "Crawl business listings for contact details",
		Long: `listcrawl searches a business listing site for a query and location,
follows the first results to their detail pages and extracts each
business's name, address and phone number.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.ReadFile(v, cfgFile)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./listcrawl.yaml)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text or json")
	flags.String("storage", config.BackendNone, "record storage: none, sqlite, postgres, csv, json")
	flags.String("dsn", "", "storage DSN or file path")
	mustBind(v, root, map[string]string{
		"log.level":       "log-level",
		"log.format":      "log-format",
		"storage.backend": "storage",
		"storage.dsn":     "dsn",
	})

	root.AddCommand(newCrawlCommand(v))
	root.AddCommand(newRecordsCommand(v))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "listcrawl version %s\n", Version)
		},
	})

	return root
}

// Execute runs the command line with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// mustBind binds config keys to flags of cmd. Flags are looked up among the
// persistent flags first.
func mustBind(v *viper.Viper, cmd *cobra.Command, keys map[string]string) {
	for key, name := range keys {
		f := cmd.PersistentFlags().Lookup(name)
		if f == nil {
			f = cmd.Flags().Lookup(name)
		}
		if err := v.BindPFlag(key, f); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}
