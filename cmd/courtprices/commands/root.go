package commands

import (
	"context"
	"fmt"
	"os"

	"courtprices/internal/components/chrono"
	"courtprices/internal/components/telemetry"
	"courtprices/internal/history"
	"courtprices/internal/venue"

	"github.com/spf13/cobra"
)

var (
	configPath  string
	courtsPath  string
	historyPath string
	verbose     bool
	dumpHttp    bool
)

// loaded by the root command before any subcommand runs
var cfg Config

var rootCmd = &cobra.Command{
	Use:   "courtprices",
	Short: "courtprices keeps the prices of tennis venues up to date from their websites.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(os.Stderr, verbose)

		loaded, err := LoadConfig(configPath)
		if err != nil {
			return err
		}
		if courtsPath != "" {
			loaded.CourtsPath = courtsPath
		}
		if historyPath != "" {
			loaded.History = history.Config{File: historyPath}
		}
		err = loaded.Validate()
		if err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		cfg = loaded
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file, courtprices.json5 is searched upwards from the working directory by default")
	flags.StringVar(&courtsPath, "courts", "", "courts file, overrides courts_path")
	flags.StringVar(&historyPath, "history", "", "run journal sqlite file, overrides history")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log debug messages")
	flags.BoolVar(&dumpHttp, "dump-http", false, "write every llm http exchange to dump_dir")
}

func ExecuteContext(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	return err
}

func newTime() (chrono.StandardTime, error) {
	return chrono.NewStandardTime(cfg.Timezone)
}

func loadVenues() (*venue.Store, []venue.Record, error) {
	store := venue.NewStore(cfg.CourtsPath)
	records, err := store.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", cfg.CourtsPath, err)
	}
	return store, records, nil
}

func findVenue(records []venue.Record, name string) (venue.Record, bool) {
	for _, r := range records {
		if r.Name == name {
			return r, true
		}
	}
	return venue.Record{}, false
}
