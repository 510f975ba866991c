package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"courtprices/internal/acquire"
	"courtprices/internal/components/telemetry"
	"courtprices/internal/extract"
	"courtprices/internal/history"
	"courtprices/internal/llm"
	"courtprices/internal/updater"
	"courtprices/internal/venue"
	"courtprices/lib/restyutil"
	"courtprices/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

var (
	dryRun    bool
	onlyVenue string
	provider  string
)

func addUpdateFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would change without writing the courts file")
	cmd.Flags().StringVar(&onlyVenue, "venue", "", "only update the venue with exactly this name")
	cmd.Flags().StringVar(&provider, "provider", "", "llm provider, anthropic or openai, picked from the api keys when empty")
}

// pipeline is everything an update run needs, built once per process.
type pipeline struct {
	store   *venue.Store
	journal *history.Store
	updater updater.Updater
}

func llmBaseURL(p llm.Provider) string {
	switch p {
	case llm.Anthropic:
		return cfg.LLM.AnthropicBaseURL
	case llm.OpenAI:
		return cfg.LLM.OpenAIBaseURL
	}
	return ""
}

// newPipeline resolves the provider before anything touches the network, a
// configuration error here means no venue is processed.
func newPipeline(ctx context.Context, out io.Writer) (pipeline, error) {
	tel := telemetry.SlogAPI{}

	creds, err := llm.LoadCredentials()
	if err != nil {
		return pipeline{}, fmt.Errorf("read credentials: %w", err)
	}
	providerCfg, err := llm.ResolveProvider(provider, creds)
	if err != nil {
		return pipeline{}, err
	}
	slog.Info("using llm provider", "provider", providerCfg.Provider, "model", providerCfg.Model)

	llmOpts := llm.Options{
		BaseURL:   llmBaseURL(providerCfg.Provider),
		MaxTokens: cfg.LLM.MaxTokens,
		Timeout:   cfg.LLMTimeout(),
	}
	if dumpHttp {
		dump, err := restyutil.NewFilesystemOutput(cfg.DumpDir)
		if err != nil {
			return pipeline{}, err
		}
		slog.Info("dumping http exchanges", "dir", dump.Dir())
		llmOpts.Dump = dump
	}
	completer, err := llm.New(providerCfg, llmOpts, tel)
	if err != nil {
		return pipeline{}, err
	}

	acquirer, err := acquire.New(cfg.Acquire.Strategy, cfg.AcquireOptions(), tel)
	if err != nil {
		return pipeline{}, err
	}
	clock, err := newTime()
	if err != nil {
		return pipeline{}, err
	}

	p := pipeline{store: venue.NewStore(cfg.CourtsPath)}
	deps := updater.Deps{
		Acquirer:  acquirer,
		Extractor: extract.NewExtractor(completer, cfg.ExtractOptions(), tel),
		Saver:     p.store,
		Reporter:  newTableReporter(out),
		Time:      clock,
		Tel:       tel,
	}

	journal, err := history.Open(ctx, cfg.History)
	if err != nil {
		slog.Warn("run journal unavailable, outcomes will not be recorded", "err", err)
	} else {
		p.journal = &journal
		deps.Journal = journal
	}

	p.updater = updater.New(deps)
	return p, nil
}

func (p pipeline) close() {
	if p.journal != nil {
		p.journal.Close()
	}
}

// run loads the courts file again so edits between scheduled runs are picked up.
func (p pipeline) run(ctx context.Context) (updater.Summary, error) {
	records, err := p.store.Load()
	if err != nil {
		return updater.Summary{}, fmt.Errorf("load %s: %w", p.store.Path(), err)
	}
	return p.updater.Run(ctx, records, updater.Options{
		DryRun: dryRun,
		Venue:  onlyVenue,
	})
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Read every venue's pricing page and merge the extracted prices into the courts file.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		p, err := newPipeline(ctx, cmd.OutOrStdout())
		if err != nil {
			serviceutil.Fatal("invalid configuration", err)
		}
		defer p.close()

		_, err = p.run(ctx)
		switch {
		case errors.Is(err, updater.ErrVenueNotFound):
			fmt.Fprintln(cmd.OutOrStdout(), err)
		case errors.Is(err, context.Canceled):
			slog.Info("update interrupted, courts file left unchanged")
		case err != nil:
			p.close()
			serviceutil.Fatal("failed to update venues", err)
		}
	},
}

func init() {
	addUpdateFlags(updateCmd)
	rootCmd.AddCommand(updateCmd)
}

var _ updater.Saver = (*venue.Store)(nil)
