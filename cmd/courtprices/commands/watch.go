package commands

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"courtprices/internal/components/chrono"
	"courtprices/internal/components/telemetry"
	"courtprices/internal/updater"
	libtelemetry "courtprices/lib/telemetry"
	"courtprices/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

var (
	watchSchedule string
	runNow        bool
)

const perfInterval = 15 * time.Second

// exclusiveJob runs at most one update at a time, a call made while one is in flight
// is dropped with a warning.
type exclusiveJob struct {
	mu  sync.Mutex
	run func()
	tel telemetry.API
}

func (j *exclusiveJob) Run() {
	if !j.mu.TryLock() {
		j.tel.ReportWarning("run.busy")
		return
	}
	defer j.mu.Unlock()
	j.run()
}

// scheduleJob registers job on cron, runNow also runs it right away through the same guard.
func scheduleJob(cron chrono.CronAPI, spec string, runNow bool, job *exclusiveJob) error {
	err := cron.Cron(spec, job.Run)
	if err != nil {
		return err
	}
	if runNow {
		job.Run()
	}
	return nil
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run update on a cron schedule until interrupted.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		spec := cfg.Schedule
		if watchSchedule != "" {
			spec = watchSchedule
		}
		err := chrono.ValidateSpec(spec)
		if err != nil {
			serviceutil.Fatal("invalid schedule", err)
		}

		p, err := newPipeline(ctx, cmd.OutOrStdout())
		if err != nil {
			serviceutil.Fatal("invalid configuration", err)
		}
		defer p.close()

		clock, err := newTime()
		if err != nil {
			serviceutil.Fatal("invalid timezone", err)
		}
		libtelemetry.InstrumentPerfStats(ctx, perfInterval)

		tel := telemetry.NewScopedAPI("watch", telemetry.SlogAPI{})
		runOnce := func() {
			summary, err := p.run(ctx)
			switch {
			case err == nil:
				slog.Info("scheduled update done",
					"run_id", summary.RunID,
					"succeeded", summary.Succeeded,
					"changed", summary.Changed,
				)
			case errors.Is(err, context.Canceled):
			case errors.Is(err, updater.ErrVenueNotFound):
				tel.ReportWarning("run.venue", err)
			default:
				// the next tick tries again
				tel.ReportBroken("run.update", err)
			}
		}

		slog.Info("watching", "schedule", spec, "timezone", cfg.Timezone)
		cron := chrono.NewStandardCron(clock, telemetry.SlogAPI{})
		err = scheduleJob(cron, spec, runNow, &exclusiveJob{run: runOnce, tel: tel})
		if err != nil {
			serviceutil.Fatal("failed to schedule update", err)
		}

		<-ctx.Done()
		slog.Info("waiting for the running update to finish")
		<-cron.Stop().Done()
	},
}

func init() {
	addUpdateFlags(watchCmd)
	watchCmd.Flags().StringVar(&watchSchedule, "schedule", "", "cron spec, overrides schedule")
	watchCmd.Flags().BoolVar(&runNow, "now", false, "also run once right away")
	rootCmd.AddCommand(watchCmd)
}
