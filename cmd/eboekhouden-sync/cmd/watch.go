package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var (
	watchSchedule string
	watchNow      bool
)

// watchCmd runs imports on a cron schedule.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Import on a schedule",
	Long: `Run the import on a cron schedule until interrupted.

Each run resumes after the last imported mutation date. A run that is
still in progress when the next one is due is skipped.

The schedule uses standard five-field cron syntax and defaults to
SYNC_SCHEDULE ("0 6 * * *").

Example:
  eboekhouden-sync watch
  eboekhouden-sync watch --schedule "*/30 * * * *" --now`,
	Run: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchSchedule, "schedule", "", "cron schedule, overrides SYNC_SCHEDULE")
	watchCmd.Flags().BoolVar(&watchNow, "now", false, "Run an import immediately before waiting")
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}

func runWatch(cmd *cobra.Command, args []string) {
	a := openApp(
		[]string{"eboekhouden", "apiUrl"},
		[]string{"eboekhouden", "apiToken"},
	)
	defer a.Close()

	schedule := watchSchedule
	if schedule == "" {
		schedule = a.cfg.Import.Schedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		exitOnError(fmt.Errorf("%q: %w", schedule, err), "invalid schedule")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := cronLogger{logger: slog.Default()}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	job := func() {
		summary, err := a.runImport(ctx, importOptions{})
		if err != nil {
			slog.Error("Scheduled import failed", "error", err)
			return
		}
		slog.Info("Scheduled import done",
			"run_id", summary.RunID,
			"imported", summary.Imported,
			"failed", summary.Failed,
		)
	}

	_, err := c.AddFunc(schedule, job)
	exitOnError(err, "failed to schedule import")

	if watchNow {
		job()
	}

	c.Start()
	slog.Info("Watching for new mutations", "schedule", schedule)

	<-ctx.Done()
	slog.Info("Stopping scheduler")
	<-c.Stop().Done()
}
