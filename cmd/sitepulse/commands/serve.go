package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/avenlon/sitepulse/content"
	"github.com/avenlon/sitepulse/errors"
	"github.com/avenlon/sitepulse/logger"
	"github.com/avenlon/sitepulse/scan"
	"github.com/avenlon/sitepulse/server"
)

// ServeCmd starts the SitePulse HTTP server and scan scheduler
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Start the SitePulse server",
	Long: `Start the HTTP server exposing scan control, history, settings, and a
websocket progress stream, with the daily scan scheduler running alongside.`,
	RunE: runServe,
}

var servePort int

func init() {
	ServeCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	sched := scan.NewTimerScheduler(logger.Logger)
	engine := scan.NewEngine(scan.NewStore(database), content.NewStore(database),
		sched, cfg.Scan, cfg.Server.SiteURL, logger.Logger)
	sched.OnTick(engine.Process)
	sched.OnDaily(engine.HandleDailyEvent)
	defer sched.Stop()

	// A job interrupted by a restart resumes from its persisted queues.
	if snap, _, err := engine.Status(); err == nil && snap != nil {
		logger.Logger.Infow("Resuming interrupted scan", "job_id", snap.JobID, "processed", snap.Processed)
		sched.ScheduleTick(snap.JobID, time.Duration(cfg.Scan.StartDelaySeconds)*time.Second)
	}

	if err := engine.MaybeScheduleDailyEvent(); err != nil {
		return errors.Wrap(err, "failed to arm daily schedule")
	}

	srv := server.NewServer(engine, logger.Logger)

	port := cfg.Server.Port
	if servePort != 0 {
		port = servePort
	}

	// Graceful shutdown on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(port)
	}()

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Logger.Infow("Shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
