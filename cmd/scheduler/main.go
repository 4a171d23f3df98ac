package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/content-pipeline/internal/app"
	"github.com/content-pipeline/internal/config"
	"github.com/content-pipeline/internal/metrics"
	"github.com/content-pipeline/internal/server"
	"github.com/content-pipeline/pkg/logger"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "pipeline-server",
		Short: "HTTP server and background scheduler for the blog pipeline",
		Long: `Serves the approval links, cron endpoints, admin API and public blog.
With scheduler.enabled it also runs the fetch, generate, approval and publish jobs in process.`,
		RunE: runServer,
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file path")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	log := app.NewLogger(cfg)
	log.Info().Msg("Starting blog pipeline server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	agent, err := a.Pipeline()
	if err != nil {
		return err
	}

	srv := server.New(server.Deps{
		Config:    cfg,
		Repo:      a.Repo,
		Workflow:  a.Workflow,
		Pipeline:  agent,
		Publisher: a.Publisher,
		Validator: a.Validator,
		Log:       log,
	})

	var c *cron.Cron
	if cfg.Scheduler.Enabled {
		c = cron.New(cron.WithLogger(cronLogger{log}), cron.WithChain(cron.SkipIfStillRunning(cronLogger{log})))
		jobs := []struct {
			name string
			spec string
			run  func(context.Context) error
		}{
			{"fetch", cfg.Scheduler.FetchCron, func(ctx context.Context) error {
				result, err := agent.Fetch(ctx)
				if err == nil {
					log.Info().Int("articles", result.ArticlesFound).Int("sources", result.SourcesFetched).Msg("Scheduled fetch completed")
				}
				return err
			}},
			{"generate", cfg.Scheduler.GenerateCron, func(ctx context.Context) error {
				result, err := agent.Run(ctx)
				if err == nil {
					log.Info().Uint("post_id", result.PostID).Str("skipped", result.Skipped).Msg("Scheduled generate completed")
				}
				return err
			}},
			{"send-approval", cfg.Scheduler.SendApprovalCron, func(ctx context.Context) error {
				result, err := a.Workflow.ResendPending(ctx)
				if err == nil {
					log.Info().Int("submitted", result.Submitted).Int("resent", result.Resent).Msg("Scheduled approval send completed")
				}
				return err
			}},
			{"publish", cfg.Scheduler.PublishCron, func(ctx context.Context) error {
				result, err := a.Publisher.Sweep(ctx, time.Now())
				if err == nil {
					log.Info().Int("published", result.Published).Msg("Scheduled publish completed")
				}
				return err
			}},
		}

		for _, job := range jobs {
			job := job
			if job.spec == "" {
				continue
			}
			_, err := c.AddFunc(job.spec, func() {
				jobCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
				defer cancel()
				err := job.run(jobCtx)
				metrics.RecordCron(job.name, err)
				if err != nil {
					log.WithJob(job.name).Error().Err(err).Msg("Scheduled job failed")
				}
			})
			if err != nil {
				return fmt.Errorf("failed to schedule %s job: %w", job.name, err)
			}
			log.WithJob(job.name).Info().Str("cron", job.spec).Msg("Job scheduled")
		}

		c.Start()
		log.Info().Msg("Scheduler started")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	if c != nil {
		<-c.Stop().Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// cronLogger adapts our logger for cron
type cronLogger struct {
	log *logger.Logger
}

// Info gets cron's wake and run chatter on every tick, so it goes to debug.
// cron.DefaultLogger drops these lines entirely.
func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
