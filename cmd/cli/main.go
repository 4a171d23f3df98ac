package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/content-pipeline/internal/app"
	"github.com/content-pipeline/internal/config"
	"github.com/content-pipeline/pkg/logger"
	"github.com/content-pipeline/pkg/output"
)

var (
	cfgFile     string
	cfg         *config.Config
	log         *logger.Logger
	application *app.App
	out         = output.NewPrinter()
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Blog content pipeline",
		Long: `Fetches articles from configured feeds, drafts blog posts with an AI model,
routes them through email approval and publishes them on schedule.`,
		PersistentPreRunE:  initializeApp,
		PersistentPostRunE: closeApp,
		SilenceUsage:       true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yaml)")

	rootCmd.AddCommand(sourcesCmd())
	rootCmd.AddCommand(pipelineCmd())
	rootCmd.AddCommand(postsCmd())
	rootCmd.AddCommand(publishCmd())
	rootCmd.AddCommand(guidelinesCmd())
	rootCmd.AddCommand(trackerCmd())

	if err := rootCmd.Execute(); err != nil {
		out.Error("%v", err)
		os.Exit(1)
	}
}

func initializeApp(cmd *cobra.Command, args []string) error {
	var err error

	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log = app.NewLogger(cfg)

	application, err = app.New(cmd.Context(), cfg, log)
	return err
}

func closeApp(cmd *cobra.Command, args []string) error {
	if application == nil {
		return nil
	}
	return application.Close()
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func parseID(arg string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return uint(id), nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04 MST")
}
