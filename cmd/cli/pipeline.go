package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/content-pipeline/internal/models"
	"github.com/content-pipeline/internal/tracker"
	"github.com/content-pipeline/pkg/output"
)

// ============ PIPELINE COMMANDS ============

func pipelineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run pipeline stages",
	}

	cmd.AddCommand(pipelineFetchCmd())
	cmd.AddCommand(pipelineRunCmd())
	cmd.AddCommand(pipelineSendApprovalsCmd())
	return cmd
}

func pipelineFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Poll due sources and report article counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			out.Info("Fetching sources...")
			result, err := application.FetchOnly().Fetch(commandContext(cmd))
			if err != nil {
				return err
			}

			out.Header("Fetch Results")
			fmt.Fprintf(out.Out(), "Sources fetched: %d (skipped %d, not due)\n", result.SourcesFetched, result.SourcesSkipped)
			fmt.Fprintf(out.Out(), "Articles found:  %d\n", result.ArticlesFound)
			for _, f := range result.SourcesFailed {
				out.Warning("%s: %s", f.SourceName, f.Error)
			}
			fmt.Fprintf(out.Out(), "Duration:        %s\n", result.Duration.Round(time.Millisecond))
			return nil
		},
	}
}

func pipelineRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Fetch, select, generate, validate and submit one draft",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			agent, err := application.Pipeline()
			if err != nil {
				return err
			}

			out.Info("Running pipeline...")
			result, err := agent.Run(commandContext(cmd))
			if err != nil {
				return err
			}

			out.Header("Pipeline Results")
			fmt.Fprintf(out.Out(), "Articles found:    %d from %d sources\n", result.ArticlesFound, result.SourcesFetched)
			for _, f := range result.SourcesFailed {
				out.Warning("%s: %s", f.SourceName, f.Error)
			}
			fmt.Fprintf(out.Out(), "Trending topics:   %d\n", result.TopicsFound)
			for _, t := range result.Topics {
				fmt.Fprintf(out.Out(), "  - %s (%d)\n", t.Keyword, t.Frequency)
			}
			fmt.Fprintf(out.Out(), "Articles selected: %d\n", result.ArticlesSelected)

			switch {
			case result.Skipped != "":
				out.Warning("Nothing generated: %s", result.Skipped)
			case result.Validation != nil && !result.Validation.Valid:
				out.Error("Draft failed validation and was not saved:")
				for _, e := range result.Validation.Errors {
					fmt.Fprintf(out.Out(), "  - %s\n", e)
				}
			default:
				out.Success("Draft %d (%s) sent for approval", result.PostID, result.Slug)
				if result.EmailError != "" {
					out.Warning("Approval email failed: %s", result.EmailError)
				}
			}
			return nil
		},
	}
}

func pipelineSendApprovalsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send-approvals",
		Short: "Submit stranded drafts and retry failed approval emails",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := application.Workflow.ResendPending(commandContext(cmd))
			if err != nil {
				return err
			}
			out.Success("Submitted %d, resent %d, failed %d", result.Submitted, result.Resent, result.Failed)
			return nil
		},
	}
}

// ============ PUBLISH COMMANDS ============

func publishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publishing commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Publish every approved or scheduled post that is due",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := application.Publisher.Sweep(commandContext(cmd), time.Now())
			if err != nil {
				return err
			}
			out.Success("Published %d of %d due posts", result.Published, result.Candidates)
			if result.Errors > 0 {
				out.Warning("%d posts failed to publish, see the log", result.Errors)
			}
			return nil
		},
	})
	return cmd
}

// ============ GUIDELINES COMMANDS ============

func guidelinesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guidelines",
		Short: "Show or replace the writing guidelines",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the current guidelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := application.Repo.GetGuideline(commandContext(cmd), models.BlogGuidelineName)
			if err != nil {
				out.Info("No saved guidelines, using the configured default:")
				fmt.Fprintln(out.Out(), cfg.Pipeline.DefaultGuidelines)
				return nil
			}
			fmt.Fprintln(out.Out(), g.Content)
			return nil
		},
	})

	var file string
	set := &cobra.Command{
		Use:   "set [text]",
		Short: "Replace the guidelines from an argument or --file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var content string
			switch {
			case file != "":
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				content = string(data)
			case len(args) == 1:
				content = args[0]
			}
			content = strings.TrimSpace(content)
			if content == "" {
				return fmt.Errorf("guidelines cannot be empty")
			}

			g := &models.Guideline{Name: models.BlogGuidelineName, Content: content}
			if err := application.Repo.SaveGuideline(commandContext(cmd), g); err != nil {
				return err
			}
			out.Success("Guidelines saved (%s)", output.Truncate(content, 60))
			return nil
		},
	}
	set.Flags().StringVar(&file, "file", "", "Read guidelines from a file")
	cmd.AddCommand(set)
	return cmd
}

// ============ TRACKER COMMANDS ============

func trackerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tracker",
		Short: "Google Sheets tracker management",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the tracker sheet and header row",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cfg.Tracker.Enabled {
				return fmt.Errorf("tracker is not enabled in config - set tracker.enabled=true and tracker.spreadsheet_id")
			}

			t, err := tracker.NewSheetsTracker(commandContext(cmd), cfg.Tracker, log)
			if err != nil {
				return fmt.Errorf("failed to create tracker: %w", err)
			}
			if err := t.InitializeSheet(commandContext(cmd)); err != nil {
				return fmt.Errorf("failed to initialize sheet: %w", err)
			}

			out.Success("Sheet initialized")
			fmt.Fprintf(out.Out(), "https://docs.google.com/spreadsheets/d/%s\n", cfg.Tracker.SpreadsheetID)
			return nil
		},
	})
	return cmd
}
