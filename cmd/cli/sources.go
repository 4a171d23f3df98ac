package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/content-pipeline/internal/models"
	"github.com/content-pipeline/internal/validation"
)

// ============ SOURCES COMMANDS ============

func sourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage content sources",
	}

	cmd.AddCommand(sourcesListCmd())
	cmd.AddCommand(sourcesAddCmd())
	cmd.AddCommand(sourcesToggleCmd("enable", true))
	cmd.AddCommand(sourcesToggleCmd("disable", false))
	cmd.AddCommand(sourcesRemoveCmd())
	return cmd
}

func sourcesListCmd() *cobra.Command {
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := application.Repo.ListContentSources(commandContext(cmd), activeOnly)
			if err != nil {
				return err
			}

			out.Header(fmt.Sprintf("Sources (%d)", len(sources)))
			rows := make([][]string, 0, len(sources))
			for _, s := range sources {
				rows = append(rows, []string{
					strconv.FormatUint(uint64(s.ID), 10),
					s.Name,
					strconv.FormatBool(s.Active),
					s.FetchFrequency,
					formatTime(s.LastFetchedAt),
					s.FeedURL,
				})
			}
			out.Table([]string{"ID", "Name", "Active", "Every", "Last fetched", "Feed"}, rows)
			return nil
		},
	}

	cmd.Flags().BoolVar(&activeOnly, "active", false, "Only show active sources")
	return cmd
}

func sourcesAddCmd() *cobra.Command {
	var siteURL, frequency string
	var inactive bool

	cmd := &cobra.Command{
		Use:   "add <name> <feed-url>",
		Short: "Add an RSS or Atom source",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !validation.ValidDuration(frequency) {
				return fmt.Errorf("invalid frequency %q", frequency)
			}
			src := &models.ContentSource{
				Name:           args[0],
				FeedURL:        args[1],
				URL:            siteURL,
				Active:         !inactive,
				FetchFrequency: frequency,
			}
			if err := application.Repo.CreateContentSource(commandContext(cmd), src); err != nil {
				return fmt.Errorf("failed to add source: %w", err)
			}
			out.Success("Added source %d: %s", src.ID, src.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&siteURL, "url", "", "Homepage of the source")
	cmd.Flags().StringVar(&frequency, "every", "24h", "Minimum time between fetches")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Add the source disabled")
	return cmd
}

func sourcesToggleCmd(use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: fmt.Sprintf("Mark a source %sd", use),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			src, err := application.Repo.GetContentSource(ctx, id)
			if err != nil {
				return err
			}
			src.Active = active
			if err := application.Repo.UpdateContentSource(ctx, src); err != nil {
				return err
			}
			out.Success("Source %s %sd", src.Name, use)
			return nil
		},
	}
}

func sourcesRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := application.Repo.DeleteContentSource(commandContext(cmd), id); err != nil {
				return err
			}
			out.Success("Removed source %d", id)
			return nil
		},
	}
}
