package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/content-pipeline/internal/approval"
	"github.com/content-pipeline/internal/models"
	"github.com/content-pipeline/internal/notify"
	"github.com/content-pipeline/internal/storage"
	"github.com/content-pipeline/pkg/output"
)

// ============ POSTS COMMANDS ============

func postsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "posts",
		Short: "List and manage posts",
	}

	cmd.AddCommand(postsListCmd())
	cmd.AddCommand(postsShowCmd())
	cmd.AddCommand(postsSubmitCmd())
	cmd.AddCommand(postsApproveCmd())
	cmd.AddCommand(postsRejectCmd())
	cmd.AddCommand(postsArchiveCmd())
	cmd.AddCommand(postsScheduleCmd())
	return cmd
}

func postsListCmd() *cobra.Command {
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List posts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := storage.DefaultPostFilter()
			filter.Limit = limit

			if status != "" {
				s := models.PostStatus(strings.ToUpper(status))
				if !s.Valid() {
					return fmt.Errorf("unknown status %q", status)
				}
				filter.Status = &s
			}

			posts, err := application.Repo.ListPosts(commandContext(cmd), filter)
			if err != nil {
				return err
			}

			out.Header(fmt.Sprintf("Posts (%d)", len(posts)))
			rows := make([][]string, 0, len(posts))
			for _, p := range posts {
				rows = append(rows, []string{
					strconv.FormatUint(uint64(p.ID), 10),
					string(p.Status),
					output.Truncate(p.Title, 50),
					p.Origin,
					formatTime(p.ScheduledFor),
					formatTime(p.PublishedAt),
				})
			}
			out.Table([]string{"ID", "Status", "Title", "Origin", "Scheduled", "Published"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (draft, pending_approval, approved, published, rejected, archived)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum posts to show")
	return cmd
}

func postsShowCmd() *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			p, err := application.Repo.GetPostByID(commandContext(cmd), id)
			if err != nil {
				return err
			}

			w := out.Out()
			out.Header(p.Title)
			fmt.Fprintf(w, "ID:        %d\n", p.ID)
			fmt.Fprintf(w, "Slug:      %s\n", p.Slug)
			fmt.Fprintf(w, "Status:    %s (revision %d)\n", p.Status, p.RevisionCount)
			fmt.Fprintf(w, "Origin:    %s\n", p.Origin)
			fmt.Fprintf(w, "Created:   %s\n", formatTime(&p.CreatedAt))
			fmt.Fprintf(w, "Scheduled: %s\n", formatTime(p.ScheduledFor))
			fmt.Fprintf(w, "Published: %s\n", formatTime(p.PublishedAt))
			if p.Category != nil {
				fmt.Fprintf(w, "Category:  %s\n", p.Category.Name)
			}
			if len(p.Keywords) > 0 {
				fmt.Fprintf(w, "Keywords:  %s\n", strings.Join(p.Keywords, ", "))
			}
			if p.RejectionReason != "" {
				fmt.Fprintf(w, "Rejected:  %s\n", p.RejectionReason)
			}
			if p.ApprovalEmailError != "" {
				out.Warning("Last approval email failed: %s", p.ApprovalEmailError)
			}
			if p.ApprovalToken != nil {
				fmt.Fprintf(w, "Preview:   %s\n", notify.LinksFor(cfg.Approval.BaseURL, *p.ApprovalToken).Preview)
			}
			for _, u := range p.SourceURLs {
				fmt.Fprintf(w, "Source:    %s\n", u)
			}

			fmt.Fprintf(w, "\n%s\n", p.Excerpt)
			if full {
				fmt.Fprintf(w, "\n%s\n", p.Content)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Print the Markdown body")
	return cmd
}

func postsSubmitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "submit <id>",
		Short: "Send a draft to the reviewer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			result, err := application.Workflow.Submit(commandContext(cmd), id)
			if err != nil {
				return err
			}
			out.Success("Post %d is pending approval", result.Post.ID)
			if result.EmailError != "" {
				out.Warning("Approval email failed: %s", result.EmailError)
			}
			return nil
		},
	}
}

// pendingToken returns the approval token of a post awaiting review
func pendingToken(cmd *cobra.Command, arg string) (string, error) {
	id, err := parseID(arg)
	if err != nil {
		return "", err
	}
	p, err := application.Repo.GetPostByID(commandContext(cmd), id)
	if err != nil {
		return "", err
	}
	if p.Status != models.PostStatusPendingApproval || p.ApprovalToken == nil {
		return "", fmt.Errorf("post %d is %s, not pending approval", p.ID, p.Status)
	}
	return *p.ApprovalToken, nil
}

func postsApproveCmd() *cobra.Command {
	var by string

	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a pending post and schedule it for the next publish slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := pendingToken(cmd, args[0])
			if err != nil {
				return err
			}
			result, err := application.Workflow.Approve(commandContext(cmd), token, by, time.Now())
			if err != nil {
				return err
			}
			if result.Outcome != approval.OutcomeApplied {
				return fmt.Errorf("post was not approved: %s", result.Outcome)
			}
			out.Success("Approved, scheduled for %s", formatTime(result.ScheduledFor))
			return nil
		},
	}

	cmd.Flags().StringVar(&by, "by", "cli", "Recorded as the approver")
	return cmd
}

func postsRejectCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a pending post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := pendingToken(cmd, args[0])
			if err != nil {
				return err
			}
			result, err := application.Workflow.Reject(commandContext(cmd), token, reason, time.Now())
			if err != nil {
				return err
			}
			if result.Outcome != approval.OutcomeApplied {
				return fmt.Errorf("post was not rejected: %s", result.Outcome)
			}
			out.Success("Rejected post %d", result.Post.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Why the draft was rejected")
	return cmd
}

func postsArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <id>",
		Short: "Archive a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if _, err := application.Workflow.Archive(commandContext(cmd), id); err != nil {
				return err
			}
			out.Success("Archived post %d", id)
			return nil
		},
	}
}

func postsScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule <id> <RFC3339 time>",
		Short: "Set the publish time of a draft or approved post",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			at, err := time.Parse(time.RFC3339, args[1])
			if err != nil {
				return fmt.Errorf("invalid time %q: %w", args[1], err)
			}
			if err := application.Publisher.Schedule(commandContext(cmd), id, at); err != nil {
				return err
			}
			out.Success("Post %d scheduled for %s", id, formatTime(&at))
			return nil
		},
	}
}
