package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/civic_issues/internal/models"
	"github.com/civic_issues/internal/services"
)

// IssueCommands returns the issue triage commands.
func IssueCommands(service services.IssueService) *cobra.Command {
	issuesCmd := &cobra.Command{
		Use:   "issues",
		Short: "Issue triage commands",
		Long: `Issue triage commands.

Available commands:
  list       - List issues, optionally filtered
  stats      - Show issue counts per status and category
  status     - Change the status of an issue
  assign     - Assign an issue to a department
  delete     - Delete an issue and its history`,
	}

	issuesCmd.AddCommand(listCmd(service))
	issuesCmd.AddCommand(issueStatsCmd(service))
	issuesCmd.AddCommand(statusCmd(service))
	issuesCmd.AddCommand(assignCmd(service))
	issuesCmd.AddCommand(deleteCmd(service))

	return issuesCmd
}

func listCmd(service services.IssueService) *cobra.Command {
	var filter services.IssueFilter

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List issues, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			issues, err := service.ListIssues(cmd.Context(), filter)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tCATEGORY\tDEPARTMENT\tTITLE")
			for _, issue := range issues {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", issue.ID, issue.Status, issue.Category, issue.Department, issue.Title)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&filter.Status, "status", "", "Only issues with this status, e.g. \"In Progress\"")
	cmd.Flags().StringVar(&filter.Category, "category", "", "Only issues in this category, e.g. \"Pothole\"")
	cmd.Flags().StringVar(&filter.Department, "department", "", "Only issues assigned to this department")

	return cmd
}

func issueStatsCmd(service services.IssueService) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show issue counts per status and category",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := service.GetStatistics(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Status:")
			for _, status := range models.AllIssueStatuses() {
				printCount(out, status.DisplayName(), stats.StatusCounts[status.DisplayName()])
			}
			fmt.Fprintln(out, "Category:")
			for _, category := range models.AllIssueCategories() {
				printCount(out, category.DisplayName(), stats.CategoryCounts[category.DisplayName()])
			}
			return nil
		},
	}
}

func printCount(out io.Writer, name string, n int64) {
	fmt.Fprintf(out, "  %-20s %d\n", name, n)
}

func statusCmd(service services.IssueService) *cobra.Command {
	var comment, afterPhoto string

	cmd := &cobra.Command{
		Use:   "status <issue-id> <status>",
		Short: "Change the status of an issue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var comments, afterPhotoURL *string
			if cmd.Flags().Changed("comment") {
				comments = &comment
			}
			if cmd.Flags().Changed("after-photo") {
				afterPhotoURL = &afterPhoto
			}
			issue, err := service.UpdateIssueStatus(cmd.Context(), args[0], args[1], comments, afterPhotoURL)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", issue.ID, issue.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&comment, "comment", "", "History entry text (default \"Status updated to <status>\")")
	cmd.Flags().StringVar(&afterPhoto, "after-photo", "", "URL of an After photo to attach")

	return cmd
}

func assignCmd(service services.IssueService) *cobra.Command {
	return &cobra.Command{
		Use:   "assign <issue-id> <department>",
		Short: "Assign an issue to a department",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			issue, err := service.AssignDepartment(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s assigned to %s\n", issue.ID, issue.Department)
			return nil
		},
	}
}

func deleteCmd(service services.IssueService) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <issue-id>",
		Short: "Delete an issue and its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := service.DeleteIssue(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}
