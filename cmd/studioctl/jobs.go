package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	jobsKind  string
	jobsState string
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect background sync jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your sync jobs",
	RunE:  runJobsList,
}

var jobsGetCmd = &cobra.Command{
	Use:   "get JOB_ID",
	Short: "Show one job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsGet,
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel JOB_ID",
	Short: "Cancel a queued job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsCancel,
}

func init() {
	jobsListCmd.Flags().StringVar(&jobsKind, "kind", "", "Filter by kind (push, import)")
	jobsListCmd.Flags().StringVar(&jobsState, "state", "", "Filter by state (queued, running, succeeded, failed, canceled)")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsGetCmd)
	jobsCmd.AddCommand(jobsCancelCmd)
}

func runJobsList(cmd *cobra.Command, args []string) error {
	client := newClient()

	path := "/api/v1/jobs"
	sep := "?"
	if jobsKind != "" {
		path += sep + "kind=" + jobsKind
		sep = "&"
	}
	if jobsState != "" {
		path += sep + "state=" + jobsState
	}

	var resp jobsListResponse
	if err := client.getJSON(path, &resp); err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(resp)
	}

	headers := []string{"ID", "Kind", "State", "Registry", "Requested", "Message"}
	rows := make([][]string, 0, len(resp.Jobs))
	for _, job := range resp.Jobs {
		message := job.Message
		if message == "" {
			message = truncate(job.LastError, 40)
		}
		rows = append(rows, []string{
			job.ID,
			job.Kind,
			job.State,
			job.RegistryID,
			job.RequestedAt,
			message,
		})
	}
	printTable(headers, rows)
	return nil
}

func runJobsGet(cmd *cobra.Command, args []string) error {
	client := newClient()

	var job jobInfo
	if err := client.getJSON("/api/v1/jobs/"+args[0], &job); err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(job)
	}

	headers := []string{"Field", "Value"}
	rows := [][]string{
		{"ID", job.ID},
		{"Kind", job.Kind},
		{"State", job.State},
		{"Registry", job.RegistryID},
		{"Requested", job.RequestedAt},
		{"Commit", job.CommitSHA},
		{"Message", job.Message},
		{"Last error", job.LastError},
	}
	printTable(headers, rows)
	return nil
}

func runJobsCancel(cmd *cobra.Command, args []string) error {
	client := newClient()

	var resp map[string]string
	if err := client.postJSON("/api/v1/jobs/"+args[0]+"/cancel", nil, &resp); err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}
	fmt.Printf("Canceled job %s\n", resp["jobId"])
	return nil
}
