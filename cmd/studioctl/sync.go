package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	exportRepoName    string
	exportDescription string
	exportPrivate     bool
	exportOrg         string

	pushForce bool
	pushAsync bool

	importBranch string
	importAsync  bool
)

var exportCmd = &cobra.Command{
	Use:   "export REGISTRY_ID",
	Short: "Export a registry to a new GitHub repository",
	Long: `Create a GitHub repository for the registry, push the full generated
scaffold as the initial commit, and enable Pages hosting. A registry can
only be exported once; use push for subsequent updates.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

var pushCmd = &cobra.Command{
	Use:   "push REGISTRY_ID",
	Short: "Push local changes to the registry's GitHub repository",
	Long: `Regenerate the registry scaffold, diff it against the last synced state,
and push the changed files as one incremental commit. Fails with a conflict
when the remote moved since the last sync; --force overwrites the remote.`,
	Args: cobra.ExactArgs(1),
	RunE: runPush,
}

var importCmd = &cobra.Command{
	Use:   "import OWNER/REPO",
	Short: "Import a registry repository from GitHub",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var statusCmd = &cobra.Command{
	Use:   "status REGISTRY_ID",
	Short: "Show a registry's GitHub sync status",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	exportCmd.Flags().StringVar(&exportRepoName, "repo", "", "Repository name (default: registry slug)")
	exportCmd.Flags().StringVar(&exportDescription, "description", "", "Repository description")
	exportCmd.Flags().BoolVar(&exportPrivate, "private", false, "Create a private repository")
	exportCmd.Flags().StringVar(&exportOrg, "org", "", "Create under an organization instead of your account")

	pushCmd.Flags().BoolVar(&pushForce, "force", false, "Overwrite the remote even if it has moved")
	pushCmd.Flags().BoolVar(&pushAsync, "async", false, "Queue the push as a background job")

	importCmd.Flags().StringVar(&importBranch, "branch", "", "Branch to import (default: main)")
	importCmd.Flags().BoolVar(&importAsync, "async", false, "Queue the import as a background job")
}

func runExport(cmd *cobra.Command, args []string) error {
	client := newClient()

	body := map[string]any{}
	if exportRepoName != "" {
		body["repoName"] = exportRepoName
	}
	if exportDescription != "" {
		body["description"] = exportDescription
	}
	if exportPrivate {
		body["private"] = true
	}
	if exportOrg != "" {
		body["org"] = exportOrg
	}

	var resp exportResponse
	if err := client.postJSON("/api/v1/registries/"+args[0]+"/export", body, &resp); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(resp)
	}
	fmt.Printf("Exported to %s (commit %s)\n", resp.RepoURL, resp.LastCommitSHA)
	if resp.PagesURL != "" {
		fmt.Printf("Hosted at %s\n", resp.PagesURL)
	}
	return nil
}

func runPush(cmd *cobra.Command, args []string) error {
	client := newClient()

	if pushAsync {
		var job jobInfo
		body := map[string]any{"registryId": args[0], "force": pushForce}
		if err := client.postJSON("/api/v1/jobs/push", body, &job); err != nil {
			return fmt.Errorf("failed to queue push: %w", err)
		}
		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(job)
		}
		fmt.Printf("Queued push job %s (state: %s)\n", job.ID, job.State)
		return nil
	}

	path := "/api/v1/registries/" + args[0] + "/push"
	if pushForce {
		path += "?force=true"
	}

	var resp pushResponse
	if err := client.postJSON(path, map[string]any{}, &resp); err != nil {
		return fmt.Errorf("push failed: %w", err)
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(resp)
	}
	if resp.Status == "no_changes" {
		fmt.Println("Already up to date.")
		return nil
	}
	fmt.Printf("Pushed commit %s (%d added, %d modified, %d deleted)\n",
		resp.CommitSHA, len(resp.Added), len(resp.Modified), len(resp.Deleted))
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	client := newClient()

	owner, repo, ok := splitRepoArg(args[0])
	if !ok {
		return fmt.Errorf("invalid repository %q, expected OWNER/REPO", args[0])
	}

	if importAsync {
		var job jobInfo
		body := map[string]any{"owner": owner, "repo": repo}
		if importBranch != "" {
			body["branch"] = importBranch
		}
		if err := client.postJSON("/api/v1/jobs/import", body, &job); err != nil {
			return fmt.Errorf("failed to queue import: %w", err)
		}
		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(job)
		}
		fmt.Printf("Queued import job %s (state: %s)\n", job.ID, job.State)
		return nil
	}

	body := map[string]any{"owner": owner, "repo": repo}
	if importBranch != "" {
		body["branch"] = importBranch
	}

	var resp map[string]any
	if err := client.postJSON("/api/v1/import", body, &resp); err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(resp)
	}
	fmt.Printf("Imported %s/%s as registry %v (slug: %v)\n", owner, repo, resp["registryId"], resp["slug"])
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := newClient()

	var resp exportResponse
	if err := client.getJSON("/api/v1/registries/"+args[0]+"/export", &resp); err != nil {
		return fmt.Errorf("failed to get sync status: %w", err)
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(resp)
	}
	fmt.Printf("Repository:   %s\n", resp.RepoURL)
	if resp.PagesURL != "" {
		fmt.Printf("Hosted at:    %s\n", resp.PagesURL)
	}
	fmt.Printf("Last commit:  %s\n", resp.LastCommitSHA)
	fmt.Printf("Last synced:  %s\n", resp.LastSyncedAt)
	return nil
}

// splitRepoArg splits "owner/repo" into its parts.
func splitRepoArg(arg string) (owner, repo string, ok bool) {
	owner, repo, ok = strings.Cut(arg, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", false
	}
	return owner, repo, true
}
