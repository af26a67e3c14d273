package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	createDisplayName string
	createDescription string
	createHomepage    string
	createPublic      bool
)

var registriesCmd = &cobra.Command{
	Use:   "registries",
	Short: "Manage component registries",
}

var registriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your registries",
	RunE:  runRegistriesList,
}

var registriesGetCmd = &cobra.Command{
	Use:   "get REGISTRY_ID",
	Short: "Show one registry",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegistriesGet,
}

var registriesCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a registry",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegistriesCreate,
}

var registriesDeleteCmd = &cobra.Command{
	Use:   "delete REGISTRY_ID",
	Short: "Delete a registry and all of its items",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegistriesDelete,
}

func init() {
	registriesCreateCmd.Flags().StringVar(&createDisplayName, "display-name", "", "Human-readable display name")
	registriesCreateCmd.Flags().StringVar(&createDescription, "description", "", "Registry description")
	registriesCreateCmd.Flags().StringVar(&createHomepage, "homepage", "", "Homepage URL")
	registriesCreateCmd.Flags().BoolVar(&createPublic, "public", false, "List the registry in the public catalog")

	registriesCmd.AddCommand(registriesListCmd)
	registriesCmd.AddCommand(registriesGetCmd)
	registriesCmd.AddCommand(registriesCreateCmd)
	registriesCmd.AddCommand(registriesDeleteCmd)
}

func runRegistriesList(cmd *cobra.Command, args []string) error {
	client := newClient()

	var resp registriesResponse
	if err := client.getJSON("/api/v1/registries", &resp); err != nil {
		return fmt.Errorf("failed to list registries: %w", err)
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(resp)
	}

	headers := []string{"ID", "Name", "Slug", "Public", "Description"}
	rows := make([][]string, 0, len(resp.Registries))
	for _, reg := range resp.Registries {
		public := "no"
		if reg.IsPublic {
			public = "yes"
		}
		rows = append(rows, []string{
			reg.ID,
			reg.Name,
			reg.Slug,
			public,
			truncate(reg.Description, 50),
		})
	}
	printTable(headers, rows)
	return nil
}

func runRegistriesGet(cmd *cobra.Command, args []string) error {
	client := newClient()

	var reg registryInfo
	if err := client.getJSON("/api/v1/registries/"+args[0], &reg); err != nil {
		return fmt.Errorf("failed to get registry: %w", err)
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(reg)
	}

	headers := []string{"Field", "Value"}
	rows := [][]string{
		{"ID", reg.ID},
		{"Name", reg.Name},
		{"Slug", reg.Slug},
		{"Owner", reg.OwnerID},
		{"Public", fmt.Sprintf("%t", reg.IsPublic)},
		{"Repo", reg.GithubRepoURL},
		{"Created", reg.CreatedAt},
	}
	printTable(headers, rows)
	return nil
}

func runRegistriesCreate(cmd *cobra.Command, args []string) error {
	client := newClient()

	body := map[string]any{
		"name":     args[0],
		"isPublic": createPublic,
	}
	if createDisplayName != "" {
		body["displayName"] = createDisplayName
	}
	if createDescription != "" {
		body["description"] = createDescription
	}
	if createHomepage != "" {
		body["homepage"] = createHomepage
	}

	var reg registryInfo
	if err := client.postJSON("/api/v1/registries", body, &reg); err != nil {
		return fmt.Errorf("failed to create registry: %w", err)
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(reg)
	}
	fmt.Printf("Created registry %s (slug: %s)\n", reg.ID, reg.Slug)
	return nil
}

func runRegistriesDelete(cmd *cobra.Command, args []string) error {
	client := newClient()

	if err := client.delete("/api/v1/registries/" + args[0]); err != nil {
		return fmt.Errorf("failed to delete registry: %w", err)
	}
	fmt.Printf("Deleted registry %s\n", args[0])
	return nil
}
