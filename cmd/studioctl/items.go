package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	itemsRegistry   string
	itemType        string
	itemTitle       string
	itemDescription string
)

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "Manage registry items",
}

var itemsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List items in a registry",
	RunE:  runItemsList,
}

var itemsCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Add an item to a registry",
	Args:  cobra.ExactArgs(1),
	RunE:  runItemsCreate,
}

var itemsDeleteCmd = &cobra.Command{
	Use:   "delete ITEM_ID",
	Short: "Remove an item and its files",
	Args:  cobra.ExactArgs(1),
	RunE:  runItemsDelete,
}

func init() {
	itemsCmd.PersistentFlags().StringVarP(&itemsRegistry, "registry", "r", "", "Registry ID (required)")
	_ = itemsCmd.MarkPersistentFlagRequired("registry")

	itemsCreateCmd.Flags().StringVarP(&itemType, "type", "t", "registry:ui", "Item type (registry:ui, registry:component, registry:block, ...)")
	itemsCreateCmd.Flags().StringVar(&itemTitle, "title", "", "Item title")
	itemsCreateCmd.Flags().StringVar(&itemDescription, "description", "", "Item description")

	itemsCmd.AddCommand(itemsListCmd)
	itemsCmd.AddCommand(itemsCreateCmd)
	itemsCmd.AddCommand(itemsDeleteCmd)
}

func runItemsList(cmd *cobra.Command, args []string) error {
	client := newClient()

	var resp itemsResponse
	if err := client.getJSON("/api/v1/registries/"+itemsRegistry+"/items", &resp); err != nil {
		return fmt.Errorf("failed to list items: %w", err)
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(resp)
	}

	headers := []string{"ID", "Name", "Type", "Title"}
	rows := make([][]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		rows = append(rows, []string{item.ID, item.Name, item.Type, truncate(item.Title, 40)})
	}
	printTable(headers, rows)
	return nil
}

func runItemsCreate(cmd *cobra.Command, args []string) error {
	client := newClient()

	body := map[string]any{
		"name": args[0],
		"type": itemType,
	}
	if itemTitle != "" {
		body["title"] = itemTitle
	}
	if itemDescription != "" {
		body["description"] = itemDescription
	}

	var item itemInfo
	if err := client.postJSON("/api/v1/registries/"+itemsRegistry+"/items", body, &item); err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(item)
	}
	fmt.Printf("Created item %s (%s)\n", item.ID, item.Name)
	return nil
}

func runItemsDelete(cmd *cobra.Command, args []string) error {
	client := newClient()

	path := fmt.Sprintf("/api/v1/registries/%s/items/%s", itemsRegistry, args[0])
	if err := client.delete(path); err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	fmt.Printf("Deleted item %s\n", args[0])
	return nil
}
