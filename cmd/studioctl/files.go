package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	filesRegistry string
	filesItem     string
	fileType      string
	fileTarget    string
	filePath      string
)

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Manage item source files",
}

var filesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List files of an item",
	RunE:  runFilesList,
}

var filesPutCmd = &cobra.Command{
	Use:   "put LOCAL_FILE",
	Short: "Upload or replace an item file",
	Long: `Upload a local file as an item source file. The registry-relative path
defaults to the local file name; override it with --path.`,
	Args: cobra.ExactArgs(1),
	RunE: runFilesPut,
}

func init() {
	filesCmd.PersistentFlags().StringVarP(&filesRegistry, "registry", "r", "", "Registry ID (required)")
	filesCmd.PersistentFlags().StringVarP(&filesItem, "item", "i", "", "Item ID (required)")
	_ = filesCmd.MarkPersistentFlagRequired("registry")
	_ = filesCmd.MarkPersistentFlagRequired("item")

	filesPutCmd.Flags().StringVarP(&fileType, "type", "t", "registry:ui", "File type")
	filesPutCmd.Flags().StringVar(&fileTarget, "target", "", "Install target path in consuming projects")
	filesPutCmd.Flags().StringVar(&filePath, "path", "", "Item-relative path (default: local file name)")

	filesCmd.AddCommand(filesListCmd)
	filesCmd.AddCommand(filesPutCmd)
}

func runFilesList(cmd *cobra.Command, args []string) error {
	client := newClient()

	path := fmt.Sprintf("/api/v1/registries/%s/items/%s/files", filesRegistry, filesItem)
	var resp filesResponse
	if err := client.getJSON(path, &resp); err != nil {
		return fmt.Errorf("failed to list files: %w", err)
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(resp)
	}

	headers := []string{"ID", "Path", "Type", "Target"}
	rows := make([][]string, 0, len(resp.Files))
	for _, f := range resp.Files {
		rows = append(rows, []string{f.ID, f.Path, f.Type, f.Target})
	}
	printTable(headers, rows)
	return nil
}

func runFilesPut(cmd *cobra.Command, args []string) error {
	client := newClient()

	content, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	remotePath := filePath
	if remotePath == "" {
		remotePath = filepath.Base(args[0])
	}

	body := map[string]any{
		"path":    remotePath,
		"type":    fileType,
		"content": string(content),
	}
	if fileTarget != "" {
		body["target"] = fileTarget
	}

	apiPath := fmt.Sprintf("/api/v1/registries/%s/items/%s/files", filesRegistry, filesItem)
	var f fileInfo
	if err := client.putJSON(apiPath, body, &f); err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(f)
	}
	fmt.Printf("Uploaded %s (%d bytes)\n", f.Path, len(content))
	return nil
}
