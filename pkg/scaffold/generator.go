// Package scaffold turns a registry and its items into the static file set
// that gets pushed to a GitHub Pages repository: a schema-versioned
// registry manifest, one installable manifest per item, the raw source
// files, and a minimal catalog page.
//
// Generation is pure and deterministic: identical inputs produce
// byte-identical output, which the snapshot differ relies on.
package scaffold

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"path"
	"sort"
	"strings"

	"github.com/uifoundry/registry-studio/pkg/registry"
	"github.com/uifoundry/registry-studio/pkg/snapshot"
)

// ItemWithFiles pairs a registry item with its files for generation.
type ItemWithFiles struct {
	Item  registry.RegistryItem
	Files []registry.ItemFile
}

// Generate produces the complete scaffold for a registry. pagesBaseURL is
// the URL the scaffold will be hosted at (used for homepage fallback and
// install commands); it may be empty. A registry with zero items yields a
// valid empty-catalog manifest.
func Generate(reg *registry.Registry, items []ItemWithFiles, pagesBaseURL string) ([]snapshot.FileEntry, error) {
	if reg == nil {
		return nil, fmt.Errorf("generate scaffold: registry is nil")
	}

	sorted := make([]ItemWithFiles, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Item.SortOrder != sorted[j].Item.SortOrder {
			return sorted[i].Item.SortOrder < sorted[j].Item.SortOrder
		}
		return sorted[i].Item.Name < sorted[j].Item.Name
	})

	homepage := reg.Homepage
	if homepage == "" {
		homepage = strings.TrimSuffix(pagesBaseURL, "/")
	}

	manifest := Manifest{
		Schema:   RegistrySchemaURL,
		Name:     reg.Slug,
		Homepage: homepage,
		Items:    []ManifestItem{},
	}

	var entries []snapshot.FileEntry

	for _, iwf := range sorted {
		item := iwf.Item

		files := make([]registry.ItemFile, len(iwf.Files))
		copy(files, iwf.Files)
		sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

		itemType := "registry:" + string(item.Type)

		var manifestFiles []ManifestFile
		var inlineFiles []ItemManifestFile
		for _, f := range files {
			repoPath := FilePath(item.Name, f.Path)
			manifestFiles = append(manifestFiles, ManifestFile{
				Path:   repoPath,
				Type:   string(f.Type),
				Target: f.Target,
			})
			inlineFiles = append(inlineFiles, ItemManifestFile{
				Path:    repoPath,
				Type:    string(f.Type),
				Target:  f.Target,
				Content: f.Content,
			})
			entries = append(entries, snapshot.FileEntry{
				Path:    repoPath,
				Content: []byte(f.Content),
			})
		}
		if manifestFiles == nil {
			manifestFiles = []ManifestFile{}
			inlineFiles = []ItemManifestFile{}
		}

		cssVars := itemCSSVars(&item)

		manifest.Items = append(manifest.Items, ManifestItem{
			Name:                 item.Name,
			Type:                 itemType,
			Title:                item.Title,
			Description:          item.Description,
			Dependencies:         item.DependencyList(),
			RegistryDependencies: item.RegistryDependencyList(),
			Categories:           item.CategoryList(),
			Files:                manifestFiles,
			CSSVars:              cssVars,
			CSS:                  item.CSS,
			EnvVars:              item.EnvVarMap(),
			Docs:                 item.Docs,
			Meta:                 item.MetaMap(),
		})

		itemManifest := ItemManifest{
			Schema:               ItemSchemaURL,
			Name:                 item.Name,
			Type:                 itemType,
			Title:                item.Title,
			Description:          item.Description,
			Dependencies:         item.DependencyList(),
			RegistryDependencies: item.RegistryDependencyList(),
			Categories:           item.CategoryList(),
			Files:                inlineFiles,
			CSSVars:              cssVars,
			CSS:                  item.CSS,
			EnvVars:              item.EnvVarMap(),
			Docs:                 item.Docs,
			Meta:                 item.MetaMap(),
		}
		itemJSON, err := marshalStable(itemManifest)
		if err != nil {
			return nil, fmt.Errorf("generate item manifest %q: %w", item.Name, err)
		}
		entries = append(entries, snapshot.FileEntry{
			Path:    "r/" + item.Name + ".json",
			Content: itemJSON,
		})
	}

	manifestJSON, err := marshalStable(manifest)
	if err != nil {
		return nil, fmt.Errorf("generate registry manifest: %w", err)
	}
	entries = append(entries, snapshot.FileEntry{Path: "registry.json", Content: manifestJSON})
	entries = append(entries, snapshot.FileEntry{Path: "index.html", Content: renderIndex(reg, sorted, pagesBaseURL)})
	// Pages serves underscore-prefixed paths only with Jekyll disabled.
	entries = append(entries, snapshot.FileEntry{Path: ".nojekyll", Content: []byte{}})

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// FilePath maps an item file to its on-disk scaffold path:
// registry/<item-name>/<relative-path>.
func FilePath(itemName, filePath string) string {
	rel := path.Clean("/" + filePath)
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" || rel == "." {
		rel = "index"
	}
	return "registry/" + itemName + "/" + rel
}

func itemCSSVars(item *registry.RegistryItem) *CSSVars {
	blocks := item.CSSVarBlocks()
	if blocks == nil {
		return nil
	}
	if len(blocks.Theme) == 0 && len(blocks.Light) == 0 && len(blocks.Dark) == 0 {
		return nil
	}
	return &CSSVars{Theme: blocks.Theme, Light: blocks.Light, Dark: blocks.Dark}
}

// marshalStable renders JSON with two-space indentation and a trailing
// newline. encoding/json sorts map keys, so output is byte-stable for
// identical input.
func marshalStable(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderIndex(reg *registry.Registry, items []ItemWithFiles, pagesBaseURL string) []byte {
	title := reg.DisplayName
	if title == "" {
		title = reg.Name
	}
	base := strings.TrimSuffix(pagesBaseURL, "/")

	var b strings.Builder
	b.WriteString("<!doctype html>\n<html lang=\"en\">\n<head>\n")
	b.WriteString("<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(title))
	b.WriteString("</head>\n<body>\n")
	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(title))
	if reg.Description != "" {
		fmt.Fprintf(&b, "<p>%s</p>\n", html.EscapeString(reg.Description))
	}
	b.WriteString("<ul>\n")
	for _, iwf := range items {
		item := iwf.Item
		label := item.Title
		if label == "" {
			label = item.Name
		}
		installURL := "r/" + item.Name + ".json"
		if base != "" {
			installURL = base + "/" + installURL
		}
		fmt.Fprintf(&b, "<li><a href=\"r/%s.json\">%s</a> <code>npx shadcn@latest add %s</code></li>\n",
			html.EscapeString(item.Name), html.EscapeString(label), html.EscapeString(installURL))
	}
	b.WriteString("</ul>\n</body>\n</html>\n")
	return []byte(b.String())
}
