package scaffold

// RegistrySchemaURL marks the registry manifest schema version.
const RegistrySchemaURL = "https://ui.shadcn.com/schema/registry.json"

// ItemSchemaURL marks the per-item manifest schema version.
const ItemSchemaURL = "https://ui.shadcn.com/schema/registry-item.json"

// Manifest is the machine-readable catalog for a registry, served at
// registry.json. Installers resolve item manifests relative to it.
type Manifest struct {
	Schema   string         `json:"$schema"`
	Name     string         `json:"name"`
	Homepage string         `json:"homepage,omitempty"`
	Items    []ManifestItem `json:"items"`
}

// ManifestItem is one catalog entry in the registry manifest. File content
// is delivered out-of-band at each file's path.
type ManifestItem struct {
	Name                 string            `json:"name"`
	Type                 string            `json:"type"`
	Title                string            `json:"title,omitempty"`
	Description          string            `json:"description,omitempty"`
	Dependencies         []string          `json:"dependencies,omitempty"`
	RegistryDependencies []string          `json:"registryDependencies,omitempty"`
	Categories           []string          `json:"categories,omitempty"`
	Files                []ManifestFile    `json:"files"`
	CSSVars              *CSSVars          `json:"cssVars,omitempty"`
	CSS                  string            `json:"css,omitempty"`
	EnvVars              map[string]string `json:"envVars,omitempty"`
	Docs                 string            `json:"docs,omitempty"`
	Meta                 map[string]any    `json:"meta,omitempty"`
}

// ManifestFile references one installable file of an item.
type ManifestFile struct {
	Path   string `json:"path"`
	Type   string `json:"type"`
	Target string `json:"target,omitempty"`
}

// CSSVars carries the per-scope CSS variable maps of an item manifest.
type CSSVars struct {
	Theme map[string]string `json:"theme,omitempty"`
	Light map[string]string `json:"light,omitempty"`
	Dark  map[string]string `json:"dark,omitempty"`
}

// ItemManifest is the standalone installable manifest for one item,
// served at r/<item-name>.json with file content inlined. This is the
// document an "add component from URL" installer fetches.
type ItemManifest struct {
	Schema               string             `json:"$schema"`
	Name                 string             `json:"name"`
	Type                 string             `json:"type"`
	Title                string             `json:"title,omitempty"`
	Description          string             `json:"description,omitempty"`
	Dependencies         []string           `json:"dependencies,omitempty"`
	RegistryDependencies []string           `json:"registryDependencies,omitempty"`
	Categories           []string           `json:"categories,omitempty"`
	Files                []ItemManifestFile `json:"files"`
	CSSVars              *CSSVars           `json:"cssVars,omitempty"`
	CSS                  string             `json:"css,omitempty"`
	EnvVars              map[string]string  `json:"envVars,omitempty"`
	Docs                 string             `json:"docs,omitempty"`
	Meta                 map[string]any     `json:"meta,omitempty"`
}

// ItemManifestFile is one file of an item manifest with inlined content.
type ItemManifestFile struct {
	Path    string `json:"path"`
	Type    string `json:"type"`
	Target  string `json:"target,omitempty"`
	Content string `json:"content"`
}
