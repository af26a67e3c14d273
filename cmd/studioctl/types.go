package main

// registryInfo mirrors the server's registry response shape.
type registryInfo struct {
	ID            string `json:"id"`
	OwnerID       string `json:"ownerId"`
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	DisplayName   string `json:"displayName,omitempty"`
	Description   string `json:"description,omitempty"`
	Homepage      string `json:"homepage,omitempty"`
	IsPublic      bool   `json:"isPublic"`
	GithubRepoURL string `json:"githubRepoUrl,omitempty"`
	CreatedAt     string `json:"createdAt"`
	UpdatedAt     string `json:"updatedAt"`
}

type registriesResponse struct {
	Registries []registryInfo `json:"registries"`
}

// itemInfo mirrors the server's item response shape.
type itemInfo struct {
	ID          string `json:"id"`
	RegistryID  string `json:"registryId"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

type itemsResponse struct {
	Items []itemInfo `json:"items"`
}

// fileInfo mirrors the server's file response shape.
type fileInfo struct {
	ID     string `json:"id"`
	ItemID string `json:"itemId"`
	Path   string `json:"path"`
	Type   string `json:"type"`
	Target string `json:"target,omitempty"`
}

type filesResponse struct {
	Files []fileInfo `json:"files"`
}

// jobInfo mirrors the server's job response shape.
type jobInfo struct {
	ID               string `json:"id"`
	Kind             string `json:"kind"`
	State            string `json:"state"`
	RegistryID       string `json:"registryId,omitempty"`
	RequestedBy      string `json:"requestedBy"`
	RequestedAt      string `json:"requestedAt"`
	Message          string `json:"message,omitempty"`
	LastError        string `json:"lastError,omitempty"`
	CommitSHA        string `json:"commitSha,omitempty"`
	FilesChanged     int    `json:"filesChanged,omitempty"`
	ResultRegistryID string `json:"resultRegistryId,omitempty"`
}

type jobsListResponse struct {
	Jobs          []jobInfo `json:"jobs"`
	NextPageToken string    `json:"nextPageToken,omitempty"`
}

// pushResponse mirrors the server's synchronous push response.
type pushResponse struct {
	Status    string   `json:"status"`
	CommitSHA string   `json:"commitSha,omitempty"`
	Added     []string `json:"added,omitempty"`
	Modified  []string `json:"modified,omitempty"`
	Deleted   []string `json:"deleted,omitempty"`
}

// exportResponse mirrors the server's export status response.
type exportResponse struct {
	RegistryID    string `json:"registryId"`
	RepoOwner     string `json:"repoOwner"`
	RepoName      string `json:"repoName"`
	RepoURL       string `json:"repoUrl"`
	PagesURL      string `json:"pagesUrl,omitempty"`
	LastCommitSHA string `json:"lastCommitSha,omitempty"`
	LastSyncedAt  string `json:"lastSyncedAt,omitempty"`
}
