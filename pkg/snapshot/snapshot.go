// Package snapshot records the content-hash state of a generated scaffold
// and computes the change set between a fresh scaffold and the state last
// pushed to a remote repository.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// FileEntry is one file of a generated scaffold: the repository-relative
// path and the exact bytes that would be written at that path.
type FileEntry struct {
	Path    string
	Content []byte
}

// Snapshot maps scaffold file paths to the SHA-256 hex digest of their
// content as of the last successful push.
type Snapshot map[string]string

// HashContent returns the SHA-256 hex digest of the given bytes.
func HashContent(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

// Compute builds a Snapshot from a set of file entries.
func Compute(files []FileEntry) Snapshot {
	snap := make(Snapshot, len(files))
	for _, f := range files {
		snap[f.Path] = HashContent(f.Content)
	}
	return snap
}

// Encode serializes the snapshot to JSON for storage.
func (s Snapshot) Encode() (string, error) {
	if s == nil {
		s = Snapshot{}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return string(data), nil
}

// Decode deserializes a snapshot previously produced by Encode.
// An empty string decodes to an empty snapshot.
func Decode(data string) (Snapshot, error) {
	if data == "" {
		return Snapshot{}, nil
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap == nil {
		snap = Snapshot{}
	}
	return snap, nil
}

// DiffResult is the change set between a fresh scaffold and a previous
// snapshot. Path slices are sorted. NewSnapshot is the full path-to-hash
// map of the fresh scaffold and unconditionally replaces the previous
// snapshot once the diff has been applied remotely.
type DiffResult struct {
	Added       []string
	Modified    []string
	Deleted     []string
	NewSnapshot Snapshot
}

// Empty reports whether the diff contains no changes. An empty diff means
// a push can short-circuit without any remote call.
func (d DiffResult) Empty() bool {
	return len(d.Added) == 0 && len(d.Modified) == 0 && len(d.Deleted) == 0
}

// Diff compares a freshly generated scaffold against the snapshot recorded
// at the last push. It is a pure function of its inputs: diffing twice with
// no intervening change yields an empty result the second time.
func Diff(fresh []FileEntry, previous Snapshot) DiffResult {
	result := DiffResult{
		NewSnapshot: make(Snapshot, len(fresh)),
	}

	for _, f := range fresh {
		hash := HashContent(f.Content)
		result.NewSnapshot[f.Path] = hash

		prevHash, existed := previous[f.Path]
		switch {
		case !existed:
			result.Added = append(result.Added, f.Path)
		case prevHash != hash:
			result.Modified = append(result.Modified, f.Path)
		}
	}

	for path := range previous {
		if _, ok := result.NewSnapshot[path]; !ok {
			result.Deleted = append(result.Deleted, path)
		}
	}

	sort.Strings(result.Added)
	sort.Strings(result.Modified)
	sort.Strings(result.Deleted)
	return result
}
