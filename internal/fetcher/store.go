package fetcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ArtifactStore persists raw rendered pages, one file per product keyed by
// the URL's last path segment. Existing artifacts make re-running a partially
// completed batch cheap: fetches are skipped unless a full refresh is forced.
type ArtifactStore struct {
	root string
}

// NewArtifactStore roots the store at dir.
func NewArtifactStore(dir string) *ArtifactStore {
	return &ArtifactStore{root: dir}
}

// ProductID derives the stable artifact key from a product URL.
func ProductID(url string) string {
	trimmed := strings.TrimRight(url, "/")
	if i := strings.LastIndexByte(trimmed, '/'); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

// Path returns the artifact file path for a product URL within a category.
func (s *ArtifactStore) Path(category, url string) string {
	return filepath.Join(s.root, category, ProductID(url)+".html")
}

// Exists reports whether an artifact has already been produced.
func (s *ArtifactStore) Exists(category, url string) bool {
	_, err := os.Stat(s.Path(category, url))
	return err == nil
}

// Save writes the rendered markup for a product page.
func (s *ArtifactStore) Save(category, url, html string) error {
	dir := filepath.Join(s.root, category)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	if err := os.WriteFile(s.Path(category, url), []byte(html), 0o644); err != nil {
		return fmt.Errorf("save artifact: %w", err)
	}
	return nil
}

// Load reads a previously saved artifact.
func (s *ArtifactStore) Load(category, url string) (string, error) {
	raw, err := os.ReadFile(s.Path(category, url))
	if err != nil {
		return "", fmt.Errorf("load artifact: %w", err)
	}
	return string(raw), nil
}

// Remove deletes an artifact, used when a full refresh or a completeness
// audit invalidates it.
func (s *ArtifactStore) Remove(category, url string) error {
	err := os.Remove(s.Path(category, url))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Categories lists the category subdirectories present in the store.
func (s *ArtifactStore) Categories() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var categories []string
	for _, e := range entries {
		if e.IsDir() {
			categories = append(categories, e.Name())
		}
	}
	return categories, nil
}

// Artifacts lists the product IDs saved for a category.
func (s *ArtifactStore) Artifacts(category string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, category))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".html") {
			ids = append(ids, strings.TrimSuffix(e.Name(), ".html"))
		}
	}
	return ids, nil
}
