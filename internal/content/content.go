// Package content loads exercise definitions and playground catalogs from
// YAML or JSON files.
package content

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"sql-sandbox/internal/domain"
)

// extensions are the file types LoadExercises picks up.
var extensions = map[string]bool{".yaml": true, ".yml": true, ".json": true}

// LoadExercise reads a single exercise file. A missing id defaults to the file
// name without its extension.
func LoadExercise(path string) (*domain.Exercise, error) {
	data, err := os.ReadFile(path) //nolint:gosec // intentional: reading user-specified content files
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	ex, err := ParseExercise(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if ex.ID == "" {
		ex.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return ex, nil
}

// ParseExercise decodes one exercise document and resolves its grading
// strategy. JSON documents are accepted as YAML.
func ParseExercise(data []byte) (*domain.Exercise, error) {
	var ex domain.Exercise
	if err := yaml.Unmarshal(data, &ex); err != nil {
		return nil, err
	}
	ex.Prepare()
	return &ex, nil
}

// LoadExercises reads every exercise file in dir, sorted by file name.
func LoadExercises(dir string) ([]*domain.Exercise, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("exercise directory: %w", err)
	}

	var out []*domain.Exercise
	seen := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || !extensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		path := filepath.Join(dir, e.Name())
		ex, err := LoadExercise(path)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[ex.ID]; ok {
			return nil, fmt.Errorf("duplicate exercise id %q in %s and %s", ex.ID, prev, path)
		}
		seen[ex.ID] = path
		out = append(out, ex)
	}
	return out, nil
}

// playgroundFile is the on-disk layout of a playground catalog.
type playgroundFile struct {
	Datasets   []domain.PlaygroundDataset              `yaml:"datasets"`
	Challenges map[string][]domain.PlaygroundChallenge `yaml:"challenges"`
}

// Catalog holds playground datasets and their challenges.
type Catalog struct {
	datasets   []domain.PlaygroundDataset
	challenges map[string][]domain.PlaygroundChallenge
}

// LoadPlayground reads a playground catalog file.
func LoadPlayground(path string) (*Catalog, error) {
	data, err := os.ReadFile(path) //nolint:gosec // intentional: reading user-specified content files
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	c, err := ParsePlayground(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return c, nil
}

// ParsePlayground decodes a playground catalog. Every challenge must have an
// id that is unique within its dataset.
func ParsePlayground(data []byte) (*Catalog, error) {
	var f playgroundFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.Challenges == nil {
		f.Challenges = make(map[string][]domain.PlaygroundChallenge)
	}
	for dataset, list := range f.Challenges {
		seen := make(map[string]bool, len(list))
		for _, ch := range list {
			if strings.TrimSpace(ch.ID) == "" {
				return nil, fmt.Errorf("dataset %q: challenge without id", dataset)
			}
			if seen[ch.ID] {
				return nil, fmt.Errorf("dataset %q: duplicate challenge id %q", dataset, ch.ID)
			}
			seen[ch.ID] = true
		}
	}
	return &Catalog{datasets: f.Datasets, challenges: f.Challenges}, nil
}

// Datasets returns the catalog's datasets in file order.
func (c *Catalog) Datasets() []domain.PlaygroundDataset {
	return append([]domain.PlaygroundDataset(nil), c.datasets...)
}

// DatasetIDs returns the ids of every dataset that has challenges, sorted.
func (c *Catalog) DatasetIDs() []string {
	ids := make([]string, 0, len(c.challenges))
	for id := range c.challenges {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Challenge returns the challenge id of dataset, solution included.
func (c *Catalog) Challenge(dataset, id string) (*domain.PlaygroundChallenge, error) {
	list, ok := c.challenges[dataset]
	if !ok {
		return nil, domain.ErrNotFound("dataset %q not found", dataset)
	}
	for i := range list {
		if list[i].ID == id {
			ch := list[i]
			return &ch, nil
		}
	}
	return nil, domain.ErrNotFound("challenge %q not found in dataset %q", id, dataset)
}

// Public returns the challenges of dataset with their solutions removed.
func (c *Catalog) Public(dataset string) ([]domain.PlaygroundChallenge, error) {
	list, ok := c.challenges[dataset]
	if !ok {
		return nil, domain.ErrNotFound("dataset %q not found", dataset)
	}
	out := make([]domain.PlaygroundChallenge, len(list))
	for i, ch := range list {
		ch.SolutionQuery = ""
		out[i] = ch
	}
	return out, nil
}
