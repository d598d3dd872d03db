package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"sort"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultSeed []byte

// seedNamespace scopes the deterministic ids of seeded items
var seedNamespace = uuid.MustParse("5b0e7c5e-4a0f-4a55-9d0e-2f6a8b1c3d42")

type seedFile struct {
	Categories map[string][]seedEntry `yaml:"categories"`
}

type seedEntry struct {
	ID        string         `yaml:"id"`
	Slug      string         `yaml:"slug"`
	Label     string         `yaml:"label"`
	Order     *int           `yaml:"ordem"`
	Active    *bool          `yaml:"ativo"`
	Metadata  map[string]any `yaml:"metadata"`
	ProductID string         `yaml:"produtoId"`
}

// SeedID returns the id a seeded item gets for a tenant
func SeedID(tenantID, category, slug string) string {
	return uuid.NewSHA1(seedNamespace, []byte(tenantID+"/"+category+"/"+slug)).String()
}

// LoadSeed parses a YAML catalog definition into items owned by tenantID.
// Entries without an id get SeedID; entries default to active.
func LoadSeed(r io.Reader, tenantID string) ([]*Item, error) {
	var file seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog seed: %w", err)
	}

	categories := make([]string, 0, len(file.Categories))
	for category := range file.Categories {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	var items []*Item
	for _, category := range categories {
		seen := make(map[string]bool)
		for _, entry := range file.Categories[category] {
			if seen[entry.Slug] {
				return nil, fmt.Errorf("%w: duplicate slug %q in category %q", ErrValidation, entry.Slug, category)
			}
			seen[entry.Slug] = true

			id := entry.ID
			if id == "" {
				id = SeedID(tenantID, category, entry.Slug)
			}
			active := true
			if entry.Active != nil {
				active = *entry.Active
			}

			item, err := NewItem(Props{
				ID:           id,
				TenantID:     tenantID,
				CategorySlug: category,
				Slug:         entry.Slug,
				Label:        entry.Label,
				Order:        entry.Order,
				Active:       active,
				Metadata:     entry.Metadata,
				ProductID:    entry.ProductID,
			})
			if err != nil {
				return nil, fmt.Errorf("invalid seed entry %s/%s: %w", category, entry.Slug, err)
			}
			items = append(items, item)
		}
	}
	return items, nil
}

// DefaultSeed returns the built-in catalog for tenantID
func DefaultSeed(tenantID string) ([]*Item, error) {
	return LoadSeed(bytes.NewReader(defaultSeed), tenantID)
}
