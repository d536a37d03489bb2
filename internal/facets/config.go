package facets

import (
	"calheat/internal/models"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// categoryFile is the on-disk shape of a category configuration.
// A bare list of categories is accepted as well.
type categoryFile struct {
	Categories []models.FilterCategory `json:"categories" yaml:"categories"`
}

// LoadCategories reads filter categories from a YAML (.yaml, .yml) or JSON (.json) file.
func LoadCategories(path string) ([]models.FilterCategory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read category config: %w", err)
	}

	categories, err := ParseCategories(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse category config %s: %w", path, err)
	}
	return categories, nil
}

// ParseCategories decodes categories from data. ext selects the format
// (".json" for JSON, anything else is read as YAML, which also accepts JSON).
func ParseCategories(data []byte, ext string) ([]models.FilterCategory, error) {
	var categories []models.FilterCategory
	var err error
	if strings.EqualFold(ext, ".json") {
		categories, err = parseCategoriesJSON(data)
	} else {
		categories, err = parseCategoriesYAML(data)
	}
	if err != nil {
		return nil, err
	}

	for i := range categories {
		if categories[i].Label == "" {
			categories[i].Label = categories[i].ID
		}
	}
	if err := ValidateCategories(categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func parseCategoriesJSON(data []byte) ([]models.FilterCategory, error) {
	var categories []models.FilterCategory
	if strings.HasPrefix(strings.TrimSpace(string(data)), "[") {
		err := json.Unmarshal(data, &categories)
		return categories, err
	}
	var file categoryFile
	err := json.Unmarshal(data, &file)
	return file.Categories, err
}

// parseCategoriesYAML decides between the list and mapping shapes from the
// parsed document root, so comments and "---" markers may precede either.
func parseCategoriesYAML(data []byte) ([]models.FilterCategory, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	if root.Kind == yaml.SequenceNode {
		var categories []models.FilterCategory
		err := root.Decode(&categories)
		return categories, err
	}
	var file categoryFile
	err := root.Decode(&file)
	return file.Categories, err
}
