package seed

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"blueroom/internal/models"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:embed catalog.yml
var defaultCatalog []byte

// Catalog is the set of subjects and backgrounds offered when creating rooms.
type Catalog struct {
	Subjects    []string            `yaml:"subjects"`
	Backgrounds []CatalogBackground `yaml:"backgrounds"`
}

// CatalogBackground is a background entry of a catalog file.
type CatalogBackground struct {
	Name     string `yaml:"name"`
	ImageURL string `yaml:"image_url"`
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads a catalog file. An empty path yields the built-in catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(raw)
}

// ParseCatalog decodes YAML, trimming names and dropping blanks and duplicates.
func ParseCatalog(raw []byte) (*Catalog, error) {
	var in Catalog
	if err := yaml.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	out := &Catalog{}
	seen := make(map[string]bool)
	for _, name := range in.Subjects {
		name = strings.TrimSpace(name)
		if name == "" || seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true
		out.Subjects = append(out.Subjects, name)
	}
	for _, bg := range in.Backgrounds {
		bg.Name = strings.TrimSpace(bg.Name)
		if bg.Name == "" {
			return nil, fmt.Errorf("parse catalog: background without a name")
		}
		out.Backgrounds = append(out.Backgrounds, bg)
	}
	return out, nil
}

// Apply inserts the catalog's subjects and backgrounds. Existing entries are
// left untouched, so Apply can run on every start.
func (c *Catalog) Apply(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for _, name := range c.Subjects {
			subject := models.Subject{Name: name}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoNothing: true,
			}).Create(&subject).Error; err != nil {
				return fmt.Errorf("seed subject %q: %w", name, err)
			}
		}

		for _, item := range c.Backgrounds {
			bg := models.Background{Name: item.Name}
			if err := tx.Where("name = ?", item.Name).
				Attrs(models.Background{ImageURL: item.ImageURL}).
				FirstOrCreate(&bg).Error; err != nil {
				return fmt.Errorf("seed background %q: %w", item.Name, err)
			}
		}
		return nil
	})
}
