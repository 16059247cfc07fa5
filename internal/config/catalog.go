package config

import (
	"errors"
	"fmt"
	"os"

	"vyvoz/internal/models"

	"gopkg.in/yaml.v2"
)

// LoadCatalog читает каталог услуг из отдельного YAML-файла.
func LoadCatalog(path string) (models.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var catalogConfig struct {
		Products []models.Product `yaml:"products"`
	}
	if err := yaml.Unmarshal(data, &catalogConfig); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := ValidateProducts(catalogConfig.Products); err != nil {
		return nil, err
	}
	return models.Catalog(catalogConfig.Products), nil
}

func ValidateProducts(products []models.Product) error {
	if len(products) == 0 {
		return errors.New("product catalog is empty")
	}

	ids := make(map[string]bool)
	for _, p := range products {
		if p.ID == "" {
			return fmt.Errorf("product '%s' has empty ID", p.Name)
		}
		// идентификатор уходит в callback data, лимит Telegram 64 байта
		if len(p.ID) > 24 {
			return fmt.Errorf("product ID too long: %s", p.ID)
		}
		if ids[p.ID] {
			return fmt.Errorf("duplicate product ID found: %s", p.ID)
		}
		if p.Price < 0 {
			return fmt.Errorf("product '%s' has negative price", p.ID)
		}
		ids[p.ID] = true
	}
	return nil
}
