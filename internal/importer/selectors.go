package importer

import (
	"encoding/json"
	"fmt"
	"os"
)

type SelectorConfig struct {
	Listing ListSelectors   `json:"listing"`
	Details DetailSelectors `json:"details"`
}

type ListSelectors struct {
	Container ListContainer `json:"container"`
	Elements  ListElements  `json:"elements"`
}

type ListContainer struct {
	Item           string `json:"item"`            // e.g., ".deal-card"
	IgnoreModifier string `json:"ignore_modifier"` // e.g., ".sold-out"
}

type ListElements struct {
	TitleLink       string `json:"title_link"`
	Business        string `json:"business"`
	BusinessType    string `json:"business_type"`
	Discount        string `json:"discount"`
	OriginalPrice   string `json:"original_price"`
	DiscountedPrice string `json:"discounted_price"`
	Image           string `json:"image"`
	City            string `json:"city"`
	Country         string `json:"country"`
	ValidUntil      string `json:"valid_until"`
}

type DetailSelectors struct {
	Description string `json:"description"`
	Gallery     string `json:"gallery"`
}

// LoadSelectors loads the selector configuration from the specified JSON file.
func LoadSelectors(path string) (SelectorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SelectorConfig{}, fmt.Errorf("failed to read selector config file: %w", err)
	}

	return LoadSelectorsFromBytes(data)
}

// LoadSelectorsFromBytes parses selector configuration from raw JSON bytes.
func LoadSelectorsFromBytes(data []byte) (SelectorConfig, error) {
	var config SelectorConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return SelectorConfig{}, fmt.Errorf("failed to parse selector config JSON: %w", err)
	}
	if config.Listing.Container.Item == "" || config.Listing.Elements.TitleLink == "" {
		return SelectorConfig{}, fmt.Errorf("selector config is missing listing item or title link")
	}

	return config, nil
}

// DefaultSelectors returns the fallback configuration if no JSON file is loaded.
func DefaultSelectors() SelectorConfig {
	return SelectorConfig{
		Listing: ListSelectors{
			Container: ListContainer{
				Item:           ".deal-card",
				IgnoreModifier: ".sold-out",
			},
			Elements: ListElements{
				TitleLink:       ".deal-card__title a",
				Business:        ".deal-card__business",
				BusinessType:    ".deal-card__type",
				Discount:        ".deal-card__discount",
				OriginalPrice:   ".deal-card__price--was",
				DiscountedPrice: ".deal-card__price--now",
				Image:           ".deal-card__image img",
				City:            ".deal-card__city",
				Country:         ".deal-card__country",
				ValidUntil:      ".deal-card__expires time",
			},
		},
		Details: DetailSelectors{
			Description: ".deal-detail__description",
			Gallery:     ".deal-detail__gallery img",
		},
	}
}
