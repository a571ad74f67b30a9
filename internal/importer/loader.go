package importer

import (
	"embed"
	"log/slog"
	"os"
)

//go:embed selectors.json
var embeddedSelectors embed.FS

// LoadConfig tries to load selectors in the following order:
// 1. Embedded selectors.json
// 2. External file defined by SELECTORS_CONFIG_PATH (or default "config/selectors.json")
// 3. Hardcoded defaults
func LoadConfig() SelectorConfig {
	data, err := embeddedSelectors.ReadFile("selectors.json")
	if err == nil {
		sel, parseErr := LoadSelectorsFromBytes(data)
		if parseErr == nil {
			slog.Info("Loaded selectors from embedded config.")
			return sel
		}
		slog.Warn("Embedded selectors failed to parse. Trying file fallback.", "error", parseErr)
	}

	configPath := os.Getenv("SELECTORS_CONFIG_PATH")
	if configPath == "" {
		configPath = "config/selectors.json"
	}
	fileSel, err := LoadSelectors(configPath)
	if err == nil {
		slog.Info("Loaded selectors from external file", "path", configPath)
		return fileSel
	}
	slog.Warn("Failed to load external selectors, falling back to defaults", "path", configPath, "error", err)

	return DefaultSelectors()
}
