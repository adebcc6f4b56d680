// internal/config/config.go
package conf

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Sivellexfc/paket-pilot/internal/archive"
	"github.com/Sivellexfc/paket-pilot/internal/db"
	"github.com/Sivellexfc/paket-pilot/internal/integrations/importer"
	"github.com/Sivellexfc/paket-pilot/internal/integrations/trendyol"
)

// Główny config aplikacji
type Config struct {
	AutoStart              bool                       `json:"auto_start"`
	RefreshIntervalSeconds int                        `json:"refresh_interval_seconds"`
	StoreID                uint                       `json:"store_id"`    // wybrany sklep, 0 = brak
	Marketplace            string                     `json:"marketplace"` // nazwa rynku z sekcji integrations
	Database               db.Config                  `json:"database"`
	Archive                ArchiveConfig              `json:"archive"`
	Integrations           map[string]json.RawMessage `json:"integrations"` // nazwa -> surowy JSON integracji
}

// ArchiveConfig – tryb zapisu archiwum dziennego per typ ("merge" / "overwrite").
type ArchiveConfig struct {
	CargoMode  string `json:"cargo_mode"`
	CancelMode string `json:"cancel_mode"`
}

// Modes zwraca tryby archiwum; puste pola dostają domyślne merge / overwrite.
func (a ArchiveConfig) Modes() (cargo, cancel archive.Mode, err error) {
	if cargo, err = archive.ParseMode(a.CargoMode, archive.ModeMerge); err != nil {
		return "", "", fmt.Errorf("archive.cargo_mode: %w", err)
	}
	if cancel, err = archive.ParseMode(a.CancelMode, archive.ModeOverwrite); err != nil {
		return "", "", fmt.Errorf("archive.cancel_mode: %w", err)
	}
	return cargo, cancel, nil
}

// RefreshInterval – co ile odświeżamy zamówienia w czasie kompletacji.
func (c *Config) RefreshInterval() time.Duration {
	if c.RefreshIntervalSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}

func Default() *Config {
	rawTy, _ := json.Marshal(trendyol.Defaults())
	rawImp, _ := json.Marshal(importer.Defaults())
	return &Config{
		AutoStart:              false,
		RefreshIntervalSeconds: 60,
		Marketplace:            trendyol.Name,
		Database:               db.Config{Driver: db.DriverSQLite},
		Archive:                ArchiveConfig{CargoMode: string(archive.ModeMerge), CancelMode: string(archive.ModeOverwrite)},
		Integrations: map[string]json.RawMessage{
			trendyol.Name: rawTy,
			importer.Name: rawImp,
		},
	}
}

func LoadOrCreate(path string) (*Config, bool, error) {
	// upewnij się, że katalog istnieje
	_ = os.MkdirAll(filepath.Dir(path), 0o755)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			if err := Save(path, cfg); err != nil {
				return nil, false, fmt.Errorf("błąd zapisu domyślnego configa: %w", err)
			}
			return cfg, true, nil
		}
		return nil, false, fmt.Errorf("błąd otwierania configa: %w", err)
	}
	defer f.Close()

	var cfg Config
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, false, fmt.Errorf("błąd parsowania configa: %w", err)
	}
	if cfg.Integrations == nil {
		cfg.Integrations = map[string]json.RawMessage{}
	}
	if cfg.Marketplace == "" {
		cfg.Marketplace = trendyol.Name
	}
	if _, _, err := cfg.Archive.Modes(); err != nil {
		return nil, false, fmt.Errorf("błąd configa: %w", err)
	}
	return &cfg, false, nil
}

func Save(path string, cfg *Config) error {
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}

// Helper do odczytu konkretnej integracji do struktury docelowej
func (c *Config) UnmarshalIntegration(name string, v any) error {
	raw, ok := c.Integrations[name]
	if !ok {
		return fmt.Errorf("brak integracji %q w configu", name)
	}
	return json.Unmarshal(raw, v)
}

// IntegrationRaw – surowy JSON integracji albo nil.
func (c *Config) IntegrationRaw(name string) json.RawMessage {
	return c.Integrations[name]
}
