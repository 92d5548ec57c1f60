package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del pipeline de atribución.
type Config struct {
	API         APIConfig         `yaml:"api"`
	Cache       CacheConfig       `yaml:"cache"`
	Attribution AttributionConfig `yaml:"attribution"`
	Decisions   DecisionsConfig   `yaml:"decisions"`
	Log         LogConfig         `yaml:"log"`
}

// APIConfig contiene los base URLs de las APIs de precios.
type APIConfig struct {
	CLOBBase  string `yaml:"clob_base"`
	GammaBase string `yaml:"gamma_base"`
}

// CacheConfig controla la caché de series de precios.
type CacheConfig struct {
	Backend               string `yaml:"backend"` // fs | sqlite | memory
	Dir                   string `yaml:"dir"`     // backend fs
	DSN                   string `yaml:"dsn"`     // backend sqlite
	ClosureThresholdHours int    `yaml:"closure_threshold_hours"`
	HistoryDays           int    `yaml:"history_days"`
}

// AttributionConfig controla el cálculo de rendimiento.
type AttributionConfig struct {
	Normalize          string `yaml:"normalize"`  // none | legacy | kelly
	BrierMode          string `yaml:"brier_mode"` // squared | absolute
	CustomHorizonsDays []int  `yaml:"custom_horizons_days"`
	// NetOfBaseline arranca la serie acumulada en 0 en lugar de 1.
	NetOfBaseline bool `yaml:"net_of_baseline"`
}

// DecisionsConfig apunta al log de decisiones del orquestador de agentes.
type DecisionsConfig struct {
	Path string `yaml:"path"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// ClosureThreshold devuelve el umbral de cierre como time.Duration.
func (c *Config) ClosureThreshold() time.Duration {
	return time.Duration(c.Cache.ClosureThresholdHours) * time.Hour
}

// CumulativeBaseline devuelve el valor inicial de la serie acumulada.
func (c *Config) CumulativeBaseline() float64 {
	if c.Attribution.NetOfBaseline {
		return 0
	}
	return 1.0
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("DECISIONS_PATH"); v != "" {
		cfg.Decisions.Path = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.API.CLOBBase == "" {
		cfg.API.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.API.GammaBase == "" {
		cfg.API.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "fs"
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = "cache"
	}
	if cfg.Cache.DSN == "" {
		cfg.Cache.DSN = "polyperf.db"
	}
	if cfg.Cache.ClosureThresholdHours <= 0 {
		cfg.Cache.ClosureThresholdHours = 18
	}
	if cfg.Cache.HistoryDays <= 0 {
		cfg.Cache.HistoryDays = 365
	}
	if cfg.Attribution.Normalize == "" {
		cfg.Attribution.Normalize = "legacy"
	}
	if cfg.Attribution.BrierMode == "" {
		cfg.Attribution.BrierMode = "squared"
	}
	if cfg.Decisions.Path == "" {
		cfg.Decisions.Path = "decisions.json"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
