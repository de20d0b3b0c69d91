package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/voltmesh/bessd/core/blackstart"
	"github.com/voltmesh/bessd/core/metrics"
	"github.com/voltmesh/bessd/core/model"
	"github.com/voltmesh/bessd/infra/mqtt"
)

// SystemConfig identifies one battery system managed by this deployment.
type SystemConfig struct {
	ID          string  `json:"id"`
	CapacityKWh float64 `json:"capacity_kwh"`
	NumCells    int     `json:"num_cells"`
	AvgLoadKW   float64 `json:"avg_load_kw"` // average site load for island estimates
}

// VPPConfig tunes the virtual-power-plant aggregation.
type VPPConfig struct {
	ParticipantCapacityKW float64 `json:"participant_capacity_kw"`
}

// Config is the root configuration of the controller daemon.
type Config struct {
	Systems      []SystemConfig           `json:"systems"`
	Constraints  model.SystemConstraints  `json:"constraints"`
	Optimization model.OptimizationConfig `json:"optimization"`
	BlackStart   blackstart.Config        `json:"black_start"`
	VPP          VPPConfig                `json:"vpp"`
	MQTT         mqtt.Config              `json:"mqtt"`
	Metrics      metrics.Config           `json:"metrics"`
	CycleTime    time.Duration            `json:"cycle_time"`
}

// Load reads the configuration file (yaml or json) and applies B_-prefixed
// environment overrides.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("B_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "b_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills zero values across all sub-configs.
func (c *Config) SetDefaults() {
	c.Constraints.SetDefaults()
	c.BlackStart.SetDefaults()
	c.Metrics.SetDefaults()
	c.MQTT.SetDefaults()
	if c.VPP.ParticipantCapacityKW == 0 {
		c.VPP.ParticipantCapacityKW = 500
	}
	if c.CycleTime == 0 {
		c.CycleTime = 5 * time.Minute
	}
	for i := range c.Systems {
		if c.Systems[i].NumCells == 0 {
			c.Systems[i].NumCells = 16
		}
	}
}

// Validate checks mandatory fields.
func (c *Config) Validate() error {
	if len(c.Systems) == 0 {
		return fmt.Errorf("at least one system is required")
	}
	seen := make(map[string]struct{}, len(c.Systems))
	for _, s := range c.Systems {
		if s.ID == "" {
			return fmt.Errorf("system id is required")
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("duplicate system id %s", s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	if c.Constraints.MinSoC >= c.Constraints.MaxSoC {
		return fmt.Errorf("min_soc must be below max_soc")
	}
	if c.Constraints.MinCellVoltage >= c.Constraints.MaxCellVoltage {
		return fmt.Errorf("min_cell_voltage must be below max_cell_voltage")
	}
	return nil
}
