package model

import "time"

// SystemConstraints are the hard safety and operational bounds for one
// battery system. They are loaded from configuration and treated as
// immutable for the lifetime of a decision cycle.
type SystemConstraints struct {
	MaxTemperature float64 `json:"max_temperature"`  // °C
	MinSoC         float64 `json:"min_soc"`          // percent
	MaxSoC         float64 `json:"max_soc"`          // percent
	MaxCurrent     float64 `json:"max_current"`      // A
	MinCellVoltage float64 `json:"min_cell_voltage"` // V per cell
	MaxCellVoltage float64 `json:"max_cell_voltage"` // V per cell

	MaxPowerKW   float64       `json:"max_power_kw"`
	MinPowerKW   float64       `json:"min_power_kw"`
	ResponseTime time.Duration `json:"response_time"`

	FrequencyDeadband float64 `json:"frequency_deadband"` // Hz
	VoltageDeadband   float64 `json:"voltage_deadband"`   // V
}

// SetDefaults fills zero-valued fields with the reference bounds.
func (c *SystemConstraints) SetDefaults() {
	if c.MaxTemperature == 0 {
		c.MaxTemperature = 55
	}
	if c.MinSoC == 0 {
		c.MinSoC = 10
	}
	if c.MaxSoC == 0 {
		c.MaxSoC = 95
	}
	if c.MaxCurrent == 0 {
		c.MaxCurrent = 200
	}
	if c.MinCellVoltage == 0 {
		c.MinCellVoltage = 2.5
	}
	if c.MaxCellVoltage == 0 {
		c.MaxCellVoltage = 3.65
	}
	if c.MaxPowerKW == 0 {
		c.MaxPowerKW = 100
	}
	if c.ResponseTime == 0 {
		c.ResponseTime = 100 * time.Millisecond
	}
	if c.FrequencyDeadband == 0 {
		c.FrequencyDeadband = 0.1
	}
	if c.VoltageDeadband == 0 {
		c.VoltageDeadband = 10
	}
}

// ArbitrageConfig enables price arbitrage between buy and sell thresholds.
type ArbitrageConfig struct {
	Enabled       bool    `json:"enabled"`
	BuyThreshold  float64 `json:"buy_threshold"`
	SellThreshold float64 `json:"sell_threshold"`
}

// PeakShavingConfig enables contractual peak shaving.
type PeakShavingConfig struct {
	Enabled          bool    `json:"enabled"`
	DemandLimitKW    float64 `json:"demand_limit_kw"`
	TriggerThreshold float64 `json:"trigger_threshold"` // percent of the demand limit
}

// SelfConsumptionConfig enables solar self-consumption optimisation:
// charge from solar excess toward the target SoC, optionally serve the
// site load from the battery at night.
type SelfConsumptionConfig struct {
	Enabled        bool    `json:"enabled"`
	TargetSoC      float64 `json:"target_soc"`     // default 80
	MinExcessKW    float64 `json:"min_excess_kw"`  // default 1
	NightDischarge bool    `json:"night_discharge"`
}

// FrequencyResponseConfig tunes the droop response.
type FrequencyResponseConfig struct {
	Enabled bool    `json:"enabled"`
	Droop   float64 `json:"droop"`
}

// DemandResponseConfig enables participation in demand-response programs.
type DemandResponseConfig struct {
	Enabled bool `json:"enabled"`
}

// OptimizationConfig groups the per-strategy settings. A nil sub-config
// means the strategy never fires.
type OptimizationConfig struct {
	Arbitrage         *ArbitrageConfig         `json:"arbitrage,omitempty"`
	PeakShaving       *PeakShavingConfig       `json:"peak_shaving,omitempty"`
	SelfConsumption   *SelfConsumptionConfig   `json:"self_consumption,omitempty"`
	FrequencyResponse *FrequencyResponseConfig `json:"frequency_response,omitempty"`
	DemandResponse    *DemandResponseConfig    `json:"demand_response,omitempty"`
}
