package model

import "time"

// SystemTelemetry is one battery measurement snapshot supplied by the
// ingestion pipeline. Sign convention for Power: positive means the battery
// is discharging into the grid, negative means it is charging.
type SystemTelemetry struct {
	SystemID    string    `json:"system_id"`
	SoC         float64   `json:"soc"`         // state of charge in percent, 0-100
	SoH         float64   `json:"soh"`         // state of health in percent, 0-100
	Temperature float64   `json:"temperature"` // pack temperature in °C
	Voltage     float64   `json:"voltage"`     // pack voltage in V
	Current     float64   `json:"current"`     // pack current in A
	PowerKW     float64   `json:"power_kw"`    // instantaneous power in kW
	SolarKW     float64   `json:"solar_kw"`    // local solar generation in kW, 0 when unmetered
	Timestamp   time.Time `json:"timestamp"`
}

// GridState is the point-of-interconnection measurement for one cycle.
type GridState struct {
	Frequency       float64       `json:"frequency"` // Hz
	Voltage         float64       `json:"voltage"`   // V
	GridConnected   bool          `json:"grid_connected"`
	TimeToNextEvent time.Duration `json:"time_to_next_event,omitempty"`
}

// LoadProfile classifies the current tariff/demand period.
type LoadProfile string

const (
	LoadOffPeak      LoadProfile = "offPeak"
	LoadIntermediate LoadProfile = "intermediate"
	LoadPeak         LoadProfile = "peak"
)

// MarketData carries the market snapshot for one cycle.
type MarketData struct {
	SpotPrice      float64     `json:"spot_price"`
	TimePrice      float64     `json:"time_price"`
	DemandForecast float64     `json:"demand_forecast"` // kW
	LoadProfile    LoadProfile `json:"load_profile"`
}
