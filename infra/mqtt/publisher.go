package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/voltmesh/bessd/core/model"
	"github.com/voltmesh/bessd/infra/logger"
)

// SetpointMessage is the combined per-cycle command sent towards the
// hardware gateway: the dispatch decision plus the topology the inverter
// should be in.
type SetpointMessage struct {
	SystemID     string                 `json:"system_id"`
	Action       string                 `json:"action"`
	PowerKW      float64                `json:"power_kw"`
	Priority     string                 `json:"priority"`
	Reason       string                 `json:"reason"`
	Confidence   float64                `json:"confidence"`
	ControlMode  model.GridControlMode  `json:"control_mode"`
	BlackStart   model.BlackStartStatus `json:"black_start"`
	NextReviewAt time.Time              `json:"next_review_at"`
	Timestamp    time.Time              `json:"timestamp"`

	// IslandRuntimeSec is set while the system runs islanded: the
	// estimated seconds of autonomy left before the shutdown floor.
	IslandRuntimeSec float64 `json:"island_runtime_sec,omitempty"`
}

// Publisher ships setpoint messages to <prefix>/<system>/setpoint.
type Publisher struct {
	cli pahoClient
	cfg Config
	log logger.Logger
}

// NewPublisher connects a publishing client to the broker.
func NewPublisher(cfg Config) (*Publisher, error) {
	cfg.SetDefaults()
	cfg.ClientID += "-pub"
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	cli := newMQTTClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &Publisher{cli: cli, cfg: cfg, log: logger.New("mqtt-publisher")}, nil
}

// PublishSetpoint serialises and publishes one combined cycle result.
func (p *Publisher) PublishSetpoint(msg SetpointMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal setpoint: %w", err)
	}
	topic := fmt.Sprintf("%s/%s/setpoint", p.cfg.TopicPrefix, msg.SystemID)
	if token := p.cli.Publish(topic, p.cfg.QoS, false, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("publish %s: %w", topic, token.Error())
	}
	return nil
}

// Close disconnects the publishing client.
func (p *Publisher) Close() {
	p.cli.Disconnect(250)
}
