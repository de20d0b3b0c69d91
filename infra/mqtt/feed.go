package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/voltmesh/bessd/core/gridmode"
	"github.com/voltmesh/bessd/core/model"
	"github.com/voltmesh/bessd/infra/logger"
)

// Snapshot groups the per-system inputs of one decision cycle. A snapshot
// is only delivered once all three parts have been seen at least once; a
// fresh telemetry message triggers delivery.
type Snapshot struct {
	SystemID  string
	Telemetry model.SystemTelemetry
	Grid      model.GridState
	Market    model.MarketData
}

// Feed subscribes to the telemetry, grid and market topics and assembles
// decision snapshots. Topic layout: <prefix>/<system>/telemetry, .../grid,
// .../market. Fleet-wide demand response requests arrive on
// <prefix>/dr/request and are forwarded on a separate channel.
type Feed struct {
	cli    pahoClient
	cfg    Config
	log    logger.Logger
	out    chan Snapshot
	dr     chan gridmode.DemandResponseRequest
	mu     sync.Mutex
	closed bool
	grids  map[string]model.GridState
	market map[string]model.MarketData
}

// NewFeed connects to the broker and subscribes to the snapshot topics.
func NewFeed(cfg Config) (*Feed, error) {
	cfg.SetDefaults()
	f := &Feed{
		cfg:    cfg,
		log:    logger.New("mqtt-feed"),
		out:    make(chan Snapshot, 8),
		dr:     make(chan gridmode.DemandResponseRequest, 8),
		grids:  make(map[string]model.GridState),
		market: make(map[string]model.MarketData),
	}

	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	opts.OnConnect = func(c paho.Client) {
		f.log.Infof("MQTT connected, subscribing to %s/+/#", cfg.TopicPrefix)
		for _, suffix := range []string{"telemetry", "grid", "market"} {
			topic := fmt.Sprintf("%s/+/%s", cfg.TopicPrefix, suffix)
			if token := c.Subscribe(topic, cfg.QoS, f.onMessage); token.Wait() && token.Error() != nil {
				f.log.Errorf("subscribe %s: %v", topic, token.Error())
			}
		}
		drTopic := fmt.Sprintf("%s/dr/request", cfg.TopicPrefix)
		if token := c.Subscribe(drTopic, cfg.QoS, f.onDemandResponse); token.Wait() && token.Error() != nil {
			f.log.Errorf("subscribe %s: %v", drTopic, token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		f.log.Errorf("connection lost: %v", err)
	}

	cli := newMQTTClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	f.cli = cli
	return f, nil
}

// Snapshots returns the channel of assembled snapshots.
func (f *Feed) Snapshots() <-chan Snapshot { return f.out }

// DemandResponses returns the channel of incoming DR requests.
func (f *Feed) DemandResponses() <-chan gridmode.DemandResponseRequest { return f.dr }

// Close disconnects from the broker and closes the output channels. The
// closed flag keeps a handler still draining the client's queue from
// sending on a closed channel.
func (f *Feed) Close() {
	f.cli.Disconnect(250)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	close(f.out)
	close(f.dr)
}

func (f *Feed) onMessage(_ paho.Client, msg paho.Message) {
	parts := strings.Split(msg.Topic(), "/")
	if len(parts) < 3 {
		return
	}
	systemID, kind := parts[len(parts)-2], parts[len(parts)-1]

	switch kind {
	case "grid":
		var gs model.GridState
		if err := json.Unmarshal(msg.Payload(), &gs); err != nil {
			f.log.Warnf("bad grid payload on %s: %v", msg.Topic(), err)
			return
		}
		f.mu.Lock()
		f.grids[systemID] = gs
		f.mu.Unlock()
	case "market":
		var md model.MarketData
		if err := json.Unmarshal(msg.Payload(), &md); err != nil {
			f.log.Warnf("bad market payload on %s: %v", msg.Topic(), err)
			return
		}
		f.mu.Lock()
		f.market[systemID] = md
		f.mu.Unlock()
	case "telemetry":
		var t model.SystemTelemetry
		if err := json.Unmarshal(msg.Payload(), &t); err != nil {
			f.log.Warnf("bad telemetry payload on %s: %v", msg.Topic(), err)
			return
		}
		if t.SystemID == "" {
			t.SystemID = systemID
		}
		f.mu.Lock()
		gs, haveGrid := f.grids[systemID]
		md, haveMarket := f.market[systemID]
		if !haveGrid || !haveMarket {
			f.mu.Unlock()
			f.log.Debugf("snapshot for %s incomplete, waiting for grid/market", systemID)
			return
		}
		if f.closed {
			f.mu.Unlock()
			return
		}
		select {
		case f.out <- Snapshot{SystemID: systemID, Telemetry: t, Grid: gs, Market: md}:
		default:
			f.log.Warnf("snapshot channel full, dropping cycle for %s", systemID)
		}
		f.mu.Unlock()
	}
}

func (f *Feed) onDemandResponse(_ paho.Client, msg paho.Message) {
	var req gridmode.DemandResponseRequest
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		f.log.Warnf("bad demand response payload on %s: %v", msg.Topic(), err)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.dr <- req:
	default:
		f.log.Warnf("demand response channel full, dropping request")
	}
}
