package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/voltmesh/bessd/core/model"
)

func TestPublishSetpoint(t *testing.T) {
	mc := &mockClient{}
	defer newMockClientHook(mc)()

	pub, err := NewPublisher(Config{Broker: "tcp://localhost:1883", QoS: 1})
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	defer pub.Close()

	msg := SetpointMessage{
		SystemID:    "bess-01",
		Action:      "DISCHARGE",
		PowerKW:     50,
		Priority:    "ECONOMIC",
		Confidence:  0.8,
		ControlMode: model.ModeGridFollowing,
		Timestamp:   time.Now(),
	}
	if err := pub.PublishSetpoint(msg); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(mc.published) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(mc.published))
	}
	got := mc.published[0]
	if got.topic != "bess/bess-01/setpoint" {
		t.Fatalf("unexpected topic %q", got.topic)
	}
	if got.qos != 1 {
		t.Fatalf("expected QoS 1, got %d", got.qos)
	}
	var decoded SetpointMessage
	if err := json.Unmarshal(got.payload, &decoded); err != nil {
		t.Fatalf("payload not valid JSON: %v", err)
	}
	if decoded.Action != "DISCHARGE" || decoded.PowerKW != 50 {
		t.Fatalf("payload mangled: %+v", decoded)
	}
}

func TestPublishSetpointBrokerError(t *testing.T) {
	mc := &mockClient{publishErr: errors.New("broker down")}
	defer newMockClientHook(mc)()

	pub, err := NewPublisher(Config{Broker: "tcp://localhost:1883"})
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	if err := pub.PublishSetpoint(SetpointMessage{SystemID: "bess-01"}); err == nil {
		t.Fatal("expected publish error")
	}
}
