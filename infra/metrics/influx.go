package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/voltmesh/bessd/core/metrics"
	"github.com/voltmesh/bessd/infra/logger"
)

// InfluxSink persists decision and grid audit events to an InfluxDB
// instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg coremetrics.Config) *InfluxSink {
	base := strings.TrimSuffix(cfg.InfluxURL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.InfluxToken,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and returns
// a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg coremetrics.Config) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordDecision writes decision cycles as line protocol points.
func (s *InfluxSink) RecordDecision(recs []coremetrics.DecisionRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, r := range recs {
		p := write.NewPointWithMeasurement("decision").
			AddTag("system_id", r.SystemID).
			AddTag("action", r.Result.Action.String()).
			AddTag("priority", r.Result.Priority.String()).
			AddField("power_kw", round3(r.Result.PowerKW)).
			AddField("confidence", round3(r.Result.Confidence)).
			AddField("duration_minutes", r.Result.DurationMinutes).
			AddField("reason", r.Result.Reason).
			AddField("cycle_seconds", r.CycleTime.Seconds()).
			SetTime(r.Result.Timestamp)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			s.log.Errorf("influx write decision: %v", err)
			return err
		}
	}
	return nil
}

// RecordModeChange writes one control-mode switch point.
func (s *InfluxSink) RecordModeChange(rec coremetrics.ModeChangeRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("control_mode").
		AddTag("system_id", rec.SystemID).
		AddTag("from", string(rec.From)).
		AddTag("to", string(rec.To)).
		AddField("changed", 1).
		SetTime(rec.Time)
	if err := s.writeAPI.WritePoint(ctx, p); err != nil {
		s.log.Errorf("influx write mode change: %v", err)
		return err
	}
	return nil
}

// RecordTransition writes one black-start transition for the audit trail.
func (s *InfluxSink) RecordTransition(rec coremetrics.TransitionRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ev := rec.Event
	p := write.NewPointWithMeasurement("blackstart_transition").
		AddTag("system_id", ev.SystemID).
		AddTag("from", string(ev.FromState)).
		AddTag("to", string(ev.ToState)).
		AddField("reason", ev.Reason).
		SetTime(ev.Timestamp)
	if err := s.writeAPI.WritePoint(ctx, p); err != nil {
		s.log.Errorf("influx write transition: %v", err)
		return err
	}
	return nil
}

// RecordDispatch writes VPP allocation points.
func (s *InfluxSink) RecordDispatch(recs []coremetrics.DispatchRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, r := range recs {
		p := write.NewPointWithMeasurement("vpp_dispatch").
			AddTag("system_id", r.SystemID).
			AddField("power_kw", round3(r.PowerKW)).
			SetTime(r.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			s.log.Errorf("influx write dispatch: %v", err)
			return err
		}
	}
	return nil
}

// Close shuts down the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
