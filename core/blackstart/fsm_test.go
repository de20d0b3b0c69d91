package blackstart

import (
	"math"
	"testing"
	"time"

	"github.com/voltmesh/bessd/core/model"
	"github.com/voltmesh/bessd/infra/logger"
)

// fakeClock drives the FSM deterministically through dwell and timeout
// transitions.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestFSM(cfg Config) (*FSM, *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	f := New("sys-1", cfg, logger.NopLogger{}, nil, WithClock(clk.now))
	return f, clk
}

func healthyTelemetry(soc float64) model.SystemTelemetry {
	return model.SystemTelemetry{SystemID: "sys-1", SoC: soc, SoH: 96, Temperature: 28, Voltage: 52}
}

func TestFSM_FullBlackoutAndRestorationCycle(t *testing.T) {
	f, clk := newTestFSM(Config{})

	steps := []struct {
		gs      model.GridState
		advance time.Duration
		want    model.BlackStartState
	}{
		// Healthy grid holds grid_connected.
		{gs: model.GridState{Frequency: 60, Voltage: 380, GridConnected: true}, want: model.StateGridConnected},
		// Dead bus.
		{gs: model.GridState{Frequency: 60, Voltage: 10}, want: model.StateBlackoutDetected},
		// Frequency excursion confirms it.
		{gs: model.GridState{Frequency: 55, Voltage: 10}, want: model.StateTransferring},
		// Contactor transfer dwell.
		{gs: model.GridState{Frequency: 55, Voltage: 10}, advance: 6 * time.Second, want: model.StateIslandMode},
		// Grid voltage returns.
		{gs: model.GridState{Frequency: 59, Voltage: 300}, want: model.StateSynchronizing},
		// Within sync tolerance.
		{gs: model.GridState{Frequency: 60.2, Voltage: 375}, want: model.StateResynchronized},
		// Reconnect dwell.
		{gs: model.GridState{Frequency: 60, Voltage: 380, GridConnected: true}, advance: 3 * time.Second, want: model.StateGridConnected},
	}
	for i, s := range steps {
		clk.advance(s.advance)
		status := f.Process(s.gs, healthyTelemetry(80))
		if status.State != s.want {
			t.Fatalf("step %d: state %s, want %s", i, status.State, s.want)
		}
	}

	hist := f.History()
	if len(hist) != 6 {
		t.Fatalf("expected 6 recorded transitions, got %d", len(hist))
	}
	for i, ev := range hist {
		if ev.Reason == "" {
			t.Errorf("transition %d (%s -> %s) missing reason", i, ev.FromState, ev.ToState)
		}
	}
}

func TestFSM_AdvancesAtMostOneEdgePerReading(t *testing.T) {
	f, _ := newTestFSM(Config{})
	// Dead bus with frequency excursion satisfies two transition
	// conditions at once; only the first edge fires.
	status := f.Process(model.GridState{Frequency: 55, Voltage: 10}, healthyTelemetry(80))
	if status.State != model.StateBlackoutDetected {
		t.Fatalf("expected blackout_detected, got %s", status.State)
	}
}

func TestFSM_IllegalConditionsHoldState(t *testing.T) {
	f, _ := newTestFSM(Config{})
	f.Process(model.GridState{Frequency: 60, Voltage: 10}, healthyTelemetry(80))

	// Frequency stays near nominal: no excursion, the machine waits.
	for i := 0; i < 5; i++ {
		status := f.Process(model.GridState{Frequency: 60.5, Voltage: 10}, healthyTelemetry(80))
		if status.State != model.StateBlackoutDetected {
			t.Fatalf("state must hold without the confirming excursion, got %s", status.State)
		}
	}
}

func TestFSM_IslandModeCannotSkipSynchronization(t *testing.T) {
	f, clk := newTestFSM(Config{})
	f.Process(model.GridState{Frequency: 60, Voltage: 10}, healthyTelemetry(80))
	f.Process(model.GridState{Frequency: 55, Voltage: 10}, healthyTelemetry(80))
	clk.advance(6 * time.Second)
	f.Process(model.GridState{Frequency: 55, Voltage: 10}, healthyTelemetry(80))
	if f.State() != model.StateIslandMode {
		t.Fatalf("setup failed, state %s", f.State())
	}

	// Nominal frequency on a bus still below the recovery threshold must
	// not reach resynchronized; synchronizing is the only way out.
	status := f.Process(model.GridState{Frequency: 60, Voltage: 90}, healthyTelemetry(80))
	if status.State != model.StateIslandMode {
		t.Fatalf("island mode must hold until voltage recovers, got %s", status.State)
	}
}

func TestFSM_SynchronizationTimeoutFallsBackToIsland(t *testing.T) {
	f, clk := newTestFSM(Config{})
	f.Process(model.GridState{Frequency: 60, Voltage: 10}, healthyTelemetry(80))
	f.Process(model.GridState{Frequency: 55, Voltage: 10}, healthyTelemetry(80))
	clk.advance(6 * time.Second)
	f.Process(model.GridState{Frequency: 55, Voltage: 10}, healthyTelemetry(80))
	f.Process(model.GridState{Frequency: 58, Voltage: 300}, healthyTelemetry(80))
	if f.State() != model.StateSynchronizing {
		t.Fatalf("setup failed, state %s", f.State())
	}

	// Grid never settles inside tolerance; after the timeout the machine
	// returns to island operation.
	clk.advance(61 * time.Second)
	status := f.Process(model.GridState{Frequency: 58, Voltage: 300}, healthyTelemetry(80))
	if status.State != model.StateIslandMode {
		t.Fatalf("expected island_mode after sync timeout, got %s", status.State)
	}
}

func TestFSM_IslandDurationAndLoadShedding(t *testing.T) {
	f, clk := newTestFSM(Config{})
	f.Process(model.GridState{Frequency: 60, Voltage: 10}, healthyTelemetry(80))
	f.Process(model.GridState{Frequency: 55, Voltage: 10}, healthyTelemetry(80))
	clk.advance(6 * time.Second)
	f.Process(model.GridState{Frequency: 55, Voltage: 10}, healthyTelemetry(80))

	clk.advance(10 * time.Minute)
	dead := model.GridState{Frequency: 55, Voltage: 10}

	// Healthy SoC: no shedding.
	status := f.Process(dead, healthyTelemetry(80))
	if status.LoadShed {
		t.Fatal("healthy SoC must not shed load")
	}
	if status.IslandDuration < 10*time.Minute {
		t.Fatalf("island duration %s, want >= 10m", status.IslandDuration)
	}

	// Depleted but charging: no shedding.
	tel := healthyTelemetry(30)
	tel.PowerKW = -10
	if status := f.Process(dead, tel); status.LoadShed {
		t.Fatal("charging battery must not shed load")
	}

	// Depleted and discharging: shed.
	tel.PowerKW = 15
	if status := f.Process(dead, tel); !status.LoadShed {
		t.Fatal("depleted discharging battery must shed load")
	}
}

func TestFSM_ResetIsIdempotentAndLoggedAsManual(t *testing.T) {
	f, _ := newTestFSM(Config{})
	f.Process(model.GridState{Frequency: 60, Voltage: 10}, healthyTelemetry(80))
	if f.State() != model.StateBlackoutDetected {
		t.Fatalf("setup failed, state %s", f.State())
	}

	f.Reset()
	if f.State() != model.StateGridConnected {
		t.Fatalf("reset must return to grid_connected, got %s", f.State())
	}
	hist := f.History()
	last := hist[len(hist)-1]
	if last.Reason != manualResetReason {
		t.Fatalf("manual reset must carry its own reason, got %q", last.Reason)
	}

	// A second reset records nothing new.
	before := len(f.History())
	f.Reset()
	if got := len(f.History()); got != before {
		t.Fatalf("idempotent reset must not append history, got %d events (was %d)", got, before)
	}
}

func TestFSM_HistoryBounded(t *testing.T) {
	f, _ := newTestFSM(Config{HistoryLimit: 3})
	for i := 0; i < 5; i++ {
		f.Process(model.GridState{Frequency: 60, Voltage: 10}, healthyTelemetry(80))
		f.Reset()
	}
	hist := f.History()
	if len(hist) != 3 {
		t.Fatalf("history must be bounded to 3 entries, got %d", len(hist))
	}
	// Oldest entries are evicted: the tail must end with the manual reset.
	if hist[len(hist)-1].ToState != model.StateGridConnected {
		t.Fatalf("unexpected newest entry %+v", hist[len(hist)-1])
	}
}

func TestEstimateIslandModeDuration(t *testing.T) {
	// 200kWh pack at 70% SoC has 100kWh above the 20% floor; a 25kW
	// average load runs 4 hours.
	d := EstimateIslandModeDuration(200, healthyTelemetry(70), 25)
	if d != 4*time.Hour {
		t.Fatalf("expected 4h, got %s", d)
	}

	if d := EstimateIslandModeDuration(200, healthyTelemetry(15), 25); d != 0 {
		t.Fatalf("below the shutdown floor must clamp to 0, got %s", d)
	}
	if d := EstimateIslandModeDuration(200, healthyTelemetry(70), 0); d != 0 {
		t.Fatalf("zero load must yield 0, got %s", d)
	}
}

func TestGetBlackStartCapability(t *testing.T) {
	f, _ := newTestFSM(Config{})
	nominal := model.GridState{Frequency: 60, Voltage: 380}

	got := f.GetBlackStartCapability(healthyTelemetry(80), nominal)
	if !got.Capable || got.Confidence != 1.0 {
		t.Fatalf("healthy system must be capable at full confidence, got %+v", got)
	}

	got = f.GetBlackStartCapability(healthyTelemetry(35), nominal)
	if got.Capable {
		t.Fatalf("SoC below 50%% must not be capable, got %+v", got)
	}
	if math.Abs(got.Confidence-0.85) > 1e-9 {
		t.Fatalf("15%% SoC deficit must degrade confidence to 0.85, got %.2f", got.Confidence)
	}

	hot := healthyTelemetry(80)
	hot.Temperature = 50
	if got := f.GetBlackStartCapability(hot, nominal); got.Capable {
		t.Fatalf("overtemperature must not be capable, got %+v", got)
	}

	// Large grid voltage deviation pushes confidence below the gate even
	// with hard requirements met.
	sagging := model.GridState{Frequency: 60, Voltage: 200}
	if got := f.GetBlackStartCapability(healthyTelemetry(80), sagging); got.Capable {
		t.Fatalf("low confidence must not be capable, got %+v", got)
	}
}

func TestEstimateRestorationTime(t *testing.T) {
	f, _ := newTestFSM(Config{})

	// Mild deviations stay at the 30s base.
	est := f.EstimateRestorationTime(model.GridState{Frequency: 58, Voltage: 360}, healthyTelemetry(80))
	if est.Duration != 30*time.Second {
		t.Fatalf("expected 30s base, got %s", est.Duration)
	}

	// 8Hz deviation: 3Hz beyond the floor at 1.2 min/Hz adds 3.6 minutes.
	est = f.EstimateRestorationTime(model.GridState{Frequency: 52, Voltage: 380}, healthyTelemetry(80))
	want := 30*time.Second + time.Duration(3.6*float64(time.Minute))
	if est.Duration != want {
		t.Fatalf("expected %s, got %s", want, est.Duration)
	}

	// Voltage penalty is capped at 2 minutes.
	est = f.EstimateRestorationTime(model.GridState{Frequency: 60, Voltage: 0}, healthyTelemetry(80))
	if est.Duration != 30*time.Second+2*time.Minute {
		t.Fatalf("voltage penalty must cap at 2m, got %s", est.Duration)
	}

	// Low SoC multiplies the estimate.
	est = f.EstimateRestorationTime(model.GridState{Frequency: 58, Voltage: 360}, healthyTelemetry(25))
	if est.Duration != 45*time.Second {
		t.Fatalf("low SoC must multiply by 1.5, got %s", est.Duration)
	}

	full := f.EstimateRestorationTime(model.GridState{Frequency: 60, Voltage: 380}, healthyTelemetry(80))
	if full.Confidence != 1.0 {
		t.Fatalf("no deviation must give full confidence, got %.2f", full.Confidence)
	}
}
