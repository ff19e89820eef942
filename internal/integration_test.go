package internal

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/sweeney/bread-timer/internal/alarm"
	"github.com/sweeney/bread-timer/internal/clock"
	"github.com/sweeney/bread-timer/internal/metrics"
	"github.com/sweeney/bread-timer/internal/mqtt"
	"github.com/sweeney/bread-timer/internal/notify"
	"github.com/sweeney/bread-timer/internal/recipe"
	"github.com/sweeney/bread-timer/internal/status"
	"github.com/sweeney/bread-timer/internal/store"
	"github.com/sweeney/bread-timer/internal/timer"
	"github.com/sweeney/bread-timer/internal/tone"
	"github.com/sweeney/bread-timer/internal/walkthrough"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// stepFold is the first folding step, 20 minutes.
const stepFold = 5

// boot is one process lifetime over a shared data directory.
type boot struct {
	kv     store.KV
	clk    *clock.Fake
	dev    *tone.FakeDevice
	beeper *tone.FakeBeeper
	alarm  *alarm.Scheduler
	pub    *mqtt.FakePublisher
	sink   *notify.FakeSink
	ctrl   *walkthrough.Controller
}

func startBoot(t *testing.T, kv store.KV, now time.Time) *boot {
	t.Helper()
	b := &boot{
		kv:     kv,
		clk:    clock.NewFake(now),
		dev:    &tone.FakeDevice{},
		beeper: &tone.FakeBeeper{},
		pub:    mqtt.NewFakePublisher(),
		sink:   &notify.FakeSink{},
	}
	rec := recipe.Default()
	osc := tone.NewOscillator(b.clk, b.dev.Open)
	b.alarm = alarm.New(osc, b.beeper, b.clk)
	b.ctrl = walkthrough.New(walkthrough.Options{
		Recipe:    rec,
		Bridge:    store.NewBridge(kv, rec.DefaultWeight),
		Alarm:     b.alarm,
		Notifier:  b.sink,
		Publisher: b.pub,
		Metrics:   metrics.New(),
		Clock:     b.clk,
	})
	b.ctrl.Restore()
	return b
}

func countType(events []timer.EventType, want timer.EventType) int {
	n := 0
	for _, e := range events {
		if e == want {
			n++
		}
	}
	return n
}

func TestIntegrationFullFlow(t *testing.T) {
	b := startBoot(t, store.NewFileKV(t.TempDir()), t0)

	if err := b.ctrl.SetWeight(930); err != nil {
		t.Fatalf("SetWeight: %v", err)
	}
	if err := b.ctrl.GoTo(stepFold); err != nil {
		t.Fatalf("GoTo: %v", err)
	}
	if err := b.ctrl.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// The signal goes audible on its own timer at the end instant, before
	// any tick notices the expiry.
	b.clk.Advance(1200 * time.Second)
	level, ok := b.dev.Current().Last()
	if !ok || !level.Audible() {
		t.Fatalf("expected audible output at end instant, got %+v (ok=%v)", level, ok)
	}

	b.ctrl.Tick()
	b.ctrl.Tick()

	if n := countType(b.pub.EventTypes(), timer.EventExpired); n != 1 {
		t.Errorf("expected 1 EXPIRED event, got %d", n)
	}
	if b.sink.Count() != 1 {
		t.Fatalf("expected 1 alert, got %d", b.sink.Count())
	}
	if b.sink.Alerts[0].WhileAway {
		t.Error("expected a live alert, not while away")
	}
	if b.alarm.Mode() != alarm.ModeContinuous {
		t.Errorf("expected continuous ring, got %s", b.alarm.Mode())
	}

	if err := b.ctrl.Acknowledge(); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if b.alarm.Ringing() {
		t.Error("alarm should be silenced after acknowledge")
	}

	want := []timer.EventType{timer.EventStarted, timer.EventExpired, timer.EventAcknowledged}
	got := b.pub.EventTypes()
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	st := b.ctrl.State()
	if st.Step != stepFold || st.Weight != 930 || st.TimerEndTimestamp != nil {
		t.Errorf("unexpected persisted state: %+v", st)
	}
}

func TestIntegrationRestartResumesCountdown(t *testing.T) {
	kv := store.NewFileKV(t.TempDir())
	first := startBoot(t, kv, t0)
	if err := first.ctrl.GoTo(stepFold); err != nil {
		t.Fatalf("GoTo: %v", err)
	}
	if err := first.ctrl.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	first.alarm.Silence()

	// Power comes back five minutes later.
	second := startBoot(t, kv, t0.Add(5*time.Minute))

	v := second.ctrl.View()
	if v.StepIndex != stepFold {
		t.Errorf("expected step %d, got %d", stepFold, v.StepIndex)
	}
	if v.Timer.State != timer.StateRunning {
		t.Fatalf("expected RUNNING after restart, got %s", v.Timer.State)
	}
	if v.Timer.RemainingSeconds != 900 {
		t.Errorf("expected 900 s remaining, got %d", v.Timer.RemainingSeconds)
	}
	if !second.alarm.Armed() {
		t.Error("expected alarm re-armed after restart")
	}
	if types := second.pub.EventTypes(); len(types) != 1 || types[0] != timer.EventRestored {
		t.Errorf("expected a single RESTORED event, got %v", types)
	}
	if second.sink.Count() != 0 {
		t.Errorf("expected no alert on resume, got %d", second.sink.Count())
	}
}

func TestIntegrationRestartAfterExpiry(t *testing.T) {
	kv := store.NewFileKV(t.TempDir())
	first := startBoot(t, kv, t0)
	if err := first.ctrl.GoTo(stepFold); err != nil {
		t.Fatalf("GoTo: %v", err)
	}
	if err := first.ctrl.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	first.alarm.Silence()

	second := startBoot(t, kv, t0.Add(time.Hour))

	if second.sink.Count() != 1 || !second.sink.Alerts[0].WhileAway {
		t.Fatalf("expected one while-away alert, got %+v", second.sink.Alerts)
	}
	if second.alarm.Mode() != alarm.ModeFallback {
		t.Errorf("expected fallback ring with no running signal, got %s", second.alarm.Mode())
	}
	if second.beeper.Count() == 0 {
		t.Error("expected at least one fallback beep")
	}
	if len(second.pub.Events) != 1 || !second.pub.Events[0].WhileAway {
		t.Errorf("expected one while-away EXPIRED event, got %+v", second.pub.Events)
	}

	// The expired end is cleared, so a third boot does not ring again.
	second.alarm.Silence()
	third := startBoot(t, kv, t0.Add(2*time.Hour))
	if third.sink.Count() != 0 {
		t.Errorf("expected no alert on third boot, got %d", third.sink.Count())
	}
	if third.ctrl.View().Timer.State != timer.StateIdle {
		t.Errorf("expected IDLE on third boot, got %s", third.ctrl.View().Timer.State)
	}
}

func TestIntegrationSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	kv, err := store.OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	b := startBoot(t, kv, t0)
	if err := b.ctrl.Navigate(1); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if err := b.ctrl.SetWeight(2500); err != nil {
		t.Fatalf("SetWeight: %v", err)
	}
	kv.Close()

	kv, err = store.OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer kv.Close()
	v := startBoot(t, kv, t0).ctrl.View()
	if v.StepIndex != 1 || v.Weight != 2500 {
		t.Errorf("expected step 1 at 2500 g, got step %d at %.0f g", v.StepIndex, v.Weight)
	}
}

func TestIntegrationTimerPayloadFormat(t *testing.T) {
	b := startBoot(t, store.NewMemKV(), t0)
	if err := b.ctrl.GoTo(stepFold); err != nil {
		t.Fatalf("GoTo: %v", err)
	}
	if err := b.ctrl.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	b.clk.Advance(200 * time.Second)
	if err := b.ctrl.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}

	if len(b.pub.Payloads) != 2 {
		t.Fatalf("expected 2 payloads, got %d", len(b.pub.Payloads))
	}

	var parsed map[string]map[string]interface{}
	if err := json.Unmarshal(b.pub.Payloads[1], &parsed); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	inner, ok := parsed["timer"]
	if !ok {
		t.Fatal("payload missing timer key")
	}
	if inner["event"] != "TIMER_PAUSED" {
		t.Errorf("expected event TIMER_PAUSED, got %v", inner["event"])
	}
	if inner["state"] != "PAUSED" {
		t.Errorf("expected state PAUSED, got %v", inner["state"])
	}
	if inner["remaining_seconds"] != float64(1000) {
		t.Errorf("expected remaining_seconds 1000, got %v", inner["remaining_seconds"])
	}
	if inner["timestamp"] != "2026-01-01T12:03:20Z" {
		t.Errorf("unexpected timestamp %v", inner["timestamp"])
	}
	if inner["run"] == "" || inner["run"] == nil {
		t.Error("expected a run id")
	}
	if _, ok := inner["while_away"]; ok {
		t.Error("while_away should be omitted for live events")
	}
}

func TestIntegrationStatusEventPayload(t *testing.T) {
	b := startBoot(t, store.NewMemKV(), t0)
	if err := b.ctrl.GoTo(stepFold); err != nil {
		t.Fatalf("GoTo: %v", err)
	}
	if err := b.ctrl.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	b.clk.Advance(5 * time.Minute)

	tracker := status.NewTracker(t0, status.Config{TickMs: 1000, Broker: "tcp://192.168.1.200:1883", Store: "file"})
	tracker.SetClock(b.clk.Now)
	tracker.Update(b.ctrl.View().Status())
	snap := tracker.Snapshot()

	err := b.pub.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      mqtt.EventHeartbeat,
		RawPayload: status.FormatStatusEvent(snap, mqtt.EventHeartbeat, ""),
	})
	if err != nil {
		t.Fatalf("PublishSystem: %v", err)
	}

	var parsed status.StatusJSON
	if err := json.Unmarshal(b.pub.SystemPayloads[0], &parsed); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	s := parsed.Status
	if s.Event != "HEARTBEAT" {
		t.Errorf("expected event HEARTBEAT, got %q", s.Event)
	}
	if s.UptimeSeconds != 300 {
		t.Errorf("expected uptime 300, got %d", s.UptimeSeconds)
	}
	if s.Walkthrough.Step != stepFold || s.Walkthrough.Timer != "RUNNING" {
		t.Errorf("unexpected walkthrough %+v", s.Walkthrough)
	}
	if s.Walkthrough.RemainingSeconds != 900 || s.Walkthrough.Display != "15:00" {
		t.Errorf("expected 900 s shown as 15:00, got %d / %q", s.Walkthrough.RemainingSeconds, s.Walkthrough.Display)
	}
	if s.Counts.Started != 1 {
		t.Errorf("expected 1 start counted, got %d", s.Counts.Started)
	}
}
