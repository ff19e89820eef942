package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/sweeney/bread-timer/internal/alarm"
	"github.com/sweeney/bread-timer/internal/clock"
	"github.com/sweeney/bread-timer/internal/config"
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

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env. If pi-helper changes its var names, this test fails
// and we update the constants, not the other way around.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}
	want := status.NetworkInfo{
		Type:       "wifi",
		IP:         "192.168.1.100",
		Status:     "connected",
		Gateway:    "192.168.1.1",
		WifiStatus: "connected",
		SSID:       "MyNetwork",
	}
	if *info != want {
		t.Errorf("got %+v, want %+v", *info, want)
	}
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")
	if info := readNetworkInfo(); info != nil {
		t.Errorf("expected nil when NETWORK_STATUS is unset, got %+v", info)
	}
}

func TestReadNetworkInfoPartial(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo when NETWORK_STATUS is set")
	}
	if info.Status != "connected" {
		t.Errorf("Status: got %q, want %q", info.Status, "connected")
	}
	if info.IP != "" || info.SSID != "" {
		t.Errorf("expected empty IP/SSID, got %q/%q", info.IP, info.SSID)
	}
}

// --- flags ---

func parseFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addServeFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse %v: %v", args, err)
	}
	return fs
}

func TestApplyFlagsOnlyChanged(t *testing.T) {
	cfg := config.Default()
	cfg.Broker = "tcp://from-file:1883"

	if err := applyFlags(parseFlags(t), &cfg); err != nil {
		t.Fatalf("applyFlags: %v", err)
	}
	if cfg.Broker != "tcp://from-file:1883" {
		t.Errorf("unset flag overrode file value: got %q", cfg.Broker)
	}
}

func TestApplyFlagsOverrides(t *testing.T) {
	cfg := config.Default()
	fs := parseFlags(t,
		"--http=:8080",
		"--broker=",
		"--store=sqlite",
		"--tick=250ms",
		"--buzzer-pin=12",
		"--notify=ntfy://ntfy.sh/bread",
		"--notify=gotify://host/token",
		"--log-level=debug",
	)
	if err := applyFlags(fs, &cfg); err != nil {
		t.Fatalf("applyFlags: %v", err)
	}

	if cfg.HTTP != ":8080" {
		t.Errorf("HTTP: got %q", cfg.HTTP)
	}
	if cfg.Broker != "" {
		t.Errorf("Broker: got %q, want empty", cfg.Broker)
	}
	if cfg.Store != config.StoreSQLite {
		t.Errorf("Store: got %q", cfg.Store)
	}
	if cfg.Tick != 250*time.Millisecond {
		t.Errorf("Tick: got %v", cfg.Tick)
	}
	if cfg.Buzzer.Pin != 12 {
		t.Errorf("Buzzer.Pin: got %d", cfg.Buzzer.Pin)
	}
	if len(cfg.Notify.URLs) != 2 {
		t.Errorf("Notify.URLs: got %v", cfg.Notify.URLs)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level: got %q", cfg.Log.Level)
	}
}

// --- runLoop tests ---

type countingLive struct {
	mu sync.Mutex
	n  int
}

func (c *countingLive) Broadcast() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *countingLive) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

type loopRig struct {
	clk     *clock.Fake
	ctrl    *walkthrough.Controller
	pub     *mqtt.FakePublisher
	sink    *notify.FakeSink
	tracker *status.Tracker
	live    *countingLive
}

func newLoopRig(t *testing.T) *loopRig {
	t.Helper()
	r := &loopRig{
		clk:  clock.NewFake(t0),
		pub:  mqtt.NewFakePublisher(),
		sink: &notify.FakeSink{},
		live: &countingLive{},
	}
	rec := recipe.Default()
	osc := tone.NewOscillator(r.clk, (&tone.FakeDevice{}).Open)
	r.ctrl = walkthrough.New(walkthrough.Options{
		Recipe:    rec,
		Bridge:    store.NewBridge(store.NewMemKV(), rec.DefaultWeight),
		Alarm:     alarm.New(osc, &tone.FakeBeeper{}, r.clk),
		Notifier:  r.sink,
		Publisher: r.pub,
		Clock:     r.clk,
	})
	r.ctrl.Restore()
	r.tracker = status.NewTracker(t0, status.Config{TickMs: 1000, Broker: "tcp://localhost:1883"})
	r.tracker.SetClock(r.clk.Now)
	return r
}

// drive runs runLoop, feeds it ticks and heartbeats in order, then the
// signal, and returns runLoop's error.
func (r *loopRig) drive(t *testing.T, steps []string, signal os.Signal) error {
	t.Helper()
	tick := make(chan time.Time)
	heartbeat := make(chan struct{})
	sig := make(chan os.Signal, 1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(loop{
			ctrl:       r.ctrl,
			live:       r.live,
			publisher:  r.pub,
			mqttStatus: r.pub,
			tracker:    r.tracker,
		}, tick, heartbeat, sig)
	}()

	for _, s := range steps {
		switch s {
		case "tick":
			tick <- time.Time{}
		case "heartbeat":
			heartbeat <- struct{}{}
		default:
			t.Fatalf("unknown step %q", s)
		}
	}
	sig <- signal

	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("runLoop did not return")
		return nil
	}
}

func decodeStatus(t *testing.T, payload []byte) status.StatusInner {
	t.Helper()
	var sj status.StatusJSON
	if err := json.Unmarshal(payload, &sj); err != nil {
		t.Fatalf("invalid status payload: %v", err)
	}
	return sj.Status
}

func TestRunLoopTickExpiresTimer(t *testing.T) {
	r := newLoopRig(t)
	if err := r.ctrl.GoTo(5); err != nil {
		t.Fatalf("GoTo: %v", err)
	}
	if err := r.ctrl.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	r.clk.Advance(1200 * time.Second)

	if err := r.drive(t, []string{"tick", "tick"}, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	types := r.pub.EventTypes()
	var expired int
	for _, et := range types {
		if et == timer.EventExpired {
			expired++
		}
	}
	if expired != 1 {
		t.Errorf("expected exactly 1 TIMER_EXPIRED, got %d in %v", expired, types)
	}
	if r.sink.Count() != 1 {
		t.Errorf("expected 1 notification, got %d", r.sink.Count())
	}
	if r.live.count() != 2 {
		t.Errorf("expected 2 live broadcasts, got %d", r.live.count())
	}
	if got := r.tracker.Snapshot().Walkthrough.TimerState; got != timer.StateExpired {
		t.Errorf("tracker timer state: got %s, want EXPIRED", got)
	}
}

func TestRunLoopTickKeepsCounting(t *testing.T) {
	r := newLoopRig(t)
	r.ctrl.GoTo(5)
	r.ctrl.Start()
	r.clk.Advance(61 * time.Second)

	if err := r.drive(t, []string{"tick"}, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	w := r.tracker.Snapshot().Walkthrough
	if w.TimerState != timer.StateRunning || w.RemainingSeconds != 1139 {
		t.Errorf("tracker: got %s %d, want RUNNING 1139", w.TimerState, w.RemainingSeconds)
	}
}

func TestRunLoopShutdownSIGINT(t *testing.T) {
	r := newLoopRig(t)

	if err := r.drive(t, nil, syscall.SIGINT); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(r.pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(r.pub.SystemEvents))
	}
	se := r.pub.SystemEvents[0]
	if se.Event != "SHUTDOWN" {
		t.Errorf("expected SHUTDOWN, got %q", se.Event)
	}
	if se.Reason != "SIGINT" {
		t.Errorf("expected reason SIGINT, got %q", se.Reason)
	}
	if !se.Retained {
		t.Error("expected Retained=true for SHUTDOWN")
	}
	if s := decodeStatus(t, se.RawPayload); s.Reason != "SIGINT" || s.Event != "SHUTDOWN" {
		t.Errorf("payload event/reason: got %q/%q", s.Event, s.Reason)
	}
}

func TestRunLoopShutdownSIGTERM(t *testing.T) {
	r := newLoopRig(t)

	if err := r.drive(t, []string{"tick"}, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	shutdowns := r.pub.SystemEventsNamed("SHUTDOWN")
	if len(shutdowns) != 1 {
		t.Fatalf("expected 1 SHUTDOWN, got %d", len(shutdowns))
	}
	if shutdowns[0].Reason != "SIGTERM" {
		t.Errorf("expected reason SIGTERM, got %q", shutdowns[0].Reason)
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	r := newLoopRig(t)
	r.pub.Connected = true
	r.ctrl.GoTo(5)
	r.ctrl.Start()
	r.clk.Advance(15 * time.Minute)

	if err := r.drive(t, []string{"tick", "heartbeat"}, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	hbs := r.pub.SystemEventsNamed("HEARTBEAT")
	if len(hbs) != 1 {
		t.Fatalf("expected 1 HEARTBEAT, got %d", len(hbs))
	}
	if hbs[0].Retained {
		t.Error("HEARTBEAT should not be retained")
	}
	s := decodeStatus(t, hbs[0].RawPayload)
	if s.UptimeSeconds != 900 {
		t.Errorf("uptime: got %d, want 900", s.UptimeSeconds)
	}
	if s.Walkthrough.Step != 5 || s.Walkthrough.Timer != "RUNNING" {
		t.Errorf("walkthrough: got step %d timer %s", s.Walkthrough.Step, s.Walkthrough.Timer)
	}
	if s.Walkthrough.RemainingSeconds != 300 {
		t.Errorf("remaining: got %d, want 300", s.Walkthrough.RemainingSeconds)
	}
	if !s.MQTT.Connected {
		t.Error("expected mqtt connected in heartbeat")
	}
}

func TestRunLoopHeartbeatIncludesNetworkInfo(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "10.0.0.5")
	r := newLoopRig(t)

	if err := r.drive(t, []string{"heartbeat"}, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	hbs := r.pub.SystemEventsNamed("HEARTBEAT")
	if len(hbs) != 1 {
		t.Fatalf("expected 1 HEARTBEAT, got %d", len(hbs))
	}
	s := decodeStatus(t, hbs[0].RawPayload)
	if s.Network == nil || s.Network.IP != "10.0.0.5" {
		t.Errorf("network: got %+v", s.Network)
	}
}

func TestRunLoopPublishError(t *testing.T) {
	r := newLoopRig(t)
	r.pub.PublishSystemError = errors.New("broker down")

	if err := r.drive(t, []string{"tick", "heartbeat"}, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop should survive publish errors, got %v", err)
	}
}

func TestRunLoopWithoutPublisherOrLive(t *testing.T) {
	r := newLoopRig(t)
	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(loop{ctrl: r.ctrl, tracker: r.tracker}, tick, nil, sig)
	}()
	tick <- time.Time{}
	sig <- syscall.SIGTERM
	if err := <-errCh; err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if !r.tracker.Snapshot().Restored {
		t.Error("tick should still update the tracker")
	}
}

// --- status / reset commands ---

func TestReadPersisted(t *testing.T) {
	rec := recipe.Default()
	kv := store.NewMemKV()
	end := t0.Add(90 * time.Second).UnixMilli()
	store.NewBridge(kv, rec.DefaultWeight).Save(store.AppState{Step: 5, Weight: 900, TimerEndTimestamp: &end})

	p := readPersisted(kv, rec, t0)
	if p.State.Step != 5 || p.State.Weight != 900 {
		t.Errorf("state: got %+v", p.State)
	}
	if p.Remaining != 90 {
		t.Errorf("remaining: got %d, want 90", p.Remaining)
	}

	p = readPersisted(kv, rec, t0.Add(time.Hour))
	if p.Remaining != 0 {
		t.Errorf("remaining after end: got %d, want 0", p.Remaining)
	}
}

func TestReadPersistedClampsStep(t *testing.T) {
	rec := recipe.Default()
	kv := store.NewMemKV()
	store.NewBridge(kv, rec.DefaultWeight).Save(store.AppState{Step: 99, Weight: 1700})

	p := readPersisted(kv, rec, t0)
	if p.State.Step != len(rec.Steps)-1 {
		t.Errorf("step: got %d, want %d", p.State.Step, len(rec.Steps)-1)
	}
}

func TestPrintStatusAndReset(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()

	kv, err := openStore(cfg)
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	rec := recipe.Default()
	store.NewBridge(kv, rec.DefaultWeight).Save(store.AppState{Step: 5, Weight: 930})
	kv.Close()

	var out bytes.Buffer
	if err := printStatus(&out, cfg); err != nil {
		t.Fatalf("printStatus: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "6/18") {
		t.Errorf("expected step position in output:\n%s", text)
	}
	if !strings.Contains(text, "930 g") {
		t.Errorf("expected weight in output:\n%s", text)
	}
	if !strings.Contains(text, "20:00") {
		t.Errorf("expected timer length in step card:\n%s", text)
	}

	out.Reset()
	if err := resetState(&out, cfg, false); err != nil {
		t.Fatalf("resetState: %v", err)
	}

	kv, _ = openStore(cfg)
	defer kv.Close()
	p := readPersisted(kv, rec, t0)
	if p.State.Step != 0 || p.State.Weight != rec.DefaultWeight {
		t.Errorf("after reset: got %+v", p.State)
	}
}

func TestResetReportsStoreFailure(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	// A directory where the state file should be makes the delete fail.
	if err := os.MkdirAll(filepath.Join(cfg.StorePath(), store.StateKey+".json", "x"), 0o755); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := resetState(&out, cfg, false); err == nil {
		t.Error("expected error when the state record cannot be removed")
	}
}
