package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/bread-timer/internal/timer"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string          `json:"event,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	Ready         bool            `json:"ready"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	StartTime     string          `json:"start_time"`
	Timestamp     string          `json:"timestamp"`
	Walkthrough   WalkthroughJSON `json:"walkthrough"`
	MQTT          MQTTStatus      `json:"mqtt"`
	Counts        CountsJSON      `json:"event_counts"`
	Network       *NetworkJSON    `json:"network,omitempty"`
	Config        ConfigJSON      `json:"config"`
}

// WalkthroughJSON is the JSON representation of the current step and timer.
type WalkthroughJSON struct {
	Step             int     `json:"step"`
	Steps            int     `json:"steps"`
	Title            string  `json:"title"`
	Weight           float64 `json:"weight"`
	Timer            string  `json:"timer"`
	RemainingSeconds int     `json:"remaining_seconds"`
	Display          string  `json:"display"`
	AlarmRinging     bool    `json:"alarm_ringing"`
	AlarmMode        string  `json:"alarm_mode"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Started      int `json:"started"`
	Paused       int `json:"paused"`
	Expired      int `json:"expired"`
	Acknowledged int `json:"acknowledged"`
	Reset        int `json:"reset"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs    int64  `json:"tick_ms"`
	Heartbeat string `json:"heartbeat,omitempty"`
	Broker    string `json:"broker"`
	HTTPAddr  string `json:"http_addr"`
	Store     string `json:"store"`
	Audio     string `json:"audio"`
	PushURLs  int    `json:"push_urls"`
}

func buildInner(snap Snapshot) StatusInner {
	w := snap.Walkthrough
	state := string(w.TimerState)
	if state == "" {
		state = "UNKNOWN"
	}

	return StatusInner{
		Ready:         snap.Restored,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Walkthrough: WalkthroughJSON{
			Step:             w.StepIndex,
			Steps:            w.StepCount,
			Title:            w.StepTitle,
			Weight:           w.Weight,
			Timer:            state,
			RemainingSeconds: w.RemainingSeconds,
			Display:          timer.FormatClock(w.RemainingSeconds),
			AlarmRinging:     w.AlarmRinging,
			AlarmMode:        w.AlarmMode,
		},
		MQTT: MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Started:      w.Counts.Started,
			Paused:       w.Counts.Paused,
			Expired:      w.Counts.Expired,
			Acknowledged: w.Counts.Acknowledged,
			Reset:        w.Counts.Reset,
		},
		Config: ConfigJSON{
			TickMs:    snap.Config.TickMs,
			Heartbeat: snap.Config.Heartbeat,
			Broker:    snap.Config.Broker,
			HTTPAddr:  snap.Config.HTTPAddr,
			Store:     snap.Config.Store,
			Audio:     snap.Config.Audio,
			PushURLs:  snap.Config.PushURLs,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network == nil {
		return
	}
	inner.Network = &NetworkJSON{
		Type:       snap.Network.Type,
		IP:         snap.Network.IP,
		Status:     snap.Network.Status,
		Gateway:    snap.Network.Gateway,
		WifiStatus: snap.Network.WifiStatus,
		SSID:       snap.Network.SSID,
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
