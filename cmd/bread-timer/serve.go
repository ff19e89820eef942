package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sweeney/bread-timer/internal/alarm"
	"github.com/sweeney/bread-timer/internal/clock"
	"github.com/sweeney/bread-timer/internal/config"
	"github.com/sweeney/bread-timer/internal/logger"
	"github.com/sweeney/bread-timer/internal/metrics"
	"github.com/sweeney/bread-timer/internal/mqtt"
	"github.com/sweeney/bread-timer/internal/notify"
	"github.com/sweeney/bread-timer/internal/status"
	"github.com/sweeney/bread-timer/internal/store"
	"github.com/sweeney/bread-timer/internal/tone"
	"github.com/sweeney/bread-timer/internal/walkthrough"
	"github.com/sweeney/bread-timer/internal/web"
)

func run(cfg config.Config) error {
	if err := setupLogging(cfg); err != nil {
		return err
	}
	defer logger.Close()

	rec, err := loadRecipe(cfg)
	if err != nil {
		return err
	}

	kv, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer kv.Close()

	m := metrics.New()
	bridge := store.NewBridge(kv, rec.DefaultWeight)
	bridge.OnError = func(op string, _ error) { m.PersistFailure(op) }

	clk := clock.NewReal()
	var open tone.Opener
	audio := "off"
	if cfg.Buzzer.Chip != "" {
		open = tone.NewBuzzerOpener(cfg.Buzzer.Chip, cfg.Buzzer.Pin)
		audio = fmt.Sprintf("%s:%d", cfg.Buzzer.Chip, cfg.Buzzer.Pin)
	}
	osc := tone.NewOscillator(clk, open)
	defer osc.Deactivate()
	alarms := alarm.New(osc, tone.NewOutputBeeper(clk, open), clk)

	tracker := status.NewTracker(time.Now(), status.Config{
		TickMs:    cfg.Tick.Milliseconds(),
		Heartbeat: cfg.Heartbeat,
		Broker:    cfg.Broker,
		HTTPAddr:  cfg.HTTP,
		Store:     cfg.Store,
		Audio:     audio,
		PushURLs:  len(cfg.Notify.URLs),
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Publisher stays a nil interface when MQTT is disabled.
	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if cfg.Broker != "" {
		p, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker: cfg.Broker,
			OnReconnect: func() {
				tracker.SetMQTTConnected(true)
			},
		})
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer p.Close()
		publisher, mqttStatus = p, p
	}

	push := notify.NewPushSink(cfg.Notify.URLs)
	push.OnResult = m.Notification
	defer push.Wait()
	sinks := notify.Multi{push}
	if publisher != nil {
		alerts := notify.NewMQTTSink(publisher, time.Now)
		defer alerts.Wait()
		sinks = append(sinks, alerts)
	}

	ctrl := walkthrough.New(walkthrough.Options{
		Recipe:    rec,
		Bridge:    bridge,
		Alarm:     alarms,
		Notifier:  sinks,
		Publisher: publisher,
		Metrics:   m,
		Clock:     clk,
	})
	ctrl.Restore()
	tracker.Update(ctrl.View().Status())
	if mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}

	// Publish startup event with full status snapshot
	if publisher != nil {
		snap := tracker.Snapshot()
		err := publisher.PublishSystem(mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      mqtt.EventStartup,
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, mqtt.EventStartup, ""),
		})
		if err != nil {
			logger.Warnf("main: failed to publish startup event: %v", err)
		} else {
			logger.Infof("main: published startup event")
		}
	}

	var live liveView
	if cfg.HTTP != "" {
		srv := web.New(web.Options{
			Addr:       cfg.HTTP,
			Controller: ctrl,
			Tracker:    tracker,
			Metrics:    m,
			OnChange: func(v walkthrough.View) {
				tracker.Update(v.Status())
			},
		})
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Errorf("main: http server error: %v", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
		live = srv
		logger.Infof("main: http server listening on %s", cfg.HTTP)
	}

	heartbeat := make(chan struct{}, 1)
	if cfg.Heartbeat != "" {
		sched := cron.New()
		_, err := sched.AddFunc(cfg.Heartbeat, func() {
			select {
			case heartbeat <- struct{}{}:
			default:
			}
		})
		if err != nil {
			return fmt.Errorf("heartbeat schedule: %w", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	logger.Infof("main: started: tick=%v store=%s broker=%q heartbeat=%q audio=%s push=%d",
		cfg.Tick, cfg.Store, cfg.Broker, cfg.Heartbeat, audio, len(cfg.Notify.URLs))

	ticker := time.NewTicker(cfg.Tick)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(loop{
		ctrl:       ctrl,
		live:       live,
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
	}, ticker.C, heartbeat, sigCh)
}

// liveView is the part of the web server the run loop drives.
type liveView interface {
	Broadcast()
}

// loop holds the run loop's collaborators. Only ctrl and tracker are required.
type loop struct {
	ctrl       *walkthrough.Controller
	live       liveView
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
}

func runLoop(l loop, tick <-chan time.Time, heartbeat <-chan struct{}, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			logger.Infof("main: received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			l.refresh()
			l.publishSystem(mqtt.EventShutdown, signalName, true)
			return nil

		case <-tick:
			l.ctrl.Tick()
			l.refresh()
			if l.live != nil {
				l.live.Broadcast()
			}

		case <-heartbeat:
			if net := readNetworkInfo(); net != nil {
				l.tracker.SetNetwork(net)
			}
			l.refresh()
			snap := l.tracker.Snapshot()
			w := snap.Walkthrough
			logger.Infof("main: heartbeat: uptime=%v step=%d/%d timer=%s started=%d expired=%d",
				snap.Uptime().Truncate(time.Second), w.StepIndex+1, w.StepCount, w.TimerState, w.Counts.Started, w.Counts.Expired)
			l.publishSystem(mqtt.EventHeartbeat, "", false)
		}
	}
}

// refresh copies the controller's view and the MQTT state into the tracker.
func (l loop) refresh() {
	l.tracker.Update(l.ctrl.View().Status())
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

func (l loop) publishSystem(event, reason string, retained bool) {
	if l.publisher == nil {
		return
	}
	snap := l.tracker.Snapshot()
	err := l.publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		logger.Warnf("main: failed to publish %s event: %v", event, err)
	} else if event != mqtt.EventHeartbeat {
		logger.Infof("main: published %s event", event)
	}
}
