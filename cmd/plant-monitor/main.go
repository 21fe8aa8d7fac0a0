// Command plant-monitor ingests plant sensor telemetry, serves moisture
// predictions and device controls over HTTP, and raises threshold alerts.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/plant-monitor/internal/alert"
	"github.com/sweeney/plant-monitor/internal/config"
	"github.com/sweeney/plant-monitor/internal/control"
	"github.com/sweeney/plant-monitor/internal/gpio"
	"github.com/sweeney/plant-monitor/internal/ingest"
	"github.com/sweeney/plant-monitor/internal/mqtt"
	"github.com/sweeney/plant-monitor/internal/status"
	"github.com/sweeney/plant-monitor/internal/store"
	"github.com/sweeney/plant-monitor/internal/web"
)

type options struct {
	broker        string
	clientID      string
	mqttUser      string
	mqttPass      string
	httpAddr      string
	storeBackend  string
	plantsFile    string
	retentionDays int
	clickhouse    store.ClickHouseConfig
	heartbeat     time.Duration
	scanInterval  time.Duration
	relayPlant    string
	pins          gpio.Pins
}

func main() {
	cfg := config.Load()

	var o options
	flag.StringVar(&o.broker, "broker", cfg.MQTTBroker, "MQTT broker address")
	flag.StringVar(&o.clientID, "client-id", cfg.MQTTClientID, "MQTT client id")
	flag.StringVar(&o.httpAddr, "http", cfg.HTTPAddr, "HTTP address (empty to disable)")
	flag.StringVar(&o.storeBackend, "store", cfg.StoreBackend, `Storage backend ("memory" or "clickhouse")`)
	flag.StringVar(&o.plantsFile, "plants", cfg.PlantsFile, "YAML plant registry")
	flag.IntVar(&o.retentionDays, "retention-days", cfg.RetentionDays, "Days of readings to keep (0 keeps everything)")
	flag.StringVar(&o.clickhouse.Addr, "clickhouse", cfg.ClickHouseAddr, "ClickHouse address")
	flag.StringVar(&o.clickhouse.Database, "clickhouse-db", cfg.ClickHouseDB, "ClickHouse database")
	flag.DurationVar(&o.heartbeat, "heartbeat", cfg.Heartbeat, "Heartbeat interval (0 to disable)")
	flag.DurationVar(&o.scanInterval, "scan", cfg.ScanInterval, "Alert scan interval")
	flag.StringVar(&o.relayPlant, "relay-plant", cfg.RelayPlant, "Plant whose controls drive local GPIO relays (empty to disable)")
	flag.IntVar(&o.pins.Pump, "pin-pump", cfg.PinPump, "BCM pin number for the water pump relay")
	flag.IntVar(&o.pins.Fan, "pin-fan", cfg.PinFan, "BCM pin number for the fan relay")
	flag.IntVar(&o.pins.Light, "pin-light", cfg.PinLight, "BCM pin number for the grow light relay")

	flag.Parse()

	o.mqttUser = cfg.MQTTUsername
	o.mqttPass = cfg.MQTTPassword
	o.clickhouse.Username = cfg.ClickHouseUser
	o.clickhouse.Password = cfg.ClickHousePass
	o.clickhouse.RetentionDays = o.retentionDays

	if err := run(o); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(o options) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if o.scanInterval <= 0 {
		return fmt.Errorf("scan interval must be positive, got %v", o.scanInterval)
	}

	plants, err := store.LoadPlants(o.plantsFile)
	if err != nil {
		return fmt.Errorf("load plants: %w", err)
	}

	st, err := openStore(ctx, o, plants)
	if err != nil {
		return err
	}
	defer st.Close()

	// Initialize MQTT; connection happens in the background
	client := mqtt.NewRealClient(mqtt.ClientConfig{
		Broker:   o.broker,
		ClientID: o.clientID,
		Username: o.mqttUser,
		Password: o.mqttPass,
	})
	defer client.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		HeartbeatMs: o.heartbeat.Milliseconds(),
		ScanMs:      o.scanInterval.Milliseconds(),
		Broker:      o.broker,
		HTTPPort:    o.httpAddr,
		Store:       o.storeBackend,
		RelayPlant:  o.relayPlant,
	})
	tracker.SetPlants(len(plants))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	controller := control.New(st, client)
	if o.relayPlant != "" {
		relays, err := gpio.NewRealWriter(o.pins)
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		defer relays.Close()
		controller.WithRelays(o.relayPlant, relays)
		if err := controller.Sync(ctx); err != nil {
			return fmt.Errorf("sync relays: %w", err)
		}
	}

	ingester := ingest.New(st, tracker)
	if err := subscribe(ctx, client, ingester); err != nil {
		log.Printf("mqtt subscribe failed, relying on reconnect: %v", err)
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := client.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	scanner := alert.NewScanner(st, countingNotifier{next: alert.NewRecorder(client, st), tracker: tracker})
	go func() {
		if err := scanner.Run(ctx, o.scanInterval); err != nil {
			log.Printf("alert scanner stopped: %v", err)
		}
	}()

	if o.httpAddr != "" {
		srv := web.New(o.httpAddr, web.Deps{
			Tracker:    tracker,
			Store:      st,
			Controller: controller,
			Ingester:   ingester,
		})
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http server listening on %s", o.httpAddr)
	}

	log.Printf("started: plants=%d store=%s broker=%s heartbeat=%v scan=%v",
		len(plants), o.storeBackend, o.broker, o.heartbeat, o.scanInterval)

	var tick <-chan time.Time
	if o.heartbeat > 0 {
		ticker := time.NewTicker(o.heartbeat)
		defer ticker.Stop()
		tick = ticker.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(client, client, tracker, time.Now, tick, sigCh)
}

func openStore(ctx context.Context, o options, plants []store.Plant) (store.Store, error) {
	switch o.storeBackend {
	case "memory":
		retention := time.Duration(o.retentionDays) * 24 * time.Hour
		return store.NewMemory(plants, retention), nil
	case "clickhouse":
		ch, err := store.NewClickHouse(ctx, o.clickhouse, plants)
		if err != nil {
			return nil, fmt.Errorf("open clickhouse: %w", err)
		}
		return ch, nil
	default:
		return nil, fmt.Errorf("unknown store %q", o.storeBackend)
	}
}

// subscribe feeds device messages into the ingester.
func subscribe(ctx context.Context, sub mqtt.Subscriber, in *ingest.Ingester) error {
	return sub.Subscribe(
		func(r mqtt.DeviceReading) {
			if _, err := in.Reading(ctx, r); err != nil {
				log.Printf("ingest: reading from %s: %v", r.DeviceID, err)
			}
		},
		func(deviceID string) {
			if _, err := in.Heartbeat(ctx, deviceID); err != nil {
				log.Printf("ingest: heartbeat from %s: %v", deviceID, err)
			}
		},
	)
}

// countingNotifier counts delivered alerts on the status tracker.
type countingNotifier struct {
	next    alert.Notifier
	tracker *status.Tracker
}

func (n countingNotifier) PublishAlert(a alert.Alert) error {
	if err := n.next.PublishAlert(a); err != nil {
		return err
	}
	log.Printf("alert: %s %s: %s", a.PlantID, a.Severity, a.Title)
	n.tracker.RecordAlerts(1)
	return nil
}

func runLoop(publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				event.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			hbEvent := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "HEARTBEAT",
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				// Refresh network info for heartbeat
				if net := readNetworkInfo(); net != nil {
					tracker.SetNetwork(net)
				}
				snap := tracker.Snapshot()
				log.Printf("heartbeat: uptime=%v readings=%d alerts=%d",
					snap.Uptime().Truncate(time.Second), snap.Counts.Readings, snap.Counts.Alerts)
				hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
			}
			if err := publisher.PublishSystem(hbEvent); err != nil {
				log.Printf("heartbeat publish error: %v", err)
			}
		}
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
