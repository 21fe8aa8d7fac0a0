// Package config reads daemon defaults from the environment and an optional
// .env file. Command-line flags override these.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the daemon reads from the environment.
type Config struct {
	// MQTT
	MQTTBroker   string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string

	// HTTP
	HTTPAddr string

	// Storage
	StoreBackend   string // "memory" or "clickhouse"
	PlantsFile     string
	RetentionDays  int
	ClickHouseAddr string
	ClickHouseDB   string
	ClickHouseUser string
	ClickHousePass string

	// Schedules
	Heartbeat    time.Duration
	ScanInterval time.Duration

	// Relays; RelayPlant empty disables GPIO.
	RelayPlant string
	PinPump    int
	PinFan     int
	PinLight   int
}

// Load reads the given .env files (".env" when none are named) into the
// process environment, then builds a Config. Missing files are ignored and
// variables already set in the environment win over file values.
func Load(files ...string) *Config {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			log.Printf("config: load %s: %v", f, err)
		}
	}

	return &Config{
		MQTTBroker:   getEnv("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTClientID: getEnv("MQTT_CLIENT_ID", "plant-monitor"),
		MQTTUsername: getEnv("MQTT_USERNAME", ""),
		MQTTPassword: getEnv("MQTT_PASSWORD", ""),

		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		StoreBackend:   getEnv("STORE", "memory"),
		PlantsFile:     getEnv("PLANTS_FILE", "plants.yaml"),
		RetentionDays:  getEnvInt("RETENTION_DAYS", 30),
		ClickHouseAddr: getEnv("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickHouseDB:   getEnv("CLICKHOUSE_DB", "plants"),
		ClickHouseUser: getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePass: getEnv("CLICKHOUSE_PASS", ""),

		Heartbeat:    getEnvDuration("HEARTBEAT", 15*time.Minute),
		ScanInterval: getEnvDuration("ALERT_SCAN_INTERVAL", 5*time.Minute),

		RelayPlant: getEnv("RELAY_PLANT", ""),
		PinPump:    getEnvInt("PIN_PUMP", 17),
		PinFan:     getEnvInt("PIN_FAN", 27),
		PinLight:   getEnvInt("PIN_LIGHT", 22),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("config: failed to parse %s as int, using default: %v", key, err)
		return defaultValue
	}
	return intValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("config: failed to parse %s as duration, using default: %v", key, err)
		return defaultValue
	}
	return d
}
