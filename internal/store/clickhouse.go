package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseConfig holds connection settings.
type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	// RetentionDays sets the TTL on sensor_readings; 0 disables it.
	RetentionDays int
}

var _ Store = (*ClickHouse)(nil)

// ClickHouse is a Store backed by a ClickHouse server.
type ClickHouse struct {
	conn driver.Conn

	// registered holds the ids loaded from the plant file. Rows for plants
	// since removed from the file stay in the table but are not served.
	registered map[string]bool
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS plants (
		id              String,
		name            String,
		plant_type      String,
		device_id       String,
		location        String,
		target_moisture Float64,
		last_seen       DateTime64(3, 'UTC'),
		updated_at      DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(updated_at)
	ORDER BY id`,

	`CREATE TABLE IF NOT EXISTS control_states (
		plant_id      String,
		water_pump_on Bool,
		fan_on        Bool,
		grow_light_on Bool,
		updated_at    DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(updated_at)
	ORDER BY plant_id`,

	`CREATE TABLE IF NOT EXISTS notifications (
		id         String,
		plant_id   String,
		severity   String,
		title      String,
		message    String,
		read       Bool,
		created_at DateTime64(3, 'UTC'),
		updated_at DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree(updated_at)
	ORDER BY id`,
}

func readingsTable(retentionDays int) string {
	q := `CREATE TABLE IF NOT EXISTS sensor_readings (
		plant_id      String,
		timestamp     DateTime64(3, 'UTC'),
		temperature   Nullable(Float64),
		humidity      Nullable(Float64),
		soil_moisture Nullable(Float64),
		light_level   Nullable(Float64),
		water_level   Nullable(Float64)
	) ENGINE = MergeTree
	ORDER BY (plant_id, timestamp)`
	if retentionDays > 0 {
		q += fmt.Sprintf("\n\tTTL toDateTime(timestamp) + INTERVAL %d DAY", retentionDays)
	}
	return q
}

// NewClickHouse connects, creates the schema, and registers plants.
func NewClickHouse(ctx context.Context, cfg ClickHouseConfig, plants []Plant) (*ClickHouse, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	db := &ClickHouse{conn: conn}
	if err := db.initSchema(ctx, cfg.RetentionDays); err != nil {
		conn.Close()
		return nil, err
	}
	if err := db.registerPlants(ctx, plants); err != nil {
		conn.Close()
		return nil, err
	}

	log.Printf("clickhouse: connected to %s/%s, %d plants registered", cfg.Addr, cfg.Database, len(plants))
	return db, nil
}

func (db *ClickHouse) initSchema(ctx context.Context, retentionDays int) error {
	for _, q := range append(schema, readingsTable(retentionDays)) {
		if err := db.conn.Exec(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

// registerPlants upserts the registry, keeping last_seen from previous runs.
func (db *ClickHouse) registerPlants(ctx context.Context, plants []Plant) error {
	db.registered = make(map[string]bool, len(plants))
	for _, p := range plants {
		db.registered[p.ID] = true
	}
	for _, p := range plants {
		if existing, err := db.Plant(ctx, p.ID); err == nil {
			p.LastSeen = existing.LastSeen
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := db.writePlant(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (db *ClickHouse) writePlant(ctx context.Context, p Plant) error {
	err := db.conn.Exec(ctx, `
		INSERT INTO plants (id, name, plant_type, device_id, location, target_moisture, last_seen, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.PlantType, p.DeviceID, p.Location, p.TargetMoisture, p.LastSeen, time.Now())
	if err != nil {
		return fmt.Errorf("insert plant %q: %w", p.ID, err)
	}
	return nil
}

const plantColumns = `id, name, plant_type, device_id, location, target_moisture, last_seen`

type scanner interface {
	Scan(dest ...any) error
}

func scanPlant(row scanner) (Plant, error) {
	var p Plant
	err := row.Scan(&p.ID, &p.Name, &p.PlantType, &p.DeviceID, &p.Location, &p.TargetMoisture, &p.LastSeen)
	return p, err
}

func (db *ClickHouse) Plants(ctx context.Context) ([]Plant, error) {
	rows, err := db.conn.Query(ctx, `SELECT `+plantColumns+` FROM plants FINAL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query plants: %w", err)
	}
	defer rows.Close()

	var plants []Plant
	for rows.Next() {
		p, err := scanPlant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plant: %w", err)
		}
		if db.registered[p.ID] {
			plants = append(plants, p)
		}
	}
	return plants, rows.Err()
}

func (db *ClickHouse) Plant(ctx context.Context, id string) (Plant, error) {
	if !db.registered[id] {
		return Plant{}, fmt.Errorf("plant %q: %w", id, ErrNotFound)
	}
	p, err := scanPlant(db.conn.QueryRow(ctx, `SELECT `+plantColumns+` FROM plants FINAL WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Plant{}, fmt.Errorf("plant %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return Plant{}, fmt.Errorf("query plant %q: %w", id, err)
	}
	return p, nil
}

func (db *ClickHouse) PlantByDevice(ctx context.Context, deviceID string) (Plant, error) {
	rows, err := db.conn.Query(ctx, `SELECT `+plantColumns+` FROM plants FINAL WHERE device_id = ? ORDER BY id`, deviceID)
	if err != nil {
		return Plant{}, fmt.Errorf("query device %q: %w", deviceID, err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPlant(rows)
		if err != nil {
			return Plant{}, fmt.Errorf("scan plant: %w", err)
		}
		if db.registered[p.ID] {
			return p, nil
		}
	}
	if err := rows.Err(); err != nil {
		return Plant{}, fmt.Errorf("query device %q: %w", deviceID, err)
	}
	return Plant{}, fmt.Errorf("device %q: %w", deviceID, ErrNotFound)
}

func (db *ClickHouse) TouchPlant(ctx context.Context, id string, t time.Time) error {
	p, err := db.Plant(ctx, id)
	if err != nil {
		return err
	}
	if !t.After(p.LastSeen) {
		return nil
	}
	p.LastSeen = t
	return db.writePlant(ctx, p)
}

func (db *ClickHouse) AddReading(ctx context.Context, r SensorReading) error {
	err := db.conn.Exec(ctx, `
		INSERT INTO sensor_readings (plant_id, timestamp, temperature, humidity, soil_moisture, light_level, water_level)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.PlantID, r.Timestamp, r.Temperature, r.Humidity, r.SoilMoisture, r.LightLevel, r.WaterLevel)
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

const readingColumns = `plant_id, timestamp, temperature, humidity, soil_moisture, light_level, water_level`

func (db *ClickHouse) ReadingsSince(ctx context.Context, plantID string, since time.Time) ([]SensorReading, error) {
	rows, err := db.conn.Query(ctx, `
		SELECT `+readingColumns+`
		FROM sensor_readings
		WHERE plant_id = ? AND timestamp >= ?
		ORDER BY timestamp`, plantID, since)
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer rows.Close()

	var out []SensorReading
	for rows.Next() {
		var r SensorReading
		if err := rows.Scan(&r.PlantID, &r.Timestamp, &r.Temperature, &r.Humidity, &r.SoilMoisture, &r.LightLevel, &r.WaterLevel); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (db *ClickHouse) LatestReading(ctx context.Context, plantID string) (SensorReading, bool, error) {
	var r SensorReading
	err := db.conn.QueryRow(ctx, `
		SELECT `+readingColumns+`
		FROM sensor_readings
		WHERE plant_id = ?
		ORDER BY timestamp DESC
		LIMIT 1`, plantID).
		Scan(&r.PlantID, &r.Timestamp, &r.Temperature, &r.Humidity, &r.SoilMoisture, &r.LightLevel, &r.WaterLevel)
	if errors.Is(err, sql.ErrNoRows) {
		return SensorReading{}, false, nil
	}
	if err != nil {
		return SensorReading{}, false, fmt.Errorf("query latest reading: %w", err)
	}
	return r, true, nil
}

func (db *ClickHouse) ControlState(ctx context.Context, plantID string) (ControlState, error) {
	var s ControlState
	err := db.conn.QueryRow(ctx, `
		SELECT water_pump_on, fan_on, grow_light_on, updated_at
		FROM control_states FINAL
		WHERE plant_id = ?`, plantID).
		Scan(&s.WaterPump, &s.Fan, &s.GrowLight, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ControlState{}, nil
	}
	if err != nil {
		return ControlState{}, fmt.Errorf("query control state: %w", err)
	}
	return s, nil
}

func (db *ClickHouse) SetControlState(ctx context.Context, plantID string, s ControlState) error {
	if _, err := db.Plant(ctx, plantID); err != nil {
		return err
	}
	err := db.conn.Exec(ctx, `
		INSERT INTO control_states (plant_id, water_pump_on, fan_on, grow_light_on, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		plantID, s.WaterPump, s.Fan, s.GrowLight, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert control state: %w", err)
	}
	return nil
}

const notificationColumns = `id, plant_id, severity, title, message, read, created_at`

func scanNotification(row scanner) (Notification, error) {
	var n Notification
	err := row.Scan(&n.ID, &n.PlantID, &n.Severity, &n.Title, &n.Message, &n.Read, &n.CreatedAt)
	return n, err
}

func (db *ClickHouse) writeNotification(ctx context.Context, n Notification) error {
	err := db.conn.Exec(ctx, `
		INSERT INTO notifications (`+notificationColumns+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.PlantID, n.Severity, n.Title, n.Message, n.Read, n.CreatedAt, time.Now())
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (db *ClickHouse) AddNotification(ctx context.Context, n Notification) error {
	if _, err := db.Plant(ctx, n.PlantID); err != nil {
		return err
	}
	return db.writeNotification(ctx, n)
}

func (db *ClickHouse) Notifications(ctx context.Context, unreadOnly bool, limit int) ([]Notification, error) {
	q := `SELECT ` + notificationColumns + ` FROM notifications FINAL`
	if unreadOnly {
		q += ` WHERE NOT read`
	}
	q += ` ORDER BY created_at DESC`
	if limit > 0 {
		q += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := db.conn.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	out := []Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead writes a newer version of the row; FINAL collapses
// it on read.
func (db *ClickHouse) MarkNotificationRead(ctx context.Context, id string) error {
	n, err := scanNotification(db.conn.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications FINAL WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("notification %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("query notification %q: %w", id, err)
	}
	if n.Read {
		return nil
	}
	n.Read = true
	return db.writeNotification(ctx, n)
}

func (db *ClickHouse) MarkAllNotificationsRead(ctx context.Context) (int, error) {
	unread, err := db.Notifications(ctx, true, 0)
	if err != nil {
		return 0, err
	}
	for _, n := range unread {
		n.Read = true
		if err := db.writeNotification(ctx, n); err != nil {
			return 0, err
		}
	}
	return len(unread), nil
}

// Close closes the connection.
func (db *ClickHouse) Close() error {
	return db.conn.Close()
}
