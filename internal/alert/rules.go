// Package alert raises threshold alerts from the latest sensor readings.
package alert

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/plant-monitor/internal/store"
)

// Severity ranks an alert for display.
type Severity string

const (
	SeverityAlert   Severity = "alert"
	SeverityWarning Severity = "warning"
)

// Alert titles. Together with the plant id they identify an alert for
// de-duplication.
const (
	TitleLowMoisture     = "Low Soil Moisture"
	TitleHighTemperature = "High Temperature Alert"
	TitleLowTemperature  = "Low Temperature Alert"
	TitleLowLight        = "Insufficient Light"
)

// Thresholds.
const (
	LowMoisture     = 25.0  // %
	HighTemperature = 35.0  // °C
	LowTemperature  = 10.0  // °C
	LowLight        = 150.0 // lux
)

// Alert is a single notification about a plant.
type Alert struct {
	ID        string    `json:"id"`
	PlantID   string    `json:"plant_id"`
	PlantName string    `json:"plant_name"`
	Severity  Severity  `json:"severity"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Value     float64   `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// Evaluate checks a reading against every rule. Fields the device did not
// report are skipped.
func Evaluate(plant store.Plant, r store.SensorReading, now time.Time) []Alert {
	var alerts []Alert
	add := func(sev Severity, title, msg string, value float64) {
		alerts = append(alerts, Alert{
			ID:        uuid.NewString(),
			PlantID:   plant.ID,
			PlantName: plant.Name,
			Severity:  sev,
			Title:     title,
			Message:   msg,
			Value:     value,
			CreatedAt: now,
		})
	}

	if v := r.SoilMoisture; v != nil && *v < LowMoisture {
		add(SeverityAlert, TitleLowMoisture,
			fmt.Sprintf("%s needs watering urgently! Soil moisture is at %.0f%%.", plant.Name, *v), *v)
	}
	if v := r.Temperature; v != nil {
		switch {
		case *v > HighTemperature:
			add(SeverityWarning, TitleHighTemperature,
				fmt.Sprintf("%s is experiencing high temperature (%.1f°C). Consider moving to a cooler location.", plant.Name, *v), *v)
		case *v < LowTemperature:
			add(SeverityAlert, TitleLowTemperature,
				fmt.Sprintf("%s is too cold (%.1f°C). Move to a warmer location immediately.", plant.Name, *v), *v)
		}
	}
	if v := r.LightLevel; v != nil && *v < LowLight {
		add(SeverityWarning, TitleLowLight,
			fmt.Sprintf("%s is not receiving enough light (%.0f lux). Increase lighting or move to a brighter location.", plant.Name, *v), *v)
	}
	return alerts
}
