package web

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/sweeney/plant-monitor/internal/predict"
	"github.com/sweeney/plant-monitor/internal/store"
)

const maxBodyBytes = 1 << 20

// ErrorJSON is the body of every error response.
type ErrorJSON struct {
	Error string `json:"error"`
}

// PredictionJSON is a prediction with its advisory message.
type PredictionJSON struct {
	predict.Result
	StatusMessage string `json:"status_message"`
}

// PredictResponse is the body of GET /api/predict/{plant_id}. Prediction is
// null when there is not enough data.
type PredictResponse struct {
	Success        bool            `json:"success"`
	PlantID        string          `json:"plant_id"`
	PlantName      string          `json:"plant_name"`
	TargetMoisture float64         `json:"target_moisture,omitempty"`
	Prediction     *PredictionJSON `json:"prediction"`
	Message        string          `json:"message,omitempty"`
}

// ReadingsResponse is the body of GET /api/plants/{plant_id}/readings.
type ReadingsResponse struct {
	PlantID  string                `json:"plant_id"`
	Hours    float64               `json:"hours"`
	Readings []store.SensorReading `json:"readings"`
}

// NotificationsResponse is the body of GET /api/notifications.
type NotificationsResponse struct {
	Notifications []store.Notification `json:"notifications"`
}

// MarkReadResponse is the body of POST /api/notifications/read-all.
type MarkReadResponse struct {
	Success bool `json:"success"`
	Updated int  `json:"updated"`
}

// SuccessResponse acknowledges a device post.
type SuccessResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// ControlRequest is the body of PUT /api/plants/{plant_id}/controls. Absent
// fields keep their current value.
type ControlRequest struct {
	WaterPump *bool `json:"water_pump_on"`
	Fan       *bool `json:"fan_on"`
	GrowLight *bool `json:"grow_light_on"`
}

func (c ControlRequest) empty() bool {
	return c.WaterPump == nil && c.Fan == nil && c.GrowLight == nil
}

func (c ControlRequest) apply(s store.ControlState) store.ControlState {
	if c.WaterPump != nil {
		s.WaterPump = *c.WaterPump
	}
	if c.Fan != nil {
		s.Fan = *c.Fan
	}
	if c.GrowLight != nil {
		s.GrowLight = *c.GrowLight
	}
	return s
}

// HeartbeatRequest is the body of POST /api/esp32/heartbeat.
type HeartbeatRequest struct {
	DeviceID string `json:"device_id"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorJSON{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}
