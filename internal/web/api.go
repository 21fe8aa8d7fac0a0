package web

import (
	"errors"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/sweeney/plant-monitor/internal/mqtt"
	"github.com/sweeney/plant-monitor/internal/predict"
	"github.com/sweeney/plant-monitor/internal/store"
)

// PredictWindow is how far back readings are fed to the predictor.
const PredictWindow = 7 * 24 * time.Hour

// DefaultReadingsHours is the history length served when ?hours is absent.
const DefaultReadingsHours = 24.0

// DefaultNotificationLimit caps the notification list when ?limit is absent.
const DefaultNotificationLimit = 50

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	plantID := mux.Vars(r)["plant_id"]

	hours, ok := positiveParam(r, "hours", predict.DefaultHorizon)
	if !ok {
		writeError(w, http.StatusBadRequest, "hours must be a positive number")
		return
	}

	plant, err := s.deps.Store.Plant(r.Context(), plantID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Plant not found")
		return
	}
	if err != nil {
		log.Printf("web: predict %s: %v", plantID, err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	rows, err := s.deps.Store.ReadingsSince(r.Context(), plantID, s.now().Add(-PredictWindow))
	if err != nil {
		log.Printf("web: predict %s: fetch readings: %v", plantID, err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch sensor data")
		return
	}

	resp := PredictResponse{
		Success:   true,
		PlantID:   plantID,
		PlantName: plant.Name,
	}
	if len(rows) < predict.MinReadings {
		resp.Message = "Not enough data for prediction (need at least 2 readings)"
		writeJSON(w, http.StatusOK, resp)
		return
	}

	readings := make([]predict.Reading, len(rows))
	for i, row := range rows {
		readings[i] = predict.Reading{SoilMoisture: row.SoilMoisture, Timestamp: row.Timestamp}
	}
	result := predict.Predict(readings, hours)

	target := plant.TargetMoisture
	if target <= 0 {
		target = predict.DefaultTargetMoisture
	}
	resp.TargetMoisture = target
	resp.Prediction = &PredictionJSON{
		Result:        result,
		StatusMessage: predict.Advise(result, target),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	plantID := mux.Vars(r)["plant_id"]

	hours, ok := positiveParam(r, "hours", DefaultReadingsHours)
	if !ok {
		writeError(w, http.StatusBadRequest, "hours must be a positive number")
		return
	}

	if _, err := s.deps.Store.Plant(r.Context(), plantID); err != nil {
		s.plantError(w, plantID, err)
		return
	}

	since := s.now().Add(-time.Duration(hours * float64(time.Hour)))
	rows, err := s.deps.Store.ReadingsSince(r.Context(), plantID, since)
	if err != nil {
		log.Printf("web: readings %s: %v", plantID, err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch sensor data")
		return
	}
	if rows == nil {
		rows = []store.SensorReading{}
	}
	writeJSON(w, http.StatusOK, ReadingsResponse{PlantID: plantID, Hours: hours, Readings: rows})
}

func (s *Server) handleGetControls(w http.ResponseWriter, r *http.Request) {
	plantID := mux.Vars(r)["plant_id"]

	state, err := s.deps.Controller.Get(r.Context(), plantID)
	if err != nil {
		s.plantError(w, plantID, err)
		return
	}
	writeJSON(w, http.StatusOK, mqtt.NewControlPayload(state))
}

func (s *Server) handlePutControls(w http.ResponseWriter, r *http.Request) {
	plantID := mux.Vars(r)["plant_id"]

	var req ControlRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.empty() {
		writeError(w, http.StatusBadRequest, "No control fields given")
		return
	}

	current, err := s.deps.Controller.Get(r.Context(), plantID)
	if err != nil {
		s.plantError(w, plantID, err)
		return
	}

	state, err := s.deps.Controller.Set(r.Context(), plantID, req.apply(current))
	if err != nil {
		if state.UpdatedAt.IsZero() {
			s.plantError(w, plantID, err)
			return
		}
		// Saved; the device will pick it up on its next poll.
		log.Printf("web: controls %s: %v", plantID, err)
	}
	writeJSON(w, http.StatusOK, mqtt.NewControlPayload(state))
}

func (s *Server) handleSensorReading(w http.ResponseWriter, r *http.Request) {
	var p mqtt.ReadingPayload
	if err := decodeJSON(w, r, &p); err != nil {
		s.deps.Ingester.Rejected()
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	reading, err := p.Reading("")
	if err != nil {
		s.deps.Ingester.Rejected()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := s.deps.Ingester.Reading(r.Context(), reading); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Plant not found for this device")
			return
		}
		log.Printf("web: sensor reading from %s: %v", reading.DeviceID, err)
		writeError(w, http.StatusInternalServerError, "Failed to save sensor data")
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "Sensor data saved successfully"})
}

func (s *Server) handleDeviceControls(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		writeError(w, http.StatusBadRequest, "device_id parameter is required")
		return
	}

	plant, err := s.deps.Store.PlantByDevice(r.Context(), deviceID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Plant not found for this device")
		return
	}
	if err != nil {
		log.Printf("web: device controls %s: %v", deviceID, err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	state, err := s.deps.Store.ControlState(r.Context(), plant.ID)
	if err != nil {
		log.Printf("web: device controls %s: %v", deviceID, err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch control state")
		return
	}
	writeJSON(w, http.StatusOK, mqtt.NewControlPayload(state))
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req HeartbeatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.DeviceID == "" {
		writeError(w, http.StatusBadRequest, "device_id is required")
		return
	}

	at, err := s.deps.Ingester.Heartbeat(r.Context(), req.DeviceID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Plant not found for this device")
		return
	}
	if err != nil {
		log.Printf("web: heartbeat from %s: %v", req.DeviceID, err)
		writeError(w, http.StatusInternalServerError, "Failed to update heartbeat")
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Timestamp: at.Format(time.RFC3339)})
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	limit, ok := positiveParam(r, "limit", DefaultNotificationLimit)
	if !ok || limit != math.Trunc(limit) {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	unreadOnly := r.URL.Query().Get("unread") == "true"

	notes, err := s.deps.Store.Notifications(r.Context(), unreadOnly, int(limit))
	if err != nil {
		log.Printf("web: notifications: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch notifications")
		return
	}
	writeJSON(w, http.StatusOK, NotificationsResponse{Notifications: notes})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	err := s.deps.Store.MarkNotificationRead(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Notification not found")
		return
	}
	if err != nil {
		log.Printf("web: mark notification %s read: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to update notification")
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.Store.MarkAllNotificationsRead(r.Context())
	if err != nil {
		log.Printf("web: mark all notifications read: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to update notifications")
		return
	}
	writeJSON(w, http.StatusOK, MarkReadResponse{Success: true, Updated: n})
}

func (s *Server) plantError(w http.ResponseWriter, plantID string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Plant not found")
		return
	}
	log.Printf("web: plant %s: %v", plantID, err)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

// positiveParam reads a positive finite number from the query string.
// Returns def if the parameter is absent.
func positiveParam(r *http.Request, name string, def float64) (float64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
