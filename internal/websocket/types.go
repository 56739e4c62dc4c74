package websocket

import (
	"time"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeModelProgress reports recognizer loading progress
	EventTypeModelProgress EventType = "model_progress"
	// EventTypeDetection reports a completed detection run
	EventTypeDetection EventType = "detection"
	// EventTypeSystemStatus represents a system status event
	EventTypeSystemStatus EventType = "system_status"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// ModelProgressEvent reports recognizer state changes and download progress.
type ModelProgressEvent struct {
	State    string `json:"state"`
	Progress int    `json:"progress"`
	Message  string `json:"message,omitempty"`
}

// DetectionEvent summarizes one detection run. Entity values never cross the
// socket; only counts and timing do.
type DetectionEvent struct {
	DocumentID   string         `json:"document_id,omitempty"`
	Generation   uint64         `json:"generation"`
	TotalFound   int            `json:"total_found"`
	Redacted     int            `json:"redacted"`
	ByType       map[string]int `json:"by_type"`
	Degraded     bool           `json:"degraded"`
	ProcessingMS float64        `json:"processing_ms"`
}

// SystemStatusEvent represents system status information
type SystemStatusEvent struct {
	Status           string `json:"status"`
	Uptime           string `json:"uptime"`
	TotalRequests    int64  `json:"total_requests"`
	TotalDetections  int64  `json:"total_detections"`
	RecognizerState  string `json:"recognizer_state"`
	ActiveRules      int    `json:"active_rules"`
	ConnectedClients int    `json:"connected_clients"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action   string `json:"action"` // "connected", "disconnected"
	ClientID string `json:"client_id"`
	ClientIP string `json:"client_ip"`
	Message  string `json:"message,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SubscriptionRequest represents a client subscription request
type SubscriptionRequest struct {
	Events []EventType `json:"events"`
}
