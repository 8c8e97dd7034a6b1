package models

import (
	"time"
)

// Represents a logged API request. The analytics buffer holds these and
// every aggregation reads from them.
type RequestLog struct {
	Timestamp      time.Time `json:"timestamp"`
	Method         string    `json:"method"`
	Path           string    `json:"path"`
	StatusCode     int       `json:"statusCode"`
	ResponseTimeMs int       `json:"responseTime"`
	ClientID       string    `json:"clientId"`
	IP             string    `json:"ip"`
	APIKey         string    `json:"apiKey,omitempty"`
	Authenticated  bool      `json:"authenticated"`
}
