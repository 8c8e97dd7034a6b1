package models

import (
	"time"
)

// Represents a browser instance paired with a server-issued shared secret.
// Entries are tombstoned on revocation and removed by the hourly sweep once
// expired.
type DeviceEntry struct {
	BrowserID    string    `json:"browserId"`
	SharedSecret string    `json:"sharedSecret"`
	IP           string    `json:"ip"`
	UserAgent    string    `json:"userAgent"`
	RegisteredAt time.Time `json:"registeredAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
	LastSeen     time.Time `json:"lastSeen"`
	LastIP       string    `json:"lastIp"`
	Active       bool      `json:"active"`
}

// Expired reports whether the entry's lifetime has elapsed at the given instant.
func (d *DeviceEntry) Expired(now time.Time) bool {
	return !d.ExpiresAt.After(now)
}
