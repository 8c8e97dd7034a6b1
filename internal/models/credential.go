package models

import (
	"time"
)

// Represents a long-lived static API credential
type Credential struct {
	ID        string    `json:"id"`
	Secret    string    `json:"secret"`
	Name      string    `json:"name"`
	Tier      string    `json:"tier"`
	CreatedAt time.Time `json:"createdAt"`
	Active    bool      `json:"active"`
}
