package model

import "time"

// ActionLogEntry is one immutable audit record.
type ActionLogEntry struct {
	Key       string    `json:"-"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Item      string    `json:"item"`
	Details   string    `json:"details"`
	User      string    `json:"user"`
	UserEmail string    `json:"userEmail"`
	UserRole  string    `json:"userRole"`
}
