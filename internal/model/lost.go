package model

import (
	"strings"
	"time"
)

// LostReport is a public report of an item someone lost.
type LostReport struct {
	ID          string    `json:"customId"`
	Item        string    `json:"item"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Location    string    `json:"location"`
	Brand       string    `json:"brand,omitempty"`
	Primary     string    `json:"primary,omitempty"`
	Secondary   string    `json:"secondary,omitempty"`
	Additional  string    `json:"additional,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	First       string    `json:"first"`
	Last        string    `json:"last"`
	Phone       string    `json:"phone"`
	Email       string    `json:"email"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Lost report statuses. Found and Open only appear on older records and on
// reports an admin has matched by hand.
const (
	LostPending = "Pending"
	LostFound   = "Found"
	LostOpen    = "Open"
)

// ReporterName is the reporter's full name.
func (r *LostReport) ReporterName() string {
	return strings.TrimSpace(r.First + " " + r.Last)
}
