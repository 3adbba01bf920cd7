package model

import (
	"encoding/json"
	"strings"
	"time"
)

// FoundItem is an item recovered by staff and held until its owner claims it.
type FoundItem struct {
	ID                string      `json:"customId,omitempty"`
	Name              string      `json:"name"`
	Description       string      `json:"description"`
	Image             string      `json:"image,omitempty"`
	Location          string      `json:"location"`
	DateFound         string      `json:"dateFound"`
	TimeFound         string      `json:"timeFound"`
	Brand             string      `json:"brand"`
	PrimaryColor      string      `json:"primaryColor"`
	SecondaryColor    string      `json:"secondaryColor,omitempty"`
	AdditionalInfo    string      `json:"additionalInfo,omitempty"`
	ReporterFirstName string      `json:"reporterFirstName"`
	ReporterLastName  string      `json:"reporterLastName"`
	ReporterPhone     string      `json:"reporterPhone"`
	ReporterEmail     string      `json:"reporterEmail"`
	Status            string      `json:"status"`
	OwnerName         string      `json:"ownerName,omitempty"`
	OwnerContact      string      `json:"ownerContact,omitempty"`
	OwnerEmail        string      `json:"ownerEmail,omitempty"`
	DateClaimed       string      `json:"dateClaimed,omitempty"`
	Validation        *Validation `json:"validation,omitempty"`
	LostItemID        string      `json:"lostItemId,omitempty"`
	SubmittedAt       time.Time   `json:"submittedAt"`
}

// Validation records how a claimant's ownership was attested.
type Validation struct {
	Method string `json:"method"`
	Notes  string `json:"notes,omitempty"`
	Date   string `json:"date"`
}

// Found item statuses.
const (
	FoundUnclaimed = "Unclaimed"
	FoundValidated = "Validated"
	FoundClaimed   = "Claimed"
)

// HasClaimer reports whether any claimer identity is recorded.
func (f *FoundItem) HasClaimer() bool {
	return strings.TrimSpace(f.OwnerName) != "" || strings.TrimSpace(f.OwnerContact) != ""
}

// ReporterName is the full name of whoever handed the item in.
func (f *FoundItem) ReporterName() string {
	return strings.TrimSpace(f.ReporterFirstName + " " + f.ReporterLastName)
}

// UnmarshalJSON accepts records written by older clients, which used the lost
// report field names (item, imageUrl, date, time, color). A missing status is
// left empty; readers of stored records treat it as Unclaimed.
func (f *FoundItem) UnmarshalJSON(data []byte) error {
	type plain FoundItem
	var rec struct {
		plain
		Item     string `json:"item"`
		ImageURL string `json:"imageUrl"`
		Date     string `json:"date"`
		Time     string `json:"time"`
		Color    string `json:"color"`
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}

	*f = FoundItem(rec.plain)
	if f.Name == "" {
		f.Name = rec.Item
	}
	if f.Image == "" {
		f.Image = rec.ImageURL
	}
	if f.DateFound == "" {
		f.DateFound = rec.Date
	}
	if f.TimeFound == "" {
		f.TimeFound = rec.Time
	}
	if f.PrimaryColor == "" {
		f.PrimaryColor = rec.Color
	}
	return nil
}
