// Package claim implements the found item claim state machine:
// Unclaimed -> Validated -> Claimed, and Claimed -> Unclaimed on revert.
//
// Transitions are pure. Each returns the field patch to merge into the stored
// record, where a nil value removes the field.
package claim

import (
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/najdeno/internal/model"
)

// Validation methods.
const (
	MethodPhotoMatch     = "Photo/Description Match"
	MethodIdentifier     = "Unique Identifier (ID/Serial)"
	MethodKnowledge      = "Knowledge-based Questions"
	MethodProofOwnership = "Proof of Ownership"
)

// Methods lists the accepted validation methods in display order.
var Methods = []string{MethodPhotoMatch, MethodIdentifier, MethodKnowledge, MethodProofOwnership}

// RuleError is a rejected transition. Its message is shown to the user as is.
type RuleError struct {
	Msg string
}

func (e *RuleError) Error() string { return e.Msg }

func reject(format string, args ...any) error {
	return &RuleError{Msg: fmt.Sprintf(format, args...)}
}

// IsMethod reports whether m is an accepted validation method.
func IsMethod(m string) bool {
	for _, known := range Methods {
		if m == known {
			return true
		}
	}
	return false
}

// Validate records that ownership was attested with method.
func Validate(item *model.FoundItem, method, notes string, now time.Time) (map[string]any, error) {
	if item.Status != model.FoundUnclaimed && item.Status != model.FoundValidated {
		return nil, reject("Only unclaimed items can be validated (current status: %s).", item.Status)
	}
	if !IsMethod(method) {
		return nil, reject("Please select a valid validation method.")
	}
	return map[string]any{
		"status": model.FoundValidated,
		"validation": model.Validation{
			Method: method,
			Notes:  strings.TrimSpace(notes),
			Date:   now.Format(model.DateLayout),
		},
	}, nil
}

// Claim hands the item over to its owner.
func Claim(item *model.FoundItem, ownerName, ownerContact, ownerEmail string, now time.Time) (map[string]any, error) {
	if item.Status == model.FoundClaimed {
		return nil, reject("This item has already been claimed.")
	}
	if item.Status != model.FoundUnclaimed && item.Status != model.FoundValidated {
		return nil, reject("Items with status %s cannot be claimed.", item.Status)
	}
	ownerName = strings.TrimSpace(ownerName)
	ownerContact = strings.TrimSpace(ownerContact)
	if ownerName == "" || ownerContact == "" {
		return nil, reject("Please enter the claimer's name and contact.")
	}

	patch := map[string]any{
		"status":       model.FoundClaimed,
		"ownerName":    ownerName,
		"ownerContact": ownerContact,
		"dateClaimed":  now.Format(model.DateLayout),
		"ownerEmail":   nil,
	}
	if e := strings.TrimSpace(ownerEmail); e != "" {
		patch["ownerEmail"] = e
	}
	return patch, nil
}

// Revert undoes a claim. Claimer details, the claim date and the validation
// record are all cleared.
func Revert(item *model.FoundItem) (map[string]any, error) {
	if item.Status != model.FoundClaimed {
		return nil, reject("Only claimed items can be reverted.")
	}
	return map[string]any{
		"status":       model.FoundUnclaimed,
		"ownerName":    nil,
		"ownerContact": nil,
		"ownerEmail":   nil,
		"dateClaimed":  nil,
		"validation":   nil,
	}, nil
}

// CheckCreate rejects new records that skip the claim process.
func CheckCreate(item *model.FoundItem) error {
	if item.Status == model.FoundClaimed {
		return reject("Cannot add item as Claimed directly. Use claim process later.")
	}
	return nil
}

// CheckEdit rejects an edit of current that would leave the record
// inconsistent. Edits may keep the current status or reset it to Unclaimed.
// Unclaimed items must not carry claimer details and Claimed items must keep
// the claimer's name and contact.
func CheckEdit(current, edited *model.FoundItem) error {
	if edited.Status == current.Status {
		switch edited.Status {
		case model.FoundUnclaimed:
			if edited.HasClaimer() {
				return reject("Cannot set status to Unclaimed while claimer info exists. Remove claim first.")
			}
		case model.FoundClaimed:
			if strings.TrimSpace(edited.OwnerName) == "" || strings.TrimSpace(edited.OwnerContact) == "" {
				return reject("Claimed items must keep the claimer's name and contact. Revert the claim instead.")
			}
		}
		return nil
	}
	switch edited.Status {
	case model.FoundUnclaimed:
		if edited.HasClaimer() {
			return reject("Cannot set status to Unclaimed while claimer info exists. Remove claim first.")
		}
		return nil
	case model.FoundClaimed:
		return reject("Use the claim process to mark an item as Claimed.")
	default:
		return reject("Status can only be changed to Unclaimed while editing.")
	}
}
