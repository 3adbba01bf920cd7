package model

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// Account is a staff account that can sign in to the admin surface.
type Account struct {
	ID                 string     `json:"customId"`
	Name               string     `json:"name"`
	Email              string     `json:"email"`
	Birthday           string     `json:"birthday"`
	Role               string     `json:"role"`
	Status             string     `json:"status"`
	PasswordChanged    bool       `json:"passwordChanged"`
	ProfileLink        string     `json:"profileLink"`
	ProfileInitials    string     `json:"profileInitials"`
	CreatedAt          time.Time  `json:"createdAt"`
	BirthdayUpdatedAt  *time.Time `json:"birthdayUpdatedAt,omitempty"`
	LastPasswordChange *time.Time `json:"lastPasswordChange,omitempty"`
}

// Roles.
const (
	RoleAdmin = "Admin"
	RoleUser  = "User"
)

// Account statuses.
const (
	AccountActive    = "Active"
	AccountSuspended = "Suspended"
)

// RoleAtLeast checks if role meets or exceeds the minimum required role.
// Role names compare case-insensitively; unknown roles never pass.
func RoleAtLeast(role, minimum string) bool {
	levels := map[string]int{
		strings.ToLower(RoleAdmin): 2,
		strings.ToLower(RoleUser):  1,
	}
	have, ok := levels[strings.ToLower(role)]
	if !ok {
		return false
	}
	need, ok := levels[strings.ToLower(minimum)]
	if !ok {
		return false
	}
	return have >= need
}

// IsActiveAdmin reports whether the account counts toward the active admin set.
func (a *Account) IsActiveAdmin() bool {
	return strings.EqualFold(a.Role, RoleAdmin) && a.Status == AccountActive
}

// MinPasswordLength is the shortest password accepted for a credential.
const MinPasswordLength = 6

// ValidatePassword checks the password policy.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return errors.New("Password must be at least 6 characters.")
	}
	return nil
}

// Initials derives profile initials from a display name: the first letters of
// the first and last words, or the first two letters of a single word.
func Initials(name string) string {
	words := strings.Fields(name)
	switch len(words) {
	case 0:
		return "U"
	case 1:
		r := []rune(words[0])
		if len(r) > 2 {
			r = r[:2]
		}
		return strings.ToUpper(string(r))
	default:
		first := []rune(words[0])
		last := []rune(words[len(words)-1])
		return strings.ToUpper(string(first[0]) + string(last[0]))
	}
}

// DateLayout is the calendar date format used by every record.
const DateLayout = "2006-01-02"

// IsAdult reports whether someone born on birthday (YYYY-MM-DD) is at least
// 18 years old on now's calendar date. Unparseable birthdays are not adult.
func IsAdult(birthday string, now time.Time) bool {
	b, err := time.Parse(DateLayout, birthday)
	if err != nil {
		return false
	}
	age := now.Year() - b.Year()
	if now.Month() < b.Month() || (now.Month() == b.Month() && now.Day() < b.Day()) {
		age--
	}
	return age >= 18
}
