// Package validate checks record fields before they are written. Every
// violated rule produces one human-readable message and all of them are
// returned together.
package validate

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/erazemk/najdeno/internal/model"
)

// Errors is the list of messages for every violated rule.
type Errors []string

func (e Errors) Error() string {
	return strings.Join(e, " ")
}

// Field patterns.
var (
	lostName      = regexp.MustCompile(`^[a-zA-Z\s'-]+$`)
	lostPhone     = regexp.MustCompile(`^\+?\d{10,13}$`)
	email         = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	foundPhone    = regexp.MustCompile(`^[0-9+()\-\s]{7,20}$`)
	personName    = regexp.MustCompile(`^[A-Za-z\s\-'.]{2,60}$`)
	itemName      = regexp.MustCompile(`^[A-Za-z0-9\s\-'.&,()]{2,100}$`)
	placeName     = regexp.MustCompile(`^[A-Za-z0-9\s\-'.&,()]{2,120}$`)
	brandName     = regexp.MustCompile(`^[A-Za-z0-9\s\-'.&]{2,60}$`)
	colorName     = regexp.MustCompile(`^[A-Za-z\s\-]{3,40}$`)
	clockTime     = regexp.MustCompile(`^(?:[01]\d|2[0-3]):[0-5]\d$`)
	validationTag = map[string]*regexp.Regexp{
		"lostname":   lostName,
		"lostphone":  lostPhone,
		"mail":       email,
		"phone":      foundPhone,
		"personname": personName,
		"itemname":   itemName,
		"place":      placeName,
		"brand":      brandName,
		"color":      colorName,
		"clock":      clockTime,
	}
)

// Validator holds the registered rules and the clock used for date checks.
type Validator struct {
	v   *validator.Validate
	now func() time.Time
}

// New creates a Validator. Dates are compared against now's calendar day.
func New(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	val := &Validator{
		v:   validator.New(validator.WithRequiredStructEnabled()),
		now: now,
	}

	val.v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("label")
	})
	for tag, re := range validationTag {
		val.v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return re.MatchString(fl.Field().String())
		})
	}
	val.v.RegisterValidation("day", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(model.DateLayout, fl.Field().String())
		return err == nil
	})
	val.v.RegisterValidation("notfuture", func(fl validator.FieldLevel) bool {
		d, err := time.Parse(model.DateLayout, fl.Field().String())
		if err != nil {
			return false
		}
		return !d.After(val.today())
	})
	val.v.RegisterValidation("adult", func(fl validator.FieldLevel) bool {
		return model.IsAdult(fl.Field().String(), val.now())
	})
	val.v.RegisterValidation("weburl", func(fl validator.FieldLevel) bool {
		return IsWebURL(fl.Field().String())
	})

	return val
}

// today is the current calendar day as a UTC midnight, comparable to dates
// parsed with model.DateLayout.
func (val *Validator) today() time.Time {
	n := val.now()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}

// IsWebURL reports whether s is an absolute http or https URL.
func IsWebURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// check validates form and converts failures into messages. overrides
// replaces the default message for a "Label.tag" pair.
func (val *Validator) check(form any, overrides map[string]string) error {
	err := val.v.Struct(form)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validating: %w", err)
	}

	var msgs Errors
	seen := make(map[string]bool)
	for _, fe := range fieldErrs {
		msg, ok := overrides[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = message(fe)
		}
		if !seen[msg] {
			seen[msg] = true
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

func message(fe validator.FieldError) string {
	label := fe.Field()
	switch fe.Tag() {
	case "required":
		return label + " is required."
	case "min":
		return fmt.Sprintf("%s must be at least %s characters.", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters.", label, fe.Param())
	case "day":
		return label + " must be a date (YYYY-MM-DD)."
	case "notfuture":
		return label + " cannot be in the future."
	case "clock":
		return label + " must be HH:MM (24-hour)."
	case "weburl":
		return label + " must be http(s)."
	case "mail", "phone", "lostphone":
		return label + " is invalid."
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s.", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return label + " contains invalid characters."
	}
}

func trim(s string) string {
	return strings.TrimSpace(s)
}
